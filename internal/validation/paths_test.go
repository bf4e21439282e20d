package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "relative directory", path: "./site"},
		{name: "parent directory", path: "../site"},
		{name: "absolute directory", path: "/home/user/site"},
		{name: "empty", path: "", wantErr: true},
		{name: "blank", path: "  ", wantErr: true},
		{name: "command injection", path: "site; rm -rf /", wantErr: true},
		{name: "backtick", path: "site`whoami`", wantErr: true},
		{name: "system directory", path: "/etc/arbor", wantErr: true},
		{name: "system directory root", path: "/proc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateContained(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "plain", path: "build"},
		{name: "nested", path: "out/site"},
		{name: "dot segments", path: "out/../build"},
		{name: "dotted name", path: "..build"},
		{name: "absolute", path: "/tmp/build", wantErr: true},
		{name: "parent", path: "..", wantErr: true},
		{name: "traversal", path: "out/../../build", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContained(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern("**/.git/**"))
	assert.NoError(t, ValidatePattern("*.{swp,tmp}"))
	assert.Error(t, ValidatePattern(""))
	assert.Error(t, ValidatePattern("[a-"))
	assert.Error(t, ValidatePattern("{a,b"))
}

func TestInside(t *testing.T) {
	assert.True(t, Inside("site", "site"))
	assert.True(t, Inside("site", "site/build"))
	assert.True(t, Inside(".", "build"))
	assert.False(t, Inside("site", "build"))
	assert.False(t, Inside("site/build", "site"))
	assert.False(t, Inside("site", "site-old"))
}
