package reference

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

func echoHandler(ref Reference, source project.FilePath) (string, error) {
	return fmt.Sprintf("[%s:%s]", ref.Type, ref.Name), nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Reference
		wantErr bool
	}{
		{"@string/title", Reference{TypeString, "title"}, false},
		{"@image/icons/logo", Reference{TypeImage, "icons/logo"}, false},
		{"@dimen/gap-2", Reference{TypeDimen, "gap-2"}, false},
		{"@string/a/b", Reference{}, true},
		{"@bogus/name", Reference{}, true},
		{"string/title", Reference{}, true},
		{"@image/", Reference{}, true},
		{"@image/a//b", Reference{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref)
			assert.Equal(t, tt.input, ref.String())
		})
	}
}

func TestTypeClassification(t *testing.T) {
	for _, vt := range VariableTypes() {
		assert.True(t, vt.IsVariable(), vt.String())
		assert.False(t, vt.IsMedia(), vt.String())
	}
	assert.True(t, TypeImage.IsMedia())
	assert.True(t, TypeFont.IsResourceFile())
	assert.False(t, TypeFont.IsMedia())
	assert.False(t, TypeProject.IsVariable())
}

func TestReferencePath(t *testing.T) {
	ref := Reference{TypeImage, "icons/social/github"}
	assert.True(t, ref.HasPath())
	assert.Equal(t, "icons/social", ref.Path())
	assert.Equal(t, "github", ref.BaseName())

	flat := Reference{TypeImage, "logo"}
	assert.False(t, flat.HasPath())
	assert.Equal(t, "", flat.Path())
	assert.Equal(t, "logo", flat.BaseName())
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "no references here", "no references here"},
		{"single", "<h1>@string/title</h1>", "<h1>[string:title]</h1>"},
		{"media with path", "url(@image/icons/logo)", "url([image:icons/logo])"},
		{"escape", "mail me @@ home", "mail me @ home"},
		{"css at-rule", "@media screen { a { color: @color/primary; } }", "@media screen { a { color: [color:primary]; } }"},
		{"font-face", "@font-face { src: url(@font/roboto); }", "@font-face { src: url([font:roboto]); }"},
		{"variable stops at slash", "@string/a/b", "[string:a]/b"},
		{"trailing at", "end@", "end@"},
		{"adjacent", "@string/a@string/b", "[string:a][string:b]"},
		{"type without name separator", "@string title", "@string title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input, "page/page.htm", echoHandler)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandEmptyName(t *testing.T) {
	_, err := Expand("@string/ oops", "page/page.htm", echoHandler)
	require.Error(t, err)
	assert.True(t, arborerrors.IsResolutionError(err))
	assert.Contains(t, err.Error(), "page/page.htm")
}

func TestExpandHandlerError(t *testing.T) {
	boom := errors.New("missing")
	_, err := Expand("@string/title", "a/a.htm", func(Reference, project.FilePath) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestExpandPassesSource(t *testing.T) {
	var seen project.FilePath
	_, err := Expand("@image/logo", "page/index/index.css", func(ref Reference, source project.FilePath) (string, error) {
		seen = source
		return "x", nil
	})
	require.NoError(t, err)
	assert.Equal(t, project.FilePath("page/index/index.css"), seen)
}

func TestSourceReader(t *testing.T) {
	r := NewSourceReader(strings.NewReader("body { background: url(@image/bg); }"), "theme/a.css", echoHandler)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "body { background: url([image:bg]); }", string(data))
}

func TestSourceReaderError(t *testing.T) {
	boom := errors.New("boom")
	r := NewSourceReader(strings.NewReader("@string/x"), "a.css", func(Reference, project.FilePath) (string, error) {
		return "", boom
	})
	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, boom)
}
