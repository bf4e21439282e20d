package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/testutils"
)

var scripts = map[string]string{
	"lib/y/y.js":         "lib.Y = function() {};",
	"lib/x/x.js":         "lib.X = lib.Y.extend();",
	"lib/z/z.js":         "lib.Z = function() { return new lib.Y(); };",
	"lib/a/a.js":         "lib.A = lib.B.create();",
	"lib/b/b.js":         "lib.B = lib.A.create();",
	"lib/c/c.js":         "lib.C = function() { return lib.D; };",
	"lib/d/d.js":         "lib.D = function() { return lib.C; };",
	"lib/s/s.js":         "lib.S = function() { return lib.T; };",
	"lib/t/t.js":         "lib.T = lib.S.extend();",
	"lib/u/u.js":         "lib.U = lib.T.extend();",
	"lib/w/w.js":         "$include(\"vendor/jquery.js\");\nlib.W = function() {};",
	"lib/dyn/dyn.js":     "lib.Dyn = function() {};",
	"lib/broken/bad.js":  "var = ;",
	"vendor/jquery.js":   "(function() { var q = 1; })();",
	"drafts/old/old.js":  "lib.Y = 2;",
	"project.yml":        "excludes: [drafts]\n",
	"lib/unknown/unk.js": "lib.Unk = other.pkg.Missing.create();",
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	root := testutils.CreateTempProject(t, scripts)
	p, err := project.Load(context.Background(), root)
	require.NoError(t, err)
	ix, err := NewIndex(context.Background(), p, logging.NewNopLogger())
	require.NoError(t, err)
	return ix
}

func srcs(descriptors []project.ScriptDescriptor) []string {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Src
	}
	return out
}

func order(t *testing.T, ix *Index, sources ...string) []string {
	t.Helper()
	descriptors := make([]project.ScriptDescriptor, len(sources))
	for i, src := range sources {
		descriptors[i] = project.ScriptDescriptor{Src: src}
	}
	ordered, err := ix.Order(context.Background(), descriptors)
	require.NoError(t, err)
	return srcs(ordered)
}

func TestNewIndex(t *testing.T) {
	ix := newIndex(t)

	file, ok := ix.ClassFile("lib.Y")
	require.True(t, ok)
	assert.Equal(t, project.FilePath("lib/y/y.js"), file)

	_, ok = ix.ClassFile("lib.Missing")
	assert.False(t, ok)

	_, err := ix.Analysis("lib/broken/bad.js")
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeScriptSyntax))

	_, err = ix.Analysis("lib/nope.js")
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeMissingScript))
}

func TestOrderStrongDependencyFirst(t *testing.T) {
	ix := newIndex(t)

	assert.Equal(t, []string{"lib/y/y.js", "lib/x/x.js", "lib/z/z.js"},
		order(t, ix, "lib/x/x.js", "lib/z/z.js"))
	assert.Equal(t, []string{"lib/y/y.js", "lib/z/z.js", "lib/x/x.js"},
		order(t, ix, "lib/z/z.js", "lib/x/x.js"))

	analysis, err := ix.Analysis("lib/x/x.js")
	require.NoError(t, err)
	dep, ok := analysis.Dependency("lib.Y")
	require.True(t, ok)
	assert.Equal(t, Strong, dep.Kind)
}

func TestOrderWeakDependencyFollows(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"lib/z/z.js", "lib/y/y.js"}, order(t, ix, "lib/z/z.js"))
}

func TestOrderIsIdempotentForRepeatedScripts(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"lib/y/y.js", "lib/x/x.js"},
		order(t, ix, "lib/x/x.js", "lib/y/y.js", "lib/x/x.js"))
}

func TestOrderStrongCycleFails(t *testing.T) {
	ix := newIndex(t)

	_, err := ix.Order(context.Background(), []project.ScriptDescriptor{{Src: "lib/a/a.js"}})
	require.Error(t, err)
	assert.True(t, arborerrors.IsDependencyError(err))
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeScriptCycle))

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []project.FilePath{"lib/a/a.js", "lib/b/b.js", "lib/a/a.js"}, cycle.Cycle)
	assert.Contains(t, err.Error(), "lib/a/a.js -> lib/b/b.js -> lib/a/a.js")
}

func TestOrderWeakCycleIsAllowed(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"lib/c/c.js", "lib/d/d.js"}, order(t, ix, "lib/c/c.js"))
}

func TestOrderPullForwardYieldsToStrongEdges(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"lib/s/s.js", "lib/t/t.js", "lib/u/u.js"},
		order(t, ix, "lib/s/s.js", "lib/u/u.js"))
}

func TestOrderRemoteDynamicAndListedAttributes(t *testing.T) {
	ix := newIndex(t)

	ordered, err := ix.Order(context.Background(), []project.ScriptDescriptor{
		{Src: "https://cdn.example.com/analytics.js", Async: true},
		{Src: "lib/x/x.js", Defer: true},
		{Src: "lib/dyn/dyn.js", Dynamic: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/analytics.js", "lib/y/y.js", "lib/x/x.js"}, srcs(ordered))
	assert.True(t, ordered[0].Async)
	assert.True(t, ordered[2].Defer)
}

func TestOrderThirdPartyInclude(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"vendor/jquery.js", "lib/w/w.js"}, order(t, ix, "lib/w/w.js"))
}

func TestOrderSkipsUnknownClasses(t *testing.T) {
	ix := newIndex(t)
	assert.Equal(t, []string{"lib/unknown/unk.js"}, order(t, ix, "lib/unknown/unk.js"))
}

func TestOrderReportsBrokenScripts(t *testing.T) {
	ix := newIndex(t)
	_, err := ix.Order(context.Background(), []project.ScriptDescriptor{{Src: "lib/broken/bad.js"}})
	require.Error(t, err)
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeScriptSyntax))
}

func TestOrderMatchesCleanedSources(t *testing.T) {
	ix := newIndex(t)

	ordered, err := ix.Order(context.Background(), []project.ScriptDescriptor{
		{Src: "./lib/x/x.js", Defer: true, Nonce: "n1"},
		{Src: "lib/y/../x/x.js"},
		{Src: "./lib/w/w.js", Embedded: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/y/y.js", "lib/x/x.js", "vendor/jquery.js", "lib/w/w.js"}, srcs(ordered))
	assert.True(t, ordered[1].Defer)
	assert.Equal(t, "n1", ordered[1].Nonce)
	assert.True(t, ordered[3].Embedded)
}
