package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/reference"
	"github.com/conneroisu/arbor/internal/testutils"
)

var siteProject = map[string]string{
	"project.yml": `title: Demo
authors: [Ana]
locales: [en, fr]
metas:
  - name: generator
    content: "@project/title"
links:
  - href: https://cdn.example.com/fonts.css
scripts:
  - src: https://cdn.example.com/lib.js
`,
	"res/asset/strings.xml":    `<string><title>Home</title><about>About us</about></string>`,
	"res/asset/strings_fr.xml": `<string><about>A propos</about></string>`,
	"res/asset/logo.png":       "PNG",
	"res/theme/reset.css":      "* { margin: 0; }",
	"res/theme/fx.css":         ".fade {}",
	"res/theme/colors.css":     "a { color: red; }",
	"res/theme/typo.css":       "body { font-size: 16px; }",
	"template/base/base.htm":   `<body><header><img src="@image/logo"/></header><main data-editable="main"></main></body>`,
	"template/base/base.css":   "header { background: url(@image/logo); }",
	"compo/card/card.htm":      `<div class="card">@string/about</div>`,
	"compo/card/card.css":      ".card {}",
	"page/about/about.htm": `<section data-template="template/base#main"><h1>@string/title</h1>` +
		`<div data-compo="compo/card"></div><div data-compo="compo/card"></div></section>`,
	"page/about/about.css": "h1 {}",
	"page/about/about.yml": `page: true
description: "@string/about"
scripts:
  - src: lib/x.js
  - src: lib/z.js
`,
	"lib/x.js": "lib.X = {};\nlib.Y.init();\n",
	"lib/y.js": "lib.Y = { init: function() {} };\n",
	"lib/z.js": "lib.Z = function() { lib.Y.init(); };\n",
}

func loadProject(t *testing.T, files map[string]string) *project.Project {
	t.Helper()
	root := testutils.CreateTempProject(t, files)
	p, err := project.Load(context.Background(), root)
	require.NoError(t, err)
	return p
}

func snapshot(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

// assertInOrder checks that every fragment occurs in s, each after the
// previous one.
func assertInOrder(t *testing.T, s string, fragments ...string) {
	t.Helper()
	offset := 0
	for _, fragment := range fragments {
		idx := strings.Index(s[offset:], fragment)
		if !assert.GreaterOrEqual(t, idx, 0, "missing or out of order: %s", fragment) {
			return
		}
		offset += idx + len(fragment)
	}
}

func TestBuildMultiLocaleSite(t *testing.T) {
	p := loadProject(t, siteProject)
	fs := afero.NewMemMapFs()
	b := New(p, Config{Output: "out"}, fs, logging.NewNopLogger())

	result, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Locales)
	assert.Equal(t, 2, result.Pages)

	files := snapshot(t, fs, "out")
	en, ok := files["en/about.htm"]
	require.True(t, ok, "english page missing: %v", files)
	fr, ok := files["fr/about.htm"]
	require.True(t, ok, "french page missing")

	assert.True(t, strings.HasPrefix(en, "<!DOCTYPE html><html lang=\"en\">"))
	assert.True(t, strings.HasPrefix(fr, "<!DOCTYPE html><html lang=\"fr\">"))

	assertInOrder(t, en,
		`<meta http-equiv="Content-Type" content="text/html; charset=UTF-8"/>`,
		`<title>Demo</title>`,
		`<meta name="Description" content="About us"/>`,
		`<meta name="Author" content="Ana"/>`,
		`<meta name="generator" content="Demo"/>`,
		`<link href="https://cdn.example.com/fonts.css" rel="stylesheet" type="text/css"/>`,
		`href="style/res-theme_reset.css"`,
		`href="style/res-theme_fx.css"`,
		`href="style/template_base.css"`,
		`href="style/compo_card.css"`,
		`href="style/page_about.css"`,
		`<script src="https://cdn.example.com/lib.js" type="text/javascript"></script>`,
		`<script src="script/lib.y.js"`,
		`<script src="script/lib.x.js"`,
		`<script src="script/lib.z.js"`,
	)
	// Theme sheets other than reset and fx have no defined order.
	assert.Contains(t, en, `href="style/res-theme_colors.css"`)
	assert.Contains(t, en, `href="style/res-theme_typo.css"`)
	assert.Equal(t, 1, strings.Count(en, "compo_card.css"))

	assert.Contains(t, en, `<body><header><img src="media/res-asset_logo.png"/></header>`+
		`<section><h1>Home</h1><div class="card">About us</div><div class="card">About us</div></section></body>`)
	assert.Contains(t, fr, `<meta name="Description" content="A propos"/>`)
	assert.Contains(t, fr, `<h1>Home</h1><div class="card">A propos</div>`)

	assert.Equal(t, "header { background: url(../media/res-asset_logo.png); }", files["en/style/template_base.css"])
	assert.Equal(t, "PNG", files["fr/media/res-asset_logo.png"])
	assert.Equal(t, result.Files, len(files))
}

var appProject = map[string]string{
	"project.yml": `service-worker: sw.js
manifest: manifest.json
`,
	"sw.js":                          `var cache = "v1";`,
	"manifest.json":                  `{"name": "@string/greeting"}`,
	"res/asset/favicon.ico":          "ICO",
	"res/asset/strings.xml":          `<string><greeting>Hi</greeting></string>`,
	"page/contact-us/contact-us.htm": `<body><p>@project/locale</p></body>`,
	"page/contact-us/contact-us.yml": `page: true
scripts:
  - src: lib/inline.js
    embedded: true
  - src: lib/lazy.js
    dynamic: true
`,
	"lib/inline.js": `var greeting = "@string/greeting";`,
	"lib/lazy.js":   "lib.Lazy = {};",
}

func TestBuildPageAssembly(t *testing.T) {
	p := loadProject(t, appProject)
	fs := afero.NewMemMapFs()
	b := New(p, Config{Output: "out", Number: 3}, fs, nil)

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	files := snapshot(t, fs, "out")
	page, ok := files["contact-us-003.htm"]
	require.True(t, ok, "page missing: %v", files)

	assertInOrder(t, page,
		`<title>Contact Us</title>`,
		`<link href="manifest.json" rel="manifest"/>`,
		`<link href="media/favicon.ico" rel="icon" type="image/x-icon"/>`,
		`<script type="text/javascript">if ("serviceWorker" in navigator) { navigator.serviceWorker.register("sw.js"); }</script>`,
		`<script type="text/javascript">var greeting = "Hi";</script>`,
		`<body><p>en</p></body>`,
	)
	assert.NotContains(t, page, "lazy")
	assert.NotContains(t, page, `<meta name="Author"`)

	assert.Equal(t, `{"name": "Hi"}`, files["manifest.json"])
	assert.Equal(t, `var cache = "v1";`, files["sw.js"])
	assert.Equal(t, "lib.Lazy = {};", files["script/lib.lazy-003.js"])
	assert.Equal(t, "ICO", files["media/favicon.ico"])
}

func TestBuildIsIdempotent(t *testing.T) {
	p := loadProject(t, siteProject)

	first := afero.NewMemMapFs()
	_, err := New(p, Config{Output: "out", Number: 2}, first, nil).Build(context.Background())
	require.NoError(t, err)

	second := afero.NewMemMapFs()
	b := New(p, Config{Output: "out", Number: 2}, second, nil)
	_, err = b.Build(context.Background())
	require.NoError(t, err)
	_, err = b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, snapshot(t, first, "out"), snapshot(t, second, "out"))
}

func TestBuildClean(t *testing.T) {
	p := loadProject(t, appProject)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("out", "stale.htm"), []byte("old"), 0o644))

	_, err := New(p, Config{Output: "out"}, fs, nil).Build(context.Background())
	require.NoError(t, err)
	exists, err := afero.Exists(fs, filepath.Join("out", "stale.htm"))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = New(p, Config{Output: "out", Clean: true}, fs, nil).Build(context.Background())
	require.NoError(t, err)
	exists, err = afero.Exists(fs, filepath.Join("out", "stale.htm"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildStopsAtFailingPage(t *testing.T) {
	p := loadProject(t, map[string]string{
		"page/a/a.htm": `<body><p>fine</p></body>`,
		"page/a/a.yml": "page: true\n",
		"page/b/b.htm": `<body><p>@string/missing</p></body>`,
		"page/b/b.yml": "page: true\n",
		"page/c/c.htm": `<body><p>never</p></body>`,
		"page/c/c.yml": "page: true\n",
	})
	fs := afero.NewMemMapFs()

	_, err := New(p, Config{Output: "out"}, fs, nil).Build(context.Background())
	require.Error(t, err)
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeBuildFailed))
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeMissingVariable))
	assert.True(t, arborerrors.IsResolutionError(err))
	assert.Contains(t, err.Error(), "page/b/b.htm")

	files := snapshot(t, fs, "out")
	assert.Contains(t, files, "a.htm")
	assert.NotContains(t, files, "b.htm")
	assert.NotContains(t, files, "c.htm")
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		code  string
	}{
		{
			name: "missing style",
			files: map[string]string{
				"page/a/a.htm": `<body></body>`,
				"page/a/a.yml": "page: true\nlinks:\n  - href: res/missing.css\n",
			},
			code: arborerrors.ErrCodeMissingStyle,
		},
		{
			name: "missing script",
			files: map[string]string{
				"page/a/a.htm": `<body></body>`,
				"page/a/a.yml": "page: true\nscripts:\n  - src: lib/missing.js\n",
			},
			code: arborerrors.ErrCodeMissingScript,
		},
		{
			name: "script cycle",
			files: map[string]string{
				"page/a/a.htm": `<body></body>`,
				"page/a/a.yml": "page: true\nscripts:\n  - src: lib/a.js\n",
				"lib/a.js":     "lib.A = {};\nlib.B.x();\n",
				"lib/b.js":     "lib.B = {};\nlib.A.x();\n",
			},
			code: arborerrors.ErrCodeScriptCycle,
		},
		{
			name: "missing media",
			files: map[string]string{
				"page/a/a.htm": `<body><img src="@image/none"/></body>`,
				"page/a/a.yml": "page: true\n",
			},
			code: arborerrors.ErrCodeMissingMedia,
		},
		{
			name: "parameter without value",
			files: map[string]string{
				"page/a/a.htm": `<body></body>`,
				"page/a/a.yml": "page: true\ntitle: \"@param/title\"\n",
			},
			code: arborerrors.ErrCodeMissingParam,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loadProject(t, tt.files)
			_, err := New(p, Config{Output: "out"}, afero.NewMemMapFs(), nil).Build(context.Background())
			require.Error(t, err)
			assert.True(t, arborerrors.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestBuildRejectsNegativeNumber(t *testing.T) {
	p := loadProject(t, appProject)
	_, err := New(p, Config{Output: "out", Number: -1}, afero.NewMemMapFs(), nil).Build(context.Background())
	require.Error(t, err)
	assert.True(t, arborerrors.IsConfigError(err))
}

func TestBuildCancelled(t *testing.T) {
	p := loadProject(t, appProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(p, Config{Output: "out"}, afero.NewMemMapFs(), nil).Build(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOnResourceReference(t *testing.T) {
	p := loadProject(t, siteProject)
	fs := afero.NewMemMapFs()
	b := New(p, Config{Output: "out"}, fs, nil)
	ctx := context.Background()
	fr := language.French

	_, err := b.OnResourceReference(ctx, reference.Reference{Type: reference.TypeString, Name: "about"}, "page/about/about.htm", fr)
	require.Error(t, err, "references resolve only during a run")

	require.NoError(t, b.Start(ctx))

	value, err := b.OnResourceReference(ctx, reference.Reference{Type: reference.TypeString, Name: "about"}, "page/about/about.htm", fr)
	require.NoError(t, err)
	assert.Equal(t, "A propos", value)

	value, err = b.OnResourceReference(ctx, reference.Reference{Type: reference.TypeProject, Name: "authors"}, "page/about/about.htm", fr)
	require.NoError(t, err)
	assert.Equal(t, "Ana", value)

	value, err = b.OnResourceReference(ctx, reference.Reference{Type: reference.TypeImage, Name: "logo"}, "lib/x.js", fr)
	require.NoError(t, err)
	assert.Equal(t, "../media/res-asset_logo.png", value)

	_, err = b.OnResourceReference(ctx, reference.Reference{Type: reference.TypeProject, Name: "unknown"}, "page/about/about.htm", fr)
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeMissingVariable))
}

func TestBuildFailedStyleLeavesNoFile(t *testing.T) {
	p := loadProject(t, map[string]string{
		"page/index/index.htm": `<body><p>hi</p></body>`,
		"page/index/index.yml": "page: true\n",
		"page/index/index.css": "p { color: @color/missing; }",
	})
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("out", 0o755))

	_, err := New(p, Config{Output: "out"}, fs, nil).Build(context.Background())
	require.Error(t, err)
	assert.True(t, arborerrors.HasCode(err, arborerrors.ErrCodeMissingVariable))
	assert.Empty(t, snapshot(t, fs, "out"))
}

func TestBuildCleansScriptSources(t *testing.T) {
	p := loadProject(t, map[string]string{
		"page/index/index.htm": `<body></body>`,
		"page/index/index.yml": `page: true
scripts:
  - src: ./lib/boot.js
    embedded: true
  - src: ./lib/x/x.js
    type: module
    nonce: abc
`,
		"lib/boot.js": "var booted = true;",
		"lib/x/x.js":  "lib.X = lib.Y.extend();",
		"lib/y/y.js":  "lib.Y = function() {};",
	})
	fs := afero.NewMemMapFs()

	_, err := New(p, Config{Output: "out"}, fs, nil).Build(context.Background())
	require.NoError(t, err)

	files := snapshot(t, fs, "out")
	page := files["index.htm"]
	assertInOrder(t, page,
		`<script type="text/javascript">var booted = true;</script>`,
		`<script src="script/lib.y.js" type="text/javascript"></script>`,
		`<script src="script/lib.x.js" type="module" nonce="abc"></script>`,
	)
	assert.NotContains(t, files, "script/lib.boot.js")
	assert.Equal(t, 1, strings.Count(page, "lib.x.js"))
}

func TestBuildAppendsMediaQueryVariants(t *testing.T) {
	p := loadProject(t, map[string]string{
		"project.yml": `media-queries:
  - alias: w800
    expression: "max-width: 800px"
  - alias: print
    media: print
`,
		"res/asset/colors.xml":       `<color><accent>#f00</accent></color>`,
		"page/index/index.htm":       `<body></body>`,
		"page/index/index.yml":       "page: true\n",
		"page/index/index.css":       "h1 { color: @color/accent; }",
		"page/index/index_w800.css":  "h1 { font-size: 1em; }\n",
		"page/index/index_print.css": "h1 { color: black; }",
		"res/theme/form.css":         "form {}\n",
		"res/theme/form_w800.css":    "form { width: 100%; }",
	})
	fs := afero.NewMemMapFs()

	_, err := New(p, Config{Output: "out"}, fs, nil).Build(context.Background())
	require.NoError(t, err)

	files := snapshot(t, fs, "out")
	assert.Equal(t, "h1 { color: #f00; }\n"+
		"\n@media print {\nh1 { color: black; }\n}\n"+
		"\n@media screen and ( max-width: 800px ) {\nh1 { font-size: 1em; }\n\n}\n",
		files["style/page_index.css"])
	assert.Equal(t, "form {}\n\n@media screen and ( max-width: 800px ) {\nform { width: 100%; }\n}\n",
		files["style/res-theme_form.css"])
	assert.NotContains(t, files, "style/res-theme_form_w800.css")
	assert.NotContains(t, files["index.htm"], "w800")
}
