package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestFilePath(t *testing.T) {
	f := FilePath("page/index/strings_fr_w800.xml")
	assert.Equal(t, FilePath("page/index"), f.Dir())
	assert.Equal(t, "strings_fr_w800.xml", f.Name())
	assert.Equal(t, "strings", f.BaseName())
	assert.Equal(t, "xml", f.Ext())
	assert.Equal(t, "fr", f.Variants().Language)
	assert.Equal(t, []string{"w800"}, f.Variants().Others)
	assert.Equal(t, []string{"page", "index"}, f.Segments())
	assert.True(t, f.IsVariables())

	root := FilePath("favicon.ico")
	assert.Equal(t, FilePath(""), root.Dir())
	assert.Nil(t, root.Segments())
	assert.True(t, root.IsImage())
	assert.True(t, root.Variants().IsLocaleNeutral())

	assert.Equal(t, "en-US", FilePath("a/logo_en-US.png").Variants().Language)
	assert.Equal(t, "", FilePath("Makefile").Ext())
	assert.Equal(t, FilePath("a/b"), FilePath("").Join("a", "b"))
}

func TestNewFilePath(t *testing.T) {
	tests := []struct {
		input   string
		want    FilePath
		wantErr bool
	}{
		{"res/asset/logo.png", "res/asset/logo.png", false},
		{"./res//asset/", "res/asset", false},
		{"res\\theme", "res/theme", false},
		{"/etc/passwd", "", true},
		{"../outside", "", true},
		{"a/../../b", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NewFilePath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompoPath(t *testing.T) {
	c, err := NewCompoPath("/page/about-us/")
	require.NoError(t, err)
	assert.Equal(t, "about-us", c.Name())
	assert.Equal(t, FilePath("page/about-us/about-us.htm"), c.Layout())
	assert.Equal(t, FilePath("page/about-us/about-us.css"), c.Style())
	assert.Equal(t, FilePath("page/about-us/about-us.js"), c.Script())
	assert.Equal(t, FilePath("page/about-us/about-us.yml"), c.Descriptor())

	for _, bad := range []string{"", "Page/About", "page/../x", "page//x", "page/x.htm"} {
		_, err := NewCompoPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadDefaults(t *testing.T) {
	root := writeTree(t, map[string]string{"page/index/index.htm": "<body></body>"})

	p, err := Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "en", p.DefaultLocale().String())
	assert.False(t, p.IsMultiLocale())
	assert.Equal(t, FilePath(DefaultAssetDir), p.AssetDir())
	assert.Equal(t, FilePath(DefaultThemeDir), p.ThemeDir())
	assert.Equal(t, NamingDataAttr, p.Operators())
	assert.Empty(t, p.Pages())
	_, ok := p.Favicon()
	assert.False(t, ok)
}

func TestLoadDescriptorAndPages(t *testing.T) {
	root := writeTree(t, map[string]string{
		"project.yml": `title: Demo
authors: [Ann, Bob]
locales: [en, fr-ca]
excludes: ["drafts", "**/node_modules"]
manifest: res/pwa/manifest.json
operators: xmlns
`,
		"page/index/index.htm":      "<body></body>",
		"page/index/index.yml":      "page: true\ntitle: Index\n",
		"page/about/about.yml":      "page: true\n",
		"compo/card/card.yml":       "title: Card\n",
		"drafts/wip/wip.yml":        "page: true\n",
		"lib/node_modules/x/x.yml":  "page: true\n",
		".hidden/secret/secret.yml": "page: true\n",
		"res/asset/favicon.ico":     "ico",
		"res/pwa/manifest.json":     "{}",
	})

	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, "Demo", p.Title())
	assert.Equal(t, []string{"Ann", "Bob"}, p.Authors())
	require.Len(t, p.Locales(), 2)
	assert.Equal(t, "fr-CA", p.Locales()[1].String())
	assert.True(t, p.IsMultiLocale())
	assert.Equal(t, NamingXMLNS, p.Operators())
	assert.Equal(t, []CompoPath{"page/about", "page/index"}, p.Pages())

	favicon, ok := p.Favicon()
	assert.True(t, ok)
	assert.Equal(t, FilePath("res/asset/favicon.ico"), favicon)
	manifest, ok := p.Manifest()
	assert.True(t, ok)
	assert.Equal(t, FilePath("res/pwa/manifest.json"), manifest)
	_, ok = p.ServiceWorker()
	assert.False(t, ok)

	assert.True(t, p.IsExcluded("drafts/wip"))
	assert.True(t, p.IsExcluded("lib/node_modules"))
	assert.False(t, p.IsExcluded("page/index"))
}

func TestLoadExtraExcludes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"page/index/index.yml": "page: true\n",
		"build/old/old.yml":    "page: true\n",
		"build/old/old.js":     "x.y.Z = 1;",
		"page/index/index.js":  "a.b.C = 1;",
	})

	p, err := Load(context.Background(), root, WithExcludes("build"))
	require.NoError(t, err)
	assert.Equal(t, []CompoPath{"page/index"}, p.Pages())

	scripts, err := p.ScriptFiles()
	require.NoError(t, err)
	assert.Equal(t, []FilePath{"page/index/index.js"}, scripts)
}

func TestLoadRejectsInvalidDescriptor(t *testing.T) {
	tests := map[string]string{
		"bad locale":  "locales: [english]\n",
		"region only": "locales: [en-US-x-private]\n",
		"duplicate":   "locales: [en, EN]\n",
		"traversal":   "asset-dir: ../assets\n",
		"operators":   "operators: magic\n",
		"yaml":        "locales: [en\n",
		"bad exclude": "excludes: [\"a/[\"]\n",
		"no alias":    "media-queries:\n  - expression: \"max-width: 800px\"\n",
		"lang alias":  "media-queries:\n  - alias: de\n",
		"dup alias":   "media-queries:\n  - alias: w800\n  - alias: w800\n",
	}
	for name, descriptor := range tests {
		t.Run(name, func(t *testing.T) {
			root := writeTree(t, map[string]string{ProjectDescriptorFile: descriptor})
			_, err := Load(context.Background(), root)
			require.Error(t, err)
			assert.True(t, arborerrors.IsConfigError(err), err.Error())
		})
	}
}

func TestLoadRejectsInvalidPageDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"Pages/Home/Home.yml": "page: true\n"})
	_, err := Load(context.Background(), root)
	require.Error(t, err)
}

func TestThemeStyles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"res/theme/reset.css":   "",
		"res/theme/fx.css":      "",
		"res/theme/form.css":    "",
		"res/theme/buttons.css": "",
		"res/theme/readme.txt":  "",
	})
	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	theme, err := p.ThemeStyles()
	require.NoError(t, err)
	assert.Equal(t, FilePath("res/theme/reset.css"), theme.Reset)
	assert.Equal(t, FilePath("res/theme/fx.css"), theme.Fx)
	assert.ElementsMatch(t, []FilePath{"res/theme/form.css", "res/theme/buttons.css"}, theme.Styles)
}

func TestComponentDescriptor(t *testing.T) {
	root := writeTree(t, map[string]string{
		"compo/card/card.yml": `title: "@string/card-title"
metas:
  - name: keywords
    content: cards
links:
  - href: https://cdn.example.com/x.css
scripts:
  - src: lib/js/widget.js
    defer: true
  - src: https://cdn.example.com/a.js
    async: true
`,
	})
	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	// Written after Load so the page scan does not reject them first.
	bad := map[string]string{
		"compo/bad/bad.yml":     "scripts:\n  - type: module\n",
		"compo/embed/embed.yml": "scripts:\n  - src: https://x.example.com/a.js\n    embedded: true\n",
	}
	for rel, content := range bad {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	d, err := p.ComponentDescriptor("compo/card")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "@string/card-title", d.Title)
	require.Len(t, d.Scripts, 2)
	assert.True(t, d.Scripts[0].Defer)
	assert.False(t, IsRemote(d.Scripts[0].Src))
	assert.True(t, IsRemote(d.Scripts[1].Src))
	assert.True(t, d.Links[0].IsStyleSheet())

	err = d.Substitute(func(s string) (string, error) { return "<" + s + ">", nil })
	require.NoError(t, err)
	assert.Equal(t, "<@string/card-title>", d.Title)
	assert.Equal(t, "<cards>", d.Metas[0].Content)

	none, err := p.ComponentDescriptor("compo/missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = p.ComponentDescriptor("compo/bad")
	assert.True(t, arborerrors.IsCompositionError(err))
	_, err = p.ComponentDescriptor("compo/embed")
	assert.True(t, arborerrors.IsCompositionError(err))
}

func TestScriptSourcesAreCleaned(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"./lib/boot.js", "lib/boot.js"},
		{"lib//js/../boot.js", "lib/boot.js"},
		{"lib/boot.js", "lib/boot.js"},
		{"https://cdn.example.com/./a.js", "https://cdn.example.com/./a.js"},
		{"../outside.js", "../outside.js"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, ScriptDescriptor{Src: tt.src}.Key())
		})
	}

	d, err := ParseComponentDescriptor("page/a/a.yml", []byte("scripts:\n  - src: ./lib/boot.js\n    embedded: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "lib/boot.js", d.Scripts[0].Src)
	assert.True(t, d.Scripts[0].Embedded)

	root := writeTree(t, map[string]string{ProjectDescriptorFile: "scripts:\n  - src: ./lib/app.js\n"})
	p, err := Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "lib/app.js", p.Scripts()[0].Src)
}

func TestStyleVariants(t *testing.T) {
	root := writeTree(t, map[string]string{
		ProjectDescriptorFile: `media-queries:
  - alias: w800
    expression: "max-width: 800px"
  - alias: landscape
    expression: "orientation: landscape"
  - alias: print
    media: print
`,
		"page/index/index.css":            "",
		"page/index/index_w800.css":       "",
		"page/index/index_landscape.css":  "",
		"page/index/index_print.css":      "",
		"page/index/index_w800_print.css": "",
		"page/index/index_fr.css":         "",
		"page/index/index_big.css":        "",
		"page/index/other_w800.css":       "",
		"res/theme/form.css":              "",
		"res/theme/form_w800.css":         "",
	})
	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	q, ok := p.MediaQuery("w800")
	require.True(t, ok)
	assert.Equal(t, DefaultMedia, q.Media)

	variants, err := p.StyleVariants("page/index/index.css")
	require.NoError(t, err)
	assert.Equal(t, []StyleVariant{
		{File: "page/index/index_landscape.css", Media: "screen", Expression: "( orientation: landscape )"},
		{File: "page/index/index_print.css", Media: "print"},
		{File: "page/index/index_w800.css", Media: "screen", Expression: "( max-width: 800px )"},
		{File: "page/index/index_w800_print.css", Media: "all", Expression: "( max-width: 800px )"},
	}, variants)
	assert.Equal(t, "@media screen and ( max-width: 800px ) {", variants[2].Header())
	assert.Equal(t, "@media print {", variants[1].Header())

	none, err := p.StyleVariants("page/index/index_w800.css")
	require.NoError(t, err)
	assert.Empty(t, none)

	theme, err := p.ThemeStyles()
	require.NoError(t, err)
	assert.Equal(t, []FilePath{"res/theme/form.css"}, theme.Styles)
}

func TestFilesListsInNameOrder(t *testing.T) {
	root := writeTree(t, map[string]string{"d/b.txt": "", "d/a.txt": "", "d/sub/c.txt": ""})
	p, err := Load(context.Background(), root)
	require.NoError(t, err)

	files, err := p.Files("d")
	require.NoError(t, err)
	assert.Equal(t, []FilePath{"d/a.txt", "d/b.txt"}, files)

	missing, err := p.Files("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
