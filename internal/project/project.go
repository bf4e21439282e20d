// Package project models an Arbor source tree: the project descriptor, the
// locales it targets, its component pages and the file lookups the rest of the
// engine performs against it. A Project is immutable once loaded.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/language"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
)

const (
	DefaultAssetDir = "res/asset"
	DefaultThemeDir = "res/theme"
	DefaultFavicon  = "res/asset/favicon.ico"
	ResetStyle      = "reset.css"
	FxStyle         = "fx.css"
	DefaultMedia    = "screen"

	listingCacheSize = 512
)

var localeRule = regexp.MustCompile(`^[a-z]{2}(?:-[A-Z]{2})?$`)

// Project is a loaded source tree.
type Project struct {
	root       string
	descriptor Descriptor
	locales    []language.Tag
	assetDir   FilePath
	themeDir   FilePath
	favicon    FilePath
	manifest   FilePath
	worker     FilePath
	excludes   []string
	naming     OperatorsNaming
	queries    map[string]MediaQuery
	pages      []CompoPath
	listings   *lru.Cache[FilePath, []FilePath]
	logger     logging.Logger
}

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	excludes []string
	logger   logging.Logger
}

// WithExcludes adds directory globs skipped during scans, typically the build
// output when it lives inside the project.
func WithExcludes(patterns ...string) Option {
	return func(o *loadOptions) {
		o.excludes = append(o.excludes, patterns...)
	}
}

// WithLogger sets the logger used for scan diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// Load reads project.yml from root, applies defaults and scans for pages.
func Load(ctx context.Context, root string, opts ...Option) (*Project, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = logging.NewNopLogger()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, arborerrors.WrapIO(err, arborerrors.ErrCodeInvalidPath, "cannot resolve project root")
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, arborerrors.NewConfigError(arborerrors.ErrCodeInvalidPath,
			fmt.Sprintf("project root %s is not a directory", root))
	}

	descriptor := &Descriptor{}
	data, err := os.ReadFile(filepath.Join(absRoot, ProjectDescriptorFile))
	switch {
	case err == nil:
		if descriptor, err = parseDescriptor(data); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		options.logger.Debug(ctx, "No project descriptor, using defaults", "root", absRoot)
	default:
		return nil, arborerrors.WrapIO(err, arborerrors.ErrCodeReadFailed, "cannot read project descriptor")
	}

	listings, err := lru.New[FilePath, []FilePath](listingCacheSize)
	if err != nil {
		return nil, arborerrors.NewInternalError(arborerrors.ErrCodeInternalError, "cannot create listing cache", err)
	}

	p := &Project{
		root:       absRoot,
		descriptor: *descriptor,
		listings:   listings,
		logger:     options.logger.WithComponent("project"),
	}
	if err := p.applyDescriptor(options.excludes); err != nil {
		return nil, err
	}
	if err := p.scanPages(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) applyDescriptor(extraExcludes []string) error {
	d := &p.descriptor

	localeNames := d.Locales
	if len(localeNames) == 0 {
		localeNames = []string{"en"}
	}
	seen := make(map[string]bool)
	for _, name := range localeNames {
		tag, err := ParseLocale(name)
		if err != nil {
			return err
		}
		if seen[tag.String()] {
			return arborerrors.NewConfigError(arborerrors.ErrCodeInvalidLocale,
				fmt.Sprintf("duplicate locale %s", tag))
		}
		seen[tag.String()] = true
		p.locales = append(p.locales, tag)
	}

	var err error
	if p.assetDir, err = descriptorPath(d.AssetDir, DefaultAssetDir, "asset-dir"); err != nil {
		return err
	}
	if p.themeDir, err = descriptorPath(d.ThemeDir, DefaultThemeDir, "theme-dir"); err != nil {
		return err
	}
	if p.favicon, err = descriptorPath(d.Favicon, DefaultFavicon, "favicon"); err != nil {
		return err
	}
	if p.manifest, err = descriptorPath(d.Manifest, "", "manifest"); err != nil {
		return err
	}
	if p.worker, err = descriptorPath(d.ServiceWorker, "", "service-worker"); err != nil {
		return err
	}

	p.queries = make(map[string]MediaQuery, len(d.MediaQueries))
	for _, q := range d.MediaQueries {
		if q.Alias == "" || strings.Contains(q.Alias, "_") || languageVariant.MatchString(q.Alias) {
			return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid media query alias %q", q.Alias))
		}
		if _, dup := p.queries[q.Alias]; dup {
			return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("media query alias %s defined more than once", q.Alias))
		}
		if q.Media == "" {
			q.Media = DefaultMedia
		}
		p.queries[q.Alias] = q
	}

	switch d.Operators {
	case "":
		p.naming = NamingDataAttr
	case NamingDataAttr, NamingAttr, NamingXMLNS:
		p.naming = d.Operators
	default:
		return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown operators naming %q", d.Operators))
	}

	for _, pattern := range append(append([]string{}, d.Excludes...), extraExcludes...) {
		pattern = strings.Trim(filepath.ToSlash(pattern), "/")
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid exclude pattern %q", pattern))
		}
		p.excludes = append(p.excludes, pattern)
	}
	return nil
}

func descriptorPath(value, fallback, field string) (FilePath, error) {
	if value == "" {
		value = fallback
	}
	if value == "" {
		return "", nil
	}
	fp, err := NewFilePath(value)
	if err != nil {
		return "", arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid %s in project descriptor", field))
	}
	return fp, nil
}

// ParseLocale parses a BCP-47 tag restricted to language or language-REGION.
func ParseLocale(name string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(name))
	if err != nil {
		return language.Und, arborerrors.NewConfigError(arborerrors.ErrCodeInvalidLocale,
			fmt.Sprintf("invalid locale %q: %v", name, err))
	}
	if !localeRule.MatchString(tag.String()) {
		return language.Und, arborerrors.NewConfigError(arborerrors.ErrCodeInvalidLocale,
			fmt.Sprintf("locale %q must be a language or language-REGION tag", name))
	}
	return tag, nil
}

// scanPages walks the tree for component descriptors flagged as pages.
func (p *Project) scanPages(ctx context.Context) error {
	var pages []CompoPath
	err := filepath.WalkDir(p.root, func(osPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		rel, err := p.rel(osPath)
		if err != nil {
			return err
		}
		if rel == "" {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") || p.IsExcluded(rel) {
			return filepath.SkipDir
		}

		descriptor := rel.Join(entry.Name() + "." + DescriptorExt)
		if !p.Exists(descriptor) {
			return nil
		}
		data, err := p.ReadFile(descriptor)
		if err != nil {
			return err
		}
		cd, err := ParseComponentDescriptor(descriptor, data)
		if err != nil {
			return err
		}
		if !cd.Page {
			return nil
		}
		compo, err := NewCompoPath(rel.String())
		if err != nil {
			return arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeInvalidPath,
				"page directory is not a valid component path").WithFile(rel.String())
		}
		pages = append(pages, compo)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	p.pages = pages
	p.logger.Debug(ctx, "Scanned project pages", "count", len(pages))
	return nil
}

func (p *Project) rel(osPath string) (FilePath, error) {
	rel, err := filepath.Rel(p.root, osPath)
	if err != nil {
		return "", err
	}
	return NewFilePath(filepath.ToSlash(rel))
}

// IsExcluded reports whether dir or one of its parents matches an exclude glob.
func (p *Project) IsExcluded(dir FilePath) bool {
	for _, pattern := range p.excludes {
		for d := dir; d != ""; d = d.Dir() {
			if ok, _ := doublestar.Match(pattern, d.String()); ok {
				return true
			}
		}
	}
	return false
}

// Root returns the absolute project root.
func (p *Project) Root() string { return p.root }

// Abs converts a project path to an OS path.
func (p *Project) Abs(f FilePath) string {
	return filepath.Join(p.root, filepath.FromSlash(f.String()))
}

// Title returns the project display title.
func (p *Project) Title() string { return p.descriptor.Title }

// Authors returns the project authors.
func (p *Project) Authors() []string { return p.descriptor.Authors }

// Locales returns the configured locales, default first.
func (p *Project) Locales() []language.Tag { return p.locales }

// DefaultLocale returns the first configured locale.
func (p *Project) DefaultLocale() language.Tag { return p.locales[0] }

// IsMultiLocale reports whether output is split per locale.
func (p *Project) IsMultiLocale() bool { return len(p.locales) > 1 }

// AssetDir returns the project-wide asset directory.
func (p *Project) AssetDir() FilePath { return p.assetDir }

// ThemeDir returns the theme styles directory.
func (p *Project) ThemeDir() FilePath { return p.themeDir }

// Operators returns the composition operators naming.
func (p *Project) Operators() OperatorsNaming { return p.naming }

// Pages returns the page components in path order.
func (p *Project) Pages() []CompoPath { return p.pages }

// Metas returns project-level meta descriptors.
func (p *Project) Metas() []MetaDescriptor { return p.descriptor.Metas }

// Links returns project-level link descriptors.
func (p *Project) Links() []LinkDescriptor { return p.descriptor.Links }

// Scripts returns project-level script descriptors.
func (p *Project) Scripts() []ScriptDescriptor { return p.descriptor.Scripts }

// Favicon returns the favicon file when it exists.
func (p *Project) Favicon() (FilePath, bool) { return p.optional(p.favicon) }

// Manifest returns the PWA manifest when configured and present.
func (p *Project) Manifest() (FilePath, bool) { return p.optional(p.manifest) }

// ServiceWorker returns the service worker script when configured and present.
func (p *Project) ServiceWorker() (FilePath, bool) { return p.optional(p.worker) }

func (p *Project) optional(f FilePath) (FilePath, bool) {
	if f == "" || !p.Exists(f) {
		return "", false
	}
	return f, true
}

// Exists reports whether f is an existing regular file.
func (p *Project) Exists(f FilePath) bool {
	info, err := os.Stat(p.Abs(f))
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads a project file.
func (p *Project) ReadFile(f FilePath) ([]byte, error) {
	data, err := os.ReadFile(p.Abs(f))
	if err != nil {
		return nil, arborerrors.WrapIO(err, arborerrors.ErrCodeReadFailed, "cannot read source file").WithFile(f.String())
	}
	return data, nil
}

// Files lists the regular files of dir in name order. A missing directory
// lists as empty.
func (p *Project) Files(dir FilePath) ([]FilePath, error) {
	if files, ok := p.listings.Get(dir); ok {
		return files, nil
	}
	entries, err := os.ReadDir(p.Abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			p.listings.Add(dir, nil)
			return nil, nil
		}
		return nil, arborerrors.WrapIO(err, arborerrors.ErrCodeReadFailed, "cannot list directory").WithFile(dir.String())
	}
	files := make([]FilePath, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, dir.Join(entry.Name()))
		}
	}
	p.listings.Add(dir, files)
	return files, nil
}

// ScriptFiles returns every script outside excluded and hidden directories.
func (p *Project) ScriptFiles() ([]FilePath, error) {
	var scripts []FilePath
	err := filepath.WalkDir(p.root, func(osPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := p.rel(osPath)
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if rel != "" && (strings.HasPrefix(entry.Name(), ".") || p.IsExcluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel.IsScript() {
			scripts = append(scripts, rel)
		}
		return nil
	})
	if err != nil {
		return nil, arborerrors.WrapIO(err, arborerrors.ErrCodeReadFailed, "cannot scan project scripts")
	}
	return scripts, nil
}

// ThemeStyles groups the theme directory style sheets.
type ThemeStyles struct {
	Reset  FilePath
	Fx     FilePath
	Styles []FilePath
}

// ThemeStyles returns the theme style sheets; Styles has no meaningful order.
func (p *Project) ThemeStyles() (ThemeStyles, error) {
	var theme ThemeStyles
	files, err := p.Files(p.themeDir)
	if err != nil {
		return theme, err
	}
	for _, file := range files {
		if !file.IsStyle() || p.isStyleVariant(file) {
			continue
		}
		switch file.Name() {
		case ResetStyle:
			theme.Reset = file
		case FxStyle:
			theme.Fx = file
		default:
			theme.Styles = append(theme.Styles, file)
		}
	}
	return theme, nil
}

// ComponentDescriptor loads the descriptor of compo, nil when it has none.
func (p *Project) ComponentDescriptor(compo CompoPath) (*ComponentDescriptor, error) {
	file := compo.Descriptor()
	if !p.Exists(file) {
		return nil, nil
	}
	data, err := p.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return ParseComponentDescriptor(file, data)
}
