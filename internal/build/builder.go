// Package build walks the locales and pages of a project, composes every
// page, assembles its document head and writes pages, style sheets, scripts
// and media through a write-once output tree.
package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/arbor/internal/compose"
	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/reference"
	"github.com/conneroisu/arbor/internal/resolver"
	"github.com/conneroisu/arbor/internal/script"
	"github.com/conneroisu/arbor/internal/variables"
)

// workerLoader registers the service worker from an embedded page script.
const workerLoader = `if ("serviceWorker" in navigator) { navigator.serviceWorker.register("%s"); }`

// Config controls the output of a builder.
type Config struct {
	// Output is the build directory on the builder file system.
	Output string
	// Number is inserted into destination names when not zero.
	Number int
	// Clean removes Output before building.
	Clean bool
}

// Result summarises one build run.
type Result struct {
	RunID    string
	Locales  int
	Pages    int
	Files    int
	Duration time.Duration
}

// Builder runs builds of one project. Caches live for one run and are
// recreated by Start; a builder must not be shared between goroutines.
type Builder struct {
	project *project.Project
	config  Config
	fs      afero.Fs
	logger  logging.Logger

	vars     *variables.Cache
	resolver *resolver.Resolver
	index    *script.Index
	target   *BuildFS
	worker   string
}

// New creates a builder writing to fs.
func New(p *project.Project, cfg Config, fs afero.Fs, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Builder{
		project: p,
		config:  cfg,
		fs:      fs,
		logger:  logger.WithComponent("builder"),
	}
}

// Start discards the state of any previous run and prepares a new one.
func (b *Builder) Start(ctx context.Context) error {
	if b.config.Number < 0 {
		return arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("build number must not be negative, got %d", b.config.Number))
	}
	index, err := script.NewIndex(ctx, b.project, b.logger)
	if err != nil {
		return err
	}
	b.vars = variables.NewCache(b.project, b.logger)
	b.resolver = resolver.New(b.project, b.vars, b.logger)
	b.index = index
	b.target = NewBuildFS(b.fs, b.config.Output, b.config.Number, b.logger)
	b.worker = ""
	return nil
}

// Build writes every page of every locale. The first failing page aborts
// the run; pages already written stay on disk.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	logger := b.logger.With("run_id", result.RunID)
	perf := logging.StartOperation(logger, "build")
	start := time.Now()

	if err := b.build(ctx, result); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	result.Files = b.target.Written()
	result.Duration = time.Since(start)
	perf.End(ctx, "pages", result.Pages, "files", result.Files)
	return result, nil
}

func (b *Builder) build(ctx context.Context, result *Result) error {
	if b.config.Clean {
		if err := b.fs.RemoveAll(b.config.Output); err != nil {
			return arborerrors.WrapTarget(err, arborerrors.ErrCodeWriteFailed, "cannot clean build directory", b.config.Output)
		}
	}
	if err := b.Start(ctx); err != nil {
		return err
	}

	for _, locale := range b.project.Locales() {
		if b.project.IsMultiLocale() {
			b.target.SetLocale(locale)
		}
		if err := b.writeWorker(ctx, locale); err != nil {
			return err
		}
		for _, page := range b.project.Pages() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.buildPage(ctx, page, locale); err != nil {
				return arborerrors.ErrBuildFailed(page.String(), err).WithContext("locale", locale.String())
			}
			result.Pages++
		}
		result.Locales++
	}
	return nil
}

func (b *Builder) writeWorker(ctx context.Context, locale language.Tag) error {
	b.worker = ""
	worker, ok := b.project.ServiceWorker()
	if !ok {
		return nil
	}
	name, err := b.target.WriteWorker(worker, b.substituted(worker, b.handler(ctx, locale)))
	if err != nil {
		return err
	}
	b.worker = name
	return nil
}

func (b *Builder) buildPage(ctx context.Context, page project.CompoPath, locale language.Tag) error {
	b.logger.Debug(ctx, "Building page", "page", page.String(), "locale", locale.String())
	p := b.project
	handler := b.handler(ctx, locale)

	component, err := compose.New(p, handler, b.logger).Compose(ctx, page)
	if err != nil {
		return err
	}
	shared, err := b.projectDescriptors(handler)
	if err != nil {
		return err
	}

	doc := NewPageDocument(component.Body)
	doc.SetLanguage(locale.String())
	doc.SetContentType(contentType)
	doc.SetTitle(b.title(component, locale))
	doc.SetDescription(component.Description)
	doc.SetAuthors(p.Authors())
	for _, m := range shared.Metas {
		doc.AddMeta(m)
	}
	for _, m := range component.Metas {
		doc.AddMeta(m)
	}

	if manifest, ok := p.Manifest(); ok {
		href, err := b.target.WriteManifest(manifest, b.substituted(manifest, handler))
		if err != nil {
			return err
		}
		doc.AddManifest(href)
	}
	if favicon, ok := p.Favicon(); ok {
		href, err := b.target.WriteFavicon(favicon, b.raw(favicon))
		if err != nil {
			return err
		}
		doc.AddFavicon(href)
	}

	for _, l := range append(append([]project.LinkDescriptor{}, shared.Links...), component.Links...) {
		href := l.Href
		if l.IsStyleSheet() && !project.IsRemote(href) {
			file, err := project.NewFilePath(href)
			if err != nil {
				return err
			}
			if href, err = b.writeStyle(file, handler); err != nil {
				return err
			}
		}
		doc.AddLink(l, href)
	}

	theme, err := p.ThemeStyles()
	if err != nil {
		return err
	}
	styles := make([]project.FilePath, 0, len(theme.Styles)+len(component.Styles)+2)
	for _, file := range []project.FilePath{theme.Reset, theme.Fx} {
		if file != "" {
			styles = append(styles, file)
		}
	}
	styles = append(styles, theme.Styles...)
	styles = append(styles, component.Styles...)
	for _, file := range styles {
		href, err := b.writeStyle(file, handler)
		if err != nil {
			return err
		}
		doc.AddStyle(href)
	}

	if b.worker != "" {
		doc.AddScript(project.ScriptDescriptor{Src: b.worker, Embedded: true}, "", fmt.Sprintf(workerLoader, b.worker))
	}
	scripts := append(append([]project.ScriptDescriptor{}, shared.Scripts...), component.Scripts...)
	ordered, err := b.index.Order(ctx, scripts)
	if err != nil {
		return err
	}
	for _, s := range scripts {
		if s.Dynamic && !project.IsRemote(s.Src) {
			// Loaded at run time; written but not declared in the head.
			if _, err := b.localScript(s, handler); err != nil {
				return err
			}
		}
	}
	for _, s := range ordered {
		if err := b.addScript(doc, s, handler); err != nil {
			return err
		}
	}

	_, err = b.target.WritePage(page.Layout(), func(w io.Writer) error {
		return doc.Render(ctx, w)
	})
	return err
}

// projectDescriptors returns the project-wide metas, links and scripts with
// their references substituted.
func (b *Builder) projectDescriptors(handler reference.Handler) (*project.ComponentDescriptor, error) {
	p := b.project
	d := &project.ComponentDescriptor{
		Metas:   append([]project.MetaDescriptor(nil), p.Metas()...),
		Links:   append([]project.LinkDescriptor(nil), p.Links()...),
		Scripts: append([]project.ScriptDescriptor(nil), p.Scripts()...),
	}
	source := project.FilePath(project.ProjectDescriptorFile)
	err := d.Substitute(func(value string) (string, error) {
		return reference.Expand(value, source, handler)
	})
	return d, err
}

func (b *Builder) title(component *compose.Component, locale language.Tag) string {
	switch {
	case component.Title != "":
		return component.Title
	case b.project.Title() != "":
		return b.project.Title()
	}
	return cases.Title(locale).String(strings.ReplaceAll(component.Path.Name(), "-", " "))
}

func (b *Builder) writeStyle(file project.FilePath, handler reference.Handler) (string, error) {
	if !b.project.Exists(file) {
		return "", arborerrors.NewTargetError(arborerrors.ErrCodeMissingStyle,
			"missing style file", nil).WithFile(file.String())
	}
	variants, err := b.project.StyleVariants(file)
	if err != nil {
		return "", err
	}
	return b.target.WriteStyle(file, b.styled(file, variants, handler))
}

// styled streams a base style followed by its media query variants, each
// wrapped in its @media block.
func (b *Builder) styled(file project.FilePath, variants []project.StyleVariant, handler reference.Handler) Content {
	if len(variants) == 0 {
		return b.substituted(file, handler)
	}
	return func(w io.Writer) error {
		var base bytes.Buffer
		if err := b.substituted(file, handler)(&base); err != nil {
			return err
		}
		if base.Len() > 0 && !bytes.HasSuffix(base.Bytes(), []byte("\n")) {
			base.WriteByte('\n')
		}
		if _, err := w.Write(base.Bytes()); err != nil {
			return err
		}
		for _, v := range variants {
			if _, err := fmt.Fprintf(w, "\n%s\n", v.Header()); err != nil {
				return err
			}
			if err := b.substituted(v.File, handler)(w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n}\n"); err != nil {
				return err
			}
		}
		return nil
	}
}

func (b *Builder) addScript(doc *PageDocument, s project.ScriptDescriptor, handler reference.Handler) error {
	if project.IsRemote(s.Src) {
		doc.AddScript(s, s.Src, "")
		return nil
	}
	if s.Embedded {
		file, err := project.NewFilePath(s.Src)
		if err != nil {
			return err
		}
		data, err := b.project.ReadFile(file)
		if err != nil {
			return err
		}
		text, err := reference.Expand(string(data), file, handler)
		if err != nil {
			return err
		}
		doc.AddScript(s, "", text)
		return nil
	}
	src, err := b.localScript(s, handler)
	if err != nil {
		return err
	}
	doc.AddScript(s, src, "")
	return nil
}

func (b *Builder) localScript(s project.ScriptDescriptor, handler reference.Handler) (string, error) {
	file, err := project.NewFilePath(s.Src)
	if err != nil {
		return "", err
	}
	if !b.project.Exists(file) {
		return "", arborerrors.NewTargetError(arborerrors.ErrCodeMissingScript,
			"missing script file", nil).WithFile(file.String())
	}
	return b.target.WriteScript(file, b.substituted(file, handler))
}

// substituted streams file with its references resolved.
func (b *Builder) substituted(file project.FilePath, handler reference.Handler) Content {
	return func(w io.Writer) error {
		data, err := b.project.ReadFile(file)
		if err != nil {
			return err
		}
		return reference.Copy(w, bytes.NewReader(data), file, handler)
	}
}

// raw copies file unchanged.
func (b *Builder) raw(file project.FilePath) Content {
	return func(w io.Writer) error {
		data, err := b.project.ReadFile(file)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
}

func (b *Builder) handler(ctx context.Context, locale language.Tag) reference.Handler {
	return func(ref reference.Reference, source project.FilePath) (string, error) {
		return b.OnResourceReference(ctx, ref, source, locale)
	}
}

// OnResourceReference resolves ref found in source for locale. Variables
// resolve to their substituted value; resource files are written to the
// build and resolve to their path relative to the referencing document.
// It is valid between Start and the end of the run.
func (b *Builder) OnResourceReference(ctx context.Context, ref reference.Reference, source project.FilePath, locale language.Tag) (string, error) {
	if b.target == nil {
		return "", arborerrors.NewInternalError(arborerrors.ErrCodeInternalError, "no build run started", nil)
	}

	switch {
	case ref.Type.IsVariable():
		return b.resolver.Value(ctx, ref, source, locale, b.handler(ctx, locale))
	case ref.Type == reference.TypeProject:
		return b.projectValue(ref, source, locale)
	case !ref.Type.IsResourceFile():
		return "", arborerrors.NewResolutionError(arborerrors.ErrCodeInvalidReference,
			fmt.Sprintf("%s is not valid outside a layout", ref)).WithFile(source.String())
	}

	res, err := b.resolver.Resolve(ctx, ref, source, locale)
	if err != nil {
		return "", err
	}
	from := b.documentDir(source)
	switch {
	case ref.Type.IsMedia():
		return b.target.WriteMedia(from, res.File, b.raw(res.File))
	case ref.Type == reference.TypeFont && from == DirStyle:
		return b.target.WriteFont(res.File, b.raw(res.File))
	case ref.Type == reference.TypeFile:
		return b.target.WriteFile(from, res.File, b.raw(res.File))
	}
	return "", arborerrors.NewResolutionError(arborerrors.ErrCodeInvalidReference,
		fmt.Sprintf("%s can only be used from style sheets", ref)).WithFile(source.String())
}

func (b *Builder) projectValue(ref reference.Reference, source project.FilePath, locale language.Tag) (string, error) {
	var value string
	switch ref.Name {
	case "title":
		value = b.project.Title()
	case "authors":
		value = strings.Join(b.project.Authors(), ", ")
	case "locale":
		value = locale.String()
	}
	if value == "" {
		return "", arborerrors.NewResolutionError(arborerrors.ErrCodeMissingVariable,
			fmt.Sprintf("missing project value %s", ref)).WithFile(source.String())
	}
	return value, nil
}

// documentDir returns the output directory of the document written from
// source, which relative resource paths start from.
func (b *Builder) documentDir(source project.FilePath) Dir {
	if worker, ok := b.project.ServiceWorker(); ok && worker == source {
		return DirPages
	}
	switch {
	case source.IsStyle():
		return DirStyle
	case source.IsScript():
		return DirScript
	default:
		return DirPages
	}
}
