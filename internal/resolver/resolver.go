// Package resolver turns references into values or resource files for a
// requesting source file and locale. Variables resolve against the store of
// the source's directory and then the asset store; resource files resolve
// against the source directory and then the asset directory.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/reference"
	"github.com/conneroisu/arbor/internal/variables"
)

// Resolution is the outcome of a lookup: a variable value or a resource file.
type Resolution struct {
	Value string
	File  project.FilePath
}

// Resolver performs pure lookups against one project. The trace used for
// nested variable expansion makes it single-threaded.
type Resolver struct {
	project *project.Project
	vars    *variables.Cache
	trace   []string
	logger  logging.Logger
}

// New creates a resolver over p using the run's variables cache.
func New(p *project.Project, vars *variables.Cache, logger logging.Logger) *Resolver {
	return &Resolver{
		project: p,
		vars:    vars,
		logger:  logger.WithComponent("resolver"),
	}
}

// Resolve looks ref up for source and locale.
func (r *Resolver) Resolve(ctx context.Context, ref reference.Reference, source project.FilePath, locale language.Tag) (Resolution, error) {
	switch {
	case ref.Type.IsVariable():
		value, err := r.variable(ctx, ref, source, locale)
		return Resolution{Value: value}, err
	case ref.Type.IsResourceFile():
		file, err := r.resourceFile(ctx, ref, source, locale)
		return Resolution{File: file}, err
	default:
		return Resolution{}, arborerrors.NewResolutionError(arborerrors.ErrCodeInvalidReference,
			fmt.Sprintf("%s is not resolvable from project stores", ref)).WithFile(source.String())
	}
}

// Value resolves a variable and substitutes the references nested in its
// value through handler. A chain that revisits the same (source, reference)
// pair is an error. Layouts receive values other than text escaped, since
// they are spliced into markup before it is parsed.
func (r *Resolver) Value(ctx context.Context, ref reference.Reference, source project.FilePath, locale language.Tag, handler reference.Handler) (string, error) {
	value, err := r.variable(ctx, ref, source, locale)
	if err != nil {
		return "", err
	}
	if source.IsLayout() && ref.Type != reference.TypeText {
		value = html.EscapeString(value)
	}

	entry := source.String() + ":" + ref.String()
	for _, seen := range r.trace {
		if seen == entry {
			return "", arborerrors.NewResolutionError(arborerrors.ErrCodeCircularVariable,
				"circular variable references: "+strings.Join(append(r.trace, entry), " -> ")).
				WithFile(source.String())
		}
	}
	r.trace = append(r.trace, entry)
	defer func() { r.trace = r.trace[:len(r.trace)-1] }()

	return reference.Expand(value, source, handler)
}

func (r *Resolver) variable(ctx context.Context, ref reference.Reference, source project.FilePath, locale language.Tag) (string, error) {
	defaultLocale := r.project.DefaultLocale()

	local, err := r.vars.Get(ctx, source.Dir())
	if err != nil {
		return "", err
	}
	if value, ok := local.Get(locale, defaultLocale, ref); ok {
		return value, nil
	}

	assets, err := r.vars.Assets(ctx)
	if err != nil {
		return "", err
	}
	if value, ok := assets.Get(locale, defaultLocale, ref); ok {
		r.logger.Debug(ctx, "Variable resolved from assets", "reference", ref.String(), "source", source.String())
		return value, nil
	}

	return "", arborerrors.NewResolutionError(arborerrors.ErrCodeMissingVariable,
		fmt.Sprintf("missing variable value %s for locale %s", ref, locale)).WithFile(source.String())
}

func (r *Resolver) resourceFile(ctx context.Context, ref reference.Reference, source project.FilePath, locale language.Tag) (project.FilePath, error) {
	dirs := []project.FilePath{
		source.Dir().Join(ref.Path()),
		r.project.AssetDir().Join(ref.Path()),
	}
	for i, dir := range dirs {
		if i > 0 && dir == dirs[0] {
			continue
		}
		file, err := r.findInDir(dir, ref, locale)
		if err != nil {
			return "", err
		}
		if file != "" {
			if i > 0 {
				r.logger.Debug(ctx, "Resource resolved from assets", "reference", ref.String(), "file", file.String())
			}
			return file, nil
		}
	}
	return "", arborerrors.NewResolutionError(arborerrors.ErrCodeMissingMedia,
		fmt.Sprintf("missing resource file %s for locale %s", ref, locale)).WithFile(source.String())
}

// findInDir prefers the requested language variant, then the default
// language, then a variant-less file.
func (r *Resolver) findInDir(dir project.FilePath, ref reference.Reference, locale language.Tag) (project.FilePath, error) {
	files, err := r.project.Files(dir)
	if err != nil {
		return "", err
	}

	var candidates []project.FilePath
	for _, file := range files {
		if file.HasBaseName(ref.BaseName()) && matchesType(file, ref.Type) {
			candidates = append(candidates, file)
		}
	}

	for _, want := range []string{locale.String(), r.project.DefaultLocale().String(), ""} {
		for _, file := range candidates {
			if file.Variants().Language == want {
				return file, nil
			}
		}
	}
	return "", nil
}

func matchesType(file project.FilePath, t reference.Type) bool {
	switch t {
	case reference.TypeImage:
		return file.IsImage()
	case reference.TypeAudio:
		return file.IsAudio()
	case reference.TypeVideo:
		return file.IsVideo()
	case reference.TypeFont:
		return file.IsFont()
	case reference.TypeFile:
		return !file.IsVariables() && !file.IsLayout() && !file.IsDescriptor()
	default:
		return false
	}
}
