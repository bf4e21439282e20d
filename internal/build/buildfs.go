package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/language"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
)

// Dir is an output directory relative to the locale root.
type Dir string

const (
	DirPages  Dir = "."
	DirStyle  Dir = "style"
	DirScript Dir = "script"
	DirMedia  Dir = "media"
	DirFiles  Dir = "files"
)

// Content writes the body of an output file. It is only called for the
// first write of a destination.
type Content func(w io.Writer) error

// BuildFS is the output tree of one build run. It names destination files,
// writes each destination at most once and returns paths relative to the
// document referencing them. Content is assembled in memory and only reaches
// the file system when complete. It is not safe for concurrent use.
type BuildFS struct {
	fs      afero.Fs
	dir     string
	number  int
	locale  string
	written map[string]project.FilePath
	logger  logging.Logger
}

// NewBuildFS creates the output tree rooted at dir. A non-zero number is
// inserted into every destination file name.
func NewBuildFS(fs afero.Fs, dir string, number int, logger logging.Logger) *BuildFS {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BuildFS{
		fs:      fs,
		dir:     dir,
		number:  number,
		written: make(map[string]project.FilePath),
		logger:  logger.WithComponent("buildfs"),
	}
}

// SetLocale nests further output under a directory named by tag.
func (b *BuildFS) SetLocale(tag language.Tag) {
	b.locale = tag.String()
}

// Written returns the number of files produced so far.
func (b *BuildFS) Written() int {
	return len(b.written)
}

// WritePage writes the page document named after its layout file.
func (b *BuildFS) WritePage(layout project.FilePath, content Content) (string, error) {
	return b.write(DirPages, DirPages, layout, layout.Name(), content)
}

// PageName returns the destination of a page layout, relative to the pages
// directory, without writing anything.
func (b *BuildFS) PageName(layout project.FilePath) (string, error) {
	return b.numbered(layout.Name())
}

// WriteStyle writes a style sheet referenced from a page.
func (b *BuildFS) WriteStyle(file project.FilePath, content Content) (string, error) {
	return b.write(DirPages, DirStyle, file, styleName(file), content)
}

// WriteScript writes a script referenced from a page.
func (b *BuildFS) WriteScript(file project.FilePath, content Content) (string, error) {
	return b.write(DirPages, DirScript, file, scriptName(file), content)
}

// WriteMedia writes a media file referenced from a document living in from.
func (b *BuildFS) WriteMedia(from Dir, file project.FilePath, content Content) (string, error) {
	return b.write(from, DirMedia, file, mediaName(file), content)
}

// WriteFont writes a font referenced from a style sheet.
func (b *BuildFS) WriteFont(file project.FilePath, content Content) (string, error) {
	return b.write(DirStyle, DirStyle, file, mediaName(file), content)
}

// WriteFile writes a generic file referenced from a document living in from.
func (b *BuildFS) WriteFile(from Dir, file project.FilePath, content Content) (string, error) {
	return b.write(from, DirFiles, file, mediaName(file), content)
}

// WriteFavicon writes the favicon under its own name.
func (b *BuildFS) WriteFavicon(file project.FilePath, content Content) (string, error) {
	return b.writeAs(DirPages, DirMedia, file, file.Name(), content)
}

// WriteManifest writes the PWA manifest beside the pages.
func (b *BuildFS) WriteManifest(file project.FilePath, content Content) (string, error) {
	return b.writeAs(DirPages, DirPages, file, file.Name(), content)
}

// WriteWorker writes the service worker beside the pages; it must keep its
// name to control their scope.
func (b *BuildFS) WriteWorker(file project.FilePath, content Content) (string, error) {
	return b.writeAs(DirPages, DirPages, file, file.Name(), content)
}

func (b *BuildFS) write(from, to Dir, source project.FilePath, name string, content Content) (string, error) {
	name, err := b.numbered(name)
	if err != nil {
		return "", err
	}
	return b.writeAs(from, to, source, name, content)
}

func (b *BuildFS) writeAs(from, to Dir, source project.FilePath, name string, content Content) (string, error) {
	target := filepath.Join(b.root(), string(to), name)
	if prev, ok := b.written[target]; ok {
		if prev != source {
			return "", arborerrors.NewTargetError(arborerrors.ErrCodeTargetCollision,
				fmt.Sprintf("%s and %s are both written to %s", prev, source, target), nil).
				WithFile(source.String()).
				WithContext("target", target)
		}
		b.logger.Debug(context.Background(), "Skipping written file", "file", target)
		return relative(from, to, name), nil
	}

	var buf bytes.Buffer
	if err := content(&buf); err != nil {
		return "", err
	}
	if err := b.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", arborerrors.WrapTarget(err, arborerrors.ErrCodeWriteFailed, "cannot create build directory", filepath.Dir(target))
	}
	if err := afero.WriteFile(b.fs, target, buf.Bytes(), 0o644); err != nil {
		return "", arborerrors.WrapTarget(err, arborerrors.ErrCodeWriteFailed, "cannot write build file", target)
	}
	b.written[target] = source
	return relative(from, to, name), nil
}

func (b *BuildFS) root() string {
	if b.locale == "" {
		return b.dir
	}
	return filepath.Join(b.dir, b.locale)
}

// numbered inserts the build number before the file extension.
func (b *BuildFS) numbered(name string) (string, error) {
	return insertBuildNumber(name, b.number)
}

func insertBuildNumber(name string, number int) (string, error) {
	if number == 0 {
		return name, nil
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return "", arborerrors.NewTargetError(arborerrors.ErrCodeMissingExtension,
			fmt.Sprintf("invalid file name %s; missing extension", name), nil).WithFile(name)
	}
	return fmt.Sprintf("%s-%03d.%s", name[:idx], number, name[idx+1:]), nil
}

func relative(from, to Dir, name string) string {
	rel, err := filepath.Rel(string(from), filepath.Join(string(to), name))
	if err != nil {
		return filepath.ToSlash(filepath.Join(string(to), name))
	}
	return filepath.ToSlash(rel)
}

// styleName flattens a style path: page/index/index.css -> page_index.css.
func styleName(file project.FilePath) string {
	segments := ownerSegments(file)
	if len(segments) == 0 {
		return file.Name()
	}
	return strings.Join(segments, "-") + "_" + file.Name()
}

// scriptName flattens a script path: page/index/index.js -> page.index.js.
func scriptName(file project.FilePath) string {
	return strings.Join(append(ownerSegments(file), file.Name()), ".")
}

// mediaName flattens a media path: res/asset/logo.png -> res-asset_logo.png.
func mediaName(file project.FilePath) string {
	segments := file.Segments()
	if len(segments) == 0 {
		return file.Name()
	}
	return strings.Join(segments, "-") + "_" + file.Name()
}

// ownerSegments drops the component directory named like the file.
func ownerSegments(file project.FilePath) []string {
	segments := file.Segments()
	if n := len(segments); n > 0 && segments[n-1] == file.BaseName() {
		segments = segments[:n-1]
	}
	return segments
}
