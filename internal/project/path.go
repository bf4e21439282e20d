package project

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
)

// File extensions recognised by the engine.
const (
	LayoutExt     = "htm"
	StyleExt      = "css"
	ScriptExt     = "js"
	VariablesExt  = "xml"
	DescriptorExt = "yml"
)

var (
	languageVariant = regexp.MustCompile(`^[a-z]{2}(?:-[A-Z]{2})?$`)
	compoPathRule   = regexp.MustCompile(`^(?:[a-z0-9-]+/)*[a-z0-9-]+$`)

	imageExts = extSet("png", "jpg", "jpeg", "gif", "svg", "webp", "ico", "bmp", "avif")
	audioExts = extSet("mp3", "ogg", "wav", "m4a", "aac", "flac")
	videoExts = extSet("mp4", "webm", "ogv", "avi", "mov", "mkv")
	fontExts  = extSet("woff", "woff2", "ttf", "otf", "eot")
)

func extSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[ext] = true
	}
	return set
}

// FilePath is a project-relative, slash separated file or directory path.
// The project root is the empty path.
type FilePath string

// NewFilePath cleans p and rejects absolute paths and paths escaping the
// project root.
func NewFilePath(p string) (FilePath, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return "", arborerrors.ErrInvalidPath(p)
	}
	if path.IsAbs(p) {
		return "", arborerrors.ErrInvalidPath(p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", arborerrors.ErrPathTraversal(p)
	}
	if clean == "." {
		return "", nil
	}
	return FilePath(clean), nil
}

// String returns the path value.
func (f FilePath) String() string {
	return string(f)
}

// Dir returns the parent directory, the empty path for root entries.
func (f FilePath) Dir() FilePath {
	dir := path.Dir(string(f))
	if dir == "." || dir == "/" {
		return ""
	}
	return FilePath(dir)
}

// Join appends slash separated elements.
func (f FilePath) Join(elem ...string) FilePath {
	parts := append([]string{string(f)}, elem...)
	joined := path.Join(parts...)
	if joined == "." {
		return ""
	}
	return FilePath(joined)
}

// Name returns the last path element.
func (f FilePath) Name() string {
	if f == "" {
		return ""
	}
	return path.Base(string(f))
}

// Ext returns the extension without the dot, empty when there is none.
func (f FilePath) Ext() string {
	name := f.Name()
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// BaseName returns the file name without extension and variants.
func (f FilePath) BaseName() string {
	name := f.stem()
	if idx := strings.IndexByte(name, '_'); idx >= 0 {
		return name[:idx]
	}
	return name
}

func (f FilePath) stem() string {
	name := f.Name()
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

// Segments returns the directory segments leading to the file.
func (f FilePath) Segments() []string {
	dir := f.Dir()
	if dir == "" {
		return nil
	}
	return strings.Split(string(dir), "/")
}

// Variants returns the variants encoded in the file name.
func (f FilePath) Variants() Variants {
	var v Variants
	parts := strings.Split(f.stem(), "_")
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		if v.Language == "" && languageVariant.MatchString(part) {
			v.Language = part
			continue
		}
		v.Others = append(v.Others, part)
	}
	return v
}

// HasBaseName reports whether the file base name equals name.
func (f FilePath) HasBaseName(name string) bool {
	return f.BaseName() == name
}

func (f FilePath) IsLayout() bool     { return f.Ext() == LayoutExt }
func (f FilePath) IsStyle() bool      { return f.Ext() == StyleExt }
func (f FilePath) IsScript() bool     { return f.Ext() == ScriptExt }
func (f FilePath) IsVariables() bool  { return f.Ext() == VariablesExt }
func (f FilePath) IsDescriptor() bool { return f.Ext() == DescriptorExt }
func (f FilePath) IsImage() bool      { return imageExts[f.Ext()] }
func (f FilePath) IsAudio() bool      { return audioExts[f.Ext()] }
func (f FilePath) IsVideo() bool      { return videoExts[f.Ext()] }
func (f FilePath) IsFont() bool       { return fontExts[f.Ext()] }

// IsMedia reports image, audio and video files.
func (f FilePath) IsMedia() bool {
	return f.IsImage() || f.IsAudio() || f.IsVideo()
}

// Variants holds the parsed file name variants.
type Variants struct {
	Language string
	Others   []string
}

// IsLocaleNeutral reports a file without language variant.
func (v Variants) IsLocaleNeutral() bool {
	return v.Language == ""
}

// CompoPath names a component by its project-relative directory.
type CompoPath string

// NewCompoPath validates and normalises a component path.
func NewCompoPath(p string) (CompoPath, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if !compoPathRule.MatchString(p) {
		return "", arborerrors.NewValidationError(arborerrors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid component path %q", p))
	}
	return CompoPath(p), nil
}

// String returns the path value.
func (c CompoPath) String() string {
	return string(c)
}

// Name is the last path segment, shared by every file of the component.
func (c CompoPath) Name() string {
	return path.Base(string(c))
}

// Dir returns the component directory.
func (c CompoPath) Dir() FilePath {
	return FilePath(c)
}

// Layout returns the component layout file.
func (c CompoPath) Layout() FilePath {
	return c.file(LayoutExt)
}

// Style returns the component style file; it may not exist.
func (c CompoPath) Style() FilePath {
	return c.file(StyleExt)
}

// Script returns the component script file; it may not exist.
func (c CompoPath) Script() FilePath {
	return c.file(ScriptExt)
}

// Descriptor returns the component descriptor file; it may not exist.
func (c CompoPath) Descriptor() FilePath {
	return c.file(DescriptorExt)
}

func (c CompoPath) file(ext string) FilePath {
	return c.Dir().Join(c.Name() + "." + ext)
}
