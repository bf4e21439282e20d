package reference

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

// Handler returns the replacement text for a reference found in source.
type Handler func(ref Reference, source project.FilePath) (string, error)

// Copy streams r into w, replacing every reference with the handler's value.
// "@@" yields a literal "@"; mentions of unknown types are copied unchanged.
func Copy(w io.Writer, r io.Reader, source project.FilePath, handler Handler) error {
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)

	for {
		c, err := in.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if c != '@' {
			_ = out.WriteByte(c)
			continue
		}

		next, err := in.ReadByte()
		if err == io.EOF {
			_ = out.WriteByte('@')
			break
		}
		if err != nil {
			return err
		}
		if next == '@' {
			_ = out.WriteByte('@')
			continue
		}
		_ = in.UnreadByte()

		typeName, err := readWhile(in, isTypeChar)
		if err != nil {
			return err
		}
		t, known := ParseType(typeName)
		sep, err := in.ReadByte()
		if err != nil && err != io.EOF {
			return err
		}
		if !known || err == io.EOF || sep != '/' {
			_, _ = out.WriteString("@" + typeName)
			if err == nil {
				_ = in.UnreadByte()
			}
			continue
		}

		name, err := readWhile(in, func(b byte) bool { return isNameChar(b, t) })
		if err != nil {
			return err
		}
		trimmed := strings.TrimRight(name, "/")
		ref, refErr := New(t, trimmed)
		if refErr != nil {
			return arborerrors.NewResolutionError(arborerrors.ErrCodeInvalidReference, refErr.Error()).
				WithFile(source.String())
		}

		value, err := handler(ref, source)
		if err != nil {
			return err
		}
		_, _ = out.WriteString(value)
		_, _ = out.WriteString(name[len(trimmed):])
	}

	return out.Flush()
}

func readWhile(in *bufio.Reader, accept func(byte) bool) (string, error) {
	var sb strings.Builder
	for {
		c, err := in.ReadByte()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if !accept(c) {
			_ = in.UnreadByte()
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
}

// Expand substitutes references in a string.
func Expand(text string, source project.FilePath, handler Handler) (string, error) {
	if !strings.Contains(text, "@") {
		return text, nil
	}
	var sb strings.Builder
	sb.Grow(len(text))
	if err := Copy(&sb, strings.NewReader(text), source, handler); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// SourceReader is an io.Reader over a source with references substituted.
// Substitution runs on the first Read.
type SourceReader struct {
	src     io.Reader
	source  project.FilePath
	handler Handler
	out     *bytes.Buffer
	err     error
}

// NewSourceReader wraps r, the content of source.
func NewSourceReader(r io.Reader, source project.FilePath, handler Handler) *SourceReader {
	return &SourceReader{src: r, source: source, handler: handler}
}

// Read implements io.Reader.
func (s *SourceReader) Read(p []byte) (int, error) {
	if s.out == nil && s.err == nil {
		s.out = new(bytes.Buffer)
		s.err = Copy(s.out, s.src, s.source, s.handler)
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.out.Read(p)
}
