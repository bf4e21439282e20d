// Package variables loads the per-directory variable stores: XML files whose
// root element names a variable kind and whose children are the variables.
package variables

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"

	"golang.org/x/text/language"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/reference"
)

// neutral keys values declared in files without a language variant.
const neutral = ""

// Store maps (locale, reference) to a raw value for one directory.
type Store struct {
	values map[string]map[reference.Reference]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]map[reference.Reference]string)}
}

// Get looks ref up for locale, then in locale-neutral values, then for the
// default locale. Empty values count as missing.
func (s *Store) Get(locale, defaultLocale language.Tag, ref reference.Reference) (string, bool) {
	for _, key := range []string{locale.String(), neutral, defaultLocale.String()} {
		if value := s.values[key][ref]; value != "" {
			return value, true
		}
	}
	return "", false
}

// Len returns the number of stored values across locales.
func (s *Store) Len() int {
	n := 0
	for _, values := range s.values {
		n += len(values)
	}
	return n
}

// Put stores a value; used by loaders and tests.
func (s *Store) Put(locale string, ref reference.Reference, value string) {
	values, ok := s.values[locale]
	if !ok {
		values = make(map[reference.Reference]string)
		s.values[locale] = values
	}
	values[ref] = value
}

// Load parses one variables file. Files whose root element is not a variable
// kind are ignored.
func (s *Store) Load(file project.FilePath, data []byte) error {
	locale := file.Variants().Language
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = xml.HTMLEntity

	var (
		kind  reference.Type
		name  string
		value strings.Builder
		level int
	)
	fail := func(format string, args ...interface{}) error {
		return arborerrors.NewResolutionError(arborerrors.ErrCodeInvalidVariables,
			fmt.Sprintf(format, args...)).WithFile(file.String())
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return arborerrors.Wrap(err, arborerrors.ErrorTypeResolution, arborerrors.ErrCodeInvalidVariables,
				"malformed variables file").WithFile(file.String())
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch level {
			case 0:
				var ok bool
				kind, ok = reference.ParseType(t.Name.Local)
				if !ok || !kind.IsVariable() {
					return nil
				}
			case 1:
				name = t.Name.Local
				value.Reset()
			default:
				if kind != reference.TypeText {
					return fail("nested element <%s> in %s variable %s; only text variables allow markup", t.Name.Local, kind, name)
				}
				writeStartTag(&value, t)
			}
			level++

		case xml.EndElement:
			level--
			switch level {
			case 0:
			case 1:
				ref, err := reference.New(kind, name)
				if err != nil {
					return fail("invalid variable name: %v", err)
				}
				s.Put(locale, ref, strings.TrimSpace(value.String()))
			default:
				value.WriteString("</" + t.Name.Local + ">")
			}

		case xml.CharData:
			if level < 2 {
				continue
			}
			if kind == reference.TypeText {
				value.WriteString(html.EscapeString(string(t)))
			} else {
				value.Write(t)
			}
		}
	}
}

func writeStartTag(sb *strings.Builder, t xml.StartElement) {
	sb.WriteString("<" + t.Name.Local)
	for _, attr := range t.Attr {
		sb.WriteString(" " + attr.Name.Local + `="`)
		sb.WriteString(html.EscapeString(attr.Value))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
}
