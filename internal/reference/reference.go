// Package reference parses the symbolic resource mentions (@type/name) found
// in layouts, style sheets, scripts and descriptors, and substitutes them as
// a source is streamed.
package reference

import (
	"fmt"
	"strings"
)

// Type is the kind of resource a reference names.
type Type int

const (
	TypeUnknown Type = iota
	TypeString
	TypeText
	TypeLink
	TypeTip
	TypeColor
	TypeDimen
	TypeImage
	TypeAudio
	TypeVideo
	TypeFont
	TypeFile
	TypeProject
	TypeParam
)

var typeNames = map[Type]string{
	TypeString:  "string",
	TypeText:    "text",
	TypeLink:    "link",
	TypeTip:     "tip",
	TypeColor:   "color",
	TypeDimen:   "dimen",
	TypeImage:   "image",
	TypeAudio:   "audio",
	TypeVideo:   "video",
	TypeFont:    "font",
	TypeFile:    "file",
	TypeProject: "project",
	TypeParam:   "param",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

// ParseType maps a type name to its Type.
func ParseType(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// String returns the type name as written in sources.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsVariable reports types stored in variable files.
func (t Type) IsVariable() bool {
	switch t {
	case TypeString, TypeText, TypeLink, TypeTip, TypeColor, TypeDimen:
		return true
	}
	return false
}

// IsMedia reports image, audio and video types.
func (t Type) IsMedia() bool {
	switch t {
	case TypeImage, TypeAudio, TypeVideo:
		return true
	}
	return false
}

// IsResourceFile reports types resolved to a file written to the build.
func (t Type) IsResourceFile() bool {
	return t.IsMedia() || t == TypeFont || t == TypeFile
}

// VariableTypes lists the types a variables file root element may name.
func VariableTypes() []Type {
	return []Type{TypeString, TypeText, TypeLink, TypeTip, TypeColor, TypeDimen}
}

// Reference is an immutable (type, name) pair. Names of resource files may
// carry a sub-directory path.
type Reference struct {
	Type Type
	Name string
}

// New validates name against the grammar of t.
func New(t Type, name string) (Reference, error) {
	if t == TypeUnknown {
		return Reference{}, fmt.Errorf("unknown reference type")
	}
	if name == "" {
		return Reference{}, fmt.Errorf("empty @%s reference name", t)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return Reference{}, fmt.Errorf("invalid @%s reference name %q", t, name)
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i], t) {
			return Reference{}, fmt.Errorf("invalid character %q in @%s/%s", name[i], t, name)
		}
	}
	return Reference{Type: t, Name: name}, nil
}

// Parse reads a whole "@type/name" mention.
func Parse(s string) (Reference, error) {
	if !strings.HasPrefix(s, "@") {
		return Reference{}, fmt.Errorf("reference %q does not start with @", s)
	}
	typeName, name, ok := strings.Cut(s[1:], "/")
	if !ok {
		return Reference{}, fmt.Errorf("reference %q has no name", s)
	}
	t, known := ParseType(typeName)
	if !known {
		return Reference{}, fmt.Errorf("unknown reference type %q", typeName)
	}
	return New(t, name)
}

// String formats the reference as it appears in sources.
func (r Reference) String() string {
	return "@" + r.Type.String() + "/" + r.Name
}

// HasPath reports a resource file name with a sub-directory.
func (r Reference) HasPath() bool {
	return strings.Contains(r.Name, "/")
}

// Path returns the sub-directory part of the name, empty when there is none.
func (r Reference) Path() string {
	if idx := strings.LastIndexByte(r.Name, '/'); idx >= 0 {
		return r.Name[:idx]
	}
	return ""
}

// BaseName returns the name without its sub-directory.
func (r Reference) BaseName() string {
	if idx := strings.LastIndexByte(r.Name, '/'); idx >= 0 {
		return r.Name[idx+1:]
	}
	return r.Name
}

func isTypeChar(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isNameChar(c byte, t Type) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		return true
	case c == '/':
		return !t.IsVariable() && t != TypeProject && t != TypeParam
	}
	return false
}
