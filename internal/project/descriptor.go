package project

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
)

// ProjectDescriptorFile is the project descriptor at the project root.
const ProjectDescriptorFile = "project.yml"

// OperatorsNaming selects how composition operators are spelled in layouts.
type OperatorsNaming string

const (
	NamingDataAttr OperatorsNaming = "data-attr"
	NamingAttr     OperatorsNaming = "attr"
	NamingXMLNS    OperatorsNaming = "xmlns"
)

// Descriptor is the project.yml document.
type Descriptor struct {
	Title         string             `yaml:"title"`
	Authors       []string           `yaml:"authors"`
	Locales       []string           `yaml:"locales"`
	AssetDir      string             `yaml:"asset-dir"`
	ThemeDir      string             `yaml:"theme-dir"`
	Excludes      []string           `yaml:"excludes"`
	Favicon       string             `yaml:"favicon"`
	Manifest      string             `yaml:"manifest"`
	ServiceWorker string             `yaml:"service-worker"`
	Operators     OperatorsNaming    `yaml:"operators"`
	Metas         []MetaDescriptor   `yaml:"metas"`
	Links         []LinkDescriptor   `yaml:"links"`
	Scripts       []ScriptDescriptor `yaml:"scripts"`
	MediaQueries  []MediaQuery       `yaml:"media-queries"`
}

// MediaQuery names a media query; style files carrying the alias as a
// variant are appended to their base style inside an @media block.
type MediaQuery struct {
	Alias      string `yaml:"alias"`
	Media      string `yaml:"media"`
	Expression string `yaml:"expression"`
}

// ComponentDescriptor is the optional <name>.yml beside a component layout.
type ComponentDescriptor struct {
	Page        bool               `yaml:"page"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Metas       []MetaDescriptor   `yaml:"metas"`
	Links       []LinkDescriptor   `yaml:"links"`
	Scripts     []ScriptDescriptor `yaml:"scripts"`
}

// MetaDescriptor describes one <meta> element.
type MetaDescriptor struct {
	Name      string `yaml:"name"`
	HTTPEquiv string `yaml:"http-equiv"`
	Property  string `yaml:"property"`
	Charset   string `yaml:"charset"`
	Content   string `yaml:"content"`
}

// Key identifies a meta by all its attributes.
func (m MetaDescriptor) Key() string {
	return strings.Join([]string{m.Name, m.HTTPEquiv, m.Property, m.Charset, m.Content}, "\x00")
}

// LinkDescriptor describes one <link> element.
type LinkDescriptor struct {
	Href        string `yaml:"href"`
	Rel         string `yaml:"rel"`
	Type        string `yaml:"type"`
	Media       string `yaml:"media"`
	Title       string `yaml:"title"`
	HrefLang    string `yaml:"hreflang"`
	Integrity   string `yaml:"integrity"`
	CrossOrigin string `yaml:"crossorigin"`
}

// IsStyleSheet reports links emitted with rel=stylesheet.
func (l LinkDescriptor) IsStyleSheet() bool {
	return l.Rel == "" || l.Rel == "stylesheet"
}

// ScriptDescriptor describes one script the page loads.
type ScriptDescriptor struct {
	Src            string `yaml:"src"`
	Type           string `yaml:"type"`
	Async          bool   `yaml:"async"`
	Defer          bool   `yaml:"defer"`
	NoModule       bool   `yaml:"nomodule"`
	Nonce          string `yaml:"nonce"`
	ReferrerPolicy string `yaml:"referrerpolicy"`
	Integrity      string `yaml:"integrity"`
	CrossOrigin    string `yaml:"crossorigin"`
	Embedded       bool   `yaml:"embedded"`
	Dynamic        bool   `yaml:"dynamic"`
}

// IsRemote reports sources that are URLs rather than project files.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "//") || strings.Contains(src, "://") || strings.HasPrefix(src, "data:")
}

// Key identifies the script by its source. Local sources compare by their
// cleaned project path, so ./lib/a.js and lib/a.js are the same script.
func (s ScriptDescriptor) Key() string {
	if IsRemote(s.Src) {
		return s.Src
	}
	if file, err := NewFilePath(s.Src); err == nil && file != "" {
		return file.String()
	}
	return s.Src
}

// Substitute runs fn over every string value a descriptor author may write
// references into.
func (d *ComponentDescriptor) Substitute(fn func(string) (string, error)) error {
	var err error
	sub := func(s *string) {
		if err != nil || *s == "" {
			return
		}
		*s, err = fn(*s)
	}

	sub(&d.Title)
	sub(&d.Description)
	for i := range d.Metas {
		sub(&d.Metas[i].Content)
	}
	for i := range d.Links {
		sub(&d.Links[i].Href)
		sub(&d.Links[i].Title)
	}
	for i := range d.Scripts {
		sub(&d.Scripts[i].Src)
		d.Scripts[i].Src = d.Scripts[i].Key()
	}
	return err
}

// ParseComponentDescriptor decodes a component descriptor document.
func ParseComponentDescriptor(file FilePath, data []byte) (*ComponentDescriptor, error) {
	var d ComponentDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, arborerrors.NewCompositionError(arborerrors.ErrCodeInvalidDescriptor,
			"invalid component descriptor", err).WithFile(file.String())
	}
	if err := validateScripts(file, d.Scripts); err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeConfigInvalid,
			"invalid project descriptor").WithFile(ProjectDescriptorFile)
	}
	if err := validateScripts(ProjectDescriptorFile, d.Scripts); err != nil {
		return nil, err
	}
	return &d, nil
}

// validateScripts checks every script and rewrites local sources to their
// cleaned form.
func validateScripts(file FilePath, scripts []ScriptDescriptor) error {
	for i, s := range scripts {
		if strings.TrimSpace(s.Src) == "" {
			return arborerrors.NewCompositionError(arborerrors.ErrCodeInvalidDescriptor,
				fmt.Sprintf("script #%d has no src", i+1), nil).WithFile(file.String())
		}
		if s.Embedded && IsRemote(s.Src) {
			return arborerrors.NewCompositionError(arborerrors.ErrCodeInvalidDescriptor,
				fmt.Sprintf("remote script %s cannot be embedded", s.Src), nil).WithFile(file.String())
		}
		scripts[i].Src = s.Key()
	}
	return nil
}
