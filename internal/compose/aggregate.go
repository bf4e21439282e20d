package compose

import "github.com/conneroisu/arbor/internal/project"

// aggregate collects the head resources of a composition in contribution
// order. Every resource is kept once, at its first position.
type aggregate struct {
	styles  []project.FilePath
	scripts []project.ScriptDescriptor
	metas   []project.MetaDescriptor
	links   []project.LinkDescriptor

	styleSet  map[project.FilePath]bool
	scriptSet map[string]bool
	metaSet   map[string]bool
	linkSet   map[string]bool
}

func newAggregate() *aggregate {
	return &aggregate{
		styleSet:  make(map[project.FilePath]bool),
		scriptSet: make(map[string]bool),
		metaSet:   make(map[string]bool),
		linkSet:   make(map[string]bool),
	}
}

func (a *aggregate) addStyle(file project.FilePath) {
	if !a.styleSet[file] {
		a.styleSet[file] = true
		a.styles = append(a.styles, file)
	}
}

func (a *aggregate) addScript(s project.ScriptDescriptor) {
	if key := s.Key(); !a.scriptSet[key] {
		a.scriptSet[key] = true
		a.scripts = append(a.scripts, s)
	}
}

func (a *aggregate) addMeta(m project.MetaDescriptor) {
	if key := m.Key(); !a.metaSet[key] {
		a.metaSet[key] = true
		a.metas = append(a.metas, m)
	}
}

func (a *aggregate) addLink(l project.LinkDescriptor) {
	if !a.linkSet[l.Href] {
		a.linkSet[l.Href] = true
		a.links = append(a.links, l)
	}
}

func (a *aggregate) addDescriptor(d *project.ComponentDescriptor) {
	for _, m := range d.Metas {
		a.addMeta(m)
	}
	for _, l := range d.Links {
		a.addLink(l)
	}
	for _, s := range d.Scripts {
		a.addScript(s)
	}
}

// merge appends the resources of other not already present.
func (a *aggregate) merge(other *aggregate) {
	for _, f := range other.styles {
		a.addStyle(f)
	}
	for _, s := range other.scripts {
		a.addScript(s)
	}
	for _, m := range other.metas {
		a.addMeta(m)
	}
	for _, l := range other.links {
		a.addLink(l)
	}
}
