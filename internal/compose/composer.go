// Package compose merges a component layout with the templates it extends
// and the widgets it embeds into one layout tree, collecting the styles,
// scripts, metas and links every contributing component declares.
package compose

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/reference"
)

// Component is a page composed for one locale. It carries no state beyond
// the page it was composed for.
type Component struct {
	Path        project.CompoPath
	Body        *html.Node
	Title       string
	Description string
	Styles      []project.FilePath
	Scripts     []project.ScriptDescriptor
	Metas       []project.MetaDescriptor
	Links       []project.LinkDescriptor
}

// Composer composes components of one project. References other than layout
// parameters are delegated to the resolve handler.
type Composer struct {
	project *project.Project
	ops     operators
	resolve reference.Handler
	logger  logging.Logger
}

// New creates a composer. resolve is called for every reference found in
// layouts and descriptors.
func New(p *project.Project, resolve reference.Handler, logger logging.Logger) *Composer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Composer{
		project: p,
		ops:     operators{naming: p.Operators()},
		resolve: resolve,
		logger:  logger.WithComponent("compose"),
	}
}

// Compose builds the merged layout of page and the ordered resources of every
// component contributing to it.
func (c *Composer) Compose(ctx context.Context, page project.CompoPath) (*Component, error) {
	s := &session{
		ctx:    ctx,
		c:      c,
		active: make(map[project.CompoPath]bool),
		owners: make(map[*html.Node]project.CompoPath),
	}

	f, err := s.component(page, nil)
	if err != nil {
		return nil, err
	}

	if left := c.ops.findAll(f.root, OpEditable); len(left) > 0 {
		name, _ := c.ops.get(left[0], OpEditable)
		owner := s.owners[left[0]]
		return nil, arborerrors.NewCompositionError(arborerrors.ErrCodeUnresolvedSlot,
			fmt.Sprintf("editable %q of %s is never filled", name, owner), nil).
			WithFile(page.Layout().String()).
			WithComponent(owner.String())
	}
	if c.ops.naming == project.NamingXMLNS {
		stripNamespaces(f.root)
	}

	component := &Component{
		Path:    page,
		Body:    bodyOf(f.root),
		Styles:  f.agg.styles,
		Scripts: f.agg.scripts,
		Metas:   f.agg.metas,
		Links:   f.agg.links,
	}
	if f.descriptor != nil {
		component.Title = f.descriptor.Title
		component.Description = f.descriptor.Description
	}

	c.logger.Debug(ctx, "Composed page",
		"page", page.String(),
		"styles", len(component.Styles),
		"scripts", len(component.Scripts))
	return component, nil
}

func bodyOf(root *html.Node) *html.Node {
	switch root.DataAtom {
	case atom.Body:
		return root
	case atom.Html:
		if body := findElement(root, atom.Body); body != nil {
			body.Parent.RemoveChild(body)
			return body
		}
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	body.AppendChild(root)
	return body
}

// session holds the state of one Compose call.
type session struct {
	ctx    context.Context
	c      *Composer
	active map[project.CompoPath]bool
	stack  []project.CompoPath
	owners map[*html.Node]project.CompoPath
}

type fragment struct {
	root       *html.Node
	agg        *aggregate
	descriptor *project.ComponentDescriptor
}

// component composes path: templates first, widgets next, own resources last.
func (s *session) component(path project.CompoPath, params map[string]string) (*fragment, error) {
	if s.active[path] {
		trace := make([]string, 0, len(s.stack)+1)
		for _, p := range s.stack {
			trace = append(trace, p.String())
		}
		trace = append(trace, path.String())
		return nil, arborerrors.NewCompositionError(arborerrors.ErrCodeCompositionCycle,
			"circular composition: "+strings.Join(trace, " -> "), nil).
			WithFile(path.Layout().String())
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	s.active[path] = true
	s.stack = append(s.stack, path)
	defer func() {
		delete(s.active, path)
		s.stack = s.stack[:len(s.stack)-1]
	}()

	handler := s.handler(params)
	root, err := s.load(path, handler)
	if err != nil {
		return nil, err
	}

	agg := newAggregate()
	inline := newAggregate()
	var inlineFragments []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		inlineFragments = append(inlineFragments, s.c.ops.findAll(c, OpTemplate)...)
	}
	for _, n := range inlineFragments {
		parent, next := n.Parent, n.NextSibling
		parent.RemoveChild(n)
		tpl, err := s.consolidate(path, n)
		if err != nil {
			return nil, err
		}
		parent.InsertBefore(tpl.root, next)
		inline.merge(tpl.agg)
	}
	if s.c.ops.has(root, OpTemplate) {
		tpl, err := s.consolidate(path, root)
		if err != nil {
			return nil, err
		}
		root = tpl.root
		agg.merge(tpl.agg)
	}
	agg.merge(inline)

	for _, marker := range s.c.ops.findAll(root, OpCompo) {
		widget, err := s.widget(path, marker)
		if err != nil {
			return nil, err
		}
		agg.merge(widget.agg)
	}

	descriptor, err := s.own(path, handler, agg)
	if err != nil {
		return nil, err
	}
	return &fragment{root: root, agg: agg, descriptor: descriptor}, nil
}

// load reads the layout of path, substitutes its references and parses it.
func (s *session) load(path project.CompoPath, handler reference.Handler) (*html.Node, error) {
	layout := path.Layout()
	if !s.c.project.Exists(layout) {
		err := arborerrors.NewCompositionError(arborerrors.ErrCodeMissingLayout,
			fmt.Sprintf("component %s has no layout", path), nil).WithFile(layout.String())
		if len(s.stack) > 1 {
			err = err.WithContext("requested_by", s.stack[len(s.stack)-2].String())
		}
		return nil, err
	}
	data, err := s.c.project.ReadFile(layout)
	if err != nil {
		return nil, err
	}
	text, err := reference.Expand(string(data), layout, handler)
	if err != nil {
		return nil, err
	}
	root, err := parseLayout(layout, text)
	if err != nil {
		return nil, err
	}

	for _, n := range s.c.ops.findAll(root, OpEditable) {
		s.owners[n] = path
	}
	return root, nil
}

// consolidate composes the template named by fragment and fills its
// editables with the fragment content. The returned root replaces fragment.
func (s *session) consolidate(path project.CompoPath, fragmentRoot *html.Node) (*fragment, error) {
	ops := s.c.ops
	value, _ := ops.get(fragmentRoot, OpTemplate)
	ops.remove(fragmentRoot, OpTemplate)
	tplPath, slot, err := templateTarget(value)
	if err != nil {
		return nil, withLayout(err, path)
	}

	var params map[string]string
	if value, ok := ops.get(fragmentRoot, OpParam); ok {
		if params, err = parseParams(value); err != nil {
			return nil, withLayout(err, path)
		}
		ops.remove(fragmentRoot, OpParam)
	}

	tpl, err := s.component(tplPath, params)
	if err != nil {
		return nil, err
	}

	var contents []*html.Node
	for c := fragmentRoot.FirstChild; c != nil; c = c.NextSibling {
		contents = append(contents, ops.findAll(c, OpContent)...)
	}
	if len(contents) == 0 {
		contents = []*html.Node{fragmentRoot}
	}

	for _, content := range contents {
		name := slot
		if value, ok := ops.get(content, OpContent); ok {
			name = value
			ops.remove(content, OpContent)
		}
		if name == "" {
			return nil, arborerrors.NewCompositionError(arborerrors.ErrCodeInvalidOperator,
				fmt.Sprintf("content for template %s names no editable", tplPath), nil).
				WithFile(path.Layout().String())
		}
		if err := s.fill(path, tplPath, tpl.root, name, content); err != nil {
			return nil, err
		}
	}
	return tpl, nil
}

// fill replaces the editable name owned by template with content.
func (s *session) fill(path, template project.CompoPath, tplRoot *html.Node, name string, content *html.Node) error {
	editable := s.editable(tplRoot, template, name)
	if editable == nil {
		if hasElementChildren(tplRoot) {
			return arborerrors.NewCompositionError(arborerrors.ErrCodeMissingEditable,
				fmt.Sprintf("template %s has no editable %q", template, name), nil).
				WithFile(path.Layout().String())
		}
		// A template without markup is filled as a whole.
		editable = tplRoot
	}
	if hasElementChildren(editable) {
		return arborerrors.NewCompositionError(arborerrors.ErrCodeEditableNotEmpty,
			fmt.Sprintf("editable %q must be empty", name), nil).
			WithFile(template.Layout().String())
	}

	s.c.ops.remove(editable, OpEditable)
	delete(s.owners, editable)
	if content.Parent != nil {
		content.Parent.RemoveChild(content)
	}

	if editable.Parent == nil {
		removeChildren(editable)
		moveChildren(editable, content)
		mergeAttrs(editable, content.Attr, true)
		return nil
	}
	if content.DataAtom == atom.Body {
		// A page body extending a template contributes its children only.
		for c := content.FirstChild; c != nil; {
			next := c.NextSibling
			content.RemoveChild(c)
			editable.Parent.InsertBefore(c, editable)
			c = next
		}
		mergeAttrs(tplRoot, content.Attr, true)
	} else {
		editable.Parent.InsertBefore(content, editable)
		mergeAttrs(content, editable.Attr, false)
	}
	editable.Parent.RemoveChild(editable)
	return nil
}

func (s *session) editable(root *html.Node, owner project.CompoPath, name string) *html.Node {
	for _, n := range s.c.ops.findAll(root, OpEditable) {
		if value, _ := s.c.ops.get(n, OpEditable); value == name && s.owners[n] == owner {
			return n
		}
	}
	return nil
}

// widget replaces the children of marker with the composed widget.
func (s *session) widget(path project.CompoPath, marker *html.Node) (*fragment, error) {
	ops := s.c.ops
	value, _ := ops.get(marker, OpCompo)
	ops.remove(marker, OpCompo)
	widgetPath, err := project.NewCompoPath(value)
	if err != nil {
		return nil, withLayout(arborerrors.Wrap(err, arborerrors.ErrorTypeComposition,
			arborerrors.ErrCodeInvalidOperator, fmt.Sprintf("invalid widget reference %q", value)), path)
	}

	var params map[string]string
	if value, ok := ops.get(marker, OpParam); ok {
		if params, err = parseParams(value); err != nil {
			return nil, withLayout(err, path)
		}
		ops.remove(marker, OpParam)
	}

	widget, err := s.component(widgetPath, params)
	if err != nil {
		return nil, err
	}
	mergeAttrs(marker, widget.root.Attr, false)
	removeChildren(marker)
	moveChildren(marker, widget.root)
	return widget, nil
}

// own appends the style, descriptor resources and script of path itself.
func (s *session) own(path project.CompoPath, handler reference.Handler, agg *aggregate) (*project.ComponentDescriptor, error) {
	p := s.c.project
	if style := path.Style(); p.Exists(style) {
		agg.addStyle(style)
	}

	descriptor, err := p.ComponentDescriptor(path)
	if err != nil {
		return nil, err
	}
	if descriptor != nil {
		source := path.Descriptor()
		err := descriptor.Substitute(func(value string) (string, error) {
			return reference.Expand(value, source, handler)
		})
		if err != nil {
			return nil, err
		}
		agg.addDescriptor(descriptor)
	}

	if script := path.Script(); p.Exists(script) {
		agg.addScript(project.ScriptDescriptor{Src: script.String()})
	}
	return descriptor, nil
}

// handler resolves layout parameters locally and everything else through the
// composer's resolve handler.
func (s *session) handler(params map[string]string) reference.Handler {
	return func(ref reference.Reference, source project.FilePath) (string, error) {
		if ref.Type != reference.TypeParam {
			return s.c.resolve(ref, source)
		}
		value, ok := params[ref.Name]
		if !ok {
			return "", arborerrors.NewResolutionError(arborerrors.ErrCodeMissingParam,
				fmt.Sprintf("layout parameter %q is not supplied", ref.Name)).WithFile(source.String())
		}
		return value, nil
	}
}

func withLayout(err error, path project.CompoPath) error {
	if ae, ok := err.(*arborerrors.ArborError); ok && ae.FilePath == "" {
		return ae.WithFile(path.Layout().String())
	}
	return err
}
