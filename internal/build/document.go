package build

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/arbor/internal/project"
)

const contentType = "text/html; charset=UTF-8"

// PageDocument assembles one page in memory: the head built up by the
// builder and the composed body. Nothing reaches the output until Render.
type PageDocument struct {
	doc     *html.Node
	html    *html.Node
	head    *html.Node
	metas   map[string]bool
	styles  map[string]bool
	scripts map[string]bool
}

var _ templ.Component = (*PageDocument)(nil)

// NewPageDocument creates a document around a composed body.
func NewPageDocument(body *html.Node) *PageDocument {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)
	head := element(atom.Head)
	root.AppendChild(newline())
	root.AppendChild(head)
	root.AppendChild(newline())
	head.AppendChild(newline())
	if body != nil {
		root.AppendChild(body)
		root.AppendChild(newline())
	}

	return &PageDocument{
		doc:     doc,
		html:    root,
		head:    head,
		metas:   make(map[string]bool),
		styles:  make(map[string]bool),
		scripts: make(map[string]bool),
	}
}

// SetLanguage sets the lang attribute of <html>.
func (d *PageDocument) SetLanguage(lang string) {
	d.html.Attr = append(d.html.Attr, html.Attribute{Key: "lang", Val: lang})
}

// SetContentType adds the content type meta.
func (d *PageDocument) SetContentType(value string) {
	d.add(element(atom.Meta, "http-equiv", "Content-Type", "content", value))
}

// SetTitle adds the <title> element.
func (d *PageDocument) SetTitle(title string) {
	t := element(atom.Title)
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	d.add(t)
}

// SetDescription adds the description meta when description is not empty.
func (d *PageDocument) SetDescription(description string) {
	if description != "" {
		d.add(element(atom.Meta, "name", "Description", "content", description))
	}
}

// SetAuthors adds the author meta; several authors are listed together.
func (d *PageDocument) SetAuthors(authors []string) {
	switch len(authors) {
	case 0:
		return
	case 1:
		d.add(element(atom.Meta, "name", "Author", "content", authors[0]))
	default:
		d.add(element(atom.Meta, "name", "Author", "content", "co-authored by "+strings.Join(authors, ", ")))
	}
}

// AddMeta adds a meta element unless one with identical attributes exists.
func (d *PageDocument) AddMeta(m project.MetaDescriptor) {
	if d.metas[m.Key()] {
		return
	}
	d.metas[m.Key()] = true
	d.add(element(atom.Meta,
		"name", m.Name,
		"http-equiv", m.HTTPEquiv,
		"property", m.Property,
		"content", m.Content,
		"charset", m.Charset))
}

// AddFavicon links the favicon.
func (d *PageDocument) AddFavicon(href string) {
	d.add(element(atom.Link, "href", href, "rel", "icon", "type", "image/x-icon"))
}

// AddManifest links the PWA manifest.
func (d *PageDocument) AddManifest(href string) {
	d.add(element(atom.Link, "href", href, "rel", "manifest"))
}

// AddLink adds a link element; href is the written destination for project
// style sheets and the declared value otherwise.
func (d *PageDocument) AddLink(l project.LinkDescriptor, href string) {
	if l.IsStyleSheet() {
		if d.styles[href] {
			return
		}
		d.styles[href] = true
	}
	rel, typ := l.Rel, l.Type
	if l.IsStyleSheet() {
		rel = "stylesheet"
		if typ == "" {
			typ = "text/css"
		}
	}
	d.add(element(atom.Link,
		"href", href,
		"hreflang", l.HrefLang,
		"rel", rel,
		"type", typ,
		"media", l.Media,
		"crossorigin", l.CrossOrigin,
		"integrity", l.Integrity,
		"title", l.Title))
}

// AddStyle links a written style sheet once.
func (d *PageDocument) AddStyle(href string) {
	if d.styles[href] {
		return
	}
	d.styles[href] = true
	d.add(element(atom.Link, "href", href, "rel", "stylesheet", "type", "text/css"))
}

// AddScript adds a script element. Embedded scripts carry text as body and
// no src; the script is keyed by its declared source.
func (d *PageDocument) AddScript(s project.ScriptDescriptor, src, text string) {
	if s.Dynamic || d.scripts[s.Key()] {
		return
	}
	d.scripts[s.Key()] = true

	typ := s.Type
	if typ == "" {
		typ = "text/javascript"
	}
	pairs := []string{"type", typ}
	if !s.Embedded {
		pairs = append([]string{"src", src}, pairs...)
	}
	n := element(atom.Script, pairs...)
	flag(n, "async", s.Async)
	flag(n, "defer", s.Defer && !s.Embedded)
	flag(n, "nomodule", s.NoModule)
	n.Attr = appendAttrs(n.Attr,
		"nonce", s.Nonce,
		"referrerpolicy", s.ReferrerPolicy,
		"crossorigin", s.CrossOrigin,
		"integrity", s.Integrity)
	if s.Embedded {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	d.add(n)
}

// Render writes the document.
func (d *PageDocument) Render(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return html.Render(w, d.doc)
}

func (d *PageDocument) add(n *html.Node) {
	d.head.AppendChild(n)
	d.head.AppendChild(newline())
}

func element(a atom.Atom, pairs ...string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     appendAttrs(nil, pairs...),
	}
}

// appendAttrs appends key/value pairs, skipping empty values.
func appendAttrs(attrs []html.Attribute, pairs ...string) []html.Attribute {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			attrs = append(attrs, html.Attribute{Key: pairs[i], Val: pairs[i+1]})
		}
	}
	return attrs
}

func flag(n *html.Node, key string, on bool) {
	if on {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: key})
	}
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}
