package compose

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

// Operator names a composition directive carried by a layout attribute.
type Operator string

const (
	OpTemplate Operator = "template"
	OpEditable Operator = "editable"
	OpContent  Operator = "content"
	OpCompo    Operator = "compo"
	OpParam    Operator = "param"
)

// operators spells and manipulates operator attributes for one naming.
type operators struct {
	naming project.OperatorsNaming
}

func (o operators) key(op Operator) string {
	switch o.naming {
	case project.NamingAttr:
		return string(op)
	case project.NamingXMLNS:
		return "w:" + string(op)
	default:
		return "data-" + string(op)
	}
}

func (o operators) get(n *html.Node, op Operator) (string, bool) {
	key := o.key(op)
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return strings.TrimSpace(attr.Val), true
		}
	}
	return "", false
}

func (o operators) has(n *html.Node, op Operator) bool {
	_, ok := o.get(n, op)
	return ok
}

func (o operators) remove(n *html.Node, op Operator) {
	removeAttr(n, o.key(op))
}

// findAll returns the elements below and including root carrying op, in
// document order. The children of a match are not searched.
func (o operators) findAll(root *html.Node, op Operator) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && o.has(n, op) {
			found = append(found, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// parseParams decodes "name:value;name:value".
func parseParams(value string) (map[string]string, error) {
	params := make(map[string]string)
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, val, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, arborerrors.NewCompositionError(arborerrors.ErrCodeInvalidOperator,
				fmt.Sprintf("invalid layout parameter %q", pair), nil)
		}
		params[name] = strings.TrimSpace(val)
	}
	return params, nil
}

// templateTarget splits "path#slot".
func templateTarget(value string) (project.CompoPath, string, error) {
	pathPart, slot, _ := strings.Cut(value, "#")
	path, err := project.NewCompoPath(pathPart)
	if err != nil {
		return "", "", arborerrors.Wrap(err, arborerrors.ErrorTypeComposition, arborerrors.ErrCodeInvalidOperator,
			fmt.Sprintf("invalid template reference %q", value))
	}
	return path, strings.TrimSpace(slot), nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			continue
		}
		attrs = append(attrs, attr)
	}
	n.Attr = attrs
}

// mergeAttrs copies attrs into n. Existing attributes win unless override is
// set; class lists are always unioned.
func mergeAttrs(n *html.Node, attrs []html.Attribute, override bool) {
	for _, attr := range attrs {
		if attr.Namespace != "" {
			continue
		}
		if attr.Key == "class" {
			current, _ := getAttr(n, "class")
			setAttr(n, "class", unionClasses(current, attr.Val))
			continue
		}
		if _, ok := getAttr(n, attr.Key); ok && !override {
			continue
		}
		setAttr(n, attr.Key, attr.Val)
	}
}

func unionClasses(lists ...string) string {
	seen := make(map[string]bool)
	var classes []string
	for _, list := range lists {
		for _, class := range strings.Fields(list) {
			if !seen[class] {
				seen[class] = true
				classes = append(classes, class)
			}
		}
	}
	return strings.Join(classes, " ")
}

// stripNamespaces drops the prefixed xmlns declarations of HTML elements.
func stripNamespaces(root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			attrs := n.Attr[:0]
			for _, attr := range n.Attr {
				if attr.Namespace == "" && strings.HasPrefix(attr.Key, "xmlns:") {
					continue
				}
				attrs = append(attrs, attr)
			}
			n.Attr = attrs
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

func hasElementChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func moveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		c = next
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
