package compose

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/project"
)

// parseLayout parses a layout document into its root element. Page layouts
// may be rooted at <html> or <body>; any other layout must hold exactly one
// root element.
func parseLayout(file project.FilePath, text string) (*html.Node, error) {
	switch rootTag(text) {
	case "html", "body":
		doc, err := html.Parse(strings.NewReader(text))
		if err != nil {
			return nil, malformed(file, err)
		}
		target := atom.Body
		if rootTag(text) == "html" {
			target = atom.Html
		}
		n := findElement(doc, target)
		if n == nil {
			return nil, malformed(file, fmt.Errorf("no <%s> element", target))
		}
		n.Parent.RemoveChild(n)
		return n, nil

	case "":
		return nil, malformed(file, errors.New("no root element"))
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return nil, malformed(file, err)
	}
	var root *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if root != nil {
				return nil, malformed(file, errors.New("more than one root element"))
			}
			root = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil, malformed(file, errors.New("text outside the root element"))
			}
		}
	}
	if root == nil {
		return nil, malformed(file, errors.New("no root element"))
	}
	return root, nil
}

// rootTag returns the name of the first start tag in text.
func rootTag(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			return strings.ToLower(string(name))
		}
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func malformed(file project.FilePath, cause error) error {
	return arborerrors.NewCompositionError(arborerrors.ErrCodeMalformedLayout,
		"invalid layout document", cause).WithFile(file.String())
}

// RenderString serialises a node and its subtree to a string.
func RenderString(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}
