package locator

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlNode adapts a parsed golang.org/x/net/html tree. Node names follow the
// HTML DOM: upper-case tags, "#text", "#comment", "#document".
type htmlNode struct {
	n *html.Node
}

// FromHTML wraps a parsed HTML node. A nil node yields a nil Node.
func FromHTML(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return htmlNode{n: n}
}

func (h htmlNode) NodeType() int {
	switch h.n.Type {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	case html.CommentNode:
		return CommentNode
	case html.DocumentNode:
		return DocumentNode
	case html.DoctypeNode:
		return DocumentTypeNode
	default:
		return 0
	}
}

func (h htmlNode) NodeName() string {
	switch h.n.Type {
	case html.ElementNode:
		return strings.ToUpper(h.n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	default:
		return h.n.Data
	}
}

func (h htmlNode) Parent() Node      { return FromHTML(h.n.Parent) }
func (h htmlNode) PrevSibling() Node { return FromHTML(h.n.PrevSibling) }
