// Package locator derives the positional XPath of a DOM element.
//
// The path is built from the element up to the root: each level contributes
// its lowercased tag, suffixed with [n] when n-1 earlier siblings share the
// same node name. Ids and classes are not consulted, so a locator is only
// stable while nothing upstream of the element is inserted or removed.
package locator

import (
	"strconv"
	"strings"
)

// DOM node types, as reported by Node.nodeType.
const (
	ElementNode      = 1
	TextNode         = 3
	CommentNode      = 8
	DocumentNode     = 9
	DocumentTypeNode = 10
)

// Node is the read-only view of a DOM node the builder walks. Parent and
// PrevSibling return nil at the edges of the tree.
type Node interface {
	NodeType() int
	NodeName() string
	Parent() Node
	PrevSibling() Node
}

// XPath returns the structural path of n, and false when n is nil or not an
// element (the walk yields no segments).
func XPath(n Node) (string, bool) {
	var segments []string
	for ; n != nil && n.NodeType() == ElementNode; n = n.Parent() {
		segments = append(segments, segment(n))
	}
	if len(segments) == 0 {
		return "", false
	}

	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String(), true
}

// Of is XPath with the null convention of action.Record: nil when there is
// no element ancestry.
func Of(n Node) *string {
	p, ok := XPath(n)
	if !ok {
		return nil
	}
	return &p
}

func segment(n Node) string {
	name := n.NodeName()
	index := 0
	for sib := n.PrevSibling(); sib != nil; sib = sib.PrevSibling() {
		if sib.NodeType() == DocumentTypeNode {
			continue
		}
		if sib.NodeName() == name {
			index++
		}
	}

	tag := strings.ToLower(name)
	if index == 0 {
		return tag
	}
	return tag + "[" + strconv.Itoa(index+1) + "]"
}
