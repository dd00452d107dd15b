package tree

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
)

// Walk visits n and its descendants depth-first in document order. When fn
// returns false the children of that node are skipped.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// Leaves returns the leaves under n in document order.
func Leaves(n *Node) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		if c.IsLeaf() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Text concatenates the text of every leaf under n.
func Text(n *Node) string {
	var sb strings.Builder
	for _, l := range Leaves(n) {
		sb.WriteString(l.Text())
	}
	return sb.String()
}

// Significant returns the children of n that are not whitespace or comments.
func Significant(n *Node) []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if !IsTrivia(c) {
			out = append(out, c)
		}
	}
	return out
}

// FirstLeaf returns the first non-trivia leaf under n.
func FirstLeaf(n *Node) *Node {
	var first *Node
	Walk(n, func(c *Node) bool {
		if first != nil {
			return false
		}
		if c.IsLeaf() && !IsTrivia(c) {
			first = c
			return false
		}
		return true
	})
	return first
}

// IsTrivia reports whether n is a whitespace or comment leaf.
func IsTrivia(n *Node) bool {
	k, ok := n.Kind()
	return ok && k.IsTrivia()
}

// IsComment reports whether n is a comment leaf.
func IsComment(n *Node) bool {
	k, ok := n.Kind()
	return ok && k.IsComment()
}

// HasKind reports whether n is a leaf of the given token kind.
func HasKind(n *Node, kind token.Kind) bool {
	k, ok := n.Kind()
	return ok && k == kind
}

// ContainsError reports whether n or any descendant is an error node.
func ContainsError(n *Node) bool {
	found := false
	Walk(n, func(c *Node) bool {
		if c.Name() == NodeError {
			found = true
		}
		return !found
	})
	return found
}

// Role returns the AttrRole value of n.
func Role(n *Node) string {
	r, _ := n.Attribute(AttrRole)
	return r
}
