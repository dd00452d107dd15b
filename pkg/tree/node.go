// Package tree provides the concurrent parse tree shared by the parser,
// formatter, obfuscator and validator.
//
// Each Node guards its own parent reference, text, attributes and children
// with a reader/writer lock, so any number of goroutines may read a tree
// while another mutates an unrelated subtree. Operations that change the
// shape of a tree (AddChild, InsertChildBefore, RemoveChild) also hold that
// tree's link lock so that ownership checks and the parent/child updates
// happen atomically. Separate trees have separate link locks; a subtree
// adopts its new parent's lock when it is attached.
//
// A node has at most one parent at a time. Re-parenting requires an explicit
// RemoveChild first.
package tree

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
)

// Errors returned by the mutating Node operations. They signal misuse of the
// API; a failed call leaves the tree unchanged.
var (
	ErrNilNode        = errors.New("tree: nil node")
	ErrAlreadyOwned   = errors.New("tree: node already has a parent")
	ErrCycle          = errors.New("tree: node cannot be attached beneath itself")
	ErrNotChild       = errors.New("tree: node is not a child of this node")
	ErrEmptyAttribute = errors.New("tree: empty attribute name")
)

// linkLock serializes changes to the parent/child links of one tree.
// Every node of a tree refers to the same linkLock; a node that has never
// been linked has none. Two trees may share a lock after a RemoveChild.
type linkLock struct {
	mu sync.Mutex
	id uint64 // lock order when two trees are joined
}

var linkIDs atomic.Uint64

func newLinkLock() *linkLock {
	return &linkLock{id: linkIDs.Add(1)}
}

// Node is one construct in a parse tree: a statement, clause, expression,
// list, or a leaf carrying exactly one token.
type Node struct {
	name string // immutable
	leaf bool   // immutable

	link atomic.Pointer[linkLock]

	mu       sync.RWMutex
	parent   *Node
	text     string
	attrs    map[string]string
	children []*Node
}

// New creates a detached interior node.
func New(name string) *Node {
	return &Node{name: name}
}

// NewLeaf creates a detached leaf for tok. The leaf is named after the
// token kind and records the token position in its attributes.
func NewLeaf(tok token.Token) *Node {
	return NewLeafNamed(tok.Kind.String(), tok)
}

// NewLeafNamed creates a leaf for tok under a different name, used when a
// non-reserved word plays a keyword role. The original kind is kept in the
// AttrSourceKind attribute.
func NewLeafNamed(name string, tok token.Token) *Node {
	n := &Node{
		name: name,
		leaf: true,
		text: tok.Text,
		attrs: map[string]string{
			AttrLine:   strconv.Itoa(tok.Pos.Line),
			AttrColumn: strconv.Itoa(tok.Pos.Column),
		},
	}
	if name != tok.Kind.String() {
		n.attrs[AttrSourceKind] = tok.Kind.String()
	}
	return n
}

// Name returns the grammar construct tag.
func (n *Node) Name() string {
	return n.name
}

// IsLeaf reports whether the node carries a single token.
func (n *Node) IsLeaf() bool {
	return n.leaf
}

// Kind returns the token kind of a leaf, honoring AttrSourceKind.
func (n *Node) Kind() (token.Kind, bool) {
	if !n.leaf {
		return token.Unknown, false
	}
	if src, ok := n.Attribute(AttrSourceKind); ok {
		return token.KindFromString(src)
	}
	return token.KindFromString(n.name)
}

// Parent returns the owning node, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// Text returns the node's text value. Leaves hold their token text.
func (n *Node) Text() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.text
}

// SetText replaces the node's text value.
func (n *Node) SetText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = text
}

// Attributes returns a snapshot of the attribute map. Later mutations are not
// reflected in the returned map.
func (n *Node) Attributes() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return maps.Clone(n.attrs)
}

// Attribute returns the value of a single attribute.
func (n *Node) Attribute(name string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[name]
	return v, ok
}

// SetAttribute adds or replaces an attribute.
func (n *Node) SetAttribute(name, value string) error {
	if n == nil {
		return ErrNilNode
	}
	if name == "" {
		return ErrEmptyAttribute
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
	return nil
}

// RemoveAttribute deletes an attribute and reports whether it was present.
func (n *Node) RemoveAttribute(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.attrs[name]
	delete(n.attrs, name)
	return ok
}

// Children returns a snapshot of the ordered child list.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.children)
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children)
}

// AddChild appends child to n's children.
func (n *Node) AddChild(child *Node) error {
	if n == nil || child == nil {
		return ErrNilNode
	}
	lock, unlock := lockLinks(n, child)
	defer unlock()

	if err := n.checkAttachable(child, lock); err != nil {
		return err
	}
	child.setParent(n)
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()
	child.adopt(lock)
	return nil
}

// InsertChildBefore inserts child immediately before existing, which must
// currently be a child of n.
func (n *Node) InsertChildBefore(child, existing *Node) error {
	if n == nil || child == nil || existing == nil {
		return ErrNilNode
	}
	lock, unlock := lockLinks(n, child)
	defer unlock()

	if n.indexOf(existing) < 0 {
		return ErrNotChild
	}
	if err := n.checkAttachable(child, lock); err != nil {
		return err
	}
	child.setParent(n)
	n.mu.Lock()
	n.children = slices.Insert(n.children, slices.Index(n.children, existing), child)
	n.mu.Unlock()
	child.adopt(lock)
	return nil
}

// RemoveChild detaches child from n and clears its parent reference.
func (n *Node) RemoveChild(child *Node) error {
	if n == nil || child == nil {
		return ErrNilNode
	}
	lock := n.lockTree()
	defer lock.mu.Unlock()

	if !n.removeFromList(child) {
		return ErrNotChild
	}
	child.setParent(nil)
	return nil
}

// checkAttachable must be called with the locks from lockLinks held. A
// child on another link lock lives in another tree, and a childless node
// can only be its own ancestor, so the walk up from n is rarely needed.
func (n *Node) checkAttachable(child *Node, lock *linkLock) error {
	if child.Parent() != nil {
		return ErrAlreadyOwned
	}
	if child == n {
		return ErrCycle
	}
	if child.link.Load() != lock || child.ChildCount() == 0 {
		return nil
	}
	for a := n.Parent(); a != nil; a = a.Parent() {
		if a == child {
			return ErrCycle
		}
	}
	return nil
}

// linkFor returns n's link lock, creating it on first use.
func (n *Node) linkFor() *linkLock {
	if l := n.link.Load(); l != nil {
		return l
	}
	n.link.CompareAndSwap(nil, newLinkLock())
	return n.link.Load()
}

// lockTree locks the link lock of n's tree and returns it.
func (n *Node) lockTree() *linkLock {
	for {
		l := n.linkFor()
		l.mu.Lock()
		if n.link.Load() == l {
			return l
		}
		l.mu.Unlock()
	}
}

// lockLinks locks the trees of parent and child and returns parent's lock.
// A never-linked child has no parent and no children, so it joins parent's
// tree directly. Otherwise both locks are taken in id order.
func lockLinks(parent, child *Node) (*linkLock, func()) {
	for {
		lp := parent.linkFor()
		lc := child.link.Load()
		switch {
		case lc == nil:
			lp.mu.Lock()
			if parent.link.Load() == lp && child.link.CompareAndSwap(nil, lp) {
				return lp, lp.mu.Unlock
			}
			lp.mu.Unlock()
		case lc == lp:
			lp.mu.Lock()
			if parent.link.Load() == lp && child.link.Load() == lp {
				return lp, lp.mu.Unlock
			}
			lp.mu.Unlock()
		default:
			first, second := lp, lc
			if second.id < first.id {
				first, second = second, first
			}
			first.mu.Lock()
			second.mu.Lock()
			if parent.link.Load() == lp && child.link.Load() == lc {
				return lp, func() {
					second.mu.Unlock()
					first.mu.Unlock()
				}
			}
			second.mu.Unlock()
			first.mu.Unlock()
		}
	}
}

// adopt moves n's subtree onto lock. Callers hold both the old and the new lock.
func (n *Node) adopt(lock *linkLock) {
	if n.link.Swap(lock) == lock {
		return
	}
	for _, c := range n.Children() {
		c.adopt(lock)
	}
}

func (n *Node) indexOf(child *Node) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Index(n.children, child)
}

func (n *Node) removeFromList(child *Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	i := slices.Index(n.children, child)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	return true
}

func (n *Node) setParent(p *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = p
}
