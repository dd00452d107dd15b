package tree

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
)

func TestAddChild(t *testing.T) {
	parent := New(NodeSelectStatement)
	child := New(NodeSelectClause)

	require.NoError(t, parent.AddChild(child))
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []*Node{child}, parent.Children())
}

func TestAddChildOwnership(t *testing.T) {
	a := New("a")
	b := New("b")
	child := New("child")
	require.NoError(t, a.AddChild(child))

	err := b.AddChild(child)
	require.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Same(t, a, child.Parent())
	assert.Empty(t, b.Children())

	require.NoError(t, a.RemoveChild(child))
	assert.Nil(t, child.Parent())
	require.NoError(t, b.AddChild(child))
	assert.Same(t, b, child.Parent())
}

func TestAddChildRejectsCycles(t *testing.T) {
	root := New("root")
	mid := New("mid")
	require.NoError(t, root.AddChild(mid))

	assert.ErrorIs(t, mid.AddChild(root), ErrCycle)
	assert.ErrorIs(t, root.AddChild(root), ErrCycle)
	assert.Equal(t, []*Node{mid}, root.Children())
}

func TestLinkLocksPerTree(t *testing.T) {
	a := New("a")
	b := New("b")
	require.NoError(t, a.AddChild(New("a1")))
	require.NoError(t, b.AddChild(New("b1")))
	require.NotSame(t, a.link.Load(), b.link.Load())

	held := a.lockTree()
	done := make(chan error, 1)
	go func() {
		done <- b.AddChild(New("b2"))
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("AddChild on an independent tree waited for another tree's link lock")
	}
	held.mu.Unlock()
	assert.Equal(t, 2, b.ChildCount())
}

func TestAttachAdoptsParentLinkLock(t *testing.T) {
	root := New("root")
	sub := New("sub")
	leaf := New("leaf")
	require.NoError(t, sub.AddChild(leaf))
	require.NoError(t, root.AddChild(New("first")))

	require.NoError(t, root.AddChild(sub))
	lock := root.link.Load()
	assert.Same(t, lock, sub.link.Load())
	assert.Same(t, lock, leaf.link.Load())

	assert.ErrorIs(t, leaf.AddChild(root), ErrCycle)
	assert.ErrorIs(t, leaf.AddChild(sub), ErrAlreadyOwned)

	require.NoError(t, root.RemoveChild(sub))
	other := New("other")
	require.NoError(t, other.AddChild(sub))
	assert.Same(t, other.link.Load(), leaf.link.Load())
	assert.ErrorIs(t, leaf.AddChild(other), ErrCycle)
}

// Trees grafted onto each other from both directions at once must end up
// acyclic: exactly one of the two attaches wins.
func TestConcurrentCrossAttach(t *testing.T) {
	for i := 0; i < 200; i++ {
		a, b := New("a"), New("b")
		a1, b1 := New("a1"), New("b1")
		require.NoError(t, a.AddChild(a1))
		require.NoError(t, b.AddChild(b1))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = a1.AddChild(b) }()
		go func() { defer wg.Done(); errs[1] = b1.AddChild(a) }()
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrCycle)
				failed++
			}
		}
		require.Equal(t, 1, failed)
		assert.Same(t, a.link.Load(), b.link.Load())
	}
}

func TestNilArguments(t *testing.T) {
	n := New("n")
	var nilNode *Node

	assert.ErrorIs(t, n.AddChild(nil), ErrNilNode)
	assert.ErrorIs(t, nilNode.AddChild(n), ErrNilNode)
	assert.ErrorIs(t, n.InsertChildBefore(nil, n), ErrNilNode)
	assert.ErrorIs(t, n.InsertChildBefore(New("x"), nil), ErrNilNode)
	assert.ErrorIs(t, n.RemoveChild(nil), ErrNilNode)
	assert.ErrorIs(t, nilNode.SetAttribute("a", "b"), ErrNilNode)
	assert.ErrorIs(t, n.SetAttribute("", "b"), ErrEmptyAttribute)
}

func TestInsertChildBefore(t *testing.T) {
	parent := New("list")
	first := New("first")
	last := New("last")
	require.NoError(t, parent.AddChild(first))
	require.NoError(t, parent.AddChild(last))

	mid := New("mid")
	require.NoError(t, parent.InsertChildBefore(mid, last))
	assert.Equal(t, []*Node{first, mid, last}, parent.Children())
	assert.Same(t, parent, mid.Parent())

	stranger := New("stranger")
	orphan := New("orphan")
	assert.ErrorIs(t, parent.InsertChildBefore(orphan, stranger), ErrNotChild)
	assert.Nil(t, orphan.Parent())

	assert.ErrorIs(t, parent.InsertChildBefore(first, last), ErrAlreadyOwned)
	assert.Len(t, parent.Children(), 3)
}

func TestRemoveChild(t *testing.T) {
	parent := New("p")
	child := New("c")
	assert.ErrorIs(t, parent.RemoveChild(child), ErrNotChild)

	require.NoError(t, parent.AddChild(child))
	require.NoError(t, parent.RemoveChild(child))
	assert.Nil(t, child.Parent())
	assert.Empty(t, parent.Children())
	assert.ErrorIs(t, parent.RemoveChild(child), ErrNotChild)
}

func TestSnapshots(t *testing.T) {
	n := New("n")
	require.NoError(t, n.SetAttribute("k", "v1"))
	child := New("c")
	require.NoError(t, n.AddChild(child))

	attrs := n.Attributes()
	children := n.Children()

	require.NoError(t, n.SetAttribute("k", "v2"))
	require.NoError(t, n.AddChild(New("d")))
	attrs["extra"] = "x"

	assert.Equal(t, "v1", attrs["k"])
	assert.Len(t, children, 1)
	v, ok := n.Attribute("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	_, ok = n.Attribute("extra")
	assert.False(t, ok)
	assert.Len(t, n.Children(), 2)
}

func TestAttributes(t *testing.T) {
	n := New("n")
	require.NoError(t, n.SetAttribute("role", "function"))
	assert.Equal(t, "function", Role(n))

	assert.True(t, n.RemoveAttribute("role"))
	assert.False(t, n.RemoveAttribute("role"))
	assert.Equal(t, "", Role(n))
}

func TestLeaf(t *testing.T) {
	tok := token.Token{Kind: token.Identifier, Text: "offset", Pos: token.Position{Line: 2, Column: 5, Offset: 9}, Len: 6}

	leaf := NewLeaf(tok)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, "identifier", leaf.Name())
	assert.Equal(t, "offset", leaf.Text())
	line, _ := leaf.Attribute(AttrLine)
	col, _ := leaf.Attribute(AttrColumn)
	assert.Equal(t, "2", line)
	assert.Equal(t, "5", col)

	promoted := NewLeafNamed(token.Keyword.String(), tok)
	assert.Equal(t, "keyword", promoted.Name())
	kind, ok := promoted.Kind()
	assert.True(t, ok)
	assert.Equal(t, token.Identifier, kind)

	_, ok = New("select_statement").Kind()
	assert.False(t, ok)
}

// Readers see either the old or the new state, and a listed child always
// reports the listing node as its parent.
func TestConcurrentReadersAndWriters(t *testing.T) {
	root := New("root")
	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c := New(fmt.Sprintf("c%d_%d", w, i))
				if err := root.AddChild(c); err != nil {
					t.Errorf("add: %v", err)
					return
				}
				_ = c.SetAttribute("i", fmt.Sprint(i))
				if i%2 == 0 {
					if err := root.RemoveChild(c); err != nil {
						t.Errorf("remove: %v", err)
						return
					}
				}
			}
		}(w)
	}
	for r := 0; r < workers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for _, c := range root.Children() {
					if p := c.Parent(); p != nil && p != root {
						t.Errorf("child %s has foreign parent", c.Name())
					}
					_ = c.Attributes()
				}
			}
		}()
	}
	wg.Wait()

	children := root.Children()
	assert.Len(t, children, workers*iterations/2)
	for _, c := range children {
		assert.Same(t, root, c.Parent())
	}
}

func TestWalkAndText(t *testing.T) {
	root := New(NodeRoot)
	stmt := New(NodeSelectStatement)
	require.NoError(t, root.AddChild(stmt))
	for _, tok := range []token.Token{
		{Kind: token.Keyword, Text: "select"},
		{Kind: token.Whitespace, Text: " "},
		{Kind: token.NumericLiteral, Text: "1"},
	} {
		require.NoError(t, stmt.AddChild(NewLeaf(tok)))
	}

	assert.Equal(t, "select 1", Text(root))
	assert.Len(t, Leaves(root), 3)
	assert.Len(t, Significant(stmt), 2)
	assert.Equal(t, "select", FirstLeaf(root).Text())
	assert.False(t, ContainsError(root))

	require.NoError(t, stmt.AddChild(New(NodeError)))
	assert.True(t, ContainsError(root))
}

func TestSeverity(t *testing.T) {
	for _, s := range []Severity{SeverityInfo, SeverityWarning, SeverityError} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Severity
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	_, err := ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestParseTreeErrors(t *testing.T) {
	pt := &ParseTree{Root: New(NodeRoot)}
	assert.False(t, pt.HasErrors())
	_, ok := pt.FirstError()
	assert.False(t, ok)

	pt.Errors = append(pt.Errors, ParseError{Message: "boom", Line: 1, Column: 3, Severity: SeverityError})
	assert.True(t, pt.HasErrors())
	first, ok := pt.FirstError()
	assert.True(t, ok)
	assert.Equal(t, "line 1, column 3: boom", first.Error())
}
