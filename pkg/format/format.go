package format

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Format renders pt with opts. It is pure: the same tree and options always
// produce the same text, and formatting that text again yields it
// unchanged. A tree with diagnostics is returned verbatim.
func Format(pt *tree.ParseTree, opts Options) string {
	if pt == nil || pt.Root == nil {
		return ""
	}
	if pt.HasErrors() || tree.ContainsError(pt.Root) {
		return tree.Text(pt.Root)
	}

	p := newPrinter(opts)
	p.root(pt.Root)
	return p.String()
}

// Formatter adapts Format to an interface value.
type Formatter struct{}

// Format implements the tree formatting stage of the pipeline.
func (Formatter) Format(pt *tree.ParseTree, opts Options) string {
	return Format(pt, opts)
}

// node dispatches on the grammar construct.
func (p *Printer) node(n *tree.Node) {
	if n.IsLeaf() {
		p.leaf(n)
		return
	}

	switch name := n.Name(); name {
	case tree.NodeSelectStatement, tree.NodeQuery, tree.NodeSelectQuery:
		p.query(n)
	case tree.NodeWithClause:
		p.withClause(n)
	case tree.NodeFromClause:
		p.fromClause(n)
	case tree.NodeJoin:
		p.join(n)
	case tree.NodeSubquery:
		p.subquery(n)
	case tree.NodeCreateViewStatement:
		p.createView(n)
	case tree.NodeCreateRoutineStatement:
		p.routine(n)
	case tree.NodeIfStatement, tree.NodeWhileStatement:
		p.conditional(n)
	case tree.NodeBlockStatement:
		p.block(n)
	case tree.NodeOtherStatement:
		p.otherStatement(n)
	case tree.NodeColumnDefinitions:
		p.parenBlock(n, p.depth, p.opts.ExpandCommaLists)
	case tree.NodeColumnDefinition:
		p.columnDefinition(n)
	case tree.NodeCaseExpression:
		p.caseExpr(n)
	case tree.NodeCaseWhen, tree.NodeCaseElse:
		p.caseBranch(n)
	case tree.NodeBinaryExpression:
		p.binary(n)
	case tree.NodeBetweenExpression:
		p.between(n)
	case tree.NodeInExpression:
		p.inExpr(n)
	case tree.NodeOverClause:
		p.inline++
		p.children(n)
		p.inline--
	case tree.NodeList:
		p.list(n, false)
	default:
		switch {
		case tree.IsClause(name):
			p.clause(n)
		case tree.IsStatement(name):
			p.statement(n)
		default:
			p.children(n)
		}
	}
}

func (p *Printer) children(n *tree.Node) {
	for _, c := range n.Children() {
		p.node(c)
	}
}

func isKeyword(n *tree.Node, words ...string) bool {
	if !n.IsLeaf() || leafKind(n) != token.Keyword {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(n.Text(), w) {
			return true
		}
	}
	return false
}

func isPunct(n *tree.Node, s string) bool {
	return n.IsLeaf() && tree.HasKind(n, token.Punctuation) && n.Text() == s
}

// items returns the non-leaf children of n.
func items(n *tree.Node) []*tree.Node {
	var out []*tree.Node
	for _, c := range n.Children() {
		if !c.IsLeaf() {
			out = append(out, c)
		}
	}
	return out
}

func childNamed(n *tree.Node, name string) *tree.Node {
	for _, c := range n.Children() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
