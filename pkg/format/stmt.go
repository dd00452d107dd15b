package format

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// statementBreaks is the break count between statements. Statements always
// start on a new line so that option lists such as SET NOCOUNT ON cannot
// absorb the next statement when the output is parsed again.
func (p *Printer) statementBreaks() int {
	return max(p.opts.NewStatementLineBreaks, 1)
}

func (p *Printer) root(n *tree.Node) {
	seen := false
	for _, c := range n.Children() {
		switch {
		case !c.IsLeaf():
			if seen {
				p.br(p.statementBreaks())
			}
			p.node(c)
			seen = true
		case tree.HasKind(c, token.BatchSeparator):
			p.forceBr(1)
			p.leaf(c)
			p.forceBr(1)
		default:
			p.leaf(c)
		}
	}
}

// statement lays out statements made of clauses: each clause after the
// first starts a new line at the statement depth.
func (p *Printer) statement(n *tree.Node) {
	started, indented := false, false
	for _, c := range n.Children() {
		switch name := c.Name(); {
		case c.IsLeaf():
			p.leaf(c)
		case tree.IsClause(name), name == tree.NodeQuery, tree.IsStatement(name):
			if started {
				p.br(p.opts.NewClauseLineBreaks)
			}
			p.node(c)
		case name == tree.NodeList:
			if !indented {
				p.indent()
				indented = true
			}
			p.list(c, p.opts.ExpandCommaLists && n.Name() == tree.NodeDeclareStatement)
		default:
			p.node(c)
		}
		if !tree.IsTrivia(c) {
			started = true
		}
	}
	if indented {
		p.dedent()
	}
}

// query lays out a query or SELECT core: the first part stays on the
// current line, later clauses and set operators start new lines.
func (p *Printer) query(n *tree.Node) {
	started := false
	for _, c := range n.Children() {
		if c.IsLeaf() {
			p.leaf(c)
			continue
		}
		if started {
			p.br(p.opts.NewClauseLineBreaks)
		}
		p.node(c)
		started = true
	}
}

// clause writes the clause keywords, then indents its content so that
// continuation lines sit one level deeper than the keyword.
func (p *Printer) clause(n *tree.Node) {
	base := p.depth
	indented := false
	for _, c := range n.Children() {
		if c.IsLeaf() {
			p.leaf(c)
			continue
		}
		if p.isBlock(n, c) {
			p.parenBlock(c, base, p.opts.ExpandCommaLists)
			continue
		}
		if !indented {
			p.indent()
			indented = true
		}
		switch {
		case c.Name() == tree.NodeList:
			p.list(c, p.opts.ExpandCommaLists)
		case n.Name() == tree.NodeWhereClause, n.Name() == tree.NodeHavingClause:
			p.condition(c)
		default:
			p.node(c)
		}
	}
	if indented {
		p.dedent()
	}
}

// isBlock reports whether child of clause is a parenthesized list laid out
// one item per line, like a column list.
func (p *Printer) isBlock(clause, child *tree.Node) bool {
	switch child.Name() {
	case tree.NodeColumnDefinitions:
		return true
	case tree.NodeParenList:
		return clause.Name() == tree.NodeInsertClause && p.opts.ExpandCommaLists && p.inline == 0
	}
	return false
}

// withClause keeps common table expressions at the statement depth.
func (p *Printer) withClause(n *tree.Node) {
	for _, c := range n.Children() {
		if c.Name() == tree.NodeList {
			p.list(c, p.opts.ExpandCommaLists)
			continue
		}
		p.node(c)
	}
}

func (p *Printer) fromClause(n *tree.Node) {
	for _, c := range n.Children() {
		if c.Name() == tree.NodeList {
			p.sources(c)
			continue
		}
		p.node(c)
	}
}

// sources writes the table sources of a FROM clause. Joins start lines at
// the clause depth.
func (p *Printer) sources(list *tree.Node) {
	p.indent()
	for _, c := range list.Children() {
		switch {
		case c.Name() == tree.NodeJoin:
			p.dedent()
			p.br(1)
			p.join(c)
			p.indent()
		case isPunct(c, ","):
			p.comma(c, p.opts.ExpandCommaLists)
		default:
			p.node(c)
		}
	}
	p.dedent()
}

var joinHints = []string{"LOOP", "HASH", "MERGE", "REMOTE"}

func (p *Printer) join(n *tree.Node) {
	kids := n.Children()
	leading := true
	for i, c := range kids {
		switch {
		case c.IsLeaf() && leafKind(c) == token.Keyword:
			standardize := p.opts.KeywordStandardization && leading
			if standardize && (isKeyword(c, "JOIN") || isKeyword(c, joinHints...)) {
				p.keyword("INNER")
			}
			p.leaf(c)
			if standardize && isKeyword(c, "LEFT", "RIGHT", "FULL") && !nextIsKeyword(kids[i+1:], "OUTER") {
				p.keyword("OUTER")
			}
			leading = false
		case c.Name() == tree.NodeJoinCondition:
			if p.opts.BreakJoinOnSections {
				p.indent()
				p.br(1)
				p.joinCondition(c)
				p.dedent()
			} else {
				p.joinCondition(c)
			}
		default:
			p.node(c)
		}
	}
}

func nextIsKeyword(nodes []*tree.Node, word string) bool {
	for _, n := range nodes {
		if tree.IsTrivia(n) {
			continue
		}
		return isKeyword(n, word)
	}
	return false
}

func (p *Printer) joinCondition(n *tree.Node) {
	for _, c := range n.Children() {
		if c.IsLeaf() {
			p.leaf(c)
			continue
		}
		p.indent()
		p.condition(c)
		p.dedent()
	}
}

func (p *Printer) createView(n *tree.Node) {
	for _, c := range n.Children() {
		switch {
		case isKeyword(c, "AS"):
			p.br(1)
			p.leaf(c)
		case c.Name() == tree.NodeQuery:
			p.br(1)
			p.node(c)
		default:
			p.node(c)
		}
	}
}

// routine lays out CREATE/ALTER PROCEDURE, FUNCTION and TRIGGER.
func (p *Printer) routine(n *tree.Node) {
	kids := n.Children()
	as := bodyStart(kids)
	first := true
	for i, c := range kids {
		switch {
		case c.Name() == tree.NodeParameterList:
			p.parameters(c)
		case c.Name() == tree.NodeReturnsClause:
			p.br(1)
			p.node(c)
		case i == as, i < as && isKeyword(c, "WITH"):
			p.br(1)
			p.leaf(c)
		case c.IsLeaf(), c.Name() == tree.NodeRoutineHeader:
			p.node(c)
		default:
			if first {
				p.br(1)
			} else {
				p.br(p.statementBreaks())
			}
			p.node(c)
			first = false
		}
	}
}

// bodyStart returns the index of the AS that introduces a routine body.
// EXECUTE AS options may contain earlier AS keywords.
func bodyStart(kids []*tree.Node) int {
	as := -1
	for i, c := range kids {
		if !c.IsLeaf() && tree.IsStatement(c.Name()) {
			break
		}
		if isKeyword(c, "AS") {
			as = i
		}
	}
	return as
}

// parameters puts each routine parameter on its own line.
func (p *Printer) parameters(n *tree.Node) {
	list := childNamed(n, tree.NodeList)
	paren := false
	for _, c := range n.Children() {
		switch {
		case isPunct(c, "("):
			paren = true
			p.pad = 0
			p.leaf(c)
			if list != nil {
				p.indent()
				p.br(1)
			}
		case isPunct(c, ")"):
			if list != nil {
				p.dedent()
				p.br(1)
			}
			p.leaf(c)
		case c == list:
			if !paren {
				p.indent()
				p.br(1)
			}
			p.list(c, p.opts.ExpandCommaLists)
			if !paren {
				p.dedent()
			}
		default:
			p.node(c)
		}
	}
}

// conditional lays out IF and WHILE.
func (p *Printer) conditional(n *tree.Node) {
	cond := true
	for _, c := range n.Children() {
		switch {
		case isKeyword(c, "ELSE"):
			p.br(1)
			p.leaf(c)
		case c.IsLeaf():
			p.leaf(c)
		case cond:
			p.indent()
			p.condition(c)
			p.dedent()
			cond = false
		default:
			p.body(c)
		}
	}
}

// body writes the statement governed by IF, ELSE or WHILE. A BEGIN … END
// block stays at the depth of the keyword.
func (p *Printer) body(n *tree.Node) {
	if n.Name() == tree.NodeBlockStatement {
		p.br(1)
		p.node(n)
		return
	}
	p.indent()
	p.br(1)
	p.node(n)
	p.dedent()
}

func (p *Printer) block(n *tree.Node) {
	inBody := false
	for _, c := range n.Children() {
		switch {
		case !c.IsLeaf():
			if !inBody {
				p.indent()
				inBody = true
			}
			p.br(1)
			p.node(c)
		case isKeyword(c, "END"):
			if inBody {
				p.dedent()
				inBody = false
			}
			p.br(1)
			p.leaf(c)
		default:
			p.leaf(c)
		}
	}
	if inBody {
		p.dedent()
	}
}

// otherStatement keeps the line structure of statements without a
// dedicated grammar: a token that started a line in the source starts an
// indented line in the output, everything else is joined with spaces.
func (p *Printer) otherStatement(n *tree.Node) {
	newline, started, indented := false, false, false
	for _, c := range n.Children() {
		switch {
		case tree.HasKind(c, token.Whitespace):
			if strings.Contains(c.Text(), "\n") {
				newline = true
			}
			continue
		case tree.IsComment(c):
			p.leaf(c)
			continue
		}
		if newline && started {
			if !indented {
				p.indent()
				indented = true
			}
			p.br(1)
		}
		p.node(c)
		started = true
		newline = false
	}
	if indented {
		p.dedent()
	}
}
