package format

import (
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// list writes comma separated items. Expanded lists put every item after
// the first on its own line with a leading or trailing comma; inline lists
// wrap softly at MaxLineWidth.
func (p *Printer) list(n *tree.Node, expand bool) {
	expand = expand && p.inline == 0
	first := true
	for _, c := range n.Children() {
		switch {
		case isPunct(c, ","):
			p.comma(c, expand)
		case c.IsLeaf():
			p.leaf(c)
		default:
			if !first && !expand {
				p.softWrap(c)
			}
			p.node(c)
			first = false
		}
	}
}

func (p *Printer) comma(c *tree.Node, expand bool) {
	switch {
	case !expand || p.inline > 0:
		p.leaf(c)
	case p.opts.TrailingCommas:
		p.leaf(c)
		p.br(1)
	default:
		p.br(1)
		p.leaf(c)
		if p.opts.SpaceAfterExpandedComma {
			p.pad = 1
		} else {
			p.pad = 0
		}
	}
}

// parenBlock writes ( items ) with the items one level below base and the
// parentheses at base:
//
//	(
//		a
//		,b
//	)
func (p *Printer) parenBlock(n *tree.Node, base int, expand bool) {
	savedDepth, savedAlign := p.depth, p.align
	p.depth = base
	p.align = 0
	if n.Name() == tree.NodeColumnDefinitions && p.opts.AlignColumnDefinitions {
		p.align = p.columnNameWidth(n)
	}

	for _, c := range n.Children() {
		switch {
		case isPunct(c, "("):
			p.leaf(c)
			p.depth = base + 1
			p.br(1)
		case isPunct(c, ")"):
			p.depth = base
			p.br(1)
			p.leaf(c)
		case c.Name() == tree.NodeList:
			p.list(c, expand)
		default:
			p.node(c)
		}
	}
	p.depth, p.align = savedDepth, savedAlign
}

// columnNameWidth returns the widest column name of a column list.
func (p *Printer) columnNameWidth(n *tree.Node) int {
	width := 0
	list := childNamed(n, tree.NodeList)
	if list == nil {
		return 0
	}
	for _, item := range items(list) {
		if item.Name() != tree.NodeColumnDefinition {
			continue
		}
		if name := tree.FirstLeaf(item); name != nil {
			width = max(width, p.width(p.render(name, leafKind(name))))
		}
	}
	return width
}

// columnDefinition pads the column name so data types line up.
func (p *Printer) columnDefinition(n *tree.Node) {
	named := false
	for _, c := range n.Children() {
		p.node(c)
		if named || !c.IsLeaf() || tree.IsTrivia(c) {
			continue
		}
		named = true
		if p.align > 0 {
			p.pad = p.align - p.width(p.render(c, leafKind(c))) + 1
		}
	}
}

// condition writes a search condition. The operands of a top-level AND or
// OR chain each start a new line.
func (p *Printer) condition(n *tree.Node) {
	op, _ := n.Attribute(tree.AttrOperator)
	if !p.opts.ExpandBooleanExpressions || p.inline > 0 ||
		n.Name() != tree.NodeBinaryExpression || (op != "AND" && op != "OR") {
		p.node(n)
		return
	}
	p.chain(n, op)
}

func (p *Printer) chain(n *tree.Node, op string) {
	for _, c := range n.Children() {
		switch {
		case c.Name() == tree.NodeBinaryExpression && operator(c) == op:
			p.chain(c, op)
		case isKeyword(c, op):
			p.br(1)
			p.leaf(c)
		default:
			p.node(c)
		}
	}
}

func operator(n *tree.Node) string {
	op, _ := n.Attribute(tree.AttrOperator)
	return op
}

func (p *Printer) binary(n *tree.Node) {
	seenOp := false
	for _, c := range n.Children() {
		if c.IsLeaf() {
			p.leaf(c)
			seenOp = seenOp || !tree.IsTrivia(c)
			continue
		}
		if seenOp {
			p.softWrap(c)
		}
		p.node(c)
	}
}

func (p *Printer) caseExpr(n *tree.Node) {
	if !p.opts.ExpandCaseStatements || p.inline > 0 {
		p.children(n)
		return
	}
	for _, c := range n.Children() {
		switch {
		case c.Name() == tree.NodeCaseWhen, c.Name() == tree.NodeCaseElse:
			p.indent()
			p.br(1)
			p.caseBranch(c)
			p.dedent()
		case isKeyword(c, "END"):
			p.br(1)
			p.leaf(c)
		default:
			p.node(c)
		}
	}
}

func (p *Printer) caseBranch(n *tree.Node) {
	cond := n.Name() == tree.NodeCaseWhen && p.opts.ExpandCaseStatements && p.inline == 0
	for _, c := range n.Children() {
		switch {
		case c.IsLeaf():
			p.leaf(c)
		case cond:
			p.indent()
			p.condition(c)
			p.dedent()
			cond = false
		default:
			p.node(c)
		}
	}
}

func (p *Printer) between(n *tree.Node) {
	expanded := false
	for _, c := range n.Children() {
		if isKeyword(c, "AND") && p.opts.ExpandBetweenConditions && p.inline == 0 {
			p.indent()
			p.br(1)
			expanded = true
		}
		p.node(c)
	}
	if expanded {
		p.dedent()
	}
}

func (p *Printer) inExpr(n *tree.Node) {
	for _, c := range n.Children() {
		if c.Name() == tree.NodeParenList && p.expandIn(c) {
			p.parenBlock(c, p.depth, true)
			continue
		}
		p.node(c)
	}
}

// expandIn reports whether an IN list is long enough to go one item per line.
func (p *Printer) expandIn(n *tree.Node) bool {
	if !p.opts.ExpandInLists || p.inline > 0 {
		return false
	}
	list := childNamed(n, tree.NodeList)
	return list != nil && len(items(list)) > p.opts.ExpandInListsThreshold
}

// subquery writes ( query ) with the query indented on its own lines.
func (p *Printer) subquery(n *tree.Node) {
	for _, c := range n.Children() {
		switch {
		case isPunct(c, "("):
			p.leaf(c)
			p.indent()
			p.br(1)
		case isPunct(c, ")"):
			p.dedent()
			p.br(1)
			p.leaf(c)
		default:
			p.node(c)
		}
	}
}
