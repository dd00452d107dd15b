package parser

import (
	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Query parsing.
//
//	query        → [WITH cte {, cte}] term {set_op term} [ORDER BY order_list]
//	               [OFFSET expr ROW[S] [FETCH FIRST|NEXT expr ROW[S] ONLY]]
//	               [OPTION (…)]
//	cte          → name [(columns)] AS (query)
//	select_core  → SELECT [ALL|DISTINCT] [TOP …] select_list [INTO name]
//	               [FROM from_list] [WHERE expr] [GROUP BY expr_list]
//	               [HAVING expr]
//	from_list    → table_source {join} {, table_source {join}}
//	join         → [INNER|LEFT [OUTER]|RIGHT [OUTER]|FULL [OUTER]] JOIN
//	               table_source ON expr
//	             | CROSS JOIN table_source | (CROSS|OUTER) APPLY table_source

// aliasStopWords are non-reserved words that never act as an implicit alias.
var aliasStopWords = []string{"OFFSET", "ROWS", "ROW", "NEXT", "ONLY", "APPLY", "THROW", "WINDOW"}

func isAliasStopWord(tok token.Token) bool {
	for _, w := range aliasStopWords {
		if tok.IsWord(w) {
			return true
		}
	}
	return false
}

// parseQuery parses a full query into n.
func (p *Parser) parseQuery(n *tree.Node) {
	if p.isKeyword("WITH") {
		with := p.open(n, tree.NodeWithClause)
		p.consume(with)
		p.parseList(with, p.parseCTE)
	}

	p.parseQueryTerm(n)
	for p.isKeyword("UNION") || p.isKeyword("EXCEPT") || p.isKeyword("INTERSECT") {
		op := p.open(n, tree.NodeSetOperator)
		p.consume(op)
		p.acceptKeyword(op, "ALL")
		p.parseQueryTerm(n)
	}

	if p.isKeyword("ORDER") {
		p.parseOrderBy(n)
	}
	if p.isWord("OFFSET") {
		p.parseOffset(n)
	}
	p.parseOption(n)
}

func (p *Parser) parseCTE(parent *tree.Node) {
	n := p.open(parent, tree.NodeCTE)
	if !p.cur().Kind.IsIdentifier() {
		p.fail("common table expression name")
	}
	p.consume(n)
	if p.isPunct("(") {
		p.parseParenList(n, p.nameItem)
	}
	p.expectKeyword(n, "AS")
	p.parseSubquery(n)
}

func (p *Parser) parseQueryTerm(n *tree.Node) {
	switch {
	case p.isKeyword("SELECT"):
		p.parseSelectCore(n)
	case p.isPunct("("):
		p.parseSubquery(n)
	default:
		p.fail("SELECT")
	}
}

// parseSubquery parses ( query ).
func (p *Parser) parseSubquery(parent *tree.Node) *tree.Node {
	n := p.open(parent, tree.NodeSubquery)
	p.expectPunct(n, "(")
	p.parseQuery(p.open(n, tree.NodeQuery))
	p.expectPunct(n, ")")
	return n
}

func (p *Parser) parseSelectCore(parent *tree.Node) {
	n := p.open(parent, tree.NodeSelectQuery)

	sel := p.open(n, tree.NodeSelectClause)
	p.expectKeyword(sel, "SELECT")
	if !p.acceptKeyword(sel, "ALL") {
		p.acceptKeyword(sel, "DISTINCT")
	}
	p.parseTop(sel)
	p.parseList(sel, p.parseSelectItem)

	if p.isKeyword("INTO") {
		into := p.open(n, tree.NodeIntoClause)
		p.consume(into)
		p.parseObjectName(into)
	}
	if p.isKeyword("FROM") {
		p.parseFrom(n)
	}
	if p.isKeyword("WHERE") {
		p.parseWhere(n)
	}
	if p.isKeyword("GROUP") {
		group := p.open(n, tree.NodeGroupByClause)
		p.consume(group)
		p.expectKeyword(group, "BY")
		p.parseList(group, p.exprItem)
	}
	if p.isKeyword("HAVING") {
		having := p.open(n, tree.NodeHavingClause)
		p.consume(having)
		p.parseExpr(having)
	}
}

// parseTop parses TOP (expr) [PERCENT] [WITH TIES] or the legacy TOP n.
func (p *Parser) parseTop(parent *tree.Node) {
	if !p.isKeyword("TOP") {
		return
	}
	n := p.open(parent, tree.NodeTopClause)
	p.consume(n)
	if p.isPunct("(") {
		p.parsePrimary(n)
	} else if p.cur().Kind == token.NumericLiteral {
		lit := p.open(n, tree.NodeLiteral)
		p.consume(lit)
	} else {
		p.fail("TOP count")
	}
	p.acceptKeyword(n, "PERCENT")
	if p.isKeyword("WITH") && p.peek(1).IsWord("TIES") {
		p.consume(n)
		p.consumeKeyword(n)
	}
}

func (p *Parser) parseSelectItem(parent *tree.Node) {
	n := p.open(parent, tree.NodeSelectItem)
	p.parseExpr(n)
	p.parseAlias(n)
}

// parseAlias parses [AS] alias after a select item or table source and
// reports whether an alias was found.
func (p *Parser) parseAlias(n *tree.Node) bool {
	if p.acceptKeyword(n, "AS") {
		tok := p.cur()
		if !tok.Kind.IsIdentifier() && tok.Kind != token.StringLiteral {
			p.fail("alias")
		}
		p.take(n, "", tree.RoleAlias)
		return true
	}
	tok := p.cur()
	switch {
	case tok.Kind == token.QuotedIdentifier, tok.Kind == token.BracketedIdentifier, tok.Kind == token.StringLiteral:
		p.take(n, "", tree.RoleAlias)
		return true
	case tok.Kind == token.Identifier && tok.Text[0] != '@' && !isAliasStopWord(tok) && !isIdentifierStatement(tok):
		p.take(n, "", tree.RoleAlias)
		return true
	}
	return false
}

func (p *Parser) parseWhere(parent *tree.Node) {
	n := p.open(parent, tree.NodeWhereClause)
	p.consume(n)
	p.parseExpr(n)
}

// ---------- FROM ----------

func (p *Parser) parseFrom(parent *tree.Node) {
	n := p.open(parent, tree.NodeFromClause)
	p.consume(n)
	list := p.open(n, tree.NodeList)
	for {
		p.parseTableSource(list)
		for p.parseJoin(list) {
		}
		if !p.acceptPunct(list, ",") {
			return
		}
	}
}

func (p *Parser) parseTableSource(parent *tree.Node) {
	n := p.open(parent, tree.NodeTableSource)
	tok := p.cur()
	switch {
	case tok.IsPunct("(") && p.startsQuery(1):
		p.parseSubquery(n)
	case tok.IsPunct("("):
		paren := p.open(n, tree.NodeParenExpression)
		p.consume(paren)
		if p.isKeyword("VALUES") {
			values := p.open(paren, tree.NodeValuesClause)
			p.consume(values)
			p.parseList(values, func(parent *tree.Node) {
				p.parseParenList(parent, p.exprItem)
			})
		} else {
			list := p.open(paren, tree.NodeList)
			p.parseTableSource(list)
			for p.parseJoin(list) {
			}
		}
		p.expectPunct(paren, ")")
	case tok.Kind.IsIdentifier():
		name := p.parseObjectName(n)
		if p.isPunct("(") {
			p.parseCall(n, name)
		}
	case tok.Kind == token.Keyword && p.peek(1).IsPunct("("):
		// OPENQUERY, OPENROWSET, OPENJSON-style rowset functions
		name := p.open(n, tree.NodeObjectName)
		p.take(name, "", tree.RoleFunction)
		p.parseCall(n, name)
	default:
		p.fail("table name")
	}

	if p.parseAlias(n) && p.isPunct("(") {
		p.parseParenList(n, p.nameItem)
	}
	p.parseTableHints(n)
}

// parseTableHints parses WITH (hint, …).
func (p *Parser) parseTableHints(parent *tree.Node) {
	if !p.isKeyword("WITH") || !p.peek(1).IsPunct("(") {
		return
	}
	n := p.open(parent, tree.NodeTableHint)
	p.consume(n)
	p.parseParenList(n, p.exprItem)
}

// parseJoin parses one join into list and reports whether one was found.
func (p *Parser) parseJoin(list *tree.Node) bool {
	tok := p.cur()
	switch {
	case tok.IsKeyword("JOIN"), tok.IsKeyword("INNER"), tok.IsKeyword("LEFT"),
		tok.IsKeyword("RIGHT"), tok.IsKeyword("FULL"):
	case tok.IsKeyword("CROSS"), tok.IsKeyword("OUTER") && p.peek(1).IsWord("APPLY"):
	default:
		return false
	}

	n := p.open(list, tree.NodeJoin)
	switch {
	case p.isKeyword("CROSS") || p.isKeyword("OUTER"):
		p.consume(n)
		if p.acceptWord(n, "APPLY") {
			p.parseTableSource(n)
			return true
		}
		p.expectKeyword(n, "JOIN")
		p.parseTableSource(n)
		return true
	case p.isKeyword("INNER"):
		p.consume(n)
	case p.isKeyword("LEFT"), p.isKeyword("RIGHT"), p.isKeyword("FULL"):
		p.consume(n)
		p.acceptKeyword(n, "OUTER")
	}
	for _, hint := range []string{"LOOP", "HASH", "MERGE", "REMOTE"} {
		if p.cur().IsWord(hint) && p.peek(1).IsKeyword("JOIN") {
			p.consumeKeyword(n)
		}
	}
	p.expectKeyword(n, "JOIN")
	p.parseTableSource(n)

	cond := p.open(n, tree.NodeJoinCondition)
	p.expectKeyword(cond, "ON")
	p.parseExpr(cond)
	return true
}

// ---------- ORDER BY / OFFSET / OPTION ----------

func (p *Parser) parseOrderBy(parent *tree.Node) {
	n := p.open(parent, tree.NodeOrderByClause)
	p.expectKeyword(n, "ORDER")
	p.expectKeyword(n, "BY")
	p.parseList(n, p.parseOrderItem)
}

func (p *Parser) parseOrderItem(parent *tree.Node) {
	n := p.open(parent, tree.NodeOrderItem)
	p.parseExpr(n)
	if !p.acceptKeyword(n, "ASC") {
		p.acceptKeyword(n, "DESC")
	}
}

// parseOffset parses OFFSET n ROWS [FETCH FIRST|NEXT m ROWS ONLY].
func (p *Parser) parseOffset(parent *tree.Node) {
	n := p.open(parent, tree.NodeOffsetClause)
	p.consumeKeyword(n)
	p.parseExpr(n)
	if !p.acceptWord(n, "ROWS") {
		p.expectWord(n, "ROW")
	}
	if !p.acceptKeyword(n, "FETCH") {
		return
	}
	if !p.acceptWord(n, "NEXT") {
		p.expectWord(n, "FIRST")
	}
	p.parseExpr(n)
	if !p.acceptWord(n, "ROWS") {
		p.expectWord(n, "ROW")
	}
	p.expectWord(n, "ONLY")
}

// parseOption parses a query hint clause OPTION (hint, …).
func (p *Parser) parseOption(parent *tree.Node) {
	if !p.isKeyword("OPTION") {
		return
	}
	n := p.open(parent, tree.NodeOptionClause)
	p.consume(n)
	paren := p.open(n, tree.NodeParenList)
	p.expectPunct(paren, "(")
	p.parseTail(paren)
	p.expectPunct(paren, ")")
}

// ---------- Lists ----------

// parseList parses item {, item} into a new list node under parent.
func (p *Parser) parseList(parent *tree.Node, item func(*tree.Node)) *tree.Node {
	list := p.open(parent, tree.NodeList)
	item(list)
	for p.acceptPunct(list, ",") {
		item(list)
	}
	return list
}

// parseParenList parses ( item {, item} ).
func (p *Parser) parseParenList(parent *tree.Node, item func(*tree.Node)) *tree.Node {
	n := p.open(parent, tree.NodeParenList)
	p.expectPunct(n, "(")
	p.parseList(n, item)
	p.expectPunct(n, ")")
	return n
}
