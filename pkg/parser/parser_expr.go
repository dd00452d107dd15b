package parser

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Expression parsing uses precedence climbing (Pratt parsing).
//
// Precedence levels, loosest first:
//
//	precOr         = 1  OR
//	precAnd        = 2  AND
//	precNot        = 3  NOT (prefix)
//	precComparison = 4  = <> != < > <= >= !< !> LIKE IN BETWEEN IS
//	precAdditive   = 5  + - & | ^
//	precMultiply   = 6  * / %
//	precUnary      = 7  - + ~ (prefix)
//
// Nodes are attached to their parent as soon as they are created so that a
// syntax error never loses consumed tokens. A binary operator re-parents the
// already-parsed left operand under the new operator node.
const (
	precNone = iota
	precOr
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiply
	precUnary
)

// keywordFunctions are reserved words that are called like functions.
var keywordFunctions = []string{"COALESCE", "NULLIF", "LEFT", "RIGHT", "CONVERT", "TRY_CONVERT", "IDENTITY", "USER"}

// niladicKeywords are reserved words that evaluate to a value.
var niladicKeywords = []string{"CURRENT_TIMESTAMP", "CURRENT_USER", "CURRENT_DATE", "CURRENT_TIME", "SESSION_USER", "SYSTEM_USER", "USER", "NULL", "DEFAULT"}

// exprItem adapts parseExpr to list items.
func (p *Parser) exprItem(parent *tree.Node) {
	p.parseExpr(parent)
}

// nameItem adapts parseObjectName to list items.
func (p *Parser) nameItem(parent *tree.Node) {
	p.parseObjectName(parent)
}

// parseExpr parses an expression as the last child of parent.
func (p *Parser) parseExpr(parent *tree.Node) *tree.Node {
	return p.parseBinary(parent, precOr)
}

func (p *Parser) parseBinary(parent *tree.Node, minPrec int) *tree.Node {
	left := p.parsePrefix(parent)
	for {
		prec := p.infixPrecedence()
		if prec == precNone || prec < minPrec {
			return left
		}
		left = p.parseInfix(parent, left, prec)
	}
}

func (p *Parser) parsePrefix(parent *tree.Node) *tree.Node {
	tok := p.cur()
	switch {
	case tok.IsKeyword("NOT"):
		n := p.open(parent, tree.NodeUnaryExpression)
		p.consume(n)
		p.parseBinary(n, precNot)
		return n
	case tok.IsOperator("-"), tok.IsOperator("+"), tok.IsOperator("~"):
		n := p.open(parent, tree.NodeUnaryExpression)
		p.take(n, "", tree.RoleUnary)
		p.parseBinary(n, precUnary)
		return n
	default:
		return p.parsePrimary(parent)
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or precNone.
func (p *Parser) infixPrecedence() int {
	tok := p.cur()
	switch tok.Kind {
	case token.Keyword:
		switch {
		case tok.IsKeyword("OR"):
			return precOr
		case tok.IsKeyword("AND"):
			return precAnd
		case tok.IsKeyword("LIKE"), tok.IsKeyword("IN"), tok.IsKeyword("BETWEEN"), tok.IsKeyword("IS"):
			return precComparison
		case tok.IsKeyword("NOT"):
			next := p.peek(1)
			if next.IsKeyword("LIKE") || next.IsKeyword("IN") || next.IsKeyword("BETWEEN") {
				return precComparison
			}
		}
	case token.Operator:
		switch tok.Text {
		case "=", "<>", "!=", "<", ">", "<=", ">=", "!<", "!>":
			return precComparison
		case "+", "-", "&", "|", "^":
			return precAdditive
		case "*", "/", "%":
			return precMultiply
		}
	}
	return precNone
}

func (p *Parser) parseInfix(parent, left *tree.Node, prec int) *tree.Node {
	negated := p.isKeyword("NOT")
	op := p.cur()
	if negated {
		op = p.peek(1)
	}

	switch {
	case op.IsKeyword("BETWEEN"):
		n := p.wrap(parent, left, tree.NodeBetweenExpression)
		p.acceptKeyword(n, "NOT")
		p.consume(n)
		p.parseBinary(n, precAdditive)
		p.expectKeyword(n, "AND")
		p.parseBinary(n, precAdditive)
		return n

	case op.IsKeyword("IN"):
		n := p.wrap(parent, left, tree.NodeInExpression)
		p.acceptKeyword(n, "NOT")
		p.consume(n)
		if p.isPunct("(") && p.startsQuery(1) {
			p.parseSubquery(n)
		} else {
			p.parseParenList(n, p.exprItem)
		}
		return n

	case op.IsKeyword("IS"):
		n := p.wrap(parent, left, tree.NodeIsExpression)
		p.consume(n)
		p.acceptKeyword(n, "NOT")
		p.expectKeyword(n, "NULL")
		return n
	}

	n := p.wrap(parent, left, tree.NodeBinaryExpression)
	var words []string
	if negated {
		words = append(words, p.consume(n).Text)
	}
	words = append(words, p.consume(n).Text)
	must(n.SetAttribute(tree.AttrOperator, strings.ToUpper(strings.Join(words, " "))))

	p.parseBinary(n, prec+1)
	if op.IsKeyword("LIKE") && p.acceptKeyword(n, "ESCAPE") {
		p.parsePrimary(n)
	}
	return n
}

// parsePrimary parses literals, names, calls, CASE, subqueries and
// parenthesized expressions.
func (p *Parser) parsePrimary(parent *tree.Node) *tree.Node {
	if p.atEOF() {
		p.fail("expression")
	}
	tok := p.cur()

	switch {
	case tok.Kind.IsLiteral():
		n := p.open(parent, tree.NodeLiteral)
		p.consume(n)
		return n

	case tok.IsKeyword("CASE"):
		return p.parseCase(parent)

	case tok.IsKeyword("EXISTS"):
		n := p.open(parent, tree.NodeExistsExpression)
		p.consume(n)
		p.parseSubquery(n)
		return n

	case tok.IsKeyword("CONVERT"), tok.IsKeyword("TRY_CONVERT"):
		return p.parseConvert(parent)

	case (tok.IsWord("CAST") || tok.IsWord("TRY_CAST")) && p.peek(1).IsPunct("("):
		return p.parseCast(parent)

	case tok.Kind == token.Keyword && p.peek(1).IsPunct("(") && isOneOf(tok, keywordFunctions):
		name := p.open(parent, tree.NodeObjectName)
		p.take(name, "", tree.RoleFunction)
		return p.parseCall(parent, name)

	case tok.Kind == token.Keyword && isOneOf(tok, niladicKeywords):
		n := p.open(parent, tree.NodeLiteral)
		p.consume(n)
		return n

	case tok.IsPunct("("):
		if p.startsQuery(1) {
			return p.parseSubquery(parent)
		}
		n := p.open(parent, tree.NodeParenExpression)
		p.consume(n)
		p.parseExpr(n)
		p.expectPunct(n, ")")
		return n

	case tok.IsOperator("*"):
		n := p.open(parent, tree.NodeStar)
		p.take(n, "", tree.RoleWildcard)
		return n

	case tok.Kind.IsIdentifier():
		name := p.parseObjectName(parent)
		if p.isPunct("(") && !strings.HasPrefix(tok.Text, "@") {
			return p.parseCall(parent, name)
		}
		return name
	}

	p.fail("expression")
	return nil
}

func isOneOf(tok token.Token, words []string) bool {
	for _, w := range words {
		if tok.IsWord(w) {
			return true
		}
	}
	return false
}

// parseObjectName parses a multi-part name such as db.schema.table, t.*,
// db..table, @var or a static method reference type::Method.
func (p *Parser) parseObjectName(parent *tree.Node) *tree.Node {
	tok := p.cur()
	if !tok.Kind.IsIdentifier() {
		p.fail("name")
	}
	n := p.open(parent, tree.NodeObjectName)
	if strings.HasPrefix(tok.Text, "@") {
		p.take(n, "", tree.RoleVariable)
		return n
	}
	p.consume(n)

	for p.isPunct(".") || p.isOperator("::") {
		p.consume(n)
		switch next := p.cur(); {
		case next.IsPunct("."):
			continue
		case next.Kind.IsIdentifier():
			p.consume(n)
		case next.IsOperator("*"):
			p.take(n, "", tree.RoleWildcard)
			return n
		default:
			p.fail("name")
		}
	}
	return n
}

// parseCall turns name, the last child of parent, into a function call.
func (p *Parser) parseCall(parent, name *tree.Node) *tree.Node {
	n := p.wrap(parent, name, tree.NodeFunctionCall)
	if leaves := tree.Significant(name); len(leaves) > 0 {
		must(leaves[len(leaves)-1].SetAttribute(tree.AttrRole, tree.RoleFunction))
	}

	args := p.open(n, tree.NodeParenList)
	p.expectPunct(args, "(")
	if !p.isPunct(")") {
		if !p.acceptKeyword(args, "DISTINCT") {
			p.acceptKeyword(args, "ALL")
		}
		p.parseList(args, p.exprItem)
	}
	p.expectPunct(args, ")")

	if p.isKeyword("WITHIN") {
		within := p.open(n, tree.NodeOverClause)
		p.consume(within)
		p.expectKeyword(within, "GROUP")
		p.expectPunct(within, "(")
		p.parseOrderBy(within)
		p.expectPunct(within, ")")
	}
	if p.isKeyword("OVER") {
		p.parseOver(n)
	}
	return n
}

// parseOver parses OVER ([PARTITION BY …] [ORDER BY …] [frame]).
func (p *Parser) parseOver(parent *tree.Node) {
	n := p.open(parent, tree.NodeOverClause)
	p.consume(n)
	if p.cur().Kind.IsIdentifier() {
		p.consume(n) // named window
		return
	}
	p.expectPunct(n, "(")
	if p.isWord("PARTITION") {
		partition := p.open(n, tree.NodeList)
		p.consumeKeyword(partition)
		p.expectKeyword(partition, "BY")
		p.parseList(partition, p.exprItem)
	}
	if p.isKeyword("ORDER") {
		p.parseOrderBy(n)
	}
	if p.isWord("ROWS") || p.isWord("RANGE") {
		// frame: ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW
		for !p.atEOF() && !p.isPunct(")") {
			if p.cur().Kind == token.Identifier {
				p.consumeKeyword(n)
			} else {
				p.consume(n)
			}
		}
	}
	p.expectPunct(n, ")")
}

func (p *Parser) parseCase(parent *tree.Node) *tree.Node {
	n := p.open(parent, tree.NodeCaseExpression)
	p.consume(n)
	if !p.isKeyword("WHEN") {
		p.parseExpr(n)
	}
	if !p.isKeyword("WHEN") {
		p.fail("WHEN")
	}
	for p.isKeyword("WHEN") {
		when := p.open(n, tree.NodeCaseWhen)
		p.consume(when)
		p.parseExpr(when)
		p.expectKeyword(when, "THEN")
		p.parseExpr(when)
	}
	if p.isKeyword("ELSE") {
		els := p.open(n, tree.NodeCaseElse)
		p.consume(els)
		p.parseExpr(els)
	}
	p.expectKeyword(n, "END")
	return n
}

// parseCast parses CAST(expr AS type) and TRY_CAST.
func (p *Parser) parseCast(parent *tree.Node) *tree.Node {
	n := p.open(parent, tree.NodeCastExpression)
	p.take(n, token.Keyword.String(), tree.RoleFunction)
	p.expectPunct(n, "(")
	p.parseExpr(n)
	p.expectKeyword(n, "AS")
	p.parseDataType(n)
	p.expectPunct(n, ")")
	return n
}

// parseConvert parses CONVERT(type, expr [, style]).
func (p *Parser) parseConvert(parent *tree.Node) *tree.Node {
	n := p.open(parent, tree.NodeCastExpression)
	p.take(n, "", tree.RoleFunction)
	p.expectPunct(n, "(")
	p.parseDataType(n)
	for p.acceptPunct(n, ",") {
		p.parseExpr(n)
	}
	p.expectPunct(n, ")")
	return n
}

// parseDataType parses a type name with optional length, precision and
// scale, e.g. NVARCHAR(MAX) or DECIMAL(18, 2).
func (p *Parser) parseDataType(parent *tree.Node) *tree.Node {
	n := p.open(parent, tree.NodeDataType)
	tok := p.cur()
	switch {
	case tok.IsKeyword("DOUBLE"):
		p.consume(n)
		p.expectKeyword(n, "PRECISION")
		return n
	case tok.IsKeyword("CURSOR"), tok.IsKeyword("TABLE"):
		p.consume(n)
		return n
	case !tok.Kind.IsIdentifier() || strings.HasPrefix(tok.Text, "@"):
		p.fail("data type")
	}

	p.take(n, "", tree.RoleDataType)
	for p.isPunct(".") {
		p.consume(n)
		if !p.cur().Kind.IsIdentifier() {
			p.fail("data type")
		}
		p.take(n, "", tree.RoleDataType)
	}

	if p.isPunct("(") {
		args := p.open(n, tree.NodeParenList)
		p.consume(args)
		list := p.open(args, tree.NodeList)
		for {
			switch {
			case p.isWord("MAX"):
				p.consumeKeyword(list)
			case p.cur().Kind == token.NumericLiteral:
				lit := p.open(list, tree.NodeLiteral)
				p.consume(lit)
			default:
				p.fail("length or precision")
			}
			if !p.acceptPunct(list, ",") {
				break
			}
		}
		p.expectPunct(args, ")")
	}
	return n
}
