package parser

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// DDL parsing.
//
//	create_table → CREATE TABLE name ( element {, element} ) [options]
//	element      → column_name data_type {constraint} | table_constraint
//	create_view  → CREATE [OR ALTER] VIEW name [(columns)] [WITH …] AS query
//	routine      → (CREATE [OR ALTER] | ALTER) (PROC[EDURE]|FUNCTION|TRIGGER)
//	               name [parameters] [RETURNS …] [WITH …] AS {statement}
//	drop         → DROP object_kind [IF EXISTS] name {, name} [ON …]
//	truncate     → TRUNCATE TABLE name

var tableConstraintStarts = []string{"CONSTRAINT", "PRIMARY", "UNIQUE", "FOREIGN", "CHECK", "INDEX"}

// classifyCreate picks the statement for CREATE and ALTER.
func (p *Parser) classifyCreate() (string, func(*tree.Node)) {
	create := p.cur().IsKeyword("CREATE")
	object := p.peek(1)
	if object.IsKeyword("OR") && p.peek(2).IsKeyword("ALTER") {
		object = p.peek(3)
	}

	switch {
	case object.IsKeyword("TABLE") && create:
		return tree.NodeCreateTableStatement, p.parseCreateTable
	case object.IsKeyword("VIEW"):
		return tree.NodeCreateViewStatement, p.parseCreateView
	case object.IsKeyword("PROC"), object.IsKeyword("PROCEDURE"),
		object.IsKeyword("FUNCTION"), object.IsKeyword("TRIGGER"):
		return tree.NodeCreateRoutineStatement, p.parseCreateRoutine
	}
	return tree.NodeOtherStatement, p.parseOtherStatement
}

func (p *Parser) parseCreateTable(n *tree.Node) {
	header := p.open(n, tree.NodeRoutineHeader)
	p.expectKeyword(header, "CREATE")
	p.expectKeyword(header, "TABLE")
	p.parseObjectName(header)
	p.parseColumnDefinitions(n)
	if !p.atStatementEnd() {
		p.parseTail(n)
	}
}

// parseColumnDefinitions parses the parenthesized element list of CREATE
// TABLE and table variables.
func (p *Parser) parseColumnDefinitions(parent *tree.Node) {
	n := p.open(parent, tree.NodeColumnDefinitions)
	p.expectPunct(n, "(")
	p.parseList(n, p.parseTableElement)
	p.expectPunct(n, ")")
}

func (p *Parser) parseTableElement(parent *tree.Node) {
	if isOneOf(p.cur(), tableConstraintStarts) && p.cur().Kind == token.Keyword {
		n := p.open(parent, tree.NodeTableConstraint)
		p.parseElementTail(n)
		return
	}

	n := p.open(parent, tree.NodeColumnDefinition)
	if !p.cur().Kind.IsIdentifier() {
		p.fail("column name")
	}
	p.consume(n)
	if !p.isKeyword("AS") {
		p.parseDataType(n)
	}
	p.parseElementTail(n)
}

// parseElementTail consumes column constraints up to the next top-level
// comma or closing parenthesis.
func (p *Parser) parseElementTail(n *tree.Node) {
	depth := 0
	for !p.atEOF() {
		switch {
		case p.isPunct(",") && depth == 0:
			return
		case p.isPunct(")"):
			if depth == 0 {
				return
			}
			depth--
		case p.isPunct("("):
			depth++
		case p.cur().Kind == token.BatchSeparator:
			return
		}
		p.consumeLoose(n)
	}
}

// consumeLoose consumes a token of a construct without a dedicated grammar,
// marking names directly followed by "(" as function calls.
func (p *Parser) consumeLoose(n *tree.Node) {
	tok := p.cur()
	if tok.Kind == token.Unknown {
		p.fail("statement text")
	}
	callable := tok.Kind == token.Identifier && !strings.HasPrefix(tok.Text, "@") ||
		tok.Kind == token.Keyword && isOneOf(tok, keywordFunctions)
	if callable && p.peek(1).IsPunct("(") {
		p.take(n, "", tree.RoleFunction)
		return
	}
	p.consume(n)
}

func (p *Parser) parseCreateView(n *tree.Node) {
	header := p.open(n, tree.NodeRoutineHeader)
	p.parseCreatePrefix(header)
	p.expectKeyword(header, "VIEW")
	p.parseObjectName(header)
	if p.isPunct("(") {
		p.parseParenList(header, p.nameItem)
	}
	p.parseRoutineOptions(header)
	p.expectKeyword(n, "AS")
	p.parseQuery(p.open(n, tree.NodeQuery))
}

func (p *Parser) parseCreateRoutine(n *tree.Node) {
	header := p.open(n, tree.NodeRoutineHeader)
	p.parseCreatePrefix(header)
	kind := p.consume(header)
	p.parseObjectName(header)

	switch {
	case kind.IsKeyword("TRIGGER"):
		for !p.atEOF() && !p.isKeyword("AS") && p.cur().Kind != token.BatchSeparator {
			p.consumeLoose(header)
		}
	case p.isPunct("("):
		params := p.open(n, tree.NodeParameterList)
		p.consume(params)
		if !p.isPunct(")") {
			p.parseList(params, p.parseParameter)
		}
		p.expectPunct(params, ")")
	case strings.HasPrefix(p.cur().Text, "@"):
		params := p.open(n, tree.NodeParameterList)
		p.parseList(params, p.parseParameter)
	}

	if kind.IsKeyword("FUNCTION") {
		p.parseReturns(n)
	}
	p.parseRoutineOptions(n)
	p.expectKeyword(n, "AS")

	p.parseStatements(n, func() bool {
		return p.cur().Kind == token.BatchSeparator || (p.blockDepth > 0 && p.isKeyword("END"))
	})
}

// parseCreatePrefix parses CREATE, ALTER or CREATE OR ALTER.
func (p *Parser) parseCreatePrefix(n *tree.Node) {
	if p.acceptKeyword(n, "ALTER") {
		return
	}
	p.expectKeyword(n, "CREATE")
	if p.acceptKeyword(n, "OR") {
		p.expectKeyword(n, "ALTER")
	}
}

// parseRoutineOptions parses WITH SCHEMABINDING, RECOMPILE, EXECUTE AS ….
func (p *Parser) parseRoutineOptions(n *tree.Node) {
	if !p.isKeyword("WITH") {
		return
	}
	p.consume(n)
	for !p.atEOF() && !p.isKeyword("AS") && p.cur().Kind != token.BatchSeparator {
		if p.isKeyword("EXECUTE") || p.isKeyword("EXEC") {
			p.consume(n)
			p.expectKeyword(n, "AS")
		}
		p.consumeOption(n)
	}
}

// consumeOption consumes an option word as a keyword; literals and
// punctuation keep their kind.
func (p *Parser) consumeOption(n *tree.Node) {
	switch tok := p.cur(); {
	case tok.Kind == token.Unknown:
		p.fail("option")
	case tok.Kind == token.Keyword, tok.Kind == token.Identifier && !strings.HasPrefix(tok.Text, "@"):
		p.consumeKeyword(n)
	default:
		p.consume(n)
	}
}

// parseParameter parses @name [AS] type [VARYING] [= default] [OUT|OUTPUT|READONLY].
func (p *Parser) parseParameter(parent *tree.Node) {
	n := p.open(parent, tree.NodeParameter)
	if !strings.HasPrefix(p.cur().Text, "@") || p.cur().Kind != token.Identifier {
		p.fail("parameter name")
	}
	p.take(n, "", tree.RoleVariable)
	p.acceptKeyword(n, "AS")
	p.parseDataType(n)
	p.acceptKeyword(n, "VARYING")
	if p.isOperator("=") {
		p.consume(n)
		p.parseExpr(n)
	}
	for _, w := range []string{"OUTPUT", "OUT", "READONLY"} {
		p.acceptWord(n, w)
	}
}

// parseReturns parses RETURNS type | RETURNS TABLE | RETURNS @t TABLE (…).
func (p *Parser) parseReturns(parent *tree.Node) {
	n := p.open(parent, tree.NodeReturnsClause)
	p.expectWord(n, "RETURNS")
	switch {
	case p.isKeyword("TABLE"):
		p.consume(n)
	case strings.HasPrefix(p.cur().Text, "@"):
		p.take(n, "", tree.RoleVariable)
		p.expectKeyword(n, "TABLE")
		p.parseColumnDefinitions(n)
	default:
		p.parseDataType(n)
	}
}

func (p *Parser) parseDrop(n *tree.Node) {
	p.expectKeyword(n, "DROP")
	if tok := p.cur(); p.atStatementEnd() || tok.Kind != token.Keyword && tok.Kind != token.Identifier {
		p.fail("object type")
	}
	p.consumeKeyword(n)
	if p.acceptKeyword(n, "IF") {
		p.expectKeyword(n, "EXISTS")
	}
	p.parseList(n, p.nameItem)
	if !p.atStatementEnd() {
		p.parseTail(n)
	}
}

func (p *Parser) parseTruncate(n *tree.Node) {
	p.expectKeyword(n, "TRUNCATE")
	p.expectKeyword(n, "TABLE")
	p.parseObjectName(n)
}
