package parser

import (
	"fmt"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Statement parsing.
//
//	insert   → INSERT [TOP (expr) [PERCENT]] [INTO] name [(columns)]
//	           (VALUES row_list | DEFAULT VALUES | query | exec)
//	update   → UPDATE [TOP (expr)] name [hints] SET assignment_list
//	           [FROM …] [WHERE expr] [OPTION (…)]
//	delete   → DELETE [TOP (expr)] [FROM] name [FROM …] [WHERE expr]
//	declare  → DECLARE declaration {, declaration}
//	set      → SET @var op expr | SET option …
//	exec     → EXEC[UTE] [@ret =] name [argument {, argument}] | EXEC (expr)
//	if       → IF expr statement [ELSE statement]
//	while    → WHILE expr statement
//	block    → BEGIN [TRY|CATCH] {statement} END [TRY|CATCH]

// identifierStatements are non-reserved words that begin a statement.
var identifierStatements = map[string]struct{}{
	"THROW": {},
}

func isIdentifierStatement(tok token.Token) bool {
	if tok.Kind != token.Identifier {
		return false
	}
	for w := range identifierStatements {
		if tok.IsWord(w) {
			return true
		}
	}
	return false
}

// parseStatements parses statements into parent until end of input, a batch
// separator is seen while stop reports true, or stop reports true.
func (p *Parser) parseStatements(parent *tree.Node, stop func() bool) {
	for !p.atEOF() && !stop() {
		switch tok := p.cur(); {
		case tok.Kind == token.BatchSeparator, tok.IsPunct(";"):
			p.consume(parent)
		default:
			p.statement(parent)
		}
	}
}

// statement parses one statement into parent, recovering from syntax errors.
func (p *Parser) statement(parent *tree.Node) {
	start := p.next
	name, parse := p.classify()
	if parse == nil {
		n := p.open(parent, tree.NodeError)
		if tok := p.cur(); tok.Kind == token.Unknown {
			p.errorAt(tok, DescribeUnknown(tok.Text))
		} else {
			p.errorAt(tok, fmt.Sprintf(ErrUnexpectedStart, tok.Text))
		}
		p.synchronize(n, start)
		return
	}

	n := p.open(parent, name)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize(n, start)
		}
	}()

	parse(n)
	p.acceptPunct(n, ";")
}

// classify decides which statement starts at the current token.
func (p *Parser) classify() (string, func(*tree.Node)) {
	tok := p.cur()
	if isIdentifierStatement(tok) {
		return tree.NodeOtherStatement, p.parseOtherStatement
	}
	if tok.Kind != token.Keyword {
		if tok.IsPunct("(") && p.startsQuery(1) {
			return tree.NodeSelectStatement, p.parseQuery
		}
		return "", nil
	}

	switch {
	case tok.IsKeyword("SELECT"), tok.IsKeyword("WITH"):
		return tree.NodeSelectStatement, p.parseQuery
	case tok.IsKeyword("INSERT"):
		return tree.NodeInsertStatement, p.parseInsert
	case tok.IsKeyword("UPDATE"):
		return tree.NodeUpdateStatement, p.parseUpdate
	case tok.IsKeyword("DELETE"):
		return tree.NodeDeleteStatement, p.parseDelete
	case tok.IsKeyword("CREATE"), tok.IsKeyword("ALTER"):
		return p.classifyCreate()
	case tok.IsKeyword("DROP"):
		return tree.NodeDropStatement, p.parseDrop
	case tok.IsKeyword("TRUNCATE"):
		return tree.NodeTruncateStatement, p.parseTruncate
	case tok.IsKeyword("DECLARE"):
		return tree.NodeDeclareStatement, p.parseDeclare
	case tok.IsKeyword("SET"):
		return tree.NodeSetStatement, p.parseSet
	case tok.IsKeyword("USE"):
		return tree.NodeUseStatement, p.parseUse
	case tok.IsKeyword("EXEC"), tok.IsKeyword("EXECUTE"):
		return tree.NodeExecuteStatement, p.parseExecute
	case tok.IsKeyword("PRINT"):
		return tree.NodePrintStatement, p.parsePrint
	case tok.IsKeyword("RETURN"):
		return tree.NodeReturnStatement, p.parseReturn
	case tok.IsKeyword("BEGIN"):
		next := p.peek(1)
		if next.IsKeyword("TRAN") || next.IsKeyword("TRANSACTION") || next.IsKeyword("DISTRIBUTED") {
			return tree.NodeTransactionStatement, p.parseTransaction
		}
		return tree.NodeBlockStatement, p.parseBlock
	case tok.IsKeyword("COMMIT"), tok.IsKeyword("ROLLBACK"), tok.IsKeyword("SAVE"):
		return tree.NodeTransactionStatement, p.parseTransaction
	case tok.IsKeyword("IF"):
		return tree.NodeIfStatement, p.parseIf
	case tok.IsKeyword("WHILE"):
		return tree.NodeWhileStatement, p.parseWhile
	case tok.IsKeyword("BREAK"), tok.IsKeyword("CONTINUE"), tok.IsKeyword("GOTO"):
		return tree.NodeControlStatement, p.parseControl
	case token.IsStatementKeyword(tok.Text):
		return tree.NodeOtherStatement, p.parseOtherStatement
	}
	return "", nil
}

// startsQuery reports whether the n-th significant token, after any run of
// opening parentheses, begins a query. The answer for the last run scanned
// is kept, so nested parentheses are scanned once.
func (p *Parser) startsQuery(n int) bool {
	i := p.next
	for ; n > 0 && i < len(p.tokens); n-- {
		i = p.skipTrivia(i + 1)
	}
	if r := p.parenRun; r.scanned && i >= r.from && i <= r.to {
		return r.query
	}

	from := i
	for i < len(p.tokens) && p.tokens[i].IsPunct("(") {
		i = p.skipTrivia(i + 1)
	}
	query := false
	if i < len(p.tokens) {
		query = p.tokens[i].IsKeyword("SELECT") || p.tokens[i].IsKeyword("WITH")
	}
	p.parenRun = parenRun{from: from, to: i, query: query, scanned: true}
	return query
}

// ---------- DML ----------

func (p *Parser) parseInsert(n *tree.Node) {
	clause := p.open(n, tree.NodeInsertClause)
	p.expectKeyword(clause, "INSERT")
	p.parseTop(clause)
	p.acceptKeyword(clause, "INTO")
	p.parseObjectName(clause)
	p.parseTableHints(clause)
	if p.isPunct("(") && !p.startsQuery(1) {
		p.parseParenList(clause, p.exprItem)
	}

	switch {
	case p.isKeyword("VALUES"):
		values := p.open(n, tree.NodeValuesClause)
		p.consume(values)
		p.parseList(values, func(parent *tree.Node) {
			p.parseParenList(parent, p.exprItem)
		})
	case p.isKeyword("DEFAULT"):
		values := p.open(n, tree.NodeValuesClause)
		p.consume(values)
		p.expectKeyword(values, "VALUES")
	case p.isKeyword("EXEC"), p.isKeyword("EXECUTE"):
		p.parseExecute(p.open(n, tree.NodeExecuteStatement))
	case p.isKeyword("SELECT"), p.isKeyword("WITH"), p.isPunct("("):
		p.parseQuery(p.open(n, tree.NodeQuery))
	default:
		p.fail("VALUES, SELECT or EXECUTE")
	}
}

func (p *Parser) parseUpdate(n *tree.Node) {
	clause := p.open(n, tree.NodeUpdateClause)
	p.expectKeyword(clause, "UPDATE")
	p.parseTop(clause)
	p.parseObjectName(clause)
	p.parseTableHints(clause)

	set := p.open(n, tree.NodeSetClause)
	p.expectKeyword(set, "SET")
	p.parseList(set, p.parseAssignment)

	p.parseFromWhere(n)
	p.parseOption(n)
}

func (p *Parser) parseDelete(n *tree.Node) {
	clause := p.open(n, tree.NodeDeleteClause)
	p.expectKeyword(clause, "DELETE")
	p.parseTop(clause)
	p.acceptKeyword(clause, "FROM")
	p.parseObjectName(clause)
	p.parseTableHints(clause)

	p.parseFromWhere(n)
	p.parseOption(n)
}

// parseFromWhere parses the optional FROM and WHERE clauses of UPDATE and DELETE.
func (p *Parser) parseFromWhere(n *tree.Node) {
	if p.isKeyword("FROM") {
		p.parseFrom(n)
	}
	if p.isKeyword("WHERE") {
		p.parseWhere(n)
	}
}

// parseAssignment parses target op expr, as in UPDATE … SET and SET @var.
func (p *Parser) parseAssignment(parent *tree.Node) {
	n := p.open(parent, tree.NodeAssignment)
	p.parseObjectName(n)
	tok := p.cur()
	if tok.Kind != token.Operator || !isAssignmentOperator(tok.Text) {
		p.fail("assignment operator")
	}
	p.consume(n)
	p.parseExpr(n)
}

func isAssignmentOperator(op string) bool {
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=":
		return true
	}
	return false
}

// ---------- Variables and Session ----------

func (p *Parser) parseDeclare(n *tree.Node) {
	p.expectKeyword(n, "DECLARE")
	p.parseList(n, p.parseDeclaration)
}

func (p *Parser) parseDeclaration(parent *tree.Node) {
	n := p.open(parent, tree.NodeDeclaration)
	tok := p.cur()
	if tok.Kind != token.Identifier {
		p.fail("variable name")
	}
	if tok.Text[0] == '@' {
		p.take(n, "", tree.RoleVariable)
	} else {
		p.consume(n)
	}
	p.acceptKeyword(n, "AS")

	switch {
	case p.isKeyword("TABLE"):
		p.consumeKeyword(n)
		p.parseColumnDefinitions(n)
	case p.isKeyword("CURSOR"):
		p.consumeKeyword(n)
		for !p.atEOF() && !p.isKeyword("FOR") && !p.atStatementEnd() {
			p.consumeKeyword(n)
		}
		if p.acceptKeyword(n, "FOR") {
			p.parseQuery(p.open(n, tree.NodeQuery))
		}
	default:
		p.parseDataType(n)
		if p.isOperator("=") {
			p.consume(n)
			p.parseExpr(n)
		}
	}
}

func (p *Parser) parseSet(n *tree.Node) {
	p.expectKeyword(n, "SET")
	tok := p.cur()
	if tok.Kind == token.Identifier && tok.Text[0] == '@' {
		p.parseAssignment(n)
		return
	}
	// Session options: SET NOCOUNT ON, SET TRANSACTION ISOLATION LEVEL …
	if p.atStatementEnd() {
		p.fail("variable or option")
	}
	p.parseTail(n)
}

func (p *Parser) parseUse(n *tree.Node) {
	p.expectKeyword(n, "USE")
	p.parseObjectName(n)
}

func (p *Parser) parseExecute(n *tree.Node) {
	p.consume(n) // EXEC or EXECUTE
	if p.isPunct("(") {
		paren := p.open(n, tree.NodeParenExpression)
		p.consume(paren)
		p.parseList(paren, p.exprItem)
		p.expectPunct(paren, ")")
		p.parseTail(n)
		return
	}

	if p.cur().Kind == token.Identifier && p.cur().Text[0] == '@' && p.peek(1).IsOperator("=") {
		p.take(n, "", tree.RoleVariable)
		p.consume(n)
	}
	p.parseObjectName(n)
	if !p.atStatementEnd() && !p.isKeyword("WITH") {
		p.parseList(n, p.parseArgument)
	}
	if p.isKeyword("WITH") {
		p.parseTail(n)
	}
}

// parseArgument parses [@param =] expr|DEFAULT [OUTPUT].
func (p *Parser) parseArgument(parent *tree.Node) {
	n := p.open(parent, tree.NodeArgument)
	if p.cur().Kind == token.Identifier && p.cur().Text[0] == '@' && p.peek(1).IsOperator("=") {
		p.take(n, "", tree.RoleVariable)
		p.consume(n)
	}
	if p.isKeyword("DEFAULT") {
		lit := p.open(n, tree.NodeLiteral)
		p.consume(lit)
	} else {
		p.parseExpr(n)
	}
	if !p.acceptWord(n, "OUTPUT") {
		p.acceptWord(n, "OUT")
	}
}

func (p *Parser) parsePrint(n *tree.Node) {
	p.expectKeyword(n, "PRINT")
	p.parseExpr(n)
}

func (p *Parser) parseReturn(n *tree.Node) {
	p.expectKeyword(n, "RETURN")
	if !p.atStatementEnd() {
		p.parseExpr(n)
	}
}

// ---------- Control Flow ----------

func (p *Parser) parseTransaction(n *tree.Node) {
	p.consume(n) // BEGIN, COMMIT, ROLLBACK or SAVE
	p.acceptKeyword(n, "DISTRIBUTED")
	if !p.acceptKeyword(n, "TRAN") && !p.acceptKeyword(n, "TRANSACTION") {
		p.acceptWord(n, "WORK")
	}
	tok := p.cur()
	if tok.Kind == token.Identifier && !p.atStatementEnd() && !isAliasStopWord(tok) {
		p.consume(n)
	}
}

func (p *Parser) parseIf(n *tree.Node) {
	p.expectKeyword(n, "IF")
	p.parseExpr(n)
	p.parseBody(n)
	if p.acceptKeyword(n, "ELSE") {
		p.parseBody(n)
	}
}

func (p *Parser) parseWhile(n *tree.Node) {
	p.expectKeyword(n, "WHILE")
	p.parseExpr(n)
	p.parseBody(n)
}

// parseBody parses the single statement governed by IF, ELSE or WHILE.
func (p *Parser) parseBody(n *tree.Node) {
	if p.atEOF() || p.cur().Kind == token.BatchSeparator || p.isKeyword("END") || p.isKeyword("ELSE") {
		p.fail("statement")
	}
	p.statement(n)
}

func (p *Parser) parseBlock(n *tree.Node) {
	p.expectKeyword(n, "BEGIN")
	if !p.acceptWord(n, "TRY") {
		p.acceptWord(n, "CATCH")
	}

	p.blockDepth++
	defer func() { p.blockDepth-- }()

	p.parseStatements(n, func() bool {
		return p.isKeyword("END") || p.cur().Kind == token.BatchSeparator
	})
	p.expectKeyword(n, "END")
	if !p.acceptWord(n, "TRY") {
		p.acceptWord(n, "CATCH")
	}
}

func (p *Parser) parseControl(n *tree.Node) {
	if p.isKeyword("GOTO") {
		p.consume(n)
		if p.cur().Kind != token.Identifier {
			p.fail("label")
		}
		p.consume(n)
		return
	}
	p.consume(n) // BREAK or CONTINUE
}

// ---------- Generic ----------

// parseOtherStatement keeps statements without a dedicated grammar, such as
// GRANT or RAISERROR, as a flat token sequence.
func (p *Parser) parseOtherStatement(n *tree.Node) {
	p.consumeKeyword(n)
	p.parseTail(n)
}

// parseTail consumes tokens up to the end of the statement. A statement
// keyword only ends the tail when it starts a new line, so GRANT SELECT ON t
// stays one statement.
func (p *Parser) parseTail(n *tree.Node) {
	depth := 0
	for !p.atEOF() {
		tok := p.cur()
		if depth == 0 {
			if tok.IsPunct(";") || tok.Kind == token.BatchSeparator ||
				tok.IsKeyword("END") || tok.IsKeyword("ELSE") {
				return
			}
			// MERGE actions follow THEN on their own line.
			if p.atStatementEnd() && p.firstOnLine() && !p.lastToken().IsKeyword("THEN") {
				return
			}
		}
		switch {
		case tok.IsPunct("("):
			depth++
		case tok.IsPunct(")"):
			if depth == 0 {
				return
			}
			depth--
		}
		p.consumeLoose(n)
	}
}
