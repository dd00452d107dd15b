// Package parser turns T-SQL text into a lossless concrete syntax tree.
//
// # Usage
//
//	tokens := parser.Tokenize(sql)
//	pt, err := parser.Parse(tokens)
//	if err != nil {
//	    // only a nil token slice fails
//	}
//	if pt.HasErrors() {
//	    // pt.Errors holds the diagnostics; pt.Root is still usable
//	}
//
// Every token, including whitespace and comments, becomes exactly one leaf
// of the tree. Trivia preceding a token is attached to the node that
// consumes the token; a comment on the same line after a token is attached
// right after it.
//
// # Grammar Overview
//
//	batch      → { statement [;] | GO }
//	statement  → select | insert | update | delete | create | alter | drop
//	           | truncate | declare | set | use | exec | print | return
//	           | begin [tran] | commit | rollback | save | if | while
//	           | break | continue | goto | other
//	query      → [WITH cte_list] term {(UNION [ALL]|EXCEPT|INTERSECT) term}
//	             [ORDER BY order_list] [OFFSET … FETCH …] [OPTION (…)]
//	term       → select_core | ( query )
//
// On a syntax error the parser records a diagnostic and skips to the next
// statement boundary: a semicolon, a GO separator, or a statement keyword
// outside parentheses. The skipped tokens are kept in an error node.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Parser builds a tree from a token slice. A Parser is used for one parse.
type Parser struct {
	tokens     []token.Token
	pos        int // first token not yet attached to the tree
	next       int // current significant token; len(tokens) at end of input
	last       int // last consumed significant token, -1 if none
	errors     []tree.ParseError
	blockDepth int
	parenRun   parenRun
}

// parenRun caches the last startsQuery scan over tokens[from:to].
type parenRun struct {
	from, to int
	query    bool
	scanned  bool
}

// bailout unwinds the current statement after a syntax error.
type bailout struct{}

// Parse builds a ParseTree from tokens. Malformed SQL produces diagnostics in
// the tree, never an error; only a nil token slice is rejected.
func Parse(tokens []token.Token) (*tree.ParseTree, error) {
	if tokens == nil {
		return nil, ErrNilTokens
	}

	p := &Parser{tokens: tokens, last: -1}
	p.next = p.skipTrivia(0)

	root := tree.New(tree.NodeRoot)
	p.parseStatements(root, func() bool { return false })
	p.flush(root)

	count := 0
	for _, c := range root.Children() {
		if tree.IsStatement(c.Name()) {
			count++
		}
	}
	return &tree.ParseTree{Root: root, StatementCount: count, Errors: p.errors}, nil
}

// ParseString tokenizes and parses sql.
func ParseString(sql string) (*tree.ParseTree, error) {
	return Parse(Tokenize(sql))
}

// ---------- Token Helpers ----------

func (p *Parser) skipTrivia(i int) int {
	for i < len(p.tokens) && p.tokens[i].Kind.IsTrivia() {
		i++
	}
	return i
}

func (p *Parser) atEOF() bool {
	return p.next >= len(p.tokens)
}

// cur returns the current significant token, or the zero Token at end of input.
func (p *Parser) cur() token.Token {
	if p.atEOF() {
		return token.Token{}
	}
	return p.tokens[p.next]
}

// peek returns the n-th significant token after the current one.
func (p *Parser) peek(n int) token.Token {
	i := p.next
	for ; n > 0 && i < len(p.tokens); n-- {
		i = p.skipTrivia(i + 1)
	}
	if i >= len(p.tokens) {
		return token.Token{}
	}
	return p.tokens[i]
}

// lastToken returns the most recently consumed significant token.
func (p *Parser) lastToken() token.Token {
	if p.last < 0 {
		return token.Token{Pos: token.Position{Line: 1, Column: 1}}
	}
	return p.tokens[p.last]
}

// firstOnLine reports whether the current token starts its line.
func (p *Parser) firstOnLine() bool {
	for i := p.next - 1; i >= 0; i-- {
		switch t := p.tokens[i]; {
		case t.Kind == token.Whitespace && strings.Contains(t.Text, "\n"):
			return true
		case !t.Kind.IsTrivia():
			return false
		}
	}
	return true
}

// ---------- Tree Helpers ----------

// must panics on a tree API error. The parser only attaches fresh nodes, so
// an error here is an internal invariant violation.
func must(err error) {
	if err != nil {
		panic(fmt.Errorf("parser: %w", err))
	}
}

// open creates a node named name as the last child of parent.
func (p *Parser) open(parent *tree.Node, name string) *tree.Node {
	n := tree.New(name)
	must(parent.AddChild(n))
	return n
}

// wrap replaces child, the last child of parent, with a new node named name
// that owns child.
func (p *Parser) wrap(parent, child *tree.Node, name string) *tree.Node {
	must(parent.RemoveChild(child))
	n := p.open(parent, name)
	must(n.AddChild(child))
	return n
}

// take attaches pending trivia and the current token to n. An empty name
// keeps the token kind as the leaf name.
func (p *Parser) take(n *tree.Node, name, role string) token.Token {
	tok := p.tokens[p.next]
	p.leading(n)

	if name == "" {
		name = tok.Kind.String()
	}
	leaf := tree.NewLeafNamed(name, tok)
	if role != "" {
		must(leaf.SetAttribute(tree.AttrRole, role))
	}
	must(n.AddChild(leaf))

	p.last = p.next
	p.pos = p.next + 1
	p.trailing(n)
	p.next = p.skipTrivia(p.pos)
	return tok
}

// consume attaches the current token to n as-is.
func (p *Parser) consume(n *tree.Node) token.Token {
	return p.take(n, "", "")
}

// consumeKeyword attaches the current token as a keyword leaf, promoting
// non-reserved words used in a keyword position.
func (p *Parser) consumeKeyword(n *tree.Node) token.Token {
	return p.take(n, token.Keyword.String(), "")
}

// leading attaches the trivia before the current token.
func (p *Parser) leading(n *tree.Node) {
	for p.pos < p.next {
		must(n.AddChild(p.triviaLeaf(p.pos)))
		p.pos++
	}
}

// trailing attaches comments that follow the last token on the same line.
func (p *Parser) trailing(n *tree.Node) {
	for p.pos < len(p.tokens) {
		i := p.pos
		t := p.tokens[i]
		if t.Kind == token.Whitespace && !strings.Contains(t.Text, "\n") &&
			i+1 < len(p.tokens) && p.tokens[i+1].Kind.IsComment() {
			must(n.AddChild(p.triviaLeaf(i)))
			i++
			t = p.tokens[i]
		}
		if !t.Kind.IsComment() {
			return
		}
		must(n.AddChild(p.triviaLeaf(i)))
		p.pos = i + 1
		if t.Kind == token.LineComment {
			return
		}
	}
}

// flush attaches every remaining token to n.
func (p *Parser) flush(n *tree.Node) {
	for ; p.pos < len(p.tokens); p.pos++ {
		must(n.AddChild(p.triviaLeaf(p.pos)))
	}
	p.next = len(p.tokens)
}

func (p *Parser) triviaLeaf(i int) *tree.Node {
	leaf := tree.NewLeaf(p.tokens[i])
	if p.tokens[i].Kind.IsComment() && p.ownLine(i) {
		must(leaf.SetAttribute(tree.AttrOwnLine, "true"))
	}
	return leaf
}

// ownLine reports whether token i is preceded only by blanks on its line.
func (p *Parser) ownLine(i int) bool {
	if i == 0 {
		return true
	}
	prev := p.tokens[i-1]
	if prev.Kind != token.Whitespace {
		return false
	}
	return strings.Contains(prev.Text, "\n") || i == 1
}

// ---------- Matching ----------

func (p *Parser) isKeyword(words ...string) bool {
	for _, w := range words {
		if p.cur().IsKeyword(w) {
			return true
		}
	}
	return false
}

func (p *Parser) isWord(word string) bool {
	return p.cur().IsWord(word)
}

func (p *Parser) isPunct(s string) bool {
	return p.cur().IsPunct(s)
}

func (p *Parser) isOperator(op string) bool {
	return p.cur().IsOperator(op)
}

func (p *Parser) acceptKeyword(n *tree.Node, word string) bool {
	if p.cur().IsKeyword(word) {
		p.consume(n)
		return true
	}
	return false
}

// acceptWord accepts a keyword or a non-reserved word spelled word.
func (p *Parser) acceptWord(n *tree.Node, word string) bool {
	if p.cur().IsWord(word) {
		p.consumeKeyword(n)
		return true
	}
	return false
}

func (p *Parser) acceptPunct(n *tree.Node, s string) bool {
	if p.isPunct(s) {
		p.consume(n)
		return true
	}
	return false
}

func (p *Parser) expectKeyword(n *tree.Node, word string) {
	if !p.acceptKeyword(n, word) {
		p.fail(word)
	}
}

func (p *Parser) expectWord(n *tree.Node, word string) {
	if !p.acceptWord(n, word) {
		p.fail(word)
	}
}

func (p *Parser) expectPunct(n *tree.Node, s string) {
	if !p.acceptPunct(n, s) {
		p.fail(fmt.Sprintf("%q", s))
	}
}

// ---------- Diagnostics ----------

func (p *Parser) errorAt(tok token.Token, msg string) {
	p.errors = append(p.errors, tree.ParseError{
		Message:  msg,
		Line:     tok.Pos.Line,
		Column:   tok.Pos.Column,
		Severity: tree.SeverityError,
	})
}

// report records an error for the current token. At end of input the error
// is placed on the last consumed token.
func (p *Parser) report(expected string) {
	switch tok := p.cur(); {
	case p.atEOF():
		p.errorAt(p.lastToken(), fmt.Sprintf(ErrUnexpectedEOF, expected))
	case tok.Kind == token.Unknown:
		p.errorAt(tok, DescribeUnknown(tok.Text))
	default:
		p.errorAt(tok, fmt.Sprintf(ErrUnexpectedToken, tok.Text, expected))
	}
}

// fail records an error and abandons the current statement.
func (p *Parser) fail(expected string) {
	p.report(expected)
	panic(bailout{})
}

// atStatementEnd reports whether the current token ends the statement being
// parsed.
func (p *Parser) atStatementEnd() bool {
	tok := p.cur()
	switch {
	case p.atEOF(), tok.IsPunct(";"), tok.Kind == token.BatchSeparator:
		return true
	case tok.Kind == token.Keyword:
		return token.IsStatementKeyword(tok.Text) || tok.IsKeyword("END") || tok.IsKeyword("ELSE")
	case tok.Kind == token.Identifier:
		return isIdentifierStatement(tok)
	}
	return false
}

// synchronize skips to the next statement boundary, collecting the skipped
// tokens in an error node under n. A trailing semicolon is consumed.
func (p *Parser) synchronize(n *tree.Node, start int) {
	errNode := n
	if n.Name() != tree.NodeError {
		errNode = p.open(n, tree.NodeError)
	}
	if p.next == start && !p.atEOF() {
		p.consume(errNode)
	}

	depth := 0
	for !p.atEOF() {
		tok := p.cur()
		if depth == 0 {
			if tok.IsPunct(";") {
				p.consume(errNode)
				return
			}
			if tok.Kind == token.BatchSeparator || tok.IsKeyword("ELSE") ||
				(tok.IsKeyword("END") && p.blockDepth > 0) ||
				(tok.Kind == token.Keyword && token.IsStatementKeyword(tok.Text)) {
				return
			}
		}
		switch {
		case tok.IsPunct("("):
			depth++
		case tok.IsPunct(")") && depth > 0:
			depth--
		}
		p.consume(errNode)
	}
}
