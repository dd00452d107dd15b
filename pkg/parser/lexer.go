package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
)

// multiCharOperators are matched before single-character operators.
var multiCharOperators = []string{
	"<>", "!=", "<=", ">=", "!<", "!>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"::",
}

const singleCharOperators = "+-*/%=<>&|^~!"

const punctuation = "(),;."

// Lexer splits T-SQL text into tokens. It never fails: input it cannot
// classify becomes Unknown tokens, and every byte of the input is covered
// by exactly one token.
type Lexer struct {
	input string
	pos   int // offset of the current byte
	line  int // line of the current byte (1-based)
	col   int // column of the current byte, in characters (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize returns all tokens of input in order.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	tokens := []token.Token{}
	for {
		tok, ok := l.Next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or false at end of input.
func (l *Lexer) Next() (token.Token, bool) {
	if l.pos >= len(l.input) {
		return token.Token{}, false
	}

	start := l.currentPos()
	kind := l.scan()
	return token.Token{
		Kind: kind,
		Text: l.input[start.Offset:l.pos],
		Pos:  start,
		Len:  l.pos - start.Offset,
	}, true
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// ch returns the byte at pos+n, or 0 past the end.
func (l *Lexer) ch(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

func (l *Lexer) rune() rune {
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// advance moves past the current byte, keeping line and column in step.
func (l *Lexer) advance() {
	if l.atEOF() {
		return
	}
	c := l.input[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
		return
	}
	if l.pos < len(l.input) && !utf8.RuneStart(l.input[l.pos]) {
		return
	}
	l.col++
}

func (l *Lexer) advanceRune() {
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	for i := 0; i < size; i++ {
		l.advance()
	}
}

func (l *Lexer) advanceN(n int) {
	for i := 0; i < n; i++ {
		l.advance()
	}
}

// scan consumes one token and returns its kind.
func (l *Lexer) scan() token.Kind {
	c := l.ch(0)
	switch {
	case isSpace(l.rune()):
		for !l.atEOF() && isSpace(l.rune()) {
			l.advanceRune()
		}
		return token.Whitespace
	case c == '-' && l.ch(1) == '-':
		for !l.atEOF() && l.ch(0) != '\n' && l.ch(0) != '\r' {
			l.advance()
		}
		return token.LineComment
	case c == '/' && l.ch(1) == '*':
		return l.scanBlockComment()
	case c == '\'':
		return l.scanString(token.StringLiteral)
	case (c == 'N' || c == 'n') && l.ch(1) == '\'':
		l.advance()
		return l.scanString(token.UnicodeStringLiteral)
	case c == '[':
		return l.scanDelimited(']', token.BracketedIdentifier)
	case c == '"':
		return l.scanDelimited('"', token.QuotedIdentifier)
	case isDigit(c) || (c == '.' && isDigit(l.ch(1))):
		l.scanNumber()
		return token.NumericLiteral
	case isIdentStart(l.rune()):
		return l.scanWord()
	}

	for _, op := range multiCharOperators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.advanceN(len(op))
			return token.Operator
		}
	}
	if strings.IndexByte(singleCharOperators, c) >= 0 {
		l.advance()
		return token.Operator
	}
	if strings.IndexByte(punctuation, c) >= 0 {
		l.advance()
		return token.Punctuation
	}

	for !l.atEOF() && !l.startsToken() {
		l.advanceRune()
	}
	return token.Unknown
}

// startsToken reports whether a recognized token begins at the current position.
func (l *Lexer) startsToken() bool {
	c := l.ch(0)
	r := l.rune()
	return isSpace(r) || isIdentStart(r) || isDigit(c) ||
		c == '\'' || c == '"' || c == '[' ||
		strings.IndexByte(singleCharOperators, c) >= 0 ||
		strings.IndexByte(punctuation, c) >= 0 ||
		strings.HasPrefix(l.input[l.pos:], "::")
}

// scanBlockComment reads a non-nesting /* */ comment. An unterminated
// comment runs to end of input and is reported as Unknown.
func (l *Lexer) scanBlockComment() token.Kind {
	l.advanceN(2)
	for !l.atEOF() {
		if l.ch(0) == '*' && l.ch(1) == '/' {
			l.advanceN(2)
			return token.BlockComment
		}
		l.advance()
	}
	return token.Unknown
}

// scanString reads a single-quoted literal; a doubled quote is an embedded quote.
func (l *Lexer) scanString(kind token.Kind) token.Kind {
	return l.scanDelimited('\'', kind)
}

// scanDelimited reads from the opening delimiter to close, treating a
// doubled close as an escaped literal character.
func (l *Lexer) scanDelimited(close byte, kind token.Kind) token.Kind {
	l.advance() // opening delimiter
	for !l.atEOF() {
		if l.ch(0) == close {
			if l.ch(1) == close {
				l.advanceN(2)
				continue
			}
			l.advance()
			return kind
		}
		l.advance()
	}
	return token.Unknown
}

// scanNumber reads integer, decimal, scientific and 0x binary literals.
func (l *Lexer) scanNumber() {
	if l.ch(0) == '0' && (l.ch(1) == 'x' || l.ch(1) == 'X') {
		l.advanceN(2)
		for isHexDigit(l.ch(0)) {
			l.advance()
		}
		return
	}

	for isDigit(l.ch(0)) {
		l.advance()
	}
	if l.ch(0) == '.' {
		l.advance()
		for isDigit(l.ch(0)) {
			l.advance()
		}
	}
	if l.ch(0) == 'e' || l.ch(0) == 'E' {
		switch {
		case isDigit(l.ch(1)):
			l.advance()
		case (l.ch(1) == '+' || l.ch(1) == '-') && isDigit(l.ch(2)):
			l.advanceN(2)
		default:
			return
		}
		for isDigit(l.ch(0)) {
			l.advance()
		}
	}
}

// scanWord reads an identifier, keyword or batch separator.
func (l *Lexer) scanWord() token.Kind {
	start := l.pos
	l.advanceRune()
	for !l.atEOF() && isIdentPart(l.rune()) {
		l.advanceRune()
	}
	word := l.input[start:l.pos]

	switch {
	case strings.EqualFold(word, "GO") && l.aloneOnLine(start, l.pos):
		return token.BatchSeparator
	case word[0] == '@' || word[0] == '#':
		return token.Identifier
	case token.IsReserved(word):
		return token.Keyword
	default:
		return token.Identifier
	}
}

// aloneOnLine reports whether input[start:end] is the only non-blank text
// on its line.
func (l *Lexer) aloneOnLine(start, end int) bool {
	for i := start - 1; i >= 0 && l.input[i] != '\n'; i-- {
		if !isBlank(l.input[i]) {
			return false
		}
	}
	for i := end; i < len(l.input) && l.input[i] != '\n'; i++ {
		if !isBlank(l.input[i]) {
			return false
		}
	}
	return true
}

// DescribeUnknown explains why the text of an Unknown token could not be
// lexed.
func DescribeUnknown(text string) string {
	switch {
	case strings.HasPrefix(text, "'"), len(text) > 1 && (text[0] == 'N' || text[0] == 'n') && text[1] == '\'':
		return ErrUnterminatedString
	case strings.HasPrefix(text, "/*"):
		return ErrUnterminatedComment
	case strings.HasPrefix(text, "["):
		return ErrUnterminatedBracket
	case strings.HasPrefix(text, `"`):
		return ErrUnterminatedQuoted
	default:
		r, _ := utf8.DecodeRuneInString(text)
		return fmt.Sprintf(ErrUnrecognizedCharacter, r)
	}
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '@' || r == '#' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '$' || unicode.IsDigit(r)
}
