// Package token defines the lexical model for T-SQL.
//
// Every byte of the input belongs to exactly one Token, including whitespace
// and comments, so concatenating token texts in order reproduces the source.
package token

import "fmt"

// Kind classifies a token.
type Kind uint8

const (
	Unknown Kind = iota
	Keyword
	Identifier
	QuotedIdentifier    // "name"
	BracketedIdentifier // [name]
	Operator
	Punctuation // ( ) , ; .
	NumericLiteral
	StringLiteral        // 'text'
	UnicodeStringLiteral // N'text'
	LineComment          // -- comment
	BlockComment         // /* comment */
	Whitespace
	BatchSeparator // GO on its own line
)

// kindNames doubles as the leaf node names used by the parse tree.
var kindNames = [...]string{
	Unknown:              "unknown",
	Keyword:              "keyword",
	Identifier:           "identifier",
	QuotedIdentifier:     "quoted_identifier",
	BracketedIdentifier:  "bracketed_identifier",
	Operator:             "operator",
	Punctuation:          "punctuation",
	NumericLiteral:       "numeric_literal",
	StringLiteral:        "string_literal",
	UnicodeStringLiteral: "unicode_string_literal",
	LineComment:          "line_comment",
	BlockComment:         "block_comment",
	Whitespace:           "whitespace",
	BatchSeparator:       "batch_separator",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return Unknown, false
}

// IsTrivia reports whether tokens of this kind carry no grammar.
func (k Kind) IsTrivia() bool {
	return k == Whitespace || k == LineComment || k == BlockComment
}

// IsComment reports whether the kind is a line or block comment.
func (k Kind) IsComment() bool {
	return k == LineComment || k == BlockComment
}

// IsIdentifier reports whether the kind names an object (plain, quoted or bracketed).
func (k Kind) IsIdentifier() bool {
	return k == Identifier || k == QuotedIdentifier || k == BracketedIdentifier
}

// IsLiteral reports whether the kind is a string or numeric literal.
func (k Kind) IsLiteral() bool {
	return k == NumericLiteral || k == StringLiteral || k == UnicodeStringLiteral
}

// Token is a single lexical unit. Tokens are values and never change after
// the lexer produces them.
type Token struct {
	Kind Kind
	Text string   // exact source text
	Pos  Position // start position
	Len  int      // length in bytes
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Pos.Offset + t.Len
}

// Is reports whether the token has the given kind and, case-insensitively, text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && equalFold(t.Text, text)
}

// IsKeyword reports whether the token is the given keyword (case-insensitive).
func (t Token) IsKeyword(word string) bool {
	return t.Is(Keyword, word)
}

// IsWord reports whether the token is a keyword or plain identifier spelled word.
// Non-reserved T-SQL words such as OFFSET or ROWS lex as identifiers.
func (t Token) IsWord(word string) bool {
	return (t.Kind == Keyword || t.Kind == Identifier) && equalFold(t.Text, word)
}

// IsPunct reports whether the token is the given punctuation character.
func (t Token) IsPunct(p string) bool {
	return t.Kind == Punctuation && t.Text == p
}

// IsOperator reports whether the token is the given operator.
func (t Token) IsOperator(op string) bool {
	return t.Kind == Operator && t.Text == op
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Kind, t.Text, t.Pos.Line, t.Pos.Column)
}

// equalFold is an ASCII-only case-insensitive comparison; T-SQL keywords are ASCII.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
