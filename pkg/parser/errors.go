package parser

import "errors"

// ErrNilTokens is returned by Parse when given a nil token slice.
var ErrNilTokens = errors.New("parser: nil token stream")

// Diagnostic messages
const (
	ErrUnexpectedToken = "unexpected token %q, expected %s"
	ErrUnexpectedEOF   = "unexpected end of input, expected %s"
	ErrUnexpectedStart = "unexpected token %q at start of statement"

	ErrUnterminatedString    = "unterminated string literal"
	ErrUnterminatedComment   = "unterminated block comment"
	ErrUnterminatedBracket   = "unterminated bracketed identifier"
	ErrUnterminatedQuoted    = "unterminated quoted identifier"
	ErrUnrecognizedCharacter = "unrecognized character %q"
)
