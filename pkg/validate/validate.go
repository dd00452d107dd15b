// Package validate checks T-SQL syntax without formatting it.
package validate

import (
	"github.com/leapstack-labs/tsqlfmt/pkg/parser"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// ValidationError is one syntax diagnostic.
type ValidationError struct {
	Message  string        `json:"message" yaml:"message"`
	Line     int           `json:"line" yaml:"line"`
	Column   int           `json:"column" yaml:"column"`
	Severity tree.Severity `json:"severity" yaml:"severity"`
}

// Result is the outcome of validating a piece of SQL. Valid is true exactly
// when Errors is empty.
type Result struct {
	Valid  bool              `json:"is_valid" yaml:"is_valid"`
	Errors []ValidationError `json:"errors" yaml:"errors"`
}

// Validate tokenizes and parses sql and reports its diagnostics. Formatting
// options play no part in validation.
func Validate(sql string) Result {
	pt, err := parser.ParseString(sql)
	if err != nil {
		// Tokenize never returns a nil slice, so this is unreachable.
		return Result{Errors: []ValidationError{{Message: err.Error(), Line: 1, Column: 1, Severity: tree.SeverityError}}}
	}
	return FromTree(pt)
}

// FromTree converts the diagnostics of an already parsed tree.
func FromTree(pt *tree.ParseTree) Result {
	res := Result{Errors: []ValidationError{}}
	if pt != nil {
		for _, e := range pt.Errors {
			res.Errors = append(res.Errors, ValidationError{
				Message:  e.Message,
				Line:     e.Line,
				Column:   e.Column,
				Severity: e.Severity,
			})
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// Error returns the diagnostic as "line L, column C: message".
func (e ValidationError) Error() string {
	return tree.ParseError{Message: e.Message, Line: e.Line, Column: e.Column, Severity: e.Severity}.Error()
}
