package tree

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

// Severity levels.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityError, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseError is a diagnostic produced while tokenizing or parsing.
type ParseError struct {
	Message  string
	Line     int
	Column   int
	Severity Severity
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// ParseTree is the result of parsing one input text.
type ParseTree struct {
	Root           *Node
	StatementCount int
	Errors         []ParseError
}

// HasErrors reports whether any diagnostics were produced.
func (pt *ParseTree) HasErrors() bool {
	return len(pt.Errors) > 0
}

// FirstError returns the earliest diagnostic.
func (pt *ParseTree) FirstError() (ParseError, bool) {
	if len(pt.Errors) == 0 {
		return ParseError{}, false
	}
	return pt.Errors[0], true
}

// Text reproduces the parsed source by concatenating every leaf.
func (pt *ParseTree) Text() string {
	if pt.Root == nil {
		return ""
	}
	return Text(pt.Root)
}
