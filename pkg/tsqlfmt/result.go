package tsqlfmt

import (
	"strings"
	"time"
)

// Result is the outcome of a format call. On failure FormattedSQL holds the
// unmodified input.
type Result struct {
	FormattedSQL string      `json:"formatted_sql" yaml:"formatted_sql"`
	Success      bool        `json:"success" yaml:"success"`
	ErrorMessage string      `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ErrorLine    *int        `json:"error_line,omitempty" yaml:"error_line,omitempty"`
	ErrorColumn  *int        `json:"error_column,omitempty" yaml:"error_column,omitempty"`
	Statistics   *Statistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
}

// Statistics describes a successful format call.
type Statistics struct {
	TokenCount     int           `json:"token_count" yaml:"token_count"`
	StatementCount int           `json:"statement_count" yaml:"statement_count"`
	Elapsed        time.Duration `json:"-" yaml:"-"`
	ElapsedMS      float64       `json:"elapsed_ms" yaml:"elapsed_ms"`
	LinesFormatted int           `json:"lines_formatted" yaml:"lines_formatted"`
}

func newStatistics(tokens, statements int, elapsed time.Duration, output string) *Statistics {
	return &Statistics{
		TokenCount:     tokens,
		StatementCount: statements,
		Elapsed:        elapsed,
		ElapsedMS:      float64(elapsed.Microseconds()) / 1000,
		LinesFormatted: countLines(output),
	}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

func failure(sql, message string, line, column int) Result {
	res := Result{FormattedSQL: sql, ErrorMessage: message}
	if line > 0 {
		res.ErrorLine = &line
		res.ErrorColumn = &column
	}
	return res
}
