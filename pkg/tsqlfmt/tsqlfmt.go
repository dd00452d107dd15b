// Package tsqlfmt is the entry point for formatting, validating and
// obfuscating T-SQL.
//
// A Formatter owns one tokenizer, one parser and one tree formatter and may
// be shared by any number of goroutines. Each call builds its own tokens and
// parse tree; the only state shared between calls is the permit pool that
// bounds FormatAsync and the statistics counters.
//
//	f := tsqlfmt.New()
//	defer f.Close()
//
//	res := f.Format("select a,b from t where x=1")
//	if !res.Success {
//	    // res.FormattedSQL is the unmodified input
//	}
package tsqlfmt

import (
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/parser"
	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// ErrClosed is returned, or raised as a panic by the synchronous entry
// points, once a Formatter has been closed.
var ErrClosed = errors.New("tsqlfmt: formatter is closed")

// Tokenizer splits SQL text into tokens.
type Tokenizer interface {
	Tokenize(sql string) []token.Token
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(sql string) []token.Token

// Tokenize calls fn(sql).
func (fn TokenizerFunc) Tokenize(sql string) []token.Token { return fn(sql) }

// Parser builds a parse tree from tokens.
type Parser interface {
	Parse(tokens []token.Token) (*tree.ParseTree, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(tokens []token.Token) (*tree.ParseTree, error)

// Parse calls fn(tokens).
func (fn ParserFunc) Parse(tokens []token.Token) (*tree.ParseTree, error) { return fn(tokens) }

// TreeFormatter renders a parse tree. format.Formatter is the default.
type TreeFormatter interface {
	Format(pt *tree.ParseTree, opts format.Options) string
}

// Formatter runs the tokenize, parse and format pipeline.
type Formatter struct {
	tokenizer Tokenizer
	parser    Parser
	printer   TreeFormatter
	logger    *slog.Logger

	permits     *semaphore.Weighted
	concurrency int

	closed atomic.Bool
	stats  counters
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithConcurrency sets the number of FormatAsync calls that may run at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Formatter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTokenizer replaces the tokenizer stage.
func WithTokenizer(t Tokenizer) Option {
	return func(f *Formatter) { f.tokenizer = t }
}

// WithParser replaces the parser stage.
func WithParser(p Parser) Option {
	return func(f *Formatter) { f.parser = p }
}

// WithTreeFormatter replaces the tree formatter stage.
func WithTreeFormatter(tf TreeFormatter) Option {
	return func(f *Formatter) { f.printer = tf }
}

// New creates a Formatter. Without options it uses the packages of this
// module for every stage and allows 2 × GOMAXPROCS concurrent async calls.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		tokenizer:   TokenizerFunc(parser.Tokenize),
		parser:      ParserFunc(parser.Parse),
		printer:     format.Formatter{},
		logger:      slog.New(slog.DiscardHandler),
		concurrency: 2 * runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.permits = semaphore.NewWeighted(int64(f.concurrency))

	f.logger.Debug("formatter created", "concurrency", f.concurrency)
	return f
}

// Concurrency returns the size of the async permit pool.
func (f *Formatter) Concurrency() int {
	return f.concurrency
}

// Close releases the Formatter. It is safe to call more than once. After
// Close, FormatAsync returns ErrClosed and the synchronous entry points
// panic with ErrClosed.
func (f *Formatter) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.logger.Debug("formatter closed")
	}
	return nil
}

// Closed reports whether Close has been called.
func (f *Formatter) Closed() bool {
	return f.closed.Load()
}

func (f *Formatter) mustBeOpen() {
	if f.closed.Load() {
		panic(ErrClosed)
	}
}

func optionsOrDefault(opts []format.Options) format.Options {
	if len(opts) == 0 {
		return format.DefaultOptions()
	}
	return opts[0]
}
