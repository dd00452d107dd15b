package tsqlfmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/obfuscate"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
	"github.com/leapstack-labs/tsqlfmt/pkg/validate"
)

// Format formats sql with the given options, or the defaults when none are
// passed. Empty input is echoed back as a success. Input with syntax errors
// is returned unmodified together with the first diagnostic.
func (f *Formatter) Format(sql string, opts ...format.Options) Result {
	f.mustBeOpen()
	res := f.format(sql, optionsOrDefault(opts))
	f.stats.record(res)
	return res
}

// FormatAsync formats sql on a separate goroutine once a permit is free.
// ctx is observed while waiting for the permit and once more before work
// starts; a call that has started runs to completion. The returned error is
// ctx.Err() or ErrClosed, never a formatting problem.
func (f *Formatter) FormatAsync(ctx context.Context, sql string, opts ...format.Options) (Result, error) {
	if f.closed.Load() {
		return Result{}, ErrClosed
	}
	o := optionsOrDefault(opts)

	if err := f.permits.Acquire(ctx, 1); err != nil {
		f.stats.cancelled.Add(1)
		return Result{}, fmt.Errorf("waiting for permit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		f.permits.Release(1)
		f.stats.cancelled.Add(1)
		return Result{}, err
	}
	if f.closed.Load() {
		f.permits.Release(1)
		return Result{}, ErrClosed
	}

	f.stats.enter()
	done := make(chan Result, 1)
	go func() {
		defer f.permits.Release(1)
		res := f.format(sql, o)
		f.stats.leave()
		done <- res
	}()

	res := <-done
	f.stats.record(res)
	return res, nil
}

func (f *Formatter) format(sql string, opts format.Options) (res Result) {
	if strings.TrimSpace(sql) == "" {
		return Result{FormattedSQL: sql, Success: true}
	}
	if err := opts.Validate(); err != nil {
		f.logger.Warn("invalid formatting options", "error", err)
		return failure(sql, err.Error(), 0, 0)
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("formatting failed", "panic", r)
			res = failure(sql, fmt.Sprintf("formatting failed: %v", r), 0, 0)
		}
	}()

	start := time.Now()
	tokens := f.tokenizer.Tokenize(sql)
	pt, err := f.parser.Parse(tokens)
	if err != nil {
		f.logger.Error("parse failed", "error", err)
		return failure(sql, fmt.Sprintf("formatting failed: %v", err), 0, 0)
	}
	f.logger.Debug("parsed", "tokens", len(tokens), "statements", pt.StatementCount)

	if first, ok := pt.FirstError(); ok {
		f.logger.Warn("sql has syntax errors",
			"errors", len(pt.Errors),
			"line", first.Line,
			"column", first.Column,
			"message", first.Message)
		return failure(sql, first.Message, first.Line, first.Column)
	}

	out := f.printer.Format(pt, opts)
	elapsed := time.Since(start)
	f.logger.Debug("formatted sql",
		"statements", pt.StatementCount,
		"elapsed_ms", elapsed.Milliseconds())

	return Result{
		FormattedSQL: out,
		Success:      true,
		Statistics:   newStatistics(len(tokens), pt.StatementCount, elapsed, out),
	}
}

// Validate reports the syntax diagnostics of sql. Formatting options play
// no part in validation.
func (f *Formatter) Validate(sql string) (res validate.Result) {
	f.mustBeOpen()
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("validation failed", "panic", r)
			res = validate.Result{Errors: []validate.ValidationError{{
				Message:  fmt.Sprintf("validation failed: %v", r),
				Line:     1,
				Column:   1,
				Severity: tree.SeverityError,
			}}}
		}
	}()

	pt, err := f.parser.Parse(f.tokenizer.Tokenize(sql))
	if err != nil {
		panic(err)
	}
	return validate.FromTree(pt)
}

// Obfuscate replaces string and numeric literals with placeholders and
// formats the result. SQL with syntax errors keeps its layout and only has
// its literals replaced. On any internal failure the input is returned
// unchanged.
func (f *Formatter) Obfuscate(sql string, opts ...format.Options) string {
	f.mustBeOpen()
	return f.obfuscate(sql, obfuscate.ModeLiterals, optionsOrDefault(opts))
}

// ObfuscateIdentifiers is Obfuscate with identifiers replaced as well.
func (f *Formatter) ObfuscateIdentifiers(sql string, opts ...format.Options) string {
	f.mustBeOpen()
	return f.obfuscate(sql, obfuscate.ModeIdentifiers, optionsOrDefault(opts))
}

func (f *Formatter) obfuscate(sql string, mode obfuscate.Mode, opts format.Options) (out string) {
	if strings.TrimSpace(sql) == "" {
		return sql
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("obfuscation failed", "panic", r)
			out = sql
		}
	}()

	pt, err := f.parser.Parse(f.tokenizer.Tokenize(sql))
	if err != nil {
		f.logger.Error("parse failed", "error", err)
		return sql
	}
	if pt.HasErrors() {
		f.logger.Debug("obfuscating leaves of sql with syntax errors", "errors", len(pt.Errors))
		return obfuscate.New(mode).Obfuscate(pt)
	}

	opts.ObfuscateMode = true
	opts.ObfuscateIdentifiers = mode == obfuscate.ModeIdentifiers
	opts.ColorizeOutput = false
	if err := opts.Validate(); err != nil {
		f.logger.Warn("invalid formatting options", "error", err)
		return sql
	}
	return f.printer.Format(pt, opts)
}
