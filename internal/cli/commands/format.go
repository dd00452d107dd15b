package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/tsqlfmt/internal/cli/output"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

// watchDebounce coalesces the burst of events an editor produces on save.
const watchDebounce = 100 * time.Millisecond

// FormatOptions holds options for the format command.
type FormatOptions struct {
	Write bool // Rewrite files in place
	Check bool // Only report files that would change
	Stats bool // Print statistics to stderr
	Watch bool // Re-format files when they change
}

// ErrUnformatted is returned by --check when some input would change.
var ErrUnformatted = errors.New("input is not formatted")

// formatted is the outcome of formatting one input.
type formatted struct {
	input
	Result tsqlfmt.Result
}

func (f formatted) changed() bool {
	return f.Result.Success && f.Result.FormattedSQL != f.SQL
}

// NewFormatCommand creates the format command.
func NewFormatCommand() *cobra.Command {
	opts := &FormatOptions{}
	cmd := &cobra.Command{
		Use:   "format [file...]",
		Short: "Format T-SQL",
		Long: `Format T-SQL read from files or standard input.

Without file arguments, or with "-", SQL is read from standard input and
written to standard output. Input that does not parse is written back
unchanged and the command fails with the first syntax error.`,
		Example: `  # Format standard input
  echo "select a,b from t" | tsqlfmt format

  # Rewrite files in place with 4-space indentation
  tsqlfmt format -w --indent 4 queries/*.sql

  # Fail when a file is not formatted (for CI)
  tsqlfmt format --check queries/*.sql

  # Keep files formatted while editing them
  tsqlfmt format -w --watch report.sql`,
		Aliases: []string{"fmt"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write the result back to each file")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Report files that would change and exit non-zero")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "Print formatting statistics to stderr")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-format files whenever they change")
	cmd.MarkFlagsMutuallyExclusive("write", "check")
	addFormatFlags(cmd)

	return cmd
}

func runFormat(cmd *cobra.Command, args []string, opts *FormatOptions) error {
	if usesStdin(args) && (opts.Write || opts.Watch) {
		return fmt.Errorf("--write and --watch need file arguments")
	}

	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()

	inputs, err := readInputs(cmd, args)
	if err != nil {
		return err
	}

	fmtOpts := outputOptions(cmdCtx.Cfg.Format, cmd.OutOrStdout(), opts)
	results, err := formatInputs(cmd.Context(), cmdCtx.Formatter, inputs, fmtOpts)
	if err != nil {
		return err
	}
	if err := reportFormatted(cmdCtx, results, opts); err != nil && !opts.Watch {
		return err
	}

	if opts.Watch {
		return watchFiles(cmd.Context(), cmdCtx, args, fmtOpts, opts)
	}
	return nil
}

// outputOptions disables colors unless the result goes straight to a
// terminal.
func outputOptions(o format.Options, out io.Writer, opts *FormatOptions) format.Options {
	if opts.Write || opts.Check || !output.IsTerminal(out) {
		o.ColorizeOutput = false
	}
	return o
}

// formatInputs formats every input concurrently, bounded by the formatter's
// permit pool. Results keep the order of inputs.
func formatInputs(ctx context.Context, f *tsqlfmt.Formatter, inputs []input, o format.Options) ([]formatted, error) {
	results := make([]formatted, len(inputs))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.Concurrency())
	for i, in := range inputs {
		eg.Go(func() error {
			res, err := f.FormatAsync(egctx, in.SQL, o)
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			results[i] = formatted{input: in, Result: res}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// reportFormatted writes, checks or prints each result. Inputs that failed
// to parse are echoed unchanged when printing.
func reportFormatted(cmdCtx *CommandContext, results []formatted, opts *FormatOptions) error {
	r := cmdCtx.Renderer
	styles := r.Styles()
	var failed, changed int

	for _, res := range results {
		if !res.Result.Success {
			failed++
			r.Error(fmt.Sprintf("%s: %s", styles.Location.Render(location(res)), res.Result.ErrorMessage))
		}

		switch {
		case opts.Check:
			if res.changed() {
				changed++
				r.Warning(fmt.Sprintf("would reformat %s", res.Name))
			}
		case opts.Write:
			if !res.changed() {
				continue
			}
			if err := os.WriteFile(res.Name, []byte(res.Result.FormattedSQL), res.Mode); err != nil {
				return fmt.Errorf("failed to write %s: %w", res.Name, err)
			}
			changed++
			cmdCtx.Logger.Info("formatted file", "path", res.Name)
		default:
			_, _ = io.WriteString(r.Writer(), res.Result.FormattedSQL)
		}
	}

	if opts.Stats {
		renderStats(r.ErrWriter(), results)
	}

	switch {
	case failed > 0:
		return fmt.Errorf("%d of %d inputs could not be formatted", failed, len(results))
	case opts.Check && changed > 0:
		return fmt.Errorf("%w: %d of %d would be reformatted", ErrUnformatted, changed, len(results))
	}
	return nil
}

// location renders name:line:column for a failed result.
func location(res formatted) string {
	if res.Result.ErrorLine == nil || res.Result.ErrorColumn == nil {
		return res.Name
	}
	return fmt.Sprintf("%s:%d:%d", res.Name, *res.Result.ErrorLine, *res.Result.ErrorColumn)
}

func renderStats(w io.Writer, results []formatted) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "Tokens", "Statements", "Lines", "Time (ms)"})

	var tokens, statements, lines int
	var elapsed float64
	for _, res := range results {
		s := res.Result.Statistics
		if s == nil {
			t.AppendRow(table.Row{res.Name, "-", "-", "-", "failed"})
			continue
		}
		t.AppendRow(table.Row{res.Name, s.TokenCount, s.StatementCount, s.LinesFormatted, fmt.Sprintf("%.2f", s.ElapsedMS)})
		tokens += s.TokenCount
		statements += s.StatementCount
		lines += s.LinesFormatted
		elapsed += s.ElapsedMS
	}
	if len(results) > 1 {
		t.AppendFooter(table.Row{"Total", tokens, statements, lines, fmt.Sprintf("%.2f", elapsed)})
	}
	t.Render()
}

// watchFiles re-formats files as they change until ctx is cancelled.
// Directories are watched instead of files so editors that save by
// renaming a temporary file are still noticed.
func watchFiles(ctx context.Context, cmdCtx *CommandContext, paths []string, o format.Options, opts *FormatOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		watched[abs] = path
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	cmdCtx.Logger.Info("watching for changes", "files", len(paths))

	var (
		pending       = make(map[string]bool)
		debounceTimer *time.Timer
		fire          = make(chan struct{}, 1)
	)
	flush := func() {
		var inputs []input
		for path := range pending {
			in, err := readFile(path)
			if err != nil {
				cmdCtx.Logger.Warn("skipping file", "path", path, "error", err)
				continue
			}
			inputs = append(inputs, in)
		}
		pending = make(map[string]bool)

		results, err := formatInputs(ctx, cmdCtx.Formatter, inputs, o)
		if err != nil {
			cmdCtx.Logger.Warn("format failed", "error", err)
			return
		}
		if err := reportFormatted(cmdCtx, results, opts); err != nil {
			cmdCtx.Logger.Debug("watched files have problems", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil
		case <-fire:
			flush()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[path] = true

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Warn("watch error", "error", err)
		}
	}
}
