package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/cli/output"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

const (
	replPrompt     = "tsqlfmt> "
	replContPrompt = "     ...> "
)

// replMode is what the REPL does with each completed statement.
type replMode string

const (
	replFormat    replMode = "format"
	replValidate  replMode = "validate"
	replObfuscate replMode = "obfuscate"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Format SQL interactively",
		Long: `Start an interactive session that formats each statement as you type it.

Input is collected until a line ends with ";" or consists of GO. Dot
commands switch between formatting, validation and obfuscation.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
	addFormatFlags(cmd)
	return cmd
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	opts := cmdCtx.Cfg.Format
	opts.ColorizeOutput = opts.ColorizeOutput && output.IsTerminal(cmd.OutOrStdout())
	s := newREPLSession(cmdCtx.Formatter, opts, output.NewRenderer(rl.Stdout(), rl.Stderr(), output.ModeText))

	_, _ = fmt.Fprintln(rl.Stdout(), "tsqlfmt interactive formatter")
	_, _ = fmt.Fprintln(rl.Stdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(rl.Stdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if s.handleLine(line) {
			break
		}
		rl.SetPrompt(s.prompt())
	}
	return nil
}

// replSession holds the state of one interactive session.
type replSession struct {
	formatter *tsqlfmt.Formatter
	opts      format.Options
	r         *output.Renderer
	mode      replMode
	buf       strings.Builder
}

func newREPLSession(f *tsqlfmt.Formatter, opts format.Options, r *output.Renderer) *replSession {
	return &replSession{formatter: f, opts: opts, r: r, mode: replFormat}
}

func (s *replSession) reset() {
	s.buf.Reset()
}

func (s *replSession) prompt() string {
	if s.buf.Len() > 0 {
		return replContPrompt
	}
	return replPrompt
}

// handleLine processes one line of input and reports whether the session
// should end.
func (s *replSession) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if s.buf.Len() == 0 {
		if trimmed == "" {
			return false
		}
		if strings.HasPrefix(trimmed, ".") {
			return s.handleDotCommand(trimmed)
		}
	}

	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	if !strings.HasSuffix(trimmed, ";") && !strings.EqualFold(trimmed, "GO") {
		return false
	}

	sql := s.buf.String()
	s.buf.Reset()
	s.run(sql)
	return false
}

func (s *replSession) run(sql string) {
	switch s.mode {
	case replValidate:
		res := s.formatter.Validate(sql)
		renderValidationText(s.r, []fileValidation{{File: stdinName, Result: res}})
	case replObfuscate:
		s.r.Printf("%s", s.formatter.Obfuscate(sql, s.opts))
	default:
		res := s.formatter.Format(sql, s.opts)
		if !res.Success {
			s.r.Error(fmt.Sprintf("Error: %s", res.ErrorMessage))
			return
		}
		s.r.Printf("%s", res.FormattedSQL)
	}
}

func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.r.Writer())
	case ".format":
		s.mode = replFormat
		s.r.Muted("mode: format")
	case ".validate":
		s.mode = replValidate
		s.r.Muted("mode: validate")
	case ".obfuscate":
		s.mode = replObfuscate
		s.r.Muted("mode: obfuscate")
	case ".mode":
		s.r.Printf("%s\n", s.mode)
	default:
		s.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .format         Format each statement (default)
  .validate       Report syntax errors instead of formatting
  .obfuscate      Replace literals with placeholders
  .mode           Show the current mode
  .quit / .exit   Exit the REPL

Tips:
  - A statement is complete when a line ends with ";" or is GO
  - Ctrl+C discards the statement being typed
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func replCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".format"),
		readline.PcItem(".validate"),
		readline.PcItem(".obfuscate"),
		readline.PcItem(".mode"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile returns the REPL history path, or "" to keep history in
// memory when no home directory is known.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tsqlfmt_history")
}
