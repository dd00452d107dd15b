package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/cli/output"
	"github.com/leapstack-labs/tsqlfmt/pkg/validate"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Output string // auto, text, json or yaml
}

// fileValidation is the structured output for one input.
type fileValidation struct {
	File            string `json:"file" yaml:"file"`
	validate.Result `yaml:",inline"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Check T-SQL syntax",
		Long: `Check T-SQL syntax without formatting it.

Every diagnostic is reported with its line and column. The command exits
non-zero when any input has errors.`,
		Example: `  # Validate standard input
  echo "select * from" | tsqlfmt validate

  # Validate files and emit JSON
  tsqlfmt validate -o json queries/*.sql`,
		Aliases: []string{"check", "lint"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output format: auto, text, json or yaml")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	mode, err := output.ParseMode(opts.Output)
	if err != nil {
		return err
	}

	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	inputs, err := readInputs(cmd, args)
	if err != nil {
		return err
	}

	results := make([]fileValidation, 0, len(inputs))
	invalid := 0
	for _, in := range inputs {
		res := cmdCtx.Formatter.Validate(in.SQL)
		if !res.Valid {
			invalid++
		}
		results = append(results, fileValidation{File: in.Name, Result: res})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(structured(results))
	case output.ModeYAML:
		err = r.YAML(structured(results))
	default:
		renderValidationText(r, results)
	}
	if err != nil {
		return err
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d inputs have syntax errors", invalid, len(inputs))
	}
	return nil
}

// structured returns the plain result for standard input and the per-file
// list otherwise.
func structured(results []fileValidation) any {
	if len(results) == 1 && results[0].File == stdinName {
		return results[0].Result
	}
	return results
}

func renderValidationText(r *output.Renderer, results []fileValidation) {
	styles := r.Styles()
	for _, res := range results {
		if res.Valid {
			r.Printf("%s: %s\n", res.File, styles.Success.Render("ok"))
			continue
		}
		for _, e := range res.Errors {
			r.Printf("%s: %s: %s\n",
				styles.Location.Render(fmt.Sprintf("%s:%d:%d", res.File, e.Line, e.Column)),
				styles.Severity(e.Severity).Render(e.Severity.String()),
				e.Message)
		}
	}
}
