package commands

import (
	"io"

	"github.com/spf13/cobra"
)

// ObfuscateOptions holds options for the obfuscate command.
type ObfuscateOptions struct {
	Identifiers bool // Also replace table, column and variable names
}

// NewObfuscateCommand creates the obfuscate command.
func NewObfuscateCommand() *cobra.Command {
	opts := &ObfuscateOptions{}
	cmd := &cobra.Command{
		Use:   "obfuscate [file...]",
		Short: "Replace literals (and optionally identifiers) with placeholders",
		Long: `Format T-SQL with every string and number replaced by a placeholder,
so queries can be shared without the data they contain.

Equal values map to equal placeholders within one input. Input that does
not parse keeps its layout and only has its tokens replaced.`,
		Example: `  # Hide literals
  echo "select * from users where email = 'a@b.c'" | tsqlfmt obfuscate

  # Hide table and column names too
  tsqlfmt obfuscate --identifiers query.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObfuscate(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Identifiers, "identifiers", false, "Also replace identifiers")
	addFormatFlags(cmd)

	return cmd
}

func runObfuscate(cmd *cobra.Command, args []string, opts *ObfuscateOptions) error {
	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()

	inputs, err := readInputs(cmd, args)
	if err != nil {
		return err
	}

	fmtOpts := cmdCtx.Cfg.Format
	for _, in := range inputs {
		var out string
		if opts.Identifiers {
			out = cmdCtx.Formatter.ObfuscateIdentifiers(in.SQL, fmtOpts)
		} else {
			out = cmdCtx.Formatter.Obfuscate(in.SQL, fmtOpts)
		}
		if _, err := io.WriteString(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	return nil
}
