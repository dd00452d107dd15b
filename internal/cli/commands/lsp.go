package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. It publishes
syntax errors for open documents and answers document formatting
requests. Formatting defaults come from the configuration file and
flags; clients may override them through initializationOptions using
the same keys as the format section of the configuration file.`,
		Example: `  # Start LSP server (usually called by an editor)
  tsqlfmt lsp

  # Lowercase keywords in every formatted document
  tsqlfmt lsp --keyword-casing lower`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	addFormatFlags(cmd)

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()

	server := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), cmdCtx.Formatter, cmdCtx.Cfg.Format, cmdCtx.Logger)
	return server.Run(cmd.Context())
}
