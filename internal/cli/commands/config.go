package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/cli/config"
)

// ConfigInitOptions holds options for the config init command.
type ConfigInitOptions struct {
	Force bool
}

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tsqlfmt configuration",
		Long: `Create or inspect the tsqlfmt configuration file.

Configuration is read from .tsqlfmt.yaml in the current directory or the
nearest parent, overridden by TSQLFMT_* environment variables and flags.`,
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	opts := &ConfigInitOptions{}
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default settings",
		Example: `  # Create .tsqlfmt.yaml in the current directory
  tsqlfmt config init

  # Overwrite an existing file
  tsqlfmt config init --force ci/tsqlfmt.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileNames[0]
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.WriteDefault(path, opts.Force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig(cmd.Context())
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if used := config.GetConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(w, "# config file: %s\n", used)
			}
			_, err = w.Write(data)
			return err
		},
	}
}
