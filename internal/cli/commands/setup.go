package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/cli/config"
	"github.com/leapstack-labs/tsqlfmt/internal/cli/output"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Formatter *tsqlfmt.Formatter
	Renderer  *output.Renderer
}

// NewCommandContext builds the formatter from the loaded configuration.
// The returned cleanup function must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func()) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	f := tsqlfmt.New(
		tsqlfmt.WithConcurrency(cfg.Concurrency),
		tsqlfmt.WithLogger(logger),
	)

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Formatter: f,
		Renderer:  output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto),
	}, func() { _ = f.Close() }
}
