package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	d := server.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the formatter over HTTP",
		Long: `Start an HTTP server exposing formatting, validation and obfuscation.

Endpoints:
  POST /v1/format     {"sql": "...", "options": {...}}
  POST /v1/validate   {"sql": "..."}
  POST /v1/obfuscate  {"sql": "...", "identifiers": false}
  GET  /healthz

Formatting flags set the defaults that request options are merged over.
The server stops gracefully on SIGINT or SIGTERM.`,
		Example: `  tsqlfmt serve --addr 127.0.0.1:9000 --indent 4`,
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}

	cmd.Flags().String("addr", d.Addr, "Listen address")
	cmd.Flags().Duration("read-header-timeout", d.ReadHeaderTimeout, "Maximum time to read request headers")
	cmd.Flags().Duration("shutdown-timeout", d.ShutdownTimeout, "Maximum time to drain requests on shutdown")
	cmd.Flags().Int64("max-body-bytes", d.MaxBodyBytes, "Maximum request body size")
	addFormatFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup := NewCommandContext(cmd)
	defer cleanup()

	defaults := cmdCtx.Cfg.Format
	defaults.ColorizeOutput = false

	srv := server.New(cmdCtx.Cfg.Server, cmdCtx.Formatter, defaults, cmdCtx.Logger)
	return srv.Serve(cmd.Context())
}
