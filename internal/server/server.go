// Package server exposes the formatter over HTTP.
//
// Endpoints:
//
//	POST /v1/format     {"sql": "...", "options": {...}}  → formatting result
//	POST /v1/validate   {"sql": "..."}                    → validation result
//	POST /v1/obfuscate  {"sql": "...", "identifiers": b}  → {"sql": "..."}
//	GET  /healthz                                         → facade statistics
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

// Server is the HTTP API server.
type Server struct {
	cfg       Config
	formatter *tsqlfmt.Formatter
	defaults  format.Options
	logger    *slog.Logger
}

// New creates a server. defaults are the options a request's own options
// are merged over.
func New(cfg Config, f *tsqlfmt.Formatter, defaults format.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		cfg:       cfg,
		formatter: f,
		defaults:  defaults,
		logger:    logger,
	}
}

// Handler returns the router with all middleware and routes installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		s.requestID,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))
		r.Post("/format", s.handleFormat)
		r.Post("/validate", s.handleValidate)
		r.Post("/obfuscate", s.handleObfuscate)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
