package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

// FormatRequest is the body of POST /v1/format. Options holds any subset of
// the formatting options; fields it leaves out keep the server defaults.
type FormatRequest struct {
	SQL     string          `json:"sql"`
	Options json.RawMessage `json:"options,omitempty"`
}

// ValidateRequest is the body of POST /v1/validate.
type ValidateRequest struct {
	SQL string `json:"sql"`
}

// ObfuscateRequest is the body of POST /v1/obfuscate.
type ObfuscateRequest struct {
	SQL         string `json:"sql"`
	Identifiers bool   `json:"identifiers,omitempty"`
}

// ObfuscateResponse is the body returned by POST /v1/obfuscate.
type ObfuscateResponse struct {
	SQL string `json:"sql"`
}

// HealthResponse is the body returned by GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Concurrency int    `json:"concurrency"`
	Active      int64  `json:"active"`
	Peak        int64  `json:"peak"`
	Completed   int64  `json:"completed"`
	Failed      int64  `json:"failed"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts := s.defaults
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid options: %w", err))
			return
		}
	}
	// Terminal escapes make no sense in a JSON response.
	opts.ColorizeOutput = false
	if err := opts.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := s.formatter.FormatAsync(r.Context(), req.SQL, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Debug("format request abandoned", "request_id", middleware.GetReqID(r.Context()), "error", err)
		}
		s.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, func() any {
		return s.formatter.Validate(req.SQL)
	})
}

func (s *Server) handleObfuscate(w http.ResponseWriter, r *http.Request) {
	var req ObfuscateRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts := s.defaults
	opts.ColorizeOutput = false

	s.respond(w, r, func() any {
		if req.Identifiers {
			return ObfuscateResponse{SQL: s.formatter.ObfuscateIdentifiers(req.SQL, opts)}
		}
		return ObfuscateResponse{SQL: s.formatter.Obfuscate(req.SQL, opts)}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.formatter.Stats()
	status := "ok"
	code := http.StatusOK
	if s.formatter.Closed() {
		status = "closed"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, HealthResponse{
		Status:      status,
		Concurrency: stats.Concurrency,
		Active:      stats.Active,
		Peak:        stats.Peak,
		Completed:   stats.Completed,
		Failed:      stats.Failed,
	})
}

// respond writes the result of a synchronous formatter call, or 503 when
// the formatter is closed before or during the call.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, call func() any) {
	v, err := whileOpen(call)
	if err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// whileOpen turns the ErrClosed panic of the synchronous entry points into
// an error. Any other panic is passed on.
func whileOpen(call func() any) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok && errors.Is(e, tsqlfmt.ErrClosed) {
				err = tsqlfmt.ErrClosed
				return
			}
			panic(rec)
		}
	}()
	return call(), nil
}

// decode reads a JSON body into v, answering 400 or 413 when it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}
