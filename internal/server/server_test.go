package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/internal/server"
	"github.com/leapstack-labs/tsqlfmt/internal/testutil"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
	"github.com/leapstack-labs/tsqlfmt/pkg/validate"
)

func newServer(t *testing.T, cfg server.Config) (*server.Server, *tsqlfmt.Formatter) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	f := tsqlfmt.New(tsqlfmt.WithLogger(logger))
	t.Cleanup(func() { _ = f.Close() })
	return server.New(cfg, f, format.DefaultOptions(), logger), f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ---------- Format ----------

func TestFormatEndpoint(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	h := srv.Handler()

	tests := []struct {
		name    string
		body    string
		want    string
		success bool
	}{
		{
			name:    "defaults",
			body:    `{"sql": "select a,b from t where x=1"}`,
			want:    "SELECT a\n\t,b\nFROM t\nWHERE x = 1\n",
			success: true,
		},
		{
			name:    "partial options keep other defaults",
			body:    `{"sql": "select a from t", "options": {"keyword_casing": "lower"}}`,
			want:    "select a\nfrom t\n",
			success: true,
		},
		{
			name:    "syntax error returns input",
			body:    `{"sql": "select * from"}`,
			want:    "select * from",
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/format", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			res := decodeBody[tsqlfmt.Result](t, rec)
			assert.Equal(t, tt.want, res.FormattedSQL)
			assert.Equal(t, tt.success, res.Success)
			if !tt.success {
				require.NotNil(t, res.ErrorLine)
				assert.Equal(t, 1, *res.ErrorLine)
				assert.NotEmpty(t, res.ErrorMessage)
			}
		})
	}
}

func TestFormatEndpointRejectsBadRequests(t *testing.T) {
	srv, _ := newServer(t, server.Config{
		Addr:              server.DefaultAddr,
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxBodyBytes:      64,
	})
	h := srv.Handler()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{"sql": `, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"query": "select 1"}`, status: http.StatusBadRequest},
		{name: "bad option type", body: `{"sql": "select 1", "options": {"max_line_width": "wide"}}`, status: http.StatusBadRequest},
		{name: "bad casing", body: `{"sql": "select 1", "options": {"keyword_casing": "shouty"}}`, status: http.StatusBadRequest},
		{name: "invalid options", body: `{"sql": "select 1", "options": {"indent_unit": "x"}}`, status: http.StatusBadRequest},
		{name: "too large", body: fmt.Sprintf(`{"sql": %q}`, strings.Repeat("a", 100)), status: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/format", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			res := decodeBody[server.ErrorResponse](t, rec)
			assert.NotEmpty(t, res.Error)
			assert.NotEmpty(t, res.RequestID)
		})
	}
}

func TestFormatEndpointWrongContentType(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	req := httptest.NewRequest(http.MethodPost, "/v1/format", strings.NewReader(`{"sql": "select 1"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestFormatEndpointCancelled(t *testing.T) {
	srv, f := newServer(t, server.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/format", strings.NewReader(`{"sql": "select 1"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int64(1), f.Stats().Cancelled)
}

func TestEndpointsAfterClose(t *testing.T) {
	srv, f := newServer(t, server.DefaultConfig())
	require.NoError(t, f.Close())
	h := srv.Handler()

	for _, path := range []string{"/v1/format", "/v1/validate", "/v1/obfuscate"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, path, `{"sql": "select 1"}`)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			res := decodeBody[server.ErrorResponse](t, rec)
			assert.Equal(t, tsqlfmt.ErrClosed.Error(), res.Error)
		})
	}

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "closed", decodeBody[server.HealthResponse](t, rec).Status)
}

// ---------- Validate ----------

func TestValidateEndpoint(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/v1/validate", `{"sql": "select 1 select"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[validate.Result](t, rec)
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, 1, res.Errors[0].Line)
	assert.Equal(t, 10, res.Errors[0].Column)

	rec = do(t, h, http.MethodPost, "/v1/validate", `{"sql": "select 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_valid": true, "errors": []}`, rec.Body.String())
}

// ---------- Obfuscate ----------

func TestObfuscateEndpoint(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "literals",
			body: `{"sql": "select * from t where name='secret'"}`,
			want: "SELECT *\nFROM t\nWHERE name = 'str1'\n",
		},
		{
			name: "identifiers",
			body: `{"sql": "select price from items where price = 99", "identifiers": true}`,
			want: "SELECT id1\nFROM id2\nWHERE id1 = 1\n",
		},
		{
			name: "syntax error keeps layout",
			body: `{"sql": "select 'secret', 42 from"}`,
			want: "select 'str1', 1 from",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/obfuscate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, decodeBody[server.ObfuscateResponse](t, rec).SQL)
		})
	}
}

// ---------- Health & Middleware ----------

func TestHealthEndpoint(t *testing.T) {
	srv, f := newServer(t, server.DefaultConfig())
	h := srv.Handler()

	do(t, h, http.MethodPost, "/v1/format", `{"sql": "select 1"}`)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[server.HealthResponse](t, rec)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, f.Concurrency(), res.Concurrency)
	assert.Equal(t, int64(0), res.Active)
	assert.Equal(t, int64(1), res.Peak)
	assert.Equal(t, int64(1), res.Completed)
}

func TestRequestID(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	generated := rec.Header().Get(server.RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(server.RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(server.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(server.RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(server.RequestIDHeader))
}

func TestRequestLogging(t *testing.T) {
	logger, logs := testutil.NewCapturingLogger(t)
	f := tsqlfmt.New(tsqlfmt.WithLogger(logger))
	t.Cleanup(func() { _ = f.Close() })
	h := server.New(server.DefaultConfig(), f, format.DefaultOptions(), logger).Handler()

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(`{"sql": "select 1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.RequestIDHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := logs.Lines("msg=request", "request_id="+id)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "method=POST")
	assert.Contains(t, lines[0], "path=/v1/validate")
	assert.Contains(t, lines[0], "status=200")
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())
	rec := do(t, srv.Handler(), http.MethodGet, "/v1/format", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ---------- Lifecycle ----------

func TestServeListener(t *testing.T) {
	srv, _ := newServer(t, server.DefaultConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/v1/format", "application/json",
		strings.NewReader(`{"sql": "select a,b from t"}`))
	require.NoError(t, err)
	var res tsqlfmt.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.NoError(t, resp.Body.Close())
	assert.True(t, res.Success)
	assert.Equal(t, "SELECT a\n\t,b\nFROM t\n", res.FormattedSQL)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	cfg := server.DefaultConfig()
	cfg.Addr = ln.Addr().String()
	srv, _ := newServer(t, cfg)

	err = srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

// ---------- Config ----------

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*server.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*server.Config) {}},
		{name: "empty addr", mutate: func(c *server.Config) { c.Addr = " " }, wantErr: "addr is required"},
		{name: "read header timeout", mutate: func(c *server.Config) { c.ReadHeaderTimeout = 0 }, wantErr: "read_header_timeout"},
		{name: "shutdown timeout", mutate: func(c *server.Config) { c.ShutdownTimeout = -time.Second }, wantErr: "shutdown_timeout"},
		{name: "body limit", mutate: func(c *server.Config) { c.MaxBodyBytes = 0 }, wantErr: "max_body_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
