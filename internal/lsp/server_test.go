package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

const testURI = "file:///work/query.sql"

// request builds a client message. A zero id makes it a notification.
func request(id int, method string, params any) map[string]any {
	msg := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != 0 {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	return msg
}

func frame(t *testing.T, msgs ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range msgs {
		var body []byte
		if raw, ok := m.(string); ok {
			body = []byte(raw)
		} else {
			var err error
			body, err = json.Marshal(m)
			require.NoError(t, err)
		}
		fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
		buf.Write(body)
	}
	return &buf
}

func readFrames(t *testing.T, out io.Reader) []JSONRPCMessage {
	t.Helper()
	r := bufio.NewReader(out)
	var msgs []JSONRPCMessage
	for {
		header, err := r.ReadString('\n')
		if err == io.EOF {
			return msgs
		}
		require.NoError(t, err)
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		require.NoError(t, err, "header %q", header)
		_, err = r.ReadString('\n')
		require.NoError(t, err)

		body := make([]byte, n)
		_, err = io.ReadFull(r, body)
		require.NoError(t, err)

		var msg JSONRPCMessage
		require.NoError(t, json.Unmarshal(body, &msg))
		msgs = append(msgs, msg)
	}
}

func session(t *testing.T, opts format.Options, msgs ...any) ([]JSONRPCMessage, error) {
	t.Helper()
	f := tsqlfmt.New()
	t.Cleanup(func() { _ = f.Close() })

	var out bytes.Buffer
	err := NewServer(frame(t, msgs...), &out, f, opts, nil).Run(context.Background())
	return readFrames(t, &out), err
}

func initialize(options any) map[string]any {
	params := map[string]any{"processId": 1, "rootUri": "file:///work"}
	if options != nil {
		params["initializationOptions"] = options
	}
	return request(1, "initialize", params)
}

func didOpen(text string) map[string]any {
	return request(0, "textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{"uri": testURI, "languageId": "sql", "version": 1, "text": text},
	})
}

func formatting(id int, uri string, tabSize int, insertSpaces bool) map[string]any {
	return request(id, "textDocument/formatting", map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"options":      map[string]any{"tabSize": tabSize, "insertSpaces": insertSpaces},
	})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func responseTo(t *testing.T, msgs []JSONRPCMessage, id int) JSONRPCMessage {
	t.Helper()
	for _, m := range msgs {
		if m.ID != nil && string(*m.ID) == strconv.Itoa(id) {
			return m
		}
	}
	require.Failf(t, "missing response", "no response with id %d in %d messages", id, len(msgs))
	return JSONRPCMessage{}
}

func notifications(msgs []JSONRPCMessage, method string) []JSONRPCMessage {
	var out []JSONRPCMessage
	for _, m := range msgs {
		if m.Method == method {
			out = append(out, m)
		}
	}
	return out
}

func TestServer_Lifecycle(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		request(0, "initialized", map[string]any{}),
		request(2, "shutdown", nil),
		request(0, "exit", nil),
		request(3, "shutdown", nil), // never read
	)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	result := decode[InitializeResult](t, responseTo(t, msgs, 1).Result)
	require.NotNil(t, result.Capabilities.TextDocumentSync)
	assert.True(t, result.Capabilities.TextDocumentSync.OpenClose)
	assert.Equal(t, TextDocumentSyncKindFull, result.Capabilities.TextDocumentSync.Change)
	assert.True(t, result.Capabilities.DocumentFormattingProvider)
	assert.Equal(t, "tsqlfmt", result.ServerInfo.Name)

	shutdown := responseTo(t, msgs, 2)
	assert.Nil(t, shutdown.Error)
	assert.Contains(t, []string{"", "null"}, string(shutdown.Result))
}

func TestServer_ExitWithoutShutdown(t *testing.T) {
	_, err := session(t, format.DefaultOptions(), initialize(nil), request(0, "exit", nil))
	assert.ErrorIs(t, err, ErrExitWithoutShutdown)
}

func TestServer_EOFEndsSession(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(), initialize(nil))
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestServer_CancelledContext(t *testing.T) {
	f := tsqlfmt.New()
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewServer(frame(t, initialize(nil)), &out, f, format.DefaultOptions(), nil).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Len())
}

func TestServer_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		msgs []any
		id   int
		code int
	}{
		{
			name: "request before initialize",
			msgs: []any{formatting(5, testURI, 4, false)},
			id:   5,
			code: codeServerNotInitialized,
		},
		{
			name: "second initialize",
			msgs: []any{initialize(nil), request(5, "initialize", map[string]any{})},
			id:   5,
			code: codeInvalidRequest,
		},
		{
			name: "request after shutdown",
			msgs: []any{initialize(nil), request(2, "shutdown", nil), formatting(5, testURI, 4, false)},
			id:   5,
			code: codeInvalidRequest,
		},
		{
			name: "unknown method",
			msgs: []any{initialize(nil), request(5, "textDocument/hover", map[string]any{})},
			id:   5,
			code: codeMethodNotFound,
		},
		{
			name: "document not open",
			msgs: []any{initialize(nil), formatting(5, "file:///missing.sql", 4, false)},
			id:   5,
			code: codeInvalidParams,
		},
		{
			name: "invalid initialization options",
			msgs: []any{request(5, "initialize", map[string]any{"initializationOptions": map[string]any{"indent_unit": "x"}})},
			id:   5,
			code: codeInvalidParams,
		},
		{
			name: "mistyped initialization options",
			msgs: []any{request(5, "initialize", map[string]any{"initializationOptions": map[string]any{"keyword_casing": "loud"}})},
			id:   5,
			code: codeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := session(t, format.DefaultOptions(), tt.msgs...)
			require.NoError(t, err)

			resp := responseTo(t, msgs, tt.id)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServer_UnknownNotificationIsIgnored(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		request(0, "$/setTrace", map[string]any{"value": "off"}),
	)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestServer_MalformedMessage(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(), "{not json", initialize(nil))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, codeParseError, msgs[0].Error.Code)
	assert.Nil(t, responseTo(t, msgs, 1).Error, "the session continues after a bad message")
}

func TestServer_Diagnostics(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		didOpen("select * from"),
		request(0, "textDocument/didChange", map[string]any{
			"textDocument":   map[string]any{"uri": testURI, "version": 2},
			"contentChanges": []any{map[string]any{"text": "select 1"}},
		}),
		request(0, "textDocument/didClose", map[string]any{
			"textDocument": map[string]any{"uri": testURI},
		}),
	)
	require.NoError(t, err)

	published := notifications(msgs, "textDocument/publishDiagnostics")
	require.Len(t, published, 3)

	opened := decode[PublishDiagnosticsParams](t, published[0].Params)
	assert.Equal(t, testURI, opened.URI)
	require.NotNil(t, opened.Version)
	assert.Equal(t, 1, *opened.Version)
	require.Len(t, opened.Diagnostics, 1)
	d := opened.Diagnostics[0]
	assert.Equal(t, Range{Start: Position{Character: 9}, End: Position{Character: 13}}, d.Range)
	assert.Equal(t, DiagnosticSeverityError, d.Severity)
	assert.Equal(t, "tsqlfmt", d.Source)
	assert.NotEmpty(t, d.Message)

	changed := decode[PublishDiagnosticsParams](t, published[1].Params)
	require.NotNil(t, changed.Version)
	assert.Equal(t, 2, *changed.Version)
	assert.Empty(t, changed.Diagnostics)

	closed := decode[PublishDiagnosticsParams](t, published[2].Params)
	assert.Nil(t, closed.Version)
	assert.NotNil(t, closed.Diagnostics)
	assert.Empty(t, closed.Diagnostics)
}

func TestServer_DidSaveRevalidates(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		didOpen("select 1"),
		request(0, "textDocument/didSave", map[string]any{
			"textDocument": map[string]any{"uri": testURI},
			"text":         "select 1",
		}),
		request(0, "textDocument/didSave", map[string]any{
			"textDocument": map[string]any{"uri": testURI},
			"text":         "select 1 select",
		}),
	)
	require.NoError(t, err)

	published := notifications(msgs, "textDocument/publishDiagnostics")
	require.Len(t, published, 2, "unchanged text is not revalidated")
	saved := decode[PublishDiagnosticsParams](t, published[1].Params)
	require.Len(t, saved.Diagnostics, 1)
	assert.Equal(t, Position{Character: 9}, saved.Diagnostics[0].Range.Start)
}

func TestServer_Formatting(t *testing.T) {
	const input = "select a,b from t where x=1"

	tests := []struct {
		name         string
		init         any
		tabSize      int
		insertSpaces bool
		want         string
	}{
		{name: "tabs", tabSize: 4, want: "SELECT a\n\t,b\nFROM t\nWHERE x = 1\n"},
		{name: "spaces", tabSize: 2, insertSpaces: true, want: "SELECT a\n  ,b\nFROM t\nWHERE x = 1\n"},
		{name: "no editor preference", want: "SELECT a\n\t,b\nFROM t\nWHERE x = 1\n"},
		{
			name:    "initialization options",
			init:    map[string]any{"keyword_casing": "lower"},
			tabSize: 4,
			want:    "select a\n\t,b\nfrom t\nwhere x = 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := session(t, format.DefaultOptions(),
				initialize(tt.init),
				didOpen(input),
				formatting(2, testURI, tt.tabSize, tt.insertSpaces),
			)
			require.NoError(t, err)

			resp := responseTo(t, msgs, 2)
			require.Nil(t, resp.Error)
			edits := decode[[]TextEdit](t, resp.Result)
			require.Len(t, edits, 1)
			assert.Equal(t, Range{End: Position{Character: uint32(len(input))}}, edits[0].Range)
			assert.Equal(t, tt.want, edits[0].NewText)
		})
	}
}

func TestServer_FormattingUsesConfiguredDefaults(t *testing.T) {
	opts := format.DefaultOptions()
	opts.KeywordCasing = format.CasingCapitalize
	opts.ColorizeOutput = true

	msgs, err := session(t, opts, initialize(nil), didOpen("select 1"), formatting(2, testURI, 4, false))
	require.NoError(t, err)

	edits := decode[[]TextEdit](t, responseTo(t, msgs, 2).Result)
	require.Len(t, edits, 1)
	assert.Equal(t, "Select 1\n", edits[0].NewText, "colors are never sent to the editor")
}

func TestServer_FormattingNoChange(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		didOpen("SELECT 1\n"),
		formatting(2, testURI, 4, false),
	)
	require.NoError(t, err)

	resp := responseTo(t, msgs, 2)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, "[]", string(resp.Result))
}

func TestServer_FormattingSyntaxError(t *testing.T) {
	msgs, err := session(t, format.DefaultOptions(),
		initialize(nil),
		didOpen("select * from"),
		formatting(2, testURI, 4, false),
	)
	require.NoError(t, err)

	resp := responseTo(t, msgs, 2)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, "[]", string(resp.Result))

	shown := notifications(msgs, "window/showMessage")
	require.Len(t, shown, 1)
	params := decode[ShowMessageParams](t, shown[0].Params)
	assert.Equal(t, MessageTypeWarning, params.Type)
	assert.Contains(t, params.Message, "line 1, column 10")
}

func TestServer_FormattingClosedFormatter(t *testing.T) {
	f := tsqlfmt.New()
	require.NoError(t, f.Close())

	var out bytes.Buffer
	in := frame(t, initialize(nil), formatting(2, testURI, 4, false))
	srv := NewServer(in, &out, f, format.DefaultOptions(), nil)
	srv.documents.Open(testURI, "select 1", 1)
	require.NoError(t, srv.Run(context.Background()))

	resp := responseTo(t, readFrames(t, &out), 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeRequestFailed, resp.Error.Code)
}
