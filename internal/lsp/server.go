package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

// JSON-RPC and LSP error codes.
const (
	codeParseError           = -32700
	codeInvalidRequest       = -32600
	codeMethodNotFound       = -32601
	codeInvalidParams        = -32602
	codeServerNotInitialized = -32002
	codeRequestFailed        = -32803
)

// ErrExitWithoutShutdown is returned by Run when the client sends exit
// without a preceding shutdown request.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// errMalformedMessage marks a message that could not be framed or decoded.
// The server reports it and keeps reading.
var errMalformedMessage = errors.New("malformed message")

// Server implements the Language Server Protocol for T-SQL documents.
type Server struct {
	documents *DocumentStore
	formatter *tsqlfmt.Formatter
	opts      format.Options

	// Lifecycle state, owned by the Run goroutine.
	initialized bool
	shutdown    bool
	exited      bool
	ctx         context.Context

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger
}

// NewServer creates a server that formats with f. opts are the formatting
// defaults; clients may override them in initializationOptions.
func NewServer(reader io.Reader, writer io.Writer, f *tsqlfmt.Formatter, opts format.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.ColorizeOutput = false
	return &Server{
		documents: NewDocumentStore(),
		formatter: f,
		opts:      opts,
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Run processes JSON-RPC messages until the client disconnects, sends
// exit, or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Debug("language server starting")

	for ctx.Err() == nil {
		msg, err := s.readMessage()
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			s.logger.Debug("client disconnected")
			return nil
		case errors.Is(err, errMalformedMessage):
			s.logger.Error("failed to read message", "error", err)
			s.sendResponse(nil, nil, &JSONRPCError{Code: codeParseError, Message: err.Error()})
			continue
		case err != nil:
			return fmt.Errorf("failed to read message: %w", err)
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("failed to handle message", "method", msg.Method, "error", err)
		}
		if s.exited {
			if !s.shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}
	}
	return nil
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// readMessage reads one Content-Length framed message.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		contentLength, err = strconv.Atoi(strings.TrimSpace(value))
		if err != nil || contentLength < 0 {
			return nil, fmt.Errorf("%w: invalid Content-Length %q", errMalformedMessage, value)
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", errMalformedMessage)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, err
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedMessage, err)
	}
	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("failed to marshal result", "error", err)
			msg.Error = &JSONRPCError{Code: codeRequestFailed, Message: err.Error()}
		} else {
			msg.Result = resultBytes
		}
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(s.writer, header); err != nil {
		s.logger.Error("failed to write message", "error", err)
		return
	}
	if _, err := s.writer.Write(body); err != nil {
		s.logger.Error("failed to write message", "error", err)
	}
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("received", "method", msg.Method)

	switch {
	case msg.Method == "exit":
		return s.handleExit(msg)
	case !s.initialized && msg.Method != "initialize":
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeServerNotInitialized, Message: "server not initialized"})
		}
		return nil
	case s.shutdown:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.logger.Debug("client initialized")
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/formatting":
		return s.handleFormatting(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	if s.initialized {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server already initialized"})
		return nil
	}

	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	if len(params.InitializationOptions) > 0 && string(params.InitializationOptions) != "null" {
		opts := s.opts
		if err := json.Unmarshal(params.InitializationOptions, &opts); err != nil {
			err = fmt.Errorf("invalid initialization options: %w", err)
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
			return err
		}
		if err := opts.Validate(); err != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
			return err
		}
		opts.ColorizeOutput = false
		s.opts = opts
	}

	s.initialized = true
	s.logger.Debug("initialized", "root", URIToPath(params.RootURI))

	s.sendResponse(msg.ID, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save:      &SaveOptions{IncludeText: true},
			},
			DocumentFormattingProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "tsqlfmt"},
	}, nil)
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdown = true
	s.sendResponse(msg.ID, nil, nil)
	s.logger.Debug("shutdown requested")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.exited = true
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", "uri", params.TextDocument.URI)

	s.publishDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Debug("closed", "uri", params.TextDocument.URI)

	s.clearDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	// Full sync: the last change holds the whole document.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if !s.documents.Update(params.TextDocument.URI, last.Text, params.TextDocument.Version) {
		return fmt.Errorf("change for unopened document %s", params.TextDocument.URI)
	}

	s.publishDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidSave(msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	doc := s.documents.Get(uri)
	if doc == nil || params.Text == nil {
		return nil
	}
	if *params.Text != doc.Content {
		s.documents.Update(uri, *params.Text, doc.Version)
		s.publishDiagnostics(uri)
	}
	return nil
}

// --- Formatting ---

func (s *Server) handleFormatting(msg *JSONRPCMessage) error {
	var params DocumentFormattingParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		err := fmt.Errorf("document not open: %s", params.TextDocument.URI)
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	res, err := s.formatter.FormatAsync(s.ctx, doc.Content, s.optionsFor(params.Options))
	if err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeRequestFailed, Message: err.Error()})
		return err
	}

	edits := []TextEdit{}
	switch {
	case !res.Success:
		message := "cannot format: " + res.ErrorMessage
		if res.ErrorLine != nil {
			message = fmt.Sprintf("cannot format: line %d, column %d: %s", *res.ErrorLine, *res.ErrorColumn, res.ErrorMessage)
		}
		s.sendNotification("window/showMessage", &ShowMessageParams{Type: MessageTypeWarning, Message: message})
	case res.FormattedSQL != doc.Content:
		edits = append(edits, TextEdit{
			Range:   Range{End: doc.End()},
			NewText: res.FormattedSQL,
		})
	}

	s.sendResponse(msg.ID, edits, nil)
	return nil
}

// optionsFor applies the editor's indentation preferences to the defaults.
func (s *Server) optionsFor(fo FormattingOptions) format.Options {
	opts := s.opts
	if fo.TabSize <= 0 {
		return opts
	}
	if fo.InsertSpaces {
		opts.IndentUnit = strings.Repeat(" ", fo.TabSize)
	} else {
		opts.IndentUnit = "\t"
		opts.SpacesPerTab = fo.TabSize
	}
	return opts
}
