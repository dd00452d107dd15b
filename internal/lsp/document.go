package lsp

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Document represents an open text document in the editor.
type Document struct {
	URI     string // Document URI (file:///path/to/file.sql)
	Content string // Full document content
	Version int    // Version number, incremented on each change
	Lines   []int  // Byte offsets of line starts for fast position lookups
}

// DocumentStore manages open documents in memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[uri] = newDocument(uri, content, version)
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri)
}

// Get returns a snapshot of the document, or nil when it is not open.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[uri]
}

// Update swaps in new content for an open document. Updates for documents
// that were never opened are ignored.
func (s *DocumentStore) Update(uri string, content string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[uri]; !ok {
		return false
	}
	s.documents[uri] = newDocument(uri, content, version)
	return true
}

// Len returns the number of open documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.documents)
}

// newDocument builds an immutable document so readers never see a
// half-updated one.
func newDocument(uri, content string, version int) *Document {
	return &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
}

// computeLineOffsets calculates byte offsets for each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0}

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

// Line returns the content of a zero-based line without its line break.
func (d *Document) Line(line int) string {
	if d == nil || line < 0 || line >= len(d.Lines) {
		return ""
	}

	start := d.Lines[line]
	end := len(d.Content)
	if line+1 < len(d.Lines) {
		end = d.Lines[line+1] - 1
	}
	return strings.TrimSuffix(d.Content[start:end], "\r")
}

// PositionAt converts a 1-based line and character column, as reported by
// the parser, to an LSP position. LSP characters count UTF-16 code units.
func (d *Document) PositionAt(line, column int) Position {
	if d == nil || line < 1 {
		return Position{}
	}
	if line > len(d.Lines) {
		return d.End()
	}

	text := d.Line(line - 1)
	units := 0
	for i := 1; i < column && text != ""; i++ {
		r, size := utf8.DecodeRuneInString(text)
		units += utf16Len(r)
		text = text[size:]
	}
	return Position{Line: uint32(line - 1), Character: uint32(units)}
}

// WordRange returns the range of the word starting at pos, or a
// one-character range when no word starts there.
func (d *Document) WordRange(pos Position) Range {
	text := d.Line(int(pos.Line))

	// Skip to the byte offset of pos.
	units := uint32(0)
	for units < pos.Character && text != "" {
		r, size := utf8.DecodeRuneInString(text)
		units += uint32(utf16Len(r))
		text = text[size:]
	}

	end := units
	for text != "" {
		r, size := utf8.DecodeRuneInString(text)
		if !isWordRune(r) {
			break
		}
		end += uint32(utf16Len(r))
		text = text[size:]
	}
	if end == units && text != "" {
		r, _ := utf8.DecodeRuneInString(text)
		end += uint32(utf16Len(r))
	}

	return Range{Start: pos, End: Position{Line: pos.Line, Character: end}}
}

// End returns the position just past the last character.
func (d *Document) End() Position {
	if d == nil || len(d.Lines) == 0 {
		return Position{}
	}
	last := len(d.Lines) - 1
	tail := d.Content[d.Lines[last]:]
	units := 0
	for _, r := range tail {
		units += utf16Len(r)
	}
	return Position{Line: uint32(last), Character: uint32(units)}
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func isWordRune(r rune) bool {
	return r == '_' || r == '@' || r == '#' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}
