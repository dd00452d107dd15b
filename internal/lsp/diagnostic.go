package lsp

import (
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
	"github.com/leapstack-labs/tsqlfmt/pkg/validate"
)

const diagnosticSource = "tsqlfmt"

// publishDiagnostics validates the document and publishes its syntax errors.
func (s *Server) publishDiagnostics(uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	res := s.formatter.Validate(doc.Content)
	version := doc.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: toDiagnostics(doc, res),
	})
}

// clearDiagnostics removes every diagnostic published for uri.
func (s *Server) clearDiagnostics(uri string) {
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
}

// toDiagnostics converts validation errors. Each diagnostic covers the word
// at the reported position.
func toDiagnostics(doc *Document, res validate.Result) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(res.Errors))
	for _, e := range res.Errors {
		start := doc.PositionAt(e.Line, e.Column)
		diagnostics = append(diagnostics, Diagnostic{
			Range:    doc.WordRange(start),
			Severity: toSeverity(e.Severity),
			Source:   diagnosticSource,
			Message:  e.Message,
		})
	}
	return diagnostics
}

func toSeverity(s tree.Severity) DiagnosticSeverity {
	switch s {
	case tree.SeverityInfo:
		return DiagnosticSeverityInformation
	case tree.SeverityWarning:
		return DiagnosticSeverityWarning
	default:
		return DiagnosticSeverityError
	}
}
