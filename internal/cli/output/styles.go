package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Success  lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Location lipgloss.Style
}

// NewStyles creates styles bound to r, which decides whether colors are
// emitted.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Info:     r.NewStyle().Foreground(lipgloss.Color("12")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:     r.NewStyle().Bold(true),
		Location: r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// Severity returns the style for a diagnostic severity.
func (s *Styles) Severity(sev tree.Severity) lipgloss.Style {
	switch sev {
	case tree.SeverityError:
		return s.Error
	case tree.SeverityWarning:
		return s.Warning
	case tree.SeverityInfo:
		return s.Info
	default:
		return s.Muted
	}
}
