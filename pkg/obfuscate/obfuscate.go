// Package obfuscate replaces literal values, and optionally identifiers, in
// parsed T-SQL with neutral placeholders while keeping the original layout.
package obfuscate

import (
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Mode selects what gets replaced.
type Mode int

const (
	// ModeLiterals replaces string and numeric literals.
	ModeLiterals Mode = iota
	// ModeIdentifiers also replaces table, column, alias, variable and
	// temporary object names.
	ModeIdentifiers
)

func (m Mode) String() string {
	if m == ModeIdentifiers {
		return "identifiers"
	}
	return "literals"
}

// Obfuscator rewrites a parse tree leaf by leaf. It holds no per-document
// state and may be shared between goroutines.
type Obfuscator struct {
	mode Mode
}

// New creates an Obfuscator for mode.
func New(mode Mode) *Obfuscator {
	return &Obfuscator{mode: mode}
}

// Mode returns the configured mode.
func (o *Obfuscator) Mode() Mode {
	return o.mode
}

// Obfuscate returns the source text of pt with every replaceable leaf
// swapped for its placeholder. Whitespace, comments and keyword spelling
// are left untouched. Trees with syntax errors are handled too, since every
// token is still a leaf.
func (o *Obfuscator) Obfuscate(pt *tree.ParseTree) string {
	if pt == nil || pt.Root == nil {
		return ""
	}
	ph := NewPlaceholders(o.mode == ModeIdentifiers)

	var sb strings.Builder
	for _, leaf := range tree.Leaves(pt.Root) {
		sb.WriteString(ph.Replace(leaf))
	}
	return sb.String()
}
