package obfuscate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// Placeholders hands out stable replacement names for literal and
// identifier values. Equal source values get the same placeholder for the
// lifetime of the allocator, so a Placeholders value covers one document.
// It is not safe for concurrent use.
type Placeholders struct {
	identifiers bool
	assigned    map[string]string
	counts      map[category]int
}

type category uint8

const (
	catString category = iota
	catNumber
	catHex
	catIdentifier
	catVariable
	catTemp
	catGlobalTemp
)

// NewPlaceholders creates an allocator. With identifiers set, identifier
// leaves are replaced as well as literals.
func NewPlaceholders(identifiers bool) *Placeholders {
	return &Placeholders{
		identifiers: identifiers,
		assigned:    make(map[string]string),
		counts:      make(map[category]int),
	}
}

// Replace returns the text to emit for leaf. Leaves that are not replaced
// come back unchanged.
func (p *Placeholders) Replace(leaf *tree.Node) string {
	text := leaf.Text()
	if !leaf.IsLeaf() || leaf.Name() == token.Keyword.String() {
		return text
	}
	kind, _ := leaf.Kind()

	switch kind {
	case token.StringLiteral:
		return p.alloc(catString, text[1:len(text)-1], func(n int) string {
			return "'str" + strconv.Itoa(n) + "'"
		})
	case token.UnicodeStringLiteral:
		return text[:1] + p.alloc(catString, text[2:len(text)-1], func(n int) string {
			return "'str" + strconv.Itoa(n) + "'"
		})
	case token.NumericLiteral:
		if len(text) > 1 && (text[1] == 'x' || text[1] == 'X') {
			return p.alloc(catHex, strings.ToLower(text), func(n int) string {
				return fmt.Sprintf("0x%02X", n)
			})
		}
		return p.alloc(catNumber, text, strconv.Itoa)
	}

	if !p.identifiers || !kind.IsIdentifier() || keepIdentifier(leaf, kind, text) {
		return text
	}

	switch kind {
	case token.BracketedIdentifier:
		name := strings.ReplaceAll(text[1:len(text)-1], "]]", "]")
		return "[" + p.identifier(name) + "]"
	case token.QuotedIdentifier:
		name := strings.ReplaceAll(text[1:len(text)-1], `""`, `"`)
		return `"` + p.identifier(name) + `"`
	}

	switch {
	case strings.HasPrefix(text, "@"):
		return p.alloc(catVariable, strings.ToLower(text), func(n int) string {
			return "@v" + strconv.Itoa(n)
		})
	case strings.HasPrefix(text, "##"):
		return p.alloc(catGlobalTemp, strings.ToLower(text), func(n int) string {
			return "##t" + strconv.Itoa(n)
		})
	case strings.HasPrefix(text, "#"):
		return p.alloc(catTemp, strings.ToLower(text), func(n int) string {
			return "#t" + strconv.Itoa(n)
		})
	}
	return p.identifier(text)
}

// identifier allocates the shared idN name for a plain, bracketed or quoted
// spelling of the same name.
func (p *Placeholders) identifier(name string) string {
	return p.alloc(catIdentifier, strings.ToLower(name), func(n int) string {
		return "id" + strconv.Itoa(n)
	})
}

func (p *Placeholders) alloc(c category, value string, name func(int) string) string {
	key := strconv.Itoa(int(c)) + ":" + value
	if s, ok := p.assigned[key]; ok {
		return s
	}
	p.counts[c]++
	s := name(p.counts[c])
	p.assigned[key] = s
	return s
}

// keepIdentifier reports whether an identifier names something other than
// user data: system variables, builtin functions, system data types and
// session option words.
func keepIdentifier(leaf *tree.Node, kind token.Kind, text string) bool {
	if strings.HasPrefix(text, "@@") {
		return true
	}
	name := text
	if kind != token.Identifier {
		name = text[1 : len(text)-1]
	}
	switch tree.Role(leaf) {
	case tree.RoleFunction:
		return token.IsBuiltinFunction(name)
	case tree.RoleDataType:
		return token.IsDataType(name)
	}
	if parent := leaf.Parent(); parent != nil && parent.Name() == tree.NodeSetStatement {
		return true
	}
	return false
}
