// Package format renders a parse tree as consistently laid out T-SQL.
package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/tsqlfmt/pkg/obfuscate"
	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
)

// padAuto lets the spacing rules decide the gap before the next piece.
const padAuto = -1

// piece is one unit of output text.
type piece struct {
	text string
	kind token.Kind
	role string
}

// Printer writes pieces separated by spaces or line breaks. Line breaks are
// requested with br and only materialize when the next piece is written,
// so the largest request between two pieces wins.
type Printer struct {
	opts   Options
	output strings.Builder

	depth  int
	breaks int // pending line breaks
	wrap   int // extra indent for a soft-wrapped line
	pad    int // spaces before the next piece, or padAuto
	inline int // >0 while laying out a construct on one line
	col    int
	prev   piece
	first  bool    // prev began its line
	held   []piece // line comments waiting for the end of the line

	started bool
	align   int // column name width inside an aligned column list

	caser        cases.Caser
	placeholders *obfuscate.Placeholders
}

func newPrinter(opts Options) *Printer {
	p := &Printer{
		opts:  opts,
		pad:   padAuto,
		caser: cases.Title(language.Und),
	}
	if opts.ObfuscateMode {
		p.placeholders = obfuscate.NewPlaceholders(opts.ObfuscateIdentifiers)
	}
	return p
}

// String returns the formatted output.
func (p *Printer) String() string {
	p.flushHeld()
	if p.output.Len() == 0 {
		return ""
	}
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

func (p *Printer) indent() {
	p.depth++
}

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

// br requests n line breaks before the next piece. It has no effect inside
// inline constructs.
func (p *Printer) br(n int) {
	if p.inline > 0 {
		return
	}
	p.forceBr(n)
}

// forceBr requests line breaks even inside inline constructs.
func (p *Printer) forceBr(n int) {
	if n > p.breaks {
		p.breaks = n
	}
}

// softWrap breaks the line before n when n would run past MaxLineWidth.
func (p *Printer) softWrap(n *tree.Node) {
	if !p.started || p.breaks > 0 || p.opts.MaxLineWidth <= 0 {
		return
	}
	if p.col+1+p.measure(n) > p.opts.MaxLineWidth {
		p.breaks = 1
		p.wrap = 1
	}
}

// measure returns the width n occupies when written on one line.
func (p *Printer) measure(n *tree.Node) int {
	width, count := 0, 0
	for _, leaf := range tree.Leaves(n) {
		if tree.IsTrivia(leaf) {
			continue
		}
		width += p.width(p.render(leaf, leafKind(leaf)))
		count++
	}
	if count > 1 {
		width += count - 1
	}
	return width
}

// width returns the display width of s, counting tabs as SpacesPerTab.
func (p *Printer) width(s string) int {
	w := 0
	for _, r := range s {
		if r == '\t' {
			w += p.opts.SpacesPerTab
			continue
		}
		w += runewidth.RuneWidth(r)
	}
	return w
}

// leaf writes one token of the tree.
func (p *Printer) leaf(n *tree.Node) {
	kind := leafKind(n)
	switch {
	case kind == token.Whitespace:
		return
	case kind.IsComment():
		p.comment(n, kind)
		return
	}
	p.emit(piece{text: p.render(n, kind), kind: kind, role: tree.Role(n)})
}

// keyword writes a keyword that is not in the source, such as the OUTER
// added by keyword standardization.
func (p *Printer) keyword(word string) {
	p.emit(piece{text: p.cased(word, p.opts.KeywordCasing), kind: token.Keyword})
}

// comment keeps own-line comments on their own line and trailing comments
// on the line of the previous piece.
func (p *Printer) comment(n *tree.Node, kind token.Kind) {
	if !p.opts.PreserveComments {
		return
	}
	c := piece{text: n.Text(), kind: kind}
	if own, _ := n.Attribute(tree.AttrOwnLine); own == "true" || !p.started {
		p.forceBr(1)
		p.emit(c)
		p.forceBr(1)
		return
	}

	// A line comment after a leading comma would push the item onto the
	// next line; it moves to the end of the item's line instead.
	if kind == token.LineComment && p.first && p.prev.text == "," {
		p.held = append(p.held, c)
		return
	}

	pending := p.breaks
	p.breaks = 0
	p.pad = 1
	p.emit(c)
	p.breaks = pending
	if kind == token.LineComment {
		p.forceBr(1)
	}
}

func (p *Printer) emit(c piece) {
	if len(p.held) > 0 && (p.breaks > 0 || c.text == ",") {
		p.flushHeld()
	}
	first := !p.started || p.breaks > 0
	if p.started {
		switch {
		case p.breaks > 0:
			p.output.WriteString(strings.Repeat("\n", p.breaks))
			indent := strings.Repeat(p.opts.IndentUnit, p.depth+p.wrap)
			p.output.WriteString(indent)
			p.col = p.width(indent)
		case p.pad > 0:
			p.output.WriteString(strings.Repeat(" ", p.pad))
			p.col += p.pad
		case p.pad == padAuto && p.needsSpace(c), p.pad == 0 && glues(p.prev.text, c.text):
			p.output.WriteByte(' ')
			p.col++
		}
	}

	p.output.WriteString(p.colorize(c))
	if i := strings.LastIndexByte(c.text, '\n'); i >= 0 {
		p.col = p.width(c.text[i+1:])
	} else {
		p.col += p.width(c.text)
	}

	p.prev = c
	p.first = first
	p.started = true
	p.breaks = 0
	p.wrap = 0
	p.pad = padAuto
}

// flushHeld writes the held line comments at the end of the current line.
func (p *Printer) flushHeld() {
	if len(p.held) == 0 {
		return
	}
	for _, c := range p.held {
		p.output.WriteByte(' ')
		p.output.WriteString(p.colorize(c))
		p.col += 1 + p.width(c.text)
	}
	p.held = p.held[:0]
	p.forceBr(1)
}

// needsSpace decides whether a space separates the previous piece from c.
func (p *Printer) needsSpace(c piece) bool {
	if glues(p.prev.text, c.text) {
		return true
	}
	prev := p.prev
	prevPunct := prev.kind == token.Punctuation
	punct := c.kind == token.Punctuation
	prevOp := prev.kind == token.Operator && prev.role != tree.RoleWildcard
	op := c.kind == token.Operator && c.role != tree.RoleWildcard

	switch {
	case punct && (c.text == "," || c.text == ";" || c.text == ")" || c.text == "."):
		return false
	case prevPunct && (prev.text == "(" || prev.text == "."):
		return false
	case punct && c.text == "(" && (prev.role == tree.RoleFunction || prev.role == tree.RoleDataType):
		return false
	case c.text == "::" || prev.text == "::":
		return false
	case prev.role == tree.RoleUnary:
		return false
	case c.role == tree.RoleUnary:
		return !prevOp || p.opts.SpaceAroundOperators
	case op || prevOp:
		return p.opts.SpaceAroundOperators
	case prevPunct && prev.text == ",":
		return p.opts.SpaceAfterComma
	}
	return true
}

// multiCharOperators mirrors the lexer: these pairs must not be formed by
// writing two operators next to each other.
var multiCharOperators = map[string]bool{
	"<>": true, "!=": true, "<=": true, ">=": true, "!<": true, "!>": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "&=": true,
	"|=": true, "^=": true, "::": true, "--": true, "/*": true, "*/": true,
}

// glues reports whether a and b would lex differently when written without
// a space between them.
func glues(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)

	switch {
	case isWordRune(last) && (isWordRune(first) || first == '\''):
		return true
	case last == '\'' && first == '\'', last == '"' && first == '"':
		return true
	case first == '.' && isDigit(a[0]), last == '.' && unicode.IsDigit(first):
		return true
	}
	return multiCharOperators[string(last)+string(first)]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordRune(r rune) bool {
	return r == '_' || r == '@' || r == '#' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// leafKind is the token kind used for layout. Promoted words are keywords.
func leafKind(n *tree.Node) token.Kind {
	if n.Name() == token.Keyword.String() {
		return token.Keyword
	}
	kind, _ := n.Kind()
	return kind
}

// render applies casing, keyword standardization and obfuscation.
func (p *Printer) render(n *tree.Node, kind token.Kind) string {
	text := n.Text()
	role := tree.Role(n)

	switch {
	case kind == token.BatchSeparator:
		return p.cased(text, p.opts.KeywordCasing)
	case kind == token.Keyword:
		if p.opts.KeywordStandardization {
			if long, ok := token.StandardForm(text); ok {
				text = long
			}
		}
		if role == tree.RoleFunction {
			return p.cased(text, p.opts.BuiltinFunctionCasing)
		}
		return p.cased(text, p.opts.KeywordCasing)
	case kind == token.Identifier && role == tree.RoleFunction && token.IsBuiltinFunction(text):
		return p.cased(text, p.opts.BuiltinFunctionCasing)
	case kind == token.Identifier && role == tree.RoleDataType && token.IsDataType(text):
		return p.cased(text, p.opts.DataTypeCasing)
	}

	if p.placeholders != nil {
		return p.placeholders.Replace(n)
	}
	return text
}

func (p *Printer) cased(text string, c Casing) string {
	switch c {
	case CasingLower:
		return strings.ToLower(text)
	case CasingUpper:
		return strings.ToUpper(text)
	case CasingCapitalize:
		return p.caser.String(strings.ToLower(text))
	default:
		return text
	}
}

// ANSI colors of the highlighted token classes.
const (
	colorKeyword  = "4"
	colorString   = "1"
	colorNumber   = "5"
	colorComment  = "2"
	colorOperator = "3"
)

func (p *Printer) colorize(c piece) string {
	if !p.opts.ColorizeOutput {
		return c.text
	}
	var color string
	switch c.kind {
	case token.Keyword:
		color = colorKeyword
	case token.StringLiteral, token.UnicodeStringLiteral:
		color = colorString
	case token.NumericLiteral:
		color = colorNumber
	case token.LineComment, token.BlockComment:
		color = colorComment
	case token.Operator:
		color = colorOperator
	default:
		return c.text
	}
	return termenv.ANSI.String(c.text).Foreground(termenv.ANSI.Color(color)).String()
}
