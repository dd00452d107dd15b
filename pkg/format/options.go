package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidOptions is wrapped by every error returned from Options.Validate.
var ErrInvalidOptions = errors.New("invalid formatting options")

// Casing selects how keywords, builtin functions and data types are re-cased.
type Casing uint8

// Casing values.
const (
	CasingLower Casing = iota
	CasingUpper
	CasingCapitalize
	CasingAsIs
)

var casingNames = [...]string{
	CasingLower:      "lower",
	CasingUpper:      "upper",
	CasingCapitalize: "capitalize",
	CasingAsIs:       "asis",
}

func (c Casing) String() string {
	if int(c) < len(casingNames) {
		return casingNames[c]
	}
	return fmt.Sprintf("Casing(%d)", c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Casing) MarshalText() ([]byte, error) {
	if int(c) >= len(casingNames) {
		return nil, fmt.Errorf("unknown casing %d", c)
	}
	return []byte(casingNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Matching is
// case-insensitive and accepts "as_is" and "as-is" for CasingAsIs.
func (c *Casing) UnmarshalText(text []byte) error {
	parsed, err := ParseCasing(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCasing parses a casing name.
func ParseCasing(s string) (Casing, error) {
	name := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for i, n := range casingNames {
		if n == name {
			return Casing(i), nil
		}
	}
	return 0, fmt.Errorf("unknown casing %q (want lower, upper, capitalize or asis)", s)
}

// Options controls the layout of formatted SQL. Options is a plain value:
// copy it freely and pass it by value.
type Options struct {
	IndentUnit   string `koanf:"indent_unit" json:"indent_unit" yaml:"indent_unit"`
	SpacesPerTab int    `koanf:"spaces_per_tab" json:"spaces_per_tab" yaml:"spaces_per_tab"`
	MaxLineWidth int    `koanf:"max_line_width" json:"max_line_width" yaml:"max_line_width"`

	ExpandCommaLists         bool `koanf:"expand_comma_lists" json:"expand_comma_lists" yaml:"expand_comma_lists"`
	ExpandBooleanExpressions bool `koanf:"expand_boolean_expressions" json:"expand_boolean_expressions" yaml:"expand_boolean_expressions"`
	ExpandCaseStatements     bool `koanf:"expand_case_statements" json:"expand_case_statements" yaml:"expand_case_statements"`
	ExpandBetweenConditions  bool `koanf:"expand_between_conditions" json:"expand_between_conditions" yaml:"expand_between_conditions"`
	ExpandInLists            bool `koanf:"expand_in_lists" json:"expand_in_lists" yaml:"expand_in_lists"`
	ExpandInListsThreshold   int  `koanf:"expand_in_lists_threshold" json:"expand_in_lists_threshold" yaml:"expand_in_lists_threshold"`

	SpaceAfterComma         bool `koanf:"space_after_comma" json:"space_after_comma" yaml:"space_after_comma"`
	SpaceAroundOperators    bool `koanf:"space_around_operators" json:"space_around_operators" yaml:"space_around_operators"`
	SpaceAfterExpandedComma bool `koanf:"space_after_expanded_comma" json:"space_after_expanded_comma" yaml:"space_after_expanded_comma"`
	TrailingCommas          bool `koanf:"trailing_commas" json:"trailing_commas" yaml:"trailing_commas"`

	ObfuscateMode          bool `koanf:"obfuscate_mode" json:"obfuscate_mode" yaml:"obfuscate_mode"`
	ObfuscateIdentifiers   bool `koanf:"obfuscate_identifiers" json:"obfuscate_identifiers" yaml:"obfuscate_identifiers"`
	ColorizeOutput         bool `koanf:"colorize_output" json:"colorize_output" yaml:"colorize_output"`
	PreserveComments       bool `koanf:"preserve_comments" json:"preserve_comments" yaml:"preserve_comments"`
	AlignColumnDefinitions bool `koanf:"align_column_definitions" json:"align_column_definitions" yaml:"align_column_definitions"`

	KeywordCasing         Casing `koanf:"keyword_casing" json:"keyword_casing" yaml:"keyword_casing"`
	BuiltinFunctionCasing Casing `koanf:"builtin_function_casing" json:"builtin_function_casing" yaml:"builtin_function_casing"`
	DataTypeCasing        Casing `koanf:"datatype_casing" json:"datatype_casing" yaml:"datatype_casing"`

	NewClauseLineBreaks    int  `koanf:"new_clause_line_breaks" json:"new_clause_line_breaks" yaml:"new_clause_line_breaks"`
	NewStatementLineBreaks int  `koanf:"new_statement_line_breaks" json:"new_statement_line_breaks" yaml:"new_statement_line_breaks"`
	BreakJoinOnSections    bool `koanf:"break_join_on_sections" json:"break_join_on_sections" yaml:"break_join_on_sections"`
	KeywordStandardization bool `koanf:"keyword_standardization" json:"keyword_standardization" yaml:"keyword_standardization"`
}

// DefaultOptions returns the default formatting options.
func DefaultOptions() Options {
	return Options{
		IndentUnit:   "\t",
		SpacesPerTab: 4,
		MaxLineWidth: 999,

		ExpandCommaLists:         true,
		ExpandBooleanExpressions: true,
		ExpandCaseStatements:     true,
		ExpandBetweenConditions:  true,
		ExpandInLists:            true,
		ExpandInListsThreshold:   3,

		SpaceAfterComma:      true,
		SpaceAroundOperators: true,

		PreserveComments: true,

		KeywordCasing:         CasingUpper,
		BuiltinFunctionCasing: CasingUpper,
		DataTypeCasing:        CasingUpper,

		NewClauseLineBreaks:    1,
		NewStatementLineBreaks: 2,
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	switch {
	case o.IndentUnit == "":
		return fmt.Errorf("%w: indent_unit must not be empty", ErrInvalidOptions)
	case strings.Trim(o.IndentUnit, " \t") != "":
		return fmt.Errorf("%w: indent_unit must contain only spaces or tabs", ErrInvalidOptions)
	case o.SpacesPerTab < 1:
		return fmt.Errorf("%w: spaces_per_tab must be at least 1", ErrInvalidOptions)
	case o.MaxLineWidth < 0:
		return fmt.Errorf("%w: max_line_width must not be negative", ErrInvalidOptions)
	case o.ExpandInListsThreshold < 0:
		return fmt.Errorf("%w: expand_in_lists_threshold must not be negative", ErrInvalidOptions)
	case o.NewClauseLineBreaks < 0:
		return fmt.Errorf("%w: new_clause_line_breaks must not be negative", ErrInvalidOptions)
	case o.NewStatementLineBreaks < 0:
		return fmt.Errorf("%w: new_statement_line_breaks must not be negative", ErrInvalidOptions)
	}
	for _, c := range []Casing{o.KeywordCasing, o.BuiltinFunctionCasing, o.DataTypeCasing} {
		if int(c) >= len(casingNames) {
			return fmt.Errorf("%w: unknown casing %d", ErrInvalidOptions, c)
		}
	}
	return nil
}

// IndentWidth returns the visual width of one indent unit.
func (o Options) IndentWidth() int {
	width := 0
	for _, r := range o.IndentUnit {
		if r == '\t' {
			width += o.SpacesPerTab
		} else {
			width++
		}
	}
	return width
}

// IndentFromSpec converts "tab" or a number of spaces into an indent unit.
func IndentFromSpec(spec string) (string, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))
	if spec == "tab" || spec == "tabs" || spec == `\t` {
		return "\t", nil
	}
	n, err := strconv.Atoi(spec)
	if err != nil || n < 1 || n > 16 {
		return "", fmt.Errorf("%w: indent must be \"tab\" or a number of spaces between 1 and 16, got %q", ErrInvalidOptions, spec)
	}
	return strings.Repeat(" ", n), nil
}
