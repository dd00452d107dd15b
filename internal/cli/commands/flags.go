package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tsqlfmt/pkg/format"
)

// addFormatFlags registers one flag per formatting option. Flags only take
// effect when set; their values reach the command through the config loader,
// which maps --max-line-width to format.max_line_width and so on.
func addFormatFlags(cmd *cobra.Command) {
	d := format.DefaultOptions()
	fs := cmd.Flags()

	fs.String("indent", "", `Indentation: "tab" or a number of spaces`)
	fs.String("indent-unit", d.IndentUnit, "Literal text of one indentation level")
	fs.Int("spaces-per-tab", d.SpacesPerTab, "Width of a tab when measuring lines")
	fs.Int("max-line-width", d.MaxLineWidth, "Soft line width limit (0 disables wrapping)")

	fs.Bool("expand-comma-lists", d.ExpandCommaLists, "Put each comma list item on its own line")
	fs.Bool("expand-boolean-expressions", d.ExpandBooleanExpressions, "Put each AND/OR operand on its own line")
	fs.Bool("expand-case-statements", d.ExpandCaseStatements, "Put each WHEN/ELSE on its own line")
	fs.Bool("expand-between-conditions", d.ExpandBetweenConditions, "Break BETWEEN bounds onto separate lines")
	fs.Bool("expand-in-lists", d.ExpandInLists, "Expand IN lists longer than the threshold")
	fs.Int("expand-in-lists-threshold", d.ExpandInListsThreshold, "Item count above which IN lists expand")

	fs.Bool("space-after-comma", d.SpaceAfterComma, "Write a space after commas in compact lists")
	fs.Bool("space-around-operators", d.SpaceAroundOperators, "Write spaces around binary operators")
	fs.Bool("space-after-expanded-comma", d.SpaceAfterExpandedComma, "Write a space after leading commas")
	fs.Bool("trailing-commas", d.TrailingCommas, "Put commas at the end of lines instead of the start")

	fs.Bool("obfuscate-mode", d.ObfuscateMode, "Replace literals with placeholders")
	fs.Bool("obfuscate-identifiers", d.ObfuscateIdentifiers, "Also replace identifiers in obfuscate mode")
	fs.Bool("colorize-output", d.ColorizeOutput, "Highlight tokens with ANSI colors when writing to a terminal")
	fs.Bool("preserve-comments", d.PreserveComments, "Keep comments in the output")
	fs.Bool("align-column-definitions", d.AlignColumnDefinitions, "Align types in CREATE TABLE column lists")

	fs.String("keyword-casing", d.KeywordCasing.String(), "Keyword casing: lower, upper, capitalize or asis")
	fs.String("builtin-function-casing", d.BuiltinFunctionCasing.String(), "Builtin function casing")
	fs.String("datatype-casing", d.DataTypeCasing.String(), "Data type casing")

	fs.Int("new-clause-line-breaks", d.NewClauseLineBreaks, "Line breaks before each clause")
	fs.Int("new-statement-line-breaks", d.NewStatementLineBreaks, "Line breaks between statements")
	fs.Bool("break-join-on-sections", d.BreakJoinOnSections, "Put JOIN ... ON conditions on their own line")
	fs.Bool("keyword-standardization", d.KeywordStandardization, "Rewrite short keyword forms to their long form")

	fs.Bool("uppercase-keywords", true, "Deprecated: use --keyword-casing")
	_ = fs.MarkHidden("uppercase-keywords")

	casings := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"lower", "upper", "capitalize", "asis"}, cobra.ShellCompDirectiveNoFileComp
	}
	for _, name := range []string{"keyword-casing", "builtin-function-casing", "datatype-casing"} {
		_ = cmd.RegisterFlagCompletionFunc(name, casings)
	}
	_ = cmd.RegisterFlagCompletionFunc("indent", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"tab", "2", "4"}, cobra.ShellCompDirectiveNoFileComp
	})
}
