package tree

import "strings"

// Node names produced by the parser. Leaves are named after their token kind
// (see token.Kind.String).
const (
	NodeRoot  = "sql"
	NodeError = "error"

	// Statements
	NodeSelectStatement        = "select_statement"
	NodeInsertStatement        = "insert_statement"
	NodeUpdateStatement        = "update_statement"
	NodeDeleteStatement        = "delete_statement"
	NodeCreateTableStatement   = "create_table_statement"
	NodeCreateViewStatement    = "create_view_statement"
	NodeCreateRoutineStatement = "create_routine_statement"
	NodeDropStatement          = "drop_statement"
	NodeTruncateStatement      = "truncate_statement"
	NodeDeclareStatement       = "declare_statement"
	NodeSetStatement           = "set_statement"
	NodeUseStatement           = "use_statement"
	NodeExecuteStatement       = "execute_statement"
	NodePrintStatement         = "print_statement"
	NodeReturnStatement        = "return_statement"
	NodeTransactionStatement   = "transaction_statement"
	NodeIfStatement            = "if_statement"
	NodeWhileStatement         = "while_statement"
	NodeBlockStatement         = "block_statement"
	NodeControlStatement       = "control_statement"
	NodeOtherStatement         = "other_statement"

	// Query structure
	NodeQuery         = "query"
	NodeSelectQuery   = "select_query"
	NodeSetOperator   = "set_operator"
	NodeWithClause    = "with_clause"
	NodeCTE           = "cte"
	NodeSelectClause  = "select_clause"
	NodeTopClause     = "top_clause"
	NodeIntoClause    = "into_clause"
	NodeFromClause    = "from_clause"
	NodeWhereClause   = "where_clause"
	NodeGroupByClause = "group_by_clause"
	NodeHavingClause  = "having_clause"
	NodeOrderByClause = "order_by_clause"
	NodeOffsetClause  = "offset_clause"
	NodeOptionClause  = "option_clause"
	NodeSelectItem    = "select_item"
	NodeOrderItem     = "order_item"
	NodeTableSource   = "table_source"
	NodeJoin          = "join"
	NodeJoinCondition = "join_condition"
	NodeTableHint     = "table_hint"

	// DML/DDL clauses
	NodeInsertClause      = "insert_clause"
	NodeValuesClause      = "values_clause"
	NodeUpdateClause      = "update_clause"
	NodeSetClause         = "set_clause"
	NodeDeleteClause      = "delete_clause"
	NodeAssignment        = "assignment"
	NodeColumnDefinitions = "column_definitions"
	NodeColumnDefinition  = "column_definition"
	NodeTableConstraint   = "table_constraint"
	NodeRoutineHeader     = "routine_header"
	NodeParameterList     = "parameter_list"
	NodeParameter         = "parameter"
	NodeReturnsClause     = "returns_clause"
	NodeDeclaration       = "variable_declaration"
	NodeArgument          = "argument"

	// Expressions
	NodeBinaryExpression  = "binary_expression"
	NodeUnaryExpression   = "unary_expression"
	NodeBetweenExpression = "between_expression"
	NodeInExpression      = "in_expression"
	NodeIsExpression      = "is_expression"
	NodeCaseExpression    = "case_expression"
	NodeCaseWhen          = "case_when"
	NodeCaseElse          = "case_else"
	NodeFunctionCall      = "function_call"
	NodeCastExpression    = "cast_expression"
	NodeOverClause        = "over_clause"
	NodeParenExpression   = "paren_expression"
	NodeSubquery          = "subquery"
	NodeExistsExpression  = "exists_expression"
	NodeObjectName        = "object_name"
	NodeLiteral           = "literal"
	NodeStar              = "star"
	NodeDataType          = "data_type"
	NodeParenList         = "paren_list"
	NodeList              = "list"
)

// Attribute names set by the parser.
const (
	AttrLine       = "line"
	AttrColumn     = "column"
	AttrRole       = "role"
	AttrOwnLine    = "own_line"
	AttrSourceKind = "source_kind"
	AttrOperator   = "operator"
)

// Values of AttrRole.
const (
	RoleFunction = "function"
	RoleDataType = "datatype"
	RoleUnary    = "unary"
	RoleWildcard = "wildcard"
	RoleVariable = "variable"
	RoleAlias    = "alias"
)

// IsStatement reports whether name denotes a statement node.
func IsStatement(name string) bool {
	return strings.HasSuffix(name, "_statement")
}

// IsClause reports whether name denotes a clause that starts its own line
// inside a statement.
func IsClause(name string) bool {
	return strings.HasSuffix(name, "_clause") && name != NodeOverClause && name != NodeTopClause
}
