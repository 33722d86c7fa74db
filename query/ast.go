package query

import "github.com/vegasq/pxcat/value"

// ExprKind tags the variant held by an Expr
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprColumn
	ExprParam
	ExprFunc
	ExprBinary
	ExprUnary
	ExprBetween
	ExprIsNull
	ExprIn
	ExprLike
	ExprExists
	ExprCast
)

// Op is the operator of a binary or unary expression
type Op int

const (
	OpNone Op = iota
	OpAnd
	OpOr
	OpXor
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat
	OpNeg
)

var opSymbols = map[Op]string{
	OpAnd:    "AND",
	OpOr:     "OR",
	OpXor:    "XOR",
	OpNot:    "NOT",
	OpEq:     "=",
	OpNe:     "<>",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpMod:    "%",
	OpConcat: "||",
	OpNeg:    "-",
}

// String returns the SQL spelling of the operator
func (o Op) String() string {
	return opSymbols[o]
}

// IsLogical reports whether o combines boolean operands
func (o Op) IsLogical() bool {
	return o == OpAnd || o == OpOr || o == OpXor
}

// IsComparison reports whether o is one of = <> < <= > >=
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpGe
}

// Expr is a node of the expression tree. Kind selects which fields are
// meaningful:
//
//	ExprLiteral  Value
//	ExprColumn   Table (optional qualifier), Name
//	ExprParam    Index (0-based placeholder position)
//	ExprFunc     Name, Args, Star for COUNT(*), Distinct
//	ExprBinary   Op, Args[0], Args[1]
//	ExprUnary    Op, Args[0]
//	ExprBetween  Args[0] BETWEEN Args[1] AND Args[2], Not
//	ExprIsNull   Args[0] IS [NOT] NULL
//	ExprIn       Args[0] IN (Args[1:]...), Not
//	ExprLike     Args[0] LIKE Args[1] [ESCAPE Args[2]], Not
//	ExprExists   Subquery, Not
//	ExprCast     Args[0], CastType
//
// Every node owns its children; subtrees are never shared.
type Expr struct {
	Kind     ExprKind
	Op       Op
	Not      bool
	Value    value.Value
	Table    string
	Name     string
	Index    int
	Star     bool
	Distinct bool
	Args     []*Expr
	Subquery *Select
	CastType value.Type
	Pos      int
}

// JoinType represents the type of join operation
type JoinType int

const (
	JoinNone  JoinType = iota // first FROM entry
	JoinCross                 // comma or CROSS JOIN
	JoinInner                 // [INNER] JOIN ... ON
	JoinLeft                  // LEFT [OUTER] JOIN ... ON
)

// String returns the SQL spelling of the join
func (j JoinType) String() string {
	switch j {
	case JoinCross:
		return "CROSS JOIN"
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	}
	return ""
}

// TableRef is one FROM list entry
type TableRef struct {
	Schema string // optional schema qualifier
	Name   string
	Alias  string
	Join   JoinType
	On     *Expr // nil unless Join is JoinInner or JoinLeft
	Pos    int
}

// SelectItem is one entry of the SELECT list
type SelectItem struct {
	Expr  *Expr  // nil for * and t.*
	Star  bool   // * or t.*
	Table string // qualifier of t.*
	Alias string
	Pos   int
}

// OrderItem is one ORDER BY key
type OrderItem struct {
	Expr *Expr
	Desc bool
}

// Select is a parsed SELECT statement
type Select struct {
	Distinct bool
	Columns  []SelectItem
	From     []TableRef
	Where    *Expr
	GroupBy  []*Expr
	Having   *Expr
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
	// Params is the number of ? placeholders in the whole statement, subqueries included
	Params int
}
