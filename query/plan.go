package query

import (
	"fmt"
	"strings"

	"github.com/vegasq/pxcat/reader"
	"github.com/vegasq/pxcat/value"
)

// BoundKind tags the variant held by a BoundExpr
type BoundKind int

const (
	BoundConst BoundKind = iota
	BoundColumn
	BoundParam
	BoundCall
	BoundBinary
	BoundUnary
	BoundBetween
	BoundIsNull
	BoundIn
	BoundLike
	BoundExists
	BoundCast
	// BoundAggRef reads the result of aggregate Index of the current group
	BoundAggRef
	// BoundGroupRef reads GROUP BY key Index of the current group
	BoundGroupRef
)

// BoundExpr is an expression with every reference resolved. Column
// references carry the ordinal of the field in the combined row of their
// scope and how many scopes up that row lives (Depth > 0 for correlated
// references from a subquery).
type BoundExpr struct {
	Kind     BoundKind
	Op       Op
	Not      bool
	Value    value.Value
	Index    int
	Depth    int
	Func     Function
	Args     []*BoundExpr
	Sub      *Plan
	CastType value.Type
	// Type is the static result type; TypeNull when only known at run time
	Type value.Type
	// Name is the column or function name, kept for messages
	Name string
}

// key renders a structural identity used to match GROUP BY and ORDER BY
// expressions against the projection
func (e *BoundExpr) key() string {
	var sb strings.Builder
	e.writeKey(&sb)
	return sb.String()
}

func (e *BoundExpr) writeKey(sb *strings.Builder) {
	fmt.Fprintf(sb, "(%d", e.Kind)
	switch e.Kind {
	case BoundConst:
		k, _ := e.Value.Key()
		fmt.Fprintf(sb, " %q", k)
	case BoundColumn:
		fmt.Fprintf(sb, " %d@%d", e.Index, e.Depth)
	case BoundParam, BoundAggRef, BoundGroupRef:
		fmt.Fprintf(sb, " %d", e.Index)
	case BoundCall:
		fmt.Fprintf(sb, " %s", e.Func.Name())
	case BoundExists:
		fmt.Fprintf(sb, " %p", e.Sub)
	case BoundCast:
		fmt.Fprintf(sb, " %d", e.CastType)
	}
	fmt.Fprintf(sb, " %d %t", e.Op, e.Not)
	for _, arg := range e.Args {
		sb.WriteByte(' ')
		arg.writeKey(sb)
	}
	sb.WriteByte(')')
}

// hasLocalColumn reports whether e reads a column of its own scope
func (e *BoundExpr) hasLocalColumn() bool {
	if e.Kind == BoundColumn && e.Depth == 0 {
		return true
	}
	for _, arg := range e.Args {
		if arg.hasLocalColumn() {
			return true
		}
	}
	return false
}

// Column describes one output column of a plan
type Column struct {
	Name string
	Type value.Type
	// Table and Field are set when the column projects a table field directly
	Table string
	Field *reader.Field
}

// Source is one bound FROM entry
type Source struct {
	Table *reader.Table
	// Alias is the declared alias, or the table name when none was given
	Alias string
	Join  JoinType
	// On is bound against the combined row of this and all earlier sources
	On *BoundExpr
	// Base is the ordinal of the table's first field in the combined row
	Base int
}

// AggSpec is one aggregate call site; Arg is nil for COUNT(*)
type AggSpec struct {
	Func     Aggregate
	Arg      *BoundExpr
	Distinct bool
}

// SortKey orders result rows by a projected value
type SortKey struct {
	// Index addresses the projected row, hidden sort columns included
	Index int
	Desc  bool
}

// Plan is a bound SELECT statement ready for execution
type Plan struct {
	Columns []Column
	Sources []Source
	// Width is the number of values in a combined source row
	Width int

	Filter     *BoundExpr
	Project    []*BoundExpr // visible columns followed by hidden sort expressions
	Grouped    bool
	GroupBy    []*BoundExpr
	Aggregates []AggSpec
	Having     *BoundExpr
	OrderBy    []SortKey
	Distinct   bool
	// Limit and Offset are -1 when absent
	Limit  int64
	Offset int64

	// Params is the number of positional parameters the statement expects
	Params int
	// Correlated is set on subquery plans that read rows of an enclosing scope
	Correlated bool
}

// Visible returns the number of output columns
func (p *Plan) Visible() int {
	return len(p.Columns)
}

// Tables returns the tables read by the plan in FROM order
func (p *Plan) Tables() []*reader.Table {
	tables := make([]*reader.Table, len(p.Sources))
	for i, s := range p.Sources {
		tables[i] = s.Table
	}
	return tables
}
