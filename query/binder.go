package query

import (
	"strings"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/reader"
	"github.com/vegasq/pxcat/value"
)

// binder resolves a parsed statement against a catalog and a function registry
type binder struct {
	catalog  *reader.Catalog
	registry *FunctionRegistry
}

// scope is the set of sources visible to the expressions of one SELECT
type scope struct {
	sources []Source
	// visible limits lookups to the first n sources while binding ON clauses; 0 means all
	visible int
	parent  *scope
	// correlated is set when a reference inside this scope resolves in an enclosing one
	correlated bool
}

// bindCtx describes the clause an expression is bound in
type bindCtx struct {
	plan     *Plan
	clause   string
	grouped  bool
	allowAgg bool
}

func rowCtx(clause string) *bindCtx {
	return &bindCtx{clause: clause}
}

// Bind turns a parsed statement into an executable plan
func Bind(stmt *Select, catalog *reader.Catalog, registry *FunctionRegistry) (*Plan, error) {
	b := &binder{catalog: catalog, registry: registry}
	plan, err := b.bindSelect(stmt, nil)
	if err != nil {
		return nil, err
	}
	plan.Params = stmt.Params
	return plan, nil
}

func (b *binder) bindSelect(stmt *Select, parent *scope) (*Plan, error) {
	plan := &Plan{Limit: -1, Offset: -1, Distinct: stmt.Distinct}
	sc := &scope{parent: parent}

	if err := b.bindFrom(stmt, plan, sc); err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		filter, err := b.bindExpr(stmt.Where, sc, rowCtx("WHERE"))
		if err != nil {
			return nil, err
		}
		plan.Filter = filter
	}

	plan.Grouped = len(stmt.GroupBy) > 0 || stmt.Having != nil || b.selectHasAggregate(stmt)
	for _, g := range stmt.GroupBy {
		key, err := b.bindExpr(g, sc, rowCtx("GROUP BY"))
		if err != nil {
			return nil, err
		}
		plan.GroupBy = append(plan.GroupBy, key)
	}
	gctx := &bindCtx{plan: plan, clause: "SELECT", grouped: plan.Grouped, allowAgg: true}

	aliases, err := b.bindProjection(stmt, plan, sc, gctx)
	if err != nil {
		return nil, err
	}

	if stmt.Having != nil {
		hctx := *gctx
		hctx.clause = "HAVING"
		if plan.Having, err = b.bindExpr(stmt.Having, sc, &hctx); err != nil {
			return nil, err
		}
	}

	for _, item := range stmt.OrderBy {
		idx, err := b.bindOrderKey(item.Expr, plan, sc, gctx, aliases)
		if err != nil {
			return nil, err
		}
		plan.OrderBy = append(plan.OrderBy, SortKey{Index: idx, Desc: item.Desc})
	}

	if stmt.Limit != nil {
		plan.Limit = *stmt.Limit
	}
	if stmt.Offset != nil {
		plan.Offset = *stmt.Offset
	}
	plan.Correlated = sc.correlated
	return plan, nil
}

// bindFrom resolves every FROM entry, assigns ordinals and binds ON clauses
func (b *binder) bindFrom(stmt *Select, plan *Plan, sc *scope) error {
	seen := make(map[string]bool)
	for i, ref := range stmt.From {
		table, err := b.catalog.Table(ref.Schema, ref.Name)
		if err != nil {
			return err
		}
		alias := ref.Alias
		if alias == "" {
			alias = table.Name
		}
		if seen[strings.ToUpper(alias)] {
			return pxerr.DuplicateAlias(alias)
		}
		seen[strings.ToUpper(alias)] = true

		sc.sources = append(sc.sources, Source{Table: table, Alias: alias, Join: ref.Join, Base: plan.Width})
		plan.Width += len(table.Fields)

		if ref.On != nil {
			sc.visible = i + 1
			on, err := b.bindExpr(ref.On, sc, rowCtx("ON"))
			sc.visible = 0
			if err != nil {
				return err
			}
			sc.sources[i].On = on
		}
	}
	plan.Sources = sc.sources
	return nil
}

// bindProjection binds the SELECT list and returns the output alias → column index map
func (b *binder) bindProjection(stmt *Select, plan *Plan, sc *scope, ctx *bindCtx) (map[string]int, error) {
	aliases := make(map[string]int)
	for _, item := range stmt.Columns {
		if item.Star {
			if err := b.expandStar(item, plan, sc, ctx); err != nil {
				return nil, err
			}
			continue
		}

		bound, err := b.bindExpr(item.Expr, sc, ctx)
		if err != nil {
			return nil, err
		}
		col := Column{Name: FormatExpr(item.Expr), Type: bound.Type}
		if item.Expr.Kind == ExprColumn {
			if ref, err := b.resolveColumn(sc, item.Expr); err == nil && ref.field != nil {
				col.Name = ref.field.Name
				col.Table = ref.field.Table.Name
				col.Field = ref.field
			}
		}
		if item.Alias != "" {
			col.Name = item.Alias
			aliases[strings.ToUpper(item.Alias)] = len(plan.Columns)
		}
		plan.Columns = append(plan.Columns, col)
		plan.Project = append(plan.Project, bound)
	}
	if len(plan.Columns) == 0 {
		return nil, pxerr.EmptyColumnList()
	}
	return aliases, nil
}

// expandStar adds every field of every matching source, in FROM order
func (b *binder) expandStar(item SelectItem, plan *Plan, sc *scope, ctx *bindCtx) error {
	sources := sc.sources
	if item.Table != "" {
		sources = sc.qualified(item.Table)
		if len(sources) == 0 {
			return pxerr.TableNotFound(item.Table)
		}
	}
	for _, src := range sources {
		for _, f := range src.Table.Fields {
			bound := &BoundExpr{Kind: BoundColumn, Index: src.Base + f.Ordinal, Type: fieldType(f), Name: f.Name}
			if ctx.grouped {
				grouped, ok := groupRef(plan, bound)
				if !ok {
					return pxerr.ColumnNotGrouped(f.Name)
				}
				bound = grouped
			}
			plan.Columns = append(plan.Columns, Column{Name: f.Name, Type: fieldType(f), Table: src.Table.Name, Field: f})
			plan.Project = append(plan.Project, bound)
		}
	}
	return nil
}

// bindOrderKey resolves an ORDER BY key to a projected index, appending a
// hidden projection when the key is not already selected
func (b *binder) bindOrderKey(e *Expr, plan *Plan, sc *scope, ctx *bindCtx, aliases map[string]int) (int, error) {
	if e.Kind == ExprLiteral && e.Value.Type() == value.TypeLong {
		n := e.Value.AsInt()
		if n < 1 || n > int64(plan.Visible()) {
			return 0, pxerr.Syntax(e.Pos, "ORDER BY position %d is not in the select list", n)
		}
		return int(n - 1), nil
	}
	if e.Kind == ExprColumn && e.Table == "" {
		if idx, ok := aliases[strings.ToUpper(e.Name)]; ok {
			return idx, nil
		}
	}

	octx := *ctx
	octx.clause = "ORDER BY"
	bound, err := b.bindExpr(e, sc, &octx)
	if err != nil {
		return 0, err
	}
	key := bound.key()
	for i, p := range plan.Project {
		if p.key() == key {
			return i, nil
		}
	}
	plan.Project = append(plan.Project, bound)
	return len(plan.Project) - 1, nil
}

// groupRef matches e against the GROUP BY keys
func groupRef(plan *Plan, e *BoundExpr) (*BoundExpr, bool) {
	key := e.key()
	for i, g := range plan.GroupBy {
		if g.key() == key {
			return &BoundExpr{Kind: BoundGroupRef, Index: i, Type: g.Type, Name: e.Name}, true
		}
	}
	return nil, false
}

// bindExpr resolves e in scope sc
func (b *binder) bindExpr(e *Expr, sc *scope, ctx *bindCtx) (*BoundExpr, error) {
	if ctx.grouped && !b.hasAggregate(e) {
		row := *ctx
		row.grouped = false
		row.allowAgg = false
		bound, err := b.bindExpr(e, sc, &row)
		if err != nil {
			return nil, err
		}
		if grouped, ok := groupRef(ctx.plan, bound); ok {
			return grouped, nil
		}
		if !bound.hasLocalColumn() {
			return bound, nil
		}
		if e.Kind == ExprColumn || len(e.Args) == 0 {
			return nil, pxerr.ColumnNotGrouped(localColumnName(bound))
		}
		// a compound expression may still be built from grouped operands
	}

	switch e.Kind {
	case ExprLiteral:
		return &BoundExpr{Kind: BoundConst, Value: e.Value, Type: e.Value.Type()}, nil

	case ExprColumn:
		ref, err := b.resolveColumn(sc, e)
		if err != nil {
			return nil, err
		}
		return &BoundExpr{Kind: BoundColumn, Index: ref.index, Depth: ref.depth, Type: fieldType(ref.field), Name: ref.field.Name}, nil

	case ExprParam:
		return &BoundExpr{Kind: BoundParam, Index: e.Index, Name: "?"}, nil

	case ExprFunc:
		if _, ok := b.registry.Aggregate(e.Name); ok {
			return b.bindAggregate(e, sc, ctx)
		}
		return b.bindCall(e, sc, ctx)

	case ExprExists:
		sub, err := b.bindSelect(e.Subquery, sc)
		if err != nil {
			return nil, err
		}
		return &BoundExpr{Kind: BoundExists, Not: e.Not, Sub: sub, Type: value.TypeBoolean}, nil
	}

	args, err := b.bindArgs(e.Args, sc, ctx)
	if err != nil {
		return nil, err
	}
	bound := &BoundExpr{Op: e.Op, Not: e.Not, Args: args, Type: value.TypeBoolean}
	switch e.Kind {
	case ExprBinary:
		bound.Kind = BoundBinary
		bound.Type = binaryType(e.Op, args[0].Type, args[1].Type)
	case ExprUnary:
		bound.Kind = BoundUnary
		if e.Op == OpNeg {
			bound.Type = args[0].Type
		}
	case ExprBetween:
		bound.Kind = BoundBetween
	case ExprIsNull:
		bound.Kind = BoundIsNull
	case ExprIn:
		bound.Kind = BoundIn
	case ExprLike:
		bound.Kind = BoundLike
	case ExprCast:
		bound.Kind = BoundCast
		bound.CastType = e.CastType
		bound.Type = e.CastType
	default:
		return nil, pxerr.Unsupported("expression kind %d", e.Kind)
	}
	return bound, nil
}

func (b *binder) bindArgs(args []*Expr, sc *scope, ctx *bindCtx) ([]*BoundExpr, error) {
	out := make([]*BoundExpr, len(args))
	for i, arg := range args {
		bound, err := b.bindExpr(arg, sc, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = bound
	}
	return out, nil
}

// bindCall resolves a scalar function, checks its arity and argument types
func (b *binder) bindCall(e *Expr, sc *scope, ctx *bindCtx) (*BoundExpr, error) {
	fn, ok := b.registry.Get(e.Name)
	if !ok {
		return nil, pxerr.FunctionNotFound(e.Name)
	}
	name := strings.ToUpper(e.Name)
	if e.Star {
		return nil, pxerr.Syntax(e.Pos, "%s(*) is not valid; * is only allowed in COUNT(*)", name)
	}
	if e.Distinct {
		return nil, pxerr.Syntax(e.Pos, "DISTINCT is only allowed in aggregate functions")
	}
	n := len(e.Args)
	if n < fn.MinArity() || (fn.MaxArity() >= 0 && n > fn.MaxArity()) {
		return nil, pxerr.InvalidArity(name, n)
	}

	args, err := b.bindArgs(e.Args, sc, ctx)
	if err != nil {
		return nil, err
	}
	types := make([]value.Type, n)
	for i, arg := range args {
		types[i] = arg.Type
	}
	if checker, ok := fn.(ArgumentChecker); ok {
		if err := checker.CheckArgs(types); err != nil {
			return nil, err
		}
	}
	return &BoundExpr{Kind: BoundCall, Func: fn, Args: args, Type: fn.ResultType(types), Name: name}, nil
}

// bindAggregate registers an aggregate call site on the plan and returns a reference to its result
func (b *binder) bindAggregate(e *Expr, sc *scope, ctx *bindCtx) (*BoundExpr, error) {
	agg, _ := b.registry.Aggregate(e.Name)
	name := strings.ToUpper(e.Name)
	if !ctx.allowAgg {
		clause := ctx.clause
		if clause == "" {
			clause = "this context"
		}
		return nil, pxerr.Syntax(e.Pos, "aggregate function %s is not allowed in %s", name, clause)
	}

	spec := AggSpec{Func: agg, Distinct: e.Distinct}
	argType := value.TypeNull
	switch {
	case e.Star:
		if name != "COUNT" {
			return nil, pxerr.Syntax(e.Pos, "%s(*) is not valid; * is only allowed in COUNT(*)", name)
		}
	case len(e.Args) != 1:
		return nil, pxerr.InvalidArity(name, len(e.Args))
	default:
		arg, err := b.bindExpr(e.Args[0], sc, &bindCtx{clause: "aggregate arguments"})
		if err != nil {
			return nil, err
		}
		spec.Arg = arg
		argType = arg.Type
	}

	ctx.plan.Aggregates = append(ctx.plan.Aggregates, spec)
	return &BoundExpr{
		Kind:  BoundAggRef,
		Index: len(ctx.plan.Aggregates) - 1,
		Type:  agg.ResultType(argType),
		Name:  name,
	}, nil
}

// columnRef is a resolved column reference
type columnRef struct {
	index int
	depth int
	field *reader.Field
}

// resolveColumn finds the single column a reference names, searching the
// current scope first and then enclosing scopes
func (b *binder) resolveColumn(sc *scope, e *Expr) (columnRef, error) {
	display := e.Name
	if e.Table != "" {
		display = e.Table + "." + e.Name
	}

	depth := 0
	for s := sc; s != nil; s = s.parent {
		refs, qualified := s.lookup(e.Table, e.Name)
		switch {
		case len(refs) > 1:
			return columnRef{}, pxerr.ColumnAmbiguous(display)
		case len(refs) == 1:
			for inner := sc; inner != s; inner = inner.parent {
				inner.correlated = true
			}
			refs[0].depth = depth
			return refs[0], nil
		case qualified:
			// the qualifier named a table of this scope that lacks the column
			return columnRef{}, pxerr.ColumnNotFound(display)
		}
		depth++
	}
	return columnRef{}, pxerr.ColumnNotFound(display)
}

func (s *scope) visibleSources() []Source {
	if s.visible > 0 {
		return s.sources[:s.visible]
	}
	return s.sources
}

// qualified returns the sources a qualifier names: declared aliases first,
// then real table names (optionally schema-qualified)
func (s *scope) qualified(qualifier string) []Source {
	var out []Source
	for _, src := range s.visibleSources() {
		if strings.EqualFold(src.Alias, qualifier) {
			out = append(out, src)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, src := range s.visibleSources() {
		t := src.Table
		if strings.EqualFold(t.Name, qualifier) || strings.EqualFold(t.Schema+"."+t.Name, qualifier) {
			out = append(out, src)
		}
	}
	return out
}

// lookup scans the visible sources for a case-insensitive column match. It
// also reports whether a qualifier was given and matched a source here.
func (s *scope) lookup(qualifier, name string) ([]columnRef, bool) {
	sources := s.visibleSources()
	if qualifier != "" {
		sources = s.qualified(qualifier)
		if len(sources) == 0 {
			return nil, false
		}
	}
	var refs []columnRef
	for _, src := range sources {
		for _, f := range src.Table.Fields {
			if strings.EqualFold(f.Name, name) {
				refs = append(refs, columnRef{index: src.Base + f.Ordinal, field: f})
			}
		}
	}
	return refs, qualifier != ""
}

// hasAggregate reports whether e calls an aggregate outside of subqueries
func (b *binder) hasAggregate(e *Expr) bool {
	if e == nil {
		return false
	}
	if e.Kind == ExprFunc {
		if _, ok := b.registry.Aggregate(e.Name); ok {
			return true
		}
	}
	for _, arg := range e.Args {
		if b.hasAggregate(arg) {
			return true
		}
	}
	return false
}

func (b *binder) selectHasAggregate(stmt *Select) bool {
	for _, item := range stmt.Columns {
		if b.hasAggregate(item.Expr) {
			return true
		}
	}
	for _, item := range stmt.OrderBy {
		if b.hasAggregate(item.Expr) {
			return true
		}
	}
	return false
}

// localColumnName returns the name of the first column of the current scope in e
func localColumnName(e *BoundExpr) string {
	if e.Kind == BoundColumn && e.Depth == 0 {
		return e.Name
	}
	for _, arg := range e.Args {
		if name := localColumnName(arg); name != "" {
			return name
		}
	}
	return ""
}

// fieldType is the static type of a field; large objects report their resolved type
func fieldType(f *reader.Field) value.Type {
	switch {
	case f.Type.IsTextLOB():
		return value.TypeString
	case f.Type.IsLOB():
		return value.TypeBinary
	}
	return f.ValueType()
}

// binaryType derives the static type of a binary operator
func binaryType(op Op, l, r value.Type) value.Type {
	switch {
	case op.IsLogical() || op.IsComparison():
		return value.TypeBoolean
	case op == OpConcat:
		return value.TypeString
	case l == value.TypeNull || r == value.TypeNull:
		return value.TypeNull
	case l == value.TypeDate && (op == OpAdd || op == OpSub) && r.IsNumeric():
		return value.TypeDate
	case l == value.TypeDouble || r == value.TypeDouble:
		return value.TypeDouble
	case (l == value.TypeInteger || l == value.TypeLong) && (r == value.TypeInteger || r == value.TypeLong):
		return value.TypeLong
	}
	return value.TypeDecimal
}
