package query

import (
	"unicode/utf8"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// env is the evaluation environment of one scope: the current combined row,
// and for grouped plans the group keys and aggregate results of the current group
type env struct {
	row    []value.Value
	groups []value.Value
	aggs   []value.Value
	outer  *env
}

// up walks depth scopes outward
func (e *env) up(depth int) *env {
	for ; depth > 0 && e != nil; depth-- {
		e = e.outer
	}
	return e
}

// evaluator computes bound expressions against rows
type evaluator struct {
	fctx   *EvalContext
	params []value.Value
	// exists runs a subquery plan and reports whether it yields a row
	exists func(sub *Plan, outer *env) (bool, error)

	likes map[string]*likePattern
}

func newEvaluator(fctx *EvalContext, params []value.Value) *evaluator {
	return &evaluator{fctx: fctx, params: params, likes: make(map[string]*likePattern)}
}

// predicate evaluates a filter; only TRUE passes
func (ev *evaluator) predicate(e *BoundExpr, en *env) (bool, error) {
	v, err := ev.eval(e, en)
	if err != nil {
		return false, err
	}
	t, err := truth(v)
	if err != nil {
		return false, err
	}
	return !t.IsNull() && t.AsBool(), nil
}

func (ev *evaluator) eval(e *BoundExpr, en *env) (value.Value, error) {
	switch e.Kind {
	case BoundConst:
		return e.Value, nil

	case BoundColumn:
		scope := en.up(e.Depth)
		if scope == nil || e.Index >= len(scope.row) {
			return value.Null, pxerr.Unsupported("column %s is not available here", e.Name)
		}
		return scope.row[e.Index], nil

	case BoundParam:
		if e.Index >= len(ev.params) {
			return value.Null, pxerr.ParameterCount(e.Index+1, len(ev.params))
		}
		return ev.params[e.Index], nil

	case BoundGroupRef:
		return en.groups[e.Index], nil

	case BoundAggRef:
		return en.aggs[e.Index], nil

	case BoundCall:
		return ev.call(e, en)

	case BoundBinary:
		if e.Op.IsLogical() {
			return ev.logical(e, en)
		}
		l, err := ev.eval(e.Args[0], en)
		if err != nil {
			return value.Null, err
		}
		r, err := ev.eval(e.Args[1], en)
		if err != nil {
			return value.Null, err
		}
		return applyBinary(e.Op, l, r)

	case BoundUnary:
		v, err := ev.eval(e.Args[0], en)
		if err != nil {
			return value.Null, err
		}
		if e.Op == OpNot {
			return not(v)
		}
		return value.Negate(v)

	case BoundBetween:
		return ev.between(e, en)

	case BoundIsNull:
		v, err := ev.eval(e.Args[0], en)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(v.IsNull() != e.Not), nil

	case BoundIn:
		return ev.in(e, en)

	case BoundLike:
		return ev.like(e, en)

	case BoundExists:
		found, err := ev.exists(e.Sub, en)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(found != e.Not), nil

	case BoundCast:
		v, err := ev.eval(e.Args[0], en)
		if err != nil {
			return value.Null, err
		}
		return value.Convert(v, e.CastType)
	}
	return value.Null, pxerr.Unsupported("expression kind %d", e.Kind)
}

// call evaluates a scalar function. Large objects are resolved first and a
// NULL argument yields NULL unless the function handles NULLs itself.
func (ev *evaluator) call(e *BoundExpr, en *env) (value.Value, error) {
	tolerant := false
	if nt, ok := e.Func.(NullTolerant); ok {
		tolerant = nt.NullTolerant()
	}
	args := make([]value.Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg, en)
		if err != nil {
			return value.Null, err
		}
		if v, err = v.Resolve(); err != nil {
			return value.Null, err
		}
		if v.IsNull() && !tolerant {
			return value.Null, nil
		}
		args[i] = v
	}
	return e.Func.Evaluate(ev.fctx, args)
}

// logical applies AND, OR and XOR with three-valued logic; AND and OR
// skip the right operand when the left decides the result
func (ev *evaluator) logical(e *BoundExpr, en *env) (value.Value, error) {
	lv, err := ev.eval(e.Args[0], en)
	if err != nil {
		return value.Null, err
	}
	l, err := truth(lv)
	if err != nil {
		return value.Null, err
	}
	switch {
	case e.Op == OpAnd && !l.IsNull() && !l.AsBool():
		return value.Bool(false), nil
	case e.Op == OpOr && !l.IsNull() && l.AsBool():
		return value.Bool(true), nil
	}

	rv, err := ev.eval(e.Args[1], en)
	if err != nil {
		return value.Null, err
	}
	r, err := truth(rv)
	if err != nil {
		return value.Null, err
	}

	switch e.Op {
	case OpAnd:
		if !r.IsNull() && !r.AsBool() {
			return value.Bool(false), nil
		}
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(true), nil
	case OpOr:
		if !r.IsNull() && r.AsBool() {
			return value.Bool(true), nil
		}
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}
	return value.Bool(l.AsBool() != r.AsBool()), nil
}

func (ev *evaluator) between(e *BoundExpr, en *env) (value.Value, error) {
	vals := make([]value.Value, 3)
	for i, arg := range e.Args {
		v, err := ev.eval(arg, en)
		if err != nil {
			return value.Null, err
		}
		vals[i] = v
	}
	lo, err := applyBinary(OpGe, vals[0], vals[1])
	if err != nil {
		return value.Null, err
	}
	hi, err := applyBinary(OpLe, vals[0], vals[2])
	if err != nil {
		return value.Null, err
	}
	res := and(lo, hi)
	if e.Not {
		return not(res)
	}
	return res, nil
}

// in is TRUE on the first equal item, NULL when no item matched but one was NULL
func (ev *evaluator) in(e *BoundExpr, en *env) (value.Value, error) {
	x, err := ev.eval(e.Args[0], en)
	if err != nil {
		return value.Null, err
	}
	res := value.Bool(false)
	if x.IsNull() {
		res = value.Null
	} else {
		for _, arg := range e.Args[1:] {
			item, err := ev.eval(arg, en)
			if err != nil {
				return value.Null, err
			}
			if item.IsNull() {
				res = value.Null
				continue
			}
			eq, err := value.Equal(x, item)
			if err != nil {
				return value.Null, err
			}
			if eq {
				res = value.Bool(true)
				break
			}
		}
	}
	if e.Not {
		return not(res)
	}
	return res, nil
}

func (ev *evaluator) like(e *BoundExpr, en *env) (value.Value, error) {
	strs := make([]string, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg, en)
		if err != nil {
			return value.Null, err
		}
		if v.IsNull() {
			return value.Null, nil
		}
		s, err := value.Convert(v, value.TypeString)
		if err != nil {
			return value.Null, err
		}
		strs[i] = s.AsString()
	}

	var escape rune
	if len(strs) == 3 {
		if utf8.RuneCountInString(strs[2]) != 1 {
			return value.Null, pxerr.Type("LIKE escape must be a single character, got %q", strs[2])
		}
		escape, _ = utf8.DecodeRuneInString(strs[2])
	}

	// only patterns fixed for the whole statement are cached
	cacheable := fixedOperand(e.Args[1]) && (len(e.Args) < 3 || fixedOperand(e.Args[2]))
	cacheKey := strs[1] + "\x00" + string(escape)
	pattern, ok := ev.likes[cacheKey]
	if !ok {
		var err error
		if pattern, err = compileLike(strs[1], escape); err != nil {
			return value.Null, err
		}
		if cacheable {
			ev.likes[cacheKey] = pattern
		}
	}
	return value.Bool(pattern.match(strs[0]) != e.Not), nil
}

// fixedOperand reports whether e has one value for the whole statement
func fixedOperand(e *BoundExpr) bool {
	return e.Kind == BoundConst || e.Kind == BoundParam
}

// truth converts an operand of a logical operator to BOOLEAN or NULL
func truth(v value.Value) (value.Value, error) {
	if v.IsNull() || v.Type() == value.TypeBoolean {
		return v, nil
	}
	b, err := value.Convert(v, value.TypeBoolean)
	if err != nil {
		return value.Null, pxerr.Type("%s value used as a condition", v.Type())
	}
	return b, nil
}

func not(v value.Value) (value.Value, error) {
	t, err := truth(v)
	if err != nil || t.IsNull() {
		return t, err
	}
	return value.Bool(!t.AsBool()), nil
}

func and(l, r value.Value) value.Value {
	switch {
	case !l.IsNull() && !l.AsBool(), !r.IsNull() && !r.AsBool():
		return value.Bool(false)
	case l.IsNull() || r.IsNull():
		return value.Null
	}
	return value.Bool(true)
}

// applyBinary applies a comparison, arithmetic or concatenation operator.
// NULL on either side yields NULL.
func applyBinary(op Op, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}

	if op.IsComparison() {
		c, err := value.Compare(l, r)
		if err != nil {
			return value.Null, err
		}
		switch op {
		case OpEq:
			return value.Bool(c == 0), nil
		case OpNe:
			return value.Bool(c != 0), nil
		case OpLt:
			return value.Bool(c < 0), nil
		case OpLe:
			return value.Bool(c <= 0), nil
		case OpGt:
			return value.Bool(c > 0), nil
		}
		return value.Bool(c >= 0), nil
	}

	switch op {
	case OpConcat:
		ls, err := value.Convert(l, value.TypeString)
		if err != nil {
			return value.Null, err
		}
		rs, err := value.Convert(r, value.TypeString)
		if err != nil {
			return value.Null, err
		}
		return value.String(ls.AsString() + rs.AsString()), nil
	case OpAdd, OpSub:
		if l.Type() == value.TypeDate && r.Type().IsNumeric() {
			days := r.AsInt()
			if op == OpSub {
				days = -days
			}
			return value.Date(l.AsTime().AddDate(0, 0, int(days))), nil
		}
		if op == OpAdd {
			return value.Arith('+', l, r)
		}
		return value.Arith('-', l, r)
	case OpMul:
		return value.Arith('*', l, r)
	case OpDiv:
		return value.Arith('/', l, r)
	case OpMod:
		return value.Arith('%', l, r)
	}
	return value.Null, pxerr.Unsupported("operator %s", op)
}
