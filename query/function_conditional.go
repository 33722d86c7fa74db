package query

import (
	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Conditional Functions

// checkSameFamily requires every known argument type to belong to one comparison family
func checkSameFamily(name string, args []value.Type) error {
	first := value.TypeNull
	for _, t := range args {
		if t == value.TypeNull {
			continue
		}
		if first == value.TypeNull {
			first = t
			continue
		}
		if !value.Compatible(first, t) {
			return pxerr.InconsistentTypes("%s arguments have inconsistent types: %s and %s", name, first, t)
		}
	}
	return nil
}

// CoalesceFunc returns the first non-NULL argument
type CoalesceFunc struct{}

func (f *CoalesceFunc) Name() string                            { return "COALESCE" }
func (f *CoalesceFunc) MinArity() int                           { return 1 }
func (f *CoalesceFunc) MaxArity() int                           { return -1 }
func (f *CoalesceFunc) NullTolerant() bool                      { return true }
func (f *CoalesceFunc) ResultType(args []value.Type) value.Type { return firstType(args) }
func (f *CoalesceFunc) CheckArgs(args []value.Type) error       { return checkSameFamily("COALESCE", args) }
func (f *CoalesceFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	for _, arg := range args {
		if !arg.IsNull() {
			return arg, nil
		}
	}
	return value.Null, nil
}

// NullIfFunc returns NULL when both arguments are equal, otherwise the first
type NullIfFunc struct{}

func (f *NullIfFunc) Name() string                            { return "NULLIF" }
func (f *NullIfFunc) MinArity() int                           { return 2 }
func (f *NullIfFunc) MaxArity() int                           { return 2 }
func (f *NullIfFunc) NullTolerant() bool                      { return true }
func (f *NullIfFunc) ResultType(args []value.Type) value.Type { return args[0] }
func (f *NullIfFunc) CheckArgs(args []value.Type) error       { return checkSameFamily("NULLIF", args) }
func (f *NullIfFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return args[0], nil
	}
	eq, err := value.Equal(args[0], args[1])
	if err != nil {
		return value.Null, funcError("NULLIF", err)
	}
	if eq {
		return value.Null, nil
	}
	return args[0], nil
}

// IfNullFunc returns the second argument when the first is NULL
type IfNullFunc struct{}

func (f *IfNullFunc) Name() string                            { return "IFNULL" }
func (f *IfNullFunc) MinArity() int                           { return 2 }
func (f *IfNullFunc) MaxArity() int                           { return 2 }
func (f *IfNullFunc) NullTolerant() bool                      { return true }
func (f *IfNullFunc) ResultType(args []value.Type) value.Type { return firstType(args) }
func (f *IfNullFunc) CheckArgs(args []value.Type) error       { return checkSameFamily("IFNULL", args) }
func (f *IfNullFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return args[1], nil
	}
	return args[0], nil
}
