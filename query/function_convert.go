package query

import (
	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Type Conversion Functions

// ToStringFunc renders a value as text
type ToStringFunc struct{}

func (f *ToStringFunc) Name() string                         { return "TO_STRING" }
func (f *ToStringFunc) MinArity() int                        { return 1 }
func (f *ToStringFunc) MaxArity() int                        { return 1 }
func (f *ToStringFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *ToStringFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	s, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("TO_STRING", err)
	}
	return value.String(s), nil
}

// ToNumberFunc parses text as an exact decimal; numbers pass through
type ToNumberFunc struct{}

func (f *ToNumberFunc) Name() string  { return "TO_NUMBER" }
func (f *ToNumberFunc) MinArity() int { return 1 }
func (f *ToNumberFunc) MaxArity() int { return 1 }
func (f *ToNumberFunc) ResultType(args []value.Type) value.Type {
	if args[0].IsNumeric() {
		return args[0]
	}
	return value.TypeDecimal
}
func (f *ToNumberFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	n, err := valueToNumber(args[0])
	if err != nil {
		return value.Null, funcError("TO_NUMBER", err)
	}
	return n, nil
}

// ToDateFunc converts text or a timestamp to a date
type ToDateFunc struct{}

func (f *ToDateFunc) Name() string                         { return "TO_DATE" }
func (f *ToDateFunc) MinArity() int                        { return 1 }
func (f *ToDateFunc) MaxArity() int                        { return 1 }
func (f *ToDateFunc) ResultType(_ []value.Type) value.Type { return value.TypeDate }
func (f *ToDateFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	d, err := value.Convert(args[0], value.TypeDate)
	if err != nil {
		return value.Null, funcError("TO_DATE", err)
	}
	return d, nil
}

// TryCastFunc converts its first argument to the type named by the second,
// returning NULL instead of failing when the value does not convert
type TryCastFunc struct{}

func (f *TryCastFunc) Name() string                         { return "TRY_CAST" }
func (f *TryCastFunc) MinArity() int                        { return 2 }
func (f *TryCastFunc) MaxArity() int                        { return 2 }
func (f *TryCastFunc) ResultType(_ []value.Type) value.Type { return value.TypeNull }
func (f *TryCastFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	name, err := valueToString(args[1])
	if err != nil {
		return value.Null, funcError("TRY_CAST", err)
	}
	typ, ok := value.ParseType(name)
	if !ok {
		return value.Null, pxerr.Type("TRY_CAST: unknown type %q", name)
	}
	v, err := value.Convert(args[0], typ)
	if err != nil {
		return value.Null, nil
	}
	return v, nil
}
