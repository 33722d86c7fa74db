package query

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Math Functions

// numericResult keeps the argument's numeric type; strings are computed as decimals
func numericResult(args []value.Type) value.Type {
	t := firstType(args)
	switch {
	case t.IsNumeric():
		return t
	case t == value.TypeString:
		return value.TypeDecimal
	}
	return value.TypeNull
}

// mapNumber applies one of three per-representation operations to a numeric argument
func mapNumber(name string, v value.Value, onInt func(int64) int64, onFloat func(float64) float64, onDec func(decimal.Decimal) decimal.Decimal) (value.Value, error) {
	n, err := valueToNumber(v)
	if err != nil {
		return value.Null, funcError(name, err)
	}
	switch n.Type() {
	case value.TypeInteger:
		return value.Integer(onInt(n.AsInt())), nil
	case value.TypeLong:
		return value.Long(onInt(n.AsInt())), nil
	case value.TypeDouble:
		return value.Double(onFloat(n.AsFloat())), nil
	}
	return value.Decimal(onDec(n.AsDecimal())), nil
}

func identity(i int64) int64 { return i }

// AbsFunc returns the absolute value
type AbsFunc struct{}

func (f *AbsFunc) Name() string                            { return "ABS" }
func (f *AbsFunc) MinArity() int                           { return 1 }
func (f *AbsFunc) MaxArity() int                           { return 1 }
func (f *AbsFunc) ResultType(args []value.Type) value.Type { return numericResult(args) }
func (f *AbsFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	return mapNumber("ABS", args[0],
		func(i int64) int64 {
			if i < 0 {
				return -i
			}
			return i
		},
		math.Abs,
		decimal.Decimal.Abs)
}

// RoundFunc rounds half away from zero to n decimal places (default 0)
type RoundFunc struct{}

func (f *RoundFunc) Name() string                            { return "ROUND" }
func (f *RoundFunc) MinArity() int                           { return 1 }
func (f *RoundFunc) MaxArity() int                           { return 2 }
func (f *RoundFunc) ResultType(args []value.Type) value.Type { return numericResult(args[:1]) }
func (f *RoundFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	places, err := placesArg("ROUND", args)
	if err != nil {
		return value.Null, err
	}
	return mapNumber("ROUND", args[0],
		func(i int64) int64 {
			if places >= 0 {
				return i
			}
			return decimal.NewFromInt(i).Round(int32(places)).IntPart()
		},
		func(x float64) float64 {
			scale := math.Pow(10, float64(places))
			return math.Round(x*scale) / scale
		},
		func(d decimal.Decimal) decimal.Decimal { return d.Round(int32(places)) })
}

// TruncFunc truncates toward zero to n decimal places (default 0)
type TruncFunc struct{}

func (f *TruncFunc) Name() string                            { return "TRUNCATE" }
func (f *TruncFunc) MinArity() int                           { return 1 }
func (f *TruncFunc) MaxArity() int                           { return 2 }
func (f *TruncFunc) ResultType(args []value.Type) value.Type { return numericResult(args[:1]) }
func (f *TruncFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	places, err := placesArg("TRUNCATE", args)
	if err != nil {
		return value.Null, err
	}
	if places < 0 {
		places = 0
	}
	return mapNumber("TRUNCATE", args[0],
		identity,
		func(x float64) float64 {
			scale := math.Pow(10, float64(places))
			return math.Trunc(x*scale) / scale
		},
		func(d decimal.Decimal) decimal.Decimal { return d.Truncate(int32(places)) })
}

func placesArg(name string, args []value.Value) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	n, err := valueToInt(args[1])
	if err != nil {
		return 0, funcError(name, err)
	}
	return n, nil
}

// FloorFunc returns the largest integer not greater than x
type FloorFunc struct{}

func (f *FloorFunc) Name() string                            { return "FLOOR" }
func (f *FloorFunc) MinArity() int                           { return 1 }
func (f *FloorFunc) MaxArity() int                           { return 1 }
func (f *FloorFunc) ResultType(args []value.Type) value.Type { return numericResult(args) }
func (f *FloorFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	return mapNumber("FLOOR", args[0], identity, math.Floor, decimal.Decimal.Floor)
}

// CeilFunc returns the smallest integer not less than x
type CeilFunc struct{}

func (f *CeilFunc) Name() string                            { return "CEILING" }
func (f *CeilFunc) MinArity() int                           { return 1 }
func (f *CeilFunc) MaxArity() int                           { return 1 }
func (f *CeilFunc) ResultType(args []value.Type) value.Type { return numericResult(args) }
func (f *CeilFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	return mapNumber("CEILING", args[0], identity, math.Ceil, decimal.Decimal.Ceil)
}

// ModFunc returns the remainder of a division
type ModFunc struct{}

func (f *ModFunc) Name() string                            { return "MOD" }
func (f *ModFunc) MinArity() int                           { return 2 }
func (f *ModFunc) MaxArity() int                           { return 2 }
func (f *ModFunc) ResultType(args []value.Type) value.Type { return numericResult(args) }
func (f *ModFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	v, err := value.Arith('%', args[0], args[1])
	if err != nil {
		return value.Null, funcError("MOD", err)
	}
	return v, nil
}

// floatArgs converts every argument to float64
func floatArgs(name string, args []value.Value) ([]float64, error) {
	out := make([]float64, len(args))
	for i, arg := range args {
		n, err := valueToNumber(arg)
		if err != nil {
			return nil, funcError(name, err)
		}
		out[i] = n.AsFloat()
	}
	return out, nil
}

// SqrtFunc returns the square root
type SqrtFunc struct{}

func (f *SqrtFunc) Name() string                         { return "SQRT" }
func (f *SqrtFunc) MinArity() int                        { return 1 }
func (f *SqrtFunc) MaxArity() int                        { return 1 }
func (f *SqrtFunc) ResultType(_ []value.Type) value.Type { return value.TypeDouble }
func (f *SqrtFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	x, err := floatArgs("SQRT", args)
	if err != nil {
		return value.Null, err
	}
	if x[0] < 0 {
		return value.Null, pxerr.Type("SQRT of negative number %v", x[0])
	}
	return value.Double(math.Sqrt(x[0])), nil
}

// PowFunc raises x to the power y
type PowFunc struct{}

func (f *PowFunc) Name() string                         { return "POWER" }
func (f *PowFunc) MinArity() int                        { return 2 }
func (f *PowFunc) MaxArity() int                        { return 2 }
func (f *PowFunc) ResultType(_ []value.Type) value.Type { return value.TypeDouble }
func (f *PowFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	x, err := floatArgs("POWER", args)
	if err != nil {
		return value.Null, err
	}
	return value.Double(math.Pow(x[0], x[1])), nil
}

// SignFunc returns -1, 0 or 1
type SignFunc struct{}

func (f *SignFunc) Name() string                         { return "SIGN" }
func (f *SignFunc) MinArity() int                        { return 1 }
func (f *SignFunc) MaxArity() int                        { return 1 }
func (f *SignFunc) ResultType(_ []value.Type) value.Type { return value.TypeInteger }
func (f *SignFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	n, err := valueToNumber(args[0])
	if err != nil {
		return value.Null, funcError("SIGN", err)
	}
	if n.Type() == value.TypeDouble {
		x := n.AsFloat()
		switch {
		case x > 0:
			return value.Integer(1), nil
		case x < 0:
			return value.Integer(-1), nil
		}
		return value.Integer(0), nil
	}
	return value.Integer(int64(n.AsDecimal().Sign())), nil
}

// PiFunc returns π
type PiFunc struct{}

func (f *PiFunc) Name() string                         { return "PI" }
func (f *PiFunc) MinArity() int                        { return 0 }
func (f *PiFunc) MaxArity() int                        { return 0 }
func (f *PiFunc) ResultType(_ []value.Type) value.Type { return value.TypeDouble }
func (f *PiFunc) Evaluate(_ *EvalContext, _ []value.Value) (value.Value, error) {
	return value.Double(math.Pi), nil
}
