package value

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/pxerr"
)

// DivisionPrecision is the number of fractional digits kept by decimal division
const DivisionPrecision = 16

// Arith applies a binary arithmetic operator (+, -, *, /, %) to two values.
// NULL on either side yields NULL. Integral operands stay integral, any double
// operand produces a double, otherwise decimals are used.
func Arith(op byte, a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}
	var err error
	if a, err = numericOperand(a); err != nil {
		return Null, err
	}
	if b, err = numericOperand(b); err != nil {
		return Null, err
	}

	integral := func(t Type) bool { return t == TypeInteger || t == TypeLong }
	switch {
	case integral(a.typ) && integral(b.typ):
		return arithLong(op, a.i, b.i)
	case a.typ == TypeDouble || b.typ == TypeDouble:
		return arithDouble(op, a.AsFloat(), b.AsFloat())
	default:
		return arithDecimal(op, a.AsDecimal(), b.AsDecimal())
	}
}

func numericOperand(v Value) (Value, error) {
	if v.typ.IsNumeric() {
		return v, nil
	}
	if v.typ == TypeString {
		return Convert(v, TypeDecimal)
	}
	return Null, pxerr.Type("arithmetic on %s", v.typ)
}

func arithLong(op byte, x, y int64) (Value, error) {
	switch op {
	case '+':
		return Long(x + y), nil
	case '-':
		return Long(x - y), nil
	case '*':
		return Long(x * y), nil
	case '/':
		if y == 0 {
			return Null, pxerr.Type("division by zero")
		}
		return Long(x / y), nil
	case '%':
		if y == 0 {
			return Null, pxerr.Type("division by zero")
		}
		return Long(x % y), nil
	}
	return Null, pxerr.Type("unknown operator %q", op)
}

func arithDouble(op byte, x, y float64) (Value, error) {
	switch op {
	case '+':
		return Double(x + y), nil
	case '-':
		return Double(x - y), nil
	case '*':
		return Double(x * y), nil
	case '/':
		if y == 0 {
			return Null, pxerr.Type("division by zero")
		}
		return Double(x / y), nil
	case '%':
		if y == 0 {
			return Null, pxerr.Type("division by zero")
		}
		return Double(math.Mod(x, y)), nil
	}
	return Null, pxerr.Type("unknown operator %q", op)
}

func arithDecimal(op byte, x, y decimal.Decimal) (Value, error) {
	switch op {
	case '+':
		return Decimal(x.Add(y)), nil
	case '-':
		return Decimal(x.Sub(y)), nil
	case '*':
		return Decimal(x.Mul(y)), nil
	case '/':
		if y.IsZero() {
			return Null, pxerr.Type("division by zero")
		}
		return Decimal(x.DivRound(y, DivisionPrecision)), nil
	case '%':
		if y.IsZero() {
			return Null, pxerr.Type("division by zero")
		}
		return Decimal(x.Mod(y)), nil
	}
	return Null, pxerr.Type("unknown operator %q", op)
}

// Negate returns -v
func Negate(v Value) (Value, error) {
	switch v.typ {
	case TypeNull:
		return Null, nil
	case TypeInteger:
		return Integer(-v.i), nil
	case TypeLong:
		return Long(-v.i), nil
	case TypeDouble:
		return Double(-v.f), nil
	case TypeDecimal:
		return Decimal(v.d.Neg()), nil
	}
	return Null, pxerr.Type("cannot negate %s", v.typ)
}

// FloorDiv divides sum by count and rounds toward negative infinity, keeping
// the scale of sum (at least zero fractional digits)
func FloorDiv(sum decimal.Decimal, count int64) decimal.Decimal {
	scale := -sum.Exponent()
	if scale < 0 {
		scale = 0
	}
	n := sum.Shift(scale)
	q, r := n.QuoRem(decimal.NewFromInt(count), 0)
	if r.Sign() != 0 && (r.Sign() < 0) != (count < 0) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.Shift(-scale)
}
