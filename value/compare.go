package value

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vegasq/pxcat/pxerr"
)

// Family groups tags that compare with each other
type Family int

const (
	FamilyNull Family = iota
	FamilyBoolean
	FamilyNumeric
	FamilyString
	FamilyBinary
	FamilyInstant
	FamilyTimeOfDay
)

// FamilyOf returns the comparison family of a tag.
// LOBs are reported by their text/binary nature only after resolution,
// so TypeLOB maps to FamilyString for text-agnostic checks.
func FamilyOf(t Type) Family {
	switch t {
	case TypeBoolean:
		return FamilyBoolean
	case TypeInteger, TypeLong, TypeDouble, TypeDecimal:
		return FamilyNumeric
	case TypeString, TypeLOB:
		return FamilyString
	case TypeBinary:
		return FamilyBinary
	case TypeDate, TypeTimestamp:
		return FamilyInstant
	case TypeTime:
		return FamilyTimeOfDay
	}
	return FamilyNull
}

// Compatible reports whether values of the two tags may be compared or mixed
// without a string coercion
func Compatible(a, b Type) bool {
	if a == TypeNull || b == TypeNull {
		return true
	}
	return FamilyOf(a) == FamilyOf(b)
}

// Compare orders a and b: negative when a < b, zero when equal, positive when a > b.
// NULL sorts before every non-null value.
func Compare(a, b Value) (int, error) {
	var err error
	if a, err = a.Resolve(); err != nil {
		return 0, err
	}
	if b, err = b.Resolve(); err != nil {
		return 0, err
	}

	switch {
	case a.typ == TypeNull && b.typ == TypeNull:
		return 0, nil
	case a.typ == TypeNull:
		return -1, nil
	case b.typ == TypeNull:
		return 1, nil
	}

	fa, fb := FamilyOf(a.typ), FamilyOf(b.typ)
	if fa != fb {
		// A string on one side is coerced to the other side's type.
		if fa == FamilyString {
			conv, cerr := Convert(a, coercionTarget(b.typ))
			if cerr != nil {
				return 0, pxerr.Type("cannot compare %s with %s", a.typ, b.typ)
			}
			return Compare(conv, b)
		}
		if fb == FamilyString {
			conv, cerr := Convert(b, coercionTarget(a.typ))
			if cerr != nil {
				return 0, pxerr.Type("cannot compare %s with %s", a.typ, b.typ)
			}
			return Compare(a, conv)
		}
		return 0, pxerr.Type("cannot compare %s with %s", a.typ, b.typ)
	}

	switch fa {
	case FamilyBoolean:
		return compareBool(a.b, b.b), nil
	case FamilyNumeric:
		return compareNumeric(a, b), nil
	case FamilyString:
		return strings.Compare(a.s, b.s), nil
	case FamilyBinary:
		return bytes.Compare(a.raw, b.raw), nil
	case FamilyInstant:
		return a.t.Compare(b.t), nil
	case FamilyTimeOfDay:
		return compareInt(a.i, b.i), nil
	}
	return 0, pxerr.Type("cannot compare %s with %s", a.typ, b.typ)
}

// Equal reports whether a and b compare equal; NULL is never equal to anything in SQL
// predicates, so callers handle NULL before calling Equal
func Equal(a, b Value) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func coercionTarget(t Type) Type {
	if t.IsNumeric() {
		return TypeDecimal
	}
	return t
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNumeric(a, b Value) int {
	integral := func(t Type) bool { return t == TypeInteger || t == TypeLong }
	if integral(a.typ) && integral(b.typ) {
		return compareInt(a.i, b.i)
	}
	if a.typ == TypeDouble || b.typ == TypeDouble {
		x, y := a.AsFloat(), b.AsFloat()
		// NaN sorts after every number
		switch {
		case math.IsNaN(x) && math.IsNaN(y):
			return 0
		case math.IsNaN(x):
			return 1
		case math.IsNaN(y):
			return -1
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return a.AsDecimal().Cmp(b.AsDecimal())
}

// Key returns a string that is equal for two values exactly when they compare
// equal within a family; used for grouping and DISTINCT
func (v Value) Key() (string, error) {
	r, err := v.Resolve()
	if err != nil {
		return "", err
	}
	switch FamilyOf(r.typ) {
	case FamilyNull:
		return "\x00", nil
	case FamilyBoolean:
		if r.b {
			return "b1", nil
		}
		return "b0", nil
	case FamilyNumeric:
		if r.typ == TypeDouble && (math.IsNaN(r.f) || math.IsInf(r.f, 0)) {
			return "n" + r.String(), nil
		}
		return "n" + r.AsDecimal().String(), nil
	case FamilyString:
		return "s" + r.s, nil
	case FamilyBinary:
		return "x" + string(r.raw), nil
	case FamilyInstant:
		return "t" + r.t.Format(time.RFC3339Nano), nil
	case FamilyTimeOfDay:
		return "h" + r.String(), nil
	}
	return "?" + r.String(), nil
}

// RowKey concatenates the keys of several values, each prefixed by its
// length so that no two distinct tuples share a key
func RowKey(vals []Value) (string, error) {
	var sb strings.Builder
	for _, v := range vals {
		k, err := v.Key()
		if err != nil {
			return "", err
		}
		sb.WriteString(strconv.Itoa(len(k)))
		sb.WriteByte(':')
		sb.WriteString(k)
	}
	return sb.String(), nil
}
