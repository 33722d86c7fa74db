package value

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/pxerr"
)

var (
	dateLayouts      = []string{"2006-01-02", "2006/01/02", "01/02/2006"}
	timeLayouts      = []string{"15:04:05.000", "15:04:05", "15:04"}
	timestampLayouts = []string{
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
)

// ParseDate parses a date literal
func ParseDate(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t), nil
		}
	}
	return Null, pxerr.Type("invalid date: %q", s)
}

// ParseTime parses a time-of-day literal
func ParseTime(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond())
			return TimeOfDay(d), nil
		}
	}
	return Null, pxerr.Type("invalid time: %q", s)
}

// ParseTimestamp parses a timestamp literal
func ParseTimestamp(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp(t), nil
		}
	}
	return Null, pxerr.Type("invalid timestamp: %q", s)
}

// Convert casts v to the target type. NULL converts to NULL.
func Convert(v Value, to Type) (Value, error) {
	v, err := v.Resolve()
	if err != nil {
		return Null, err
	}
	if v.typ == TypeNull || v.typ == to {
		return v, nil
	}

	switch to {
	case TypeString:
		return String(v.String()), nil
	case TypeBoolean:
		return toBool(v)
	case TypeInteger, TypeLong:
		return toIntegral(v, to)
	case TypeDouble:
		return toDouble(v)
	case TypeDecimal:
		return toDecimal(v)
	case TypeDate:
		switch v.typ {
		case TypeTimestamp:
			return Date(v.t), nil
		case TypeString:
			if d, err := ParseDate(v.s); err == nil {
				return d, nil
			}
			ts, err := ParseTimestamp(v.s)
			if err != nil {
				return Null, err
			}
			return Date(ts.t), nil
		}
	case TypeTime:
		switch v.typ {
		case TypeTimestamp:
			y, m, d := v.t.Date()
			return TimeOfDay(v.t.Sub(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))), nil
		case TypeString:
			return ParseTime(v.s)
		}
	case TypeTimestamp:
		switch v.typ {
		case TypeDate:
			return Timestamp(v.t), nil
		case TypeString:
			return ParseTimestamp(v.s)
		}
	case TypeBinary:
		switch v.typ {
		case TypeString:
			return Binary([]byte(v.s)), nil
		}
	}
	return Null, pxerr.Type("cannot convert %s to %s", v.typ, to)
}

func toBool(v Value) (Value, error) {
	switch v.typ {
	case TypeString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "t", "yes", "y", "1":
			return Bool(true), nil
		case "false", "f", "no", "n", "0":
			return Bool(false), nil
		}
	case TypeInteger, TypeLong:
		return Bool(v.i != 0), nil
	case TypeDouble:
		return Bool(v.f != 0), nil
	case TypeDecimal:
		return Bool(!v.d.IsZero()), nil
	}
	return Null, pxerr.Type("cannot convert %s to BOOLEAN", v.typ)
}

func toIntegral(v Value, to Type) (Value, error) {
	var n int64
	switch v.typ {
	case TypeBoolean, TypeInteger, TypeLong, TypeDecimal:
		n = v.AsInt()
	case TypeDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return Null, pxerr.Type("cannot convert %v to %s", v.f, to)
		}
		n = int64(v.f)
	case TypeString:
		s := strings.TrimSpace(v.s)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			d, derr := decimal.NewFromString(s)
			if derr != nil {
				return Null, pxerr.Type("cannot convert %q to %s", v.s, to)
			}
			i = d.IntPart()
		}
		n = i
	default:
		return Null, pxerr.Type("cannot convert %s to %s", v.typ, to)
	}
	if to == TypeInteger && (n < math.MinInt16 || n > math.MaxInt16) {
		return Null, pxerr.Type("value %d out of range for %s", n, to)
	}
	if to == TypeInteger {
		return Integer(n), nil
	}
	return Long(n), nil
}

func toDouble(v Value) (Value, error) {
	switch v.typ {
	case TypeInteger, TypeLong, TypeDecimal:
		return Double(v.AsFloat()), nil
	case TypeBoolean:
		return Double(float64(v.AsInt())), nil
	case TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return Null, pxerr.Type("cannot convert %q to DOUBLE", v.s)
		}
		return Double(f), nil
	}
	return Null, pxerr.Type("cannot convert %s to DOUBLE", v.typ)
}

func toDecimal(v Value) (Value, error) {
	switch v.typ {
	case TypeInteger, TypeLong, TypeBoolean:
		return Decimal(decimal.NewFromInt(v.AsInt())), nil
	case TypeDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return Null, pxerr.Type("cannot convert %v to DECIMAL", v.f)
		}
		return Decimal(decimal.NewFromFloat(v.f)), nil
	case TypeString:
		d, err := decimal.NewFromString(strings.TrimSpace(v.s))
		if err != nil {
			return Null, pxerr.Type("cannot convert %q to DECIMAL", v.s)
		}
		return Decimal(d), nil
	}
	return Null, pxerr.Type("cannot convert %s to DECIMAL", v.typ)
}
