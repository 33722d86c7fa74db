package value

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the tag of a Value
type Type int

const (
	TypeNull Type = iota
	TypeBoolean
	TypeInteger
	TypeLong
	TypeDouble
	TypeDecimal
	TypeDate
	TypeTime
	TypeTimestamp
	TypeString
	TypeBinary
	TypeLOB
)

var typeNames = map[Type]string{
	TypeNull:      "NULL",
	TypeBoolean:   "BOOLEAN",
	TypeInteger:   "INTEGER",
	TypeLong:      "LONG",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeString:    "VARCHAR",
	TypeBinary:    "BINARY",
	TypeLOB:       "LOB",
}

// String returns the SQL name of the type
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsNumeric reports whether t is one of the numeric tags
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeLong || t == TypeDouble || t == TypeDecimal
}

// ParseType maps a SQL type name used in CAST to a Type
func ParseType(name string) (Type, bool) {
	switch strings.ToUpper(name) {
	case "BOOLEAN", "BOOL", "LOGICAL":
		return TypeBoolean, true
	case "SMALLINT", "SHORT", "INTEGER":
		return TypeInteger, true
	case "INT", "LONG", "BIGINT":
		return TypeLong, true
	case "DOUBLE", "FLOAT", "REAL", "NUMBER":
		return TypeDouble, true
	case "DECIMAL", "NUMERIC", "CURRENCY", "MONEY":
		return TypeDecimal, true
	case "DATE":
		return TypeDate, true
	case "TIME":
		return TypeTime, true
	case "TIMESTAMP", "DATETIME":
		return TypeTimestamp, true
	case "VARCHAR", "CHAR", "STRING", "TEXT", "ALPHA":
		return TypeString, true
	case "BINARY", "VARBINARY", "BYTES", "BLOB":
		return TypeBinary, true
	}
	return TypeNull, false
}

// LOB is a lazily resolved large object reference
type LOB interface {
	// Bytes resolves the payload
	Bytes() ([]byte, error)
	// Text resolves the payload decoded with the owning table's charset
	Text() (string, error)
	// Len returns the declared payload length
	Len() int64
	// IsText reports whether the object holds character data
	IsText() bool
}

// Value is a tagged SQL value
type Value struct {
	typ Type
	b   bool
	i   int64
	f   float64
	d   decimal.Decimal
	s   string
	raw []byte
	t   time.Time
	lob LOB
}

// Null is the NULL value
var Null = Value{}

// Constructors, one per tag

func Bool(b bool) Value               { return Value{typ: TypeBoolean, b: b} }
func Integer(i int64) Value           { return Value{typ: TypeInteger, i: i} }
func Long(i int64) Value              { return Value{typ: TypeLong, i: i} }
func Double(f float64) Value          { return Value{typ: TypeDouble, f: f} }
func Decimal(d decimal.Decimal) Value { return Value{typ: TypeDecimal, d: d} }
func String(s string) Value           { return Value{typ: TypeString, s: s} }
func Binary(b []byte) Value           { return Value{typ: TypeBinary, raw: b} }
func TimeOfDay(d time.Duration) Value { return Value{typ: TypeTime, i: int64(d)} }
func Timestamp(t time.Time) Value     { return Value{typ: TypeTimestamp, t: t.UTC()} }
func FromLOB(l LOB) Value             { return Value{typ: TypeLOB, lob: l} }

// ParseDecimal parses a decimal literal
func ParseDecimal(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Null, err
	}
	return Decimal(d), nil
}

// Date truncates t to its UTC calendar day
func Date(t time.Time) Value {
	y, m, d := t.UTC().Date()
	return Value{typ: TypeDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Type returns the tag
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is NULL
func (v Value) IsNull() bool { return v.typ == TypeNull }

// AsBool returns the boolean payload
func (v Value) AsBool() bool { return v.b }

// AsInt returns integral payloads as int64, truncating doubles and decimals
func (v Value) AsInt() int64 {
	switch v.typ {
	case TypeDouble:
		return int64(v.f)
	case TypeDecimal:
		return v.d.IntPart()
	case TypeBoolean:
		if v.b {
			return 1
		}
		return 0
	}
	return v.i
}

// AsFloat returns numeric payloads as float64
func (v Value) AsFloat() float64 {
	switch v.typ {
	case TypeDouble:
		return v.f
	case TypeDecimal:
		f, _ := v.d.Float64()
		return f
	}
	return float64(v.i)
}

// AsDecimal returns numeric payloads as a decimal
func (v Value) AsDecimal() decimal.Decimal {
	switch v.typ {
	case TypeDecimal:
		return v.d
	case TypeDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(v.f)
	}
	return decimal.NewFromInt(v.i)
}

// AsString returns the string payload
func (v Value) AsString() string { return v.s }

// AsBytes returns the binary payload
func (v Value) AsBytes() []byte { return v.raw }

// AsTime returns the date or timestamp payload
func (v Value) AsTime() time.Time { return v.t }

// AsDuration returns the time-of-day payload
func (v Value) AsDuration() time.Duration { return time.Duration(v.i) }

// AsLOB returns the large object descriptor
func (v Value) AsLOB() LOB { return v.lob }

// Resolve materializes a LOB into a string or binary value; other values are returned unchanged
func (v Value) Resolve() (Value, error) {
	if v.typ != TypeLOB {
		return v, nil
	}
	if v.lob.IsText() {
		s, err := v.lob.Text()
		if err != nil {
			return Null, err
		}
		return String(s), nil
	}
	b, err := v.lob.Bytes()
	if err != nil {
		return Null, err
	}
	return Binary(b), nil
}

// String renders the value for display
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeInteger, TypeLong:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeDecimal:
		return v.d.String()
	case TypeDate:
		return v.t.Format("2006-01-02")
	case TypeTime:
		return formatTimeOfDay(time.Duration(v.i))
	case TypeTimestamp:
		if v.t.Nanosecond() == 0 {
			return v.t.Format("2006-01-02 15:04:05")
		}
		return v.t.Format("2006-01-02 15:04:05.000")
	case TypeString:
		return v.s
	case TypeBinary:
		return hex.EncodeToString(v.raw)
	case TypeLOB:
		return fmt.Sprintf("<lob %d bytes>", v.lob.Len())
	}
	return "?"
}

func formatTimeOfDay(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	if ms != 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Native converts v to a plain Go value: nil, bool, int64, float64,
// decimal.Decimal, time.Time, time.Duration, string, []byte or LOB
func (v Value) Native() interface{} {
	switch v.typ {
	case TypeBoolean:
		return v.b
	case TypeInteger, TypeLong:
		return v.i
	case TypeDouble:
		return v.f
	case TypeDecimal:
		return v.d
	case TypeDate, TypeTimestamp:
		return v.t
	case TypeTime:
		return time.Duration(v.i)
	case TypeString:
		return v.s
	case TypeBinary:
		return v.raw
	case TypeLOB:
		return v.lob
	}
	return nil
}

// FromNative wraps a Go value; used for statement parameters
func FromNative(x interface{}) (Value, error) {
	switch n := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return n, nil
	case bool:
		return Bool(n), nil
	case int:
		return Long(int64(n)), nil
	case int8:
		return Integer(int64(n)), nil
	case int16:
		return Integer(int64(n)), nil
	case int32:
		return Long(int64(n)), nil
	case int64:
		return Long(n), nil
	case uint8:
		return Integer(int64(n)), nil
	case uint16:
		return Long(int64(n)), nil
	case uint32:
		return Long(int64(n)), nil
	case float32:
		return Double(float64(n)), nil
	case float64:
		return Double(n), nil
	case decimal.Decimal:
		return Decimal(n), nil
	case string:
		return String(n), nil
	case []byte:
		return Binary(n), nil
	case time.Time:
		return Timestamp(n), nil
	case time.Duration:
		return TimeOfDay(n), nil
	}
	return Null, fmt.Errorf("unsupported parameter type %T", x)
}
