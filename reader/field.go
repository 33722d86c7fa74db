package reader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/value"
)

// FieldType is a field type code from the field descriptor table
type FieldType byte

const (
	FieldAlpha     FieldType = 0x01
	FieldDate      FieldType = 0x02
	FieldShort     FieldType = 0x03
	FieldLong      FieldType = 0x04
	FieldCurrency  FieldType = 0x05
	FieldNumber    FieldType = 0x06
	FieldLogical   FieldType = 0x09
	FieldMemo      FieldType = 0x0C
	FieldBlob      FieldType = 0x0D
	FieldFmtMemo   FieldType = 0x0E
	FieldOLE       FieldType = 0x0F
	FieldGraphic   FieldType = 0x10
	FieldTime      FieldType = 0x14
	FieldTimestamp FieldType = 0x15
	FieldAutoInc   FieldType = 0x16
	FieldBCD       FieldType = 0x17
	FieldBytes     FieldType = 0x18
)

const (
	bcdWidth     = 17
	lobTailSize  = 10
	epochDays    = 719163
	millisPerDay = 86400000
	logicalFalse = 0x80
	logicalTrue  = 0x81
	maxBCDDigits = 32
	maxBCDScale  = 32
)

var fieldTypeNames = map[FieldType]string{
	FieldAlpha:     "ALPHA",
	FieldDate:      "DATE",
	FieldShort:     "SHORT",
	FieldLong:      "LONG",
	FieldCurrency:  "CURRENCY",
	FieldNumber:    "NUMBER",
	FieldLogical:   "LOGICAL",
	FieldMemo:      "MEMO",
	FieldBlob:      "BLOB",
	FieldFmtMemo:   "FMTMEMO",
	FieldOLE:       "OLE",
	FieldGraphic:   "GRAPHIC",
	FieldTime:      "TIME",
	FieldTimestamp: "TIMESTAMP",
	FieldAutoInc:   "AUTOINC",
	FieldBCD:       "BCD",
	FieldBytes:     "BYTES",
}

// String returns the type name
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
}

// Known reports whether the code is a recognized field type
func (t FieldType) Known() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// IsLOB reports whether values are stored through a large object descriptor
func (t FieldType) IsLOB() bool {
	switch t {
	case FieldMemo, FieldBlob, FieldFmtMemo, FieldOLE, FieldGraphic:
		return true
	}
	return false
}

// IsTextLOB reports whether the large object holds character data
func (t FieldType) IsTextLOB() bool {
	return t == FieldMemo || t == FieldFmtMemo
}

// Width returns the number of record bytes a field of this type and declared size occupies
func (t FieldType) Width(size int) (int, error) {
	switch t {
	case FieldAlpha, FieldBytes:
		return size, nil
	case FieldShort:
		return 2, nil
	case FieldDate, FieldLong, FieldTime, FieldAutoInc:
		return 4, nil
	case FieldCurrency, FieldNumber, FieldTimestamp:
		return 8, nil
	case FieldLogical:
		return 1, nil
	case FieldBCD:
		return bcdWidth, nil
	case FieldMemo, FieldBlob, FieldFmtMemo, FieldOLE, FieldGraphic:
		if size <= lobTailSize {
			return 0, fmt.Errorf("large object field size %d leaves no room for a descriptor", size)
		}
		return size, nil
	}
	return 0, fmt.Errorf("unknown field type code 0x%02x", byte(t))
}

// ValueType maps the field type to the canonical value tag
func (t FieldType) ValueType() value.Type {
	switch t {
	case FieldAlpha:
		return value.TypeString
	case FieldDate:
		return value.TypeDate
	case FieldShort:
		return value.TypeInteger
	case FieldLong, FieldAutoInc:
		return value.TypeLong
	case FieldCurrency, FieldBCD:
		return value.TypeDecimal
	case FieldNumber:
		return value.TypeDouble
	case FieldLogical:
		return value.TypeBoolean
	case FieldTime:
		return value.TypeTime
	case FieldTimestamp:
		return value.TypeTimestamp
	case FieldBytes:
		return value.TypeBinary
	case FieldMemo, FieldFmtMemo, FieldBlob, FieldOLE, FieldGraphic:
		return value.TypeLOB
	}
	return value.TypeNull
}

// Field is a column of a table
type Field struct {
	Name    string
	Type    FieldType
	Size    int
	Ordinal int
	// offset of the field within a record
	offset int
	width  int
	// Table is a back reference to the owning table
	Table *Table
}

// ValueType returns the canonical value tag of the field
func (f *Field) ValueType() value.Type {
	return f.Type.ValueType()
}

// Precision returns the declared precision: character length, or digits for numeric types
func (f *Field) Precision() int {
	switch f.Type {
	case FieldAlpha, FieldBytes:
		return f.Size
	case FieldShort:
		return 5
	case FieldLong, FieldAutoInc:
		return 10
	case FieldNumber, FieldCurrency:
		return 15
	case FieldBCD:
		return maxBCDDigits
	case FieldMemo, FieldFmtMemo, FieldBlob, FieldOLE, FieldGraphic:
		return math.MaxInt32
	}
	return f.width
}

// Scale returns the number of fractional digits for decimal fields
func (f *Field) Scale() int {
	switch f.Type {
	case FieldCurrency:
		return 2
	case FieldBCD:
		return f.Size
	}
	return 0
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// decodeSignFlipped reads a big-endian integer stored with its sign bit inverted
func decodeSignFlipped(b []byte) int64 {
	switch len(b) {
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b) ^ 0x8000))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b) ^ 0x80000000))
	}
	return 0
}

// decodeDouble reads an 8-byte big-endian double stored with negative values complemented
func decodeDouble(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// decodeBCD reads a 17-byte packed decimal
func decodeBCD(b []byte) (decimal.Decimal, error) {
	positive := b[0]&0x80 != 0
	scale := int(b[0] & 0x3F)
	if scale > maxBCDScale {
		return decimal.Zero, fmt.Errorf("BCD scale %d out of range", scale)
	}

	var digits strings.Builder
	for _, c := range b[1:bcdWidth] {
		hi, lo := c>>4, c&0x0F
		if !positive {
			hi, lo = 0x0F-hi, 0x0F-lo
		}
		if hi > 9 || lo > 9 {
			return decimal.Zero, fmt.Errorf("invalid BCD digit in 0x%02x", c)
		}
		digits.WriteByte('0' + hi)
		digits.WriteByte('0' + lo)
	}

	d, err := decimal.NewFromString(digits.String())
	if err != nil {
		return decimal.Zero, err
	}
	d = d.Shift(int32(-scale))
	if !positive {
		d = d.Neg()
	}
	return d, nil
}

// decodeValue converts one field's raw record bytes into a value
func (t *Table) decodeValue(f *Field, raw []byte, dec *Charset) (value.Value, error) {
	if f.Type != FieldAlpha && !f.Type.IsLOB() && allZero(raw) {
		return value.Null, nil
	}

	switch f.Type {
	case FieldAlpha:
		s := cBytes(raw)
		if len(s) == 0 {
			return value.Null, nil
		}
		text, err := dec.Decode(s)
		if err != nil {
			return value.Null, err
		}
		return value.String(text), nil
	case FieldShort:
		return value.Integer(decodeSignFlipped(raw)), nil
	case FieldLong, FieldAutoInc:
		return value.Long(decodeSignFlipped(raw)), nil
	case FieldDate:
		days := decodeSignFlipped(raw)
		return value.Date(time.Unix((days-epochDays)*86400, 0)), nil
	case FieldTime:
		ms := decodeSignFlipped(raw)
		return value.TimeOfDay(time.Duration(ms) * time.Millisecond), nil
	case FieldNumber:
		return value.Double(decodeDouble(raw)), nil
	case FieldCurrency:
		f := decodeDouble(raw)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return value.Null, fmt.Errorf("currency value is not finite")
		}
		return value.Decimal(decimal.NewFromFloat(f)), nil
	case FieldTimestamp:
		ms := decodeDouble(raw) - float64(epochDays)*millisPerDay
		return value.Timestamp(time.UnixMilli(int64(math.Round(ms)))), nil
	case FieldLogical:
		switch raw[0] {
		case logicalFalse:
			return value.Bool(false), nil
		case logicalTrue:
			return value.Bool(true), nil
		}
		return value.Bool(raw[0]&0x7F != 0), nil
	case FieldBCD:
		d, err := decodeBCD(raw)
		if err != nil {
			return value.Null, err
		}
		return value.Decimal(d), nil
	case FieldBytes:
		out := make([]byte, len(raw))
		copy(out, raw)
		return value.Binary(out), nil
	case FieldMemo, FieldBlob, FieldFmtMemo, FieldOLE, FieldGraphic:
		return t.decodeLOB(f, raw, dec)
	}
	return value.Null, fmt.Errorf("unknown field type code 0x%02x", byte(f.Type))
}

func cBytes(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
