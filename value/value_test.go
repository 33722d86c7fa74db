package value

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pxcat/pxerr"
)

type textLOB struct {
	text string
	err  error
}

func (l textLOB) Bytes() ([]byte, error) { return []byte(l.text), l.err }
func (l textLOB) Text() (string, error)  { return l.text, l.err }
func (l textLOB) Len() int64             { return int64(len(l.text)) }
func (l textLOB) IsText() bool           { return true }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompare(t *testing.T) {
	day := time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null equals null", Null, Null, 0},
		{"null before value", Null, Integer(-5), -1},
		{"value after null", String(""), Null, 1},
		{"integer vs long", Integer(3), Long(3), 0},
		{"long vs double", Long(2), Double(2.5), -1},
		{"decimal vs integer", Decimal(dec("10.50")), Integer(10), 1},
		{"decimal scales equal", Decimal(dec("1.50")), Decimal(dec("1.5")), 0},
		{"strings", String("abc"), String("abd"), -1},
		{"string coerced to number", String("42"), Long(42), 0},
		{"string coerced beyond short range", String("70000"), Integer(1), 1},
		{"date vs timestamp", Date(day), Timestamp(day.Add(time.Hour)), -1},
		{"string coerced to date", Date(day), String("2020-05-17"), 0},
		{"time of day", TimeOfDay(time.Hour), TimeOfDay(2 * time.Hour), -1},
		{"booleans", Bool(false), Bool(true), -1},
		{"lob resolves as text", FromLOB(textLOB{text: "memo"}), String("memo"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareIncompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
	}{
		{"bool vs number", Bool(true), Long(1)},
		{"date vs number", Date(time.Now()), Double(1)},
		{"unparseable string vs number", String("abc"), Long(1)},
		{"binary vs time", Binary([]byte{1}), TimeOfDay(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pxerr.ErrType))
		})
	}
}

func TestCompareLOBFailure(t *testing.T) {
	boom := errors.New("read failed")
	_, err := Compare(FromLOB(textLOB{err: boom}), String("x"))
	assert.ErrorIs(t, err, boom)
}

func TestKeyGroupsEqualValues(t *testing.T) {
	k1, err := Long(1).Key()
	require.NoError(t, err)
	k2, err := Decimal(dec("1.00")).Key()
	require.NoError(t, err)
	k3, err := Double(1).Key()
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, k1, k3)

	ks, err := String("1").Key()
	require.NoError(t, err)
	assert.NotEqual(t, k1, ks)

	kn, err := Null.Key()
	require.NoError(t, err)
	assert.NotEqual(t, kn, ks)
}

func TestRowKeyKeepsColumnsApart(t *testing.T) {
	tests := []struct {
		name  string
		left  []Value
		right []Value
	}{
		{"separator in string", []Value{String("a\x1fsb"), String("c")}, []Value{String("a"), String("b\x1fsc")}},
		{"shifted boundary", []Value{String("ab"), String("c")}, []Value{String("a"), String("bc")}},
		{"binary payload", []Value{Binary([]byte("x\x1fxy")), Binary([]byte("z"))}, []Value{Binary([]byte("x")), Binary([]byte("y\x1fxz"))}},
		{"digits after length", []Value{String("1:sa"), String("b")}, []Value{String("1"), String("a1:sb")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := RowKey(tt.left)
			require.NoError(t, err)
			r, err := RowKey(tt.right)
			require.NoError(t, err)
			assert.NotEqual(t, l, r)
		})
	}

	a, err := RowKey([]Value{Long(1), String("x")})
	require.NoError(t, err)
	b, err := RowKey([]Value{Decimal(dec("1.0")), String("x")})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		to   Type
		want string
	}{
		{"long to string", Long(12), TypeString, "12"},
		{"string to decimal", String(" 3.25 "), TypeDecimal, "3.25"},
		{"string to long via decimal", String("7.9"), TypeLong, "7"},
		{"double to long", Double(-2.7), TypeLong, "-2"},
		{"string to date", String("1999-12-31"), TypeDate, "1999-12-31"},
		{"timestamp to date", Timestamp(time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)), TypeDate, "2001-02-03"},
		{"timestamp to time", Timestamp(time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)), TypeTime, "04:05:06"},
		{"string to bool", String("yes"), TypeBoolean, "true"},
		{"null stays null", Null, TypeLong, "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.in, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := Convert(Long(70000), TypeInteger)
	assert.ErrorIs(t, err, pxerr.ErrType)
	_, err = Convert(Bool(true), TypeDate)
	assert.ErrorIs(t, err, pxerr.ErrType)
}

func TestArith(t *testing.T) {
	tests := []struct {
		name string
		op   byte
		a, b Value
		want Value
	}{
		{"long add", '+', Integer(2), Long(3), Long(5)},
		{"long div truncates", '/', Long(7), Long(2), Long(3)},
		{"double wins", '*', Long(2), Double(1.5), Double(3)},
		{"decimal sub", '-', Decimal(dec("1.10")), Long(1), Decimal(dec("0.10"))},
		{"string operand", '+', String("1.5"), Long(1), Decimal(dec("2.5"))},
		{"null propagates", '+', Null, Long(1), Null},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arith(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			c, err := Compare(got, tt.want)
			require.NoError(t, err)
			assert.Equal(t, 0, c, "got %s", got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}

	_, err := Arith('/', Long(1), Long(0))
	assert.ErrorIs(t, err, pxerr.ErrType)
	_, err = Arith('+', Bool(true), Long(1))
	assert.ErrorIs(t, err, pxerr.ErrType)
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		sum   string
		count int64
		want  string
	}{
		{"10", 3, "3"},
		{"-10", 3, "-4"},
		{"10.00", 3, "3.33"},
		{"-10.00", 3, "-3.34"},
		{"9", 3, "3"},
		{"0.05", 2, "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.sum, func(t *testing.T) {
			got := FloorDiv(dec(tt.sum), tt.count)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(int32(5))
	require.NoError(t, err)
	assert.Equal(t, TypeLong, v.Type())

	v, err = FromNative(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = FromNative(struct{}{})
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("numeric")
	assert.True(t, ok)
	assert.Equal(t, TypeDecimal, typ)

	_, ok = ParseType("geometry")
	assert.False(t, ok)
}
