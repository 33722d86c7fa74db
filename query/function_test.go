package query

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

var testNow = time.Date(2024, time.March, 15, 13, 45, 30, 123000000, time.UTC)

func callFunc(t *testing.T, ctx *EvalContext, name string, args ...value.Value) (value.Value, error) {
	t.Helper()
	f, ok := DefaultRegistry().Get(name)
	if !ok {
		t.Fatalf("function %s not registered", name)
	}
	if len(args) < f.MinArity() || (f.MaxArity() >= 0 && len(args) > f.MaxArity()) {
		t.Fatalf("%s called with %d arguments", name, len(args))
	}
	return f.Evaluate(ctx, args)
}

func dec(s string) value.Value {
	return value.Decimal(decimal.RequireFromString(s))
}

func TestFunctionRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, name := range []string{"upper", "Substr", "CHAR_LENGTH", "nvl", "ceil", "pow", "now", "INSTR"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("Get(%q) not found", name)
		}
	}
	for _, name := range []string{"count", "Sum", "AVG", "min", "MAX"} {
		if _, ok := r.Aggregate(name); !ok {
			t.Errorf("Aggregate(%q) not found", name)
		}
	}
	if _, ok := r.Get("COUNT"); ok {
		t.Error("COUNT registered as a scalar function")
	}
	if _, ok := r.Get("NO_SUCH_FUNCTION"); ok {
		t.Error("Get() found an unknown function")
	}

	sub, _ := r.Get("SUBSTR")
	if sub.Name() != "SUBSTRING" {
		t.Errorf("SUBSTR resolves to %s, want SUBSTRING", sub.Name())
	}

	// registries are independent
	other := NewFunctionRegistry()
	other.Register(&UpperFunc{}, "SHOUT")
	if _, ok := r.Get("SHOUT"); ok {
		t.Error("alias leaked into another registry")
	}
	if _, ok := other.Get("shout"); !ok {
		t.Error("alias not registered")
	}
}

func TestScalarFunctions(t *testing.T) {
	ctx := NewEvalContext(language.English, testNow)

	tests := []struct {
		name string
		fn   string
		args []value.Value
		want string
		typ  value.Type
	}{
		// strings
		{"upper", "UPPER", []value.Value{value.String("Hackensack")}, "HACKENSACK", value.TypeString},
		{"lower", "LOWER", []value.Value{value.String("NJ")}, "nj", value.TypeString},
		{"concat skips null", "CONCAT", []value.Value{value.String("a"), value.Null, value.Long(1)}, "a1", value.TypeString},
		{"length counts runes", "LENGTH", []value.Value{value.String("état")}, "4", value.TypeLong},
		{"length of binary", "LENGTH", []value.Value{value.Binary([]byte{1, 2, 3})}, "3", value.TypeLong},
		{"trim", "TRIM", []value.Value{value.String("  x  ")}, "x", value.TypeString},
		{"ltrim with set", "LTRIM", []value.Value{value.String("xxyx"), value.String("x")}, "yx", value.TypeString},
		{"rtrim", "RTRIM", []value.Value{value.String("ab  ")}, "ab", value.TypeString},
		{"substring", "SUBSTRING", []value.Value{value.String("hello"), value.Long(2), value.Long(3)}, "ell", value.TypeString},
		{"substring to end", "SUBSTRING", []value.Value{value.String("hello"), value.Long(3)}, "llo", value.TypeString},
		{"substring past end", "SUBSTRING", []value.Value{value.String("hello"), value.Long(9)}, "", value.TypeString},
		{"replace", "REPLACE", []value.Value{value.String("a-b-c"), value.String("-"), value.String("+")}, "a+b+c", value.TypeString},
		{"position", "POSITION", []value.Value{value.String("lo"), value.String("hello")}, "4", value.TypeLong},
		{"position absent", "POSITION", []value.Value{value.String("z"), value.String("hello")}, "0", value.TypeLong},
		{"left clamps", "LEFT", []value.Value{value.String("abc"), value.Long(5)}, "abc", value.TypeString},
		{"right", "RIGHT", []value.Value{value.String("abc"), value.Long(2)}, "bc", value.TypeString},
		{"reverse", "REVERSE", []value.Value{value.String("été")}, "été", value.TypeString},
		{"repeat", "REPEAT", []value.Value{value.String("ab"), value.Long(3)}, "ababab", value.TypeString},
		{"ascii", "ASCII", []value.Value{value.String("A")}, "65", value.TypeLong},
		{"chr", "CHR", []value.Value{value.Long(97)}, "a", value.TypeString},

		// math
		{"abs long", "ABS", []value.Value{value.Long(-5)}, "5", value.TypeLong},
		{"abs decimal", "ABS", []value.Value{dec("-1.25")}, "1.25", value.TypeDecimal},
		{"round decimal", "ROUND", []value.Value{dec("2.345"), value.Long(2)}, "2.35", value.TypeDecimal},
		{"round half away from zero", "ROUND", []value.Value{dec("-2.5")}, "-3", value.TypeDecimal},
		{"round long negative places", "ROUND", []value.Value{value.Long(1234), value.Long(-2)}, "1200", value.TypeLong},
		{"truncate", "TRUNCATE", []value.Value{dec("-2.789"), value.Long(1)}, "-2.7", value.TypeDecimal},
		{"floor double", "FLOOR", []value.Value{value.Double(-1.5)}, "-2", value.TypeDouble},
		{"ceiling decimal", "CEILING", []value.Value{dec("1.2")}, "2", value.TypeDecimal},
		{"sqrt", "SQRT", []value.Value{value.Long(16)}, "4", value.TypeDouble},
		{"power", "POWER", []value.Value{value.Long(2), value.Long(10)}, "1024", value.TypeDouble},
		{"sign", "SIGN", []value.Value{value.Double(-0.5)}, "-1", value.TypeInteger},
		{"sign of string", "SIGN", []value.Value{value.String("12")}, "1", value.TypeInteger},

		// date and time
		{"current date", "CURRENT_DATE", nil, "2024-03-15", value.TypeDate},
		{"current time", "CURRENT_TIME", nil, "13:45:30.123", value.TypeTime},
		{"now", "NOW", nil, "2024-03-15 13:45:30.123", value.TypeTimestamp},
		{"year", "YEAR", []value.Value{value.Date(testNow)}, "2024", value.TypeInteger},
		{"month of string", "MONTH", []value.Value{value.String("1999-12-31")}, "12", value.TypeInteger},
		{"day", "DAY", []value.Value{value.Timestamp(testNow)}, "15", value.TypeInteger},
		{"hour of time", "HOUR", []value.Value{value.TimeOfDay(13*time.Hour + 45*time.Minute)}, "13", value.TypeInteger},
		{"minute", "MINUTE", []value.Value{value.Timestamp(testNow)}, "45", value.TypeInteger},
		{"second", "SECOND", []value.Value{value.Timestamp(testNow)}, "30", value.TypeInteger},

		// conditional
		{"coalesce", "COALESCE", []value.Value{value.Null, value.Null, value.Long(3)}, "3", value.TypeLong},
		{"coalesce all null", "COALESCE", []value.Value{value.Null, value.Null}, "NULL", value.TypeNull},
		{"nullif equal", "NULLIF", []value.Value{value.Long(1), value.Double(1)}, "NULL", value.TypeNull},
		{"nullif different", "NULLIF", []value.Value{value.String("a"), value.String("b")}, "a", value.TypeString},
		{"ifnull", "IFNULL", []value.Value{value.Null, value.String("x")}, "x", value.TypeString},
		{"nvl keeps value", "NVL", []value.Value{value.String("y"), value.String("x")}, "y", value.TypeString},

		// conversion
		{"to_string", "TO_STRING", []value.Value{value.Long(42)}, "42", value.TypeString},
		{"to_number", "TO_NUMBER", []value.Value{value.String("12.5")}, "12.5", value.TypeDecimal},
		{"to_date", "TO_DATE", []value.Value{value.String("2001-02-03 04:05:06")}, "2001-02-03", value.TypeDate},
		{"try_cast ok", "TRY_CAST", []value.Value{value.String("42"), value.String("integer")}, "42", value.TypeInteger},
		{"try_cast failure", "TRY_CAST", []value.Value{value.String("abc"), value.String("LONG")}, "NULL", value.TypeNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callFunc(t, ctx, tt.fn, tt.args...)
			if err != nil {
				t.Fatalf("%s() error = %v", tt.fn, err)
			}
			if got.Type() != tt.typ {
				t.Errorf("%s() type = %v, want %v", tt.fn, got.Type(), tt.typ)
			}
			if got.String() != tt.want {
				t.Errorf("%s() = %q, want %q", tt.fn, got.String(), tt.want)
			}
		})
	}
}

func TestScalarFunctionErrors(t *testing.T) {
	ctx := NewEvalContext(language.English, testNow)

	tests := []struct {
		name string
		fn   string
		args []value.Value
	}{
		{"sqrt of negative", "SQRT", []value.Value{value.Long(-1)}},
		{"abs of text", "ABS", []value.Value{value.String("abc")}},
		{"negative substring length", "SUBSTRING", []value.Value{value.String("abc"), value.Long(1), value.Long(-1)}},
		{"chr out of range", "CHR", []value.Value{value.Long(-3)}},
		{"year of time", "YEAR", []value.Value{value.TimeOfDay(time.Hour)}},
		{"try_cast unknown type", "TRY_CAST", []value.Value{value.Long(1), value.String("widget")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := callFunc(t, ctx, tt.fn, tt.args...)
			if err == nil {
				t.Fatalf("%s() succeeded, want error", tt.fn)
			}
			if code := pxerr.CodeOf(err); code != pxerr.CodeType {
				t.Errorf("code = %s, want %s (%v)", code, pxerr.CodeType, err)
			}
		})
	}
}

func TestCaseFoldingFollowsLocale(t *testing.T) {
	tr := NewEvalContext(language.Turkish, testNow)
	got, err := callFunc(t, tr, "UPPER", value.String("i"))
	if err != nil {
		t.Fatal(err)
	}
	if got.AsString() != "İ" {
		t.Errorf("UPPER('i') under tr = %q, want İ", got.AsString())
	}

	en := NewEvalContext(language.English, testNow)
	got, err = callFunc(t, en, "UPPER", value.String("i"))
	if err != nil {
		t.Fatal(err)
	}
	if got.AsString() != "I" {
		t.Errorf("UPPER('i') under en = %q, want I", got.AsString())
	}
}

func TestConditionalArgumentTypes(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		fn   string
		args []value.Type
		ok   bool
	}{
		{"COALESCE", []value.Type{value.TypeLong, value.TypeDouble, value.TypeDecimal}, true},
		{"COALESCE", []value.Type{value.TypeNull, value.TypeString}, true},
		{"COALESCE", []value.Type{value.TypeString, value.TypeLong}, false},
		{"NULLIF", []value.Type{value.TypeDate, value.TypeTimestamp}, true},
		{"NULLIF", []value.Type{value.TypeDate, value.TypeTime}, false},
		{"IFNULL", []value.Type{value.TypeBoolean, value.TypeString}, false},
	}

	for _, tt := range tests {
		f, _ := r.Get(tt.fn)
		err := f.(ArgumentChecker).CheckArgs(tt.args)
		if tt.ok && err != nil {
			t.Errorf("%s%v: unexpected error %v", tt.fn, tt.args, err)
		}
		if !tt.ok && pxerr.CodeOf(err) != pxerr.CodeInconsistentTypes {
			t.Errorf("%s%v: error = %v, want code %s", tt.fn, tt.args, err, pxerr.CodeInconsistentTypes)
		}
	}
}
