package query

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// EvalContext carries the per-statement state functions may read
type EvalContext struct {
	// Locale drives case folding in UPPER and LOWER
	Locale language.Tag
	// Now is fixed when the statement starts so every row sees the same clock
	Now time.Time

	upper cases.Caser
	lower cases.Caser
}

// NewEvalContext builds a context for one statement execution
func NewEvalContext(locale language.Tag, now time.Time) *EvalContext {
	return &EvalContext{
		Locale: locale,
		Now:    now.UTC(),
		upper:  cases.Upper(locale),
		lower:  cases.Lower(locale),
	}
}

// Function represents a scalar function that can be evaluated
type Function interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// MinArity returns the minimum number of arguments
	MinArity() int
	// MaxArity returns the maximum number of arguments (-1 for unlimited)
	MaxArity() int
	// ResultType returns the static result type for the given argument types;
	// TypeNull means the type is only known at run time
	ResultType(args []value.Type) value.Type
	// Evaluate evaluates the function with the given arguments
	Evaluate(ctx *EvalContext, args []value.Value) (value.Value, error)
}

// NullTolerant is implemented by functions that handle NULL arguments
// themselves instead of returning NULL for any NULL input
type NullTolerant interface {
	NullTolerant() bool
}

// ArgumentChecker is implemented by functions that validate argument types at bind time
type ArgumentChecker interface {
	CheckArgs(args []value.Type) error
}

// FunctionRegistry manages function lookup and registration. Each session
// owns its registry.
type FunctionRegistry struct {
	mu         sync.RWMutex
	functions  map[string]Function
	aggregates map[string]Aggregate
}

// NewFunctionRegistry creates an empty function registry
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions:  make(map[string]Function),
		aggregates: make(map[string]Aggregate),
	}
}

// Register registers a function under its name and any aliases
func (r *FunctionRegistry) Register(f Function, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[strings.ToUpper(f.Name())] = f
	for _, alias := range aliases {
		r.functions[strings.ToUpper(alias)] = f
	}
}

// RegisterAggregate registers a grouping function
func (r *FunctionRegistry) RegisterAggregate(a Aggregate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates[strings.ToUpper(a.Name())] = a
}

// Get retrieves a function by name (case-insensitive)
func (r *FunctionRegistry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.functions[strings.ToUpper(name)]
	return f, exists
}

// Aggregate retrieves a grouping function by name (case-insensitive)
func (r *FunctionRegistry) Aggregate(name string) (Aggregate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, exists := r.aggregates[strings.ToUpper(name)]
	return a, exists
}

// DefaultRegistry returns a new registry holding every built-in function
func DefaultRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()

	// Register string functions
	r.Register(&UpperFunc{})
	r.Register(&LowerFunc{})
	r.Register(&ConcatFunc{})
	r.Register(&LengthFunc{}, "CHAR_LENGTH", "CHARACTER_LENGTH")
	r.Register(&trimFunc{name: "TRIM", trim: strings.Trim})
	r.Register(&trimFunc{name: "LTRIM", trim: strings.TrimLeft})
	r.Register(&trimFunc{name: "RTRIM", trim: strings.TrimRight})
	r.Register(&SubstringFunc{}, "SUBSTR")
	r.Register(&ReplaceFunc{})
	r.Register(&PositionFunc{}, "INSTR")
	r.Register(&LeftFunc{})
	r.Register(&RightFunc{})
	r.Register(&ReverseFunc{})
	r.Register(&RepeatFunc{})
	r.Register(&ASCIIFunc{})
	r.Register(&ChrFunc{}, "CHAR")

	// Register math functions
	r.Register(&AbsFunc{})
	r.Register(&RoundFunc{})
	r.Register(&FloorFunc{})
	r.Register(&CeilFunc{}, "CEIL")
	r.Register(&ModFunc{})
	r.Register(&SqrtFunc{})
	r.Register(&PowFunc{}, "POW")
	r.Register(&SignFunc{})
	r.Register(&TruncFunc{}, "TRUNC")
	r.Register(&PiFunc{})

	// Register date/time functions
	r.Register(&NowFunc{}, "NOW")
	r.Register(&CurrentDateFunc{})
	r.Register(&CurrentTimeFunc{})
	r.Register(&datePartFunc{name: "YEAR", part: partYear})
	r.Register(&datePartFunc{name: "MONTH", part: partMonth})
	r.Register(&datePartFunc{name: "DAY", part: partDay})
	r.Register(&datePartFunc{name: "HOUR", part: partHour})
	r.Register(&datePartFunc{name: "MINUTE", part: partMinute})
	r.Register(&datePartFunc{name: "SECOND", part: partSecond})

	// Register conditional functions
	r.Register(&CoalesceFunc{})
	r.Register(&NullIfFunc{})
	r.Register(&IfNullFunc{}, "NVL")

	// Register conversion functions
	r.Register(&ToStringFunc{})
	r.Register(&ToNumberFunc{})
	r.Register(&ToDateFunc{})
	r.Register(&TryCastFunc{})

	// Register grouping functions
	r.RegisterAggregate(&CountAggregate{})
	r.RegisterAggregate(&SumAggregate{})
	r.RegisterAggregate(&AvgAggregate{})
	r.RegisterAggregate(&MinAggregate{})
	r.RegisterAggregate(&MaxAggregate{})

	return r
}

// Helper function to convert value to string
func valueToString(v value.Value) (string, error) {
	if v.Type() == value.TypeString {
		return v.AsString(), nil
	}
	s, err := value.Convert(v, value.TypeString)
	if err != nil {
		return "", err
	}
	return s.AsString(), nil
}

// Helper function to convert value to a numeric value
func valueToNumber(v value.Value) (value.Value, error) {
	if v.Type().IsNumeric() {
		return v, nil
	}
	if v.Type() == value.TypeString {
		n, err := value.Convert(v, value.TypeDecimal)
		if err != nil {
			return value.Null, pxerr.Type("not a number: %q", v.AsString())
		}
		return n, nil
	}
	return value.Null, pxerr.Type("expected a number, got %s", v.Type())
}

// Helper function to convert value to int
func valueToInt(v value.Value) (int, error) {
	n, err := valueToNumber(v)
	if err != nil {
		return 0, err
	}
	return int(n.AsInt()), nil
}

// funcError prefixes err with the function name
func funcError(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}

// firstType returns the first known argument type
func firstType(args []value.Type) value.Type {
	for _, t := range args {
		if t != value.TypeNull {
			return t
		}
	}
	return value.TypeNull
}
