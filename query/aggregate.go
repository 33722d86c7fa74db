package query

import (
	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Aggregate is a grouping function. Each group gets its own Accumulator.
type Aggregate interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// ResultType returns the static result type for the argument type
	ResultType(arg value.Type) value.Type
	// New returns an empty accumulator
	New() Accumulator
}

// Accumulator is the grouping context of one aggregate for one group
type Accumulator interface {
	// Add folds one input value into the context
	Add(v value.Value) error
	// Merge folds a partial context of the same aggregate into this one
	Merge(other Accumulator) error
	// Result returns the aggregate value
	Result() (value.Value, error)
}

func mergeMismatch(name string, other Accumulator) error {
	return pxerr.Type("%s: cannot merge %T", name, other)
}

// CountAggregate counts non-NULL inputs; COUNT(*) is fed a non-NULL marker per row
type CountAggregate struct{}

func (a *CountAggregate) Name() string                       { return "COUNT" }
func (a *CountAggregate) ResultType(_ value.Type) value.Type { return value.TypeLong }
func (a *CountAggregate) New() Accumulator                   { return &countAcc{} }

type countAcc struct {
	n int64
}

func (c *countAcc) Add(v value.Value) error {
	if !v.IsNull() {
		c.n++
	}
	return nil
}

func (c *countAcc) Merge(other Accumulator) error {
	o, ok := other.(*countAcc)
	if !ok {
		return mergeMismatch("COUNT", other)
	}
	c.n += o.n
	return nil
}

func (c *countAcc) Result() (value.Value, error) {
	return value.Long(c.n), nil
}

// numericSum accumulates non-NULL numeric inputs as a decimal, remembering
// the widest representation seen: integral < decimal < double
type numericSum struct {
	name  string
	sum   decimal.Decimal
	count int64
	kind  value.Type
}

func (s *numericSum) add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	n, err := valueToNumber(v)
	if err != nil {
		return funcError(s.name, err)
	}
	s.sum = s.sum.Add(n.AsDecimal())
	s.count++
	s.widen(n.Type())
	return nil
}

func (s *numericSum) widen(t value.Type) {
	rank := func(t value.Type) int {
		switch t {
		case value.TypeDouble:
			return 3
		case value.TypeDecimal:
			return 2
		case value.TypeInteger, value.TypeLong:
			return 1
		}
		return 0
	}
	if rank(t) > rank(s.kind) {
		s.kind = t
	}
}

func (s *numericSum) merge(o *numericSum) {
	s.sum = s.sum.Add(o.sum)
	s.count += o.count
	s.widen(o.kind)
}

// SumAggregate adds non-NULL numeric inputs
type SumAggregate struct{}

func (a *SumAggregate) Name() string { return "SUM" }
func (a *SumAggregate) ResultType(arg value.Type) value.Type {
	switch arg {
	case value.TypeInteger, value.TypeLong:
		return value.TypeLong
	case value.TypeDouble:
		return value.TypeDouble
	}
	return value.TypeDecimal
}
func (a *SumAggregate) New() Accumulator { return &sumAcc{numericSum{name: "SUM"}} }

type sumAcc struct {
	numericSum
}

func (s *sumAcc) Add(v value.Value) error { return s.add(v) }

func (s *sumAcc) Merge(other Accumulator) error {
	o, ok := other.(*sumAcc)
	if !ok {
		return mergeMismatch("SUM", other)
	}
	s.merge(&o.numericSum)
	return nil
}

func (s *sumAcc) Result() (value.Value, error) {
	if s.count == 0 {
		return value.Null, nil
	}
	switch s.kind {
	case value.TypeInteger, value.TypeLong:
		if s.sum.GreaterThanOrEqual(minLong) && s.sum.LessThanOrEqual(maxLong) {
			return value.Long(s.sum.IntPart()), nil
		}
		return value.Decimal(s.sum), nil
	case value.TypeDouble:
		f, _ := s.sum.Float64()
		return value.Double(f), nil
	}
	return value.Decimal(s.sum), nil
}

var (
	minLong = decimal.NewFromInt(-1 << 63)
	maxLong = decimal.NewFromInt(1<<63 - 1)
)

// AvgAggregate divides the sum of non-NULL numeric inputs by their count,
// rounding toward negative infinity at the scale of the sum
type AvgAggregate struct{}

func (a *AvgAggregate) Name() string { return "AVG" }
func (a *AvgAggregate) ResultType(arg value.Type) value.Type {
	if arg == value.TypeDouble {
		return value.TypeDouble
	}
	return value.TypeDecimal
}
func (a *AvgAggregate) New() Accumulator { return &avgAcc{numericSum{name: "AVG"}} }

type avgAcc struct {
	numericSum
}

func (s *avgAcc) Add(v value.Value) error { return s.add(v) }

func (s *avgAcc) Merge(other Accumulator) error {
	o, ok := other.(*avgAcc)
	if !ok {
		return mergeMismatch("AVG", other)
	}
	s.merge(&o.numericSum)
	return nil
}

func (s *avgAcc) Result() (value.Value, error) {
	if s.count == 0 {
		return value.Null, nil
	}
	if s.kind == value.TypeDouble {
		f, _ := s.sum.Float64()
		return value.Double(f / float64(s.count)), nil
	}
	return value.Decimal(value.FloorDiv(s.sum, s.count)), nil
}

// extremeAcc keeps the smallest (sign < 0) or largest (sign > 0) non-NULL input
type extremeAcc struct {
	name string
	sign int
	best value.Value
}

func (e *extremeAcc) Add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if e.best.IsNull() {
		e.best = v
		return nil
	}
	c, err := value.Compare(v, e.best)
	if err != nil {
		return funcError(e.name, err)
	}
	if c*e.sign > 0 {
		e.best = v
	}
	return nil
}

func (e *extremeAcc) Merge(other Accumulator) error {
	o, ok := other.(*extremeAcc)
	if !ok || o.sign != e.sign {
		return mergeMismatch(e.name, other)
	}
	return e.Add(o.best)
}

func (e *extremeAcc) Result() (value.Value, error) {
	return e.best, nil
}

// MinAggregate returns the smallest non-NULL input
type MinAggregate struct{}

func (a *MinAggregate) Name() string                         { return "MIN" }
func (a *MinAggregate) ResultType(arg value.Type) value.Type { return arg }
func (a *MinAggregate) New() Accumulator                     { return &extremeAcc{name: "MIN", sign: -1} }

// MaxAggregate returns the largest non-NULL input
type MaxAggregate struct{}

func (a *MaxAggregate) Name() string                         { return "MAX" }
func (a *MaxAggregate) ResultType(arg value.Type) value.Type { return arg }
func (a *MaxAggregate) New() Accumulator                     { return &extremeAcc{name: "MAX", sign: 1} }

// distinctAcc feeds each distinct non-NULL input to the wrapped accumulator once
type distinctAcc struct {
	inner Accumulator
	seen  map[string]value.Value
}

func newDistinct(inner Accumulator) *distinctAcc {
	return &distinctAcc{inner: inner, seen: make(map[string]value.Value)}
}

func (d *distinctAcc) Add(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	key, err := v.Key()
	if err != nil {
		return err
	}
	if _, dup := d.seen[key]; dup {
		return nil
	}
	d.seen[key] = v
	return d.inner.Add(v)
}

func (d *distinctAcc) Merge(other Accumulator) error {
	o, ok := other.(*distinctAcc)
	if !ok {
		return mergeMismatch("DISTINCT", other)
	}
	for _, v := range o.seen {
		if err := d.Add(v); err != nil {
			return err
		}
	}
	return nil
}

func (d *distinctAcc) Result() (value.Value, error) {
	return d.inner.Result()
}
