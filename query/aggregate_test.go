package query

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vegasq/pxcat/value"
)

func accumulate(t *testing.T, acc Accumulator, vals ...value.Value) value.Value {
	t.Helper()
	for _, v := range vals {
		if err := acc.Add(v); err != nil {
			t.Fatalf("Add(%v) error = %v", v, err)
		}
	}
	res, err := acc.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	return res
}

func TestAggregates(t *testing.T) {
	tests := []struct {
		name  string
		agg   Aggregate
		input []value.Value
		want  string
		typ   value.Type
	}{
		{"count skips nulls", &CountAggregate{}, []value.Value{value.Long(1), value.Null, value.String("x")}, "2", value.TypeLong},
		{"count of nothing", &CountAggregate{}, nil, "0", value.TypeLong},
		{"sum of longs", &SumAggregate{}, []value.Value{value.Long(2), value.Integer(3), value.Null}, "5", value.TypeLong},
		{"sum of decimals", &SumAggregate{}, []value.Value{dec("1.10"), value.Long(2)}, "3.1", value.TypeDecimal},
		{"sum with double", &SumAggregate{}, []value.Value{value.Long(1), value.Double(0.5)}, "1.5", value.TypeDouble},
		{"sum of nothing", &SumAggregate{}, []value.Value{value.Null}, "NULL", value.TypeNull},
		{"avg floors", &AvgAggregate{}, []value.Value{value.Long(7), value.Long(0)}, "3", value.TypeDecimal},
		{"avg floors negative", &AvgAggregate{}, []value.Value{value.Long(-7), value.Long(0)}, "-4", value.TypeDecimal},
		{"avg keeps scale", &AvgAggregate{}, []value.Value{dec("1.50"), dec("2.25")}, "1.87", value.TypeDecimal},
		{"avg of doubles", &AvgAggregate{}, []value.Value{value.Double(1), value.Double(2)}, "1.5", value.TypeDouble},
		{"avg of doubles repeating", &AvgAggregate{}, []value.Value{value.Double(1), value.Double(1), value.Double(2)}, "1.3333333333333333", value.TypeDouble},
		{"avg floors repeating quotient", &AvgAggregate{}, []value.Value{value.Long(10), value.Long(10), value.Long(11)}, "10", value.TypeDecimal},
		{"avg floors repeating decimal", &AvgAggregate{}, []value.Value{dec("1.00"), dec("1.00"), dec("1.01")}, "1", value.TypeDecimal},
		{"avg of nothing", &AvgAggregate{}, nil, "NULL", value.TypeNull},
		{"min", &MinAggregate{}, []value.Value{value.Long(5), value.Null, value.Double(-1.5), value.Long(3)}, "-1.5", value.TypeDouble},
		{"max strings", &MaxAggregate{}, []value.Value{value.String("AL"), value.String("NY"), value.String("CT")}, "NY", value.TypeString},
		{"max of nulls", &MaxAggregate{}, []value.Value{value.Null, value.Null}, "NULL", value.TypeNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accumulate(t, tt.agg.New(), tt.input...)
			if got.Type() != tt.typ {
				t.Errorf("type = %v, want %v", got.Type(), tt.typ)
			}
			if got.String() != tt.want {
				t.Errorf("result = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestAvgKeepsScaleOfSum(t *testing.T) {
	// 3.01 / 3 = 1.00333... floors to 1.00
	got := accumulate(t, (&AvgAggregate{}).New(), dec("1.00"), dec("1.00"), dec("1.01"))
	if !got.AsDecimal().Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("AVG = %v, want 1.00", got)
	}
	if exp := got.AsDecimal().Exponent(); exp != -2 {
		t.Errorf("AVG exponent = %d, want -2", exp)
	}

	got = accumulate(t, (&AvgAggregate{}).New(), value.Long(-10), value.Long(-10), value.Long(-11))
	if got.String() != "-11" {
		t.Errorf("AVG(-10, -10, -11) = %v, want -11", got)
	}
}

func TestAggregateDistinct(t *testing.T) {
	states := []value.Value{
		value.String("NJ"), value.String("CT"), value.Null, value.String("CT"), value.String("NY"),
	}

	count := accumulate(t, newDistinct((&CountAggregate{}).New()), states...)
	if count.AsInt() != 3 {
		t.Errorf("COUNT(DISTINCT) = %v, want 3", count)
	}

	// 2 and 2.0 are the same number
	sum := accumulate(t, newDistinct((&SumAggregate{}).New()), value.Long(2), dec("2.0"), value.Long(3))
	if sum.String() != "5" {
		t.Errorf("SUM(DISTINCT) = %v, want 5", sum)
	}
}

func TestAggregateMerge(t *testing.T) {
	tests := []struct {
		name  string
		agg   Aggregate
		left  []value.Value
		right []value.Value
		want  string
		wrap  bool
	}{
		{"count", &CountAggregate{}, []value.Value{value.Long(1)}, []value.Value{value.Long(1), value.Long(2)}, "3", false},
		{"sum", &SumAggregate{}, []value.Value{value.Long(1)}, []value.Value{dec("0.5")}, "1.5", false},
		{"avg", &AvgAggregate{}, []value.Value{value.Long(1), value.Long(2)}, []value.Value{value.Long(6)}, "3", false},
		{"min", &MinAggregate{}, []value.Value{value.Long(4)}, []value.Value{value.Long(2)}, "2", false},
		{"max with empty side", &MaxAggregate{}, []value.Value{value.Long(4)}, nil, "4", false},
		{"distinct count", &CountAggregate{}, []value.Value{value.String("a"), value.String("b")}, []value.Value{value.String("b"), value.String("c")}, "3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newAcc := func() Accumulator {
				if tt.wrap {
					return newDistinct(tt.agg.New())
				}
				return tt.agg.New()
			}
			left, right := newAcc(), newAcc()
			for _, v := range tt.left {
				if err := left.Add(v); err != nil {
					t.Fatal(err)
				}
			}
			for _, v := range tt.right {
				if err := right.Add(v); err != nil {
					t.Fatal(err)
				}
			}
			if err := left.Merge(right); err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			got, err := left.Result()
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("merged result = %v, want %s", got, tt.want)
			}
		})
	}

	t.Run("mismatched accumulators", func(t *testing.T) {
		if err := (&CountAggregate{}).New().Merge((&SumAggregate{}).New()); err == nil {
			t.Error("Merge() of COUNT and SUM succeeded")
		}
		if err := (&MinAggregate{}).New().Merge((&MaxAggregate{}).New()); err == nil {
			t.Error("Merge() of MIN and MAX succeeded")
		}
	})
}

func TestAggregateResultTypes(t *testing.T) {
	tests := []struct {
		agg  Aggregate
		arg  value.Type
		want value.Type
	}{
		{&CountAggregate{}, value.TypeString, value.TypeLong},
		{&SumAggregate{}, value.TypeInteger, value.TypeLong},
		{&SumAggregate{}, value.TypeDecimal, value.TypeDecimal},
		{&SumAggregate{}, value.TypeDouble, value.TypeDouble},
		{&AvgAggregate{}, value.TypeLong, value.TypeDecimal},
		{&AvgAggregate{}, value.TypeDouble, value.TypeDouble},
		{&MinAggregate{}, value.TypeDate, value.TypeDate},
		{&MaxAggregate{}, value.TypeString, value.TypeString},
	}
	for _, tt := range tests {
		if got := tt.agg.ResultType(tt.arg); got != tt.want {
			t.Errorf("%s(%v) type = %v, want %v", tt.agg.Name(), tt.arg, got, tt.want)
		}
	}
}
