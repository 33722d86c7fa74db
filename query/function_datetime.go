package query

import (
	"time"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// Date/Time Functions

// NowFunc returns the statement timestamp
type NowFunc struct{}

func (f *NowFunc) Name() string                         { return "CURRENT_TIMESTAMP" }
func (f *NowFunc) MinArity() int                        { return 0 }
func (f *NowFunc) MaxArity() int                        { return 0 }
func (f *NowFunc) ResultType(_ []value.Type) value.Type { return value.TypeTimestamp }
func (f *NowFunc) Evaluate(ctx *EvalContext, _ []value.Value) (value.Value, error) {
	return value.Timestamp(ctx.Now.Truncate(time.Millisecond)), nil
}

// CurrentDateFunc returns the statement date
type CurrentDateFunc struct{}

func (f *CurrentDateFunc) Name() string                         { return "CURRENT_DATE" }
func (f *CurrentDateFunc) MinArity() int                        { return 0 }
func (f *CurrentDateFunc) MaxArity() int                        { return 0 }
func (f *CurrentDateFunc) ResultType(_ []value.Type) value.Type { return value.TypeDate }
func (f *CurrentDateFunc) Evaluate(ctx *EvalContext, _ []value.Value) (value.Value, error) {
	return value.Date(ctx.Now), nil
}

// CurrentTimeFunc returns the statement time of day
type CurrentTimeFunc struct{}

func (f *CurrentTimeFunc) Name() string                         { return "CURRENT_TIME" }
func (f *CurrentTimeFunc) MinArity() int                        { return 0 }
func (f *CurrentTimeFunc) MaxArity() int                        { return 0 }
func (f *CurrentTimeFunc) ResultType(_ []value.Type) value.Type { return value.TypeTime }
func (f *CurrentTimeFunc) Evaluate(ctx *EvalContext, _ []value.Value) (value.Value, error) {
	y, m, d := ctx.Now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return value.TimeOfDay(ctx.Now.Sub(midnight).Truncate(time.Millisecond)), nil
}

type datePart int

const (
	partYear datePart = iota
	partMonth
	partDay
	partHour
	partMinute
	partSecond
)

// datePartFunc extracts one calendar or clock component
type datePartFunc struct {
	name string
	part datePart
}

func (f *datePartFunc) Name() string                         { return f.name }
func (f *datePartFunc) MinArity() int                        { return 1 }
func (f *datePartFunc) MaxArity() int                        { return 1 }
func (f *datePartFunc) ResultType(_ []value.Type) value.Type { return value.TypeInteger }
func (f *datePartFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	v := args[0]

	if v.Type() == value.TypeTime {
		d := v.AsDuration()
		switch f.part {
		case partHour:
			return value.Integer(int64(d / time.Hour)), nil
		case partMinute:
			return value.Integer(int64(d/time.Minute) % 60), nil
		case partSecond:
			return value.Integer(int64(d/time.Second) % 60), nil
		}
		return value.Null, pxerr.Type("%s of a TIME value", f.name)
	}

	if v.Type() != value.TypeDate && v.Type() != value.TypeTimestamp {
		ts, err := value.Convert(v, value.TypeTimestamp)
		if err != nil {
			return value.Null, funcError(f.name, err)
		}
		v = ts
	}
	t := v.AsTime()
	switch f.part {
	case partYear:
		return value.Integer(int64(t.Year())), nil
	case partMonth:
		return value.Integer(int64(t.Month())), nil
	case partDay:
		return value.Integer(int64(t.Day())), nil
	case partHour:
		return value.Integer(int64(t.Hour())), nil
	case partMinute:
		return value.Integer(int64(t.Minute())), nil
	}
	return value.Integer(int64(t.Second())), nil
}
