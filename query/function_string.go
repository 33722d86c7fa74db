package query

import (
	"strings"
	"unicode/utf8"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// String Functions

// UpperFunc converts a string to uppercase using the session locale
type UpperFunc struct{}

func (f *UpperFunc) Name() string                         { return "UPPER" }
func (f *UpperFunc) MinArity() int                        { return 1 }
func (f *UpperFunc) MaxArity() int                        { return 1 }
func (f *UpperFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *UpperFunc) Evaluate(ctx *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("UPPER", err)
	}
	return value.String(ctx.upper.String(str)), nil
}

// LowerFunc converts a string to lowercase using the session locale
type LowerFunc struct{}

func (f *LowerFunc) Name() string                         { return "LOWER" }
func (f *LowerFunc) MinArity() int                        { return 1 }
func (f *LowerFunc) MaxArity() int                        { return 1 }
func (f *LowerFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *LowerFunc) Evaluate(ctx *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("LOWER", err)
	}
	return value.String(ctx.lower.String(str)), nil
}

// ConcatFunc concatenates its arguments, skipping NULLs
type ConcatFunc struct{}

func (f *ConcatFunc) Name() string                         { return "CONCAT" }
func (f *ConcatFunc) MinArity() int                        { return 1 }
func (f *ConcatFunc) MaxArity() int                        { return -1 } // variadic
func (f *ConcatFunc) NullTolerant() bool                   { return true }
func (f *ConcatFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *ConcatFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	var builder strings.Builder
	for _, arg := range args {
		if arg.IsNull() {
			continue
		}
		str, err := valueToString(arg)
		if err != nil {
			return value.Null, funcError("CONCAT", err)
		}
		builder.WriteString(str)
	}
	return value.String(builder.String()), nil
}

// LengthFunc returns the number of characters in a string
type LengthFunc struct{}

func (f *LengthFunc) Name() string                         { return "LENGTH" }
func (f *LengthFunc) MinArity() int                        { return 1 }
func (f *LengthFunc) MaxArity() int                        { return 1 }
func (f *LengthFunc) ResultType(_ []value.Type) value.Type { return value.TypeLong }
func (f *LengthFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	if args[0].Type() == value.TypeBinary {
		return value.Long(int64(len(args[0].AsBytes()))), nil
	}
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("LENGTH", err)
	}
	return value.Long(int64(utf8.RuneCountInString(str))), nil
}

// trimFunc backs TRIM, LTRIM and RTRIM; the cut set defaults to a space
type trimFunc struct {
	name string
	trim func(s, cutset string) string
}

func (f *trimFunc) Name() string                         { return f.name }
func (f *trimFunc) MinArity() int                        { return 1 }
func (f *trimFunc) MaxArity() int                        { return 2 }
func (f *trimFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *trimFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError(f.name, err)
	}
	cutset := " "
	if len(args) > 1 {
		if cutset, err = valueToString(args[1]); err != nil {
			return value.Null, funcError(f.name, err)
		}
	}
	return value.String(f.trim(str, cutset)), nil
}

// SubstringFunc extracts a substring (1-indexed)
type SubstringFunc struct{}

func (f *SubstringFunc) Name() string                         { return "SUBSTRING" }
func (f *SubstringFunc) MinArity() int                        { return 2 }
func (f *SubstringFunc) MaxArity() int                        { return 3 }
func (f *SubstringFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *SubstringFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("SUBSTRING", err)
	}
	start, err := valueToInt(args[1])
	if err != nil {
		return value.Null, funcError("SUBSTRING", err)
	}
	runes := []rune(str)
	end := len(runes) + 1
	if len(args) == 3 {
		length, err := valueToInt(args[2])
		if err != nil {
			return value.Null, funcError("SUBSTRING", err)
		}
		if length < 0 {
			return value.Null, pxerr.Type("SUBSTRING: negative length %d", length)
		}
		end = start + length
	}
	if start < 1 {
		start = 1
	}
	if end > len(runes)+1 {
		end = len(runes) + 1
	}
	if start >= end {
		return value.String(""), nil
	}
	return value.String(string(runes[start-1 : end-1])), nil
}

// ReplaceFunc replaces all occurrences of a substring
type ReplaceFunc struct{}

func (f *ReplaceFunc) Name() string                         { return "REPLACE" }
func (f *ReplaceFunc) MinArity() int                        { return 3 }
func (f *ReplaceFunc) MaxArity() int                        { return 3 }
func (f *ReplaceFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *ReplaceFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	var strs [3]string
	for i, arg := range args {
		s, err := valueToString(arg)
		if err != nil {
			return value.Null, funcError("REPLACE", err)
		}
		strs[i] = s
	}
	return value.String(strings.ReplaceAll(strs[0], strs[1], strs[2])), nil
}

// PositionFunc returns the 1-based character position of a substring, 0 when absent
type PositionFunc struct{}

func (f *PositionFunc) Name() string                         { return "POSITION" }
func (f *PositionFunc) MinArity() int                        { return 2 }
func (f *PositionFunc) MaxArity() int                        { return 2 }
func (f *PositionFunc) ResultType(_ []value.Type) value.Type { return value.TypeLong }
func (f *PositionFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	sub, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("POSITION", err)
	}
	str, err := valueToString(args[1])
	if err != nil {
		return value.Null, funcError("POSITION", err)
	}
	idx := strings.Index(str, sub)
	if idx < 0 {
		return value.Long(0), nil
	}
	return value.Long(int64(utf8.RuneCountInString(str[:idx]) + 1)), nil
}

// LeftFunc returns the first n characters
type LeftFunc struct{}

func (f *LeftFunc) Name() string                         { return "LEFT" }
func (f *LeftFunc) MinArity() int                        { return 2 }
func (f *LeftFunc) MaxArity() int                        { return 2 }
func (f *LeftFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *LeftFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	runes, n, err := runesAndCount("LEFT", args)
	if err != nil {
		return value.Null, err
	}
	return value.String(string(runes[:n])), nil
}

// RightFunc returns the last n characters
type RightFunc struct{}

func (f *RightFunc) Name() string                         { return "RIGHT" }
func (f *RightFunc) MinArity() int                        { return 2 }
func (f *RightFunc) MaxArity() int                        { return 2 }
func (f *RightFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *RightFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	runes, n, err := runesAndCount("RIGHT", args)
	if err != nil {
		return value.Null, err
	}
	return value.String(string(runes[len(runes)-n:])), nil
}

// runesAndCount decodes (string, n) arguments, clamping n to [0, len]
func runesAndCount(name string, args []value.Value) ([]rune, int, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return nil, 0, funcError(name, err)
	}
	n, err := valueToInt(args[1])
	if err != nil {
		return nil, 0, funcError(name, err)
	}
	runes := []rune(str)
	if n < 0 {
		n = 0
	}
	if n > len(runes) {
		n = len(runes)
	}
	return runes, n, nil
}

// ReverseFunc reverses a string
type ReverseFunc struct{}

func (f *ReverseFunc) Name() string                         { return "REVERSE" }
func (f *ReverseFunc) MinArity() int                        { return 1 }
func (f *ReverseFunc) MaxArity() int                        { return 1 }
func (f *ReverseFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *ReverseFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("REVERSE", err)
	}
	runes := []rune(str)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return value.String(string(runes)), nil
}

// RepeatFunc repeats a string n times
type RepeatFunc struct{}

// maxRepeatLength bounds the output of REPEAT
const maxRepeatLength = 1 << 20

func (f *RepeatFunc) Name() string                         { return "REPEAT" }
func (f *RepeatFunc) MinArity() int                        { return 2 }
func (f *RepeatFunc) MaxArity() int                        { return 2 }
func (f *RepeatFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *RepeatFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("REPEAT", err)
	}
	count, err := valueToInt(args[1])
	if err != nil {
		return value.Null, funcError("REPEAT", err)
	}
	if count <= 0 {
		return value.String(""), nil
	}
	if len(str)*count > maxRepeatLength {
		return value.Null, pxerr.Type("REPEAT: result exceeds %d bytes", maxRepeatLength)
	}
	return value.String(strings.Repeat(str, count)), nil
}

// ASCIIFunc returns the code point of the first character
type ASCIIFunc struct{}

func (f *ASCIIFunc) Name() string                         { return "ASCII" }
func (f *ASCIIFunc) MinArity() int                        { return 1 }
func (f *ASCIIFunc) MaxArity() int                        { return 1 }
func (f *ASCIIFunc) ResultType(_ []value.Type) value.Type { return value.TypeLong }
func (f *ASCIIFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	str, err := valueToString(args[0])
	if err != nil {
		return value.Null, funcError("ASCII", err)
	}
	if str == "" {
		return value.Long(0), nil
	}
	r, _ := utf8.DecodeRuneInString(str)
	return value.Long(int64(r)), nil
}

// ChrFunc returns the character for a code point
type ChrFunc struct{}

func (f *ChrFunc) Name() string                         { return "CHR" }
func (f *ChrFunc) MinArity() int                        { return 1 }
func (f *ChrFunc) MaxArity() int                        { return 1 }
func (f *ChrFunc) ResultType(_ []value.Type) value.Type { return value.TypeString }
func (f *ChrFunc) Evaluate(_ *EvalContext, args []value.Value) (value.Value, error) {
	code, err := valueToInt(args[0])
	if err != nil {
		return value.Null, funcError("CHR", err)
	}
	if code < 0 || !utf8.ValidRune(rune(code)) {
		return value.Null, pxerr.Type("CHR: invalid code point %d", code)
	}
	return value.String(string(rune(code))), nil
}
