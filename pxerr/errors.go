// Package pxerr defines the typed failures surfaced by the query engine.
//
// Every failure carries a stable textual code in the style of SQLSTATE and a
// coarse category (syntax, binding, decode, type, execution, unsupported).
// Callers match failures with errors.Is against the sentinels declared here:
//
//	if errors.Is(err, pxerr.ErrColumnAmbiguous) {
//	    // qualify the column and retry
//	}
//
// Matching compares codes, so a wrapped *Error with extra context still
// matches its sentinel.
package pxerr

import (
	"errors"
	"fmt"
)

// Category groups error codes by the layer that raises them
type Category int

const (
	CategorySyntax Category = iota
	CategoryBinding
	CategoryDecode
	CategoryType
	CategoryExecution
	CategoryUnsupported
)

// String returns the category name
func (c Category) String() string {
	switch c {
	case CategorySyntax:
		return "syntax"
	case CategoryBinding:
		return "binding"
	case CategoryDecode:
		return "decode"
	case CategoryType:
		return "type"
	case CategoryExecution:
		return "execution"
	case CategoryUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Stable error codes
const (
	CodeSyntax            = "42601"
	CodeTableNotFound     = "42P01"
	CodeColumnNotFound    = "42703"
	CodeColumnAmbiguous   = "42702"
	CodeFunctionNotFound  = "42883"
	CodeInvalidArity      = "42P13"
	CodeParameterCount    = "07001"
	CodeInconsistentTypes = "42804"
	CodeEmptyColumnList   = "42P10"
	CodeColumnNotGrouped  = "42803"
	CodeDuplicateAlias    = "42712"
	CodeDecode            = "XX001"
	CodeMissingLOBFile    = "58P01"
	CodeUnrecognizedFile  = "XX002"
	CodeType              = "22P02"
	CodeCancelled         = "57014"
	CodeUnsupported       = "0A000"
)

// Error is a typed engine failure
type Error struct {
	Code     string
	Category Category
	Message  string
	// Pos is the byte offset into the statement text for syntax errors, -1 otherwise
	Pos int
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Pos >= 0 && e.Category == CategorySyntax {
		msg = fmt.Sprintf("%s at position %d", msg, e.Pos)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching
var (
	ErrSyntax            = &Error{Code: CodeSyntax, Category: CategorySyntax, Message: "syntax error", Pos: -1}
	ErrTableNotFound     = &Error{Code: CodeTableNotFound, Category: CategoryBinding, Message: "table not found", Pos: -1}
	ErrColumnNotFound    = &Error{Code: CodeColumnNotFound, Category: CategoryBinding, Message: "column not found", Pos: -1}
	ErrColumnAmbiguous   = &Error{Code: CodeColumnAmbiguous, Category: CategoryBinding, Message: "column ambiguous", Pos: -1}
	ErrFunctionNotFound  = &Error{Code: CodeFunctionNotFound, Category: CategoryBinding, Message: "function not found", Pos: -1}
	ErrInvalidArity      = &Error{Code: CodeInvalidArity, Category: CategoryBinding, Message: "invalid number of arguments", Pos: -1}
	ErrParameterCount    = &Error{Code: CodeParameterCount, Category: CategoryBinding, Message: "parameter count mismatch", Pos: -1}
	ErrInconsistentTypes = &Error{Code: CodeInconsistentTypes, Category: CategoryBinding, Message: "inconsistent data types", Pos: -1}
	ErrEmptyColumnList   = &Error{Code: CodeEmptyColumnList, Category: CategoryBinding, Message: "empty column list", Pos: -1}
	ErrColumnNotGrouped  = &Error{Code: CodeColumnNotGrouped, Category: CategoryBinding, Message: "column must appear in GROUP BY or be used in an aggregate", Pos: -1}
	ErrDuplicateAlias    = &Error{Code: CodeDuplicateAlias, Category: CategoryBinding, Message: "duplicate table alias", Pos: -1}
	ErrDecode            = &Error{Code: CodeDecode, Category: CategoryDecode, Message: "decode error", Pos: -1}
	ErrMissingLOBFile    = &Error{Code: CodeMissingLOBFile, Category: CategoryDecode, Message: "large object file missing", Pos: -1}
	ErrUnrecognizedFile  = &Error{Code: CodeUnrecognizedFile, Category: CategoryDecode, Message: "unrecognized file type", Pos: -1}
	ErrType              = &Error{Code: CodeType, Category: CategoryType, Message: "type error", Pos: -1}
	ErrCancelled         = &Error{Code: CodeCancelled, Category: CategoryExecution, Message: "operation cancelled", Pos: -1}
	ErrUnsupported       = &Error{Code: CodeUnsupported, Category: CategoryUnsupported, Message: "unsupported operation", Pos: -1}
)

func newf(proto *Error, format string, args ...interface{}) *Error {
	return &Error{
		Code:     proto.Code,
		Category: proto.Category,
		Message:  fmt.Sprintf(format, args...),
		Pos:      -1,
	}
}

// Syntax creates a positional syntax error
func Syntax(pos int, format string, args ...interface{}) *Error {
	e := newf(ErrSyntax, format, args...)
	e.Pos = pos
	return e
}

// TableNotFound reports an unresolved table reference
func TableNotFound(name string) *Error {
	return newf(ErrTableNotFound, "table not found: %s", name)
}

// ColumnNotFound reports an unresolved column reference
func ColumnNotFound(name string) *Error {
	return newf(ErrColumnNotFound, "column not found: %s", name)
}

// ColumnAmbiguous reports a column reference matching more than one column
func ColumnAmbiguous(name string) *Error {
	return newf(ErrColumnAmbiguous, "column ambiguous: %s", name)
}

// FunctionNotFound reports an unknown function name
func FunctionNotFound(name string) *Error {
	return newf(ErrFunctionNotFound, "function not found: %s", name)
}

// InvalidArity reports a function called with the wrong number of arguments
func InvalidArity(name string, got int) *Error {
	return newf(ErrInvalidArity, "invalid number of arguments for %s: %d", name, got)
}

// ParameterCount reports a mismatch between placeholders and supplied values
func ParameterCount(want, got int) *Error {
	return newf(ErrParameterCount, "statement has %d parameters, %d supplied", want, got)
}

// InconsistentTypes reports argument types that do not agree
func InconsistentTypes(format string, args ...interface{}) *Error {
	return newf(ErrInconsistentTypes, format, args...)
}

// EmptyColumnList reports a statement that projects no columns
func EmptyColumnList() *Error {
	return newf(ErrEmptyColumnList, "empty column list")
}

// ColumnNotGrouped reports a bare column in a grouped projection
func ColumnNotGrouped(name string) *Error {
	return newf(ErrColumnNotGrouped, "column %s must appear in GROUP BY or be used in an aggregate", name)
}

// DuplicateAlias reports two FROM entries sharing an alias
func DuplicateAlias(alias string) *Error {
	return newf(ErrDuplicateAlias, "duplicate table alias: %s", alias)
}

// Decode wraps a malformed file failure
func Decode(err error, format string, args ...interface{}) *Error {
	e := newf(ErrDecode, format, args...)
	e.Err = err
	return e
}

// MissingLOBFile reports an absent companion large object file
func MissingLOBFile(path string, err error) *Error {
	e := newf(ErrMissingLOBFile, "large object file missing: %s", path)
	e.Err = err
	return e
}

// UnrecognizedFile reports a file type byte outside the valid set
func UnrecognizedFile(path string, fileType byte) *Error {
	return newf(ErrUnrecognizedFile, "unrecognized file type 0x%02x in %s", fileType, path)
}

// Type reports an invalid comparison or conversion
func Type(format string, args ...interface{}) *Error {
	return newf(ErrType, format, args...)
}

// Cancelled reports a statement stopped by cancellation
func Cancelled(cause error) *Error {
	e := newf(ErrCancelled, "operation cancelled")
	e.Err = cause
	return e
}

// Unsupported reports a statement or operation the engine does not implement
func Unsupported(format string, args ...interface{}) *Error {
	return newf(ErrUnsupported, format, args...)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// CategoryOf returns the category of the first *Error in err's chain
func CategoryOf(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return 0, false
}
