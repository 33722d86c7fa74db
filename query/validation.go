package query

import (
	"errors"

	"github.com/vegasq/pxcat/pxerr"
)

// Input limits enforced before and during parsing
const (
	// MaxQueryLength caps the statement text in bytes
	MaxQueryLength = 1024 * 1024

	// MaxTokens caps the token count of one statement
	MaxTokens = 10000

	// MaxExpressionDepth caps expression and subquery nesting
	MaxExpressionDepth = 100

	// MaxIdentifierLength is the maximum length for a table, column or alias name
	MaxIdentifierLength = 256
)

var (
	ErrQueryTooLong      = errors.New("statement too long")
	ErrTooManyTokens     = errors.New("too many tokens")
	ErrExpressionTooDeep = errors.New("expression nested too deeply")
	ErrIdentifierTooLong = errors.New("identifier too long")
)

func limitError(pos int, err error, format string, args ...interface{}) error {
	e := pxerr.Syntax(pos, format, args...)
	e.Err = err
	return e
}

// ValidateQuery rejects statements longer than MaxQueryLength
func ValidateQuery(query string) error {
	if len(query) > MaxQueryLength {
		return limitError(0, ErrQueryTooLong, "%d bytes (max %d)", len(query), MaxQueryLength)
	}
	return nil
}

// ValidateIdentifier rejects names longer than MaxIdentifierLength
func ValidateIdentifier(tok Token) error {
	if len(tok.Value) > MaxIdentifierLength {
		return limitError(tok.Pos, ErrIdentifierTooLong, "%d chars (max %d)", len(tok.Value), MaxIdentifierLength)
	}
	return nil
}

// ValidateTokens rejects statements with more than MaxTokens tokens
func ValidateTokens(tokens []Token) error {
	if len(tokens) > MaxTokens {
		return limitError(tokens[MaxTokens].Pos, ErrTooManyTokens, "%d tokens (max %d)", len(tokens), MaxTokens)
	}
	return nil
}

// ExpressionDepthCounter tracks nesting while the parser descends
type ExpressionDepthCounter struct {
	depth    int
	maxDepth int
}

// NewExpressionDepthCounter returns a counter limited to MaxExpressionDepth
func NewExpressionDepthCounter() *ExpressionDepthCounter {
	return &ExpressionDepthCounter{maxDepth: MaxExpressionDepth}
}

// Enter records one more level; it fails once the limit is passed
func (c *ExpressionDepthCounter) Enter(pos int) error {
	c.depth++
	if c.depth > c.maxDepth {
		return limitError(pos, ErrExpressionTooDeep, "depth %d (max %d)", c.depth, c.maxDepth)
	}
	return nil
}

// Exit leaves the current level
func (c *ExpressionDepthCounter) Exit() {
	c.depth--
}
