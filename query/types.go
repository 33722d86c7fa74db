package query

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenSelect TokenType = iota
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenXor
	TokenNot
	TokenAs
	TokenGroup
	TokenBy
	TokenHaving
	TokenOrder
	TokenAsc
	TokenDesc
	TokenLimit
	TokenOffset
	TokenIn
	TokenLike
	TokenBetween
	TokenIs
	TokenNull
	TokenDistinct
	TokenAll
	TokenExists
	TokenJoin
	TokenInner
	TokenLeft
	TokenRight
	TokenFull
	TokenOuter
	TokenCross
	TokenOn
	TokenCast
	TokenEscape

	// Operators
	TokenEqual        // =
	TokenNotEqual     // != or <>
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenConcat       // ||

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenQuotedIdent
	TokenBool
	TokenParam // ?

	// Delimiters
	TokenComma      // ,
	TokenLeftParen  // (
	TokenRightParen // )
	TokenDot        // .
	TokenSemicolon  // ;

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenEqual:        "'='",
	TokenNotEqual:     "'<>'",
	TokenLess:         "'<'",
	TokenGreater:      "'>'",
	TokenLessEqual:    "'<='",
	TokenGreaterEqual: "'>='",
	TokenPlus:         "'+'",
	TokenMinus:        "'-'",
	TokenStar:         "'*'",
	TokenSlash:        "'/'",
	TokenPercent:      "'%'",
	TokenConcat:       "'||'",
	TokenString:       "string literal",
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenQuotedIdent:  "quoted identifier",
	TokenBool:         "boolean",
	TokenParam:        "'?'",
	TokenComma:        "','",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenDot:          "'.'",
	TokenSemicolon:    "';'",
	TokenEOF:          "end of input",
	TokenError:        "invalid token",
}

// String returns a readable name used in syntax errors
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, typ := range keywords {
		if typ == t {
			return kw
		}
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	// Pos is the byte offset of the token in the statement text
	Pos int
}

// isIdent reports whether the token can name a table, column or alias
func (t Token) isIdent() bool {
	return t.Type == TokenIdent || t.Type == TokenQuotedIdent
}

func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("'%s'", t.Value)
	}
	return fmt.Sprintf("%q", t.Value)
}
