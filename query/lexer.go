package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// eof is the current character once the input is exhausted
const eof rune = -1

// Lexer tokenizes SQL query strings
type Lexer struct {
	input string
	pos   int // offset of ch
	next  int // offset after ch
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	l.pos = l.next
	if l.next >= len(l.input) {
		l.ch = eof
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.next:])
	l.ch = r
	l.next += w
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.next >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.next:])
	return r
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != eof {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') && l.ch != eof {
				l.readChar()
			}
			if l.ch != eof {
				l.readChar()
				l.readChar()
			}
		default:
			return
		}
	}
}

// readQuoted reads a literal delimited by quote; a doubled quote stands for itself.
// It reports false when the closing quote is missing.
func (l *Lexer) readQuoted(quote rune) (string, bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for {
		switch l.ch {
		case eof:
			return result.String(), false
		case quote:
			if l.peekChar() != quote {
				l.readChar() // skip closing quote
				return result.String(), true
			}
			l.readChar()
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
}

// readNumber reads an integer or decimal literal with an optional exponent.
// A second decimal point makes the literal malformed.
func (l *Lexer) readNumber() (string, bool) {
	start := l.pos
	dots := 0
	for unicode.IsDigit(l.ch) || l.ch == '.' {
		if l.ch == '.' {
			dots++
		}
		l.readChar()
	}
	if (l.ch == 'e' || l.ch == 'E') && dots <= 1 {
		p := l.peekChar()
		if unicode.IsDigit(p) || p == '+' || p == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for unicode.IsDigit(l.ch) {
				l.readChar()
			}
		}
	}
	// identifiers may not start right after a number
	for isIdentChar(l.ch) {
		dots = 2
		l.readChar()
	}
	return l.input[start:l.pos], dots <= 1
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$' || ch == '#'
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentChar(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.pos
	single := func(typ TokenType) Token {
		tok := Token{Type: typ, Value: string(l.ch), Pos: pos}
		l.readChar()
		return tok
	}
	double := func(typ TokenType) Token {
		l.readChar()
		tok := Token{Type: typ, Value: l.input[pos:l.next], Pos: pos}
		l.readChar()
		return tok
	}

	switch l.ch {
	case eof:
		return Token{Type: TokenEOF, Pos: len(l.input)}
	case '=':
		return single(TokenEqual)
	case '!':
		if l.peekChar() == '=' {
			return double(TokenNotEqual)
		}
		return l.illegal(pos)
	case '<':
		switch l.peekChar() {
		case '=':
			return double(TokenLessEqual)
		case '>':
			return double(TokenNotEqual)
		}
		return single(TokenLess)
	case '>':
		if l.peekChar() == '=' {
			return double(TokenGreaterEqual)
		}
		return single(TokenGreater)
	case '|':
		if l.peekChar() == '|' {
			return double(TokenConcat)
		}
		return l.illegal(pos)
	case '+':
		return single(TokenPlus)
	case '-':
		return single(TokenMinus)
	case '*':
		return single(TokenStar)
	case '/':
		return single(TokenSlash)
	case '%':
		return single(TokenPercent)
	case ',':
		return single(TokenComma)
	case '(':
		return single(TokenLeftParen)
	case ')':
		return single(TokenRightParen)
	case ';':
		return single(TokenSemicolon)
	case '?':
		return single(TokenParam)
	case '\'':
		s, ok := l.readQuoted('\'')
		if !ok {
			return Token{Type: TokenError, Value: "unterminated string literal", Pos: pos}
		}
		return Token{Type: TokenString, Value: s, Pos: pos}
	case '"', '`':
		s, ok := l.readQuoted(l.ch)
		if !ok {
			return Token{Type: TokenError, Value: "unterminated quoted identifier", Pos: pos}
		}
		if s == "" {
			return Token{Type: TokenError, Value: "empty quoted identifier", Pos: pos}
		}
		return Token{Type: TokenQuotedIdent, Value: s, Pos: pos}
	case '[':
		l.readChar()
		start := l.pos
		for l.ch != ']' && l.ch != eof {
			l.readChar()
		}
		if l.ch == eof || l.pos == start {
			return Token{Type: TokenError, Value: "unterminated bracketed identifier", Pos: pos}
		}
		s := l.input[start:l.pos]
		l.readChar()
		return Token{Type: TokenQuotedIdent, Value: s, Pos: pos}
	case '.':
		if unicode.IsDigit(l.peekChar()) {
			return l.number(pos)
		}
		return single(TokenDot)
	}

	switch {
	case unicode.IsDigit(l.ch):
		return l.number(pos)
	case isIdentStart(l.ch):
		value := l.readIdentifier()
		return Token{Type: identifierType(value), Value: value, Pos: pos}
	}
	return l.illegal(pos)
}

func (l *Lexer) illegal(pos int) Token {
	tok := Token{Type: TokenError, Value: fmt.Sprintf("unexpected character %q", l.ch), Pos: pos}
	l.readChar()
	return tok
}

func (l *Lexer) number(pos int) Token {
	value, ok := l.readNumber()
	if !ok {
		return Token{Type: TokenError, Value: "malformed number " + value, Pos: pos}
	}
	return Token{Type: TokenNumber, Value: value, Pos: pos}
}

var keywords = map[string]TokenType{
	"SELECT":   TokenSelect,
	"FROM":     TokenFrom,
	"WHERE":    TokenWhere,
	"AND":      TokenAnd,
	"OR":       TokenOr,
	"XOR":      TokenXor,
	"NOT":      TokenNot,
	"AS":       TokenAs,
	"GROUP":    TokenGroup,
	"BY":       TokenBy,
	"HAVING":   TokenHaving,
	"ORDER":    TokenOrder,
	"ASC":      TokenAsc,
	"DESC":     TokenDesc,
	"LIMIT":    TokenLimit,
	"OFFSET":   TokenOffset,
	"IN":       TokenIn,
	"LIKE":     TokenLike,
	"BETWEEN":  TokenBetween,
	"IS":       TokenIs,
	"NULL":     TokenNull,
	"DISTINCT": TokenDistinct,
	"ALL":      TokenAll,
	"EXISTS":   TokenExists,
	"JOIN":     TokenJoin,
	"INNER":    TokenInner,
	"LEFT":     TokenLeft,
	"RIGHT":    TokenRight,
	"FULL":     TokenFull,
	"OUTER":    TokenOuter,
	"CROSS":    TokenCross,
	"ON":       TokenOn,
	"CAST":     TokenCast,
	"ESCAPE":   TokenEscape,
	"TRUE":     TokenBool,
	"FALSE":    TokenBool,
}

// identifierType determines if an identifier is a keyword
func identifierType(ident string) TokenType {
	if tokType, ok := keywords[strings.ToUpper(ident)]; ok {
		return tokType
	}
	return TokenIdent
}

// Tokenize returns all tokens from the input
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
