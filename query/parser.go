package query

import (
	"strconv"
	"strings"

	"github.com/vegasq/pxcat/pxerr"
)

// writeStatements are recognised so they can be rejected with an unsupported error
var writeStatements = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"CREATE":   true,
	"DROP":     true,
	"ALTER":    true,
	"TRUNCATE": true,
	"MERGE":    true,
	"GRANT":    true,
	"REVOKE":   true,
}

// Parser parses SQL queries into AST
type Parser struct {
	tokens       []Token
	pos          int
	params       int
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:       tokens,
		pos:          0,
		depthCounter: NewExpressionDepthCounter(),
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// accept advances past the current token when it has the given type
func (p *Parser) accept(tokType TokenType) bool {
	if p.current().Type == tokType {
		p.advance()
		return true
	}
	return false
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != tokType {
		return tok, p.unexpected(tok, tokType.String())
	}
	p.advance()
	return tok, nil
}

// unexpected builds a positional syntax error for tok
func (p *Parser) unexpected(tok Token, want string) error {
	if tok.Type == TokenError {
		return pxerr.Syntax(tok.Pos, "%s", tok.Value)
	}
	if want == "" {
		return pxerr.Syntax(tok.Pos, "unexpected %s", tok.describe())
	}
	return pxerr.Syntax(tok.Pos, "expected %s, got %s", want, tok.describe())
}

// ident consumes a bare or quoted identifier
func (p *Parser) ident(what string) (Token, error) {
	tok := p.current()
	if !tok.isIdent() {
		return tok, p.unexpected(tok, what)
	}
	if err := ValidateIdentifier(tok); err != nil {
		return tok, err
	}
	p.advance()
	return tok, nil
}

// Parse parses a single SELECT statement, optionally terminated by a semicolon
func Parse(query string) (*Select, error) {
	// Validate query length
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	tokens := Tokenize(query)

	// Validate token count
	if err := ValidateTokens(tokens); err != nil {
		return nil, err
	}

	parser := NewParser(tokens)
	if first := parser.current(); first.Type == TokenIdent && writeStatements[strings.ToUpper(first.Value)] {
		return nil, pxerr.Unsupported("%s statements are not supported", strings.ToUpper(first.Value))
	}

	stmt, err := parser.parseSelect()
	if err != nil {
		return nil, err
	}
	parser.accept(TokenSemicolon)

	// Validate that we consumed all tokens (should be at EOF)
	if tok := parser.current(); tok.Type != TokenEOF {
		return nil, parser.unexpected(tok, "end of statement")
	}
	stmt.Params = parser.params
	return stmt, nil
}

// parseSelect parses:
// SELECT [DISTINCT] list [FROM refs] [WHERE expr] [GROUP BY exprs] [HAVING expr]
// [ORDER BY keys] [LIMIT n [OFFSET m]]
func (p *Parser) parseSelect() (*Select, error) {
	if _, err := p.expect(TokenSelect); err != nil {
		return nil, err
	}

	stmt := &Select{}
	if p.accept(TokenDistinct) {
		stmt.Distinct = true
	} else {
		p.accept(TokenAll)
	}

	var err error
	if stmt.Columns, err = p.parseSelectList(); err != nil {
		return nil, err
	}

	if p.accept(TokenFrom) {
		if stmt.From, err = p.parseFromList(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenWhere) {
		if stmt.Where, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenGroup) {
		if _, err := p.expect(TokenBy); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.parseExpressionList(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenHaving) {
		if stmt.Having, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenOrder) {
		if _, err := p.expect(TokenBy); err != nil {
			return nil, err
		}
		if stmt.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenLimit) {
		if stmt.Limit, err = p.parseCount("LIMIT"); err != nil {
			return nil, err
		}
	}
	if p.accept(TokenOffset) {
		if stmt.Offset, err = p.parseCount("OFFSET"); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

// parseSelectList parses the comma separated projection
func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.accept(TokenComma) {
			return items, nil
		}
	}
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	tok := p.current()
	if tok.Type == TokenStar {
		p.advance()
		return SelectItem{Star: true, Pos: tok.Pos}, nil
	}
	if tok.isIdent() && p.peek().Type == TokenDot && p.peekAt(2).Type == TokenStar {
		p.pos += 3
		return SelectItem{Star: true, Table: tok.Value, Pos: tok.Pos}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr, Pos: tok.Pos}
	if item.Alias, err = p.parseAlias(); err != nil {
		return SelectItem{}, err
	}
	return item, nil
}

func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

// parseAlias parses an optional [AS] name
func (p *Parser) parseAlias() (string, error) {
	if p.accept(TokenAs) {
		tok := p.current()
		if tok.Type == TokenString {
			p.advance()
			return tok.Value, nil
		}
		name, err := p.ident("alias")
		if err != nil {
			return "", err
		}
		return name.Value, nil
	}
	if p.current().isIdent() {
		name, err := p.ident("alias")
		return name.Value, err
	}
	return "", nil
}

// parseFromList parses table references joined by commas or JOIN clauses
func (p *Parser) parseFromList() ([]TableRef, error) {
	first, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	refs := []TableRef{first}

	for {
		joinTok := p.current()
		var join JoinType
		switch joinTok.Type {
		case TokenComma:
			p.advance()
			join = JoinCross
		case TokenCross:
			p.advance()
			if _, err := p.expect(TokenJoin); err != nil {
				return nil, err
			}
			join = JoinCross
		case TokenJoin:
			p.advance()
			join = JoinInner
		case TokenInner:
			p.advance()
			if _, err := p.expect(TokenJoin); err != nil {
				return nil, err
			}
			join = JoinInner
		case TokenLeft:
			p.advance()
			p.accept(TokenOuter)
			if _, err := p.expect(TokenJoin); err != nil {
				return nil, err
			}
			join = JoinLeft
		case TokenRight, TokenFull:
			return nil, pxerr.Unsupported("%s JOIN is not supported", strings.ToUpper(joinTok.Value))
		default:
			return refs, nil
		}

		ref, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		ref.Join = join
		if join == JoinInner || join == JoinLeft {
			if _, err := p.expect(TokenOn); err != nil {
				return nil, err
			}
			if ref.On, err = p.parseExpression(); err != nil {
				return nil, err
			}
		}
		refs = append(refs, ref)
	}
}

// parseTableRef parses [schema.]table [[AS] alias]
func (p *Parser) parseTableRef() (TableRef, error) {
	if p.current().Type == TokenLeftParen {
		return TableRef{}, pxerr.Unsupported("subqueries in FROM are not supported")
	}
	name, err := p.ident("table name")
	if err != nil {
		return TableRef{}, err
	}
	ref := TableRef{Name: name.Value, Pos: name.Pos}
	if p.accept(TokenDot) {
		table, err := p.ident("table name")
		if err != nil {
			return TableRef{}, err
		}
		ref.Schema, ref.Name = ref.Name, table.Value
	}
	if ref.Alias, err = p.parseAlias(); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

// parseOrderBy parses expr [ASC|DESC] {, expr [ASC|DESC]}
func (p *Parser) parseOrderBy() ([]OrderItem, error) {
	var items []OrderItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: expr}
		if p.accept(TokenDesc) {
			item.Desc = true
		} else {
			p.accept(TokenAsc)
		}
		items = append(items, item)
		if !p.accept(TokenComma) {
			return items, nil
		}
	}
}

// parseCount parses a non-negative integer for LIMIT and OFFSET
func (p *Parser) parseCount(clause string) (*int64, error) {
	tok, err := p.expect(TokenNumber)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil || n < 0 {
		return nil, pxerr.Syntax(tok.Pos, "%s must be a non-negative integer, got %s", clause, tok.Value)
	}
	return &n, nil
}
