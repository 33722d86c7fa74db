package query

import (
	"strconv"
	"strings"

	"github.com/vegasq/pxcat/pxerr"
	"github.com/vegasq/pxcat/value"
)

// niladic functions may be written without parentheses
var niladic = map[string]bool{
	"CURRENT_DATE":      true,
	"CURRENT_TIME":      true,
	"CURRENT_TIMESTAMP": true,
}

// parseExpression parses a full expression: OR/XOR binds loosest, then AND, then NOT
func (p *Parser) parseExpression() (*Expr, error) {
	if err := p.depthCounter.Enter(p.current().Pos); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()
	return p.parseOr()
}

// parseExpressionList parses expr {, expr}
func (p *Parser) parseExpressionList() ([]*Expr, error) {
	var list []*Expr
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		if !p.accept(TokenComma) {
			return list, nil
		}
	}
}

func binary(op Op, left, right *Expr, pos int) *Expr {
	return &Expr{Kind: ExprBinary, Op: op, Args: []*Expr{left, right}, Pos: pos}
}

// parseOr parses OR and XOR chains
func (p *Parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		var op Op
		switch tok.Type {
		case TokenOr:
			op = OpOr
		case TokenXor:
			op = OpXor
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right, tok.Pos)
	}
}

// parseAnd parses AND chains
func (p *Parser) parseAnd() (*Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenAnd {
		tok := p.current()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binary(OpAnd, left, right, tok.Pos)
	}
	return left, nil
}

// parseNot parses prefix NOT
func (p *Parser) parseNot() (*Expr, error) {
	tok := p.current()
	if tok.Type != TokenNot {
		return p.parsePredicate()
	}
	p.advance()
	if err := p.depthCounter.Enter(tok.Pos); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprUnary, Op: OpNot, Args: []*Expr{operand}, Pos: tok.Pos}, nil
}

var comparisonOps = map[TokenType]Op{
	TokenEqual:        OpEq,
	TokenNotEqual:     OpNe,
	TokenLess:         OpLt,
	TokenLessEqual:    OpLe,
	TokenGreater:      OpGt,
	TokenGreaterEqual: OpGe,
}

// parsePredicate parses comparisons, [NOT] BETWEEN, [NOT] IN, [NOT] LIKE and IS [NOT] NULL
func (p *Parser) parsePredicate() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	if op, ok := comparisonOps[tok.Type]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binary(op, left, right, tok.Pos), nil
	}

	if tok.Type == TokenIs {
		p.advance()
		negate := p.accept(TokenNot)
		if _, err := p.expect(TokenNull); err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprIsNull, Not: negate, Args: []*Expr{left}, Pos: tok.Pos}, nil
	}

	negate := false
	if tok.Type == TokenNot {
		switch p.peek().Type {
		case TokenBetween, TokenIn, TokenLike:
			negate = true
			p.advance()
		default:
			return nil, p.unexpected(p.peek(), "BETWEEN, IN or LIKE after NOT")
		}
	}

	switch p.current().Type {
	case TokenBetween:
		return p.parseBetweenExpr(left, negate, tok.Pos)
	case TokenIn:
		return p.parseInExpr(left, negate, tok.Pos)
	case TokenLike:
		return p.parseLikeExpr(left, negate, tok.Pos)
	}
	return left, nil
}

// parseBetweenExpr parses BETWEEN lower AND upper
func (p *Parser) parseBetweenExpr(left *Expr, negate bool, pos int) (*Expr, error) {
	p.advance() // BETWEEN
	lower, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAnd); err != nil {
		return nil, err
	}
	upper, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprBetween, Not: negate, Args: []*Expr{left, lower, upper}, Pos: pos}, nil
}

// parseInExpr parses IN (value, ...)
func (p *Parser) parseInExpr(left *Expr, negate bool, pos int) (*Expr, error) {
	p.advance() // IN
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	if p.current().Type == TokenSelect {
		return nil, pxerr.Unsupported("IN with a subquery is not supported; use EXISTS")
	}
	list, err := p.parseExpressionList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprIn, Not: negate, Args: append([]*Expr{left}, list...), Pos: pos}, nil
}

// parseLikeExpr parses LIKE pattern [ESCAPE char]
func (p *Parser) parseLikeExpr(left *Expr, negate bool, pos int) (*Expr, error) {
	p.advance() // LIKE
	pattern, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	args := []*Expr{left, pattern}
	if p.accept(TokenEscape) {
		escape, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		args = append(args, escape)
	}
	return &Expr{Kind: ExprLike, Not: negate, Args: args, Pos: pos}, nil
}

// parseAdditive parses + - and || chains
func (p *Parser) parseAdditive() (*Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		var op Op
		switch tok.Type {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		case TokenConcat:
			op = OpConcat
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right, tok.Pos)
	}
}

// parseMultiplicative parses * / and % chains
func (p *Parser) parseMultiplicative() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		var op Op
		switch tok.Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right, tok.Pos)
	}
}

// parseUnary parses prefix sign operators; negative numeric literals are folded
func (p *Parser) parseUnary() (*Expr, error) {
	tok := p.current()
	if tok.Type != TokenMinus && tok.Type != TokenPlus {
		return p.parsePrimary()
	}
	p.advance()
	if err := p.depthCounter.Enter(tok.Pos); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenPlus {
		return operand, nil
	}
	if operand.Kind == ExprLiteral && operand.Value.Type().IsNumeric() {
		neg, err := value.Negate(operand.Value)
		if err != nil {
			return nil, err
		}
		operand.Value = neg
		operand.Pos = tok.Pos
		return operand, nil
	}
	return &Expr{Kind: ExprUnary, Op: OpNeg, Args: []*Expr{operand}, Pos: tok.Pos}, nil
}

// parsePrimary parses literals, parameters, column references, function calls,
// CAST, EXISTS and parenthesized expressions
func (p *Parser) parsePrimary() (*Expr, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		v, err := parseNumber(tok.Value)
		if err != nil {
			return nil, pxerr.Syntax(tok.Pos, "malformed number %s", tok.Value)
		}
		return &Expr{Kind: ExprLiteral, Value: v, Pos: tok.Pos}, nil

	case TokenString:
		p.advance()
		return &Expr{Kind: ExprLiteral, Value: value.String(tok.Value), Pos: tok.Pos}, nil

	case TokenBool:
		p.advance()
		return &Expr{Kind: ExprLiteral, Value: value.Bool(strings.EqualFold(tok.Value, "TRUE")), Pos: tok.Pos}, nil

	case TokenNull:
		p.advance()
		return &Expr{Kind: ExprLiteral, Value: value.Null, Pos: tok.Pos}, nil

	case TokenParam:
		p.advance()
		e := &Expr{Kind: ExprParam, Index: p.params, Pos: tok.Pos}
		p.params++
		return e, nil

	case TokenLeftParen:
		p.advance()
		if p.current().Type == TokenSelect {
			return nil, pxerr.Unsupported("scalar subqueries are not supported")
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil

	case TokenExists:
		return p.parseExistsExpr()

	case TokenCast:
		return p.parseCastExpr()

	case TokenLeft, TokenRight:
		// LEFT(s, n) and RIGHT(s, n) share their names with join keywords
		if p.peek().Type == TokenLeftParen {
			p.advance()
			return p.parseFunctionCall(strings.ToUpper(tok.Value), tok.Pos)
		}

	case TokenIdent, TokenQuotedIdent:
		if err := ValidateIdentifier(tok); err != nil {
			return nil, err
		}
		p.advance()
		if tok.Type == TokenIdent && p.current().Type == TokenLeftParen {
			return p.parseFunctionCall(tok.Value, tok.Pos)
		}
		return p.parseColumnRef(tok)
	}

	return nil, p.unexpected(tok, "expression")
}

// parseColumnRef parses name, qualifier.name or schema.table.name after the first identifier
func (p *Parser) parseColumnRef(first Token) (*Expr, error) {
	parts := []string{first.Value}
	for p.current().Type == TokenDot {
		p.advance()
		next, err := p.ident("column name")
		if err != nil {
			return nil, err
		}
		parts = append(parts, next.Value)
	}
	if len(parts) > 3 {
		return nil, pxerr.Syntax(first.Pos, "too many qualifiers in %s", strings.Join(parts, "."))
	}
	if len(parts) == 1 && first.Type == TokenIdent && niladic[strings.ToUpper(first.Value)] {
		return &Expr{Kind: ExprFunc, Name: strings.ToUpper(first.Value), Pos: first.Pos}, nil
	}
	return &Expr{
		Kind:  ExprColumn,
		Table: strings.Join(parts[:len(parts)-1], "."),
		Name:  parts[len(parts)-1],
		Pos:   first.Pos,
	}, nil
}

// parseFunctionCall parses (args) after a function name; COUNT(*) and
// aggregate DISTINCT are accepted here and checked by the binder
func (p *Parser) parseFunctionCall(name string, pos int) (*Expr, error) {
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	call := &Expr{Kind: ExprFunc, Name: name, Pos: pos}

	if p.accept(TokenRightParen) {
		return call, nil
	}
	if p.current().Type == TokenStar {
		p.advance()
		call.Star = true
		if _, err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return call, nil
	}
	if p.accept(TokenDistinct) {
		call.Distinct = true
	} else {
		p.accept(TokenAll)
	}

	args, err := p.parseExpressionList()
	if err != nil {
		return nil, err
	}
	call.Args = args
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return call, nil
}

// parseExistsExpr parses EXISTS (SELECT ...)
func (p *Parser) parseExistsExpr() (*Expr, error) {
	tok := p.current()
	p.advance() // EXISTS
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	if err := p.depthCounter.Enter(tok.Pos); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()
	sub, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprExists, Subquery: sub, Pos: tok.Pos}, nil
}

// parseCastExpr parses CAST(expr AS type[(n[, m])])
func (p *Parser) parseCastExpr() (*Expr, error) {
	tok := p.current()
	p.advance() // CAST
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	operand, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAs); err != nil {
		return nil, err
	}
	typeTok, err := p.ident("type name")
	if err != nil {
		return nil, err
	}
	typ, ok := value.ParseType(typeTok.Value)
	if !ok {
		return nil, pxerr.Syntax(typeTok.Pos, "unknown type %s", typeTok.Value)
	}
	// length and precision modifiers are accepted and ignored
	if p.accept(TokenLeftParen) {
		for p.current().Type == TokenNumber || p.current().Type == TokenComma {
			p.advance()
		}
		if _, err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprCast, CastType: typ, Args: []*Expr{operand}, Pos: tok.Pos}, nil
}

// parseNumber converts a numeric literal: integers become LONG, literals with a
// fraction become DECIMAL and literals with an exponent become DOUBLE
func parseNumber(s string) (value.Value, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Null, err
		}
		return value.Double(f), nil
	}
	if strings.Contains(s, ".") {
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
		if strings.HasPrefix(s, ".") {
			s = "0" + s
		}
		return value.ParseDecimal(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Long(n), nil
	}
	return value.ParseDecimal(s)
}
