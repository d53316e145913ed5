package parser

import (
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Operator precedence levels, lowest to highest.
const (
	precLowest   = 0
	precOr       = 1
	precAnd      = 2
	precNot      = 3
	precCompare  = 4
	precAddition = 5
	precMultiply = 6
	precUnary    = 7
	precPower    = 8
)

// parseExpression parses an expression whose infix operators all bind tighter
// than minPrec.
func (p *Parser) parseExpression(minPrec int) *Tree {
	left := p.parsePrefixExpr()
	for {
		prec := getInfixPrecedence(p.cur().Type)
		if prec == precLowest || prec <= minPrec {
			return left
		}
		left = p.parseInfixExpr(left, prec)
	}
}

func getInfixPrecedence(t token.TokenType) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.ASSIGN, token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		return precCompare
	case token.PLUS, token.MINUS:
		return precAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	case token.CARET:
		return precPower
	}
	return precLowest
}

func (p *Parser) parseInfixExpr(left *Tree, prec int) *Tree {
	op := p.nextToken()
	var right *Tree
	if op.Type == token.CARET {
		// right-associative
		right = p.parseExpression(prec - 1)
	} else {
		right = p.parseExpression(prec)
	}

	rule := RuleBinary
	switch {
	case op.Type == token.AND || op.Type == token.OR:
		rule = RuleLogic
	case token.IsComparison(op.Type):
		rule = RuleCompare
	}
	return &Tree{Rule: rule, Token: op, Children: []*Tree{left, right}, Pos: left.Pos}
}

func (p *Parser) parsePrefixExpr() *Tree {
	tok := p.cur()
	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &Tree{Rule: RuleNumber, Token: tok, Pos: tok.Pos}
	case token.STRING:
		p.nextToken()
		return &Tree{Rule: RuleString, Token: tok, Pos: tok.Pos}
	case token.MINUS, token.PLUS:
		p.nextToken()
		operand := p.parseExpression(precUnary)
		return &Tree{Rule: RuleUnary, Token: tok, Children: []*Tree{operand}, Pos: tok.Pos}
	case token.NOT:
		p.nextToken()
		operand := p.parseExpression(precNot)
		return &Tree{Rule: RuleNot, Token: tok, Children: []*Tree{operand}, Pos: tok.Pos}
	case token.LPAREN:
		p.nextToken()
		inner := p.parseExpression(precLowest)
		p.expect(token.RPAREN, ")")
		return &Tree{Rule: RuleParen, Token: tok, Children: []*Tree{inner}, Pos: tok.Pos}
	case token.SUM, token.PROD:
		return p.parseAggregate()
	case token.IF:
		return p.parseIf()
	case token.MINIMIZE, token.MAXIMIZE:
		// min(a, b) and max(a, b) share their spelling with the objective keywords.
		if p.checkPeek(token.LPAREN) {
			name := tok
			name.Type = token.IDENT
			name.Literal = strings.ToLower(tok.Literal)[:3]
			return p.parseCall(name)
		}
	case token.IDENT:
		return p.parseIdentExpr()
	}

	p.errorf(ErrUnexpectedToken, tok, "expression")
	if tok.Type != token.EOF && !token.StartsStatement(tok.Type) {
		p.nextToken()
	}
	return &Tree{Rule: RuleNumber, Token: token.Token{Type: token.NUMBER, Literal: "0", Pos: tok.Pos}, Pos: tok.Pos}
}

func (p *Parser) parseIdentExpr() *Tree {
	tok := p.cur()
	switch p.peek().Type {
	case token.LPAREN:
		p.nextToken()
		return p.parseCall(tok)
	case token.LBRACKET:
		p.nextToken()
		p.nextToken()
		t := &Tree{Rule: RuleIndexed, Token: tok, Pos: tok.Pos}
		t.Children = p.parseExpressionList(token.RBRACKET)
		p.expect(token.RBRACKET, "]")
		// x[p][l] is the same reference as x[p, l].
		for p.check(token.LBRACKET) {
			p.nextToken()
			t.Children = append(t.Children, p.parseExpressionList(token.RBRACKET)...)
			p.expect(token.RBRACKET, "]")
		}
		if len(t.Children) == 0 {
			p.errors = append(p.errors, &SyntaxError{Pos: tok.Pos, Text: tok.Literal + "[]", Message: ErrEmptyIndexList})
			p.failures++
		}
		return t
	case token.DOT:
		if p.peekAt(2).Type == token.IDENT {
			return p.parseDataset()
		}
	}
	p.nextToken()
	return &Tree{Rule: RuleName, Token: tok, Pos: tok.Pos}
}

// parseCall parses "name(args)" with the cursor on the opening parenthesis
// when called from parseIdentExpr, or on the name otherwise.
func (p *Parser) parseCall(name token.Token) *Tree {
	if p.cur().Pos == name.Pos {
		p.nextToken()
	}
	p.expect(token.LPAREN, "(")
	t := &Tree{Rule: RuleCall, Token: name, Pos: name.Pos}
	t.Children = p.parseExpressionList(token.RPAREN)
	p.expect(token.RPAREN, ")")
	return t
}

// parseExpressionList parses comma-separated expressions up to (not
// including) the closing token.
func (p *Parser) parseExpressionList(closing token.TokenType) []*Tree {
	var list []*Tree
	if p.check(closing) {
		return list
	}
	for {
		list = append(list, p.parseExpression(precLowest))
		if !p.match(token.COMMA) {
			return list
		}
	}
}

// sum(x[p] * c[p] for p in P where c[p] > 0)
func (p *Parser) parseAggregate() *Tree {
	kw := p.nextToken()
	rule := RuleSum
	if kw.Type == token.PROD {
		rule = RuleProd
	}
	p.expect(token.LPAREN, "(")
	t := &Tree{Rule: rule, Token: kw, Pos: kw.Pos}
	t.Children = append(t.Children, p.parseExpression(precLowest))
	if !p.check(token.FOR) {
		p.errorf(ErrUnexpectedToken, p.cur(), "'for' loop clause in aggregation")
	}
	t.Children = append(t.Children, p.parseLoops()...)
	p.expect(token.RPAREN, ")")
	return t
}

// if(cond, then, else)
func (p *Parser) parseIf() *Tree {
	kw := p.nextToken()
	p.expect(token.LPAREN, "(")
	cond := p.parseExpression(precLowest)
	p.expect(token.COMMA, ",")
	then := p.parseExpression(precLowest)
	p.expect(token.COMMA, ",")
	otherwise := p.parseExpression(precLowest)
	p.expect(token.RPAREN, ")")
	return &Tree{Rule: RuleIf, Token: kw, Children: []*Tree{cond, then, otherwise}, Pos: kw.Pos}
}
