package parser

import (
	"github.com/leapstack-labs/leapopt/pkg/token"
)

func (p *Parser) parseStatement() *Tree {
	switch p.cur().Type {
	case token.IMPORT:
		return p.parseImport()
	case token.SET:
		return p.parseSet()
	case token.PARAM:
		return p.parseParam()
	case token.VAR:
		return p.parseVar()
	case token.MINIMIZE, token.MAXIMIZE:
		if p.checkPeek(token.COLON) {
			return p.parseObjective()
		}
		return p.parseConstraint()
	case token.SUBJECT, token.ST:
		return p.parseBlock()
	default:
		return p.parseConstraint()
	}
}

// import "demanda.csv" [as demanda]
func (p *Parser) parseImport() *Tree {
	kw := p.nextToken()
	t := &Tree{Rule: RuleImport, Token: kw, Pos: kw.Pos}
	path := p.expect(token.STRING, "import path string")
	t.Tokens = append(t.Tokens, path)
	if p.checkWord(token.WordAs) {
		p.nextToken()
		t.Tokens = append(t.Tokens, p.expect(token.IDENT, "import alias"))
	}
	return t
}

// set P [= setexpr]
func (p *Parser) parseSet() *Tree {
	kw := p.nextToken()
	name := p.expect(token.IDENT, "set name")
	t := &Tree{Rule: RuleSet, Token: name, Pos: kw.Pos}
	if p.match(token.ASSIGN) {
		if value := p.parseSetExpr(); value != nil {
			t.Children = append(t.Children, value)
		}
	}
	return t
}

func (p *Parser) parseSetExpr() *Tree {
	left := p.parseSetTerm()
	for left != nil {
		word := p.cur()
		if !p.checkWord(token.WordUnion) && !p.checkWord(token.WordInter) && !p.checkWord(token.WordDiff) {
			break
		}
		p.nextToken()
		right := p.parseSetTerm()
		if right == nil {
			return nil
		}
		word.Literal = token.Contextual(word.Literal)
		left = &Tree{Rule: RuleSetOp, Token: word, Children: []*Tree{left, right}, Pos: left.Pos}
	}
	return left
}

func (p *Parser) parseSetTerm() *Tree {
	tok := p.cur()
	switch tok.Type {
	case token.LBRACE:
		if p.peekAt(1).Type == token.IDENT && p.peekAt(2).Type == token.IN {
			return p.parseSetFilter()
		}
		p.nextToken()
		return p.parseSetItems(tok, token.RBRACE, "}")
	case token.LBRACKET:
		p.nextToken()
		return p.parseSetItems(tok, token.RBRACKET, "]")
	case token.NUMBER, token.MINUS:
		return p.parseSetRange()
	case token.IDENT:
		if p.checkPeek(token.DOT) {
			return p.parseDataset()
		}
		p.nextToken()
		return &Tree{Rule: RuleSetRef, Token: tok, Pos: tok.Pos}
	}
	p.errorf(ErrUnexpectedToken, tok, "set value")
	return nil
}

// {p in Produtos where custo[p] > 100}
func (p *Parser) parseSetFilter() *Tree {
	open := p.nextToken()
	v := p.nextToken()
	p.nextToken() // in
	source := p.parseSource()
	p.expect(token.WHERE, "where")
	cond := p.parseExpression(precLowest)
	p.expect(token.RBRACE, "}")
	return &Tree{Rule: RuleSetFilter, Token: v, Children: []*Tree{source, cond}, Pos: open.Pos}
}

func (p *Parser) parseSetItems(open token.Token, closing token.TokenType, what string) *Tree {
	t := &Tree{Rule: RuleSetList, Pos: open.Pos}
	if p.match(closing) {
		return t
	}
	for {
		item := p.parseLiteralItem()
		if item == nil {
			return t
		}
		t.Children = append(t.Children, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(closing, what)
	return t
}

// parseLiteralItem parses an identifier, string, or optionally negated number.
func (p *Parser) parseLiteralItem() *Tree {
	tok := p.cur()
	switch tok.Type {
	case token.IDENT:
		p.nextToken()
		return &Tree{Rule: RuleName, Token: tok, Pos: tok.Pos}
	case token.STRING:
		p.nextToken()
		return &Tree{Rule: RuleString, Token: tok, Pos: tok.Pos}
	case token.NUMBER:
		p.nextToken()
		return &Tree{Rule: RuleNumber, Token: tok, Pos: tok.Pos}
	case token.MINUS:
		p.nextToken()
		num := p.expect(token.NUMBER, "number")
		return &Tree{
			Rule:     RuleUnary,
			Token:    tok,
			Children: []*Tree{{Rule: RuleNumber, Token: num, Pos: num.Pos}},
			Pos:      tok.Pos,
		}
	}
	p.errorf(ErrUnexpectedToken, tok, "literal value")
	return nil
}

// 1..10 [step 2]
func (p *Parser) parseSetRange() *Tree {
	start := p.parseLiteralItem()
	if start == nil {
		return nil
	}
	t := &Tree{Rule: RuleSetRange, Children: []*Tree{start}, Pos: start.Pos}
	p.expect(token.DOTDOT, "..")
	end := p.parseLiteralItem()
	if end == nil {
		return nil
	}
	t.Children = append(t.Children, end)
	if p.checkWord(token.WordStep) {
		p.nextToken()
		if step := p.parseLiteralItem(); step != nil {
			t.Children = append(t.Children, step)
		}
	}
	return t
}

// param custo[P, L] [= 100]
func (p *Parser) parseParam() *Tree {
	kw := p.nextToken()
	name := p.expect(token.IDENT, "parameter name")
	t := &Tree{Rule: RuleParam, Token: name, Pos: kw.Pos}
	t.Tokens = p.parseIndexNames()
	if p.match(token.ASSIGN) {
		if def := p.parseLiteralItem(); def != nil {
			t.Children = append(t.Children, def)
		}
	}
	return t
}

// var x[P, L] [: int] [>= 0] [<= 10] [free]
func (p *Parser) parseVar() *Tree {
	kw := p.nextToken()
	name := p.expect(token.IDENT, "variable name")
	t := &Tree{Rule: RuleVar, Token: name, Pos: kw.Pos}
	t.Tokens = p.parseIndexNames()

	for {
		tok := p.cur()
		switch {
		case tok.Type == token.COLON:
			p.nextToken()
			dom := p.expect(token.IDENT, "variable domain")
			if dom.Type == token.IDENT && domainWord(dom.Literal) == "" {
				p.errorf(ErrUnexpectedToken, dom, "continuous, integer or binary")
			}
			t.Children = append(t.Children, &Tree{Rule: RuleDomain, Token: dom, Pos: dom.Pos})
		case tok.Type == token.GE || tok.Type == token.LE || tok.Type == token.ASSIGN || tok.Type == token.EQ:
			p.nextToken()
			value := p.parseExpression(precCompare)
			t.Children = append(t.Children, &Tree{Rule: RuleBound, Token: tok, Children: []*Tree{value}, Pos: tok.Pos})
		case p.checkWord(token.WordFree):
			p.nextToken()
			t.Children = append(t.Children, &Tree{Rule: RuleBound, Token: tok, Pos: tok.Pos})
		default:
			return t
		}
	}
}

func domainWord(lit string) string {
	switch w := token.Contextual(lit); w {
	case token.WordContinuous, token.WordInteger, token.WordBinary:
		return w
	}
	return ""
}

// parseIndexNames parses an optional "[A, B]" list of plain names.
func (p *Parser) parseIndexNames() []token.Token {
	if !p.check(token.LBRACKET) {
		return nil
	}
	open := p.nextToken()
	var names []token.Token
	for !p.check(token.RBRACKET) && !p.check(token.EOF) {
		names = append(names, p.expect(token.IDENT, "index name"))
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RBRACKET, "]")
	if len(names) == 0 {
		p.errors = append(p.errors, &SyntaxError{Pos: open.Pos, Text: "[]", Message: ErrEmptyIndexList})
		p.failures++
	}
	return names
}

// min: expr | maximizar: expr
func (p *Parser) parseObjective() *Tree {
	sense := p.nextToken()
	p.expect(token.COLON, ":")
	expr := p.parseExpression(precLowest)
	return &Tree{Rule: RuleObjective, Token: sense, Children: []*Tree{expr}, Pos: sense.Pos}
}

// subject to: | sujeito a: | st:
func (p *Parser) parseBlock() *Tree {
	kw := p.nextToken()
	if kw.Type == token.SUBJECT {
		if !p.checkWord(token.WordTo) {
			p.errorf(ErrUnexpectedToken, p.cur(), "'to' after 'subject'")
			return nil
		}
		p.nextToken()
	}
	p.expect(token.COLON, ":")

	t := &Tree{Rule: RuleBlock, Token: kw, Pos: kw.Pos}
	for !p.check(token.EOF) && !token.StartsStatement(p.cur().Type) {
		failures := p.failures
		c := p.parseConstraint()
		if p.failures > failures {
			return t
		}
		t.Children = append(t.Children, c)
	}
	return t
}

// [name[idx]:] expr [for i in I [where cond], j in J]
func (p *Parser) parseConstraint() *Tree {
	t := &Tree{Rule: RuleConstraint, Pos: p.cur().Pos}
	if name := p.parseConstraintName(); name != nil {
		t.Children = append(t.Children, name)
	}
	t.Children = append(t.Children, p.parseExpression(precLowest))
	t.Children = append(t.Children, p.parseLoops()...)
	return t
}

// parseConstraintName consumes "name:" or "name[i, j]:" when present.
func (p *Parser) parseConstraintName() *Tree {
	tok := p.cur()
	if tok.Type != token.IDENT {
		return nil
	}
	if p.checkPeek(token.COLON) {
		p.nextToken()
		p.nextToken()
		return &Tree{Rule: RuleConstraintName, Token: tok, Pos: tok.Pos}
	}
	if !p.checkPeek(token.LBRACKET) || !p.labelAhead() {
		return nil
	}
	p.nextToken() // name
	p.nextToken() // [
	t := &Tree{Rule: RuleConstraintName, Token: tok, Pos: tok.Pos}
	t.Children = p.parseExpressionList(token.RBRACKET)
	p.expect(token.RBRACKET, "]")
	p.expect(token.COLON, ":")
	return t
}

// labelAhead reports whether "IDENT [ ... ]" at the cursor is followed by a
// colon, which makes it a constraint label rather than an indexed reference.
func (p *Parser) labelAhead() bool {
	depth := 0
	for i := 1; ; i++ {
		switch p.peekAt(i).Type {
		case token.LBRACKET:
			depth++
		case token.RBRACKET:
			depth--
			if depth == 0 {
				return p.peekAt(i+1).Type == token.COLON
			}
		case token.EOF:
			return false
		}
	}
}

func (p *Parser) parseLoops() []*Tree {
	var loops []*Tree
	for p.match(token.FOR) {
		for {
			loop := p.parseLoopClause()
			if loop == nil {
				return loops
			}
			loops = append(loops, loop)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	return loops
}

// i in I [where cond]
func (p *Parser) parseLoopClause() *Tree {
	v := p.cur()
	if v.Type != token.IDENT || !p.checkPeek(token.IN) {
		p.errorf(ErrUnexpectedToken, v, "loop variable followed by 'in'")
		return nil
	}
	p.nextToken()
	p.nextToken()
	t := &Tree{Rule: RuleLoop, Token: v, Pos: v.Pos}
	source := p.parseSource()
	if source == nil {
		return nil
	}
	t.Children = append(t.Children, source)
	if p.match(token.WHERE) {
		t.Children = append(t.Children, p.parseExpression(precLowest))
	}
	return t
}

// parseSource parses what a loop iterates over: a set name, a dataset
// column, or an inline set term.
func (p *Parser) parseSource() *Tree {
	tok := p.cur()
	if tok.Type == token.IDENT {
		if p.checkPeek(token.DOT) {
			return p.parseDataset()
		}
		p.nextToken()
		return &Tree{Rule: RuleName, Token: tok, Pos: tok.Pos}
	}
	return p.parseSetTerm()
}

// tabela.coluna
func (p *Parser) parseDataset() *Tree {
	table := p.nextToken()
	p.nextToken() // .
	column := p.expect(token.IDENT, "column name")
	return &Tree{Rule: RuleDataset, Token: table, Tokens: []token.Token{column}, Pos: table.Pos}
}
