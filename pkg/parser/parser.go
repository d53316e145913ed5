// Package parser turns model source into a concrete syntax tree.
//
// The parser is a hand-written recursive-descent parser with Pratt-style
// expression parsing. It produces a *Tree whose node shapes are fixed by the
// Rule constants, so downstream passes depend on rules rather than on parser
// internals. Newlines are not significant; statements are recognised by their
// leading keyword.
//
// Grammar overview:
//
//	model      = { statement } .
//	statement  = import | set | param | var | objective | block | constraint .
//	import     = "import" STRING [ "as" IDENT ] .
//	set        = "set" IDENT [ "=" setexpr ] .
//	param      = "param" IDENT [ "[" IDENT { "," IDENT } "]" ] [ "=" literal ] .
//	var        = "var" IDENT [ "[" IDENT { "," IDENT } "]" ] { ":" domain | bound } .
//	objective  = ( "minimize" | "maximize" ) ":" expr .
//	block      = ( "subject" "to" | "st" ) ":" { constraint } .
//	constraint = [ IDENT [ "[" expr { "," expr } "]" ] ":" ] expr { loop } .
//	loop       = "for" clause { "," clause } .
//	clause     = IDENT "in" source [ "where" expr ] .
package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Parser parses model source into a concrete syntax tree.
type Parser struct {
	tokens []token.Token
	pos    int
	errors ErrorList

	failures int // errorf calls, including ones suppressed for ILLEGAL tokens
}

// NewParser creates a parser over the given source.
func NewParser(input string) *Parser {
	tokens, lexErrs := tokenize(input)
	return &Parser{
		tokens: tokens,
		errors: append(ErrorList(nil), lexErrs...),
	}
}

// Parse parses a complete model. On failure the returned error is an
// ErrorList holding every *SyntaxError found.
func Parse(input string) (*Tree, error) {
	p := NewParser(input)
	tree := p.ParseModel()
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return tree, nil
}

// ParseExpression parses a single expression, optionally followed by loop
// clauses. It backs the analysis of standalone expressions.
func ParseExpression(input string) (*Tree, error) {
	p := NewParser(input)
	expr := p.parseExpression(precLowest)
	loops := p.parseLoops()
	if !p.check(token.EOF) {
		p.errorf(ErrUnexpectedToken, p.cur(), "end of expression")
	}
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	if len(loops) == 0 {
		return expr, nil
	}
	return &Tree{Rule: RuleConstraint, Children: append([]*Tree{expr}, loops...), Pos: expr.Pos}, nil
}

// Errors returns the errors collected so far.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// ParseModel parses statements until end of input. Errors are collected and
// parsing resumes at the next statement keyword.
func (p *Parser) ParseModel() *Tree {
	model := &Tree{Rule: RuleModel, Pos: p.cur().Pos}
	for !p.check(token.EOF) {
		before := p.pos
		failures := p.failures
		stmt := p.parseStatement()
		if p.failures > failures || p.pos == before {
			p.synchronize(before)
			continue
		}
		if stmt != nil {
			model.Children = append(model.Children, stmt)
		}
	}
	return model
}

// synchronize skips to the next statement keyword, always making progress.
func (p *Parser) synchronize(from int) {
	if p.pos == from {
		p.nextToken()
	}
	for !p.check(token.EOF) && !token.StartsStatement(p.cur().Type) {
		p.nextToken()
	}
}

// --- token helpers ---

func (p *Parser) cur() token.Token {
	return p.peekAt(0)
}

func (p *Parser) peek() token.Token {
	return p.peekAt(1)
}

func (p *Parser) peekAt(n int) token.Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) nextToken() token.Token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t token.TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) match(types ...token.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.nextToken()
			return true
		}
	}
	return false
}

// expect consumes a token of type t or records an error.
func (p *Parser) expect(t token.TokenType, what string) token.Token {
	if p.check(t) {
		return p.nextToken()
	}
	p.errorf(ErrUnexpectedToken, p.cur(), what)
	return token.Token{Type: token.ILLEGAL, Pos: p.cur().Pos}
}

// checkWord reports whether the current token is an identifier carrying the
// given contextual meaning.
func (p *Parser) checkWord(word string) bool {
	tok := p.cur()
	return tok.Type == token.IDENT && token.Contextual(tok.Literal) == word
}

func (p *Parser) errorf(format string, tok token.Token, args ...any) {
	p.failures++
	if tok.Type == token.ILLEGAL {
		// The lexer already reported this token.
		return
	}
	msg := fmt.Sprintf(format, append([]any{describe(tok)}, args...)...)
	p.errors = append(p.errors, &SyntaxError{Pos: tok.Pos, Text: tok.Literal, Message: msg})
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT:
		return "identifier " + tok.Literal
	case token.NUMBER:
		return "number " + tok.Literal
	case token.STRING:
		return fmt.Sprintf("string %q", tok.Literal)
	}
	if token.IsKeyword(tok.Type) {
		return "keyword " + tok.Literal
	}
	return fmt.Sprintf("%q", tok.Literal)
}
