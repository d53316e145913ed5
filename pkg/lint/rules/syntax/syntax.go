// Package syntax holds source-level rules. They inspect the token stream
// and run even when the model does not parse.
package syntax

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

func init() {
	lint.Register(Unbalanced)
	lint.Register(UnterminatedString)
	lint.Register(EmptyModel)
}

// Unbalanced reports brackets that are never closed or closed by the
// wrong kind.
var Unbalanced = lint.RuleDef{
	ID:          "SY01",
	Name:        "syntax.unbalanced",
	Group:       "syntax",
	Description: "Parentheses, brackets and braces must be balanced.",
	Severity:    lint.SeverityError,
	Source:      true,
	Check:       checkUnbalanced,
}

var closers = map[token.TokenType]token.TokenType{
	token.LPAREN:   token.RPAREN,
	token.LBRACKET: token.RBRACKET,
	token.LBRACE:   token.RBRACE,
}

func checkUnbalanced(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	var (
		diags []lint.Diagnostic
		open  []token.Token
	)
	for _, tok := range in.Tokens {
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			open = append(open, tok)
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if len(open) == 0 {
				diags = append(diags, lint.Diagnostic{
					Message: fmt.Sprintf("unmatched closing %q", tok.Literal),
					Pos:     tok.Pos,
				})
				continue
			}
			top := open[len(open)-1]
			open = open[:len(open)-1]
			if closers[top.Type] != tok.Type {
				diags = append(diags, lint.Diagnostic{
					Message: fmt.Sprintf("%q closes %q opened at line %d", tok.Literal, top.Literal, top.Pos.Line),
					Pos:     tok.Pos,
				})
			}
		}
	}
	for _, tok := range open {
		diags = append(diags, lint.Diagnostic{
			Message: fmt.Sprintf("%q is never closed", tok.Literal),
			Pos:     tok.Pos,
		})
	}
	return diags
}

// UnterminatedString reports string literals without a closing quote.
var UnterminatedString = lint.RuleDef{
	ID:          "SY02",
	Name:        "syntax.unterminated_string",
	Group:       "syntax",
	Description: "String literals must be closed on the line they start.",
	Severity:    lint.SeverityError,
	Source:      true,
	Check:       checkUnterminatedString,
}

func checkUnterminatedString(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	var diags []lint.Diagnostic
	for _, tok := range in.Tokens {
		if tok.Type == token.ILLEGAL && (strings.HasPrefix(tok.Literal, `"`) || strings.HasPrefix(tok.Literal, "'")) {
			diags = append(diags, lint.Diagnostic{
				Message: "unterminated string literal",
				Pos:     tok.Pos,
			})
		}
	}
	return diags
}

// EmptyModel reports source without any statement.
var EmptyModel = lint.RuleDef{
	ID:          "SY03",
	Name:        "syntax.empty_model",
	Group:       "syntax",
	Description: "A model needs at least one statement.",
	Severity:    lint.SeverityError,
	Source:      true,
	Check:       checkEmptyModel,
}

func checkEmptyModel(in *lint.Input, _ map[string]any) []lint.Diagnostic {
	for _, tok := range in.Tokens {
		if tok.Type != token.EOF {
			return nil
		}
	}
	return []lint.Diagnostic{{
		Message: "model is empty",
		Pos:     token.Position{Line: 1, Column: 1},
	}}
}
