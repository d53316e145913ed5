// Package token defines the lexical tokens of the optimization modeling language.
//
// Reserved keywords are resolved by the lexer through a bilingual alias table
// (see keywords.go). Contextual words such as variable domains or the "step"
// of a range are left as identifiers and resolved by the parser.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // produtos, x, custo_total
	NUMBER // 123, 45.67, 1e10
	STRING // "data.csv", 'A'

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	CARET    // ^ or **
	ASSIGN   // =
	EQ       // ==
	NE       // !=
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	DOT      // .
	DOTDOT   // ..
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Reserved keywords (canonical senses)
	IMPORT
	SET
	PARAM
	VAR
	MINIMIZE
	MAXIMIZE
	SUBJECT // subject to, sujeito a
	ST      // st, restricoes
	FOR
	IN
	WHERE
	SUM
	PROD
	IF
	AND
	OR
	NOT
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	CARET:    "^",
	ASSIGN:   "=",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	DOT:      ".",
	DOTDOT:   "..",
	COMMA:    ",",
	COLON:    ":",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",

	IMPORT:   "IMPORT",
	SET:      "SET",
	PARAM:    "PARAM",
	VAR:      "VAR",
	MINIMIZE: "MINIMIZE",
	MAXIMIZE: "MAXIMIZE",
	SUBJECT:  "SUBJECT",
	ST:       "ST",
	FOR:      "FOR",
	IN:       "IN",
	WHERE:    "WHERE",
	SUM:      "SUM",
	PROD:     "PROD",
	IF:       "IF",
	AND:      "AND",
	OR:       "OR",
	NOT:      "NOT",
}

// IsKeyword returns true if the token type is a reserved keyword.
func IsKeyword(t TokenType) bool {
	return t >= IMPORT && t <= NOT
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACE
}

// IsComparison returns true for relational operators. A bare "=" counts as
// equality inside expressions.
func IsComparison(t TokenType) bool {
	switch t {
	case ASSIGN, EQ, NE, LT, GT, LE, GE:
		return true
	}
	return false
}

// StartsStatement reports whether t can only begin a new top-level statement.
func StartsStatement(t TokenType) bool {
	switch t {
	case IMPORT, SET, PARAM, VAR, MINIMIZE, MAXIMIZE, SUBJECT, ST:
		return true
	}
	return false
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// String renders the token for error messages.
func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case IDENT, NUMBER:
		return t.Literal
	case STRING:
		return fmt.Sprintf("%q", t.Literal)
	}
	if t.Literal != "" {
		return t.Literal
	}
	return t.Type.String()
}
