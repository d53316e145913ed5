package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leapopt/pkg/parser"
	"github.com/leapstack-labs/leapopt/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []token.Token) []token.TokenType {
	types := make([]token.TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.TokenType
	}{
		{
			name:  "indexed comparison",
			input: "x[p, l] >= 1.5e3",
			want: []token.TokenType{
				token.IDENT, token.LBRACKET, token.IDENT, token.COMMA, token.IDENT, token.RBRACKET,
				token.GE, token.NUMBER, token.EOF,
			},
		},
		{
			name:  "range",
			input: "1..10",
			want:  []token.TokenType{token.NUMBER, token.DOTDOT, token.NUMBER, token.EOF},
		},
		{
			name:  "comments are skipped",
			input: "min # objective\n// another\n: x",
			want:  []token.TokenType{token.MINIMIZE, token.COLON, token.IDENT, token.EOF},
		},
		{
			name:  "unicode relations",
			input: "a ≤ b ≥ c ≠ d",
			want: []token.TokenType{
				token.IDENT, token.LE, token.IDENT, token.GE, token.IDENT, token.NE, token.IDENT, token.EOF,
			},
		},
		{
			name:  "power spellings",
			input: "a ^ 2 ** 3",
			want:  []token.TokenType{token.IDENT, token.CARET, token.NUMBER, token.CARET, token.NUMBER, token.EOF},
		},
		{
			name:  "equality spellings",
			input: "= == != <>",
			want:  []token.TokenType{token.ASSIGN, token.EQ, token.NE, token.NE, token.EOF},
		},
		{
			name:  "portuguese keywords",
			input: "Sujeito a: soma para em onde",
			want: []token.TokenType{
				token.SUBJECT, token.IDENT, token.COLON, token.SUM, token.FOR, token.IN, token.WHERE, token.EOF,
			},
		},
		{
			name:  "dataset column",
			input: "demanda.qtd",
			want:  []token.TokenType{token.IDENT, token.DOT, token.IDENT, token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenTypes(parser.Tokenize(tt.input)))
		})
	}
}

func TestLexer_Literals(t *testing.T) {
	tokens := parser.Tokenize(`"a\"b" 'c d' 42 3.25 1e-6 maximizar`)
	require.Len(t, tokens, 7)

	assert.Equal(t, `a"b`, tokens[0].Literal)
	assert.Equal(t, "c d", tokens[1].Literal)
	assert.Equal(t, "42", tokens[2].Literal)
	assert.Equal(t, "3.25", tokens[3].Literal)
	assert.Equal(t, "1e-6", tokens[4].Literal)
	assert.Equal(t, token.MAXIMIZE, tokens[5].Type)
	assert.Equal(t, "maximizar", tokens[5].Literal)
}

func TestLexer_Positions(t *testing.T) {
	tokens := parser.Tokenize("x\n  y")
	require.Len(t, tokens, 3)

	assert.Equal(t, token.Position{Line: 1, Column: 1, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, 2, tokens[1].Pos.Line)
	assert.Equal(t, 3, tokens[1].Pos.Column)
	assert.Equal(t, 4, tokens[1].Pos.Offset)
}

func TestLexer_Errors(t *testing.T) {
	t.Run("unterminated string", func(t *testing.T) {
		l := parser.NewLexer(`import "dados.csv`)
		assert.Equal(t, token.IMPORT, l.NextToken().Type)
		tok := l.NextToken()
		assert.Equal(t, token.ILLEGAL, tok.Type)
		require.Len(t, l.Errors(), 1)
		assert.Equal(t, parser.ErrUnterminatedString, l.Errors()[0].Message)
	})

	t.Run("illegal character", func(t *testing.T) {
		l := parser.NewLexer("x @ y")
		l.NextToken()
		tok := l.NextToken()
		assert.Equal(t, token.ILLEGAL, tok.Type)
		assert.Equal(t, "@", tok.Literal)
		require.Len(t, l.Errors(), 1)
		assert.Contains(t, l.Errors()[0].Error(), "unexpected character '@'")
	})
}
