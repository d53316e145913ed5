package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"set", SET},
		{"CONJ", SET},
		{"Conjunto", SET},
		{"parâmetro", PARAM},
		{"variável", VAR},
		{"minimizar", MINIMIZE},
		{"MAX", MAXIMIZE},
		{"restrições", ST},
		{"sujeito", SUBJECT},
		{"para", FOR},
		{"em", IN},
		{"onde", WHERE},
		{"soma", SUM},
		{"não", NOT},
		{"e", IDENT},
		{"produtos", IDENT},
		{"x", IDENT},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupIdent(tt.input))
		})
	}
}

func TestContextual(t *testing.T) {
	assert.Equal(t, WordInteger, Contextual("inteiro"))
	assert.Equal(t, WordInteger, Contextual("INT"))
	assert.Equal(t, WordBinary, Contextual("binário"))
	assert.Equal(t, WordContinuous, Contextual("real"))
	assert.Equal(t, WordFree, Contextual("livre"))
	assert.Equal(t, WordUnion, Contextual("união"))
	assert.Equal(t, WordTo, Contextual("a"))
	assert.Empty(t, Contextual("custo"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "restricoes", Fold("Restrições"))
	assert.Equal(t, "acao", Fold("AÇÃO"))
	assert.Equal(t, "x_1", Fold("x_1"))
}

func TestAliasesSorted(t *testing.T) {
	aliases := Aliases()
	assert.NotEmpty(t, aliases)
	for i := 1; i < len(aliases); i++ {
		prev, cur := aliases[i-1], aliases[i]
		assert.True(t, prev.Canonical < cur.Canonical ||
			(prev.Canonical == cur.Canonical && prev.Word <= cur.Word))
	}
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "end of input", Token{Type: EOF}.String())
	assert.Equal(t, `"a.csv"`, Token{Type: STRING, Literal: "a.csv"}.String())
	assert.Equal(t, "<=", LE.String())
	assert.True(t, IsComparison(ASSIGN))
	assert.False(t, IsComparison(PLUS))
	assert.True(t, IsKeyword(WHERE))
	assert.True(t, StartsStatement(VAR))
}
