package token

import (
	"sort"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keywords maps folded surface words to reserved token types. Every alias
// resolves to exactly one canonical sense.
var keywords = map[string]TokenType{
	"import":     IMPORT,
	"importar":   IMPORT,
	"set":        SET,
	"conj":       SET,
	"conjunto":   SET,
	"param":      PARAM,
	"parametro":  PARAM,
	"var":        VAR,
	"variavel":   VAR,
	"min":        MINIMIZE,
	"minimize":   MINIMIZE,
	"minimizar":  MINIMIZE,
	"max":        MAXIMIZE,
	"maximize":   MAXIMIZE,
	"maximizar":  MAXIMIZE,
	"subject":    SUBJECT,
	"sujeito":    SUBJECT,
	"st":         ST,
	"restricoes": ST,
	"for":        FOR,
	"para":       FOR,
	"in":         IN,
	"em":         IN,
	"where":      WHERE,
	"onde":       WHERE,
	"sum":        SUM,
	"soma":       SUM,
	"prod":       PROD,
	"produto":    PROD,
	"if":         IF,
	"se":         IF,
	"and":        AND,
	"or":         OR,
	"ou":         OR,
	"not":        NOT,
	"nao":        NOT,
}

// Canonical contextual words. These stay identifiers in the token stream.
const (
	WordContinuous = "continuous"
	WordInteger    = "integer"
	WordBinary     = "binary"
	WordFree       = "free"
	WordStep       = "step"
	WordUnion      = "union"
	WordInter      = "inter"
	WordDiff       = "diff"
	WordAs         = "as"
	WordTo         = "to"
)

var contextual = map[string]string{
	"continuous":   WordContinuous,
	"cont":         WordContinuous,
	"real":         WordContinuous,
	"continuo":     WordContinuous,
	"integer":      WordInteger,
	"int":          WordInteger,
	"inteiro":      WordInteger,
	"binary":       WordBinary,
	"bin":          WordBinary,
	"binario":      WordBinary,
	"free":         WordFree,
	"livre":        WordFree,
	"step":         WordStep,
	"passo":        WordStep,
	"union":        WordUnion,
	"uniao":        WordUnion,
	"inter":        WordInter,
	"intersection": WordInter,
	"intersecao":   WordInter,
	"diff":         WordDiff,
	"diferenca":    WordDiff,
	"as":           WordAs,
	"como":         WordAs,
	"to":           WordTo,
	"a":            WordTo,
}

// Fold normalizes a word for keyword comparison: diacritics are removed and
// the result is case-folded, so "Restrições" and "RESTRICOES" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// LookupIdent returns the reserved token type for the given identifier, or
// IDENT when the word is not reserved.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[Fold(ident)]; ok {
		return tok
	}
	return IDENT
}

// Contextual returns the canonical contextual word for ident, or "" when the
// identifier carries no contextual meaning.
func Contextual(ident string) string {
	return contextual[Fold(ident)]
}

// Alias pairs a surface word with the canonical sense it maps to.
type Alias struct {
	Word      string
	Canonical string
	Reserved  bool
}

// Aliases lists every recognised keyword and contextual word, sorted by
// canonical sense and then by word.
func Aliases() []Alias {
	out := make([]Alias, 0, len(keywords)+len(contextual))
	for w, t := range keywords {
		out = append(out, Alias{Word: w, Canonical: canonicalName(t), Reserved: true})
	}
	for w, c := range contextual {
		out = append(out, Alias{Word: w, Canonical: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Canonical != out[j].Canonical {
			return out[i].Canonical < out[j].Canonical
		}
		return out[i].Word < out[j].Word
	})
	return out
}

func canonicalName(t TokenType) string {
	switch t {
	case SUBJECT, ST:
		return "subject to"
	}
	return Fold(t.String())
}
