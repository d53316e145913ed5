package codegen

import (
	"strings"
	"unicode"

	"go.starlark.net/syntax"
)

// reserved holds words a model name must not turn into: Starlark keywords,
// constants and the names the generated program predeclares or assigns.
var reserved = map[string]bool{
	"and": true, "break": true, "continue": true, "def": true, "elif": true,
	"else": true, "for": true, "if": true, "in": true, "lambda": true,
	"load": true, "not": true, "or": true, "pass": true, "return": true,
	"while": true, "None": true, "True": true, "False": true,
	"lp": true, "data": true, "tables": true, "prob": true,
}

// Sanitize turns a model name into a valid program identifier. Characters
// other than letters, digits and underscores are dropped, a leading digit
// is prefixed with an underscore and reserved words get a trailing one.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return "_"
	}
	if unicode.IsDigit([]rune(s)[0]) {
		s = "_" + s
	}
	if reserved[s] {
		s += "_"
	}
	return s
}

// Quote returns a string literal denoting s.
func Quote(s string) string {
	return syntax.Quote(s, false)
}

// IsReserved reports whether name collides with a word of the generated
// program and would be renamed by Sanitize.
func IsReserved(name string) bool {
	return reserved[name]
}
