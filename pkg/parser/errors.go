package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// SyntaxError reports a grammar mismatch: the offending text, where it was
// found, and what the parser expected.
type SyntaxError struct {
	Pos     token.Position
	Text    string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("syntax error at line %d, column %d near %q: %s", e.Pos.Line, e.Pos.Column, e.Text, e.Message)
}

// ErrorList collects every syntax error found in one parse.
type ErrorList []*SyntaxError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	b.WriteString(l[0].Error())
	fmt.Fprintf(&b, " (and %d more errors)", len(l)-1)
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected %s, expected %s"
	ErrUnterminatedString = "unterminated string literal"
	ErrInvalidNumber      = "invalid number literal"
	ErrEmptyIndexList     = "empty index list"
	ErrDanglingLoop       = "loop clause needs a variable and a source"
)
