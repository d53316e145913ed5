package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Lexer tokenizes model source.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	errors []*SyntaxError
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Errors returns the lexical errors found so far.
func (l *Lexer) Errors() []*SyntaxError {
	return l.errors
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		l.col++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += w
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := token.Token{Pos: pos}

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		return tok
	case '+':
		tok = l.single(token.PLUS, pos)
	case '-':
		tok = l.single(token.MINUS, pos)
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			tok = token.Token{Type: token.CARET, Literal: "**", Pos: pos}
		} else {
			tok = l.single(token.STAR, pos)
		}
	case '/':
		tok = l.single(token.SLASH, pos)
	case '%':
		tok = l.single(token.PERCENT, pos)
	case '^':
		tok = l.single(token.CARET, pos)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.single(token.ASSIGN, pos)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.single(token.LT, pos)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.single(token.GT, pos)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.illegal(string(l.ch), pos, "unexpected character '!'")
		}
	case '≤':
		tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
	case '≥':
		tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
	case '≠':
		tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			tok = token.Token{Type: token.DOTDOT, Literal: "..", Pos: pos}
		} else {
			tok = l.single(token.DOT, pos)
		}
	case ',':
		tok = l.single(token.COMMA, pos)
	case ':':
		tok = l.single(token.COLON, pos)
	case '(':
		tok = l.single(token.LPAREN, pos)
	case ')':
		tok = l.single(token.RPAREN, pos)
	case '[':
		tok = l.single(token.LBRACKET, pos)
	case ']':
		tok = l.single(token.RBRACKET, pos)
	case '{':
		tok = l.single(token.LBRACE, pos)
	case '}':
		tok = l.single(token.RBRACE, pos)
	case '"', '\'':
		return l.readString(pos)
	default:
		switch {
		case isLetter(l.ch):
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			return tok
		case isDigit(l.ch):
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
			return tok
		default:
			tok = l.illegal(string(l.ch), pos, "unexpected character "+quoteRune(l.ch))
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) single(t token.TokenType, pos token.Position) token.Token {
	return token.Token{Type: t, Literal: string(l.ch), Pos: pos}
}

func (l *Lexer) illegal(lit string, pos token.Position, msg string) token.Token {
	l.errors = append(l.errors, &SyntaxError{Pos: pos, Text: lit, Message: msg})
	return token.Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, "#" comments and "//" comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '#' || (l.ch == '/' && l.peekChar() == '/') {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		break
	}
}

// readString reads a single- or double-quoted string literal. Backslash
// escapes \n, \t, \\ and the quote character are decoded.
func (l *Lexer) readString(pos token.Position) token.Token {
	quote := l.ch
	start := l.pos
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch l.ch {
		case 0, '\n':
			return l.illegal(l.input[start:l.pos], pos, ErrUnterminatedString)
		case quote:
			l.readChar() // skip closing quote
			return token.Token{Type: token.STRING, Literal: result.String(), Pos: pos}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 0:
				return l.illegal(l.input[start:l.pos], pos, ErrUnterminatedString)
			default:
				result.WriteRune(l.ch)
			}
			l.readChar()
		default:
			result.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific). A
// dot followed by another dot ends the number so "1..10" lexes as a range.
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar() // skip 'e' or 'E'
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[start:l.pos]
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}

// Tokenize returns all tokens from the input, ending with EOF.
func Tokenize(input string) []token.Token {
	tokens, _ := tokenize(input)
	return tokens
}

func tokenize(input string) ([]token.Token, []*SyntaxError) {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens, l.Errors()
}
