package lexer

import (
	"bufio"
	"fmt"
	"io"
	"unicode"
)

type TokenType int

// Token types
const (
	LEX_EOF TokenType = iota
	LEX_IDENT
	LEX_NUMBER
	LEX_KEYWORD
	LEX_OPERATOR
	LEX_PUNCTUATION
)

func (t TokenType) String() string {
	switch t {
	case LEX_EOF:
		return "EOF"
	case LEX_IDENT:
		return "IDENT"
	case LEX_NUMBER:
		return "NUMBER"
	case LEX_KEYWORD:
		return "KEYWORD"
	case LEX_OPERATOR:
		return "OPERATOR"
	case LEX_PUNCTUATION:
		return "PUNCTUATION"
	default:
		return "UNKNOWN"
	}
}

var keywords = map[string]bool{
	"func":     true,
	"var":      true,
	"if":       true,
	"while":    true,
	"return":   true,
	"break":    true,
	"continue": true,
	"abort":    true,
	"in":       true,
	"out":      true,
	"sin":      true,
	"cos":      true,
	"floor":    true,
	"sqrt":     true,
	"diff":     true,
}

// Tokens that are always one character long.
var singleCharTokens = map[rune]TokenType{
	'(': LEX_PUNCTUATION,
	')': LEX_PUNCTUATION,
	'{': LEX_PUNCTUATION,
	'}': LEX_PUNCTUATION,
	';': LEX_PUNCTUATION,
	',': LEX_PUNCTUATION,
	'+': LEX_OPERATOR,
	'-': LEX_OPERATOR,
	'*': LEX_OPERATOR,
}

// Operators that may be followed by a second character forming a longer operator.
var pairTokens = map[rune]rune{
	'=': '=',
	'!': '=',
	'<': '=',
	'>': '=',
	'&': '&',
	'|': '|',
}

type Location struct {
	Filename string
	Line     int
	Col      int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Col)
}

type Lexeme struct {
	Type TokenType
	Str  string
	Loc  Location
}

func (l Lexeme) String() string {
	if l.Str == "" {
		return fmt.Sprintf("<%s>", l.Type)
	}
	return fmt.Sprintf("<%s %q>", l.Type, l.Str)
}

func (l Lexeme) IsKeyword(kv string) bool {
	return l.Type == LEX_KEYWORD && l.Str == kv
}

func (l Lexeme) IsPunctuation(pv string) bool {
	return l.Type == LEX_PUNCTUATION && l.Str == pv
}

func (l Lexeme) IsOperator(op string) bool {
	return l.Type == LEX_OPERATOR && l.Str == op
}

type Lexer struct {
	input     *bufio.Reader
	filename  string
	line      int
	col       int
	prevCol   int
	lastRune  rune
	lastSize  int
	hasUnread bool
}

func New(inputReader io.Reader, filename string) *Lexer {
	return &Lexer{
		input:    bufio.NewReader(inputReader),
		filename: filename,
		line:     1,
		col:      1,
		prevCol:  1,
	}
}

func (l *Lexer) readRune() (rune, int, error) {
	var r rune
	var size int
	var err error

	if l.hasUnread {
		l.hasUnread = false
		r, size, err = l.lastRune, l.lastSize, nil
	} else {
		r, size, err = l.input.ReadRune()
	}

	if err != nil {
		return 0, 0, err
	}

	l.prevCol = l.col
	l.lastRune = r
	l.lastSize = size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, size, nil
}

// unreadRune pushes back the rune from the last readRune.
// Should be called at most once per readRune.
func (l *Lexer) unreadRune() {
	l.hasUnread = true
	if l.lastRune == '\n' {
		l.line--
	}
	l.col = l.prevCol
}

func (l *Lexer) skipSpace() error {
	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !unicode.IsSpace(r) {
			l.unreadRune()
			return nil
		}
	}
}

// skipComment consumes the rest of a // line.
func (l *Lexer) skipComment() error {
	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if r == '\n' {
			return nil
		}
	}
}

func (l *Lexer) loc(line, col int) Location {
	return Location{Filename: l.filename, Line: line, Col: col}
}

// Next scans one lexeme. At end of input it returns LEX_EOF with a nil error.
func (l *Lexer) Next() (Lexeme, error) {
	if err := l.skipSpace(); err != nil {
		return Lexeme{Type: LEX_EOF}, err
	}
	loc := l.loc(l.line, l.col)
	r, _, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Lexeme{Type: LEX_EOF}, nil
		}
		return Lexeme{Type: LEX_EOF}, err
	}

	switch {
	case unicode.IsLetter(r) || r == '_':
		l.unreadRune()
		return l.lexIdent(loc)
	case unicode.IsDigit(r):
		l.unreadRune()
		return l.lexNumber(loc)
	case r == '/':
		nextR, _, err := l.readRune()
		if err != nil && err != io.EOF {
			return Lexeme{Type: LEX_EOF}, err
		}
		if err == nil && nextR == '/' {
			if err := l.skipComment(); err != nil {
				return Lexeme{Type: LEX_EOF}, err
			}
			return l.Next()
		}
		if err == nil {
			l.unreadRune()
		}
		return Lexeme{Type: LEX_OPERATOR, Str: "/", Loc: loc}, nil
	}

	if second, ok := pairTokens[r]; ok {
		nextR, _, err := l.readRune()
		if err != nil && err != io.EOF {
			return Lexeme{Type: LEX_EOF}, err
		}
		if err == nil && nextR == second {
			return Lexeme{Type: LEX_OPERATOR, Str: string([]rune{r, second}), Loc: loc}, nil
		}
		if err == nil {
			l.unreadRune()
		}
		if r == '&' || r == '|' {
			return Lexeme{Type: LEX_EOF}, fmt.Errorf("%s: unexpected character %q", loc, r)
		}
		return Lexeme{Type: LEX_OPERATOR, Str: string(r), Loc: loc}, nil
	}

	if tokenType, ok := singleCharTokens[r]; ok {
		return Lexeme{Type: tokenType, Str: string(r), Loc: loc}, nil
	}
	return Lexeme{Type: LEX_EOF}, fmt.Errorf("%s: unexpected character %q", loc, r)
}

func (l *Lexer) lexIdent(loc Location) (Lexeme, error) {
	var ident string

	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Lexeme{}, err
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			l.unreadRune()
			break
		}

		ident += string(r)
	}

	if keywords[ident] {
		return Lexeme{Type: LEX_KEYWORD, Str: ident, Loc: loc}, nil
	}
	return Lexeme{Type: LEX_IDENT, Str: ident, Loc: loc}, nil
}

// lexNumber reads a decimal integer literal
func (l *Lexer) lexNumber(loc Location) (Lexeme, error) {
	var num string

	for {
		r, _, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Lexeme{}, err
		}

		if !unicode.IsDigit(r) {
			l.unreadRune()
			break
		}

		num += string(r)
	}

	return Lexeme{Type: LEX_NUMBER, Str: num, Loc: loc}, nil
}
