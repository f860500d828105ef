package lexer

import (
	"reflect"
	"strings"
	"testing"
)

func loc(line, col int) Location {
	return Location{Filename: "test.toy", Line: line, Col: col}
}

func lexAll(t *testing.T, input string) []Lexeme {
	t.Helper()
	lex := New(strings.NewReader(input), "test.toy")
	var result []Lexeme
	for {
		lexeme, err := lex.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result = append(result, lexeme)
		if lexeme.Type == LEX_EOF {
			return result
		}
	}
}

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Lexeme
	}{
		{
			name:  "empty input",
			input: "",
			expected: []Lexeme{
				{Type: LEX_EOF},
			},
		},
		{
			name:  "simple identifiers",
			input: "hello world _test123",
			expected: []Lexeme{
				{Type: LEX_IDENT, Str: "hello", Loc: loc(1, 1)},
				{Type: LEX_IDENT, Str: "world", Loc: loc(1, 7)},
				{Type: LEX_IDENT, Str: "_test123", Loc: loc(1, 13)},
				{Type: LEX_EOF},
			},
		},
		{
			name:  "keywords",
			input: "func var if while return",
			expected: []Lexeme{
				{Type: LEX_KEYWORD, Str: "func", Loc: loc(1, 1)},
				{Type: LEX_KEYWORD, Str: "var", Loc: loc(1, 6)},
				{Type: LEX_KEYWORD, Str: "if", Loc: loc(1, 10)},
				{Type: LEX_KEYWORD, Str: "while", Loc: loc(1, 13)},
				{Type: LEX_KEYWORD, Str: "return", Loc: loc(1, 19)},
				{Type: LEX_EOF},
			},
		},
		{
			name:  "numbers",
			input: "0 42 1234567890",
			expected: []Lexeme{
				{Type: LEX_NUMBER, Str: "0", Loc: loc(1, 1)},
				{Type: LEX_NUMBER, Str: "42", Loc: loc(1, 3)},
				{Type: LEX_NUMBER, Str: "1234567890", Loc: loc(1, 6)},
				{Type: LEX_EOF},
			},
		},
		{
			name:  "two character operators",
			input: "== != <= >= && || < > = !",
			expected: []Lexeme{
				{Type: LEX_OPERATOR, Str: "==", Loc: loc(1, 1)},
				{Type: LEX_OPERATOR, Str: "!=", Loc: loc(1, 4)},
				{Type: LEX_OPERATOR, Str: "<=", Loc: loc(1, 7)},
				{Type: LEX_OPERATOR, Str: ">=", Loc: loc(1, 10)},
				{Type: LEX_OPERATOR, Str: "&&", Loc: loc(1, 13)},
				{Type: LEX_OPERATOR, Str: "||", Loc: loc(1, 16)},
				{Type: LEX_OPERATOR, Str: "<", Loc: loc(1, 19)},
				{Type: LEX_OPERATOR, Str: ">", Loc: loc(1, 21)},
				{Type: LEX_OPERATOR, Str: "=", Loc: loc(1, 23)},
				{Type: LEX_OPERATOR, Str: "!", Loc: loc(1, 25)},
				{Type: LEX_EOF},
			},
		},
		{
			name:  "comments and lines",
			input: "x = 1; // set x\ny/2",
			expected: []Lexeme{
				{Type: LEX_IDENT, Str: "x", Loc: loc(1, 1)},
				{Type: LEX_OPERATOR, Str: "=", Loc: loc(1, 3)},
				{Type: LEX_NUMBER, Str: "1", Loc: loc(1, 5)},
				{Type: LEX_PUNCTUATION, Str: ";", Loc: loc(1, 6)},
				{Type: LEX_IDENT, Str: "y", Loc: loc(2, 1)},
				{Type: LEX_OPERATOR, Str: "/", Loc: loc(2, 2)},
				{Type: LEX_NUMBER, Str: "2", Loc: loc(2, 3)},
				{Type: LEX_EOF},
			},
		},
		{
			name:  "function header",
			input: "func f(a, b) {",
			expected: []Lexeme{
				{Type: LEX_KEYWORD, Str: "func", Loc: loc(1, 1)},
				{Type: LEX_IDENT, Str: "f", Loc: loc(1, 6)},
				{Type: LEX_PUNCTUATION, Str: "(", Loc: loc(1, 7)},
				{Type: LEX_IDENT, Str: "a", Loc: loc(1, 8)},
				{Type: LEX_PUNCTUATION, Str: ",", Loc: loc(1, 9)},
				{Type: LEX_IDENT, Str: "b", Loc: loc(1, 11)},
				{Type: LEX_PUNCTUATION, Str: ")", Loc: loc(1, 12)},
				{Type: LEX_PUNCTUATION, Str: "{", Loc: loc(1, 14)},
				{Type: LEX_EOF},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexAll(t, tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	for _, input := range []string{"@", "a & b", "a | b"} {
		lex := New(strings.NewReader(input), "test.toy")
		var err error
		for range 5 {
			var lexeme Lexeme
			lexeme, err = lex.Next()
			if err != nil || lexeme.Type == LEX_EOF {
				break
			}
		}
		if err == nil {
			t.Errorf("%q: expected an error", input)
		}
	}
}
