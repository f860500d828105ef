package parser

import (
	"strings"
	"testing"

	"github.com/toyc/toyc/internal/lexer"
)

func TestParseProgram(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "trivial program",
			src:      `func main() {}`,
			expected: "(seq (func #0 ()))",
		},
		{
			name:     "parameters and precedence",
			src:      `func f(a, b) { var c = a + b * 2; return c; }`,
			expected: "(seq (func #0 (comma #1 (comma #2)) (seq (var #3 (+ #1 (* #2 2))) (seq (return #3)))))",
		},
		{
			name:     "unary minus",
			src:      `func m() { out -x; }`,
			expected: "(seq (func #0 () (seq (out (- 0 #1)))))",
		},
		{
			name:     "left associative",
			src:      `func m() { out 1 - 2 - 3; }`,
			expected: "(seq (func #0 () (seq (out (- (- 1 2) 3)))))",
		},
		{
			name:     "logical operators",
			src:      `func m() { if (a < 1 || !b && c) { break; } }`,
			expected: "(seq (func #0 () (seq (if (|| (< #1 1) (&& (! #2) #3)) (seq (break))))))",
		},
		{
			name:     "calls and builtins",
			src:      `func m() { g(in, sin(2)); x = g(); }`,
			expected: "(seq (func #0 () (seq (call #1 (comma (in) (comma (sin 2)))) (seq (assign #2 (call #1 ()))))))",
		},
		{
			name: "loops and comments",
			src: `
// count down
func m() {
	while (n > 0) { n = n - 1; continue; }
	abort;
	return;
}`,
			expected: "(seq (func #0 () (seq (while (> #1 0) (seq (assign #1 (- #1 1)) (seq (continue)))) (seq (abort) (seq (return ()))))))",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, err := Parse(lexer.New(strings.NewReader(tc.src), "test.toy"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := ctx.Root.String(); got != tc.expected {
				t.Errorf("got  %s\nwant %s", got, tc.expected)
			}
		})
	}
}

func TestLocalSlots(t *testing.T) {
	src := `
func f(a, b) { var c; if (a) { var d = 1; } }
func g() {}
`
	ctx, err := Parse(lexer.New(strings.NewReader(src), "test.toy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.Locals) != 2 {
		t.Fatalf("got %d local tables, want 2", len(ctx.Locals))
	}
	if ctx.Locals[0].Slots != 4 || ctx.Locals[1].Slots != 0 {
		t.Errorf("slots = %d, %d; want 4, 0", ctx.Locals[0].Slots, ctx.Locals[1].Slots)
	}
	if id, ok := ctx.Names.Lookup("d"); !ok || ctx.Names.Name(id) != "d" {
		t.Errorf("d not interned")
	}
}

func TestNameOrder(t *testing.T) {
	ctx, err := Parse(lexer.New(strings.NewReader(`
func f(a) { return a; }
func g(b) { return f(b); }
`), "test.toy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A function name is interned before anything inside the function.
	for want, name := range []string{"f", "a", "g", "b"} {
		if id, ok := ctx.Names.Lookup(name); !ok || int(id) != want {
			t.Errorf("Lookup(%q) = %d, %v; want %d", name, id, ok, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		msg  string
	}{
		{"empty program", ``, "no functions"},
		{"missing func", `main() {}`, "expected 'func'"},
		{"bare expression", `func main() { x; }`, "expected '=' or '('"},
		{"missing semicolon", "func main() {\n  out 1\n}", "test.toy:3:1"},
		{"unterminated block", `func main() {`, "expected '}'"},
		{"chained comparison", `func main() { out a < b < c; }`, "expected ';'"},
		{"missing name", `func main() { var; }`, "expected variable name"},
		{"bad expression", `func main() { out ); }`, "in expression"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(lexer.New(strings.NewReader(tc.src), "test.toy"))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("error %q does not mention %q", err, tc.msg)
			}
		})
	}
}
