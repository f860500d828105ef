package codegen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toyc/toyc/internal/ir"
	"github.com/toyc/toyc/internal/irgen"
	"github.com/toyc/toyc/internal/lexer"
	"github.com/toyc/toyc/internal/list"
	"github.com/toyc/toyc/internal/parser"
)

const factorial = `
func factorial(x) {
	if (x == 1) { return 1; }
	return x * factorial(x - 1);
}

func main() {
	out factorial(in);
}
`

func compile(t *testing.T, src, entry string) (*ir.IR, *irgen.Context) {
	t.Helper()
	ctx, err := parser.Parse(lexer.New(strings.NewReader(src), "test.toy"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := irgen.New(ctx, entry)
	if err != nil {
		t.Fatalf("irgen.New: %v", err)
	}
	prog, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return prog, g
}

func TestEmit(t *testing.T) {
	prog, g := compile(t, factorial, "main")
	var out bytes.Buffer
	if err := Emit(&out, prog, g, "main"); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	expectedParts := []string{
		"section .text",
		"global main",
		"main:",
		"factorial:",
		"mov qword [rbp - 8], rdi",
		"call factorial",
		"call toy_read",
		"call toy_print",
		"imul ",
		"je factorial.merge",
		"toy_print:",
		"toy_read:",
	}
	for _, expected := range expectedParts {
		if !strings.Contains(out.String(), expected) {
			t.Errorf("Expected output to contain %q, but it was missing.\nFull output:\n%s", expected, out.String())
		}
	}
	// The entry function comes first.
	if strings.Index(out.String(), "\nmain:") > strings.Index(out.String(), "\nfactorial:") {
		t.Errorf("entry block is not emitted first")
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	prog, g := compile(t, factorial, "main")
	var first, second bytes.Buffer
	if err := Emit(&first, prog, g, "main"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := Emit(&second, prog, g, "main"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("two emissions differ")
	}
}

type noNames struct{}

func (noNames) FunctionName(index int) (string, error) {
	return "", errors.New("no names")
}

func unresolved(t *testing.T) *ir.IR {
	t.Helper()
	blocks, _ := list.New[*ir.BasicBlock](2)
	b, _ := ir.NewBasicBlock("main", 0)
	b.Append(ir.Op1(ir.OpCall, ir.FuncRef(3)))
	prog, err := ir.New(blocks, b)
	if err != nil {
		t.Fatalf("ir.New: %v", err)
	}
	return prog
}

func TestUnresolvedCall(t *testing.T) {
	var out bytes.Buffer
	if err := Emit(&out, unresolved(t), noNames{}, "main"); !errors.Is(err, ErrUnresolvedCall) {
		t.Errorf("got %v, want ErrUnresolvedCall", err)
	}
	if strings.Contains(out.String(), "call 3") {
		t.Errorf("numeric call target emitted")
	}

	path := filepath.Join(t.TempDir(), "out.asm")
	if err := WriteFile(path, unresolved(t), noNames{}, "main"); !errors.Is(err, ErrUnresolvedCall) {
		t.Errorf("got %v, want ErrUnresolvedCall", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("output file exists after a failed translation")
	}
}

func TestWriteFile(t *testing.T) {
	prog, g := compile(t, factorial, "main")
	path := filepath.Join(t.TempDir(), "factorial.asm")
	if err := WriteFile(path, prog, g, "main"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var out bytes.Buffer
	Emit(&out, prog, g, "main")
	if string(data) != out.String() {
		t.Errorf("file contents differ from Emit output")
	}

	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "out.asm")
	if err := WriteFile(missing, prog, g, "main"); !errors.Is(err, ErrIO) {
		t.Errorf("got %v, want ErrIO", err)
	}
}
