package x86_64

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/toyc/toyc/internal/ir"
	"github.com/toyc/toyc/internal/list"
)

type namer map[int]string

func (n namer) FunctionName(index int) (string, error) {
	if name, ok := n[index]; ok {
		return name, nil
	}
	return "", fmt.Errorf("no function %d", index)
}

func program(t *testing.T, label string, insts ...ir.Instruction) *ir.IR {
	t.Helper()
	blocks, _ := list.New[*ir.BasicBlock](4)
	b, err := ir.NewBasicBlock(label, 0)
	if err != nil {
		t.Fatalf("NewBasicBlock: %v", err)
	}
	for _, inst := range insts {
		if err := b.Append(inst); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	p, err := ir.New(blocks, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestInstructionFormatting(t *testing.T) {
	tests := []struct {
		inst     ir.Instruction
		expected string
	}{
		{ir.Op2(ir.OpMov, ir.Reg(ir.RAX), ir.Imm(42)), "    mov rax, 42\n"},
		{ir.Op2(ir.OpMov, ir.Reg(ir.RAX), ir.MemSub(ir.RBP, 8)), "    mov rax, qword [rbp - 8]\n"},
		{ir.Op2(ir.OpMov, ir.MemAdd(ir.RBP, 16), ir.Reg(ir.RBX)), "    mov qword [rbp + 16], rbx\n"},
		{ir.Op2(ir.OpMov, ir.Mem(ir.RSP), ir.Reg(ir.RCX)), "    mov qword [rsp], rcx\n"},
		{ir.Op2(ir.OpMul, ir.Reg(ir.R8), ir.Reg(ir.R15)), "    imul r8, r15\n"},
		{ir.Op1(ir.OpPush, ir.Reg(ir.RBP)), "    push rbp\n"},
		{ir.Op1(ir.OpDiv, ir.Reg(ir.RCX)), "    idiv rcx\n"},
		{ir.Op0(ir.OpCqo), "    cqo\n"},
		{ir.Op0(ir.OpSyscall), "    syscall\n"},
		{ir.Op0(ir.OpRet), "    ret\n"},
		{ir.Op1(ir.OpJge, ir.LabelRef("f.true3")), "    jge f.true3\n"},
		{ir.Op1(ir.OpCall, ir.FuncRef(1)), "    call g\n"},
		{ir.Op1(ir.OpCall, ir.FuncRef(2)), "    call $rax\n"},
	}
	names := namer{0: "f", 1: "g", 2: "rax"}
	for _, tt := range tests {
		t.Run(tt.inst.String(), func(t *testing.T) {
			line, err := generateInstruction(tt.inst, names)
			if err != nil {
				t.Fatalf("generateInstruction: %v", err)
			}
			var out bytes.Buffer
			if err := formatLine(&out, line); err != nil {
				t.Fatalf("formatLine: %v", err)
			}
			if out.String() != tt.expected {
				t.Errorf("got %q, want %q", out.String(), tt.expected)
			}
		})
	}
}

func TestGenerateLayout(t *testing.T) {
	p := program(t, "main",
		ir.Op1(ir.OpPush, ir.Reg(ir.RBP)),
		ir.Op2(ir.OpMov, ir.Reg(ir.RBP), ir.Reg(ir.RSP)),
		ir.Op0(ir.OpRet),
	)
	asmProgram, err := Generate(p, namer{0: "main"}, "main")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var out bytes.Buffer
	if err := Format(&out, asmProgram); err != nil {
		t.Fatalf("Format: %v", err)
	}
	expectedPrefix := `section .text
global main
global _start

main:
    ; function main
    push rbp
    mov rbp, rsp
    ret
`
	if !strings.HasPrefix(out.String(), expectedPrefix) {
		t.Errorf("got\n%s\nwant prefix\n%s", out.String(), expectedPrefix)
	}
	for _, part := range []string{"_start:\n    call main\n", "toy_print:", "toy_read:"} {
		if !strings.Contains(out.String(), part) {
			t.Errorf("runtime is missing %q", part)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		inst ir.Instruction
		err  error
	}{
		{"unknown call target", ir.Op1(ir.OpCall, ir.FuncRef(9)), ErrUnresolvedCall},
		{"call through a register", ir.Op1(ir.OpCall, ir.Reg(ir.RAX)), ErrUnresolvedCall},
		{"jump without a label", ir.Op1(ir.OpJmp, ir.LabelRef("")), ir.ErrNilLabel},
		{"pseudo instruction", ir.Op0(ir.OpBreak), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := program(t, "main", tt.inst)
			if _, err := Generate(p, namer{0: "main"}, "main"); !errors.Is(err, tt.err) {
				t.Errorf("got %v, want %v", err, tt.err)
			}
		})
	}
	if _, err := Generate(nil, namer{}, "main"); !errors.Is(err, ir.ErrNilIR) {
		t.Errorf("got %v, want ErrNilIR", err)
	}
}
