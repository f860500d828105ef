package x86_64

import (
	"errors"
	"fmt"

	"github.com/toyc/toyc/internal/codegen/asm"
	"github.com/toyc/toyc/internal/ir"
)

var (
	ErrUnresolvedCall = errors.New("unresolved call target")
	ErrUnsupported    = errors.New("instruction has no x86-64 encoding")
)

// FunctionNamer maps a call target index back to its symbol.
type FunctionNamer interface {
	FunctionName(index int) (string, error)
}

// Symbols the runtime text defines.
const (
	startSymbol = "_start"
)

// Generate linearizes the IR into NASM form. Blocks keep their collection order.
func Generate(prog *ir.IR, names FunctionNamer, entry string) (asm.Program, error) {
	result := asm.Program{
		Globals: []string{symbol(entry), startSymbol},
		Runtime: runtime(symbol(entry)),
	}
	if prog == nil || prog.Blocks == nil {
		return result, ir.ErrNilIR
	}
	if names == nil {
		return result, fmt.Errorf("%w: no function names", ErrUnresolvedCall)
	}

	for b := range prog.Blocks.Values() {
		block, err := generateBlock(b, names)
		if err != nil {
			return result, fmt.Errorf("block %s: %w", b.Label, err)
		}
		result.Blocks = append(result.Blocks, block)
	}
	return result, nil
}

func generateBlock(b *ir.BasicBlock, names FunctionNamer) (asm.Block, error) {
	if b.Label == "" {
		return asm.Block{}, ir.ErrNilLabel
	}
	block := asm.Block{Label: symbol(b.Label)}
	if name, err := names.FunctionName(b.Function); err == nil && name == b.Label {
		block.Lines = append(block.Lines, asm.Comment(fmt.Sprintf("function %s", name)))
	}
	for inst := range b.Instructions.Values() {
		line, err := generateInstruction(inst, names)
		if err != nil {
			return block, err
		}
		block.Lines = append(block.Lines, line)
	}
	return block, nil
}

func generateInstruction(inst ir.Instruction, names FunctionNamer) (asm.Line, error) {
	switch inst.Op {
	case ir.OpSyscall, ir.OpCqo:
		return asm.Op0(inst.Op.String()), nil
	case ir.OpIn, ir.OpOut, ir.OpAbort, ir.OpBreak, ir.OpContinue:
		return asm.Line{}, fmt.Errorf("%w: %s", ErrUnsupported, inst.Op)
	case ir.OpCall:
		target := inst.Args[0]
		if target.Kind != ir.OperandFunction {
			return asm.Line{}, fmt.Errorf("%w: call operand %s", ErrUnresolvedCall, target)
		}
		name, err := names.FunctionName(target.Func)
		if err != nil {
			return asm.Line{}, fmt.Errorf("%w: %w", ErrUnresolvedCall, err)
		}
		return asm.Op1("call", asm.Ref(symbol(name))), nil
	}

	if inst.Op.IsJump() {
		target := inst.Args[0]
		if target.Kind == ir.OperandLabel {
			if target.Label == "" {
				return asm.Line{}, ir.ErrNilLabel
			}
			return asm.Op1(inst.Op.String(), asm.Ref(symbol(target.Label))), nil
		}
	}

	args := []asm.Arg{}
	for _, operand := range inst.Operands() {
		arg, err := generateOperand(operand)
		if err != nil {
			return asm.Line{}, err
		}
		args = append(args, arg)
	}
	switch len(args) {
	case 0:
		return asm.Op0(inst.Op.String()), nil
	case 1:
		return asm.Op1(inst.Op.String(), args[0]), nil
	}
	return asm.Op2(inst.Op.String(), args[0], args[1]), nil
}

func generateOperand(op ir.Operand) (asm.Arg, error) {
	switch op.Kind {
	case ir.OperandRegister:
		return asm.Reg(op.Reg.String()), nil
	case ir.OperandImmediate:
		return asm.Imm(op.Imm), nil
	case ir.OperandMemory:
		return asm.DerefWithOffset(asm.Reg(op.Reg.String()), 0), nil
	case ir.OperandMemoryAdd:
		return asm.DerefWithOffset(asm.Reg(op.Reg.String()), op.Imm), nil
	case ir.OperandMemorySub:
		return asm.DerefWithOffset(asm.Reg(op.Reg.String()), -op.Imm), nil
	case ir.OperandLabel:
		if op.Label == "" {
			return asm.Arg{}, ir.ErrNilLabel
		}
		return asm.Ref(symbol(op.Label)), nil
	case ir.OperandFunction:
		return asm.Arg{}, fmt.Errorf("%w: function operand outside a call", ErrUnresolvedCall)
	}
	return asm.Arg{}, fmt.Errorf("%w: operand %s", ir.ErrBadInstruction, op)
}

// Names NASM would read as something other than a symbol.
var reserved = map[string]bool{}

func init() {
	for r := ir.RAX; r <= ir.RSP; r++ {
		reserved[r.String()] = true
	}
	for op := ir.OpMov; op <= ir.OpSyscall; op++ {
		reserved[op.String()] = true
	}
	for _, word := range []string{"section", "global", "extern", "qword", "byte", "word", "dword", "rel"} {
		reserved[word] = true
	}
}

// symbol escapes names that collide with NASM keywords.
func symbol(name string) string {
	if reserved[name] {
		return "$" + name
	}
	return name
}
