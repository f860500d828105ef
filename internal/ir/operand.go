package ir

import "fmt"

type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandMemory    // [reg]
	OperandMemoryAdd // [reg + imm]
	OperandMemorySub // [reg - imm]
	OperandLabel
	OperandFunction // call target, resolved to a symbol at emission time
)

type Operand struct {
	Kind  OperandKind
	Reg   Register
	Imm   int64
	Label string
	Func  int
}

func None() Operand {
	return Operand{Kind: OperandNone, Reg: NoRegister}
}

func Reg(r Register) Operand {
	return Operand{Kind: OperandRegister, Reg: r}
}

func Imm(value int64) Operand {
	return Operand{Kind: OperandImmediate, Reg: NoRegister, Imm: value}
}

func Mem(r Register) Operand {
	return Operand{Kind: OperandMemory, Reg: r}
}

func MemAdd(r Register, offset int64) Operand {
	return Operand{Kind: OperandMemoryAdd, Reg: r, Imm: offset}
}

func MemSub(r Register, offset int64) Operand {
	return Operand{Kind: OperandMemorySub, Reg: r, Imm: offset}
}

func LabelRef(label string) Operand {
	return Operand{Kind: OperandLabel, Reg: NoRegister, Label: label}
}

func FuncRef(index int) Operand {
	return Operand{Kind: OperandFunction, Reg: NoRegister, Func: index}
}

// IsReg reports whether the operand is exactly the register r.
func (o Operand) IsReg(r Register) bool {
	return o.Kind == OperandRegister && o.Reg == r
}

func (o Operand) IsMemory() bool {
	return o.Kind == OperandMemory || o.Kind == OperandMemoryAdd || o.Kind == OperandMemorySub
}

// String renders the operand for IR dumps. Assembly formatting lives in the emitter.
func (o Operand) String() string {
	switch o.Kind {
	case OperandNone:
		return "<none>"
	case OperandRegister:
		return o.Reg.String()
	case OperandImmediate:
		return fmt.Sprintf("$%d", o.Imm)
	case OperandMemory:
		return fmt.Sprintf("[%s]", o.Reg)
	case OperandMemoryAdd:
		return fmt.Sprintf("[%s+%d]", o.Reg, o.Imm)
	case OperandMemorySub:
		return fmt.Sprintf("[%s-%d]", o.Reg, o.Imm)
	case OperandLabel:
		return o.Label
	case OperandFunction:
		return fmt.Sprintf("func#%d", o.Func)
	}
	return fmt.Sprintf("<invalid operand %d>", int(o.Kind))
}
