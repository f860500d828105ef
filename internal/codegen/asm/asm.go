package asm

// Program is NASM source in structured form: one .text section made of
// labelled blocks, followed by fixed runtime text.
type Program struct {
	Globals []string
	Blocks  []Block
	Runtime string
}

type Block struct {
	Label string
	Lines []Line
}

type Line struct {
	Comment string
	Op      string
	Arity   int
	Arg1    Arg
	Arg2    Arg
}

// Arg is a register, an immediate, a label, or a qword memory reference
// [Reg + Offset] when Deref is set.
type Arg struct {
	Reg    string
	Offset int64
	Imm    *int64
	Label  string
	Deref  bool
}

func (a Arg) WithOffset(offset int64) Arg {
	result := a
	result.Offset = offset
	return result
}

func (a Arg) AsDeref() Arg {
	result := a
	result.Deref = true
	return result
}

func Imm(value int64) Arg {
	return Arg{Imm: &value}
}

func DerefWithOffset(arg Arg, offset int64) Arg {
	return arg.WithOffset(offset).AsDeref()
}

func Reg(reg string) Arg {
	return Arg{Reg: reg}
}

func Ref(label string) Arg {
	return Arg{Label: label}
}

func Op0(op string) Line {
	return Line{Op: op}
}

func Op1(op string, arg Arg) Line {
	return Line{Op: op, Arity: 1, Arg1: arg}
}

func Op2(op string, arg1, arg2 Arg) Line {
	return Line{Op: op, Arity: 2, Arg1: arg1, Arg2: arg2}
}

func Comment(text string) Line {
	return Line{Comment: text}
}
