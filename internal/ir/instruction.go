package ir

import (
	"fmt"
	"strings"
)

type Operator int

const (
	OpMov Operator = iota
	OpPush
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpCqo
	OpSin
	OpCos
	OpSqrt
	OpFloor
	OpCmp
	OpAnd
	OpOr
	OpNot
	OpJe
	OpJne
	OpJl
	OpJle
	OpJg
	OpJge
	OpJmp
	OpCall
	OpRet
	OpIn
	OpOut
	OpAbort
	OpBreak
	OpContinue
	OpHalt
	OpSyscall
)

type operatorInfo struct {
	mnemonic string
	arity    int
}

var operators = [...]operatorInfo{
	OpMov:      {"mov", 2},
	OpPush:     {"push", 1},
	OpPop:      {"pop", 1},
	OpAdd:      {"add", 2},
	OpSub:      {"sub", 2},
	OpMul:      {"imul", 2},
	OpDiv:      {"idiv", 1},
	OpCqo:      {"cqo", 0},
	OpSin:      {"fsin", 0},
	OpCos:      {"fcos", 0},
	OpSqrt:     {"fsqrt", 0},
	OpFloor:    {"frndint", 0},
	OpCmp:      {"cmp", 2},
	OpAnd:      {"and", 2},
	OpOr:       {"or", 2},
	OpNot:      {"not", 1},
	OpJe:       {"je", 1},
	OpJne:      {"jne", 1},
	OpJl:       {"jl", 1},
	OpJle:      {"jle", 1},
	OpJg:       {"jg", 1},
	OpJge:      {"jge", 1},
	OpJmp:      {"jmp", 1},
	OpCall:     {"call", 1},
	OpRet:      {"ret", 0},
	OpIn:       {"in", 0},
	OpOut:      {"out", 0},
	OpAbort:    {"abort", 0},
	OpBreak:    {"break", 0},
	OpContinue: {"continue", 0},
	OpHalt:     {"hlt", 0},
	OpSyscall:  {"syscall", 0},
}

func (o Operator) valid() bool {
	return o >= 0 && int(o) < len(operators)
}

func (o Operator) String() string {
	if !o.valid() {
		return fmt.Sprintf("op?%d", int(o))
	}
	return operators[o].mnemonic
}

// Arity returns the number of operands the operator takes.
func (o Operator) Arity() int {
	if !o.valid() {
		return -1
	}
	return operators[o].arity
}

// IsJump reports whether the operator is one of the jump family.
func (o Operator) IsJump() bool {
	return o >= OpJe && o <= OpJmp
}

// Terminates reports whether control never falls through past the operator.
func (o Operator) Terminates() bool {
	return o == OpRet || o == OpJmp || o == OpHalt
}

type Instruction struct {
	Op       Operator
	Args     [2]Operand
	N        int
	Function int
}

func Op0(op Operator) Instruction {
	return Instruction{Op: op}
}

func Op1(op Operator, a Operand) Instruction {
	return Instruction{Op: op, Args: [2]Operand{a}, N: 1}
}

func Op2(op Operator, a, b Operand) Instruction {
	return Instruction{Op: op, Args: [2]Operand{a, b}, N: 2}
}

// Operands returns the declared operands; anything past N is ignored.
func (i Instruction) Operands() []Operand {
	n := max(0, min(i.N, len(i.Args)))
	return i.Args[:n]
}

// Validate checks that the operand count matches the operator's arity.
func (i Instruction) Validate() error {
	if !i.Op.valid() {
		return fmt.Errorf("%w: unknown operator %d", ErrBadInstruction, int(i.Op))
	}
	if i.N != i.Op.Arity() {
		return fmt.Errorf("%w: %s takes %d operands, got %d", ErrBadInstruction, i.Op, i.Op.Arity(), i.N)
	}
	return nil
}

func (i Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.Op.String())
	for n, arg := range i.Operands() {
		if n == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	return sb.String()
}
