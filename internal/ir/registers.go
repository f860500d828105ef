package ir

import "fmt"

type Register int

// Allocation order. The first NumRegisters entries form the allocatable pool;
// RBP and RSP are reserved for the frame.
const (
	RAX Register = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RBP
	RSP

	NoRegister Register = -1
)

const (
	NumRegisters = 14
	WordSize     = 8

	// Number of integer arguments passed in registers under System V.
	ArgRegisterCount = 6
)

var registerNames = [...]string{
	RAX: "rax",
	RBX: "rbx",
	RCX: "rcx",
	RDX: "rdx",
	RSI: "rsi",
	RDI: "rdi",
	R8:  "r8",
	R9:  "r9",
	R10: "r10",
	R11: "r11",
	R12: "r12",
	R13: "r13",
	R14: "r14",
	R15: "r15",
	RBP: "rbp",
	RSP: "rsp",
}

// ArgRegisters lists the System V integer argument registers in order.
var ArgRegisters = [ArgRegisterCount]Register{RDI, RSI, RDX, RCX, R8, R9}

func (r Register) String() string {
	if r < 0 || int(r) >= len(registerNames) {
		return fmt.Sprintf("r?%d", int(r))
	}
	return registerNames[r]
}

func (r Register) Valid() bool {
	return r >= 0 && int(r) < len(registerNames)
}

// CalleeSaved reports whether the System V ABI requires a callee to preserve r.
func (r Register) CalleeSaved() bool {
	switch r {
	case RBX, RBP, R12, R13, R14, R15:
		return true
	}
	return false
}
