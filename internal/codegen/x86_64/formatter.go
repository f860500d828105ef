package x86_64

import (
	"fmt"
	"io"

	"github.com/toyc/toyc/internal/codegen/asm"
)

// Format prints the program as NASM source.
func Format(out io.Writer, p asm.Program) error {
	fmt.Fprintf(out, "section .text\n")
	for _, global := range p.Globals {
		fmt.Fprintf(out, "global %s\n", global)
	}
	for _, block := range p.Blocks {
		fmt.Fprintf(out, "\n%s:\n", block.Label)
		for _, line := range block.Lines {
			if err := formatLine(out, line); err != nil {
				return fmt.Errorf("block %s: %w", block.Label, err)
			}
		}
	}
	_, err := io.WriteString(out, p.Runtime)
	return err
}

func formatLine(out io.Writer, line asm.Line) error {
	if line.Op == "" {
		if line.Comment != "" {
			fmt.Fprintf(out, "    ; %s\n", line.Comment)
		}
		return nil
	}

	fmt.Fprintf(out, "    %s", line.Op)
	if line.Arity >= 1 {
		arg, err := argToString(line.Arg1)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, " %s", arg)
	}
	if line.Arity >= 2 {
		arg, err := argToString(line.Arg2)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, ", %s", arg)
	}
	if line.Comment != "" {
		fmt.Fprintf(out, "  ; %s", line.Comment)
	}
	_, err := fmt.Fprintf(out, "\n")
	return err
}

func argToString(arg asm.Arg) (string, error) {
	switch {
	case arg.Deref && arg.Reg == "":
		return "", fmt.Errorf("invalid arg %#v: dereferencing only supported for registers", arg)
	case arg.Deref && arg.Offset > 0:
		return fmt.Sprintf("qword [%s + %d]", arg.Reg, arg.Offset), nil
	case arg.Deref && arg.Offset < 0:
		return fmt.Sprintf("qword [%s - %d]", arg.Reg, -arg.Offset), nil
	case arg.Deref:
		return fmt.Sprintf("qword [%s]", arg.Reg), nil
	case arg.Reg != "":
		return arg.Reg, nil
	case arg.Label != "":
		return arg.Label, nil
	case arg.Imm != nil:
		return fmt.Sprintf("%d", *arg.Imm), nil
	}
	return "", fmt.Errorf("invalid arg %#v", arg)
}
