package irgen

import (
	"fmt"
	"slices"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/ir"
)

func (g *Context) generateUserCall(node *ast.Node) (ir.Register, error) {
	index, ok := g.funcs[node.Name]
	if !ok {
		return ir.NoRegister, fmt.Errorf("%s: %w %s", node.Loc, ErrUnknownFunction, g.ast.Names.Name(node.Name))
	}
	return g.generateCall(index, node.Left.Items(ast.KindComma))
}

/*
generateCall lowers a call to the function with the given index:

  - the result register is taken first and the registers live in the caller
    are pushed;
  - the first six arguments are evaluated left to right into registers, each
    kept apart from the ones before it;
  - space for the remaining arguments is reserved and each one is stored into
    its slot as soon as it is evaluated, so the seventh ends up at [rbp+16] in
    the callee;
  - the register arguments are moved into the System V argument registers;
  - after the call the stack arguments are dropped, rax is copied into the
    result register and the live registers are popped.

The result register is allocated before anything else so a spill for it is
released after the saved registers are restored.
*/
func (g *Context) generateCall(index int, args []*ast.Node) (ir.Register, error) {
	res, err := g.allocate()
	if err != nil {
		return ir.NoRegister, err
	}
	saved := slices.DeleteFunc(g.regs.Live(), func(r ir.Register) bool { return r == res })
	for _, r := range saved {
		if err := g.emit(ir.Op1(ir.OpPush, ir.Reg(r))); err != nil {
			return ir.NoRegister, err
		}
	}

	registerArgs := args[:min(len(args), ir.ArgRegisterCount)]
	values := make([]ir.Register, 0, len(registerArgs))
	for _, arg := range registerArgs {
		// Arguments must not end up in res: a restore popped into it after the
		// call would clobber the result.
		r, err := g.generatePinned(arg, append([]ir.Register{res}, values...)...)
		if err != nil {
			return ir.NoRegister, err
		}
		values = append(values, r)
	}

	stackArgs := args[len(registerArgs):]
	if len(stackArgs) > 0 {
		if err := g.emit(ir.Op2(ir.OpSub, ir.Reg(ir.RSP), ir.Imm(int64(len(stackArgs)*ir.WordSize)))); err != nil {
			return ir.NoRegister, err
		}
	}
	base := g.regs.StackOffset
	for i, arg := range stackArgs {
		r, err := g.generatePinned(arg)
		if err != nil {
			return ir.NoRegister, err
		}
		// Spills still outstanding for r sit between rsp and the reserved slots.
		offset := int64(g.regs.StackOffset - base + i*ir.WordSize)
		slot := ir.Mem(ir.RSP)
		if offset > 0 {
			slot = ir.MemAdd(ir.RSP, offset)
		}
		if err := g.emit(ir.Op2(ir.OpMov, slot, ir.Reg(r))); err != nil {
			return ir.NoRegister, err
		}
		if err := g.regs.Free(r, g.emit); err != nil {
			return ir.NoRegister, err
		}
	}
	g.regs.ForgetAll()

	moves := []move{}
	for i, r := range values {
		moves = append(moves, move{dst: ir.ArgRegisters[i], src: r})
	}
	if err := g.parallelMove(moves); err != nil {
		return ir.NoRegister, err
	}

	if err := g.emit(ir.Op1(ir.OpCall, ir.FuncRef(index))); err != nil {
		return ir.NoRegister, err
	}
	if len(stackArgs) > 0 {
		if err := g.emit(ir.Op2(ir.OpAdd, ir.Reg(ir.RSP), ir.Imm(int64(len(stackArgs)*ir.WordSize)))); err != nil {
			return ir.NoRegister, err
		}
	}
	if res != ir.RAX {
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(res), ir.Reg(ir.RAX))); err != nil {
			return ir.NoRegister, err
		}
	}
	// Spills taken for the register arguments were pushed after the saved
	// registers, so they are released first.
	for _, r := range slices.Backward(values) {
		if err := g.regs.Free(r, g.emit); err != nil {
			return ir.NoRegister, err
		}
	}
	for _, r := range slices.Backward(saved) {
		if err := g.emit(ir.Op1(ir.OpPop, ir.Reg(r))); err != nil {
			return ir.NoRegister, err
		}
	}
	// The callee is free to clobber every register.
	g.regs.ForgetAll()
	return res, nil
}

type move struct {
	dst, src ir.Register
	// Source value was pushed to break a cycle.
	stacked bool
}

func pendingSource(moves []move, r ir.Register) bool {
	for _, m := range moves {
		if !m.stacked && m.src == r {
			return true
		}
	}
	return false
}

// parallelMove performs a set of register moves as if they happened at once.
// Sources and destinations are each distinct. Cycles are broken through the stack.
func (g *Context) parallelMove(moves []move) error {
	pending := slices.DeleteFunc(slices.Clone(moves), func(m move) bool { return m.dst == m.src })
	for len(pending) > 0 {
		ready := slices.IndexFunc(pending, func(m move) bool { return !pendingSource(pending, m.dst) })
		if ready >= 0 {
			m := pending[ready]
			var inst ir.Instruction
			if m.stacked {
				inst = ir.Op1(ir.OpPop, ir.Reg(m.dst))
			} else {
				inst = ir.Op2(ir.OpMov, ir.Reg(m.dst), ir.Reg(m.src))
			}
			if err := g.emit(inst); err != nil {
				return err
			}
			pending = slices.Delete(pending, ready, ready+1)
			continue
		}

		// Every destination is still needed as a source.
		m := pending[0]
		if err := g.emit(ir.Op1(ir.OpPush, ir.Reg(m.dst))); err != nil {
			return err
		}
		for i := range pending {
			if pending[i].src == m.dst {
				pending[i].stacked = true
			}
		}
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(m.dst), ir.Reg(m.src))); err != nil {
			return err
		}
		pending = pending[1:]
	}
	return nil
}
