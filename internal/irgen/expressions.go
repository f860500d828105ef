package irgen

import (
	"fmt"
	"slices"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/ir"
)

// generateExpression lowers node and returns the register holding its value.
// The caller owns the register and must free it.
func (g *Context) generateExpression(node *ast.Node) (ir.Register, error) {
	if node == nil {
		return ir.NoRegister, ErrNilNode
	}
	switch node.Kind {
	case ast.KindConstant:
		r, err := g.allocate()
		if err != nil {
			return ir.NoRegister, err
		}
		return r, g.emit(ir.Op2(ir.OpMov, ir.Reg(r), ir.Imm(node.Value)))
	case ast.KindIdentifier:
		return g.generateRead(node)
	case ast.KindCall:
		return g.generateUserCall(node)
	case ast.KindIn:
		return g.generateCall(g.helperIndex(ReadHelper), nil)
	case ast.KindOperator:
		return g.generateOperator(node)
	}
	return ir.NoRegister, fmt.Errorf("%s: %w: %s is not an expression", node.Loc, ErrBadStructure, node.Kind)
}

func (g *Context) generateRead(node *ast.Node) (ir.Register, error) {
	offset, err := g.offsetOf(node)
	if err != nil {
		return ir.NoRegister, err
	}
	v := ir.VarID(node.Name)
	if cached, ok := g.regs.Lookup(v); ok {
		if !g.regs.IsUsed(cached) {
			g.regs.Claim(cached)
			return cached, nil
		}
		// Already handed out by this expression: work on a copy.
		r, err := g.allocate(cached)
		if err != nil {
			return ir.NoRegister, err
		}
		return r, g.emit(ir.Op2(ir.OpMov, ir.Reg(r), ir.Reg(cached)))
	}

	r, err := g.allocate()
	if err != nil {
		return ir.NoRegister, err
	}
	if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(r), ir.MemSub(ir.RBP, int64(offset)))); err != nil {
		return ir.NoRegister, err
	}
	if !g.regs.IsSpilled(r) {
		if err := g.regs.Remember(v, r, g.emit); err != nil {
			return ir.NoRegister, err
		}
		g.regs.Claim(r)
	}
	return r, nil
}

var arithmetic = map[ast.Operator]ir.Operator{
	ast.OpAdd: ir.OpAdd,
	ast.OpSub: ir.OpSub,
	ast.OpMul: ir.OpMul,
}

var relational = map[ast.Operator]ir.Operator{
	ast.OpLess:      ir.OpJl,
	ast.OpGreater:   ir.OpJg,
	ast.OpLessEq:    ir.OpJle,
	ast.OpGreaterEq: ir.OpJge,
	ast.OpEqual:     ir.OpJe,
	ast.OpNotEqual:  ir.OpJne,
}

func (g *Context) generateOperator(node *ast.Node) (ir.Register, error) {
	switch node.Op {
	case ast.OpSin, ast.OpCos, ast.OpFloor, ast.OpSqrt, ast.OpDiff:
		return ir.NoRegister, fmt.Errorf("%s: %w: %s", node.Loc, ErrNotImplemented, node.Op)
	case ast.OpNot:
		return g.generateNot(node)
	case ast.OpAnd, ast.OpOr:
		return g.generateLogical(node)
	case ast.OpDiv:
		return g.generateDivision(node)
	}
	if op, ok := arithmetic[node.Op]; ok {
		l, r, err := g.operands(node)
		if err != nil {
			return ir.NoRegister, err
		}
		// l is overwritten in place.
		g.regs.Forget(l)
		if err := g.emit(ir.Op2(op, ir.Reg(l), ir.Reg(r))); err != nil {
			return ir.NoRegister, err
		}
		return l, g.regs.Free(r, g.emit)
	}
	if jcc, ok := relational[node.Op]; ok {
		return g.generateComparison(node, jcc)
	}
	return ir.NoRegister, fmt.Errorf("%s: %w: unknown operator %s", node.Loc, ErrBadStructure, node.Op)
}

func (g *Context) operands(node *ast.Node) (ir.Register, ir.Register, error) {
	if node.Left == nil || node.Right == nil {
		return ir.NoRegister, ir.NoRegister, fmt.Errorf("%s: %w: operator %s needs two operands", node.Loc, ErrNilNode, node.Op)
	}
	l, err := g.generateExpression(node.Left)
	if err != nil {
		return ir.NoRegister, ir.NoRegister, err
	}
	// l stays live while the right operand is evaluated.
	r, err := g.generatePinned(node.Right, l)
	if err != nil {
		return ir.NoRegister, ir.NoRegister, err
	}
	return l, r, nil
}

// materialize sets res to 1 when jcc is taken on the current flags. res must
// already hold 0.
func (g *Context) materialize(res ir.Register, jcc ir.Operator) error {
	taken, _, err := g.newBlock("true")
	if err != nil {
		return err
	}
	merge, _, err := g.newBlock("merge")
	if err != nil {
		return err
	}
	if err := g.branch(jcc, taken, merge); err != nil {
		return err
	}
	g.switchTo(taken)
	if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(res), ir.Imm(1))); err != nil {
		return err
	}
	if err := g.jump(merge); err != nil {
		return err
	}
	g.switchTo(merge)
	return nil
}

// zeroed allocates a register holding 0 without touching the flags.
func (g *Context) zeroed() (ir.Register, error) {
	res, err := g.allocate()
	if err != nil {
		return ir.NoRegister, err
	}
	return res, g.emit(ir.Op2(ir.OpMov, ir.Reg(res), ir.Imm(0)))
}

func (g *Context) generateComparison(node *ast.Node, jcc ir.Operator) (ir.Register, error) {
	l, r, err := g.operands(node)
	if err != nil {
		return ir.NoRegister, err
	}
	if err := g.emit(ir.Op2(ir.OpCmp, ir.Reg(l), ir.Reg(r))); err != nil {
		return ir.NoRegister, err
	}
	if err := g.regs.Free(r, g.emit); err != nil {
		return ir.NoRegister, err
	}
	if err := g.regs.Free(l, g.emit); err != nil {
		return ir.NoRegister, err
	}
	res, err := g.zeroed()
	if err != nil {
		return ir.NoRegister, err
	}
	return res, g.materialize(res, jcc)
}

func (g *Context) generateNot(node *ast.Node) (ir.Register, error) {
	if err := g.condition(node.Left); err != nil {
		return ir.NoRegister, err
	}
	res, err := g.zeroed()
	if err != nil {
		return ir.NoRegister, err
	}
	return res, g.materialize(res, ir.OpJe)
}

// generateLogical lowers && and || with short-circuit evaluation. Any nonzero
// operand counts as true.
func (g *Context) generateLogical(node *ast.Node) (ir.Register, error) {
	if node.Left == nil || node.Right == nil {
		return ir.NoRegister, fmt.Errorf("%s: %w: operator %s needs two operands", node.Loc, ErrNilNode, node.Op)
	}
	// Allocated up front so both paths agree on where the result lives.
	res, err := g.allocate()
	if err != nil {
		return ir.NoRegister, err
	}

	rhs, _, err := g.newBlock("rhs")
	if err != nil {
		return ir.NoRegister, err
	}
	isTrue, _, err := g.newBlock("true")
	if err != nil {
		return ir.NoRegister, err
	}
	isFalse, _, err := g.newBlock("false")
	if err != nil {
		return ir.NoRegister, err
	}
	merge, _, err := g.newBlock("merge")
	if err != nil {
		return ir.NoRegister, err
	}

	if err := g.condition(node.Left); err != nil {
		return ir.NoRegister, err
	}
	if node.Op == ast.OpAnd {
		err = g.branchZero(isFalse, rhs)
	} else {
		err = g.branchZero(rhs, isTrue)
	}
	if err != nil {
		return ir.NoRegister, err
	}

	g.switchTo(rhs)
	if err := g.condition(node.Right); err != nil {
		return ir.NoRegister, err
	}
	if err := g.branchZero(isFalse, isTrue); err != nil {
		return ir.NoRegister, err
	}

	for _, outcome := range []struct {
		block ir.BlockID
		value int64
	}{{isTrue, 1}, {isFalse, 0}} {
		g.switchTo(outcome.block)
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(res), ir.Imm(outcome.value))); err != nil {
			return ir.NoRegister, err
		}
		if err := g.jump(merge); err != nil {
			return ir.NoRegister, err
		}
	}
	g.switchTo(merge)
	return res, nil
}

/*
generateDivision lowers l / r with idiv, which takes its dividend in rdx:rax
and leaves the quotient in rax and the remainder in rdx:

 1. a divisor living in rax or rdx is copied elsewhere;
 2. busy rax/rdx that are not operands are pushed;
 3. mov rax, l; cqo; idiv r; mov l, rax;
 4. the saved registers are popped and the divisor released.

The quotient is returned in l's register.
*/
func (g *Context) generateDivision(node *ast.Node) (ir.Register, error) {
	l, r, err := g.operands(node)
	if err != nil {
		return ir.NoRegister, err
	}

	release := []ir.Register{r}
	if r == ir.RAX || r == ir.RDX {
		moved, err := g.regs.AllocateExcept(g.emit, ir.RAX, ir.RDX, l)
		if err != nil {
			return ir.NoRegister, err
		}
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(moved), ir.Reg(r))); err != nil {
			return ir.NoRegister, err
		}
		release = append(release, moved)
		r = moved
	}

	saved := []ir.Register{}
	for _, reg := range []ir.Register{ir.RAX, ir.RDX} {
		if reg != l && reg != r && g.regs.IsUsed(reg) {
			if err := g.emit(ir.Op1(ir.OpPush, ir.Reg(reg))); err != nil {
				return ir.NoRegister, err
			}
			saved = append(saved, reg)
		}
	}
	g.regs.Forget(ir.RAX)
	g.regs.Forget(ir.RDX)
	g.regs.Forget(l)

	if l != ir.RAX {
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(ir.RAX), ir.Reg(l))); err != nil {
			return ir.NoRegister, err
		}
	}
	if err := g.emitAll(ir.Op0(ir.OpCqo), ir.Op1(ir.OpDiv, ir.Reg(r))); err != nil {
		return ir.NoRegister, err
	}
	if l != ir.RAX {
		if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(l), ir.Reg(ir.RAX))); err != nil {
			return ir.NoRegister, err
		}
	}

	for _, reg := range slices.Backward(saved) {
		if err := g.emit(ir.Op1(ir.OpPop, ir.Reg(reg))); err != nil {
			return ir.NoRegister, err
		}
	}
	for _, reg := range slices.Backward(release) {
		if err := g.regs.Free(reg, g.emit); err != nil {
			return ir.NoRegister, err
		}
	}
	return l, nil
}
