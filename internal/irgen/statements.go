package irgen

import (
	"fmt"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/ir"
)

// generateStatements lowers a separator spine. A nil body is empty.
func (g *Context) generateStatements(body *ast.Node) error {
	for node := body; node != nil; node = node.Right {
		if node.Kind != ast.KindSeparator {
			return fmt.Errorf("%s: %w: expected statement sequence, got %s", node.Loc, ErrBadStructure, node.Kind)
		}
		if err := g.generateStatement(node.Left); err != nil {
			return err
		}
	}
	return nil
}

func (g *Context) generateStatement(node *ast.Node) error {
	if node == nil {
		return ErrNilNode
	}
	switch node.Kind {
	case ast.KindSeparator:
		return g.generateStatements(node)
	case ast.KindVarDecl:
		return g.generateDeclaration(node)
	case ast.KindAssign:
		return g.generateAssignment(node)
	case ast.KindIf:
		return g.generateIf(node)
	case ast.KindWhile:
		return g.generateWhile(node)
	case ast.KindReturn:
		return g.generateReturn(node)
	case ast.KindCall:
		r, err := g.generateUserCall(node)
		if err != nil {
			return err
		}
		return g.regs.Free(r, g.emit)
	case ast.KindOut:
		return g.generateOut(node)
	case ast.KindBreak, ast.KindContinue:
		return g.generateLoopJump(node)
	case ast.KindAbort:
		return g.emitAll(
			ir.Op2(ir.OpMov, ir.Reg(ir.RAX), ir.Imm(sysExit)),
			ir.Op2(ir.OpMov, ir.Reg(ir.RDI), ir.Imm(1)),
			ir.Op0(ir.OpSyscall),
		)
	}
	return fmt.Errorf("%s: %w: %s is not a statement", node.Loc, ErrBadStructure, node.Kind)
}

const sysExit = 60

// store writes r into the variable's slot and makes r its cached home.
func (g *Context) store(v ast.NameID, offset int, r ir.Register) error {
	if err := g.emit(ir.Op2(ir.OpMov, ir.MemSub(ir.RBP, int64(offset)), ir.Reg(r))); err != nil {
		return err
	}
	return g.regs.Remember(ir.VarID(v), r, g.emit)
}

func (g *Context) generateDeclaration(node *ast.Node) error {
	var value ir.Register
	if node.Left != nil {
		// The initializer is evaluated before the name is bound, so "var x = x"
		// reads an outer x.
		r, err := g.generateExpression(node.Left)
		if err != nil {
			return err
		}
		value = r
	}
	g.regs.ForgetVar(ir.VarID(node.Name))
	offset, err := g.slot(node)
	if err != nil {
		return err
	}
	if node.Left == nil {
		return nil
	}
	return g.store(node.Name, offset, value)
}

func (g *Context) generateAssignment(node *ast.Node) error {
	target := node.Left
	if target == nil || target.Kind != ast.KindIdentifier {
		return fmt.Errorf("%s: %w: assignment target must be a variable", node.Loc, ErrBadStructure)
	}
	if node.Right == nil {
		return fmt.Errorf("%s: %w: assignment without a value", node.Loc, ErrNilNode)
	}
	offset, err := g.offsetOf(target)
	if err != nil {
		return err
	}
	r, err := g.generateExpression(node.Right)
	if err != nil {
		return err
	}
	g.regs.ForgetVar(ir.VarID(target.Name))
	return g.store(target.Name, offset, r)
}

// condition lowers a condition and compares it against zero.
func (g *Context) condition(node *ast.Node) error {
	if node == nil {
		return ErrNilNode
	}
	r, err := g.generateExpression(node)
	if err != nil {
		return err
	}
	if err := g.emit(ir.Op2(ir.OpCmp, ir.Reg(r), ir.Imm(0))); err != nil {
		return err
	}
	return g.regs.Free(r, g.emit)
}

func (g *Context) generateIf(node *ast.Node) error {
	if err := g.condition(node.Left); err != nil {
		return err
	}
	then, _, err := g.newBlock("then")
	if err != nil {
		return err
	}
	merge, _, err := g.newBlock("merge")
	if err != nil {
		return err
	}
	if err := g.branchZero(merge, then); err != nil {
		return err
	}

	g.switchTo(then)
	if err := g.generateStatements(node.Right); err != nil {
		return err
	}
	if !g.terminated() {
		if err := g.jump(merge); err != nil {
			return err
		}
	}
	g.switchTo(merge)
	return nil
}

// branchZero jumps to zero when the last comparison found equality and to
// nonzero otherwise. Edges are recorded nonzero first.
func (g *Context) branchZero(zero, nonzero ir.BlockID) error {
	zb, err := g.prog.Block(zero)
	if err != nil {
		return err
	}
	if err := g.emit(ir.Op1(ir.OpJe, ir.LabelRef(zb.Label))); err != nil {
		return err
	}
	if err := g.prog.Link(g.block, nonzero); err != nil {
		return err
	}
	if err := g.prog.Link(g.block, zero); err != nil {
		return err
	}
	nb, err := g.prog.Block(nonzero)
	if err != nil {
		return err
	}
	return g.emit(ir.Op1(ir.OpJmp, ir.LabelRef(nb.Label)))
}

func (g *Context) generateWhile(node *ast.Node) error {
	cond, _, err := g.newBlock("cond")
	if err != nil {
		return err
	}
	body, _, err := g.newBlock("body")
	if err != nil {
		return err
	}
	merge, _, err := g.newBlock("merge")
	if err != nil {
		return err
	}
	if err := g.jump(cond); err != nil {
		return err
	}

	g.switchTo(cond)
	if err := g.condition(node.Left); err != nil {
		return err
	}
	if err := g.branchZero(merge, body); err != nil {
		return err
	}

	g.switchTo(body)
	g.loops = append(g.loops, loop{cond: cond, merge: merge})
	if err := g.generateStatements(node.Right); err != nil {
		return err
	}
	g.loops = g.loops[:len(g.loops)-1]
	if !g.terminated() {
		if err := g.jump(cond); err != nil {
			return err
		}
	}
	g.switchTo(merge)
	return nil
}

func (g *Context) generateLoopJump(node *ast.Node) error {
	if len(g.loops) == 0 {
		return fmt.Errorf("%s: %w: %s outside of a loop", node.Loc, ErrBadStructure, node.Kind)
	}
	inner := g.loops[len(g.loops)-1]
	if node.Kind == ast.KindBreak {
		return g.jump(inner.merge)
	}
	return g.jump(inner.cond)
}

func (g *Context) generateReturn(node *ast.Node) error {
	g.returned = true
	if node.Left != nil {
		r, err := g.generateExpression(node.Left)
		if err != nil {
			return err
		}
		if r != ir.RAX {
			if err := g.emit(ir.Op2(ir.OpMov, ir.Reg(ir.RAX), ir.Reg(r))); err != nil {
				return err
			}
		}
		if err := g.regs.Free(r, g.emit); err != nil {
			return err
		}
	}
	return g.epilogue()
}

func (g *Context) generateOut(node *ast.Node) error {
	if node.Left == nil {
		return fmt.Errorf("%s: %w: out without a value", node.Loc, ErrNilNode)
	}
	r, err := g.generateCall(g.helperIndex(PrintHelper), []*ast.Node{node.Left})
	if err != nil {
		return err
	}
	return g.regs.Free(r, g.emit)
}
