package irgen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/toyc/toyc/internal/ast"
	"github.com/toyc/toyc/internal/ir"
	"github.com/toyc/toyc/internal/list"
)

var (
	ErrNilContext      = errors.New("nil generator context")
	ErrNilNode         = errors.New("nil AST node")
	ErrBadStructure    = errors.New("malformed program structure")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrUnknownFunction = errors.New("unknown function")
	ErrNotImplemented  = errors.New("operator not implemented")
)

// Runtime helpers appended to every program by the emitter.
const (
	PrintHelper = "toy_print"
	ReadHelper  = "toy_read"
	StartSymbol = "_start"
)

var runtimeHelpers = []string{PrintHelper, ReadHelper}

const initialBlocks = 16

type loop struct {
	cond  ir.BlockID
	merge ir.BlockID
}

// Context holds the state of one generation pass. It owns the IR it builds and
// the register allocator; the AST context stays owned by the caller.
type Context struct {
	ast   *ast.Context
	prog  *ir.IR
	regs  *ir.RegisterAllocator
	entry string

	// Function name -> dense index, assigned in program order by a pre-pass.
	funcs     map[ast.NameID]int
	functions []*ast.Node

	function   int
	returned   bool
	block      ir.BlockID
	locals     *ast.LocalTable
	nextOffset int
	frameSize  int
	loops      []loop
	// Registers read together with the value under evaluation. A spill must not
	// hand them out, or both operands would share one register.
	pinned []ir.Register

	nextLabelIndex int
}

func New(astCtx *ast.Context, entryName string) (*Context, error) {
	if astCtx == nil || astCtx.Names == nil {
		return nil, ErrNilContext
	}
	if entryName == "" {
		return nil, fmt.Errorf("%w: empty entry function name", ErrBadStructure)
	}
	return &Context{
		ast:            astCtx,
		regs:           ir.NewRegisterAllocator(),
		entry:          entryName,
		funcs:          make(map[ast.NameID]int),
		nextLabelIndex: 1,
	}, nil
}

// Generate lowers the whole program. The first error aborts the pass.
func (g *Context) Generate() (*ir.IR, error) {
	if g == nil {
		return nil, ErrNilContext
	}
	if err := g.collectFunctions(); err != nil {
		return nil, err
	}

	entryID, ok := g.ast.Names.Lookup(g.entry)
	if !ok {
		return nil, fmt.Errorf("%w: entry function %s", ErrUnknownFunction, g.entry)
	}
	if _, ok := g.funcs[entryID]; !ok {
		return nil, fmt.Errorf("%w: entry function %s", ErrUnknownFunction, g.entry)
	}

	blocks, err := list.New[*ir.BasicBlock](initialBlocks)
	if err != nil {
		return nil, err
	}
	entryBlock, err := ir.NewBasicBlock(g.entry, g.funcs[entryID])
	if err != nil {
		return nil, err
	}
	g.prog, err = ir.New(blocks, entryBlock)
	if err != nil {
		return nil, err
	}

	for index, fn := range g.functions {
		if err := g.generateFunction(index, fn); err != nil {
			g.prog.Destroy()
			return nil, err
		}
	}
	g.prog.Count()
	return g.prog, nil
}

// collectFunctions checks the program spine and numbers the functions.
func (g *Context) collectFunctions() error {
	root := g.ast.Root
	if root == nil || root.Kind != ast.KindSeparator {
		return fmt.Errorf("%w: program root must be a function sequence", ErrBadStructure)
	}
	g.functions = root.Items(ast.KindSeparator)
	for index, fn := range g.functions {
		if fn == nil || fn.Kind != ast.KindFunction {
			return fmt.Errorf("%w: program item %d is not a function definition", ErrBadStructure, index)
		}
		name := g.ast.Names.Name(fn.Name)
		if isReserved(name) {
			return fmt.Errorf("%s: %w: function name %s is reserved", fn.Loc, ErrBadStructure, name)
		}
		if _, exists := g.funcs[fn.Name]; exists {
			return fmt.Errorf("%s: %w: function %s redefined", fn.Loc, ErrBadStructure, name)
		}
		g.funcs[fn.Name] = index
	}
	return nil
}

func isReserved(name string) bool {
	if name == StartSymbol {
		return true
	}
	for _, helper := range runtimeHelpers {
		if name == helper {
			return true
		}
	}
	return false
}

// FunctionName resolves a call target index back to its symbol.
func (g *Context) FunctionName(index int) (string, error) {
	if g == nil {
		return "", ErrNilContext
	}
	for name, i := range g.funcs {
		if i == index {
			return g.ast.Names.Name(name), nil
		}
	}
	if helper := index - len(g.funcs); helper >= 0 && helper < len(runtimeHelpers) {
		return runtimeHelpers[helper], nil
	}
	return "", fmt.Errorf("%w: function index %d", ErrUnknownFunction, index)
}

func (g *Context) helperIndex(name string) int {
	for i, helper := range runtimeHelpers {
		if helper == name {
			return len(g.funcs) + i
		}
	}
	panic("unknown runtime helper " + name)
}

// allocate returns a register for a value that may become the result of the
// expression under evaluation.
func (g *Context) allocate(exclude ...ir.Register) (ir.Register, error) {
	return g.regs.AllocateExcept(g.emit, slices.Concat(exclude, g.pinned)...)
}

// generatePinned lowers node with pinned as the registers its result is read
// together with. The outer pinned set is restored afterwards.
func (g *Context) generatePinned(node *ast.Node, pinned ...ir.Register) (ir.Register, error) {
	outer := g.pinned
	g.pinned = pinned
	defer func() { g.pinned = outer }()
	return g.generateExpression(node)
}

func (g *Context) emit(inst ir.Instruction) error {
	b, err := g.prog.Block(g.block)
	if err != nil {
		return err
	}
	return b.Append(inst)
}

func (g *Context) emitAll(insts ...ir.Instruction) error {
	for _, inst := range insts {
		if err := g.emit(inst); err != nil {
			return err
		}
	}
	return nil
}

func (g *Context) functionName() string {
	return g.ast.Names.Name(g.functions[g.function].Name)
}

// newBlock appends a fresh block of the current function.
func (g *Context) newBlock(kind string) (ir.BlockID, string, error) {
	label := fmt.Sprintf("%s.%s%d", g.functionName(), kind, g.nextLabelIndex)
	g.nextLabelIndex++
	b, err := ir.NewBasicBlock(label, g.function)
	if err != nil {
		return list.Nil, "", err
	}
	id, err := g.prog.AddBlock(b)
	if err != nil {
		return list.Nil, "", err
	}
	return id, label, nil
}

// switchTo makes id the current block. Register contents are not known on entry
// to a block, so the variable cache is dropped.
func (g *Context) switchTo(id ir.BlockID) {
	g.block = id
	g.regs.ForgetAll()
}

func (g *Context) terminated() bool {
	b, err := g.prog.Block(g.block)
	return err == nil && b.Terminated()
}

// jump emits an unconditional jump from the current block and records the edge.
func (g *Context) jump(target ir.BlockID) error {
	b, err := g.prog.Block(target)
	if err != nil {
		return err
	}
	if err := g.emit(ir.Op1(ir.OpJmp, ir.LabelRef(b.Label))); err != nil {
		return err
	}
	return g.prog.Link(g.block, target)
}

// branch emits "jcc taken; jmp other" and records both edges.
func (g *Context) branch(jcc ir.Operator, taken, other ir.BlockID) error {
	b, err := g.prog.Block(taken)
	if err != nil {
		return err
	}
	if err := g.emit(ir.Op1(jcc, ir.LabelRef(b.Label))); err != nil {
		return err
	}
	if err := g.prog.Link(g.block, taken); err != nil {
		return err
	}
	return g.jump(other)
}

func (g *Context) generateFunction(index int, fn *ast.Node) error {
	g.function = index
	g.returned = false
	g.loops = nil
	g.pinned = nil
	g.regs.Reset()
	g.nextOffset = 0

	if index >= len(g.ast.Locals) || g.ast.Locals[index] == nil {
		return fmt.Errorf("%s: %w: no local table for function %s", fn.Loc, ErrBadStructure, g.functionName())
	}
	g.locals = g.ast.Locals[index]
	g.locals.Reset()
	g.frameSize = g.locals.Slots * ir.WordSize

	name := g.functionName()
	if name == g.entry {
		g.block = g.prog.Entry
	} else {
		b, err := ir.NewBasicBlock(name, index)
		if err != nil {
			return err
		}
		if g.block, err = g.prog.AddBlock(b); err != nil {
			return err
		}
	}
	g.regs.ForgetAll()

	reserve := g.frameSize
	if name == g.entry {
		// Return value slot of the entry function.
		reserve += ir.WordSize
	}
	if err := g.emitAll(
		ir.Op1(ir.OpPush, ir.Reg(ir.RBP)),
		ir.Op2(ir.OpMov, ir.Reg(ir.RBP), ir.Reg(ir.RSP)),
	); err != nil {
		return err
	}
	if reserve > 0 {
		if err := g.emit(ir.Op2(ir.OpSub, ir.Reg(ir.RSP), ir.Imm(int64(reserve)))); err != nil {
			return err
		}
	}

	if err := g.bindParameters(fn.Left.Items(ast.KindComma)); err != nil {
		return err
	}
	if err := g.generateStatements(fn.Right); err != nil {
		return err
	}

	// A return inside a branch does not end the function's last block.
	if g.returned && g.terminated() {
		return nil
	}
	return g.epilogue()
}

func (g *Context) epilogue() error {
	return g.emitAll(
		ir.Op2(ir.OpMov, ir.Reg(ir.RSP), ir.Reg(ir.RBP)),
		ir.Op1(ir.OpPop, ir.Reg(ir.RBP)),
		ir.Op0(ir.OpRet),
	)
}

// slot hands out the next stack slot of the current function.
func (g *Context) slot(node *ast.Node) (int, error) {
	offset := g.nextOffset + ir.WordSize
	if offset > g.frameSize {
		return 0, fmt.Errorf("%s: %w: function %s declares more than %d locals", node.Loc, ErrBadStructure, g.functionName(), g.locals.Slots)
	}
	g.nextOffset = offset
	g.locals.Bind(node.Name, offset)
	node.Offset = offset
	return offset, nil
}

func (g *Context) bindParameters(params []*ast.Node) error {
	for i, param := range params {
		if param == nil || param.Kind != ast.KindIdentifier {
			return fmt.Errorf("%w: parameter %d of %s is not an identifier", ErrBadStructure, i, g.functionName())
		}
		offset, err := g.slot(param)
		if err != nil {
			return err
		}
		home := ir.MemSub(ir.RBP, int64(offset))
		if i < ir.ArgRegisterCount {
			if err := g.emit(ir.Op2(ir.OpMov, home, ir.Reg(ir.ArgRegisters[i]))); err != nil {
				return err
			}
			continue
		}
		// Stack arguments sit above the return address and the saved frame pointer.
		// Register arguments are already copied, so any register will do.
		r, err := g.regs.Allocate(g.emit)
		if err != nil {
			return err
		}
		caller := ir.MemAdd(ir.RBP, int64(2*ir.WordSize+ir.WordSize*(i-ir.ArgRegisterCount)))
		if err := g.emitAll(
			ir.Op2(ir.OpMov, ir.Reg(r), caller),
			ir.Op2(ir.OpMov, home, ir.Reg(r)),
		); err != nil {
			return err
		}
		if err := g.regs.Free(r, g.emit); err != nil {
			return err
		}
	}
	return nil
}

func (g *Context) offsetOf(node *ast.Node) (int, error) {
	offset, ok := g.locals.Offset(node.Name)
	if !ok {
		return 0, fmt.Errorf("%s: %w %s", node.Loc, ErrUnknownVariable, g.ast.Names.Name(node.Name))
	}
	return offset, nil
}
