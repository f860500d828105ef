package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/toyc/toyc/internal/list"
)

/*
Intermediate representation for toyc. This sits between the AST and NASM output.

A program is an ordered collection of basic blocks. Each block holds a list of
machine-level instructions over explicit x86-64 registers, immediates, stack
slots ([rbp - offset]), labels and function indices. Control flow between blocks
is explicit: every block that can be left through a jump records the targets as
successors, and the targets record it as a predecessor.

Blocks are emitted in collection order, so every transfer of control between
blocks is an explicit jump; nothing relies on fall-through.
*/

type IR struct {
	Blocks *list.List[*BasicBlock]
	Entry  BlockID
	// Derived from the blocks. Refreshed by Count().
	InstructionCount int
}

// New takes ownership of blocks and inserts entry as its first member.
func New(blocks *list.List[*BasicBlock], entry *BasicBlock) (*IR, error) {
	if blocks == nil {
		return nil, fmt.Errorf("%w: nil block collection", ErrNilIR)
	}
	if entry == nil {
		return nil, ErrNilBlock
	}
	id, err := blocks.InsertAfter(list.Nil, entry)
	if err != nil {
		return nil, err
	}
	return &IR{Blocks: blocks, Entry: id}, nil
}

// AddBlock appends b to the collection.
func (p *IR) AddBlock(b *BasicBlock) (BlockID, error) {
	if p == nil || p.Blocks == nil {
		return list.Nil, ErrNilIR
	}
	if b == nil {
		return list.Nil, ErrNilBlock
	}
	return p.Blocks.PushBack(b)
}

func (p *IR) Block(id BlockID) (*BasicBlock, error) {
	if p == nil || p.Blocks == nil {
		return nil, ErrNilIR
	}
	b, err := p.Blocks.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %w", ErrUnknownBlock, id, err)
	}
	return b, nil
}

// Link records a control-flow edge from -> to. Repeated edges are recorded once.
func (p *IR) Link(from, to BlockID) error {
	src, err := p.Block(from)
	if err != nil {
		return err
	}
	dst, err := p.Block(to)
	if err != nil {
		return err
	}
	if !contains(src.Successors, to) {
		if _, err := src.Successors.PushBack(to); err != nil {
			return err
		}
	}
	if !contains(dst.Predecessors, from) {
		if _, err := dst.Predecessors.PushBack(from); err != nil {
			return err
		}
	}
	return nil
}

// Count recomputes InstructionCount.
func (p *IR) Count() int {
	if p == nil {
		return 0
	}
	total := 0
	for b := range p.Blocks.Values() {
		total += b.Len()
	}
	p.InstructionCount = total
	return total
}

// Find returns the block with the given label.
func (p *IR) Find(label string) (BlockID, *BasicBlock, bool) {
	if p == nil {
		return list.Nil, nil, false
	}
	for id, b := range p.Blocks.All() {
		if b.Label == label {
			return id, b, true
		}
	}
	return list.Nil, nil, false
}

func (p *IR) Destroy() {
	if p == nil || p.Blocks == nil {
		return
	}
	for b := range p.Blocks.Values() {
		b.Destroy()
	}
	p.Blocks.Destroy()
	p.Blocks = nil
	p.Entry = list.Nil
	p.InstructionCount = 0
}

// Print dumps the IR in a human-readable form.
func (p *IR) Print(writer io.Writer) {
	if p == nil || p.Blocks == nil {
		fmt.Fprintf(writer, "<nil ir>\n")
		return
	}
	fmt.Fprintf(writer, "IR: %d blocks, %d instructions\n", p.Blocks.Len(), p.Count())
	for id, b := range p.Blocks.All() {
		entry := ""
		if id == p.Entry {
			entry = " (entry)"
		}
		fmt.Fprintf(writer, "Block %s%s [function %d]:\n", b.Label, entry, b.Function)
		fmt.Fprintf(writer, "  preds: %s\n", p.labels(b.PredecessorIDs()))
		fmt.Fprintf(writer, "  succs: %s\n", p.labels(b.SuccessorIDs()))
		i := 0
		for inst := range b.Instructions.Values() {
			fmt.Fprintf(writer, "%4d  %s\n", i, inst)
			i++
		}
	}
}

func (p *IR) labels(ids []BlockID) string {
	names := []string{}
	for _, id := range ids {
		b, err := p.Block(id)
		if err != nil {
			names = append(names, fmt.Sprintf("?%d", id))
			continue
		}
		names = append(names, b.Label)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
