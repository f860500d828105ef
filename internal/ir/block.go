package ir

import (
	"fmt"

	"github.com/toyc/toyc/internal/list"
)

// BlockID is a stable handle into IR.Blocks.
type BlockID = list.Handle

const blockCapacity = 10

// BasicBlock is a straight-line run of instructions. Successors and predecessors
// are relations by handle; the IR owns every block.
type BasicBlock struct {
	Label        string
	Function     int
	Instructions *list.List[Instruction]
	Successors   *list.List[BlockID]
	Predecessors *list.List[BlockID]
}

func NewBasicBlock(label string, function int) (*BasicBlock, error) {
	if label == "" {
		return nil, ErrNilLabel
	}
	instructions, err := list.New[Instruction](blockCapacity)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", label, err)
	}
	succs, err := list.New[BlockID](blockCapacity)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", label, err)
	}
	preds, err := list.New[BlockID](blockCapacity)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", label, err)
	}
	return &BasicBlock{
		Label:        label,
		Function:     function,
		Instructions: instructions,
		Successors:   succs,
		Predecessors: preds,
	}, nil
}

// Append adds an instruction at the end of the block.
func (b *BasicBlock) Append(inst Instruction) error {
	if b == nil || b.Instructions == nil {
		return ErrNilBlock
	}
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("block %s: %w", b.Label, err)
	}
	inst.Function = b.Function
	if _, err := b.Instructions.PushBack(inst); err != nil {
		return fmt.Errorf("block %s: %w", b.Label, err)
	}
	return nil
}

// Last returns the final instruction of the block.
func (b *BasicBlock) Last() (Instruction, bool) {
	if b == nil || b.Instructions.Len() == 0 {
		return Instruction{}, false
	}
	inst, err := b.Instructions.Get(b.Instructions.Tail())
	return inst, err == nil
}

// Terminated reports whether control cannot fall out of the end of the block.
func (b *BasicBlock) Terminated() bool {
	last, ok := b.Last()
	return ok && last.Op.Terminates()
}

func (b *BasicBlock) Len() int {
	if b == nil {
		return 0
	}
	return b.Instructions.Len()
}

// Code returns a copy of the instructions in execution order.
func (b *BasicBlock) Code() []Instruction {
	result := []Instruction{}
	if b == nil {
		return result
	}
	for inst := range b.Instructions.Values() {
		result = append(result, inst)
	}
	return result
}

func (b *BasicBlock) SuccessorIDs() []BlockID {
	return handles(b.Successors)
}

func (b *BasicBlock) PredecessorIDs() []BlockID {
	return handles(b.Predecessors)
}

func (b *BasicBlock) Destroy() {
	if b == nil {
		return
	}
	b.Instructions.Destroy()
	b.Successors.Destroy()
	b.Predecessors.Destroy()
	b.Label = ""
}

func handles(l *list.List[BlockID]) []BlockID {
	result := []BlockID{}
	for id := range l.Values() {
		result = append(result, id)
	}
	return result
}

func contains(l *list.List[BlockID], id BlockID) bool {
	for v := range l.Values() {
		if v == id {
			return true
		}
	}
	return false
}
