package ir

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNoRegister = errors.New("no register available")
	ErrSpillOrder = errors.New("spilled register released out of order")
	ErrNoEmitter  = errors.New("register spill needs an instruction sink")
)

// VarID identifies a variable across the compilation unit.
type VarID int

// Emit receives instructions the allocator needs in the instruction stream
// (spill pushes and the matching restores).
type Emit func(Instruction) error

/*
RegisterAllocator hands out the 14 general purpose registers in table order.

A register is in one of three states:
  - free: not used and holding nothing of interest;
  - cached: not used, but known to hold the current value of one or more
    variables (see the variable-register cache);
  - used: owned by an expression under evaluation.

Allocation prefers free registers, then evicts cached ones (their values are
always in memory as well), and only then spills a register by pushing it,
caller-saved ones first. A spilled register is restored with a pop when it is
freed, so spills must be released in LIFO order. The previous owner must not be
read while the spill is outstanding; callers keep such registers in exclude.
*/
type RegisterAllocator struct {
	used        [NumRegisters]bool
	calleeSaved [NumRegisters]bool
	cache       map[VarID]Register
	spills      []Register
	// Bytes currently pushed by spills.
	StackOffset int
}

func NewRegisterAllocator() *RegisterAllocator {
	ra := &RegisterAllocator{cache: make(map[VarID]Register)}
	for i := range NumRegisters {
		ra.calleeSaved[i] = Register(i).CalleeSaved()
	}
	return ra
}

// Reset returns every register to the pool and clears the cache.
func (ra *RegisterAllocator) Reset() {
	ra.used = [NumRegisters]bool{}
	ra.cache = make(map[VarID]Register)
	ra.spills = nil
	ra.StackOffset = 0
}

func (ra *RegisterAllocator) Allocate(emit Emit) (Register, error) {
	return ra.AllocateExcept(emit)
}

// AllocateExcept allocates a register other than the excluded ones.
func (ra *RegisterAllocator) AllocateExcept(emit Emit, exclude ...Register) (Register, error) {
	if ra == nil {
		return NoRegister, ErrNilAllocator
	}
	for i := range NumRegisters {
		r := Register(i)
		if !ra.used[i] && !ra.caches(r) && !slices.Contains(exclude, r) {
			ra.used[i] = true
			return r, nil
		}
	}
	for i := range NumRegisters {
		r := Register(i)
		if !ra.used[i] && !slices.Contains(exclude, r) {
			ra.Forget(r)
			ra.used[i] = true
			return r, nil
		}
	}
	return ra.spill(emit, exclude)
}

// spill pushes the first caller-saved register outside exclude and hands it out
// again. Callee-saved registers are taken only when every caller-saved one is excluded.
func (ra *RegisterAllocator) spill(emit Emit, exclude []Register) (Register, error) {
	if emit == nil {
		return NoRegister, ErrNoEmitter
	}
	for _, calleeSaved := range []bool{false, true} {
		for i := range NumRegisters {
			r := Register(i)
			if ra.calleeSaved[i] != calleeSaved || slices.Contains(exclude, r) {
				continue
			}
			if err := emit(Op1(OpPush, Reg(r))); err != nil {
				return NoRegister, err
			}
			ra.Forget(r)
			ra.spills = append(ra.spills, r)
			ra.StackOffset += WordSize
			return r, nil
		}
	}
	return NoRegister, ErrNoRegister
}

// Free drops every cache entry that points at r and releases it. If r is the most
// recent spill, its previous value is popped back and r stays in use.
func (ra *RegisterAllocator) Free(r Register, emit Emit) error {
	if ra == nil {
		return ErrNilAllocator
	}
	if !inPool(r) {
		return nil
	}
	ra.Forget(r)
	if n := len(ra.spills); n > 0 && ra.spills[n-1] == r {
		if emit == nil {
			return ErrNoEmitter
		}
		ra.spills = ra.spills[:n-1]
		ra.StackOffset -= WordSize
		return emit(Op1(OpPop, Reg(r)))
	}
	if slices.Contains(ra.spills, r) {
		return fmt.Errorf("%w: %s", ErrSpillOrder, r)
	}
	ra.used[r] = false
	return nil
}

func (ra *RegisterAllocator) IsUsed(r Register) bool {
	return inPool(r) && ra.used[r]
}

func (ra *RegisterAllocator) IsSpilled(r Register) bool {
	return slices.Contains(ra.spills, r)
}

// Claim marks r as used without going through allocation.
func (ra *RegisterAllocator) Claim(r Register) {
	if inPool(r) {
		ra.used[r] = true
	}
}

// Live returns the used registers in table order.
func (ra *RegisterAllocator) Live() []Register {
	result := []Register{}
	for i := range NumRegisters {
		if ra.used[i] {
			result = append(result, Register(i))
		}
	}
	return result
}

// Lookup returns the register known to hold the current value of v.
func (ra *RegisterAllocator) Lookup(v VarID) (Register, bool) {
	r, ok := ra.cache[v]
	return r, ok
}

// Remember records r as the home of v's current value and releases r into the
// cached state. Spilled registers are restored instead of cached.
func (ra *RegisterAllocator) Remember(v VarID, r Register, emit Emit) error {
	if ra == nil {
		return ErrNilAllocator
	}
	if !inPool(r) {
		return nil
	}
	delete(ra.cache, v)
	if ra.IsSpilled(r) {
		return ra.Free(r, emit)
	}
	ra.cache[v] = r
	ra.used[r] = false
	return nil
}

// Forget invalidates every cache entry pointing at r. Called whenever r is written.
func (ra *RegisterAllocator) Forget(r Register) {
	for v, cached := range ra.cache {
		if cached == r {
			delete(ra.cache, v)
		}
	}
}

// ForgetVar drops the cache entry of v.
func (ra *RegisterAllocator) ForgetVar(v VarID) {
	delete(ra.cache, v)
}

func (ra *RegisterAllocator) ForgetAll() {
	clear(ra.cache)
}

// CacheSize returns the number of variables with a cached register.
func (ra *RegisterAllocator) CacheSize() int {
	return len(ra.cache)
}

func (ra *RegisterAllocator) caches(r Register) bool {
	for _, cached := range ra.cache {
		if cached == r {
			return true
		}
	}
	return false
}

func inPool(r Register) bool {
	return r >= 0 && r < NumRegisters
}
