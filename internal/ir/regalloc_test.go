package ir

import (
	"errors"
	"reflect"
	"testing"
)

type sink struct {
	lines []Instruction
}

func (s *sink) emit(inst Instruction) error {
	s.lines = append(s.lines, inst)
	return nil
}

func TestAllocateTableOrder(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	expected := []Register{RAX, RBX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}
	got := []Register{}
	for range NumRegisters {
		r, err := ra.Allocate(s.emit)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		got = append(got, r)
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("allocation order = %v, want %v", got, expected)
	}
	if len(s.lines) != 0 {
		t.Errorf("expected no spill code, got %v", s.lines)
	}
}

func TestSpillWhenExhausted(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	for range NumRegisters {
		if _, err := ra.Allocate(s.emit); err != nil {
			t.Fatalf("Allocate: %v", err)
		}
	}

	for spill := 1; spill <= 3; spill++ {
		r, err := ra.Allocate(s.emit)
		if err != nil {
			t.Fatalf("spill %d: %v", spill, err)
		}
		if r.CalleeSaved() {
			t.Errorf("spill %d picked callee-saved register %s", spill, r)
		}
		if len(s.lines) != spill {
			t.Fatalf("spill %d: got %d instructions, want %d", spill, len(s.lines), spill)
		}
		last := s.lines[len(s.lines)-1]
		if last.Op != OpPush || !last.Args[0].IsReg(r) {
			t.Errorf("spill %d: got %s, want push %s", spill, last, r)
		}
		if ra.StackOffset != WordSize*spill {
			t.Errorf("spill %d: stack offset = %d, want %d", spill, ra.StackOffset, WordSize*spill)
		}
	}
}

func TestSpillRestoreOnFree(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	for range NumRegisters {
		ra.Allocate(s.emit)
	}
	r, _ := ra.Allocate(s.emit)
	if err := ra.Free(r, s.emit); err != nil {
		t.Fatalf("Free: %v", err)
	}
	last := s.lines[len(s.lines)-1]
	if last.Op != OpPop || !last.Args[0].IsReg(r) {
		t.Errorf("got %s, want pop %s", last, r)
	}
	if !ra.IsUsed(r) {
		t.Errorf("%s should still belong to its previous owner", r)
	}
	if ra.StackOffset != 0 {
		t.Errorf("stack offset = %d, want 0", ra.StackOffset)
	}
}

func TestSpillOrder(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	for range NumRegisters {
		ra.Allocate(s.emit)
	}
	first, _ := ra.Allocate(s.emit)
	second, _ := ra.AllocateExcept(s.emit, first)
	if first == second {
		t.Fatalf("AllocateExcept returned the excluded register %s", first)
	}
	if err := ra.Free(first, s.emit); !errors.Is(err, ErrSpillOrder) {
		t.Errorf("got %v, want ErrSpillOrder", err)
	}
}

func TestFreeReturnsRegisterToPool(t *testing.T) {
	ra := NewRegisterAllocator()
	r1, _ := ra.Allocate(nil)
	r2, _ := ra.Allocate(nil)
	if err := ra.Free(r1, nil); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if ra.IsUsed(r1) {
		t.Errorf("%s still marked used after Free", r1)
	}
	r3, _ := ra.Allocate(nil)
	if r3 != r1 {
		t.Errorf("expected %s to be reused, got %s", r1, r3)
	}
	if !ra.IsUsed(r2) {
		t.Errorf("%s should be untouched", r2)
	}
}

func TestFreePurgesCache(t *testing.T) {
	ra := NewRegisterAllocator()
	r, _ := ra.Allocate(nil)
	other, _ := ra.Allocate(nil)
	ra.Remember(1, r, nil)
	ra.Remember(2, r, nil)
	ra.Remember(3, other, nil)

	if err := ra.Free(r, nil); err != nil {
		t.Fatalf("Free: %v", err)
	}
	for _, v := range []VarID{1, 2} {
		if _, ok := ra.Lookup(v); ok {
			t.Errorf("variable %d still cached after freeing %s", v, r)
		}
	}
	if got, ok := ra.Lookup(3); !ok || got != other {
		t.Errorf("Lookup(3) = %s, %v; want %s", got, ok, other)
	}

	// Nothing cached in this register: no error, no effect.
	if err := ra.Free(R15, nil); err != nil {
		t.Errorf("Free(r15) = %v, want nil", err)
	}
}

func TestCachedRegistersAreEvictedLast(t *testing.T) {
	ra := NewRegisterAllocator()
	r, _ := ra.Allocate(nil)
	ra.Remember(7, r, nil)

	for i := 1; i < NumRegisters; i++ {
		got, _ := ra.Allocate(nil)
		if got == r {
			t.Fatalf("allocation %d evicted a cached register while free ones remain", i)
		}
	}
	got, err := ra.Allocate(nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != r {
		t.Errorf("expected cached register %s to be evicted, got %s", r, got)
	}
	if _, ok := ra.Lookup(7); ok {
		t.Errorf("evicted register is still cached")
	}
}

func TestSpillWithoutEmitter(t *testing.T) {
	ra := NewRegisterAllocator()
	for range NumRegisters {
		ra.Allocate(nil)
	}
	if _, err := ra.Allocate(nil); !errors.Is(err, ErrNoEmitter) {
		t.Errorf("got %v, want ErrNoEmitter", err)
	}
}

func TestNilAllocator(t *testing.T) {
	var ra *RegisterAllocator
	if _, err := ra.Allocate(nil); !errors.Is(err, ErrNilAllocator) {
		t.Errorf("got %v, want ErrNilAllocator", err)
	}
	if err := ra.Free(RAX, nil); !errors.Is(err, ErrNilAllocator) {
		t.Errorf("got %v, want ErrNilAllocator", err)
	}
}

func TestSpillRespectsExclude(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	for range NumRegisters {
		ra.Allocate(s.emit)
	}
	first, err := ra.AllocateExcept(s.emit)
	if err != nil {
		t.Fatalf("AllocateExcept: %v", err)
	}
	second, err := ra.AllocateExcept(s.emit, first)
	if err != nil {
		t.Fatalf("AllocateExcept: %v", err)
	}
	if first == second {
		t.Errorf("spill handed out excluded register %s", first)
	}
	if first != RAX || second != RCX {
		t.Errorf("spilled %s then %s, want rax then rcx", first, second)
	}
}

func TestSpillFallsBackToCalleeSaved(t *testing.T) {
	ra := NewRegisterAllocator()
	s := &sink{}
	callerSaved := []Register{}
	for range NumRegisters {
		r, _ := ra.Allocate(s.emit)
		if !r.CalleeSaved() {
			callerSaved = append(callerSaved, r)
		}
	}
	r, err := ra.AllocateExcept(s.emit, callerSaved...)
	if err != nil {
		t.Fatalf("AllocateExcept: %v", err)
	}
	if r != RBX {
		t.Errorf("got %s, want rbx", r)
	}
	if err := ra.Free(r, s.emit); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if last := s.lines[len(s.lines)-1]; last.Op != OpPop || !last.Args[0].IsReg(RBX) {
		t.Errorf("got %s, want pop rbx", last)
	}

	all := append(callerSaved, RBX, R12, R13, R14, R15)
	if _, err := ra.AllocateExcept(s.emit, all...); !errors.Is(err, ErrNoRegister) {
		t.Errorf("got %v, want ErrNoRegister", err)
	}
}
