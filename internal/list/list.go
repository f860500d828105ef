package list

import (
	"errors"
	"fmt"
	"iter"
)

/*
List is an index-based doubly linked list backed by three parallel slices.

Slot 0 is the sentinel: next[0] is the head and prev[0] is the tail, so an empty
list has next[0] == prev[0] == 0. Free slots are threaded through next[] starting at
the free head and carry prev[i] == freeMarker.

Handles stay valid for the lifetime of the element: growing appends slots and
shrinking only drops a trailing run of free slots.
*/

type Handle int

const (
	// Nil is the sentinel handle. It never refers to data.
	Nil Handle = 0

	freeMarker Handle = -1

	// Lists never shrink below this many slots.
	minCapacity = 8
)

var (
	ErrBadHandle  = errors.New("bad list handle")
	ErrBadPointer = errors.New("list is not initialized")
	ErrResize     = errors.New("list resize failed")
)

type List[T any] struct {
	data     []T
	next     []Handle
	prev     []Handle
	freeHead Handle
	size     int
}

// New allocates a list able to hold capacity elements before it has to grow.
func New[T any](capacity int) (*List[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity %d", ErrResize, capacity)
	}
	l := &List[T]{}
	l.data = make([]T, capacity+1)
	l.next = make([]Handle, capacity+1)
	l.prev = make([]Handle, capacity+1)
	l.rebuildFreeList()
	return l, nil
}

// Len returns the number of live elements.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return l.size
}

// Cap returns the number of slots including the sentinel.
func (l *List[T]) Cap() int {
	if l == nil {
		return 0
	}
	return len(l.data)
}

func (l *List[T]) Head() Handle {
	if l == nil || l.next == nil {
		return Nil
	}
	return l.next[0]
}

func (l *List[T]) Tail() Handle {
	if l == nil || l.prev == nil {
		return Nil
	}
	return l.prev[0]
}

// Next returns the handle following h, or Nil at the end of the list.
func (l *List[T]) Next(h Handle) Handle {
	if !l.live(h) {
		return Nil
	}
	return l.next[h]
}

// Prev returns the handle preceding h, or Nil at the start of the list.
func (l *List[T]) Prev(h Handle) Handle {
	if !l.live(h) {
		return Nil
	}
	return l.prev[h]
}

// InsertAfter links v after cursor. A Nil cursor inserts at the head.
func (l *List[T]) InsertAfter(cursor Handle, v T) (Handle, error) {
	if l == nil || l.data == nil {
		return Nil, ErrBadPointer
	}
	if cursor != Nil && !l.live(cursor) {
		return Nil, fmt.Errorf("%w: cursor %d", ErrBadHandle, cursor)
	}
	if l.size >= len(l.data)-1 {
		if err := l.resize(2 * len(l.data)); err != nil {
			return Nil, err
		}
	}

	slot := l.freeHead
	l.freeHead = l.next[slot]

	l.data[slot] = v
	l.prev[slot] = cursor
	l.next[slot] = l.next[cursor]
	l.prev[l.next[cursor]] = slot
	l.next[cursor] = slot
	l.size++
	return slot, nil
}

// PushBack appends v at the tail.
func (l *List[T]) PushBack(v T) (Handle, error) {
	if l == nil || l.data == nil {
		return Nil, ErrBadPointer
	}
	return l.InsertAfter(l.prev[0], v)
}

// Delete unlinks h and returns its slot to the free list.
func (l *List[T]) Delete(h Handle) error {
	if l == nil || l.data == nil {
		return ErrBadPointer
	}
	if !l.live(h) {
		return fmt.Errorf("%w: %d", ErrBadHandle, h)
	}

	l.next[l.prev[h]] = l.next[h]
	l.prev[l.next[h]] = l.prev[h]

	var zero T
	l.data[h] = zero
	l.prev[h] = freeMarker
	l.next[h] = l.freeHead
	l.freeHead = h
	l.size--

	if len(l.data) > minCapacity && l.size < (len(l.data)-1)/4 {
		l.shrink()
	}
	return nil
}

func (l *List[T]) Get(h Handle) (T, error) {
	var zero T
	if l == nil || l.data == nil {
		return zero, ErrBadPointer
	}
	if !l.live(h) {
		return zero, fmt.Errorf("%w: %d", ErrBadHandle, h)
	}
	return l.data[h], nil
}

func (l *List[T]) Set(h Handle, v T) error {
	if l == nil || l.data == nil {
		return ErrBadPointer
	}
	if !l.live(h) {
		return fmt.Errorf("%w: %d", ErrBadHandle, h)
	}
	l.data[h] = v
	return nil
}

// All iterates head to tail.
func (l *List[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		if l == nil || l.data == nil {
			return
		}
		for h := l.next[0]; h != Nil; h = l.next[h] {
			if !yield(h, l.data[h]) {
				return
			}
		}
	}
}

// Values iterates the stored values head to tail.
func (l *List[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range l.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Destroy releases the backing storage. The list is unusable afterwards.
func (l *List[T]) Destroy() {
	if l == nil {
		return
	}
	l.data = nil
	l.next = nil
	l.prev = nil
	l.freeHead = Nil
	l.size = 0
}

func (l *List[T]) live(h Handle) bool {
	return l != nil && l.data != nil && h > 0 && int(h) < len(l.data) && l.prev[h] != freeMarker
}

func (l *List[T]) resize(slots int) error {
	if slots <= len(l.data) {
		return fmt.Errorf("%w: cannot grow from %d to %d slots", ErrResize, len(l.data), slots)
	}
	old := len(l.data)
	l.data = append(l.data, make([]T, slots-old)...)
	l.next = append(l.next, make([]Handle, slots-old)...)
	l.prev = append(l.prev, make([]Handle, slots-old)...)
	// New slots go on the free list in ascending order.
	for i := slots - 1; i >= old; i-- {
		l.prev[i] = freeMarker
		l.next[i] = l.freeHead
		l.freeHead = Handle(i)
	}
	return nil
}

// shrink halves the slot count when every live slot fits below the new bound.
func (l *List[T]) shrink() {
	slots := len(l.data) / 2
	if slots < minCapacity {
		slots = minCapacity
	}
	if slots >= len(l.data) {
		return
	}
	for i := slots; i < len(l.data); i++ {
		if l.prev[i] != freeMarker {
			return
		}
	}
	l.data = l.data[:slots:slots]
	l.next = l.next[:slots:slots]
	l.prev = l.prev[:slots:slots]
	l.rebuildFreeList()
}

// rebuildFreeList threads every free slot (and initializes fresh ones) in ascending order.
func (l *List[T]) rebuildFreeList() {
	l.freeHead = Nil
	fresh := l.size == 0 && l.next[0] == Nil && l.prev[0] == Nil
	for i := len(l.data) - 1; i >= 1; i-- {
		if fresh {
			l.prev[i] = freeMarker
		}
		if l.prev[i] == freeMarker {
			l.next[i] = l.freeHead
			l.freeHead = Handle(i)
		}
	}
}
