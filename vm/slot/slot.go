package slot

import (
	"fmt"
	"sync"
)

// Index names one slot in the swap file.
type Index uint32

// None terminates the free chain.
const None Index = ^Index(0)

// Valid reports whether i is not the sentinel.
func (i Index) Valid() bool { return i != None }

// Allocator is a LIFO free list over Total slots.
type Allocator struct {
	mu        sync.Mutex
	next      []Index
	allocated []bool
	head      Index
	free      uint32
}

// New returns an allocator with every slot free. Slots come out in
// ascending order until the first Free.
func New(total uint32) *Allocator {
	a := &Allocator{
		next:      make([]Index, total),
		allocated: make([]bool, total),
	}
	a.reset()
	return a
}

func (a *Allocator) reset() {
	total := uint32(len(a.next))
	for i := uint32(0); i < total; i++ {
		a.next[i] = Index(i + 1)
		a.allocated[i] = false
	}
	if total == 0 {
		a.head = None
	} else {
		a.next[total-1] = None
		a.head = 0
	}
	a.free = total
}

// Alloc pops the head of the free list.
func (a *Allocator) Alloc() (Index, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.free == 0 {
		return None, ErrNoSpace
	}
	idx := a.head
	a.head = a.next[idx]
	a.next[idx] = None
	a.allocated[idx] = true
	a.free--
	return idx, nil
}

// Free pushes idx onto the free list.
func (a *Allocator) Free(idx Index) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if uint64(idx) >= uint64(len(a.next)) {
		return fmt.Errorf("free %d (total %d): %w", idx, len(a.next), ErrBadIndex)
	}
	if !a.allocated[idx] {
		return fmt.Errorf("free %d: %w", idx, ErrDoubleFree)
	}
	a.allocated[idx] = false
	a.next[idx] = a.head
	a.head = idx
	a.free++
	return nil
}

// Allocated reports whether idx is currently handed out.
func (a *Allocator) Allocated(idx Index) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint64(idx) < uint64(len(a.allocated)) && a.allocated[idx]
}

// Total returns the number of slots managed.
func (a *Allocator) Total() uint32 { return uint32(len(a.next)) }

// FreeCount returns the number of free slots.
func (a *Allocator) FreeCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free
}

// InUse returns the number of allocated slots.
func (a *Allocator) InUse() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(len(a.next)) - a.free
}

// Head returns the first free slot, or None.
func (a *Allocator) Head() Index {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.head
}

// Walk calls fn for each slot on the free chain in list order, stopping
// early when fn returns false. The chain is copied under the lock and fn
// runs after it is released, so fn may call back into the allocator. The
// copy is bounded by Total so a corrupted cyclic chain cannot spin
// forever; Walk returns the number of steps taken.
func (a *Allocator) Walk(fn func(Index) bool) int {
	steps := 0
	for _, idx := range a.chain() {
		steps++
		if !fn(idx) {
			break
		}
	}
	return steps
}

func (a *Allocator) chain() []Index {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Index, 0, a.free)
	for idx := a.head; idx.Valid() && len(out) <= len(a.next); idx = a.next[idx] {
		if uint64(idx) >= uint64(len(a.next)) {
			break
		}
		out = append(out, idx)
	}
	return out
}
