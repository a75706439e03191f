// Package slot provides swap-slot allocation for the paging subsystem.
//
// # Overview
//
// An Allocator hands out indices of fixed-size slots in the swap file. It is
// an index arena: next[i] holds the index of the free slot after i, head
// names the first free slot, and a sentinel terminates the chain. Alloc pops
// from head and Free pushes onto it, so both are O(1) and reuse is LIFO.
//
//	a := slot.New(1024)
//	idx, err := a.Alloc()
//	if errors.Is(err, types.ErrNoSpace) {
//	    // every slot is in use
//	}
//	_ = a.Free(idx)
//
// # Double Free
//
// The arena keeps an allocated bitmap alongside the links. Freeing a slot
// that is already free returns ErrDoubleFree and leaves the list untouched;
// pushing it twice would make the chain cyclic and hand the same slot to two
// owners.
//
// # Thread Safety
//
// Allocator is safe for concurrent use. Each Alloc and Free is one atomic
// step under the allocator's mutex.
package slot
