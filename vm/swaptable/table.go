// Package swaptable maps virtual pages of the user address range to the swap
// slots that hold their contents while they are not resident.
//
// The table is one dense array covering [start, end) at page granularity, so
// its memory cost is proportional to the size of the user address range, not
// to the number of pages in use. A 3 GiB range of 4 KiB pages costs about
// 786k entries.
//
// Besides the slot mapping, every page has a transient busy flag (the
// Faulting state). A fault handler or the eviction scanner claims a page
// with Acquire/TryAcquire for the whole of its operation, so two faults on
// the same page, or a fault racing a swap-out of that page, serialize instead
// of double-allocating a frame or double-freeing a slot.
package swaptable

import (
	"fmt"
	"sync"

	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/slot"
)

// stripes is the number of lock stripes; entries hash to stripe idx % stripes.
const stripes = 64

// PageIndex is the position of a page within the table.
type PageIndex uint64

// Entry is the per-page record.
type Entry struct {
	Slot        slot.Index
	Swapped     bool   // Slot is owned by this page
	LastTouched uint64 // swap-out time, or last resolution time while resident
}

type stripe struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// Table is the dense page -> slot mapping.
type Table struct {
	start    types.VAddr
	end      types.VAddr
	pageSize uint64
	shift    uint

	entries []Entry
	busy    []bool
	locks   [stripes]stripe

	swappedMu sync.Mutex
	swapped   int
}

// New returns a table covering [start, end). Both bounds must be page-aligned.
func New(start, end types.VAddr, pageSize uint64) (*Table, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("swaptable: page size %d is not a power of two", pageSize), nil)
	}
	if end <= start || uint64(start)%pageSize != 0 || uint64(end)%pageSize != 0 {
		return nil, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("swaptable: bad range [%s, %s)", start, end), nil)
	}

	n := (uint64(end) - uint64(start)) / pageSize
	t := &Table{
		start:    start,
		end:      end,
		pageSize: pageSize,
		entries:  make([]Entry, n),
		busy:     make([]bool, n),
	}
	for s := pageSize; s > 1; s >>= 1 {
		t.shift++
	}
	for i := range t.locks {
		t.locks[i].cond = sync.NewCond(&t.locks[i].mu)
	}
	for i := range t.entries {
		t.entries[i].Slot = slot.None
	}
	return t, nil
}

// Len returns the number of pages covered.
func (t *Table) Len() int { return len(t.entries) }

// PageSize returns the page granularity.
func (t *Table) PageSize() uint64 { return t.pageSize }

// Contains reports whether v lies in the covered range.
func (t *Table) Contains(v types.VAddr) bool { return v >= t.start && v < t.end }

// Index derives the page index of v as (v - start) / page_size.
func (t *Table) Index(v types.VAddr) (PageIndex, error) {
	if !t.Contains(v) {
		return 0, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("swaptable: %s outside [%s, %s)", v, t.start, t.end), nil)
	}
	return PageIndex(uint64(v-t.start) >> t.shift), nil
}

// Addr returns the page-aligned virtual address of idx.
func (t *Table) Addr(idx PageIndex) types.VAddr {
	return t.start + types.VAddr(uint64(idx)<<t.shift)
}

func (t *Table) stripe(idx PageIndex) *stripe { return &t.locks[idx%stripes] }

func (t *Table) check(idx PageIndex) {
	if uint64(idx) >= uint64(len(t.entries)) {
		panic(fmt.Sprintf("swaptable: index %d out of range (len %d)", idx, len(t.entries)))
	}
}

// Get returns the slot owned by idx. ok is false when the page has no backing.
func (t *Table) Get(idx PageIndex) (s slot.Index, ok bool) {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	defer st.mu.Unlock()
	e := t.entries[idx]
	return e.Slot, e.Swapped
}

// Entry returns a copy of the record for idx.
func (t *Table) Entry(idx PageIndex) Entry {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	defer st.mu.Unlock()
	return t.entries[idx]
}

// Set records that idx now owns s, swapped out at now. It fails when idx
// already owns a slot; overwriting would leak that slot.
func (t *Table) Set(idx PageIndex, s slot.Index, now uint64) error {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	e := &t.entries[idx]
	if e.Swapped {
		st.mu.Unlock()
		return types.Errorf(types.ErrKindFault,
			fmt.Sprintf("swaptable: page %d already owns slot %d", idx, e.Slot), nil)
	}
	e.Slot, e.Swapped, e.LastTouched = s, true, now
	st.mu.Unlock()

	t.swappedMu.Lock()
	t.swapped++
	t.swappedMu.Unlock()
	return nil
}

// Clear drops idx's backing and timestamp and returns the slot it owned.
// The caller must return that slot to the allocator.
func (t *Table) Clear(idx PageIndex) (s slot.Index, ok bool) {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	e := &t.entries[idx]
	s, ok = e.Slot, e.Swapped
	*e = Entry{Slot: slot.None}
	st.mu.Unlock()

	if ok {
		t.swappedMu.Lock()
		t.swapped--
		t.swappedMu.Unlock()
	}
	return s, ok
}

// Touch stamps a resident page with now. It is a no-op for swapped pages,
// whose timestamp records the swap-out.
func (t *Table) Touch(idx PageIndex, now uint64) {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !t.entries[idx].Swapped {
		t.entries[idx].LastTouched = now
	}
}

// LastTouched returns idx's timestamp.
func (t *Table) LastTouched(idx PageIndex) uint64 {
	return t.Entry(idx).LastTouched
}

// Swapped returns the number of pages that currently own a slot.
func (t *Table) Swapped() int {
	t.swappedMu.Lock()
	defer t.swappedMu.Unlock()
	return t.swapped
}

// Range calls fn for every swapped page in ascending index order until fn
// returns false. Each entry is read under its stripe lock; the walk as a
// whole is not a snapshot.
func (t *Table) Range(fn func(idx PageIndex, e Entry) bool) {
	for i := range t.entries {
		idx := PageIndex(i)
		e := t.Entry(idx)
		if !e.Swapped {
			continue
		}
		if !fn(idx, e) {
			return
		}
	}
}

// Acquire claims idx, blocking while another goroutine holds it.
func (t *Table) Acquire(idx PageIndex) {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	for t.busy[idx] {
		st.cond.Wait()
	}
	t.busy[idx] = true
	st.mu.Unlock()
}

// TryAcquire claims idx only if it is not already claimed.
func (t *Table) TryAcquire(idx PageIndex) bool {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	defer st.mu.Unlock()
	if t.busy[idx] {
		return false
	}
	t.busy[idx] = true
	return true
}

// Release ends a claim taken with Acquire or TryAcquire.
func (t *Table) Release(idx PageIndex) {
	t.check(idx)
	st := t.stripe(idx)
	st.mu.Lock()
	if !t.busy[idx] {
		st.mu.Unlock()
		panic(fmt.Sprintf("swaptable: release of unclaimed page %d", idx))
	}
	t.busy[idx] = false
	st.mu.Unlock()
	st.cond.Broadcast()
}
