// Package evict selects resident pages to push to swap under memory pressure.
//
// A Scanner asks its Policy for candidates and hands each one to a Swapper
// until a batch quota of pages has actually been evicted or the candidates
// run out. Policies only rank pages; they never mutate anything.
//
// Two policies ship:
//
//   - Ascending walks the user range from its base upward and yields every
//     resident page that has no swap slot. This is the default and ignores
//     timestamps entirely.
//   - LRU yields resident pages oldest-first by the timestamp the fault
//     dispatcher records when it resolves a fault.
package evict

import (
	"iter"
	"sort"

	"github.com/joshuapare/pagekit/vm/swaptable"
)

// Residency is the read-only view a Policy ranks pages from.
type Residency interface {
	// Pages returns the number of page indices in the user range.
	Pages() int
	// Resident reports whether idx is backed by a physical frame.
	Resident(idx swaptable.PageIndex) bool
	// Swapped reports whether idx owns a swap slot.
	Swapped(idx swaptable.PageIndex) bool
	// LastTouched returns idx's timestamp.
	LastTouched(idx swaptable.PageIndex) uint64
}

// Policy yields eviction candidates in the order they should be tried.
type Policy interface {
	Name() string
	Candidates(r Residency) iter.Seq[swaptable.PageIndex]
}

// Ascending is the first-fit-by-ascending-address policy.
type Ascending struct{}

func (Ascending) Name() string { return "ascending" }

func (Ascending) Candidates(r Residency) iter.Seq[swaptable.PageIndex] {
	return func(yield func(swaptable.PageIndex) bool) {
		n := r.Pages()
		for i := 0; i < n; i++ {
			idx := swaptable.PageIndex(i)
			if !r.Resident(idx) || r.Swapped(idx) {
				continue
			}
			if !yield(idx) {
				return
			}
		}
	}
}

// LRU ranks resident pages by oldest LastTouched, ties broken by address.
type LRU struct{}

func (LRU) Name() string { return "lru" }

func (LRU) Candidates(r Residency) iter.Seq[swaptable.PageIndex] {
	return func(yield func(swaptable.PageIndex) bool) {
		type ranked struct {
			idx swaptable.PageIndex
			at  uint64
		}
		var pages []ranked
		n := r.Pages()
		for i := 0; i < n; i++ {
			idx := swaptable.PageIndex(i)
			if r.Resident(idx) && !r.Swapped(idx) {
				pages = append(pages, ranked{idx: idx, at: r.LastTouched(idx)})
			}
		}
		sort.SliceStable(pages, func(a, b int) bool { return pages[a].at < pages[b].at })
		for _, p := range pages {
			if !yield(p.idx) {
				return
			}
		}
	}
}

// PolicyByName returns the policy registered under name, or nil.
func PolicyByName(name string) Policy {
	switch name {
	case "", "ascending":
		return Ascending{}
	case "lru":
		return LRU{}
	default:
		return nil
	}
}
