// Package verify checks the cross-component invariants of the paging
// subsystem: every swap slot is either on the free list or owned by exactly
// one swap-table entry, and the on-disk header agrees with the file length.
// Tests call it after every scenario; swapctl calls it on demand.
package verify

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/vm/slot"
	"github.com/joshuapare/pagekit/vm/swaptable"
)

// ValidationError describes the first broken invariant found.
type ValidationError struct {
	Type    string
	Message string
	Slot    int64 // -1 when not about one slot
}

func (e *ValidationError) Error() string {
	if e.Slot >= 0 {
		return fmt.Sprintf("%s at slot %d: %s", e.Type, e.Slot, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Slots validates slot ownership between the allocator and the table.
func Slots(a *slot.Allocator, t *swaptable.Table) error {
	total := a.Total()
	onFree := make([]bool, total)

	var walkErr error
	steps := a.Walk(func(idx slot.Index) bool {
		if onFree[idx] {
			walkErr = &ValidationError{Type: "FreeList", Message: "reached twice (cycle)", Slot: int64(idx)}
			return false
		}
		if a.Allocated(idx) {
			walkErr = &ValidationError{Type: "FreeList", Message: "allocated slot on free list", Slot: int64(idx)}
			return false
		}
		onFree[idx] = true
		return true
	})
	if walkErr != nil {
		return walkErr
	}
	if free := a.FreeCount(); uint32(steps) != free {
		return &ValidationError{
			Type:    "FreeList",
			Message: fmt.Sprintf("chain has %d slots, free count is %d", steps, free),
			Slot:    -1,
		}
	}

	owner := make(map[slot.Index]swaptable.PageIndex)
	var ownErr error
	t.Range(func(page swaptable.PageIndex, e swaptable.Entry) bool {
		switch {
		case uint64(e.Slot) >= uint64(total):
			ownErr = &ValidationError{Type: "SwapTable",
				Message: fmt.Sprintf("page %d owns out-of-range slot", page), Slot: int64(e.Slot)}
		case onFree[e.Slot]:
			ownErr = &ValidationError{Type: "Ownership",
				Message: fmt.Sprintf("page %d owns a free slot", page), Slot: int64(e.Slot)}
		default:
			if prev, dup := owner[e.Slot]; dup {
				ownErr = &ValidationError{Type: "Ownership",
					Message: fmt.Sprintf("owned by pages %d and %d", prev, page), Slot: int64(e.Slot)}
			}
		}
		if ownErr != nil {
			return false
		}
		owner[e.Slot] = page
		return true
	})
	if ownErr != nil {
		return ownErr
	}

	for i := uint32(0); i < total; i++ {
		idx := slot.Index(i)
		if _, owned := owner[idx]; !owned && !onFree[i] {
			return &ValidationError{Type: "Ownership", Message: "in use but owned by no page", Slot: int64(i)}
		}
	}

	if free, swapped := a.FreeCount(), t.Swapped(); uint64(free)+uint64(swapped) != uint64(total) {
		return &ValidationError{
			Type:    "Count",
			Message: fmt.Sprintf("free %d + swapped %d != total %d", free, swapped, total),
			Slot:    -1,
		}
	}
	return nil
}

// Header validates a swap file image: header fields and declared length.
func Header(data []byte) error {
	h, err := format.ParseHeader(data)
	if err != nil {
		return &ValidationError{Type: "Header", Message: err.Error(), Slot: -1}
	}
	if want := h.FileSize(); int64(len(data)) < want {
		return &ValidationError{
			Type:    "FileSize",
			Message: fmt.Sprintf("file is %d bytes, header declares %d", len(data), want),
			Slot:    -1,
		}
	}
	if got := format.SlotsInFile(int64(len(data)), h.PageSize); got != h.TotalPages {
		return &ValidationError{
			Type:    "FileSize",
			Message: fmt.Sprintf("file holds %d slots, header declares %d", got, h.TotalPages),
			Slot:    -1,
		}
	}
	if h.UsedPages > h.TotalPages {
		return &ValidationError{
			Type:    "Header",
			Message: fmt.Sprintf("used count %d exceeds total %d", h.UsedPages, h.TotalPages),
			Slot:    -1,
		}
	}
	if h.FreeHead != format.NoSlot && h.FreeHead >= h.TotalPages {
		return &ValidationError{Type: "Header", Message: "free-list head out of range", Slot: int64(h.FreeHead)}
	}
	return nil
}
