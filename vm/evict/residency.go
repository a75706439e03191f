package evict

import (
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/swaptable"
)

// TableView derives residency from a swap table and the page table behind it.
type TableView struct {
	Table     *swaptable.Table
	PageTable types.PageTable
}

func (v TableView) Pages() int { return v.Table.Len() }

func (v TableView) Resident(idx swaptable.PageIndex) bool {
	_, _, ok := v.PageTable.Translate(v.Table.Addr(idx))
	return ok
}

func (v TableView) Swapped(idx swaptable.PageIndex) bool {
	_, ok := v.Table.Get(idx)
	return ok
}

func (v TableView) LastTouched(idx swaptable.PageIndex) uint64 {
	return v.Table.LastTouched(idx)
}
