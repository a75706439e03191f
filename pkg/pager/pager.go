package pager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/logger"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/evict"
	"github.com/joshuapare/pagekit/vm/fault"
	"github.com/joshuapare/pagekit/vm/stats"
	"github.com/joshuapare/pagekit/vm/store"
	"github.com/joshuapare/pagekit/vm/swaptable"
	"github.com/joshuapare/pagekit/vm/verify"
)

// ErrNotInitialized is returned by operations on a nil or shut-down Subsystem.
var ErrNotInitialized = &types.Error{Kind: types.ErrKindNotInitialized, Msg: "pager: not initialized"}

// Subsystem is an initialized paging subsystem.
type Subsystem struct {
	// mu is held shared by every operation and exclusively by Shutdown,
	// so shutdown waits for in-flight faults and eviction passes.
	mu     sync.RWMutex
	closed bool

	opts    Options
	store   *store.Store
	table   *swaptable.Table
	stats   *stats.Collector
	disp    *fault.Dispatcher
	scanner *evict.Scanner
}

// Init opens the swap file and wires the subsystem.
func Init(ctx context.Context, opts Options) (*Subsystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	policy := evict.PolicyByName(opts.Policy)
	if policy == nil {
		return nil, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("pager: unknown eviction policy %q", opts.Policy), nil)
	}
	if opts.Clock == nil {
		opts.Clock = &tickClock{}
	}

	table, err := swaptable.New(opts.UserStart, opts.UserEnd, uint64(opts.PageSize))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(opts.FS, opts.SwapPath, store.Options{
		PageSize: opts.PageSize,
		Size:     opts.SwapSize,
		FullSync: opts.FullSync,
	})
	if err != nil {
		return nil, err
	}

	collector := &stats.Collector{}
	disp, err := fault.New(fault.Config{
		Frames:     opts.Frames,
		PageTable:  opts.PageTable,
		Backing:    st,
		Slots:      st.Allocator(),
		Table:      table,
		Stats:      collector,
		Clock:      opts.Clock,
		KernelBase: opts.KernelBase,
	})
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	view := evict.TableView{Table: table, PageTable: opts.PageTable}
	s := &Subsystem{
		opts:    opts,
		store:   st,
		table:   table,
		stats:   collector,
		disp:    disp,
		scanner: evict.New(disp, view, policy, opts.EvictBatch),
	}

	hdr := st.Header()
	logger.L.InfoContext(ctx, "paging subsystem initialized",
		"swap", opts.SwapPath,
		"slots", hdr.TotalPages,
		"page_size", hdr.PageSize,
		"user_start", opts.UserStart,
		"user_end", opts.UserEnd,
		"policy", policy.Name(),
		"reopened", st.Reopened())
	return s, nil
}

// Shutdown flushes and closes the swap file and resets the counters. It
// waits for in-flight operations. Calling it again returns ErrNotInitialized.
func (s *Subsystem) Shutdown(ctx context.Context) error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotInitialized
	}
	s.closed = true

	final := s.stats.Snapshot()
	err := s.store.Close()
	s.stats.Reset()

	logger.L.InfoContext(ctx, "paging subsystem shut down",
		"faults", final.TotalFaults,
		"resolved", final.ResolvedFaults,
		"swap_ins", final.SwapIns,
		"swap_outs", final.SwapOuts,
		"slots_in_use", s.store.Allocator().InUse(),
		"err", err)
	return err
}

// HandlePageFault resolves a fault at addr raised with the hardware error
// code. A nil return means the access can be retried.
func (s *Subsystem) HandlePageFault(ctx context.Context, addr types.VAddr, code types.FaultCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotInitialized
	}
	_, err := s.disp.Handle(addr, code)
	return err
}

// HandleMemoryPressure runs one eviction pass and returns the number of
// pages written to swap. A failed pass is logged; the count is still
// accurate.
func (s *Subsystem) HandleMemoryPressure(ctx context.Context) int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	n, err := s.scanner.RunPass(ctx)
	if err != nil {
		logger.L.ErrorContext(ctx, "eviction pass failed", "evicted", n, "err", err)
	}
	return n
}

// Stats returns a snapshot of the counters. It is zero after Shutdown.
func (s *Subsystem) Stats() stats.Stats {
	if s == nil {
		return stats.Stats{}
	}
	return s.stats.Snapshot()
}

// DumpStats writes the counters in human-readable form.
func (s *Subsystem) DumpStats(w io.Writer) error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotInitialized
	}
	return stats.Dump(w, s.stats.Snapshot())
}

// Sync flushes swapped-out pages to stable storage.
func (s *Subsystem) Sync() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotInitialized
	}
	return s.store.Sync()
}

// Verify checks slot ownership between the allocator and the swap table.
// It is only meaningful while no fault or eviction is in flight.
func (s *Subsystem) Verify() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrNotInitialized
	}
	return verify.Slots(s.store.Allocator(), s.table)
}

// SwapHeader returns the header of the open swap file.
func (s *Subsystem) SwapHeader() (format.Header, error) {
	if s == nil {
		return format.Header{}, ErrNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return format.Header{}, ErrNotInitialized
	}
	return s.store.Header(), nil
}

// Usage reports swap slots in use and the slot capacity.
func (s *Subsystem) Usage() (inUse, total uint32) {
	if s == nil {
		return 0, 0
	}
	a := s.store.Allocator()
	return a.InUse(), a.Total()
}

// Policy returns the name of the active eviction policy.
func (s *Subsystem) Policy() string {
	if s == nil {
		return ""
	}
	return s.scanner.Policy().Name()
}

// tickClock is the default Clock: a counter advanced on every reading.
type tickClock struct {
	t atomic.Uint64
}

func (c *tickClock) Now() uint64 { return c.t.Add(1) }
