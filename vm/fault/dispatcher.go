package fault

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/logger"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/cow"
	"github.com/joshuapare/pagekit/vm/slot"
	"github.com/joshuapare/pagekit/vm/stats"
	"github.com/joshuapare/pagekit/vm/swaptable"
)

// Backing moves page contents to and from swap slots.
type Backing interface {
	ReadSlot(idx slot.Index, p []byte) error
	WriteSlot(idx slot.Index, p []byte) error
}

// Resolution names the branch that resolved a fault.
type Resolution int

const (
	Unresolved Resolution = iota
	FirstTouch
	SwapIn
	CopyOnWrite
	// Spurious means a concurrent fault on the same page resolved it first.
	Spurious
)

func (r Resolution) String() string {
	switch r {
	case FirstTouch:
		return "first-touch"
	case SwapIn:
		return "swap-in"
	case CopyOnWrite:
		return "copy-on-write"
	case Spurious:
		return "spurious"
	default:
		return "unresolved"
	}
}

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Frames     types.FrameAllocator
	PageTable  types.PageTable
	Backing    Backing
	Slots      *slot.Allocator
	Table      *swaptable.Table
	Stats      *stats.Collector
	Clock      types.Clock
	KernelBase types.VAddr // first kernel-space address
}

// Dispatcher resolves page faults.
type Dispatcher struct {
	frames     types.FrameAllocator
	pt         types.PageTable
	backing    Backing
	slots      *slot.Allocator
	table      *swaptable.Table
	stats      *stats.Collector
	clock      types.Clock
	cow        *cow.Resolver
	kernelBase types.VAddr
}

// New validates cfg and returns a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	switch {
	case cfg.Frames == nil, cfg.PageTable == nil, cfg.Backing == nil,
		cfg.Slots == nil, cfg.Table == nil, cfg.Clock == nil:
		return nil, types.Errorf(types.ErrKindInvalidArgument, "fault: incomplete dispatcher config", nil)
	case cfg.KernelBase == 0:
		return nil, types.Errorf(types.ErrKindInvalidArgument, "fault: kernel base not set", nil)
	}
	st := cfg.Stats
	if st == nil {
		st = &stats.Collector{}
	}
	return &Dispatcher{
		frames:     cfg.Frames,
		pt:         cfg.PageTable,
		backing:    cfg.Backing,
		slots:      cfg.Slots,
		table:      cfg.Table,
		stats:      st,
		clock:      cfg.Clock,
		cow:        cow.New(cfg.Frames),
		kernelBase: cfg.KernelBase,
	}, nil
}

// Stats returns the collector the dispatcher reports into.
func (d *Dispatcher) Stats() *stats.Collector { return d.stats }

// Handle resolves a fault at v with hardware error code code. It either
// resolves the fault completely or returns an error that is fatal to the
// faulting context; nothing is retried internally.
func (d *Dispatcher) Handle(v types.VAddr, code types.FaultCode) (Resolution, error) {
	d.stats.Fault()

	res, err := d.handle(v, code)
	if err != nil {
		logger.With("fault").Debug("fault unresolved", "addr", v, "code", code, "err", err)
		return Unresolved, fmt.Errorf("page fault at %s [%s]: %w", v, code, err)
	}
	switch res {
	case FirstTouch:
		d.stats.FirstTouch()
	case SwapIn:
		d.stats.SwapIn()
	case CopyOnWrite:
		d.stats.CopyOnWrite()
	case Spurious:
		d.stats.Spurious()
	}
	return res, nil
}

func (d *Dispatcher) handle(v types.VAddr, code types.FaultCode) (Resolution, error) {
	user := code.Has(types.FaultUser)

	if !user && v >= d.kernelBase {
		return Unresolved, ErrKernelAccess
	}
	if code.Has(types.FaultReserved) {
		return Unresolved, ErrReservedBit
	}
	if !d.table.Contains(v) {
		return Unresolved, ErrOutsideUser
	}

	idx, err := d.table.Index(v)
	if err != nil {
		return Unresolved, err
	}
	page := d.table.Addr(idx)

	d.table.Acquire(idx)
	defer d.table.Release(idx)

	frame, flags, mapped := d.pt.Translate(page)

	if !code.Has(types.FaultPresent) {
		if mapped {
			return Spurious, nil
		}
		if s, swapped := d.table.Get(idx); swapped {
			return SwapIn, d.swapIn(idx, page, s, user)
		}
		return FirstTouch, d.firstTouch(idx, page, user)
	}

	if code.Has(types.FaultWrite) {
		switch {
		case !mapped:
			// Evicted between the trap and the claim; the PRESENT bit is stale.
			if s, swapped := d.table.Get(idx); swapped {
				return SwapIn, d.swapIn(idx, page, s, user)
			}
			return Unresolved, ErrUnhandled
		case !flags.Has(types.PTEWritable):
			return CopyOnWrite, d.copyOnWrite(idx, page, frame, flags)
		case !user || flags.Has(types.PTEUser):
			return Spurious, nil
		}
	}
	return Unresolved, ErrUnhandled
}

func accessFlags(user bool) types.PTEFlags {
	f := types.PTEPresent | types.PTEWritable
	if user {
		f |= types.PTEUser
	}
	return f
}

func (d *Dispatcher) allocFrame() (types.Frame, error) {
	f, err := d.frames.AllocPage()
	if err != nil {
		if _, typed := types.KindOf(err); typed {
			return types.NoFrame, err
		}
		return types.NoFrame, types.Errorf(types.ErrKindOutOfMemory, "fault: alloc frame", err)
	}
	return f, nil
}

func (d *Dispatcher) firstTouch(idx swaptable.PageIndex, page types.VAddr, user bool) error {
	f, err := d.allocFrame()
	if err != nil {
		return err
	}
	clear(d.frames.Memory(f))
	if err := d.pt.Map(page, f, accessFlags(user)); err != nil {
		d.frames.FreePage(f)
		return fmt.Errorf("map %s: %w", page, err)
	}
	d.table.Touch(idx, d.clock.Now())
	return nil
}

func (d *Dispatcher) swapIn(idx swaptable.PageIndex, page types.VAddr, s slot.Index, user bool) error {
	f, err := d.allocFrame()
	if err != nil {
		return err
	}
	if err := d.backing.ReadSlot(s, d.frames.Memory(f)); err != nil {
		d.frames.FreePage(f)
		return err
	}
	if err := d.pt.Map(page, f, accessFlags(user)); err != nil {
		d.frames.FreePage(f)
		return fmt.Errorf("map %s: %w", page, err)
	}

	owned, _ := d.table.Clear(idx)
	if err := d.slots.Free(owned); err != nil {
		// The table said idx owned the slot; the allocator disagrees.
		logger.With("fault").Error("slot ownership mismatch on swap-in",
			"page", idx, "slot", owned, "err", err)
		return err
	}
	d.table.Touch(idx, d.clock.Now())
	logger.With("fault").Debug("swapped in", "page", idx, "slot", s, "frame", f)
	return nil
}

func (d *Dispatcher) copyOnWrite(idx swaptable.PageIndex, page types.VAddr, old types.Frame, flags types.PTEFlags) error {
	fresh, err := d.allocFrame()
	if err != nil {
		return err
	}
	if err := d.cow.Copy(fresh, old); err != nil {
		d.frames.FreePage(fresh)
		return err
	}
	if err := d.pt.Map(page, fresh, flags|types.PTEPresent|types.PTEWritable); err != nil {
		d.frames.FreePage(fresh)
		return fmt.Errorf("remap %s: %w", page, err)
	}
	remaining := d.cow.Release(old)
	d.table.Touch(idx, d.clock.Now())
	logger.With("fault").Debug("copy-on-write", "page", idx, "old", old, "new", fresh, "old_refs", remaining)
	return nil
}

// SwapOut pushes the resident page idx to swap: allocate a slot,
// write-protect the page, write the frame, record the slot, unmap, release
// the frame. It returns ErrPageBusy without blocking when a fault holds the
// page, and ErrNotResident when there is nothing to evict. On failure the
// page stays resident with its original protection.
func (d *Dispatcher) SwapOut(idx swaptable.PageIndex) error {
	if !d.table.TryAcquire(idx) {
		return ErrPageBusy
	}
	defer d.table.Release(idx)

	page := d.table.Addr(idx)
	if _, swapped := d.table.Get(idx); swapped {
		return ErrNotResident
	}
	frame, flags, mapped := d.pt.Translate(page)
	if !mapped {
		return ErrNotResident
	}

	s, err := d.slots.Alloc()
	if err != nil {
		return err
	}
	// A store after the copy would be lost; from here on writes fault and
	// wait on the page claim, then find the page swapped.
	if flags.Has(types.PTEWritable) {
		if err := d.pt.Map(page, frame, flags&^types.PTEWritable); err != nil {
			d.freeSlot(s)
			return fmt.Errorf("write-protect %s: %w", page, err)
		}
	}
	if err := d.backing.WriteSlot(s, d.frames.Memory(frame)); err != nil {
		d.restore(page, frame, flags)
		d.freeSlot(s)
		return err
	}
	if err := d.table.Set(idx, s, d.clock.Now()); err != nil {
		d.restore(page, frame, flags)
		d.freeSlot(s)
		return err
	}
	if err := d.pt.Unmap(page); err != nil {
		d.table.Clear(idx)
		d.restore(page, frame, flags)
		d.freeSlot(s)
		return fmt.Errorf("unmap %s: %w", page, err)
	}
	d.frames.Release(frame)
	d.stats.SwapOut()
	logger.With("fault").Debug("swapped out", "page", idx, "slot", s, "frame", frame)
	return nil
}

func (d *Dispatcher) restore(page types.VAddr, frame types.Frame, flags types.PTEFlags) {
	if !flags.Has(types.PTEWritable) {
		return
	}
	if err := d.pt.Map(page, frame, flags); err != nil {
		logger.With("fault").Error("restoring protection after failed swap-out", "page", page, "err", err)
	}
}

func (d *Dispatcher) freeSlot(s slot.Index) {
	if err := d.slots.Free(s); err != nil {
		logger.With("fault").Error("returning slot after failed swap-out", "slot", s, "err", err)
	}
}
