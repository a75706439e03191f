package fault

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/joshuapare/pagekit/internal/testutil"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/memsim"
	"github.com/joshuapare/pagekit/vm/slot"
	"github.com/joshuapare/pagekit/vm/stats"
	"github.com/joshuapare/pagekit/vm/store"
	"github.com/joshuapare/pagekit/vm/swaptable"
	"github.com/joshuapare/pagekit/vm/verify"
)

const (
	pageSize   = 4096
	userStart  = types.VAddr(0x00400000)
	userEnd    = userStart + 64*pageSize
	kernelBase = types.VAddr(0xC0000000)

	readNotPresent  = types.FaultUser
	writeNotPresent = types.FaultUser | types.FaultWrite
	writePresent    = types.FaultUser | types.FaultWrite | types.FaultPresent
)

type DispatcherSuite struct {
	suite.Suite

	fs    *testutil.MemFS
	m     *memsim.Machine
	st    *store.Store
	table *swaptable.Table
	stats *stats.Collector
	d     *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.fs = testutil.NewMemFS()
	s.m = memsim.New(32, pageSize)

	var err error
	s.st, err = store.Open(s.fs, "swap", store.Options{PageSize: pageSize, Size: 16 * pageSize})
	s.Require().NoError(err)

	s.table, err = swaptable.New(userStart, userEnd, pageSize)
	s.Require().NoError(err)

	s.stats = &stats.Collector{}
	s.d, err = New(Config{
		Frames:     s.m,
		PageTable:  s.m,
		Backing:    s.st,
		Slots:      s.st.Allocator(),
		Table:      s.table,
		Stats:      s.stats,
		Clock:      &memsim.Clock{},
		KernelBase: kernelBase,
	})
	s.Require().NoError(err)
}

func (s *DispatcherSuite) TearDownTest() {
	s.Require().NoError(verify.Slots(s.st.Allocator(), s.table))
	s.Require().NoError(s.st.Close())
}

func (s *DispatcherSuite) page(n int) types.VAddr { return userStart + types.VAddr(n*pageSize) }

func (s *DispatcherSuite) index(v types.VAddr) swaptable.PageIndex {
	idx, err := s.table.Index(v)
	s.Require().NoError(err)
	return idx
}

func (s *DispatcherSuite) touch(v types.VAddr) {
	res, err := s.d.Handle(v, writeNotPresent)
	s.Require().NoError(err)
	s.Require().Equal(FirstTouch, res)
}

func (s *DispatcherSuite) TestNewRejectsIncompleteConfig() {
	_, err := New(Config{})
	s.Require().True(errors.Is(err, types.ErrInvalidArgument))

	_, err = New(Config{Frames: s.m, PageTable: s.m, Backing: s.st, Slots: slot.New(1), Table: s.table, Clock: &memsim.Clock{}})
	s.Require().ErrorContains(err, "kernel base")
}

func (s *DispatcherSuite) TestFirstTouchZeroesPage() {
	// Dirty a frame so a missing clear would show.
	f, err := s.m.AllocPage()
	s.Require().NoError(err)
	copy(s.m.Memory(f), testutil.Pattern(pageSize, 0x5A))
	s.m.FreePage(f)

	v := s.page(3) + 0x123
	res, err := s.d.Handle(v, readNotPresent)
	s.Require().NoError(err)
	s.Require().Equal(FirstTouch, res)

	data, ok := s.m.Load(s.page(3))
	s.Require().True(ok)
	s.Require().Equal(make([]byte, pageSize), data)

	_, flags, ok := s.m.Translate(s.page(3))
	s.Require().True(ok)
	s.True(flags.Has(types.PTEWritable | types.PTEUser))

	snap := s.stats.Snapshot()
	s.Equal(uint64(1), snap.TotalFaults)
	s.Equal(uint64(1), snap.ResolvedFaults)
	s.Equal(uint64(1), snap.FirstTouches)
}

func (s *DispatcherSuite) TestSwapRoundTrip() {
	v := s.page(5)
	s.touch(v)
	want := testutil.Pattern(pageSize, 0x11)
	s.Require().True(s.m.Store(v, want))

	s.Require().NoError(s.d.SwapOut(s.index(v)))
	_, _, mapped := s.m.Translate(v)
	s.Require().False(mapped)
	_, swapped := s.table.Get(s.index(v))
	s.Require().True(swapped)
	s.Equal(uint32(1), s.st.Allocator().InUse())
	s.Equal(s.m.Frames(), s.m.FreeFrames())

	code, ok := s.m.Probe(v, false, true)
	s.Require().False(ok)
	res, err := s.d.Handle(v, code)
	s.Require().NoError(err)
	s.Require().Equal(SwapIn, res)

	got, ok := s.m.Load(v)
	s.Require().True(ok)
	s.Equal(want, got)
	s.Equal(uint32(0), s.st.Allocator().InUse())
	_, swapped = s.table.Get(s.index(v))
	s.False(swapped)

	snap := s.stats.Snapshot()
	s.Equal(uint64(1), snap.SwapIns)
	s.Equal(uint64(1), snap.SwapOuts)
}

func (s *DispatcherSuite) TestCopyOnWrite() {
	src, dst := s.page(1), s.page(2)
	s.touch(src)
	want := testutil.Pattern(pageSize, 0x42)
	s.Require().True(s.m.Store(src, want))
	s.Require().NoError(s.m.ShareMapping(src, dst))

	shared, _, _ := s.m.Translate(dst)
	s.Require().Equal(2, s.m.Refs(shared))

	code, ok := s.m.Probe(dst, true, true)
	s.Require().False(ok)
	s.Require().Equal(writePresent, code)

	res, err := s.d.Handle(dst, code)
	s.Require().NoError(err)
	s.Require().Equal(CopyOnWrite, res)

	fresh, flags, ok := s.m.Translate(dst)
	s.Require().True(ok)
	s.NotEqual(shared, fresh)
	s.True(flags.Has(types.PTEWritable))
	s.Equal(1, s.m.Refs(shared))
	s.Equal(1, s.m.Refs(fresh))

	got, _ := s.m.Load(dst)
	s.Equal(want, got)

	// The other mapping still sees the original bytes after a write through dst.
	s.Require().True(s.m.Store(dst, []byte{0xFF}))
	orig, _ := s.m.Load(src)
	s.Equal(want, orig)

	s.Equal(uint64(1), s.stats.Snapshot().CopyOnWrites)
}

func (s *DispatcherSuite) TestCopyOnWriteLastReference() {
	v := s.page(4)
	s.touch(v)
	f, flags, _ := s.m.Translate(v)
	s.Require().NoError(s.m.Map(v, f, flags&^types.PTEWritable))

	res, err := s.d.Handle(v, writePresent)
	s.Require().NoError(err)
	s.Require().Equal(CopyOnWrite, res)

	// The old frame had one reference and went back to the pool.
	s.Equal(0, s.m.Refs(f))
	s.Equal(s.m.Frames()-1, s.m.FreeFrames())
}

func (s *DispatcherSuite) TestRejectedFaults() {
	tests := []struct {
		name string
		v    types.VAddr
		code types.FaultCode
		want error
	}{
		{"reserved bit", s.page(0), types.FaultUser | types.FaultReserved, ErrReservedBit},
		{"reserved on kernel address from user", kernelBase + pageSize, types.FaultUser | types.FaultReserved, ErrReservedBit},
		{"supervisor on kernel address", kernelBase + 0x10, 0, ErrKernelAccess},
		{"outside user range", userEnd, types.FaultUser, ErrOutsideUser},
		{"below user range", 0x1000, types.FaultUser, ErrOutsideUser},
		{"present read", s.page(0), types.FaultUser | types.FaultPresent, ErrUnhandled},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			res, err := s.d.Handle(tc.v, tc.code)
			s.Require().Error(err)
			s.Equal(Unresolved, res)
			s.True(errors.Is(err, tc.want), "got %v", err)
			s.True(errors.Is(err, types.ErrFault))
		})
	}
	s.Empty(s.m.Mapped())
	snap := s.stats.Snapshot()
	s.Equal(uint64(len(tests)), snap.TotalFaults)
	s.Equal(uint64(0), snap.ResolvedFaults)
}

func (s *DispatcherSuite) TestOutOfFrames() {
	s.m.FailAllocAfter(0)
	_, err := s.d.Handle(s.page(0), readNotPresent)
	s.Require().Error(err)
	s.True(errors.Is(err, types.ErrOutOfMemory))
	s.Empty(s.m.Mapped())
}

func (s *DispatcherSuite) TestSwapInReadFailureKeepsSlot() {
	v := s.page(7)
	s.touch(v)
	s.Require().NoError(s.d.SwapOut(s.index(v)))

	s.fs.File("swap").FailReadAfter(0)
	_, err := s.d.Handle(v, readNotPresent)
	s.Require().Error(err)
	s.True(errors.Is(err, types.ErrIO))

	// Still swapped, slot still owned, no frame leaked.
	_, swapped := s.table.Get(s.index(v))
	s.True(swapped)
	s.Equal(s.m.Frames(), s.m.FreeFrames())

	res, err := s.d.Handle(v, readNotPresent)
	s.Require().NoError(err)
	s.Equal(SwapIn, res)
}

func (s *DispatcherSuite) TestSwapOutWriteFailureKeepsPage() {
	v := s.page(8)
	s.touch(v)
	want := testutil.Pattern(pageSize, 0x08)
	s.m.Store(v, want)

	s.fs.File("swap").FailWriteAfter(0)
	err := s.d.SwapOut(s.index(v))
	s.Require().Error(err)
	s.True(types.Recoverable(err))

	got, ok := s.m.Load(v)
	s.Require().True(ok)
	s.Equal(want, got)
	_, ok = s.m.Probe(v, true, true)
	s.True(ok, "page must be writable again")
	s.Equal(uint32(0), s.st.Allocator().InUse())
	s.Equal(uint64(0), s.stats.Snapshot().SwapOuts)
}

// protectCheck records whether the page was writable while its frame was
// being copied to swap.
type protectCheck struct {
	Backing
	m        *memsim.Machine
	page     types.VAddr
	writable []bool
}

func (p *protectCheck) WriteSlot(idx slot.Index, src []byte) error {
	_, ok := p.m.Probe(p.page, true, true)
	p.writable = append(p.writable, ok)
	return p.Backing.WriteSlot(idx, src)
}

func (s *DispatcherSuite) TestSwapOutWriteProtectsDuringCopy() {
	v := s.page(11)
	s.touch(v)
	want := testutil.Pattern(pageSize, 0x0B)
	s.m.Store(v, want)

	check := &protectCheck{Backing: s.st, m: s.m, page: v}
	d, err := New(Config{
		Frames:     s.m,
		PageTable:  s.m,
		Backing:    check,
		Slots:      s.st.Allocator(),
		Table:      s.table,
		Stats:      s.stats,
		Clock:      &memsim.Clock{},
		KernelBase: kernelBase,
	})
	s.Require().NoError(err)
	s.Require().NoError(d.SwapOut(s.index(v)))
	s.Equal([]bool{false}, check.writable)

	// A store that trapped on the protected page resolves by swapping in.
	res, err := d.Handle(v, writePresent)
	s.Require().NoError(err)
	s.Equal(SwapIn, res)
	got, ok := s.m.Load(v)
	s.Require().True(ok)
	s.Equal(want, got)
}

func (s *DispatcherSuite) TestSwapOutSkips() {
	v := s.page(9)
	s.ErrorIs(s.d.SwapOut(s.index(v)), ErrNotResident)

	s.touch(v)
	idx := s.index(v)
	s.table.Acquire(idx)
	s.ErrorIs(s.d.SwapOut(idx), ErrPageBusy)
	s.table.Release(idx)

	s.Require().NoError(s.d.SwapOut(idx))
	s.ErrorIs(s.d.SwapOut(idx), ErrNotResident)
}

func (s *DispatcherSuite) TestSwapOutNoSpace() {
	for i := 0; i < 17; i++ {
		s.touch(s.page(i))
	}
	for i := 0; i < 16; i++ {
		s.Require().NoError(s.d.SwapOut(s.index(s.page(i))))
	}
	err := s.d.SwapOut(s.index(s.page(16)))
	s.Require().Error(err)
	s.True(errors.Is(err, slot.ErrNoSpace))
	s.True(errors.Is(err, types.ErrNoSpace))

	_, _, mapped := s.m.Translate(s.page(16))
	s.True(mapped)
}

func (s *DispatcherSuite) TestSpuriousWriteOnWritablePage() {
	v := s.page(10)
	s.touch(v)
	res, err := s.d.Handle(v, writePresent)
	s.Require().NoError(err)
	s.Equal(Spurious, res)
}

func (s *DispatcherSuite) TestConcurrentFaultsSamePage() {
	v := s.page(12)
	const workers = 16

	var wg sync.WaitGroup
	results := make([]Resolution, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.d.Handle(v+types.VAddr(i), readNotPresent)
		}(i)
	}
	wg.Wait()

	first := 0
	for i := range results {
		s.Require().NoError(errs[i])
		if results[i] == FirstTouch {
			first++
		} else {
			s.Equal(Spurious, results[i])
		}
	}
	s.Equal(1, first)
	s.Equal(s.m.Frames()-1, s.m.FreeFrames())

	snap := s.stats.Snapshot()
	s.Equal(uint64(workers), snap.TotalFaults)
	s.Equal(uint64(workers), snap.ResolvedFaults)
	s.Equal(uint64(workers-1), snap.Spurious)
}

func (s *DispatcherSuite) TestConcurrentFaultsAndEviction() {
	const pages = 12
	for i := 0; i < pages; i++ {
		s.touch(s.page(i))
		s.m.Store(s.page(i), testutil.Pattern(pageSize, byte(i)))
	}

	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for i := 0; i < pages; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				err := s.d.SwapOut(s.index(s.page(i)))
				if err != nil && !errors.Is(err, ErrPageBusy) && !errors.Is(err, ErrNotResident) {
					s.Fail("swap-out", "%v", err)
				}
			}(i)
			go func(i int) {
				defer wg.Done()
				if _, err := s.d.Handle(s.page(i), readNotPresent); err != nil {
					s.Fail("fault", "%v", err)
				}
			}(i)
		}
		wg.Wait()
	}

	for i := 0; i < pages; i++ {
		v := s.page(i)
		if _, _, ok := s.m.Translate(v); !ok {
			_, err := s.d.Handle(v, readNotPresent)
			s.Require().NoError(err)
		}
		got, _ := s.m.Load(v)
		s.Equal(testutil.Pattern(pageSize, byte(i)), got, "page %d", i)
	}
}

func TestResolutionString(t *testing.T) {
	for r, want := range map[Resolution]string{
		Unresolved:  "unresolved",
		FirstTouch:  "first-touch",
		SwapIn:      "swap-in",
		CopyOnWrite: "copy-on-write",
		Spurious:    "spurious",
	} {
		if got := r.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", r, got, want)
		}
	}
}
