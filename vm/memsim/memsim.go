// Package memsim is a simulated machine for the paging subsystem: a fixed
// pool of physical frames with reference counts, a single-level page table,
// and an MMU probe that reports the fault code a real CPU would raise.
//
// It satisfies types.FrameAllocator and types.PageTable, and backs both the
// package tests and `swapctl simulate`.
package memsim

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/pagekit/pkg/types"
)

type pte struct {
	frame types.Frame
	flags types.PTEFlags
}

// Machine is the simulated physical memory and page table.
type Machine struct {
	mu       sync.Mutex
	pageSize uint64
	mem      []byte
	refs     []int
	free     []types.Frame
	ptes     map[types.VAddr]pte

	allocFailAt int // fail the allocation after this many more; -1 disarmed
}

// New returns a machine with frames physical frames of pageSize bytes.
func New(frames int, pageSize uint64) *Machine {
	m := &Machine{
		pageSize:    pageSize,
		mem:         make([]byte, uint64(frames)*pageSize),
		refs:        make([]int, frames),
		free:        make([]types.Frame, 0, frames),
		ptes:        make(map[types.VAddr]pte),
		allocFailAt: -1,
	}
	// Hand out low frames first.
	for f := frames - 1; f >= 0; f-- {
		m.free = append(m.free, types.Frame(f))
	}
	return m
}

// PageSize returns the frame size.
func (m *Machine) PageSize() uint64 { return m.pageSize }

// FailAllocAfter makes the allocation following n successful ones fail.
func (m *Machine) FailAllocAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocFailAt = n
}

// AllocPage implements types.FrameAllocator.
func (m *Machine) AllocPage() (types.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allocFailAt == 0 {
		m.allocFailAt = -1
		return types.NoFrame, types.Errorf(types.ErrKindOutOfMemory, "memsim: injected allocation failure", nil)
	}
	if m.allocFailAt > 0 {
		m.allocFailAt--
	}
	if len(m.free) == 0 {
		return types.NoFrame, types.Errorf(types.ErrKindOutOfMemory, "memsim: no free frame", nil)
	}
	f := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	m.refs[f] = 1
	return f, nil
}

// FreePage implements types.FrameAllocator.
func (m *Machine) FreePage(f types.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustOwn(f, "free")
	m.refs[f] = 0
	m.free = append(m.free, f)
}

// Share implements types.FrameAllocator.
func (m *Machine) Share(f types.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shareLocked(f)
}

func (m *Machine) shareLocked(f types.Frame) {
	m.mustOwn(f, "share")
	m.refs[f]++
}

// Release implements types.FrameAllocator.
func (m *Machine) Release(f types.Frame) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustOwn(f, "release")
	m.refs[f]--
	if m.refs[f] == 0 {
		m.free = append(m.free, f)
	}
	return m.refs[f]
}

func (m *Machine) mustOwn(f types.Frame, op string) {
	if uint64(f) >= uint64(len(m.refs)) || m.refs[f] == 0 {
		panic(fmt.Sprintf("memsim: %s of unallocated frame %d", op, f))
	}
}

// Memory implements types.FrameAllocator.
func (m *Machine) Memory(f types.Frame) []byte {
	if uint64(f) >= uint64(len(m.refs)) {
		return nil
	}
	off := uint64(f) * m.pageSize
	return m.mem[off : off+m.pageSize : off+m.pageSize]
}

// Refs returns f's reference count.
func (m *Machine) Refs(f types.Frame) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[f]
}

// FreeFrames returns the number of unallocated frames.
func (m *Machine) FreeFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.free)
}

// Frames returns the size of the pool.
func (m *Machine) Frames() int { return len(m.refs) }

// Map implements types.PageTable.
func (m *Machine) Map(v types.VAddr, f types.Frame, flags types.PTEFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(f) >= uint64(len(m.refs)) || m.refs[f] == 0 {
		return types.Errorf(types.ErrKindInvalidArgument, fmt.Sprintf("memsim: map of unallocated frame %d", f), nil)
	}
	m.ptes[v.PageDown(m.pageSize)] = pte{frame: f, flags: flags | types.PTEPresent}
	return nil
}

// Unmap implements types.PageTable.
func (m *Machine) Unmap(v types.VAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v = v.PageDown(m.pageSize)
	if _, ok := m.ptes[v]; !ok {
		return types.Errorf(types.ErrKindInvalidArgument, fmt.Sprintf("memsim: unmap of unmapped %s", v), nil)
	}
	delete(m.ptes, v)
	return nil
}

// Translate implements types.PageTable.
func (m *Machine) Translate(v types.VAddr) (types.Frame, types.PTEFlags, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ptes[v.PageDown(m.pageSize)]
	if !ok {
		return types.NoFrame, 0, false
	}
	return e.frame, e.flags, true
}

// Mapped returns every mapped page in ascending order.
func (m *Machine) Mapped() []types.VAddr {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.VAddr, 0, len(m.ptes))
	for v := range m.ptes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Probe reports the fault code the MMU would raise for an access to v, or
// ok = true when the access would succeed.
func (m *Machine) Probe(v types.VAddr, write, user bool) (code types.FaultCode, ok bool) {
	if write {
		code |= types.FaultWrite
	}
	if user {
		code |= types.FaultUser
	}
	_, flags, mapped := m.Translate(v)
	if !mapped {
		return code, false
	}
	code |= types.FaultPresent
	if write && !flags.Has(types.PTEWritable) {
		return code, false
	}
	if user && !flags.Has(types.PTEUser) {
		return code, false
	}
	return 0, true
}

// ShareMapping maps dst onto the frame behind src, fork style: both
// mappings become read-only and the frame gains a reference.
func (m *Machine) ShareMapping(src, dst types.VAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = src.PageDown(m.pageSize), dst.PageDown(m.pageSize)
	e, ok := m.ptes[src]
	if !ok {
		return types.Errorf(types.ErrKindInvalidArgument, fmt.Sprintf("memsim: share of unmapped %s", src), nil)
	}
	if _, taken := m.ptes[dst]; taken {
		return types.Errorf(types.ErrKindInvalidArgument, fmt.Sprintf("memsim: share onto mapped %s", dst), nil)
	}
	e.flags &^= types.PTEWritable
	m.ptes[src] = e
	m.ptes[dst] = e
	m.shareLocked(e.frame)
	return nil
}

// Load copies the page mapped at v without faulting. ok is false when v is
// not mapped.
func (m *Machine) Load(v types.VAddr) (data []byte, ok bool) {
	f, _, mapped := m.Translate(v)
	if !mapped {
		return nil, false
	}
	return append([]byte(nil), m.Memory(f)...), true
}

// Store writes data at the start of the page mapped at v without faulting
// or checking permissions. ok is false when v is not mapped.
func (m *Machine) Store(v types.VAddr, data []byte) bool {
	f, _, mapped := m.Translate(v)
	if !mapped {
		return false
	}
	copy(m.Memory(f), data)
	return true
}

// Clock is a monotonic tick counter satisfying types.Clock.
type Clock struct {
	t atomic.Uint64
}

// Now advances and returns the tick.
func (c *Clock) Now() uint64 { return c.t.Add(1) }
