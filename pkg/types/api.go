package types

import "fmt"

// -----------------------------------------------------------------------------
// Core Identifiers
// -----------------------------------------------------------------------------

// VAddr is a virtual address.
type VAddr uint64

// PageDown rounds v down to a multiple of pageSize.
func (v VAddr) PageDown(pageSize uint64) VAddr {
	return v &^ VAddr(pageSize-1)
}

func (v VAddr) String() string { return fmt.Sprintf("0x%x", uint64(v)) }

// Frame names one physical page frame. The zero value is a valid frame
// number; use NoFrame for "none".
type Frame uint64

// NoFrame is returned alongside errors where a Frame is expected.
const NoFrame Frame = ^Frame(0)

// PTEFlags are the permission bits of a page-table entry.
type PTEFlags uint32

const (
	PTEPresent  PTEFlags = 1 << 0
	PTEWritable PTEFlags = 1 << 1
	PTEUser     PTEFlags = 1 << 2
)

// Has reports whether every bit in want is set.
func (f PTEFlags) Has(want PTEFlags) bool { return f&want == want }

// FaultCode is the hardware error code pushed with a page-fault trap.
type FaultCode uint32

const (
	FaultPresent     FaultCode = 0x01 // the page was mapped; protection violation
	FaultWrite       FaultCode = 0x02 // the access was a write
	FaultUser        FaultCode = 0x04 // the access came from user mode
	FaultReserved    FaultCode = 0x08 // a reserved PTE bit was set
	FaultInstruction FaultCode = 0x10 // the access was an instruction fetch
)

// Has reports whether every bit in want is set.
func (c FaultCode) Has(want FaultCode) bool { return c&want == want }

func (c FaultCode) String() string {
	b := []byte("-----")
	for i, bit := range []struct {
		code FaultCode
		ch   byte
	}{
		{FaultPresent, 'P'},
		{FaultWrite, 'W'},
		{FaultUser, 'U'},
		{FaultReserved, 'R'},
		{FaultInstruction, 'I'},
	} {
		if c.Has(bit.code) {
			b[i] = bit.ch
		}
	}
	return string(b)
}

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// FrameAllocator is the physical frame allocator the subsystem borrows from.
//
// Frames carry a reference count: AllocPage returns a frame with one
// reference, Share adds one, and Release drops one, returning the frame to
// the free pool when the count reaches zero. FreePage releases a frame
// unconditionally and is used on error paths for frames never mapped.
type FrameAllocator interface {
	AllocPage() (Frame, error)
	FreePage(f Frame)
	Share(f Frame)
	Release(f Frame) (remaining int)
	// Memory returns the page-sized contents of f. The slice aliases the
	// frame; writes through it are writes to physical memory.
	Memory(f Frame) []byte
}

// PageTable is the page-table primitive set for the current address space.
type PageTable interface {
	Map(v VAddr, f Frame, flags PTEFlags) error
	Unmap(v VAddr) error
	// Translate returns the frame and flags mapped at v. ok is false when
	// nothing is mapped.
	Translate(v VAddr) (f Frame, flags PTEFlags, ok bool)
}

// Clock is a monotonic timestamp source.
type Clock interface {
	Now() uint64
}
