// Package cow duplicates physical frames for copy-on-write faults.
//
// A frame shared read-only between several mappings carries one reference
// per mapping in the frame allocator. When one sharer writes, the fault
// dispatcher gives it a private frame: Copy fills the new frame, the
// dispatcher remaps the faulting page onto it, and Release drops that
// sharer's reference on the original, so the last sharer to leave returns
// the original frame to the pool instead of leaking it.
package cow

import (
	"fmt"

	"github.com/joshuapare/pagekit/pkg/types"
)

// Resolver copies frames through a FrameAllocator's memory accessor.
type Resolver struct {
	frames types.FrameAllocator
}

// New returns a resolver bound to frames.
func New(frames types.FrameAllocator) *Resolver {
	return &Resolver{frames: frames}
}

// Copy writes the full contents of src into dst. It has no side effects
// beyond the copy.
func (r *Resolver) Copy(dst, src types.Frame) error {
	if dst == src {
		return types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("cow: copy of frame %d onto itself", src), nil)
	}
	d, s := r.frames.Memory(dst), r.frames.Memory(src)
	if len(d) != len(s) || len(s) == 0 {
		return types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("cow: frame sizes differ (%d vs %d)", len(d), len(s)), nil)
	}
	copy(d, s)
	return nil
}

// Release drops one sharer's reference on old once it has its private
// copy. It returns the references old still has; zero means old went back
// to the pool.
func (r *Resolver) Release(old types.Frame) int {
	return r.frames.Release(old)
}
