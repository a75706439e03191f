package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uint64.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// RegionOffset returns base + index*size, the byte offset of the index-th
// fixed-size region following a base-sized prefix. The result must also fit
// in an int64 so it can be handed to io.Seeker.
//
//	off, err := buf.RegionOffset(format.HeaderSize, uint64(idx), pageSize)
//	if err != nil {
//	    return fmt.Errorf("slot %d: %w", idx, err)
//	}
func RegionOffset(base, index, size uint64) (int64, error) {
	span, ok := MulOverflowSafe(index, size)
	if !ok {
		return 0, fmt.Errorf("overflow: index=%d * size=%d", index, size)
	}
	off, ok := AddOverflowSafe(base, span)
	if !ok {
		return 0, fmt.Errorf("overflow: base=%d + span=%d", base, span)
	}
	if off > math.MaxInt64 {
		return 0, fmt.Errorf("bounds: offset %d exceeds int64", off)
	}
	return int64(off), nil
}
