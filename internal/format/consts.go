// Package format houses the low-level codec for the swap file. The goal is
// to keep the encoding focused and allocation-free where possible, and
// independent from the store so higher-level packages (and offline tools)
// can decode a swap file without opening it for I/O.
package format

const (
	// SwapMagic is the four-byte signature at the start of every swap file,
	// the ASCII bytes "SWAP" read as a big-endian word. It is stored
	// little-endian like every other header field.
	SwapMagic uint32 = 0x53574150

	// SwapVersion is the only header version this package writes or accepts.
	SwapVersion uint32 = 1

	// HeaderSize is the size of the swap header in bytes. Slot 0 begins
	// immediately after it; the header is not padded to a page.
	HeaderSize = 0x1C

	// DefaultPageSize is the platform page size used when none is configured.
	DefaultPageSize = 4096

	// NoSlot marks an empty free list in the FreeHead field.
	NoSlot uint32 = 0xFFFFFFFF
)

// ============================================================================
// Swap Header Field Offsets
// ============================================================================

const (
	MagicOffset      = 0x00 // uint32
	VersionOffset    = 0x04 // uint32
	PageSizeOffset   = 0x08 // uint32
	TotalPagesOffset = 0x0C // uint32
	UsedPagesOffset  = 0x10 // uint32, advisory only
	FreeHeadOffset   = 0x14 // uint32, NoSlot when empty
	ChecksumOffset   = 0x18 // uint32, reserved
)
