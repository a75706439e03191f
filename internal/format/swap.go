package format

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/buf"
)

// Header is the fixed prefix of a swap file. The diagram below lists every
// field; all are little-endian uint32.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   4    Magic (0x53574150, "SWAP")
//	 0x004   4    Version (1)
//	 0x008   4    Page size in bytes (size of every slot)
//	 0x00C   4    Total slot count
//	 0x010   4    Used slot count (advisory, refreshed on clean close)
//	 0x014   4    Free-list head (0xFFFFFFFF when empty)
//	 0x018   4    Checksum (reserved, written as zero)
//
// Slot i starts at HeaderSize + i*PageSize.
type Header struct {
	Magic      uint32
	Version    uint32
	PageSize   uint32
	TotalPages uint32
	UsedPages  uint32
	FreeHead   uint32
	Checksum   uint32
}

// NewHeader returns a fresh header for a file of total free slots.
func NewHeader(pageSize, total uint32) Header {
	head := uint32(0)
	if total == 0 {
		head = NoSlot
	}
	return Header{
		Magic:      SwapMagic,
		Version:    SwapVersion,
		PageSize:   pageSize,
		TotalPages: total,
		FreeHead:   head,
	}
}

// ParseHeader validates and extracts the fields of a swap header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("swap header: %w", ErrTruncated)
	}
	h := Header{
		Magic:      ReadU32(b, MagicOffset),
		Version:    ReadU32(b, VersionOffset),
		PageSize:   ReadU32(b, PageSizeOffset),
		TotalPages: ReadU32(b, TotalPagesOffset),
		UsedPages:  ReadU32(b, UsedPagesOffset),
		FreeHead:   ReadU32(b, FreeHeadOffset),
		Checksum:   ReadU32(b, ChecksumOffset),
	}
	if h.Magic != SwapMagic {
		return Header{}, fmt.Errorf("swap header: %w (got 0x%08x)", ErrSignatureMismatch, h.Magic)
	}
	if h.Version != SwapVersion {
		return Header{}, fmt.Errorf("swap header: %w %d", ErrVersion, h.Version)
	}
	if h.PageSize == 0 || h.PageSize&(h.PageSize-1) != 0 {
		return Header{}, fmt.Errorf("swap header: %w: page size %d", ErrGeometry, h.PageSize)
	}
	return h, nil
}

// MarshalBinary encodes h into a new HeaderSize-byte slice.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	h.Encode(b)
	return b, nil
}

// Encode writes h into the first HeaderSize bytes of b. b must be at least
// HeaderSize long.
func (h Header) Encode(b []byte) {
	PutU32(b, MagicOffset, h.Magic)
	PutU32(b, VersionOffset, h.Version)
	PutU32(b, PageSizeOffset, h.PageSize)
	PutU32(b, TotalPagesOffset, h.TotalPages)
	PutU32(b, UsedPagesOffset, h.UsedPages)
	PutU32(b, FreeHeadOffset, h.FreeHead)
	PutU32(b, ChecksumOffset, h.Checksum)
}

// SlotOffset returns the absolute file offset of slot idx.
func (h Header) SlotOffset(idx uint32) (int64, error) {
	if idx >= h.TotalPages {
		return 0, fmt.Errorf("swap slot %d: %w (total %d)", idx, ErrGeometry, h.TotalPages)
	}
	return buf.RegionOffset(HeaderSize, uint64(idx), uint64(h.PageSize))
}

// FileSize returns the declared length of the whole file: header plus every slot.
func (h Header) FileSize() int64 {
	off, err := buf.RegionOffset(HeaderSize, uint64(h.TotalPages), uint64(h.PageSize))
	if err != nil {
		return -1
	}
	return off
}

// SlotsForSize returns how many page-sized slots fit in size bytes of slot area.
func SlotsForSize(size int64, pageSize uint32) uint32 {
	if size <= 0 || pageSize == 0 {
		return 0
	}
	n := uint64(size) / uint64(pageSize)
	if n > uint64(NoSlot-1) {
		n = uint64(NoSlot - 1)
	}
	return uint32(n)
}

// SlotsInFile applies total_pages = (file_size - header_size) / page_size.
func SlotsInFile(fileSize int64, pageSize uint32) uint32 {
	return SlotsForSize(fileSize-HeaderSize, pageSize)
}
