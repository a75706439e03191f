package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := NewHeader(DefaultPageSize, 1024)
	h.UsedPages = 7
	h.FreeHead = 12

	raw, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)

	got, err := ParseHeader(raw)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeader_MagicBytes(t *testing.T) {
	raw, err := NewHeader(DefaultPageSize, 1).MarshalBinary()
	require.NoError(t, err)
	// "SWAP" stored as a little-endian word.
	require.Equal(t, []byte{'P', 'A', 'W', 'S'}, raw[MagicOffset:MagicOffset+4])
	require.Equal(t, uint32(1), ReadU32(raw, VersionOffset))
	require.Zero(t, ReadU32(raw, ChecksumOffset))
}

func TestParseHeader_Truncated(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParseHeader_BadMagic(t *testing.T) {
	raw, _ := NewHeader(DefaultPageSize, 4).MarshalBinary()
	PutU32(raw, MagicOffset, 0xDEADBEEF)
	_, err := ParseHeader(raw)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestParseHeader_BadVersion(t *testing.T) {
	raw, _ := NewHeader(DefaultPageSize, 4).MarshalBinary()
	PutU32(raw, VersionOffset, 2)
	_, err := ParseHeader(raw)
	require.ErrorIs(t, err, ErrVersion)
}

func TestParseHeader_BadPageSize(t *testing.T) {
	raw, _ := NewHeader(DefaultPageSize, 4).MarshalBinary()
	PutU32(raw, PageSizeOffset, 3000)
	_, err := ParseHeader(raw)
	require.ErrorIs(t, err, ErrGeometry)
}

func TestHeader_Geometry(t *testing.T) {
	h := NewHeader(4096, 4)

	off, err := h.SlotOffset(0)
	require.NoError(t, err)
	require.Equal(t, int64(HeaderSize), off)

	off, err = h.SlotOffset(3)
	require.NoError(t, err)
	require.Equal(t, int64(HeaderSize+3*4096), off)

	_, err = h.SlotOffset(4)
	require.ErrorIs(t, err, ErrGeometry)

	require.Equal(t, int64(HeaderSize+4*4096), h.FileSize())
	require.Equal(t, uint32(4), SlotsInFile(h.FileSize(), 4096))
}

func TestSlotsForSize(t *testing.T) {
	require.Equal(t, uint32(262144), SlotsForSize(1<<30, 4096))
	require.Zero(t, SlotsForSize(4095, 4096))
	require.Zero(t, SlotsForSize(-1, 4096))
	require.Zero(t, SlotsForSize(1<<20, 0))
}

func TestNewHeader_Empty(t *testing.T) {
	require.Equal(t, NoSlot, NewHeader(4096, 0).FreeHead)
}
