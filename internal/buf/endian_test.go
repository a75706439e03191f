package buf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU32LE(t *testing.T) {
	require.Equal(t, uint32(0x53574150), U32LE([]byte{0x50, 0x41, 0x57, 0x53}))
	require.Zero(t, U32LE([]byte{1, 2, 3}))
}

func TestPutU32LE(t *testing.T) {
	b := make([]byte, 4)
	require.True(t, PutU32LE(b, 0xDEADBEEF))
	require.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, b)
	require.False(t, PutU32LE(b[:2], 1))
}
