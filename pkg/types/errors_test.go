package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCategorySentinels(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("swap-out page 3: %w", Errorf(ErrKindIO, "store: write slot 9", cause))

	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrNoSpace)
	require.Equal(t, "swap-out page 3: store: write slot 9: disk on fire", err.Error())
}

func TestError_SpecificSentinelsStayDistinct(t *testing.T) {
	busy := &Error{Kind: ErrKindInvalidArgument, Msg: "busy"}
	gone := &Error{Kind: ErrKindInvalidArgument, Msg: "gone"}

	require.NotErrorIs(t, busy, gone)
	require.ErrorIs(t, busy, ErrInvalidArgument)
	require.ErrorIs(t, fmt.Errorf("wrap: %w", busy), busy)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(fmt.Errorf("x: %w", ErrNoSpace))
	require.True(t, ok)
	require.Equal(t, ErrKindNoSpace, k)
	require.Equal(t, "no-space", k.String())

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestRecoverable(t *testing.T) {
	require.True(t, Recoverable(ErrOutOfMemory))
	require.True(t, Recoverable(Errorf(ErrKindNoSpace, "slot", nil)))
	require.True(t, Recoverable(ErrIO))
	require.False(t, Recoverable(ErrFault))
	require.False(t, Recoverable(errors.New("plain")))
}

func TestFaultCode(t *testing.T) {
	c := FaultPresent | FaultWrite | FaultUser
	require.True(t, c.Has(FaultWrite|FaultUser))
	require.False(t, c.Has(FaultReserved))
	require.Equal(t, "PWU--", c.String())
	require.Equal(t, "-----", FaultCode(0).String())
}

func TestVAddr(t *testing.T) {
	require.Equal(t, VAddr(0x401000), VAddr(0x401FFF).PageDown(4096))
	require.Equal(t, "0x401000", VAddr(0x401000).String())
}
