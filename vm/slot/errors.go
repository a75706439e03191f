package slot

import "github.com/joshuapare/pagekit/pkg/types"

var (
	// ErrNoSpace indicates every slot is allocated.
	ErrNoSpace = &types.Error{Kind: types.ErrKindNoSpace, Msg: "slot: no free slot"}

	// ErrBadIndex indicates an index outside [0, Total).
	ErrBadIndex = &types.Error{Kind: types.ErrKindInvalidArgument, Msg: "slot: index out of range"}

	// ErrDoubleFree indicates an attempt to free a slot that is already free.
	// This is a programming error in the caller, so it carries the Fault kind.
	ErrDoubleFree = &types.Error{Kind: types.ErrKindFault, Msg: "slot: double free"}
)
