package fault

import "github.com/joshuapare/pagekit/pkg/types"

var (
	// ErrKernelAccess indicates a supervisor-mode fault on a kernel address.
	ErrKernelAccess = &types.Error{Kind: types.ErrKindFault, Msg: "fault: supervisor fault on kernel address"}

	// ErrReservedBit indicates the RESERVED bit was set in the error code.
	ErrReservedBit = &types.Error{Kind: types.ErrKindFault, Msg: "fault: reserved bit violation"}

	// ErrOutsideUser indicates a user access outside the managed user range.
	ErrOutsideUser = &types.Error{Kind: types.ErrKindFault, Msg: "fault: address outside user range"}

	// ErrUnhandled indicates a fault shape no branch resolves.
	ErrUnhandled = &types.Error{Kind: types.ErrKindFault, Msg: "fault: unhandled fault"}

	// ErrPageBusy indicates a swap-out skipped a page claimed by a fault in progress.
	ErrPageBusy = &types.Error{Kind: types.ErrKindInvalidArgument, Msg: "fault: page busy"}

	// ErrNotResident indicates a swap-out of a page with no frame behind it.
	ErrNotResident = &types.Error{Kind: types.ErrKindInvalidArgument, Msg: "fault: page not resident"}
)
