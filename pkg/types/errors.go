package types

import "errors"

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNotInitialized  ErrKind = iota // subsystem used before Init or after Shutdown
	ErrKindInvalidArgument                // caller passed an out-of-range address, slot or buffer
	ErrKindOutOfMemory                    // physical frame or table allocation failed
	ErrKindNoSpace                        // swap slots exhausted
	ErrKindIO                             // backing-store read/write/seek failure
	ErrKindFault                          // unrecoverable for the faulting context
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotInitialized:
		return "not-initialized"
	case ErrKindInvalidArgument:
		return "invalid-argument"
	case ErrKindOutOfMemory:
		return "out-of-memory"
	case ErrKindNoSpace:
		return "no-space"
	case ErrKindIO:
		return "io"
	case ErrKindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause

	generic bool // category sentinel: matches any *Error of the same Kind
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is one of this package's category sentinels of
// the same kind. This lets callers write errors.Is(err, types.ErrNoSpace)
// against any error of that category, whatever its message or cause, while
// two package-specific sentinels of one kind stay distinct.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return t.generic && e.Kind == t.Kind
}

// Sentinels commonly returned by implementations.
var (
	// ErrNotInitialized indicates the subsystem was used before Init or after Shutdown.
	ErrNotInitialized = &Error{Kind: ErrKindNotInitialized, Msg: "paging not initialized", generic: true}
	// ErrInvalidArgument indicates an argument outside the accepted domain.
	ErrInvalidArgument = &Error{Kind: ErrKindInvalidArgument, Msg: "invalid argument", generic: true}
	// ErrOutOfMemory indicates no physical frame could be allocated.
	ErrOutOfMemory = &Error{Kind: ErrKindOutOfMemory, Msg: "out of memory", generic: true}
	// ErrNoSpace indicates every swap slot is in use.
	ErrNoSpace = &Error{Kind: ErrKindNoSpace, Msg: "swap space exhausted", generic: true}
	// ErrIO indicates a backing-store transfer failed.
	ErrIO = &Error{Kind: ErrKindIO, Msg: "swap i/o error", generic: true}
	// ErrFault indicates a fault that cannot be resolved for the faulting context.
	ErrFault = &Error{Kind: ErrKindFault, Msg: "unresolvable page fault", generic: true}
)

// Errorf builds an *Error of kind k wrapping cause.
func Errorf(k ErrKind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
// ok is false when err carries no typed error.
func KindOf(err error) (kind ErrKind, ok bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return 0, false
}

// Recoverable reports whether err is a resource error that a later retry may
// clear (out of memory, no swap space, or I/O).
func Recoverable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == ErrKindOutOfMemory || k == ErrKindNoSpace || k == ErrKindIO
}
