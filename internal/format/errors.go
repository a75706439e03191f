package format

import "errors"

var (
	// ErrSignatureMismatch indicates the header did not start with SwapMagic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrVersion indicates a header version this package does not understand.
	ErrVersion = errors.New("format: unsupported version")
	// ErrGeometry indicates a header whose page size or slot count cannot describe a file.
	ErrGeometry = errors.New("format: invalid geometry")
)
