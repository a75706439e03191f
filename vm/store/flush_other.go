//go:build !linux && !freebsd && !darwin && !windows

package store

import "errors"

var errNoFdSync = errors.New("store: descriptor sync unavailable")

// fdatasync is unavailable here; flushFile falls back to the file's Sync.
func fdatasync(uintptr, bool) error { return errNoFdSync }
