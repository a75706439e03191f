//go:build windows

package store

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errNoFdSync = errors.New("store: descriptor sync unavailable")

// fdatasync performs file descriptor sync using FlushFileBuffers.
// The fullfsync parameter is ignored on Windows.
func fdatasync(fd uintptr, _ bool) error {
	return windows.FlushFileBuffers(windows.Handle(fd))
}
