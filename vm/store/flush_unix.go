//go:build linux || freebsd

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errNoFdSync = errors.New("store: descriptor sync unavailable")

// fdatasync performs file descriptor sync.
//
// On Linux/FreeBSD, fdatasync() provides sufficient guarantees.
// The fullfsync parameter is ignored on Linux/FreeBSD.
func fdatasync(fd uintptr, _ bool) error {
	return unix.Fdatasync(int(fd))
}
