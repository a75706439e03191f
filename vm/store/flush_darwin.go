//go:build darwin

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errNoFdSync = errors.New("store: descriptor sync unavailable")

// fdatasync performs file descriptor sync.
//
// On macOS, if fullfsync is true, use F_FULLFSYNC so data reaches the
// physical disk, not just the drive cache. Otherwise, use regular fsync.
func fdatasync(fd uintptr, fullfsync bool) error {
	if fullfsync {
		_, err := unix.FcntlInt(fd, unix.F_FULLFSYNC, 0)
		return err
	}
	// macOS doesn't have fdatasync, use fsync
	return unix.Fsync(int(fd))
}
