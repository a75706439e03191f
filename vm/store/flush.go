package store

import "github.com/joshuapare/pagekit/vm/vfs"

type fder interface {
	Fd() uintptr
}

type syncer interface {
	Sync() error
}

// flushFile pushes written data to stable storage. Files backed by a host
// descriptor go through the platform data-sync call; other files fall back
// to their own Sync method, and files with neither are treated as already
// durable.
func flushFile(f vfs.File, fullfsync bool) error {
	if fd, ok := f.(fder); ok {
		if err := fdatasync(fd.Fd(), fullfsync); err != errNoFdSync {
			return err
		}
	}
	if s, ok := f.(syncer); ok {
		return s.Sync()
	}
	return nil
}
