// Package vfs is the byte-store seam between the swap store and whatever
// filesystem backs it. The store only needs sequential I/O on one file
// handle; implementations are not required to be safe for concurrent use.
package vfs

import (
	"io"
	"os"
)

// File is an open backing file.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Truncate(size int64) error
}

// FS opens backing files.
type FS interface {
	// OpenFile opens path for reading and writing, creating it when absent.
	OpenFile(path string) (File, error)
}

// OS is the host filesystem.
type OS struct {
	// Perm is used when the file is created. Default: 0600.
	Perm os.FileMode
}

// OpenFile implements FS.
func (o OS) OpenFile(path string) (File, error) {
	perm := o.Perm
	if perm == 0 {
		perm = 0o600
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Size returns the length of f by seeking to its end. The file position is
// left at the end.
func Size(f File) (int64, error) {
	return f.Seek(0, io.SeekEnd)
}
