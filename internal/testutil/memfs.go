// Package testutil holds fixtures shared by package tests: an in-memory
// backing filesystem with fault injection, and swap-file path helpers.
package testutil

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/joshuapare/pagekit/vm/vfs"
)

// ErrInjected is returned by MemFile operations armed with Fail*.
var ErrInjected = errors.New("testutil: injected i/o failure")

// MemFS is an in-memory vfs.FS. Files persist across OpenFile calls on the
// same path so reopen scenarios can be exercised without touching disk.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*MemFile
}

// NewMemFS returns an empty filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*MemFile)}
}

// OpenFile implements vfs.FS.
func (m *MemFS) OpenFile(path string) (vfs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		f = &MemFile{}
		m.files[path] = f
	}
	f.mu.Lock()
	f.pos = 0
	f.closed = false
	f.mu.Unlock()
	return f, nil
}

// File returns the file stored at path, or nil.
func (m *MemFS) File(path string) *MemFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path]
}

// Put replaces the contents stored at path.
func (m *MemFS) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MemFile{data: append([]byte(nil), data...)}
}

// MemFile is one in-memory file. Reads, writes and seeks can be armed to
// fail after a number of successful calls.
type MemFile struct {
	mu     sync.Mutex
	data   []byte
	pos    int64
	closed bool

	readFailAfter  int // -1 when disarmed
	writeFailAfter int
	readArmed      bool
	writeArmed     bool
	Syncs          int
}

// FailReadAfter makes the read following n successful reads fail.
func (f *MemFile) FailReadAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readArmed, f.readFailAfter = true, n
}

// FailWriteAfter makes the write following n successful writes fail.
func (f *MemFile) FailWriteAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeArmed, f.writeFailAfter = true, n
}

// Disarm clears any pending injected failure.
func (f *MemFile) Disarm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readArmed, f.writeArmed = false, false
}

// Bytes returns a copy of the file contents.
func (f *MemFile) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}

// Len returns the file length.
func (f *MemFile) Len() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

func (f *MemFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.readArmed {
		if f.readFailAfter == 0 {
			f.readArmed = false
			return 0, ErrInjected
		}
		f.readFailAfter--
	}
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *MemFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.writeArmed {
		if f.writeFailAfter == 0 {
			f.writeArmed = false
			return 0, ErrInjected
		}
		f.writeFailAfter--
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:], p)
	f.pos = end
	return len(p), nil
}

func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.data)) + offset
	default:
		return 0, errors.New("testutil: bad whence")
	}
	if abs < 0 {
		return 0, errors.New("testutil: negative position")
	}
	f.pos = abs
	return abs, nil
}

func (f *MemFile) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	if size < 0 {
		return errors.New("testutil: negative size")
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
	return nil
}

// Sync counts calls so tests can assert durability flushes happened.
func (f *MemFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Syncs++
	return nil
}

func (f *MemFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	return nil
}
