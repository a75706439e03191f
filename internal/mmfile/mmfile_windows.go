//go:build windows

package mmfile

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Open maps the file at path into memory.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &Mapping{data: []byte{}, unmap: noUnmap}, nil
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY,
		uint32(uint64(size)>>32), uint32(size), nil)
	if err != nil {
		return nil, fmt.Errorf("mmfile: CreateFileMapping %s: %w", path, err)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("mmfile: MapViewOfFile %s: %w", path, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return &Mapping{
		data: data,
		unmap: func() error {
			return errors.Join(windows.UnmapViewOfFile(addr), windows.CloseHandle(h))
		},
	}, nil
}
