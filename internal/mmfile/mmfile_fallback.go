//go:build !unix && !windows

package mmfile

import "os"

// Open reads the entire file when mmap is not available.
func Open(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: noUnmap}, nil
}
