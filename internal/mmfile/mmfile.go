// Package mmfile maps swap files read-only for offline inspection.
package mmfile

import (
	"fmt"
	"sync"
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data  []byte
	once  sync.Once
	unmap func() error
	err   error
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the mapped length.
func (m *Mapping) Len() int64 { return int64(len(m.data)) }

// Region returns n bytes starting at off.
func (m *Mapping) Region(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off > int64(len(m.data)) || n > int64(len(m.data))-off {
		return nil, fmt.Errorf("mmfile: region [%d, +%d) outside %d-byte mapping", off, n, len(m.data))
	}
	return m.data[off : off+n : off+n], nil
}

// Close releases the mapping. Later calls return the first result.
func (m *Mapping) Close() error {
	m.once.Do(func() {
		if m.unmap != nil {
			m.err = m.unmap()
		}
		m.data = nil
	})
	return m.err
}

func noUnmap() error { return nil }
