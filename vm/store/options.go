package store

import "github.com/joshuapare/pagekit/internal/format"

const (
	// DefaultSize is the slot-area size declared by a freshly written file (1 GiB).
	DefaultSize int64 = 1 << 30
)

// Options configures Open.
type Options struct {
	// PageSize is the size of every slot. It must match the page size of
	// an adopted file. Default: format.DefaultPageSize.
	PageSize uint32

	// Size is the slot-area size used when a fresh header has to be
	// written. total_pages = Size / PageSize. Default: DefaultSize.
	Size int64

	// FullSync requests F_FULLFSYNC on darwin when flushing.
	FullSync bool
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		PageSize: format.DefaultPageSize,
		Size:     DefaultSize,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize == 0 {
		o.PageSize = format.DefaultPageSize
	}
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	return o
}
