package pager

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/evict"
	"github.com/joshuapare/pagekit/vm/store"
	"github.com/joshuapare/pagekit/vm/vfs"
)

const (
	// DefaultSwapPath is the swap file used when Options.SwapPath is empty.
	DefaultSwapPath = "pagefile.swp"

	// DefaultUserStart is the first managed user-space address.
	DefaultUserStart types.VAddr = 0x00400000

	// DefaultKernelBase is the first kernel-space address. The user range
	// ends here by default.
	DefaultKernelBase types.VAddr = 0xC0000000
)

// Options configures Init.
type Options struct {
	// SwapPath is the backing file. Default: DefaultSwapPath.
	SwapPath string `yaml:"swap_path"`

	// SwapSize is the slot-area size of a freshly written swap file.
	// Default: 1 GiB.
	SwapSize int64 `yaml:"swap_size"`

	// PageSize is the page and slot size. It must be a power of two and
	// match the frame size of Frames. Default: 4096.
	PageSize uint32 `yaml:"page_size"`

	// EvictBatch is the number of pages one HandleMemoryPressure call
	// evicts. Default: 10.
	EvictBatch int `yaml:"evict_batch"`

	// Policy names the eviction policy: "ascending" (default) or "lru".
	Policy string `yaml:"policy"`

	// UserStart and UserEnd bound the managed user range [UserStart, UserEnd).
	UserStart types.VAddr `yaml:"user_start"`
	UserEnd   types.VAddr `yaml:"user_end"`

	// KernelBase is the first kernel-space address.
	KernelBase types.VAddr `yaml:"kernel_base"`

	// FullSync requests F_FULLFSYNC on darwin when the swap file is flushed.
	FullSync bool `yaml:"full_sync"`

	// FS opens the swap file. Default: vfs.OS{}.
	FS vfs.FS `yaml:"-"`

	// Frames and PageTable are the platform collaborators. Both are required.
	Frames    types.FrameAllocator `yaml:"-"`
	PageTable types.PageTable      `yaml:"-"`

	// Clock timestamps swap-table entries. Default: a monotonic tick counter.
	Clock types.Clock `yaml:"-"`
}

// DefaultOptions returns production defaults without platform collaborators.
func DefaultOptions() Options {
	return Options{
		SwapPath:   DefaultSwapPath,
		SwapSize:   store.DefaultSize,
		PageSize:   format.DefaultPageSize,
		EvictBatch: evict.DefaultBatch,
		Policy:     evict.Ascending{}.Name(),
		UserStart:  DefaultUserStart,
		UserEnd:    DefaultKernelBase,
		KernelBase: DefaultKernelBase,
	}
}

// LoadOptions reads a YAML file over DefaultOptions. Unknown keys are errors.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, types.Errorf(types.ErrKindIO, "pager: read config "+path, err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML over DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, types.Errorf(types.ErrKindInvalidArgument, "pager: parse config", err)
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SwapPath == "" {
		o.SwapPath = d.SwapPath
	}
	if o.SwapSize == 0 {
		o.SwapSize = d.SwapSize
	}
	if o.PageSize == 0 {
		o.PageSize = d.PageSize
	}
	if o.EvictBatch <= 0 {
		o.EvictBatch = d.EvictBatch
	}
	if o.UserStart == 0 && o.UserEnd == 0 {
		o.UserStart, o.UserEnd = d.UserStart, d.UserEnd
	}
	if o.KernelBase == 0 {
		o.KernelBase = d.KernelBase
	}
	if o.FS == nil {
		o.FS = vfs.OS{}
	}
	return o
}

func (o Options) validate() error {
	var problems []string
	if o.Frames == nil {
		problems = append(problems, "no frame allocator")
	}
	if o.PageTable == nil {
		problems = append(problems, "no page table")
	}
	if o.UserEnd > o.KernelBase {
		problems = append(problems, fmt.Sprintf("user range end %s overlaps kernel base %s", o.UserEnd, o.KernelBase))
	}
	if ps, ok := o.Frames.(interface{ PageSize() uint64 }); ok && ps.PageSize() != uint64(o.PageSize) {
		problems = append(problems, fmt.Sprintf("frame size %d differs from page size %d", ps.PageSize(), o.PageSize))
	}
	if o.SwapSize < 0 {
		problems = append(problems, "negative swap size")
	}
	if len(problems) == 0 {
		return nil
	}
	msg := "pager: invalid options:"
	for _, p := range problems {
		msg += " " + p + ";"
	}
	return types.Errorf(types.ErrKindInvalidArgument, msg[:len(msg)-1], nil)
}
