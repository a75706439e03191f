package store

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/logger"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/slot"
	"github.com/joshuapare/pagekit/vm/vfs"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = &types.Error{Kind: types.ErrKindNotInitialized, Msg: "store: closed"}

// Store is an open swap file.
type Store struct {
	mu       sync.Mutex
	f        vfs.File
	path     string
	hdr      format.Header
	alloc    *slot.Allocator
	opts     Options
	reopened bool
	closed   bool
}

// Open opens or creates the swap file at path.
func Open(fsys vfs.FS, path string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if opts.PageSize&(opts.PageSize-1) != 0 {
		return nil, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("store: page size %d is not a power of two", opts.PageSize), nil)
	}

	f, err := fsys.OpenFile(path)
	if err != nil {
		return nil, types.Errorf(types.ErrKindIO, "store: open "+path, err)
	}

	s := &Store{f: f, path: path, opts: opts}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	s.alloc = slot.New(s.hdr.TotalPages)
	return s, nil
}

// load adopts a valid header or writes a fresh one.
func (s *Store) load() error {
	log := logger.With("store")

	raw := make([]byte, format.HeaderSize)
	hdr, perr := s.readHeader(raw)
	if perr != nil && !isFormatError(perr) {
		return types.Errorf(types.ErrKindIO, "store: read header", perr)
	}
	if perr == nil && hdr.FileSize() < 0 {
		perr = fmt.Errorf("%w: %d slots of %d bytes", format.ErrGeometry, hdr.TotalPages, hdr.PageSize)
	}
	if perr == nil && hdr.PageSize == s.opts.PageSize && hdr.TotalPages > 0 {
		s.hdr = hdr
		s.reopened = true
		log.Warn("adopting existing swap file; prior swap contents discarded",
			"path", s.path, "slots", hdr.TotalPages, "advisory_used", hdr.UsedPages)
		return s.ensureLength()
	}
	if perr == nil {
		perr = fmt.Errorf("%w: page size %d, want %d", format.ErrGeometry, hdr.PageSize, s.opts.PageSize)
	}

	total := format.SlotsForSize(s.opts.Size, s.opts.PageSize)
	if total == 0 {
		return types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("store: size %d holds no %d-byte slot", s.opts.Size, s.opts.PageSize), nil)
	}
	s.hdr = format.NewHeader(s.opts.PageSize, total)
	log.Info("writing fresh swap header", "path", s.path, "slots", total, "reason", perr)

	s.hdr.Encode(raw)
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return types.Errorf(types.ErrKindIO, "store: seek header", err)
	}
	if _, err := s.f.Write(raw); err != nil {
		return types.Errorf(types.ErrKindIO, "store: write header", err)
	}
	if err := s.f.Truncate(s.hdr.FileSize()); err != nil {
		return types.Errorf(types.ErrKindIO, "store: extend file", err)
	}
	return nil
}

func (s *Store) readHeader(raw []byte) (format.Header, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return format.Header{}, err
	}
	if _, err := io.ReadFull(s.f, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return format.Header{}, fmt.Errorf("swap header: %w", format.ErrTruncated)
		}
		return format.Header{}, err
	}
	return format.ParseHeader(raw)
}

func isFormatError(err error) bool {
	return errors.Is(err, format.ErrTruncated) ||
		errors.Is(err, format.ErrSignatureMismatch) ||
		errors.Is(err, format.ErrVersion) ||
		errors.Is(err, format.ErrGeometry)
}

// ensureLength extends an adopted file that is shorter than its header declares.
func (s *Store) ensureLength() error {
	size, err := vfs.Size(s.f)
	if err != nil {
		return types.Errorf(types.ErrKindIO, "store: size", err)
	}
	want := s.hdr.FileSize()
	if size >= want {
		return nil
	}
	logger.With("store").Warn("swap file shorter than declared; extending",
		"path", s.path, "size", size, "declared", want)
	if err := s.f.Truncate(want); err != nil {
		return types.Errorf(types.ErrKindIO, "store: extend file", err)
	}
	return nil
}

// Header returns the header the store is operating under.
func (s *Store) Header() format.Header { return s.hdr }

// PageSize returns the slot size.
func (s *Store) PageSize() int { return int(s.hdr.PageSize) }

// Allocator returns the slot allocator sized from the header.
func (s *Store) Allocator() *slot.Allocator { return s.alloc }

// Reopened reports whether Open adopted an existing file.
func (s *Store) Reopened() bool { return s.reopened }

// ReadSlot fills p with the contents of slot idx. len(p) must equal the page size.
func (s *Store) ReadSlot(idx slot.Index, p []byte) error {
	off, err := s.locate(idx, p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.f.Seek(off, io.SeekStart); err != nil {
		return types.Errorf(types.ErrKindIO, fmt.Sprintf("store: seek slot %d", idx), err)
	}
	if _, err := io.ReadFull(s.f, p); err != nil {
		return types.Errorf(types.ErrKindIO, fmt.Sprintf("store: read slot %d", idx), err)
	}
	return nil
}

// WriteSlot stores p in slot idx. len(p) must equal the page size.
func (s *Store) WriteSlot(idx slot.Index, p []byte) error {
	off, err := s.locate(idx, p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.f.Seek(off, io.SeekStart); err != nil {
		return types.Errorf(types.ErrKindIO, fmt.Sprintf("store: seek slot %d", idx), err)
	}
	if _, err := s.f.Write(p); err != nil {
		return types.Errorf(types.ErrKindIO, fmt.Sprintf("store: write slot %d", idx), err)
	}
	return nil
}

func (s *Store) locate(idx slot.Index, p []byte) (int64, error) {
	if len(p) != int(s.hdr.PageSize) {
		return 0, types.Errorf(types.ErrKindInvalidArgument,
			fmt.Sprintf("store: buffer is %d bytes, slot is %d", len(p), s.hdr.PageSize), nil)
	}
	off, err := s.hdr.SlotOffset(uint32(idx))
	if err != nil {
		return 0, types.Errorf(types.ErrKindInvalidArgument, "store: locate", err)
	}
	return off, nil
}

// Sync flushes written slots to stable storage.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.syncLocked()
}

func (s *Store) syncLocked() error {
	if err := flushFile(s.f, s.opts.FullSync); err != nil {
		return types.Errorf(types.ErrKindIO, "store: sync", err)
	}
	return nil
}

// Close records the advisory used count and free-list head in the header,
// flushes, and closes the file. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.hdr.UsedPages = s.alloc.InUse()
	s.hdr.FreeHead = uint32(s.alloc.Head())

	raw := make([]byte, format.HeaderSize)
	s.hdr.Encode(raw)

	var errs []error
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		errs = append(errs, types.Errorf(types.ErrKindIO, "store: seek header", err))
	} else if _, err := s.f.Write(raw); err != nil {
		errs = append(errs, types.Errorf(types.ErrKindIO, "store: write header", err))
	}
	if err := s.syncLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := s.f.Close(); err != nil {
		errs = append(errs, types.Errorf(types.ErrKindIO, "store: close", err))
	}
	return errors.Join(errs...)
}
