// Package region reads region container files: a 32x32 grid of
// individually compressed chunk documents addressed by 4 KiB sectors.
package region

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mvaleed/mcregion/internal/nbt"
	"github.com/mvaleed/mcregion/internal/region/mmap"
)

type options struct {
	eager  bool
	logger *slog.Logger
}

type Option func(*options)

// WithEagerHeaders reads every chunk header when the region is opened.
// Per-chunk failures are logged and recorded, not returned.
func WithEagerHeaders() Option {
	return func(o *options) { o.eager = true }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Region owns one seekable handle onto a container. Methods serialise on a
// mutex because the seek position is shared state; workers that want
// parallel extraction should open their own Region.
type Region struct {
	mu     sync.Mutex
	path   string
	src    io.ReadSeeker
	closer io.Closer
	mapped *mmap.Store
	header *Header
	opts   options
	closed bool
}

// NewRegion reads the header from src. The caller keeps ownership of src.
func NewRegion(src io.ReadSeeker, opts ...Option) (*Region, error) {
	r := &Region{src: src, opts: buildOptions(opts)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Open opens the container at path with a regular file handle.
func Open(path string, opts ...Option) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Region{path: path, src: f, closer: f, opts: buildOptions(opts)}
	if err := r.load(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// OpenMapped opens the container at path through a read-only memory map.
func OpenMapped(path string, opts ...Option) (*Region, error) {
	store, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Region{
		path:   path,
		src:    io.NewSectionReader(store, 0, store.Size()),
		closer: store,
		mapped: store,
		opts:   buildOptions(opts),
	}
	if err := r.load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (r *Region) load() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header: %w", err)
	}
	h, err := ReadHeader(r.src)
	if err != nil {
		return err
	}
	r.header = h

	r.opts.logger.Debug("region header read", "path", r.path, "chunks", h.Len())
	if !r.opts.eager {
		return nil
	}

	failed := h.ParseChunkHeaders(r.src)
	if failed == 0 {
		return nil
	}
	for c := range h.Chunks() {
		if err := c.HeaderErr(); err != nil {
			r.opts.logger.Warn("chunk header unreadable", "path", r.path, "x", c.X, "z", c.Z, "error", err)
		}
	}
	return nil
}

func (r *Region) Path() string { return r.path }

// Header returns the table read at open. Reading chunk headers or documents
// through it directly needs a handle of the caller's own.
func (r *Region) Header() *Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header
}

// Reload re-reads the header from the container's current bytes, dropping
// all cached chunk headers. A mapped region is remapped first if the file
// changed size.
func (r *Region) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.mapped != nil {
		if err := r.mapped.Sync(); err != nil {
			return fmt.Errorf("failed to remap: %w", err)
		}
		r.src = io.NewSectionReader(r.mapped, 0, r.mapped.Size())
	}
	return r.load()
}

func (r *Region) chunk(x, z int) (*Chunk, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if !inBounds(x, z) {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, z)
	}
	c := r.header.Chunk(x, z)
	if c == nil {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrNoChunk, x, z)
	}
	return c, nil
}

// ByteLength returns the stored length of the chunk at (x, z), reading its
// header on first use.
func (r *Region) ByteLength(x, z int) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.chunk(x, z)
	if err != nil {
		return 0, err
	}
	n, ok := c.ByteLength(r.src)
	if !ok {
		return 0, c.HeaderErr()
	}
	return n, nil
}

// ChunkHeader returns the header of the chunk at (x, z), reading it on first
// use.
func (r *Region) ChunkHeader(x, z int) (ChunkHeader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.chunk(x, z)
	if err != nil {
		return ChunkHeader{}, err
	}
	if h, ok := c.Header(); ok {
		return h, nil
	}
	if err := c.ReadHeader(r.src); err != nil {
		return ChunkHeader{}, err
	}
	h, _ := c.Header()
	return h, nil
}

// Document loads the chunk document at (x, z). Unlike Chunk.LoadDocument it
// reads the chunk header first when needed.
func (r *Region) Document(x, z int) (*nbt.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.chunk(x, z)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Header(); !ok {
		if err := c.ReadHeader(r.src); err != nil {
			return nil, err
		}
	}
	return c.LoadDocument(r.src)
}

// Close releases the handle when the region opened it itself.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
