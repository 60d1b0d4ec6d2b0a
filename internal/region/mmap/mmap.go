package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

var (
	ErrClosed = errors.New("mmap: store closed")
	// ErrFault is returned when the mapped file shrank under the mapping.
	ErrFault = errors.New("mmap: fault reading mapping")
)

// Store is a read-only shared mapping of a file. It implements io.ReaderAt.
type Store struct {
	file   *os.File
	data   []byte
	closed bool
}

// Open maps path read-only. An empty file yields a store with no data,
// since mmap rejects zero-length mappings.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := mapFile(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Store{file: f, data: data}, nil
}

func mapFile(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	// MAP_SHARED: writes by another process to the file show up here.
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap: %w", err)
	}
	return data, nil
}

// Sync remaps the file if its size changed since the last mapping.
func (m *Store) Sync() error {
	if m.closed {
		return ErrClosed
	}
	stat, err := m.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == int64(len(m.data)) {
		return nil
	}

	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("munmap failed: %w", err)
		}
		m.data = nil
	}

	data, err := mapFile(m.file, stat.Size())
	if err != nil {
		return fmt.Errorf("remap failed: %w", err)
	}
	m.data = data
	return nil
}

// ReadAt copies from the mapping. Reads past the end return io.EOF. Pages
// the file no longer backs return ErrFault instead of crashing the process.
func (m *Store) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("mmap: negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(interface{ Addr() uintptr }); !ok {
			panic(r)
		}
		n, err = 0, fmt.Errorf("%w: offset %d: %v", ErrFault, off, r)
	}()

	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Store) Size() int64 {
	return int64(len(m.data))
}

// Close unmaps the data and closes the file.
func (m *Store) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var unmapErr error
	if len(m.data) > 0 {
		unmapErr = unix.Munmap(m.data)
		m.data = nil
	}
	return errors.Join(unmapErr, m.file.Close())
}

var _ io.ReaderAt = (*Store)(nil)
