package region

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"time"
)

// Header is the fixed 8 KiB table at the start of a region file: one
// location word and one timestamp per grid cell. Empty cells hold nil.
type Header struct {
	chunks     [ChunkCount]*Chunk
	timestamps [ChunkCount]uint32
}

// ReadHeader reads the location and timestamp tables from src, which must be
// positioned at the start of the container. A short read of either table
// is fatal.
func ReadHeader(src io.Reader) (*Header, error) {
	var buf [SectorSize]byte
	h := &Header{}

	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: location table: %w", ErrTruncatedHeader, err)
	}
	for i := range ChunkCount {
		x, z := IndexToCoords(i)
		word := binary.BigEndian.Uint32(buf[i*locationWidth:])
		h.chunks[i] = newChunk(x, z, word)
	}

	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: timestamp table: %w", ErrTruncatedHeader, err)
	}
	for i := range ChunkCount {
		h.timestamps[i] = binary.BigEndian.Uint32(buf[i*locationWidth:])
	}

	return h, nil
}

// ParseChunkHeaders reads the header of every present chunk. Failures are
// recorded on the chunk (see Chunk.HeaderErr) and do not stop the walk; the
// number of failures is returned.
func (h *Header) ParseChunkHeaders(src io.ReadSeeker) int {
	failed := 0
	for c := range h.Chunks() {
		if err := c.ReadHeader(src); err != nil {
			failed++
		}
	}
	return failed
}

// Chunks yields present chunks in ascending header index order. Each call
// starts a fresh walk.
func (h *Header) Chunks() iter.Seq[*Chunk] {
	return func(yield func(*Chunk) bool) {
		for _, c := range h.chunks {
			if c == nil {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// All is Chunks with the header index of each chunk.
func (h *Header) All() iter.Seq2[int, *Chunk] {
	return func(yield func(int, *Chunk) bool) {
		for i, c := range h.chunks {
			if c == nil {
				continue
			}
			if !yield(i, c) {
				return
			}
		}
	}
}

// Chunk returns the chunk at (x, z), or nil for empty or out-of-range cells.
func (h *Header) Chunk(x, z int) *Chunk {
	if !inBounds(x, z) {
		return nil
	}
	return h.chunks[CoordsToIndex(x, z)]
}

// Len is the number of present chunks.
func (h *Header) Len() int {
	n := 0
	for range h.Chunks() {
		n++
	}
	return n
}

// Timestamp returns the raw last-modified value at (x, z).
func (h *Header) Timestamp(x, z int) uint32 {
	if !inBounds(x, z) {
		return 0
	}
	return h.timestamps[CoordsToIndex(x, z)]
}

// ModTime converts the timestamp at (x, z) from epoch seconds. Zero maps to
// the zero time.
func (h *Header) ModTime(x, z int) time.Time {
	return timestampTime(h.Timestamp(x, z))
}
