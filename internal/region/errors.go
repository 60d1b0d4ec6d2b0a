package region

import (
	"errors"
	"fmt"
)

var (
	ErrTruncatedHeader    = errors.New("region: truncated header table")
	ErrHeaderNotParsed    = errors.New("region: chunk header not yet parsed")
	ErrUnknownCompression = errors.New("region: unknown compression")
	ErrNoChunk            = errors.New("region: no chunk at position")
	ErrOutOfBounds        = errors.New("region: coordinates out of bounds")
	ErrClosed             = errors.New("region: closed")
)

// ChunkError is an I/O failure while reading one chunk. It never aborts
// sibling chunks.
type ChunkError struct {
	X, Z int
	Op   string
	Err  error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk (%d, %d): %s: %v", e.X, e.Z, e.Op, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// DecodeError is a corrupt compressed stream or malformed document, as
// opposed to a failure reading the container.
type DecodeError struct {
	X, Z        int
	Compression Compression
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("chunk (%d, %d): decoding %s payload: %v", e.X, e.Z, e.Compression, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
