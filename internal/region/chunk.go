package region

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/mvaleed/mcregion/internal/nbt"
)

// ChunkHeader is the 5-byte prefix of a chunk's sectors. Writers disagree on
// whether ByteLength counts the discriminator byte, so readers treat it as an
// upper bound on the payload and let the codec find the end of its stream.
type ChunkHeader struct {
	ByteLength    uint32
	Discriminator byte
}

// Encode writes the header into dst[:5].
func (h ChunkHeader) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], h.ByteLength)
	dst[4] = h.Discriminator
}

// Decode reads the header from src[:5].
func (h *ChunkHeader) Decode(src []byte) {
	h.ByteLength = binary.BigEndian.Uint32(src[0:4])
	h.Discriminator = src[4]
}

// Compression returns the payload encoding, or false when the discriminator
// is not one this reader understands.
func (h ChunkHeader) Compression() (Compression, bool) {
	c := Compression(h.Discriminator)
	return c, c.Known()
}

func (h ChunkHeader) payloadLength() int64 {
	return int64(h.ByteLength)
}

// Chunk describes one occupied grid cell. Its location is fixed at
// construction; the chunk header is read lazily and cached.
type Chunk struct {
	X, Z     int
	Location Location

	header    *ChunkHeader
	headerErr error
}

// newChunk returns nil when word marks an empty cell.
func newChunk(x, z int, word uint32) *Chunk {
	loc, ok := DecodeLocation(word)
	if !ok {
		return nil
	}
	return &Chunk{X: x, Z: z, Location: loc}
}

// Header returns the cached chunk header.
func (c *Chunk) Header() (ChunkHeader, bool) {
	if c.header == nil {
		return ChunkHeader{}, false
	}
	return *c.header, true
}

// HeaderErr returns the error from the most recent failed ReadHeader, or nil
// once a read has succeeded. A chunk that was never read has no error.
func (c *Chunk) HeaderErr() error {
	return c.headerErr
}

// Compression returns the parsed compression kind. It is false before the
// header is read and when the discriminator is unknown.
func (c *Chunk) Compression() (Compression, bool) {
	if c.header == nil {
		return 0, false
	}
	return c.header.Compression()
}

// ReadHeader seeks src (addressed from the start of the container) to the
// chunk's first sector and reads its length and discriminator. Repeated
// calls re-read and overwrite; a failed call leaves any earlier header.
func (c *Chunk) ReadHeader(src io.ReadSeeker) error {
	if _, err := src.Seek(c.Location.ByteOffset(), io.SeekStart); err != nil {
		return c.fail("seek", err)
	}

	var buf [ChunkHeaderSize]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return c.fail("read header", err)
	}

	var h ChunkHeader
	h.Decode(buf[:])
	c.header = &h
	c.headerErr = nil
	return nil
}

func (c *Chunk) fail(op string, err error) error {
	c.headerErr = &ChunkError{X: c.X, Z: c.Z, Op: op, Err: err}
	return c.headerErr
}

// ByteLength returns the cached length, reading the header from src on first
// use. With a nil src only the cache is consulted. A header is read at most
// once per chunk unless ReadHeader is called directly.
func (c *Chunk) ByteLength(src io.ReadSeeker) (uint32, bool) {
	if c.header != nil {
		return c.header.ByteLength, true
	}
	if src == nil {
		return 0, false
	}
	if err := c.ReadHeader(src); err != nil {
		return 0, false
	}
	return c.header.ByteLength, true
}

// LoadDocument decompresses and parses the chunk payload. The header must
// already be read; this never reads it implicitly. Nothing is cached, so
// each call reflects the container's current bytes.
func (c *Chunk) LoadDocument(src io.ReadSeeker) (*nbt.Tag, error) {
	if c.header == nil {
		return nil, fmt.Errorf("chunk (%d, %d): %w", c.X, c.Z, ErrHeaderNotParsed)
	}
	kind, ok := c.header.Compression()
	if !ok {
		return nil, fmt.Errorf("chunk (%d, %d): %w: discriminator %d",
			c.X, c.Z, ErrUnknownCompression, c.header.Discriminator)
	}

	if _, err := src.Seek(c.Location.ByteOffset()+ChunkHeaderSize, io.SeekStart); err != nil {
		return nil, &ChunkError{X: c.X, Z: c.Z, Op: "seek payload", Err: err}
	}
	payload := io.LimitReader(src, c.header.payloadLength())

	rc, err := Decompressor(kind, payload)
	if err != nil {
		return nil, &DecodeError{X: c.X, Z: c.Z, Compression: kind, Err: err}
	}

	doc, err := decode(rc)
	if err != nil {
		return nil, &DecodeError{X: c.X, Z: c.Z, Compression: kind, Err: err}
	}
	return doc, nil
}

// decode parses one document, then reads the stream to its end so the codec
// checks its trailer.
func decode(rc io.ReadCloser) (*nbt.Tag, error) {
	br := bufio.NewReader(rc)
	doc, err := nbt.Read(br)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if _, err := io.Copy(io.Discard, br); err != nil {
		rc.Close()
		return nil, fmt.Errorf("reading stream trailer: %w", err)
	}
	if err := rc.Close(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Chunk) String() string {
	s := fmt.Sprintf("Chunk (%d, %d) sector %d (+%d)", c.X, c.Z, c.Location.Offset, c.Location.Count)
	if c.header == nil {
		if c.headerErr != nil {
			return s + " header error: " + c.headerErr.Error()
		}
		return s + " header unread"
	}
	return fmt.Sprintf("%s length %d compression %s", s, c.header.ByteLength, Compression(c.header.Discriminator))
}

func timestampTime(ts uint32) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}
