// Package regionbuild assembles region containers. It is the write side kept
// apart from the reader: chunks are laid out sequentially from sector 2 with
// no free-space reuse.
package regionbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mvaleed/mcregion/internal/nbt"
	"github.com/mvaleed/mcregion/internal/region"
)

var (
	ErrOutOfBounds = errors.New("regionbuild: coordinates out of bounds")
	ErrTooLarge    = errors.New("regionbuild: chunk exceeds 255 sectors")
)

const firstDataSector = region.HeaderSize / region.SectorSize

type entry struct {
	discriminator byte
	payload       []byte
}

// Builder collects chunk payloads by grid position.
type Builder struct {
	entries    [region.ChunkCount]*entry
	timestamps [region.ChunkCount]uint32
}

func New() *Builder {
	return &Builder{}
}

func index(x, z int) (int, error) {
	if x < 0 || x >= region.GridWidth || z < 0 || z >= region.GridWidth {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, z)
	}
	return region.CoordsToIndex(x, z), nil
}

// SetDocument encodes doc and compresses it with kind.
func (b *Builder) SetDocument(x, z int, kind region.Compression, doc *nbt.Tag) error {
	var raw bytes.Buffer
	if err := nbt.Write(&raw, doc); err != nil {
		return fmt.Errorf("encoding chunk (%d, %d): %w", x, z, err)
	}
	payload, err := region.Compress(kind, raw.Bytes())
	if err != nil {
		return fmt.Errorf("compressing chunk (%d, %d): %w", x, z, err)
	}
	return b.SetRaw(x, z, byte(kind), payload)
}

// SetRaw stores payload verbatim behind the given discriminator.
func (b *Builder) SetRaw(x, z int, discriminator byte, payload []byte) error {
	i, err := index(x, z)
	if err != nil {
		return err
	}
	if sectorsFor(len(payload)) > 0xFF {
		return fmt.Errorf("%w: (%d, %d) is %d bytes", ErrTooLarge, x, z, len(payload))
	}
	b.entries[i] = &entry{discriminator: discriminator, payload: payload}
	return nil
}

// Remove clears the cell at (x, z).
func (b *Builder) Remove(x, z int) {
	if i, err := index(x, z); err == nil {
		b.entries[i] = nil
		b.timestamps[i] = 0
	}
}

func (b *Builder) SetTimestamp(x, z int, ts uint32) error {
	i, err := index(x, z)
	if err != nil {
		return err
	}
	b.timestamps[i] = ts
	return nil
}

func sectorsFor(payloadLen int) int {
	n := payloadLen + region.ChunkHeaderSize
	return (n + region.SectorSize - 1) / region.SectorSize
}

// WriteTo writes the complete container.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	var header [region.HeaderSize]byte
	sector := firstDataSector
	for i, e := range b.entries {
		if e == nil {
			continue
		}
		loc := region.Location{Offset: uint32(sector), Count: uint8(sectorsFor(len(e.payload)))}
		binary.BigEndian.PutUint32(header[i*4:], loc.Encode())
		sector += int(loc.Count)
	}
	for i, ts := range b.timestamps {
		binary.BigEndian.PutUint32(header[region.SectorSize+i*4:], ts)
	}

	written := int64(0)
	n, err := w.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, err
	}

	for _, e := range b.entries {
		if e == nil {
			continue
		}
		n, err := writeChunk(w, e)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func writeChunk(w io.Writer, e *entry) (int64, error) {
	size := sectorsFor(len(e.payload)) * region.SectorSize
	buf := make([]byte, size)
	region.ChunkHeader{
		ByteLength:    uint32(len(e.payload) + 1),
		Discriminator: e.discriminator,
	}.Encode(buf)
	copy(buf[region.ChunkHeaderSize:], e.payload)

	n, err := w.Write(buf)
	return int64(n), err
}

// Bytes returns the container as a byte slice.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_, _ = b.WriteTo(&buf)
	return buf.Bytes()
}

// WriteFile writes the container to path, replacing any existing file.
func (b *Builder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := b.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
