package region

const (
	SectorSize = 4096
	GridWidth  = 32
	ChunkCount = GridWidth * GridWidth // 1024

	// Location table followed by timestamp table, one sector each.
	HeaderSize = 2 * SectorSize

	// Big-endian length (4) + compression discriminator (1).
	ChunkHeaderSize = 5

	locationWidth = 4
	maxOffset     = 0xFFFFFF
)

// Location addresses a chunk's sectors. The packed word stores Offset in the
// high 24 bits and Count in the low 8 bits; a zero word means no chunk.
type Location struct {
	Offset uint32 // first sector
	Count  uint8  // reserved sectors, not exact payload size
}

// IndexToCoords maps a header index (z*32 + x) to grid coordinates.
func IndexToCoords(i int) (x, z int) {
	return i % GridWidth, i / GridWidth
}

// CoordsToIndex is the inverse of IndexToCoords.
func CoordsToIndex(x, z int) int {
	return z*GridWidth + x
}

func inBounds(x, z int) bool {
	return x >= 0 && x < GridWidth && z >= 0 && z < GridWidth
}

// DecodeLocation unpacks a location word. It reports false for the zero word.
func DecodeLocation(word uint32) (Location, bool) {
	if word == 0 {
		return Location{}, false
	}
	return Location{
		Offset: (word >> 8) & maxOffset,
		Count:  uint8(word & 0xFF),
	}, true
}

// Encode packs l into a location word.
func (l Location) Encode() uint32 {
	return (l.Offset&maxOffset)<<8 | uint32(l.Count)
}

// ByteOffset is the container offset of the chunk header.
func (l Location) ByteOffset() int64 {
	return int64(l.Offset) * SectorSize
}

// Capacity is the number of bytes reserved for the chunk.
func (l Location) Capacity() int64 {
	return int64(l.Count) * SectorSize
}
