package region_test

import (
	"bytes"
	"encoding/binary"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaleed/mcregion/internal/region"
	"github.com/mvaleed/mcregion/internal/regionbuild"
)

func TestReadHeader(t *testing.T) {
	t.Run("all zero tables", func(t *testing.T) {
		h, err := region.ReadHeader(bytes.NewReader(make([]byte, region.HeaderSize)))
		require.NoError(t, err)

		assert.Zero(t, h.Len())
		for c := range h.Chunks() {
			t.Fatalf("unexpected chunk %v", c)
		}
		assert.Nil(t, h.Chunk(0, 0))
		assert.Nil(t, h.Chunk(31, 31))
	})

	t.Run("truncated", func(t *testing.T) {
		testCases := []struct {
			name string
			size int
		}{
			{"empty", 0},
			{"partial location table", 100},
			{"location table only", region.SectorSize},
			{"one byte short", region.HeaderSize - 1},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				h, err := region.ReadHeader(bytes.NewReader(make([]byte, tc.size)))
				assert.Nil(t, h)
				assert.ErrorIs(t, err, region.ErrTruncatedHeader)
			})
		}
	})

	t.Run("location decoding", func(t *testing.T) {
		var raw [region.HeaderSize]byte
		binary.BigEndian.PutUint32(raw[0:], 0x00000201)
		binary.BigEndian.PutUint32(raw[4*33:], 0x00000502)

		h, err := region.ReadHeader(bytes.NewReader(raw[:]))
		require.NoError(t, err)
		require.Equal(t, 2, h.Len())

		c := h.Chunk(0, 0)
		require.NotNil(t, c)
		assert.Equal(t, region.Location{Offset: 2, Count: 1}, c.Location)

		c = h.Chunk(1, 1)
		require.NotNil(t, c)
		assert.Equal(t, region.Location{Offset: 5, Count: 2}, c.Location)
	})
}

func TestHeader_Chunks(t *testing.T) {
	cells := [][2]int{{31, 31}, {0, 0}, {5, 0}, {0, 1}, {7, 20}}
	data := buildContainer(t, func(b *regionbuild.Builder) {
		for _, cell := range cells {
			require.NoError(t, b.SetRaw(cell[0], cell[1], 2, []byte{1}))
		}
	})
	h := readHeader(t, bytes.NewReader(data))

	t.Run("ascending index order", func(t *testing.T) {
		var got [][2]int
		for c := range h.Chunks() {
			got = append(got, [2]int{c.X, c.Z})
		}
		assert.Equal(t, [][2]int{{0, 0}, {5, 0}, {0, 1}, {7, 20}, {31, 31}}, got)
	})

	t.Run("indices match coordinates", func(t *testing.T) {
		var indices []int
		for i, c := range h.All() {
			assert.Equal(t, region.CoordsToIndex(c.X, c.Z), i)
			indices = append(indices, i)
		}
		assert.Equal(t, []int{0, 5, 32, 647, 1023}, indices)
	})

	t.Run("restartable", func(t *testing.T) {
		first := slices.Collect(h.Chunks())
		second := slices.Collect(h.Chunks())
		assert.Len(t, first, len(cells))
		assert.Equal(t, first, second)
	})

	t.Run("early break", func(t *testing.T) {
		n := 0
		for range h.Chunks() {
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
		assert.Len(t, slices.Collect(h.Chunks()), len(cells))
	})

	t.Run("out of range lookups", func(t *testing.T) {
		for _, cell := range [][2]int{{-1, 0}, {0, -1}, {32, 0}, {0, 32}} {
			assert.Nil(t, h.Chunk(cell[0], cell[1]), "%v", cell)
			assert.Zero(t, h.Timestamp(cell[0], cell[1]), "%v", cell)
		}
	})
}

func TestHeader_Timestamps(t *testing.T) {
	const ts = 1_700_000_000
	data := buildContainer(t, func(b *regionbuild.Builder) {
		require.NoError(t, b.SetRaw(2, 3, 2, []byte{1}))
		require.NoError(t, b.SetTimestamp(2, 3, ts))
		// A timestamp without a chunk is still read back.
		require.NoError(t, b.SetTimestamp(9, 9, 42))
	})
	h := readHeader(t, bytes.NewReader(data))

	assert.Equal(t, uint32(ts), h.Timestamp(2, 3))
	assert.Equal(t, time.Unix(ts, 0).UTC(), h.ModTime(2, 3))
	assert.Equal(t, uint32(42), h.Timestamp(9, 9))
	assert.Nil(t, h.Chunk(9, 9))

	assert.Zero(t, h.Timestamp(0, 0))
	assert.True(t, h.ModTime(0, 0).IsZero())
}

func TestHeader_ParseChunkHeaders(t *testing.T) {
	data := buildContainer(t, func(b *regionbuild.Builder) {
		require.NoError(t, b.SetRaw(0, 0, 2, []byte("first")))
		require.NoError(t, b.SetRaw(1, 0, 1, []byte("second")))
	})
	// A third chunk whose location points far past the end of the container.
	binary.BigEndian.PutUint32(data[4*2:], region.Location{Offset: 900, Count: 1}.Encode())

	src := bytes.NewReader(data)
	h := readHeader(t, src)
	require.Equal(t, 3, h.Len())

	failed := h.ParseChunkHeaders(src)
	assert.Equal(t, 1, failed)

	for _, x := range []int{0, 1} {
		_, ok := h.Chunk(x, 0).Header()
		assert.True(t, ok, "chunk %d", x)
		assert.NoError(t, h.Chunk(x, 0).HeaderErr())
	}

	broken := h.Chunk(2, 0)
	_, ok := broken.Header()
	assert.False(t, ok)
	var chunkErr *region.ChunkError
	require.ErrorAs(t, broken.HeaderErr(), &chunkErr)
	assert.Equal(t, 2, chunkErr.X)
}
