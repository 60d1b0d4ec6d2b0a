package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Open(t *testing.T) {
	t.Run("maps file contents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "r.0.0.mca")
		require.NoError(t, os.WriteFile(path, []byte("hello region"), 0o644))

		s, err := Open(path)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, int64(12), s.Size())

		buf := make([]byte, 6)
		n, err := s.ReadAt(buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, "region", string(buf))
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.mca")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		s, err := Open(path)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, int64(0), s.Size())
		_, err = s.ReadAt(make([]byte, 1), 0)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("missing file", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "missing.mca"))
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestStore_ReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	t.Run("short read at tail", func(t *testing.T) {
		buf := make([]byte, 4)
		n, err := s.ReadAt(buf, 8)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 2, n)
		assert.Equal(t, "89", string(buf[:n]))
	})

	t.Run("past end", func(t *testing.T) {
		_, err := s.ReadAt(make([]byte, 1), 100)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := s.ReadAt(make([]byte, 1), -1)
		assert.Error(t, err)
	})

	t.Run("works through section reader", func(t *testing.T) {
		sr := io.NewSectionReader(s, 0, s.Size())
		_, err := sr.Seek(3, io.SeekStart)
		require.NoError(t, err)
		buf := make([]byte, 3)
		_, err = io.ReadFull(sr, buf)
		require.NoError(t, err)
		assert.Equal(t, "345", string(buf))
	})
}

func TestStore_Sync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("defgh"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, int64(3), s.Size())
	require.NoError(t, s.Sync())
	assert.Equal(t, int64(8), s.Size())

	buf := make([]byte, 8)
	_, err = s.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(buf))
}

func TestStore_ReadAtTruncated(t *testing.T) {
	pageSize := os.Getpagesize()
	path := filepath.Join(t.TempDir(), "shrink")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*pageSize), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.Truncate(path, int64(pageSize)))

	_, err = s.ReadAt(make([]byte, 16), int64(pageSize))
	assert.ErrorIs(t, err, ErrFault)

	// Still-backed pages read normally.
	n, err := s.ReadAt(make([]byte, 16), 0)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	require.NoError(t, s.Sync())
	assert.Equal(t, int64(pageSize), s.Size())
	_, err = s.ReadAt(make([]byte, 16), int64(pageSize))
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Sync(), ErrClosed)
}
