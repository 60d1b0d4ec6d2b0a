package region_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvaleed/mcregion/internal/region"
	"github.com/mvaleed/mcregion/internal/regionbuild"
)

func TestParseFileName(t *testing.T) {
	testCases := []struct {
		name string
		x, z int
		ok   bool
	}{
		{"r.0.0.mca", 0, 0, true},
		{"r.-1.2.mca", -1, 2, true},
		{"r.12.-30.mca", 12, -30, true},
		{"r.0.0.mcr", 0, 0, false},
		{"r.0.mca", 0, 0, false},
		{"c.0.0.mca", 0, 0, false},
		{"r.a.0.mca", 0, 0, false},
		{"r.0.0.0.mca", 0, 0, false},
		{"level.dat", 0, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x, z, ok := region.ParseFileName(tc.name)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.x, x)
			assert.Equal(t, tc.z, z)
			if ok {
				assert.Equal(t, tc.name, region.FileName(x, z))
			}
		})
	}
}

func writeWorld(t *testing.T, coords [][2]int) string {
	t.Helper()
	dir := t.TempDir()
	for _, c := range coords {
		b := regionbuild.New()
		require.NoError(t, b.SetDocument(0, 0, region.CompressionZlib, testDocument()))
		require.NoError(t, b.WriteFile(filepath.Join(dir, region.FileName(c[0], c[1]))))
	}
	return dir
}

func TestScanWorld(t *testing.T) {
	dir := writeWorld(t, [][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, 0}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level.dat"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "r.5.5.mca"), 0o755))

	files, err := region.ScanWorld(dir)
	require.NoError(t, err)

	var got [][2]int
	for _, f := range files {
		got = append(got, [2]int{f.X, f.Z})
		assert.Equal(t, filepath.Join(dir, region.FileName(f.X, f.Z)), f.Path)
	}
	assert.Equal(t, [][2]int{{-1, 0}, {0, 0}, {1, 0}, {0, 1}}, got)

	_, err = region.ScanWorld(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWalker_Walk(t *testing.T) {
	coords := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 2}, {3, 3}}
	dir := writeWorld(t, coords)
	files, err := region.ScanWorld(dir)
	require.NoError(t, err)

	for _, mapped := range []bool{false, true} {
		t.Run(map[bool]string{false: "file", true: "mapped"}[mapped], func(t *testing.T) {
			var (
				mu   sync.Mutex
				seen = make(map[string]bool)
			)
			w := region.Walker{Workers: 3, Mapped: mapped, Options: []region.Option{region.WithEagerHeaders()}}
			err := w.Walk(context.Background(), files, func(_ context.Context, f region.File, r *region.Region) error {
				if _, err := r.Document(0, 0); err != nil {
					return err
				}
				if _, ok := r.Header().Chunk(0, 0).Header(); !ok {
					return errors.New("eager option not applied")
				}
				mu.Lock()
				seen[f.Path] = true
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
			assert.Len(t, seen, len(coords))
		})
	}

	t.Run("first error stops the walk", func(t *testing.T) {
		boom := errors.New("boom")
		var calls atomic.Int32

		err := region.Walker{Workers: 1}.Walk(context.Background(), files, func(context.Context, region.File, *region.Region) error {
			calls.Add(1)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Less(t, int(calls.Load()), len(files))
	})

	t.Run("open failure", func(t *testing.T) {
		broken := append([]region.File{{Path: filepath.Join(dir, "r.9.9.mca")}}, files...)
		err := region.Walker{Workers: 2}.Walk(context.Background(), broken, func(context.Context, region.File, *region.Region) error {
			return nil
		})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("open failure skipped", func(t *testing.T) {
		broken := append([]region.File{{X: 9, Z: 9, Path: filepath.Join(dir, "r.9.9.mca")}}, files...)

		var (
			mu      sync.Mutex
			skipped []region.File
			calls   atomic.Int32
		)
		w := region.Walker{Workers: 2, OnOpenError: func(f region.File, err error) error {
			mu.Lock()
			defer mu.Unlock()
			skipped = append(skipped, f)
			return nil
		}}
		err := w.Walk(context.Background(), broken, func(context.Context, region.File, *region.Region) error {
			calls.Add(1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []region.File{broken[0]}, skipped)
		assert.Equal(t, int32(len(files)), calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		err := region.Walker{Workers: 2}.Walk(ctx, files, func(context.Context, region.File, *region.Region) error {
			calls.Add(1)
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls.Load())
	})
}
