package region

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const regionExt = ".mca"

// File is a region container found in a world directory. X and Z are region
// coordinates; chunk (x, z) inside it is world chunk (X*32+x, Z*32+z).
type File struct {
	X, Z int
	Path string
}

// ParseFileName parses "r.<X>.<Z>.mca".
func ParseFileName(name string) (x, z int, ok bool) {
	if !strings.HasSuffix(name, regionExt) {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(name, regionExt), ".")
	if len(parts) != 3 || parts[0] != "r" {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(parts[1])
	z, errZ := strconv.Atoi(parts[2])
	if errX != nil || errZ != nil {
		return 0, 0, false
	}
	return x, z, true
}

// FileName is the inverse of ParseFileName.
func FileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d%s", x, z, regionExt)
}

// ScanWorld lists the region files directly inside dir, ordered by Z then X.
// Other entries are ignored.
func ScanWorld(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		x, z, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}
		files = append(files, File{X: x, Z: z, Path: filepath.Join(dir, entry.Name())})
	}

	slices.SortFunc(files, func(a, b File) int {
		return cmp.Or(cmp.Compare(a.Z, b.Z), cmp.Compare(a.X, b.X))
	})
	return files, nil
}

// Walker opens region files concurrently. Every file gets its own handle, so
// no two goroutines ever share a seek position.
type Walker struct {
	Workers int
	Mapped  bool
	Options []Option

	// OnOpenError decides what a file that fails to open does to the walk.
	// A nil return skips the file. When unset the error stops the walk.
	OnOpenError func(File, error) error
}

// Walk calls fn for each file with a freshly opened Region, closing it
// afterwards. The first error cancels the remaining files and is returned.
func (w Walker) Walk(ctx context.Context, files []File, fn func(context.Context, File, *Region) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	queue := make(chan File)
	var wg sync.WaitGroup
	for range max(w.Workers, 1) {
		wg.Go(func() {
			for f := range queue {
				if err := w.visit(ctx, f, fn); err != nil {
					cancel(err)
				}
			}
		})
	}

feed:
	for _, f := range files {
		select {
		case queue <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return context.Cause(ctx)
}

func (w Walker) visit(ctx context.Context, f File, fn func(context.Context, File, *Region) error) error {
	if ctx.Err() != nil {
		return nil
	}

	open := Open
	if w.Mapped {
		open = OpenMapped
	}
	r, err := open(f.Path, w.Options...)
	if err != nil {
		if w.OnOpenError != nil {
			return w.OnOpenError(f, err)
		}
		return err
	}
	defer r.Close()

	return fn(ctx, f, r)
}
