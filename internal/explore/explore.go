// Package explore walks a world's region files and reports on them.
package explore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mvaleed/mcregion/internal/config"
	"github.com/mvaleed/mcregion/internal/nbt"
	"github.com/mvaleed/mcregion/internal/region"
	"github.com/mvaleed/mcregion/internal/region/mmap"
	"github.com/mvaleed/mcregion/internal/replace"
)

// Report describes one region file.
type Report struct {
	X       int            `json:"x"`
	Z       int            `json:"z"`
	Summary region.Summary `json:"summary"`

	// Set when the region could not be opened; nothing else is filled in.
	Error string `json:"error,omitempty"`

	Documents      int `json:"documents"`
	DocumentErrors int `json:"document_errors"`
	// Skipped counts chunks left out by the compression filter.
	Skipped     int           `json:"skipped,omitempty"`
	Reloads     int           `json:"reloads,omitempty"`
	Replaceable int           `json:"replaceable,omitempty"`
	Digests     []ChunkDigest `json:"digests,omitempty"`

	// Per-chunk dump text, printed by the text format only.
	Dump string `json:"-" cbor:"-"`
}

type ChunkDigest struct {
	X      int    `json:"x"`
	Z      int    `json:"z"`
	Digest string `json:"digest"`
}

// Explorer runs one pass over a world.
type Explorer struct {
	Config       *config.Config
	Replacements *replace.Replacements
	Logger       *slog.Logger
}

// Run scans the world directory and returns one report per region file in
// (Z, X) order. Regions that fail to open are reported, not fatal.
func (e *Explorer) Run(ctx context.Context) ([]Report, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := region.ScanWorld(e.Config.World)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", e.Config.World, err)
	}
	logger.Info("scanned world", "dir", e.Config.World, "regions", len(files))

	position := make(map[string]int, len(files))
	reports := make([]Report, len(files))
	for i, f := range files {
		position[f.Path] = i
		reports[i] = Report{X: f.X, Z: f.Z, Summary: region.Summary{Path: f.Path}}
	}

	opts := []region.Option{region.WithLogger(logger)}
	if e.Config.EagerHeaders {
		opts = append(opts, region.WithEagerHeaders())
	}

	var mu sync.Mutex
	w := region.Walker{
		Workers: e.Config.Workers,
		Mapped:  e.Config.Mapped,
		Options: opts,
		OnOpenError: func(f region.File, err error) error {
			if errors.Is(err, region.ErrTruncatedHeader) {
				logger.Warn("skipping region", "path", f.Path, "error", err)
				mu.Lock()
				reports[position[f.Path]].Error = err.Error()
				mu.Unlock()
				return nil
			}
			return err
		},
	}

	err = w.Walk(ctx, files, func(ctx context.Context, f region.File, r *region.Region) error {
		rep, err := e.inspect(ctx, r, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		rep.X, rep.Z = f.X, f.Z

		mu.Lock()
		reports[position[f.Path]] = rep
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (e *Explorer) inspect(ctx context.Context, r *region.Region, logger *slog.Logger) (Report, error) {
	var rep Report

	if e.Config.Dump {
		var buf bytes.Buffer
		if err := r.Dump(&buf, e.Config.DumpHead); err != nil {
			return rep, err
		}
		rep.Dump = buf.String()
	}

	if e.Config.WantDocuments() {
		kinds, err := e.Config.Compressions()
		if err != nil {
			return rep, err
		}
		// The header may be replaced by a reload; only positions are kept.
		for _, c := range slices.Collect(r.Header().Chunks()) {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			if len(kinds) > 0 {
				h, err := r.ChunkHeader(c.X, c.Z)
				if err == nil && !slices.Contains(kinds, region.Compression(h.Discriminator)) {
					rep.Skipped++
					continue
				}
			}

			doc, err := r.Document(c.X, c.Z)
			if errors.Is(err, mmap.ErrFault) && rep.Reloads == 0 {
				logger.Warn("region shrank while mapped, reloading", "path", r.Path(), "error", err)
				if err := r.Reload(); err != nil {
					return rep, err
				}
				rep.Reloads++
				doc, err = r.Document(c.X, c.Z)
			}
			if err != nil {
				rep.DocumentErrors++
				logger.Warn("chunk document unreadable", "path", r.Path(), "x", c.X, "z", c.Z, "error", err)
				continue
			}
			rep.Documents++

			if e.Replacements != nil {
				rep.Replaceable += CountReplaceable(doc, e.Replacements)
			}
			if e.Config.Digest {
				sum, err := region.Digest(doc)
				if err != nil {
					return rep, err
				}
				rep.Digests = append(rep.Digests, ChunkDigest{X: c.X, Z: c.Z, Digest: hex.EncodeToString(sum[:])})
			}
		}
	}

	// Summarize last so it sees headers read by the steps above.
	rep.Summary = r.Summarize()
	return rep, nil
}

const sectionBlocks = 16 * 16 * 16

// CountReplaceable counts the blocks in a chunk's legacy sections
// (Level.Sections[].Blocks, Add and Data) that have at least one
// replacement defined.
func CountReplaceable(doc *nbt.Tag, reps *replace.Replacements) int {
	sections := doc.Path("Level", "Sections")
	if sections == nil {
		return 0
	}

	n := 0
	for _, s := range sections.Items() {
		blocks := byteArray(s.Get("Blocks"))
		if len(blocks) != sectionBlocks {
			continue
		}
		add := byteArray(s.Get("Add"))
		data := byteArray(s.Get("Data"))

		for i, b := range blocks {
			id := int64(b) | int64(nibble(add, i))<<8
			if len(reps.Lookup(id, int64(nibble(data, i)))) > 0 {
				n++
			}
		}
	}
	return n
}

func byteArray(t *nbt.Tag) []byte {
	if t == nil {
		return nil
	}
	b, _ := t.Value.([]byte)
	return b
}

// nibble reads the i-th 4-bit value, low nibble first.
func nibble(arr []byte, i int) byte {
	if i/2 >= len(arr) {
		return 0
	}
	if i%2 == 0 {
		return arr[i/2] & 0x0F
	}
	return arr[i/2] >> 4
}
