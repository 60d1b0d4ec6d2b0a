package explore

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/mvaleed/mcregion/internal/config"
)

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("explore: CBOR encoder initialization failed: " + err.Error())
	}
}

// Write renders reports in the given output format.
func Write(w io.Writer, format string, reports []Report) error {
	switch format {
	case config.OutputText:
		return writeText(w, reports)
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case config.OutputCBOR:
		return cborEncMode.NewEncoder(w).Encode(reports)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, reports []Report) error {
	p := &printer{w: w}
	for _, rep := range reports {
		p.printf("%s (region %d, %d)\n", rep.Summary.Path, rep.X, rep.Z)
		if rep.Error != "" {
			p.printf("  error: %s\n\n", rep.Error)
			continue
		}

		s := rep.Summary
		p.printf("  chunks:          %d\n", s.Chunks)
		p.printf("  sectors used:    %d\n", s.SectorsUsed)
		p.printf("  headers read:    %d (%d failed)\n", s.HeadersRead, s.HeaderFailures)
		for _, kind := range slices.Sorted(maps.Keys(s.Compression)) {
			p.printf("    %-12s %d\n", kind, s.Compression[kind])
		}
		if !s.NewestModified.IsZero() {
			p.printf("  newest modified: %s\n", s.NewestModified.Format(time.RFC3339))
		}
		if rep.Documents > 0 || rep.DocumentErrors > 0 {
			p.printf("  documents:       %d (%d failed)\n", rep.Documents, rep.DocumentErrors)
		}
		if rep.Skipped > 0 {
			p.printf("  skipped:         %d (compression filter)\n", rep.Skipped)
		}
		if rep.Reloads > 0 {
			p.printf("  reloads:         %d\n", rep.Reloads)
		}
		if rep.Replaceable > 0 {
			p.printf("  replaceable:     %d blocks\n", rep.Replaceable)
		}
		for _, d := range rep.Digests {
			p.printf("    (%d, %d) %s\n", d.X, d.Z, d.Digest)
		}
		if rep.Dump != "" {
			p.printf("\n%s", rep.Dump)
		}
		p.printf("\n")
		if p.err != nil {
			return p.err
		}
	}
	return p.err
}

// printer keeps the first write error and drops everything after it.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
