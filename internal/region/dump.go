package region

import (
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mvaleed/mcregion/internal/nbt"
)

// Summary is per-region statistics derived from the header and the chunk
// headers read so far.
type Summary struct {
	Path           string         `json:"path"`
	Chunks         int            `json:"chunks"`
	HeadersRead    int            `json:"headers_read"`
	HeaderFailures int            `json:"header_failures"`
	Compression    map[string]int `json:"compression"`
	SectorsUsed    int            `json:"sectors_used"`
	NewestModified time.Time      `json:"newest_modified"`
}

// Summarize reports on the region without touching the container.
func (r *Region) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Path: r.path, Compression: make(map[string]int)}
	for c := range r.header.Chunks() {
		s.Chunks++
		s.SectorsUsed += int(c.Location.Count)
		if ts := r.header.ModTime(c.X, c.Z); ts.After(s.NewestModified) {
			s.NewestModified = ts
		}
		if c.HeaderErr() != nil {
			s.HeaderFailures++
		}
		if h, ok := c.Header(); ok {
			s.HeadersRead++
			s.Compression[Compression(h.Discriminator).String()]++
		}
	}
	return s
}

// Dump prints every present chunk, reading headers as it goes. head limits
// the number of chunks printed; zero or less prints all. Printing stops at
// the first write error.
func (r *Region) Dump(w io.Writer, head int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	p := &printer{w: w}
	printed := 0
	for i, c := range r.header.All() {
		length, ok := c.ByteLength(r.src)

		p.printf("Chunk #%d (%d, %d)\n", i, c.X, c.Z)
		p.printf("  Sector:      %d (+%d)\n", c.Location.Offset, c.Location.Count)
		if ok {
			h, _ := c.Header()
			p.printf("  Length:      %d\n", length)
			p.printf("  Compression: %s\n", Compression(h.Discriminator))
		} else {
			p.printf("  Header:      %v\n", c.HeaderErr())
		}
		p.printf("  Modified:    %d (%s)\n\n", r.header.Timestamp(c.X, c.Z), r.header.ModTime(c.X, c.Z).Format(time.RFC3339))
		if p.err != nil {
			return p.err
		}

		printed++
		if printed == head {
			break
		}
	}

	p.printf("Total: %d chunks\n", printed)
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

// Digest is the BLAKE3 hash of a document's canonical encoding, so equal
// documents compare equal regardless of how they were compressed.
func Digest(doc *nbt.Tag) ([32]byte, error) {
	h := blake3.New()
	if err := nbt.Write(h, doc); err != nil {
		return [32]byte{}, fmt.Errorf("encoding document for digest: %w", err)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
