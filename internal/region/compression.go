package region

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression is the discriminator byte stored after a chunk's length. The
// values are format constants.
type Compression uint8

const (
	CompressionGzip Compression = 1
	CompressionZlib Compression = 2
	// CompressionNone stores the document uncompressed.
	CompressionNone Compression = 3
	// CompressionLZ4 is an lz4-java LZ4Block stream.
	CompressionLZ4 Compression = 4
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Known reports whether a codec exists for c.
func (c Compression) Known() bool {
	_, ok := codecs[c]
	return ok
}

// ParseCompression parses the String form of a known compression.
func ParseCompression(name string) (Compression, error) {
	for c := range codecs {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

type codec struct {
	decompress func(io.Reader) (io.ReadCloser, error)
	compress   func(io.Writer) io.WriteCloser
}

// New compression kinds are added here only; chunk and header code never
// switch on the discriminator.
var codecs = map[Compression]codec{
	CompressionGzip: {
		decompress: newGzipReader,
		compress:   func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
	},
	CompressionZlib: {
		decompress: func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) },
		compress:   func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) },
	},
	CompressionNone: {
		decompress: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
		compress:   func(w io.Writer) io.WriteCloser { return nopWriteCloser{w} },
	},
	CompressionLZ4: {
		decompress: func(r io.Reader) (io.ReadCloser, error) { return newLZ4BlockReader(r), nil },
		compress:   func(w io.Writer) io.WriteCloser { return newLZ4BlockWriter(w) },
	},
}

// A chunk holds exactly one gzip member; anything after it is padding.
func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	zr.Multistream(false)
	return zr, nil
}

// Decompressor wraps r in the decoding transform for kind.
func Decompressor(kind Compression, r io.Reader) (io.ReadCloser, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, kind)
	}
	return c.decompress(r)
}

// Compressor wraps w in the encoding transform for kind. The caller must
// Close it to flush trailers.
func Compressor(kind Compression, w io.Writer) (io.WriteCloser, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, kind)
	}
	return c.compress(w), nil
}

// Compress encodes data in one shot.
func Compress(kind Compression, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := Compressor(kind, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s compress: %w", kind, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", kind, err)
	}
	return buf.Bytes(), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
