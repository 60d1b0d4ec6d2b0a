package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"
)

// LZ4Block framing as written by lz4-java's LZ4BlockOutputStream:
//
//	magic "LZ4Block" | token | compressed len (LE) | original len (LE) | checksum (LE) | data
//
// The token's high nibble is the method, the low nibble the block size
// level (block size = 1 << (10 + level)). A block with original length 0
// ends the stream. The checksum is XXH32 of the decompressed block with
// lz4-java's seed, truncated to 28 bits. Zero means the writer skipped it.

var ErrLZ4Block = errors.New("region: malformed lz4 block stream")

const (
	lz4BlockHeaderSize = 8 + 1 + 4 + 4 + 4
	lz4MethodRaw       = 0x10
	lz4MethodLZ4       = 0x20
	lz4MaxBlockSize    = 1 << 25
	lz4WriterLevel     = 6 // 64 KiB blocks
	lz4ChecksumSeed    = 0x9747b28c
	lz4ChecksumMask    = 0x0FFFFFFF
)

var lz4BlockMagic = [8]byte{'L', 'Z', '4', 'B', 'l', 'o', 'c', 'k'}

type lz4BlockReader struct {
	r          io.Reader
	hdr        [lz4BlockHeaderSize]byte
	compressed []byte
	block      []byte
	pos        int
	done       bool
}

func newLZ4BlockReader(r io.Reader) *lz4BlockReader {
	return &lz4BlockReader{r: r}
}

func (l *lz4BlockReader) Read(p []byte) (int, error) {
	for l.pos >= len(l.block) {
		if l.done {
			return 0, io.EOF
		}
		if err := l.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, l.block[l.pos:])
	l.pos += n
	return n, nil
}

func (l *lz4BlockReader) next() error {
	if _, err := io.ReadFull(l.r, l.hdr[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("lz4 block header: %w", err)
	}
	if [8]byte(l.hdr[:8]) != lz4BlockMagic {
		return fmt.Errorf("%w: bad magic %q", ErrLZ4Block, l.hdr[:8])
	}
	method := l.hdr[8] & 0xF0
	compressedLen := int(binary.LittleEndian.Uint32(l.hdr[9:13]))
	originalLen := int(binary.LittleEndian.Uint32(l.hdr[13:17]))
	checksum := binary.LittleEndian.Uint32(l.hdr[17:21])

	l.pos = 0
	l.block = l.block[:0]
	if originalLen == 0 {
		l.done = true
		return nil
	}
	if compressedLen <= 0 || compressedLen > lz4MaxBlockSize || originalLen > lz4MaxBlockSize {
		return fmt.Errorf("%w: block lengths %d/%d", ErrLZ4Block, compressedLen, originalLen)
	}

	if cap(l.compressed) < compressedLen {
		l.compressed = make([]byte, compressedLen)
	}
	l.compressed = l.compressed[:compressedLen]
	if _, err := io.ReadFull(l.r, l.compressed); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("lz4 block data: %w", err)
	}

	if cap(l.block) < originalLen {
		l.block = make([]byte, originalLen)
	}
	l.block = l.block[:originalLen]

	switch method {
	case lz4MethodRaw:
		if compressedLen != originalLen {
			return fmt.Errorf("%w: raw block %d != %d", ErrLZ4Block, compressedLen, originalLen)
		}
		copy(l.block, l.compressed)
	case lz4MethodLZ4:
		n, err := lz4.UncompressBlock(l.compressed, l.block)
		if err != nil {
			return fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != originalLen {
			return fmt.Errorf("%w: got %d bytes, expected %d", ErrLZ4Block, n, originalLen)
		}
	default:
		return fmt.Errorf("%w: method 0x%02x", ErrLZ4Block, method)
	}

	if checksum != 0 {
		if sum := lz4Checksum(l.block); sum != checksum {
			return fmt.Errorf("%w: checksum %08x, computed %08x", ErrLZ4Block, checksum, sum)
		}
	}
	return nil
}

func lz4Checksum(block []byte) uint32 {
	return xxhash.Checksum32S(block, lz4ChecksumSeed) & lz4ChecksumMask
}

func (l *lz4BlockReader) Close() error { return nil }

type lz4BlockWriter struct {
	w      io.Writer
	buf    []byte
	dst    []byte
	closed bool
}

func newLZ4BlockWriter(w io.Writer) *lz4BlockWriter {
	size := 1 << (10 + lz4WriterLevel)
	return &lz4BlockWriter{
		w:   w,
		buf: make([]byte, 0, size),
		dst: make([]byte, lz4.CompressBlockBound(size)),
	}
}

func (l *lz4BlockWriter) Write(p []byte) (int, error) {
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	written := 0
	for len(p) > 0 {
		n := min(cap(l.buf)-len(l.buf), len(p))
		l.buf = append(l.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(l.buf) == cap(l.buf) {
			if err := l.flushBlock(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (l *lz4BlockWriter) flushBlock() error {
	if len(l.buf) == 0 {
		return nil
	}
	method := byte(lz4MethodLZ4)
	data := l.dst
	n, err := lz4.CompressBlock(l.buf, l.dst, nil)
	if err != nil {
		return fmt.Errorf("lz4 compress: %w", err)
	}
	// Zero means incompressible.
	if n == 0 || n >= len(l.buf) {
		method = lz4MethodRaw
		data = l.buf
		n = len(l.buf)
	}
	if err := l.writeHeader(method, n, len(l.buf), lz4Checksum(l.buf)); err != nil {
		return err
	}
	if _, err := l.w.Write(data[:n]); err != nil {
		return err
	}
	l.buf = l.buf[:0]
	return nil
}

func (l *lz4BlockWriter) writeHeader(method byte, compressedLen, originalLen int, checksum uint32) error {
	var hdr [lz4BlockHeaderSize]byte
	copy(hdr[:8], lz4BlockMagic[:])
	hdr[8] = method | lz4WriterLevel
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(compressedLen))
	binary.LittleEndian.PutUint32(hdr[13:17], uint32(originalLen))
	binary.LittleEndian.PutUint32(hdr[17:21], checksum)
	_, err := l.w.Write(hdr[:])
	return err
}

// Close flushes the pending block and writes the end marker.
func (l *lz4BlockWriter) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.flushBlock(); err != nil {
		return err
	}
	return l.writeHeader(lz4MethodRaw, 0, 0, 0)
}
