package nbt

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"unicode/utf8"
)

const (
	// MaxDepth bounds compound/list nesting.
	MaxDepth = 512
	// maxElements bounds a single array or list length.
	maxElements = 1 << 26
	// Arrays are read in steps of at most this many bytes, so a corrupt
	// length prefix costs no more memory than the input actually holds.
	readStep = 64 << 10
)

var (
	ErrMalformed = errors.New("nbt: malformed document")
	ErrTooDeep   = errors.New("nbt: nesting exceeds maximum depth")
)

type decoder struct {
	r     *bufio.Reader
	buf   [8]byte
	depth int
}

// Read decodes one named root tag from r. The root of a chunk document is a
// compound; any other kind is also accepted.
func Read(r io.Reader) (*Tag, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := &decoder{r: br}

	kind, err := d.kind()
	if err != nil {
		return nil, fmt.Errorf("reading root tag kind: %w", err)
	}
	if kind == KindEnd {
		return nil, fmt.Errorf("%w: root tag is TAG_End", ErrMalformed)
	}
	name, err := d.string()
	if err != nil {
		return nil, fmt.Errorf("reading root tag name: %w", err)
	}
	value, err := d.payload(kind)
	if err != nil {
		return nil, fmt.Errorf("reading root %s('%s'): %w", kind, name, err)
	}
	return &Tag{Kind: kind, Name: name, Value: value}, nil
}

func (d *decoder) read(n int) ([]byte, error) {
	b := d.buf[:n]
	if _, err := io.ReadFull(d.r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func (d *decoder) kind() (Kind, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	k := Kind(b)
	if !k.valid() {
		return 0, fmt.Errorf("%w: unknown tag kind %d", ErrMalformed, b)
	}
	return k, nil
}

func (d *decoder) length() (int, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n < 0 || n > maxElements {
		return 0, fmt.Errorf("%w: length %d out of range", ErrMalformed, n)
	}
	return int(n), nil
}

func (d *decoder) string() (string, error) {
	b, err := d.read(2)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(b))
	raw := make([]byte, n)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return decodeModifiedUTF8(raw), nil
}

func (d *decoder) payload(kind Kind) (any, error) {
	switch kind {
	case KindByte:
		b, err := d.read(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case KindShort:
		b, err := d.read(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.BigEndian.Uint16(b)), nil
	case KindInt:
		b, err := d.read(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(b)), nil
	case KindLong:
		b, err := d.read(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case KindFloat:
		b, err := d.read(4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
	case KindDouble:
		b, err := d.read(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case KindByteArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		return d.bytes(n)
	case KindString:
		return d.string()
	case KindList:
		return d.list()
	case KindCompound:
		return d.compound()
	case KindIntArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		raw, err := d.bytes(n * 4)
		if err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case KindLongArray:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		raw, err := d.bytes(n * 8)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s payload", ErrMalformed, kind)
}

// bytes reads n bytes, growing the result as data arrives.
func (d *decoder) bytes(n int) ([]byte, error) {
	out := make([]byte, 0, min(n, readStep))
	for len(out) < n {
		step := min(n-len(out), readStep)
		out = slices.Grow(out, step)
		start := len(out)
		out = out[:start+step]
		if _, err := io.ReadFull(d.r, out[start:]); err != nil {
			return nil, unexpected(err)
		}
	}
	return out, nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return ErrTooDeep
	}
	return nil
}

func (d *decoder) list() (*List, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	elem, err := d.kind()
	if err != nil {
		return nil, err
	}
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	if elem == KindEnd && n > 0 {
		return nil, fmt.Errorf("%w: list of %d TAG_End items", ErrMalformed, n)
	}

	l := &List{Elem: elem}
	for i := range n {
		v, err := d.payload(elem)
		if err != nil {
			return nil, fmt.Errorf("list item %d: %w", i, err)
		}
		l.Items = append(l.Items, &Tag{Kind: elem, Value: v})
	}
	return l, nil
}

func (d *decoder) compound() ([]*Tag, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	var children []*Tag
	for {
		kind, err := d.kind()
		if err != nil {
			return nil, err
		}
		if kind == KindEnd {
			return children, nil
		}
		name, err := d.string()
		if err != nil {
			return nil, err
		}
		v, err := d.payload(kind)
		if err != nil {
			return nil, fmt.Errorf("%s('%s'): %w", kind, name, err)
		}
		children = append(children, &Tag{Kind: kind, Name: name, Value: v})
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// decodeModifiedUTF8 converts Java's modified UTF-8 (NUL as C0 80, supplementary
// characters as surrogate pairs) to a Go string. Plain UTF-8 passes through.
func decodeModifiedUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			out = append(out, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			out = append(out, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			r := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
			if r >= 0xD800 && r < 0xDC00 && i+2 < len(b) && b[i]&0xF0 == 0xE0 {
				lo := rune(b[i]&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
				if lo >= 0xDC00 && lo < 0xE000 {
					r = 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
					i += 3
				}
			}
			out = append(out, r)
		default:
			out = append(out, utf8.RuneError)
			i++
		}
	}
	return string(out)
}
