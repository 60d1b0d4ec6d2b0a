package nbt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type encoder struct {
	w   *bufio.Writer
	buf [8]byte
}

// Write encodes t as a named root tag.
func Write(w io.Writer, t *Tag) error {
	if t == nil || t.Kind == KindEnd {
		return fmt.Errorf("%w: root must be a non-End tag", ErrMalformed)
	}
	e := &encoder{w: bufio.NewWriter(w)}
	if err := e.named(t); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *encoder) named(t *Tag) error {
	if err := e.w.WriteByte(byte(t.Kind)); err != nil {
		return err
	}
	if err := e.string(t.Name); err != nil {
		return err
	}
	return e.payload(t.Kind, t.Value)
}

func (e *encoder) u16(v uint16) error {
	binary.BigEndian.PutUint16(e.buf[:2], v)
	_, err := e.w.Write(e.buf[:2])
	return err
}

func (e *encoder) u32(v uint32) error {
	binary.BigEndian.PutUint32(e.buf[:4], v)
	_, err := e.w.Write(e.buf[:4])
	return err
}

func (e *encoder) u64(v uint64) error {
	binary.BigEndian.PutUint64(e.buf[:8], v)
	_, err := e.w.Write(e.buf[:8])
	return err
}

func (e *encoder) string(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes", ErrMalformed, len(s))
	}
	if err := e.u16(uint16(len(s))); err != nil {
		return err
	}
	_, err := e.w.WriteString(s)
	return err
}

func (e *encoder) payload(kind Kind, value any) error {
	mismatch := func() error {
		return fmt.Errorf("%w: %s holds %T", ErrMalformed, kind, value)
	}

	switch kind {
	case KindByte:
		v, ok := value.(int8)
		if !ok {
			return mismatch()
		}
		return e.w.WriteByte(byte(v))
	case KindShort:
		v, ok := value.(int16)
		if !ok {
			return mismatch()
		}
		return e.u16(uint16(v))
	case KindInt:
		v, ok := value.(int32)
		if !ok {
			return mismatch()
		}
		return e.u32(uint32(v))
	case KindLong:
		v, ok := value.(int64)
		if !ok {
			return mismatch()
		}
		return e.u64(uint64(v))
	case KindFloat:
		v, ok := value.(float32)
		if !ok {
			return mismatch()
		}
		return e.u32(math.Float32bits(v))
	case KindDouble:
		v, ok := value.(float64)
		if !ok {
			return mismatch()
		}
		return e.u64(math.Float64bits(v))
	case KindByteArray:
		v, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		if err := e.u32(uint32(len(v))); err != nil {
			return err
		}
		_, err := e.w.Write(v)
		return err
	case KindString:
		v, ok := value.(string)
		if !ok {
			return mismatch()
		}
		return e.string(v)
	case KindList:
		v, ok := value.(*List)
		if !ok || v == nil {
			return mismatch()
		}
		if err := e.w.WriteByte(byte(v.Elem)); err != nil {
			return err
		}
		if err := e.u32(uint32(len(v.Items))); err != nil {
			return err
		}
		for i, it := range v.Items {
			if it.Kind != v.Elem {
				return fmt.Errorf("%w: list of %s has %s at %d", ErrMalformed, v.Elem, it.Kind, i)
			}
			if err := e.payload(it.Kind, it.Value); err != nil {
				return err
			}
		}
		return nil
	case KindCompound:
		v, ok := value.([]*Tag)
		if !ok {
			return mismatch()
		}
		for _, c := range v {
			if c.Kind == KindEnd {
				return fmt.Errorf("%w: TAG_End inside compound", ErrMalformed)
			}
			if err := e.named(c); err != nil {
				return err
			}
		}
		return e.w.WriteByte(byte(KindEnd))
	case KindIntArray:
		v, ok := value.([]int32)
		if !ok {
			return mismatch()
		}
		if err := e.u32(uint32(len(v))); err != nil {
			return err
		}
		return binary.Write(e.w, binary.BigEndian, v)
	case KindLongArray:
		v, ok := value.([]int64)
		if !ok {
			return mismatch()
		}
		if err := e.u32(uint32(len(v))); err != nil {
			return err
		}
		return binary.Write(e.w, binary.BigEndian, v)
	}
	return fmt.Errorf("%w: cannot encode %s", ErrMalformed, kind)
}
