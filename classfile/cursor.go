package classfile

import (
	"encoding/binary"
	"fmt"
)

// Cursor is a forward-only reader over one class image. The first failed read
// is remembered; every later read returns a zero value, so callers may read a
// run of fields and check Err once.
type Cursor struct {
	data []byte
	base int
	pos  int
	err  error
}

// NewCursor returns a cursor over data[offset : offset+length]. A range that
// does not fit in data yields a cursor whose first read fails with ErrTruncated.
func NewCursor(data []byte, offset, length int) *Cursor {
	if offset < 0 || length < 0 || offset > len(data) || length > len(data)-offset {
		return &Cursor{err: &FormatError{
			Kind:   ErrTruncated,
			Offset: 0,
			Detail: "image range lies outside the buffer",
		}}
	}
	return &Cursor{data: data[offset : offset+length]}
}

func (c *Cursor) Err() error { return c.err }

// Pos is the read position relative to the start of the image.
func (c *Cursor) Pos() int { return c.base + c.pos }

func (c *Cursor) Len() int { return len(c.data) }

func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Fail records err as the cursor's error unless one is already set.
func (c *Cursor) Fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.data)-c.pos {
		c.err = &FormatError{
			Kind:   ErrTruncated,
			Offset: c.base + c.pos,
			Detail: formatWant(n, len(c.data)-c.pos),
		}
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *Cursor) U1() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *Cursor) U2() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (c *Cursor) U4() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (c *Cursor) U8() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Bytes returns a copy of the next n bytes.
func (c *Cursor) Bytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (c *Cursor) Skip(n int) {
	c.take(n)
}

// Sub consumes the next n bytes and returns a cursor limited to them.
// Reads past the end of the sub-cursor fail with ErrTruncated even when the
// parent has bytes left.
func (c *Cursor) Sub(n int) *Cursor {
	start := c.base + c.pos
	b := c.take(n)
	if c.err != nil {
		return &Cursor{base: start, err: c.err}
	}
	return &Cursor{data: b, base: start}
}

// UTF8 reads a u2 length prefix followed by that many bytes of modified UTF-8.
func (c *Cursor) UTF8() string {
	start := c.Pos()
	n := int(c.U2())
	b := c.take(n)
	if c.err != nil {
		return ""
	}
	s, err := DecodeModifiedUTF8(b)
	if err != nil {
		c.err = &FormatError{Kind: ErrMalformedUTF8, Offset: start, Detail: err.Error()}
		return ""
	}
	return s
}

func formatWant(want, have int) string {
	return fmt.Sprintf("need %d bytes, have %d", want, have)
}
