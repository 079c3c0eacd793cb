package classfile

import (
	"errors"
	"testing"
)

func TestCursorReads(t *testing.T) {
	data := []byte{
		0xFF, // padding outside the image
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		0x00, 0x03, 'a', 'b', 'c',
	}
	c := NewCursor(data, 1, len(data)-1)

	if got := c.U1(); got != 0x01 {
		t.Errorf("U1() = %#x, want 0x01", got)
	}
	if got := c.U2(); got != 0x0203 {
		t.Errorf("U2() = %#x, want 0x0203", got)
	}
	if got := c.U4(); got != 0x04050607 {
		t.Errorf("U4() = %#x, want 0x04050607", got)
	}
	if got := c.U8(); got != 0x08090A0B0C0D0E0F {
		t.Errorf("U8() = %#x, want 0x08090A0B0C0D0E0F", got)
	}
	if got := c.UTF8(); got != "abc" {
		t.Errorf("UTF8() = %q, want %q", got, "abc")
	}
	if err := c.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestCursorTruncation(t *testing.T) {
	tests := []struct {
		name string
		read func(c *Cursor)
	}{
		{"u2", func(c *Cursor) { c.U2() }},
		{"u4", func(c *Cursor) { c.U4() }},
		{"u8", func(c *Cursor) { c.U8() }},
		{"bytes", func(c *Cursor) { c.Bytes(5) }},
		{"skip", func(c *Cursor) { c.Skip(2) }},
		{"utf8 length", func(c *Cursor) { c.U1(); c.UTF8() }},
		{"negative", func(c *Cursor) { c.Bytes(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor([]byte{0x00}, 0, 1)
			tt.read(c)
			err := c.Err()
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("err = %v, want ErrTruncated", err)
			}
			if !errors.Is(err, ErrClassFormat) {
				t.Errorf("err = %v, want it to match ErrClassFormat", err)
			}
		})
	}
}

func TestCursorStickyError(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03}, 0, 3)
	c.U4()
	first := c.Err()
	if first == nil {
		t.Fatal("expected error")
	}
	if got := c.U1(); got != 0 {
		t.Errorf("U1() after error = %d, want 0", got)
	}
	if c.Err() != first {
		t.Errorf("error changed after later read: %v", c.Err())
	}
}

func TestCursorRangeOutsideBuffer(t *testing.T) {
	c := NewCursor(make([]byte, 4), 2, 4)
	if !errors.Is(c.Err(), ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", c.Err())
	}
}

func TestCursorSub(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x01, 0x02, 0x03, 0x04}, 0, 5)
	c.U1()
	sub := c.Sub(2)

	if got := sub.U2(); got != 0x0102 {
		t.Errorf("sub.U2() = %#x, want 0x0102", got)
	}
	sub.U1()
	if !errors.Is(sub.Err(), ErrTruncated) {
		t.Errorf("read past sub end: err = %v, want ErrTruncated", sub.Err())
	}
	var fe *FormatError
	if errors.As(sub.Err(), &fe) && fe.Offset != 3 {
		t.Errorf("offset = %d, want 3", fe.Offset)
	}

	if c.Err() != nil {
		t.Fatalf("parent err = %v, want nil", c.Err())
	}
	if got := c.U1(); got != 0x03 {
		t.Errorf("parent U1() = %#x, want 0x03", got)
	}
}

func TestCursorBytesCopies(t *testing.T) {
	data := []byte{1, 2, 3}
	c := NewCursor(data, 0, 3)
	b := c.Bytes(3)
	b[0] = 9
	if data[0] != 1 {
		t.Error("Bytes returned a slice aliasing the input")
	}
}

func TestCursorMalformedUTF8(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x02, 0xC0, 0x41}, 0, 4)
	c.UTF8()
	if !errors.Is(c.Err(), ErrMalformedUTF8) {
		t.Fatalf("err = %v, want ErrMalformedUTF8", c.Err())
	}
}
