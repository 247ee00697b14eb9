// Package binio provides bounds-checked little-endian readers over in-memory
// buffers. Every container and codec parser reads through a Cursor so that a
// truncated or corrupt asset fails with a BoundsError instead of a panic.
package binio

import (
	"bytes"
	"encoding/binary"

	"github.com/hansbonini/discrip/pkg/common"
)

// Cursor reads little-endian values from a byte slice. The slice is never
// modified; sub-slices returned by ReadBytes alias the source buffer.
type Cursor struct {
	data     []byte
	pos      int
	codePage *CodePage
}

// NewCursor creates a cursor over data using the default code page.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, codePage: DefaultCodePage}
}

// WithCodePage sets the table used by string reads and returns c.
func (c *Cursor) WithCodePage(cp *CodePage) *Cursor {
	if cp != nil {
		c.codePage = cp
	}
	return c
}

// Len returns the total length of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Tell returns the current read offset.
func (c *Cursor) Tell() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// HasMoreData reports whether at least one byte is left.
func (c *Cursor) HasMoreData() bool {
	return c.pos < len(c.data)
}

// Bytes returns the whole underlying buffer.
func (c *Cursor) Bytes() []byte {
	return c.data
}

func (c *Cursor) check(offset, width int) error {
	if offset < 0 || width < 0 || offset+width > len(c.data) {
		return &common.BoundsError{Offset: offset, Width: width, Length: len(c.data)}
	}
	return nil
}

// Seek moves to an absolute offset. Seeking to Len() is allowed.
func (c *Cursor) Seek(offset int) error {
	if err := c.check(offset, 0); err != nil {
		return err
	}
	c.pos = offset
	return nil
}

// Skip advances by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.check(c.pos, n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// ReadU8 reads one unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.check(c.pos, 1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

// ReadI8 reads one signed byte.
func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.check(c.pos, 2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

// ReadI16 reads a little-endian int16.
func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.check(c.pos, 4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadI32 reads a little-endian int32.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadBytes returns the next n bytes as a view into the source buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.check(c.pos, n); err != nil {
		return nil, err
	}
	v := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return v, nil
}

// Slice returns data[offset:offset+n] without moving the cursor.
func (c *Cursor) Slice(offset, n int) ([]byte, error) {
	if err := c.check(offset, n); err != nil {
		return nil, err
	}
	return c.data[offset : offset+n : offset+n], nil
}

// ReadString reads a fixed-length field, trims it at the first NUL and
// decodes it through the code page.
func (c *Cursor) ReadString(n int) (string, error) {
	raw, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if idx := bytes.IndexByte(raw, 0); idx >= 0 {
		raw = raw[:idx]
	}
	return c.codePage.Decode(raw), nil
}

// ReadCString reads a NUL-terminated string and consumes the terminator.
// A string that runs to the end of the buffer without a NUL is a BoundsError.
func (c *Cursor) ReadCString() (string, error) {
	idx := bytes.IndexByte(c.data[c.pos:], 0)
	if idx < 0 {
		return "", &common.BoundsError{Offset: c.pos, Width: len(c.data) - c.pos + 1, Length: len(c.data)}
	}
	s := c.codePage.Decode(c.data[c.pos : c.pos+idx])
	c.pos += idx + 1
	return s, nil
}

// CStringAt reads a NUL-terminated string at offset without moving the cursor.
func (c *Cursor) CStringAt(offset int) (string, error) {
	if err := c.check(offset, 0); err != nil {
		return "", err
	}
	saved := c.pos
	c.pos = offset
	s, err := c.ReadCString()
	c.pos = saved
	return s, err
}

// ReadFourCC reads a four-character code as raw ASCII.
func (c *Cursor) ReadFourCC() (string, error) {
	raw, err := c.ReadBytes(4)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
