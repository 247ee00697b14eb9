// Package riff reads RIFF chunk trees held in memory. Every item is handed
// out as a bounded sub-reader so a malformed child cannot read past its
// parent.
package riff

import (
	"fmt"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
)

// Well-known tags
const (
	TagRIFF = "RIFF"
	TagLIST = "LIST"
	TagJUNK = "JUNK"
)

const itemHeaderSize = 8

// Item is one chunk or list. For lists Type holds the inner form type and
// Reader is positioned after it.
type Item struct {
	Tag    string
	Type   string
	Size   uint32
	Offset int
	Reader *Reader
}

// IsList reports whether the item is a LIST.
func (it *Item) IsList() bool {
	return it.Tag == TagLIST
}

// Data returns the unread bytes of the item.
func (it *Item) Data() []byte {
	return it.Reader.Remaining()
}

// Reader walks a sequence of items.
type Reader struct {
	c *binio.Cursor
	// base is the absolute offset of c's first byte, for error messages
	base int
}

// NewReader reads items from data.
func NewReader(data []byte) *Reader {
	return &Reader{c: binio.NewCursor(data)}
}

// Open validates the RIFF header, checks the form type and returns a reader
// over the form's items.
func Open(data []byte, form string) (*Reader, error) {
	r := NewReader(data)
	tag, err := r.ReadFourCC()
	if err != nil {
		return nil, err
	}
	if tag != TagRIFF {
		return nil, common.NewFormatError("riff", "expected %q, got %q", TagRIFF, tag)
	}
	size, err := r.c.ReadU32()
	if err != nil {
		return nil, err
	}
	got, err := r.ReadFourCC()
	if err != nil {
		return nil, err
	}
	if got != form {
		return nil, common.NewFormatError("riff", "expected form %q, got %q", form, got)
	}

	body := int(size) - 4
	if body > r.c.Remaining() || body < 0 {
		common.LogWarn("RIFF size %d exceeds the %d bytes available, reading what is present", size, r.c.Remaining()+4)
		body = r.c.Remaining()
	}
	sub, err := r.c.ReadBytes(body)
	if err != nil {
		return nil, err
	}
	return &Reader{c: binio.NewCursor(sub), base: 12}, nil
}

// Cursor exposes the underlying byte cursor for reading chunk payloads.
func (r *Reader) Cursor() *binio.Cursor {
	return r.c
}

// HasMoreData reports whether another item header could follow.
func (r *Reader) HasMoreData() bool {
	return r.c.Remaining() >= itemHeaderSize
}

// Remaining returns the unread bytes.
func (r *Reader) Remaining() []byte {
	b, _ := r.c.Slice(r.c.Tell(), r.c.Remaining())
	return b
}

// ReadFourCC reads a four-character code.
func (r *Reader) ReadFourCC() (string, error) {
	return r.c.ReadFourCC()
}

// ReadItem reads the next item, skipping JUNK, and advances past the item's
// WORD-alignment padding.
func (r *Reader) ReadItem() (*Item, error) {
	for {
		offset := r.base + r.c.Tell()
		tag, err := r.c.ReadFourCC()
		if err != nil {
			return nil, err
		}
		size, err := r.c.ReadU32()
		if err != nil {
			return nil, err
		}
		data, err := r.c.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("item %q at 0x%X: %w", tag, offset, err)
		}
		if size%2 != 0 && r.c.HasMoreData() {
			_ = r.c.Skip(1)
		}
		if tag == TagJUNK {
			continue
		}

		item := &Item{
			Tag:    tag,
			Size:   size,
			Offset: offset,
			Reader: &Reader{c: binio.NewCursor(data), base: offset + itemHeaderSize},
		}
		if tag == TagLIST {
			if item.Type, err = item.Reader.ReadFourCC(); err != nil {
				return nil, fmt.Errorf("list at 0x%X: %w", offset, err)
			}
		}
		return item, nil
	}
}

// ReadList reads the next item and requires it to be a LIST of type
// expected.
func (r *Reader) ReadList(expected string) (*Item, error) {
	item, err := r.ReadItem()
	if err != nil {
		return nil, err
	}
	if !item.IsList() {
		return nil, common.NewFormatError("riff", "expected LIST %q at 0x%X, got chunk %q", expected, item.Offset, item.Tag)
	}
	if item.Type != expected {
		return nil, common.NewFormatError("riff", "expected LIST %q at 0x%X, got %q", expected, item.Offset, item.Type)
	}
	return item, nil
}

// FindList reads items until a LIST of type expected is found.
func (r *Reader) FindList(expected string) (*Item, error) {
	for r.HasMoreData() {
		item, err := r.ReadItem()
		if err != nil {
			return nil, err
		}
		if item.IsList() && item.Type == expected {
			return item, nil
		}
	}
	return nil, &common.NotFoundError{Container: "riff", Name: "LIST " + expected}
}

// ForEachItem drains the reader, calling fn for every item.
func (r *Reader) ForEachItem(fn func(*Item) error) error {
	for r.HasMoreData() {
		item, err := r.ReadItem()
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}
