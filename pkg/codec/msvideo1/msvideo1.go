// Package msvideo1 decodes 16-bit Microsoft Video 1 (CRAM) frames.
package msvideo1

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
)

const blockSize = 4

// Frame is a decoded picture in RGB555, rows top-down.
type Frame struct {
	Width  int
	Height int
	Pix    []uint16
}

func newFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// At returns the RGB555 pixel at (x, y), y counted from the top.
func (f *Frame) At(x, y int) uint16 {
	return f.Pix[y*f.Width+x]
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{Width: f.Width, Height: f.Height, Pix: make([]uint16, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// Expand555 widens an RGB555 pixel to 8 bits per channel by shifting.
func Expand555(p uint16) color.RGBA {
	return color.RGBA{
		R: uint8((p>>10)&0x1f) << 3,
		G: uint8((p>>5)&0x1f) << 3,
		B: uint8(p&0x1f) << 3,
		A: 0xff,
	}
}

// RGBA converts the frame to an 8-bit image.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, Expand555(f.At(x, y)))
		}
	}
	return img
}

// Decoder keeps the previous frame for skip runs. It is not safe for
// concurrent use; give each stream its own Decoder.
type Decoder struct {
	width  int
	height int
	prev   *Frame
	blocks int
}

// NewDecoder creates a decoder for width x height frames. Both must be
// positive multiples of 4.
func NewDecoder(width, height int) (*Decoder, error) {
	if width <= 0 || height <= 0 || width%blockSize != 0 || height%blockSize != 0 {
		return nil, &common.UnsupportedError{Feature: "MS Video 1 frame size", Detail: fmt.Sprintf("%dx%d", width, height)}
	}
	return &Decoder{width: width, height: height}, nil
}

// BlocksVisited returns the number of blocks the last DecodeFrame call
// produced.
func (d *Decoder) BlocksVisited() int {
	return d.blocks
}

// Reset forgets the previous frame.
func (d *Decoder) Reset() {
	d.prev = nil
}

// DecodeFrame decodes one chunk. An empty chunk repeats the previous frame.
func (d *Decoder) DecodeFrame(data []byte) (*Frame, error) {
	d.blocks = 0
	if len(data) == 0 {
		if d.prev == nil {
			return nil, common.NewFormatError("msvideo1", "empty first frame")
		}
		return d.prev.Clone(), nil
	}

	c := binio.NewCursor(data)
	frame := newFrame(d.width, d.height)
	blocksWide := d.width / blockSize
	blocksHigh := d.height / blockSize
	skip := 0

	// blocks run left to right starting from the bottom row of blocks
	for by := 0; by < blocksHigh; by++ {
		for bx := 0; bx < blocksWide; bx++ {
			d.blocks++
			if skip > 0 {
				skip--
				if err := d.copyBlock(frame, bx, by); err != nil {
					return nil, err
				}
				continue
			}

			byteA, err := c.ReadU8()
			if err != nil {
				return nil, fmt.Errorf("block %d,%d: %w", bx, by, err)
			}
			byteB, err := c.ReadU8()
			if err != nil {
				return nil, fmt.Errorf("block %d,%d: %w", bx, by, err)
			}

			switch {
			case byteB&0xfc == 0x84:
				skip = max(1, int(byteB-0x84)<<8|int(byteA)) - 1
				if err := d.copyBlock(frame, bx, by); err != nil {
					return nil, err
				}
			case byteB < 0x80:
				if err := decodeQuad(c, frame, bx, by, uint16(byteB)<<8|uint16(byteA)); err != nil {
					return nil, fmt.Errorf("block %d,%d: %w", bx, by, err)
				}
			default:
				fill(frame, bx, by, uint16(byteB)<<8|uint16(byteA))
			}
		}
	}

	d.prev = frame
	return frame.Clone(), nil
}

// pixelIndex maps block-local (px, py) with py counted upwards from the
// bottom row of the block.
func pixelIndex(f *Frame, bx, by, px, py int) int {
	y := f.Height - 1 - (by*blockSize + py)
	return y*f.Width + bx*blockSize + px
}

func (d *Decoder) copyBlock(f *Frame, bx, by int) error {
	if d.prev == nil {
		return common.NewFormatError("msvideo1", "skip in first frame at block %d,%d", bx, by)
	}
	for py := 0; py < blockSize; py++ {
		for px := 0; px < blockSize; px++ {
			i := pixelIndex(f, bx, by, px, py)
			f.Pix[i] = d.prev.Pix[i]
		}
	}
	return nil
}

func fill(f *Frame, bx, by int, col uint16) {
	for py := 0; py < blockSize; py++ {
		for px := 0; px < blockSize; px++ {
			f.Pix[pixelIndex(f, bx, by, px, py)] = col & 0x7fff
		}
	}
}

// decodeQuad paints a two-color block, or an eight-color block with one
// color pair per 2x2 quadrant when the first color has its top bit set.
// Each flag bit, consumed from the least significant end, selects the first
// color of a pair when set.
func decodeQuad(c *binio.Cursor, f *Frame, bx, by int, flags uint16) error {
	var colors [8]uint16
	for i := 0; i < 2; i++ {
		v, err := c.ReadU16()
		if err != nil {
			return err
		}
		colors[i] = v
	}

	quads := colors[0]&0x8000 != 0
	if quads {
		for i := 2; i < 8; i++ {
			v, err := c.ReadU16()
			if err != nil {
				return err
			}
			colors[i] = v
		}
	}

	for py := 0; py < blockSize; py++ {
		for px := 0; px < blockSize; px++ {
			pick := int(flags&1) ^ 1
			flags >>= 1
			if quads {
				pick += (py&2)<<1 + (px & 2)
			}
			f.Pix[pixelIndex(f, bx, by, px, py)] = colors[pick] & 0x7fff
		}
	}
	return nil
}
