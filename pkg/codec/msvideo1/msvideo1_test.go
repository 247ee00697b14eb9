package msvideo1

import (
	"encoding/binary"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/common"
)

const (
	red   = 0x7c00
	green = 0x03e0
	blue  = 0x001f
	white = 0x7fff
)

// flat encodes a single-color block. The color's top bit is forced so the
// high control byte is at least 0x80; colors in 0x0400..0x07ff would collide
// with the skip escape and are not used.
func flat(col uint16) []byte {
	v := col | 0x8000
	return []byte{byte(v), byte(v >> 8)}
}

func words(vs ...uint16) []byte {
	var out []byte
	for _, v := range vs {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	return out
}

func decoder(t *testing.T, w, h int) *Decoder {
	t.Helper()
	d, err := NewDecoder(w, h)
	require.NoError(t, err)
	return d
}

func TestDecodeFrame_Flat(t *testing.T) {
	d := decoder(t, 4, 4)
	f, err := d.DecodeFrame(flat(blue))
	require.NoError(t, err)
	for _, p := range f.Pix {
		assert.Equal(t, uint16(blue), p)
	}
	assert.Equal(t, 1, d.BlocksVisited())
}

func TestDecodeFrame_TwoColor(t *testing.T) {
	d := decoder(t, 4, 4)
	// flag bit 0 set: the bottom-left pixel takes the first color
	data := append([]byte{0x01, 0x00}, words(red, green)...)

	f, err := d.DecodeFrame(data)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint16(green)
			if x == 0 && y == 3 {
				want = red
			}
			assert.Equal(t, want, f.At(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestDecodeFrame_EightColor(t *testing.T) {
	d := decoder(t, 4, 4)
	colors := []uint16{0x8000 | red, 1, green, 2, blue, 3, white, 4}
	data := append([]byte{0xff, 0x7f}, words(colors...)...)

	f, err := d.DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(red), f.At(0, 3), "bottom-left quadrant")
	assert.Equal(t, uint16(green), f.At(3, 3), "bottom-right quadrant")
	assert.Equal(t, uint16(blue), f.At(0, 0), "top-left quadrant")
	// flag bit 15 is clear: the last pixel takes the second color of its pair
	assert.Equal(t, uint16(4), f.At(3, 0), "top-right quadrant")
	assert.Equal(t, uint16(white), f.At(2, 1))
}

func TestDecodeFrame_BottomUpOrder(t *testing.T) {
	d := decoder(t, 4, 8)
	f, err := d.DecodeFrame(append(flat(red), flat(green)...))
	require.NoError(t, err)

	assert.Equal(t, uint16(green), f.At(0, 0))
	assert.Equal(t, uint16(green), f.At(3, 3))
	assert.Equal(t, uint16(red), f.At(0, 4))
	assert.Equal(t, uint16(red), f.At(3, 7))
}

func TestDecodeFrame_SkipCopiesPrevious(t *testing.T) {
	d := decoder(t, 8, 8)
	first, err := d.DecodeFrame(append(append(flat(red), flat(green)...), append(flat(blue), flat(white)...)...))
	require.NoError(t, err)

	// skip three blocks, then repaint the last one
	second, err := d.DecodeFrame(append([]byte{0x03, 0x84}, flat(red)...))
	require.NoError(t, err)
	assert.Equal(t, 4, d.BlocksVisited())

	assert.Equal(t, first.At(0, 7), second.At(0, 7))
	assert.Equal(t, first.At(7, 7), second.At(7, 7))
	assert.Equal(t, first.At(0, 0), second.At(0, 0))
	assert.Equal(t, uint16(red), second.At(7, 0))
	assert.Equal(t, uint16(white), first.At(7, 0))
}

func TestDecodeFrame_LongSkip(t *testing.T) {
	d := decoder(t, 64, 64)
	var full []byte
	for i := 0; i < 256; i++ {
		full = append(full, flat(uint16(i))...)
	}
	first, err := d.DecodeFrame(full)
	require.NoError(t, err)

	// (0x85-0x84)*256 + 0 skips every block of the frame
	second, err := d.DecodeFrame([]byte{0x00, 0x85})
	require.NoError(t, err)
	assert.Equal(t, first.Pix, second.Pix)
	assert.Equal(t, 256, d.BlocksVisited())
}

func TestDecodeFrame_SkipInFirstFrame(t *testing.T) {
	_, err := decoder(t, 4, 4).DecodeFrame([]byte{0x01, 0x84})
	assert.True(t, common.IsFormatError(err))
}

func TestDecodeFrame_EmptyChunk(t *testing.T) {
	d := decoder(t, 4, 4)
	_, err := d.DecodeFrame(nil)
	assert.True(t, common.IsFormatError(err))

	first, err := d.DecodeFrame(flat(green))
	require.NoError(t, err)
	repeat, err := d.DecodeFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, first.Pix, repeat.Pix)
}

func TestDecodeFrame_Truncated(t *testing.T) {
	d := decoder(t, 8, 4)
	_, err := d.DecodeFrame(flat(red))
	assert.True(t, common.IsBoundsError(err))

	_, err = d.DecodeFrame([]byte{0x01, 0x00, 0x00})
	assert.True(t, common.IsBoundsError(err))
}

func TestDecodeFrame_BlockCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 25; round++ {
		w := 4 * (1 + rng.Intn(20))
		h := 4 * (1 + rng.Intn(20))
		d := decoder(t, w, h)

		blocks := (w / 4) * (h / 4)
		var data []byte
		for i := 0; i < blocks; i++ {
			if rng.Intn(2) == 0 {
				data = append(data, flat(uint16(rng.Intn(0x400)))...)
			} else {
				data = append(data, byte(rng.Intn(256)), byte(rng.Intn(0x80)))
				data = append(data, words(uint16(rng.Intn(0x8000)), uint16(rng.Intn(0x8000)))...)
			}
		}

		f, err := d.DecodeFrame(data)
		require.NoError(t, err, "%dx%d", w, h)
		assert.Equal(t, blocks, d.BlocksVisited(), "%dx%d", w, h)
		assert.Len(t, f.Pix, w*h)
	}
}

func TestNewDecoder_RejectsOddSizes(t *testing.T) {
	for _, size := range [][2]int{{0, 4}, {4, 0}, {6, 4}, {4, 10}, {-4, 4}} {
		_, err := NewDecoder(size[0], size[1])
		assert.True(t, common.IsUnsupported(err), "%v", size)
	}
}

func TestExpand555(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 248, G: 248, B: 248, A: 255}, Expand555(white))
	assert.Equal(t, color.RGBA{R: 248, A: 255}, Expand555(red))
	assert.Equal(t, color.RGBA{G: 8, B: 16, A: 255}, Expand555(0x0022))

	f := &Frame{Width: 1, Height: 1, Pix: []uint16{green}}
	assert.Equal(t, color.RGBA{G: 248, A: 255}, f.RGBA().RGBAAt(0, 0))
}
