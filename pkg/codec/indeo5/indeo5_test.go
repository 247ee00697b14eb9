package indeo5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/common"
)

// bitWriter packs fields least-significant bit first.
type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) put(v uint32, n int) *bitWriter {
	for i := 0; i < n; i++ {
		if w.pos>>3 >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 != 0 {
			w.buf[w.pos>>3] |= 1 << (w.pos & 7)
		}
		w.pos++
	}
	return w
}

func intraFrame(number uint32, gopFlags uint32, extra func(*bitWriter)) []byte {
	w := (&bitWriter{}).put(startCode, 5).put(FrameIntra, 3).put(number, 8).put(gopFlags, 8)
	extra(w)
	return w.buf
}

func TestParsePictureHeader_IntraCommonSize(t *testing.T) {
	data := intraFrame(7, 0, func(w *bitWriter) {
		w.put(0, 2).put(0, 1).put(0, 4)
	})

	h, err := ParsePictureHeader(data)
	require.NoError(t, err)
	assert.Equal(t, FrameIntra, h.FrameType)
	assert.Equal(t, 7, h.FrameNumber)
	require.NotNil(t, h.GOP)
	assert.Equal(t, 640, h.GOP.Width)
	assert.Equal(t, 480, h.GOP.Height)
	assert.Equal(t, 1, h.GOP.LumaBands)
	assert.Equal(t, 1, h.GOP.ChromaBands)
	assert.False(t, h.GOP.Scalable())
	assert.False(t, h.HasFrameFlags)
}

func TestParsePictureHeader_IntraAllFields(t *testing.T) {
	flags := uint32(gopHasSize | gopProtected | gopHasTiles)
	data := intraFrame(1, flags, func(w *bitWriter) {
		w.put(0x1234, 16).put(0xdeadbeef, 32).put(2, 2)
		w.put(1, 2).put(0, 1)
		w.put(picSizeEscape, 4).put(200, 13).put(320, 13)
	})

	h, err := ParsePictureHeader(data)
	require.NoError(t, err)
	g := h.GOP
	assert.Equal(t, uint16(0x1234), g.HeaderSize)
	assert.Equal(t, uint32(0xdeadbeef), g.LockWord)
	assert.Equal(t, 256, g.TileSize)
	assert.Equal(t, 4, g.LumaBands)
	assert.Equal(t, 1, g.ChromaBands)
	assert.True(t, g.Scalable())
	assert.Equal(t, 320, g.Width)
	assert.Equal(t, 200, g.Height)
}

func TestParsePictureHeader_InterFlags(t *testing.T) {
	w := (&bitWriter{}).put(startCode, 5).put(FrameInter, 3).put(9, 8)
	w.put(frameHasSize|frameHasChksum, 8).put(0x123456, 24).put(0xbeef, 16)

	h, err := ParsePictureHeader(w.buf)
	require.NoError(t, err)
	assert.Nil(t, h.GOP)
	assert.True(t, h.HasFrameFlags)
	assert.Equal(t, uint32(0x123456), h.HeaderSize)
	assert.Equal(t, uint16(0xbeef), h.Checksum)
}

func TestParsePictureHeader_NullFrame(t *testing.T) {
	w := (&bitWriter{}).put(startCode, 5).put(FrameNull, 3).put(3, 8)
	h, err := ParsePictureHeader(w.buf)
	require.NoError(t, err)
	assert.Equal(t, FrameNull, h.FrameType)
	assert.False(t, h.HasFrameFlags)
}

func TestParsePictureHeader_Errors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		unsupported bool
	}{
		{"start code", (&bitWriter{}).put(0x1e, 5).put(0, 3).put(0, 8).buf, false},
		{"frame type", (&bitWriter{}).put(startCode, 5).put(6, 3).put(0, 8).buf, false},
		{"tile size", intraFrame(0, gopHasTiles, func(w *bitWriter) { w.put(3, 2).put(0, 2).put(0, 1).put(0, 4) }), false},
		{"empty size slot", intraFrame(0, 0, func(w *bitWriter) { w.put(0, 2).put(0, 1).put(12, 4) }), false},
		{"band layout", intraFrame(0, 0, func(w *bitWriter) { w.put(2, 2).put(0, 1).put(0, 4) }), true},
		{"yv12", intraFrame(0, gopYV12, func(w *bitWriter) { w.put(0, 2).put(0, 1).put(0, 4) }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePictureHeader(tt.data)
			require.Error(t, err)
			if tt.unsupported {
				assert.True(t, common.IsUnsupported(err), "got %v", err)
			} else {
				assert.True(t, common.IsFormatError(err), "got %v", err)
			}
		})
	}

	_, err := ParsePictureHeader([]byte{0x1f})
	assert.True(t, common.IsBoundsError(err))
}

func TestDecoder_DecodeFrame(t *testing.T) {
	d := &Decoder{}

	inter := (&bitWriter{}).put(startCode, 5).put(FrameInter, 3).put(1, 8).put(0, 8).buf
	_, err := d.DecodeFrame(inter)
	assert.True(t, common.IsFormatError(err))

	intra := intraFrame(0, 0, func(w *bitWriter) { w.put(0, 2).put(0, 1).put(1, 4) })
	h, err := d.DecodeFrame(intra)
	require.NotNil(t, h)
	assert.True(t, common.IsUnsupported(err))

	w, hgt := d.Size()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, hgt)

	_, err = d.DecodeFrame(inter)
	assert.True(t, common.IsUnsupported(err))
}
