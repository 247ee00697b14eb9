// Package indeo5 parses Indeo Video 5 picture and GOP headers. Band and
// pixel decoding are not implemented; DecodeFrame reports them unsupported
// once the headers are read.
package indeo5

import (
	"fmt"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
)

// Frame types
const (
	FrameIntra = iota
	FrameInter
	FrameInterScalable
	FrameInterDroppable
	FrameNull
)

const (
	startCode      = 0x1f
	picSizeEscape  = 15
	maxTileSize    = 256
	gopHasSize     = 0x01
	gopYV12        = 0x02
	gopProtected   = 0x20
	gopHasTiles    = 0x40
	frameHasSize   = 0x01
	frameHasChksum = 0x10
)

// commonSizes holds width/height pairs in units of 4 pixels.
var commonSizes = [15][2]int{
	{160, 120}, {80, 60}, {40, 30}, {176, 120}, {88, 60},
	{88, 72}, {44, 36}, {60, 45}, {160, 60}, {176, 60},
	{20, 15}, {22, 18}, {0, 0}, {0, 0}, {0, 0},
}

// GOPHeader is carried by every intra frame.
type GOPHeader struct {
	Flags       uint8
	HeaderSize  uint16
	LockWord    uint32
	TileSize    int
	LumaBands   int
	ChromaBands int
	Width       int
	Height      int
}

// Scalable reports whether the picture is split into wavelet bands.
func (g *GOPHeader) Scalable() bool {
	return g.LumaBands != 1 || g.ChromaBands != 1
}

// PictureHeader is the start of every frame.
type PictureHeader struct {
	FrameType   int
	FrameNumber int
	GOP         *GOPHeader
	// Frame flags follow the band descriptors on intra frames, which are not
	// parsed, so they are only filled in for inter frames.
	HasFrameFlags bool
	FrameFlags    uint8
	HeaderSize    uint32
	Checksum      uint16
}

// ParsePictureHeader reads the picture start code, frame type and number,
// and the GOP or frame flag fields that follow.
func ParsePictureHeader(data []byte) (*PictureHeader, error) {
	b := binio.NewBitCursor(data)

	code, err := b.ReadBits(5)
	if err != nil {
		return nil, err
	}
	if code != startCode {
		return nil, common.NewFormatError("indeo5", "picture start code 0x%02X", code)
	}
	ft, err := b.ReadBits(3)
	if err != nil {
		return nil, err
	}
	if ft > FrameNull {
		return nil, common.NewFormatError("indeo5", "frame type %d", ft)
	}
	num, err := b.ReadBits(8)
	if err != nil {
		return nil, err
	}
	h := &PictureHeader{FrameType: int(ft), FrameNumber: int(num)}

	switch h.FrameType {
	case FrameIntra:
		if h.GOP, err = parseGOP(b); err != nil {
			return nil, fmt.Errorf("GOP header: %w", err)
		}
	case FrameNull:
	default:
		if err := h.parseFrameFlags(b); err != nil {
			return nil, fmt.Errorf("frame flags: %w", err)
		}
	}
	return h, nil
}

func parseGOP(b *binio.BitCursor) (*GOPHeader, error) {
	g := &GOPHeader{}
	flags, err := b.ReadBits(8)
	if err != nil {
		return nil, err
	}
	g.Flags = uint8(flags)

	if g.Flags&gopHasSize != 0 {
		v, err := b.ReadBits(16)
		if err != nil {
			return nil, err
		}
		g.HeaderSize = uint16(v)
	}
	if g.Flags&gopProtected != 0 {
		if g.LockWord, err = b.ReadBits(32); err != nil {
			return nil, err
		}
	}
	if g.Flags&gopHasTiles != 0 {
		v, err := b.ReadBits(2)
		if err != nil {
			return nil, err
		}
		g.TileSize = 64 << v
		if g.TileSize > maxTileSize {
			return nil, common.NewFormatError("indeo5", "tile size %d", g.TileSize)
		}
	}

	luma, err := b.ReadBits(2)
	if err != nil {
		return nil, err
	}
	chroma, err := b.ReadBits(1)
	if err != nil {
		return nil, err
	}
	g.LumaBands = int(luma)*3 + 1
	g.ChromaBands = int(chroma)*3 + 1
	if g.Scalable() && (g.LumaBands != 4 || g.ChromaBands != 1) {
		return nil, &common.UnsupportedError{Feature: "Indeo 5 band layout", Detail: fmt.Sprintf("%d luma, %d chroma", g.LumaBands, g.ChromaBands)}
	}

	idx, err := b.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if idx == picSizeEscape {
		h, err := b.ReadBits(13)
		if err != nil {
			return nil, err
		}
		w, err := b.ReadBits(13)
		if err != nil {
			return nil, err
		}
		g.Width, g.Height = int(w), int(h)
	} else {
		g.Width, g.Height = commonSizes[idx][0]<<2, commonSizes[idx][1]<<2
	}
	if g.Width == 0 || g.Height == 0 {
		return nil, common.NewFormatError("indeo5", "picture size index %d gives %dx%d", idx, g.Width, g.Height)
	}
	if g.Flags&gopYV12 != 0 {
		return nil, &common.UnsupportedError{Feature: "Indeo 5 YV12 picture format"}
	}
	return g, nil
}

func (h *PictureHeader) parseFrameFlags(b *binio.BitCursor) error {
	flags, err := b.ReadBits(8)
	if err != nil {
		return err
	}
	h.HasFrameFlags = true
	h.FrameFlags = uint8(flags)
	if h.FrameFlags&frameHasSize != 0 {
		if h.HeaderSize, err = b.ReadBits(24); err != nil {
			return err
		}
	}
	if h.FrameFlags&frameHasChksum != 0 {
		v, err := b.ReadBits(16)
		if err != nil {
			return err
		}
		h.Checksum = uint16(v)
	}
	return nil
}

// Decoder tracks the GOP in effect across frames.
type Decoder struct {
	gop *GOPHeader
}

// Size returns the picture size of the current GOP, or zeros before the
// first intra frame.
func (d *Decoder) Size() (int, int) {
	if d.gop == nil {
		return 0, 0
	}
	return d.gop.Width, d.gop.Height
}

// DecodeFrame parses the frame's headers and then fails with an
// UnsupportedError, since band decoding is not implemented. Header errors
// are returned as they are.
func (d *Decoder) DecodeFrame(data []byte) (*PictureHeader, error) {
	h, err := ParsePictureHeader(data)
	if err != nil {
		return nil, err
	}
	if h.GOP != nil {
		d.gop = h.GOP
	} else if d.gop == nil && h.FrameType != FrameNull {
		return h, common.NewFormatError("indeo5", "inter frame %d before any intra frame", h.FrameNumber)
	}
	return h, &common.UnsupportedError{Feature: "Indeo 5 band decoding", Detail: fmt.Sprintf("frame %d", h.FrameNumber)}
}
