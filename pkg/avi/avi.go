// Package avi parses AVI files into per-stream headers, formats and the
// ordered list of data chunks each stream owns.
package avi

import (
	"fmt"
	"strconv"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/riff"
)

// Stream types
const (
	StreamVideo = "vids"
	StreamAudio = "auds"
)

// Codec names resolved from the stream format.
const (
	CodecMSVideo1 = "msvideo1"
	CodecIndeo5   = "indeo5"
	CodecADPCM    = "adpcm"
	CodecPCM      = "pcm"
)

// Wave format tags
const (
	WaveFormatPCM   = 0x0001
	WaveFormatADPCM = 0x0002
)

var videoCodecs = map[string]string{
	"CRAM": CodecMSVideo1,
	"cram": CodecMSVideo1,
	"MSVC": CodecMSVideo1,
	"msvc": CodecMSVideo1,
	"WHAM": CodecMSVideo1,
	"wham": CodecMSVideo1,
	"IV50": CodecIndeo5,
	"iv50": CodecIndeo5,
}

// MainHeader is the "avih" chunk.
type MainHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
}

// StreamHeader is the "strh" chunk.
type StreamHeader struct {
	Type                string
	Handler             string
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
}

// BitmapInfo is the BITMAPINFOHEADER of a video stream's "strf".
type BitmapInfo struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   string
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
	Extra         []byte
}

// WaveFormat is the WAVEFORMATEX of an audio stream's "strf", with the
// MS-ADPCM extension when present.
type WaveFormat struct {
	FormatTag       uint16
	Channels        uint16
	SamplesPerSec   uint32
	AvgBytesPerSec  uint32
	BlockAlign      uint16
	BitsPerSample   uint16
	SamplesPerBlock uint16
	Coefficients    [][2]int16
}

// Stream is one recognised stream and its data chunks in file order.
type Stream struct {
	Index  int
	Header StreamHeader
	Video  *BitmapInfo
	Audio  *WaveFormat
	Chunks [][]byte
}

// Codec names the decoder the stream needs, or "" if unknown.
func (s *Stream) Codec() string {
	switch {
	case s.Video != nil:
		if c, ok := videoCodecs[s.Video.Compression]; ok {
			return c
		}
		return videoCodecs[s.Header.Handler]
	case s.Audio != nil:
		switch s.Audio.FormatTag {
		case WaveFormatADPCM:
			return CodecADPCM
		case WaveFormatPCM:
			return CodecPCM
		}
	}
	return ""
}

// FrameRate returns frames (or blocks) per second, 0 when unknown.
func (s *Stream) FrameRate() float64 {
	if s.Header.Scale == 0 {
		return 0
	}
	return float64(s.Header.Rate) / float64(s.Header.Scale)
}

// File is a parsed AVI.
type File struct {
	Header  MainHeader
	Streams []*Stream
	byIndex map[int]*Stream
}

// Stream returns the stream with ordinal index i.
func (f *File) Stream(i int) (*Stream, error) {
	s, ok := f.byIndex[i]
	if !ok {
		return nil, &common.NotFoundError{Container: "avi", Name: "stream " + strconv.Itoa(i)}
	}
	return s, nil
}

// First returns the first stream of the given type.
func (f *File) First(kind string) (*Stream, error) {
	for _, s := range f.Streams {
		if s.Header.Type == kind {
			return s, nil
		}
	}
	return nil, &common.NotFoundError{Container: "avi", Name: kind + " stream"}
}

// Parse reads the header list and buckets every "movi" chunk into its
// stream.
func Parse(data []byte) (*File, error) {
	r, err := riff.Open(data, "AVI ")
	if err != nil {
		return nil, err
	}

	hdrl, err := r.ReadList("hdrl")
	if err != nil {
		return nil, err
	}
	f := &File{byIndex: make(map[int]*Stream)}
	if err := f.parseHeaderList(hdrl.Reader); err != nil {
		return nil, err
	}

	movi, err := r.FindList("movi")
	if err != nil {
		return nil, err
	}
	if err := f.bucket(movi.Reader); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parseHeaderList(r *riff.Reader) error {
	avih, err := r.ReadItem()
	if err != nil {
		return fmt.Errorf("main header: %w", err)
	}
	if avih.Tag != "avih" {
		return common.NewFormatError("avi", "expected avih, got %q", avih.Tag)
	}
	if err := readMainHeader(avih.Reader.Cursor(), &f.Header); err != nil {
		return fmt.Errorf("main header: %w", err)
	}

	index := 0
	return r.ForEachItem(func(item *riff.Item) error {
		if !item.IsList() || item.Type != "strl" {
			return nil
		}
		defer func() { index++ }()

		s, err := parseStreamList(index, item.Reader)
		if err != nil {
			return fmt.Errorf("stream %d: %w", index, err)
		}
		if s == nil {
			return nil
		}
		common.LogDebug(common.DebugAVIStream, index, s.Header.Type, s.Codec())
		f.Streams = append(f.Streams, s)
		f.byIndex[index] = s
		return nil
	})
}

// parseStreamList returns nil for stream types other than video and audio.
func parseStreamList(index int, r *riff.Reader) (*Stream, error) {
	strh, err := r.ReadItem()
	if err != nil {
		return nil, err
	}
	if strh.Tag != "strh" {
		return nil, common.NewFormatError("avi", "expected strh, got %q", strh.Tag)
	}
	strf, err := r.ReadItem()
	if err != nil {
		return nil, err
	}
	if strf.Tag != "strf" {
		return nil, common.NewFormatError("avi", "expected strf, got %q", strf.Tag)
	}

	s := &Stream{Index: index}
	if err := readStreamHeader(strh.Reader.Cursor(), &s.Header); err != nil {
		return nil, err
	}

	switch s.Header.Type {
	case StreamVideo:
		s.Video = &BitmapInfo{}
		err = readBitmapInfo(strf.Reader.Cursor(), s.Video)
	case StreamAudio:
		s.Audio = &WaveFormat{}
		err = readWaveFormat(strf.Reader.Cursor(), s.Audio)
	default:
		common.LogWarn(common.WarnUnknownStreamType, index, s.Header.Type)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("strf: %w", err)
	}
	return s, nil
}

// bucket walks "movi", descending into "rec " lists. Chunk tags start with a
// two-digit stream index ("00dc", "01wb").
func (f *File) bucket(r *riff.Reader) error {
	return r.ForEachItem(func(item *riff.Item) error {
		if item.IsList() {
			if item.Type == "rec " {
				return f.bucket(item.Reader)
			}
			return nil
		}

		index, err := strconv.Atoi(item.Tag[:2])
		if err != nil {
			common.LogDebug("Ignoring movi chunk %q", item.Tag)
			return nil
		}
		s, ok := f.byIndex[index]
		if !ok {
			common.LogWarn(common.WarnUnknownChunkStream, item.Tag, index)
			return nil
		}
		common.LogDebug(common.DebugAVIChunkBucketed, item.Tag, index, item.Size)
		s.Chunks = append(s.Chunks, item.Data())
		return nil
	})
}

func readMainHeader(c *binio.Cursor, h *MainHeader) error {
	fields := []*uint32{
		&h.MicroSecPerFrame, &h.MaxBytesPerSec, &h.PaddingGranularity, &h.Flags,
		&h.TotalFrames, &h.InitialFrames, &h.Streams, &h.SuggestedBufferSize,
		&h.Width, &h.Height,
	}
	for _, p := range fields {
		v, err := c.ReadU32()
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func readStreamHeader(c *binio.Cursor, h *StreamHeader) error {
	var err error
	if h.Type, err = c.ReadFourCC(); err != nil {
		return err
	}
	if h.Handler, err = c.ReadFourCC(); err != nil {
		return err
	}
	if h.Flags, err = c.ReadU32(); err != nil {
		return err
	}
	if h.Priority, err = c.ReadU16(); err != nil {
		return err
	}
	if h.Language, err = c.ReadU16(); err != nil {
		return err
	}
	fields := []*uint32{
		&h.InitialFrames, &h.Scale, &h.Rate, &h.Start, &h.Length,
		&h.SuggestedBufferSize, &h.Quality, &h.SampleSize,
	}
	for _, p := range fields {
		if *p, err = c.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func readBitmapInfo(c *binio.Cursor, b *BitmapInfo) error {
	var err error
	if b.Size, err = c.ReadU32(); err != nil {
		return err
	}
	if b.Width, err = c.ReadI32(); err != nil {
		return err
	}
	if b.Height, err = c.ReadI32(); err != nil {
		return err
	}
	if b.Planes, err = c.ReadU16(); err != nil {
		return err
	}
	if b.BitCount, err = c.ReadU16(); err != nil {
		return err
	}
	if b.Compression, err = c.ReadFourCC(); err != nil {
		return err
	}
	if b.SizeImage, err = c.ReadU32(); err != nil {
		return err
	}
	if b.XPelsPerMeter, err = c.ReadI32(); err != nil {
		return err
	}
	if b.YPelsPerMeter, err = c.ReadI32(); err != nil {
		return err
	}
	if b.ClrUsed, err = c.ReadU32(); err != nil {
		return err
	}
	if b.ClrImportant, err = c.ReadU32(); err != nil {
		return err
	}
	b.Extra, err = c.ReadBytes(c.Remaining())
	return err
}

func readWaveFormat(c *binio.Cursor, w *WaveFormat) error {
	var err error
	if w.FormatTag, err = c.ReadU16(); err != nil {
		return err
	}
	if w.Channels, err = c.ReadU16(); err != nil {
		return err
	}
	if w.SamplesPerSec, err = c.ReadU32(); err != nil {
		return err
	}
	if w.AvgBytesPerSec, err = c.ReadU32(); err != nil {
		return err
	}
	if w.BlockAlign, err = c.ReadU16(); err != nil {
		return err
	}
	if w.BitsPerSample, err = c.ReadU16(); err != nil {
		return err
	}
	if w.FormatTag != WaveFormatADPCM || c.Remaining() < 2 {
		return nil
	}

	if _, err = c.ReadU16(); err != nil { // cbSize
		return err
	}
	if w.SamplesPerBlock, err = c.ReadU16(); err != nil {
		return err
	}
	numCoef, err := c.ReadU16()
	if err != nil {
		return err
	}
	w.Coefficients = make([][2]int16, numCoef)
	for i := range w.Coefficients {
		if w.Coefficients[i][0], err = c.ReadI16(); err != nil {
			return err
		}
		if w.Coefficients[i][1], err = c.ReadI16(); err != nil {
			return err
		}
	}
	return nil
}
