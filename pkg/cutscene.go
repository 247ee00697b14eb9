// Package pkg provides cutscene decoding.
// This file contains the CutsceneProcessor, which picks a decoder for each
// AVI stream and turns its chunks into frames and PCM samples.
package pkg

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/avi"
	"github.com/hansbonini/discrip/pkg/codec/adpcm"
	"github.com/hansbonini/discrip/pkg/codec/indeo5"
	"github.com/hansbonini/discrip/pkg/codec/msvideo1"
	"github.com/hansbonini/discrip/pkg/common"
)

// Cutscene is a parsed AVI with the output of its first video and audio
// streams.
type Cutscene struct {
	File  *avi.File
	Video *avi.Stream
	Audio *avi.Stream

	Frames     []*msvideo1.Frame
	Samples    []int16
	Channels   int
	SampleRate int
}

// Duration returns the video length in seconds, 0 when unknown.
func (c *Cutscene) Duration() float64 {
	if c.Video == nil || c.Video.FrameRate() == 0 {
		return 0
	}
	return float64(len(c.Video.Chunks)) / c.Video.FrameRate()
}

// CutsceneProcessor decodes cutscene AVIs.
type CutsceneProcessor struct{}

// NewCutsceneProcessor creates a new cutscene processor instance.
func NewCutsceneProcessor() *CutsceneProcessor {
	return &CutsceneProcessor{}
}

// Open parses data and selects the first video and audio streams. A file
// with neither is a FormatError.
func (p *CutsceneProcessor) Open(data []byte) (*Cutscene, error) {
	f, err := avi.Parse(data)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToParseAVI, err)
	}
	c := &Cutscene{File: f}
	c.Video, _ = f.First(avi.StreamVideo)
	c.Audio, _ = f.First(avi.StreamAudio)
	if c.Video == nil && c.Audio == nil {
		return nil, common.NewFormatError("avi", "no video or audio stream")
	}
	return c, nil
}

// Decode opens data and decodes both streams. A stream that cannot be
// decoded does not stop the other one; both errors are returned combined
// with whatever was decoded.
func (p *CutsceneProcessor) Decode(data []byte) (*Cutscene, error) {
	c, err := p.Open(data)
	if err != nil {
		return nil, err
	}
	var errs error
	if c.Video != nil {
		errs = multierr.Append(errs, p.DecodeVideo(c))
	}
	if c.Audio != nil {
		errs = multierr.Append(errs, p.DecodeAudio(c))
	}
	return c, errs
}

// DecodeVideo fills c.Frames from the video stream.
func (p *CutsceneProcessor) DecodeVideo(c *Cutscene) error {
	s := c.Video
	if s == nil {
		return &common.NotFoundError{Container: "avi", Name: "video stream"}
	}
	switch s.Codec() {
	case avi.CodecMSVideo1:
		frames, err := decodeMSVideo1(s)
		c.Frames = frames
		if err != nil {
			return common.WrapError(common.ErrFailedToDecodeVideo, err)
		}
		return nil
	case avi.CodecIndeo5:
		return common.WrapError(common.ErrFailedToDecodeVideo, decodeIndeo5(s))
	}
	return &common.UnsupportedError{Feature: "video codec", Detail: s.Video.Compression}
}

func decodeMSVideo1(s *avi.Stream) ([]*msvideo1.Frame, error) {
	w, h := abs(int(s.Video.Width)), abs(int(s.Video.Height))
	d, err := msvideo1.NewDecoder(w, h)
	if err != nil {
		return nil, err
	}
	frames := make([]*msvideo1.Frame, 0, len(s.Chunks))
	for i, chunk := range s.Chunks {
		f, err := d.DecodeFrame(chunk)
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// decodeIndeo5 parses the first picture header for the log and reports the
// stream unsupported.
func decodeIndeo5(s *avi.Stream) error {
	if len(s.Chunks) == 0 {
		return common.NewFormatError("indeo5", "stream %d has no frames", s.Index)
	}
	d := &indeo5.Decoder{}
	h, err := d.DecodeFrame(s.Chunks[0])
	if h != nil && h.GOP != nil {
		w, hgt := d.Size()
		common.LogDebug("Indeo 5 stream %d: %dx%d, %d luma bands", s.Index, w, hgt, h.GOP.LumaBands)
	}
	return err
}

// DecodeAudio fills c.Samples, c.Channels and c.SampleRate from the audio
// stream.
func (p *CutsceneProcessor) DecodeAudio(c *Cutscene) error {
	s := c.Audio
	if s == nil {
		return &common.NotFoundError{Container: "avi", Name: "audio stream"}
	}
	wf := s.Audio
	c.Channels = int(wf.Channels)
	c.SampleRate = int(wf.SamplesPerSec)

	switch s.Codec() {
	case avi.CodecADPCM:
		d, err := adpcm.NewDecoder(int(wf.Channels), int(wf.SamplesPerBlock), int(wf.BlockAlign), wf.Coefficients)
		if err != nil {
			return common.WrapError(common.ErrFailedToDecodeAudio, err)
		}
		for i, chunk := range s.Chunks {
			samples, err := d.Decode(chunk)
			c.Samples = append(c.Samples, samples...)
			if err != nil {
				return common.WrapError(common.ErrFailedToDecodeAudio, fmt.Errorf("chunk %d: %w", i, err))
			}
		}
		return nil
	case avi.CodecPCM:
		if wf.BitsPerSample != 16 {
			return &common.UnsupportedError{Feature: "PCM sample size", Detail: fmt.Sprintf("%d bits", wf.BitsPerSample)}
		}
		for _, chunk := range s.Chunks {
			for i := 0; i+1 < len(chunk); i += 2 {
				c.Samples = append(c.Samples, int16(binary.LittleEndian.Uint16(chunk[i:])))
			}
		}
		return nil
	}
	return &common.UnsupportedError{Feature: "audio format", Detail: fmt.Sprintf("0x%04X", wf.FormatTag)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
