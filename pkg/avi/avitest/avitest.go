// Package avitest builds small AVI files for tests.
package avitest

import (
	"encoding/binary"
	"fmt"
)

// Video describes a video stream's header and format.
type Video struct {
	Handler     string
	Compression string
	Width       int32
	Height      int32
	Rate        uint32
	Scale       uint32
}

// Audio describes an audio stream's format. ADPCM formats (tag 2) get the
// extension block with SamplesPerBlock and Coefficients.
type Audio struct {
	FormatTag       uint16
	Channels        uint16
	SampleRate      uint32
	BlockAlign      uint16
	BitsPerSample   uint16
	SamplesPerBlock uint16
	Coefficients    [][2]int16
}

// Stream is one strl entry plus its movi chunks. Type defaults to "vids" or
// "auds" depending on which format is set.
type Stream struct {
	Type   string
	Video  *Video
	Audio  *Audio
	Chunks [][]byte
}

var le = binary.LittleEndian

// Chunk encodes a chunk with WORD padding.
func Chunk(tag string, payload []byte) []byte {
	out := []byte(tag)
	out = le.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)%2 != 0 {
		out = append(out, 0)
	}
	return out
}

// List encodes a LIST of the given type.
func List(kind string, items ...[]byte) []byte {
	body := []byte(kind)
	for _, it := range items {
		body = append(body, it...)
	}
	return Chunk("LIST", body)
}

// Build lays out RIFF "AVI " with hdrl and movi. Chunks are interleaved:
// the first chunk of every stream, then the second, and so on.
func Build(streams []Stream) []byte {
	hdrl := [][]byte{Chunk("avih", mainHeader(streams))}
	for _, s := range streams {
		hdrl = append(hdrl, List("strl", Chunk("strh", streamHeader(s)), Chunk("strf", streamFormat(s))))
	}

	var movi [][]byte
	for i := 0; ; i++ {
		added := false
		for n, s := range streams {
			if i < len(s.Chunks) {
				movi = append(movi, Chunk(ChunkTag(n, s), s.Chunks[i]))
				added = true
			}
		}
		if !added {
			break
		}
	}

	body := []byte("AVI ")
	body = append(body, List("hdrl", hdrl...)...)
	body = append(body, List("movi", movi...)...)
	return Chunk("RIFF", body)
}

// ChunkTag returns the movi tag for stream n.
func ChunkTag(n int, s Stream) string {
	switch {
	case s.Video != nil:
		return fmt.Sprintf("%02ddc", n)
	case s.Audio != nil:
		return fmt.Sprintf("%02dwb", n)
	}
	return fmt.Sprintf("%02dtx", n)
}

func mainHeader(streams []Stream) []byte {
	var out []byte
	var w, h int32
	for _, s := range streams {
		if s.Video != nil {
			w, h = s.Video.Width, s.Video.Height
			break
		}
	}
	fields := []uint32{66666, 0, 0, 0x10, 0, 0, uint32(len(streams)), 0, uint32(w), uint32(abs(h)), 0, 0, 0, 0}
	for _, v := range fields {
		out = le.AppendUint32(out, v)
	}
	return out
}

func streamHeader(s Stream) []byte {
	kind, handler := s.Type, "\x00\x00\x00\x00"
	var rate, scale, sampleSize uint32 = 15, 1, 0
	switch {
	case s.Video != nil:
		if kind == "" {
			kind = "vids"
		}
		if s.Video.Handler != "" {
			handler = s.Video.Handler
		}
		if s.Video.Rate != 0 {
			rate, scale = s.Video.Rate, max(s.Video.Scale, 1)
		}
	case s.Audio != nil:
		if kind == "" {
			kind = "auds"
		}
		rate, scale = s.Audio.SampleRate, 1
		sampleSize = uint32(s.Audio.BlockAlign)
	}

	out := []byte(kind)
	out = append(out, handler...)
	out = le.AppendUint32(out, 0) // flags
	out = le.AppendUint16(out, 0) // priority
	out = le.AppendUint16(out, 0) // language
	for _, v := range []uint32{0, scale, rate, 0, uint32(len(s.Chunks)), 0, 0xffffffff, sampleSize} {
		out = le.AppendUint32(out, v)
	}
	return append(out, make([]byte, 8)...) // rcFrame
}

func streamFormat(s Stream) []byte {
	var out []byte
	switch {
	case s.Video != nil:
		v := s.Video
		out = le.AppendUint32(out, 40)
		out = le.AppendUint32(out, uint32(v.Width))
		out = le.AppendUint32(out, uint32(v.Height))
		out = le.AppendUint16(out, 1)
		out = le.AppendUint16(out, 16)
		out = append(out, v.Compression...)
		for range 5 {
			out = le.AppendUint32(out, 0)
		}
	case s.Audio != nil:
		a := s.Audio
		out = le.AppendUint16(out, a.FormatTag)
		out = le.AppendUint16(out, a.Channels)
		out = le.AppendUint32(out, a.SampleRate)
		out = le.AppendUint32(out, a.SampleRate*uint32(a.BlockAlign))
		out = le.AppendUint16(out, a.BlockAlign)
		out = le.AppendUint16(out, a.BitsPerSample)
		if a.FormatTag == 2 {
			out = le.AppendUint16(out, uint16(4+4*len(a.Coefficients)))
			out = le.AppendUint16(out, a.SamplesPerBlock)
			out = le.AppendUint16(out, uint16(len(a.Coefficients)))
			for _, c := range a.Coefficients {
				out = le.AppendUint16(out, uint16(c[0]))
				out = le.AppendUint16(out, uint16(c[1]))
			}
		}
	default:
		out = make([]byte, 4)
	}
	return out
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
