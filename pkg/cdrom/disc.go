package cdrom

import (
	"encoding/binary"
	"fmt"

	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/iso"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// Red Book audio constants
const (
	AudioChannels      = 2
	AudioSampleRate    = 44100
	AudioBitsPerSample = 16
	WAVHeaderSize      = 44
)

// AudioTrack is one audio track wrapped as a WAV file.
type AudioTrack struct {
	Number int
	Name   string
	WAV    []byte
}

// Disc is the result of splitting a BIN along its CUE sheet.
type Disc struct {
	// ISO holds the cooked data track; nil when the sheet has none.
	ISO    []byte
	Tracks []AudioTrack
}

// TrackName returns the file name used for audio track n.
func TrackName(n int) string {
	return fmt.Sprintf("track%02d.wav", n)
}

// WAVHeader returns the canonical 44-byte PCM header for dataLen bytes of
// Red Book audio.
func WAVHeader(dataLen uint32) []byte {
	return PCMHeader(AudioChannels, AudioSampleRate, AudioBitsPerSample, dataLen)
}

// WAV format tags
const (
	FormatPCM   = 0x0001
	FormatFloat = 0x0003
)

// PCMHeader returns the canonical 44-byte header for dataLen bytes of
// interleaved integer PCM.
func PCMHeader(channels, sampleRate, bitsPerSample int, dataLen uint32) []byte {
	return FormatHeader(FormatPCM, channels, sampleRate, bitsPerSample, dataLen)
}

// FormatHeader returns a 44-byte RIFF/WAVE header with a plain 16-byte fmt
// chunk for the given format tag.
func FormatHeader(formatTag uint16, channels, sampleRate, bitsPerSample int, dataLen uint32) []byte {
	blockAlign := channels * bitsPerSample / 8
	h := make([]byte, WAVHeaderSize)
	le := binary.LittleEndian
	copy(h[0:], "RIFF")
	le.PutUint32(h[4:], 36+dataLen)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	le.PutUint32(h[16:], 16)
	le.PutUint16(h[20:], formatTag)
	le.PutUint16(h[22:], uint16(channels))
	le.PutUint32(h[24:], uint32(sampleRate))
	le.PutUint32(h[28:], uint32(sampleRate*blockAlign))
	le.PutUint16(h[32:], uint16(blockAlign))
	le.PutUint16(h[34:], uint16(bitsPerSample))
	copy(h[36:], "data")
	le.PutUint32(h[40:], dataLen)
	return h
}

// Split slices bin along the sheet's track boundaries. Each track ends where
// the next one starts; the last one runs to the end of the buffer.
func Split(sheet *Sheet, bin []byte) (*Disc, error) {
	disc := &Disc{}
	for i, e := range sheet.Entries {
		next := -1
		if i+1 < len(sheet.Entries) {
			next = sheet.Entries[i+1].Sector
			if next < e.Sector {
				return nil, common.NewFormatError("cue", "track %02d starts before track %02d", sheet.Entries[i+1].Track, e.Track)
			}
		}

		switch e.Type {
		case TrackData:
			if disc.ISO != nil {
				common.LogWarn("Ignoring additional data track %02d", e.Track)
				continue
			}
			data, err := cookDataTrack(NewImage(bin, e.Bitrate), e.Sector, next)
			if err != nil {
				return nil, fmt.Errorf("track %02d: %w", e.Track, err)
			}
			disc.ISO = data
		case TrackAudio:
			pcm, err := NewImage(bin, SectorSize).Range(e.Sector, next)
			if err != nil {
				return nil, fmt.Errorf("track %02d: %w", e.Track, err)
			}
			size, err := common.SafeIntToUint32(len(pcm))
			if err != nil {
				return nil, fmt.Errorf("track %02d: %w", e.Track, err)
			}
			wav := append(WAVHeader(size), pcm...)
			disc.Tracks = append(disc.Tracks, AudioTrack{Number: e.Track, Name: TrackName(e.Track), WAV: wav})
			common.LogInfo(common.InfoAudioTrackExtracted, e.Track, len(pcm))
		}
	}
	return disc, nil
}

// cookDataTrack copies the Mode 1 payload of every sector from the volume
// descriptor area onward into a 2048-byte-per-sector image. The system area
// (first 16 sectors) is left zeroed.
func cookDataTrack(img *Image, start, next int) ([]byte, error) {
	end := next
	if end < 0 {
		end = img.Sectors()
	}
	first := start + iso.DescriptorStart/DataSize
	if end < first {
		return nil, common.NewFormatError("cue", "data track of %d sectors has no volume descriptors", end-start)
	}

	out := make([]byte, iso.DescriptorStart+(end-first)*DataSize)
	for s := first; s < end; s++ {
		payload, err := img.UserData(s)
		if err != nil {
			return nil, err
		}
		copy(out[iso.DescriptorStart+(s-first)*DataSize:], payload)
	}
	return out, nil
}

// Load splits bin, registers every audio track in fs and loads the data
// track as an installer disc. Audio tracks stay registered even when the
// data track fails.
func Load(cue, bin []byte, fs *vfs.FileSystem) (int, error) {
	sheet, err := ParseCue(cue)
	if err != nil {
		return 0, err
	}
	disc, err := Split(sheet, bin)
	if err != nil {
		return 0, err
	}

	registered := 0
	for _, t := range disc.Tracks {
		if _, err := fs.Register(t.Name, t.WAV); err != nil {
			return registered, err
		}
		registered++
	}
	if disc.ISO == nil {
		return registered, &common.InvalidInputError{Reason: "cue sheet has no data track"}
	}
	n, err := iso.Load(disc.ISO, fs)
	return registered + n, err
}
