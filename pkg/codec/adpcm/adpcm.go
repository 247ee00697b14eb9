// Package adpcm decodes Microsoft ADPCM audio blocks to signed 16-bit PCM.
package adpcm

import (
	"fmt"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
)

// MinDelta is the floor applied to the adaptive step after every nibble.
const MinDelta = 16

var adaptationTable = [16]int{
	230, 230, 230, 230, 307, 409, 512, 614,
	768, 614, 512, 409, 307, 230, 230, 230,
}

// DefaultCoefficients is the standard predictor table used when the stream
// format does not carry its own.
var DefaultCoefficients = [][2]int16{
	{256, 0},
	{512, -256},
	{0, 0},
	{192, 64},
	{240, 0},
	{460, -208},
	{392, -232},
}

type channelState struct {
	coeff1  int
	coeff2  int
	delta   int
	sample1 int
	sample2 int
}

// expand decodes one nibble and updates the predictor history.
func (s *channelState) expand(nibble uint8) int16 {
	signed := int(nibble)
	if signed >= 8 {
		signed -= 16
	}

	predictor := ((s.sample1*s.coeff1 + s.sample2*s.coeff2) >> 8) + signed*s.delta
	predictor = max(-32768, min(32767, predictor))

	s.sample2 = s.sample1
	s.sample1 = predictor
	s.delta = max(MinDelta, adaptationTable[nibble&0x0f]*s.delta/256)
	return int16(predictor)
}

// Decoder holds the immutable stream parameters. Predictor state lives only
// for the duration of one DecodeBlock call, so a Decoder may be shared.
type Decoder struct {
	channels        int
	samplesPerBlock int
	blockAlign      int
	coefficients    [][2]int16
}

// NewDecoder validates the stream parameters. A zero samplesPerBlock is
// derived from blockAlign; nil coefficients select DefaultCoefficients.
func NewDecoder(channels, samplesPerBlock, blockAlign int, coefficients [][2]int16) (*Decoder, error) {
	if channels < 1 || channels > 2 {
		return nil, &common.UnsupportedError{Feature: "ADPCM channel count", Detail: fmt.Sprintf("%d", channels)}
	}
	headerSize := 7 * channels
	if blockAlign <= headerSize {
		return nil, common.NewFormatError("adpcm", "block align %d too small for %d channels", blockAlign, channels)
	}
	if samplesPerBlock == 0 {
		samplesPerBlock = (blockAlign-headerSize)*2/channels + 2
	}
	if samplesPerBlock < 2 {
		return nil, common.NewFormatError("adpcm", "%d samples per block", samplesPerBlock)
	}
	if len(coefficients) == 0 {
		coefficients = DefaultCoefficients
	}
	return &Decoder{
		channels:        channels,
		samplesPerBlock: samplesPerBlock,
		blockAlign:      blockAlign,
		coefficients:    coefficients,
	}, nil
}

// Channels returns the channel count.
func (d *Decoder) Channels() int {
	return d.channels
}

// SamplesPerBlock returns the per-channel sample count of a full block.
func (d *Decoder) SamplesPerBlock() int {
	return d.samplesPerBlock
}

// DecodeBlock decodes one block into interleaved samples. A short final
// block yields as many samples as its nibbles describe.
func (d *Decoder) DecodeBlock(block []byte) ([]int16, error) {
	c := binio.NewCursor(block)
	states := make([]channelState, d.channels)

	for ch := range states {
		idx, err := c.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("predictor index: %w", err)
		}
		i := min(int(idx), len(d.coefficients)-1)
		states[ch].coeff1 = int(d.coefficients[i][0])
		states[ch].coeff2 = int(d.coefficients[i][1])
	}
	for ch := range states {
		v, err := c.ReadI16()
		if err != nil {
			return nil, fmt.Errorf("delta: %w", err)
		}
		states[ch].delta = int(v)
	}
	for ch := range states {
		v, err := c.ReadI16()
		if err != nil {
			return nil, fmt.Errorf("sample1: %w", err)
		}
		states[ch].sample1 = int(v)
	}
	for ch := range states {
		v, err := c.ReadI16()
		if err != nil {
			return nil, fmt.Errorf("sample2: %w", err)
		}
		states[ch].sample2 = int(v)
	}

	out := make([]int16, 0, d.samplesPerBlock*d.channels)
	for ch := range states {
		out = append(out, int16(states[ch].sample2))
	}
	for ch := range states {
		out = append(out, int16(states[ch].sample1))
	}

	remaining := (d.samplesPerBlock - 2) * d.channels
	ch := 0
	for remaining > 0 && c.HasMoreData() {
		b, _ := c.ReadU8()
		for _, nibble := range [2]uint8{b >> 4, b & 0x0f} {
			if remaining == 0 {
				break
			}
			out = append(out, states[ch].expand(nibble))
			ch = (ch + 1) % d.channels
			remaining--
		}
	}
	return out, nil
}

// Decode splits data into blockAlign-sized blocks and decodes each one.
func (d *Decoder) Decode(data []byte) ([]int16, error) {
	var out []int16
	for off := 0; off < len(data); off += d.blockAlign {
		end := min(off+d.blockAlign, len(data))
		samples, err := d.DecodeBlock(data[off:end])
		if err != nil {
			return out, fmt.Errorf("block at 0x%X: %w", off, err)
		}
		out = append(out, samples...)
	}
	return out, nil
}

// Normalize scales samples to [-1, 1) for audio sinks that take floats.
func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}
