package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/avi"
	"github.com/hansbonini/discrip/pkg/avi/avitest"
	"github.com/hansbonini/discrip/pkg/codec/adpcm"
	"github.com/hansbonini/discrip/pkg/common"
)

// adpcmBlock is a mono block with predictor 0, delta 16, zero seeds and four
// nibbles of 8.
var adpcmBlock = []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x88, 0x88}

func adpcmStream(chunks ...[]byte) avitest.Stream {
	return avitest.Stream{
		Audio: &avitest.Audio{
			FormatTag: avi.WaveFormatADPCM, Channels: 1, SampleRate: 22050,
			BlockAlign: 9, BitsPerSample: 4, SamplesPerBlock: 6,
			Coefficients: adpcm.DefaultCoefficients,
		},
		Chunks: chunks,
	}
}

func TestCutsceneProcessor_Decode(t *testing.T) {
	video := avitest.Stream{
		Video: &avitest.Video{Compression: "CRAM", Width: 4, Height: -4, Rate: 15, Scale: 1},
		// a flat blue block, then a drop frame
		Chunks: [][]byte{{0x1f, 0x80}, {}},
	}
	data := avitest.Build([]avitest.Stream{video, adpcmStream(adpcmBlock, adpcmBlock)})

	c, err := NewCutsceneProcessor().Decode(data)
	require.NoError(t, err)

	require.Len(t, c.Frames, 2)
	assert.Equal(t, uint16(0x001f), c.Frames[0].At(0, 0))
	assert.Equal(t, c.Frames[0].Pix, c.Frames[1].Pix)
	assert.InDelta(t, 2.0/15, c.Duration(), 1e-9)

	assert.Equal(t, 1, c.Channels)
	assert.Equal(t, 22050, c.SampleRate)
	want := []int16{0, 0, -128, -512, -1664, -5120}
	assert.Equal(t, append(append([]int16{}, want...), want...), c.Samples)
}

func TestCutsceneProcessor_PCMAudio(t *testing.T) {
	pcm := avitest.Stream{
		Audio:  &avitest.Audio{FormatTag: avi.WaveFormatPCM, Channels: 2, SampleRate: 11025, BlockAlign: 4, BitsPerSample: 16},
		Chunks: [][]byte{{0x01, 0x00, 0xff, 0xff}, {0x00, 0x80}},
	}
	c, err := NewCutsceneProcessor().Decode(avitest.Build([]avitest.Stream{pcm}))
	require.NoError(t, err)
	assert.Nil(t, c.Video)
	assert.Equal(t, []int16{1, -1, -32768}, c.Samples)
	assert.Equal(t, 0.0, c.Duration())
}

func TestCutsceneProcessor_Indeo5IsUnsupported(t *testing.T) {
	video := avitest.Stream{
		Video:  &avitest.Video{Compression: "IV50", Width: 320, Height: 240},
		Chunks: [][]byte{{0x1f, 0x00, 0x00, 0x08}},
	}
	c, err := NewCutsceneProcessor().Decode(avitest.Build([]avitest.Stream{video, adpcmStream(adpcmBlock)}))
	require.Error(t, err)
	assert.True(t, common.IsUnsupported(err), "got %v", err)

	require.NotNil(t, c)
	assert.Empty(t, c.Frames)
	assert.Len(t, c.Samples, 6, "the audio stream still decodes")
}

func TestCutsceneProcessor_StreamErrors(t *testing.T) {
	tests := []struct {
		name        string
		stream      avitest.Stream
		unsupported bool
	}{
		{"unknown video", avitest.Stream{Video: &avitest.Video{Compression: "DIVX", Width: 4, Height: 4}, Chunks: [][]byte{{0}}}, true},
		{"odd frame size", avitest.Stream{Video: &avitest.Video{Compression: "CRAM", Width: 6, Height: 4}, Chunks: [][]byte{{0}}}, true},
		{"skip in first frame", avitest.Stream{Video: &avitest.Video{Compression: "CRAM", Width: 4, Height: 4}, Chunks: [][]byte{{0x01, 0x84}}}, false},
		{"unknown audio", avitest.Stream{Audio: &avitest.Audio{FormatTag: 0x55, Channels: 2, SampleRate: 44100, BlockAlign: 1}}, true},
		{"8-bit pcm", avitest.Stream{Audio: &avitest.Audio{FormatTag: avi.WaveFormatPCM, Channels: 1, SampleRate: 8000, BlockAlign: 1, BitsPerSample: 8}}, true},
		{"indeo5 garbage", avitest.Stream{Video: &avitest.Video{Compression: "IV50", Width: 4, Height: 4}, Chunks: [][]byte{{0xff, 0xff}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCutsceneProcessor().Decode(avitest.Build([]avitest.Stream{tt.stream}))
			require.Error(t, err)
			if tt.unsupported {
				assert.True(t, common.IsUnsupported(err), "got %v", err)
			} else {
				assert.True(t, common.IsFormatError(err), "got %v", err)
			}
		})
	}
}

func TestCutsceneProcessor_Open(t *testing.T) {
	p := NewCutsceneProcessor()

	_, err := p.Open(avitest.Build([]avitest.Stream{{Type: "txts"}}))
	assert.True(t, common.IsFormatError(err), "no usable streams")

	_, err = p.Open([]byte("RIFF\x04\x00\x00\x00WAVE"))
	assert.True(t, common.IsFormatError(err))

	c, err := p.Open(avitest.Build([]avitest.Stream{adpcmStream(adpcmBlock)}))
	require.NoError(t, err)
	assert.True(t, common.IsNotFound(p.DecodeVideo(c)))
}
