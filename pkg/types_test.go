package pkg

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/common"
)

func TestFsSource_LoadBuffer(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/disc/game.wad", []byte("WWAD"), 0o644))

	src := NewFsSource(mem, "/disc")
	data, err := src.LoadBuffer("game.wad")
	require.NoError(t, err)
	assert.Equal(t, []byte("WWAD"), data)

	data, err = src.LoadBuffer("/disc/game.wad")
	require.NoError(t, err)
	assert.Equal(t, []byte("WWAD"), data)

	_, err = src.LoadBuffer("missing.wad")
	assert.True(t, common.IsNotFound(err), "got %v", err)
}

func TestDetectInputs(t *testing.T) {
	sets, err := DetectInputs([]string{
		"Game.CUE", "notes.txt", "game.bin", "levels.wad", "setup/data2.cab",
		"setup/data1.hdr", "setup/data1.cab", "patch.zip", "demo.iso",
	})
	require.NoError(t, err)

	want := []InputSet{
		{Kind: InputZip, Primary: "patch.zip"},
		{Kind: InputISO, Primary: "demo.iso"},
		{Kind: InputWAD, Primary: "levels.wad"},
		{Kind: InputCueBin, Primary: "Game.CUE", Parts: []string{"game.bin"}},
		{Kind: InputCabinet, Primary: "setup/data1.hdr", Parts: []string{"setup/data1.cab", "setup/data2.cab"}},
	}
	assert.Equal(t, want, sets)
}

func TestDetectInputs_OrdersVolumesNumerically(t *testing.T) {
	sets, err := DetectInputs([]string{"data1.hdr", "data1.cab", "data2.cab", "data10.cab"})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"data1.cab", "data2.cab", "data10.cab"}, sets[0].Parts)
}

func TestDetectInputs_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files []string
	}{
		{"nothing", nil},
		{"unknown only", []string{"readme.txt"}},
		{"cue without bin", []string{"game.cue"}},
		{"header without volume", []string{"data1.hdr"}},
		{"volume without header", []string{"data1.cab"}},
		{"two headers", []string{"a.hdr", "b.hdr", "a.cab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetectInputs(tt.files)
			assert.True(t, common.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestInputKind_String(t *testing.T) {
	assert.Equal(t, "cue/bin", InputCueBin.String())
	assert.Equal(t, "cab", InputCabinet.String())
	assert.Equal(t, "unknown", InputKind(42).String())
}
