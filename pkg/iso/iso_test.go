package iso

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/cab/cabtest"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/iso/isotest"
	"github.com/hansbonini/discrip/pkg/vfs"
)

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestWalk_Tree(t *testing.T) {
	img := isotest.Build([]isotest.Node{
		isotest.File("readme.txt", []byte("read me")),
		isotest.Dir("setup",
			isotest.File("data1.hdr", []byte("hdr")),
			isotest.Dir("sub", isotest.File("deep.bin", []byte{1, 2, 3})),
		),
	}, isotest.Options{})

	files, err := Walk(img)
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.txt", "setup/data1.hdr", "setup/sub/deep.bin"}, paths(files))
	assert.Equal(t, []byte("read me"), files[0].Data)
	assert.Equal(t, []byte{1, 2, 3}, files[2].Data)
}

func TestWalk_RecordsSpanningSectors(t *testing.T) {
	var nodes []isotest.Node
	for i := 0; i < 80; i++ {
		nodes = append(nodes, isotest.File(fmt.Sprintf("a_rather_long_file_name_%03d.dat", i), []byte{byte(i + 1)}))
	}
	img := isotest.Build(nodes, isotest.Options{})

	files, err := Walk(img)
	require.NoError(t, err)
	require.Len(t, files, 80)
	for i, f := range files {
		assert.Equal(t, fmt.Sprintf("a_rather_long_file_name_%03d.dat", i), f.Path)
		assert.Equal(t, []byte{byte(i + 1)}, f.Data)
	}
}

func TestParse_SupplementaryDescriptorIsSkipped(t *testing.T) {
	img := isotest.Build([]isotest.Node{isotest.File("a.txt", []byte("a"))}, isotest.Options{Supplementary: true})

	vol, err := Parse(img)
	require.NoError(t, err)
	assert.Equal(t, LogicalBlockSize, vol.BlockSize)
	assert.Equal(t, 16, vol.Sector)
}

func TestParse_Errors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := Parse(make([]byte, DescriptorStart))
		assert.True(t, common.IsBoundsError(err))
	})

	t.Run("no primary", func(t *testing.T) {
		img := make([]byte, DescriptorStart+LogicalBlockSize)
		img[DescriptorStart] = DescriptorTerminator
		_, err := Parse(img)
		assert.True(t, common.IsFormatError(err))
	})

	t.Run("bad identifier", func(t *testing.T) {
		img := isotest.Build(nil, isotest.Options{})
		copy(img[DescriptorStart+1:], "CD002")
		_, err := Parse(img)
		assert.True(t, common.IsFormatError(err))
	})

	t.Run("block size", func(t *testing.T) {
		img := isotest.Build(nil, isotest.Options{BlockSize: 512})
		_, err := Parse(img)
		assert.True(t, common.IsUnsupported(err))
	})
}

func TestParseRecord_Identifiers(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"\x00", "."},
		{"\x01", ".."},
		{"DATA1.HDR;1", "data1.hdr"},
		{"README.;1", "readme"},
		{"SETUP", "setup"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec, err := parseRecord(isotest.Record(tt.raw, 20, 10, false))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Identifier)
			assert.Equal(t, uint32(20), rec.Extent)
			assert.Equal(t, uint32(10), rec.DataLength)
		})
	}
}

func TestParseRecord_Truncated(t *testing.T) {
	rec := isotest.Record("FILE.BIN;1", 1, 1, false)
	_, err := parseRecord(rec[:len(rec)-3])
	assert.True(t, common.IsBoundsError(err))

	_, err = parseRecord([]byte{10, 0, 0})
	assert.True(t, common.IsFormatError(err))
}

func TestParseRecord_Fields(t *testing.T) {
	rec, err := parseRecord(isotest.Record("SETUP", 7, 2048, true))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), rec.Extent)
	assert.Equal(t, uint32(2048), rec.DataLength)
	assert.True(t, rec.IsDir())
	assert.Equal(t, "setup", rec.Identifier)

	raw := isotest.Record("SETUP", 7, 2048, true)
	raw[32] = 200
	_, err = parseRecord(raw)
	assert.True(t, common.IsBoundsError(err))
}

func installerImage(t *testing.T, extra ...isotest.Node) []byte {
	t.Helper()
	payload := []byte("[Game]\nLanguage=English\n")
	file, err := cabtest.Compressed("game.ini", 0, payload)
	require.NoError(t, err)
	header, volume := cabtest.Builder{Group: "Program", Dirs: []string{"Config"}, Files: []cabtest.File{file}}.Build()

	half := len(volume) / 2
	nodes := []isotest.Node{
		isotest.File("readme.txt", []byte("hello")),
		isotest.Dir("setup",
			isotest.File("data1.hdr", header),
			isotest.File("data1.cab", volume[:half]),
			isotest.File("data2.cab", volume[half:]),
		),
	}
	return isotest.Build(append(nodes, extra...), isotest.Options{})
}

func TestLoad_ExpandsCabinet(t *testing.T) {
	fs := vfs.New()
	n, err := Load(installerImage(t), fs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"program/config/game.ini", "readme.txt"}, fs.Names())
	f, err := fs.Get("PROGRAM/CONFIG/GAME.INI")
	require.NoError(t, err)
	assert.Equal(t, []byte("[Game]\nLanguage=English\n"), f.Data)
}

func TestLoad_MissingSeeds(t *testing.T) {
	tests := []struct {
		name  string
		nodes []isotest.Node
	}{
		{"no files", nil},
		{"header only", []isotest.Node{isotest.File("data1.hdr", []byte("not a cabinet"))}},
		{"volume only", []isotest.Node{isotest.File("data1.cab", []byte("volume"))}},
		{"volume elsewhere", []isotest.Node{
			isotest.File("data1.hdr", []byte("not a cabinet")),
			isotest.Dir("other", isotest.File("data1.cab", []byte("volume"))),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := vfs.New()
			_, err := Load(isotest.Build(tt.nodes, isotest.Options{}), fs)
			// a garbage header would surface as a format error had the
			// cabinet reader been reached
			assert.True(t, common.IsInvalidInput(err), "got %v", err)
			assert.False(t, common.IsFormatError(err))
			assert.Equal(t, 0, fs.Len())
		})
	}
}

func TestFindSeeds_OrdersVolumes(t *testing.T) {
	files := []File{
		{Path: "setup/data3.cab"},
		{Path: "setup/data1.hdr"},
		{Path: "setup/data1.cab"},
		{Path: "setup/data2.cab"},
		{Path: "setup/data5.cab"},
	}
	s, err := findSeeds(files)
	require.NoError(t, err)
	assert.Equal(t, "setup/data1.hdr", s.header.Path)
	assert.Equal(t, []string{"setup/data1.cab", "setup/data2.cab", "setup/data3.cab"}, paths(s.volumes))
}

func TestFindSeeds_IgnoresZeroAndPaddedVolumes(t *testing.T) {
	files := []File{
		{Path: "setup/data1.hdr"},
		{Path: "setup/data0.cab"},
		{Path: "setup/data1.cab"},
		{Path: "setup/data01.cab"},
		{Path: "setup/data2.cab"},
	}
	var s *seeds
	var err error
	require.NotPanics(t, func() { s, err = findSeeds(files) })
	require.NoError(t, err)
	assert.Equal(t, []string{"setup/data1.cab", "setup/data2.cab"}, paths(s.volumes))

	_, err = findSeeds([]File{{Path: "setup/data1.hdr"}, {Path: "setup/data0.cab"}})
	assert.True(t, common.IsInvalidInput(err))
}

func TestFindSeeds_OrdersPastNineVolumes(t *testing.T) {
	var files []File
	for n := 11; n >= 1; n-- {
		files = append(files, File{Path: fmt.Sprintf("setup/data%d.cab", n)})
	}
	files = append(files, File{Path: "setup/data1.hdr"})

	s, err := findSeeds(files)
	require.NoError(t, err)
	require.Len(t, s.volumes, 11)
	assert.Equal(t, "setup/data2.cab", s.volumes[1].Path)
	assert.Equal(t, "setup/data10.cab", s.volumes[9].Path)
}
