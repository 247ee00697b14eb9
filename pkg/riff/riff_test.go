package riff

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansbonini/discrip/pkg/common"
)

func chunk(tag string, payload []byte) []byte {
	out := []byte(tag)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)%2 != 0 {
		out = append(out, 0)
	}
	return out
}

func list(kind string, items ...[]byte) []byte {
	body := []byte(kind)
	for _, it := range items {
		body = append(body, it...)
	}
	return chunk(TagLIST, body)
}

func form(kind string, items ...[]byte) []byte {
	body := []byte(kind)
	for _, it := range items {
		body = append(body, it...)
	}
	return chunk(TagRIFF, body)
}

func TestReadItem_SkipsJunkAndPadding(t *testing.T) {
	data := append(chunk("odd1", []byte{1, 2, 3}), chunk(TagJUNK, make([]byte, 5))...)
	data = append(data, chunk("next", []byte{9, 9})...)
	r := NewReader(data)

	item, err := r.ReadItem()
	require.NoError(t, err)
	assert.Equal(t, "odd1", item.Tag)
	assert.Equal(t, []byte{1, 2, 3}, item.Data())

	item, err = r.ReadItem()
	require.NoError(t, err)
	assert.Equal(t, "next", item.Tag)
	assert.Equal(t, uint32(2), item.Size)
	assert.False(t, r.HasMoreData())
}

func TestReadItem_Overrun(t *testing.T) {
	data := chunk("data", []byte{1, 2, 3, 4})
	binary.LittleEndian.PutUint32(data[4:], 100)

	_, err := NewReader(data).ReadItem()
	assert.True(t, common.IsBoundsError(err))
}

func TestReadList(t *testing.T) {
	data := list("hdrl", chunk("avih", make([]byte, 56)))

	item, err := NewReader(data).ReadList("hdrl")
	require.NoError(t, err)
	assert.Equal(t, "hdrl", item.Type)

	inner, err := item.Reader.ReadItem()
	require.NoError(t, err)
	assert.Equal(t, "avih", inner.Tag)

	_, err = NewReader(data).ReadList("movi")
	assert.True(t, common.IsFormatError(err))

	_, err = NewReader(chunk("avih", nil)).ReadList("hdrl")
	assert.True(t, common.IsFormatError(err))
}

func TestOpen(t *testing.T) {
	data := form("AVI ", list("hdrl"), chunk("idx1", []byte{1, 2}))

	r, err := Open(data, "AVI ")
	require.NoError(t, err)

	var tags []string
	require.NoError(t, r.ForEachItem(func(it *Item) error {
		tags = append(tags, it.Tag+"/"+it.Type)
		return nil
	}))
	assert.Equal(t, []string{"LIST/hdrl", "idx1/"}, tags)

	_, err = Open(data, "WAVE")
	assert.True(t, common.IsFormatError(err))

	_, err = Open([]byte("RIFX\x04\x00\x00\x00AVI "), "AVI ")
	assert.True(t, common.IsFormatError(err))
}

func TestOpen_ClampsOversizedHeader(t *testing.T) {
	data := form("AVI ", chunk("abcd", []byte{1, 2}))
	binary.LittleEndian.PutUint32(data[4:], 1<<20)

	r, err := Open(data, "AVI ")
	require.NoError(t, err)
	item, err := r.ReadItem()
	require.NoError(t, err)
	assert.Equal(t, "abcd", item.Tag)
}

func TestFindList(t *testing.T) {
	data := append(chunk("INFO", []byte{1}), list("movi", chunk("00dc", []byte{7}))...)

	item, err := NewReader(data).FindList("movi")
	require.NoError(t, err)
	assert.Equal(t, "movi", item.Type)

	_, err = NewReader(data).FindList("rec ")
	assert.True(t, common.IsNotFound(err))
}
