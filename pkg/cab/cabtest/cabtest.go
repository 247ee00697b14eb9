// Package cabtest builds small version 5 cabinets for tests of packages that
// consume them.
package cabtest

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/flate"
)

// Layout offsets inside the generated header, relative to the descriptor.
const (
	DescriptorOffset = 0x200
	GroupNode        = 0x200
	GroupName        = 0x210
	GroupDescriptor  = 0x220
	FileTable        = 0x300
	VolumePrefix     = 0x100

	headerSize  = DescriptorOffset + 0x1000
	groupBounds = 4 + 0x12 + 0x36
	entrySkip   = 0x14
)

// Version5 is a raw version field that derives major version 5.
const Version5 = 0x01005000

// Flags mirror the on-disk file flags.
const (
	FlagCompressed = 0x0004
	FlagInvalid    = 0x0008
)

// File is one payload entry. Chunks are written with uint16 length prefixes;
// Stored bytes are written verbatim ahead of any chunks.
type File struct {
	Name    string
	Dir     uint32
	Flags   uint16
	Payload []byte
	Chunks  [][]byte
	Stored  []byte
}

// Builder describes a cabinet with a single file group spanning every file.
type Builder struct {
	Version uint32
	Group   string
	Dirs    []string
	Files   []File
}

// Deflate splits payload into raw deflate chunks of at most size input bytes.
// Chunks are sync-flushed unless finish is set.
func Deflate(payload []byte, size int, finish bool) ([][]byte, error) {
	var chunks [][]byte
	for start := 0; start < len(payload); start += size {
		end := min(start+size, len(payload))
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(payload[start:end]); err != nil {
			return nil, err
		}
		if finish {
			err = w.Close()
		} else {
			err = w.Flush()
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, buf.Bytes())
	}
	return chunks, nil
}

// Compressed returns a compressed File whose payload is deflated in one chunk.
func Compressed(name string, dir uint32, payload []byte) (File, error) {
	chunks, err := Deflate(payload, len(payload), true)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Dir: dir, Flags: FlagCompressed, Payload: payload, Chunks: chunks}, nil
}

// Build lays out the header and the data volume.
func (b Builder) Build() (header, volume []byte) {
	le := binary.LittleEndian
	header = make([]byte, headerSize)
	put32 := func(at int, v uint32) { le.PutUint32(header[at:], v) }
	putStr := func(at int, s string) { copy(header[at:], s+"\x00") }

	version := b.Version
	if version == 0 {
		version = Version5
	}
	put32(0x00, 0x28635349)
	put32(0x04, version)
	put32(0x0c, DescriptorOffset)
	put32(0x10, 0x1000)

	base := DescriptorOffset
	put32(base+0x0c, FileTable)
	put32(base+0x14, 0x100)
	put32(base+0x18, 0x100)
	put32(base+0x1c, uint32(len(b.Dirs)))
	put32(base+0x28, uint32(len(b.Files)))
	put32(base+0x2c, FileTable)
	put32(base+0x3e+4*7, GroupNode)

	put32(base+GroupNode, GroupName)
	put32(base+GroupNode+4, GroupDescriptor)
	putStr(base+GroupName, b.Group)
	put32(base+GroupDescriptor+groupBounds, 0)
	put32(base+GroupDescriptor+groupBounds+4, uint32(len(b.Files)-1))

	volume = make([]byte, VolumePrefix)
	table := base + FileTable
	cursor := 4 * (len(b.Dirs) + len(b.Files))
	for i, d := range b.Dirs {
		put32(table+4*i, uint32(cursor))
		putStr(table+cursor, d)
		cursor += len(d) + 1
	}
	for i, f := range b.Files {
		nameAt := cursor
		putStr(table+nameAt, f.Name)
		cursor += len(f.Name) + 1

		entryAt := cursor
		put32(table+4*(len(b.Dirs)+i), uint32(entryAt))
		cursor += 4 + 4 + 2 + 4 + 4 + entrySkip + 4

		dataOffset := len(volume)
		volume = append(volume, f.Stored...)
		for _, chunk := range f.Chunks {
			volume = le.AppendUint16(volume, uint16(len(chunk)))
			volume = append(volume, chunk...)
		}

		e := table + entryAt
		put32(e, uint32(nameAt))
		put32(e+4, f.Dir)
		le.PutUint16(header[e+8:], f.Flags)
		put32(e+10, uint32(len(f.Payload)))
		put32(e+14, uint32(len(volume)-dataOffset))
		put32(e+18+entrySkip, uint32(dataOffset))
	}
	return header, volume
}
