// Package wadtest builds WAD containers for tests.
package wadtest

import (
	"bytes"
	"encoding/binary"
)

const recordSize = 16

// File is one packed entry.
type File struct {
	Name string
	Data []byte
}

// Build lays out a container with both name blocks and absolute offsets.
func Build(files ...File) []byte {
	var names bytes.Buffer
	for _, f := range files {
		names.WriteString(f.Name)
		names.WriteByte(0)
	}

	le := binary.LittleEndian
	out := []byte("WWAD")
	out = le.AppendUint32(out, uint32(len(files)))
	out = append(out, names.Bytes()...)
	out = append(out, names.Bytes()...)

	offset := len(out) + recordSize*len(files)
	for _, f := range files {
		out = append(out, make([]byte, 8)...)
		out = le.AppendUint32(out, uint32(len(f.Data)))
		out = le.AppendUint32(out, uint32(offset))
		offset += len(f.Data)
	}
	for _, f := range files {
		out = append(out, f.Data...)
	}
	return out
}
