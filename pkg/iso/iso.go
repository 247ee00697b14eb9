// Package iso walks ISO9660 volumes held in memory and hands the installer
// cabinet found on them to the cabinet reader.
package iso

import (
	"encoding/binary"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
)

// Volume layout constants
const (
	LogicalBlockSize = 2048
	DescriptorStart  = 16 * LogicalBlockSize
	StandardID       = "CD001"
)

// Volume descriptor types
const (
	DescriptorPrimary       = 1
	DescriptorSupplementary = 2
	DescriptorTerminator    = 255
)

const (
	blockSizeOffset  = 128
	rootRecordOffset = 156
	minRecordLength  = 33
	flagDirectory    = 0x02
)

// Directory record field offsets (little-endian halves of both-endian fields).
const (
	recordExtentOffset     = 2
	recordDataLengthOffset = 10
	recordFlagsOffset      = 25
	recordNameLengthOffset = 32
)

// Record is one parsed directory record.
type Record struct {
	Length     uint8
	Extent     uint32
	DataLength uint32
	Flags      uint8
	Identifier string
}

// IsDir reports whether the record describes a directory.
func (r Record) IsDir() bool {
	return r.Flags&flagDirectory != 0
}

// File is a regular file found by Walk. Data is a view into the image.
type File struct {
	Path   string
	Extent uint32
	Data   []byte
}

// Volume is the primary volume descriptor of an image.
type Volume struct {
	BlockSize int
	Root      Record
	// Sector holds the sector number of the primary descriptor
	Sector int
}

// Parse scans the volume descriptor set starting at sector 16 and returns the
// primary descriptor.
func Parse(data []byte) (*Volume, error) {
	if len(data) < DescriptorStart+LogicalBlockSize {
		return nil, &common.BoundsError{Offset: DescriptorStart, Width: LogicalBlockSize, Length: len(data)}
	}

	var primary *Volume
	for off := DescriptorStart; off+LogicalBlockSize <= len(data); off += LogicalBlockSize {
		sector := data[off : off+LogicalBlockSize]
		kind := int(sector[0])
		common.LogDebug(common.DebugISODescriptor, kind, off/LogicalBlockSize)

		if kind == DescriptorTerminator {
			break
		}
		if string(sector[1:6]) != StandardID {
			return nil, common.NewFormatError("iso9660", "descriptor at sector %d has identifier %q", off/LogicalBlockSize, sector[1:6])
		}

		switch kind {
		case DescriptorPrimary:
			if primary != nil {
				continue
			}
			blockSize := int(binary.LittleEndian.Uint16(sector[blockSizeOffset:]))
			if blockSize != LogicalBlockSize {
				return nil, &common.UnsupportedError{Feature: "logical block size", Detail: fmt.Sprintf("%d", blockSize)}
			}
			root, err := parseRecord(sector[rootRecordOffset:])
			if err != nil {
				return nil, fmt.Errorf("root directory record: %w", err)
			}
			primary = &Volume{BlockSize: blockSize, Root: root, Sector: off / LogicalBlockSize}
		case DescriptorSupplementary:
			common.LogWarn(common.WarnSupplementaryVolume, off/LogicalBlockSize)
		default:
			common.LogDebug("Ignoring volume descriptor type %d", kind)
		}
	}

	if primary == nil {
		return nil, common.NewFormatError("iso9660", "no primary volume descriptor")
	}
	return primary, nil
}

// parseRecord decodes the directory record at the start of b. The record
// must fit inside b.
func parseRecord(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, &common.BoundsError{Offset: 0, Width: 1, Length: 0}
	}
	length := int(b[0])
	if length < minRecordLength {
		return Record{}, common.NewFormatError("iso9660", "directory record length %d", length)
	}
	if length > len(b) {
		return Record{}, &common.BoundsError{Offset: 0, Width: length, Length: len(b)}
	}

	c := binio.NewCursor(b[:length])
	if err := c.Seek(recordExtentOffset); err != nil {
		return Record{}, err
	}
	extent, err := c.ReadU32()
	if err != nil {
		return Record{}, err
	}
	if err := c.Seek(recordDataLengthOffset); err != nil {
		return Record{}, err
	}
	dataLength, err := c.ReadU32()
	if err != nil {
		return Record{}, err
	}
	if err := c.Seek(recordFlagsOffset); err != nil {
		return Record{}, err
	}
	flags, err := c.ReadU8()
	if err != nil {
		return Record{}, err
	}
	if err := c.Seek(recordNameLengthOffset); err != nil {
		return Record{}, err
	}
	nameLength, err := c.ReadU8()
	if err != nil {
		return Record{}, err
	}

	raw, err := c.ReadBytes(int(nameLength))
	if err != nil {
		return Record{}, fmt.Errorf("identifier: %w", err)
	}

	return Record{
		Length:     uint8(length),
		Extent:     extent,
		DataLength: dataLength,
		Flags:      flags,
		Identifier: cleanIdentifier(raw),
	}, nil
}

func cleanIdentifier(raw []byte) string {
	if len(raw) == 1 && common.IsSpecialDirEntry(string(raw)) {
		return common.SpecialDirName(string(raw))
	}
	return strings.ToLower(common.CleanFileName(string(raw)))
}

type frame struct {
	dir string
	pos int
	end int
}

// Walk returns every regular file on the volume, sorted by path.
func Walk(data []byte) ([]File, error) {
	vol, err := Parse(data)
	if err != nil {
		return nil, err
	}
	bs := vol.BlockSize

	var files []File
	visited := map[uint32]bool{vol.Root.Extent: true}
	start := int(vol.Root.Extent) * bs
	stack := []frame{{dir: "", pos: start, end: start + int(vol.Root.DataLength)}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.end > len(data) {
			return nil, &common.BoundsError{Offset: f.pos, Width: f.end - f.pos, Length: len(data)}
		}

		for f.pos < f.end {
			if data[f.pos] == 0 {
				// records never straddle sectors; padding runs to the next one
				f.pos = (f.pos/bs + 1) * bs
				continue
			}
			rec, err := parseRecord(data[f.pos:f.end])
			if err != nil {
				return nil, fmt.Errorf("record at 0x%X in %q: %w", f.pos, f.dir, err)
			}
			f.pos += int(rec.Length)

			if rec.Identifier == "." || rec.Identifier == ".." {
				continue
			}
			full := strings.TrimPrefix(path.Join(f.dir, rec.Identifier), "./")
			common.LogDebug(common.DebugISORecord, full, rec.Extent, rec.DataLength, rec.IsDir())

			extentStart := int(rec.Extent) * bs
			if rec.IsDir() {
				if visited[rec.Extent] {
					return nil, common.NewFormatError("iso9660", "directory %q revisits extent %d", full, rec.Extent)
				}
				visited[rec.Extent] = true
				stack = append(stack, frame{dir: full, pos: extentStart, end: extentStart + int(rec.DataLength)})
				continue
			}

			view, err := binio.NewCursor(data).Slice(extentStart, int(rec.DataLength))
			if err != nil {
				return nil, fmt.Errorf("file %q: %w", full, err)
			}
			files = append(files, File{Path: full, Extent: rec.Extent, Data: view})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	common.LogInfo(common.InfoISOWalked, len(files))
	return files, nil
}
