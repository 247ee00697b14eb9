// Package cab reads InstallShield version 5 cabinets: a header file holding
// the descriptor and file tables, and one or more data volumes holding the
// payload as chunked raw-deflate streams.
package cab

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"
	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// Signature is "ISc(" read as a little-endian uint32.
const Signature = 0x28635349

// SupportedVersion is the only major version this reader understands.
const SupportedVersion = 5

const (
	groupBuckets       = 71
	descriptorSkip     = 0x0c
	descriptorReserved = 0x0e
	groupNameSkip      = 0x12
	groupV5Skip        = 0x36
	fileEntrySkip      = 0x14
	chunkPrefixSize    = 2
)

// File flags
const (
	FlagCompressed = 0x0004
	FlagInvalid    = 0x0008
)

// FileEntry describes one payload file resolved from the descriptor table.
type FileEntry struct {
	Path           string
	DataOffset     uint32
	CompressedSize uint32
	ExpandedSize   uint32
	Compressed     bool
}

// Archive is a parsed cabinet bound to its data volume.
type Archive struct {
	Version        int
	DirectoryCount uint32
	FileCount      uint32

	volume  []byte
	entries map[string]*FileEntry
}

// MajorVersion derives the cabinet major version from the raw header field.
// It returns 0 for layouts it cannot classify.
func MajorVersion(version uint32) int {
	switch version >> 24 {
	case 1:
		return int((version >> 12) & 0xf)
	case 2, 4:
		if v := version & 0xffff; v != 0 {
			return int(v / 100)
		}
	}
	return 0
}

type group struct {
	name  string
	first uint32
	last  uint32
}

// Open parses header and binds the archive to the concatenation of volumes.
func Open(header []byte, volumes ...[]byte) (*Archive, error) {
	c := binio.NewCursor(header)

	sig, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	if sig != Signature {
		return nil, common.NewFormatError("cab", "bad signature 0x%08X", sig)
	}
	rawVersion, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	version := MajorVersion(rawVersion)
	if version != SupportedVersion {
		return nil, &common.UnsupportedError{
			Feature: "cabinet version",
			Detail:  fmt.Sprintf("%d (raw 0x%08X)", version, rawVersion),
		}
	}

	if err := c.Skip(4); err != nil { // volume info
		return nil, err
	}
	base, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor offset: %w", err)
	}
	if _, err := c.ReadU32(); err != nil { // descriptor size
		return nil, fmt.Errorf("failed to read descriptor size: %w", err)
	}

	a := &Archive{
		Version: version,
		volume:  joinVolumes(volumes),
		entries: make(map[string]*FileEntry),
	}
	p := &parser{c: c, base: int(base)}
	if err := p.parse(a); err != nil {
		return nil, err
	}

	common.LogInfo(common.InfoCabinetOpened, a.Version, a.DirectoryCount, a.FileCount)
	return a, nil
}

func joinVolumes(volumes [][]byte) []byte {
	if len(volumes) == 1 {
		return volumes[0]
	}
	return bytes.Join(volumes, nil)
}

type parser struct {
	c    *binio.Cursor
	base int
}

func (p *parser) seek(rel uint32) error {
	return p.c.Seek(p.base + int(rel))
}

func (p *parser) u32s(n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := p.c.ReadU32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *parser) parse(a *Archive) error {
	if err := p.c.Seek(p.base + descriptorSkip); err != nil {
		return fmt.Errorf("descriptor offset 0x%X: %w", p.base, err)
	}

	fileTableOffset, err := p.c.ReadU32()
	if err != nil {
		return err
	}
	if err := p.c.Skip(4); err != nil {
		return err
	}
	tableSize, err := p.c.ReadU32()
	if err != nil {
		return err
	}
	tableSize2, err := p.c.ReadU32()
	if err != nil {
		return err
	}
	if tableSize != tableSize2 {
		common.LogWarn(common.WarnFileTableSizeMismatch, tableSize, tableSize2)
	}
	if a.DirectoryCount, err = p.c.ReadU32(); err != nil {
		return err
	}
	if err := p.c.Skip(8); err != nil {
		return err
	}
	if a.FileCount, err = p.c.ReadU32(); err != nil {
		return err
	}
	if err := p.c.Skip(4 + descriptorReserved); err != nil { // second table offset, reserved
		return err
	}

	buckets, err := p.u32s(groupBuckets)
	if err != nil {
		return fmt.Errorf("failed to read file group table: %w", err)
	}

	total := uint64(a.DirectoryCount) + uint64(a.FileCount)
	if total*4 > uint64(p.c.Len()) {
		return common.NewFormatError("cab", "%d directories + %d files exceed header size", a.DirectoryCount, a.FileCount)
	}
	if err := p.seek(fileTableOffset); err != nil {
		return fmt.Errorf("file table offset 0x%X: %w", fileTableOffset, err)
	}
	offsets, err := p.u32s(int(total))
	if err != nil {
		return fmt.Errorf("failed to read file offsets table: %w", err)
	}

	groups, err := p.groups(buckets)
	if err != nil {
		return err
	}

	table := fileTable{p: p, tableOffset: fileTableOffset, offsets: offsets, dirCount: a.DirectoryCount}
	for _, g := range groups {
		common.LogDebug(common.DebugCabinetGroup, g.name, g.first, g.last)
		for idx := g.first; idx <= g.last; idx++ {
			if idx >= a.FileCount {
				common.LogWarn("Cabinet group %q references file %d beyond file count %d", g.name, idx, a.FileCount)
				break
			}
			entry, err := table.entry(g.name, idx)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			common.LogDebug(common.DebugCabinetFile, entry.Path, entry.DataOffset, entry.CompressedSize, entry.ExpandedSize, entry.Compressed)
			a.entries[entry.Path] = entry
		}
	}
	return nil
}

// groups walks every non-empty bucket's on-disk linked list. Each node is
// {nameOffset, descriptorOffset, nextOffset}; a zero next offset ends the list.
func (p *parser) groups(buckets []uint32) ([]group, error) {
	var out []group
	visited := make(map[uint32]bool)

	for _, head := range buckets {
		for off := head; off != 0; {
			if visited[off] {
				return nil, common.NewFormatError("cab", "file group list loops at 0x%X", off)
			}
			visited[off] = true

			if err := p.seek(off); err != nil {
				return nil, fmt.Errorf("file group node 0x%X: %w", off, err)
			}
			node, err := p.u32s(3)
			if err != nil {
				return nil, fmt.Errorf("file group node 0x%X: %w", off, err)
			}
			nameOffset, descOffset, next := node[0], node[1], node[2]

			name, err := p.c.CStringAt(p.base + int(nameOffset))
			if err != nil {
				return nil, fmt.Errorf("file group name 0x%X: %w", nameOffset, err)
			}

			if err := p.seek(descOffset); err != nil {
				return nil, fmt.Errorf("file group descriptor 0x%X: %w", descOffset, err)
			}
			if err := p.c.Skip(4 + groupNameSkip + groupV5Skip); err != nil {
				return nil, fmt.Errorf("file group descriptor 0x%X: %w", descOffset, err)
			}
			bounds, err := p.u32s(2)
			if err != nil {
				return nil, fmt.Errorf("file group descriptor 0x%X: %w", descOffset, err)
			}

			out = append(out, group{name: name, first: bounds[0], last: bounds[1]})
			off = next
		}
	}
	return out, nil
}

type fileTable struct {
	p           *parser
	tableOffset uint32
	offsets     []uint32
	dirCount    uint32
}

func (t *fileTable) stringAt(rel uint32) (string, error) {
	return t.p.c.CStringAt(t.p.base + int(t.tableOffset) + int(rel))
}

// entry resolves file index idx. A nil entry with nil error is a tolerated
// skip that has already been logged.
func (t *fileTable) entry(groupName string, idx uint32) (*FileEntry, error) {
	rel := t.offsets[t.dirCount+idx]
	if err := t.p.c.Seek(t.p.base + int(t.tableOffset) + int(rel)); err != nil {
		return nil, fmt.Errorf("file %d descriptor: %w", idx, err)
	}
	c := t.p.c

	nameOffset, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	dirIndex, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	flags, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	expanded, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	compressed, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	if err := c.Skip(fileEntrySkip); err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}
	dataOffset, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("file %d: %w", idx, err)
	}

	switch {
	case flags&FlagInvalid != 0:
		common.LogWarn(common.WarnCabinetInvalidFile, idx)
		return nil, nil
	case nameOffset == 0:
		common.LogWarn(common.WarnCabinetZeroNameOffset, idx)
		return nil, nil
	case dataOffset == 0:
		common.LogWarn(common.WarnCabinetZeroDataOffset, idx)
		return nil, nil
	}

	fileName, err := t.stringAt(nameOffset)
	if err != nil {
		return nil, fmt.Errorf("file %d name: %w", idx, err)
	}
	var dirName string
	if dirIndex < t.dirCount {
		if dirName, err = t.stringAt(t.offsets[dirIndex]); err != nil {
			return nil, fmt.Errorf("file %d directory %d: %w", idx, dirIndex, err)
		}
	} else {
		common.LogWarn("Cabinet file %d has directory index %d beyond %d directories", idx, dirIndex, t.dirCount)
	}

	return &FileEntry{
		Path:           joinPath(groupName, dirName, fileName),
		DataOffset:     dataOffset,
		CompressedSize: compressed,
		ExpandedSize:   expanded,
		Compressed:     flags&FlagCompressed != 0,
	}, nil
}

func joinPath(parts ...string) string {
	var kept []string
	for _, part := range parts {
		part = strings.Trim(strings.ReplaceAll(part, "\\", "/"), "/")
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.ToLower(strings.Join(kept, "/"))
}

// Files returns every resolved entry sorted by path.
func (a *Archive) Files() []*FileEntry {
	out := make([]*FileEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Lookup returns the entry for path, ignoring case.
func (a *Archive) Lookup(path string) (*FileEntry, error) {
	e, ok := a.entries[joinPath(path)]
	if !ok {
		return nil, &common.NotFoundError{Container: "cab", Name: path}
	}
	return e, nil
}

// Extract returns the expanded contents of path.
func (a *Archive) Extract(path string) ([]byte, error) {
	e, err := a.Lookup(path)
	if err != nil {
		return nil, err
	}
	if !e.Compressed {
		common.LogWarn(common.WarnCabinetUncompressed, e.Path)
		raw, err := binio.NewCursor(a.volume).Slice(int(e.DataOffset), int(e.ExpandedSize))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Path, err)
		}
		return append([]byte(nil), raw...), nil
	}
	return a.inflate(e)
}

// inflate reads uint16-prefixed chunks from the volume until the compressed
// budget is spent. Each chunk is an independent raw deflate stream.
func (a *Archive) inflate(e *FileEntry) ([]byte, error) {
	c := binio.NewCursor(a.volume)
	if err := c.Seek(int(e.DataOffset)); err != nil {
		return nil, fmt.Errorf("%s: %w", e.Path, err)
	}

	out := make([]byte, 0, e.ExpandedSize)
	budget := int64(e.CompressedSize)
	for budget > 0 {
		size, err := c.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("%s: chunk length: %w", e.Path, err)
		}
		budget -= chunkPrefixSize
		if int64(size) > budget {
			return nil, common.NewFormatError("cab", "%s: chunk of %d bytes exceeds remaining %d", e.Path, size, budget)
		}
		chunk, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%s: chunk data: %w", e.Path, err)
		}
		budget -= int64(size)

		expanded, err := inflateChunk(chunk)
		if err != nil {
			return nil, fmt.Errorf("%s: inflate at 0x%X: %w", e.Path, c.Tell()-int(size), err)
		}
		out = append(out, expanded...)
	}

	if uint32(len(out)) != e.ExpandedSize {
		return nil, common.NewFormatError("cab", "%s: expanded to %d bytes, expected %d", e.Path, len(out), e.ExpandedSize)
	}
	return out, nil
}

// inflateChunk decodes one chunk. Chunks are sync-flushed rather than
// finished, so running out of input after a complete block ends the chunk.
func inflateChunk(chunk []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(chunk))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return out, nil
}

// ExtractAll expands every entry into fs. Failures affect only their own
// file; they are logged, combined and returned after all siblings are done.
func (a *Archive) ExtractAll(fs *vfs.FileSystem) (int, error) {
	var errs error
	registered := 0
	for _, e := range a.Files() {
		data, err := a.Extract(e.Path)
		if err == nil && len(data) == 0 {
			err = fmt.Errorf("%s: empty file", e.Path)
		}
		if err == nil {
			_, err = fs.Register(e.Path, data)
		}
		if err != nil {
			common.LogWarn(common.WarnCabinetFileFailed, e.Path, err)
			errs = multierr.Append(errs, err)
			continue
		}
		registered++
	}
	return registered, errs
}
