// Package wad reads "WWAD" containers: a flat name table followed by
// fixed-size directory records that point into the same buffer.
package wad

import (
	"fmt"
	"strings"

	"github.com/hansbonini/discrip/pkg/binio"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// Magic identifies a WAD container.
const Magic = "WWAD"

const (
	recordSize   = 16
	recordUnused = 8
)

// Entry is one directory record resolved against its name.
type Entry struct {
	Name   string
	Offset uint32
	Length uint32
	Data   []byte
}

// Options controls how entry contents are materialised.
type Options struct {
	// ZeroCopyThreshold makes entries of containers at least this large
	// share the source buffer instead of being copied. Zero disables views.
	ZeroCopyThreshold int
	CodePage          *binio.CodePage
}

// IsWAD reports whether data starts with the WAD magic.
func IsWAD(data []byte) bool {
	return len(data) >= len(Magic) && string(data[:len(Magic)]) == Magic
}

// Parse decodes the container layout:
//
//	"WWAD" | uint32 count | count NUL-terminated names | the same block again |
//	count * { 8 unused bytes, uint32 length, uint32 offset }
//
// The second name block carries no information but must be walked so that
// the record table is found at the right offset.
func Parse(data []byte, opts Options) ([]Entry, error) {
	c := binio.NewCursor(data).WithCodePage(opts.CodePage)

	magic, err := c.ReadFourCC()
	if err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, common.NewFormatError("wad", "expected magic %q, got %q", Magic, magic)
	}

	count, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read entry count: %w", err)
	}
	// every entry needs at least a NUL per name block plus its record
	if uint64(count)*(recordSize+2) > uint64(c.Remaining()) {
		return nil, common.NewFormatError("wad", "entry count %d exceeds container size %d", count, len(data))
	}

	names := make([]string, count)
	for i := range names {
		name, err := c.ReadCString()
		if err != nil {
			return nil, fmt.Errorf("failed to read name %d: %w", i, err)
		}
		names[i] = strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	}
	for i := uint32(0); i < count; i++ {
		if _, err := c.ReadCString(); err != nil {
			return nil, fmt.Errorf("failed to skip duplicate name %d: %w", i, err)
		}
	}

	zeroCopy := opts.ZeroCopyThreshold > 0 && len(data) >= opts.ZeroCopyThreshold
	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if err := c.Skip(recordUnused); err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		length, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d length: %w", i, err)
		}
		offset, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d offset: %w", i, err)
		}

		view, err := c.Slice(int(offset), int(length))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", names[i], err)
		}
		if !zeroCopy {
			view = append([]byte(nil), view...)
		}

		common.LogDebug(common.DebugWADEntry, names[i], offset, length)
		entries = append(entries, Entry{Name: names[i], Offset: offset, Length: length, Data: view})
	}

	return entries, nil
}

// Load parses data and registers every non-empty entry in fs. It returns the
// number of files registered.
func Load(data []byte, fs *vfs.FileSystem, opts Options) (int, error) {
	entries, err := Parse(data, opts)
	if err != nil {
		return 0, err
	}

	registered := 0
	for _, e := range entries {
		if e.Length == 0 {
			common.LogWarn("Skipping empty WAD entry %s", e.Name)
			continue
		}
		if _, err := fs.Register(e.Name, e.Data); err != nil {
			return registered, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		registered++
	}
	return registered, nil
}
