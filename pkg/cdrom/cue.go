// Package cdrom parses CUE sheets and splits the matching monolithic BIN into
// a cooked ISO9660 image and WAV audio tracks.
package cdrom

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hansbonini/discrip/pkg/common"
)

// TrackType distinguishes data tracks from Red Book audio.
type TrackType int

const (
	TrackData TrackType = iota
	TrackAudio
)

func (t TrackType) String() string {
	if t == TrackAudio {
		return "AUDIO"
	}
	return "MODE1"
}

// Entry is one TRACK with its INDEX 01 position.
type Entry struct {
	Track   int
	Type    TrackType
	Bitrate int
	Minute  int
	Second  int
	Frame   int
	Sector  int
}

// MSF returns the track start as mm:ss:ff.
func (e Entry) MSF() string {
	return common.SectorToMSF(e.Sector)
}

// MaxCueSize bounds the sheet text; anything this large is not a CUE sheet.
const MaxCueSize = 2000

// Sheet is a parsed CUE sheet.
type Sheet struct {
	File    string
	Entries []Entry
}

// ParseCue parses the sheet text. Only BINARY files, MODE1 and AUDIO tracks
// and INDEX 01 positions are understood; other commands are ignored.
func ParseCue(text []byte) (*Sheet, error) {
	if len(text) >= MaxCueSize {
		return nil, &common.InvalidInputError{Reason: fmt.Sprintf("cue sheet of %d bytes, limit is %d", len(text), MaxCueSize)}
	}
	sheet := &Sheet{}
	var current *Entry
	seenIndex := make(map[int]bool)

	scanner := bufio.NewScanner(bytes.NewReader(text))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "FILE":
			name, kind, err := parseFileLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if kind != "BINARY" {
				return nil, &common.UnsupportedError{Feature: "cue file type", Detail: kind}
			}
			if sheet.File != "" {
				return nil, &common.UnsupportedError{Feature: "multi-file cue sheet", Detail: name}
			}
			sheet.File = name

		case "TRACK":
			if len(fields) != 3 {
				return nil, common.NewFormatError("cue", "line %d: malformed TRACK %q", lineNo, line)
			}
			entry, err := parseTrack(fields[1], fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sheet.Entries = append(sheet.Entries, entry)
			current = &sheet.Entries[len(sheet.Entries)-1]

		case "INDEX":
			if current == nil {
				return nil, common.NewFormatError("cue", "line %d: INDEX before TRACK", lineNo)
			}
			if len(fields) != 3 {
				return nil, common.NewFormatError("cue", "line %d: malformed INDEX %q", lineNo, line)
			}
			if fields[1] != "01" && fields[1] != "1" {
				continue
			}
			m, s, f, err := parseMSF(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Minute, current.Second, current.Frame = m, s, f
			current.Sector = common.MSFToSector(m, s, f)
			seenIndex[current.Track] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if sheet.File == "" {
		return nil, common.NewFormatError("cue", "no FILE command")
	}
	if len(sheet.Entries) == 0 {
		return nil, common.NewFormatError("cue", "no TRACK commands")
	}
	for _, e := range sheet.Entries {
		if !seenIndex[e.Track] {
			return nil, common.NewFormatError("cue", "track %02d has no INDEX 01", e.Track)
		}
	}

	sort.SliceStable(sheet.Entries, func(i, j int) bool { return sheet.Entries[i].Track < sheet.Entries[j].Track })
	for _, e := range sheet.Entries {
		common.LogDebug(common.DebugCueTrack, e.Track, e.Type, e.Bitrate, e.MSF(), e.Sector)
	}
	common.LogInfo(common.InfoCueTracks, len(sheet.Entries))
	return sheet, nil
}

// parseFileLine splits `FILE "name with spaces.bin" BINARY`.
func parseFileLine(line string) (string, string, error) {
	open := strings.IndexByte(line, '"')
	closing := strings.LastIndexByte(line, '"')
	if open < 0 || closing <= open {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return "", "", common.NewFormatError("cue", "malformed FILE %q", line)
		}
		return fields[1], strings.ToUpper(fields[2]), nil
	}
	kind := strings.ToUpper(strings.TrimSpace(line[closing+1:]))
	name := line[open+1 : closing]
	if name == "" || kind == "" {
		return "", "", common.NewFormatError("cue", "malformed FILE %q", line)
	}
	return name, kind, nil
}

func parseTrack(number, mode string) (Entry, error) {
	n, err := strconv.Atoi(number)
	if err != nil || n < 1 || n > 99 {
		return Entry{}, common.NewFormatError("cue", "bad track number %q", number)
	}
	e := Entry{Track: n, Bitrate: SectorSize}

	kind, rate, hasRate := strings.Cut(strings.ToUpper(mode), "/")
	switch kind {
	case "MODE1":
		e.Type = TrackData
	case "AUDIO":
		e.Type = TrackAudio
	default:
		return Entry{}, &common.UnsupportedError{Feature: "track mode", Detail: mode}
	}
	if hasRate {
		if e.Bitrate, err = strconv.Atoi(rate); err != nil || e.Bitrate <= 0 {
			return Entry{}, common.NewFormatError("cue", "bad sector size %q", mode)
		}
	}
	if e.Bitrate != SectorSize {
		common.LogWarn(common.WarnUnexpectedBitrate, n, e.Bitrate, SectorSize)
	}
	return e, nil
}

func parseMSF(value string) (int, int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, 0, 0, common.NewFormatError("cue", "bad position %q", value)
	}
	var out [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, 0, 0, common.NewFormatError("cue", "bad position %q", value)
		}
		out[i] = v
	}
	if out[1] >= common.SecondsPerMinute || out[2] >= common.FramesPerSecond {
		return 0, 0, 0, common.NewFormatError("cue", "position %q out of range", value)
	}
	return out[0], out[1], out[2], nil
}
