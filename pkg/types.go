// Package pkg ties the container parsers and codecs together: it loads input
// sets into a virtual file system, decodes cutscenes and exports results.
// This file contains the input types shared by the loader and the CLI.
package pkg

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/hansbonini/discrip/pkg/cab"
	"github.com/hansbonini/discrip/pkg/common"
)

// BufferSource supplies whole input buffers by name. Parsers never perform
// I/O themselves; everything they read comes through a source.
type BufferSource interface {
	LoadBuffer(name string) ([]byte, error)
}

// FsSource reads buffers from an afero file system, relative to Root.
type FsSource struct {
	Fs   afero.Fs
	Root string
}

// NewFsSource creates a source over fsys rooted at root.
func NewFsSource(fsys afero.Fs, root string) *FsSource {
	return &FsSource{Fs: fsys, Root: root}
}

// NewOsSource creates a source over the host file system.
func NewOsSource(root string) *FsSource {
	return NewFsSource(afero.NewOsFs(), root)
}

// LoadBuffer reads name below Root. A missing file is a NotFoundError.
func (s *FsSource) LoadBuffer(name string) ([]byte, error) {
	path := name
	if s.Root != "" && !filepath.IsAbs(name) {
		path = filepath.Join(s.Root, name)
	}
	data, err := afero.ReadFile(s.Fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &common.NotFoundError{Container: "source", Name: name}
	}
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToReadInput+" "+name, err)
	}
	return data, nil
}

// InputKind names the shape of an input set.
type InputKind int

// Input kinds
const (
	InputWAD InputKind = iota
	InputCabinet
	InputISO
	InputCueBin
	InputZip
)

func (k InputKind) String() string {
	switch k {
	case InputWAD:
		return "wad"
	case InputCabinet:
		return "cab"
	case InputISO:
		return "iso"
	case InputCueBin:
		return "cue/bin"
	case InputZip:
		return "zip"
	}
	return "unknown"
}

// InputSet is one loadable unit: a single file, or a file plus the companion
// buffers it needs (CUE+BIN, cabinet header+volumes).
type InputSet struct {
	Kind    InputKind
	Primary string
	Parts   []string
}

var knownExtensions = map[string]bool{
	".zip": true, ".iso": true, ".wad": true,
	".cue": true, ".bin": true, ".hdr": true, ".cab": true,
}

// DetectInputs groups file names into input sets by extension. A .cue needs
// a .bin and a .hdr needs at least one .cab; volumes are ordered by name.
func DetectInputs(names []string) ([]InputSet, error) {
	byExt := make(map[string][]string)
	for _, n := range names {
		ext := strings.ToLower(filepath.Ext(n))
		if !knownExtensions[ext] {
			common.LogWarn("Ignoring input %s: unknown extension", n)
			continue
		}
		byExt[ext] = append(byExt[ext], n)
	}

	var sets []InputSet
	for _, n := range byExt[".zip"] {
		sets = append(sets, InputSet{Kind: InputZip, Primary: n})
	}
	for _, n := range byExt[".iso"] {
		sets = append(sets, InputSet{Kind: InputISO, Primary: n})
	}
	for _, n := range byExt[".wad"] {
		sets = append(sets, InputSet{Kind: InputWAD, Primary: n})
	}

	cues, bins := byExt[".cue"], byExt[".bin"]
	if len(cues) != len(bins) {
		return nil, &common.InvalidInputError{Reason: "every .cue needs exactly one .bin"}
	}
	sort.Strings(cues)
	sort.Strings(bins)
	for i := range cues {
		sets = append(sets, InputSet{Kind: InputCueBin, Primary: cues[i], Parts: []string{bins[i]}})
	}

	hdrs, cabs := byExt[".hdr"], byExt[".cab"]
	switch {
	case len(hdrs) > 1:
		return nil, &common.InvalidInputError{Reason: "more than one cabinet header given"}
	case len(hdrs) == 1 && len(cabs) == 0:
		return nil, &common.InvalidInputError{Reason: "cabinet header " + hdrs[0] + " has no volume"}
	case len(hdrs) == 0 && len(cabs) > 0:
		return nil, &common.InvalidInputError{Reason: "cabinet volumes given without a header"}
	case len(hdrs) == 1:
		cab.SortVolumes(cabs)
		sets = append(sets, InputSet{Kind: InputCabinet, Primary: hdrs[0], Parts: cabs})
	}

	if len(sets) == 0 {
		return nil, &common.InvalidInputError{Reason: "no recognised input files"}
	}
	return sets, nil
}
