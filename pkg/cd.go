// Package pkg provides CD image dumping.
// This file contains the CDProcessor, which splits a CUE/BIN disc into its
// ISO9660 contents and WAV audio tracks.
package pkg

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/cdrom"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/iso"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// CDProcessor dumps CUE/BIN discs found on Fs.
type CDProcessor struct {
	Fs afero.Fs
}

// NewCDProcessor creates a new CD processor over fsys.
func NewCDProcessor(fsys afero.Fs) *CDProcessor {
	return &CDProcessor{Fs: fsys}
}

// DumpResult summarises a dump.
type DumpResult struct {
	Tracks      int
	Files       int
	Expanded    bool
	ISOListings []iso.File
}

// Dump reads cueFile and the BIN it names (relative to the sheet), then
// writes the audio tracks and the data track's files below outputDir. When
// the data track carries an installer cabinet it is expanded; otherwise the
// ISO files are written as they are. Data track failures do not stop the
// export: Dump then returns the result together with the combined error.
func (p *CDProcessor) Dump(cueFile, outputDir string) (*DumpResult, error) {
	sheetData, err := afero.ReadFile(p.Fs, cueFile)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", common.ErrFailedToReadInput, cueFile, err)
	}
	sheet, err := cdrom.ParseCue(sheetData)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToParseCue, err)
	}

	binFile := filepath.Join(filepath.Dir(cueFile), sheet.File)
	bin, err := afero.ReadFile(p.Fs, binFile)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", common.ErrFailedToReadInput, binFile, err)
	}
	disc, err := cdrom.Split(sheet, bin)
	if err != nil {
		return nil, err
	}

	fs := vfs.New()
	res := &DumpResult{}
	for _, t := range disc.Tracks {
		if _, err := fs.Register(t.Name, t.WAV); err != nil {
			return nil, err
		}
		res.Tracks++
	}

	var dataErr error
	if disc.ISO != nil {
		if dataErr = p.dumpDataTrack(disc.ISO, fs, res); dataErr != nil {
			common.LogWarn("Data track only partly extracted: %v", dataErr)
		}
	}

	if err := p.Fs.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputDir, err)
	}
	if err := fs.Export(p.Fs, outputDir); err != nil {
		return nil, err
	}
	common.LogInfo(common.InfoFilesExported, fs.Len(), outputDir)
	return res, dataErr
}

func (p *CDProcessor) dumpDataTrack(image []byte, fs *vfs.FileSystem, res *DumpResult) error {
	files, err := iso.Walk(image)
	if err != nil {
		return common.WrapError(common.ErrFailedToParseISO, err)
	}
	res.ISOListings = files

	n, err := iso.Load(image, fs)
	if err == nil || !common.IsInvalidInput(err) {
		res.Expanded = err == nil || n > 0
		res.Files = n
		return err
	}

	common.LogDebug("No installer cabinet on the data track, writing the ISO files as they are")
	var errs error
	for _, f := range files {
		if len(f.Data) == 0 {
			common.LogWarn("Skipping empty ISO file %s", f.Path)
			continue
		}
		if _, err := fs.Register(f.Path, f.Data); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		res.Files++
	}
	return errs
}
