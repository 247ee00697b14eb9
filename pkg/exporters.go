// Package pkg provides exporters for loaded assets.
// This file contains exporters for writing the virtual file system, decoded
// video frames and decoded audio to a real file system.
package pkg

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hansbonini/discrip/pkg/cdrom"
	"github.com/hansbonini/discrip/pkg/codec/msvideo1"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// ManifestName is the file ExportFileSystem writes next to the exported files.
const ManifestName = "manifest.yaml"

// Manifest describes an exported file system.
type Manifest struct {
	TotalFiles int             `yaml:"total_files"`
	TotalBytes int64           `yaml:"total_bytes"`
	ConfigFile string          `yaml:"config_file,omitempty"`
	Files      []ManifestEntry `yaml:"files"`
}

// ManifestEntry is one exported file.
type ManifestEntry struct {
	Name   string `yaml:"name"`
	Size   int    `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// Exporter writes loaded and decoded assets below an output directory on Fs.
type Exporter struct {
	Fs afero.Fs
}

// NewExporter creates an exporter writing to fsys.
func NewExporter(fsys afero.Fs) *Exporter {
	return &Exporter{Fs: fsys}
}

// ExportFileSystem writes every file of the session's file system below
// outputDir, preserving paths, followed by a manifest.
// Parameters:
//   - s: The session whose files are exported
//   - outputDir: Directory the files and manifest.yaml are written to
//
// Returns the manifest that was written.
func (e *Exporter) ExportFileSystem(s *Session, outputDir string) (*Manifest, error) {
	if err := e.Fs.MkdirAll(outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputDir, err)
	}
	if err := s.FS.Export(e.Fs, outputDir); err != nil {
		return nil, err
	}

	m := BuildManifest(s.FS)
	if s.ConfigFile != nil {
		m.ConfigFile = s.ConfigFile.Name
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := afero.WriteFile(e.Fs, filepath.Join(outputDir, ManifestName), out, 0o644); err != nil {
		return nil, fmt.Errorf("%s %s: %w", common.ErrFailedToExport, ManifestName, err)
	}

	common.LogInfo(common.InfoFilesExported, m.TotalFiles, outputDir)
	return m, nil
}

// BuildManifest lists every file of fsys with its size and content hash.
func BuildManifest(fsys *vfs.FileSystem) *Manifest {
	m := &Manifest{}
	for _, f := range fsys.List() {
		sum := sha256.Sum256(f.Data)
		m.Files = append(m.Files, ManifestEntry{
			Name:   f.Name,
			Size:   f.Size(),
			SHA256: hex.EncodeToString(sum[:]),
		})
		m.TotalBytes += int64(f.Size())
	}
	m.TotalFiles = len(m.Files)
	return m
}

// ExportFrames writes each frame as frame_NNNNN.png below outputDir.
func (e *Exporter) ExportFrames(frames []*msvideo1.Frame, outputDir string) error {
	if err := e.Fs.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputDir, err)
	}

	encode := imgio.PNGEncoder()
	for i, frame := range frames {
		name := filepath.Join(outputDir, fmt.Sprintf("frame_%05d.png", i))
		if err := e.writeFrame(name, frame, encode); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	common.LogInfo(common.InfoFramesExported, len(frames), outputDir)
	return nil
}

func (e *Exporter) writeFrame(name string, frame *msvideo1.Frame, encode imgio.Encoder) error {
	file, err := e.Fs.Create(name)
	if err != nil {
		return fmt.Errorf("%s %s: %w", common.ErrFailedToExport, name, err)
	}
	defer file.Close()

	if err := encode(file, frame.RGBA()); err != nil {
		return fmt.Errorf("failed to encode PNG %s: %w", name, err)
	}
	return nil
}

// ExportAudio writes interleaved 16-bit samples as a PCM WAV file.
func (e *Exporter) ExportAudio(samples []int16, channels, sampleRate int, outputFile string) error {
	payload := make([]byte, 0, len(samples)*2)
	for _, v := range samples {
		payload = binary.LittleEndian.AppendUint16(payload, uint16(v))
	}
	if err := e.writeWAV(cdrom.FormatPCM, channels, sampleRate, 16, payload, outputFile); err != nil {
		return err
	}
	common.LogInfo(common.InfoAudioExported, len(samples), outputFile)
	return nil
}

// ExportAudioFloat writes interleaved samples in [-1, 1) as a 32-bit IEEE
// float WAV file.
func (e *Exporter) ExportAudioFloat(samples []float32, channels, sampleRate int, outputFile string) error {
	payload := make([]byte, 0, len(samples)*4)
	for _, v := range samples {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
	}
	if err := e.writeWAV(cdrom.FormatFloat, channels, sampleRate, 32, payload, outputFile); err != nil {
		return err
	}
	common.LogInfo(common.InfoAudioExported, len(samples), outputFile)
	return nil
}

func (e *Exporter) writeWAV(formatTag uint16, channels, sampleRate, bits int, payload []byte, outputFile string) error {
	if channels < 1 || sampleRate < 1 {
		return &common.InvalidInputError{Reason: fmt.Sprintf("audio format %d channels at %d Hz", channels, sampleRate)}
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := e.Fs.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputDir, err)
		}
	}

	dataLen, err := common.SafeIntToUint32(len(payload))
	if err != nil {
		return fmt.Errorf("audio too long: %w", err)
	}
	out := make([]byte, 0, cdrom.WAVHeaderSize+len(payload))
	out = append(out, cdrom.FormatHeader(formatTag, channels, sampleRate, bits, dataLen)...)
	out = append(out, payload...)
	if err := afero.WriteFile(e.Fs, outputFile, out, 0o644); err != nil {
		return fmt.Errorf("%s %s: %w", common.ErrFailedToExport, outputFile, err)
	}
	return nil
}
