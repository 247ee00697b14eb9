package common

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Global variable to control debug output
var VerboseMode bool = false

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
	Level(zerolog.InfoLevel).
	With().Timestamp().Logger()

// SetVerboseMode enables or disables verbose/debug output
func SetVerboseMode(verbose bool) {
	VerboseMode = verbose
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// SetLogOutput redirects all log output to w. Console formatting is kept so
// the file and terminal output read the same.
func SetLogOutput(w io.Writer) {
	level := logger.GetLevel()
	logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

// Error messages
const (
	ErrFailedToReadInput       = "failed to read input"
	ErrFailedToParseWAD        = "failed to parse WAD container"
	ErrFailedToOpenCabinet     = "failed to open cabinet"
	ErrFailedToExtractCabinet  = "failed to extract cabinet file"
	ErrFailedToParseISO        = "failed to parse ISO9660 volume"
	ErrFailedToParseCue        = "failed to parse CUE sheet"
	ErrFailedToParseAVI        = "failed to parse AVI file"
	ErrFailedToDecodeVideo     = "failed to decode video stream"
	ErrFailedToDecodeAudio     = "failed to decode audio stream"
	ErrFailedToExport          = "failed to export file"
	ErrFailedToCreateOutputDir = "failed to create output directory"
)

// Info messages
const (
	InfoFilesRegistered     = "Registered %d files from %s"
	InfoCabinetOpened       = "Cabinet version %d: %d directories, %d files"
	InfoISOWalked           = "ISO9660 walk complete: %d files"
	InfoCueTracks           = "CUE sheet: %d tracks"
	InfoAudioTrackExtracted = "Audio track %d extracted: %d bytes"
	InfoEmbeddedWADs        = "Embedded WAD rescan: %d containers, %d files"
	InfoConfigFileFound     = "Configuration file: %s"
	InfoFilesExported       = "Exported %d files to: %s"
	InfoFramesExported      = "Exported %d frames to: %s"
	InfoAudioExported       = "Exported %d samples to: %s"
)

// Debug messages
const (
	DebugWADEntry         = "WAD entry %s: offset=0x%X length=%d"
	DebugCabinetGroup     = "Cabinet group %q: files %d..%d"
	DebugCabinetFile      = "Cabinet file %s: offset=0x%X packed=%d expanded=%d compressed=%t"
	DebugISORecord        = "ISO record %s: extent=%d length=%d dir=%t"
	DebugISODescriptor    = "ISO volume descriptor type %d at sector %d"
	DebugCueTrack         = "Track %02d %s/%d at %s (sector %d)"
	DebugAVIStream        = "AVI stream %d: type=%s handler=%s"
	DebugAVIChunkBucketed = "AVI chunk %s -> stream %d (%d bytes)"
)

// Warning messages
const (
	WarnFileTableSizeMismatch  = "Cabinet file table size fields disagree: %d vs %d"
	WarnCabinetZeroNameOffset  = "Skipping cabinet file %d: zero name offset"
	WarnCabinetZeroDataOffset  = "Skipping cabinet file %d: zero data offset"
	WarnCabinetInvalidFile     = "Skipping cabinet file %d: invalid flag set"
	WarnCabinetUncompressed    = "Cabinet file %s is stored uncompressed; copying raw bytes"
	WarnSupplementaryVolume    = "Supplementary volume descriptor at sector %d is not supported"
	WarnUnexpectedBitrate      = "Track %02d has unexpected sector size %d (expected %d)"
	WarnUnknownStreamType      = "Skipping AVI stream %d with unknown type %q"
	WarnUnknownChunkStream     = "Skipping AVI chunk %s for unknown stream %d"
	WarnMultipleConfigFiles    = "Found %d configuration files, using %s"
	WarnEmbeddedWADFailed      = "Embedded WAD %s could not be parsed: %v"
	WarnCabinetFileFailed      = "Cabinet file %s failed: %v"
	WarnDuplicateSeedDirectory = "Seed file %s found more than once, using %s"
)

// LogInfo logs an informational message
func LogInfo(message string, args ...interface{}) {
	if len(args) > 0 {
		logger.Info().Msgf(message, args...)
	} else {
		logger.Info().Msg(message)
	}
}

// LogWarn logs a warning message
func LogWarn(message string, args ...interface{}) {
	if len(args) > 0 {
		logger.Warn().Msgf(message, args...)
	} else {
		logger.Warn().Msg(message)
	}
}

// LogError logs an error message
func LogError(message string, args ...interface{}) {
	if len(args) > 0 {
		logger.Error().Msgf(message, args...)
	} else {
		logger.Error().Msg(message)
	}
}

// LogDebug logs a debug message (only if VerboseMode is enabled)
func LogDebug(message string, args ...interface{}) {
	if !VerboseMode {
		return
	}
	if len(args) > 0 {
		logger.Debug().Msgf(message, args...)
	} else {
		logger.Debug().Msg(message)
	}
}

// WrapError creates a formatted error with additional context
func WrapError(baseMessage string, details interface{}) error {
	if err, ok := details.(error); ok {
		return fmt.Errorf("%s: %w", baseMessage, err)
	}
	return fmt.Errorf("%s: %v", baseMessage, details)
}
