// Package common provides common utilities for CD-ROM operations.
// This file contains functions for MSF conversion and ISO9660 name handling.
package common

import (
	"fmt"
	"strings"
)

// Red Book addressing constants
const (
	FramesPerSecond  = 75
	SecondsPerMinute = 60
	FramesPerMinute  = FramesPerSecond * SecondsPerMinute
)

// MSFToSector converts a Minutes:Seconds:Frames address to an absolute sector
// index: minute*60*75 + second*75 + frame.
func MSFToSector(minute, second, frame int) int {
	return minute*FramesPerMinute + second*FramesPerSecond + frame
}

// SectorToMSF converts an absolute sector index back to mm:ss:ff
func SectorToMSF(sector int) string {
	minutes := sector / FramesPerMinute
	seconds := (sector % FramesPerMinute) / FramesPerSecond
	frames := sector % FramesPerSecond

	return fmt.Sprintf("%02d:%02d:%02d", minutes, seconds, frames)
}

// GetSizeInSectors calculates the number of sectors needed for a given size in bytes
func GetSizeInSectors(sizeBytes uint32) uint32 {
	const sectorSize = 2048
	return (sizeBytes + sectorSize - 1) / sectorSize
}

// CleanFileName removes version numbers from ISO9660 file names
// ("FILE.EXT;1" -> "FILE.EXT") and the trailing dot left on names without
// an extension ("README.;1" -> "README").
func CleanFileName(fileName string) string {
	if idx := strings.IndexByte(fileName, ';'); idx != -1 {
		fileName = fileName[:idx]
	}
	if len(fileName) > 1 && strings.HasSuffix(fileName, ".") && fileName != ".." {
		fileName = strings.TrimSuffix(fileName, ".")
	}
	return fileName
}

// IsSpecialDirEntry checks if a raw directory identifier is "." or ".."
func IsSpecialDirEntry(fileName string) bool {
	return fileName == "\x00" || fileName == "\x01"
}

// SpecialDirName maps the raw identifiers 0x00 and 0x01 to "." and "..".
func SpecialDirName(fileName string) string {
	switch fileName {
	case "\x00":
		return "."
	case "\x01":
		return ".."
	}
	return fileName
}
