package cdrom

import (
	"fmt"

	"github.com/hansbonini/discrip/pkg/common"
)

// Raw sector layout constants
const (
	SectorSize     = 2352 // Full CD sector size
	DataSize       = 2048 // Data portion of Mode 1 sector
	SyncSize       = 12   // Sync pattern size
	HeaderSize     = 4    // Header size (3 address bytes + 1 mode byte)
	Mode1DataStart = SyncSize + HeaderSize
)

// Image reads fixed-size sectors out of a raw BIN buffer.
type Image struct {
	data       []byte
	sectorSize int
}

// NewImage wraps data as a sequence of sectorSize-byte sectors.
func NewImage(data []byte, sectorSize int) *Image {
	if sectorSize <= 0 {
		sectorSize = SectorSize
	}
	return &Image{data: data, sectorSize: sectorSize}
}

// Sectors returns the number of whole sectors in the image.
func (img *Image) Sectors() int {
	return len(img.data) / img.sectorSize
}

// Sector returns the raw bytes of sector lba.
func (img *Image) Sector(lba int) ([]byte, error) {
	return img.span(lba*img.sectorSize, img.sectorSize)
}

// UserData returns the 2048-byte Mode 1 payload of sector lba.
func (img *Image) UserData(lba int) ([]byte, error) {
	return img.span(lba*img.sectorSize+Mode1DataStart, DataSize)
}

// Range returns the bytes of sectors [from, to). A negative to means the end
// of the image, including any trailing partial sector.
func (img *Image) Range(from, to int) ([]byte, error) {
	start := from * img.sectorSize
	end := len(img.data)
	if to >= 0 {
		end = to * img.sectorSize
	}
	if end < start {
		return nil, fmt.Errorf("sector range %d..%d is reversed", from, to)
	}
	return img.span(start, end-start)
}

func (img *Image) span(offset, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+n > len(img.data) {
		return nil, &common.BoundsError{Offset: offset, Width: n, Length: len(img.data)}
	}
	return img.data[offset : offset+n], nil
}
