// Package cdromtest builds raw 2352-byte sector images for tests.
package cdromtest

const (
	sectorSize     = 2352
	dataSize       = 2048
	mode1DataStart = 16
)

var syncPattern = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// Mode1 wraps a cooked image as Mode 1 raw sectors, padded to count.
func Mode1(cooked []byte, count int) []byte {
	out := make([]byte, 0, count*sectorSize)
	for s := 0; s < count; s++ {
		sector := make([]byte, sectorSize)
		copy(sector, syncPattern)
		sector[15] = 1
		if off := s * dataSize; off < len(cooked) {
			copy(sector[mode1DataStart:mode1DataStart+dataSize], cooked[off:])
		}
		out = append(out, sector...)
	}
	return out
}

// Audio returns count sectors of a repeating PCM ramp.
func Audio(count int) []byte {
	pcm := make([]byte, count*sectorSize)
	for i := range pcm {
		pcm[i] = byte(i * 7)
	}
	return pcm
}
