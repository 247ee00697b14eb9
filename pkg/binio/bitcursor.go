package binio

import "github.com/hansbonini/discrip/pkg/common"

// BitCursor reads bit fields least-significant bit first, the order used by
// the Intel video bitstreams. Fields may straddle byte boundaries.
type BitCursor struct {
	data   []byte
	bitPos int
}

// NewBitCursor creates a bit reader over data.
func NewBitCursor(data []byte) *BitCursor {
	return &BitCursor{data: data}
}

// BitsLeft returns the number of unread bits.
func (b *BitCursor) BitsLeft() int {
	return len(b.data)*8 - b.bitPos
}

// Tell returns the current position in bits.
func (b *BitCursor) Tell() int {
	return b.bitPos
}

// ReadBits reads an n-bit unsigned field (0 <= n <= 32).
func (b *BitCursor) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, &common.BoundsError{Offset: b.bitPos / 8, Width: n, Length: len(b.data)}
	}
	if n > b.BitsLeft() {
		return 0, &common.BoundsError{Offset: b.bitPos / 8, Width: (n + 7) / 8, Length: len(b.data)}
	}
	var v uint32
	for i := 0; i < n; {
		byteIdx := b.bitPos >> 3
		shift := b.bitPos & 7
		take := 8 - shift
		if take > n-i {
			take = n - i
		}
		bits := (uint32(b.data[byteIdx]) >> shift) & (1<<take - 1)
		v |= bits << i
		i += take
		b.bitPos += take
	}
	return v, nil
}

// ReadBit reads a single bit as a bool.
func (b *BitCursor) ReadBit() (bool, error) {
	v, err := b.ReadBits(1)
	return v == 1, err
}

// SkipBits advances by n bits.
func (b *BitCursor) SkipBits(n int) error {
	if n < 0 || n > b.BitsLeft() {
		return &common.BoundsError{Offset: b.bitPos / 8, Width: (n + 7) / 8, Length: len(b.data)}
	}
	b.bitPos += n
	return nil
}

// Align moves to the next byte boundary; a cursor already aligned stays put.
func (b *BitCursor) Align() {
	b.bitPos = (b.bitPos + 7) &^ 7
}
