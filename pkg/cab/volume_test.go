package cab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolumeNumber(t *testing.T) {
	tests := []struct {
		name string
		stem string
		n    int
		ok   bool
	}{
		{"data1.cab", "data", 1, true},
		{"setup/DATA12.CAB", "data", 12, true},
		{"setup\\data2.cab", "data", 2, true},
		{"data0.cab", "", 0, false},
		{"data01.cab", "data0", 1, true},
		{"data.cab", "", 0, false},
		{"data1.hdr", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stem, n, ok := VolumeNumber(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.stem, stem)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestSortVolumes(t *testing.T) {
	names := []string{"data10.cab", "data2.cab", "extra.cab", "data1.cab", "data11.cab"}
	SortVolumes(names)
	assert.Equal(t, []string{"data1.cab", "data2.cab", "data10.cab", "data11.cab", "extra.cab"}, names)
}
