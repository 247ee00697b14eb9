package cab

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var volumeName = regexp.MustCompile(`(?i)^(.*?)([1-9][0-9]*)\.cab$`)

// VolumeNumber splits a volume file name such as "data12.cab" into its
// lowercased stem ("data") and number (12). Numbers below 1 or written with
// a leading zero are not volume numbers.
func VolumeNumber(name string) (stem string, n int, ok bool) {
	m := volumeName.FindStringSubmatch(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return strings.ToLower(m[1]), n, true
}

// SortVolumes orders volume names by directory, stem and volume number, so
// data2.cab precedes data10.cab. Names without a number sort after numbered
// ones of the same directory.
func SortVolumes(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		da, db := path.Dir(a), path.Dir(b)
		if da != db {
			return da < db
		}
		sa, na, oka := VolumeNumber(a)
		sb, nb, okb := VolumeNumber(b)
		switch {
		case oka && okb:
			if sa != sb {
				return sa < sb
			}
			if na != nb {
				return na < nb
			}
			return a < b
		case oka != okb:
			return oka
		}
		return a < b
	})
}
