package iso

import (
	"fmt"
	"path"

	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/cab"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/vfs"
)

// Seed file names of the installer cabinet.
const (
	SeedHeader = "data1.hdr"
	SeedVolume = "data1.cab"
)

// seeds holds the cabinet header and its ordered volumes found on a disc.
type seeds struct {
	header  File
	volumes []File
}

// findSeeds locates the header by base name and collects data1.cab,
// data2.cab, ... from the same directory.
func findSeeds(files []File) (*seeds, error) {
	var headers []File
	for _, f := range files {
		if path.Base(f.Path) == SeedHeader {
			headers = append(headers, f)
		}
	}
	if len(headers) == 0 {
		return nil, &common.InvalidInputError{Reason: "image has no " + SeedHeader}
	}
	if len(headers) > 1 {
		common.LogWarn(common.WarnDuplicateSeedDirectory, SeedHeader, headers[0].Path)
	}

	s := &seeds{header: headers[0]}
	dir := path.Dir(s.header.Path)
	numbered := make(map[int]File)
	for _, f := range files {
		if path.Dir(f.Path) != dir {
			continue
		}
		stem, n, ok := cab.VolumeNumber(f.Path)
		if !ok || stem != "data" {
			continue
		}
		if prev, dup := numbered[n]; dup {
			common.LogWarn("Cabinet volume %s duplicates %s, keeping the first", f.Path, prev.Path)
			continue
		}
		numbered[n] = f
	}
	if _, ok := numbered[1]; !ok {
		return nil, &common.InvalidInputError{Reason: "image has no " + SeedVolume + " next to " + s.header.Path}
	}

	for n := 1; ; n++ {
		f, ok := numbered[n]
		if !ok {
			break
		}
		s.volumes = append(s.volumes, f)
	}
	if len(s.volumes) < len(numbered) {
		common.LogWarn("Cabinet volume data%d.cab missing, stopping at data%d.cab", len(s.volumes)+1, len(s.volumes))
	}
	return s, nil
}

// Load walks the image, registers its plain files in fs and expands the
// installer cabinet into fs. The seed files themselves are not registered.
// Per-file cabinet failures are returned combined after the rest is loaded.
func Load(data []byte, fs *vfs.FileSystem) (int, error) {
	files, err := Walk(data)
	if err != nil {
		return 0, err
	}
	s, err := findSeeds(files)
	if err != nil {
		return 0, err
	}

	consumed := map[string]bool{s.header.Path: true}
	volumes := make([][]byte, len(s.volumes))
	for i, v := range s.volumes {
		consumed[v.Path] = true
		volumes[i] = v.Data
	}

	archive, err := cab.Open(s.header.Data, volumes...)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", common.ErrFailedToOpenCabinet, s.header.Path, err)
	}

	registered := 0
	var errs error
	for _, f := range files {
		if consumed[f.Path] {
			continue
		}
		if len(f.Data) == 0 {
			common.LogWarn("Skipping empty ISO file %s", f.Path)
			continue
		}
		if _, err := fs.Register(f.Path, f.Data); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		registered++
	}

	n, err := archive.ExtractAll(fs)
	registered += n
	errs = multierr.Append(errs, err)

	common.LogInfo(common.InfoFilesRegistered, registered, "ISO9660 image")
	return registered, errs
}
