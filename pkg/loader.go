// Package pkg provides the top-level asset loader.
// This file contains the AssetLoader, which reads input sets through a
// BufferSource, and the Session holding what they produced.
package pkg

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/hansbonini/discrip/pkg/cab"
	"github.com/hansbonini/discrip/pkg/cdrom"
	"github.com/hansbonini/discrip/pkg/common"
	"github.com/hansbonini/discrip/pkg/config"
	"github.com/hansbonini/discrip/pkg/iso"
	"github.com/hansbonini/discrip/pkg/vfs"
	"github.com/hansbonini/discrip/pkg/wad"
)

// Session is the result of one or more loads: the virtual file system and
// the configuration file found in it.
type Session struct {
	FS         *vfs.FileSystem
	ConfigFile *vfs.File

	cfg     *config.Config
	wadOpts wad.Options
	mu      sync.Mutex
	scanned map[string]bool
}

func newSession(cfg *config.Config, opts wad.Options) *Session {
	return &Session{
		FS:      vfs.New(),
		cfg:     cfg,
		wadOpts: opts,
		scanned: make(map[string]bool),
	}
}

// Reset drops every file, as on a level reload or language switch.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FS.Clear()
	s.ConfigFile = nil
	s.scanned = make(map[string]bool)
}

// Rescan parses every not yet scanned file that matches the WAD pattern or
// starts with the WAD magic, and registers its entries, repeating until no
// new containers appear. Containers are parsed concurrently; one that fails
// to parse is logged and skipped. The configuration file is re-selected
// afterwards. It returns the number of files registered.
func (s *Session) Rescan() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registered, containers := 0, 0
	for {
		candidates, err := s.wadCandidates()
		if err != nil {
			return registered, err
		}
		if len(candidates) == 0 {
			break
		}

		results := make([][]wad.Entry, len(candidates))
		p := pool.New().WithMaxGoroutines(s.cfg.Workers)
		for i, f := range candidates {
			p.Go(func() {
				entries, err := wad.Parse(f.Data, s.wadOpts)
				if err != nil {
					common.LogWarn(common.WarnEmbeddedWADFailed, f.Name, err)
					return
				}
				results[i] = entries
			})
		}
		p.Wait()

		for i, entries := range results {
			s.scanned[candidates[i].LowerName] = true
			if entries == nil {
				continue
			}
			containers++
			for _, e := range entries {
				if e.Length == 0 {
					continue
				}
				if _, err := s.FS.Register(e.Name, e.Data); err != nil {
					return registered, fmt.Errorf("embedded WAD %s: %w", candidates[i].Name, err)
				}
				registered++
			}
		}
	}
	if containers > 0 {
		common.LogInfo(common.InfoEmbeddedWADs, containers, registered)
	}

	return registered, s.selectConfigFile()
}

func (s *Session) wadCandidates() ([]*vfs.File, error) {
	matches, err := s.FS.Glob(s.cfg.WADPattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(matches))
	var out []*vfs.File
	for _, f := range matches {
		seen[f.LowerName] = true
		if !s.scanned[f.LowerName] {
			out = append(out, f)
		}
	}
	for _, f := range s.FS.List() {
		if !seen[f.LowerName] && !s.scanned[f.LowerName] && wad.IsWAD(f.Data) {
			out = append(out, f)
		}
	}
	return out, nil
}

// selectConfigFile picks the first file matching the configuration pattern.
// Finding none leaves ConfigFile nil.
func (s *Session) selectConfigFile() error {
	matches, err := s.FS.Glob(s.cfg.ConfigPattern)
	if err != nil {
		return err
	}
	s.ConfigFile = nil
	switch {
	case len(matches) == 0:
		return nil
	case len(matches) > 1:
		common.LogWarn(common.WarnMultipleConfigFiles, len(matches), matches[0].Name)
	}
	s.ConfigFile = matches[0]
	common.LogInfo(common.InfoConfigFileFound, s.ConfigFile.Name)
	return nil
}

// AssetLoader reads input sets from a BufferSource into a Session.
type AssetLoader struct {
	src     BufferSource
	cfg     *config.Config
	wadOpts wad.Options
	session *Session
}

// NewAssetLoader creates a loader. A nil cfg selects config.Default().
func NewAssetLoader(src BufferSource, cfg *config.Config) (*AssetLoader, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cp, err := cfg.CodePageTable()
	if err != nil {
		return nil, err
	}
	opts := wad.Options{ZeroCopyThreshold: cfg.ZeroCopyThreshold, CodePage: cp}
	return &AssetLoader{
		src:     src,
		cfg:     cfg,
		wadOpts: opts,
		session: newSession(cfg, opts),
	}, nil
}

// Session returns the session every load writes into.
func (l *AssetLoader) Session() *Session {
	return l.session
}

// LoadWad loads a WAD container.
func (l *AssetLoader) LoadWad(name string) (int, error) {
	return l.loadWad(name, l.session.FS)
}

// LoadCabPair loads a cabinet header and its data volumes, in order.
func (l *AssetLoader) LoadCabPair(header string, volumes ...string) (int, error) {
	return l.loadCab(header, volumes, l.session.FS)
}

// LoadISO loads an ISO9660 image and expands the installer cabinet in it.
func (l *AssetLoader) LoadISO(name string) (int, error) {
	return l.loadISO(name, l.session.FS)
}

// LoadCueBin loads a CUE sheet and its BIN image.
func (l *AssetLoader) LoadCueBin(cue, bin string) (int, error) {
	return l.loadCueBin(cue, bin, l.session.FS)
}

// LoadZip loads every file of a ZIP archive.
func (l *AssetLoader) LoadZip(name string) (int, error) {
	return l.loadZip(name, l.session.FS)
}

// Load loads every input set concurrently, each into its own file system,
// then merges them into the session in the given order so later sets win on
// conflicts. A failed set does not stop the others; their errors are
// combined. The session is rescanned for embedded WADs afterwards.
func (l *AssetLoader) Load(sets []InputSet) (*Session, error) {
	loaded := make([]*vfs.FileSystem, len(sets))
	errs := make([]error, len(sets))

	p := pool.New().WithMaxGoroutines(l.cfg.Workers)
	for i, set := range sets {
		p.Go(func() {
			fs := vfs.New()
			n, err := l.loadSet(set, fs)
			if err != nil {
				errs[i] = fmt.Errorf("%s %s: %w", set.Kind, set.Primary, err)
			}
			common.LogInfo(common.InfoFilesRegistered, n, set.Primary)
			loaded[i] = fs
		})
	}
	p.Wait()

	for _, fs := range loaded {
		l.session.FS.Merge(fs)
	}
	combined := multierr.Combine(errs...)
	if _, err := l.session.Rescan(); err != nil {
		combined = multierr.Append(combined, err)
	}
	return l.session, combined
}

func (l *AssetLoader) loadSet(set InputSet, fs *vfs.FileSystem) (int, error) {
	switch set.Kind {
	case InputWAD:
		return l.loadWad(set.Primary, fs)
	case InputCabinet:
		return l.loadCab(set.Primary, set.Parts, fs)
	case InputISO:
		return l.loadISO(set.Primary, fs)
	case InputCueBin:
		if len(set.Parts) != 1 {
			return 0, &common.InvalidInputError{Reason: "cue sheet " + set.Primary + " needs one bin"}
		}
		return l.loadCueBin(set.Primary, set.Parts[0], fs)
	case InputZip:
		return l.loadZip(set.Primary, fs)
	}
	return 0, &common.InvalidInputError{Reason: fmt.Sprintf("unknown input kind %d", set.Kind)}
}

func (l *AssetLoader) loadWad(name string, fs *vfs.FileSystem) (int, error) {
	data, err := l.src.LoadBuffer(name)
	if err != nil {
		return 0, err
	}
	n, err := wad.Load(data, fs, l.wadOpts)
	if err != nil {
		return n, common.WrapError(common.ErrFailedToParseWAD, err)
	}
	return n, nil
}

func (l *AssetLoader) loadCab(header string, volumes []string, fs *vfs.FileSystem) (int, error) {
	if len(volumes) == 0 {
		return 0, &common.InvalidInputError{Reason: "cabinet " + header + " has no volume"}
	}
	hdr, err := l.src.LoadBuffer(header)
	if err != nil {
		return 0, err
	}
	parts := make([][]byte, 0, len(volumes))
	for _, v := range volumes {
		data, err := l.src.LoadBuffer(v)
		if err != nil {
			return 0, err
		}
		parts = append(parts, data)
	}

	a, err := cab.Open(hdr, parts...)
	if err != nil {
		return 0, common.WrapError(common.ErrFailedToOpenCabinet, err)
	}
	return a.ExtractAll(fs)
}

func (l *AssetLoader) loadISO(name string, fs *vfs.FileSystem) (int, error) {
	data, err := l.src.LoadBuffer(name)
	if err != nil {
		return 0, err
	}
	return iso.Load(data, fs)
}

func (l *AssetLoader) loadCueBin(cue, bin string, fs *vfs.FileSystem) (int, error) {
	sheet, err := l.src.LoadBuffer(cue)
	if err != nil {
		return 0, err
	}
	image, err := l.src.LoadBuffer(bin)
	if err != nil {
		return 0, err
	}
	return cdrom.Load(sheet, image, fs)
}

func (l *AssetLoader) loadZip(name string, fs *vfs.FileSystem) (int, error) {
	data, err := l.src.LoadBuffer(name)
	if err != nil {
		return 0, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, common.NewFormatError("zip", "%v", err)
	}

	registered := 0
	var errs error
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		contents, err := readZipFile(f)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if len(contents) == 0 {
			common.LogDebug("Skipping empty ZIP entry %s", f.Name)
			continue
		}
		if _, err := fs.Register(f.Name, contents); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		registered++
	}
	return registered, errs
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
