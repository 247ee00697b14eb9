// Package vfs provides the in-memory, case-insensitive file store that every
// container parser writes into.
package vfs

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/hansbonini/discrip/pkg/common"
)

// File is a named, immutable byte blob. Callers must not modify Data.
type File struct {
	Name      string
	LowerName string
	Data      []byte
}

// Size returns the length of the file contents.
func (f *File) Size() int {
	return len(f.Data)
}

// FileSystem maps lower-cased names to files. It is safe for concurrent use.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string]*File
}

// New creates an empty file system.
func New() *FileSystem {
	return &FileSystem{files: make(map[string]*File)}
}

// NormalizeName converts backslashes to forward slashes, cleans the path and
// strips leading slashes; the case of the name is preserved.
func NormalizeName(name string) string {
	name = strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if name == "" {
		return ""
	}
	return path.Clean(name)
}

func escapesRoot(name string) bool {
	return name == ".." || strings.HasPrefix(name, "../")
}

// Register inserts or overwrites a file. Empty names and empty contents are
// rejected.
func (fs *FileSystem) Register(name string, data []byte) (*File, error) {
	name = NormalizeName(name)
	if name == "" || name == "." {
		return nil, errors.New("vfs: empty file name")
	}
	if escapesRoot(name) {
		return nil, common.NewFormatError("vfs", "name %q leaves the file system root", name)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("vfs: %q has no data", name)
	}
	f := &File{Name: name, LowerName: strings.ToLower(name), Data: data}

	fs.mu.Lock()
	fs.files[f.LowerName] = f
	fs.mu.Unlock()
	return f, nil
}

// Merge registers every file of other into fs, overwriting on conflict.
func (fs *FileSystem) Merge(other *FileSystem) {
	for _, f := range other.List() {
		fs.mu.Lock()
		fs.files[f.LowerName] = f
		fs.mu.Unlock()
	}
}

// Get returns the file with the given name, ignoring case.
func (fs *FileSystem) Get(name string) (*File, error) {
	key := strings.ToLower(NormalizeName(name))
	fs.mu.RLock()
	f, ok := fs.files[key]
	fs.mu.RUnlock()
	if !ok {
		return nil, &common.NotFoundError{Container: "vfs", Name: name}
	}
	return f, nil
}

// Has reports whether name is registered.
func (fs *FileSystem) Has(name string) bool {
	_, err := fs.Get(name)
	return err == nil
}

// Remove deletes name and reports whether it existed.
func (fs *FileSystem) Remove(name string) bool {
	key := strings.ToLower(NormalizeName(name))
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.files[key]
	delete(fs.files, key)
	return ok
}

// Glob returns the files whose lower-cased name, or lower-cased base name,
// matches pattern (path.Match syntax, matched case-insensitively), sorted by
// name.
func (fs *FileSystem) Glob(pattern string) ([]*File, error) {
	pattern = strings.ToLower(NormalizeName(pattern))
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("vfs: bad pattern %q: %w", pattern, err)
	}

	var out []*File
	for _, f := range fs.List() {
		full, _ := path.Match(pattern, f.LowerName)
		base, _ := path.Match(pattern, path.Base(f.LowerName))
		if full || base {
			out = append(out, f)
		}
	}
	return out, nil
}

// List returns every file sorted by lower-cased name.
func (fs *FileSystem) List() []*File {
	fs.mu.RLock()
	out := make([]*File, 0, len(fs.files))
	for _, f := range fs.files {
		out = append(out, f)
	}
	fs.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LowerName < out[j].LowerName })
	return out
}

// Names returns the case-preserved names of every file, sorted.
func (fs *FileSystem) Names() []string {
	files := fs.List()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of registered files.
func (fs *FileSystem) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.files)
}

// Clear drops every file, as on a level reload or language switch.
func (fs *FileSystem) Clear() {
	fs.mu.Lock()
	fs.files = make(map[string]*File)
	fs.mu.Unlock()
}

// Export writes every file below dir on the target file system, creating
// intermediate directories.
func (fs *FileSystem) Export(target afero.Fs, dir string) error {
	for _, f := range fs.List() {
		if escapesRoot(NormalizeName(f.Name)) {
			return common.NewFormatError("vfs", "name %q leaves the output directory", f.Name)
		}
		outPath := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := target.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
			return fmt.Errorf("%s %s: %w", common.ErrFailedToCreateOutputDir, filepath.Dir(outPath), err)
		}
		if err := afero.WriteFile(target, outPath, f.Data, 0o644); err != nil {
			return fmt.Errorf("%s %s: %w", common.ErrFailedToExport, outPath, err)
		}
	}
	return nil
}
