package runtime

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalFileStorage stores outputs under a base directory
type LocalFileStorage struct {
	baseDir string
}

// NewLocalFileStorage creates baseDir if needed
func NewLocalFileStorage(baseDir string) (*LocalFileStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalFileStorage{baseDir: abs}, nil
}

// FullPath maps a key to a path inside the base directory. Keys that
// would escape it are rejected with fs.ErrInvalid.
func (s *LocalFileStorage) FullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fs.ErrInvalid
	}
	full := filepath.Join(s.baseDir, clean)
	if full != s.baseDir && !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fs.ErrInvalid
	}
	return full, nil
}

func (s *LocalFileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.FullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *LocalFileStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// List returns keys under prefix. With a delimiter only the immediate
// children of the prefix directory are listed and subdirectories come back
// as delimited prefixes.
func (s *LocalFileStorage) List(ctx context.Context, prefix string, delimiter string) (*ListResult, error) {
	res := &ListResult{Keys: []string{}, DelimitedPrefixes: []string{}}

	dir := s.baseDir
	if prefix != "" {
		p, err := s.FullPath(prefix)
		if err != nil {
			return res, nil
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dir = p
		} else {
			dir = filepath.Dir(p)
		}
	}

	rel := func(path string) (string, bool) {
		r, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return "", false
		}
		r = filepath.ToSlash(r)
		return r, strings.HasPrefix(r, prefix)
	}

	if delimiter != "" {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			key, ok := rel(filepath.Join(dir, e.Name()))
			if !ok {
				continue
			}
			if e.IsDir() {
				res.DelimitedPrefixes = append(res.DelimitedPrefixes, key+delimiter)
			} else {
				res.Keys = append(res.Keys, key)
			}
		}
		return res, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if key, ok := rel(path); ok {
			res.Keys = append(res.Keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(res.Keys)
	return res, nil
}

// Delete removes key. Missing keys are not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	path, err := s.FullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	// drop directories left empty, stopping at the first one that is not
	for dir := filepath.Dir(path); dir != s.baseDir && strings.HasPrefix(dir, s.baseDir); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}
