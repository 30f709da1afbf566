package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"github.com/spf13/afero"
)

// File stores each key as a JSON file inside a directory.
type File struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFile returns a file backend rooted at dir. A nil fs uses the OS
// filesystem.
func NewFile(fs afero.Fs, dir string) (*File, error) {
	errFactory := errors.New()

	if dir == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	return &File{fs: fs, dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := afero.ReadFile(f.fs, f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return data, true, nil
}

// Set writes to a temporary file and renames it over the old one, so
// readers never see a partial document.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	errFactory := errors.New()
	target := f.path(key)
	tmp := target + ".tmp"

	if err := afero.WriteFile(f.fs, tmp, value, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.fs.Remove(tmp)
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.fs.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (*File) Close() error {
	return nil
}
