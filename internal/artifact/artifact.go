// Package artifact stores rendered export files.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid artifact name")

// Stored describes a written artifact.
type Stored struct {
	Path string
	URL  string
	Size int64
}

// Store keeps artifact bytes.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (*Stored, error)
	Delete(ctx context.Context, path string) error
}

var _ Store = (*FileStore)(nil)

// FileStore writes artifacts below a directory and serves them under a
// base url.
type FileStore struct {
	dir     string
	baseURL string
}

func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir, baseURL: baseURL}, nil
}

// Put writes the artifact atomically through a temporary file.
func (f *FileStore) Put(ctx context.Context, name string, data []byte) (*Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err = tmp.Close(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}

	stored := &Stored{Path: path, Size: int64(len(data))}
	if f.baseURL != "" {
		if stored.URL, err = url.JoinPath(f.baseURL, name); err != nil {
			return nil, err
		}
	}

	return stored, nil
}

// Delete removes an artifact. Missing files are ignored.
func (f *FileStore) Delete(_ context.Context, path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(f.dir) {
		return fmt.Errorf("%w: %q", ErrInvalidName, path)
	}

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
