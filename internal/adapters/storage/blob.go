package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gemhutch/registry/internal/core/services"
)

// DiskBlobStore is a keyed byte store on the local filesystem. Keys map
// to paths under the blobs directory; writes go through a temp file and
// an atomic rename so readers never observe partial values.
type DiskBlobStore struct {
	dataDir string
}

// NewDiskBlobStore creates a DiskBlobStore rooted at dataDir.
func NewDiskBlobStore(dataDir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &DiskBlobStore{dataDir: dataDir}, nil
}

func (s *DiskBlobStore) Put(key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating blob subdirectory: %w", err)
	}

	tmpDir := filepath.Join(s.dataDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	tmp, err := os.CreateTemp(tmpDir, "blob-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving blob into place: %w", err)
	}
	return nil
}

func (s *DiskBlobStore) Get(key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob %s", services.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: reading blob %s: %v", services.ErrStoreUnavailable, key, err)
	}
	return data, nil
}

func (s *DiskBlobStore) Exists(key string) bool {
	path, err := s.keyPath(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *DiskBlobStore) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// List returns every stored key, using forward slashes regardless of
// platform.
func (s *DiskBlobStore) List() ([]string, error) {
	blobDir := filepath.Join(s.dataDir, "blobs")
	var keys []string
	err := filepath.WalkDir(blobDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(blobDir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	return keys, nil
}

// keyPath validates a key and maps it to its on-disk path. Keys are
// slash-separated relative paths; anything empty, absolute, or escaping
// the blobs directory is rejected.
func (s *DiskBlobStore) keyPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid blob key %q", key)
		}
	}
	return filepath.Join(s.dataDir, "blobs", filepath.FromSlash(key)), nil
}
