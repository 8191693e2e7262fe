// Package storage resolves firmware image binaries from the local image
// directory.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"firmup/internal/infrastructure/upgraders"
)

// FileStore serves firmware binaries from a directory tree laid out as
// <root>/<build-sid>/<file-name>.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir, creating it if missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(buildSID, fileName string) (string, error) {
	// file names come from uploads, never trust them with path elements
	if fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", fmt.Errorf("invalid image file name %q", fileName)
	}
	return filepath.Join(s.root, buildSID, fileName), nil
}

// Save streams an uploaded image into the store and returns its size and
// sha256 checksum.
func (s *FileStore) Save(buildSID, fileName string, content io.Reader) (int64, string, error) {
	target, err := s.path(buildSID, fileName)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, "", fmt.Errorf("failed to create build directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), content)
	if err != nil {
		_ = os.Remove(target)
		return 0, "", fmt.Errorf("failed to write image file: %w", err)
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

// Open returns an ImageSource for a stored image, verifying the file
// still exists.
func (s *FileStore) Open(buildSID, fileName, checksum string) (upgraders.ImageSource, error) {
	target, err := s.path(buildSID, fileName)
	if err != nil {
		return upgraders.ImageSource{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return upgraders.ImageSource{}, fmt.Errorf("image file %s not found in storage: %w", fileName, err)
	}
	return upgraders.ImageSource{
		Name:     fileName,
		Size:     info.Size(),
		Checksum: checksum,
		Open: func() (io.ReadCloser, error) {
			return os.Open(target)
		},
	}, nil
}

// Remove deletes a stored image file. Missing files are not an error.
func (s *FileStore) Remove(buildSID, fileName string) error {
	target, err := s.path(buildSID, fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}
