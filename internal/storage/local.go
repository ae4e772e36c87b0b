package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements BlobStore using the local filesystem. The API
// serves baseDir under /files so the URLs it hands out resolve.
type LocalStorage struct {
	baseDir   string
	publicURL string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(baseDir, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return &LocalStorage{baseDir: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the directory the store writes into.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(full) // Clean up on error
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *LocalStorage) PublicURL(objectPath string) string {
	return s.publicURL + "/files/" + strings.TrimLeft(objectPath, "/")
}

func (s *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// resolve maps an object path into baseDir, refusing anything that escapes it.
func (s *LocalStorage) resolve(objectPath string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
	if full != s.baseDir && !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", errors.New("invalid file path: must be within storage directory")
	}
	return full, nil
}
