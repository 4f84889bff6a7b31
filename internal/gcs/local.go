package gcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps exports in a directory when no bucket is configured.
type LocalStorage struct {
	Dir string
}

// NewLocalStorage creates dir if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("NewLocalStorage: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStorage: %w", err)
	}
	return &LocalStorage{Dir: abs}, nil
}

// Upload writes data below Dir and returns a file:// URI.
func (s *LocalStorage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	p, err := s.resolve(objectName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("Upload: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("Upload: %w", err)
	}
	return "file://" + p, nil
}

// Download reads a file:// URI returned by Upload.
func (s *LocalStorage) Download(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, fmt.Errorf("Download: not a local URI: %s", uri)
	}
	p := strings.TrimPrefix(uri, "file://")
	if !strings.HasPrefix(p, s.Dir+string(filepath.Separator)) {
		return nil, fmt.Errorf("Download: %s is outside %s", p, s.Dir)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	return data, nil
}

// SignedURL always fails: local files are served by the API directly.
func (s *LocalStorage) SignedURL(ctx context.Context, uri string, expiry time.Duration) (string, error) {
	return "", ErrSigningUnsupported
}

func (s *LocalStorage) resolve(objectName string) (string, error) {
	p := filepath.Join(s.Dir, filepath.FromSlash(objectName))
	if !strings.HasPrefix(p, s.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("object name %q escapes %s", objectName, s.Dir)
	}
	return p, nil
}

var _ StorageService = (*LocalStorage)(nil)
