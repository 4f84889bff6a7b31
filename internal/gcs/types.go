// Package gcs defines where export files are stored and how they are
// handed back to users.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrSigningUnsupported is returned by SignedURL when the backend cannot
// mint download links; callers stream the object instead.
var ErrSigningUnsupported = errors.New("signed URLs not supported")

// StorageService stores export files.
type StorageService interface {
	// Upload stores data under objectName and returns its URI.
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)

	// Download returns the bytes behind a URI returned by Upload.
	Download(ctx context.Context, uri string) ([]byte, error)

	// SignedURL returns a time-limited download link for uri.
	SignedURL(ctx context.Context, uri string, expiry time.Duration) (string, error)
}

// ParseURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the last path element of a storage URI,
// e.g. "gs://bucket/exports/a1/file.csv" → "file.csv".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(uri, "gs://"), "file://")
	return path.Base(trimmed)
}

// ExportObjectName is the object path of an export of accountID created at t.
func ExportObjectName(accountID string, t time.Time, ext string) string {
	return fmt.Sprintf("exports/%s/%s.%s", accountID, t.UTC().Format("20060102T150405Z"), ext)
}
