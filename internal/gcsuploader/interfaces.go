package gcsuploader

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finchat/internal/gcs"
)

// GCSStorageService is the Cloud Storage implementation of
// gcs.StorageService. It holds one client for its lifetime.
type GCSStorageService struct {
	client *storage.Client
	bucket string
}

// NewGCSStorageService creates a client using Application Default
// Credentials.
func NewGCSStorageService(ctx context.Context, bucket string) (*GCSStorageService, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCSStorageService: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client, bucket: bucket}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upload stores data in the configured bucket.
func (s *GCSStorageService) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	return UploadBytesWithClient(ctx, s.client, s.bucket, objectName, data, contentType)
}

// Download reads a gs:// URI.
func (s *GCSStorageService) Download(ctx context.Context, uri string) ([]byte, error) {
	return DownloadWithClient(ctx, s.client, uri)
}

// SignedURL signs a download link for uri.
func (s *GCSStorageService) SignedURL(ctx context.Context, uri string, expiry time.Duration) (string, error) {
	return SignedURLWithClient(s.client, uri, expiry)
}

var _ gcs.StorageService = (*GCSStorageService)(nil)
