package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finchat/internal/gcs"
)

// DownloadWithClient reads the object behind a gs:// URI.
func DownloadWithClient(ctx context.Context, client *storage.Client, uri string) ([]byte, error) {
	bucketName, objectName, err := gcs.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: open GCS object reader %s/%s: %w", bucketName, objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: read GCS object: %w", err)
	}
	return data, nil
}
