//go:build gcp

package audit

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSArchiver uploads sealed audit segments to a Google Cloud Storage
// bucket. Built only with `-tags gcp`, matching the rest of the core's
// optional-cloud-backend convention.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiver creates a GCS-backed Archiver.
func NewGCSArchiver(ctx context.Context, cfg GCSArchiverConfig) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: create gcs client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *GCSArchiver) Archive(ctx context.Context, segmentName string, data []byte) error {
	w := a.client.Bucket(a.bucket).Object(a.prefix + segmentName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("audit: gcs archive %s: %w", segmentName, err)
	}
	return w.Close()
}
