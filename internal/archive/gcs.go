package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSStore writes snapshots to a Google Cloud Storage bucket. Authentication
// uses Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates the client and verifies the bucket is reachable, so a
// misconfigured deployment fails at startup instead of mid-run.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put uploads the snapshot and returns its gs:// URI. Close must succeed for
// the object to be finalized.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/html; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
