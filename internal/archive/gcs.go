package archive

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS writes snapshots to a Google Cloud Storage bucket. A non-empty prefix
// is prepended to every object name, keeping snapshots grouped under one
// pseudo-directory in shared buckets.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Store = (*GCS)(nil)

// NewGCS wraps an existing GCS client. The caller keeps ownership of the
// client lifecycle.
func NewGCS(client *storage.Client, bucket, prefix string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// DialGCS creates a client using Application Default Credentials and
// verifies the bucket is reachable, failing fast on misconfiguration.
func DialGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("check gcs bucket %q: %w (close client: %v)", bucket, err, closeErr)
		}
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return NewGCS(client, bucket, prefix)
}

func (g *GCS) object(name string) string {
	if g.prefix == "" {
		return name
	}
	return g.prefix + "/" + name
}

// Save uploads data to the configured bucket. Close must succeed for the
// upload to be finalized.
func (g *GCS) Save(ctx context.Context, objectName string, data []byte) error {
	name := g.object(objectName)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return fmt.Errorf("write gcs object %s: %w (close writer: %v)", name, err, closeErr)
		}
		return fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs object %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client. Only call it when the store was
// built with DialGCS.
func (g *GCS) Close() error {
	return g.client.Close()
}
