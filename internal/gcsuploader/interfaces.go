package gcsuploader

import (
	"context"
	"fmt"
	"os"
)

// SourceStore provides the storage operations the pipeline needs: fetching
// ledger sources and publishing rendered reports. This interface enables
// mocking and testing of storage functionality.
type SourceStore interface {
	// Fetch reads the bytes behind a source URI. "gs://" URIs read from
	// GCS; anything else is treated as a local file path.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Publish writes rendered report content to the given GCS URI.
	Publish(ctx context.Context, gcsURI, contentType string, data []byte) error
}

// GCSSourceStore is the concrete SourceStore backed by Google Cloud
// Storage, with local-path passthrough for CLI-local runs.
type GCSSourceStore struct{}

// NewGCSSourceStore creates a new instance of GCSSourceStore.
func NewGCSSourceStore() *GCSSourceStore {
	return &GCSSourceStore{}
}

// Fetch implements SourceStore.
func (s *GCSSourceStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if IsGCSURI(uri) {
		return FetchFromGCS(ctx, uri)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading local file %s: %w", uri, err)
	}
	return data, nil
}

// Publish implements SourceStore.
func (s *GCSSourceStore) Publish(ctx context.Context, gcsURI, contentType string, data []byte) error {
	return UploadBytes(ctx, gcsURI, contentType, data)
}

var _ SourceStore = (*GCSSourceStore)(nil)
