package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.BlobStore = (*GCSStore)(nil)

// GCSStore stores buffers in a Google Cloud Storage bucket under
// datasets/<datasetID>/<filename>.
type GCSStore struct {
	client *gcstorage.Client
	bucket string
}

// GCSConfig holds the service-account key and bucket for GCS.
type GCSConfig struct {
	KeyFilePath string
	Bucket      string
}

// NewGCSStore creates a GCS-backed blob store.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs config is incomplete")
	}

	var opts []option.ClientOption
	if cfg.KeyFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.KeyFilePath))
	}

	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	return &GCSStore{client: client, bucket: cfg.Bucket}, nil
}

// LoadBuffer reads the stored bytes for a key.
func (s *GCSStore) LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error) {
	rc, err := s.LoadStream(ctx, datasetID, filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.ErrTransientStorage(err, "read gcs object %s: %v", s3Key(datasetID, filename), err)
	}
	return data, nil
}

// SaveBuffer writes bytes for a key.
func (s *GCSStore) SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(s3Key(datasetID, filename)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return domain.ErrTransientStorage(err, "gcs write %s: %v", s3Key(datasetID, filename), err)
	}
	if err := w.Close(); err != nil {
		return domain.ErrTransientStorage(err, "gcs close %s: %v", s3Key(datasetID, filename), err)
	}
	return nil
}

// Delete removes the stored bytes for a key.
func (s *GCSStore) Delete(ctx context.Context, datasetID, filename string) error {
	err := s.client.Bucket(s.bucket).Object(s3Key(datasetID, filename)).Delete(ctx)
	if err != nil {
		return mapGCSError(err, datasetID, filename)
	}
	return nil
}

// LoadStream opens the stored bytes for streaming reads.
func (s *GCSStore) LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s3Key(datasetID, filename)).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(err, datasetID, filename)
	}
	return r, nil
}

func mapGCSError(err error, datasetID, filename string) error {
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
	}
	return domain.ErrTransientStorage(err, "gcs %s: %v", s3Key(datasetID, filename), err)
}
