// Package storage implements the blob store the pipeline loads uploaded
// files from: S3-compatible, Azure Blob, GCS, and a local-filesystem
// backend for tests and the CLI. Keys are (datasetID, filename) pairs.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.BlobStore = (*FilesystemStore)(nil)

// FilesystemStore stores buffers under root/<datasetID>/<filename>.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at dir.
func NewFilesystemStore(dir string) *FilesystemStore {
	return &FilesystemStore{root: dir}
}

func (s *FilesystemStore) path(datasetID, filename string) string {
	// Flatten path separators so a filename cannot escape the dataset dir.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(filename)
	return filepath.Join(s.root, datasetID, safe)
}

// LoadBuffer reads the stored bytes for a key.
func (s *FilesystemStore) LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrTransientStorage(err, "load %s/%s: %v", datasetID, filename, err)
	}
	data, err := os.ReadFile(s.path(datasetID, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
		}
		return nil, domain.ErrTransientStorage(err, "load %s/%s: %v", datasetID, filename, err)
	}
	return data, nil
}

// SaveBuffer writes bytes for a key, creating the dataset directory.
func (s *FilesystemStore) SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrTransientStorage(err, "save %s/%s: %v", datasetID, filename, err)
	}
	dir := filepath.Join(s.root, datasetID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return domain.ErrTransientStorage(err, "save %s/%s: %v", datasetID, filename, err)
	}
	if err := os.WriteFile(s.path(datasetID, filename), data, 0o600); err != nil {
		return domain.ErrTransientStorage(err, "save %s/%s: %v", datasetID, filename, err)
	}
	return nil
}

// Delete removes the stored bytes for a key.
func (s *FilesystemStore) Delete(ctx context.Context, datasetID, filename string) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrTransientStorage(err, "delete %s/%s: %v", datasetID, filename, err)
	}
	if err := os.Remove(s.path(datasetID, filename)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
		}
		return domain.ErrTransientStorage(err, "delete %s/%s: %v", datasetID, filename, err)
	}
	return nil
}

// LoadStream opens the stored bytes for streaming reads.
func (s *FilesystemStore) LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrTransientStorage(err, "stream %s/%s: %v", datasetID, filename, err)
	}
	f, err := os.Open(s.path(datasetID, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
		}
		return nil, domain.ErrTransientStorage(err, "stream %s/%s: %v", datasetID, filename, err)
	}
	return f, nil
}
