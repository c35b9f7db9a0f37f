package domain

import (
	"context"
	"io"
)

// BlobStore stores uploaded file bytes keyed by (datasetID, filename).
// Implementations fail with *NotFoundError for missing keys and
// *TransientStorageError for timeouts and transport failures.
type BlobStore interface {
	LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error)
	SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error
	Delete(ctx context.Context, datasetID, filename string) error
	LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error)
}

// TaxonomyStore resolves items and categories of the shared cross-dataset
// reference-data taxonomy.
type TaxonomyStore interface {
	LookupItem(ctx context.Context, itemID string) (*ReferenceItem, error)
	ResolveCategory(ctx context.Context, categoryKey string) (*ReferenceCategory, error)
}
