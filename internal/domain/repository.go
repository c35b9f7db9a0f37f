package domain

import (
	"context"
	"time"
)

// DatasetRepository provides CRUD operations for datasets and revisions.
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) (*Dataset, error)
	GetByID(ctx context.Context, id string) (*Dataset, error)
	List(ctx context.Context, page PageRequest) ([]Dataset, int64, error)
	Delete(ctx context.Context, id string) error
	SetCoverage(ctx context.Context, id string, start, end time.Time) error

	CreateRevision(ctx context.Context, r *Revision) (*Revision, error)
	GetRevision(ctx context.Context, id string) (*Revision, error)
	LatestRevision(ctx context.Context, datasetID string) (*Revision, error)
}

// FactColumnRepository provides CRUD operations for fact-table column metadata.
type FactColumnRepository interface {
	Create(ctx context.Context, c *FactColumn) (*FactColumn, error)
	GetByName(ctx context.Context, datasetID, name string) (*FactColumn, error)
	ListForDataset(ctx context.Context, datasetID string) ([]FactColumn, error)
	UpdateRole(ctx context.Context, id string, role ColumnRole, excluded bool) error
	Delete(ctx context.Context, id string) error
	DeleteForDataset(ctx context.Context, datasetID string) error
}

// DimensionRepository provides CRUD operations for dimensions. Deleting a
// dimension cascades to its owned lookup table row (stored bytes are the
// binder's responsibility).
type DimensionRepository interface {
	Create(ctx context.Context, d *Dimension) (*Dimension, error)
	GetByID(ctx context.Context, id string) (*Dimension, error)
	ListForRevision(ctx context.Context, revisionID string) ([]Dimension, error)
	Update(ctx context.Context, d *Dimension) error
	Delete(ctx context.Context, id string) error
}

// LookupTableRepository provides CRUD operations for uploaded lookup tables.
type LookupTableRepository interface {
	Create(ctx context.Context, lt *LookupTable) (*LookupTable, error)
	GetByID(ctx context.Context, id string) (*LookupTable, error)
	GetForDimension(ctx context.Context, dimensionID string) (*LookupTable, error)
	Delete(ctx context.Context, id string) error
}
