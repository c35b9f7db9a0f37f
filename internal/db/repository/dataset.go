package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// DatasetRepo implements DatasetRepository backed by SQLite.
type DatasetRepo struct {
	db *sql.DB
}

// NewDatasetRepo creates a new DatasetRepo.
func NewDatasetRepo(db *sql.DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

// Create inserts a new dataset.
func (r *DatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Title, now, now,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

// GetByID returns a dataset by ID.
func (r *DatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, start_date, end_date, created_at, updated_at FROM datasets WHERE id = ?`, id)
	return scanDataset(row)
}

// List returns a paginated list of datasets.
func (r *DatasetRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count datasets: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, start_date, end_date, created_at, updated_at
		 FROM datasets ORDER BY created_at LIMIT ? OFFSET ?`,
		page.Limit(), page.Start(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// Delete removes a dataset. Revisions, fact columns, and dimensions cascade.
func (r *DatasetRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dataset %q not found", id)
	}
	return nil
}

// SetCoverage updates the dataset's derived coverage window.
func (r *DatasetRepo) SetCoverage(ctx context.Context, id string, start, end time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`,
		start.UTC(), end.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dataset %q not found", id)
	}
	return nil
}

// CreateRevision inserts a new fact-table revision for a dataset.
func (r *DatasetRepo) CreateRevision(ctx context.Context, rev *domain.Revision) (*domain.Revision, error) {
	if rev.ID == "" {
		rev.ID = newID()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revisions (id, dataset_id, revision_index, fact_table_filename, file_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.DatasetID, rev.RevisionIndex, rev.FactTableFilename, string(rev.FileType), now,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	rev.CreatedAt = now
	return rev, nil
}

// GetRevision returns a revision by ID.
func (r *DatasetRepo) GetRevision(ctx context.Context, id string) (*domain.Revision, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, revision_index, fact_table_filename, file_type, created_at
		 FROM revisions WHERE id = ?`, id)
	return scanRevision(row)
}

// LatestRevision returns the highest-index revision for a dataset.
func (r *DatasetRepo) LatestRevision(ctx context.Context, datasetID string) (*domain.Revision, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, revision_index, fact_table_filename, file_type, created_at
		 FROM revisions WHERE dataset_id = ? ORDER BY revision_index DESC LIMIT 1`, datasetID)
	return scanRevision(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*domain.Dataset, error) {
	var d domain.Dataset
	var start, end sql.NullTime
	if err := row.Scan(&d.ID, &d.Title, &start, &end, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	if start.Valid {
		d.StartDate = &start.Time
	}
	if end.Valid {
		d.EndDate = &end.Time
	}
	return &d, nil
}

func scanRevision(row rowScanner) (*domain.Revision, error) {
	var rev domain.Revision
	var fileType string
	if err := row.Scan(&rev.ID, &rev.DatasetID, &rev.RevisionIndex, &rev.FactTableFilename, &fileType, &rev.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	rev.FileType = domain.FileType(fileType)
	return &rev, nil
}
