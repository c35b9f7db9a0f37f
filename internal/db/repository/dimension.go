package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.DimensionRepository = (*DimensionRepo)(nil)

// DimensionRepo implements DimensionRepository backed by SQLite.
// The extractor tagged union is persisted as a JSON envelope in the
// extractor column; NULL means the dimension is Raw.
type DimensionRepo struct {
	db *sql.DB
}

// NewDimensionRepo creates a new DimensionRepo.
func NewDimensionRepo(db *sql.DB) *DimensionRepo {
	return &DimensionRepo{db: db}
}

// Create inserts a new dimension.
func (r *DimensionRepo) Create(ctx context.Context, d *domain.Dimension) (*domain.Dimension, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.Type == "" {
		d.Type = domain.DimRaw
	}
	extractor, err := marshalExtractorColumn(d.Extractor)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dimensions (id, dataset_id, revision_id, fact_table_column, type, extractor, join_column, lookup_table_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DatasetID, d.RevisionID, d.FactTableColumn, string(d.Type),
		extractor, nullStr(d.JoinColumn), nullStr(d.LookupTableID), now, now,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

// GetByID returns a dimension by ID.
func (r *DimensionRepo) GetByID(ctx context.Context, id string) (*domain.Dimension, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, revision_id, fact_table_column, type, extractor, join_column, lookup_table_id, created_at, updated_at
		 FROM dimensions WHERE id = ?`, id)
	return scanDimension(row)
}

// ListForRevision returns all dimensions of a revision.
func (r *DimensionRepo) ListForRevision(ctx context.Context, revisionID string) ([]domain.Dimension, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, dataset_id, revision_id, fact_table_column, type, extractor, join_column, lookup_table_id, created_at, updated_at
		 FROM dimensions WHERE revision_id = ? ORDER BY fact_table_column`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("list dimensions: %w", err)
	}
	defer rows.Close()

	var out []domain.Dimension
	for rows.Next() {
		d, err := scanDimension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Update persists the dimension's binding state: type, extractor, join
// column, and lookup-table reference.
func (r *DimensionRepo) Update(ctx context.Context, d *domain.Dimension) error {
	extractor, err := marshalExtractorColumn(d.Extractor)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE dimensions SET type = ?, extractor = ?, join_column = ?, lookup_table_id = ?, updated_at = ?
		 WHERE id = ?`,
		string(d.Type), extractor, nullStr(d.JoinColumn), nullStr(d.LookupTableID), time.Now().UTC(), d.ID,
	)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dimension %q not found", d.ID)
	}
	return nil
}

// Delete removes a dimension. The owned lookup-table row cascades.
func (r *DimensionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dimensions WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dimension %q not found", id)
	}
	return nil
}

func marshalExtractorColumn(e domain.Extractor) (sql.NullString, error) {
	if e == nil {
		return sql.NullString{}, nil
	}
	data, err := domain.MarshalExtractor(e)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanDimension(row rowScanner) (*domain.Dimension, error) {
	var d domain.Dimension
	var dimType string
	var extractor, joinColumn, lookupTableID sql.NullString
	if err := row.Scan(&d.ID, &d.DatasetID, &d.RevisionID, &d.FactTableColumn, &dimType,
		&extractor, &joinColumn, &lookupTableID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	d.Type = domain.DimensionType(dimType)
	d.JoinColumn = fromNullStr(joinColumn)
	d.LookupTableID = fromNullStr(lookupTableID)

	if extractor.Valid {
		e, err := domain.UnmarshalExtractor([]byte(extractor.String))
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", d.ID, err)
		}
		d.Extractor = e
	}
	return &d, nil
}
