package repository

import (
	"context"
	"database/sql"
	"time"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.LookupTableRepository = (*LookupTableRepo)(nil)

// LookupTableRepo implements LookupTableRepository backed by SQLite.
type LookupTableRepo struct {
	db *sql.DB
}

// NewLookupTableRepo creates a new LookupTableRepo.
func NewLookupTableRepo(db *sql.DB) *LookupTableRepo {
	return &LookupTableRepo{db: db}
}

// Create inserts a new lookup-table row. Each dimension owns at most one
// lookup table; a second insert for the same dimension conflicts.
func (r *LookupTableRepo) Create(ctx context.Context, lt *domain.LookupTable) (*domain.LookupTable, error) {
	if lt.ID == "" {
		lt.ID = newID()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lookup_tables (id, dimension_id, dataset_id, filename, file_type, has_language_rows, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lt.ID, lt.DimensionID, lt.DatasetID, lt.Filename, string(lt.FileType), boolToInt(lt.HasLanguageRows), now,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	lt.UploadedAt = now
	return lt, nil
}

// GetByID returns a lookup table by ID.
func (r *LookupTableRepo) GetByID(ctx context.Context, id string) (*domain.LookupTable, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dimension_id, dataset_id, filename, file_type, has_language_rows, uploaded_at
		 FROM lookup_tables WHERE id = ?`, id)
	return scanLookupTable(row)
}

// GetForDimension returns the lookup table owned by a dimension.
func (r *LookupTableRepo) GetForDimension(ctx context.Context, dimensionID string) (*domain.LookupTable, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dimension_id, dataset_id, filename, file_type, has_language_rows, uploaded_at
		 FROM lookup_tables WHERE dimension_id = ?`, dimensionID)
	return scanLookupTable(row)
}

// Delete removes a lookup-table row. Stored bytes are the binder's job.
func (r *LookupTableRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lookup_tables WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("lookup table %q not found", id)
	}
	return nil
}

func scanLookupTable(row rowScanner) (*domain.LookupTable, error) {
	var lt domain.LookupTable
	var fileType string
	var hasLang int64
	if err := row.Scan(&lt.ID, &lt.DimensionID, &lt.DatasetID, &lt.Filename, &fileType, &hasLang, &lt.UploadedAt); err != nil {
		return nil, mapDBError(err)
	}
	lt.FileType = domain.FileType(fileType)
	lt.HasLanguageRows = hasLang != 0
	return &lt, nil
}
