package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.FactColumnRepository = (*FactColumnRepo)(nil)

// FactColumnRepo implements FactColumnRepository backed by SQLite.
type FactColumnRepo struct {
	db *sql.DB
}

// NewFactColumnRepo creates a new FactColumnRepo.
func NewFactColumnRepo(db *sql.DB) *FactColumnRepo {
	return &FactColumnRepo{db: db}
}

// Create inserts a new fact-column metadata row.
func (r *FactColumnRepo) Create(ctx context.Context, c *domain.FactColumn) (*domain.FactColumn, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Role == "" {
		c.Role = domain.RoleUnknown
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fact_columns (id, dataset_id, name, ordinal_index, inferred_datatype, role, excluded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DatasetID, c.Name, c.OrdinalIndex, c.InferredDatatype, string(c.Role), boolToInt(c.Excluded), now, now,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// GetByName returns a fact column by dataset and column name.
func (r *FactColumnRepo) GetByName(ctx context.Context, datasetID, name string) (*domain.FactColumn, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, name, ordinal_index, inferred_datatype, role, excluded, created_at, updated_at
		 FROM fact_columns WHERE dataset_id = ? AND name = ?`, datasetID, name)
	return scanFactColumn(row)
}

// ListForDataset returns all fact columns of a dataset in ordinal order.
func (r *FactColumnRepo) ListForDataset(ctx context.Context, datasetID string) ([]domain.FactColumn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, dataset_id, name, ordinal_index, inferred_datatype, role, excluded, created_at, updated_at
		 FROM fact_columns WHERE dataset_id = ? ORDER BY ordinal_index`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list fact columns: %w", err)
	}
	defer rows.Close()

	var out []domain.FactColumn
	for rows.Next() {
		c, err := scanFactColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateRole updates a column's role and exclusion flag.
func (r *FactColumnRepo) UpdateRole(ctx context.Context, id string, role domain.ColumnRole, excluded bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE fact_columns SET role = ?, excluded = ?, updated_at = ? WHERE id = ?`,
		string(role), boolToInt(excluded), time.Now().UTC(), id,
	)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("fact column %q not found", id)
	}
	return nil
}

// Delete removes a fact-column row.
func (r *FactColumnRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fact_columns WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("fact column %q not found", id)
	}
	return nil
}

// DeleteForDataset removes all fact-column rows of a dataset. Used by the
// classifier's full rollback.
func (r *FactColumnRepo) DeleteForDataset(ctx context.Context, datasetID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fact_columns WHERE dataset_id = ?`, datasetID)
	return mapDBError(err)
}

func scanFactColumn(row rowScanner) (*domain.FactColumn, error) {
	var c domain.FactColumn
	var role string
	var excluded int64
	if err := row.Scan(&c.ID, &c.DatasetID, &c.Name, &c.OrdinalIndex, &c.InferredDatatype, &role, &excluded, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	c.Role = domain.ColumnRole(role)
	c.Excluded = excluded != 0
	return &c, nil
}
