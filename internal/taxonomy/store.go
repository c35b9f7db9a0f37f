// Package taxonomy provides access to the shared cross-dataset
// reference-data taxonomy stored in the metastore.
package taxonomy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.TaxonomyStore = (*Store)(nil)

// Store implements TaxonomyStore backed by the SQLite metastore.
type Store struct {
	db *sql.DB
}

// NewStore creates a taxonomy store over the given pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LookupItem returns a taxonomy item and the categories it belongs to.
func (s *Store) LookupItem(ctx context.Context, itemID string) (*domain.ReferenceItem, error) {
	item := &domain.ReferenceItem{ItemID: itemID}
	err := s.db.QueryRowContext(ctx,
		`SELECT description FROM reference_items WHERE item_id = ?`, itemID,
	).Scan(&item.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("reference item %q not found", itemID)
		}
		return nil, fmt.Errorf("lookup item %q: %w", itemID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category_key FROM reference_item_categories WHERE item_id = ? ORDER BY category_key`, itemID)
	if err != nil {
		return nil, fmt.Errorf("item categories %q: %w", itemID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		item.CategoryKeys = append(item.CategoryKeys, key)
	}
	return item, rows.Err()
}

// ResolveCategory returns a category with its hierarchy path.
func (s *Store) ResolveCategory(ctx context.Context, categoryKey string) (*domain.ReferenceCategory, error) {
	cat := &domain.ReferenceCategory{Key: categoryKey}
	var hierarchy string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, hierarchy FROM reference_categories WHERE category_key = ?`, categoryKey,
	).Scan(&cat.Name, &hierarchy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("reference category %q not found", categoryKey)
		}
		return nil, fmt.Errorf("resolve category %q: %w", categoryKey, err)
	}
	if hierarchy != "" {
		cat.Hierarchy = strings.Split(hierarchy, "/")
	}
	return cat, nil
}

// AddItem inserts or replaces a taxonomy item and its category memberships.
// Used by seeding and tests.
func (s *Store) AddItem(ctx context.Context, item *domain.ReferenceItem) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reference_items (item_id, description) VALUES (?, ?)`,
		item.ItemID, item.Description); err != nil {
		return fmt.Errorf("add item %q: %w", item.ItemID, err)
	}
	for _, key := range item.CategoryKeys {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO reference_item_categories (item_id, category_key) VALUES (?, ?)`,
			item.ItemID, key); err != nil {
			return fmt.Errorf("add item category %q/%q: %w", item.ItemID, key, err)
		}
	}
	return nil
}

// AddCategory inserts or replaces a category.
func (s *Store) AddCategory(ctx context.Context, cat *domain.ReferenceCategory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reference_categories (category_key, name, hierarchy) VALUES (?, ?, ?)`,
		cat.Key, cat.Name, strings.Join(cat.Hierarchy, "/"))
	if err != nil {
		return fmt.Errorf("add category %q: %w", cat.Key, err)
	}
	return nil
}
