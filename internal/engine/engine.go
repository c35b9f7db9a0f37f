// Package engine wraps an embedded DuckDB instance as the tabular query
// engine the binding and assembly pipeline runs against.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"statcube/internal/domain"
)

// Engine is a thin wrapper around an in-process DuckDB connection.
// Tables are namespaced by their callers (fact tables and dimension-scoped
// reference tables); the engine itself only knows how to load, query, and
// drop them.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates an in-memory DuckDB instance.
func Open(logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, logger: logger.With("component", "engine")}, nil
}

// NewWithDB wraps an existing DuckDB connection. Used by tests.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, logger: logger.With("component", "engine")}
}

// Close releases the underlying DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Execute runs a statement that returns no rows.
func (e *Engine) Execute(ctx context.Context, query string) error {
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return classifyEngineError(err)
	}
	return nil
}

// QueryAll runs a query and returns column names plus all rows.
func (e *Engine) QueryAll(ctx context.Context, query string) ([]string, [][]any, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, classifyEngineError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// QueryStrings runs a single-column query and returns the values rendered
// as strings. NULLs are skipped.
func (e *Engine) QueryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyEngineError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

// QueryCount runs a single-value COUNT-style query.
func (e *Engine) QueryCount(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, classifyEngineError(err)
	}
	return n, nil
}

// CreateTableFromFile loads a local CSV or Parquet file into a table,
// replacing any table of the same name.
func (e *Engine) CreateTableFromFile(ctx context.Context, name, localPath string, fileType domain.FileType) error {
	var reader string
	switch fileType {
	case domain.FileTypeCSV:
		reader = fmt.Sprintf("read_csv_auto(%s)", QuoteLiteral(localPath))
	case domain.FileTypeParquet:
		reader = fmt.Sprintf("read_parquet(%s)", QuoteLiteral(localPath))
	default:
		return domain.ErrValidation("unsupported file type %q", fileType)
	}

	q := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", QuoteIdent(name), reader)
	if _, err := e.db.ExecContext(ctx, q); err != nil {
		return classifyEngineError(err)
	}
	e.logger.Debug("table loaded", "table", name, "path", localPath, "type", string(fileType))
	return nil
}

// ColumnDef describes one column of a table created via CreateTable.
type ColumnDef struct {
	Name string
	Type string // DuckDB type name, e.g. VARCHAR, TIMESTAMP, BIGINT
}

// CreateTable creates an empty table with the given columns, replacing any
// existing table of the same name.
func (e *Engine) CreateTable(ctx context.Context, name string, cols []ColumnDef) error {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = QuoteIdent(c.Name) + " " + c.Type
	}
	q := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", QuoteIdent(name), strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, q); err != nil {
		return classifyEngineError(err)
	}
	return nil
}

// InsertRows bulk-inserts rows into a table using parameterized batches.
func (e *Engine) InsertRows(ctx context.Context, name string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		QuoteIdent(name), strings.Join(quoted, ", "), placeholders)

	stmt, err := e.db.PrepareContext(ctx, q)
	if err != nil {
		return classifyEngineError(err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return classifyEngineError(err)
		}
	}
	return nil
}

// DropTable drops a table if it exists.
func (e *Engine) DropTable(ctx context.Context, name string) error {
	q := fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(name))
	if _, err := e.db.ExecContext(ctx, q); err != nil {
		return classifyEngineError(err)
	}
	return nil
}

// TableExists reports whether a table is present in the main schema.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?", name)
	if err != nil {
		return false, classifyEngineError(err)
	}
	defer rows.Close()
	return rows.Next(), nil
}

// ListTables returns the names of all tables in the main schema.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	return e.QueryStrings(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
}

// ColumnNames returns the ordered column names of a table.
func (e *Engine) ColumnNames(ctx context.Context, table string) ([]string, error) {
	return e.QueryStrings(ctx, fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_schema = 'main' AND table_name = %s ORDER BY ordinal_position",
		QuoteLiteral(table)))
}

// ColumnType returns the native storage type of a column, upper-cased
// (e.g. VARCHAR, BIGINT, DOUBLE). Used by the numeric binder's fast path.
func (e *Engine) ColumnType(ctx context.Context, table, column string) (string, error) {
	var dt string
	err := e.db.QueryRowContext(ctx,
		"SELECT data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? AND column_name = ?",
		table, column).Scan(&dt)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound("column %q not found in table %q", column, table)
		}
		return "", classifyEngineError(err)
	}
	return strings.ToUpper(dt), nil
}

// QuoteIdent escapes a DuckDB identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral escapes a DuckDB string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// classifyEngineError maps DuckDB errors into domain errors.
func classifyEngineError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "does not exist"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(msg, "Could not read file"),
		strings.Contains(msg, "No files found"),
		strings.Contains(msg, "Conversion Error"),
		strings.Contains(msg, "Invalid Input Error"):
		return domain.ErrValidation("%s", msg)
	default:
		return err
	}
}
