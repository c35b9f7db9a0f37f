package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statcube/internal/domain"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCreateTableFromCSVAndQuery(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	path := writeCSV(t, "YearCode,Data\n2020,10\n2021,20\n2021,30\n")
	require.NoError(t, e.CreateTableFromFile(ctx, "facts", path, domain.FileTypeCSV))

	vals, err := e.QueryStrings(ctx, `SELECT DISTINCT CAST("YearCode" AS VARCHAR) FROM "facts" ORDER BY 1`)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020", "2021"}, vals)

	n, err := e.QueryCount(ctx, `SELECT COUNT(*) FROM "facts"`)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	colType, err := e.ColumnType(ctx, "facts", "Data")
	require.NoError(t, err)
	assert.Equal(t, "BIGINT", colType)
}

func TestCreateTableMissingFileIsValidationError(t *testing.T) {
	e := openTestEngine(t)
	err := e.CreateTableFromFile(context.Background(), "facts", "/nonexistent/nope.csv", domain.FileTypeCSV)
	require.Error(t, err)
}

func TestInsertRowsAndColumnNames(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.CreateTable(ctx, "ref", []ColumnDef{
		{Name: "date_code", Type: "VARCHAR"},
		{Name: "lang", Type: "VARCHAR"},
	}))
	require.NoError(t, e.InsertRows(ctx, "ref", []string{"date_code", "lang"}, [][]any{
		{"2020", "en-gb"},
		{"2021", "en-gb"},
	}))

	cols, err := e.ColumnNames(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, []string{"date_code", "lang"}, cols)

	n, err := e.QueryCount(ctx, `SELECT COUNT(*) FROM "ref"`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestSessionDropsTablesUnlessKept(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	s := e.NewSession()
	require.NoError(t, s.CreateTable(ctx, "tmp_ref", []ColumnDef{{Name: "c", Type: "VARCHAR"}}))
	s.Close()

	exists, err := e.TableExists(ctx, "tmp_ref")
	require.NoError(t, err)
	assert.False(t, exists, "unkept session table should be dropped")

	s2 := e.NewSession()
	require.NoError(t, s2.CreateTable(ctx, "kept_ref", []ColumnDef{{Name: "c", Type: "VARCHAR"}}))
	s2.Keep()
	s2.Close()

	exists, err = e.TableExists(ctx, "kept_ref")
	require.NoError(t, err)
	assert.True(t, exists, "kept session table should survive")
}

func TestSessionStageBufferRemovedOnClose(t *testing.T) {
	e := openTestEngine(t)

	s := e.NewSession()
	path, err := s.StageBuffer([]byte("a,b\n1,2\n"), ".csv")
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	s.Close()
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "staged file should be removed")
}
