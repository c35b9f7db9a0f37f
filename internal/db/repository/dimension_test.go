package repository

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "statcube/internal/db"
	"statcube/internal/domain"
)

// setupRepos creates all repositories against a migrated temp SQLite DB and
// seeds one dataset with one revision.
func setupRepos(t *testing.T) (*DatasetRepo, *FactColumnRepo, *DimensionRepo, *LookupTableRepo, *domain.Dataset, *domain.Revision) {
	t.Helper()

	writeDB, _ := internaldb.OpenTestSQLite(t)
	ctx := context.Background()

	datasets := NewDatasetRepo(writeDB)
	columns := NewFactColumnRepo(writeDB)
	dims := NewDimensionRepo(writeDB)
	lookups := NewLookupTableRepo(writeDB)

	ds, err := datasets.Create(ctx, &domain.Dataset{Title: "School absences"})
	require.NoError(t, err)

	rev, err := datasets.CreateRevision(ctx, &domain.Revision{
		DatasetID:         ds.ID,
		RevisionIndex:     1,
		FactTableFilename: "facts.csv",
		FileType:          domain.FileTypeCSV,
	})
	require.NoError(t, err)

	return datasets, columns, dims, lookups, ds, rev
}

func TestDimensionCreateUpdateRoundTrip(t *testing.T) {
	_, _, dims, _, ds, rev := setupRepos(t)
	ctx := context.Background()

	created, err := dims.Create(ctx, &domain.Dimension{
		DatasetID:       ds.ID,
		RevisionID:      rev.ID,
		FactTableColumn: "YearCode",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DimRaw, created.Type)
	assert.Nil(t, created.Extractor)

	created.Type = domain.DimDate
	created.Extractor = &domain.DateExtractor{YearType: domain.YearCalendar, YearFormat: "YYYY"}
	created.JoinColumn = "date_code"
	require.NoError(t, dims.Update(ctx, created))

	got, err := dims.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DimDate, got.Type)
	assert.Equal(t, "date_code", got.JoinColumn)

	ext, ok := got.Extractor.(*domain.DateExtractor)
	require.True(t, ok, "expected *DateExtractor, got %T", got.Extractor)
	assert.Equal(t, domain.YearCalendar, ext.YearType)
	assert.Equal(t, "YYYY", ext.YearFormat)
}

func TestDimensionDuplicateColumnConflicts(t *testing.T) {
	_, _, dims, _, ds, rev := setupRepos(t)
	ctx := context.Background()

	_, err := dims.Create(ctx, &domain.Dimension{DatasetID: ds.ID, RevisionID: rev.ID, FactTableColumn: "Area"})
	require.NoError(t, err)

	_, err = dims.Create(ctx, &domain.Dimension{DatasetID: ds.ID, RevisionID: rev.ID, FactTableColumn: "Area"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestLookupTableCascadesWithDimension(t *testing.T) {
	_, _, dims, lookups, ds, rev := setupRepos(t)
	ctx := context.Background()

	dim, err := dims.Create(ctx, &domain.Dimension{DatasetID: ds.ID, RevisionID: rev.ID, FactTableColumn: "Area"})
	require.NoError(t, err)

	lt, err := lookups.Create(ctx, &domain.LookupTable{
		DimensionID: dim.ID,
		DatasetID:   ds.ID,
		Filename:    "areas.csv",
		FileType:    domain.FileTypeCSV,
	})
	require.NoError(t, err)

	require.NoError(t, dims.Delete(ctx, dim.ID))

	_, err = lookups.GetByID(ctx, lt.ID)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestFactColumnRoleUpdateAndRollbackDelete(t *testing.T) {
	_, columns, _, _, ds, _ := setupRepos(t)
	ctx := context.Background()

	col, err := columns.Create(ctx, &domain.FactColumn{
		DatasetID:    ds.ID,
		Name:         "Measure",
		OrdinalIndex: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnknown, col.Role)

	require.NoError(t, columns.UpdateRole(ctx, col.ID, domain.RoleIgnore, true))

	got, err := columns.GetByName(ctx, ds.ID, "Measure")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleIgnore, got.Role)
	assert.True(t, got.Excluded)

	require.NoError(t, columns.DeleteForDataset(ctx, ds.ID))
	cols, err := columns.ListForDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Empty(t, cols)
}
