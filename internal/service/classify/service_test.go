package classify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "statcube/internal/db"
	"statcube/internal/db/repository"
	"statcube/internal/domain"
)

type fixture struct {
	svc      *Service
	datasets *repository.DatasetRepo
	columns  *repository.FactColumnRepo
	dims     *repository.DimensionRepo
	ds       *domain.Dataset
	rev      *domain.Revision
}

func setup(t *testing.T) *fixture {
	t.Helper()

	writeDB, _ := internaldb.OpenTestSQLite(t)
	ctx := context.Background()

	datasets := repository.NewDatasetRepo(writeDB)
	columns := repository.NewFactColumnRepo(writeDB)
	dims := repository.NewDimensionRepo(writeDB)

	ds, err := datasets.Create(ctx, &domain.Dataset{Title: "School absences"})
	require.NoError(t, err)
	rev, err := datasets.CreateRevision(ctx, &domain.Revision{
		DatasetID:         ds.ID,
		RevisionIndex:     1,
		FactTableFilename: "facts.csv",
		FileType:          domain.FileTypeCSV,
	})
	require.NoError(t, err)

	for i, name := range []string{"Value", "MeasureCode", "AreaCode", "YearCode", "RowID"} {
		_, err := columns.Create(ctx, &domain.FactColumn{
			DatasetID:    ds.ID,
			Name:         name,
			OrdinalIndex: i,
		})
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:      NewService(datasets, columns, dims, nil, nil, logger),
		datasets: datasets,
		columns:  columns,
		dims:     dims,
		ds:       ds,
		rev:      rev,
	}
}

func fullAssignment() []domain.ColumnAssignment {
	return []domain.ColumnAssignment{
		{ColumnName: "Value", Role: domain.RoleDataValues},
		{ColumnName: "MeasureCode", Role: domain.RoleMeasure},
		{ColumnName: "AreaCode", Role: domain.RoleDimension},
		{ColumnName: "YearCode", Role: domain.RoleTime},
		{ColumnName: "RowID", Role: domain.RoleIgnore},
	}
}

func TestClassifyFullAssignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	part, err := f.svc.Classify(ctx, f.ds.ID, fullAssignment())
	require.NoError(t, err)

	require.NotNil(t, part.DataValues)
	assert.Equal(t, "Value", part.DataValues.Name)
	assert.Equal(t, "MeasureCode", part.Measure.Name)
	assert.Nil(t, part.NoteCodes)
	assert.Len(t, part.Dimensions, 2)
	require.Len(t, part.Ignored, 1)
	assert.True(t, part.Ignored[0].Excluded)

	// Dimension and time columns got raw dimensions on the revision.
	dims, err := f.dims.ListForRevision(ctx, f.rev.ID)
	require.NoError(t, err)
	require.Len(t, dims, 2)
	for _, d := range dims {
		assert.Equal(t, domain.DimRaw, d.Type)
	}
}

func TestClassifyUnknownColumn(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Classify(context.Background(), f.ds.ID, []domain.ColumnAssignment{
		{ColumnName: "Nope", Role: domain.RoleDataValues},
	})
	var unknown *domain.UnknownColumnError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Nope", unknown.Column)
}

func TestClassifyDuplicateSingletonRole(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Classify(context.Background(), f.ds.ID, []domain.ColumnAssignment{
		{ColumnName: "Value", Role: domain.RoleDataValues},
		{ColumnName: "RowID", Role: domain.RoleDataValues},
	})
	var dup *domain.DuplicateRoleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.RoleDataValues, dup.Role)
	assert.Equal(t, []string{"RowID", "Value"}, dup.Columns)
}

func TestClassifyIncompleteRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// RowID is left unresolved, so the pass must fail and undo the rest.
	_, err := f.svc.Classify(ctx, f.ds.ID, []domain.ColumnAssignment{
		{ColumnName: "Value", Role: domain.RoleDataValues},
		{ColumnName: "AreaCode", Role: domain.RoleDimension},
	})
	var incomplete *domain.IncompleteClassificationError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Unresolved, "RowID")

	cols, err := f.columns.ListForDataset(ctx, f.ds.ID)
	require.NoError(t, err)
	for _, c := range cols {
		assert.Equal(t, domain.RoleUnknown, c.Role, c.Name)
	}
	dims, err := f.dims.ListForRevision(ctx, f.rev.ID)
	require.NoError(t, err)
	assert.Empty(t, dims)
}

func TestClassifyReassignmentMovesDimension(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Classify(ctx, f.ds.ID, fullAssignment())
	require.NoError(t, err)

	// Demote AreaCode to ignored; its dimension must go with it.
	part, err := f.svc.Classify(ctx, f.ds.ID, []domain.ColumnAssignment{
		{ColumnName: "AreaCode", Role: domain.RoleIgnore},
	})
	require.NoError(t, err)
	assert.Len(t, part.Dimensions, 1)
	assert.Len(t, part.Ignored, 2)

	dims, err := f.dims.ListForRevision(ctx, f.rev.ID)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "YearCode", dims[0].FactTableColumn)
}

func TestPartitionRequiresDataValues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Classify(ctx, f.ds.ID, []domain.ColumnAssignment{
		{ColumnName: "Value", Role: domain.RoleDimension},
		{ColumnName: "MeasureCode", Role: domain.RoleIgnore},
		{ColumnName: "AreaCode", Role: domain.RoleIgnore},
		{ColumnName: "YearCode", Role: domain.RoleIgnore},
		{ColumnName: "RowID", Role: domain.RoleIgnore},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "data values")
}
