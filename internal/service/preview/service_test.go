package preview

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
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
	"statcube/internal/storage"
	"statcube/internal/taxonomy"
)

type fixture struct {
	svc     *Service
	columns *repository.FactColumnRepo
	dims    *repository.DimensionRepo
	blobs   domain.BlobStore
	ds      *domain.Dataset
	rev     *domain.Revision
}

func setup(t *testing.T, facts string) *fixture {
	t.Helper()

	writeDB, _ := internaldb.OpenTestSQLite(t)
	ctx := context.Background()

	datasets := repository.NewDatasetRepo(writeDB)
	columns := repository.NewFactColumnRepo(writeDB)
	dims := repository.NewDimensionRepo(writeDB)
	lookups := repository.NewLookupTableRepo(writeDB)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Open(logger)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	blobs := storage.NewFilesystemStore(t.TempDir())
	tax := taxonomy.NewStore(writeDB)

	ds, err := datasets.Create(ctx, &domain.Dataset{Title: "School absences"})
	require.NoError(t, err)
	rev, err := datasets.CreateRevision(ctx, &domain.Revision{
		DatasetID:         ds.ID,
		RevisionIndex:     1,
		FactTableFilename: "facts.csv",
		FileType:          domain.FileTypeCSV,
	})
	require.NoError(t, err)
	require.NoError(t, blobs.SaveBuffer(ctx, ds.ID, "facts.csv", []byte(facts)))

	svc := NewService(datasets, columns, dims, lookups, eng, blobs, tax,
		referencedata.NewCalendarGenerator(), logger)

	return &fixture{svc: svc, columns: columns, dims: dims, blobs: blobs, ds: ds, rev: rev}
}

func (f *fixture) dimension(t *testing.T, column string, dimType domain.DimensionType, ext domain.Extractor) *domain.Dimension {
	t.Helper()
	ctx := context.Background()
	_, err := f.columns.Create(ctx, &domain.FactColumn{
		DatasetID:        f.ds.ID,
		Name:             column,
		OrdinalIndex:     0,
		InferredDatatype: "VARCHAR",
		Role:             domain.RoleDimension,
	})
	require.NoError(t, err)
	dim, err := f.dims.Create(ctx, &domain.Dimension{
		DatasetID:       f.ds.ID,
		RevisionID:      f.rev.ID,
		FactTableColumn: column,
	})
	require.NoError(t, err)
	if ext != nil {
		dim.Type = dimType
		dim.Extractor = ext
		require.NoError(t, f.dims.Update(ctx, dim))
	}
	return dim
}

func TestPreviewCapsSampleAndCountsAll(t *testing.T) {
	f := setup(t, "Code,Value\na1,1\na2,2\na3,3\na4,4\na5,5\na6,6\na7,7\n")
	dim := f.dimension(t, "Code", domain.DimRaw, nil)

	res, err := f.svc.Preview(context.Background(), dim.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TotalDistinct)
	assert.Equal(t, "Code", res.Column.Name)
	assert.Equal(t, domain.RoleDimension, res.Column.Role)
	require.Len(t, res.Entries, SampleSize)
	assert.Equal(t, "a1", res.Entries[0].Value)
	assert.Empty(t, res.Entries[0].Description)
}

func TestPreviewDateDescriptionsFollowLanguage(t *testing.T) {
	f := setup(t, "YearCode,Value\n2020,1\n2021,2\n")
	dim := f.dimension(t, "YearCode", domain.DimDate, &domain.DateExtractor{
		YearType:    domain.YearCalendar,
		YearFormat:  referencedata.YearFormatYYYY,
		MonthFormat: referencedata.MonthFormatLower,
	})

	res, err := f.svc.Preview(context.Background(), dim.ID, "en-gb")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "2020", res.Entries[0].Value)
	assert.Equal(t, "2020", res.Entries[0].Description)
}

func TestPreviewNoteCodesWelsh(t *testing.T) {
	f := setup(t, "Notes,Value\ne,1\nep,2\n")
	dim := f.dimension(t, "Notes", domain.DimNoteCodes, &domain.NoteCodesExtractor{})

	res, err := f.svc.Preview(context.Background(), dim.ID, "cy-gb")
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "Amcangyfrif", res.Entries[0].Description)
	assert.Equal(t, "Amcangyfrif; Dros dro", res.Entries[1].Description)
}
