package binder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

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
	svc      *Service
	datasets *repository.DatasetRepo
	dims     *repository.DimensionRepo
	lookups  *repository.LookupTableRepo
	blobs    domain.BlobStore
	tax      *taxonomy.Store
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

	svc := NewService(datasets, columns, dims, lookups, eng, blobs, tax,
		referencedata.NewCalendarGenerator("en-gb"), logger)

	return &fixture{
		svc: svc, datasets: datasets, dims: dims, lookups: lookups,
		blobs: blobs, tax: tax, ds: ds, rev: rev,
	}
}

func (f *fixture) writeFacts(t *testing.T, csv string) {
	t.Helper()
	require.NoError(t, f.blobs.SaveBuffer(context.Background(), f.ds.ID, "facts.csv", []byte(csv)))
}

func (f *fixture) newDimension(t *testing.T, column string) *domain.Dimension {
	t.Helper()
	dim, err := f.dims.Create(context.Background(), &domain.Dimension{
		DatasetID:       f.ds.ID,
		RevisionID:      f.rev.ID,
		FactTableColumn: column,
	})
	require.NoError(t, err)
	return dim
}

func TestBindDateCalendarYears(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "YearCode,Value\n2021,10\n2020,11\n2022,12\n2020,13\n")
	dim := f.newDimension(t, "YearCode")

	bound, err := f.svc.Bind(ctx, dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		YearFormat: referencedata.YearFormatYYYY,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DimDate, bound.Type)
	assert.Equal(t, "date_code", bound.JoinColumn)

	// Coverage widened to the generated calendar's span.
	ds, err := f.datasets.GetByID(ctx, f.ds.ID)
	require.NoError(t, err)
	require.NotNil(t, ds.StartDate)
	require.NotNil(t, ds.EndDate)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), ds.StartDate.UTC())
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), ds.EndDate.UTC())
}

func TestBindDateUnmatchedValues(t *testing.T) {
	f := setup(t)
	f.writeFacts(t, "YearCode,Value\n2020,1\n2020extra,2\n2020extra,3\n")
	dim := f.newDimension(t, "YearCode")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		YearFormat: referencedata.YearFormatYYYY,
	})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailUnmatchedDateValues, fail.Code)
	assert.Equal(t, int64(2), fail.TotalNonMatching)
	assert.Equal(t, []string{"2020extra"}, fail.FactValues)

	// The failed attempt must not have bound anything.
	got, err := f.dims.GetByID(context.Background(), dim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DimRaw, got.Type)
}

func TestBindDateAllUnmatchedIsFormatFailure(t *testing.T) {
	f := setup(t)
	// Years are derivable, so a calendar is generated, yet not one value
	// is a plain year code: the format itself is wrong for this column.
	f.writeFacts(t, "YearCode,Value\n2020-Q1,1\n2021-Q2,2\n")
	dim := f.newDimension(t, "YearCode")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		YearFormat: referencedata.YearFormatYYYY,
	})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailInvalidDateFormat, fail.Code)
	assert.Equal(t, int64(2), fail.TotalNonMatching)
	assert.Equal(t, []string{"2020-Q1", "2021-Q2"}, fail.FactValues)
}

func TestBindDateSpecificPartialMismatch(t *testing.T) {
	f := setup(t)
	f.writeFacts(t, "Day,Value\n14/02/2023,1\nnotaday,2\n")
	dim := f.newDimension(t, "Day")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		DateFormat: "DD/MM/YYYY",
	})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailUnmatchedDateValues, fail.Code)
	assert.Equal(t, []string{"notaday"}, fail.FactValues)
}

func TestBindDateNoDerivableYear(t *testing.T) {
	f := setup(t)
	f.writeFacts(t, "YearCode,Value\nfoo,1\nbar,2\n")
	dim := f.newDimension(t, "YearCode")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		YearFormat: referencedata.YearFormatYYYY,
	})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailInvalidDateFormat, fail.Code)
}

func TestBindNumeric(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "Amount,Value\n10,1\n1.5,2\nabc,3\n")
	dim := f.newDimension(t, "Amount")

	_, err := f.svc.Bind(ctx, dim.ID, &domain.NumericExtractor{NumberType: domain.NumberDecimal, DecimalPlaces: 2})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailNonNumericValues, fail.Code)
	assert.Equal(t, int64(1), fail.TotalNonMatching)
	assert.Equal(t, []string{"abc"}, fail.FactValues)

	// Integer is stricter than decimal.
	f.writeFacts(t, "Amount,Value\n10,1\n1.5,2\n")
	_, err = f.svc.Bind(ctx, dim.ID, &domain.NumericExtractor{NumberType: domain.NumberInteger})
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, []string{"1.5"}, fail.FactValues)

	bound, err := f.svc.Bind(ctx, dim.ID, &domain.NumericExtractor{NumberType: domain.NumberDecimal, DecimalPlaces: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.DimNumeric, bound.Type)
	assert.Empty(t, bound.JoinColumn)
}

func TestBindDecimalRequiresPlaces(t *testing.T) {
	f := setup(t)
	f.writeFacts(t, "Amount,Value\n10,1\n")
	dim := f.newDimension(t, "Amount")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.NumericExtractor{NumberType: domain.NumberDecimal})
	var missing *domain.MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "decimal_places", missing.Parameter)

	got, err := f.dims.GetByID(context.Background(), dim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DimRaw, got.Type)
}

func TestBindLookupResolvesLayoutByConvention(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\nW06000002,2\n")
	dim := f.newDimension(t, "AreaCode")

	lookup := "AreaCode,Description,SortOrder\nW06000001,Isle of Anglesey,1\nW06000002,Gwynedd,2\n"
	_, err := f.svc.UploadLookupTable(ctx, dim.ID, "areas.csv", domain.FileTypeCSV, []byte(lookup))
	require.NoError(t, err)

	bound, err := f.svc.Bind(ctx, dim.ID, &domain.LookupExtractor{})
	require.NoError(t, err)
	assert.Equal(t, domain.DimLookupTable, bound.Type)
	assert.Equal(t, "AreaCode", bound.JoinColumn)

	ext := bound.Extractor.(*domain.LookupExtractor)
	assert.Equal(t, []string{"Description"}, ext.DescriptionColumns)
	assert.Equal(t, "SortOrder", ext.SortColumn)
	assert.NotEmpty(t, bound.LookupTableID)
}

func TestBindLookupUnmatchedReportsBothSides(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\nW99999999,2\n")
	dim := f.newDimension(t, "AreaCode")

	lookup := "AreaCode,Description\nW06000001,Isle of Anglesey\nW06000002,Gwynedd\n"
	_, err := f.svc.UploadLookupTable(ctx, dim.ID, "areas.csv", domain.FileTypeCSV, []byte(lookup))
	require.NoError(t, err)

	_, err = f.svc.Bind(ctx, dim.ID, &domain.LookupExtractor{})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailInvalidLookupTable, fail.Code)
	assert.Equal(t, []string{"W99999999"}, fail.FactValues)
	assert.Equal(t, []string{"W06000002"}, fail.ReferenceValues)
}

func TestBindLookupJoinHeuristicMatchesFactColumn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\n")
	dim := f.newDimension(t, "AreaCode")

	// A code column for a different attribute is never guessed at, even
	// when its values would happen to join.
	lookup := "RegionCode,Description\nW06000001,Isle of Anglesey\n"
	_, err := f.svc.UploadLookupTable(ctx, dim.ID, "areas.csv", domain.FileTypeCSV, []byte(lookup))
	require.NoError(t, err)

	_, err = f.svc.Bind(ctx, dim.ID, &domain.LookupExtractor{})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailNoJoinColumn, fail.Code)

	// The Code suffix is optional on either side: "Area" matches "AreaCode".
	lookup = "Area,Description\nW06000001,Isle of Anglesey\n"
	_, err = f.svc.UploadLookupTable(ctx, dim.ID, "areas.csv", domain.FileTypeCSV, []byte(lookup))
	require.NoError(t, err)

	bound, err := f.svc.Bind(ctx, dim.ID, &domain.LookupExtractor{})
	require.NoError(t, err)
	assert.Equal(t, "Area", bound.JoinColumn)
}

func TestBindLookupWithoutUpload(t *testing.T) {
	f := setup(t)
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\n")
	dim := f.newDimension(t, "AreaCode")

	_, err := f.svc.Bind(context.Background(), dim.ID, &domain.LookupExtractor{})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailInvalidLookupTable, fail.Code)
}

func TestRebindReleasesOwnedLookup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\n")
	dim := f.newDimension(t, "AreaCode")

	lookup := "AreaCode,Description\nW06000001,Isle of Anglesey\n"
	lt, err := f.svc.UploadLookupTable(ctx, dim.ID, "areas.csv", domain.FileTypeCSV, []byte(lookup))
	require.NoError(t, err)
	_, err = f.svc.Bind(ctx, dim.ID, &domain.LookupExtractor{})
	require.NoError(t, err)

	// Rebinding as free text must delete the owned lookup row and bytes.
	bound, err := f.svc.Bind(ctx, dim.ID, &domain.TextExtractor{})
	require.NoError(t, err)
	assert.Empty(t, bound.LookupTableID)

	_, err = f.lookups.GetByID(ctx, lt.ID)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, err = f.blobs.LoadBuffer(ctx, f.ds.ID, "areas.csv")
	assert.ErrorAs(t, err, &nf)
}

func TestBindNoteCodes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "Notes,Value\ne,1\nep,2\nq,3\nq,4\n")
	dim := f.newDimension(t, "Notes")

	_, err := f.svc.Bind(ctx, dim.ID, &domain.NoteCodesExtractor{})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailUnmatchedNoteCodes, fail.Code)
	assert.Equal(t, int64(2), fail.TotalNonMatching)
	assert.Equal(t, []string{"q"}, fail.FactValues)
	assert.Equal(t, []string{"q"}, fail.ReferenceValues)

	f.writeFacts(t, "Notes,Value\ne,1\nep,2\n")
	bound, err := f.svc.Bind(ctx, dim.ID, &domain.NoteCodesExtractor{})
	require.NoError(t, err)
	assert.Equal(t, domain.DimNoteCodes, bound.Type)
	assert.Equal(t, "code", bound.JoinColumn)
}

func TestBindReferenceData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.tax.AddCategory(ctx, &domain.ReferenceCategory{Key: "local-authority", Name: "Local authority"}))
	require.NoError(t, f.tax.AddItem(ctx, &domain.ReferenceItem{
		ItemID: "W06000001", Description: "Isle of Anglesey", CategoryKeys: []string{"local-authority"},
	}))
	require.NoError(t, f.tax.AddItem(ctx, &domain.ReferenceItem{
		ItemID: "W06000002", Description: "Gwynedd", CategoryKeys: []string{"local-authority"},
	}))

	f.writeFacts(t, "AreaCode,Value\nW06000001,1\nW06000002,2\n")
	dim := f.newDimension(t, "AreaCode")

	bound, err := f.svc.Bind(ctx, dim.ID, &domain.ReferenceDataExtractor{})
	require.NoError(t, err)
	assert.Equal(t, domain.DimReferenceData, bound.Type)
	assert.Equal(t, "item_id", bound.JoinColumn)
	ext := bound.Extractor.(*domain.ReferenceDataExtractor)
	assert.Equal(t, []string{"local-authority"}, ext.CategoryKeys)

	// Unknown items fail with the offenders listed.
	f.writeFacts(t, "AreaCode,Value\nW06000001,1\nXX,2\n")
	_, err = f.svc.Bind(ctx, dim.ID, &domain.ReferenceDataExtractor{})
	var fail *domain.BindingFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, domain.FailUnknownReferenceItem, fail.Code)
	assert.Equal(t, []string{"XX"}, fail.FactValues)
}

func TestResetReturnsDimensionToRaw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeFacts(t, "YearCode,Value\n2020,1\n")
	dim := f.newDimension(t, "YearCode")

	_, err := f.svc.Bind(ctx, dim.ID, &domain.DateExtractor{
		YearType:   domain.YearCalendar,
		YearFormat: referencedata.YearFormatYYYY,
	})
	require.NoError(t, err)

	got, err := f.svc.Reset(ctx, dim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DimRaw, got.Type)
	assert.Nil(t, got.Extractor)
	assert.Empty(t, got.JoinColumn)
}
