// Package cube assembles the queryable form of a dataset: its fact table
// plus one reference table per bound dimension, all under deterministic
// names inside the engine. Assembly is idempotent and all-or-nothing; a
// failed rebuild leaves the previous cube untouched.
package cube

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
)

type Assembler struct {
	datasets domain.DatasetRepository
	dims     domain.DimensionRepository
	lookups  domain.LookupTableRepository
	eng      *engine.Engine
	blobs    domain.BlobStore
	taxonomy domain.TaxonomyStore
	calendar *referencedata.CalendarGenerator
	logger   *slog.Logger
}

func NewAssembler(
	datasets domain.DatasetRepository,
	dims domain.DimensionRepository,
	lookups domain.LookupTableRepository,
	eng *engine.Engine,
	blobs domain.BlobStore,
	taxonomy domain.TaxonomyStore,
	calendar *referencedata.CalendarGenerator,
	logger *slog.Logger,
) *Assembler {
	return &Assembler{
		datasets: datasets,
		dims:     dims,
		lookups:  lookups,
		eng:      eng,
		blobs:    blobs,
		taxonomy: taxonomy,
		calendar: calendar,
		logger:   logger.With("component", "cube"),
	}
}

// Tables describes the assembled cube: the fact table name and the
// reference table per dimension ID.
type Tables struct {
	FactTable       string
	ReferenceTables map[string]string
}

// FactTableName returns the deterministic fact table name for a dataset.
func FactTableName(ds *domain.Dataset) string {
	return tableName(ds.Title, ds.ID) + "_fact"
}

// referenceTableName returns the deterministic reference table name for a
// bound dimension.
func referenceTableName(dim *domain.Dimension) string {
	return tableName(dim.FactTableColumn, dim.ID) + "_ref"
}

// Assemble builds (or rebuilds) the cube for a dataset's latest revision.
// Every dimension must already be bound. Tables are built under staging
// names first and only swapped in once everything succeeded.
func (a *Assembler) Assemble(ctx context.Context, datasetID string) (*Tables, error) {
	ds, err := a.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	rev, err := a.datasets.LatestRevision(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	dims, err := a.dims.ListForRevision(ctx, rev.ID)
	if err != nil {
		return nil, err
	}
	if unbound := unboundColumns(dims); len(unbound) > 0 {
		return nil, domain.ErrValidation("cannot assemble: %d dimension(s) still unbound: %v", len(unbound), unbound)
	}

	sess := a.eng.NewSession()
	defer sess.Close()

	// Staging tables are session-tracked: any failure below drops them and
	// the previous cube stays live.
	swaps := make(map[string]string)

	factFinal := FactTableName(ds)
	factStaging := factFinal + "_stg"
	if err := a.loadFact(ctx, sess, rev, factStaging); err != nil {
		return nil, err
	}
	swaps[factStaging] = factFinal

	g, gctx := errgroup.WithContext(ctx)
	type built struct{ dimID, staging, final string }
	results := make([]built, len(dims))
	for i := range dims {
		dim := dims[i]
		final := referenceTableName(&dim)
		staging := final + "_stg"
		results[i] = built{dimID: dim.ID, staging: staging, final: final}
		if dim.Type == domain.DimText || dim.Type == domain.DimNumeric {
			results[i] = built{}
			continue
		}
		g.Go(func() error {
			return a.buildReferenceTable(gctx, sess, &dim, factStaging, staging)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	refs := make(map[string]string)
	for _, r := range results {
		if r.dimID == "" {
			continue
		}
		swaps[r.staging] = r.final
		refs[r.dimID] = r.final
	}

	if err := a.swapIn(ctx, swaps); err != nil {
		return nil, err
	}
	a.logger.Info("cube assembled",
		"dataset_id", datasetID, "fact_table", factFinal, "reference_tables", len(refs))
	return &Tables{FactTable: factFinal, ReferenceTables: refs}, nil
}

// Drop removes a dataset's cube tables from the engine.
func (a *Assembler) Drop(ctx context.Context, datasetID string) error {
	ds, err := a.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return err
	}
	rev, err := a.datasets.LatestRevision(ctx, datasetID)
	if err != nil {
		return err
	}
	dims, err := a.dims.ListForRevision(ctx, rev.ID)
	if err != nil {
		return err
	}
	if err := a.eng.DropTable(ctx, FactTableName(ds)); err != nil {
		return err
	}
	for i := range dims {
		if err := a.eng.DropTable(ctx, referenceTableName(&dims[i])); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) loadFact(ctx context.Context, sess *engine.Session, rev *domain.Revision, table string) error {
	data, err := a.blobs.LoadBuffer(ctx, rev.DatasetID, rev.FactTableFilename)
	if err != nil {
		return err
	}
	path, err := sess.StageBuffer(data, "."+string(rev.FileType))
	if err != nil {
		return err
	}
	return sess.CreateTableFromFile(ctx, table, path, rev.FileType)
}

// buildReferenceTable materializes the reference structure a dimension is
// bound to into a staging table.
func (a *Assembler) buildReferenceTable(ctx context.Context, sess *engine.Session, dim *domain.Dimension, factTable, staging string) error {
	switch ext := dim.Extractor.(type) {
	case *domain.DateExtractor:
		return a.buildDateReference(ctx, sess, dim, ext, factTable, staging)
	case *domain.LookupExtractor:
		return a.buildLookupReference(ctx, sess, dim, staging)
	case *domain.ReferenceDataExtractor:
		return a.buildTaxonomyReference(ctx, sess, dim, factTable, staging)
	case *domain.NoteCodesExtractor:
		return a.buildNoteCodesReference(ctx, sess, staging)
	default:
		return domain.ErrValidation("dimension %q has no buildable reference structure", dim.ID)
	}
}

var dateReferenceColumns = []engine.ColumnDef{
	{Name: "date_code", Type: "VARCHAR"},
	{Name: "lang", Type: "VARCHAR"},
	{Name: "description", Type: "VARCHAR"},
	{Name: "period_start", Type: "TIMESTAMP"},
	{Name: "period_end", Type: "TIMESTAMP"},
	{Name: "period_type", Type: "VARCHAR"},
	{Name: "parent_code", Type: "VARCHAR"},
}

func (a *Assembler) buildDateReference(ctx context.Context, sess *engine.Session, dim *domain.Dimension, ext *domain.DateExtractor, factTable, staging string) error {
	values, err := a.eng.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL",
		engine.QuoteIdent(dim.FactTableColumn), engine.QuoteIdent(factTable), engine.QuoteIdent(dim.FactTableColumn)))
	if err != nil {
		return err
	}
	items, err := a.calendar.Generate(ext, values)
	if err != nil {
		return err
	}
	if err := sess.CreateTable(ctx, staging, dateReferenceColumns); err != nil {
		return err
	}
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.DateCode, it.Lang, it.Description, it.Start, it.End,
			string(it.PeriodType), it.ParentDateCode,
		})
	}
	return a.eng.InsertRows(ctx, staging,
		[]string{"date_code", "lang", "description", "period_start", "period_end", "period_type", "parent_code"},
		rows)
}

func (a *Assembler) buildLookupReference(ctx context.Context, sess *engine.Session, dim *domain.Dimension, staging string) error {
	lt, err := a.lookups.GetForDimension(ctx, dim.ID)
	if err != nil {
		return err
	}
	data, err := a.blobs.LoadBuffer(ctx, lt.DatasetID, lt.Filename)
	if err != nil {
		return err
	}
	path, err := sess.StageBuffer(data, "."+string(lt.FileType))
	if err != nil {
		return err
	}
	return sess.CreateTableFromFile(ctx, staging, path, lt.FileType)
}

var taxonomyReferenceColumns = []engine.ColumnDef{
	{Name: "item_id", Type: "VARCHAR"},
	{Name: "description", Type: "VARCHAR"},
	{Name: "category_key", Type: "VARCHAR"},
}

func (a *Assembler) buildTaxonomyReference(ctx context.Context, sess *engine.Session, dim *domain.Dimension, factTable, staging string) error {
	values, err := a.eng.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL",
		engine.QuoteIdent(dim.FactTableColumn), engine.QuoteIdent(factTable), engine.QuoteIdent(dim.FactTableColumn)))
	if err != nil {
		return err
	}
	sort.Strings(values)

	if err := sess.CreateTable(ctx, staging, taxonomyReferenceColumns); err != nil {
		return err
	}
	var rows [][]any
	for _, v := range values {
		item, err := a.taxonomy.LookupItem(ctx, v)
		if err != nil {
			return err
		}
		key := ""
		if len(item.CategoryKeys) > 0 {
			key = item.CategoryKeys[0]
		}
		rows = append(rows, []any{item.ItemID, item.Description, key})
	}
	return a.eng.InsertRows(ctx, staging, []string{"item_id", "description", "category_key"}, rows)
}

var noteCodesColumns = []engine.ColumnDef{
	{Name: "code", Type: "VARCHAR"},
	{Name: "lang", Type: "VARCHAR"},
	{Name: "description", Type: "VARCHAR"},
}

func (a *Assembler) buildNoteCodesReference(ctx context.Context, sess *engine.Session, staging string) error {
	if err := sess.CreateTable(ctx, staging, noteCodesColumns); err != nil {
		return err
	}
	codes := referencedata.NoteCodes(a.calendar.Languages()...)
	rows := make([][]any, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, []any{c.Code, c.Lang, c.Description})
	}
	return a.eng.InsertRows(ctx, staging, []string{"code", "lang", "description"}, rows)
}

// swapIn promotes every staging table to its final name. Runs after all
// builds succeeded. The whole swap is one transaction: a failure part way
// through rolls back to the previous cube instead of leaving a mix of old
// and new tables.
func (a *Assembler) swapIn(ctx context.Context, swaps map[string]string) error {
	return a.eng.Execute(ctx, swapStatement(swaps))
}

// swapStatement batches the drop-and-rename pairs, in deterministic order,
// into a single transactional statement.
func swapStatement(swaps map[string]string) string {
	stagings := make([]string, 0, len(swaps))
	for s := range swaps {
		stagings = append(stagings, s)
	}
	sort.Strings(stagings)

	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	for _, staging := range stagings {
		final := swaps[staging]
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s;\n", engine.QuoteIdent(final))
		fmt.Fprintf(&b, "ALTER TABLE %s RENAME TO %s;\n",
			engine.QuoteIdent(staging), engine.QuoteIdent(final))
	}
	b.WriteString("COMMIT;")
	return b.String()
}

func unboundColumns(dims []domain.Dimension) []string {
	var unbound []string
	for _, d := range dims {
		if d.Type == domain.DimRaw {
			unbound = append(unbound, d.FactTableColumn)
		}
	}
	sort.Strings(unbound)
	return unbound
}
