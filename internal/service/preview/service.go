// Package preview produces small samples of a dimension's resolved values
// so a publisher can eyeball a binding before assembling the cube.
package preview

import (
	"context"
	"fmt"
	"log/slog"

	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
)

// SampleSize caps the values returned by a preview.
const SampleSize = 5

// Entry pairs a raw fact value with its resolved description, when the
// binding provides one.
type Entry struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Column identifies the previewed fact-table column and the role it was
// classified with.
type Column struct {
	Name         string            `json:"name"`
	OrdinalIndex int               `json:"ordinal_index"`
	Role         domain.ColumnRole `json:"role"`
}

// Result is a capped sample plus the full distinct count behind it.
type Result struct {
	DimensionID   string  `json:"dimension_id"`
	Column        Column  `json:"column"`
	Lang          string  `json:"lang"`
	Entries       []Entry `json:"entries"`
	TotalDistinct int64   `json:"total_distinct"`
}

type Service struct {
	datasets domain.DatasetRepository
	columns  domain.FactColumnRepository
	dims     domain.DimensionRepository
	lookups  domain.LookupTableRepository
	eng      *engine.Engine
	blobs    domain.BlobStore
	taxonomy domain.TaxonomyStore
	calendar *referencedata.CalendarGenerator
	logger   *slog.Logger
}

func NewService(
	datasets domain.DatasetRepository,
	columns domain.FactColumnRepository,
	dims domain.DimensionRepository,
	lookups domain.LookupTableRepository,
	eng *engine.Engine,
	blobs domain.BlobStore,
	taxonomy domain.TaxonomyStore,
	calendar *referencedata.CalendarGenerator,
	logger *slog.Logger,
) *Service {
	return &Service{
		datasets: datasets,
		columns:  columns,
		dims:     dims,
		lookups:  lookups,
		eng:      eng,
		blobs:    blobs,
		taxonomy: taxonomy,
		calendar: calendar,
		logger:   logger.With("component", "preview"),
	}
}

// Preview samples the dimension's distinct fact values and resolves each
// against the current binding. lang selects the description language where
// the reference structure is multilingual; empty means "en-gb".
func (s *Service) Preview(ctx context.Context, dimensionID, lang string) (*Result, error) {
	if lang == "" {
		lang = "en-gb"
	}
	dim, err := s.dims.GetByID(ctx, dimensionID)
	if err != nil {
		return nil, err
	}
	rev, err := s.datasets.GetRevision(ctx, dim.RevisionID)
	if err != nil {
		return nil, err
	}
	colMeta, err := s.columns.GetByName(ctx, dim.DatasetID, dim.FactTableColumn)
	if err != nil {
		return nil, err
	}

	sess := s.eng.NewSession()
	defer sess.Close()

	data, err := s.blobs.LoadBuffer(ctx, rev.DatasetID, rev.FactTableFilename)
	if err != nil {
		return nil, err
	}
	path, err := sess.StageBuffer(data, "."+string(rev.FileType))
	if err != nil {
		return nil, err
	}
	factTable := "preview_" + rev.ID
	if err := sess.CreateTableFromFile(ctx, factTable, path, rev.FileType); err != nil {
		return nil, err
	}

	col := engine.QuoteIdent(dim.FactTableColumn)
	tab := engine.QuoteIdent(factTable)
	total, err := s.eng.QueryCount(ctx, fmt.Sprintf(
		"SELECT COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL", col, tab, col))
	if err != nil {
		return nil, err
	}
	values, err := s.eng.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d",
		col, tab, col, SampleSize))
	if err != nil {
		return nil, err
	}

	entries, err := s.resolve(ctx, sess, dim, lang, values)
	if err != nil {
		return nil, err
	}
	return &Result{
		DimensionID: dim.ID,
		Column: Column{
			Name:         colMeta.Name,
			OrdinalIndex: colMeta.OrdinalIndex,
			Role:         colMeta.Role,
		},
		Lang:          lang,
		Entries:       entries,
		TotalDistinct: total,
	}, nil
}

func (s *Service) resolve(ctx context.Context, sess *engine.Session, dim *domain.Dimension, lang string, values []string) ([]Entry, error) {
	switch ext := dim.Extractor.(type) {
	case *domain.DateExtractor:
		return s.resolveDates(dim, ext, lang, values)
	case *domain.LookupExtractor:
		return s.resolveLookup(ctx, sess, dim, ext, lang, values)
	case *domain.ReferenceDataExtractor:
		return s.resolveTaxonomy(ctx, values)
	case *domain.NoteCodesExtractor:
		return resolveNoteCodes(lang, values), nil
	default:
		// Raw, text and numeric dimensions have no reference structure.
		entries := make([]Entry, len(values))
		for i, v := range values {
			entries[i] = Entry{Value: v}
		}
		return entries, nil
	}
}

func (s *Service) resolveDates(dim *domain.Dimension, ext *domain.DateExtractor, lang string, values []string) ([]Entry, error) {
	items, err := s.calendar.Generate(ext, values)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]string)
	for _, it := range items {
		if it.Lang == lang {
			byCode[it.DateCode] = it.Description
		}
	}
	entries := make([]Entry, len(values))
	for i, v := range values {
		entries[i] = Entry{Value: v, Description: byCode[v]}
	}
	return entries, nil
}

func (s *Service) resolveLookup(ctx context.Context, sess *engine.Session, dim *domain.Dimension, ext *domain.LookupExtractor, lang string, values []string) ([]Entry, error) {
	lt, err := s.lookups.GetForDimension(ctx, dim.ID)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.LoadBuffer(ctx, lt.DatasetID, lt.Filename)
	if err != nil {
		return nil, err
	}
	path, err := sess.StageBuffer(data, "."+string(lt.FileType))
	if err != nil {
		return nil, err
	}
	table := "preview_lookup_" + dim.ID
	if err := sess.CreateTableFromFile(ctx, table, path, lt.FileType); err != nil {
		return nil, err
	}

	desc := engine.QuoteIdent(ext.DescriptionColumns[0])
	join := engine.QuoteIdent(ext.JoinColumn)
	entries := make([]Entry, len(values))
	for i, v := range values {
		q := fmt.Sprintf("SELECT CAST(%s AS VARCHAR) FROM %s WHERE CAST(%s AS VARCHAR) = %s",
			desc, engine.QuoteIdent(table), join, engine.QuoteLiteral(v))
		if ext.LanguageColumn != "" {
			q += fmt.Sprintf(" AND LOWER(CAST(%s AS VARCHAR)) = %s",
				engine.QuoteIdent(ext.LanguageColumn), engine.QuoteLiteral(lang))
		}
		q += " LIMIT 1"
		descs, err := s.eng.QueryStrings(ctx, q)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{Value: v}
		if len(descs) > 0 {
			entries[i].Description = descs[0]
		}
	}
	return entries, nil
}

func (s *Service) resolveTaxonomy(ctx context.Context, values []string) ([]Entry, error) {
	entries := make([]Entry, len(values))
	for i, v := range values {
		entries[i] = Entry{Value: v}
		item, err := s.taxonomy.LookupItem(ctx, v)
		if err != nil {
			if _, ok := err.(*domain.NotFoundError); ok {
				continue
			}
			return nil, err
		}
		entries[i].Description = item.Description
	}
	return entries, nil
}

func resolveNoteCodes(lang string, values []string) []Entry {
	byCode := make(map[string]string)
	for _, nc := range referencedata.NoteCodes(lang) {
		byCode[nc.Code] = nc.Description
	}
	entries := make([]Entry, len(values))
	for i, v := range values {
		entries[i] = Entry{Value: v}
		var desc string
		for _, m := range referencedata.SplitNoteMarkers(v) {
			if d, ok := byCode[m]; ok {
				if desc != "" {
					desc += "; "
				}
				desc += d
			}
		}
		entries[i].Description = desc
	}
	return entries
}
