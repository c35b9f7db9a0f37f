package binder

import (
	"context"
	"errors"
	"fmt"

	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
)

// bindDate generates the date-period calendar for the extractor, checks
// every fact value joins to a generated code, and on success widens the
// dataset's coverage window to include the calendar's span.
func (s *Service) bindDate(ctx context.Context, sess *engine.Session, dim *domain.Dimension, ext *domain.DateExtractor, factTable string) (*domain.Dimension, error) {
	values, err := s.distinctValues(ctx, factTable, dim.FactTableColumn)
	if err != nil {
		return nil, err
	}

	items, err := s.calendar.Generate(ext, values)
	if err != nil {
		if errors.Is(err, referencedata.ErrNoYearValues) {
			return nil, &domain.BindingFailure{
				Code:             domain.FailInvalidDateFormat,
				DatasetID:        dim.DatasetID,
				DimensionID:      dim.ID,
				TotalNonMatching: int64(len(values)),
				FactValues:       clip(values),
				Message:          "no value carries a recognizable year",
			}
		}
		return nil, err
	}

	refTable := "dateref_" + dim.ID
	if err := s.materializeDateCodes(ctx, sess, refTable, items); err != nil {
		return nil, err
	}

	unmatched, total, distinct, err := s.antiJoin(ctx, factTable, dim.FactTableColumn, refTable, "date_code")
	if err != nil {
		return nil, err
	}
	if total > 0 {
		// Some values off is a data problem; every value off means the
		// declared format does not describe this column at all.
		code := domain.FailUnmatchedDateValues
		msg := fmt.Sprintf("%d fact row(s) match no generated period code", total)
		if distinct == int64(len(values)) {
			code = domain.FailInvalidDateFormat
			msg = "no fact value matches a generated period code"
		}
		return nil, &domain.BindingFailure{
			Code:             code,
			DatasetID:        dim.DatasetID,
			DimensionID:      dim.ID,
			TotalNonMatching: total,
			FactValues:       unmatched,
			Message:          msg,
		}
	}

	if err := s.widenCoverage(ctx, dim.DatasetID, items); err != nil {
		return nil, err
	}

	out := *dim
	out.Type = domain.DimDate
	out.Extractor = ext
	out.JoinColumn = "date_code"
	out.LookupTableID = ""
	return &out, nil
}

// materializeDateCodes loads the distinct generated codes into a
// session-scoped table for the join check.
func (s *Service) materializeDateCodes(ctx context.Context, sess *engine.Session, table string, items []domain.DateReferenceItem) error {
	if err := sess.CreateTable(ctx, table, []engine.ColumnDef{{Name: "date_code", Type: "VARCHAR"}}); err != nil {
		return err
	}
	seen := make(map[string]bool, len(items))
	var rows [][]any
	for _, it := range items {
		if seen[it.DateCode] {
			continue
		}
		seen[it.DateCode] = true
		rows = append(rows, []any{it.DateCode})
	}
	return s.eng.InsertRows(ctx, table, []string{"date_code"}, rows)
}

// antiJoin returns the distinct fact values that join to no reference row,
// the total count of fact rows holding such a value, and the distinct
// unmatched value count (the samples themselves are clipped).
func (s *Service) antiJoin(ctx context.Context, factTable, factColumn, refTable, refColumn string) ([]string, int64, int64, error) {
	fcol := engine.QuoteIdent(factColumn)
	ftab := engine.QuoteIdent(factTable)
	rcol := engine.QuoteIdent(refColumn)
	rtab := engine.QuoteIdent(refTable)

	pred := fmt.Sprintf(
		"f.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s r WHERE r.%s = CAST(f.%s AS VARCHAR))",
		fcol, rtab, rcol, fcol)

	total, err := s.eng.QueryCount(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s f WHERE %s", ftab, pred))
	if err != nil {
		return nil, 0, 0, err
	}
	if total == 0 {
		return nil, 0, 0, nil
	}
	distinct, err := s.eng.QueryCount(ctx, fmt.Sprintf(
		"SELECT COUNT(DISTINCT CAST(f.%s AS VARCHAR)) FROM %s f WHERE %s", fcol, ftab, pred))
	if err != nil {
		return nil, 0, 0, err
	}
	unmatched, err := s.eng.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(f.%s AS VARCHAR) FROM %s f WHERE %s ORDER BY 1 LIMIT %d",
		fcol, ftab, pred, maxSampleValues))
	if err != nil {
		return nil, 0, 0, err
	}
	return unmatched, total, distinct, nil
}

// widenCoverage grows the dataset's coverage window to include the
// generated calendar's span, never shrinking it.
func (s *Service) widenCoverage(ctx context.Context, datasetID string, items []domain.DateReferenceItem) error {
	start, end, ok := referencedata.Coverage(items)
	if !ok {
		return nil
	}
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return err
	}
	if ds.StartDate != nil && ds.StartDate.Before(start) {
		start = *ds.StartDate
	}
	if ds.EndDate != nil && ds.EndDate.After(end) {
		end = *ds.EndDate
	}
	return s.datasets.SetCoverage(ctx, datasetID, start, end)
}
