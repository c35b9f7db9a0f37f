package binder

import (
	"context"
	"fmt"
	"sort"

	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
)

// bindNoteCodes checks that every value of the fact column decomposes into
// recognised single-letter markers. Cells may combine markers ("ep").
func (s *Service) bindNoteCodes(ctx context.Context, dim *domain.Dimension, ext *domain.NoteCodesExtractor, factTable string) (*domain.Dimension, error) {
	values, err := s.distinctValues(ctx, factTable, dim.FactTableColumn)
	if err != nil {
		return nil, err
	}

	badMarkers := make(map[string]bool)
	var badValues []string
	var totalRows int64
	for _, v := range values {
		invalid := referencedata.InvalidNoteMarkers(v)
		if len(invalid) == 0 {
			continue
		}
		badValues = append(badValues, v)
		for _, m := range invalid {
			badMarkers[m] = true
		}
		n, err := s.countRowsWithValue(ctx, factTable, dim.FactTableColumn, v)
		if err != nil {
			return nil, err
		}
		totalRows += n
	}
	if len(badValues) > 0 {
		markers := make([]string, 0, len(badMarkers))
		for m := range badMarkers {
			markers = append(markers, m)
		}
		sort.Strings(markers)
		return nil, &domain.BindingFailure{
			Code:             domain.FailUnmatchedNoteCodes,
			DatasetID:        dim.DatasetID,
			DimensionID:      dim.ID,
			TotalNonMatching: totalRows,
			FactValues:       clip(badValues),
			ReferenceValues:  markers,
			Message:          fmt.Sprintf("unrecognised note marker(s): %v", markers),
		}
	}

	out := *dim
	out.Type = domain.DimNoteCodes
	out.Extractor = ext
	out.JoinColumn = "code"
	out.LookupTableID = ""
	return &out, nil
}

func (s *Service) countRowsWithValue(ctx context.Context, table, column, value string) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE CAST(%s AS VARCHAR) = %s",
		engine.QuoteIdent(table), engine.QuoteIdent(column), engine.QuoteLiteral(value))
	return s.eng.QueryCount(ctx, q)
}
