package binder

import (
	"context"
	"fmt"
	"strings"

	"statcube/internal/domain"
	"statcube/internal/engine"
)

// numericColumnTypes are engine column types that need no per-value check.
var numericColumnTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true,
	"HUGEINT": true, "UTINYINT": true, "USMALLINT": true, "UINTEGER": true,
	"UBIGINT": true, "FLOAT": true, "DOUBLE": true,
}

// bindNumeric validates that every value of the fact column parses as the
// requested number type. The engine's own inference is trusted as a fast
// path: a column it loaded as a numeric type cannot hold non-numeric text.
func (s *Service) bindNumeric(ctx context.Context, dim *domain.Dimension, ext *domain.NumericExtractor, factTable string) (*domain.Dimension, error) {
	if ext.NumberType != domain.NumberInteger && ext.NumberType != domain.NumberDecimal {
		return nil, domain.ErrValidation("unknown number type %q", ext.NumberType)
	}
	// Structural check before any engine work.
	if ext.NumberType == domain.NumberDecimal && ext.DecimalPlaces < 1 {
		return nil, &domain.MissingParameterError{Parameter: "decimal_places"}
	}

	colType, err := s.eng.ColumnType(ctx, factTable, dim.FactTableColumn)
	if err != nil {
		return nil, err
	}
	if !numericColumnTypes[strings.ToUpper(colType)] || ext.NumberType == domain.NumberInteger {
		if err := s.checkNumericValues(ctx, dim, ext.NumberType, factTable); err != nil {
			return nil, err
		}
	}

	out := *dim
	out.Type = domain.DimNumeric
	out.Extractor = ext
	out.JoinColumn = ""
	out.LookupTableID = ""
	return &out, nil
}

func (s *Service) checkNumericValues(ctx context.Context, dim *domain.Dimension, nt domain.NumberType, factTable string) error {
	castType := "DOUBLE"
	if nt == domain.NumberInteger {
		castType = "BIGINT"
	}
	col := engine.QuoteIdent(dim.FactTableColumn)
	table := engine.QuoteIdent(factTable)
	pred := fmt.Sprintf("%s IS NOT NULL AND TRY_CAST(TRIM(CAST(%s AS VARCHAR)) AS %s) IS NULL", col, col, castType)

	total, err := s.eng.QueryCount(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, pred))
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	samples, err := s.eng.QueryStrings(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s ORDER BY 1 LIMIT %d",
		col, table, pred, maxSampleValues))
	if err != nil {
		return err
	}
	return &domain.BindingFailure{
		Code:             domain.FailNonNumericValues,
		DatasetID:        dim.DatasetID,
		DimensionID:      dim.ID,
		TotalNonMatching: total,
		FactValues:       samples,
		Message:          fmt.Sprintf("%d value(s) do not parse as %s", total, nt),
	}
}
