// Package binder validates and applies dimension bindings: each classified
// fact column is checked against its reference structure (generated
// calendar, uploaded lookup table, numeric format, shared taxonomy, or the
// note-code marker set) before the dimension leaves its raw state.
//
// A failed validation returns a *domain.BindingFailure carrying the
// offending values and leaves the dimension's previous binding untouched.
package binder

import (
	"context"
	"fmt"
	"log/slog"

	"statcube/internal/domain"
	"statcube/internal/engine"
	"statcube/internal/service/referencedata"
)

// maxSampleValues bounds the offending-value samples carried on a failure.
const maxSampleValues = 50

type Service struct {
	datasets domain.DatasetRepository
	columns  domain.FactColumnRepository
	dims     domain.DimensionRepository
	lookups  domain.LookupTableRepository
	eng      *engine.Engine
	blobs    domain.BlobStore
	taxonomy domain.TaxonomyStore
	calendar *referencedata.CalendarGenerator
	locks    *revisionLocks
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
		locks:    newRevisionLocks(),
		logger:   logger.With("component", "binder"),
	}
}

// Bind validates ext against the dimension's fact column and, on success,
// replaces the dimension's current binding with it. Bindings of the same
// revision are applied one at a time.
func (s *Service) Bind(ctx context.Context, dimensionID string, ext domain.Extractor) (*domain.Dimension, error) {
	if ext == nil {
		return nil, &domain.MissingParameterError{Parameter: "extractor"}
	}
	dim, err := s.dims.GetByID(ctx, dimensionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(dim.RevisionID)
	defer unlock()

	rev, err := s.datasets.GetRevision(ctx, dim.RevisionID)
	if err != nil {
		return nil, err
	}

	sess := s.eng.NewSession()
	defer sess.Close()

	factTable, err := s.loadFactTable(ctx, sess, rev)
	if err != nil {
		return nil, s.wrapInternal(dim, err)
	}

	var bound *domain.Dimension
	switch e := ext.(type) {
	case *domain.TextExtractor:
		bound, err = s.bindText(dim, e)
	case *domain.NumericExtractor:
		bound, err = s.bindNumeric(ctx, dim, e, factTable)
	case *domain.DateExtractor:
		bound, err = s.bindDate(ctx, sess, dim, e, factTable)
	case *domain.LookupExtractor:
		bound, err = s.bindLookup(ctx, sess, dim, e, factTable)
	case *domain.ReferenceDataExtractor:
		bound, err = s.bindReferenceData(ctx, dim, e, factTable)
	case *domain.NoteCodesExtractor:
		bound, err = s.bindNoteCodes(ctx, dim, e, factTable)
	default:
		return nil, domain.ErrValidation("unsupported extractor kind %q", ext.Kind())
	}
	if err != nil {
		s.logger.Info("binding rejected",
			"dataset_id", dim.DatasetID, "dimension_id", dim.ID,
			"column", dim.FactTableColumn, "kind", ext.Kind(), "error", err)
		return nil, err
	}

	// The new binding validated: clear whatever the dimension was bound to
	// before, then persist the replacement.
	if err := s.cleanupBinding(ctx, dim, bound.LookupTableID); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	if err := s.dims.Update(ctx, bound); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	s.logger.Info("dimension bound",
		"dataset_id", dim.DatasetID, "dimension_id", dim.ID,
		"column", dim.FactTableColumn, "kind", bound.Type)
	return bound, nil
}

// Reset returns a dimension to its raw state, erasing its extractor and
// join column and deleting any owned lookup table bytes and row.
func (s *Service) Reset(ctx context.Context, dimensionID string) (*domain.Dimension, error) {
	dim, err := s.dims.GetByID(ctx, dimensionID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(dim.RevisionID)
	defer unlock()

	if err := s.cleanupBinding(ctx, dim, ""); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	dim.Type = domain.DimRaw
	dim.Extractor = nil
	dim.JoinColumn = ""
	dim.LookupTableID = ""
	if err := s.dims.Update(ctx, dim); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	return dim, nil
}

// cleanupBinding deletes the lookup table owned by the dimension's current
// binding, unless it is the one being kept by the new binding.
func (s *Service) cleanupBinding(ctx context.Context, dim *domain.Dimension, keepLookupID string) error {
	if dim.LookupTableID == "" || dim.LookupTableID == keepLookupID {
		return nil
	}
	lt, err := s.lookups.GetByID(ctx, dim.LookupTableID)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return nil
		}
		return err
	}
	if err := s.blobs.Delete(ctx, lt.DatasetID, lt.Filename); err != nil {
		if _, ok := err.(*domain.NotFoundError); !ok {
			return err
		}
	}
	return s.lookups.Delete(ctx, lt.ID)
}

// loadFactTable stages the revision's fact file and loads it into a
// session-scoped table.
func (s *Service) loadFactTable(ctx context.Context, sess *engine.Session, rev *domain.Revision) (string, error) {
	data, err := s.blobs.LoadBuffer(ctx, rev.DatasetID, rev.FactTableFilename)
	if err != nil {
		return "", err
	}
	path, err := sess.StageBuffer(data, "."+string(rev.FileType))
	if err != nil {
		return "", err
	}
	table := "fact_" + rev.ID
	if err := sess.CreateTableFromFile(ctx, table, path, rev.FileType); err != nil {
		return "", err
	}
	return table, nil
}

// distinctValues returns the distinct non-NULL values of a fact column.
func (s *Service) distinctValues(ctx context.Context, table, column string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1",
		engine.QuoteIdent(column), engine.QuoteIdent(table), engine.QuoteIdent(column))
	return s.eng.QueryStrings(ctx, q)
}

// wrapInternal tags unexpected engine/storage/repository failures so callers
// can tell them apart from data-validation outcomes.
func (s *Service) wrapInternal(dim *domain.Dimension, err error) error {
	switch err.(type) {
	case *domain.BindingFailure, *domain.ValidationError, *domain.NotFoundError,
		*domain.ConflictError, *domain.MissingParameterError:
		return err
	}
	return &domain.BindingFailedError{DatasetID: dim.DatasetID, DimensionID: dim.ID, Cause: err}
}

func clip(values []string) []string {
	if len(values) > maxSampleValues {
		return values[:maxSampleValues]
	}
	return values
}

// bindText marks the dimension free-text. Every value is acceptable, so
// there is nothing to validate.
func (s *Service) bindText(dim *domain.Dimension, ext *domain.TextExtractor) (*domain.Dimension, error) {
	out := *dim
	out.Type = domain.DimText
	out.Extractor = ext
	out.JoinColumn = ""
	out.LookupTableID = ""
	return &out, nil
}
