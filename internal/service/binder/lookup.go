package binder

import (
	"context"
	"fmt"
	"strings"

	"statcube/internal/domain"
	"statcube/internal/engine"
)

// UploadLookupTable stores a lookup file for a dimension, replacing any
// earlier upload. Replacing the file invalidates an existing lookup
// binding, so the dimension drops back to raw until it is bound again.
func (s *Service) UploadLookupTable(ctx context.Context, dimensionID, filename string, fileType domain.FileType, data []byte) (*domain.LookupTable, error) {
	dim, err := s.dims.GetByID(ctx, dimensionID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(dim.RevisionID)
	defer unlock()

	if err := s.cleanupBinding(ctx, dim, ""); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	if err := s.blobs.SaveBuffer(ctx, dim.DatasetID, filename, data); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	lt, err := s.lookups.Create(ctx, &domain.LookupTable{
		DimensionID: dim.ID,
		DatasetID:   dim.DatasetID,
		Filename:    filename,
		FileType:    fileType,
	})
	if err != nil {
		return nil, s.wrapInternal(dim, err)
	}

	if dim.Type == domain.DimLookupTable {
		dim.Type = domain.DimRaw
		dim.Extractor = nil
		dim.JoinColumn = ""
	}
	dim.LookupTableID = lt.ID
	if err := s.dims.Update(ctx, dim); err != nil {
		return nil, s.wrapInternal(dim, err)
	}
	s.logger.Info("lookup table uploaded",
		"dataset_id", dim.DatasetID, "dimension_id", dim.ID, "filename", filename)
	return lt, nil
}

// bindLookup loads the dimension's uploaded lookup table, resolves its
// column layout (explicit hints first, name heuristics otherwise), and
// checks every fact value joins to a lookup row.
func (s *Service) bindLookup(ctx context.Context, sess *engine.Session, dim *domain.Dimension, ext *domain.LookupExtractor, factTable string) (*domain.Dimension, error) {
	lt, err := s.lookups.GetForDimension(ctx, dim.ID)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return nil, domain.Failf(domain.FailInvalidLookupTable, dim.DatasetID, dim.ID,
				"no lookup table has been uploaded for this dimension")
		}
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
	lookupTable := "lookup_" + dim.ID
	if err := sess.CreateTableFromFile(ctx, lookupTable, path, lt.FileType); err != nil {
		return nil, domain.Failf(domain.FailInvalidLookupTable, dim.DatasetID, dim.ID,
			"the uploaded file could not be read as %s: %v", lt.FileType, err)
	}

	cols, err := s.eng.ColumnNames(ctx, lookupTable)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveLayout(dim, ext, cols)
	if err != nil {
		return nil, err
	}

	unmatched, total, _, err := s.antiJoin(ctx, factTable, dim.FactTableColumn, lookupTable, resolved.JoinColumn)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		orphans, _, _, err := s.antiJoin(ctx, lookupTable, resolved.JoinColumn, factTable, dim.FactTableColumn)
		if err != nil {
			return nil, err
		}
		return nil, &domain.BindingFailure{
			Code:             domain.FailInvalidLookupTable,
			DatasetID:        dim.DatasetID,
			DimensionID:      dim.ID,
			TotalNonMatching: total,
			FactValues:       unmatched,
			ReferenceValues:  clip(orphans),
			Message: fmt.Sprintf("%d fact row(s) have no row in %q joined on %q",
				total, lt.Filename, resolved.JoinColumn),
		}
	}

	out := *dim
	out.Type = domain.DimLookupTable
	out.Extractor = resolved
	out.JoinColumn = resolved.JoinColumn
	out.LookupTableID = lt.ID
	return &out, nil
}

// resolveLayout fills in the lookup extractor's column assignments.
// Explicit hints win; otherwise columns are picked by name convention. A
// hint naming an absent column is rejected outright.
func resolveLayout(dim *domain.Dimension, ext *domain.LookupExtractor, cols []string) (*domain.LookupExtractor, error) {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, hint := range append([]string{ext.JoinColumn, ext.SortColumn, ext.HierarchyColumn, ext.LanguageColumn},
		append(ext.DescriptionColumns, ext.NotesColumns...)...) {
		if hint != "" && !have[hint] {
			return nil, &domain.UnknownColumnError{Column: hint}
		}
	}

	resolved := *ext
	if resolved.JoinColumn == "" {
		// Only a column named for the fact column may join implicitly.
		// A code-ish column for some other attribute must not be guessed
		// at, however well its values happen to overlap.
		want := joinKey(dim.FactTableColumn)
		resolved.JoinColumn = firstMatch(cols, func(lower string) bool {
			return joinKey(lower) == want
		})
	}
	if resolved.JoinColumn == "" {
		return nil, domain.Failf(domain.FailNoJoinColumn, dim.DatasetID, dim.ID,
			"no column matches %q: name the join column explicitly or follow the %sCode convention",
			dim.FactTableColumn, dim.FactTableColumn)
	}

	if len(resolved.DescriptionColumns) == 0 {
		for _, c := range cols {
			lower := strings.ToLower(c)
			if strings.Contains(lower, "description") || strings.Contains(lower, "name") {
				resolved.DescriptionColumns = append(resolved.DescriptionColumns, c)
			}
		}
	}
	if len(resolved.DescriptionColumns) == 0 {
		return nil, domain.Failf(domain.FailNoDescriptionColumns, dim.DatasetID, dim.ID,
			"no description column found in the lookup table")
	}

	if resolved.SortColumn == "" {
		resolved.SortColumn = firstMatch(cols, func(lower string) bool {
			return strings.Contains(lower, "sort")
		})
	}
	if resolved.HierarchyColumn == "" {
		resolved.HierarchyColumn = firstMatch(cols, func(lower string) bool {
			return strings.Contains(lower, "hierarchy") || strings.Contains(lower, "parent")
		})
	}
	if len(resolved.NotesColumns) == 0 {
		for _, c := range cols {
			if strings.Contains(strings.ToLower(c), "note") {
				resolved.NotesColumns = append(resolved.NotesColumns, c)
			}
		}
	}
	if resolved.LanguageColumn == "" {
		resolved.LanguageColumn = firstMatch(cols, func(lower string) bool {
			return lower == "lang" || lower == "language"
		})
	}
	resolved.HasLanguageRows = resolved.HasLanguageRows || resolved.LanguageColumn != ""
	return &resolved, nil
}

// joinKey normalizes a column name for join matching: lowercase with the
// conventional "Code" or "_id" suffix stripped, so "Area", "AreaCode" and
// "area_code" all key to "area".
func joinKey(name string) string {
	k := strings.ToLower(name)
	switch {
	case strings.HasSuffix(k, "code"):
		k = strings.TrimSuffix(k, "code")
	case strings.HasSuffix(k, "_id"):
		k = strings.TrimSuffix(k, "_id")
	}
	return strings.TrimSuffix(k, "_")
}

func firstMatch(cols []string, pred func(lower string) bool) string {
	for _, c := range cols {
		if pred(strings.ToLower(c)) {
			return c
		}
	}
	return ""
}
