// Package classify assigns semantic roles to fact-table columns and keeps
// the dimension list in step with them. A classification pass either lands
// completely or is rolled back through its compensation log.
package classify

import (
	"context"
	"fmt"
	"log/slog"

	"statcube/internal/domain"
	"statcube/internal/engine"
)

type Service struct {
	datasets domain.DatasetRepository
	columns  domain.FactColumnRepository
	dims     domain.DimensionRepository
	eng      *engine.Engine
	blobs    domain.BlobStore
	logger   *slog.Logger
}

func NewService(
	datasets domain.DatasetRepository,
	columns domain.FactColumnRepository,
	dims domain.DimensionRepository,
	eng *engine.Engine,
	blobs domain.BlobStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		datasets: datasets,
		columns:  columns,
		dims:     dims,
		eng:      eng,
		blobs:    blobs,
		logger:   logger.With("component", "classify"),
	}
}

// DetectColumns loads a revision's fact table into a scratch engine table
// and snapshots its column names and inferred datatypes, replacing any
// earlier snapshot for the dataset. All columns start out with no role.
func (s *Service) DetectColumns(ctx context.Context, revisionID string) ([]domain.FactColumn, error) {
	rev, err := s.datasets.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.LoadBuffer(ctx, rev.DatasetID, rev.FactTableFilename)
	if err != nil {
		return nil, err
	}

	sess := s.eng.NewSession()
	defer sess.Close()

	path, err := sess.StageBuffer(data, "."+string(rev.FileType))
	if err != nil {
		return nil, err
	}
	scratch := "detect_" + rev.ID
	if err := sess.CreateTableFromFile(ctx, scratch, path, rev.FileType); err != nil {
		return nil, err
	}

	names, err := s.eng.ColumnNames(ctx, scratch)
	if err != nil {
		return nil, err
	}

	if err := s.columns.DeleteForDataset(ctx, rev.DatasetID); err != nil {
		return nil, err
	}
	out := make([]domain.FactColumn, 0, len(names))
	for i, name := range names {
		datatype, err := s.eng.ColumnType(ctx, scratch, name)
		if err != nil {
			return nil, err
		}
		col, err := s.columns.Create(ctx, &domain.FactColumn{
			DatasetID:        rev.DatasetID,
			Name:             name,
			OrdinalIndex:     i,
			InferredDatatype: datatype,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	s.logger.Info("detected fact columns", "dataset_id", rev.DatasetID, "count", len(out))
	return out, nil
}

// Classify applies proposed role assignments to a dataset's fact columns.
//
// Structural checks (unknown columns, duplicated singleton roles) run
// before anything is persisted. Each persisted step records a compensation;
// if any column is still unresolved afterwards the whole pass is undone and
// an IncompleteClassificationError returned.
func (s *Service) Classify(ctx context.Context, datasetID string, assignments []domain.ColumnAssignment) (*domain.SourcePartition, error) {
	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	rev, err := s.datasets.LatestRevision(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	cols, err := s.columns.ListForDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*domain.FactColumn, len(cols))
	for i := range cols {
		byName[cols[i].Name] = &cols[i]
	}

	if err := validateAssignments(byName, assignments); err != nil {
		return nil, err
	}

	dimsByColumn, err := s.dimensionsByColumn(ctx, rev.ID)
	if err != nil {
		return nil, err
	}

	var undo compensationLog
	for _, a := range assignments {
		col := byName[a.ColumnName]
		if col.Role == a.Role {
			continue
		}
		prev := *col
		if err := s.columns.UpdateRole(ctx, col.ID, a.Role, a.Role == domain.RoleIgnore); err != nil {
			undo.run(s.logger)
			return nil, err
		}
		undo.add(fmt.Sprintf("restore role of %s", prev.Name), func(ctx context.Context) error {
			return s.columns.UpdateRole(ctx, prev.ID, prev.Role, prev.Excluded)
		})
		col.Role = a.Role
		col.Excluded = a.Role == domain.RoleIgnore

		if err := s.reconcileDimension(ctx, rev, &prev, col, dimsByColumn, &undo); err != nil {
			undo.run(s.logger)
			return nil, err
		}
	}

	part, err := buildPartition(cols)
	if err != nil {
		undo.run(s.logger)
		return nil, err
	}
	s.logger.Info("classified fact columns",
		"dataset_id", datasetID,
		"dimensions", len(part.Dimensions),
		"ignored", len(part.Ignored))
	return part, nil
}

// Partition re-validates the stored roles of a dataset and returns the
// resulting partition. Fails if any column is still unresolved.
func (s *Service) Partition(ctx context.Context, datasetID string) (*domain.SourcePartition, error) {
	cols, err := s.columns.ListForDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return buildPartition(cols)
}

// validateAssignments runs the structural checks that must hold before any
// state changes: every named column exists, no column is assigned twice,
// and no singleton role ends up on more than one column.
func validateAssignments(byName map[string]*domain.FactColumn, assignments []domain.ColumnAssignment) error {
	assigned := make(map[string]bool, len(assignments))
	finalRoles := make(map[string]domain.ColumnRole, len(byName))
	for name, col := range byName {
		finalRoles[name] = col.Role
	}
	for _, a := range assignments {
		if _, ok := byName[a.ColumnName]; !ok {
			return &domain.UnknownColumnError{Column: a.ColumnName}
		}
		if assigned[a.ColumnName] {
			return domain.ErrValidation("column %q assigned more than once", a.ColumnName)
		}
		assigned[a.ColumnName] = true
		finalRoles[a.ColumnName] = a.Role
	}

	holders := make(map[domain.ColumnRole][]string)
	for name, role := range finalRoles {
		if role.IsSingleton() {
			holders[role] = append(holders[role], name)
		}
	}
	for _, role := range []domain.ColumnRole{domain.RoleDataValues, domain.RoleMeasure, domain.RoleNoteCodes} {
		if names := holders[role]; len(names) > 1 {
			sortStrings(names)
			return &domain.DuplicateRoleError{Role: role, Columns: names}
		}
	}
	return nil
}

// reconcileDimension keeps the revision's dimension list in step with a
// column's role change: dimension and time columns own a raw dimension,
// anything else must not.
func (s *Service) reconcileDimension(
	ctx context.Context,
	rev *domain.Revision,
	prev, col *domain.FactColumn,
	dimsByColumn map[string]*domain.Dimension,
	undo *compensationLog,
) error {
	wasDim := prev.Role == domain.RoleDimension || prev.Role == domain.RoleTime
	isDim := col.Role == domain.RoleDimension || col.Role == domain.RoleTime

	switch {
	case isDim && !wasDim:
		created, err := s.dims.Create(ctx, &domain.Dimension{
			DatasetID:       rev.DatasetID,
			RevisionID:      rev.ID,
			FactTableColumn: col.Name,
			Type:            domain.DimRaw,
		})
		if err != nil {
			return err
		}
		dimsByColumn[col.Name] = created
		undo.add(fmt.Sprintf("remove dimension for %s", col.Name), func(ctx context.Context) error {
			return s.dims.Delete(ctx, created.ID)
		})
	case wasDim && !isDim:
		dim, ok := dimsByColumn[col.Name]
		if !ok {
			return nil
		}
		snapshot := *dim
		if err := s.dims.Delete(ctx, dim.ID); err != nil {
			return err
		}
		delete(dimsByColumn, col.Name)
		undo.add(fmt.Sprintf("restore dimension for %s", col.Name), func(ctx context.Context) error {
			_, err := s.dims.Create(ctx, &snapshot)
			return err
		})
	}
	return nil
}

func (s *Service) dimensionsByColumn(ctx context.Context, revisionID string) (map[string]*domain.Dimension, error) {
	dims, err := s.dims.ListForRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Dimension, len(dims))
	for i := range dims {
		out[dims[i].FactTableColumn] = &dims[i]
	}
	return out, nil
}

// buildPartition groups columns by resolved role. A DataValues column is
// required; any remaining unknown role fails the whole pass.
func buildPartition(cols []domain.FactColumn) (*domain.SourcePartition, error) {
	var part domain.SourcePartition
	var unresolved []string
	for i := range cols {
		col := cols[i]
		switch col.Role {
		case domain.RoleDataValues:
			part.DataValues = &cols[i]
		case domain.RoleMeasure:
			part.Measure = &cols[i]
		case domain.RoleNoteCodes:
			part.NoteCodes = &cols[i]
		case domain.RoleDimension, domain.RoleTime:
			part.Dimensions = append(part.Dimensions, col)
		case domain.RoleIgnore:
			part.Ignored = append(part.Ignored, col)
		default:
			unresolved = append(unresolved, col.Name)
		}
	}
	if len(unresolved) > 0 {
		sortStrings(unresolved)
		return nil, &domain.IncompleteClassificationError{Unresolved: unresolved}
	}
	if part.DataValues == nil {
		return nil, domain.ErrValidation("no data values column assigned")
	}
	return &part, nil
}
