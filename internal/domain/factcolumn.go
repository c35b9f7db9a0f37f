package domain

import "time"

// ColumnRole is the semantic role a publisher assigns to a fact-table column.
type ColumnRole string

// Column roles. At most one DataValues, one Measure, and one NoteCodes column
// may exist per fact table; Unknown must not survive classification.
const (
	RoleDataValues ColumnRole = "data_values"
	RoleMeasure    ColumnRole = "measure"
	RoleNoteCodes  ColumnRole = "note_codes"
	RoleDimension  ColumnRole = "dimension"
	RoleTime       ColumnRole = "time"
	RoleIgnore     ColumnRole = "ignore"
	RoleUnknown    ColumnRole = "unknown"
)

// IsSingleton reports whether the role admits at most one column.
func (r ColumnRole) IsSingleton() bool {
	return r == RoleDataValues || r == RoleMeasure || r == RoleNoteCodes
}

// FactColumn is one physical column of an uploaded fact table.
//
// Ignored columns are marked Excluded rather than deleted so row counts and
// line numbers stay stable against the source file.
type FactColumn struct {
	ID               string
	DatasetID        string
	Name             string
	OrdinalIndex     int
	InferredDatatype string
	Role             ColumnRole
	Excluded         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ColumnAssignment is one (columnName, proposedRole) pair from a
// classification request.
type ColumnAssignment struct {
	ColumnName string
	Role       ColumnRole
}

// SourcePartition is the validated output of a classification pass.
type SourcePartition struct {
	DataValues *FactColumn
	Measure    *FactColumn
	NoteCodes  *FactColumn
	Dimensions []FactColumn
	Ignored    []FactColumn
}
