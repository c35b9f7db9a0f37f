package domain

import "time"

// Dataset is a published statistical dataset. StartDate/EndDate form the
// derived coverage window computed from bound date dimensions.
type Dataset struct {
	ID        string
	Title     string
	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileType identifies a tabular file format the engine can load.
type FileType string

// Supported fact/lookup table formats.
const (
	FileTypeCSV     FileType = "csv"
	FileTypeParquet FileType = "parquet"
)

// Revision is one uploaded fact table for a dataset. Dimensions and the
// assembled cube are scoped to a revision.
type Revision struct {
	ID                string
	DatasetID         string
	RevisionIndex     int
	FactTableFilename string
	FileType          FileType
	CreatedAt         time.Time
}

// LookupTable is an uploaded reference table owned exclusively by the
// dimension that references it. Replacing or clearing the owning binding
// must delete the row and its stored bytes.
type LookupTable struct {
	ID              string
	DimensionID     string
	DatasetID       string
	Filename        string
	FileType        FileType
	HasLanguageRows bool
	UploadedAt      time.Time
}
