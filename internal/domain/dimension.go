package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DimensionType identifies which binder variant a dimension is bound with.
type DimensionType string

// Dimension types. Raw means "not yet bound".
const (
	DimRaw           DimensionType = "raw"
	DimText          DimensionType = "text"
	DimNumeric       DimensionType = "numeric"
	DimLookupTable   DimensionType = "lookup_table"
	DimDate          DimensionType = "date"
	DimReferenceData DimensionType = "reference_data"
	DimNoteCodes     DimensionType = "note_codes"
)

// RequiresJoin reports whether a binding of this type joins the fact column
// against a reference table, and therefore carries a join column.
func (t DimensionType) RequiresJoin() bool {
	switch t {
	case DimDate, DimLookupTable, DimReferenceData, DimNoteCodes:
		return true
	default:
		return false
	}
}

// NumberType selects the numeric kind for a numeric binding.
type NumberType string

// Numeric kinds.
const (
	NumberInteger NumberType = "integer"
	NumberDecimal NumberType = "decimal"
)

// Extractor is the typed parameter set describing how a dimension's raw
// values map to its reference structure. Exactly one variant exists per
// dimension type; a dimension in Raw state has no extractor at all.
type Extractor interface {
	Kind() DimensionType
}

// TextExtractor marks a free-text dimension. It has no parameters.
type TextExtractor struct{}

func (TextExtractor) Kind() DimensionType { return DimText }

// NumericExtractor describes a numeric format binding.
type NumericExtractor struct {
	NumberType    NumberType `json:"number_type"`
	DecimalPlaces int        `json:"decimal_places,omitempty"`
}

func (NumericExtractor) Kind() DimensionType { return DimNumeric }

// DateExtractor describes a date-period calendar binding. When DateFormat is
// set the binding is a 1:1 specific-date dictionary; otherwise year (and
// optionally quarter/month) periods are generated.
type DateExtractor struct {
	YearType          YearType `json:"year_type"`
	YearFormat        string   `json:"year_format"`
	QuarterFormat     string   `json:"quarter_format,omitempty"`
	MonthFormat       string   `json:"month_format,omitempty"`
	DateFormat        string   `json:"date_format,omitempty"`
	FifthQuarterTotal bool     `json:"fifth_quarter_is_annual_total,omitempty"`
	RollingStartDay   int      `json:"rolling_start_day,omitempty"`
	RollingStartMonth int      `json:"rolling_start_month,omitempty"`
}

func (DateExtractor) Kind() DimensionType { return DimDate }

// LookupExtractor describes a binding against an uploaded lookup table.
// Columns not supplied as hints are derived from column-name heuristics.
type LookupExtractor struct {
	JoinColumn         string   `json:"join_column"`
	SortColumn         string   `json:"sort_column,omitempty"`
	HierarchyColumn    string   `json:"hierarchy_column,omitempty"`
	DescriptionColumns []string `json:"description_columns"`
	NotesColumns       []string `json:"notes_columns,omitempty"`
	LanguageColumn     string   `json:"language_column,omitempty"`
	HasLanguageRows    bool     `json:"has_language_rows,omitempty"`
}

func (LookupExtractor) Kind() DimensionType { return DimLookupTable }

// ReferenceDataExtractor describes a binding against the shared taxonomy.
type ReferenceDataExtractor struct {
	CategoryKeys []string `json:"category_keys"`
}

func (ReferenceDataExtractor) Kind() DimensionType { return DimReferenceData }

// NoteCodesExtractor marks a note-code marker dimension.
type NoteCodesExtractor struct{}

func (NoteCodesExtractor) Kind() DimensionType { return DimNoteCodes }

// Dimension is one classified fact-table column, bound (or not yet bound)
// to a reference structure.
//
// Invariants: Extractor is present iff Type != Raw; JoinColumn is present
// iff Type.RequiresJoin(); LookupTableID is set only for DimLookupTable.
type Dimension struct {
	ID              string
	DatasetID       string
	RevisionID      string
	FactTableColumn string
	Type            DimensionType
	Extractor       Extractor
	JoinColumn      string
	LookupTableID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// extractorEnvelope is the persisted JSON form of an extractor: the variant
// payload wrapped with a kind discriminator.
type extractorEnvelope struct {
	Kind    DimensionType   `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalExtractor encodes an extractor into its JSON envelope.
func MarshalExtractor(e Extractor) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal extractor payload: %w", err)
	}
	return json.Marshal(extractorEnvelope{Kind: e.Kind(), Payload: payload})
}

// UnmarshalExtractor decodes a JSON envelope back into the typed variant.
// nil input yields a nil extractor (Raw dimension).
func UnmarshalExtractor(data []byte) (Extractor, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var env extractorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal extractor envelope: %w", err)
	}

	decode := func(v Extractor) (Extractor, error) {
		if len(env.Payload) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return nil, fmt.Errorf("unmarshal %s extractor: %w", env.Kind, err)
		}
		return v, nil
	}

	switch env.Kind {
	case DimText:
		return decode(&TextExtractor{})
	case DimNumeric:
		return decode(&NumericExtractor{})
	case DimDate:
		return decode(&DateExtractor{})
	case DimLookupTable:
		return decode(&LookupExtractor{})
	case DimReferenceData:
		return decode(&ReferenceDataExtractor{})
	case DimNoteCodes:
		return decode(&NoteCodesExtractor{})
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", env.Kind)
	}
}
