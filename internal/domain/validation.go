package domain

import "fmt"

// FailureCode identifies the kind of data-validation failure a binding
// attempt produced.
type FailureCode string

// Data-validation failure codes. These describe problems in the publisher's
// source data, not programmer errors; each carries enough detail for a human
// to fix the source file.
const (
	FailNonNumericValues     FailureCode = "non_numeric_values"
	FailInvalidDateFormat    FailureCode = "invalid_date_format"
	FailUnmatchedDateValues  FailureCode = "unmatched_date_values"
	FailNoJoinColumn         FailureCode = "no_join_column"
	FailInvalidLookupTable   FailureCode = "invalid_lookup_table"
	FailNoDescriptionColumns FailureCode = "no_description_columns"
	FailUnmatchedNoteCodes   FailureCode = "unmatched_note_codes"
	FailUnknownReferenceItem FailureCode = "unknown_reference_items"
	FailItemsNotInCategory   FailureCode = "items_not_in_category"
	FailNoCategoryMatch      FailureCode = "no_category_match"
	FailTooManyCategories    FailureCode = "too_many_categories"
)

// BindingFailure is the rich result of a failed validation. It is never
// collapsed to a boolean: the publisher needs the offending values from both
// sides of the comparison to fix their source file.
//
// A BindingFailure always leaves the dimension's previous binding untouched.
type BindingFailure struct {
	Code        FailureCode
	DatasetID   string
	DimensionID string

	// TotalNonMatching counts fact rows that failed to resolve.
	TotalNonMatching int64

	// FactValues holds the distinct offending values found in the fact
	// column. Bounded by the engine's natural DISTINCT result.
	FactValues []string

	// ReferenceValues holds reference-side orphans where applicable
	// (lookup rows no fact value joins to).
	ReferenceValues []string

	Message string
}

func (f *BindingFailure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %d non-matching value(s)", f.Code, f.TotalNonMatching)
}

// Failf builds a BindingFailure with a formatted message and no value samples.
func Failf(code FailureCode, datasetID, dimensionID, format string, args ...interface{}) *BindingFailure {
	return &BindingFailure{
		Code:        code,
		DatasetID:   datasetID,
		DimensionID: dimensionID,
		Message:     fmt.Sprintf(format, args...),
	}
}
