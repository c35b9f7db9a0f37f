package domain

import "time"

// YearType selects which calendar a generated date-period table follows.
type YearType string

// Supported year types. Rolling requires an explicit start day and month.
const (
	YearCalendar       YearType = "calendar"
	YearFinancial      YearType = "financial"
	YearTax            YearType = "tax"
	YearAcademic       YearType = "academic"
	YearMeteorological YearType = "meteorological"
	YearRolling        YearType = "rolling"
)

// StartMonthDay returns the month and day a year of this type begins on.
// Rolling year starts are carried on the extractor, not the type.
func (y YearType) StartMonthDay() (time.Month, int) {
	switch y {
	case YearFinancial:
		return time.April, 1
	case YearTax:
		return time.April, 6
	case YearAcademic:
		return time.September, 1
	case YearMeteorological:
		return time.March, 1
	default:
		return time.January, 1
	}
}

// PeriodType classifies one generated reference row.
type PeriodType string

// Period types emitted by the calendar generator.
const (
	PeriodYear        PeriodType = "year"
	PeriodQuarter     PeriodType = "quarter"
	PeriodMonth       PeriodType = "month"
	PeriodSpecificDay PeriodType = "specific_day"
	PeriodAnnualTotal PeriodType = "annual_total"
)

// DateReferenceItem is one row of a generated calendar reference table.
// Items are produced in bulk and materialized straight into the query
// engine; they are never persisted as entities.
type DateReferenceItem struct {
	DateCode       string
	Lang           string
	Description    string
	Start          time.Time
	End            time.Time
	PeriodType     PeriodType
	ParentDateCode string // empty for top-level periods
}

// ReferenceItem is one item of the shared cross-dataset taxonomy.
type ReferenceItem struct {
	ItemID       string
	Description  string
	CategoryKeys []string
}

// ReferenceCategory groups taxonomy items, with an optional hierarchy path.
type ReferenceCategory struct {
	Key       string
	Name      string
	Hierarchy []string
}
