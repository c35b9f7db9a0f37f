// Package referencedata generates reference tables for dimension bindings:
// date-period calendars and the built-in note-code marker set. Generators
// are pure; materializing rows into the query engine is the binder's job.
package referencedata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"statcube/internal/domain"
)

// Year format templates. A financial-style year label spans two calendar
// years, so templates with a second-year suffix exist alongside plain YYYY.
const (
	YearFormatYYYY      = "YYYY"
	YearFormatYYYYYY    = "YYYYYY"
	YearFormatSlash     = "YYYY/YY"
	YearFormatDash      = "YYYY-YY"
	YearFormatSlashLong = "YYYY/YYYY"
	YearFormatDashLong  = "YYYY-YYYY"
)

// Quarter markers are appended to the rendered year.
const (
	QuarterFormatQX    = "QX"  // 2020Q1
	QuarterFormatSpace = " QX" // 2020 Q1
	QuarterFormatDash  = "-QX" // 2020-Q1
	QuarterFormatUnder = "_QX" // 2020_Q1
)

// Month markers are appended to the rendered year.
const (
	MonthFormatMM    = "MM"  // 202001
	MonthFormatLower = "mMM" // 2020m01
	MonthFormatDash  = "-MM" // 2020-01
)

// RenderYear renders a year code for the given template and start year.
// For two-year templates the second year is startYear+1.
func RenderYear(template string, startYear int) (string, error) {
	next := startYear + 1
	switch template {
	case YearFormatYYYY:
		return strconv.Itoa(startYear), nil
	case YearFormatYYYYYY:
		return fmt.Sprintf("%d%02d", startYear, next%100), nil
	case YearFormatSlash:
		return fmt.Sprintf("%d/%02d", startYear, next%100), nil
	case YearFormatDash:
		return fmt.Sprintf("%d-%02d", startYear, next%100), nil
	case YearFormatSlashLong:
		return fmt.Sprintf("%d/%d", startYear, next), nil
	case YearFormatDashLong:
		return fmt.Sprintf("%d-%d", startYear, next), nil
	default:
		return "", domain.ErrValidation("unknown year format %q", template)
	}
}

// RenderQuarter renders a quarter code: the year rendered with its template
// plus the quarter marker.
func RenderQuarter(yearTemplate, marker string, startYear, quarter int) (string, error) {
	year, err := RenderYear(yearTemplate, startYear)
	if err != nil {
		return "", err
	}
	switch marker {
	case QuarterFormatQX:
		return fmt.Sprintf("%sQ%d", year, quarter), nil
	case QuarterFormatSpace:
		return fmt.Sprintf("%s Q%d", year, quarter), nil
	case QuarterFormatDash:
		return fmt.Sprintf("%s-Q%d", year, quarter), nil
	case QuarterFormatUnder:
		return fmt.Sprintf("%s_Q%d", year, quarter), nil
	default:
		return "", domain.ErrValidation("unknown quarter format %q", marker)
	}
}

// RenderMonth renders a month code: the year rendered with its template
// plus the month marker. monthIndex is 1-based relative to the year start.
func RenderMonth(yearTemplate, marker string, startYear, monthIndex int) (string, error) {
	year, err := RenderYear(yearTemplate, startYear)
	if err != nil {
		return "", err
	}
	switch marker {
	case MonthFormatMM:
		return fmt.Sprintf("%s%02d", year, monthIndex), nil
	case MonthFormatLower:
		return fmt.Sprintf("%sm%02d", year, monthIndex), nil
	case MonthFormatDash:
		return fmt.Sprintf("%s-%02d", year, monthIndex), nil
	default:
		return "", domain.ErrValidation("unknown month format %q", marker)
	}
}

var yearRun = regexp.MustCompile(`\d{4}`)

// YearFromValue extracts the leading 4-digit year of a raw fact value.
// Period codes always carry their start year in full, whatever the
// template, so the first 4-digit run is the year.
func YearFromValue(value string) (int, bool) {
	m := yearRun.FindString(value)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil || y < 1000 {
		return 0, false
	}
	return y, true
}

// GoLayout converts an explicit date format code (DD/MM/YYYY style) into a
// Go time layout.
func GoLayout(dateFormat string) (string, error) {
	if dateFormat == "" {
		return "", domain.ErrValidation("empty date format")
	}
	r := strings.NewReplacer(
		"YYYY", "2006",
		"YY", "06",
		"MM", "01",
		"DD", "02",
	)
	layout := r.Replace(dateFormat)
	if layout == dateFormat && !strings.ContainsAny(dateFormat, "0123456789") {
		return "", domain.ErrValidation("unrecognized date format %q", dateFormat)
	}
	return layout, nil
}
