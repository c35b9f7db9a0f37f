package referencedata

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"statcube/internal/domain"
)

// DefaultLanguages are the output languages every generated reference table
// carries rows for.
var DefaultLanguages = []string{"en-gb", "cy-gb"}

// ErrNoYearValues indicates none of the fact values carried a derivable
// year, so no period range can be generated. The binder reports this as an
// invalid date format.
var ErrNoYearValues = errors.New("no year could be derived from the fact values")

var monthNames = map[string][12]string{
	"en-gb": {"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
	"cy-gb": {"Ionawr", "Chwefror", "Mawrth", "Ebrill", "Mai", "Mehefin",
		"Gorffennaf", "Awst", "Medi", "Hydref", "Tachwedd", "Rhagfyr"},
}

var quarterWord = map[string]string{
	"en-gb": "Quarter",
	"cy-gb": "Chwarter",
}

var annualTotalLabel = map[string]string{
	"en-gb": "Year total",
	"cy-gb": "Cyfanswm y flwyddyn",
}

// CalendarGenerator produces date-period reference tables. It is pure: the
// table is only ever as wide as the observed fact values require.
type CalendarGenerator struct {
	languages []string
}

// NewCalendarGenerator creates a generator for the given output languages,
// defaulting to DefaultLanguages.
func NewCalendarGenerator(languages ...string) *CalendarGenerator {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &CalendarGenerator{languages: languages}
}

// Languages returns the generator's output languages.
func (g *CalendarGenerator) Languages() []string { return g.languages }

// Generate builds the reference rows for a date extractor given the
// distinct raw values observed in the fact column.
//
// With an explicit DateFormat each parseable value becomes a 1-day
// dictionary entry; values that fail to parse get no row and are caught by
// the referential-integrity check. Otherwise year/quarter/month periods are
// generated across the observed year range.
func (g *CalendarGenerator) Generate(ext *domain.DateExtractor, factValues []string) ([]domain.DateReferenceItem, error) {
	if ext == nil {
		return nil, &domain.MissingParameterError{Parameter: "extractor"}
	}
	if ext.YearType == domain.YearRolling && (ext.RollingStartDay == 0 || ext.RollingStartMonth == 0) {
		return nil, &domain.MissingParameterError{Parameter: "rolling_start"}
	}
	if ext.FifthQuarterTotal && ext.QuarterFormat == "" {
		return nil, &domain.MissingParameterError{Parameter: "quarter_format"}
	}

	if ext.DateFormat != "" {
		return g.generateSpecificDates(ext, factValues)
	}
	return g.generatePeriods(ext, factValues)
}

// generateSpecificDates emits a 1:1 dictionary: one row per distinct
// parseable value, spanning exactly one day.
func (g *CalendarGenerator) generateSpecificDates(ext *domain.DateExtractor, factValues []string) ([]domain.DateReferenceItem, error) {
	layout, err := GoLayout(ext.DateFormat)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(factValues))
	var items []domain.DateReferenceItem
	for _, v := range factValues {
		if seen[v] {
			continue
		}
		seen[v] = true

		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		for _, lang := range g.languages {
			items = append(items, domain.DateReferenceItem{
				DateCode:    v,
				Lang:        lang,
				Description: g.dayLabel(t, lang),
				Start:       t,
				End:         t.AddDate(0, 0, 1),
				PeriodType:  domain.PeriodSpecificDay,
			})
		}
	}
	sortItems(items)
	return items, nil
}

// generatePeriods walks every period from the minimum observed year's
// type-adjusted start to one year past the maximum observed year's start.
func (g *CalendarGenerator) generatePeriods(ext *domain.DateExtractor, factValues []string) ([]domain.DateReferenceItem, error) {
	if ext.YearFormat == "" {
		return nil, &domain.MissingParameterError{Parameter: "year_format"}
	}
	minYear, maxYear, ok := yearRange(factValues)
	if !ok {
		return nil, ErrNoYearValues
	}

	var items []domain.DateReferenceItem
	for year := minYear; year <= maxYear; year++ {
		start := g.yearStart(ext, year)
		end := g.yearStart(ext, year+1)

		yearCode, err := RenderYear(ext.YearFormat, year)
		if err != nil {
			return nil, err
		}

		// With the fifth-quarter convention only quarters exist: the
		// synthetic Q5 carries the year's semantics.
		if !ext.FifthQuarterTotal {
			for _, lang := range g.languages {
				items = append(items, domain.DateReferenceItem{
					DateCode:    yearCode,
					Lang:        lang,
					Description: yearCode,
					Start:       start,
					End:         end,
					PeriodType:  domain.PeriodYear,
				})
			}
		}

		quarterCodes := make([]string, 0, 4)
		if ext.QuarterFormat != "" {
			for q := 1; q <= 4; q++ {
				code, err := RenderQuarter(ext.YearFormat, ext.QuarterFormat, year, q)
				if err != nil {
					return nil, err
				}
				quarterCodes = append(quarterCodes, code)

				parent := yearCode
				if ext.FifthQuarterTotal {
					parent = ""
				}
				qStart := start.AddDate(0, 3*(q-1), 0)
				for _, lang := range g.languages {
					items = append(items, domain.DateReferenceItem{
						DateCode:       code,
						Lang:           lang,
						Description:    fmt.Sprintf("%s %d %s", quarterWord[lang], q, yearCode),
						Start:          qStart,
						End:            qStart.AddDate(0, 3, 0),
						PeriodType:     domain.PeriodQuarter,
						ParentDateCode: parent,
					})
				}
			}

			if ext.FifthQuarterTotal {
				code, err := RenderQuarter(ext.YearFormat, ext.QuarterFormat, year, 5)
				if err != nil {
					return nil, err
				}
				for _, lang := range g.languages {
					items = append(items, domain.DateReferenceItem{
						DateCode:    code,
						Lang:        lang,
						Description: fmt.Sprintf("%s %s", annualTotalLabel[lang], yearCode),
						Start:       start,
						End:         end,
						PeriodType:  domain.PeriodAnnualTotal,
					})
				}
			}
		}

		if ext.MonthFormat != "" && !ext.FifthQuarterTotal {
			for m := 1; m <= 12; m++ {
				code, err := RenderMonth(ext.YearFormat, ext.MonthFormat, year, m)
				if err != nil {
					return nil, err
				}
				mStart := start.AddDate(0, m-1, 0)

				// Immediate parent: the containing quarter when quarters
				// exist, else the year.
				parent := yearCode
				if len(quarterCodes) == 4 {
					parent = quarterCodes[(m-1)/3]
				}
				for _, lang := range g.languages {
					items = append(items, domain.DateReferenceItem{
						DateCode:       code,
						Lang:           lang,
						Description:    g.monthLabel(mStart, lang, yearCode),
						Start:          mStart,
						End:            mStart.AddDate(0, 1, 0),
						PeriodType:     domain.PeriodMonth,
						ParentDateCode: parent,
					})
				}
			}
		}
	}

	sortItems(items)
	return items, nil
}

// yearStart returns the type-adjusted start instant of a year.
func (g *CalendarGenerator) yearStart(ext *domain.DateExtractor, year int) time.Time {
	if ext.YearType == domain.YearRolling {
		return time.Date(year, time.Month(ext.RollingStartMonth), ext.RollingStartDay, 0, 0, 0, 0, time.UTC)
	}
	month, day := ext.YearType.StartMonthDay()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (g *CalendarGenerator) dayLabel(t time.Time, lang string) string {
	names, ok := monthNames[lang]
	if !ok {
		names = monthNames["en-gb"]
	}
	return fmt.Sprintf("%d %s %d", t.Day(), names[t.Month()-1], t.Year())
}

func (g *CalendarGenerator) monthLabel(t time.Time, lang, yearCode string) string {
	names, ok := monthNames[lang]
	if !ok {
		names = monthNames["en-gb"]
	}
	return fmt.Sprintf("%s %s", names[t.Month()-1], yearCode)
}

// Coverage returns the [min(start), max(end)) window across generated items.
func Coverage(items []domain.DateReferenceItem) (start, end time.Time, ok bool) {
	for _, it := range items {
		if !ok {
			start, end, ok = it.Start, it.End, true
			continue
		}
		if it.Start.Before(start) {
			start = it.Start
		}
		if it.End.After(end) {
			end = it.End
		}
	}
	return start, end, ok
}

func yearRange(values []string) (minYear, maxYear int, ok bool) {
	for _, v := range values {
		y, valid := YearFromValue(v)
		if !valid {
			continue
		}
		if !ok {
			minYear, maxYear, ok = y, y, true
			continue
		}
		if y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	return minYear, maxYear, ok
}

func sortItems(items []domain.DateReferenceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		if items[i].DateCode != items[j].DateCode {
			return items[i].DateCode < items[j].DateCode
		}
		return items[i].Lang < items[j].Lang
	})
}
