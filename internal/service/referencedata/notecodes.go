package referencedata

import "strings"

// NoteCode is a single-letter data marker attached to observations.
type NoteCode struct {
	Code        string
	Lang        string
	Description string
}

// noteDescriptions maps each recognised marker to its per-language label.
var noteDescriptions = map[string]map[string]string{
	"a": {"en-gb": "Average", "cy-gb": "Cyfartaledd"},
	"b": {"en-gb": "Break in time series", "cy-gb": "Toriad yn y gyfres amser"},
	"c": {"en-gb": "Confidential", "cy-gb": "Cyfrinachol"},
	"e": {"en-gb": "Estimated", "cy-gb": "Amcangyfrif"},
	"f": {"en-gb": "Forecast", "cy-gb": "Rhagolwg"},
	"k": {"en-gb": "Low figure", "cy-gb": "Ffigur isel"},
	"p": {"en-gb": "Provisional", "cy-gb": "Dros dro"},
	"r": {"en-gb": "Revised", "cy-gb": "Diwygiedig"},
	"t": {"en-gb": "Total", "cy-gb": "Cyfanswm"},
	"u": {"en-gb": "Low reliability", "cy-gb": "Dibynadwyedd isel"},
	"w": {"en-gb": "Data withheld", "cy-gb": "Data wedi'i atal"},
	"x": {"en-gb": "Not available", "cy-gb": "Ddim ar gael"},
	"z": {"en-gb": "Not applicable", "cy-gb": "Ddim yn berthnasol"},
}

// noteMarkerOrder keeps generated tables in a stable order.
var noteMarkerOrder = []string{"a", "b", "c", "e", "f", "k", "p", "r", "t", "u", "w", "x", "z"}

// NoteCodes returns the full marker table for the given languages,
// defaulting to DefaultLanguages.
func NoteCodes(languages ...string) []NoteCode {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	out := make([]NoteCode, 0, len(noteMarkerOrder)*len(languages))
	for _, code := range noteMarkerOrder {
		for _, lang := range languages {
			desc, ok := noteDescriptions[code][lang]
			if !ok {
				desc = noteDescriptions[code]["en-gb"]
			}
			out = append(out, NoteCode{Code: code, Lang: lang, Description: desc})
		}
	}
	return out
}

// IsNoteMarker reports whether a single marker letter is recognised.
func IsNoteMarker(code string) bool {
	_, ok := noteDescriptions[code]
	return ok
}

// SplitNoteMarkers breaks a raw cell value into its individual markers.
// Values may concatenate letters ("ep") or separate them with commas or
// spaces ("e,p").
func SplitNoteMarkers(value string) []string {
	var markers []string
	for _, r := range strings.ToLower(value) {
		if r == ',' || r == ' ' || r == ';' {
			continue
		}
		markers = append(markers, string(r))
	}
	return markers
}

// InvalidNoteMarkers returns the distinct unrecognised markers in a raw
// cell value, in first-seen order.
func InvalidNoteMarkers(value string) []string {
	var bad []string
	seen := make(map[string]bool)
	for _, m := range SplitNoteMarkers(value) {
		if IsNoteMarker(m) || seen[m] {
			continue
		}
		seen[m] = true
		bad = append(bad, m)
	}
	return bad
}
