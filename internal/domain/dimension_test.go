package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorEnvelopeRoundTrip(t *testing.T) {
	date := &DateExtractor{
		YearType:          YearFinancial,
		YearFormat:        "YYYY/YY",
		QuarterFormat:     "QX",
		FifthQuarterTotal: true,
	}

	data, err := MarshalExtractor(date)
	require.NoError(t, err)

	decoded, err := UnmarshalExtractor(data)
	require.NoError(t, err)

	got, ok := decoded.(*DateExtractor)
	require.True(t, ok, "expected *DateExtractor, got %T", decoded)
	assert.Equal(t, date, got)
	assert.Equal(t, DimDate, got.Kind())
}

func TestExtractorNilAndUnknownKind(t *testing.T) {
	data, err := MarshalExtractor(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	decoded, err := UnmarshalExtractor(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = UnmarshalExtractor([]byte(`{"kind":"bogus"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown extractor kind")
}

func TestDimensionTypeRequiresJoin(t *testing.T) {
	assert.True(t, DimDate.RequiresJoin())
	assert.True(t, DimLookupTable.RequiresJoin())
	assert.True(t, DimReferenceData.RequiresJoin())
	assert.True(t, DimNoteCodes.RequiresJoin())
	assert.False(t, DimRaw.RequiresJoin())
	assert.False(t, DimText.RequiresJoin())
	assert.False(t, DimNumeric.RequiresJoin())
}

func TestYearTypeStartMonthDay(t *testing.T) {
	tests := []struct {
		yt    YearType
		month int
		day   int
	}{
		{YearCalendar, 1, 1},
		{YearFinancial, 4, 1},
		{YearTax, 4, 6},
		{YearAcademic, 9, 1},
		{YearMeteorological, 3, 1},
	}
	for _, tt := range tests {
		m, d := tt.yt.StartMonthDay()
		assert.Equal(t, tt.month, int(m), "year type %s", tt.yt)
		assert.Equal(t, tt.day, d, "year type %s", tt.yt)
	}
}
