package contract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":{\"b\":2}}\nThanks", `{"a":{"b":2}}`},
		{"no object", "not json", "not json"},
		{"braces in prose before fence", "I compared {the minaret, the port} with references.\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"upper case fence", "Result:\n```JSON\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`},
		{"fence on one line", "```{\"a\":1}```", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestJSONSchema_Nullable(t *testing.T) {
	out := JSONSchema(llm.Enum("tier", "a", "b").AsNullable())
	assert.Equal(t, []any{"string", "null"}, out["type"])
	assert.Equal(t, []any{"a", "b", nil}, out["enum"])
}

func TestParseLocation(t *testing.T) {
	text := "```json\n" + `{"address":"Omar Al-Mukhtar St, Gaza City","latitude":31.515,"longitude":34.445,` +
		`"confidenceScore":72,"accuracyTier":"neighborhood","reasoning":"minaret and market"}` + "\n```"

	est, err := ParseLocation(text, "raw")
	require.NoError(t, err)

	want := model.LocationEstimate{
		Address:         "Omar Al-Mukhtar St, Gaza City",
		Latitude:        model.Float64(31.515),
		Longitude:       model.Float64(34.445),
		ConfidenceScore: 72,
		AccuracyTier:    model.TierNeighborhood,
		Reasoning:       "minaret and market",
	}
	if diff := cmp.Diff(want, est); diff != "" {
		t.Errorf("ParseLocation mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLocation_NullCoordinates(t *testing.T) {
	est, err := ParseLocation(`{"address":"Somewhere in Gaza","latitude":null,"longitude":null,"confidenceScore":40,"accuracyTier":"region"}`, "raw")
	require.NoError(t, err)
	_, _, ok := est.Coordinates()
	assert.False(t, ok)
	assert.Equal(t, 40, est.ConfidenceScore)
}

func TestParseLocation_Fallback(t *testing.T) {
	cases := map[string]string{
		"not json":         "The image shows Gaza City near the port",
		"lat out of range": `{"address":"x","latitude":120,"longitude":10,"confidenceScore":50,"accuracyTier":"city"}`,
		"unknown tier":     `{"address":"x","latitude":1,"longitude":1,"confidenceScore":50,"accuracyTier":"planet"}`,
		"missing address":  `{"latitude":1,"longitude":1,"confidenceScore":50,"accuracyTier":"city"}`,
		"array":            `[1,2,3]`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			est, err := ParseLocation(text, "  grounded prose  ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrModelOutputParse))
			assert.Equal(t, model.TierRegion, est.AccuracyTier)
			assert.Equal(t, 30, est.ConfidenceScore)
			assert.Equal(t, "grounded prose", est.Address)
			assert.Nil(t, est.Latitude)
			assert.Nil(t, est.Longitude)
		})
	}
}

func TestParseLocation_LenientEnumsAndScores(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTier  model.AccuracyTier
		wantScore int
	}{
		{"title case tier", `{"address":"Gaza City","latitude":31.5,"longitude":34.46,"confidenceScore":70,"accuracyTier":"City"}`, model.TierCity, 70},
		{"upper case tier", `{"address":"Gaza City","latitude":31.5,"longitude":34.46,"confidenceScore":70,"accuracyTier":" PRECISE "}`, model.TierPrecise, 70},
		{"fractional score", `{"address":"Gaza City","latitude":31.5,"longitude":34.46,"confidenceScore":85.5,"accuracyTier":"district"}`, model.TierDistrict, 86},
		{"score above range", `{"address":"Gaza City","latitude":31.5,"longitude":34.46,"confidenceScore":105,"accuracyTier":"city"}`, model.TierCity, 100},
		{"score below range", `{"address":"Gaza City","latitude":31.5,"longitude":34.46,"confidenceScore":-3,"accuracyTier":"city"}`, model.TierCity, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := ParseLocation(tt.text, "raw")
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, est.AccuracyTier)
			assert.Equal(t, tt.wantScore, est.ConfidenceScore)
			lat, lng, ok := est.Coordinates()
			require.True(t, ok)
			assert.Equal(t, 31.5, lat)
			assert.Equal(t, 34.46, lng)
		})
	}
}

func TestParseTime_LenientEnumsAndScores(t *testing.T) {
	est, err := ParseTime(`{"timeOfDayRange":"07:00-09:00","confidenceScore":85.5,"primaryMethod":"Shadows","reasoning":"low sun"}`)
	require.NoError(t, err)
	assert.Equal(t, model.MethodShadows, est.PrimaryMethod)
	assert.Equal(t, 86, est.ConfidenceScore)
	assert.Equal(t, "07:00-09:00", est.TimeOfDayRange)

	est, err = ParseTime(`{"timeOfDayRange":"07:00-09:00","confidenceScore":105,"primaryMethod":"LIGHTING","reasoning":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, model.MethodLighting, est.PrimaryMethod)
	assert.Equal(t, 100, est.ConfidenceScore)
}

func TestParseTime(t *testing.T) {
	est, err := ParseTime(`{"timeOfDayRange":"14:00 – 16:00","confidenceScore":65,"primaryMethod":"shadows",` +
		`"reasoning":"long shadows to the east","shadowDirection":"east, long","lightingQuality":"warm","claimConsistent":true}`)
	require.NoError(t, err)
	assert.Equal(t, "14:00-16:00", est.TimeOfDayRange)
	assert.Equal(t, model.MethodShadows, est.PrimaryMethod)
	assert.Equal(t, 65, est.ConfidenceScore)
	require.NotNil(t, est.ClaimConsistent)
	assert.True(t, *est.ClaimConsistent)
}

func TestParseTime_Fallback(t *testing.T) {
	for _, text := range []string{
		"I cannot determine the time",
		`{"timeOfDayRange":"10:00-11:00","confidenceScore":50,"primaryMethod":"error","reasoning":"x"}`,
		`{"timeOfDayRange":"10:00-11:00","confidenceScore":"high","primaryMethod":"shadows","reasoning":"x"}`,
	} {
		est, err := ParseTime(text)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrModelOutputParse)
		assert.Equal(t, model.MethodError, est.PrimaryMethod)
		assert.Equal(t, 0, est.ConfidenceScore)
		assert.Equal(t, model.UnknownTimeRange, est.TimeOfDayRange)
	}
}

func TestParseTime_MalformedRangeKeepsFields(t *testing.T) {
	est, err := ParseTime(`{"timeOfDayRange":"late afternoon","confidenceScore":40,"primaryMethod":"lighting","reasoning":"golden light"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeRange)
	assert.Equal(t, model.UnknownTimeRange, est.TimeOfDayRange)
	assert.Equal(t, model.MethodLighting, est.PrimaryMethod)
	assert.Equal(t, 40, est.ConfidenceScore)
}

func TestNormalizeTimeRange(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"14:00-16:00", "14:00-16:00", true},
		{" 9:30 - 11:00 ", "09:30-11:00", true},
		{"06:00 to 07:30", "06:00-07:30", true},
		{"Unknown", "unknown", true},
		{"25:00-26:00", "unknown", false},
		{"noon", "unknown", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeTimeRange(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

const validReport = `{
  "verdict": "disputed",
  "confidenceScore": 104.6,
  "estimatedLocation": {"address":"Gaza City","latitude":31.5,"longitude":34.45,"confidenceScore":70,"accuracyTier":"city"},
  "estimatedTime": "14:00-16:00",
  "summary": " Shadows contradict the claimed morning timestamp. ",
  "evidence": {
    "visualClues": ["minaret", "Arabic signage"],
    "locationAnalysis": "Matched the minaret",
    "temporalAnalysis": "Afternoon shadows",
    "satelliteAnalysis": "Two clear scenes available"
  }
}`

func TestParseReport(t *testing.T) {
	draft, err := ParseReport("```json\n" + validReport + "\n```")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictDisputed, draft.Verdict)
	assert.Equal(t, 100, draft.ConfidenceScore)
	assert.Equal(t, "Shadows contradict the claimed morning timestamp.", draft.Summary)
	require.NotNil(t, draft.EstimatedLocation)
	assert.Equal(t, model.TierCity, draft.EstimatedLocation.AccuracyTier)
	assert.Equal(t, []string{"minaret", "Arabic signage"}, draft.Evidence.VisualClues)
}

func TestParseReport_DropsMalformedLocation(t *testing.T) {
	draft, err := ParseReport(`{"verdict":"Inconclusive","confidenceScore":-5,"estimatedLocation":{"address":"x","accuracyTier":"galaxy"},` +
		`"summary":"s","evidence":{"visualClues":[],"locationAnalysis":"l","temporalAnalysis":"t"}}`)
	require.NoError(t, err)
	assert.Nil(t, draft.EstimatedLocation)
	assert.Equal(t, 0, draft.ConfidenceScore)
	assert.Equal(t, model.VerdictInconclusive, draft.Verdict)
}

func TestParseReport_Invalid(t *testing.T) {
	for _, text := range []string{
		"The evidence is inconclusive.",
		`{"verdict":"Probably","confidenceScore":50,"summary":"s","evidence":{"visualClues":[],"locationAnalysis":"l","temporalAnalysis":"t"}}`,
		`{"verdict":"Verified","confidenceScore":50,"summary":"s"}`,
	} {
		draft, err := ParseReport(text)
		require.Error(t, err)
		assert.Nil(t, draft)
		assert.Contains(t, err.Error(), "invalid report format")
		assert.ErrorIs(t, err, model.ErrModelOutputParse)
	}
}

func TestSplitClues(t *testing.T) {
	got := SplitClues("minaret, - Arabic signage,\n* palm trees ,, ")
	assert.Equal(t, []string{"minaret", "Arabic signage", "palm trees"}, got)
}

func TestPromptShape(t *testing.T) {
	shape := PromptShape(LocationSchema)
	assert.Contains(t, shape, `"accuracyTier"`)
	assert.Contains(t, shape, `"neighborhood"`)
}
