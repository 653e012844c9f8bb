package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func sampleReport() *model.Report {
	return &model.Report{
		ID:              "r-1",
		Verdict:         model.VerdictDisputed,
		ConfidenceScore: 64,
		EstimatedLocation: model.LocationEstimate{
			Address:         "Gaza City port",
			Latitude:        model.Float64(31.52),
			Longitude:       model.Float64(34.43),
			ConfidenceScore: 70,
			AccuracyTier:    model.TierDistrict,
		},
		EstimatedTime:    "14:00-16:00",
		Summary:          "Shadows contradict the claim.",
		ClaimedTimestamp: "2024-10-15T08:00",
		Evidence: model.Evidence{
			VisualClues:      []string{"harbour wall", "minaret"},
			LocationAnalysis: "Port geometry matches",
			TemporalAnalysis: "Shadows point east",
		},
		GroundingSources: []model.GroundingSource{{Title: "Port of Gaza", URI: "https://example.org/port"}},
		SatelliteData: &model.SatelliteResult{
			Available: true,
			Imagery: []model.SatelliteImage{{
				ID:                "p1",
				Name:              "S2B_MSIL2A",
				CaptureTimestamp:  time.Date(2024, 10, 15, 8, 34, 21, 0, time.UTC),
				CloudCoverPercent: 5.2,
				ThumbnailRef:      "/api/satellite/thumbnail/p1",
			}},
			SearchDate: "2024-10-15",
		},
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "bold & safe", CleanText("<b>bold</b> &amp; safe<script>alert(1)</script>"))
	assert.Equal(t, "", CleanText("   "))
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	r := sampleReport()
	r.Summary = "<i>Shadows</i> contradict"
	r.Evidence.VisualClues = []string{"<b>minaret</b>", "<br>"}
	te := model.TimeEstimate{Reasoning: "<p>east</p>"}
	r.TimeEstimate = &te

	out := Sanitize(*r)
	assert.Equal(t, "Shadows contradict", out.Summary)
	assert.Equal(t, []string{"minaret"}, out.Evidence.VisualClues)
	assert.Equal(t, "east", out.TimeEstimate.Reasoning)

	assert.Equal(t, "<i>Shadows</i> contradict", r.Summary)
	assert.Equal(t, "<p>east</p>", r.TimeEstimate.Reasoning)
}

func TestRenderHTML(t *testing.T) {
	r := sampleReport()
	r.Summary = `Shadows <script>x</script>`

	page, err := HTML(r, func(ref string) string { return "http://proxy:3001" + ref })
	require.NoError(t, err)
	assert.Contains(t, page, `class="verdict Disputed"`)
	assert.Contains(t, page, `src="http://proxy:3001/api/satellite/thumbnail/p1"`)
	assert.Contains(t, page, "31.52000, 34.43000")
	assert.Contains(t, page, "https://example.org/port")
	assert.NotContains(t, page, "<script>x</script>")
}

func TestRenderHTML_NoImagery(t *testing.T) {
	r := sampleReport()
	r.SatelliteData = &model.SatelliteResult{Available: false, SearchDate: "2024-10-15"}
	page, err := HTML(r, nil)
	require.NoError(t, err)
	assert.Contains(t, page, "No imagery available up to 2024-10-15")

	_, err = HTML(nil, nil)
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	out := RenderText(sampleReport())
	assert.True(t, strings.HasPrefix(out, "Verdict: Disputed (confidence 64%)"))
	assert.Contains(t, out, "  - harbour wall")
	assert.Contains(t, out, "2024-10-15T08:34:21Z S2B_MSIL2A cloud 5.2%")
	assert.Contains(t, out, "[1] Port of Gaza https://example.org/port")
}
