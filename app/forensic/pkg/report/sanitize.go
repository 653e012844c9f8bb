package report

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

var strict = bluemonday.StrictPolicy()

// CleanText 去掉模型文本中的 HTML 标记，返回纯文本
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Sanitize 返回清理过文本字段的报告副本，原报告不变
func Sanitize(r model.Report) model.Report {
	out := r
	out.Summary = CleanText(r.Summary)
	out.EstimatedTime = CleanText(r.EstimatedTime)
	out.EstimatedLocation.Address = CleanText(r.EstimatedLocation.Address)
	out.EstimatedLocation.Reasoning = CleanText(r.EstimatedLocation.Reasoning)

	out.Evidence = model.Evidence{
		LocationAnalysis:  CleanText(r.Evidence.LocationAnalysis),
		TemporalAnalysis:  CleanText(r.Evidence.TemporalAnalysis),
		SatelliteAnalysis: CleanText(r.Evidence.SatelliteAnalysis),
		VisualClues:       make([]string, 0, len(r.Evidence.VisualClues)),
	}
	for _, clue := range r.Evidence.VisualClues {
		if c := CleanText(clue); c != "" {
			out.Evidence.VisualClues = append(out.Evidence.VisualClues, c)
		}
	}

	if r.GroundingSources != nil {
		out.GroundingSources = make([]model.GroundingSource, len(r.GroundingSources))
		for i, s := range r.GroundingSources {
			out.GroundingSources[i] = model.GroundingSource{Title: CleanText(s.Title), URI: s.URI}
		}
	}
	if r.TimeEstimate != nil {
		te := *r.TimeEstimate
		te.Reasoning = CleanText(te.Reasoning)
		te.ShadowDirection = CleanText(te.ShadowDirection)
		te.LightingQuality = CleanText(te.LightingQuality)
		out.TimeEstimate = &te
	}
	return out
}
