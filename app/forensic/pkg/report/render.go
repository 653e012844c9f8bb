package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

// ThumbnailResolver 把缩略图引用转换为可访问的地址
type ThumbnailResolver func(ref string) string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"coords": formatCoords,
	"date":   func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Forensic report {{.Report.ID}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:860px;margin:2rem auto;color:#1f2933}
.verdict{display:inline-block;padding:.2rem .8rem;border-radius:4px;color:#fff;font-weight:600}
.Verified{background:#2f855a}.Disputed{background:#c53030}.Inconclusive{background:#b7791f}
.thumbs img{width:160px;margin:.3rem;border:1px solid #ccc}
dt{font-weight:600;margin-top:.6rem}
</style>
</head>
<body>
<h1>Verification report</h1>
<p><span class="verdict {{.Report.Verdict}}">{{.Report.Verdict}}</span> confidence {{.Report.ConfidenceScore}}%</p>
<p>{{.Report.Summary}}</p>
<dl>
<dt>Estimated location</dt>
<dd>{{.Report.EstimatedLocation.Address}} ({{.Report.EstimatedLocation.AccuracyTier}}, {{.Report.EstimatedLocation.ConfidenceScore}}%){{with coords .Report.EstimatedLocation}} at {{.}}{{end}}</dd>
{{- if .Report.EstimatedTime}}
<dt>Estimated time</dt>
<dd>{{.Report.EstimatedTime}}</dd>
{{- end}}
{{- if .Report.ClaimedTimestamp}}
<dt>Claimed timestamp</dt>
<dd>{{.Report.ClaimedTimestamp}}</dd>
{{- end}}
</dl>
<h2>Evidence</h2>
<h3>Visual clues</h3>
<ul>{{range .Report.Evidence.VisualClues}}<li>{{.}}</li>{{end}}</ul>
<h3>Location analysis</h3>
<p>{{.Report.Evidence.LocationAnalysis}}</p>
<h3>Temporal analysis</h3>
<p>{{.Report.Evidence.TemporalAnalysis}}</p>
{{- if .Report.Evidence.SatelliteAnalysis}}
<h3>Satellite analysis</h3>
<p>{{.Report.Evidence.SatelliteAnalysis}}</p>
{{- end}}
{{- with .Report.SatelliteData}}
<h2>Satellite imagery</h2>
{{- if .Available}}
<div class="thumbs">{{range $.Images}}<figure><img src="{{.URL}}" alt="{{.Name}}"><figcaption>{{date .Captured}}, cloud {{printf "%.1f" .CloudCover}}%</figcaption></figure>{{end}}</div>
{{- else}}
<p>No imagery available up to {{.SearchDate}}.</p>
{{- end}}
{{- end}}
{{- if .Report.GroundingSources}}
<h2>Sources</h2>
<ol>{{range .Report.GroundingSources}}<li><a href="{{.URI}}" rel="noopener noreferrer">{{if .Title}}{{.Title}}{{else}}{{.URI}}{{end}}</a></li>{{end}}</ol>
{{- end}}
</body>
</html>
`))

type imageView struct {
	Name       string
	URL        string
	Captured   time.Time
	CloudCover float64
}

type htmlView struct {
	Report *model.Report
	Images []imageView
}

// RenderHTML 把报告渲染为独立的 HTML 页面
func RenderHTML(w io.Writer, r *model.Report, resolve ThumbnailResolver) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	view := htmlView{Report: r}
	if r.SatelliteData != nil {
		for _, img := range r.SatelliteData.Imagery {
			u := img.ThumbnailRef
			if resolve != nil {
				u = resolve(u)
			}
			view.Images = append(view.Images, imageView{
				Name:       img.Name,
				URL:        u,
				Captured:   img.CaptureTimestamp,
				CloudCover: img.CloudCoverPercent,
			})
		}
	}
	return htmlTemplate.Execute(w, view)
}

// RenderText 以纯文本形式输出报告，用于命令行
func RenderText(r *model.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verdict: %s (confidence %d%%)\n", r.Verdict, r.ConfidenceScore)
	fmt.Fprintf(&sb, "Summary: %s\n\n", r.Summary)

	loc := r.EstimatedLocation
	fmt.Fprintf(&sb, "Location: %s [%s, %d%%]", loc.Address, loc.AccuracyTier, loc.ConfidenceScore)
	if c := formatCoords(loc); c != "" {
		fmt.Fprintf(&sb, " at %s", c)
	}
	sb.WriteString("\n")
	if r.EstimatedTime != "" {
		fmt.Fprintf(&sb, "Time: %s\n", r.EstimatedTime)
	}
	if r.ClaimedTimestamp != "" {
		fmt.Fprintf(&sb, "Claimed: %s\n", r.ClaimedTimestamp)
	}

	sb.WriteString("\nVisual clues:\n")
	for _, c := range r.Evidence.VisualClues {
		fmt.Fprintf(&sb, "  - %s\n", c)
	}
	fmt.Fprintf(&sb, "\nLocation analysis: %s\n", r.Evidence.LocationAnalysis)
	fmt.Fprintf(&sb, "Temporal analysis: %s\n", r.Evidence.TemporalAnalysis)
	if r.Evidence.SatelliteAnalysis != "" {
		fmt.Fprintf(&sb, "Satellite analysis: %s\n", r.Evidence.SatelliteAnalysis)
	}

	if sd := r.SatelliteData; sd != nil {
		if sd.Available {
			fmt.Fprintf(&sb, "\nSatellite imagery (%d):\n", len(sd.Imagery))
			for _, img := range sd.Imagery {
				fmt.Fprintf(&sb, "  - %s %s cloud %.1f%%\n", img.CaptureTimestamp.UTC().Format(time.RFC3339), img.Name, img.CloudCoverPercent)
			}
		} else {
			fmt.Fprintf(&sb, "\nSatellite imagery: none available up to %s\n", sd.SearchDate)
		}
	}
	if len(r.GroundingSources) > 0 {
		sb.WriteString("\nSources:\n")
		for i, s := range r.GroundingSources {
			fmt.Fprintf(&sb, "  [%d] %s %s\n", i+1, s.Title, s.URI)
		}
	}
	return sb.String()
}

// HTML 渲染为字符串
func HTML(r *model.Report, resolve ThumbnailResolver) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, r, resolve); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatCoords(loc model.LocationEstimate) string {
	lat, lon, ok := loc.Coordinates()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}
