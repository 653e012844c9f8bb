package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/contract"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const unknownRegion = "an unspecified region"

func region(ctx string) string {
	if strings.TrimSpace(ctx) == "" {
		return unknownRegion
	}
	return strings.TrimSpace(ctx)
}

func cluePrompt(locationContext string) string {
	return fmt.Sprintf(`You are an open-source intelligence analyst performing forensic geolocation.
The image is believed to come from %s.

List every visually identifiable feature that could help locate where this image was taken.
Cover these categories:
- Architecture: building styles, materials, roof shapes, number of storeys
- Infrastructure: road markings, street furniture, power lines, vehicles and plates
- Signage: text, language, script, shop names, phone numbers
- Landmarks: towers, mosques, churches, monuments, distinctive buildings
- Vegetation and terrain: tree species, soil colour, relief, coastline
- Urban pattern: street layout, density, open spaces
- Cultural markers: clothing, flags, graffiti, advertisements
- Damage: destruction patterns, debris, craters

Respond with a single comma-separated list of concise clues. No introduction, no numbering.`, region(locationContext))
}

func geolocationPrompt(clues, locationContext string) string {
	return fmt.Sprintf(`Using web search, find the most precise location matching these visual clues observed in a photo from %s:

%s

Search for the landmarks, signage and features named above. State the most specific address or place you can justify,
its latitude and longitude in decimal degrees, how confident you are (0-100) and the precision of the match
(precise, neighborhood, district, city or region). Explain which clues the match rests on.`, region(locationContext), clues)
}

func structureLocationPrompt(analysis string, schemaInline bool) string {
	var sb strings.Builder
	sb.WriteString("Convert the following geolocation analysis into a JSON object.\n")
	sb.WriteString("Use null for latitude and longitude if no coordinates were given. Do not invent coordinates.\n\n")
	sb.WriteString("Analysis:\n")
	sb.WriteString(analysis)
	if schemaInline {
		sb.WriteString("\n\nThe JSON must match this JSON Schema:\n")
		sb.WriteString(contract.PromptShape(contract.LocationSchema))
		sb.WriteString("\nOutput only the JSON object, no markdown.")
	}
	return sb.String()
}

func timePrompt(loc model.LocationEstimate, claimed string, schemaInline bool) string {
	var sb strings.Builder
	sb.WriteString("You are a forensic analyst estimating when this photo was taken.\n\n")
	fmt.Fprintf(&sb, "Estimated location: %s (%s precision)", loc.Address, loc.AccuracyTier)
	if lat, lon, ok := loc.Coordinates(); ok {
		fmt.Fprintf(&sb, ", coordinates %.5f, %.5f", lat, lon)
	}
	sb.WriteString("\n")
	if claimed != "" {
		fmt.Fprintf(&sb, "Claimed capture time: %s\n", claimed)
	} else {
		sb.WriteString("No capture time was claimed.\n")
	}
	sb.WriteString(`
Analyse the image step by step:
1. Shadows: direction, length relative to objects, sharpness. Relate them to the sun position at this location.
2. Lighting: colour temperature, intensity, golden or blue hour, artificial light.
3. Activity: traffic, shops open or closed, people, street lighting.
4. Season: vegetation, clothing, weather.

Give the most likely local time window as HH:MM-HH:MM, or "unknown" if it cannot be determined.
Choose the primary method from shadows, lighting, activity or other.
If a capture time was claimed, state whether the evidence is consistent with it; otherwise use null.`)
	if schemaInline {
		sb.WriteString("\n\nRespond with a JSON object matching this JSON Schema:\n")
		sb.WriteString(contract.PromptShape(contract.TimeSchema))
		sb.WriteString("\nOutput only the JSON object, no markdown.")
	}
	return sb.String()
}

type satelliteSummary struct {
	Available     bool    `json:"available"`
	Count         int     `json:"count"`
	SearchDate    string  `json:"searchDate,omitempty"`
	LatestCapture string  `json:"latestCapture,omitempty"`
	LowestCloud   float64 `json:"lowestCloudCover,omitempty"`
	Skipped       bool    `json:"skipped,omitempty"`
}

type evidenceSummary struct {
	VisualClues      string                  `json:"visualClues"`
	Location         model.LocationEstimate  `json:"location"`
	TimeEstimate     model.TimeEstimate      `json:"timeEstimate"`
	ClaimedTimestamp string                  `json:"claimedTimestamp,omitempty"`
	LocationContext  string                  `json:"locationContext,omitempty"`
	GroundingSources []model.GroundingSource `json:"groundingSources"`
	Satellite        satelliteSummary        `json:"satellite"`
}

func summarize(b *model.EvidenceBundle) string {
	sum := evidenceSummary{
		VisualClues:      b.RawClues,
		Location:         b.Location,
		TimeEstimate:     b.TimeEstimate,
		ClaimedTimestamp: b.ClaimedTimestamp,
		LocationContext:  b.LocationContext,
		GroundingSources: b.GroundingSources,
		Satellite:        satelliteSummary{Skipped: b.SatelliteData == nil},
	}
	if sum.GroundingSources == nil {
		sum.GroundingSources = []model.GroundingSource{}
	}
	if sd := b.SatelliteData; sd != nil {
		sum.Satellite.Available = sd.Available
		sum.Satellite.Count = len(sd.Imagery)
		sum.Satellite.SearchDate = sd.SearchDate
		if len(sd.Imagery) > 0 {
			sum.Satellite.LatestCapture = sd.Imagery[0].CaptureTimestamp.UTC().Format("2006-01-02T15:04:05Z")
			sum.Satellite.LowestCloud = sd.Imagery[0].CloudCoverPercent
			for _, img := range sd.Imagery[1:] {
				if img.CloudCoverPercent < sum.Satellite.LowestCloud {
					sum.Satellite.LowestCloud = img.CloudCoverPercent
				}
			}
		}
	}
	b2, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b2)
}

func reportPrompt(b *model.EvidenceBundle, schemaInline bool) string {
	var sb strings.Builder
	sb.WriteString(`You are the lead analyst of a forensic verification team. Combine the findings below with your own
reading of the image into a final verification report.

Findings so far:
`)
	sb.WriteString(summarize(b))
	sb.WriteString(`

Decide a verdict:
- Verified: location and time evidence are consistent with the claim and with each other
- Disputed: the evidence contradicts the claimed time or place
- Inconclusive: the evidence is insufficient either way

Score your confidence from 0 to 100: up to 30 points for location certainty, up to 30 for temporal consistency,
up to 30 for corroborating sources and imagery, up to 10 for overall image integrity.
List the key visual clues, explain the location and temporal analysis, and describe what the satellite
availability contributes.`)
	if schemaInline {
		sb.WriteString("\n\nRespond with a JSON object matching this JSON Schema:\n")
		sb.WriteString(contract.PromptShape(contract.ReportSchema))
		sb.WriteString("\nOutput only the JSON object, no markdown.")
	}
	return sb.String()
}

// schemaFor 后端支持结构化输出时返回 schema，否则在提示词中内联描述
func schemaFor(caps llm.Capabilities, s *llm.Schema) (*llm.Schema, bool) {
	if caps.StructuredOutput {
		return s, false
	}
	return nil, true
}
