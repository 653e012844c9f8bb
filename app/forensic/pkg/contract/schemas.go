package contract

import (
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func tierValues() []string {
	out := make([]string, 0, len(model.AccuracyTiers))
	for _, t := range model.AccuracyTiers {
		out = append(out, string(t))
	}
	return out
}

func methodValues() []string {
	out := make([]string, 0, len(model.TimeMethods))
	for _, m := range model.TimeMethods {
		out = append(out, string(m))
	}
	return out
}

func verdictValues() []string {
	out := make([]string, 0, len(model.Verdicts))
	for _, v := range model.Verdicts {
		out = append(out, string(v))
	}
	return out
}

// LocationSchema 第二阶段的位置估计结构
var LocationSchema = llm.Object(map[string]*llm.Schema{
	"address":         llm.String("Most specific address or place description that the evidence supports"),
	"latitude":        llm.Number("Latitude in decimal degrees, null if unknown", -90, 90).AsNullable(),
	"longitude":       llm.Number("Longitude in decimal degrees, null if unknown", -180, 180).AsNullable(),
	"confidenceScore": llm.Integer("Confidence in the estimate, 0-100", 0, 100),
	"accuracyTier":    llm.Enum("Spatial precision of the estimate", tierValues()...),
	"reasoning":       llm.String("Short justification citing the matched clues"),
}, []string{"address", "latitude", "longitude", "confidenceScore", "accuracyTier", "reasoning"},
	"address", "confidenceScore", "accuracyTier")

// TimeSchema 第四阶段的时间估计结构
var TimeSchema = llm.Object(map[string]*llm.Schema{
	"timeOfDayRange":  llm.String("Local time window as HH:MM-HH:MM, or \"unknown\""),
	"confidenceScore": llm.Integer("Confidence in the estimate, 0-100", 0, 100),
	"primaryMethod":   llm.Enum("Main evidence used", methodValues()...),
	"reasoning":       llm.String("Step-by-step explanation"),
	"shadowDirection": llm.String("Direction and relative length of shadows, if visible"),
	"lightingQuality": llm.String("Colour temperature and quality of the light"),
	"claimConsistent": llm.Boolean("Whether the claimed timestamp is consistent with the evidence, null without a claim").AsNullable(),
}, []string{"timeOfDayRange", "confidenceScore", "primaryMethod", "reasoning", "shadowDirection", "lightingQuality", "claimConsistent"},
	"timeOfDayRange", "confidenceScore", "primaryMethod", "reasoning")

// ReportSchema 第五阶段的报告结构，不包含由流水线自行附加的字段
var ReportSchema = llm.Object(map[string]*llm.Schema{
	"verdict":           llm.Enum("Overall judgement", verdictValues()...),
	"confidenceScore":   {Type: llm.TypeNumber, Description: "Overall confidence, 0-100"},
	"estimatedLocation": LocationSchema,
	"estimatedTime":     llm.String("Estimated capture time, if determined"),
	"summary":           llm.String("Concise summary of the verification"),
	"evidence": llm.Object(map[string]*llm.Schema{
		"visualClues":       llm.Array("Key visual clues", llm.String("clue")),
		"locationAnalysis":  llm.String("How the location was determined"),
		"temporalAnalysis":  llm.String("How the time was determined and compared with the claim"),
		"satelliteAnalysis": llm.String("What the satellite availability contributes"),
	}, []string{"visualClues", "locationAnalysis", "temporalAnalysis", "satelliteAnalysis"},
		"visualClues", "locationAnalysis", "temporalAnalysis"),
}, []string{"verdict", "confidenceScore", "estimatedLocation", "estimatedTime", "summary", "evidence"},
	"verdict", "confidenceScore", "summary", "evidence")

var (
	locationValidator = mustCompile("location", LocationSchema)
	timeValidator     = mustCompile("time", TimeSchema)
	reportValidator   = mustCompile("report", reportValidationSchema())
)

// 报告的 verdict 在校验前已规范化大小写，estimatedLocation 单独校验
func reportValidationSchema() *llm.Schema {
	cp := *ReportSchema
	cp.Properties = make(map[string]*llm.Schema, len(ReportSchema.Properties))
	for k, v := range ReportSchema.Properties {
		cp.Properties[k] = v
	}
	cp.Properties["estimatedLocation"] = &llm.Schema{Type: llm.TypeObject, Nullable: true}
	return &cp
}
