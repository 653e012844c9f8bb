package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const (
	// FallbackLocationConfidence 位置解析失败时的置信度
	FallbackLocationConfidence = 30
	// InvalidReportFormat 报告解析失败时错误消息的前缀
	InvalidReportFormat = "invalid report format"
)

// ErrTimeRange 时间段不是 HH:MM-HH:MM 形式，已替换为 unknown
var ErrTimeRange = errors.New("time range not in HH:MM-HH:MM form")

var timeRangePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})$`)

// decode 去掉代码块、校验并解码到 out。fix 在校验前调整原始 JSON。
func decode(text string, sch *jsonschema.Schema, fix func(map[string]any), out any) error {
	clean := StripFences(text)
	var raw any
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return fmt.Errorf("%w: %v", model.ErrModelOutputParse, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: expected a JSON object", model.ErrModelOutputParse)
	}
	if fix != nil {
		fix(obj)
	}
	if err := sch.Validate(obj); err != nil {
		return fmt.Errorf("%w: %v", model.ErrModelOutputParse, err)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrModelOutputParse, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrModelOutputParse, err)
	}
	return nil
}

type rawLocation struct {
	Address         string   `json:"address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	ConfidenceScore float64  `json:"confidenceScore"`
	AccuracyTier    string   `json:"accuracyTier"`
	Reasoning       string   `json:"reasoning"`
}

func (r rawLocation) estimate() model.LocationEstimate {
	est := model.LocationEstimate{
		Address:         strings.TrimSpace(r.Address),
		ConfidenceScore: clampScore(r.ConfidenceScore),
		AccuracyTier:    model.AccuracyTier(r.AccuracyTier),
		Reasoning:       strings.TrimSpace(r.Reasoning),
	}
	// 只有同时给出经纬度才视为有坐标
	if r.Latitude != nil && r.Longitude != nil {
		est.Latitude = model.Float64(*r.Latitude)
		est.Longitude = model.Float64(*r.Longitude)
	}
	return est
}

// FallbackLocation 位置解析失败时的替代估计，原始文本作为地址
func FallbackLocation(rawText string) model.LocationEstimate {
	return model.LocationEstimate{
		Address:         strings.TrimSpace(rawText),
		ConfidenceScore: FallbackLocationConfidence,
		AccuracyTier:    model.TierRegion,
	}
}

// ParseLocation 解析位置估计。总会返回可用的估计，err 非空表示使用了回退值。
// fallbackText 为回退时使用的地址文本。
func ParseLocation(text, fallbackText string) (model.LocationEstimate, error) {
	var raw rawLocation
	if err := decode(text, locationValidator, fixLocation, &raw); err != nil {
		return FallbackLocation(fallbackText), err
	}
	return raw.estimate(), nil
}

type rawTime struct {
	TimeOfDayRange  string  `json:"timeOfDayRange"`
	ConfidenceScore float64 `json:"confidenceScore"`
	PrimaryMethod   string  `json:"primaryMethod"`
	Reasoning       string  `json:"reasoning"`
	ShadowDirection string  `json:"shadowDirection"`
	LightingQuality string  `json:"lightingQuality"`
	ClaimConsistent *bool   `json:"claimConsistent"`
}

// FallbackTime 时间解析失败时的替代估计
func FallbackTime(reason string) model.TimeEstimate {
	return model.TimeEstimate{
		TimeOfDayRange:  model.UnknownTimeRange,
		ConfidenceScore: 0,
		PrimaryMethod:   model.MethodError,
		Reasoning:       reason,
	}
}

// ParseTime 解析时间估计。总会返回可用的估计：
// 无法解析时返回回退值和 ErrModelOutputParse；
// 时间段格式不合法时只把时间段替换为 unknown 并返回 ErrTimeRange。
func ParseTime(text string) (model.TimeEstimate, error) {
	var raw rawTime
	if err := decode(text, timeValidator, fixTime, &raw); err != nil {
		return FallbackTime("Time analysis output could not be parsed"), err
	}
	est := model.TimeEstimate{
		ConfidenceScore: clampScore(raw.ConfidenceScore),
		PrimaryMethod:   model.TimeMethod(raw.PrimaryMethod),
		Reasoning:       strings.TrimSpace(raw.Reasoning),
		ShadowDirection: strings.TrimSpace(raw.ShadowDirection),
		LightingQuality: strings.TrimSpace(raw.LightingQuality),
		ClaimConsistent: raw.ClaimConsistent,
	}
	rng, ok := NormalizeTimeRange(raw.TimeOfDayRange)
	est.TimeOfDayRange = rng
	if !ok {
		return est, fmt.Errorf("%w: %q", ErrTimeRange, raw.TimeOfDayRange)
	}
	return est, nil
}

// NormalizeTimeRange 规范化时间段为 HH:MM-HH:MM，ok 为 false 时返回 unknown
func NormalizeTimeRange(s string) (string, bool) {
	clean := strings.TrimSpace(s)
	if strings.EqualFold(clean, model.UnknownTimeRange) {
		return model.UnknownTimeRange, true
	}
	clean = strings.NewReplacer("–", "-", "—", "-", " to ", "-").Replace(clean)
	clean = strings.Join(strings.Fields(clean), "")

	m := timeRangePattern.FindStringSubmatch(clean)
	if m == nil {
		return model.UnknownTimeRange, false
	}
	var parts [4]int
	for i := range parts {
		parts[i], _ = strconv.Atoi(m[i+1])
	}
	if parts[0] > 23 || parts[2] > 23 || parts[1] > 59 || parts[3] > 59 {
		return model.UnknownTimeRange, false
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", parts[0], parts[1], parts[2], parts[3]), true
}

// ReportDraft 模型给出的报告主体，分组来源与卫星数据由流水线附加
type ReportDraft struct {
	Verdict           model.Verdict
	ConfidenceScore   int
	EstimatedLocation *model.LocationEstimate
	EstimatedTime     string
	Summary           string
	Evidence          model.Evidence
}

type rawReport struct {
	Verdict           string         `json:"verdict"`
	ConfidenceScore   float64        `json:"confidenceScore"`
	EstimatedLocation *rawLocation   `json:"estimatedLocation"`
	EstimatedTime     string         `json:"estimatedTime"`
	Summary           string         `json:"summary"`
	Evidence          model.Evidence `json:"evidence"`
}

// ParseReport 解析最终报告，失败时返回包含 "invalid report format" 的错误
func ParseReport(text string) (*ReportDraft, error) {
	var raw rawReport
	if err := decode(text, reportValidator, fixReport, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", InvalidReportFormat, err)
	}
	draft := &ReportDraft{
		Verdict:         model.Verdict(raw.Verdict),
		ConfidenceScore: clampScore(raw.ConfidenceScore),
		EstimatedTime:   strings.TrimSpace(raw.EstimatedTime),
		Summary:         strings.TrimSpace(raw.Summary),
		Evidence:        raw.Evidence,
	}
	if draft.Evidence.VisualClues == nil {
		draft.Evidence.VisualClues = []string{}
	}
	if raw.EstimatedLocation != nil {
		loc := raw.EstimatedLocation.estimate()
		draft.EstimatedLocation = &loc
	}
	return draft, nil
}

// fixLocation 规范化 accuracyTier 大小写，confidenceScore 取整并截断到 0-100
func fixLocation(obj map[string]any) {
	foldEnum(obj, "accuracyTier", model.AccuracyTiers)
	fixScore(obj)
}

// fixTime 规范化 primaryMethod 大小写，confidenceScore 取整并截断到 0-100
func fixTime(obj map[string]any) {
	foldEnum(obj, "primaryMethod", model.TimeMethods)
	fixScore(obj)
}

// fixReport 规范化 verdict 大小写；estimatedLocation 不合法时丢弃，由流水线补上
func fixReport(obj map[string]any) {
	foldEnum(obj, "verdict", model.Verdicts)
	fixScore(obj)
	if loc, ok := obj["estimatedLocation"].(map[string]any); ok {
		fixLocation(loc)
	}
	if loc, ok := obj["estimatedLocation"]; ok && loc != nil {
		if err := locationValidator.Validate(loc); err != nil {
			delete(obj, "estimatedLocation")
		}
	}
}

func foldEnum[T ~string](obj map[string]any, key string, canon []T) {
	v, ok := obj[key].(string)
	if !ok {
		return
	}
	for _, c := range canon {
		if strings.EqualFold(strings.TrimSpace(v), string(c)) {
			obj[key] = string(c)
			return
		}
	}
}

func fixScore(obj map[string]any) {
	if v, ok := obj["confidenceScore"].(float64); ok {
		obj["confidenceScore"] = float64(clampScore(v))
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// SplitClues 把逗号分隔的线索文本拆成列表
func SplitClues(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		clue := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*•"))
		if clue != "" {
			out = append(out, clue)
		}
	}
	return out
}
