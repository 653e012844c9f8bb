package model

import (
	"time"
)

// AccuracyTier 定位精度等级
type AccuracyTier string

const (
	TierPrecise      AccuracyTier = "precise"
	TierNeighborhood AccuracyTier = "neighborhood"
	TierDistrict     AccuracyTier = "district"
	TierCity         AccuracyTier = "city"
	TierRegion       AccuracyTier = "region"
)

// AccuracyTiers 按精度从高到低排列
var AccuracyTiers = []AccuracyTier{TierPrecise, TierNeighborhood, TierDistrict, TierCity, TierRegion}

// TimeMethod 时间推断所依据的主要方法
type TimeMethod string

const (
	MethodShadows  TimeMethod = "shadows"
	MethodLighting TimeMethod = "lighting"
	MethodActivity TimeMethod = "activity"
	MethodOther    TimeMethod = "other"
	MethodError    TimeMethod = "error"
)

// TimeMethods 模型可返回的方法（error 仅由本地回退产生）
var TimeMethods = []TimeMethod{MethodShadows, MethodLighting, MethodActivity, MethodOther}

// Verdict 最终结论
type Verdict string

const (
	VerdictVerified     Verdict = "Verified"
	VerdictDisputed     Verdict = "Disputed"
	VerdictInconclusive Verdict = "Inconclusive"
)

// Verdicts 所有合法结论
var Verdicts = []Verdict{VerdictVerified, VerdictDisputed, VerdictInconclusive}

// UnknownTimeRange 无法确定时间段时的取值
const UnknownTimeRange = "unknown"

// GroundingSource 联网检索得到的引用来源
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// LocationEstimate 地理位置估计
type LocationEstimate struct {
	Address         string       `json:"address"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	ConfidenceScore int          `json:"confidenceScore"`
	AccuracyTier    AccuracyTier `json:"accuracyTier"`
	Reasoning       string       `json:"reasoning,omitempty"`
}

// Coordinates 返回坐标，没有坐标时 ok 为 false
func (l LocationEstimate) Coordinates() (lat, lon float64, ok bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// TimeEstimate 拍摄时间估计
type TimeEstimate struct {
	TimeOfDayRange  string     `json:"timeOfDayRange"`
	ConfidenceScore int        `json:"confidenceScore"`
	PrimaryMethod   TimeMethod `json:"primaryMethod"`
	Reasoning       string     `json:"reasoning"`
	ShadowDirection string     `json:"shadowDirection,omitempty"`
	LightingQuality string     `json:"lightingQuality,omitempty"`
	ClaimConsistent *bool      `json:"claimConsistent,omitempty"`
}

// Coordinate 查询坐标
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SatelliteImage 单景卫星影像描述
type SatelliteImage struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	CaptureTimestamp  time.Time `json:"date"`
	CloudCoverPercent float64   `json:"cloudCover"`
	ThumbnailRef      string    `json:"thumbnail"`
}

// SatelliteResult 影像检索结果
type SatelliteResult struct {
	Available     bool             `json:"available"`
	Imagery       []SatelliteImage `json:"imagery,omitempty"`
	QueryLocation Coordinate       `json:"queryLocation"`
	SearchDate    string           `json:"searchDate"`
}

// EvidenceBundle 单次运行内部累积的证据，只属于一次运行
type EvidenceBundle struct {
	RawClues         string
	Location         LocationEstimate
	GroundingSources []GroundingSource
	SatelliteData    *SatelliteResult
	TimeEstimate     TimeEstimate
	ClaimedTimestamp string
	LocationContext  string
}

// Evidence 报告中的证据说明
type Evidence struct {
	VisualClues       []string `json:"visualClues"`
	LocationAnalysis  string   `json:"locationAnalysis"`
	TemporalAnalysis  string   `json:"temporalAnalysis"`
	SatelliteAnalysis string   `json:"satelliteAnalysis,omitempty"`
}

// Report 最终核验报告，构造完成后不再修改
type Report struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"createdAt"`
	Verdict           Verdict           `json:"verdict"`
	ConfidenceScore   int               `json:"confidenceScore"`
	EstimatedLocation LocationEstimate  `json:"estimatedLocation"`
	EstimatedTime     string            `json:"estimatedTime,omitempty"`
	Summary           string            `json:"summary"`
	Evidence          Evidence          `json:"evidence"`
	GroundingSources  []GroundingSource `json:"groundingSources,omitempty"`
	SatelliteData     *SatelliteResult  `json:"satelliteData,omitempty"`
	TimeEstimate      *TimeEstimate     `json:"timeEstimate,omitempty"`
	ClaimedTimestamp  string            `json:"claimedTimestamp,omitempty"`
	LocationContext   string            `json:"locationContext,omitempty"`
}

// LogKind 推理日志条目类型
type LogKind string

const (
	LogInfo       LogKind = "info"
	LogProcessing LogKind = "processing"
	LogSuccess    LogKind = "success"
	LogWarning    LogKind = "warning"
	LogError      LogKind = "error"
)

// LogEntry 推理日志条目
type LogEntry struct {
	Kind      LogKind   `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// IsTerminal 是否为一次运行的终结条目
func (e LogEntry) IsTerminal() bool {
	return e.Kind == LogSuccess || e.Kind == LogError
}

// Float64 返回 v 的指针
func Float64(v float64) *float64 {
	return &v
}
