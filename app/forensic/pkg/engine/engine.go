package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/contract"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/imagery"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm/factory"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/report"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/sources"
)

// 阶段名称
const (
	PhaseClues     = "clue_extraction"
	PhaseLocation  = "geolocation"
	PhaseSatellite = "satellite"
	PhaseTime      = "timestamp"
	PhaseReport    = "report"
)

// ReportStore 报告归档
type ReportStore interface {
	SaveReport(ctx context.Context, r *model.Report) error
}

// Deps 引擎依赖，Enricher 与 Store 可为空
type Deps struct {
	Completer llm.Completer
	Imagery   imagery.Searcher
	Enricher  sources.Enricher
	Store     ReportStore
}

// Engine 证据流水线。引擎本身在运行之间不保存状态，可被多个会话共享。
type Engine struct {
	completer      llm.Completer
	imagery        imagery.Searcher
	enricher       sources.Enricher
	store          ReportStore
	limiter        *rate.Limiter
	thinkingBudget int
	reasoningModel string
	now            func() time.Time
	newID          func() string
}

// NewEngine 根据配置创建引擎实例
func NewEngine(ctx context.Context, cfg *config.Config, store ReportStore) (*Engine, error) {
	completer, err := factory.NewCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	deps := Deps{
		Completer: completer,
		Imagery: imagery.NewClient(imagery.Config{
			ProxyURL:     cfg.Imagery.ProxyURL,
			Limit:        cfg.Imagery.Limit,
			LookbackDays: cfg.Imagery.LookbackDays,
			Timeout:      time.Duration(cfg.Imagery.Timeout) * time.Second,
		}),
		Store: store,
	}
	if cfg.Pipeline.EnrichSources {
		deps.Enricher = sources.NewReadabilityEnricher(cfg.Pipeline.MaxEnrich, time.Duration(cfg.Pipeline.EnrichTimeout)*time.Second)
	}
	return NewWithDeps(cfg, deps), nil
}

// NewWithDeps 使用给定依赖创建引擎
func NewWithDeps(cfg *config.Config, deps Deps) *Engine {
	// 初始化限流器
	limit := rate.Inf
	if cfg.Concurrency.RPM > 0 {
		limit = rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	}
	burst := cfg.Concurrency.QPS
	if burst <= 0 {
		burst = 1
	}

	return &Engine{
		completer:      deps.Completer,
		imagery:        deps.Imagery,
		enricher:       deps.Enricher,
		store:          deps.Store,
		limiter:        rate.NewLimiter(limit, burst),
		thinkingBudget: cfg.LLM.ThinkingBudget,
		reasoningModel: cfg.LLM.ReasoningModel,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// RunOptions 运行选项
type RunOptions struct {
	Media            llm.Media
	ClaimedTimestamp string
	LocationContext  string
	// OnLog 按顺序接收推理日志条目
	OnLog func(entry model.LogEntry)
}

// run 单次运行的状态，证据包只属于这一次运行
type run struct {
	e      *Engine
	opts   RunOptions
	caps   llm.Capabilities
	bundle model.EvidenceBundle
}

// Run 执行一次核验，成功返回报告；失败时日志以 error 条目结束，返回 *model.RunError
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.Report, error) {
	r := &run{
		e:    e,
		opts: opts,
		caps: e.completer.Capabilities(),
		bundle: model.EvidenceBundle{
			ClaimedTimestamp: strings.TrimSpace(opts.ClaimedTimestamp),
			LocationContext:  strings.TrimSpace(opts.LocationContext),
		},
	}
	logger.Log.Infof("开始核验，区域: %q，声称时间: %q", r.bundle.LocationContext, r.bundle.ClaimedTimestamp)
	r.log(model.LogInfo, "Starting forensic analysis of %s image", mediaLabel(opts.Media.MIMEType))

	if len(opts.Media.Data) == 0 {
		return nil, r.abort(PhaseClues, fmt.Errorf("%w: no media provided", model.ErrValidation))
	}

	if err := r.extractClues(ctx); err != nil {
		return nil, err
	}
	if err := r.geolocate(ctx); err != nil {
		return nil, err
	}
	r.retrieveSatellite(ctx)
	if err := r.estimateTime(ctx); err != nil {
		return nil, err
	}
	rep, err := r.synthesize(ctx)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.SaveReport(ctx, rep); err != nil {
			logger.Log.Errorf("保存报告失败 [%s]: %v", rep.ID, err)
			r.log(model.LogWarning, "Report could not be archived: %v", err)
		}
	}
	logger.Log.Infof("核验完成 [%s]: %s (%d)", rep.ID, rep.Verdict, rep.ConfidenceScore)
	r.log(model.LogSuccess, "Analysis complete: %s with %d%% confidence", rep.Verdict, rep.ConfidenceScore)
	return rep, nil
}

func (r *run) log(kind model.LogKind, format string, args ...any) {
	if r.opts.OnLog == nil {
		return
	}
	r.opts.OnLog(model.LogEntry{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: r.e.now(),
	})
}

func (r *run) abort(phase string, err error) error {
	logger.Log.Errorf("核验中止于阶段 [%s]: %v", phase, err)
	r.log(model.LogError, "%s", err.Error())
	return &model.RunError{Phase: phase, Err: err}
}

// complete 每次补全调用前经过限流器
func (r *run) complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := r.e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.e.completer.Complete(ctx, req)
}

// completeLenient 空响应按空文本处理，交给解析阶段回退
func (r *run) completeLenient(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := r.complete(ctx, req)
	if errors.Is(err, llm.ErrEmptyResponse) {
		return &llm.Response{}, nil
	}
	return resp, err
}

func (r *run) media() *llm.Media {
	m := r.opts.Media
	return &m
}

// 1. 线索提取
func (r *run) extractClues(ctx context.Context) error {
	r.log(model.LogProcessing, "Extracting visual clues from the image...")
	resp, err := r.complete(ctx, &llm.Request{
		Prompt: cluePrompt(r.bundle.LocationContext),
		Media:  r.media(),
	})
	if err != nil {
		return r.abort(PhaseClues, fmt.Errorf("clue extraction failed: %w", err))
	}
	r.bundle.RawClues = resp.Text
	r.log(model.LogSuccess, "Identified visual clues: %s", truncate(resp.Text, 200))
	return nil
}

// 2. 联网地理定位
func (r *run) geolocate(ctx context.Context) error {
	r.log(model.LogProcessing, "Searching the web to geolocate the clues...")

	var (
		est      model.LocationEstimate
		parseErr error
		srcs     []model.GroundingSource
	)
	prompt := geolocationPrompt(r.bundle.RawClues, r.bundle.LocationContext)

	if r.caps.WebGrounding && r.caps.GroundedStructuredOutput {
		resp, err := r.completeLenient(ctx, &llm.Request{
			Prompt:       prompt,
			WebGrounding: true,
			Schema:       contract.LocationSchema,
		})
		if err != nil {
			return r.abort(PhaseLocation, fmt.Errorf("geolocation failed: %w", err))
		}
		srcs = resp.Sources
		est, parseErr = contract.ParseLocation(resp.Text, resp.Text)
	} else {
		grounded, err := r.completeLenient(ctx, &llm.Request{
			Prompt:       prompt,
			WebGrounding: r.caps.WebGrounding,
		})
		if err != nil {
			return r.abort(PhaseLocation, fmt.Errorf("geolocation failed: %w", err))
		}
		srcs = grounded.Sources

		schema, inline := schemaFor(r.caps, contract.LocationSchema)
		structured, err := r.completeLenient(ctx, &llm.Request{
			Prompt: structureLocationPrompt(grounded.Text, inline),
			Schema: schema,
		})
		if err != nil {
			return r.abort(PhaseLocation, fmt.Errorf("location structuring failed: %w", err))
		}
		est, parseErr = contract.ParseLocation(structured.Text, grounded.Text)
	}

	if r.e.enricher != nil && len(srcs) > 0 {
		srcs = r.e.enricher.Enrich(ctx, srcs)
	}
	r.bundle.GroundingSources = srcs
	r.bundle.Location = est

	if parseErr != nil {
		logger.Log.Warnf("位置结构化解析失败，使用回退估计: %v", parseErr)
		r.log(model.LogWarning, "Could not parse a structured location; using a region-level estimate (confidence %d%%)", est.ConfidenceScore)
		return nil
	}
	r.log(model.LogSuccess, "Location identified: %s (%s, confidence %d%%, %d sources)",
		est.Address, est.AccuracyTier, est.ConfidenceScore, len(srcs))
	return nil
}

// 3. 卫星影像检索，仅在有坐标时执行，失败降级为不可用
func (r *run) retrieveSatellite(ctx context.Context) {
	lat, lon, ok := r.bundle.Location.Coordinates()
	if !ok {
		r.log(model.LogInfo, "No coordinates available; skipping satellite imagery search")
		return
	}

	var date *time.Time
	if r.bundle.ClaimedTimestamp != "" {
		t, ok := ParseClaimedTimestamp(r.bundle.ClaimedTimestamp)
		if ok {
			date = &t
		} else {
			r.log(model.LogWarning, "Claimed timestamp %q not recognised; searching imagery up to today", r.bundle.ClaimedTimestamp)
		}
	}

	r.log(model.LogProcessing, "Searching satellite imagery near %.4f, %.4f...", lat, lon)
	result := r.e.imagery.Search(ctx, lat, lon, date)
	r.bundle.SatelliteData = &result

	if result.Available {
		r.log(model.LogSuccess, "Found %d satellite images up to %s", len(result.Imagery), result.SearchDate)
	} else {
		r.log(model.LogWarning, "No satellite imagery available up to %s", result.SearchDate)
	}
}

// 4. 拍摄时间判定
func (r *run) estimateTime(ctx context.Context) error {
	r.log(model.LogProcessing, "Analysing shadows and lighting to estimate the time...")

	schema, inline := schemaFor(r.caps, contract.TimeSchema)
	resp, err := r.completeLenient(ctx, &llm.Request{
		Prompt: timePrompt(r.bundle.Location, r.bundle.ClaimedTimestamp, inline),
		Media:  r.media(),
		Schema: schema,
	})
	if err != nil {
		return r.abort(PhaseTime, fmt.Errorf("time analysis failed: %w", err))
	}

	est, parseErr := contract.ParseTime(resp.Text)
	r.bundle.TimeEstimate = est
	switch {
	case errors.Is(parseErr, model.ErrModelOutputParse):
		logger.Log.Warnf("时间估计解析失败: %v", parseErr)
		r.log(model.LogWarning, "Could not parse the time analysis; time marked as unknown")
	case errors.Is(parseErr, contract.ErrTimeRange):
		r.log(model.LogWarning, "Time range was not in HH:MM-HH:MM form; recorded as unknown (method %s, confidence %d%%)",
			est.PrimaryMethod, est.ConfidenceScore)
	default:
		r.log(model.LogSuccess, "Estimated time of day: %s (method %s, confidence %d%%)",
			est.TimeOfDayRange, est.PrimaryMethod, est.ConfidenceScore)
	}
	return nil
}

// 5. 报告合成，解析失败视为致命错误
func (r *run) synthesize(ctx context.Context) (*model.Report, error) {
	r.log(model.LogProcessing, "Synthesizing the final report...")

	schema, inline := schemaFor(r.caps, contract.ReportSchema)
	resp, err := r.completeLenient(ctx, &llm.Request{
		Prompt:         reportPrompt(&r.bundle, inline),
		Media:          r.media(),
		Schema:         schema,
		ThinkingBudget: r.e.thinkingBudget,
		Model:          r.e.reasoningModel,
	})
	if err != nil {
		return nil, r.abort(PhaseReport, fmt.Errorf("report synthesis failed: %w", err))
	}

	draft, err := contract.ParseReport(resp.Text)
	if err != nil {
		return nil, r.abort(PhaseReport, err)
	}

	loc := r.bundle.Location
	if draft.EstimatedLocation != nil {
		loc = *draft.EstimatedLocation
	}
	estTime := draft.EstimatedTime
	if estTime == "" && r.bundle.TimeEstimate.TimeOfDayRange != model.UnknownTimeRange {
		estTime = r.bundle.TimeEstimate.TimeOfDayRange
	}
	var srcs []model.GroundingSource
	if len(r.bundle.GroundingSources) > 0 {
		srcs = append(srcs, r.bundle.GroundingSources...)
	}
	te := r.bundle.TimeEstimate

	rep := report.Sanitize(model.Report{
		ID:                r.e.newID(),
		CreatedAt:         r.e.now().UTC(),
		Verdict:           draft.Verdict,
		ConfidenceScore:   draft.ConfidenceScore,
		EstimatedLocation: loc,
		EstimatedTime:     estTime,
		Summary:           draft.Summary,
		Evidence:          draft.Evidence,
		GroundingSources:  srcs,
		SatelliteData:     r.bundle.SatelliteData,
		TimeEstimate:      &te,
		ClaimedTimestamp:  r.bundle.ClaimedTimestamp,
		LocationContext:   r.bundle.LocationContext,
	})
	r.log(model.LogSuccess, "Report synthesized: %s", rep.Verdict)
	return &rep, nil
}

// ParseClaimedTimestamp 解析用户声称的拍摄时间
func ParseClaimedTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, time.DateOnly, "2006-01-02T15:04", "2006-01-02 15:04", time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func mediaLabel(mime string) string {
	if mime == "" {
		return "an"
	}
	return "a " + mime
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
