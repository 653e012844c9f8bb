package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/ctrevinoi1/forensic-locator/app/display/internal/conf"
	"github.com/ctrevinoi1/forensic-locator/app/display/internal/data"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/imagery"
	fLogger "github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/report"
)

// PipelineConfig 将 internal/conf.Forensic 转换为 pkg/config.Config，并补齐环境变量与默认值
func PipelineConfig(c *conf.Forensic) *config.Config {
	cfg := &config.Config{}
	if c != nil {
		if c.Llm != nil {
			cfg.LLM = config.LLMConfig{
				Provider:                 c.Llm.Provider,
				BaseURL:                  c.Llm.BaseUrl,
				APIKey:                   c.Llm.ApiKey,
				Model:                    c.Llm.Model,
				ReasoningModel:           c.Llm.ReasoningModel,
				ThinkingBudget:           int(c.Llm.ThinkingBudget),
				GroundedStructuredOutput: c.Llm.GroundedStructuredOutput,
				Timeout:                  int(c.Llm.Timeout),
			}
		}
		if c.Imagery != nil {
			cfg.Imagery = config.ImageryConfig{
				ProxyURL:     c.Imagery.ProxyUrl,
				Limit:        int(c.Imagery.Limit),
				LookbackDays: int(c.Imagery.LookbackDays),
				Timeout:      int(c.Imagery.Timeout),
			}
		}
		if c.Pipeline != nil {
			cfg.Pipeline = config.PipelineConfig{
				EnrichSources: c.Pipeline.EnrichSources,
				MaxEnrich:     int(c.Pipeline.MaxEnrich),
				EnrichTimeout: int(c.Pipeline.EnrichTimeout),
			}
		}
		if c.Log != nil {
			cfg.Log = config.LogConfig{Level: c.Log.Level, File: c.Log.File}
		}
		if c.Concurrency != nil {
			cfg.Concurrency = config.ConcurrencyConfig{
				QPS: int(c.Concurrency.Qps),
				RPM: int(c.Concurrency.Rpm),
			}
		}
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// NewForensicEngine 初始化核验引擎，报告归档复用 data 层的连接
func NewForensicEngine(c *conf.Forensic, d *data.Data, logger log.Logger) (*engine.Engine, func(), error) {
	cfg := PipelineConfig(c)

	// 初始化日志
	if err := fLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.NewHelper(logger).Errorf("Failed to init forensic logger: %v", err)
		_ = fLogger.InitLogger("info", "") // 降级处理
	}

	eng, err := engine.NewEngine(context.Background(), cfg, d.ReportStore())
	if err != nil {
		log.NewHelper(logger).Errorf("Failed to init engine: %v", err)
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("Cleaning up forensic engine")
	}
	return eng, cleanup, nil
}

// NewThumbnailResolver 报告中的缩略图指向影像代理
func NewThumbnailResolver(c *conf.Forensic) report.ThumbnailResolver {
	cfg := PipelineConfig(c)
	return imagery.NewClient(imagery.Config{ProxyURL: cfg.Imagery.ProxyURL}).ThumbnailURL
}
