package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/config"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm/gemini"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm/openai"
)

// NewCompleter 根据配置创建补全客户端
func NewCompleter(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	switch cfg.Provider {
	case "", "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini api key is missing")
		}
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:                   cfg.APIKey,
			Model:                    cfg.Model,
			BaseURL:                  cfg.BaseURL,
			Timeout:                  timeout,
			GroundedStructuredOutput: cfg.GroundedStructuredOutput,
		})

	case "openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai base url is missing")
		}
		return openai.NewClient(ctx, openai.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		})

	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
