package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

const defaultModelName = "gemini-2.5-flash"

// Config Gemini 客户端配置
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// GroundedStructuredOutput 模型支持 GoogleSearch 工具与 responseSchema 同时使用
	GroundedStructuredOutput bool
}

// Client 基于 google.golang.org/genai 的补全客户端
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	caps    llm.Capabilities
}

// Ensure Client implements llm.Completer
var _ llm.Completer = (*Client)(nil)

// NewClient 创建 Gemini 客户端
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		caps: llm.Capabilities{
			StructuredOutput:         true,
			WebGrounding:             true,
			GroundedStructuredOutput: cfg.GroundedStructuredOutput,
		},
	}, nil
}

// Capabilities implements llm.Completer
func (c *Client) Capabilities() llm.Capabilities {
	return c.caps
}

// Complete implements llm.Completer
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.model
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, model, buildContents(req), c.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}
	sources := groundingSources(resp)
	logger.Log.Debugf("[Gemini] model=%s 完成于 %v，响应长度=%d，引用来源=%d",
		model, time.Since(start), len(text), len(sources))

	return &llm.Response{Text: text, Sources: sources}, nil
}

func buildContents(req *llm.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if req.Media != nil && len(req.Media.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Media.Data, req.Media.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func (c *Client) buildConfig(req *llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.WebGrounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget))}
	}
	// 不支持组合时，联网检索优先，结构由调用方再次整理
	if req.Schema != nil && (!req.WebGrounding || c.caps.GroundedStructuredOutput) {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = ToGenAISchema(req.Schema)
	}
	return cfg
}

func groundingSources(resp *genai.GenerateContentResponse) []model.GroundingSource {
	var sources []model.GroundingSource
	seen := make(map[string]bool)
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			sources = append(sources, model.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return sources
}

// ToGenAISchema 把通用 Schema 转换为 genai.Schema
func ToGenAISchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenAIType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		Items:       ToGenAISchema(s.Items),
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = ToGenAISchema(prop)
		}
		out.PropertyOrdering = s.Order
	}
	return out
}

func toGenAIType(t llm.Type) genai.Type {
	switch t {
	case llm.TypeObject:
		return genai.TypeObject
	case llm.TypeArray:
		return genai.TypeArray
	case llm.TypeNumber:
		return genai.TypeNumber
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
