package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/logger"
)

const jsonSystemPrompt = "You are a JSON generator. Output only a JSON object, no markdown."

// Config OpenAI 兼容协议客户端配置
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client 基于 eino ChatModel 的补全客户端。
// 不支持联网检索和结构化输出，流水线对它使用两段式兼容模式。
type Client struct {
	chatModel model.ChatModel
	model     string
}

// Ensure Client implements llm.Completer
var _ llm.Completer = (*Client)(nil)

// NewClient 创建 OpenAI 兼容客户端
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai: model not configured")
	}
	chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return NewWithChatModel(chatModel, cfg.Model), nil
}

// NewWithChatModel 使用已有的 ChatModel 构造客户端
func NewWithChatModel(cm model.ChatModel, modelName string) *Client {
	return &Client{chatModel: cm, model: modelName}
}

// Capabilities implements llm.Completer
func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{}
}

// Complete implements llm.Completer
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req.WebGrounding {
		logger.Log.Debugf("[OpenAI] 后端 %s 不支持联网检索，按普通补全处理", c.model)
	}

	messages := make([]*schema.Message, 0, 2)
	if req.Schema != nil {
		messages = append(messages, &schema.Message{Role: schema.System, Content: jsonSystemPrompt})
	}
	messages = append(messages, buildUserMessage(req))

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}
	return &llm.Response{Text: text}, nil
}

func buildUserMessage(req *llm.Request) *schema.Message {
	if req.Media == nil || len(req.Media.Data) == 0 {
		return &schema.Message{Role: schema.User, Content: req.Prompt}
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.Media.MIMEType, base64.StdEncoding.EncodeToString(req.Media.Data))
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    dataURI,
					Detail: schema.ImageURLDetailAuto,
				},
			},
			{Type: schema.ChatMessagePartTypeText, Text: req.Prompt},
		},
	}
}
