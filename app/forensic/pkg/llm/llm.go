package llm

import (
	"context"
	"errors"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

// ErrEmptyResponse 补全服务返回了空文本
var ErrEmptyResponse = errors.New("llm: empty response")

// Completer 定义通用的多模态补全接口
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Capabilities 返回后端支持的能力，流水线据此选择单次结构化调用或两段式兼容模式
	Capabilities() Capabilities
}

// Capabilities 补全后端能力
type Capabilities struct {
	StructuredOutput bool
	WebGrounding     bool
	// GroundedStructuredOutput 联网检索与结构化输出可在同一次调用中组合
	GroundedStructuredOutput bool
}

// Media 内联媒体
type Media struct {
	Data     []byte
	MIMEType string
}

// Request 通用补全请求
type Request struct {
	Prompt string
	Media  *Media
	// WebGrounding 启用联网检索并返回引用来源
	WebGrounding bool
	// ThinkingBudget 扩展推理预算，0 表示不启用
	ThinkingBudget int
	// Schema 非空时要求输出符合该结构的 JSON
	Schema *Schema
	// Model 为空时使用后端默认模型
	Model string
}

// Response 通用补全响应
type Response struct {
	Text    string
	Sources []model.GroundingSource
}
