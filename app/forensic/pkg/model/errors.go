package model

import "errors"

var (
	// ErrValidation 调用方输入缺失或越界
	ErrValidation = errors.New("validation error")
	// ErrAuthConfiguration 上游凭据未配置
	ErrAuthConfiguration = errors.New("auth configuration error")
	// ErrUpstreamAuth 获取上游令牌失败
	ErrUpstreamAuth = errors.New("upstream auth error")
	// ErrUpstreamRequest 上游检索或缩略图请求失败
	ErrUpstreamRequest = errors.New("upstream request error")
	// ErrModelOutputParse 模型输出无法解析为约定结构
	ErrModelOutputParse = errors.New("model output parse error")
	// ErrRunAborted 流水线运行被未恢复的错误中止
	ErrRunAborted = errors.New("run aborted")
)

// RunError 包装中止运行的错误。Error() 原样返回底层消息。
type RunError struct {
	Phase string
	Err   error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() []error {
	return []error{ErrRunAborted, e.Err}
}
