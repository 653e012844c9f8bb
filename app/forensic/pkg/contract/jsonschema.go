package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
)

// JSONSchema 把通用 Schema 转换为 JSON Schema 文档
func JSONSchema(s *llm.Schema) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if s.Nullable {
		out["type"] = []any{string(s.Type), "null"}
	} else {
		out["type"] = string(s.Type)
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		enum := make([]any, 0, len(s.Enum)+1)
		for _, v := range s.Enum {
			enum = append(enum, v)
		}
		if s.Nullable {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.Items != nil {
		out["items"] = JSONSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = JSONSchema(p)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// Compile 编译为可用于校验的 JSON Schema
func Compile(name string, s *llm.Schema) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(JSONSchema(s))
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	url := "mem://forensic/" + name + ".json"
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	return c.Compile(url)
}

func mustCompile(name string, s *llm.Schema) *jsonschema.Schema {
	sch, err := Compile(name, s)
	if err != nil {
		panic(err)
	}
	return sch
}

// PromptShape 以缩进 JSON 描述期望结构，用于不支持结构化输出的后端
func PromptShape(s *llm.Schema) string {
	b, err := json.MarshalIndent(JSONSchema(s), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StripFences 优先取 markdown 代码块中的内容，没有代码块时截取最外层的 JSON 对象
func StripFences(text string) string {
	clean := strings.TrimSpace(text)
	if body, ok := fencedBlock(clean); ok {
		clean = body
	}
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		return clean[start : end+1]
	}
	return clean
}

// fencedBlock 返回第一个代码块（优先 ```json）的内容；未闭合的代码块取到文本末尾
func fencedBlock(s string) (string, bool) {
	start := strings.Index(strings.ToLower(s), "```json")
	if start < 0 {
		start = strings.Index(s, "```")
	}
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	// 语言标记
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	body := strings.TrimSpace(rest)
	return body, body != ""
}
