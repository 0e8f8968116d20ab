package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"
)

// Request 描述发送给大模型的一次参数抽取任务。
type Request struct {
	// Prompt 是已经填充好上下文的抽取模板。
	Prompt string
	// Action 仅用于日志与脚本侧路由。
	Action string
}

// Response 是大模型返回的原始文本。
type Response struct {
	Content string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Extractor 将模型回复中的 JSON 代码块解析为结构化参数。
type Extractor struct {
	client Client
}

// NewExtractor 使用给定模型客户端构建抽取器。
func NewExtractor(client Client) *Extractor {
	return &Extractor{client: client}
}

// Extract 调用模型并返回回复中的 JSON 对象。
func (e *Extractor) Extract(ctx context.Context, req Request) (json.RawMessage, error) {
	if e == nil || e.client == nil {
		return nil, xerrors.New(xerrors.CodeExtractionFailed, "未配置大模型客户端")
	}
	resp, err := e.client.Generate(ctx, req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExtractionFailed, err, "")
	}
	return ExtractJSON(resp.Content)
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON 优先读取 ```json 代码块，其次退回到首个 { 与末个 } 之间的文本。
func ExtractJSON(text string) (json.RawMessage, error) {
	candidate := strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	} else if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	if candidate == "" || !json.Valid([]byte(candidate)) {
		return nil, xerrors.New(xerrors.CodeExtractionFailed, "模型回复中没有有效的 JSON 对象")
	}
	var object map[string]any
	if err := json.Unmarshal([]byte(candidate), &object); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExtractionFailed, err, "模型回复必须是 JSON 对象")
	}
	return json.RawMessage(candidate), nil
}

// StaticClient 总是返回固定内容，供离线模式与测试使用。
type StaticClient struct {
	Content string
}

// Generate 实现 Client。
func (s StaticClient) Generate(context.Context, Request) (*Response, error) {
	return &Response{Content: s.Content}, nil
}
