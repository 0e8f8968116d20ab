package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"OpenMCP-Arbitrum/internal/llm"
)

const (
	defaultExecutable = "python3"
	maxStderr         = 512
)

// Config 描述外部抽取脚本的启动方式。
type Config struct {
	Executable string
	ScriptPath string
	WorkingDir string
}

// Client 通过调用外部脚本完成参数抽取，适合接入本地模型。
//
// 脚本从标准输入读取 {"prompt", "action"}，向标准输出写入
// {"content": "..."}、{"error": "..."} 或者直接输出模型回复文本。
type Client struct {
	cfg Config
}

type scriptRequest struct {
	Prompt string `json:"prompt"`
	Action string `json:"action,omitempty"`
}

type scriptReply struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// NewClient 创建脚本桥接客户端，脚本路径相对于工作目录解析。
func NewClient(cfg Config) (*Client, error) {
	cfg.ScriptPath = strings.TrimSpace(cfg.ScriptPath)
	if cfg.ScriptPath == "" {
		return nil, errors.New("未指定抽取脚本路径")
	}
	if strings.TrimSpace(cfg.Executable) == "" {
		cfg.Executable = defaultExecutable
	}
	cfg.ScriptPath = ResolveScriptPath(cfg.WorkingDir, cfg.ScriptPath)
	if _, err := os.Stat(cfg.ScriptPath); err != nil {
		return nil, fmt.Errorf("抽取脚本不可用: %w", err)
	}
	return &Client{cfg: cfg}, nil
}

// Generate 将模板写入脚本标准输入并读取回复。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	encoded, err := json.Marshal(scriptRequest{Prompt: req.Prompt, Action: req.Action})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	command := exec.CommandContext(ctx, c.cfg.Executable, c.cfg.ScriptPath)
	command.Dir = c.cfg.WorkingDir
	command.Env = append(os.Environ(), "ARBITRUM_ACTION="+req.Action)
	command.Stdin = bytes.NewReader(encoded)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("执行抽取脚本失败: %w, stderr=%s", err, tail(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	var reply scriptReply
	if err := json.Unmarshal([]byte(output), &reply); err == nil {
		if msg := strings.TrimSpace(reply.Error); msg != "" {
			return nil, fmt.Errorf("抽取脚本返回错误: %s", msg)
		}
		if content := strings.TrimSpace(reply.Content); content != "" {
			output = content
		}
	}
	if output == "" {
		return nil, errors.New("抽取脚本没有输出")
	}
	return &llm.Response{Content: output}, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}

// ResolveScriptPath 根据工作目录推导脚本路径。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" || filepath.IsAbs(script) || baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}
