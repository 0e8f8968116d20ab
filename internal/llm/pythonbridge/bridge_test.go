package pythonbridge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"OpenMCP-Arbitrum/internal/llm"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "extract.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestGenerateWrappedContent(t *testing.T) {
	script := writeScript(t, t.TempDir(), "cat > /dev/null\necho '{\"content\": \"{\\\"amount\\\": \\\"1\\\"}\"}'\n")
	client, err := NewClient(Config{Executable: "/bin/sh", ScriptPath: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := llm.NewExtractor(client).Extract(context.Background(), llm.Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"amount": "1"}` {
		t.Fatalf("unexpected params: %s", raw)
	}
}

func TestGenerateEchoesRequest(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "cat\n")
	client, err := NewClient(Config{Executable: "/bin/sh", ScriptPath: "extract.sh", WorkingDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{Prompt: "hello", Action: "swap"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The echoed request has no content field, so the raw text is returned.
	if !strings.Contains(resp.Content, `"prompt":"hello"`) || !strings.Contains(resp.Content, `"action":"swap"`) {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
}

func TestGeneratePassesActionEnv(t *testing.T) {
	script := writeScript(t, t.TempDir(), "cat > /dev/null\necho \"$ARBITRUM_ACTION\"\n")
	client, err := NewClient(Config{Executable: "/bin/sh", ScriptPath: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{Prompt: "p", Action: "deploy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "deploy" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
}

func TestGenerateFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo oops >&2\nexit 3\n")
	client, err := NewClient(Config{Executable: "/bin/sh", ScriptPath: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = client.Generate(context.Background(), llm.Request{})
	if err == nil || !strings.Contains(err.Error(), "oops") {
		t.Fatalf("expected script failure with stderr, got %v", err)
	}

	reported := filepath.Join(dir, "reported.sh")
	if err := os.WriteFile(reported, []byte("#!/bin/sh\necho '{\"error\": \"model offline\"}'\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	client, err = NewClient(Config{Executable: "/bin/sh", ScriptPath: reported})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{}); err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected reported error, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected missing script error")
	}
	if _, err := NewClient(Config{ScriptPath: filepath.Join(t.TempDir(), "missing.py")}); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestResolveScriptPath(t *testing.T) {
	if got := ResolveScriptPath("/base", "s.py"); got != filepath.Join("/base", "s.py") {
		t.Fatalf("unexpected path %q", got)
	}
	if got := ResolveScriptPath("/base", "/abs/s.py"); got != "/abs/s.py" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := ResolveScriptPath("", ""); got != "" {
		t.Fatalf("unexpected path %q", got)
	}
}
