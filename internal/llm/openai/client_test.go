package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"OpenMCP-Arbitrum/internal/llm"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestGenerateSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Body          struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "```json\n{\"chain\":\"arbitrum\"}\n```"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second}, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := llm.NewExtractor(client).Extract(context.Background(), llm.Request{Prompt: "extract the chain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"chain":"arbitrum"}` {
		t.Fatalf("unexpected params: %s", raw)
	}

	if !strings.HasPrefix(captured.Authorization, "Bearer ") {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if captured.Body.Model != defaultModelName {
		t.Fatalf("unexpected model %q", captured.Body.Model)
	}
	if len(captured.Body.Messages) != 2 || captured.Body.Messages[1].Content != "extract the chain" {
		t.Fatalf("prompt not forwarded: %+v", captured.Body.Messages)
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second}, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Generate(context.Background(), llm.Request{Prompt: "test"})
	if err == nil {
		t.Fatalf("expected error when http status is not success")
	}
	if !strings.Contains(err.Error(), "invalid key") {
		t.Fatalf("api error message not surfaced: %v", err)
	}
}

func TestGenerateTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "```json\n{\"chain\""}, "finish_reason": "length"},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{Prompt: "test"}); err == nil {
		t.Fatalf("expected error for truncated reply")
	}
}
