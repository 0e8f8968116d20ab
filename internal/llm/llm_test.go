package llm

import (
	"context"
	"errors"
	"testing"

	xerrors "OpenMCP-Arbitrum/internal/errors"
)

func TestExtractJSONFenced(t *testing.T) {
	raw, err := ExtractJSON("Sure!\n```json\n{\"chain\": \"arbitrum\", \"amount\": \"1\"}\n```\nDone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"chain": "arbitrum", "amount": "1"}` {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestExtractJSONBare(t *testing.T) {
	raw, err := ExtractJSON(`the values are {"token": null} as requested`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"token": null}` {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestExtractJSONRejectsNonObjects(t *testing.T) {
	for _, text := range []string{"", "no json here", "```json\n[1,2]\n```", "{broken"} {
		if _, err := ExtractJSON(text); xerrors.CodeOf(err) != xerrors.CodeExtractionFailed {
			t.Fatalf("expected extraction failure for %q, got %v", text, err)
		}
	}
}

type failingClient struct{}

func (failingClient) Generate(context.Context, Request) (*Response, error) {
	return nil, errors.New("boom")
}

func TestExtractor(t *testing.T) {
	raw, err := NewExtractor(StaticClient{Content: "```json\n{\"a\":1}\n```"}).Extract(context.Background(), Request{Prompt: "p"})
	if err != nil || string(raw) != `{"a":1}` {
		t.Fatalf("unexpected result %s, %v", raw, err)
	}

	_, err = NewExtractor(failingClient{}).Extract(context.Background(), Request{})
	if xerrors.CodeOf(err) != xerrors.CodeExtractionFailed {
		t.Fatalf("expected extraction failure, got %v", err)
	}

	_, err = NewExtractor(nil).Extract(context.Background(), Request{})
	if xerrors.CodeOf(err) != xerrors.CodeExtractionFailed {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}
