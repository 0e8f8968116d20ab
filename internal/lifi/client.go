// Package lifi is a small HTTP client for the LI.FI aggregation API. It
// covers token metadata lookups, route discovery and per-step transaction
// building, which is everything the swap action and symbol resolution use.
package lifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "OpenMCP-Arbitrum/internal/errors"
)

const (
	defaultBaseURL = "https://li.quest/v1"
	defaultTimeout = 30 * time.Second

	// OrderRecommended asks LI.FI to rank routes by its default preference.
	OrderRecommended = "RECOMMENDED"
)

// Config describes how to reach the LI.FI API.
type Config struct {
	BaseURL    string
	APIKey     string
	Integrator string
	Timeout    time.Duration
}

// Client talks to the LI.FI REST API.
type Client struct {
	baseURL    string
	apiKey     string
	integrator string
	httpClient *http.Client
}

// NewClient builds a client, filling defaults for empty fields.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	integrator := strings.TrimSpace(cfg.Integrator)
	if integrator == "" {
		integrator = "openmcp-arbitrum"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		integrator: integrator,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Integrator returns the integrator identifier sent with route requests.
func (c *Client) Integrator() string {
	return c.integrator
}

// Token looks up token metadata by symbol or address on chainID.
func (c *Client) Token(ctx context.Context, chainID int64, token string) (Token, error) {
	query := url.Values{}
	query.Set("chain", strconv.FormatInt(chainID, 10))
	query.Set("token", token)

	var out Token
	status, err := c.do(ctx, http.MethodGet, "/token?"+query.Encode(), nil, &out)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			return Token{}, xerrors.Wrap(xerrors.CodeTokenNotFound, err, fmt.Sprintf("token %s not found on chain %d", token, chainID))
		}
		return Token{}, err
	}
	if strings.TrimSpace(out.Address) == "" {
		return Token{}, xerrors.Newf(xerrors.CodeTokenNotFound, "token %s not found on chain %d", token, chainID)
	}
	return out, nil
}

// Routes requests candidate routes for a transfer of tokens.
func (c *Client) Routes(ctx context.Context, req RoutesRequest) ([]Route, error) {
	if req.Options.Integrator == "" {
		req.Options.Integrator = c.integrator
	}
	if req.Options.Order == "" {
		req.Options.Order = OrderRecommended
	}

	var out struct {
		Routes []Route `json:"routes"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/advanced/routes", req, &out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}

// StepTransaction fills in the transaction request of a route step.
func (c *Client) StepTransaction(ctx context.Context, step Step) (Step, error) {
	var out Step
	if _, err := c.do(ctx, http.MethodPost, "/advanced/stepTransaction", step, &out); err != nil {
		return Step{}, err
	}
	if out.TransactionRequest == nil {
		return Step{}, xerrors.Newf(xerrors.CodeSwapFailed, "step %s has no transaction request", step.ID)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encode lifi request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("build lifi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-lifi-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeRPCFailure, err, "lifi request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		var apiErr struct {
			Message string `json:"message"`
		}
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		return resp.StatusCode, xerrors.Newf(xerrors.CodeRPCFailure, "lifi returned status %d: %s", resp.StatusCode, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, xerrors.Wrap(xerrors.CodeRPCFailure, err, "decode lifi response")
	}
	return resp.StatusCode, nil
}
