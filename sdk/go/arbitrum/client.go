// Package arbitrum is a Go client for the Arbitrum actions REST API.
package arbitrum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom
// http.Client. Deployments wait for a receipt, so it is generous.
const DefaultHTTPTimeout = 3 * time.Minute

// Client wraps the HTTP interactions with the actions API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// ActionRequest is the body accepted by the execute endpoint. Either Params
// or Text must be set; Text is turned into parameters by the server.
type ActionRequest struct {
	ID             string   `json:"id,omitempty"`
	Text           string   `json:"text,omitempty"`
	Source         string   `json:"source,omitempty"`
	Params         any      `json:"params,omitempty"`
	RecentMessages []string `json:"recentMessages,omitempty"`
}

// ActionResult is the outcome of one action invocation.
type ActionResult struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Succeeded reports whether the action completed.
func (r ActionResult) Succeeded() bool { return r.Status == "succeeded" }

// DecodeContent unmarshals the structured content into out.
func (r ActionResult) DecodeContent(out any) error {
	if len(r.Content) == 0 {
		return errors.New("arbitrum: result has no content")
	}
	return json.Unmarshal(r.Content, out)
}

// ActionInfo describes one registered action.
type ActionInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Similes     []string `json:"similes,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// JournalEntry is one recorded invocation.
type JournalEntry struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Source     string          `json:"source,omitempty"`
	Status     string          `json:"status"`
	Code       string          `json:"code,omitempty"`
	Text       string          `json:"text,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Chain      string          `json:"chain,omitempty"`
	TxHash     string          `json:"txHash,omitempty"`
	DurationMS int64           `json:"durationMs"`
	CreatedAt  int64           `json:"createdAt"`
}

// APIError represents a non-2xx response that is not an action result.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("arbitrum api error (%d): %s", e.StatusCode, e.Message)
}

// ActionError is returned when the action itself failed. Result carries the
// user facing text and error code.
type ActionError struct {
	StatusCode int
	Result     ActionResult
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("arbitrum action %s failed (%d): %s - %s", e.Result.Action, e.StatusCode, e.Result.Code, e.Result.Text)
}

// NewClient instantiates a client for the API rooted at rawURL. When
// httpClient is nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the bearer token sent with each request.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token; empty disables the header.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// Actions lists the registered actions.
func (c *Client) Actions(ctx context.Context) ([]ActionInfo, error) {
	var out struct {
		Actions []ActionInfo `json:"actions"`
	}
	if err := c.get(ctx, "/api/v1/actions", nil, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// Execute runs the named action. A failed action yields *ActionError.
func (c *Client) Execute(ctx context.Context, action string, req ActionRequest) (ActionResult, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return ActionResult{}, errors.New("arbitrum: action name is empty")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ActionResult{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/actions/"+url.PathEscape(action), nil, bytes.NewReader(body))
	if err != nil {
		return ActionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ActionResult{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ActionResult{}, fmt.Errorf("read response: %w", err)
	}

	var result ActionResult
	if jsonErr := json.Unmarshal(data, &result); jsonErr != nil || result.Status == "" {
		if resp.StatusCode >= 400 {
			return ActionResult{}, newAPIError(resp.StatusCode, data)
		}
		return ActionResult{}, fmt.Errorf("decode response: %v", jsonErr)
	}
	if resp.StatusCode >= 400 || !result.Succeeded() {
		return result, &ActionError{StatusCode: resp.StatusCode, Result: result}
	}
	return result, nil
}

// Wallet returns the wallet summary shown to the model.
func (c *Client) Wallet(ctx context.Context) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.get(ctx, "/api/v1/wallet", nil, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// Journal returns up to limit recent invocations, newest first. A limit of
// zero uses the server default.
func (c *Client) Journal(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Entries []JournalEntry `json:"entries"`
	}
	if err := c.get(ctx, "/api/v1/journal", query, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
