package plugin

import (
	"context"
	"encoding/json"
	"strings"
)

// Settings is the host's configuration store.
type Settings interface {
	GetSetting(key string) string
}

// Message is an inbound user request as seen by an action.
type Message struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Invocation bundles everything a handler needs for one call.
type Invocation struct {
	Message Message
	// Params holds the structured parameters, either supplied by the caller
	// or extracted from the message text by the host.
	Params json.RawMessage
	// State carries host composed values such as recentMessages and walletInfo.
	State map[string]string
}

// Result is the payload handed to a Callback.
type Result struct {
	Text    string `json:"text"`
	Content any    `json:"content,omitempty"`
}

// Callback receives the user visible outcome of an action.
type Callback func(Result)

// Handler runs an action. It reports the outcome through cb, both on success
// and on failure, and returns the failure so the host can record it.
type Handler func(ctx context.Context, inv Invocation, cb Callback) error

// Example is one sample exchange used for intent matching.
type Example struct {
	User    string         `json:"user"`
	Text    string         `json:"text"`
	Action  string         `json:"action,omitempty"`
	Content map[string]any `json:"content,omitempty"`
}

// Action is one named operation exposed by a plugin.
type Action struct {
	Name        string
	Description string
	Similes     []string
	Examples    [][]Example
	// Template is the parameter extraction prompt with {{recentMessages}}
	// and {{walletInfo}} placeholders.
	Template string
	Validate func(Settings) bool
	Handler  Handler
}

// Matches reports whether name refers to the action or one of its similes.
func (a Action) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(a.Name, name) {
		return true
	}
	for _, simile := range a.Similes {
		if strings.EqualFold(simile, name) {
			return true
		}
	}
	return false
}

// Provider contributes context text to prompts.
type Provider interface {
	Name() string
	Get(ctx context.Context, msg Message) (string, error)
}

// Plugin defines the surface and lifecycle hooks of a plugin implementation.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Actions lists the operations the plugin exposes.
	Actions() []Action
	// Providers lists the prompt context providers.
	Providers() []Provider
	// Start prepares long lived resources.
	Start(ctx context.Context) error
	// Stop releases resources acquired in Start.
	Stop(ctx context.Context) error
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithIsolationStrategy sets a custom isolation policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}

// RenderTemplate replaces {{key}} placeholders in tpl with vars. Unknown
// placeholders are left untouched.
func RenderTemplate(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
