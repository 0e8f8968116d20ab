package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDisabled is returned when configuration disables a plugin.
var ErrDisabled = errors.New("plugin disabled by configuration")

// Manager keeps track of registered plugins, orchestrates their lifecycle
// and resolves action names across them.
type Manager struct {
	mu        sync.RWMutex
	order     []string
	registry  map[string]*instance
	isolation IsolationStrategy
	cfg       ManagerConfig
}

type instance struct {
	mu     sync.Mutex
	Plugin Plugin
	Info   Info
	State  State
	Policy IsolationPolicy
}

// NewManager constructs a manager using the supplied configuration and options.
func NewManager(cfg ManagerConfig, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		registry: make(map[string]*instance),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.isolation = NewIsolationStrategy(m.isolation)
	return m, nil
}

// Register registers a plugin instance with the manager. The policy comes
// from the configuration block matching the plugin id, merged over defaults.
func (m *Manager) Register(p Plugin) error {
	if p == nil {
		return errors.New("plugin implementation cannot be nil")
	}
	info := p.Info()
	if info.ID == "" {
		return errors.New("plugin id cannot be empty")
	}
	var override *IsolationPolicy
	if pc, ok := m.cfg.Plugins[info.ID]; ok {
		if !pc.IsEnabled() {
			return fmt.Errorf("%w: %s", ErrDisabled, info.ID)
		}
		override = pc.Policy
	}
	policy := MergePolicies(m.cfg.Defaults, override)
	if err := EnsurePolicy(info, policy); err != nil {
		return err
	}
	if err := m.isolation.Validate(info, policy); err != nil {
		return err
	}

	actions := p.Actions()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[info.ID]; exists {
		return fmt.Errorf("plugin %s already registered", info.ID)
	}
	for _, action := range actions {
		if action.Name == "" || action.Handler == nil {
			return fmt.Errorf("plugin %s exposes an action without name or handler", info.ID)
		}
		if owner, ok := m.lookupLocked(action.Name); ok {
			return fmt.Errorf("action %s of plugin %s collides with plugin %s", action.Name, info.ID, owner)
		}
	}
	m.registry[info.ID] = &instance{Plugin: p, Info: info, State: StateRegistered, Policy: policy}
	m.order = append(m.order, info.ID)
	return nil
}

// Start starts a plugin by id.
func (m *Manager) Start(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State == StateStarted {
		return nil
	}
	if err := m.isolation.Prepare(inst.Info); err != nil {
		return fmt.Errorf("prepare isolation for %s: %w", id, err)
	}
	if err := inst.Plugin.Start(ctx); err != nil {
		_ = m.isolation.Cleanup(inst.Info)
		return fmt.Errorf("start plugin %s: %w", id, err)
	}
	inst.State = StateStarted
	return nil
}

// Stop halts a plugin if it is running.
func (m *Manager) Stop(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State != StateStarted {
		return nil
	}
	if err := inst.Plugin.Stop(ctx); err != nil {
		return fmt.Errorf("stop plugin %s: %w", id, err)
	}
	if err := m.isolation.Cleanup(inst.Info); err != nil {
		return fmt.Errorf("cleanup isolation for %s: %w", id, err)
	}
	inst.State = StateStopped
	return nil
}

// StartAll starts all registered plugins in registration order.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, id := range m.ids() {
		if err := m.Start(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all active plugins in reverse registration order.
func (m *Manager) StopAll(ctx context.Context) error {
	ids := m.ids()
	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := m.Stop(ctx, ids[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State returns the lifecycle state of a plugin.
func (m *Manager) State(id string) (State, error) {
	inst, err := m.get(id)
	if err != nil {
		return "", err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.State, nil
}

// Action resolves name against action names first and similes second.
func (m *Manager) Action(name string) (Action, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		for _, action := range m.registry[id].Plugin.Actions() {
			if action.Name == name {
				return action, true
			}
		}
	}
	for _, id := range m.order {
		for _, action := range m.registry[id].Plugin.Actions() {
			if action.Matches(name) {
				return action, true
			}
		}
	}
	return Action{}, false
}

// Actions lists every registered action in registration order.
func (m *Manager) Actions() []Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Action
	for _, id := range m.order {
		out = append(out, m.registry[id].Plugin.Actions()...)
	}
	return out
}

// Providers lists every registered provider in registration order.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Provider
	for _, id := range m.order {
		out = append(out, m.registry[id].Plugin.Providers()...)
	}
	return out
}

// Plugins returns the metadata of registered plugins.
func (m *Manager) Plugins() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.registry[id].Info)
	}
	return out
}

func (m *Manager) lookupLocked(name string) (string, bool) {
	for _, id := range m.order {
		for _, action := range m.registry[id].Plugin.Actions() {
			if action.Matches(name) {
				return id, true
			}
		}
	}
	return "", false
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) get(id string) (*instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.registry[id]
	if !ok {
		return nil, fmt.Errorf("plugin %s not registered", id)
	}
	return inst, nil
}
