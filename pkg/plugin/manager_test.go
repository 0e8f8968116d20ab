package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	info    Info
	actions []Action
	started int
	stopped int
	failing bool
}

func (s *stubPlugin) Info() Info            { return s.info }
func (s *stubPlugin) Actions() []Action     { return s.actions }
func (s *stubPlugin) Providers() []Provider { return nil }

func (s *stubPlugin) Start(context.Context) error {
	if s.failing {
		return errors.New("boom")
	}
	s.started++
	return nil
}

func (s *stubPlugin) Stop(context.Context) error {
	s.stopped++
	return nil
}

func noop(context.Context, Invocation, Callback) error { return nil }

func newStub(id string, caps ...Capability) *stubPlugin {
	return &stubPlugin{
		info: Info{ID: id, Capabilities: caps},
		actions: []Action{
			{Name: "transfer", Similes: []string{"SEND_TOKENS", "MOVE_TOKENS"}, Handler: noop},
			{Name: "getBalance", Similes: []string{"CHECK_BALANCE"}, Handler: noop},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	require.NoError(t, mgr.Register(newStub("arbitrum", CapabilityNetwork)))

	action, ok := mgr.Action("transfer")
	require.True(t, ok)
	require.Equal(t, "transfer", action.Name)

	action, ok = mgr.Action("send_tokens")
	require.True(t, ok)
	require.Equal(t, "transfer", action.Name)

	action, ok = mgr.Action("GETBALANCE")
	require.True(t, ok)
	require.Equal(t, "getBalance", action.Name)

	_, ok = mgr.Action("bridge")
	require.False(t, ok)

	require.Len(t, mgr.Actions(), 2)
	require.Equal(t, "arbitrum", mgr.Plugins()[0].ID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	require.NoError(t, mgr.Register(newStub("a")))
	require.Error(t, mgr.Register(newStub("a")))
	require.ErrorContains(t, mgr.Register(newStub("b")), "collides")
}

func TestSigningRequiresPolicy(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	require.Error(t, mgr.Register(newStub("arbitrum", CapabilitySigning)))

	mgr, err = NewManager(ManagerConfig{Defaults: IsolationPolicy{
		AllowedCapabilities: []Capability{CapabilityNetwork, CapabilitySigning},
	}})
	require.NoError(t, err)
	require.NoError(t, mgr.Register(newStub("arbitrum", CapabilitySigning)))
}

func TestPolicyDeniesCapability(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{
		Defaults: IsolationPolicy{AllowedCapabilities: []Capability{CapabilityNetwork, CapabilitySigning, CapabilityExecution}},
		Plugins: map[string]PluginConfig{
			"arbitrum": {Policy: &IsolationPolicy{DeniedCapabilities: []Capability{CapabilityExecution}}},
		},
	})
	require.NoError(t, err)
	require.ErrorContains(t, mgr.Register(newStub("arbitrum", CapabilityExecution)), "denied")
}

func TestDisabledPlugin(t *testing.T) {
	off := false
	mgr, err := NewManager(ManagerConfig{Plugins: map[string]PluginConfig{"arbitrum": {Enabled: &off}}})
	require.NoError(t, err)
	require.ErrorIs(t, mgr.Register(newStub("arbitrum")), ErrDisabled)
}

func TestLifecycle(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	stub := newStub("arbitrum")
	require.NoError(t, mgr.Register(stub))

	require.NoError(t, mgr.StartAll(context.Background()))
	require.NoError(t, mgr.StartAll(context.Background()))
	require.Equal(t, 1, stub.started)
	state, err := mgr.State("arbitrum")
	require.NoError(t, err)
	require.Equal(t, StateStarted, state)

	require.NoError(t, mgr.StopAll(context.Background()))
	require.Equal(t, 1, stub.stopped)
	state, err = mgr.State("arbitrum")
	require.NoError(t, err)
	require.Equal(t, StateStopped, state)

	_, err = mgr.State("missing")
	require.Error(t, err)
}

func TestStartFailure(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	stub := newStub("arbitrum")
	stub.failing = true
	require.NoError(t, mgr.Register(stub))
	require.ErrorContains(t, mgr.Start(context.Background(), "arbitrum"), "boom")
	state, err := mgr.State("arbitrum")
	require.NoError(t, err)
	require.Equal(t, StateRegistered, state)
}

func TestLoadManagerConfig(t *testing.T) {
	cfg, err := LoadManagerConfig("")
	require.NoError(t, err)
	require.Empty(t, cfg.Plugins)

	path := filepath.Join(t.TempDir(), "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  allowedCapabilities: [network, signing]
plugins:
  arbitrum:
    enabled: false
`), 0o600))
	cfg, err = LoadManagerConfig(path)
	require.NoError(t, err)
	require.Equal(t, []Capability{CapabilityNetwork, CapabilitySigning}, cfg.Defaults.AllowedCapabilities)
	require.False(t, cfg.Plugins["arbitrum"].IsEnabled())

	bad := ManagerConfig{Plugins: map[string]PluginConfig{"x": {Policy: &IsolationPolicy{
		AllowedCapabilities: []Capability{CapabilityNetwork},
		DeniedCapabilities:  []Capability{CapabilityNetwork},
	}}}}
	require.Error(t, bad.Validate())
}
