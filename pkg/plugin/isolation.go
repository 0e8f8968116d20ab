package plugin

import (
	"errors"
	"fmt"
	"slices"
)

// IsolationStrategy enforces capability restrictions for plugins.
type IsolationStrategy interface {
	Validate(info Info, policy IsolationPolicy) error
	Prepare(info Info) error
	Cleanup(info Info) error
}

// CapabilityStrategy only checks declared capabilities against the policy.
type CapabilityStrategy struct{}

// Validate rejects unknown, denied or non-allowed capabilities.
func (CapabilityStrategy) Validate(info Info, policy IsolationPolicy) error {
	for _, c := range info.Capabilities {
		if !knownCapability(c) {
			return fmt.Errorf("plugin %s declares unknown capability %q", info.ID, c)
		}
		if slices.Contains(policy.DeniedCapabilities, c) {
			return fmt.Errorf("capability %s is explicitly denied for %s", c, info.ID)
		}
	}
	if len(policy.AllowedCapabilities) == 0 {
		return nil
	}
	for _, c := range info.Capabilities {
		if !slices.Contains(policy.AllowedCapabilities, c) {
			return fmt.Errorf("capability %s not permitted for %s", c, info.ID)
		}
	}
	return nil
}

// Prepare implements IsolationStrategy.
func (CapabilityStrategy) Prepare(Info) error { return nil }

// Cleanup implements IsolationStrategy.
func (CapabilityStrategy) Cleanup(Info) error { return nil }

// NewIsolationStrategy returns the capability strategy if none is supplied.
func NewIsolationStrategy(strategy IsolationStrategy) IsolationStrategy {
	if strategy == nil {
		return CapabilityStrategy{}
	}
	return strategy
}

// MergePolicies combines the default and plugin specific isolation policies.
func MergePolicies(defaults IsolationPolicy, plugin *IsolationPolicy) IsolationPolicy {
	if plugin == nil {
		return defaults
	}
	merged := plugin.Merge(defaults)
	if len(merged.AllowedCapabilities) == 0 && len(merged.DeniedCapabilities) == 0 {
		return defaults
	}
	return merged
}

// EnsurePolicy fails when a plugin that can sign transactions is registered
// without any explicit policy.
func EnsurePolicy(info Info, policy IsolationPolicy) error {
	if !slices.Contains(info.Capabilities, CapabilitySigning) {
		return nil
	}
	if len(policy.AllowedCapabilities) == 0 && len(policy.DeniedCapabilities) == 0 {
		return errors.New("plugins that sign transactions require an isolation policy")
	}
	return nil
}

func knownCapability(c Capability) bool {
	switch c {
	case CapabilityNetwork, CapabilitySigning, CapabilityExecution:
		return true
	}
	return false
}
