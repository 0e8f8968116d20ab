package plugin

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManagerConfig describes how the plugin manager should behave.
type ManagerConfig struct {
	Defaults IsolationPolicy         `yaml:"defaults"`
	Plugins  map[string]PluginConfig `yaml:"plugins"`
}

// PluginConfig is the configuration block for a single plugin instance.
type PluginConfig struct {
	Enabled *bool            `yaml:"enabled"`
	Policy  *IsolationPolicy `yaml:"policy"`
}

// IsEnabled treats a missing flag as enabled.
func (c PluginConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IsolationPolicy governs the capabilities granted to a plugin.
type IsolationPolicy struct {
	AllowedCapabilities []Capability `yaml:"allowedCapabilities"`
	DeniedCapabilities  []Capability `yaml:"deniedCapabilities"`
}

// Merge returns a new policy using values from other when not present.
func (p IsolationPolicy) Merge(other IsolationPolicy) IsolationPolicy {
	if len(p.AllowedCapabilities) == 0 {
		p.AllowedCapabilities = other.AllowedCapabilities
	}
	if len(p.DeniedCapabilities) == 0 {
		p.DeniedCapabilities = other.DeniedCapabilities
	}
	return p
}

// LoadManagerConfig reads a YAML file into a ManagerConfig. An empty path
// yields a permissive configuration.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	cfg := ManagerConfig{Plugins: map[string]PluginConfig{}}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read plugin config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal plugin config: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg, nil
}

// Validate ensures the manager configuration is internally consistent.
func (c ManagerConfig) Validate() error {
	for id, plugin := range c.Plugins {
		if id == "" {
			return errors.New("plugin id cannot be empty")
		}
		if plugin.Policy == nil {
			continue
		}
		for _, denied := range plugin.Policy.DeniedCapabilities {
			for _, allowed := range plugin.Policy.AllowedCapabilities {
				if denied == allowed {
					return fmt.Errorf("plugin %s both allows and denies capability %s", id, denied)
				}
			}
		}
	}
	return nil
}
