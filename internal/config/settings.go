package config

import (
	"os"
	"strings"

	"OpenMCP-Arbitrum/pkg/plugin"
)

// Settings 实现 plugin.Settings：优先读取配置文件中的 settings，
// 缺失时回退到同名环境变量。
type Settings struct {
	values map[string]string
	lookup func(string) string
}

// NewSettings 基于显式取值构建 Settings。
func NewSettings(values map[string]string) *Settings {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Settings{values: copied, lookup: os.Getenv}
}

// GetSetting 返回去除首尾空白后的取值。
func (s *Settings) GetSetting(key string) string {
	if s == nil {
		return ""
	}
	if v, ok := s.values[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if s.lookup == nil {
		return ""
	}
	return strings.TrimSpace(s.lookup(key))
}

// PluginSettings 返回供插件读取的配置源。
func (c *Config) PluginSettings() plugin.Settings {
	return NewSettings(c.Settings)
}
