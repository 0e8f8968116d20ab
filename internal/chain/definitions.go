package chain

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions models the structure of configs/chains.yaml.
type Definitions struct {
	Chains map[string]Definition `yaml:"chains"`
}

// Definition describes one extra EVM network or overrides a built-in one.
type Definition struct {
	ID          int64          `yaml:"id"`
	DisplayName string         `yaml:"display_name"`
	RPCURL      string         `yaml:"rpc_url"`
	Explorer    string         `yaml:"explorer"`
	Testnet     bool           `yaml:"testnet"`
	Currency    NativeCurrency `yaml:"native_currency"`
}

// LoadDefinitions parses the YAML file containing chain metadata. An empty
// path yields an empty set.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Chains: map[string]Definition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]Definition{}
	}
	return defs, nil
}

// Apply registers every definition on r. Fields left empty on an override of
// an existing chain keep their built-in value.
func (d Definitions) Apply(r *Registry) error {
	names := make([]string, 0, len(d.Chains))
	for name := range d.Chains {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := d.Chains[name]
		c, err := r.Lookup(name)
		if err != nil {
			c = Chain{Name: name}
		}
		if def.ID != 0 {
			c.ID = def.ID
		}
		if def.DisplayName != "" {
			c.DisplayName = def.DisplayName
		}
		if def.RPCURL != "" {
			c.RPC.Default = def.RPCURL
		}
		if def.Explorer != "" {
			c.Explorer = def.Explorer
		}
		if def.Currency.Symbol != "" {
			c.NativeCurrency = def.Currency
		}
		c.Testnet = c.Testnet || def.Testnet
		if err := r.Register(c); err != nil {
			return fmt.Errorf("注册链 %s 失败: %w", name, err)
		}
	}
	return nil
}
