package names

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// StaticResolver resolves names from a fixed address book.
type StaticResolver struct {
	entries map[string]common.Address
}

type addressBook struct {
	Names map[string]string `yaml:"names"`
}

// NewStaticResolver builds a resolver from name to hex address pairs.
func NewStaticResolver(entries map[string]string) (*StaticResolver, error) {
	book := make(map[string]common.Address, len(entries))
	for name, hex := range entries {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("address book entry %s has invalid address %q", name, hex)
		}
		book[strings.ToLower(strings.TrimSpace(name))] = common.HexToAddress(hex)
	}
	return &StaticResolver{entries: book}, nil
}

// LoadStaticResolver reads an address book YAML file of the form
// `names: {alice.eth: "0x..."}`.
func LoadStaticResolver(path string) (*StaticResolver, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取地址簿失败: %w", err)
	}
	var book addressBook
	if err := yaml.Unmarshal(content, &book); err != nil {
		return nil, fmt.Errorf("解析地址簿失败: %w", err)
	}
	return NewStaticResolver(book.Names)
}

// Resolve implements Lookup.
func (s *StaticResolver) Resolve(_ context.Context, name string) (common.Address, error) {
	return s.entries[strings.ToLower(strings.TrimSpace(name))], nil
}
