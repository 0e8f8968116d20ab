// Package chain holds the static table of networks the Arbitrum actions can
// reach. Chain values are copied on every lookup, so customising one never
// leaks into what other callers observe.
package chain

import (
	"math/big"
	"sort"
	"strings"
	"sync"

	xerrors "OpenMCP-Arbitrum/internal/errors"
)

const (
	// Arbitrum is the primary network name.
	Arbitrum = "arbitrum"
	// ArbitrumSepolia is the public Arbitrum test network.
	ArbitrumSepolia = "arbitrumSepolia"

	// Primary is the only network accepted by actions restricted to mainnet.
	Primary = Arbitrum

	ArbitrumChainID        int64 = 42161
	ArbitrumSepoliaChainID int64 = 421614
)

// NativeCurrency describes the gas token of a chain.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// RPCURLs keeps the built-in endpoint next to an optional operator override.
type RPCURLs struct {
	Default string `json:"default"`
	Custom  string `json:"custom,omitempty"`
}

// Chain is the metadata of a single network.
type Chain struct {
	Name           string         `json:"name"`
	ID             int64          `json:"id"`
	DisplayName    string         `json:"display_name"`
	NativeCurrency NativeCurrency `json:"native_currency"`
	RPC            RPCURLs        `json:"rpc"`
	Explorer       string         `json:"explorer,omitempty"`
	Testnet        bool           `json:"testnet"`
}

// RPCURL returns the endpoint transports should dial: the custom URL when
// one was injected, the default otherwise.
func (c Chain) RPCURL() string {
	if custom := strings.TrimSpace(c.RPC.Custom); custom != "" {
		return custom
	}
	return c.RPC.Default
}

// ChainID returns the numeric id as a big integer for signers.
func (c Chain) ChainID() *big.Int {
	return big.NewInt(c.ID)
}

// WithCustomRPC returns a copy of c preferring url as transport endpoint.
// An empty url leaves the copy unchanged.
func (c Chain) WithCustomRPC(url string) Chain {
	if url = strings.TrimSpace(url); url != "" {
		c.RPC.Custom = url
	}
	return c
}

// Builtin returns the networks compiled into the binary.
func Builtin() []Chain {
	eth := NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}
	return []Chain{
		{
			Name:           Arbitrum,
			ID:             ArbitrumChainID,
			DisplayName:    "Arbitrum One",
			NativeCurrency: eth,
			RPC:            RPCURLs{Default: "https://arb1.arbitrum.io/rpc"},
			Explorer:       "https://arbiscan.io",
		},
		{
			Name:           ArbitrumSepolia,
			ID:             ArbitrumSepoliaChainID,
			DisplayName:    "Arbitrum Sepolia",
			NativeCurrency: NativeCurrency{Name: "Arbitrum Sepolia Ether", Symbol: "ETH", Decimals: 18},
			RPC:            RPCURLs{Default: "https://sepolia-rollup.arbitrum.io/rpc"},
			Explorer:       "https://sepolia.arbiscan.io",
			Testnet:        true,
		},
	}
}

// Registry maps network names to chain metadata.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]Chain
}

// NewRegistry builds a registry seeded with the built-in networks plus any
// extra chains supplied by the caller.
func NewRegistry(extra ...Chain) *Registry {
	r := &Registry{chains: make(map[string]Chain)}
	for _, c := range Builtin() {
		r.chains[c.Name] = c
	}
	for _, c := range extra {
		_ = r.Register(c)
	}
	return r
}

// Register adds or replaces a chain definition.
func (r *Registry) Register(c Chain) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "chain name is required")
	}
	if c.ID <= 0 {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "chain %s has invalid id %d", c.Name, c.ID)
	}
	if strings.TrimSpace(c.RPC.Default) == "" {
		return xerrors.Newf(xerrors.CodeInvalidArgument, "chain %s has no rpc url", c.Name)
	}
	if c.NativeCurrency.Decimals == 0 {
		c.NativeCurrency.Decimals = 18
	}
	if c.NativeCurrency.Symbol == "" {
		c.NativeCurrency.Symbol = "ETH"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c.Name] = c
	return nil
}

// Lookup returns the chain registered under name. Exact names win; a
// case-insensitive match is accepted as fallback.
func (r *Registry) Lookup(name string) (Chain, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.chains[name]; ok {
		return c, nil
	}
	for key, c := range r.chains {
		if strings.EqualFold(key, name) {
			return c, nil
		}
	}
	return Chain{}, xerrors.Newf(xerrors.CodeUnsupportedChain, "unsupported chain: %q", name)
}

// GenChainFromName returns a copy of the named chain with customRPC injected
// as preferred endpoint.
func (r *Registry) GenChainFromName(name, customRPC string) (Chain, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return Chain{}, err
	}
	return c.WithCustomRPC(customRPC), nil
}

// Names lists registered chain names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process wide registry holding the built-in networks.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves name against the default registry.
func Lookup(name string) (Chain, error) {
	return defaultRegistry.Lookup(name)
}

// GenChainFromName builds a customised chain from the default registry.
func GenChainFromName(name, customRPC string) (Chain, error) {
	return defaultRegistry.GenChainFromName(name, customRPC)
}
