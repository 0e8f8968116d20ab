// Package wallet holds the signing identity and hands out chain clients bound
// to it. It also tracks the active chain used by the wallet summary.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"OpenMCP-Arbitrum/internal/chain"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/lifi"
	"OpenMCP-Arbitrum/internal/names"
	"OpenMCP-Arbitrum/internal/web3"
	"OpenMCP-Arbitrum/internal/web3/ethereum"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Setting keys read from the host configuration store.
const (
	SettingPrivateKey         = "ARBITRUM_PRIVATE_KEY"
	SettingProviderURL        = "ARBITRUM_PROVIDER_URL"
	SettingTestnetProviderURL = "ARBITRUM_TESTNET_PROVIDER_URL"
)

// Dialer opens a client for c. A nil key yields a read-only client.
type Dialer func(ctx context.Context, c chain.Chain, key *ecdsa.PrivateKey) (web3.WriteClient, error)

// EthereumDialer dials JSON-RPC endpoints with go-ethereum.
func EthereumDialer(pollInterval time.Duration) Dialer {
	return func(ctx context.Context, c chain.Chain, key *ecdsa.PrivateKey) (web3.WriteClient, error) {
		opts := []ethereum.Option{ethereum.WithPollInterval(pollInterval)}
		if key != nil {
			opts = append(opts, ethereum.WithSigner(key))
		}
		client, err := ethereum.Dial(ctx, c, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// TokenLookup resolves token symbols to contract metadata.
type TokenLookup interface {
	Token(ctx context.Context, chainID int64, token string) (lifi.Token, error)
}

// Provider owns one signing key for the process lifetime.
type Provider struct {
	key     *ecdsa.PrivateKey
	address common.Address

	registry *chain.Registry
	dial     Dialer
	names    names.Lookup
	tokens   TokenLookup
	log      *slog.Logger

	mu      sync.RWMutex
	chains  map[string]chain.Chain
	current string
}

// Option customises a Provider.
type Option func(*Provider)

// WithChains registers chains at construction; the first one becomes current.
func WithChains(chains ...chain.Chain) Option {
	return func(p *Provider) {
		for i, c := range chains {
			p.chains[c.Name] = c
			if i == 0 {
				p.current = c.Name
			}
		}
	}
}

// WithRegistry replaces the registry used to synthesise unknown chains.
func WithRegistry(r *chain.Registry) Option {
	return func(p *Provider) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithDialer replaces the client factory.
func WithDialer(d Dialer) Option {
	return func(p *Provider) {
		if d != nil {
			p.dial = d
		}
	}
}

// WithNameLookup sets the name service used by FormatAddress.
func WithNameLookup(l names.Lookup) Option {
	return func(p *Provider) {
		p.names = l
	}
}

// WithTokenLookup sets the token metadata service used by TokenAddress.
func WithTokenLookup(l TokenLookup) Option {
	return func(p *Provider) {
		p.tokens = l
	}
}

// New derives the signing identity from a hex private key.
func New(privateKey string, opts ...Option) (*Provider, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		registry: chain.Default(),
		dial:     EthereumDialer(0),
		log:      logger.Named("wallet"),
		chains:   make(map[string]chain.Chain),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.current == "" {
		primary, err := p.registry.Lookup(chain.Primary)
		if err != nil {
			return nil, err
		}
		p.chains[primary.Name] = primary
		p.current = primary.Name
	}
	return p, nil
}

// NewFromSettings builds a provider from the host configuration store with
// both Arbitrum networks registered and custom RPC URLs applied. The
// primary network becomes current.
func NewFromSettings(settings plugin.Settings, opts ...Option) (*Provider, error) {
	privateKey := strings.TrimSpace(settings.GetSetting(SettingPrivateKey))
	if privateKey == "" {
		return nil, xerrors.New(xerrors.CodeMissingPrivateKey, SettingPrivateKey+" is missing")
	}
	p, err := New(privateKey, opts...)
	if err != nil {
		return nil, err
	}
	chains, err := ChainsFromSettings(p.registry, settings)
	if err != nil {
		return nil, err
	}
	p.AddChain(chains...)
	p.mu.Lock()
	p.current = chains[0].Name
	p.mu.Unlock()
	return p, nil
}

// ChainsFromSettings returns arbitrum and arbitrumSepolia with any custom
// RPC URL from settings injected, primary network first.
func ChainsFromSettings(registry *chain.Registry, settings plugin.Settings) ([]chain.Chain, error) {
	pairs := []struct {
		name    string
		setting string
	}{
		{chain.Arbitrum, SettingProviderURL},
		{chain.ArbitrumSepolia, SettingTestnetProviderURL},
	}
	out := make([]chain.Chain, 0, len(pairs))
	for _, pair := range pairs {
		c, err := registry.GenChainFromName(pair.name, strings.TrimSpace(settings.GetSetting(pair.setting)))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ParsePrivateKey accepts a 32-byte hex key with or without 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, xerrors.New(xerrors.CodeMissingPrivateKey, "")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X"))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidPrivateKey, err, "")
	}
	return key, nil
}

// Address returns the signer address.
func (p *Provider) Address() common.Address { return p.address }

// PrivateKey returns the signing key.
func (p *Provider) PrivateKey() *ecdsa.PrivateKey { return p.key }

// CurrentChain returns metadata of the active chain.
func (p *Provider) CurrentChain() chain.Chain {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chains[p.current]
}

// Chains returns the names of registered chains.
func (p *Provider) Chains() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.chains))
	for name := range p.chains {
		out = append(out, name)
	}
	return out
}

// ChainConfig returns the registered metadata for name, falling back to the
// registry for chains not added to this provider.
// Names match case-insensitively, and the returned Chain.Name is canonical.
func (p *Provider) ChainConfig(name string) (chain.Chain, error) {
	p.mu.RLock()
	c, ok := p.localChain(name)
	p.mu.RUnlock()
	if ok {
		return c, nil
	}
	return p.registry.Lookup(name)
}

// localChain finds a chain added to this provider. Callers hold p.mu.
func (p *Provider) localChain(name string) (chain.Chain, bool) {
	name = strings.TrimSpace(name)
	if c, ok := p.chains[name]; ok {
		return c, true
	}
	for key, c := range p.chains {
		if strings.EqualFold(key, name) {
			return c, true
		}
	}
	return chain.Chain{}, false
}

// AddChain registers or replaces chains.
func (p *Provider) AddChain(chains ...chain.Chain) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chains {
		p.chains[c.Name] = c
	}
}

// SwitchChain makes name active, synthesising it from the registry when it
// is not registered yet.
// The chain is stored and activated under its canonical name.
func (p *Provider) SwitchChain(name, customRPC string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.localChain(name)
	if !ok {
		var err error
		c, err = p.registry.GenChainFromName(name, customRPC)
		if err != nil {
			return err
		}
		p.chains[c.Name] = c
	}
	p.current = c.Name
	return nil
}

// PublicClient opens a read-only client on the chain's resolved RPC URL.
func (p *Provider) PublicClient(ctx context.Context, name string) (web3.ReadClient, error) {
	c, err := p.ChainConfig(name)
	if err != nil {
		return nil, err
	}
	return p.dial(ctx, c, nil)
}

// WalletClient opens a signing client on the chain's resolved RPC URL.
func (p *Provider) WalletClient(ctx context.Context, name string) (web3.WriteClient, error) {
	c, err := p.ChainConfig(name)
	if err != nil {
		return nil, err
	}
	return p.dial(ctx, c, p.key)
}

// Transfer submits a native transfer and returns without waiting.
func (p *Provider) Transfer(ctx context.Context, chainName string, to common.Address, amount *big.Int, data []byte, gas uint64, gasPrice *big.Int) (common.Hash, error) {
	client, err := p.WalletClient(ctx, chainName)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()
	return client.SendTransaction(ctx, web3.TxRequest{To: &to, Value: amount, Data: data, Gas: gas, GasPrice: gasPrice})
}

// TransferERC20 submits an ERC-20 transfer and returns without waiting.
func (p *Provider) TransferERC20(ctx context.Context, chainName string, token, to common.Address, amount *big.Int) (common.Hash, error) {
	client, err := p.WalletClient(ctx, chainName)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()
	return client.TransferToken(ctx, token, to, amount)
}

// CheckERC20Allowance reads allowance(owner, spender).
func (p *Provider) CheckERC20Allowance(ctx context.Context, chainName string, token, owner, spender common.Address) (*big.Int, error) {
	client, err := p.PublicClient(ctx, chainName)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.TokenAllowance(ctx, token, owner, spender)
}

// ApproveERC20 submits approve(spender, amount).
func (p *Provider) ApproveERC20(ctx context.Context, chainName string, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	client, err := p.WalletClient(ctx, chainName)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()
	return client.ApproveToken(ctx, token, spender, amount)
}

// Balance returns the signer's native balance on the current chain,
// formatted with 18 decimals.
func (p *Provider) Balance(ctx context.Context) (string, error) {
	current := p.CurrentChain()
	client, err := p.PublicClient(ctx, current.Name)
	if err != nil {
		return "", err
	}
	defer client.Close()
	wei, err := client.BalanceAt(ctx, p.address)
	if err != nil {
		return "", err
	}
	return units.FormatEther(wei), nil
}

// TokenAddress resolves a token symbol on chainName through the token
// metadata service.
func (p *Provider) TokenAddress(ctx context.Context, chainName, symbol string) (common.Address, error) {
	c, err := p.ChainConfig(chainName)
	if err != nil {
		return common.Address{}, err
	}
	if p.tokens == nil {
		return common.Address{}, xerrors.New(xerrors.CodeTokenNotFound, "token lookup is not configured")
	}
	token, err := p.tokens.Token(ctx, c.ID, symbol)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(token.Address) {
		return common.Address{}, xerrors.Newf(xerrors.CodeTokenNotFound, "token %s has no valid address", symbol)
	}
	return common.HexToAddress(token.Address), nil
}

// FormatAddress normalises a literal address or resolves a name.
func (p *Provider) FormatAddress(ctx context.Context, input string) (common.Address, error) {
	resolved, err := names.FormatAddress(ctx, p.nameLookup(), input)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(resolved), nil
}

func (p *Provider) nameLookup() names.Lookup {
	if p.names != nil {
		return p.names
	}
	return names.LookupFunc(func(context.Context, string) (common.Address, error) {
		return common.Address{}, nil
	})
}

// Summary renders the wallet information block injected into prompts.
func (p *Provider) Summary(ctx context.Context) (string, error) {
	balance, err := p.Balance(ctx)
	if err != nil {
		p.log.Warn("wallet balance unavailable", "error", err)
		return "", err
	}
	c := p.CurrentChain()
	return fmt.Sprintf("Arbitrum chain Wallet Address: %s\nBalance: %s %s\nChain ID: %d, Name: %s",
		p.address.Hex(), balance, c.NativeCurrency.Symbol, c.ID, c.DisplayName), nil
}
