package actions

import (
	"context"

	"OpenMCP-Arbitrum/pkg/plugin"
)

// PluginID identifies the Arbitrum plugin to the host.
const PluginID = "arbitrum"

// Plugin bundles the four actions and the wallet provider.
type Plugin struct {
	deps     Deps
	version  string
	balance  *BalanceAction
	transfer *TransferAction
	swap     *SwapAction
	deploy   *DeployAction
	provider *WalletProvider
}

// NewPlugin assembles the plugin around deps. deps.Wallet is required.
func NewPlugin(deps Deps, version string) *Plugin {
	deps = deps.withDefaults()
	return &Plugin{
		deps:     deps,
		version:  version,
		balance:  NewBalanceAction(deps),
		transfer: NewTransferAction(deps),
		swap:     NewSwapAction(deps),
		deploy:   NewDeployAction(deps),
		provider: NewWalletProvider(deps.Wallet),
	}
}

func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		ID:          PluginID,
		Name:        PluginID,
		Description: "Arbitrum integration plugin supporting transfers, swaps, staking, bridging, and token deployments",
		Version:     p.version,
		Capabilities: []plugin.Capability{
			plugin.CapabilityNetwork,
			plugin.CapabilitySigning,
			plugin.CapabilityExecution,
		},
	}
}

func (p *Plugin) Actions() []plugin.Action {
	return []plugin.Action{
		p.balance.Definition(),
		p.transfer.Definition(),
		p.swap.Definition(),
		p.deploy.Definition(),
	}
}

func (p *Plugin) Providers() []plugin.Provider {
	return []plugin.Provider{p.provider}
}

// Start logs the signer and active chain.
func (p *Plugin) Start(context.Context) error {
	c := p.deps.Wallet.CurrentChain()
	actionLogger().Info("arbitrum plugin started", "address", p.deps.Wallet.Address().Hex(), "chain", c.Name, "chains", p.deps.Wallet.Chains())
	return nil
}

func (p *Plugin) Stop(context.Context) error { return nil }

// Balance, Transfer, Swap and Deploy expose the typed entry points.
func (p *Plugin) Balance() *BalanceAction   { return p.balance }
func (p *Plugin) Transfer() *TransferAction { return p.transfer }
func (p *Plugin) Swap() *SwapAction         { return p.swap }
func (p *Plugin) Deploy() *DeployAction     { return p.deploy }

var _ plugin.Plugin = (*Plugin)(nil)
