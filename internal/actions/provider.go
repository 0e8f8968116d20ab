package actions

import (
	"context"

	"OpenMCP-Arbitrum/internal/wallet"
	"OpenMCP-Arbitrum/pkg/plugin"
)

// WalletProviderName is the name the wallet summary is published under.
const WalletProviderName = "arbitrumWalletProvider"

// WalletProvider exposes the wallet summary as prompt context.
type WalletProvider struct {
	wallet *wallet.Provider
}

// NewWalletProvider wraps w.
func NewWalletProvider(w *wallet.Provider) *WalletProvider {
	return &WalletProvider{wallet: w}
}

func (p *WalletProvider) Name() string { return WalletProviderName }

// Get returns the summary, or an empty string when the balance cannot be
// read. A failing provider must not block the conversation.
func (p *WalletProvider) Get(ctx context.Context, _ plugin.Message) (string, error) {
	summary, err := p.wallet.Summary(ctx)
	if err != nil {
		actionLogger().Error("Error in Arbitrum chain wallet provider", "error", err)
		return "", nil
	}
	return summary, nil
}
