package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"OpenMCP-Arbitrum/internal/chain"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/swap"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"
)

// SwapAction swaps tokens on the primary network through the router.
type SwapAction struct {
	deps Deps
	log  *slog.Logger
}

// NewSwapAction returns the swap action.
func NewSwapAction(deps Deps) *SwapAction {
	return &SwapAction{deps: deps.withDefaults(), log: actionLogger().With("action", NameSwap)}
}

// Swap routes and executes the best ranked route. The amount always uses
// 18 decimals. The outcome is the final process of the final step.
func (a *SwapAction) Swap(ctx context.Context, params SwapParams) (*SwapResponse, error) {
	a.log.Debug("Swap params", "params", params)
	w := a.deps.Wallet
	cfg, err := resolveChain(w, params.Chain)
	if err != nil {
		return nil, err
	}
	params.Chain = cfg.Name
	if params.Chain != chain.Primary {
		return nil, xerrors.New(xerrors.CodeIneligibleChain, "Only Arbitrum mainnet is supported")
	}
	params.FromToken = strings.TrimSpace(params.FromToken)
	params.ToToken = strings.TrimSpace(params.ToToken)
	if params.FromToken == "" || params.ToToken == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Input and output tokens are required")
	}
	amount, err := parseAmount(params.Amount, units.EtherDecimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Swap amount must be positive")
	}
	if s := params.Slippage; s != nil && (*s < 0 || *s >= 1) {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "Slippage %v must be within [0, 1)", *s)
	}
	if a.deps.Router == nil {
		return nil, xerrors.New(xerrors.CodeSwapFailed, "swap router is not configured")
	}
	a.log.Debug("Normalized swap params", "params", params)

	routes, err := a.deps.Router.Routes(ctx, swap.Request{
		ChainID:     cfg.ID,
		FromToken:   params.FromToken,
		ToToken:     params.ToToken,
		Amount:      amount,
		FromAddress: w.Address(),
		Slippage:    params.Slippage,
	})
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, xerrors.New(xerrors.CodeNoRoute, "")
	}

	client, err := w.WalletClient(ctx, params.Chain)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	execution, err := a.deps.Router.Execute(ctx, client, routes[0])
	if err != nil {
		return nil, err
	}
	outcome, ok := execution.Outcome()
	if !ok || outcome.Status == "" || outcome.Status == swap.StatusFailed {
		return nil, xerrors.New(xerrors.CodeSwapFailed, "", xerrors.WithMetadata("route", routes[0].ID))
	}

	resp := &SwapResponse{
		Chain:     params.Chain,
		TxHash:    outcome.TxHash,
		FromToken: params.FromToken,
		ToToken:   params.ToToken,
		Amount:    string(params.Amount),
	}
	logger.Audit().Info("swap executed", "chain", params.Chain, "route", routes[0].ID, "from", params.FromToken, "to", params.ToToken, "amount", resp.Amount, "hash", resp.TxHash)
	return resp, nil
}

func (a *SwapAction) handle(ctx context.Context, inv plugin.Invocation, cb plugin.Callback) error {
	a.log.Info("Starting swap action...")
	var params SwapParams
	if err := decodeParams(inv.Params, &params); err != nil {
		return fail(a.log, cb, "Swap", err)
	}
	resp, err := a.Swap(ctx, params)
	if err != nil {
		return fail(a.log, cb, "Swap", err)
	}
	succeed(cb, fmt.Sprintf("Successfully swap %s %s tokens to %s\nTransaction Hash: %s",
		resp.Amount, resp.FromToken, resp.ToToken, resp.TxHash), resp)
	return nil
}

// Definition describes the action to the host.
func (a *SwapAction) Definition() plugin.Action {
	return plugin.Action{
		Name:        NameSwap,
		Description: "Swap tokens on the same chain",
		Similes:     []string{"SWAP", "TOKEN_SWAP", "EXCHANGE_TOKENS", "TRADE_TOKENS"},
		Template:    SwapTemplate,
		Validate:    HasPrivateKey,
		Handler:     a.handle,
		Examples: [][]plugin.Example{
			exchange("Swap 1 ETH for USDC on Arbitrum", "I'll help you swap 1 ETH for USDC on Arbitrum", "SWAP",
				map[string]any{"chain": "arbitrum", "inputToken": "ETH", "outputToken": "USDC", "amount": "1"}),
			exchange("Buy some token of 0x1234 using 1 USDC on Arbitrum. The slippage should be no more than 5%",
				"I'll help you swap 1 USDC for token 0x1234 on Arbitrum", "SWAP",
				map[string]any{"chain": "arbitrum", "inputToken": "USDC", "outputToken": "0x1234", "amount": "1", "slippage": 0.05}),
		},
	}
}
