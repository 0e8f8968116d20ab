package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"OpenMCP-Arbitrum/internal/chain"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceAction reads native or ERC-20 balances.
type BalanceAction struct {
	deps Deps
	log  *slog.Logger
}

// NewBalanceAction returns the balance action.
func NewBalanceAction(deps Deps) *BalanceAction {
	return &BalanceAction{deps: deps.withDefaults(), log: actionLogger().With("action", NameGetBalance)}
}

// GetBalance resolves the address and token and reads the balance. An empty
// token or "eth" selects the native currency.
func (a *BalanceAction) GetBalance(ctx context.Context, params GetBalanceParams) (*GetBalanceResponse, error) {
	a.log.Debug("Get balance params", "params", params)
	w := a.deps.Wallet
	cfg, err := resolveChain(w, params.Chain)
	if err != nil {
		return nil, err
	}
	params.Chain = cfg.Name

	if strings.TrimSpace(params.Address) == "" {
		params.Address = w.Address().Hex()
	} else {
		addr, err := w.FormatAddress(ctx, params.Address)
		if err != nil {
			return nil, err
		}
		params.Address = addr.Hex()
	}
	params.Token = strings.TrimSpace(params.Token)
	a.log.Debug("Normalized get balance params", "params", params)

	if err := w.SwitchChain(params.Chain, ""); err != nil {
		return nil, err
	}
	owner := common.HexToAddress(params.Address)
	resp := &GetBalanceResponse{Chain: params.Chain, Address: params.Address}

	client, err := w.PublicClient(ctx, params.Chain)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if params.Token == "" || strings.EqualFold(params.Token, "eth") {
		wei, err := client.BalanceAt(ctx, owner)
		if err != nil {
			return nil, err
		}
		resp.Balance = &Balance{Token: cfg.NativeCurrency.Symbol, Amount: units.FormatEther(wei)}
		return resp, nil
	}

	var token common.Address
	if strings.HasPrefix(params.Token, "0x") {
		if !common.IsHexAddress(params.Token) {
			return nil, xerrors.Newf(xerrors.CodeInvalidAddress, "Invalid token address %s", params.Token)
		}
		token = common.HexToAddress(params.Token)
	} else {
		if cfg.ID != chain.ArbitrumChainID {
			return nil, xerrors.New(xerrors.CodeIneligibleChain, "Only Arbitrum mainnet is supported for querying balance by token symbol")
		}
		token, err = w.TokenAddress(ctx, params.Chain, params.Token)
		if err != nil {
			return nil, err
		}
	}

	raw, err := client.TokenBalance(ctx, token, owner)
	if err != nil {
		return nil, err
	}
	decimals, err := client.TokenDecimals(ctx, token)
	if err != nil {
		return nil, err
	}
	resp.Balance = &Balance{Token: params.Token, Amount: units.FormatUnits(raw, decimals)}
	return resp, nil
}

func (a *BalanceAction) handle(ctx context.Context, inv plugin.Invocation, cb plugin.Callback) error {
	a.log.Info("Starting getBalance action...")
	var params GetBalanceParams
	if err := decodeParams(inv.Params, &params); err != nil {
		return fail(a.log, cb, "Get balance", err)
	}
	resp, err := a.GetBalance(ctx, params)
	if err != nil {
		return fail(a.log, cb, "Get balance", err)
	}
	text := fmt.Sprintf("No balance found for %s on %s", resp.Address, resp.Chain)
	if resp.Balance != nil {
		text = fmt.Sprintf("Balance of %s on %s:\n%s: %s", resp.Address, resp.Chain, resp.Balance.Token, resp.Balance.Amount)
	}
	succeed(cb, text, resp)
	return nil
}

// Definition describes the action to the host.
func (a *BalanceAction) Definition() plugin.Action {
	return plugin.Action{
		Name:        NameGetBalance,
		Description: "Get balance of a token or all tokens for the given address",
		Similes:     []string{"GET_BALANCE", "CHECK_BALANCE"},
		Template:    GetBalanceTemplate,
		Validate:    HasPrivateKey,
		Handler:     a.handle,
		Examples: [][]plugin.Example{
			exchange("Check my balance of USDC", "I'll help you check your balance of USDC", "GET_BALANCE",
				map[string]any{"chain": "arbitrum", "address": "{{walletAddress}}", "token": "USDC"}),
			exchange("Check my balance of token 0x1234", "I'll help you check your balance of token 0x1234", "GET_BALANCE",
				map[string]any{"chain": "arbitrum", "address": "{{walletAddress}}", "token": "0x1234"}),
			exchange("Get USDC balance of 0x1234", "I'll help you check USDC balance of 0x1234", "GET_BALANCE",
				map[string]any{"chain": "arbitrum", "address": "0x1234", "token": "USDC"}),
			exchange("Check my wallet balance on Arbitrum", "I'll help you check your wallet balance on Arbitrum", "GET_BALANCE",
				map[string]any{"chain": "arbitrum", "address": "{{walletAddress}}", "token": nil}),
			exchange("Check my wallet balance on Arbitrum Sepolia", "I'll help you check your wallet balance on Arbitrum Sepolia", "GET_BALANCE",
				map[string]any{"chain": "arbitrumSepolia", "address": "{{walletAddress}}", "token": nil}),
		},
	}
}

func exchange(user, agent, action string, content map[string]any) []plugin.Example {
	return []plugin.Example{
		{User: "{{user1}}", Text: user},
		{User: "{{agent}}", Text: agent, Action: action, Content: content},
	}
}
