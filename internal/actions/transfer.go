package actions

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SourceDirect marks messages typed by the user themselves.
const SourceDirect = "direct"

// TransferAction moves native currency or ERC-20 tokens.
type TransferAction struct {
	deps Deps
	log  *slog.Logger
}

// NewTransferAction returns the transfer action.
func NewTransferAction(deps Deps) *TransferAction {
	return &TransferAction{deps: deps.withDefaults(), log: actionLogger().With("action", NameTransfer)}
}

// Transfer submits the transfer and waits for its receipt. Omitting the
// amount sweeps the whole balance; for native currency the gas reserve is
// held back and the transaction is pinned to the reserve's gas settings.
func (a *TransferAction) Transfer(ctx context.Context, params TransferParams) (*TransferResponse, error) {
	a.log.Debug("Transfer params", "params", params)
	w := a.deps.Wallet
	cfg, err := resolveChain(w, params.Chain)
	if err != nil {
		return nil, err
	}
	params.Chain = cfg.Name
	if strings.TrimSpace(params.ToAddress) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "To address is required")
	}
	to, err := w.FormatAddress(ctx, params.ToAddress)
	if err != nil {
		return nil, err
	}
	params.ToAddress = to.Hex()
	params.Token = strings.TrimSpace(params.Token)
	a.log.Debug("Normalized transfer params", "params", params)

	if err := w.SwitchChain(params.Chain, ""); err != nil {
		return nil, err
	}
	native := cfg.NativeCurrency.Symbol

	resp := &TransferResponse{Chain: params.Chain, Recipient: params.ToAddress, Token: params.Token}
	if resp.Token == "" {
		resp.Token = native
	}

	var hash common.Hash
	if params.Token == "" || strings.EqualFold(params.Token, native) {
		hash, err = a.transferNative(ctx, params, to, resp)
	} else {
		hash, err = a.transferToken(ctx, params, to, resp)
	}
	if err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		return nil, xerrors.New(xerrors.CodeMissingTxHash, "")
	}
	resp.TxHash = hash.Hex()

	if _, err := waitConfirmed(ctx, w, params.Chain, hash); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *TransferAction) transferNative(ctx context.Context, params TransferParams, to common.Address, resp *TransferResponse) (common.Hash, error) {
	w := a.deps.Wallet
	data, err := decodeData(params.Data)
	if err != nil {
		return common.Hash{}, err
	}

	var (
		value    *big.Int
		gas      uint64
		gasPrice *big.Int
	)
	if params.Amount == "" {
		client, err := w.PublicClient(ctx, params.Chain)
		if err != nil {
			return common.Hash{}, err
		}
		balance, err := client.BalanceAt(ctx, w.Address())
		client.Close()
		if err != nil {
			return common.Hash{}, err
		}
		value = new(big.Int).Sub(balance, a.deps.Reserve.Cost())
		if value.Sign() <= 0 {
			return common.Hash{}, xerrors.Newf(xerrors.CodeInvalidArgument, "balance %s does not cover the gas reserve", units.FormatEther(balance))
		}
		gas = a.deps.Reserve.Limit
		gasPrice = a.deps.Reserve.Price
	} else {
		value, err = parseAmount(params.Amount, units.EtherDecimals)
		if err != nil {
			return common.Hash{}, err
		}
	}
	resp.Amount = units.FormatEther(value)

	hash, err := w.Transfer(ctx, params.Chain, to, value, data, gas, gasPrice)
	if err != nil {
		return common.Hash{}, err
	}
	logger.Audit().Info("native transfer submitted", "chain", params.Chain, "to", to.Hex(), "amount", resp.Amount, "hash", hash.Hex())
	return hash, nil
}

func (a *TransferAction) transferToken(ctx context.Context, params TransferParams, to common.Address, resp *TransferResponse) (common.Hash, error) {
	w := a.deps.Wallet
	var token common.Address
	if strings.HasPrefix(params.Token, "0x") {
		if !common.IsHexAddress(params.Token) {
			return common.Hash{}, xerrors.Newf(xerrors.CodeInvalidAddress, "Invalid token address %s", params.Token)
		}
		token = common.HexToAddress(params.Token)
	} else {
		var err error
		token, err = w.TokenAddress(ctx, params.Chain, params.Token)
		if err != nil {
			return common.Hash{}, err
		}
	}

	client, err := w.PublicClient(ctx, params.Chain)
	if err != nil {
		return common.Hash{}, err
	}
	defer client.Close()
	decimals, err := client.TokenDecimals(ctx, token)
	if err != nil {
		return common.Hash{}, err
	}

	var value *big.Int
	if params.Amount == "" {
		value, err = client.TokenBalance(ctx, token, w.Address())
	} else {
		value, err = parseAmount(params.Amount, decimals)
	}
	if err != nil {
		return common.Hash{}, err
	}
	resp.Amount = units.FormatUnits(value, decimals)

	hash, err := w.TransferERC20(ctx, params.Chain, token, to, value)
	if err != nil {
		return common.Hash{}, err
	}
	logger.Audit().Info("token transfer submitted", "chain", params.Chain, "token", token.Hex(), "to", to.Hex(), "amount", resp.Amount, "hash", hash.Hex())
	return hash, nil
}

func decodeData(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "data must be 0x-prefixed hex")
	}
	return data, nil
}

func (a *TransferAction) handle(ctx context.Context, inv plugin.Invocation, cb plugin.Callback) error {
	a.log.Info("Starting transfer action...")
	if inv.Message.Source != SourceDirect {
		err := xerrors.New(xerrors.CodeInvalidArgument, "Transfer not allowed")
		if cb != nil {
			cb(plugin.Result{Text: "I can't do that for you.", Content: map[string]any{"error": "Transfer not allowed"}})
		}
		return err
	}
	var params TransferParams
	if err := decodeParams(inv.Params, &params); err != nil {
		return fail(a.log, cb, "Transfer", err)
	}
	resp, err := a.Transfer(ctx, params)
	if err != nil {
		return fail(a.log, cb, "Transfer", err)
	}
	succeed(cb, fmt.Sprintf("Successfully transferred %s %s to %s\nTransaction Hash: %s",
		resp.Amount, resp.Token, resp.Recipient, resp.TxHash), resp)
	return nil
}

// Definition describes the action to the host.
func (a *TransferAction) Definition() plugin.Action {
	const recipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	return plugin.Action{
		Name:        NameTransfer,
		Description: "Transfer tokens between addresses on the same chain",
		Similes:     []string{"TRANSFER", "SEND_TOKENS", "TOKEN_TRANSFER", "MOVE_TOKENS"},
		Template:    TransferTemplate,
		Validate:    HasPrivateKey,
		Handler:     a.handle,
		Examples: [][]plugin.Example{
			exchange("Transfer 1 ETH to "+recipient, "I'll help you transfer 1 ETH to "+recipient, "TRANSFER",
				map[string]any{"chain": "arbitrum", "token": "ETH", "amount": "1", "toAddress": recipient}),
			exchange("Transfer 1 ETH to "+recipient+" on Arbitrum Sepolia", "I'll help you transfer 1 ETH to "+recipient+" on Arbitrum Sepolia", "TRANSFER",
				map[string]any{"chain": "arbitrumSepolia", "token": "ETH", "amount": "1", "toAddress": recipient}),
			exchange("Transfer 1 token of 0x1234 to "+recipient, "I'll help you transfer 1 token of 0x1234 to "+recipient+" on Arbitrum", "TRANSFER",
				map[string]any{"chain": "arbitrum", "token": "0x1234", "amount": "1", "toAddress": recipient}),
		},
	}
}
