// Package actions implements the balance, transfer, swap and deploy
// operations and describes them as plugin actions.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"OpenMCP-Arbitrum/internal/chain"
	"OpenMCP-Arbitrum/internal/compiler"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/swap"
	"OpenMCP-Arbitrum/internal/wallet"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// Action names as exposed to the host.
const (
	NameGetBalance = "getBalance"
	NameTransfer   = "transfer"
	NameSwap       = "swap"
	NameDeploy     = "DEPLOY_TOKEN"
)

// Default sweep reserve: 21000 gas at 3 gwei.
const (
	DefaultSweepGasLimit uint64 = 21000
	DefaultSweepGasPrice int64  = 3_000_000_000
)

// GasReserve is the fee held back when sweeping a native balance. The sweep
// transaction is sent with exactly this gas limit and price.
type GasReserve struct {
	Limit uint64
	Price *big.Int
}

// Cost returns Limit * Price.
func (g GasReserve) Cost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(g.Limit), g.Price)
}

// DefaultGasReserve returns 21000 gas at 3 gwei.
func DefaultGasReserve() GasReserve {
	return GasReserve{Limit: DefaultSweepGasLimit, Price: big.NewInt(DefaultSweepGasPrice)}
}

// Deps are the collaborators shared by all actions.
type Deps struct {
	Wallet   *wallet.Provider
	Router   swap.Router
	Compiler compiler.Compiler
	Reserve  GasReserve
}

func (d Deps) withDefaults() Deps {
	if d.Reserve.Limit == 0 {
		d.Reserve.Limit = DefaultSweepGasLimit
	}
	if d.Reserve.Price == nil || d.Reserve.Price.Sign() <= 0 {
		d.Reserve.Price = big.NewInt(DefaultSweepGasPrice)
	}
	return d
}

// HasPrivateKey is the validation predicate shared by all actions: a
// 0x-prefixed private key must be configured.
func HasPrivateKey(settings plugin.Settings) bool {
	if settings == nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(settings.GetSetting(wallet.SettingPrivateKey)), "0x")
}

func parseAmount(amount Amount, decimals uint8) (*big.Int, error) {
	value, err := units.ParseUnits(string(amount), decimals)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid amount")
	}
	return value, nil
}

// resolveChain looks name up (the primary network when empty) so every
// action continues with the canonical chain name.
func resolveChain(w *wallet.Provider, name string) (chain.Chain, error) {
	return w.ChainConfig(chainOrPrimary(name))
}

func chainOrPrimary(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return chain.Primary
	}
	return name
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid action parameters")
	}
	return nil
}

// fail reports err through cb using the "<prefix> failed: <msg>" convention.
func fail(log *slog.Logger, cb plugin.Callback, prefix string, err error) error {
	msg := xerrors.UserMessage(err)
	log.Error(fmt.Sprintf("Error during %s", strings.ToLower(prefix)), "error", msg, "code", xerrors.CodeOf(err))
	if cb != nil {
		cb(plugin.Result{
			Text:    fmt.Sprintf("%s failed: %s", prefix, msg),
			Content: map[string]any{"error": msg},
		})
	}
	return err
}

func succeed(cb plugin.Callback, text string, content any) {
	if cb != nil {
		cb(plugin.Result{Text: text, Content: content})
	}
}

// waitConfirmed blocks until hash is mined on chainName and fails on a
// reverted receipt.
func waitConfirmed(ctx context.Context, w *wallet.Provider, chainName string, hash common.Hash) (*coretypes.Receipt, error) {
	if hash == (common.Hash{}) {
		return nil, xerrors.New(xerrors.CodeMissingTxHash, "")
	}
	client, err := w.PublicClient(ctx, chainName)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	receipt, err := client.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return receipt, xerrors.Newf(xerrors.CodeTxReverted, "transaction %s reverted", hash.Hex())
	}
	return receipt, nil
}

func actionLogger() *slog.Logger {
	return logger.Named("actions")
}
