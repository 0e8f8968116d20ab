package swap

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/lifi"
	"OpenMCP-Arbitrum/internal/web3"
	"OpenMCP-Arbitrum/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// LiFiRouter plans routes with the LI.FI API and executes them with the
// caller's write client.
type LiFiRouter struct {
	api *lifi.Client
	log *slog.Logger
}

// NewLiFiRouter wraps a LI.FI client.
func NewLiFiRouter(api *lifi.Client) *LiFiRouter {
	return &LiFiRouter{api: api, log: logger.Named("swap")}
}

// Routes resolves token symbols and asks LI.FI for same-chain routes.
func (r *LiFiRouter) Routes(ctx context.Context, req Request) ([]lifi.Route, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "swap amount must be positive")
	}
	fromToken, err := r.tokenAddress(ctx, req.ChainID, req.FromToken)
	if err != nil {
		return nil, err
	}
	toToken, err := r.tokenAddress(ctx, req.ChainID, req.ToToken)
	if err != nil {
		return nil, err
	}

	return r.api.Routes(ctx, lifi.RoutesRequest{
		FromChainID:      req.ChainID,
		FromAmount:       req.Amount.String(),
		FromTokenAddress: fromToken,
		FromAddress:      req.FromAddress.Hex(),
		ToChainID:        req.ChainID,
		ToTokenAddress:   toToken,
		ToAddress:        req.FromAddress.Hex(),
		Options: lifi.RoutesOptions{
			Order:    lifi.OrderRecommended,
			Slippage: req.Slippage,
		},
	})
}

// Execute runs every step of route in order. A reverted step is recorded as
// FAILED and stops execution without an error; transport failures are
// returned after being recorded.
func (r *LiFiRouter) Execute(ctx context.Context, client web3.WriteClient, route lifi.Route) (Execution, error) {
	execution := Execution{RouteID: route.ID}
	for _, step := range route.Steps {
		stepExec := StepExecution{StepID: step.ID, Tool: step.Tool}
		ok, err := r.runStep(ctx, client, step, &stepExec)
		execution.Steps = append(execution.Steps, stepExec)
		if err != nil {
			return execution, err
		}
		if !ok {
			break
		}
	}
	return execution, nil
}

func (r *LiFiRouter) runStep(ctx context.Context, client web3.WriteClient, step lifi.Step, exec *StepExecution) (bool, error) {
	if ok, err := r.ensureAllowance(ctx, client, step, exec); err != nil || !ok {
		return ok, err
	}

	filled, err := r.api.StepTransaction(ctx, step)
	if err != nil {
		exec.Process = append(exec.Process, Process{Type: ProcessSwap, Status: StatusFailed, Message: err.Error()})
		return false, err
	}
	txReq, err := toTxRequest(filled.TransactionRequest)
	if err != nil {
		exec.Process = append(exec.Process, Process{Type: ProcessSwap, Status: StatusFailed, Message: err.Error()})
		return false, err
	}

	hash, err := client.SendTransaction(ctx, txReq)
	if err != nil {
		exec.Process = append(exec.Process, Process{Type: ProcessSwap, Status: StatusFailed, Message: err.Error()})
		return false, err
	}
	r.log.Info("swap step submitted", "step", step.ID, "tool", step.Tool, "hash", hash.Hex())
	return r.await(ctx, client, ProcessSwap, hash, exec)
}

func (r *LiFiRouter) ensureAllowance(ctx context.Context, client web3.WriteClient, step lifi.Step, exec *StepExecution) (bool, error) {
	spender := strings.TrimSpace(step.Estimate.ApprovalAddress)
	tokenHex := step.Action.FromToken.Address
	if spender == "" || !common.IsHexAddress(tokenHex) || common.HexToAddress(tokenHex) == (common.Address{}) {
		return true, nil
	}
	amount, ok := new(big.Int).SetString(step.Action.FromAmount, 10)
	if !ok {
		return false, xerrors.Newf(xerrors.CodeSwapFailed, "step %s has invalid amount %q", step.ID, step.Action.FromAmount)
	}

	token := common.HexToAddress(tokenHex)
	spenderAddr := common.HexToAddress(spender)
	current, err := client.TokenAllowance(ctx, token, client.Address(), spenderAddr)
	if err != nil {
		return false, err
	}
	if current.Cmp(amount) >= 0 {
		return true, nil
	}

	hash, err := client.ApproveToken(ctx, token, spenderAddr, amount)
	if err != nil {
		exec.Process = append(exec.Process, Process{Type: ProcessTokenAllowance, Status: StatusFailed, Message: err.Error()})
		return false, err
	}
	return r.await(ctx, client, ProcessTokenAllowance, hash, exec)
}

func (r *LiFiRouter) await(ctx context.Context, client web3.WriteClient, kind string, hash common.Hash, exec *StepExecution) (bool, error) {
	if hash == (common.Hash{}) {
		err := xerrors.New(xerrors.CodeMissingTxHash, "")
		exec.Process = append(exec.Process, Process{Type: kind, Status: StatusFailed, Message: err.Message()})
		return false, err
	}
	receipt, err := client.WaitForReceipt(ctx, hash)
	if err != nil {
		exec.Process = append(exec.Process, Process{Type: kind, Status: StatusFailed, TxHash: hash.Hex(), Message: err.Error()})
		return false, err
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		exec.Process = append(exec.Process, Process{Type: kind, Status: StatusFailed, TxHash: hash.Hex(), Message: "transaction reverted"})
		return false, nil
	}
	exec.Process = append(exec.Process, Process{Type: kind, Status: StatusDone, TxHash: hash.Hex()})
	return true, nil
}

func (r *LiFiRouter) tokenAddress(ctx context.Context, chainID int64, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "swap token is required")
	}
	if common.IsHexAddress(token) {
		return token, nil
	}
	meta, err := r.api.Token(ctx, chainID, token)
	if err != nil {
		return "", err
	}
	return meta.Address, nil
}

func toTxRequest(req *lifi.TransactionRequest) (web3.TxRequest, error) {
	if req == nil || !common.IsHexAddress(req.To) {
		return web3.TxRequest{}, xerrors.New(xerrors.CodeSwapFailed, "step transaction has no target")
	}
	to := common.HexToAddress(req.To)
	data, err := hexutil.Decode(req.Data)
	if err != nil {
		return web3.TxRequest{}, xerrors.Wrap(xerrors.CodeSwapFailed, err, "decode step calldata")
	}
	value, err := parseQuantity(req.Value)
	if err != nil {
		return web3.TxRequest{}, xerrors.Wrap(xerrors.CodeSwapFailed, err, "decode step value")
	}
	out := web3.TxRequest{To: &to, Data: data, Value: value}
	if gas, err := parseQuantity(req.GasLimit); err == nil && gas.IsUint64() {
		out.Gas = gas.Uint64()
	}
	if strings.TrimSpace(req.GasPrice) != "" {
		if price, err := parseQuantity(req.GasPrice); err == nil && price.Sign() > 0 {
			out.GasPrice = price
		}
	}
	return out, nil
}

// parseQuantity accepts hex quantities and plain decimal strings.
func parseQuantity(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, ok := new(big.Int).SetString(raw[2:], 16)
		if !ok && raw[2:] != "" {
			return nil, fmt.Errorf("invalid hex quantity %q", raw)
		}
		if v == nil {
			v = new(big.Int)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", raw)
	}
	return v, nil
}

var _ Router = (*LiFiRouter)(nil)
