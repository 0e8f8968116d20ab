package web3

import (
	"context"
	"math/big"

	"OpenMCP-Arbitrum/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxRequest describes a transaction the write client should sign and
// submit. A nil To creates a contract. Gas and GasPrice are optional: when
// GasPrice is set a legacy transaction with that exact price is produced,
// otherwise fees come from the node.
type TxRequest struct {
	To       *common.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
}

// ReadClient performs unsigned reads against one chain.
type ReadClient interface {
	Chain() chain.Chain
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Close()
}

// WriteClient is a ReadClient bound to the signing identity. Every write
// returns as soon as the node accepted the transaction.
type WriteClient interface {
	ReadClient
	Address() common.Address
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	TransferToken(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)
	ApproveToken(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	DeployContract(ctx context.Context, abiJSON string, bytecode []byte, args ...any) (common.Hash, error)
}
