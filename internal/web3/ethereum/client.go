package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"OpenMCP-Arbitrum/internal/chain"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/web3"
	"OpenMCP-Arbitrum/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultPollInterval = 2 * time.Second

// Backend is the subset of go-ethereum client behaviour the Client needs.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
}

// Client implements web3.ReadClient and, when built with a signer,
// web3.WriteClient for EVM compatible chains.
type Client struct {
	chain        chain.Chain
	backend      Backend
	closer       func()
	key          *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	log          *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithSigner binds the client to a private key so it can submit transactions.
func WithSigner(key *ecdsa.PrivateKey) Option {
	return func(c *Client) {
		if key == nil {
			return
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
}

// WithPollInterval sets how often WaitForReceipt queries the node.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Dial connects to the chain's resolved RPC URL.
func Dial(ctx context.Context, c chain.Chain, opts ...Option) (*Client, error) {
	rpcURL := strings.TrimSpace(c.RPCURL())
	if rpcURL == "" {
		return nil, xerrors.Newf(xerrors.CodeUnsupportedChain, "chain %s has no rpc url", c.Name)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, fmt.Sprintf("dial %s", c.Name))
	}
	client := NewClient(c, eth, opts...)
	client.closer = eth.Close
	return client, nil
}

// NewClient wraps an existing backend. The caller keeps ownership of the
// backend's lifecycle.
func NewClient(c chain.Chain, backend Backend, opts ...Option) *Client {
	client := &Client{
		chain:        c,
		backend:      backend,
		pollInterval: defaultPollInterval,
		log:          logger.Named("ethereum").With("chain", c.Name),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Chain returns the metadata the client was built for.
func (c *Client) Chain() chain.Chain {
	return c.chain
}

// Address returns the signer address, or the zero address for read-only clients.
func (c *Client) Address() common.Address {
	return c.from
}

// Close releases the transport when the client dialled it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
}

// BalanceAt returns the native balance of account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "get balance")
	}
	return balance, nil
}

// TokenBalance reads balanceOf(owner) from an ERC-20 contract.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.callERC20(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(out)
}

// TokenDecimals reads decimals() from an ERC-20 contract.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.callERC20(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out.(uint8)
	if !ok {
		return 0, xerrors.Newf(xerrors.CodeRPCFailure, "unexpected decimals type %T", out)
	}
	return decimals, nil
}

// TokenSymbol reads symbol() from an ERC-20 contract.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := c.callERC20(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out.(string)
	if !ok {
		return "", xerrors.Newf(xerrors.CodeRPCFailure, "unexpected symbol type %T", out)
	}
	return symbol, nil
}

// TokenAllowance reads allowance(owner, spender) from an ERC-20 contract.
func (c *Client) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.callERC20(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(out)
}

// SendTransaction signs and submits req, returning the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, req web3.TxRequest) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeMissingPrivateKey, "client has no signer")
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeRPCFailure, err, "get nonce")
	}

	gas := req.Gas
	if gas == 0 {
		gas, err = c.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:  c.from,
			To:    req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, xerrors.Wrap(xerrors.CodeRPCFailure, err, "estimate gas")
		}
	}

	var tx *coretypes.Transaction
	if req.GasPrice != nil {
		tx = coretypes.NewTx(&coretypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice,
			Gas:      gas,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		})
	} else {
		tipCap, feeCap, err := c.suggestFees(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		tx = coretypes.NewTx(&coretypes.DynamicFeeTx{
			ChainID:   c.chain.ChainID(),
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		})
	}

	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chain.ChainID()), c.key)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidPrivateKey, err, "sign transaction")
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeRPCFailure, err, "send transaction")
	}

	logger.Audit().Info("transaction submitted",
		"chain", c.chain.Name,
		"from", c.from.Hex(),
		"to", addressOrCreate(req.To),
		"value", value.String(),
		"hash", signed.Hash().Hex(),
	)
	return signed.Hash(), nil
}

// TransferToken submits an ERC-20 transfer.
func (c *Client) TransferToken(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := web3.ERC20ABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode transfer")
	}
	return c.SendTransaction(ctx, web3.TxRequest{To: &token, Data: data})
}

// ApproveToken submits an ERC-20 approve.
func (c *Client) ApproveToken(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := web3.ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode approve")
	}
	return c.SendTransaction(ctx, web3.TxRequest{To: &token, Data: data})
}

// DeployContract sends the contract creation transaction for bytecode with
// ABI encoded constructor arguments.
func (c *Client) DeployContract(ctx context.Context, abiJSON string, bytecode []byte, args ...any) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeMissingPrivateKey, "client has no signer")
	}
	if len(bytecode) == 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeEmptyBytecode, "")
	}
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "parse abi")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chain.ChainID())
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidPrivateKey, err, "build transactor")
	}
	auth.Context = ctx

	address, tx, _, err := bind.DeployContract(auth, parsedABI, bytecode, c.backend, args...)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeRPCFailure, err, "deploy contract")
	}

	logger.Audit().Info("contract deployment submitted",
		"chain", c.chain.Name,
		"from", c.from.Hex(),
		"address", address.Hex(),
		"hash", tx.Hash().Hex(),
	)
	return tx.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined or ctx ends. Node
// errors such as "transaction indexing is in progress" are retried; only
// the context ends the wait.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err == nil, errors.Is(err, gethcore.NotFound):
		case ctx.Err() != nil:
		default:
			lastErr = err
			c.log.Debug("receipt not available yet", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			cause := ctx.Err()
			if lastErr != nil {
				cause = fmt.Errorf("%w (last node error: %v)", cause, lastErr)
			}
			return nil, xerrors.Wrap(xerrors.CodeRPCFailure, cause, fmt.Sprintf("wait for receipt %s", hash.Hex()))
		case <-ticker.C:
		}
	}
}

func (c *Client) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "suggest gas tip")
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, "get latest header")
	}
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return tipCap, feeCap, nil
}

func (c *Client) callERC20(ctx context.Context, token common.Address, method string, args ...any) (any, error) {
	data, err := web3.ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode "+method)
	}
	raw, err := c.backend.CallContract(ctx, gethcore.CallMsg{From: c.from, To: &token, Data: data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, fmt.Sprintf("call %s on %s", method, token.Hex()))
	}
	out, err := web3.ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeRPCFailure, err, fmt.Sprintf("decode %s from %s", method, token.Hex()))
	}
	if len(out) == 0 {
		return nil, xerrors.Newf(xerrors.CodeRPCFailure, "empty %s result from %s", method, token.Hex())
	}
	return out[0], nil
}

func asBigInt(v any) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, xerrors.Newf(xerrors.CodeRPCFailure, "unexpected integer type %T", v)
	}
	return n, nil
}

func addressOrCreate(to *common.Address) string {
	if to == nil {
		return "create"
	}
	return to.Hex()
}

var (
	_ web3.ReadClient  = (*Client)(nil)
	_ web3.WriteClient = (*Client)(nil)
)
