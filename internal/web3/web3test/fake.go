// Package web3test provides an in-memory web3.WriteClient for tests of the
// layers built on top of chain clients.
package web3test

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"OpenMCP-Arbitrum/internal/chain"
	"OpenMCP-Arbitrum/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Token is the state of a fake ERC-20 contract.
type Token struct {
	Symbol     string
	Decimals   uint8
	Balances   map[common.Address]*big.Int
	Allowances map[common.Address]map[common.Address]*big.Int
}

// TokenCall records an ERC-20 transfer or approve.
type TokenCall struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
}

// Deployment records a contract creation.
type Deployment struct {
	ABI      string
	Bytecode []byte
	Args     []any
}

// Client is a scriptable fake chain. The zero value is not usable; build
// one with NewClient.
type Client struct {
	mu sync.Mutex

	ChainMeta chain.Chain
	From      common.Address
	Balances  map[common.Address]*big.Int
	Tokens    map[common.Address]*Token

	// DeployedAddress is reported in deployment receipts.
	DeployedAddress common.Address
	// ZeroHash makes every write report an empty transaction hash.
	ZeroHash bool
	// Revert makes every receipt report a failed status.
	Revert bool
	// Err is returned by every call when set.
	Err error

	Sent        []web3.TxRequest
	Transfers   []TokenCall
	Approvals   []TokenCall
	Deployments []Deployment
	Waited      []common.Hash
	Closed      bool

	nonce    uint64
	receipts map[common.Hash]*coretypes.Receipt
}

// NewClient returns a fake bound to c with from as signer.
func NewClient(c chain.Chain, from common.Address) *Client {
	return &Client{
		ChainMeta: c,
		From:      from,
		Balances:  make(map[common.Address]*big.Int),
		Tokens:    make(map[common.Address]*Token),
		receipts:  make(map[common.Hash]*coretypes.Receipt),
	}
}

// AddToken registers a fake ERC-20 contract.
func (c *Client) AddToken(addr common.Address, symbol string, decimals uint8) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := &Token{
		Symbol:     symbol,
		Decimals:   decimals,
		Balances:   make(map[common.Address]*big.Int),
		Allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	c.Tokens[addr] = tok
	return tok
}

func (c *Client) Chain() chain.Chain { return c.ChainMeta }

func (c *Client) Address() common.Address { return c.From }

func (c *Client) Close() {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
}

func (c *Client) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return valueOrZero(c.Balances[account]), nil
}

func (c *Client) TokenBalance(_ context.Context, token, owner common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return nil, err
	}
	return valueOrZero(tok.Balances[owner]), nil
}

func (c *Client) TokenDecimals(_ context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return 0, err
	}
	return tok.Decimals, nil
}

func (c *Client) TokenSymbol(_ context.Context, token common.Address) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return "", err
	}
	return tok.Symbol, nil
}

func (c *Client) TokenAllowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return nil, err
	}
	return valueOrZero(tok.Allowances[owner][spender]), nil
}

func (c *Client) SendTransaction(_ context.Context, req web3.TxRequest) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return common.Hash{}, c.Err
	}
	c.Sent = append(c.Sent, req)
	if req.To != nil && req.Value != nil {
		c.Balances[*req.To] = new(big.Int).Add(valueOrZero(c.Balances[*req.To]), req.Value)
	}
	return c.record(common.Address{}), nil
}

func (c *Client) TransferToken(_ context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return common.Hash{}, err
	}
	c.Transfers = append(c.Transfers, TokenCall{Token: token, To: to, Amount: amount})
	tok.Balances[to] = new(big.Int).Add(valueOrZero(tok.Balances[to]), amount)
	return c.record(common.Address{}), nil
}

func (c *Client) ApproveToken(_ context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.token(token)
	if err != nil {
		return common.Hash{}, err
	}
	c.Approvals = append(c.Approvals, TokenCall{Token: token, To: spender, Amount: amount})
	if tok.Allowances[c.From] == nil {
		tok.Allowances[c.From] = make(map[common.Address]*big.Int)
	}
	tok.Allowances[c.From][spender] = new(big.Int).Set(amount)
	return c.record(common.Address{}), nil
}

func (c *Client) DeployContract(_ context.Context, abiJSON string, bytecode []byte, args ...any) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return common.Hash{}, c.Err
	}
	c.Deployments = append(c.Deployments, Deployment{ABI: abiJSON, Bytecode: bytecode, Args: args})
	return c.record(c.DeployedAddress), nil
}

func (c *Client) WaitForReceipt(_ context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Waited = append(c.Waited, hash)
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, errors.New("receipt not found")
	}
	return receipt, nil
}

func (c *Client) token(addr common.Address) (*Token, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	tok, ok := c.Tokens[addr]
	if !ok {
		return nil, errors.New("execution reverted: not a token contract")
	}
	return tok, nil
}

func (c *Client) record(contract common.Address) common.Hash {
	c.nonce++
	if c.ZeroHash {
		return common.Hash{}
	}
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], c.nonce)
	hash := crypto.Keccak256Hash(c.From.Bytes(), seed[:])

	status := coretypes.ReceiptStatusSuccessful
	if c.Revert {
		status = coretypes.ReceiptStatusFailed
	}
	c.receipts[hash] = &coretypes.Receipt{
		Status:          status,
		TxHash:          hash,
		ContractAddress: contract,
		BlockNumber:     new(big.Int).SetUint64(c.nonce),
	}
	return hash
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

var _ web3.WriteClient = (*Client)(nil)
