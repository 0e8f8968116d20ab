package actions

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"testing"

	"OpenMCP-Arbitrum/internal/chain"
	"OpenMCP-Arbitrum/internal/compiler"
	xerrors "OpenMCP-Arbitrum/internal/errors"
	"OpenMCP-Arbitrum/internal/lifi"
	"OpenMCP-Arbitrum/internal/swap"
	"OpenMCP-Arbitrum/internal/wallet"
	"OpenMCP-Arbitrum/internal/web3"
	"OpenMCP-Arbitrum/internal/web3/web3test"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	testKey   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	recipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

var oneEther = big.NewInt(1_000_000_000_000_000_000)

type mapSettings map[string]string

func (m mapSettings) GetSetting(key string) string { return m[key] }

type fakeRouter struct {
	routes    []lifi.Route
	execution swap.Execution
	requests  []swap.Request
	executed  int
}

func (r *fakeRouter) Routes(_ context.Context, req swap.Request) ([]lifi.Route, error) {
	r.requests = append(r.requests, req)
	return r.routes, nil
}

func (r *fakeRouter) Execute(context.Context, web3.WriteClient, lifi.Route) (swap.Execution, error) {
	r.executed++
	return r.execution, nil
}

type fakeCompiler struct {
	artifact compiler.Artifact
	calls    []compiler.Kind
}

func (c *fakeCompiler) Compile(_ context.Context, kind compiler.Kind) (compiler.Artifact, error) {
	c.calls = append(c.calls, kind)
	return c.artifact, nil
}

// tokenTable resolves symbols to addresses and records the chains queried.
type tokenTable struct {
	addresses map[string]common.Address
	chainIDs  []int64
}

func (t *tokenTable) Token(_ context.Context, chainID int64, symbol string) (lifi.Token, error) {
	t.chainIDs = append(t.chainIDs, chainID)
	addr, ok := t.addresses[symbol]
	if !ok {
		return lifi.Token{}, xerrors.Newf(xerrors.CodeTokenNotFound, "token %s not found", symbol)
	}
	return lifi.Token{Address: addr.Hex(), Symbol: symbol}, nil
}

type fixture struct {
	client   *web3test.Client
	tokens   *tokenTable
	wallet   *wallet.Provider
	router   *fakeRouter
	compiler *fakeCompiler
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		router:   &fakeRouter{},
		tokens:   &tokenTable{addresses: map[string]common.Address{}},
		compiler: &fakeCompiler{artifact: compiler.Artifact{Name: "ERC20Contract", ABI: "[]", Bytecode: []byte{0x60, 0x80}}},
	}
	dial := func(_ context.Context, c chain.Chain, _ *ecdsa.PrivateKey) (web3.WriteClient, error) {
		f.client.ChainMeta = c
		return f.client, nil
	}
	w, err := wallet.New(testKey, wallet.WithDialer(dial), wallet.WithTokenLookup(f.tokens))
	require.NoError(t, err)
	f.wallet = w
	f.client = web3test.NewClient(chain.Chain{}, w.Address())
	f.deps = Deps{Wallet: w, Router: f.router, Compiler: f.compiler}
	return f
}

func TestGetBalanceNative(t *testing.T) {
	f := newFixture(t)
	f.client.Balances[f.wallet.Address()] = new(big.Int).Mul(big.NewInt(15), big.NewInt(100_000_000_000_000_000))

	resp, err := NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Token: "eth"})
	require.NoError(t, err)
	require.Equal(t, chain.Arbitrum, resp.Chain)
	require.Equal(t, f.wallet.Address().Hex(), resp.Address)
	require.Equal(t, "1.5", resp.Balance.Amount)
	require.Equal(t, "ETH", resp.Balance.Token)
}

func TestGetBalanceTokenSymbolRequiresMainnet(t *testing.T) {
	f := newFixture(t)
	_, err := NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Chain: chain.ArbitrumSepolia, Token: "USDC"})
	require.Equal(t, xerrors.CodeIneligibleChain, xerrors.CodeOf(err))
}

func TestGetBalanceTokenSymbolOnMainnet(t *testing.T) {
	f := newFixture(t)
	usdc := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	f.tokens.addresses["USDC"] = usdc
	tok := f.client.AddToken(usdc, "USDC", 6)
	tok.Balances[f.wallet.Address()] = big.NewInt(7_250_000)

	resp, err := NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Token: "USDC"})
	require.NoError(t, err)
	require.Equal(t, "7.25", resp.Balance.Amount)
	require.Equal(t, "USDC", resp.Balance.Token)
	require.Equal(t, []int64{chain.ArbitrumChainID}, f.tokens.chainIDs)

	_, err = NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Token: "DAI"})
	require.Equal(t, xerrors.CodeTokenNotFound, xerrors.CodeOf(err))
}

func TestGetBalanceTokenAddress(t *testing.T) {
	f := newFixture(t)
	token := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	tok := f.client.AddToken(token, "USDC", 6)
	tok.Balances[f.wallet.Address()] = big.NewInt(2_500_000)

	resp, err := NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Token: token.Hex()})
	require.NoError(t, err)
	require.Equal(t, "2.5", resp.Balance.Amount)
}

func TestTransferNativeAmount(t *testing.T) {
	f := newFixture(t)
	resp, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{Amount: "1", ToAddress: recipient})
	require.NoError(t, err)
	require.Equal(t, "1", resp.Amount)
	require.Equal(t, "ETH", resp.Token)
	require.Len(t, f.client.Sent, 1)
	require.Equal(t, oneEther.String(), f.client.Sent[0].Value.String())
	require.Zero(t, f.client.Sent[0].Gas)
	require.Nil(t, f.client.Sent[0].GasPrice)
	require.Equal(t, []common.Hash{common.HexToHash(resp.TxHash)}, f.client.Waited)
}

func TestTransferSweepHoldsGasReserve(t *testing.T) {
	f := newFixture(t)
	f.client.Balances[f.wallet.Address()] = new(big.Int).Set(oneEther)

	resp, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{ToAddress: recipient})
	require.NoError(t, err)
	require.Len(t, f.client.Sent, 1)
	sent := f.client.Sent[0]
	require.Equal(t, "999937000000000000", sent.Value.String())
	require.Equal(t, DefaultSweepGasLimit, sent.Gas)
	require.Equal(t, "3000000000", sent.GasPrice.String())
	require.Equal(t, "0.999937", resp.Amount)
}

func TestTransferSweepBelowReserve(t *testing.T) {
	f := newFixture(t)
	f.client.Balances[f.wallet.Address()] = big.NewInt(1000)
	_, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{ToAddress: recipient})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	require.Empty(t, f.client.Sent)
}

func TestTransferFailures(t *testing.T) {
	f := newFixture(t)
	action := NewTransferAction(f.deps)

	_, err := action.Transfer(context.Background(), TransferParams{Amount: "1"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	require.Contains(t, xerrors.UserMessage(err), "To address is required")

	f.client.ZeroHash = true
	_, err = action.Transfer(context.Background(), TransferParams{Amount: "1", ToAddress: recipient})
	require.Equal(t, xerrors.CodeMissingTxHash, xerrors.CodeOf(err))

	f.client.ZeroHash = false
	f.client.Revert = true
	_, err = action.Transfer(context.Background(), TransferParams{Amount: "1", ToAddress: recipient})
	require.Equal(t, xerrors.CodeTxReverted, xerrors.CodeOf(err))
}

func TestTransferToken(t *testing.T) {
	f := newFixture(t)
	token := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tok := f.client.AddToken(token, "TKN", 6)
	tok.Balances[f.wallet.Address()] = big.NewInt(5_000_000)

	resp, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{Token: token.Hex(), Amount: "1.25", ToAddress: recipient})
	require.NoError(t, err)
	require.Equal(t, "1.25", resp.Amount)
	require.Len(t, f.client.Transfers, 1)
	require.Equal(t, "1250000", f.client.Transfers[0].Amount.String())
}

func TestTransferTokenBySymbol(t *testing.T) {
	f := newFixture(t)
	usdc := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	f.tokens.addresses["USDC"] = usdc
	tok := f.client.AddToken(usdc, "USDC", 6)
	tok.Balances[f.wallet.Address()] = big.NewInt(5_000_000)

	resp, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{Token: "USDC", Amount: "2", ToAddress: recipient})
	require.NoError(t, err)
	require.Equal(t, "USDC", resp.Token)
	require.Equal(t, "2", resp.Amount)
	require.Len(t, f.client.Transfers, 1)
	require.Equal(t, usdc, f.client.Transfers[0].Token)
	require.Equal(t, common.HexToAddress(recipient), f.client.Transfers[0].To)
	require.Equal(t, "2000000", f.client.Transfers[0].Amount.String())
	require.Equal(t, []int64{chain.ArbitrumChainID}, f.tokens.chainIDs)
}

func TestChainNamesAreCanonical(t *testing.T) {
	f := newFixture(t)

	balance, err := NewBalanceAction(f.deps).GetBalance(context.Background(), GetBalanceParams{Chain: "ARBITRUM"})
	require.NoError(t, err)
	require.Equal(t, chain.Arbitrum, balance.Chain)

	transfer, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{Chain: "ArbitrumSepolia", Amount: "1", ToAddress: recipient})
	require.NoError(t, err)
	require.Equal(t, chain.ArbitrumSepolia, transfer.Chain)
	require.Equal(t, chain.ArbitrumSepolia, f.wallet.CurrentChain().Name)
	require.NotContains(t, f.wallet.Chains(), "ArbitrumSepolia")

	_, err = NewSwapAction(f.deps).Swap(context.Background(), SwapParams{Chain: "ARBITRUM", FromToken: "ETH", ToToken: "USDC", Amount: "1"})
	require.Equal(t, xerrors.CodeNoRoute, xerrors.CodeOf(err))
	require.Len(t, f.router.requests, 1)

	_, err = NewSwapAction(f.deps).Swap(context.Background(), SwapParams{Chain: "optimism", FromToken: "ETH", ToToken: "USDC", Amount: "1"})
	require.Equal(t, xerrors.CodeUnsupportedChain, xerrors.CodeOf(err))
}

func TestTransferRejectsExponentAmount(t *testing.T) {
	f := newFixture(t)
	_, err := NewTransferAction(f.deps).Transfer(context.Background(), TransferParams{Amount: "1e3", ToAddress: recipient})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	require.Empty(t, f.client.Sent)
}

func TestTransferHandlerRequiresDirectSource(t *testing.T) {
	f := newFixture(t)
	var got plugin.Result
	err := NewTransferAction(f.deps).handle(context.Background(), plugin.Invocation{
		Message: plugin.Message{Source: "telegram"},
		Params:  json.RawMessage(`{"amount":"1","toAddress":"` + recipient + `"}`),
	}, func(r plugin.Result) { got = r })
	require.Error(t, err)
	require.Equal(t, "I can't do that for you.", got.Text)
	require.Equal(t, map[string]any{"error": "Transfer not allowed"}, got.Content)
	require.Empty(t, f.client.Sent)
}

func TestTransferHandlerReportsSuccess(t *testing.T) {
	f := newFixture(t)
	var got plugin.Result
	err := NewTransferAction(f.deps).handle(context.Background(), plugin.Invocation{
		Message: plugin.Message{Source: SourceDirect},
		Params:  json.RawMessage(`{"amount":1,"toAddress":"` + recipient + `"}`),
	}, func(r plugin.Result) { got = r })
	require.NoError(t, err)
	require.Contains(t, got.Text, "Successfully transferred 1 ETH to "+common.HexToAddress(recipient).Hex())
	require.Contains(t, got.Text, "Transaction Hash: 0x")
}

func TestSwapRejectsOtherChainsBeforeRouting(t *testing.T) {
	f := newFixture(t)
	var got plugin.Result
	err := NewSwapAction(f.deps).handle(context.Background(), plugin.Invocation{
		Params: json.RawMessage(`{"chain":"arbitrumSepolia","inputToken":"ETH","outputToken":"USDC","amount":"1"}`),
	}, func(r plugin.Result) { got = r })
	require.Equal(t, xerrors.CodeIneligibleChain, xerrors.CodeOf(err))
	require.Equal(t, "Swap failed: Only Arbitrum mainnet is supported", got.Text)
	require.Empty(t, f.router.requests)
}

func TestSwapNoRoute(t *testing.T) {
	f := newFixture(t)
	_, err := NewSwapAction(f.deps).Swap(context.Background(), SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "1"})
	require.Equal(t, xerrors.CodeNoRoute, xerrors.CodeOf(err))
	require.Zero(t, f.router.executed)
}

func TestSwapSlippageRange(t *testing.T) {
	f := newFixture(t)
	bad := 1.0
	_, err := NewSwapAction(f.deps).Swap(context.Background(), SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "1", Slippage: &bad})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
	require.Empty(t, f.router.requests)
}

func TestSwapUsesFinalProcess(t *testing.T) {
	f := newFixture(t)
	f.router.routes = []lifi.Route{{ID: "route-1"}}
	f.router.execution = swap.Execution{RouteID: "route-1", Steps: []swap.StepExecution{{
		StepID: "s1",
		Process: []swap.Process{
			{Type: swap.ProcessTokenAllowance, Status: swap.StatusDone, TxHash: "0xapprove"},
			{Type: swap.ProcessSwap, Status: swap.StatusDone, TxHash: "0xswap"},
		},
	}}}

	resp, err := NewSwapAction(f.deps).Swap(context.Background(), SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "0.5"})
	require.NoError(t, err)
	require.Equal(t, "0xswap", resp.TxHash)
	require.Len(t, f.router.requests, 1)
	req := f.router.requests[0]
	require.Equal(t, chain.ArbitrumChainID, req.ChainID)
	require.Equal(t, "500000000000000000", req.Amount.String())
	require.Equal(t, f.wallet.Address(), req.FromAddress)

	f.router.execution.Steps[0].Process[1].Status = swap.StatusFailed
	_, err = NewSwapAction(f.deps).Swap(context.Background(), SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "0.5"})
	require.Equal(t, xerrors.CodeSwapFailed, xerrors.CodeOf(err))
}

func TestDeployValidatesBeforeCompiling(t *testing.T) {
	f := newFixture(t)
	action := NewDeployAction(f.deps)

	_, err := action.DeployERC20(context.Background(), DeployERC20Params{Symbol: "MTK", Decimals: 18, TotalSupply: "1"})
	require.Contains(t, xerrors.UserMessage(err), "Token name is required")
	_, err = action.DeployERC721(context.Background(), DeployERC721Params{Name: "MyNFT", Symbol: "MNFT"})
	require.Contains(t, xerrors.UserMessage(err), "Token baseURI is required")
	_, err = action.Deploy(context.Background(), DeployParams{ContractType: "ERC777", Name: "x"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	require.Empty(t, f.compiler.calls)
	require.Empty(t, f.client.Deployments)
}

func TestDeployERC20(t *testing.T) {
	f := newFixture(t)
	f.client.DeployedAddress = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	var got plugin.Result
	err := NewDeployAction(f.deps).handle(context.Background(), plugin.Invocation{
		Params: json.RawMessage(`{"contractType":"erc20","name":"MyToken","symbol":"MTK","decimals":"6","totalSupply":10000}`),
	}, func(r plugin.Result) { got = r })
	require.NoError(t, err)
	require.Equal(t, "Successfully create contract - "+f.client.DeployedAddress.Hex(), got.Text)
	require.Equal(t, []compiler.Kind{compiler.KindERC20}, f.compiler.calls)

	require.Len(t, f.client.Deployments, 1)
	args := f.client.Deployments[0].Args
	require.Len(t, args, 4)
	require.Equal(t, "MyToken", args[0])
	require.Equal(t, "MTK", args[1])
	require.Equal(t, uint8(6), args[2])
	require.Equal(t, "10000000000", args[3].(*big.Int).String())
}

func TestDeployEmptyBytecode(t *testing.T) {
	f := newFixture(t)
	f.compiler.artifact.Bytecode = nil
	_, err := NewDeployAction(f.deps).DeployERC1155(context.Background(), DeployERC1155Params{Name: "My1155", BaseURI: "https://x"})
	require.Equal(t, xerrors.CodeEmptyBytecode, xerrors.CodeOf(err))
	require.Empty(t, f.client.Deployments)
}

func TestHasPrivateKey(t *testing.T) {
	require.True(t, HasPrivateKey(mapSettings{wallet.SettingPrivateKey: testKey}))
	require.False(t, HasPrivateKey(mapSettings{wallet.SettingPrivateKey: testKey[2:]}))
	require.False(t, HasPrivateKey(mapSettings{}))
	require.False(t, HasPrivateKey(nil))
}

func TestPluginDescribesActions(t *testing.T) {
	f := newFixture(t)
	p := NewPlugin(f.deps, "test")
	require.Equal(t, PluginID, p.Info().ID)

	var names []string
	for _, a := range p.Actions() {
		names = append(names, a.Name)
		require.NotEmpty(t, a.Template)
		require.Contains(t, a.Template, "{{recentMessages}}")
		require.NotContains(t, a.Template, "SUPPORTED_CHAINS")
	}
	require.Equal(t, []string{NameGetBalance, NameTransfer, NameSwap, NameDeploy}, names)

	f.client.Balances[f.wallet.Address()] = new(big.Int).Set(oneEther)
	summary, err := p.Providers()[0].Get(context.Background(), plugin.Message{})
	require.NoError(t, err)
	require.Contains(t, summary, "Balance: 1 ETH")
}
