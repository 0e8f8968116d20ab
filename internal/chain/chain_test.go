package chain

import (
	"os"
	"path/filepath"
	"testing"

	xerrors "OpenMCP-Arbitrum/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestBuiltinChainIDs(t *testing.T) {
	cases := map[string]int64{
		Arbitrum:        42161,
		ArbitrumSepolia: 421614,
	}
	for name, id := range cases {
		c, err := Lookup(name)
		require.NoError(t, err)
		require.Equal(t, id, c.ID)
		require.Equal(t, "ETH", c.NativeCurrency.Symbol)
		require.EqualValues(t, 18, c.NativeCurrency.Decimals)
		require.Equal(t, c.RPC.Default, c.RPCURL())
	}
}

func TestLookupUnknownChainFails(t *testing.T) {
	_, err := Lookup("optimism")
	require.Error(t, err)
	require.Equal(t, xerrors.CodeUnsupportedChain, xerrors.CodeOf(err))

	_, err = GenChainFromName("", "https://custom.example")
	require.Equal(t, xerrors.CodeUnsupportedChain, xerrors.CodeOf(err))
}

func TestLookupIsCaseInsensitiveFallback(t *testing.T) {
	c, err := Lookup("ArbitrumSepolia")
	require.NoError(t, err)
	require.Equal(t, ArbitrumSepolia, c.Name)
}

func TestGenChainFromNameCopiesOnCustomize(t *testing.T) {
	r := NewRegistry()

	custom, err := r.GenChainFromName(Arbitrum, "https://custom.example/rpc")
	require.NoError(t, err)
	require.Equal(t, "https://custom.example/rpc", custom.RPCURL())

	pristine, err := r.Lookup(Arbitrum)
	require.NoError(t, err)
	require.Empty(t, pristine.RPC.Custom)
	require.Equal(t, "https://arb1.arbitrum.io/rpc", pristine.RPCURL())

	unchanged, err := r.GenChainFromName(Arbitrum, "  ")
	require.NoError(t, err)
	require.Equal(t, pristine, unchanged)
}

func TestRegisterValidates(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Chain{Name: "nova"}))
	require.Error(t, r.Register(Chain{Name: "nova", ID: 42170}))
	require.NoError(t, r.Register(Chain{Name: "nova", ID: 42170, RPC: RPCURLs{Default: "https://nova.arbitrum.io/rpc"}}))

	nova, err := r.Lookup("nova")
	require.NoError(t, err)
	require.Equal(t, "ETH", nova.NativeCurrency.Symbol)
	require.Contains(t, r.Names(), "nova")
}

func TestDefinitionsApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	content := `chains:
  arbitrum:
    rpc_url: https://arbitrum.node.internal
  nova:
    id: 42170
    display_name: Arbitrum Nova
    rpc_url: https://nova.arbitrum.io/rpc
    native_currency:
      name: Ether
      symbol: ETH
      decimals: 18
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs.Chains, 2)

	r := NewRegistry()
	require.NoError(t, defs.Apply(r))

	arb, err := r.Lookup(Arbitrum)
	require.NoError(t, err)
	require.Equal(t, ArbitrumChainID, arb.ID)
	require.Equal(t, "https://arbitrum.node.internal", arb.RPCURL())

	nova, err := r.Lookup("nova")
	require.NoError(t, err)
	require.Equal(t, int64(42170), nova.ID)
	require.Equal(t, "Arbitrum Nova", nova.DisplayName)
}

func TestLoadDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadDefinitions("")
	require.NoError(t, err)
	require.Empty(t, defs.Chains)
}
