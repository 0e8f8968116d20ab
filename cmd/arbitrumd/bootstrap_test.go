package main

import (
	"context"
	"math/big"
	"testing"

	"OpenMCP-Arbitrum/internal/config"
	"OpenMCP-Arbitrum/internal/events"
	"OpenMCP-Arbitrum/internal/journal"

	"github.com/stretchr/testify/require"
)

func TestGasReserveFromConfig(t *testing.T) {
	reserve, err := gasReserve(config.Web3Config{SweepGasLimit: 21000, SweepGasPriceGwei: "3"})
	require.NoError(t, err)
	require.Equal(t, uint64(21000), reserve.Limit)
	require.Equal(t, 0, reserve.Price.Cmp(big.NewInt(3_000_000_000)))
	require.Equal(t, "63000000000000", reserve.Cost().String())

	reserve, err = gasReserve(config.Web3Config{SweepGasLimit: 30000, SweepGasPriceGwei: "0.1"})
	require.NoError(t, err)
	require.Equal(t, "100000000", reserve.Price.String())

	_, err = gasReserve(config.Web3Config{SweepGasPriceGwei: "cheap"})
	require.Error(t, err)
}

func TestDefaultDrivers(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.Default(t.TempDir())

	store, err := createJournal(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &journal.MemoryStore{}, store)
	require.NoError(t, store.Close())

	publisher, err := createPublisher(cfg)
	require.NoError(t, err)
	require.IsType(t, events.Nop{}, publisher)

	client, err := createLLMClient(cfg)
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestBootstrapRequiresPrivateKey(t *testing.T) {
	t.Setenv("ARBITRUM_PRIVATE_KEY", "")
	cfg := config.Default(t.TempDir())
	_, err := bootstrap(context.Background(), cfg)
	require.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "exec", "actions", "wallet", "journal"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
