package lifi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "OpenMCP-Arbitrum/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestTokenLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/token", r.URL.Path)
		require.Equal(t, "42161", r.URL.Query().Get("chain"))
		require.Equal(t, "key", r.Header.Get("x-lifi-api-key"))
		if r.URL.Query().Get("token") != "USDC" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Could not find token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Token{
			Address:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			ChainID:  42161,
			Symbol:   "USDC",
			Decimals: 6,
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "key", Timeout: time.Second})

	token, err := client.Token(context.Background(), 42161, "USDC")
	require.NoError(t, err)
	require.EqualValues(t, 6, token.Decimals)
	require.Equal(t, "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", token.Address)

	_, err = client.Token(context.Background(), 42161, "NOPE")
	require.Error(t, err)
	require.Equal(t, xerrors.CodeTokenNotFound, xerrors.CodeOf(err))
}

func TestRoutesRequestShape(t *testing.T) {
	var captured RoutesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/advanced/routes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []Route{{ID: "route-1", Steps: []Step{{ID: "step-1", Tool: "uniswap"}}}},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/v1", Integrator: "tests"})
	slippage := 0.01
	routes, err := client.Routes(context.Background(), RoutesRequest{
		FromChainID:      42161,
		ToChainID:        42161,
		FromAmount:       "1000000000000000000",
		FromTokenAddress: "0x0000000000000000000000000000000000000000",
		ToTokenAddress:   "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		Options:          RoutesOptions{Slippage: &slippage},
	})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Equal(t, "route-1", routes[0].ID)

	require.Equal(t, OrderRecommended, captured.Options.Order)
	require.Equal(t, "tests", captured.Options.Integrator)
	require.NotNil(t, captured.Options.Slippage)
	require.InDelta(t, 0.01, *captured.Options.Slippage, 1e-9)
}

func TestStepTransactionRequiresPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var step Step
		require.NoError(t, json.NewDecoder(r.Body).Decode(&step))
		if step.ID == "empty" {
			_ = json.NewEncoder(w).Encode(step)
			return
		}
		step.TransactionRequest = &TransactionRequest{To: "0x00000000000000000000000000000000000000f1", Data: "0x01", Value: "0x0"}
		_ = json.NewEncoder(w).Encode(step)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	filled, err := client.StepTransaction(context.Background(), Step{ID: "ok"})
	require.NoError(t, err)
	require.Equal(t, "0x01", filled.TransactionRequest.Data)

	_, err = client.StepTransaction(context.Background(), Step{ID: "empty"})
	require.Equal(t, xerrors.CodeSwapFailed, xerrors.CodeOf(err))
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Routes(context.Background(), RoutesRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
	require.Equal(t, xerrors.CodeRPCFailure, xerrors.CodeOf(err))
}
