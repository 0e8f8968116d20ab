package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"OpenMCP-Arbitrum/internal/agent"
	"OpenMCP-Arbitrum/internal/api"
	"OpenMCP-Arbitrum/internal/auth"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/spf13/cobra"
)

func newServeCmd(load configLoader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			ctx := cmd.Context()
			app, err := bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			authSvc, err := auth.NewService(cfg.Auth)
			if err != nil {
				return err
			}
			logger.L().Info("API 服务启动", "address", cfg.Server.Address, "auth", authSvc.Enabled())
			server := api.NewServer(cfg.Server.Address, app.runtime, api.WithAuth(authSvc))
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}

func newExecCmd(load configLoader) *cobra.Command {
	var (
		params string
		text   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "exec ACTION",
		Short: "Execute one action with JSON parameters or free text",
		Example: `  arbitrumd exec getBalance --params '{"chain":"arbitrum"}'
  arbitrumd exec transfer --text "Transfer 0.01 ETH to vitalik.eth"
  arbitrumd exec DEPLOY_TOKEN --params '{"contractType":"ERC20","name":"MyToken","symbol":"MTK","decimals":18,"totalSupply":"10000"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if params == "" && text == "" {
				return errors.New("需要提供 --params 或 --text")
			}
			var raw json.RawMessage
			if params != "" {
				if !json.Valid([]byte(params)) {
					return errors.New("--params 不是合法的 JSON")
				}
				raw = json.RawMessage(params)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			result, execErr := app.runtime.Execute(ctx, agent.Request{
				Action: args[0],
				Text:   text,
				Source: source,
				Params: raw,
			})
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			return execErr
		},
	}
	cmd.Flags().StringVar(&params, "params", "", "action parameters as a JSON object")
	cmd.Flags().StringVar(&text, "text", "", "natural language request to extract parameters from")
	cmd.Flags().StringVar(&source, "source", "direct", "message source; transfers require direct")
	return cmd
}

func newActionsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List registered actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tENABLED\tSIMILES\tDESCRIPTION")
			for _, a := range app.runtime.Actions() {
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", a.Name, a.Enabled, strings.Join(a.Similes, ","), a.Description)
			}
			return tw.Flush()
		},
	}
}

func newWalletCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Print the wallet summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			summary := app.runtime.ProviderContext(cmd.Context(), plugin.Message{Source: "direct"})
			if summary == "" {
				return errors.New("无法读取钱包余额")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}
}

func newJournalCmd(load configLoader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent action invocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			entries, err := app.runtime.Journal(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
