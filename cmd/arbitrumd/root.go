package main

import (
	"fmt"

	"OpenMCP-Arbitrum/internal/config"

	"github.com/spf13/cobra"
)

// version 在构建时通过 -ldflags 注入。
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "arbitrumd",
		Short: "Run balance, transfer, swap and deploy actions on Arbitrum",
		Long: fmt.Sprintf(`arbitrumd exposes Arbitrum wallet actions over a REST API and from the
command line. Configuration is read from --config or the %s
environment variable; without either, built-in defaults and environment
variables such as ARBITRUM_PRIVATE_KEY are used.`, config.EnvConfigPath),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the JSON configuration file")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.Load(configPath)
		}
		return config.LoadFromEnv()
	}

	root.AddCommand(
		newServeCmd(load),
		newExecCmd(load),
		newActionsCmd(load),
		newWalletCmd(load),
		newJournalCmd(load),
	)
	return root
}

type configLoader func() (*config.Config, error)
