package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"OpenMCP-Arbitrum/internal/actions"
	"OpenMCP-Arbitrum/internal/agent"
	"OpenMCP-Arbitrum/internal/chain"
	"OpenMCP-Arbitrum/internal/compiler"
	"OpenMCP-Arbitrum/internal/config"
	"OpenMCP-Arbitrum/internal/events"
	"OpenMCP-Arbitrum/internal/journal"
	"OpenMCP-Arbitrum/internal/lifi"
	"OpenMCP-Arbitrum/internal/llm"
	"OpenMCP-Arbitrum/internal/llm/openai"
	"OpenMCP-Arbitrum/internal/llm/pythonbridge"
	"OpenMCP-Arbitrum/internal/names"
	"OpenMCP-Arbitrum/internal/observability/alerting"
	"OpenMCP-Arbitrum/internal/storage/mysql"
	"OpenMCP-Arbitrum/internal/storage/redis"
	"OpenMCP-Arbitrum/internal/swap"
	"OpenMCP-Arbitrum/internal/wallet"
	"OpenMCP-Arbitrum/internal/web3/units"
	"OpenMCP-Arbitrum/pkg/logger"
	"OpenMCP-Arbitrum/pkg/plugin"

	"github.com/ethereum/go-ethereum/common"
)

// application 持有一次进程运行所需的全部组件。
type application struct {
	runtime *agent.Runtime
	manager *plugin.Manager
	closers []func()
}

// Close 停止插件并释放存储、发布器与名称解析连接。
func (a *application) Close(ctx context.Context) {
	if a.manager != nil {
		if err := a.manager.StopAll(ctx); err != nil {
			logger.L().Warn("停止插件失败", "error", err)
		}
	}
	if a.runtime != nil {
		if err := a.runtime.Close(); err != nil {
			logger.L().Warn("关闭运行时失败", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = logger.Sync()
}

// bootstrap 按配置组装钱包、插件、参数抽取、调用记录与告警。
func bootstrap(ctx context.Context, cfg *config.Config) (app *application, err error) {
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	app = &application{}
	defer func() {
		if err != nil {
			app.Close(context.Background())
			app = nil
		}
	}()

	settings := cfg.PluginSettings()

	registry := chain.Default()
	defs, err := chain.LoadDefinitions(cfg.Web3.ChainsFile)
	if err != nil {
		return app, err
	}
	if err := defs.Apply(registry); err != nil {
		return app, err
	}

	lookup, err := buildNameLookup(ctx, cfg.Names, app)
	if err != nil {
		return app, err
	}

	lifiClient := lifi.NewClient(lifi.Config{
		BaseURL:    cfg.LiFi.BaseURL,
		APIKey:     cfg.LiFi.APIKey,
		Integrator: cfg.LiFi.Integrator,
		Timeout:    time.Duration(cfg.LiFi.TimeoutSeconds) * time.Second,
	})

	w, err := wallet.NewFromSettings(settings,
		wallet.WithRegistry(registry),
		wallet.WithDialer(wallet.EthereumDialer(time.Duration(cfg.Web3.PollIntervalMS)*time.Millisecond)),
		wallet.WithNameLookup(lookup),
		wallet.WithTokenLookup(lifiClient),
	)
	if err != nil {
		return app, err
	}

	reserve, err := gasReserve(cfg.Web3)
	if err != nil {
		return app, err
	}

	var solcOpts []compiler.Option
	if cfg.Compiler.OptimizerRuns != nil {
		solcOpts = append(solcOpts, compiler.WithOptimizerRuns(*cfg.Compiler.OptimizerRuns))
	}

	arbitrum := actions.NewPlugin(actions.Deps{
		Wallet:   w,
		Router:   swap.NewLiFiRouter(lifiClient),
		Compiler: compiler.NewSolc(cfg.Compiler.SolcPath, solcOpts...),
		Reserve:  reserve,
	}, version)

	managerCfg, err := plugin.LoadManagerConfig(cfg.Plugins.ConfigPath)
	if err != nil {
		return app, err
	}
	if len(managerCfg.Defaults.AllowedCapabilities) == 0 {
		managerCfg.Defaults.AllowedCapabilities = arbitrum.Info().Capabilities
	}
	manager, err := plugin.NewManager(managerCfg)
	if err != nil {
		return app, err
	}
	if err := manager.Register(arbitrum); err != nil {
		return app, err
	}
	if err := manager.StartAll(ctx); err != nil {
		return app, err
	}
	app.manager = manager

	opts := []agent.Option{
		agent.WithExtractTimeout(time.Duration(cfg.Runtime.ExtractTimeoutSeconds) * time.Second),
	}

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return app, err
	}
	if llmClient != nil {
		opts = append(opts, agent.WithExtractor(llm.NewExtractor(llmClient)))
	}

	store, err := createJournal(ctx, cfg)
	if err != nil {
		return app, err
	}
	opts = append(opts, agent.WithJournal(store))

	publisher, err := createPublisher(cfg)
	if err != nil {
		_ = store.Close()
		return app, err
	}
	opts = append(opts, agent.WithPublisher(publisher))

	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if url := strings.TrimSpace(cfg.Alerting.WebhookURL); url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url})
	}
	opts = append(opts, agent.WithAlerts(alerting.NewFanout(notifiers...)))

	app.runtime = agent.New(manager, settings, opts...)
	return app, nil
}

// buildNameLookup 选择唯一的名称解析来源：优先地址簿，其次 ENS。
func buildNameLookup(ctx context.Context, cfg config.NamesConfig, app *application) (names.Lookup, error) {
	if cfg.AddressBook != "" {
		return names.LoadStaticResolver(cfg.AddressBook)
	}
	if cfg.ENSRPCURL == "" {
		return nil, nil
	}
	var opts []names.ENSOption
	if cfg.ENSRegistry != "" {
		if !common.IsHexAddress(cfg.ENSRegistry) {
			return nil, fmt.Errorf("ENS registry 地址非法: %s", cfg.ENSRegistry)
		}
		opts = append(opts, names.WithRegistry(common.HexToAddress(cfg.ENSRegistry)))
	}
	resolver, err := names.DialENS(ctx, cfg.ENSRPCURL, opts...)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, resolver.Close)
	return resolver, nil
}

func gasReserve(cfg config.Web3Config) (actions.GasReserve, error) {
	price, err := units.ParseUnits(cfg.SweepGasPriceGwei, 9)
	if err != nil {
		return actions.GasReserve{}, fmt.Errorf("sweep_gas_price_gwei 非法: %w", err)
	}
	return actions.GasReserve{Limit: cfg.SweepGasLimit, Price: price}, nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case config.DriverNone:
		return nil, nil
	case config.ProviderPythonBridge:
		return pythonbridge.NewClient(pythonbridge.Config{
			Executable: cfg.LLM.Python.PythonExecutable,
			ScriptPath: cfg.LLM.Python.ScriptPath,
			WorkingDir: cfg.LLM.Python.WorkingDir,
		})
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Driver {
	case config.DriverMemory:
		return journal.NewMemoryStore(cfg.Runtime.DataDir)
	case config.DriverMySQL:
		m := cfg.Journal.MySQL
		return mysql.NewJournalRepository(ctx, mysql.Config{
			DSN:             m.DSN,
			MaxOpenConns:    m.MaxOpenConns,
			MaxIdleConns:    m.MaxIdleConns,
			ConnMaxLifetime: time.Duration(m.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(m.ConnMaxIdleTimeSeconds) * time.Second,
		})
	case config.DriverRedis:
		r := cfg.Journal.Redis
		return redis.NewJournalStore(ctx, redis.Config{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
			Key:      r.Key,
		})
	default:
		return nil, errors.New("未知的 journal 驱动: " + cfg.Journal.Driver)
	}
}

func createPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case config.DriverNone:
		return events.Nop{}, nil
	case config.DriverRabbitMQ:
		r := cfg.Events.RabbitMQ
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        r.URL,
			Exchange:   r.Exchange,
			RoutingKey: r.RoutingKey,
		})
	default:
		return nil, errors.New("未知的 events 驱动: " + cfg.Events.Driver)
	}
}
