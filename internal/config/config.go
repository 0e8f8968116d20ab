package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"OpenMCP-Arbitrum/internal/auth"
	"OpenMCP-Arbitrum/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "ARBITRUM_AGENT_CONFIG"

// 存储与事件驱动的可选值。
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverRedis    = "redis"
	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"

	ProviderOpenAI       = "openai"
	ProviderPythonBridge = "python_bridge"
)

// Config 描述了服务在启动阶段需要加载的全部配置。
type Config struct {
	Server   ServerConfig      `json:"server"`
	Log      logger.Config     `json:"log"`
	Auth     auth.Config       `json:"auth"`
	Settings map[string]string `json:"settings"`
	Web3     Web3Config        `json:"web3"`
	Names    NamesConfig       `json:"names"`
	LiFi     LiFiConfig        `json:"lifi"`
	Compiler CompilerConfig    `json:"compiler"`
	LLM      LLMConfig         `json:"llm"`
	Journal  JournalConfig     `json:"journal"`
	Events   EventsConfig      `json:"events"`
	Alerting AlertingConfig    `json:"alerting"`
	Plugins  PluginsConfig     `json:"plugins"`
	Runtime  RuntimeConfig     `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// Web3Config 描述链定义文件与转账时预留的手续费。
type Web3Config struct {
	ChainsFile        string `json:"chains_file"`
	PollIntervalMS    int    `json:"poll_interval_ms"`
	SweepGasLimit     uint64 `json:"sweep_gas_limit"`
	SweepGasPriceGwei string `json:"sweep_gas_price_gwei"`
}

// NamesConfig 配置地址名称解析，ENS 与静态地址簿可以同时启用。
type NamesConfig struct {
	ENSRPCURL   string `json:"ens_rpc_url"`
	ENSRegistry string `json:"ens_registry"`
	AddressBook string `json:"address_book"`
}

// LiFiConfig 描述代币信息与兑换路由服务。
type LiFiConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Integrator     string `json:"integrator"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// CompilerConfig 描述 solc 可执行文件与优化参数。
type CompilerConfig struct {
	SolcPath      string `json:"solc_path"`
	OptimizerRuns *int   `json:"optimizer_runs"`
}

// LLMConfig 用于配置参数抽取所用的大模型。
type LLMConfig struct {
	Provider string             `json:"provider"`
	OpenAI   OpenAIConfig       `json:"openai"`
	Python   PythonBridgeConfig `json:"python_bridge"`
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `json:"python_executable"`
	ScriptPath       string `json:"script_path"`
	WorkingDir       string `json:"working_dir"`
}

// JournalConfig 选择动作调用记录的存储后端。
type JournalConfig struct {
	Driver string      `json:"driver"`
	MySQL  MySQLConfig `json:"mysql"`
	Redis  RedisConfig `json:"redis"`
}

// MySQLConfig 描述 MySQL 连接池。
type MySQLConfig struct {
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// RedisConfig 描述 Redis 连接。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// EventsConfig 选择动作事件的发布方式。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 交换机。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

// AlertingConfig 配置严重错误的告警渠道。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// PluginsConfig 指向插件管理器的 YAML 配置。
type PluginsConfig struct {
	ConfigPath string `json:"config_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir               string `json:"data_dir"`
	ExtractTimeoutSeconds int    `json:"extract_timeout_seconds"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不依赖配置文件的默认配置，相对路径基于 baseDir。
func Default(baseDir string) *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults(baseDir)
	return &cfg
}

// LoadFromEnv 读取 ARBITRUM_AGENT_CONFIG 指向的文件，未设置时返回默认配置。
func LoadFromEnv() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return Load(path)
	}
	return Default("."), nil
}

// applyEnv 使用环境变量补齐密钥类字段，避免写入配置文件。
func (c *Config) applyEnv() {
	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LiFi.APIKey == "" {
		c.LiFi.APIKey = os.Getenv("LIFI_API_KEY")
	}
	if c.Journal.MySQL.DSN == "" {
		c.Journal.MySQL.DSN = os.Getenv("ARBITRUM_MYSQL_DSN")
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Web3.SweepGasLimit == 0 {
		c.Web3.SweepGasLimit = 21000
	}
	if c.Web3.SweepGasPriceGwei == "" {
		c.Web3.SweepGasPriceGwei = "3"
	}
	c.Web3.ChainsFile = resolve(baseDir, c.Web3.ChainsFile)
	c.Names.AddressBook = resolve(baseDir, c.Names.AddressBook)
	c.Plugins.ConfigPath = resolve(baseDir, c.Plugins.ConfigPath)

	if c.Compiler.SolcPath == "" {
		c.Compiler.SolcPath = "solc"
	}

	if c.LLM.Provider == "" {
		if c.LLM.OpenAI.APIKey != "" {
			c.LLM.Provider = ProviderOpenAI
		} else {
			c.LLM.Provider = DriverNone
		}
	}

	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}

	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = DriverMemory
	}
	if c.Events.Driver == "" {
		c.Events.Driver = DriverNone
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Runtime.ExtractTimeoutSeconds <= 0 {
		c.Runtime.ExtractTimeoutSeconds = 60
	}
}

// Validate 检查驱动选择与其必填字段是否匹配。
func (c *Config) Validate() error {
	switch c.Journal.Driver {
	case DriverMemory:
	case DriverMySQL:
		if strings.TrimSpace(c.Journal.MySQL.DSN) == "" {
			return errors.New("journal.mysql.dsn 不能为空")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Journal.Redis.Address) == "" {
			return errors.New("journal.redis.address 不能为空")
		}
	default:
		return fmt.Errorf("不支持的 journal 驱动: %s", c.Journal.Driver)
	}

	switch c.Events.Driver {
	case DriverNone:
	case DriverRabbitMQ:
		if strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
			return errors.New("events.rabbitmq.url 不能为空")
		}
	default:
		return fmt.Errorf("不支持的 events 驱动: %s", c.Events.Driver)
	}

	switch c.LLM.Provider {
	case DriverNone:
	case ProviderOpenAI:
		if strings.TrimSpace(c.LLM.OpenAI.APIKey) == "" {
			return errors.New("llm.openai.api_key 不能为空")
		}
	case ProviderPythonBridge:
		if strings.TrimSpace(c.LLM.Python.ScriptPath) == "" {
			return errors.New("llm.python_bridge.script_path 不能为空")
		}
	default:
		return fmt.Errorf("不支持的 llm 提供方: %s", c.LLM.Provider)
	}
	return nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
