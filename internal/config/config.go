package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 ChainPilot 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Resolver ResolverConfig `json:"resolver"`
	Web3     Web3Config     `json:"web3"`
	Agent    AgentConfig    `json:"agent"`
	History  HistoryConfig  `json:"history"`
	Market   MarketConfig   `json:"market"`
	Alerting AlertingConfig `json:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 控制结构化日志与审计日志的输出方式。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制交易审计日志的落盘与轮转。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// ResolverConfig 用于配置意图解析服务的调用方式。
type ResolverConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig 描述调用 OpenAI 兼容接口所需的信息。
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout 返回解析请求的超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Web3Config 包含访问区块链节点所需的 RPC 地址与浏览器链接模板。
type Web3Config struct {
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
	RPCURL       string `json:"rpc_url"`
	ExplorerBase string `json:"explorer_base"`
}

// AgentConfig 控制会话循环的运行参数。
type AgentConfig struct {
	MaxTurns        int    `json:"max_turns"`
	KnowledgeSource string `json:"knowledge_source"`
}

// HistoryConfig 描述操作历史仓库的驱动与连接信息。
type HistoryConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// MarketConfig 描述行情透传接口及其缓存。
type MarketConfig struct {
	BaseURL string      `json:"base_url"`
	Cache   CacheConfig `json:"cache"`
}

// CacheConfig 描述行情缓存的驱动选择。
type CacheConfig struct {
	Driver     string      `json:"driver"`
	TTLSeconds int         `json:"ttl_seconds"`
	Redis      RedisConfig `json:"redis"`
}

// RedisConfig 描述 Redis 缓存的连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AlertingConfig 描述告警派发渠道。
type AlertingConfig struct {
	Enabled bool       `json:"enabled"`
	AMQP    AMQPConfig `json:"amqp"`
}

// AMQPConfig 描述通过 RabbitMQ 投递告警事件所需的参数。
type AMQPConfig struct {
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
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

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Resolver.Provider == "" {
		c.Resolver.Provider = "openai"
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 10
	}
	if c.Agent.KnowledgeSource != "" && !filepath.IsAbs(c.Agent.KnowledgeSource) {
		c.Agent.KnowledgeSource = filepath.Join(baseDir, c.Agent.KnowledgeSource)
	}

	if c.History.Driver == "" {
		c.History.Driver = "memory"
	}

	if c.Market.Cache.Driver == "" {
		c.Market.Cache.Driver = "memory"
	}
	if c.Market.Cache.TTLSeconds <= 0 {
		c.Market.Cache.TTLSeconds = 30
	}
}
