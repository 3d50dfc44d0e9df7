package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ChainPilot/internal/agent"
	"ChainPilot/internal/api"
	"ChainPilot/internal/assets"
	"ChainPilot/internal/chain/provider"
	"ChainPilot/internal/config"
	"ChainPilot/internal/history"
	"ChainPilot/internal/knowledge"
	"ChainPilot/internal/market"
	"ChainPilot/internal/observability/alerting"
	"ChainPilot/internal/ops"
	"ChainPilot/internal/resolver"
	"ChainPilot/internal/resolver/openai"
	"ChainPilot/pkg/logger"
)

// main 是 ChainPilot 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("chainpilotd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("CHAINPILOT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "chainpilot.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	resolverClient, err := createResolverClient(cfg)
	if err != nil {
		return err
	}

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	chainClient, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	historyRepo, err := createHistoryRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer historyRepo.Close()

	marketClient, marketCache, err := createMarketClient(cfg)
	if err != nil {
		return err
	}
	if marketCache != nil {
		defer marketCache.Close()
	}

	alertDispatcher, alertCloser, err := createAlerting(cfg)
	if err != nil {
		return err
	}
	if alertCloser != nil {
		defer alertCloser.Close()
	}

	catalog, err := ops.NewCatalog()
	if err != nil {
		return err
	}

	executor := ops.NewExecutor(
		catalog,
		chainClient,
		chainRegistry.DefaultExplorer(),
		assets.NewMemoryRegistry(),
		ops.WithMarket(marketClient),
		ops.WithHistory(historyRepo),
		ops.WithAlerts(alertDispatcher),
	)

	agentOpts := []agent.Option{
		agent.WithMaxTurns(cfg.Agent.MaxTurns),
	}
	if cfg.Agent.KnowledgeSource != "" {
		knowledgeProvider, err := knowledge.LoadStaticProvider(cfg.Agent.KnowledgeSource, 0)
		if err != nil {
			return err
		}
		agentOpts = append(agentOpts, agent.WithKnowledgeProvider(knowledgeProvider))
	}

	ag := agent.New(resolverClient, executor, agentOpts...)

	server := api.NewServer(cfg.Server.Address, ag)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createResolverClient(cfg *config.Config) (resolver.Client, error) {
	switch cfg.Resolver.Provider {
	case "", "openai":
		apiKey := strings.TrimSpace(cfg.Resolver.OpenAI.APIKey)
		if apiKey == "" && cfg.Resolver.OpenAI.APIKeyEnv != "" {
			apiKey = strings.TrimSpace(os.Getenv(cfg.Resolver.OpenAI.APIKeyEnv))
		}
		if apiKey == "" {
			return nil, errors.New("openai provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Resolver.OpenAI.BaseURL,
			Model:   cfg.Resolver.OpenAI.Model,
			Timeout: cfg.Resolver.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的意图解析 provider: %s", cfg.Resolver.Provider)
	}
}

func createHistoryRepository(ctx context.Context, cfg *config.Config) (history.Repository, error) {
	switch cfg.History.Driver {
	case "", "memory":
		return history.NewMemoryRepository(), nil
	case "mysql":
		return history.NewSQLRepository(ctx, history.MySQLConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.History.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.History.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的历史仓库驱动: %s", cfg.History.Driver)
	}
}

func createMarketClient(cfg *config.Config) (*market.Client, market.Cache, error) {
	var cache market.Cache
	switch cfg.Market.Cache.Driver {
	case "", "memory":
		cache = market.NewMemoryCache()
	case "redis":
		redisCache, err := market.NewRedisCache(market.RedisCacheConfig{
			Address:  cfg.Market.Cache.Redis.Address,
			Password: cfg.Market.Cache.Redis.Password,
			DB:       cfg.Market.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		cache = redisCache
	case "none":
		cache = nil
	default:
		return nil, nil, fmt.Errorf("未知的行情缓存驱动: %s", cfg.Market.Cache.Driver)
	}

	client := market.NewClient(market.Config{
		BaseURL:  cfg.Market.BaseURL,
		Cache:    cache,
		CacheTTL: time.Duration(cfg.Market.Cache.TTLSeconds) * time.Second,
	})
	return client, cache, nil
}

func createAlerting(cfg *config.Config) (alerting.Dispatcher, *alerting.AMQPNotifier, error) {
	if !cfg.Alerting.Enabled {
		return alerting.NewFanout(&alerting.LogNotifier{}), nil, nil
	}

	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	var amqpNotifier *alerting.AMQPNotifier
	if cfg.Alerting.AMQP.URL != "" {
		notifier, err := alerting.NewAMQPNotifier(alerting.AMQPConfig{
			URL:     cfg.Alerting.AMQP.URL,
			Queue:   cfg.Alerting.AMQP.Queue,
			Durable: cfg.Alerting.AMQP.Durable,
		})
		if err != nil {
			return nil, nil, err
		}
		amqpNotifier = notifier
		notifiers = append(notifiers, notifier)
	}
	return alerting.NewFanout(notifiers...), amqpNotifier, nil
}
