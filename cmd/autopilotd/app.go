package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"Freelance-Autopilot/internal/agent"
	"Freelance-Autopilot/internal/config"
	"Freelance-Autopilot/internal/dispatch"
	"Freelance-Autopilot/internal/finance"
	"Freelance-Autopilot/internal/llm"
	"Freelance-Autopilot/internal/llm/openai"
	"Freelance-Autopilot/internal/llm/pythonbridge"
	"Freelance-Autopilot/internal/observability/alerting"
	"Freelance-Autopilot/internal/observability/metrics"
	"Freelance-Autopilot/internal/orchestrator"
	"Freelance-Autopilot/internal/storage/redis"
	"Freelance-Autopilot/internal/storage/sqlstore"
	"Freelance-Autopilot/internal/store"
	"Freelance-Autopilot/pkg/logger"
)

// app 持有一次进程生命周期内装配好的组件。
type app struct {
	cfg       *config.Config
	store     store.Store
	orch      *orchestrator.Orchestrator
	exec      *orchestrator.Executor
	analytics *finance.Analytics
	alerts    alerting.Dispatcher
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	if cfg.Storage.SeedFile != "" {
		if err := seedFile(ctx, st, cfg.Storage.SeedFile, false); err != nil {
			return nil, err
		}
	}

	client, err := createLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	guard := llm.NewGuard(client,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRateLimit(cfg.LLM.RateLimitPerMinute, cfg.LLM.Burst),
		llm.WithLogger(logger.Named("llm")),
		llm.WithObserver(metrics.TextGeneration{}),
	)

	a.alerts = createAlerts(cfg.Alerting)

	opts := []orchestrator.Option{
		orchestrator.WithWorkers(cfg.Runtime.Workers),
		orchestrator.WithAlerts(a.alerts),
	}
	if cfg.Lock.Driver == "redis" {
		lock, err := redis.NewRunLock(ctx, redis.LockConfig{
			Address:  cfg.Lock.Redis.Address,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
			Prefix:   cfg.Lock.Prefix,
			TTL:      cfg.Lock.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, lock.Close)
		opts = append(opts, orchestrator.WithLock(lock))
	}

	env := agent.Env{
		Text:   guard,
		Logger: logger.Named("agents"),
		NewID:  uuid.NewString,
	}
	a.orch, a.exec = orchestrator.NewEngine(st, cfg.Agents, env, opts...)
	a.analytics = finance.NewAnalytics(st, 0)
	return a, nil
}

// Close 按逆序释放资源。
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.L().Warn("释放资源失败", slog.Any("error", err))
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "mysql", "sqlite":
		return sqlstore.Open(ctx, sqlstore.Config{
			Driver:          cfg.Driver,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Driver)
	}
}

func seedFile(ctx context.Context, st store.Store, path string, shift bool) error {
	seeder, ok := st.(store.Seeder)
	if !ok {
		return fmt.Errorf("存储驱动不支持导入数据")
	}
	fx, err := store.LoadFixture(path)
	if err != nil {
		return err
	}
	if shift {
		fx.Shift(timeNow())
	}
	if err := fx.Seed(ctx, seeder); err != nil {
		return err
	}
	logger.Audit().Info("导入初始数据", slog.String("file", path), slog.Bool("shifted", shift))
	return nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "disabled":
		return llm.Disabled{}, nil
	case "python_bridge":
		scriptPath := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, scriptPath, cfg.LLM.Python.WorkingDir)
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.OpenAI.APIKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createAlerts(cfg config.AlertingConfig) alerting.Dispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alerts")}}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.WebhookURL, Client: http.DefaultClient})
	}
	return alerting.NewFanout(notifiers...)
}

func createQueue(ctx context.Context, cfg config.DispatchConfig) (dispatch.Queue, error) {
	switch cfg.Driver {
	case "memory":
		return dispatch.NewMemoryQueue(cfg.QueueSize), nil
	case "redis":
		return dispatch.NewRedisQueue(ctx, dispatch.RedisQueueConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Queue:    cfg.Queue,
		})
	case "rabbitmq":
		return dispatch.NewRabbitMQQueue(dispatch.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}
