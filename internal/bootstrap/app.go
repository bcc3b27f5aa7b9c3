package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/controller"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/broker"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
	infraRedis "github.com/ultimathule1/Event-Manager/internal/infrastructure/redis"
)

type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
	Store     *Store
	Redis     *redis.Client // nil unless redis.enabled
	Publisher broker.Publisher
	// Checks feed /health/ready.
	Checks []controller.ReadinessCheck
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Observability.ServiceName != "" {
		serviceName = cfg.Observability.ServiceName
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	logger = observability.WithInstance(logger, serviceName, cfg.InstanceID)
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("broker", cfg.Broker.Driver).
		Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.EnableMetrics {
		metrics = observability.NewMetrics(metricsNamespace, nil)
		logger.Info().Msg("Metrics initialized")
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.Checks = append(app.Checks, controller.ReadinessCheck{Name: "database", Ping: store.Ping})

	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.Redis = redisClient
		app.Checks = append(app.Checks, controller.ReadinessCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		logger.Info().Msg("Connected to Redis")
	}

	publisher, ping, err := NewPublisher(ctx, cfg, app.Redis, metrics, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Publisher = publisher
	if ping != nil {
		app.Checks = append(app.Checks, controller.ReadinessCheck{Name: "broker", Ping: ping})
	}

	return app, nil
}

func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close publisher")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
