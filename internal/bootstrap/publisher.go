package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/broker"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/kafka"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
	infraRedis "github.com/ultimathule1/Event-Manager/internal/infrastructure/redis"
)

// NewPublisher builds the broker client selected by broker.driver behind a circuit breaker.
// ping is nil when the driver has nothing to probe.
func NewPublisher(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) (pub broker.Publisher, ping func(context.Context) error, err error) {
	var next broker.Publisher

	switch cfg.Broker.Driver {
	case config.BrokerDriverKafka:
		kp := kafka.NewPublisher(&cfg.Broker, observability.Component(logger, "kafka_publisher"))
		if err := kp.Connect(ctx, &cfg.Broker); err != nil {
			kp.Close()
			return nil, nil, fmt.Errorf("connect to kafka: %w", err)
		}
		logger.Info().Strs("brokers", cfg.Broker.Brokers).Msg("Connected to Kafka")
		next, ping = kp, kp.Ping

	case config.BrokerDriverRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("broker driver redis requires redis.enabled")
		}
		next = infraRedis.NewStreamPublisher(redisClient, cfg.Broker.StreamMaxLen)
		logger.Info().Str("stream", cfg.Broker.Topic).Msg("Publishing to Redis Streams")

	case config.BrokerDriverSimulated:
		next = broker.NewSimulatedPublisher(observability.Component(logger, "simulated_publisher"))
		logger.Warn().Msg("Using simulated broker, notifications are not delivered anywhere")

	default:
		return nil, nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
	}

	pub = broker.NewBreakerPublisher(
		next,
		cfg.Broker.Driver,
		cfg.Broker.BreakerFailures,
		cfg.Broker.BreakerTimeout,
		metrics,
		logger,
	)
	return pub, ping, nil
}
