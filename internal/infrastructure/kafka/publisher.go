package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/pkg/retry"
)

// HeaderMessageID carries a fresh id per publish so consumers can drop redeliveries.
const HeaderMessageID = "messageId"

// Publisher writes notifications to Kafka and returns once every in-sync replica has the message.
type Publisher struct {
	writer  *kafka.Writer
	brokers []string
	logger  zerolog.Logger
}

func NewPublisher(cfg *config.BrokerConfig, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: false,
			BatchTimeout:           10 * time.Millisecond,
		},
		brokers: cfg.Brokers,
		logger:  logger,
	}
}

// Connect waits until a broker answers and the topic exists. Topics are never
// auto-created, so a missing topic fails startup instead of the first publish.
func (p *Publisher) Connect(ctx context.Context, cfg *config.BrokerConfig) error {
	policy := retry.ConnectConfig(cfg.ConnectRetries, cfg.ConnectRetryDelay)
	policy.OnRetry = func(attempt uint, err error) {
		p.logger.Warn().Err(err).Uint("attempt", attempt).Strs("brokers", p.brokers).Msg("Kafka not ready, retrying")
	}
	partitions, err := retry.DoWithResult(ctx, policy, func() ([]kafka.Partition, error) {
		return p.partitions(ctx, cfg.Topic)
	})
	if err != nil {
		return err
	}
	p.logger.Info().Str("topic", cfg.Topic).Int("partitions", len(partitions)).Msg("Kafka topic ready")
	return nil
}

func (p *Publisher) partitions(ctx context.Context, topic string) ([]kafka.Partition, error) {
	var errs []error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parts, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			return nil, fmt.Errorf("read partitions of %s: %w", topic, err)
		}
		return parts, nil
	}
	return nil, fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
}

// Ping dials the first reachable broker.
func (p *Publisher) Ping(ctx context.Context) error {
	var errs []error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	msg := buildMessage(topic, key, payload, uuid.NewString())
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to topic %s: %w", topic, err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("key", key).
		Str("message_id", headerValue(msg.Headers, HeaderMessageID)).
		Msg("Message acknowledged")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessage(topic, key string, payload []byte, messageID string) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderMessageID, Value: []byte(messageID)},
		},
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
