package broker

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
)

// ErrSimulatedFailure is returned by SimulatedPublisher when it decides to fail.
var ErrSimulatedFailure = errors.New("simulated broker failure")

// SimulatedPublisher acknowledges in-process and only logs. Used for local single-node runs.
type SimulatedPublisher struct {
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0
	logger      zerolog.Logger
}

type SimulatedOption func(*SimulatedPublisher)

func WithFailureRate(rate float64) SimulatedOption {
	return func(p *SimulatedPublisher) { p.failureRate = rate }
}

func WithLatency(d time.Duration) SimulatedOption {
	return func(p *SimulatedPublisher) { p.latency = d }
}

func WithTimeoutRate(rate float64) SimulatedOption {
	return func(p *SimulatedPublisher) { p.timeoutRate = rate }
}

func NewSimulatedPublisher(logger zerolog.Logger, opts ...SimulatedOption) *SimulatedPublisher {
	p := &SimulatedPublisher{logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *SimulatedPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Never acks; the caller's deadline decides.
	if rand.Float64() < p.timeoutRate {
		<-ctx.Done()
		return domainErrors.ErrPublishTimeout
	}

	if rand.Float64() < p.failureRate {
		return ErrSimulatedFailure
	}

	p.logger.Info().
		Str("topic", topic).
		Str("key", key).
		Str("message_id", uuid.NewString()).
		RawJSON("payload", payload).
		Msg("Simulated publish")
	return nil
}

func (p *SimulatedPublisher) Close() error {
	return nil
}
