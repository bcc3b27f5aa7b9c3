package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
)

// BreakerPublisher fails fast with ErrBrokerUnavailable while the broker keeps failing,
// so a dispatch tick does not wait out a publish timeout per task.
type BreakerPublisher struct {
	next    Publisher
	name    string
	cb      *gobreaker.CircuitBreaker[struct{}]
	metrics *observability.Metrics
}

func NewBreakerPublisher(
	next Publisher,
	name string,
	consecutiveFailures uint32,
	openTimeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *BreakerPublisher {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	p := &BreakerPublisher{next: next, name: name, metrics: metrics}
	p.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState(name, int(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Broker circuit breaker state changed")
		},
	})
	return p
}

func (p *BreakerPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, topic, key, payload)
	})
	switch {
	case err == nil:
		p.metrics.BreakerRequest(p.name, "success")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.metrics.BreakerRequest(p.name, "rejected")
		return fmt.Errorf("%w: %v", domainErrors.ErrBrokerUnavailable, err)
	default:
		p.metrics.BreakerRequest(p.name, "failure")
		return err
	}
}

func (p *BreakerPublisher) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
