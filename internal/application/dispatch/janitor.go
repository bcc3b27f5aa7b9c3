package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
)

const (
	janitorJob     = "janitor"
	janitorLockKey = "event-manager:outbox-janitor"
)

// Janitor deletes outbox rows older than the retention window, whatever their status.
type Janitor struct {
	repo      outbox.Repository
	locker    Locker
	clock     clock.Clock
	retention time.Duration
	lockTTL   time.Duration
	metrics   *observability.Metrics
	logger    zerolog.Logger

	running atomic.Bool
}

// NewJanitor builds a janitor. locker may be nil, in which case every instance purges.
func NewJanitor(
	repo outbox.Repository,
	locker Locker,
	clk clock.Clock,
	retention, lockTTL time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Janitor {
	return &Janitor{
		repo:      repo,
		locker:    locker,
		clock:     clk,
		retention: retention,
		lockTTL:   lockTTL,
		metrics:   metrics,
		logger:    observability.Component(logger, "outbox_janitor"),
	}
}

// Run purges every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	j.logger.Info().
		Dur("interval", interval).
		Dur("retention", j.retention).
		Msg("Outbox janitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Outbox janitor stopped")
			return nil
		case <-ticker.C:
		}

		if _, err := j.Tick(ctx); err != nil {
			j.logger.Error().Err(err).Msg("Outbox purge failed")
		}
	}
}

// Tick deletes every task created before now minus retention and returns how many went.
func (j *Janitor) Tick(ctx context.Context) (int64, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.metrics.TickSkipped(janitorJob)
		return 0, domainErrors.ErrTickInProgress
	}
	defer j.running.Store(false)

	if j.locker != nil {
		release, acquired, err := j.locker.TryLock(ctx, janitorLockKey, j.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("janitor lock: %w", err)
		}
		if !acquired {
			j.logger.Debug().Msg("Another instance holds the janitor lock, skipping")
			return 0, nil
		}
		defer func() {
			if err := release(ctx); err != nil {
				j.logger.Warn().Err(err).Msg("Failed to release janitor lock")
			}
		}()
	}

	started := time.Now()
	cutoff := j.clock.Now().Add(-j.retention)
	n, err := j.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	j.metrics.Purged(n)
	j.metrics.ObserveTick(janitorJob, time.Since(started))
	j.logger.Info().
		Int64("purged", n).
		Time("cutoff", cutoff).
		Msg("Outbox purged")
	return n, nil
}
