package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const jobName = "lifecycle"

// Transition results reported to metrics.
const (
	resultTransitioned = "transitioned"
	resultSkipped      = "skipped"
	resultFailed       = "failed"
)

// PassResult counts what one pass did.
type PassResult struct {
	Found        int
	Transitioned int
	Skipped      int
	Failed       int
}

// TickResult is the outcome of one lifecycle tick.
type TickResult struct {
	Start PassResult
	End   PassResult
}

type pass struct {
	name string
	from event.Status
	to   event.Status
	find func(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error)
}

// Scheduler advances events WAIT_START -> STARTED -> FINISHED based on wall-clock time
// and enqueues a change notification for every transition it makes.
type Scheduler struct {
	events    event.Repository
	notifier  ChangeNotifier
	txManager TransactionManager
	clock     clock.Clock
	metrics   *observability.Metrics
	logger    zerolog.Logger
	tracer    trace.Tracer

	running atomic.Bool
}

func NewScheduler(
	events event.Repository,
	notifier ChangeNotifier,
	txManager TransactionManager,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		events:    events,
		notifier:  notifier,
		txManager: txManager,
		clock:     clk,
		metrics:   metrics,
		logger:    observability.Component(logger, "lifecycle_scheduler"),
		tracer:    otel.Tracer("event-manager/lifecycle"),
	}
}

// Run ticks every interval until ctx is cancelled. Ticks run on the caller's goroutine,
// so a slow tick delays the next one instead of overlapping it.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info().Dur("interval", interval).Msg("Lifecycle scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Lifecycle scheduler stopped")
			return nil
		case <-ticker.C:
		}

		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Lifecycle tick failed")
		}
	}
}

// Tick runs the start and end passes concurrently against the current time.
// It returns ErrTickInProgress without doing anything if another Tick is still running.
// A returned error means at least one pass could not load its candidates; per-event
// failures are logged and counted but never fail the tick.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TickSkipped(jobName)
		s.logger.Warn().Msg("Previous lifecycle tick still running, skipping")
		return TickResult{}, domainErrors.ErrTickInProgress
	}
	defer s.running.Store(false)

	ctx, span := s.tracer.Start(ctx, "lifecycle.tick")
	defer span.End()

	started := time.Now()
	now := s.clock.Now()

	var result TickResult
	var g errgroup.Group
	g.Go(func() error {
		var err error
		result.Start, err = s.runPass(ctx, pass{
			name: "start",
			from: event.StatusWaitStart,
			to:   event.StatusStarted,
			find: s.events.FindPastStart,
		}, now)
		return err
	})
	g.Go(func() error {
		var err error
		result.End, err = s.runPass(ctx, pass{
			name: "end",
			from: event.StatusStarted,
			to:   event.StatusFinished,
			find: s.events.FindPastEnd,
		}, now)
		return err
	})
	err := g.Wait()

	elapsed := time.Since(started)
	s.metrics.ObserveTick(jobName, elapsed)
	span.SetAttributes(
		attribute.Int("lifecycle.started", result.Start.Transitioned),
		attribute.Int("lifecycle.finished", result.End.Transitioned),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result, err
}

func (s *Scheduler) runPass(ctx context.Context, p pass, now time.Time) (PassResult, error) {
	var res PassResult
	started := time.Now()
	logger := s.logger.With().Str("pass", p.name).Logger()

	candidates, err := p.find(ctx, p.from, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load events for pass")
		return res, fmt.Errorf("%s pass: %w", p.name, err)
	}
	res.Found = len(candidates)

	for _, e := range candidates {
		changed, err := s.transition(ctx, e, p)
		switch {
		case err != nil:
			res.Failed++
			s.metrics.Transition(string(p.to), resultFailed)
			logger.Error().Err(err).Int64("event_id", e.ID).Msg("Failed to transition event")
		case !changed:
			res.Skipped++
			s.metrics.Transition(string(p.to), resultSkipped)
			logger.Info().Int64("event_id", e.ID).Msg("Event status already changed, skipping")
		default:
			res.Transitioned++
			s.metrics.Transition(string(p.to), resultTransitioned)
			logger.Debug().
				Int64("event_id", e.ID).
				Str("from", string(p.from)).
				Str("to", string(p.to)).
				Int("subscribers", len(e.SubscriberIDs)).
				Msg("Event transitioned")
		}
	}

	logger.Info().
		Int("found", res.Found).
		Int("transitioned", res.Transitioned).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", time.Since(started)).
		Msg("Lifecycle pass finished")

	return res, nil
}

// transition moves one event and enqueues its notification in the same transaction.
// It reports false when another writer changed the status first.
func (s *Scheduler) transition(ctx context.Context, e *event.Event, p pass) (bool, error) {
	after, err := e.WithStatus(p.to)
	if err != nil {
		return false, err
	}

	changed := false
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := s.events.UpdateStatusIfCurrent(txCtx, e.ID, p.from, p.to)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if n == 0 {
			return nil
		}
		if e.HasSubscribers() {
			if _, err := s.notifier.EnqueueChange(txCtx, e, after, nil); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
