package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const dispatchJob = "dispatch"

// Publish results reported to metrics.
const (
	resultAcked     = "acked"
	resultFailed    = "failed"
	resultTimeout   = "timeout"
	resultMalformed = "malformed"
	resultUnknown   = "unknown_type"
)

// Config tunes one dispatcher.
type Config struct {
	BatchSize      int
	Workers        int
	PublishTimeout time.Duration
	// MaxAttempts moves a task to FAILED once it has failed this many claims. 0 retries forever.
	MaxAttempts int
}

// Result counts what one tick did across all task types.
type Result struct {
	Claimed   int
	Acked     int
	Failed    int
	Exhausted int
}

func (r *Result) add(o Result) {
	r.Claimed += o.Claimed
	r.Acked += o.Acked
	r.Failed += o.Failed
	r.Exhausted += o.Exhausted
}

// Dispatcher drains the outbox: claim a batch per task type, deliver it through a bounded
// worker pool, then mark the acknowledged tasks SUCCESS. Unacknowledged tasks keep their
// extended retry time and come back once the lease expires.
type Dispatcher struct {
	claimer    *Claimer
	repo       outbox.Repository
	processors map[outbox.Type]Processor
	types      []outbox.Type
	cfg        Config
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     zerolog.Logger
	tracer     trace.Tracer

	running atomic.Bool
}

func NewDispatcher(
	claimer *Claimer,
	repo outbox.Repository,
	processors map[outbox.Type]Processor,
	cfg Config,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		claimer:    claimer,
		repo:       repo,
		processors: processors,
		types:      slices.Sorted(maps.Keys(processors)),
		cfg:        cfg,
		clock:      clk,
		metrics:    metrics,
		logger:     observability.Component(logger, "dispatcher"),
		tracer:     otel.Tracer("event-manager/dispatch"),
	}
}

// Run ticks every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	d.logger.Info().
		Dur("interval", interval).
		Int("batch_size", d.cfg.BatchSize).
		Int("workers", d.cfg.Workers).
		Msg("Dispatcher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Dispatcher stopped")
			return nil
		case <-ticker.C:
		}

		if _, err := d.Tick(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Dispatch tick failed")
		}
	}
}

// Tick claims and delivers one batch per registered task type.
// It returns ErrTickInProgress if a previous Tick has not finished.
func (d *Dispatcher) Tick(ctx context.Context) (Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		d.metrics.TickSkipped(dispatchJob)
		d.logger.Warn().Msg("Previous dispatch tick still running, skipping")
		return Result{}, domainErrors.ErrTickInProgress
	}
	defer d.running.Store(false)

	ctx, span := d.tracer.Start(ctx, "dispatch.tick")
	defer span.End()
	started := time.Now()

	var total Result
	var errs []error
	for _, taskType := range d.types {
		res, err := d.dispatchType(ctx, taskType)
		total.add(res)
		if err != nil {
			errs = append(errs, err)
		}
	}

	d.metrics.ObserveTick(dispatchJob, time.Since(started))
	span.SetAttributes(
		attribute.Int("outbox.claimed", total.Claimed),
		attribute.Int("outbox.acked", total.Acked),
	)
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return total, err
}

func (d *Dispatcher) dispatchType(ctx context.Context, taskType outbox.Type) (Result, error) {
	var res Result
	logger := d.logger.With().Str("task_type", string(taskType)).Logger()

	tasks, err := d.claimer.Claim(ctx, taskType, d.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	if len(tasks) == 0 {
		return res, nil
	}
	res.Claimed = len(tasks)
	d.metrics.Claimed(string(taskType), len(tasks))

	outcomes := make([]error, len(tasks))
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, task, logger)
			return nil
		})
	}
	_ = g.Wait()

	var acked, exhausted []uuid.UUID
	for i, task := range tasks {
		switch {
		case outcomes[i] == nil:
			acked = append(acked, task.ID)
		case d.cfg.MaxAttempts > 0 && task.Attempts >= d.cfg.MaxAttempts:
			exhausted = append(exhausted, task.ID)
		default:
			res.Failed++
		}
	}

	now := d.clock.Now()
	var errs []error
	if len(acked) > 0 {
		n, err := d.repo.MarkSuccess(ctx, acked, now)
		if err != nil {
			// Acknowledged messages will be redelivered after the lease expires.
			errs = append(errs, fmt.Errorf("mark %d tasks success: %w", len(acked), err))
		}
		res.Acked = int(n)
	}
	if len(exhausted) > 0 {
		n, err := d.repo.MarkFailed(ctx, exhausted, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark %d tasks failed: %w", len(exhausted), err))
		}
		res.Exhausted = int(n)
		logger.Error().
			Int("count", len(exhausted)).
			Int("max_attempts", d.cfg.MaxAttempts).
			Msg("Outbox tasks exhausted their attempts and were marked FAILED")
	}

	logger.Info().
		Int("claimed", res.Claimed).
		Int("acked", res.Acked).
		Int("failed", res.Failed).
		Int("exhausted", res.Exhausted).
		Msg("Dispatch batch finished")

	return res, errors.Join(errs...)
}

// deliver runs the task's processor under the publish timeout. A task with no
// registered processor fails like any other delivery and is retried until MaxAttempts.
func (d *Dispatcher) deliver(ctx context.Context, task *outbox.Task, logger zerolog.Logger) error {
	publishCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	started := time.Now()
	var err error
	if proc, ok := d.processors[task.Type]; ok && proc != nil {
		err = proc.Process(publishCtx, task)
	} else {
		err = fmt.Errorf("%w: %s", domainErrors.ErrUnknownTaskType, task.Type)
	}
	if err != nil && errors.Is(publishCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domainErrors.ErrPublishTimeout, err)
	}

	result := resultAcked
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrMalformedPayload):
		result = resultMalformed
	case errors.Is(err, domainErrors.ErrUnknownTaskType):
		result = resultUnknown
	case errors.Is(err, domainErrors.ErrPublishTimeout):
		result = resultTimeout
	default:
		result = resultFailed
	}
	d.metrics.Published(string(task.Type), result, time.Since(started))

	if err != nil {
		entry := logger.Warn()
		if result == resultMalformed || result == resultUnknown {
			entry = logger.Error()
		}
		entry.Err(err).
			Str("task_id", task.ID.String()).
			Int("attempts", task.Attempts).
			Time("retry_at", task.RetryTime).
			Msg("Outbox task delivery failed")
	}
	return err
}
