package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
)

// Notifier turns an event mutation into a persisted change notification.
// Call EnqueueChange with the context of the transaction that performs the mutation
// so the task commits or rolls back with it.
type Notifier struct {
	outbox  OutboxWriter
	clock   clock.Clock
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewNotifier(outbox OutboxWriter, clk clock.Clock, metrics *observability.Metrics, logger zerolog.Logger) *Notifier {
	return &Notifier{
		outbox:  outbox,
		clock:   clk,
		metrics: metrics,
		logger:  observability.Component(logger, "notifier"),
	}
}

// EnqueueChange diffs before and after and stores a SEND_CREATE_NOTIFICATION_REQUEST task.
// changedBy is nil for changes made by the scheduler.
// Returns ErrNoFieldChanges when nothing tracked differs and ErrNoSubscribers when nobody
// is registered; in both cases nothing is written.
func (n *Notifier) EnqueueChange(ctx context.Context, before, after *event.Event, changedBy *int64) (*outbox.Task, error) {
	payload := outbox.NewNotificationPayload(before, after, changedBy)
	if payload.Changes.IsEmpty() {
		return nil, domainErrors.ErrNoFieldChanges
	}
	if !after.HasSubscribers() {
		return nil, domainErrors.ErrNoSubscribers
	}

	data, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode notification for event %d: %w", after.ID, err)
	}

	task := outbox.NewTask(outbox.TypeSendChangeNotification, data, n.clock.Now())
	if err := n.outbox.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue notification for event %d: %w", after.ID, err)
	}

	n.metrics.Enqueued(string(task.Type))
	n.logger.Debug().
		Int64("event_id", after.ID).
		Str("task_id", task.ID.String()).
		Strs("fields", payload.Changes.Fields()).
		Msg("Change notification enqueued")

	return task, nil
}
