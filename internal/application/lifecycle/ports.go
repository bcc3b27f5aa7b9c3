package lifecycle

import (
	"context"

	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChangeNotifier persists a change notification inside the caller's transaction.
type ChangeNotifier interface {
	EnqueueChange(ctx context.Context, before, after *event.Event, changedBy *int64) (*outbox.Task, error)
}
