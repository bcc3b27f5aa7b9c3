package notification

import (
	"context"

	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter is the write side of the outbox used by mutation paths.
type OutboxWriter interface {
	Insert(ctx context.Context, task *outbox.Task) error
}
