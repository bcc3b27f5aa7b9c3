package dispatch

import (
	"context"
	"time"

	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher sends one message to the broker and returns once it is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Processor delivers one claimed task. A nil error means the task is done.
type Processor interface {
	Process(ctx context.Context, task *outbox.Task) error
}

// Locker hands out best-effort cluster-wide locks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}
