package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert enqueues a new task (typically inside the caller's transaction)
	Insert(ctx context.Context, task *Task) error

	// ClaimDue selects up to limit tasks of taskType in status whose retry time is at or before now,
	// oldest-due first, locking them for the rest of the surrounding transaction.
	ClaimDue(ctx context.Context, taskType Type, status Status, now time.Time, limit int) ([]*Task, error)

	// ExtendLease pushes the retry time of the given tasks to until and counts an attempt.
	// Must run in the same transaction as ClaimDue.
	ExtendLease(ctx context.Context, ids []uuid.UUID, now, until time.Time) error

	// MarkSuccess moves in-progress tasks to SUCCESS
	MarkSuccess(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)

	// MarkFailed moves in-progress tasks to FAILED
	MarkFailed(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)

	// PurgeOlderThan deletes every task created before cutoff, whatever its status
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
