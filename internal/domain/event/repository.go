package event

import (
	"context"
	"time"
)

// Repository is the slice of the event store the pipeline needs.
type Repository interface {
	// FindPastStart returns events in status whose start time is at or before now.
	FindPastStart(ctx context.Context, status Status, now time.Time) ([]*Event, error)

	// FindPastEnd returns events in status whose start time plus duration is at or before now,
	// with their subscriber ids loaded.
	FindPastEnd(ctx context.Context, status Status, now time.Time) ([]*Event, error)

	// UpdateStatusIfCurrent sets status to `to` only while it still equals `from`.
	// Returns the number of affected rows (0 or 1).
	UpdateStatusIfCurrent(ctx context.Context, id int64, from, to Status) (int64, error)

	// GetByID loads a single event with its subscribers.
	GetByID(ctx context.Context, id int64) (*Event, error)
}
