package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies what a task does once dispatched.
type Type string

const (
	TypeSendChangeNotification Type = "SEND_CREATE_NOTIFICATION_REQUEST"
)

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	// StatusFailed is only reached when an attempt cap is configured.
	StatusFailed Status = "FAILED"
)

// Task is a persisted intent to notify. RetryTime is the earliest instant it may be claimed.
type Task struct {
	ID        uuid.UUID
	Type      Type
	Status    Status
	Payload   []byte
	RetryTime time.Time
	Attempts  int
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a task that is immediately claimable.
func NewTask(taskType Type, payload []byte, now time.Time) *Task {
	return &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Status:    StatusInProgress,
		Payload:   payload,
		RetryTime: now,
		Attempts:  0,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the task will never be claimed again.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// Claimed records a lease taken at now and held until until.
func (t *Task) Claimed(now, until time.Time) {
	t.RetryTime = until
	t.Attempts++
	t.Version++
	t.UpdatedAt = now
}

// IDs collects task ids.
func IDs(tasks []*Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
