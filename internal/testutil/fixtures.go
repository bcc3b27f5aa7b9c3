package testutil

import (
	"time"

	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// Epoch is a fixed instant tests build their timelines around.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func NewTestEvent(id int64, status event.Status, start time.Time, subscribers ...int64) *event.Event {
	return &event.Event{
		ID:              id,
		Name:            "Test event",
		Status:          status,
		StartTime:       start,
		DurationMinutes: 60,
		MaxPlaces:       100,
		OccupiedPlaces:  len(subscribers),
		OwnerID:         1,
		LocationID:      1,
		CostCents:       100_00,
		SubscriberIDs:   subscribers,
	}
}

// NewTestTask returns a due notification task for a status change of eventID.
func NewTestTask(eventID int64, createdAt time.Time) *outbox.Task {
	before := NewTestEvent(eventID, event.StatusWaitStart, createdAt, 10, 11)
	after := before.Clone()
	after.Status = event.StatusStarted
	data, err := outbox.NewNotificationPayload(before, after, nil).Encode()
	if err != nil {
		panic(err)
	}
	return outbox.NewTask(outbox.TypeSendChangeNotification, data, createdAt)
}

func Int64Ptr(v int64) *int64 {
	return &v
}
