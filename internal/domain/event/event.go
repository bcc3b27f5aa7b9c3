package event

import (
	"fmt"
	"slices"
	"time"

	"github.com/ultimathule1/Event-Manager/internal/domain/errors"
)

// Status represents the event status in the lifecycle state machine
type Status string

const (
	StatusWaitStart Status = "WAIT_START"
	StatusStarted   Status = "STARTED"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists the forward-only moves. CANCELLED is only reachable by an explicit user action.
var transitions = map[Status][]Status{
	StatusWaitStart: {StatusStarted, StatusCancelled},
	StatusStarted:   {StatusFinished},
	StatusFinished:  {},
	StatusCancelled: {},
}

// Event is a booked event as seen by the notification pipeline.
type Event struct {
	ID   int64
	Name string

	Status Status
	// StartTime keeps the UTC offset the owner recorded it with.
	StartTime       time.Time
	DurationMinutes int

	MaxPlaces      int
	OccupiedPlaces int
	OwnerID        int64
	LocationID     int64
	CostCents      int64

	// SubscriberIDs are the registered users that must hear about changes.
	SubscriberIDs []int64
}

// EndTime returns the instant the event is over.
func (e *Event) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// HasSubscribers reports whether anyone is registered for the event.
func (e *Event) HasSubscribers() bool {
	return len(e.SubscriberIDs) > 0
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	c := *e
	c.SubscriberIDs = slices.Clone(e.SubscriberIDs)
	return &c
}

// CanTransition checks if an event in status from may move to status to.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// WithStatus returns a copy of the event that differs only in its status.
func (e *Event) WithStatus(to Status) (*Event, error) {
	if !CanTransition(e.Status, to) {
		return nil, errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(e.Status)+" to "+string(to),
			errors.ErrInvalidStateTransition,
		)
	}
	after := e.Clone()
	after.Status = to
	return after, nil
}

// FormatCost renders minor units as a two-decimal string.
func FormatCost(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
