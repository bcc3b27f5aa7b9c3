package testutil

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// --- Event Repository Mock ---

// MockEventRepository is an in-memory event.Repository. UpdateStatusIfCurrent is atomic.
type MockEventRepository struct {
	mu     sync.Mutex
	events map[int64]*event.Event

	FindPastStartFunc         func(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error)
	FindPastEndFunc           func(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error)
	UpdateStatusIfCurrentFunc func(ctx context.Context, id int64, from, to event.Status) (int64, error)
	GetByIDFunc               func(ctx context.Context, id int64) (*event.Event, error)
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		events: make(map[int64]*event.Event),
	}
}

// AddEvent pre-populates the mock with a copy of e.
func (m *MockEventRepository) AddEvent(e *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e.Clone()
}

// Event returns a copy of the stored event (test helper, no context needed).
func (m *MockEventRepository) Event(id int64) *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil
	}
	return e.Clone()
}

func (m *MockEventRepository) FindPastStart(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error) {
	if m.FindPastStartFunc != nil {
		return m.FindPastStartFunc(ctx, status, now)
	}
	return m.find(func(e *event.Event) bool {
		return e.Status == status && !e.StartTime.After(now)
	}), nil
}

func (m *MockEventRepository) FindPastEnd(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error) {
	if m.FindPastEndFunc != nil {
		return m.FindPastEndFunc(ctx, status, now)
	}
	return m.find(func(e *event.Event) bool {
		return e.Status == status && !e.EndTime().After(now)
	}), nil
}

func (m *MockEventRepository) find(match func(e *event.Event) bool) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*event.Event
	for _, e := range m.events {
		if match(e) {
			result = append(result, e.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *event.Event) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return result
}

func (m *MockEventRepository) UpdateStatusIfCurrent(ctx context.Context, id int64, from, to event.Status) (int64, error) {
	if m.UpdateStatusIfCurrentFunc != nil {
		return m.UpdateStatusIfCurrentFunc(ctx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Status != from {
		return 0, nil
	}
	e.Status = to
	return 1, nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domainErrors.ErrEventNotFound
	}
	return e.Clone(), nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
// With Serial set, transactions run one at a time, like a store that locks for the whole transaction.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error

	Serial bool
	mu     sync.Mutex
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func NewSerialTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{Serial: true}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	if m.Serial {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory outbox.Repository. Combined with a serial
// MockTransactionManager it gives the same claim guarantees as the SQL stores.
type MockOutboxRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*outbox.Task

	InsertFunc         func(ctx context.Context, task *outbox.Task) error
	ClaimDueFunc       func(ctx context.Context, taskType outbox.Type, status outbox.Status, now time.Time, limit int) ([]*outbox.Task, error)
	ExtendLeaseFunc    func(ctx context.Context, ids []uuid.UUID, now, until time.Time) error
	MarkSuccessFunc    func(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	MarkFailedFunc     func(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	PurgeOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{
		tasks: make(map[uuid.UUID]*outbox.Task),
	}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, task *outbox.Task) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, taskType outbox.Type, status outbox.Status, now time.Time, limit int) ([]*outbox.Task, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, taskType, status, now, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*outbox.Task
	for _, t := range m.tasks {
		if t.Type == taskType && t.Status == status && !t.RetryTime.After(now) {
			due = append(due, cloneTask(t))
		}
	}
	slices.SortFunc(due, func(a, b *outbox.Task) int {
		return cmp.Or(a.RetryTime.Compare(b.RetryTime), a.CreatedAt.Compare(b.CreatedAt))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockOutboxRepository) ExtendLease(ctx context.Context, ids []uuid.UUID, now, until time.Time) error {
	if m.ExtendLeaseFunc != nil {
		return m.ExtendLeaseFunc(ctx, ids, now, until)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if t, ok := m.tasks[id]; ok {
			t.Claimed(now, until)
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkSuccess(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if m.MarkSuccessFunc != nil {
		return m.MarkSuccessFunc(ctx, ids, now)
	}
	return m.finish(ids, outbox.StatusSuccess, now), nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, ids, now)
	}
	return m.finish(ids, outbox.StatusFailed, now), nil
}

func (m *MockOutboxRepository) finish(ids []uuid.UUID, to outbox.Status, now time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		t, ok := m.tasks[id]
		if !ok || t.Status != outbox.StatusInProgress {
			continue
		}
		t.Status = to
		t.UpdatedAt = now
		t.Version++
		n++
	}
	return n
}

func (m *MockOutboxRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeOlderThanFunc != nil {
		return m.PurgeOlderThanFunc(ctx, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

// Task returns a copy of the stored task (test helper, no context needed).
func (m *MockOutboxRepository) Task(id uuid.UUID) *outbox.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	return cloneTask(t)
}

// Tasks returns copies of all stored tasks, oldest first.
func (m *MockOutboxRepository) Tasks() []*outbox.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*outbox.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		result = append(result, cloneTask(t))
	}
	slices.SortFunc(result, func(a, b *outbox.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result
}

func cloneTask(t *outbox.Task) *outbox.Task {
	c := *t
	c.Payload = slices.Clone(t.Payload)
	return &c
}

// --- Publisher Mock ---

// PublishedMessage is one call recorded by MockPublisher.
type PublishedMessage struct {
	Topic   string
	Key     string
	Payload []byte
}

// MockPublisher records successful publishes. PublishFunc, when set, decides the outcome;
// returning nil records the message.
type MockPublisher struct {
	mu        sync.Mutex
	published []PublishedMessage
	calls     int

	PublishFunc func(ctx context.Context, topic, key string, payload []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, key, payload); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Key: key, Payload: slices.Clone(payload)})
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Published returns the acknowledged messages in order.
func (m *MockPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.published)
}

// Calls returns how many times Publish was invoked, successful or not.
func (m *MockPublisher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Locker Mock ---

// MockLocker grants a lock per key to one holder at a time.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, true, nil
}
