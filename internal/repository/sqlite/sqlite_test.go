package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedEvent(t *testing.T, repo *EventRepository, start time.Time, status event.Status, subscribers ...int64) *event.Event {
	t.Helper()
	e := &event.Event{
		Name:            "Gophers night",
		Status:          status,
		StartTime:       start,
		DurationMinutes: 60,
		MaxPlaces:       30,
		OwnerID:         1,
		LocationID:      2,
		CostCents:       12_34,
		SubscriberIDs:   subscribers,
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestEventRepository_RoundTripKeepsOffset(t *testing.T) {
	db := openTestDB(t)
	repo := NewEventRepository(db)
	start := time.Date(2026, 5, 1, 19, 30, 0, 0, time.FixedZone("MSK", 3*3600))

	created := seedEvent(t, repo, start, event.StatusWaitStart, 12, 11)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(start))
	_, offset := got.StartTime.Zone()
	assert.Equal(t, 3*3600, offset)
	assert.Equal(t, int64(12_34), got.CostCents)
	assert.Equal(t, []int64{11, 12}, got.SubscriberIDs)
	assert.True(t, event.Diff(created, got).IsEmpty())
}

func TestEventRepository_GetByIDNotFound(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, domainErrors.ErrEventNotFound)
}

func TestEventRepository_FindPastStartAndEnd(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	due := seedEvent(t, repo, now.Add(-time.Minute), event.StatusWaitStart, 5)
	exact := seedEvent(t, repo, now, event.StatusWaitStart)
	seedEvent(t, repo, now.Add(time.Minute), event.StatusWaitStart)
	ended := seedEvent(t, repo, now.Add(-2*time.Hour), event.StatusStarted, 7, 6)
	seedEvent(t, repo, now.Add(-30*time.Minute), event.StatusStarted)

	starting, err := repo.FindPastStart(ctx, event.StatusWaitStart, now)
	require.NoError(t, err)
	require.Len(t, starting, 2)
	assert.Equal(t, due.ID, starting[0].ID)
	assert.Equal(t, exact.ID, starting[1].ID)
	assert.Equal(t, []int64{5}, starting[0].SubscriberIDs)
	assert.Empty(t, starting[1].SubscriberIDs)

	ending, err := repo.FindPastEnd(ctx, event.StatusStarted, now)
	require.NoError(t, err)
	require.Len(t, ending, 1)
	assert.Equal(t, ended.ID, ending[0].ID)
	assert.Equal(t, []int64{6, 7}, ending[0].SubscriberIDs)
}

func TestEventRepository_FindPastStartKeepsSubMillisecondPrecision(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	seedEvent(t, repo, now.Add(500*time.Microsecond), event.StatusWaitStart)
	almost := seedEvent(t, repo, now.Add(-time.Nanosecond), event.StatusWaitStart)

	starting, err := repo.FindPastStart(ctx, event.StatusWaitStart, now)
	require.NoError(t, err)
	require.Len(t, starting, 1)
	assert.Equal(t, almost.ID, starting[0].ID)
	assert.True(t, starting[0].StartTime.Equal(now.Add(-time.Nanosecond)))
}

func TestEventRepository_UpdateStatusIfCurrent(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))
	ctx := context.Background()
	e := seedEvent(t, repo, time.Now().Add(-time.Minute), event.StatusWaitStart)

	const workers = 8
	var applied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.UpdateStatusIfCurrent(ctx, e.ID, event.StatusWaitStart, event.StatusStarted)
			assert.NoError(t, err)
			applied.Add(n)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), applied.Load())

	n, err := repo.UpdateStatusIfCurrent(ctx, e.ID, event.StatusWaitStart, event.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, event.StatusStarted, got.Status)
}

func TestOutboxRepository_ClaimOrderAndLease(t *testing.T) {
	db := openTestDB(t)
	repo := NewOutboxRepository(db)
	tx := NewTxManager(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	late := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{"n":2}`), now.Add(-time.Second))
	early := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{"n":1}`), now.Add(-time.Minute))
	future := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{"n":3}`), now.Add(time.Minute))
	for _, task := range []*outbox.Task{late, early, future} {
		require.NoError(t, repo.Insert(ctx, task))
	}

	var claimed []*outbox.Task
	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		claimed, err = repo.ClaimDue(txCtx, outbox.TypeSendChangeNotification, outbox.StatusInProgress, now, 10)
		if err != nil {
			return err
		}
		return repo.ExtendLease(txCtx, outbox.IDs(claimed), now, now.Add(time.Minute))
	})
	require.NoError(t, err)

	require.Len(t, claimed, 2)
	assert.Equal(t, early.ID, claimed[0].ID)
	assert.Equal(t, late.ID, claimed[1].ID)
	assert.Equal(t, []byte(`{"n":1}`), claimed[0].Payload)
	assert.True(t, claimed[0].CreatedAt.Equal(early.CreatedAt))

	again, err := repo.ClaimDue(ctx, outbox.TypeSendChangeNotification, outbox.StatusInProgress, now.Add(59*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	expired, err := repo.ClaimDue(ctx, outbox.TypeSendChangeNotification, outbox.StatusInProgress, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 3)
	for _, task := range expired {
		if task.ID == future.ID {
			assert.Equal(t, 0, task.Attempts)
			continue
		}
		assert.Equal(t, 1, task.Attempts)
		assert.Equal(t, 1, task.Version)
		assert.True(t, task.RetryTime.Equal(now.Add(time.Minute)))
	}
}

func TestOutboxRepository_ConcurrentClaimsAreDisjoint(t *testing.T) {
	db := openTestDB(t)
	repo := NewOutboxRepository(db)
	tx := NewTxManager(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Insert(ctx, outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{}`), now.Add(-time.Second))))
	}

	var mu sync.Mutex
	seen := map[uuid.UUID]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
				tasks, err := repo.ClaimDue(txCtx, outbox.TypeSendChangeNotification, outbox.StatusInProgress, now, 3)
				if err != nil {
					return err
				}
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				for _, task := range tasks {
					seen[task.ID]++
				}
				mu.Unlock()
				return repo.ExtendLease(txCtx, outbox.IDs(tasks), now, now.Add(time.Minute))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 12)
	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s claimed more than once", id)
	}
}

func TestOutboxRepository_ExtendLeaseRequiresTransaction(t *testing.T) {
	repo := NewOutboxRepository(openTestDB(t))

	err := repo.ExtendLease(context.Background(), []uuid.UUID{uuid.New()}, time.Now(), time.Now().Add(time.Minute))
	assert.Error(t, err)
}

func TestOutboxRepository_MarkAndPurge(t *testing.T) {
	db := openTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	retention := 7 * 24 * time.Hour

	old := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{}`), now.Add(-retention-time.Second))
	fresh := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{}`), now.Add(-retention+time.Second))
	pending := outbox.NewTask(outbox.TypeSendChangeNotification, []byte(`{}`), now.Add(-retention-time.Hour))
	for _, task := range []*outbox.Task{old, fresh, pending} {
		require.NoError(t, repo.Insert(ctx, task))
	}

	n, err := repo.MarkSuccess(ctx, []uuid.UUID{old.ID, fresh.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.MarkFailed(ctx, []uuid.UUID{old.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "terminal tasks stay terminal")

	purged, err := repo.PurgeOlderThan(ctx, now.Add(-retention))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged, "purge ignores status")

	var remaining []string
	rows, err := db.QueryContext(ctx, `SELECT id FROM outbox`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		remaining = append(remaining, id)
	}
	assert.Equal(t, []string{fresh.ID.String()}, remaining)
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList("3,1,2")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	ids, err = parseIDList("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = parseIDList("1,x")
	assert.Error(t, err)
}
