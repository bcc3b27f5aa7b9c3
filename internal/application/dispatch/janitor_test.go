package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ultimathule1/Event-Manager/internal/application/dispatch"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	"github.com/ultimathule1/Event-Manager/internal/testutil"
)

const testRetention = 7 * 24 * time.Hour

func TestJanitor_PurgesByRetention(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	ctx := context.Background()

	expired := testutil.NewTestTask(1, testutil.Epoch.Add(-testRetention-time.Second))
	kept := testutil.NewTestTask(2, testutil.Epoch.Add(-testRetention+time.Second))
	pending := testutil.NewTestTask(3, testutil.Epoch.Add(-2*testRetention))
	require.NoError(t, repo.Insert(ctx, expired))
	require.NoError(t, repo.Insert(ctx, kept))
	require.NoError(t, repo.Insert(ctx, pending))
	_, err := repo.MarkSuccess(ctx, []uuid.UUID{expired.ID, kept.ID}, testutil.Epoch)
	require.NoError(t, err)

	j := dispatch.NewJanitor(repo, nil, clock.NewMock(testutil.Epoch), testRetention, time.Minute, nil, zerolog.Nop())
	n, err := j.Tick(ctx)
	require.NoError(t, err)

	// Purge ignores status: an old IN_PROGRESS task goes too.
	assert.Equal(t, int64(2), n)
	assert.Nil(t, repo.Task(expired.ID))
	assert.Nil(t, repo.Task(pending.ID))
	assert.NotNil(t, repo.Task(kept.ID))
}

func TestJanitor_SkipsWhenLockHeldElsewhere(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, testutil.NewTestTask(1, testutil.Epoch.Add(-2*testRetention))))

	locker := testutil.NewMockLocker()
	release, acquired, err := locker.TryLock(ctx, "event-manager:outbox-janitor", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	j := dispatch.NewJanitor(repo, locker, clock.NewMock(testutil.Epoch), testRetention, time.Minute, nil, zerolog.Nop())
	n, err := j.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.Tasks(), 1)

	require.NoError(t, release(ctx))
	n, err = j.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJanitor_ReleasesLock(t *testing.T) {
	locker := testutil.NewMockLocker()
	j := dispatch.NewJanitor(testutil.NewMockOutboxRepository(), locker, clock.NewMock(testutil.Epoch), testRetention, time.Minute, nil, zerolog.Nop())

	_, err := j.Tick(context.Background())
	require.NoError(t, err)

	_, acquired, err := locker.TryLock(context.Background(), "event-manager:outbox-janitor", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestJanitor_LockErrorReported(t *testing.T) {
	locker := testutil.NewMockLocker()
	lockErr := errors.New("redis unreachable")
	locker.TryLockFunc = func(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
		return nil, false, lockErr
	}
	repo := testutil.NewMockOutboxRepository()
	purged := false
	repo.PurgeOlderThanFunc = func(context.Context, time.Time) (int64, error) {
		purged = true
		return 0, nil
	}

	j := dispatch.NewJanitor(repo, locker, clock.NewMock(testutil.Epoch), testRetention, time.Minute, nil, zerolog.Nop())
	_, err := j.Tick(context.Background())

	assert.ErrorIs(t, err, lockErr)
	assert.False(t, purged)
}
