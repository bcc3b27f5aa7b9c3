package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/broker"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/internal/testutil"
)

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageConfig{
		Driver:     config.StorageDriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "events.db"),
	}}

	store, err := OpenStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, config.StorageDriverSQLite, store.Driver)
	require.NoError(t, store.Ping(ctx))

	task := testutil.NewTestTask(1, testutil.Epoch)
	err = store.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return store.Outbox.Insert(txCtx, task)
	})
	require.NoError(t, err)

	var claimed []*outbox.Task
	err = store.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err = store.Outbox.ClaimDue(txCtx, outbox.TypeSendChangeNotification, outbox.StatusInProgress, testutil.Epoch, 10)
		return err
	})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, task.ID, claimed[0].ID)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "mysql"}}, zerolog.Nop())
	assert.ErrorContains(t, err, "mysql")
}

func TestNewPublisher_SimulatedIsWrappedInBreaker(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerConfig{Driver: config.BrokerDriverSimulated, Topic: "events-notifications"}}

	pub, ping, err := NewPublisher(context.Background(), cfg, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	defer pub.Close()

	assert.Nil(t, ping)
	assert.IsType(t, &broker.BreakerPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), "events-notifications", "1", []byte(`{}`)))
}

func TestNewPublisher_RedisRequiresClient(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerConfig{Driver: config.BrokerDriverRedis}}

	_, _, err := NewPublisher(context.Background(), cfg, nil, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "redis.enabled")
}
