package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/internal/repository/postgres"
	"github.com/ultimathule1/Event-Manager/internal/repository/sqlite"
)

// TransactionManager runs fn in one store transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories of the configured storage driver.
type Store struct {
	Driver    string
	Events    event.Repository
	Outbox    outbox.Repository
	TxManager TransactionManager
	Ping      func(ctx context.Context) error

	close func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects to the database selected by storage.driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.MigrateUp(cfg.Database.DatabaseURL()); err != nil {
				return nil, err
			}
			logger.Info().Msg("PostgreSQL migrations applied")
		}

		pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Str("host", cfg.Database.Host).Msg("Connected to PostgreSQL")

		return &Store{
			Driver:    cfg.Storage.Driver,
			Events:    postgres.NewEventRepository(pool),
			Outbox:    postgres.NewOutboxRepository(pool),
			TxManager: postgres.NewTxManager(pool),
			Ping:      pool.Ping,
			close:     pool.Close,
		}, nil

	case config.StorageDriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.Storage.SQLitePath).Msg("Opened SQLite database")

		return &Store{
			Driver:    cfg.Storage.Driver,
			Events:    sqlite.NewEventRepository(db),
			Outbox:    sqlite.NewOutboxRepository(db),
			TxManager: sqlite.NewTxManager(db),
			Ping:      db.PingContext,
			close:     func() { db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
