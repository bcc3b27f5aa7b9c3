package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *OutboxRepository) Insert(ctx context.Context, task *outbox.Task) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (id, created_at, updated_at, version, payload, type, status, retry_time, attempts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.CreatedAt, task.UpdatedAt, task.Version, task.Payload,
		string(task.Type), string(task.Status), task.RetryTime, task.Attempts,
	)
	if err != nil {
		return fmt.Errorf("insert outbox task: %w", err)
	}
	return nil
}

// ClaimDue locks due rows with SKIP LOCKED so concurrent claimers get disjoint batches.
// Call inside TxManager.WithTransaction; outside one the locks are released immediately.
func (r *OutboxRepository) ClaimDue(ctx context.Context, taskType outbox.Type, status outbox.Status, now time.Time, limit int) ([]*outbox.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, created_at, updated_at, version, payload, type, status, retry_time, attempts
		 FROM outbox
		 WHERE type = $1 AND status = $2 AND retry_time <= $3
		 ORDER BY retry_time ASC
		 LIMIT $4
		 FOR UPDATE SKIP LOCKED`,
		string(taskType), string(status), now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due outbox tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*outbox.Task
	for rows.Next() {
		t := &outbox.Task{}
		var rowType, rowStatus string
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.Version, &t.Payload, &rowType, &rowStatus, &t.RetryTime, &t.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox task: %w", err)
		}
		t.Type = outbox.Type(rowType)
		t.Status = outbox.Status(rowStatus)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *OutboxRepository) ExtendLease(ctx context.Context, ids []uuid.UUID, now, until time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if !InTx(ctx) {
		return fmt.Errorf("extend lease: must run in the claiming transaction")
	}
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox
		 SET retry_time = $2, updated_at = $3, attempts = attempts + 1, version = version + 1
		 WHERE id = ANY($1::uuid[])`,
		uuidStrings(ids), until, now,
	)
	if err != nil {
		return fmt.Errorf("extend outbox lease: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkSuccess(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	return r.finish(ctx, ids, outbox.StatusSuccess, now)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	return r.finish(ctx, ids, outbox.StatusFailed, now)
}

func (r *OutboxRepository) finish(ctx context.Context, ids []uuid.UUID, to outbox.Status, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox
		 SET status = $2, updated_at = $3, version = version + 1
		 WHERE id = ANY($1::uuid[]) AND status = $4`,
		uuidStrings(ids), string(to), now, string(outbox.StatusInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("mark outbox tasks %s: %w", to, err)
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM outbox WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

var _ outbox.Repository = (*OutboxRepository)(nil)
