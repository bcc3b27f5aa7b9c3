package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) conn(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.db)
}

func (r *OutboxRepository) Insert(ctx context.Context, task *outbox.Task) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO outbox (id, created_at, updated_at, version, payload, type, status, retry_time, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(), toNanos(task.CreatedAt), toNanos(task.UpdatedAt), task.Version, string(task.Payload),
		string(task.Type), string(task.Status), toNanos(task.RetryTime), task.Attempts,
	)
	if err != nil {
		return fmt.Errorf("insert outbox task: %w", err)
	}
	return nil
}

// ClaimDue relies on the IMMEDIATE transaction opened by TxManager: the database write
// lock is held from BEGIN, so no other claimer can read the same rows before the lease is extended.
func (r *OutboxRepository) ClaimDue(ctx context.Context, taskType outbox.Type, status outbox.Status, now time.Time, limit int) ([]*outbox.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT id, created_at, updated_at, version, payload, type, status, retry_time, attempts
		 FROM outbox
		 WHERE type = ? AND status = ? AND retry_time <= ?
		 ORDER BY retry_time ASC
		 LIMIT ?`,
		string(taskType), string(status), toNanos(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due outbox tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*outbox.Task
	for rows.Next() {
		t := &outbox.Task{}
		var (
			id, payload               string
			rowType, rowStatus        string
			created, updated, retryAt int64
		)
		if err := rows.Scan(&id, &created, &updated, &t.Version, &payload, &rowType, &rowStatus, &retryAt, &t.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox task: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		t.CreatedAt = fromNanos(created)
		t.UpdatedAt = fromNanos(updated)
		t.RetryTime = fromNanos(retryAt)
		t.Payload = []byte(payload)
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
	args := append([]any{toNanos(until), toNanos(now)}, idArgs(ids)...)
	_, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE outbox
		 SET retry_time = ?, updated_at = ?, attempts = attempts + 1, version = version + 1
		 WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
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
	args := append([]any{string(to), toNanos(now), string(outbox.StatusInProgress)}, idArgs(ids)...)
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE outbox
		 SET status = ?, updated_at = ?, version = version + 1
		 WHERE status = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark outbox tasks %s: %w", to, err)
	}
	return res.RowsAffected()
}

func (r *OutboxRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM outbox WHERE created_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.RowsAffected()
}

func idArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return args
}

var _ outbox.Repository = (*OutboxRepository)(nil)
