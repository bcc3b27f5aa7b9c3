package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
)

const eventColumns = `e.id, e.name, e.status, e.start_time, e.start_offset_seconds, e.duration_minutes,
	e.max_places, e.occupied_places, e.owner_id, e.location_id, e.cost_cents,
	COALESCE((SELECT group_concat(user_id) FROM (SELECT r.user_id FROM registrations r WHERE r.event_id = e.id ORDER BY r.user_id)), '')`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) conn(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.db)
}

// Create inserts an event with its registrations and sets e.ID.
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	_, offset := e.StartTime.Zone()
	res, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO events (name, status, start_time, start_offset_seconds, duration_minutes,
		                     max_places, occupied_places, owner_id, location_id, cost_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, string(e.Status), toNanos(e.StartTime), offset, e.DurationMinutes,
		e.MaxPlaces, e.OccupiedPlaces, e.OwnerID, e.LocationID, e.CostCents,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert event id: %w", err)
	}
	e.ID = id

	for _, userID := range e.SubscriberIDs {
		if _, err := r.conn(ctx).ExecContext(ctx,
			`INSERT OR IGNORE INTO registrations (event_id, user_id) VALUES (?, ?)`, e.ID, userID,
		); err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = ?`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainErrors.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) FindPastStart(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error) {
	return r.query(ctx, "find events past start",
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.status = ? AND e.start_time <= ?
		 ORDER BY e.start_time ASC`,
		string(status), toNanos(now),
	)
}

func (r *EventRepository) FindPastEnd(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error) {
	return r.query(ctx, "find events past end",
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.status = ? AND e.start_time + e.duration_minutes * 60000000000 <= ?
		 ORDER BY e.start_time ASC`,
		string(status), toNanos(now),
	)
}

func (r *EventRepository) UpdateStatusIfCurrent(ctx context.Context, id int64, from, to event.Status) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("update event status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update event status rows: %w", err)
	}
	return n, nil
}

func (r *EventRepository) query(ctx context.Context, op, query string, args ...any) ([]*event.Event, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*event.Event, error) {
	e := &event.Event{}
	var (
		status      string
		startNanos int64
		offset      int
		subscribers string
	)
	if err := row.Scan(
		&e.ID, &e.Name, &status, &startNanos, &offset, &e.DurationMinutes,
		&e.MaxPlaces, &e.OccupiedPlaces, &e.OwnerID, &e.LocationID, &e.CostCents, &subscribers,
	); err != nil {
		return nil, err
	}

	ids, err := parseIDList(subscribers)
	if err != nil {
		return nil, fmt.Errorf("event %d subscribers: %w", e.ID, err)
	}

	e.Status = event.Status(status)
	e.StartTime = time.Unix(0, startNanos).In(time.FixedZone("", offset))
	e.SubscriberIDs = ids
	return e, nil
}

func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var _ event.Repository = (*EventRepository)(nil)
