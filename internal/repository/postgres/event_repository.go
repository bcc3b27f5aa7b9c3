package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
)

const eventColumns = `e.id, e.name, e.status, e.start_time, e.start_offset_seconds, e.duration_minutes,
	e.max_places, e.occupied_places, e.owner_id, e.location_id, e.cost::text,
	COALESCE((SELECT array_agg(r.user_id ORDER BY r.user_id) FROM registrations r WHERE r.event_id = e.id), '{}'::bigint[])`

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts an event with its registrations and sets e.ID.
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	_, offset := e.StartTime.Zone()
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO events (name, status, start_time, start_offset_seconds, duration_minutes,
		                     max_places, occupied_places, owner_id, location_id, cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric)
		 RETURNING id`,
		e.Name, string(e.Status), e.StartTime, offset, e.DurationMinutes,
		e.MaxPlaces, e.OccupiedPlaces, e.OwnerID, e.LocationID, centsToNumericString(e.CostCents),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	for _, userID := range e.SubscriberIDs {
		if _, err := r.db(ctx).Exec(ctx,
			`INSERT INTO registrations (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			e.ID, userID,
		); err != nil {
			return fmt.Errorf("insert registration: %w", err)
		}
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		 WHERE e.status = $1 AND e.start_time <= $2
		 ORDER BY e.start_time ASC`,
		string(status), now,
	)
}

func (r *EventRepository) FindPastEnd(ctx context.Context, status event.Status, now time.Time) ([]*event.Event, error) {
	return r.query(ctx, "find events past end",
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.status = $1 AND e.start_time + make_interval(mins => e.duration_minutes) <= $2
		 ORDER BY e.start_time ASC`,
		string(status), now,
	)
}

// UpdateStatusIfCurrent is the only write the lifecycle makes. The row lock taken by
// UPDATE serialises concurrent callers; the loser sees 0 rows.
func (r *EventRepository) UpdateStatusIfCurrent(ctx context.Context, id int64, from, to event.Status) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE events SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return 0, fmt.Errorf("update event status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) query(ctx context.Context, op, sql string, args ...any) ([]*event.Event, error) {
	rows, err := r.db(ctx).Query(ctx, sql, args...)
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

func scanEvent(row pgx.Row) (*event.Event, error) {
	e := &event.Event{}
	var (
		status      string
		startTime   time.Time
		offset      int
		cost        string
		subscribers []int64
	)
	if err := row.Scan(
		&e.ID, &e.Name, &status, &startTime, &offset, &e.DurationMinutes,
		&e.MaxPlaces, &e.OccupiedPlaces, &e.OwnerID, &e.LocationID, &cost, &subscribers,
	); err != nil {
		return nil, err
	}

	cents, err := numericStringToCents(cost)
	if err != nil {
		return nil, fmt.Errorf("event %d cost: %w", e.ID, err)
	}

	e.Status = event.Status(status)
	e.StartTime = startTime.In(time.FixedZone("", offset))
	e.CostCents = cents
	e.SubscriberIDs = subscribers
	return e, nil
}

var _ event.Repository = (*EventRepository)(nil)
