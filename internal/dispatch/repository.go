package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
)

// Repository reads and settles outbox rows for the replanning worker.
type Repository struct{}

// NewRepository creates an outbox repository.
func NewRepository() *Repository {
	return &Repository{}
}

// DequeuePending claims up to limit PENDENTE events older than the debounce
// horizon, inside the caller's transaction. FOR UPDATE SKIP LOCKED keeps
// concurrent consumers from blocking on each other's claims.
func (r *Repository) DequeuePending(ctx context.Context, q db.Querier, debounce time.Duration, limit int) ([]Event, error) {
	rows, err := q.Query(ctx,
		`SELECT id, event_type, aggregate_type, aggregate_id, payload, status, created_at, available_at, processed_at
		 FROM dispatch_events
		 WHERE status = $1 AND available_at <= now() - make_interval(secs => $2)
		 ORDER BY id
		 LIMIT $3
		 FOR UPDATE SKIP LOCKED`,
		StatusPending, debounce.Seconds(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dequeue dispatch events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AggregateType, &ev.AggregateID, &ev.Payload,
			&ev.Status, &ev.CreatedAt, &ev.AvailableAt, &ev.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MarkProcessed settles claimed events in the same transaction that acted on
// them, so a crash before commit leaves every row PENDENTE for a clean retry.
func (r *Repository) MarkProcessed(ctx context.Context, q db.Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := q.Exec(ctx,
		`UPDATE dispatch_events
		 SET status = $1, processed_at = now()
		 WHERE id = ANY($2) AND status = $3`,
		StatusProcessed, ids, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark dispatch events processed: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("marked %d of %d dispatch events; concurrent settle detected", tag.RowsAffected(), len(ids))
	}
	return nil
}

// CountPending reports how many unprocessed rows remain. Used by health and
// tests.
func (r *Repository) CountPending(ctx context.Context, q db.Querier) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT count(*) FROM dispatch_events WHERE status = $1`, StatusPending).Scan(&n)
	return n, err
}
