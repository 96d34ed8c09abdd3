package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// Publisher appends outbox rows. It never opens its own transaction: the
// caller passes the transaction of the mutation causing the event, so both
// commit or roll back together.
type Publisher struct {
	log *logger.Logger
}

// NewPublisher asserts the outbox schema is present and returns a Publisher.
// Missing schema is fatal: a service that silently drops events is worse
// than one that refuses to start.
func NewPublisher(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) (*Publisher, error) {
	var present bool
	err := pool.QueryRow(ctx, `SELECT to_regclass('dispatch_events') IS NOT NULL`).Scan(&present)
	if err != nil {
		return nil, fmt.Errorf("check dispatch_events: %w", err)
	}
	if !present {
		return nil, apperr.Internal("dispatch_events table is missing; run migrations")
	}
	return &Publisher{log: log.WithComponent("dispatch")}, nil
}

// Publish stages one domain event inside the caller's active transaction.
func (p *Publisher) Publish(ctx context.Context, q db.Querier, eventType, aggregateType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if payload == nil {
		body = []byte(`{}`)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO dispatch_events (event_type, aggregate_type, aggregate_id, payload, status, created_at, available_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		eventType, aggregateType, aggregateID, body, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch event: %w", err)
	}

	p.log.DispatchEvent("published", eventType, aggregateType, aggregateID)
	return nil
}
