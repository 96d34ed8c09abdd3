// Package idempotency makes externally-identified mutations retry-safe. Each
// external event id is processed at most once; retries replay the stored
// response verbatim, and a retry whose payload hash diverges from the first
// attempt is rejected instead of silently succeeding.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

const lockNamespace = "event"

// Operation is the domain effect guarded by the idempotency record. It runs
// inside the same transaction that persists the record, so effect and record
// commit together.
type Operation func(ctx context.Context, tx pgx.Tx) (any, error)

// Result carries the operation response and whether it was replayed from a
// prior attempt.
type Result struct {
	Response json.RawMessage `json:"response"`
	Replayed bool            `json:"replayed"`
}

// Processor serializes and deduplicates externally-identified events.
type Processor struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewProcessor creates an idempotency processor.
func NewProcessor(pool *pgxpool.Pool, log *logger.Logger) *Processor {
	return &Processor{pool: pool, log: log.WithComponent("idempotency")}
}

// Process runs op at most once for externalEventID.
//
// Concurrent calls with the same id serialize on a transaction-scoped
// advisory lock, so exactly one runs op; the others observe its record.
// A recorded attempt with a matching hash replays the stored response; a
// differing hash fails with Conflict and op never runs.
func (p *Processor) Process(ctx context.Context, externalEventID, requestHash, eventType, scope, scopeID string, op Operation) (Result, error) {
	if externalEventID == "" {
		return Result{}, apperr.Validation("external event id is required")
	}
	if requestHash == "" {
		return Result{}, apperr.Validation("request hash is required")
	}

	var result Result
	err := db.InTx(ctx, p.pool, func(tx pgx.Tx) error {
		if err := db.AcquireXactLock(ctx, tx, db.AdvisoryKey(lockNamespace, externalEventID)); err != nil {
			return fmt.Errorf("acquire event lock: %w", err)
		}

		var storedHash string
		var snapshot json.RawMessage
		err := tx.QueryRow(ctx,
			`SELECT request_hash, response_snapshot FROM event_idempotency WHERE external_event_id = $1`,
			externalEventID,
		).Scan(&storedHash, &snapshot)
		switch {
		case err == nil:
			if storedHash != requestHash {
				return apperr.Conflict("event " + externalEventID + " was already processed with a different payload")
			}
			result = Result{Response: snapshot, Replayed: true}
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			// First attempt; fall through and run the operation.
		default:
			return fmt.Errorf("load idempotency record: %w", err)
		}

		response, err := op(ctx, tx)
		if err != nil {
			return err
		}

		body, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshal operation response: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO event_idempotency (external_event_id, request_hash, event_type, scope, scope_id, response_snapshot)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
			externalEventID, requestHash, eventType, scope, scopeID, body,
		); err != nil {
			return fmt.Errorf("persist idempotency record: %w", err)
		}

		result = Result{Response: body, Replayed: false}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if result.Replayed {
		p.log.Info("event replayed", "external_event_id", externalEventID, "event_type", eventType)
	}
	return result, nil
}

// Hash produces the canonical request hash for an arbitrary payload.
func Hash(payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	return HashBytes(body), nil
}
