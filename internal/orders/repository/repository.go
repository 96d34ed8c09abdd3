// Package repository persists orders.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
)

const orderNotFoundMessage = "order not found"

const orderColumns = `id, customer_id, quantity, window_type, window_start, window_end, status,
	payment_method, external_call_id, agent_id, cancel_reason, cancellation_charge_cents,
	charge_status, created_at, updated_at`

// Repo implements order persistence with PostgreSQL.
type Repo struct{}

// New creates a new orders repository.
func New() *Repo {
	return &Repo{}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Quantity, &o.WindowType, &o.WindowStart, &o.WindowEnd, &o.Status,
		&o.PaymentMethod, &o.ExternalCallID, &o.AgentID, &o.CancelReason, &o.CancellationChargeCents,
		&o.ChargeStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetByID loads one order.
func (r *Repo) GetByID(ctx context.Context, q db.Querier, id uuid.UUID) (domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.NotFound(orderNotFoundMessage)
		}
		return domain.Order{}, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// LockByID row-locks one order for a status transition.
func (r *Repo) LockByID(ctx context.Context, q db.Querier, id uuid.UUID) (domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.NotFound(orderNotFoundMessage)
		}
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// GetByExternalCallID loads the order created for an external call id.
func (r *Repo) GetByExternalCallID(ctx context.Context, q db.Querier, callID string) (domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_call_id = $1`, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.NotFound(orderNotFoundMessage)
		}
		return domain.Order{}, fmt.Errorf("get order by call id: %w", err)
	}
	return o, nil
}

// FindOpenByCustomer returns the oldest non-terminal order of a customer, if
// any. Manual intake reuses it instead of opening a second order.
func (r *Repo) FindOpenByCustomer(ctx context.Context, q db.Querier, customerID uuid.UUID) (domain.Order, bool, error) {
	o, err := scanOrder(q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE customer_id = $1 AND status NOT IN ($2, $3)
		 ORDER BY created_at
		 LIMIT 1`,
		customerID, domain.OrderDelivered, domain.OrderCancelled,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("find open order: %w", err)
	}
	return o, true, nil
}

// InsertParams carries the fields intake sets on a new order.
type InsertParams struct {
	CustomerID     uuid.UUID
	Quantity       int
	PaymentMethod  domain.PaymentMethod
	ExternalCallID *string
	AgentID        string
}

// Insert creates a PENDENTE order. When ExternalCallID is set the insert is
// unique-constraint-aware: a concurrent duplicate yields inserted=false and
// the caller fetches the winner's row.
func (r *Repo) Insert(ctx context.Context, q db.Querier, p InsertParams) (domain.Order, bool, error) {
	row := q.QueryRow(ctx,
		`INSERT INTO orders (customer_id, quantity, window_type, status, payment_method, external_call_id, agent_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (external_call_id) DO NOTHING
		 RETURNING `+orderColumns,
		p.CustomerID, p.Quantity, domain.WindowASAP, domain.OrderPending, p.PaymentMethod, p.ExternalCallID, p.AgentID,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("insert order: %w", err)
	}
	return o, true, nil
}

// UpdateStatusParams carries the fields written on a status transition.
type UpdateStatusParams struct {
	Status                  domain.OrderStatus
	CancelReason            *string
	CancellationChargeCents *int64
	ChargeStatus            *domain.ChargeStatus
}

// UpdateStatus persists the outcome of an accepted transition. Only the
// lifecycle service calls it, always under the row lock it already holds.
func (r *Repo) UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, p UpdateStatusParams) error {
	tag, err := q.Exec(ctx,
		`UPDATE orders
		 SET status = $2,
		     cancel_reason = COALESCE($3, cancel_reason),
		     cancellation_charge_cents = COALESCE($4, cancellation_charge_cents),
		     charge_status = COALESCE($5, charge_status),
		     updated_at = now()
		 WHERE id = $1`,
		id, p.Status, p.CancelReason, p.CancellationChargeCents, p.ChargeStatus,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(orderNotFoundMessage)
	}
	return nil
}
