// Package repository persists deliveries and routes for field execution.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
)

// Repo implements execution persistence with PostgreSQL.
type Repo struct{}

// New creates a new execution repository.
func New() *Repo {
	return &Repo{}
}

// LockRoute row-locks one route.
func (r *Repo) LockRoute(ctx context.Context, q db.Querier, routeID uuid.UUID) (domain.Route, error) {
	var rt domain.Route
	err := q.QueryRow(ctx,
		`SELECT id, driver_id, route_date, sequence_number_for_day, status, plan_version, started_at, finished_at
		 FROM routes WHERE id = $1 FOR UPDATE`,
		routeID,
	).Scan(&rt.ID, &rt.DriverID, &rt.Date, &rt.SequenceNumberForDay, &rt.Status, &rt.PlanVersion, &rt.StartedAt, &rt.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Route{}, apperr.NotFound("route not found")
		}
		return domain.Route{}, fmt.Errorf("lock route: %w", err)
	}
	return rt, nil
}

// HasRouteInProgress reports whether the driver already has an EM_ANDAMENTO
// route on the given date.
func (r *Repo) HasRouteInProgress(ctx context.Context, q db.Querier, driverID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM routes WHERE driver_id = $1 AND route_date = $2 AND status = $3
		)`,
		driverID, date, domain.RouteInProgress,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check route in progress: %w", err)
	}
	return exists, nil
}

// NextPlannedRoute claims the driver's earliest PLANEJADA route without
// blocking on claims made by concurrent instances (SKIP LOCKED), so one-click
// start scales horizontally.
func (r *Repo) NextPlannedRoute(ctx context.Context, q db.Querier, driverID uuid.UUID) (domain.Route, bool, error) {
	var rt domain.Route
	err := q.QueryRow(ctx,
		`SELECT id, driver_id, route_date, sequence_number_for_day, status, plan_version, started_at, finished_at
		 FROM routes
		 WHERE driver_id = $1 AND status = $2
		 ORDER BY route_date, sequence_number_for_day
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		driverID, domain.RoutePlanned,
	).Scan(&rt.ID, &rt.DriverID, &rt.Date, &rt.SequenceNumberForDay, &rt.Status, &rt.PlanVersion, &rt.StartedAt, &rt.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Route{}, false, nil
		}
		return domain.Route{}, false, fmt.Errorf("claim next planned route: %w", err)
	}
	return rt, true, nil
}

// MarkRouteStarted moves the route to EM_ANDAMENTO.
func (r *Repo) MarkRouteStarted(ctx context.Context, q db.Querier, routeID uuid.UUID) error {
	_, err := q.Exec(ctx,
		`UPDATE routes SET status = $2, started_at = now() WHERE id = $1`,
		routeID, domain.RouteInProgress,
	)
	if err != nil {
		return fmt.Errorf("mark route started: %w", err)
	}
	return nil
}

// MarkRouteCompleted moves the route to CONCLUIDA.
func (r *Repo) MarkRouteCompleted(ctx context.Context, q db.Querier, routeID uuid.UUID) error {
	_, err := q.Exec(ctx,
		`UPDATE routes SET status = $2, finished_at = now() WHERE id = $1`,
		routeID, domain.RouteCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark route completed: %w", err)
	}
	return nil
}

// PromotePendingDeliveries moves every still-PENDENTE delivery of the route
// to EM_EXECUCAO and returns the affected order ids.
func (r *Repo) PromotePendingDeliveries(ctx context.Context, q db.Querier, routeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx,
		`UPDATE deliveries
		 SET status = $2, updated_at = now()
		 WHERE route_id = $1 AND status = $3
		 RETURNING order_id`,
		routeID, domain.DeliveryInProgress, domain.DeliveryPending,
	)
	if err != nil {
		return nil, fmt.Errorf("promote deliveries: %w", err)
	}
	defer rows.Close()

	var orderIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promoted delivery: %w", err)
		}
		orderIDs = append(orderIDs, id)
	}
	return orderIDs, rows.Err()
}

// DeliveryChain is a delivery joined with its order and route, loaded under
// row locks for finalization.
type DeliveryChain struct {
	Delivery      domain.Delivery
	OrderStatus   domain.OrderStatus
	OrderQuantity int
	PaymentMethod domain.PaymentMethod
	CustomerID    uuid.UUID
	RouteStatus   domain.RouteStatus
	DriverID      uuid.UUID
}

// FindDeliveryRefs resolves a delivery's order and route ids without locking.
func (r *Repo) FindDeliveryRefs(ctx context.Context, q db.Querier, deliveryID uuid.UUID) (orderID, routeID uuid.UUID, err error) {
	err = q.QueryRow(ctx,
		`SELECT order_id, route_id FROM deliveries WHERE id = $1`,
		deliveryID,
	).Scan(&orderID, &routeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, apperr.NotFound("delivery not found")
		}
		return uuid.Nil, uuid.Nil, fmt.Errorf("resolve delivery refs: %w", err)
	}
	return orderID, routeID, nil
}

// LockDeliveryChain locks delivery, order and route rows (route first, which
// is the same order the route-start path takes) and returns the joined view.
func (r *Repo) LockDeliveryChain(ctx context.Context, q db.Querier, deliveryID uuid.UUID) (DeliveryChain, error) {
	_, routeID, err := r.FindDeliveryRefs(ctx, q, deliveryID)
	if err != nil {
		return DeliveryChain{}, err
	}

	route, err := r.LockRoute(ctx, q, routeID)
	if err != nil {
		return DeliveryChain{}, err
	}

	var chain DeliveryChain
	err = q.QueryRow(ctx,
		`SELECT d.id, d.order_id, d.route_id, d.sequence_in_route, d.status, d.scheduled_time, d.actual_time,
		        o.status, o.quantity, o.payment_method, o.customer_id
		 FROM deliveries d
		 JOIN orders o ON o.id = d.order_id
		 WHERE d.id = $1
		 FOR UPDATE OF d, o`,
		deliveryID,
	).Scan(
		&chain.Delivery.ID, &chain.Delivery.OrderID, &chain.Delivery.RouteID, &chain.Delivery.SequenceInRoute,
		&chain.Delivery.Status, &chain.Delivery.ScheduledTime, &chain.Delivery.ActualTime,
		&chain.OrderStatus, &chain.OrderQuantity, &chain.PaymentMethod, &chain.CustomerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeliveryChain{}, apperr.NotFound("delivery not found")
		}
		return DeliveryChain{}, fmt.Errorf("lock delivery chain: %w", err)
	}
	chain.RouteStatus = route.Status
	chain.DriverID = route.DriverID
	return chain, nil
}

// SetDeliveryStatus persists a delivery's terminal status and actual time.
func (r *Repo) SetDeliveryStatus(ctx context.Context, q db.Querier, deliveryID uuid.UUID, status domain.DeliveryStatus) error {
	_, err := q.Exec(ctx,
		`UPDATE deliveries SET status = $2, actual_time = now(), updated_at = now() WHERE id = $1`,
		deliveryID, status,
	)
	if err != nil {
		return fmt.Errorf("set delivery status: %w", err)
	}
	return nil
}

// CountOpenDeliveries counts the route's deliveries still PENDENTE or
// EM_EXECUCAO. Zero means the route can auto-complete.
func (r *Repo) CountOpenDeliveries(ctx context.Context, q db.Querier, routeID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM deliveries WHERE route_id = $1 AND status IN ($2, $3)`,
		routeID, domain.DeliveryPending, domain.DeliveryInProgress,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open deliveries: %w", err)
	}
	return n, nil
}
