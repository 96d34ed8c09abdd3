// Package service implements order intake and the order lifecycle.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/repository"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// TransitionContext carries caller-supplied data for a transition.
type TransitionContext struct {
	// CancelReason is persisted when the target is CANCELADO.
	CancelReason *string
	// ChargeCents is the cancellation charge the caller computed. It only
	// takes effect when the transition metadata says the cancellation is
	// chargeable.
	ChargeCents int64
}

// Lifecycle is the sole writer of Order.status. Every transition row-locks
// the order, consults the state machine and persists its result in the
// caller's transaction.
type Lifecycle struct {
	orders *repository.Repo
	log    *logger.Logger
}

// NewLifecycle creates the lifecycle service.
func NewLifecycle(orders *repository.Repo, log *logger.Logger) *Lifecycle {
	return &Lifecycle{orders: orders, log: log.WithComponent("lifecycle")}
}

// Transition moves an order to target inside the caller's transaction.
// NotFound if the order is absent; InvalidTransition if the state machine
// rejects (fatal, signals a caller or stale-client bug).
func (l *Lifecycle) Transition(ctx context.Context, q db.Querier, orderID uuid.UUID, target domain.OrderStatus, tc TransitionContext) (domain.Order, error) {
	order, err := l.orders.LockByID(ctx, q, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	result, err := domain.Transition(order.Status, target)
	if err != nil {
		return domain.Order{}, err
	}

	params := repository.UpdateStatusParams{Status: result.NewStatus}
	if target == domain.OrderCancelled {
		params.CancelReason = tc.CancelReason

		charge := int64(0)
		status := domain.ChargeNotApplicable
		if result.Chargeable && tc.ChargeCents > 0 {
			charge = tc.ChargeCents
			status = domain.ChargePending
		}
		params.CancellationChargeCents = &charge
		params.ChargeStatus = &status
	}

	if err := l.orders.UpdateStatus(ctx, q, orderID, params); err != nil {
		return domain.Order{}, err
	}

	order.Status = result.NewStatus
	order.CancelReason = params.CancelReason
	order.CancellationChargeCents = params.CancellationChargeCents
	order.ChargeStatus = params.ChargeStatus

	l.log.Info("order transitioned",
		"order_id", orderID.String(),
		"status", string(result.NewStatus),
		"chargeable", result.Chargeable,
	)
	return order, nil
}
