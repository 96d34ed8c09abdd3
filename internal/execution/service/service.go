// Package service owns delivery and route transitions: route start, one-click
// start and delivery finalization, composing the order lifecycle, the outbox
// and the voucher ledger.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/customers"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/repository"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	ordersvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// Service drives field execution.
type Service struct {
	pool      *pgxpool.Pool
	repo      *repository.Repo
	customers *customers.Repository
	lifecycle *ordersvc.Lifecycle
	publisher *dispatch.Publisher
	loc       *time.Location
	log       *logger.Logger
}

// New creates the execution service. loc anchors "today" for the
// one-route-in-progress-per-day check.
func New(pool *pgxpool.Pool, repo *repository.Repo, cust *customers.Repository, lifecycle *ordersvc.Lifecycle, publisher *dispatch.Publisher, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		pool:      pool,
		repo:      repo,
		customers: cust,
		lifecycle: lifecycle,
		publisher: publisher,
		loc:       loc,
		log:       log.WithComponent("execution"),
	}
}

// routeDay is the current operational date in loc, encoded as a UTC midnight
// so it maps onto the route_date column without shifting.
func routeDay(loc *time.Location) time.Time {
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartRouteResult reports what a route start did.
type StartRouteResult struct {
	RouteID            uuid.UUID
	AlreadyInProgress  bool
	DeliveriesPromoted int
}

// StartRoute starts a route. An EM_ANDAMENTO route is an idempotent replay;
// a CONCLUIDA route rejects restart. When actingDriverID is given it must
// own the route.
func (s *Service) StartRoute(ctx context.Context, routeID uuid.UUID, actingDriverID *uuid.UUID) (StartRouteResult, error) {
	var result StartRouteResult
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		route, err := s.repo.LockRoute(ctx, tx, routeID)
		if err != nil {
			return err
		}
		result, err = s.startLockedRoute(ctx, tx, route, actingDriverID)
		return err
	})
	if err != nil {
		return StartRouteResult{}, err
	}
	return result, nil
}

// StartNextReadyRoute is the driver's one-click start: it refuses when the
// driver already has a route in progress today, otherwise claims the
// earliest PLANEJADA route and starts it. Concurrent drivers never block
// each other on the claim.
func (s *Service) StartNextReadyRoute(ctx context.Context, driverID uuid.UUID) (StartRouteResult, error) {
	var result StartRouteResult
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		inProgress, err := s.repo.HasRouteInProgress(ctx, tx, driverID, routeDay(s.loc))
		if err != nil {
			return err
		}
		if inProgress {
			return apperr.Conflict("driver already has a route in progress today")
		}

		route, found, err := s.repo.NextPlannedRoute(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("no planned route ready for this driver")
		}

		result, err = s.startLockedRoute(ctx, tx, route, &driverID)
		return err
	})
	if err != nil {
		return StartRouteResult{}, err
	}
	return result, nil
}

// startLockedRoute does the shared start work on an already-locked route.
func (s *Service) startLockedRoute(ctx context.Context, tx pgx.Tx, route domain.Route, actingDriverID *uuid.UUID) (StartRouteResult, error) {
	if actingDriverID != nil && *actingDriverID != route.DriverID {
		return StartRouteResult{}, apperr.Conflict("route belongs to another driver")
	}

	result := StartRouteResult{RouteID: route.ID}
	switch route.Status {
	case domain.RouteCompleted:
		return StartRouteResult{}, apperr.Conflict("route is already completed")
	case domain.RouteInProgress:
		result.AlreadyInProgress = true
	case domain.RoutePlanned:
		if err := s.repo.MarkRouteStarted(ctx, tx, route.ID); err != nil {
			return StartRouteResult{}, err
		}
	}

	orderIDs, err := s.repo.PromotePendingDeliveries(ctx, tx, route.ID)
	if err != nil {
		return StartRouteResult{}, err
	}
	result.DeliveriesPromoted = len(orderIDs)

	for _, orderID := range orderIDs {
		if _, err := s.lifecycle.Transition(ctx, tx, orderID, domain.OrderEnRoute, ordersvc.TransitionContext{}); err != nil {
			return StartRouteResult{}, err
		}
	}

	// A pure replay that promoted nothing already announced itself once.
	if !(result.AlreadyInProgress && result.DeliveriesPromoted == 0) {
		err = s.publisher.Publish(ctx, tx, dispatch.EventRouteStarted, dispatch.AggregateRoute, route.ID.String(), map[string]any{
			"routeId":  route.ID.String(),
			"driverId": route.DriverID.String(),
			"promoted": result.DeliveriesPromoted,
		})
		if err != nil {
			return StartRouteResult{}, err
		}
	}

	s.log.Info("route start",
		"route_id", route.ID.String(),
		"replay", result.AlreadyInProgress,
		"deliveries_promoted", result.DeliveriesPromoted,
	)
	return result, nil
}

// eventForOutcome maps a terminal delivery status to its domain event.
var eventForOutcome = map[domain.DeliveryStatus]string{
	domain.DeliveryDelivered: dispatch.EventOrderDelivered,
	domain.DeliveryFailed:    dispatch.EventOrderFailed,
	domain.DeliveryCancelled: dispatch.EventOrderCancelled,
}

// FinalizeRequest finishes one delivery.
type FinalizeRequest struct {
	DeliveryID     uuid.UUID
	Target         domain.DeliveryStatus
	Motive         string
	ChargeCents    int64
	ActingDriverID *uuid.UUID
}

// FinalizeResult reports what a finalization did. VoucherSettlementFailed
// flags a delivered voucher order whose balance could not cover the debit;
// the delivery stands and an operator settles the difference by hand.
type FinalizeResult struct {
	DeliveryID              uuid.UUID             `json:"deliveryId"`
	DeliveryStatus          domain.DeliveryStatus `json:"deliveryStatus"`
	OrderStatus             domain.OrderStatus    `json:"orderStatus"`
	RouteCompleted          bool                  `json:"routeCompleted"`
	Replayed                bool                  `json:"replayed"`
	VoucherSettlementFailed bool                  `json:"voucherSettlementFailed"`
}

// Finalize completes, fails or cancels an in-execution delivery.
//
// A delivery already in the requested terminal status is an idempotent
// replay; any other terminal status is a Conflict, never a silent success.
// When the order is voucher-paid, the debit happens exactly once via the
// ledger guard; an insufficient balance at that point is surfaced as fatal
// AFTER the delivery record is committed, because the physical delivery
// already happened and must stay recorded.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error) {
	eventType, ok := eventForOutcome[req.Target]
	if !ok {
		return FinalizeResult{}, apperr.Validation("finalize target must be ENTREGUE, FALHOU or CANCELADA")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FinalizeResult{}, err
	}
	defer tx.Rollback(ctx)

	result, voucherErr, err := s.finalizeInTx(ctx, tx, req, eventType)
	if err != nil {
		return FinalizeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FinalizeResult{}, err
	}

	s.log.Info("delivery finalized",
		"delivery_id", req.DeliveryID.String(),
		"target", string(req.Target),
		"replay", result.Replayed,
		"route_completed", result.RouteCompleted,
	)

	// The delivery is committed; the failed debit pages the operator.
	if voucherErr != nil {
		s.log.Error("voucher settlement failed after delivery", "delivery_id", req.DeliveryID.String(), "error", voucherErr.Error())
		result.VoucherSettlementFailed = true
		return result, voucherErr
	}
	return result, nil
}

// FinalizeInTx finalizes inside a caller-owned transaction, for callers that
// need the finalization and their own bookkeeping to commit atomically. A
// voucher settlement failure does not abort the transaction; it is logged and
// flagged on the result.
func (s *Service) FinalizeInTx(ctx context.Context, tx pgx.Tx, req FinalizeRequest) (FinalizeResult, error) {
	eventType, ok := eventForOutcome[req.Target]
	if !ok {
		return FinalizeResult{}, apperr.Validation("finalize target must be ENTREGUE, FALHOU or CANCELADA")
	}

	result, voucherErr, err := s.finalizeInTx(ctx, tx, req, eventType)
	if err != nil {
		return FinalizeResult{}, err
	}
	if voucherErr != nil {
		s.log.Error("voucher settlement failed after delivery", "delivery_id", req.DeliveryID.String(), "error", voucherErr.Error())
		result.VoucherSettlementFailed = true
	}
	return result, nil
}

func (s *Service) finalizeInTx(ctx context.Context, tx pgx.Tx, req FinalizeRequest, eventType string) (FinalizeResult, error, error) {
	chain, err := s.repo.LockDeliveryChain(ctx, tx, req.DeliveryID)
	if err != nil {
		return FinalizeResult{}, nil, err
	}
	if req.ActingDriverID != nil && *req.ActingDriverID != chain.DriverID {
		return FinalizeResult{}, nil, apperr.Conflict("delivery belongs to another driver's route")
	}

	result := FinalizeResult{DeliveryID: req.DeliveryID, DeliveryStatus: chain.Delivery.Status, OrderStatus: chain.OrderStatus}

	if chain.Delivery.Status.Terminal() {
		if chain.Delivery.Status != req.Target {
			return FinalizeResult{}, nil, apperr.Conflict(
				"delivery is already " + string(chain.Delivery.Status) + "; refusing " + string(req.Target))
		}
		// Replay: the only effect left to reconcile is a debit a previous
		// attempt may have lost after its commit.
		voucherErr := s.settleVoucher(ctx, tx, chain, req.Target)
		result.Replayed = true
		return result, voucherErr, nil
	}

	if chain.Delivery.Status != domain.DeliveryInProgress {
		return FinalizeResult{}, nil, apperr.Conflict("delivery is not in execution")
	}

	if err := s.repo.SetDeliveryStatus(ctx, tx, req.DeliveryID, req.Target); err != nil {
		return FinalizeResult{}, nil, err
	}
	result.DeliveryStatus = req.Target

	orderTarget, _ := req.Target.OrderTargetFor()
	tc := ordersvc.TransitionContext{ChargeCents: req.ChargeCents}
	if req.Motive != "" {
		tc.CancelReason = &req.Motive
	}
	order, err := s.lifecycle.Transition(ctx, tx, chain.Delivery.OrderID, orderTarget, tc)
	if err != nil {
		return FinalizeResult{}, nil, err
	}
	result.OrderStatus = order.Status

	err = s.publisher.Publish(ctx, tx, eventType, dispatch.AggregateOrder, chain.Delivery.OrderID.String(), map[string]any{
		"orderId":    chain.Delivery.OrderID.String(),
		"deliveryId": req.DeliveryID.String(),
		"outcome":    string(req.Target),
	})
	if err != nil {
		return FinalizeResult{}, nil, err
	}

	voucherErr := s.settleVoucher(ctx, tx, chain, req.Target)

	open, err := s.repo.CountOpenDeliveries(ctx, tx, chain.Delivery.RouteID)
	if err != nil {
		return FinalizeResult{}, nil, err
	}
	if open == 0 && chain.RouteStatus == domain.RouteInProgress {
		if err := s.repo.MarkRouteCompleted(ctx, tx, chain.Delivery.RouteID); err != nil {
			return FinalizeResult{}, nil, err
		}
		err = s.publisher.Publish(ctx, tx, dispatch.EventRouteCompleted, dispatch.AggregateRoute, chain.Delivery.RouteID.String(), map[string]any{
			"routeId": chain.Delivery.RouteID.String(),
		})
		if err != nil {
			return FinalizeResult{}, nil, err
		}
		result.RouteCompleted = true
	}

	return result, voucherErr, nil
}

// settleVoucher debits a voucher-paid delivered order exactly once. It runs
// in a savepoint so an insufficient balance aborts only the debit, not the
// delivery record, and comes back as a fatal error for the operator.
func (s *Service) settleVoucher(ctx context.Context, tx pgx.Tx, chain repository.DeliveryChain, target domain.DeliveryStatus) error {
	if target != domain.DeliveryDelivered || chain.PaymentMethod != domain.PaymentVoucher {
		return nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}

	debited, err := s.customers.DebitVoucher(ctx, sp, chain.Delivery.OrderID, chain.CustomerID, chain.OrderQuantity)
	if err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return err
	}

	if debited {
		s.log.Info("voucher debited",
			"order_id", chain.Delivery.OrderID.String(),
			"quantity", chain.OrderQuantity,
		)
	}
	return nil
}
