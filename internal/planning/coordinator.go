// Package planning turns pending demand into routes: it consumes outbox
// events, elects a single planner across instances, calls the external
// optimizer and persists the resulting routes under a monotonic plan version.
package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	ordersvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/planning/solver"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/dlock"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// SolverClient is what the coordinator needs from the optimizer.
type SolverClient interface {
	Plan(ctx context.Context, req solver.PlanRequest) (solver.PlanResponse, error)
}

// CoordinatorConfig carries the static planning inputs.
type CoordinatorConfig struct {
	DepotLatitude  float64
	DepotLongitude float64
	ShiftStart     string
	ShiftEnd       string
	// TimeLocation anchors the route date; the operational day rolls over at
	// local midnight.
	TimeLocation *time.Location
}

// Coordinator runs planning cycles. At most one cycle runs cluster-wide; the
// singleton lock is held across the solver round-trip and released on every
// exit path.
type Coordinator struct {
	pool      *pgxpool.Pool
	repo      *Repo
	solver    SolverClient
	locker    dlock.Locker
	lifecycle *ordersvc.Lifecycle
	cfg       CoordinatorConfig
	log       *logger.Logger
}

// NewCoordinator creates the planning coordinator.
func NewCoordinator(pool *pgxpool.Pool, repo *Repo, sc SolverClient, locker dlock.Locker, lifecycle *ordersvc.Lifecycle, cfg CoordinatorConfig, log *logger.Logger) *Coordinator {
	if cfg.TimeLocation == nil {
		cfg.TimeLocation = time.UTC
	}
	return &Coordinator{
		pool:      pool,
		repo:      repo,
		solver:    sc,
		locker:    locker,
		lifecycle: lifecycle,
		cfg:       cfg,
		log:       log.WithComponent("planner"),
	}
}

// PlanResult reports one planning attempt.
type PlanResult struct {
	// Skipped means another instance held the planner lock; safe to retry.
	Skipped          bool
	PlanVersion      int64
	JobID            uuid.UUID
	JobStatus        string
	EligibleOrders   int
	RoutesCreated    int
	StopsCreated     int
	UnassignedOrders int
	RoutesSuperseded int64
}

// PlanPendingRoutes runs one planning cycle in its own transaction. This is
// the manual-trigger entrypoint; the worker uses PlanWithin to share its
// transaction.
func (c *Coordinator) PlanPendingRoutes(ctx context.Context, policy CapacityPolicy) (PlanResult, error) {
	var result PlanResult
	err := db.InTx(ctx, c.pool, func(tx pgx.Tx) error {
		var err error
		result, err = c.PlanWithin(ctx, tx, policy)
		return err
	})
	if err != nil {
		return PlanResult{}, err
	}
	return result, nil
}

// PlanWithin runs one planning cycle inside the caller's transaction, so the
// caller's bookkeeping commits atomically with the plan. A busy planner lock
// yields a zero-result with Skipped set, never an error.
//
// The solver job row is written outside the transaction so operators can
// watch and cancel an in-flight run; its terminal CONCLUIDO update rides the
// transaction and only becomes visible if the plan commits.
func (c *Coordinator) PlanWithin(ctx context.Context, tx pgx.Tx, policy CapacityPolicy) (PlanResult, error) {
	lock, acquired, err := c.locker.TryAcquire(ctx, db.LockKeyRoutePlanner)
	if err != nil {
		return PlanResult{}, fmt.Errorf("acquire planner lock: %w", err)
	}
	if !acquired {
		c.log.Info("plan skipped, another instance is planning")
		return PlanResult{Skipped: true}, nil
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			c.log.Error("release planner lock", "error", releaseErr.Error())
		}
	}()

	result := PlanResult{}

	capacities, err := c.repo.ActiveDriverCapacities(ctx, tx, policy)
	if err != nil {
		return PlanResult{}, err
	}
	candidates, err := c.repo.EligibleCandidates(ctx, tx)
	if err != nil {
		return PlanResult{}, err
	}

	admitted := Admit(candidates, capacities)
	result.EligibleOrders = len(admitted)
	if len(admitted) == 0 || len(capacities) == 0 {
		c.log.Info("plan cycle empty", "candidates", len(candidates), "drivers", len(capacities))
		return result, nil
	}

	planVersion, err := c.repo.NextPlanVersion(ctx, tx)
	if err != nil {
		return PlanResult{}, err
	}
	result.PlanVersion = planVersion

	planReq := c.buildRequest(capacities, admitted)
	reqPayload, err := json.Marshal(planReq)
	if err != nil {
		return PlanResult{}, fmt.Errorf("marshal plan request: %w", err)
	}

	// Outside the transaction on purpose.
	jobID, err := c.repo.InsertJob(ctx, c.pool, planVersion, reqPayload)
	if err != nil {
		return PlanResult{}, err
	}
	result.JobID = jobID

	resp, err := c.solver.Plan(ctx, planReq)
	if err != nil {
		c.failJob(ctx, jobID)
		return PlanResult{}, err
	}
	respPayload, err := json.Marshal(resp)
	if err != nil {
		c.failJob(ctx, jobID)
		return PlanResult{}, fmt.Errorf("marshal plan response: %w", err)
	}

	if err := validateResponse(resp); err != nil {
		c.failJob(ctx, jobID)
		return PlanResult{}, err
	}

	cancelled, err := c.repo.IsCancelRequested(ctx, c.pool, jobID)
	if err != nil {
		c.failJob(ctx, jobID)
		return PlanResult{}, err
	}
	if cancelled {
		if err := c.repo.FinishJob(ctx, c.pool, jobID, JobCancelled, respPayload); err != nil {
			return PlanResult{}, err
		}
		result.JobStatus = JobCancelled
		c.log.Info("plan cancelled before persistence", "job_id", jobID.String())
		return result, nil
	}

	if err := c.persistPlan(ctx, tx, resp, planVersion, &result); err != nil {
		c.failJob(ctx, jobID)
		return PlanResult{}, err
	}

	if err := c.repo.FinishJob(ctx, tx, jobID, JobDone, respPayload); err != nil {
		return PlanResult{}, err
	}
	result.JobStatus = JobDone
	result.UnassignedOrders = len(resp.Unassigned)

	c.log.PlanCycle(planVersion, result.RoutesCreated, result.StopsCreated, result.UnassignedOrders)
	return result, nil
}

func (c *Coordinator) buildRequest(capacities []DriverCapacity, admitted []Candidate) solver.PlanRequest {
	req := solver.PlanRequest{
		Depot: solver.Coordinates{
			Latitude:  c.cfg.DepotLatitude,
			Longitude: c.cfg.DepotLongitude,
		},
		ShiftStart: c.cfg.ShiftStart,
		ShiftEnd:   c.cfg.ShiftEnd,
		Drivers:    make([]solver.DriverInput, 0, len(capacities)),
		Orders:     make([]solver.OrderInput, 0, len(admitted)),
	}
	for _, dc := range capacities {
		if dc.Capacity <= 0 {
			continue
		}
		req.Drivers = append(req.Drivers, solver.DriverInput{DriverID: dc.DriverID, Capacity: dc.Capacity})
	}
	for _, cand := range admitted {
		priority := 0
		if cand.Status == domain.OrderConfirmed {
			priority = 1
		}
		req.Orders = append(req.Orders, solver.OrderInput{
			OrderID:     cand.OrderID,
			Latitude:    cand.Latitude,
			Longitude:   cand.Longitude,
			Quantity:    cand.Quantity,
			WindowType:  string(cand.WindowType),
			WindowStart: cand.WindowStart,
			WindowEnd:   cand.WindowEnd,
			Priority:    priority,
		})
	}
	return req
}

// validateResponse rejects a solver answer that puts one driver on more than
// one route. That breaks the one-active-route-per-driver model and means the
// optimizer violated its contract.
func validateResponse(resp solver.PlanResponse) error {
	seen := make(map[uuid.UUID]bool, len(resp.Routes))
	for _, rt := range resp.Routes {
		if seen[rt.DriverID] {
			return apperr.Internal("solver assigned driver " + rt.DriverID.String() + " to more than one route")
		}
		seen[rt.DriverID] = true
	}
	return nil
}

func (c *Coordinator) persistPlan(ctx context.Context, tx pgx.Tx, resp solver.PlanResponse, planVersion int64, result *PlanResult) error {
	superseded, err := c.repo.SupersedePlannedRoutes(ctx, tx)
	if err != nil {
		return err
	}
	result.RoutesSuperseded = superseded

	today := routeDay(c.cfg.TimeLocation)
	for _, planned := range resp.Routes {
		if len(planned.Stops) == 0 {
			continue
		}
		seq, err := c.repo.NextRouteSequence(ctx, tx, planned.DriverID, today)
		if err != nil {
			return err
		}
		routeID, err := c.repo.InsertRoute(ctx, tx, planned.DriverID, today, seq, planVersion)
		if err != nil {
			return err
		}
		result.RoutesCreated++

		for i, stop := range planned.Stops {
			if err := c.repo.InsertDelivery(ctx, tx, stop.OrderID, routeID, i+1, stop.ScheduledTime); err != nil {
				return err
			}
			result.StopsCreated++

			if err := c.confirmOrder(ctx, tx, stop.OrderID); err != nil {
				return err
			}
		}
	}
	return nil
}

// confirmOrder moves a freshly-stopped PENDENTE order to CONFIRMADO. Orders
// already CONFIRMADO from a superseded plan pass through untouched; a rejected
// transition on any other status means a stop was planned for a dead order
// and the whole plan must roll back.
func (c *Coordinator) confirmOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	_, err := c.lifecycle.Transition(ctx, tx, orderID, domain.OrderConfirmed, ordersvc.TransitionContext{})
	if err == nil || !apperr.Is(err, apperr.KindInvalidTransition) {
		return err
	}
	status, statusErr := c.repo.OrderStatus(ctx, tx, orderID)
	if statusErr != nil {
		return statusErr
	}
	if status == domain.OrderConfirmed {
		return nil
	}
	return err
}

// routeDay is the current operational date in loc, encoded as a UTC midnight
// so it maps onto the route_date column without shifting.
func routeDay(loc *time.Location) time.Time {
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Coordinator) failJob(ctx context.Context, jobID uuid.UUID) {
	if err := c.repo.FinishJob(context.WithoutCancel(ctx), c.pool, jobID, JobFailed, nil); err != nil {
		c.log.Error("mark solver job failed", "job_id", jobID.String(), "error", err.Error())
	}
}
