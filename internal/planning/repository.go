package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
)

// Repo implements planning persistence with PostgreSQL.
type Repo struct{}

// New creates a planning repository.
func New() *Repo {
	return &Repo{}
}

// ActiveDriverCapacities returns every active driver with vehicle capacity,
// reduced by the load still open on EM_ANDAMENTO routes when the policy is
// REMAINING. Drivers left with zero or negative capacity are still returned;
// admission simply never picks them.
func (r *Repo) ActiveDriverCapacities(ctx context.Context, q db.Querier, policy CapacityPolicy) ([]DriverCapacity, error) {
	rows, err := q.Query(ctx,
		`SELECT dr.id,
		        dr.vehicle_capacity - CASE WHEN $1 THEN COALESCE(load.committed, 0) ELSE 0 END
		 FROM drivers dr
		 LEFT JOIN (
			SELECT rt.driver_id, SUM(o.quantity) AS committed
			FROM routes rt
			JOIN deliveries d ON d.route_id = rt.id
			JOIN orders o ON o.id = d.order_id
			WHERE rt.status = $2 AND d.status IN ($3, $4)
			GROUP BY rt.driver_id
		 ) load ON load.driver_id = dr.id
		 WHERE dr.active
		 ORDER BY dr.id`,
		policy == CapacityRemaining,
		domain.RouteInProgress, domain.DeliveryPending, domain.DeliveryInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("load driver capacities: %w", err)
	}
	defer rows.Close()

	var caps []DriverCapacity
	for rows.Next() {
		var c DriverCapacity
		if err := rows.Scan(&c.DriverID, &c.Capacity); err != nil {
			return nil, fmt.Errorf("scan driver capacity: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// EligibleCandidates returns PENDENTE and CONFIRMADO orders with usable
// customer coordinates, ordered by creation time. Orders already riding an
// EM_ANDAMENTO route are excluded; their fate belongs to field execution.
func (r *Repo) EligibleCandidates(ctx context.Context, q db.Querier) ([]Candidate, error) {
	rows, err := q.Query(ctx,
		`SELECT o.id, o.status, o.quantity, c.latitude, c.longitude,
		        o.window_type, o.window_start, o.window_end, o.created_at
		 FROM orders o
		 JOIN customers c ON c.id = o.customer_id
		 WHERE o.status IN ($1, $2)
		   AND c.latitude IS NOT NULL AND c.longitude IS NOT NULL
		   AND NOT EXISTS (
			SELECT 1 FROM deliveries d
			JOIN routes rt ON rt.id = d.route_id
			WHERE d.order_id = o.id
			  AND rt.status = $3
			  AND d.status IN ($4, $5)
		   )
		 ORDER BY o.created_at`,
		domain.OrderPending, domain.OrderConfirmed,
		domain.RouteInProgress, domain.DeliveryPending, domain.DeliveryInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("load eligible orders: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.OrderID, &c.Status, &c.Quantity, &c.Latitude, &c.Longitude,
			&c.WindowType, &c.WindowStart, &c.WindowEnd, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan eligible order: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// OrderStatus reads one order's current status.
func (r *Repo) OrderStatus(ctx context.Context, q db.Querier, orderID uuid.UUID) (domain.OrderStatus, error) {
	var s domain.OrderStatus
	err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("order not found")
		}
		return "", fmt.Errorf("read order status: %w", err)
	}
	return s, nil
}

// NextPlanVersion mints the next monotonic plan version.
func (r *Repo) NextPlanVersion(ctx context.Context, q db.Querier) (int64, error) {
	var v int64
	if err := q.QueryRow(ctx, `SELECT nextval('plan_version_seq')`).Scan(&v); err != nil {
		return 0, fmt.Errorf("next plan version: %w", err)
	}
	return v, nil
}

// SupersedePlannedRoutes removes every never-started route so the new plan
// replaces it. Deliveries cascade with the route; the orders stay CONFIRMADO
// and re-enter eligibility.
func (r *Repo) SupersedePlannedRoutes(ctx context.Context, q db.Querier) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM routes WHERE status = $1`, domain.RoutePlanned)
	if err != nil {
		return 0, fmt.Errorf("supersede planned routes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// NextRouteSequence returns the next free sequence number for the driver on
// the given date, so new routes never collide with completed ones.
func (r *Repo) NextRouteSequence(ctx context.Context, q db.Querier, driverID uuid.UUID, date time.Time) (int, error) {
	var next int
	err := q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number_for_day), 0) + 1
		 FROM routes WHERE driver_id = $1 AND route_date = $2`,
		driverID, date,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next route sequence: %w", err)
	}
	return next, nil
}

// InsertRoute persists one planned route.
func (r *Repo) InsertRoute(ctx context.Context, q db.Querier, driverID uuid.UUID, date time.Time, sequence int, planVersion int64) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx,
		`INSERT INTO routes (driver_id, route_date, sequence_number_for_day, status, plan_version)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		driverID, date, sequence, domain.RoutePlanned, planVersion,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert route: %w", err)
	}
	return id, nil
}

// InsertDelivery persists one planned stop.
func (r *Repo) InsertDelivery(ctx context.Context, q db.Querier, orderID, routeID uuid.UUID, sequenceInRoute int, scheduledTime *time.Time) error {
	_, err := q.Exec(ctx,
		`INSERT INTO deliveries (order_id, route_id, sequence_in_route, status, scheduled_time)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderID, routeID, sequenceInRoute, domain.DeliveryPending, scheduledTime,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// SolverJob mirrors one solver_jobs row.
type SolverJob struct {
	JobID           uuid.UUID
	PlanVersion     int64
	Status          string
	CancelRequested bool
	RequestPayload  json.RawMessage
	ResponsePayload json.RawMessage
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Solver job statuses.
const (
	JobPending   = "PENDENTE"
	JobRunning   = "EM_EXECUCAO"
	JobDone      = "CONCLUIDO"
	JobCancelled = "CANCELADO"
	JobFailed    = "FALHOU"
)

// InsertJob records the start of one solver invocation.
func (r *Repo) InsertJob(ctx context.Context, q db.Querier, planVersion int64, requestPayload []byte) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx,
		`INSERT INTO solver_jobs (plan_version, status, request_payload, started_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING job_id`,
		planVersion, JobRunning, requestPayload,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert solver job: %w", err)
	}
	return id, nil
}

// FinishJob records the terminal status of one solver invocation.
func (r *Repo) FinishJob(ctx context.Context, q db.Querier, jobID uuid.UUID, status string, responsePayload []byte) error {
	_, err := q.Exec(ctx,
		`UPDATE solver_jobs
		 SET status = $2, response_payload = COALESCE($3, response_payload), finished_at = now()
		 WHERE job_id = $1`,
		jobID, status, responsePayload,
	)
	if err != nil {
		return fmt.Errorf("finish solver job: %w", err)
	}
	return nil
}

// GetJob loads one solver job.
func (r *Repo) GetJob(ctx context.Context, q db.Querier, jobID uuid.UUID) (SolverJob, error) {
	var j SolverJob
	err := q.QueryRow(ctx,
		`SELECT job_id, plan_version, status, cancel_requested, request_payload, response_payload,
		        created_at, started_at, finished_at
		 FROM solver_jobs WHERE job_id = $1`,
		jobID,
	).Scan(&j.JobID, &j.PlanVersion, &j.Status, &j.CancelRequested, &j.RequestPayload, &j.ResponsePayload,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SolverJob{}, apperr.NotFound("solver job not found")
		}
		return SolverJob{}, fmt.Errorf("get solver job: %w", err)
	}
	return j, nil
}

// RequestCancel flags a non-terminal job for cancellation. The planner checks
// the flag before persisting, so a cancel that lands after persistence is a
// no-op and the caller learns so from the job status.
func (r *Repo) RequestCancel(ctx context.Context, q db.Querier, jobID uuid.UUID) (SolverJob, error) {
	var j SolverJob
	err := q.QueryRow(ctx,
		`UPDATE solver_jobs
		 SET cancel_requested = TRUE
		 WHERE job_id = $1 AND status IN ($2, $3)
		 RETURNING job_id, plan_version, status, cancel_requested, request_payload, response_payload,
		           created_at, started_at, finished_at`,
		jobID, JobPending, JobRunning,
	).Scan(&j.JobID, &j.PlanVersion, &j.Status, &j.CancelRequested, &j.RequestPayload, &j.ResponsePayload,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either absent or already terminal.
			return r.GetJob(ctx, q, jobID)
		}
		return SolverJob{}, fmt.Errorf("request job cancel: %w", err)
	}
	return j, nil
}

// IsCancelRequested re-reads the cancellation flag mid-run.
func (r *Repo) IsCancelRequested(ctx context.Context, q db.Querier, jobID uuid.UUID) (bool, error) {
	var flag bool
	err := q.QueryRow(ctx,
		`SELECT cancel_requested FROM solver_jobs WHERE job_id = $1`,
		jobID,
	).Scan(&flag)
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag, nil
}
