package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// Worker drains the outbox and decides when planning runs. Many instances
// may poll concurrently; a transaction-scoped advisory lock elects exactly
// one leader per cycle and the losers return an empty result.
type Worker struct {
	pool        *pgxpool.Pool
	events      *dispatch.Repository
	coordinator *Coordinator
	log         *logger.Logger
}

// NewWorker creates the replanning worker.
func NewWorker(pool *pgxpool.Pool, events *dispatch.Repository, coordinator *Coordinator, log *logger.Logger) *Worker {
	return &Worker{
		pool:        pool,
		events:      events,
		coordinator: coordinator,
		log:         log.WithComponent("replan-worker"),
	}
}

// ProcessResult reports one worker cycle.
type ProcessResult struct {
	// Leader is false when another instance held the worker lock.
	Leader          bool
	EventsProcessed int
	Trigger         TriggerKind
	Plan            PlanResult
}

// ProcessPending runs one worker cycle. Dequeued events, the planning they
// trigger and their PROCESSADO marks commit in one transaction, so a crash
// before commit leaves every event PENDENTE for a clean retry.
func (w *Worker) ProcessPending(ctx context.Context, debounce time.Duration, maxEvents int) (ProcessResult, error) {
	var result ProcessResult
	err := db.InTx(ctx, w.pool, func(tx pgx.Tx) error {
		leader, err := db.TryXactLock(ctx, tx, db.LockKeyReplanWorker)
		if err != nil {
			return fmt.Errorf("acquire worker lock: %w", err)
		}
		if !leader {
			return nil
		}
		result.Leader = true

		events, err := w.events.DequeuePending(ctx, tx, debounce, maxEvents)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			result.Trigger = TriggerNone
			return nil
		}

		trigger, policy := Consolidate(events)
		result.Trigger = trigger

		if trigger != TriggerNone {
			plan, err := w.coordinator.PlanWithin(ctx, tx, policy)
			if err != nil {
				return err
			}
			result.Plan = plan
		}

		ids := make([]int64, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		if err := w.events.MarkProcessed(ctx, tx, ids); err != nil {
			return err
		}
		result.EventsProcessed = len(events)
		return nil
	})
	if err != nil {
		return ProcessResult{}, err
	}

	if result.Leader && result.EventsProcessed > 0 {
		w.log.Info("worker cycle",
			"events_processed", result.EventsProcessed,
			"trigger", string(result.Trigger),
			"plan_skipped", result.Plan.Skipped,
			"routes_created", result.Plan.RoutesCreated,
		)
	}
	return result, nil
}
