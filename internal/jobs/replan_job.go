// Package jobs schedules the background work of the dispatch engine.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/planning"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// ReplanJob polls the outbox on a cron schedule and lets the worker decide
// whether planning runs. Safe to run on every instance; the worker's leader
// lock keeps cycles single-flight.
type ReplanJob struct {
	worker    *planning.Worker
	cron      *cron.Cron
	spec      string
	debounce  time.Duration
	maxEvents int
	log       *logger.Logger
}

// NewReplanJob creates the replanning job.
func NewReplanJob(worker *planning.Worker, spec string, debounce time.Duration, maxEvents int, log *logger.Logger) *ReplanJob {
	return &ReplanJob{
		worker:    worker,
		cron:      cron.New(cron.WithSeconds()),
		spec:      spec,
		debounce:  debounce,
		maxEvents: maxEvents,
		log:       log.WithComponent("replan-job"),
	}
}

// Start begins polling on the configured schedule.
func (j *ReplanJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := j.worker.ProcessPending(ctx, j.debounce, j.maxEvents)
		if err != nil {
			j.log.Error("replan cycle failed", "error", err.Error())
			return
		}
		if result.Leader && result.EventsProcessed > 0 {
			j.log.Info("replan cycle done",
				"events_processed", result.EventsProcessed,
				"trigger", string(result.Trigger),
			)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.log.Info("replan job started", "schedule", j.spec)
	return nil
}

// Stop stops the job and waits for a running cycle to finish.
func (j *ReplanJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("replan job stopped")
}
