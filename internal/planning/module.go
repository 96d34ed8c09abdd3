package planning

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	apphttp "github.com/jotavsevla/agua-viva-oop-sub000/internal/http"
	ordersvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/dlock"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// Module is the planning bounded context module.
type Module struct {
	coordinator *Coordinator
	worker      *Worker
	repo        *Repo
	pool        *pgxpool.Pool
}

// NewModule wires the planning module.
func NewModule(pool *pgxpool.Pool, sc SolverClient, locker dlock.Locker, lifecycle *ordersvc.Lifecycle, events *dispatch.Repository, cfg CoordinatorConfig, log *logger.Logger) *Module {
	repo := New()
	coordinator := NewCoordinator(pool, repo, sc, locker, lifecycle, cfg, log)
	worker := NewWorker(pool, events, coordinator, log)
	return &Module{
		coordinator: coordinator,
		worker:      worker,
		repo:        repo,
		pool:        pool,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "planning"
}

// Coordinator exposes the planning coordinator.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// Worker exposes the replanning worker for the cron job.
func (m *Module) Worker() *Worker {
	return m.worker
}

// RegisterRoutes mounts planning routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/planning")
	group.POST("/run", m.handleRun)
	group.GET("/jobs/:id", m.handleGetJob)
	group.POST("/jobs/:id/cancel", m.handleCancelJob)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
