// Package execution provides the field execution bounded context: starting
// routes and finalizing deliveries.
package execution

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/customers"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/handler"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/repository"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/service"
	apphttp "github.com/jotavsevla/agua-viva-oop-sub000/internal/http"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/idempotency"
	ordersvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

// Module is the execution bounded context module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the execution module.
func NewModule(pool *pgxpool.Pool, lifecycle *ordersvc.Lifecycle, publisher *dispatch.Publisher, processor *idempotency.Processor, loc *time.Location, log *logger.Logger) *Module {
	repo := repository.New()
	cust := customers.NewRepository()
	svc := service.New(pool, repo, cust, lifecycle, publisher, loc, log)
	return &Module{handler: handler.New(svc, processor)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "execution"
}

// RegisterRoutes mounts execution routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/routes/:id/start", m.handler.StartRoute)
	ctx.V1.POST("/drivers/:driverId/routes/start-next", m.handler.StartNextRoute)
	ctx.V1.POST("/deliveries/:id/finalize", m.handler.Finalize)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
