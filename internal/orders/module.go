// Package orders provides the order bounded context: phone intake and the
// order lifecycle state machine.
package orders

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/customers"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	apphttp "github.com/jotavsevla/agua-viva-oop-sub000/internal/http"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/handler"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/repository"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/validator"
)

// Module is the orders bounded context module.
type Module struct {
	handler   *handler.Handler
	intake    *service.Intake
	lifecycle *service.Lifecycle
	repo      *repository.Repo
}

// NewModule wires the orders module.
func NewModule(pool *pgxpool.Pool, publisher *dispatch.Publisher, log *logger.Logger) *Module {
	repo := repository.New()
	cust := customers.NewRepository()
	lifecycle := service.NewLifecycle(repo, log)
	intake := service.NewIntake(pool, repo, cust, publisher, validator.New(), log)
	reader := service.NewReader(pool, repo)
	h := handler.New(intake, reader)

	return &Module{
		handler:   h,
		intake:    intake,
		lifecycle: lifecycle,
		repo:      repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "orders"
}

// Lifecycle exposes the sole order-status writer to sibling modules.
func (m *Module) Lifecycle() *service.Lifecycle {
	return m.lifecycle
}

// Repository exposes the order repository to sibling modules.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts order routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/orders")
	group.POST("/phone-intake", m.handler.PhoneIntake)
	group.GET("/:id", m.handler.GetByID)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
