package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/customers"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/repository"
	execsvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	orderrepo "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/repository"
	ordersvc "github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/migrations"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

type ExecutionIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	svc       *execsvc.Service
}

func (s *ExecutionIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.Require().NoError(db.RunMigrations(ctx, connStr, migrations.FS))

	pool, err := db.NewPool(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	log := logger.New("test")
	publisher, err := dispatch.NewPublisher(ctx, pool, log)
	s.Require().NoError(err)

	lifecycle := ordersvc.NewLifecycle(orderrepo.New(), log)
	s.svc = execsvc.New(pool, repository.New(), customers.NewRepository(), lifecycle, publisher, time.UTC, log)
}

func (s *ExecutionIntegrationTestSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		"TRUNCATE voucher_debits, deliveries, routes, orders, drivers, customers, dispatch_events RESTART IDENTITY CASCADE")
	s.Require().NoError(err)
}

func (s *ExecutionIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *ExecutionIntegrationTestSuite) createDriver() uuid.UUID {
	var id uuid.UUID
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO drivers (name, vehicle_capacity) VALUES ('Carlos', 10) RETURNING id`,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *ExecutionIntegrationTestSuite) createCustomer(voucherBalance int) uuid.UUID {
	var id uuid.UUID
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO customers (name, phone, address, latitude, longitude, voucher_balance)
		 VALUES ('Maria', gen_random_uuid()::text, 'Rua A, 10', -18.91, -48.27, $1)
		 RETURNING id`,
		voucherBalance,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *ExecutionIntegrationTestSuite) createOrder(customerID uuid.UUID, quantity int, status domain.OrderStatus, payment domain.PaymentMethod) uuid.UUID {
	var id uuid.UUID
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO orders (customer_id, quantity, status, payment_method)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		customerID, quantity, status, payment,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *ExecutionIntegrationTestSuite) createRoute(driverID uuid.UUID, seq int, status domain.RouteStatus) uuid.UUID {
	var id uuid.UUID
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO routes (driver_id, route_date, sequence_number_for_day, status, plan_version)
		 VALUES ($1, CURRENT_DATE, $2, $3, 1) RETURNING id`,
		driverID, seq, status,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *ExecutionIntegrationTestSuite) createDelivery(orderID, routeID uuid.UUID, seq int, status domain.DeliveryStatus) uuid.UUID {
	var id uuid.UUID
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO deliveries (order_id, route_id, sequence_in_route, status)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		orderID, routeID, seq, status,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *ExecutionIntegrationTestSuite) deliveryStatus(id uuid.UUID) domain.DeliveryStatus {
	var st domain.DeliveryStatus
	err := s.pool.QueryRow(context.Background(), `SELECT status FROM deliveries WHERE id = $1`, id).Scan(&st)
	s.Require().NoError(err)
	return st
}

func (s *ExecutionIntegrationTestSuite) orderStatus(id uuid.UUID) domain.OrderStatus {
	var st domain.OrderStatus
	err := s.pool.QueryRow(context.Background(), `SELECT status FROM orders WHERE id = $1`, id).Scan(&st)
	s.Require().NoError(err)
	return st
}

func (s *ExecutionIntegrationTestSuite) routeStatus(id uuid.UUID) domain.RouteStatus {
	var st domain.RouteStatus
	err := s.pool.QueryRow(context.Background(), `SELECT status FROM routes WHERE id = $1`, id).Scan(&st)
	s.Require().NoError(err)
	return st
}

func (s *ExecutionIntegrationTestSuite) countEvents(eventType string) int {
	var n int
	err := s.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM dispatch_events WHERE event_type = $1`, eventType).Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *ExecutionIntegrationTestSuite) voucherBalance(customerID uuid.UUID) int {
	var b int
	err := s.pool.QueryRow(context.Background(),
		`SELECT voucher_balance FROM customers WHERE id = $1`, customerID).Scan(&b)
	s.Require().NoError(err)
	return b
}

func (s *ExecutionIntegrationTestSuite) TestFinalizeRefusesDifferentTerminalOutcome() {
	ctx := context.Background()
	driverID := s.createDriver()
	customerID := s.createCustomer(0)
	orderID := s.createOrder(customerID, 2, domain.OrderDelivered, domain.PaymentCash)
	routeID := s.createRoute(driverID, 1, domain.RouteInProgress)
	deliveryID := s.createDelivery(orderID, routeID, 1, domain.DeliveryDelivered)

	_, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{
		DeliveryID: deliveryID,
		Target:     domain.DeliveryFailed,
	})
	s.Require().Error(err)
	s.True(apperr.Is(err, apperr.KindConflict), "expected conflict, got %v", err)

	s.Equal(domain.DeliveryDelivered, s.deliveryStatus(deliveryID))
	s.Equal(domain.OrderDelivered, s.orderStatus(orderID))
	s.Equal(0, s.countEvents(dispatch.EventOrderFailed))
}

func (s *ExecutionIntegrationTestSuite) TestFinalizeReplaySameOutcome() {
	ctx := context.Background()
	driverID := s.createDriver()
	customerID := s.createCustomer(0)
	orderID := s.createOrder(customerID, 2, domain.OrderDelivered, domain.PaymentCash)
	routeID := s.createRoute(driverID, 1, domain.RouteInProgress)
	deliveryID := s.createDelivery(orderID, routeID, 1, domain.DeliveryDelivered)

	result, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{
		DeliveryID: deliveryID,
		Target:     domain.DeliveryDelivered,
	})
	s.Require().NoError(err)
	s.True(result.Replayed)
	s.Equal(0, s.countEvents(dispatch.EventOrderDelivered), "a replay publishes nothing")
}

func (s *ExecutionIntegrationTestSuite) TestLastFinalizeCompletesRoute() {
	ctx := context.Background()
	driverID := s.createDriver()
	customerID := s.createCustomer(0)
	routeID := s.createRoute(driverID, 1, domain.RouteInProgress)

	order1 := s.createOrder(customerID, 1, domain.OrderEnRoute, domain.PaymentCash)
	order2 := s.createOrder(customerID, 1, domain.OrderEnRoute, domain.PaymentCash)
	delivery1 := s.createDelivery(order1, routeID, 1, domain.DeliveryInProgress)
	delivery2 := s.createDelivery(order2, routeID, 2, domain.DeliveryInProgress)

	first, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{DeliveryID: delivery1, Target: domain.DeliveryDelivered})
	s.Require().NoError(err)
	s.False(first.RouteCompleted, "route still has an open delivery")
	s.Equal(domain.RouteInProgress, s.routeStatus(routeID))

	second, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{DeliveryID: delivery2, Target: domain.DeliveryDelivered})
	s.Require().NoError(err)
	s.True(second.RouteCompleted)
	s.Equal(domain.RouteCompleted, s.routeStatus(routeID))
	s.Equal(domain.OrderDelivered, s.orderStatus(order1))
	s.Equal(domain.OrderDelivered, s.orderStatus(order2))

	s.Equal(1, s.countEvents(dispatch.EventRouteCompleted))
	s.Equal(2, s.countEvents(dispatch.EventOrderDelivered))
}

func (s *ExecutionIntegrationTestSuite) TestVoucherDebitHappensOnce() {
	ctx := context.Background()
	driverID := s.createDriver()
	customerID := s.createCustomer(5)
	orderID := s.createOrder(customerID, 2, domain.OrderEnRoute, domain.PaymentVoucher)
	routeID := s.createRoute(driverID, 1, domain.RouteInProgress)
	deliveryID := s.createDelivery(orderID, routeID, 1, domain.DeliveryInProgress)

	result, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{DeliveryID: deliveryID, Target: domain.DeliveryDelivered})
	s.Require().NoError(err)
	s.False(result.Replayed)
	s.Equal(3, s.voucherBalance(customerID))

	// A retry replays the finalization without touching the balance again.
	replay, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{DeliveryID: deliveryID, Target: domain.DeliveryDelivered})
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(3, s.voucherBalance(customerID))

	var debits int
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM voucher_debits WHERE order_id = $1`, orderID).Scan(&debits)
	s.Require().NoError(err)
	s.Equal(1, debits)
}

func (s *ExecutionIntegrationTestSuite) TestFinalizeRejectsForeignDriver() {
	ctx := context.Background()
	driverID := s.createDriver()
	customerID := s.createCustomer(0)
	orderID := s.createOrder(customerID, 1, domain.OrderEnRoute, domain.PaymentCash)
	routeID := s.createRoute(driverID, 1, domain.RouteInProgress)
	deliveryID := s.createDelivery(orderID, routeID, 1, domain.DeliveryInProgress)

	intruder := uuid.New()
	_, err := s.svc.Finalize(ctx, execsvc.FinalizeRequest{
		DeliveryID:     deliveryID,
		Target:         domain.DeliveryDelivered,
		ActingDriverID: &intruder,
	})
	s.Require().Error(err)
	s.True(apperr.Is(err, apperr.KindConflict), "expected conflict, got %v", err)
	s.Equal(domain.DeliveryInProgress, s.deliveryStatus(deliveryID))
}

func TestExecutionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ExecutionIntegrationTestSuite))
}
