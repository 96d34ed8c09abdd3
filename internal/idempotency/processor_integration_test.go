package idempotency_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/idempotency"
	"github.com/jotavsevla/agua-viva-oop-sub000/migrations"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

type ProcessorIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	processor *idempotency.Processor
}

func (s *ProcessorIntegrationTestSuite) SetupSuite() {
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

	s.processor = idempotency.NewProcessor(pool, logger.New("test"))
}

func (s *ProcessorIntegrationTestSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE event_idempotency")
	s.Require().NoError(err)
}

func (s *ProcessorIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *ProcessorIntegrationTestSuite) TestRetryReplaysStoredResponse() {
	ctx := context.Background()
	var calls atomic.Int32
	op := func(ctx context.Context, tx pgx.Tx) (any, error) {
		calls.Add(1)
		return map[string]string{"outcome": "done"}, nil
	}

	first, err := s.processor.Process(ctx, "evt-1", "hash-a", "TEST", "order", "o-1", op)
	s.Require().NoError(err)
	s.False(first.Replayed)

	second, err := s.processor.Process(ctx, "evt-1", "hash-a", "TEST", "order", "o-1", op)
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.JSONEq(string(first.Response), string(second.Response))
	s.Equal(int32(1), calls.Load(), "operation must run exactly once")
}

func (s *ProcessorIntegrationTestSuite) TestDivergentPayloadIsConflict() {
	ctx := context.Background()
	op := func(ctx context.Context, tx pgx.Tx) (any, error) {
		return "ok", nil
	}

	_, err := s.processor.Process(ctx, "evt-2", "hash-a", "TEST", "order", "o-1", op)
	s.Require().NoError(err)

	_, err = s.processor.Process(ctx, "evt-2", "hash-B", "TEST", "order", "o-1", op)
	s.Require().Error(err)
	s.True(apperr.Is(err, apperr.KindConflict), "divergent retry must be a conflict, got %v", err)
}

func (s *ProcessorIntegrationTestSuite) TestFailedOperationLeavesNoRecord() {
	ctx := context.Background()
	boom := func(ctx context.Context, tx pgx.Tx) (any, error) {
		return nil, apperr.Validation("bad input")
	}

	_, err := s.processor.Process(ctx, "evt-3", "hash-a", "TEST", "order", "o-1", boom)
	s.Require().Error(err)

	// The failure rolled everything back, so a corrected retry runs fresh.
	ok := func(ctx context.Context, tx pgx.Tx) (any, error) {
		return "ok", nil
	}
	result, err := s.processor.Process(ctx, "evt-3", "hash-a", "TEST", "order", "o-1", ok)
	s.Require().NoError(err)
	s.False(result.Replayed)
}

func (s *ProcessorIntegrationTestSuite) TestConcurrentSameEventRunsOnce() {
	ctx := context.Background()
	var calls atomic.Int32
	op := func(ctx context.Context, tx pgx.Tx) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "ok", nil
	}

	var replays atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			result, err := s.processor.Process(gctx, "evt-4", "hash-a", "TEST", "order", "o-1", op)
			if err != nil {
				return err
			}
			if result.Replayed {
				replays.Add(1)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), calls.Load(), "exactly one caller runs the operation")
	s.Equal(int32(3), replays.Load(), "everyone else replays its response")
}

func TestProcessorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProcessorIntegrationTestSuite))
}
