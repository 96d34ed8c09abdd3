package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution"
	apphttp "github.com/jotavsevla/agua-viva-oop-sub000/internal/http"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/http/router"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/idempotency"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/planning"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/planning/solver"
	"github.com/jotavsevla/agua-viva-oop-sub000/migrations"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/config"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/dlock"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg.DatabaseURL, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	locker, closeLocker := newLocker(cfg, pool, log)
	if closeLocker != nil {
		defer closeLocker()
	}

	publisher, err := dispatch.NewPublisher(ctx, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox publisher", "error", err)
		panic("failed to initialize outbox publisher: " + err.Error())
	}
	processor := idempotency.NewProcessor(pool, log)
	eventRepo := dispatch.NewRepository()

	ordersModule := orders.NewModule(pool, publisher, log)
	executionModule := execution.NewModule(pool, ordersModule.Lifecycle(), publisher, processor, cfg.TimeLocation, log)
	planningModule := planning.NewModule(
		pool,
		solver.NewClient(cfg.SolverURL, cfg.SolverTimeout),
		locker,
		ordersModule.Lifecycle(),
		eventRepo,
		planning.CoordinatorConfig{
			DepotLatitude:  cfg.DepotLatitude,
			DepotLongitude: cfg.DepotLongitude,
			ShiftStart:     cfg.ShiftStart,
			ShiftEnd:       cfg.ShiftEnd,
			TimeLocation:   cfg.TimeLocation,
		},
		log,
	)

	engine := router.New(cfg, pool, log, []apphttp.Module{
		ordersModule,
		executionModule,
		planningModule,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newLocker picks the planner-singleton lock backend from config.
func newLocker(cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger) (dlock.Locker, func()) {
	if cfg.LockBackend == config.LockBackendRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Info("using redis lock backend", "addr", cfg.RedisAddr)
		return dlock.NewRedisLocker(client, dlock.DefaultRedisTTL), func() {
			_ = client.Close()
		}
	}
	log.Info("using postgres lock backend")
	return dlock.NewPostgresLocker(pool), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
