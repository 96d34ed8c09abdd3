// Package config loads application configuration from the environment.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LockBackend selects the distributed-lock implementation for the
// session-scoped planner singleton lock.
type LockBackend string

const (
	LockBackendPostgres LockBackend = "postgres"
	LockBackendRedis    LockBackend = "redis"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string

	// Solver is the external routing optimizer.
	SolverURL     string
	SolverTimeout time.Duration

	// Depot and driver shift used on every solver request.
	DepotLatitude  float64
	DepotLongitude float64
	ShiftStart     string
	ShiftEnd       string

	// Replanning worker knobs.
	ReplanDebounce  time.Duration
	ReplanMaxEvents int
	ReplanCron      string

	// TimeLocation anchors route dates; the operational day rolls over at
	// local midnight, not UTC midnight.
	TimeLocation *time.Location

	LockBackend LockBackend
	RedisAddr   string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SolverURL:       getEnv("SOLVER_URL", ""),
		SolverTimeout:   mustDuration(getEnv("SOLVER_TIMEOUT", "120s")),
		DepotLatitude:   mustFloat(getEnv("DEPOT_LAT", "0")),
		DepotLongitude:  mustFloat(getEnv("DEPOT_LNG", "0")),
		ShiftStart:      getEnv("SHIFT_START", "08:00"),
		ShiftEnd:        getEnv("SHIFT_END", "18:00"),
		ReplanDebounce:  mustDuration(getEnv("REPLAN_DEBOUNCE", "30s")),
		ReplanMaxEvents: mustInt(getEnv("REPLAN_MAX_EVENTS", "100")),
		ReplanCron:      getEnv("REPLAN_CRON", "*/10 * * * * *"),
		LockBackend:     LockBackend(getEnv("LOCK_BACKEND", "postgres")),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RateLimitRPS:    mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:  mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SolverURL == "" {
		return nil, fmt.Errorf("SOLVER_URL is required")
	}
	switch cfg.LockBackend {
	case LockBackendPostgres:
	case LockBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when LOCK_BACKEND is redis")
		}
	default:
		return nil, fmt.Errorf("LOCK_BACKEND must be postgres or redis")
	}
	if cfg.ReplanMaxEvents < 1 {
		return nil, fmt.Errorf("REPLAN_MAX_EVENTS must be positive")
	}

	loc, err := time.LoadLocation(getEnv("TIME_ZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("TIME_ZONE: %w", err)
	}
	cfg.TimeLocation = loc

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
