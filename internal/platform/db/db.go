// Package db opens the shared Postgres connection pool.
package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/fiction-portal/internal/platform/config"
)

// Open opens a pgxpool from DATABASE_URL and verifies it with a ping.
// Pool sizing is env-tunable (DB_MAX_CONNS, DB_MIN_CONNS, DB_CONN_MAX_IDLE,
// DB_HEALTHCHECK_PERIOD).
func Open(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := parseConfig(os.Getenv("DATABASE_URL"))
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func parseConfig(dsn string) (*pgxpool.Config, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = int32(config.EnvInt("DB_MAX_CONNS", 10))
	cfg.MinConns = int32(config.EnvInt("DB_MIN_CONNS", 1))
	cfg.MaxConnIdleTime = config.EnvDuration("DB_CONN_MAX_IDLE", 5*time.Minute)
	cfg.HealthCheckPeriod = config.EnvDuration("DB_HEALTHCHECK_PERIOD", 30*time.Second)
	return cfg, nil
}
