package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/guidebot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect waits for Postgres to accept connections, opens the pool and
// verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn := DSN(cfg)
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	start := time.Now()
	db, err := waitForPostgres(ctx, dsn, readyTimeout)
	took := logger.Took(start)
	if err != nil {
		logger.Error(ctx, logger.CompDB, "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}
	logger.Info(ctx, logger.CompDB, "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)...)
	return db, nil
}

// waitForPostgres retries until the server answers a ping, ctx ends or
// timeout elapses.
func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) (*sqlx.DB, error) {
	deadline := time.Now().Add(timeout)
	attempts := 0
	for {
		attempts++
		db, err := connectOnce(ctx, dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database not ready after %d attempts: %w", attempts, err)
		}
		logger.Debug(ctx, logger.CompDB, "db.wait",
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(readyInterval):
		}
	}
}

func connectOnce(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	// ConnectContext pings before returning.
	return sqlx.ConnectContext(cctx, "postgres", dsn)
}
