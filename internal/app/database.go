package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"relmap/internal/config"
	"relmap/internal/logging"
	"relmap/internal/observability"
)

const (
	initialRetryInterval = 250 * time.Millisecond
	maxRetryInterval     = 5 * time.Second
)

// connectDB opens an instrumented MySQL pool. Connection statistics are
// exported through meterProvider when it is non-nil.
func connectDB(cfg config.DatabaseConfig, meterProvider *observability.MeterProvider, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	db, err := otelsql.Open("mysql", cfg.DSN,
		otelsql.WithAttributes(semconv.DBSystemMySQL),
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	)
	if err != nil {
		return nil, nil, err
	}

	if meterProvider == nil {
		return db, nil, nil
	}

	reg, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemMySQL),
		otelsql.WithMeterProvider(meterProvider.Provider()),
	)
	if err != nil {
		logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		return db, nil, nil
	}
	return db, reg, nil
}

func configureDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger, db *sql.DB) error {
	db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg.ConnectionTimeout, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.Int("pool_max_open", cfg.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", cfg.Pool.MaxLifetime),
	)
	return nil
}

// waitForDatabase pings db until it answers or timeout elapses, backing off
// exponentially between attempts.
func waitForDatabase(ctx context.Context, timeout time.Duration, logger *logging.Logger, db *sql.DB) error {
	deadline := time.Now().Add(timeout)
	interval := initialRetryInterval
	attempt := 0

	for {
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxRetryInterval)
	}
}
