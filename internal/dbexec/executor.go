// Package dbexec provides database query execution abstractions for the
// statements built by sqlgen.
package dbexec

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"

	"relmap/internal/observability"
)

const tracerName = "relmap/dbexec"

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can run against a pool,
// a transaction or a test double.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StandardExecutor executes queries directly against a database handle and
// records a client span per statement.
type StandardExecutor struct {
	db Queryer
}

// NewStandardExecutor creates an executor that runs queries on db.
func NewStandardExecutor(db Queryer) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "db.query",
		attribute.String("db.statement", query),
		attribute.Int("db.args", len(args)),
	)
	defer span.End()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, err
	}
	return rows, nil
}
