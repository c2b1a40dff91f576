package sqlgen

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"relmap/internal/dbexec"
	"relmap/internal/mapping"
	"relmap/internal/observability"
)

const tracerName = "relmap/sqlgen"

// Row holds one loaded row keyed by SQLQuery.Keys.
type Row map[string]any

// Loader runs planned queries and scans their rows.
type Loader struct {
	planner *Planner
	exec    dbexec.QueryExecutor
	logger  *slog.Logger
}

// NewLoader creates a loader executing planner queries on exec.
func NewLoader(planner *Planner, exec dbexec.QueryExecutor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{planner: planner, exec: exec, logger: logger}
}

// LoadRoot loads the aggregate root row with the given id. It returns false
// when no row matches.
func (l *Loader) LoadRoot(ctx context.Context, root *mapping.AggregatePath, id any) (Row, bool, error) {
	query, err := l.planner.SelectRoot(root, id)
	if err != nil {
		return nil, false, err
	}
	rows, err := l.run(ctx, root, query)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	if len(rows) > 1 {
		return nil, false, fmt.Errorf("%s: expected one row for id %v, got %d", root, id, len(rows))
	}
	return rows[0], true, nil
}

// LoadPath loads the rows of an entity-valued path referencing parentID.
func (l *Loader) LoadPath(ctx context.Context, path *mapping.AggregatePath, parentID any) ([]Row, error) {
	query, err := l.planner.SelectPath(path, parentID)
	if err != nil {
		return nil, err
	}
	return l.run(ctx, path, query)
}

func (l *Loader) run(ctx context.Context, path *mapping.AggregatePath, query SQLQuery) (result []Row, err error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "sqlgen.load",
		attribute.String("path", path.String()),
	)
	defer func() {
		observability.RecordSpanError(span, err)
		span.End()
	}()

	l.logger.Debug("loading aggregate rows",
		slog.String("path", path.String()),
		slog.String("sql", query.SQL),
	)

	rows, err := l.exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(query.Keys))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		row := make(Row, len(values))
		for i, key := range query.Keys {
			row[key] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	span.SetAttributes(attribute.Int("rows", len(result)))
	return result, nil
}
