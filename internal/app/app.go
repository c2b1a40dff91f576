// Package app wires configuration, logging, metrics and the mapping layer
// into one runtime.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"relmap/internal/config"
	"relmap/internal/dbexec"
	"relmap/internal/logging"
	"relmap/internal/mapping"
	"relmap/internal/observability"
	"relmap/internal/sqlgen"
)

// App owns the runtime resources of the mapping layer.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	variables func() map[string]any

	meterProvider *observability.MeterProvider
	metrics       *observability.MappingMetrics
	db            *sql.DB
	mapping       *mapping.Context
	planner       *sqlgen.Planner

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// Option customizes an App.
type Option func(*App)

// WithVariables supplies expression variables. Table name expressions read
// them on every resolution; schema names are resolved once per entity. They
// take precedence over mapping.expression_variables.
func WithVariables(fn func() map[string]any) Option {
	return func(a *App) { a.variables = fn }
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// InitLogger builds the logger described by the configuration and installs it
// as the slog default. Records are mirrored to provider when it is non-nil.
func InitLogger(cfg *config.Config, provider *sdklog.LoggerProvider) *logging.Logger {
	logger := logging.NewLogger(logging.Config{
		Level:          cfg.Observability.Logging.Level,
		Format:         cfg.Observability.Logging.Format,
		LoggerProvider: provider,
	})
	slog.SetDefault(logger.Logger)
	return logger
}

// Mapping returns the mapping context. It is nil before Init.
func (a *App) Mapping() *mapping.Context {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.mapping
}

// Planner returns the SQL planner. It is nil before Init.
func (a *App) Planner() *sqlgen.Planner {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.planner
}

// DB returns the configured database pool, or nil when database.dsn is empty.
func (a *App) DB() *sql.DB {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.db
}

// Loader returns a loader running planner queries on the configured database.
func (a *App) Loader() (*sqlgen.Loader, error) {
	db := a.DB()
	if db == nil {
		return nil, fmt.Errorf("no database configured")
	}
	return a.NewLoader(dbexec.NewStandardExecutor(db))
}

// NewLoader returns a loader running planner queries on exec.
func (a *App) NewLoader(exec dbexec.QueryExecutor) (*sqlgen.Loader, error) {
	planner := a.Planner()
	if planner == nil {
		return nil, fmt.Errorf("app is not initialized")
	}
	return sqlgen.NewLoader(planner, exec, a.logger.WithComponent("sqlgen").Logger), nil
}

// MetricsHandler serves Prometheus metrics, or returns nil when metrics are disabled.
func (a *App) MetricsHandler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.meterProvider == nil {
		return nil
	}
	return otelhttp.NewHandler(a.meterProvider.Handler(), "metrics")
}

// expressionVariables merges configured variables with the dynamic provider.
func (a *App) expressionVariables() map[string]any {
	vars := a.cfg.Mapping.Variables()
	if a.variables != nil {
		maps.Copy(vars, a.variables())
	}
	return vars
}
