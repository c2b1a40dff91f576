package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"relmap/internal/config"
	"relmap/internal/expression"
	"relmap/internal/logging"
	"relmap/internal/mapping"
	"relmap/internal/naming"
	"relmap/internal/observability"
	"relmap/internal/sqlgen"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	if result := a.cfg.Validate(); result.HasErrors() {
		return fmt.Errorf("invalid configuration: %s", result.Error())
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	meterProvider, metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	var db *sql.DB
	if a.cfg.Database.Enabled() {
		var statsReg interface{ Unregister() error }
		db, statsReg, err = connectDB(a.cfg.Database, meterProvider, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		cleanup.push("database", func(context.Context) error {
			return db.Close()
		})
		if statsReg != nil {
			cleanup.push("database stats metrics", func(context.Context) error {
				return statsReg.Unregister()
			})
		}
		if err := configureDatabase(ctx, a.cfg.Database, a.logger, db); err != nil {
			return err
		}
	}

	processing, err := a.cfg.Mapping.Processing()
	if err != nil {
		return err
	}
	placeholder, err := sqlgen.ParsePlaceholder(a.cfg.Mapping.Placeholder)
	if err != nil {
		return err
	}

	mappingLogger := a.logger.WithComponent("mapping").Logger
	mappingCtx := mapping.NewContext(mapping.Config{
		NamingStrategy: naming.New(a.cfg.Naming, mappingLogger),
		Evaluator:      expression.NewCELEvaluator(mappingLogger),
		Variables:      a.expressionVariables,
		ForceQuote:     a.cfg.Mapping.ForceQuote,
		Logger:         mappingLogger,
		Metrics:        metrics,
	})
	planner := sqlgen.NewPlanner(processing, placeholder)

	a.logger.InfoContext(ctx, "mapping context initialized",
		slog.String("dialect", a.cfg.Mapping.Dialect),
		slog.String("placeholder", a.cfg.Mapping.Placeholder),
		slog.Bool("force_quote", a.cfg.Mapping.ForceQuote),
		slog.String("default_schema", a.cfg.Naming.Schema),
		slog.Bool("database", db != nil),
	)

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.metrics = metrics
	a.db = db
	a.mapping = mappingCtx
	a.planner = planner
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.MappingMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
	})
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.NewMappingMetrics(meterProvider.Provider())
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized successfully")
	return meterProvider, metrics, nil
}
