package app

import (
	"context"
	"fmt"
	"log/slog"

	"pg-graphquery/internal/dbexec"
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

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, queryMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Debug("connecting to PostgreSQL",
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database_effective", a.effectiveDatabase),
		slog.Bool("dsn_present", a.dsnPresent),
		slog.String("schema", a.cfg.Database.Schema),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	configurePool(a.cfg, db)
	if err := waitForDatabase(ctx, a.cfg, a.logger, db); err != nil {
		return fmt.Errorf("failed to verify database connection: %w", err)
	}
	a.logger.Debug("connected to database",
		slog.String("database_effective", a.effectiveDatabase),
		slog.Int("pool_max_open", a.cfg.Database.Pool.MaxOpen),
		slog.Int("pool_min_idle", a.cfg.Database.Pool.MinIdle),
		slog.Duration("pool_acquire_timeout", a.cfg.Database.Pool.AcquireTimeout),
	)

	executor := dbexec.NewExecutor(dbexec.Config{
		DB:             db,
		AcquireTimeout: a.cfg.Database.Pool.AcquireTimeout,
		Role:           a.cfg.Database.Role,
	})
	readers := NewReaders(executor, ReaderOptionsFromConfig(a.cfg, queryMetrics))

	var diagnostics *diagnosticsServer
	if a.cfg.Observability.MetricsAddr != "" {
		diagnostics, err = startDiagnostics(a.cfg, a.logger, db, meterProvider != nil)
		if err != nil {
			return fmt.Errorf("failed to start diagnostics endpoint: %w", err)
		}
		cleanup.push("diagnostics endpoint", diagnostics.srv.Shutdown)
	}

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.queryMetrics = queryMetrics
	a.tracerProvider = tracerProvider
	a.db = db
	a.dbStatsReg = dbStatsReg
	a.executor = executor
	a.readers = readers
	if diagnostics != nil {
		a.diagnostics = diagnostics.srv
		a.diagnosticsAddr = diagnostics.addr
	}
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
