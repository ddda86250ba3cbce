// Package app owns the runtime resources behind the graphquery commands:
// telemetry providers, the instrumented connection pool and the readers
// that run structural queries for each record kind.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"pg-graphquery/internal/config"
	"pg-graphquery/internal/dbexec"
	"pg-graphquery/internal/logging"
	"pg-graphquery/internal/observability"
)

// App owns runtime resources for one graphquery process.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	effectiveDatabase string
	dsnPresent        bool

	meterProvider  *observability.MeterProvider
	queryMetrics   *observability.QueryMetrics
	tracerProvider *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
	executor   *dbexec.Executor
	readers    map[string]Reader

	diagnostics     *http.Server
	diagnosticsAddr net.Addr

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	effectiveDatabase, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
	}

	return &App{
		cfg:               cfg,
		logger:            logger,
		effectiveDatabase: effectiveDatabase,
		dsnPresent:        strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Reader returns the reader for a record kind. Init must have completed.
func (a *App) Reader(kind string) (Reader, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	return LookupReader(a.readers, kind)
}

// Ping checks that the database answers.
func (a *App) Ping(ctx context.Context) error {
	a.stateMu.Lock()
	db := a.db
	a.stateMu.Unlock()
	if db == nil {
		return fmt.Errorf("app is not initialized")
	}
	return db.PingContext(ctx)
}

// DiagnosticsAddr returns the address of the /health and /metrics listener,
// or nil when it is disabled.
func (a *App) DiagnosticsAddr() net.Addr {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.diagnosticsAddr
}

// LookupReader returns the reader of kind from readers.
func LookupReader(readers map[string]Reader, kind string) (Reader, error) {
	if r, ok := readers[kind]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("unknown record kind %q (want one of %s)", kind, strings.Join(Kinds(readers), ", "))
}

// Kinds lists the record kinds of readers in order.
func Kinds(readers map[string]Reader) []string {
	kinds := make([]string, 0, len(readers))
	for kind := range readers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
