// Package dbexec runs compiled statements on dedicated pool connections.
// Every query acquires its own connection under the acquire timeout and
// releases it when the returned rows are closed.
package dbexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pg-graphquery/internal/logging"
	"pg-graphquery/internal/sqlutil"
)

// resetTimeout bounds RESET ROLE when a connection is released.
const resetTimeout = 5 * time.Second

// ErrAcquireTimeout is returned when no pooled connection became available
// within the acquire timeout.
var ErrAcquireTimeout = errors.New("timed out acquiring a database connection")

// Rows abstracts sql.Rows so the connection can be released on Close.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Querier runs a statement and streams its rows.
type Querier interface {
	Query(ctx context.Context, stmt sq.Sqlizer) (Rows, error)
}

// Config controls connection acquisition.
type Config struct {
	DB *sql.DB
	// AcquireTimeout bounds the wait for a pooled connection. Zero waits
	// until ctx is done.
	AcquireTimeout time.Duration
	// Role, when set, is assumed with SET ROLE for the lifetime of each
	// query and reset before the connection returns to the pool.
	Role string
}

// Executor implements Querier on top of a database/sql pool.
type Executor struct {
	db             *sql.DB
	acquireTimeout time.Duration
	role           string
}

// NewExecutor creates an executor for cfg.
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		db:             cfg.DB,
		acquireTimeout: cfg.AcquireTimeout,
		role:           cfg.Role,
	}
}

// Query acquires a connection and runs stmt on it. The connection is held
// until the returned rows are closed.
func (e *Executor) Query(ctx context.Context, stmt sq.Sqlizer) (Rows, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	release := func() {
		if e.role != "" {
			if err := resetRole(conn); err != nil {
				logging.FromContext(ctx).Warn("discarding connection after failed role reset",
					slog.String("role", e.role), slog.String("error", err.Error()))
			}
		}
		_ = conn.Close()
	}

	if e.role != "" {
		if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(e.role)); err != nil {
			release()
			return nil, fmt.Errorf("set role %s: %w", e.role, err)
		}
	}

	rows, err := sq.QueryContextWith(ctx, conn, stmt)
	if err != nil {
		release()
		return nil, err
	}
	return &connRows{Rows: rows, release: release}, nil
}

// resetRole restores the session role of conn. A connection whose role could
// not be reset is marked bad so the pool never hands it out again.
func resetRole(conn *sql.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()

	if _, err := conn.ExecContext(ctx, "RESET ROLE"); err != nil {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		return err
	}
	return nil
}

func (e *Executor) acquire(ctx context.Context) (*sql.Conn, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}

	acquireCtx := ctx
	if e.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, e.acquireTimeout)
		defer cancel()
	}

	conn, err := e.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, e.acquireTimeout)
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// connRows releases its connection exactly once, however iteration ends.
type connRows struct {
	*sql.Rows
	release func()
	once    sync.Once
}

func (r *connRows) Close() error {
	err := r.Rows.Close()
	r.once.Do(r.release)
	return err
}
