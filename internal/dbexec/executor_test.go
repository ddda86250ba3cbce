package dbexec

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-graphquery/internal/logging"
)

func TestExecutorQueryReleasesConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "uuid" FROM "entities" WHERE "web_id" = $1`)).
		WithArgs("web").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("a").AddRow("b"))

	exec := NewExecutor(Config{DB: db, AcquireTimeout: time.Second})
	rows, err := exec.Query(context.Background(), sq.Expr(`SELECT "uuid" FROM "entities" WHERE "web_id" = $1`, "web"))
	require.NoError(t, err)

	var got []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close())

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, db.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorQueryErrorReleasesConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("relation does not exist")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	exec := NewExecutor(Config{DB: db})
	_, err = exec.Query(context.Background(), sq.Expr("SELECT 1"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestExecutorAcquireTimeout(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	held, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	exec := NewExecutor(Config{DB: db, AcquireTimeout: 20 * time.Millisecond})
	_, err = exec.Query(context.Background(), sq.Expr("SELECT 1"))
	assert.ErrorIs(t, err, ErrAcquireTimeout)
}

func TestExecutorCanceledContextIsNotATimeout(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	held, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := NewExecutor(Config{DB: db, AcquireTimeout: time.Second})
	_, err = exec.Query(ctx, sq.Expr("SELECT 1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAcquireTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutorRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`SET ROLE "graph_reader"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("RESET ROLE")).WillReturnResult(sqlmock.NewResult(0, 0))

	exec := NewExecutor(Config{DB: db, Role: "graph_reader"})
	rows, err := exec.Query(context.Background(), sq.Expr("SELECT 1"))
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorRoleFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("SET ROLE").WillReturnError(errors.New(`role "nobody" does not exist`))
	mock.ExpectExec("RESET ROLE").WillReturnResult(sqlmock.NewResult(0, 0))

	exec := NewExecutor(Config{DB: db, Role: "nobody"})
	_, err = exec.Query(context.Background(), sq.Expr("SELECT 1"))
	assert.ErrorContains(t, err, "set role nobody")
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestExecutorDiscardsConnectionWhenRoleResetFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	mock.ExpectExec(regexp.QuoteMeta(`SET ROLE "graph_reader"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("RESET ROLE")).WillReturnError(errors.New("server closed the connection unexpectedly"))
	mock.ExpectClose()

	var buf bytes.Buffer
	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	ctx := logging.WithLogger(context.Background(), logger)

	exec := NewExecutor(Config{DB: db, Role: "graph_reader"})
	rows, err := exec.Query(ctx, sq.Expr("SELECT 1"))
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	stats := db.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 0, stats.Idle, "a connection still holding the role must not return to the pool")
	assert.Equal(t, 0, stats.OpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "discarding connection after failed role reset")
	assert.Contains(t, buf.String(), "role=graph_reader")
}

func TestExecutorWithoutDB(t *testing.T) {
	_, err := NewExecutor(Config{}).Query(context.Background(), sq.Expr("SELECT 1"))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
