package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QueryMetrics records compiler and store activity. A nil *QueryMetrics is
// valid and records nothing.
type QueryMetrics struct {
	compileDuration metric.Float64Histogram
	executeDuration metric.Float64Histogram
	rowsDecoded     metric.Int64Histogram
	queryCounter    metric.Int64Counter
	errorCounter    metric.Int64Counter
	acquireTimeouts metric.Int64Counter
	activeStreams   metric.Int64UpDownCounter
}

// NewQueryMetrics creates the query instruments on the global meter provider.
func NewQueryMetrics() (*QueryMetrics, error) {
	meter := otel.Meter("pg-graphquery")

	compileDuration, err := meter.Float64Histogram(
		"graphquery.compile.duration",
		metric.WithDescription("Time spent compiling a filter into SQL"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}

	executeDuration, err := meter.Float64Histogram(
		"graphquery.execute.duration",
		metric.WithDescription("Time from statement dispatch until the result stream is drained"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execute duration histogram: %w", err)
	}

	rowsDecoded, err := meter.Int64Histogram(
		"graphquery.rows.decoded",
		metric.WithDescription("Number of rows decoded per query"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows histogram: %w", err)
	}

	queryCounter, err := meter.Int64Counter(
		"graphquery.queries.total",
		metric.WithDescription("Total number of executed queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphquery.errors.total",
		metric.WithDescription("Total number of failed queries by error family"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	acquireTimeouts, err := meter.Int64Counter(
		"graphquery.pool.acquire_timeouts",
		metric.WithDescription("Connection acquisitions that exceeded the acquire timeout"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acquire timeout counter: %w", err)
	}

	activeStreams, err := meter.Int64UpDownCounter(
		"graphquery.streams.active",
		metric.WithDescription("Result streams currently holding a connection"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active streams counter: %w", err)
	}

	return &QueryMetrics{
		compileDuration: compileDuration,
		executeDuration: executeDuration,
		rowsDecoded:     rowsDecoded,
		queryCounter:    queryCounter,
		errorCounter:    errorCounter,
		acquireTimeouts: acquireTimeouts,
		activeStreams:   activeStreams,
	}, nil
}

// RecordCompile records how long compiling a statement for record took.
func (m *QueryMetrics) RecordCompile(ctx context.Context, record string, d time.Duration) {
	if m == nil {
		return
	}
	m.compileDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("record", record),
	))
}

// RecordExecute records a finished result stream.
func (m *QueryMetrics) RecordExecute(ctx context.Context, record string, d time.Duration, rows int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("record", record))
	m.executeDuration.Record(ctx, float64(d.Milliseconds()), attrs)
	m.rowsDecoded.Record(ctx, rows, attrs)
	m.queryCounter.Add(ctx, 1, attrs)
}

// RecordError counts a failure; family is structural, execution or not_found.
func (m *QueryMetrics) RecordError(ctx context.Context, record, family string) {
	if m == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("record", record),
		attribute.String("family", family),
	))
}

// RecordAcquireTimeout counts a pool checkout that timed out.
func (m *QueryMetrics) RecordAcquireTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.acquireTimeouts.Add(ctx, 1)
}

// StreamOpened marks a result stream as holding a connection.
func (m *QueryMetrics) StreamOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeStreams.Add(ctx, 1)
}

// StreamClosed releases the mark set by StreamOpened.
func (m *QueryMetrics) StreamClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeStreams.Add(ctx, -1)
}
