package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pg-graphquery/internal/request"
)

// QuerySpanAttributes builds span attributes describing a structural query.
func QuerySpanAttributes(meta request.Meta) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)

	if meta.Record != "" {
		attrs = append(attrs, attribute.String("graphquery.record", meta.Record))
	}
	if meta.Fingerprint != "" {
		attrs = append(attrs, attribute.String("graphquery.fingerprint", meta.Fingerprint))
	}
	if meta.QueryID != "" {
		attrs = append(attrs, attribute.String("graphquery.query_id", meta.QueryID))
	}
	if meta.Count {
		attrs = append(attrs, attribute.Bool("graphquery.count", true))
	}
	if meta.Paginated {
		attrs = append(attrs,
			attribute.Bool("graphquery.paginated", true),
			attribute.Int("graphquery.sorting.levels", meta.SortLevels),
			attribute.Bool("graphquery.cursor", meta.HasCursor),
		)
		if meta.Limit > 0 {
			attrs = append(attrs, attribute.Int64("graphquery.limit", int64(meta.Limit)))
		}
	}
	if meta.Role != "" {
		attrs = append(attrs, attribute.String("db.role", meta.Role))
	}

	return attrs
}

// QueryLogFields builds structured log fields describing a structural query.
func QueryLogFields(ctx context.Context, meta request.Meta) []any {
	fields := make([]any, 0, 6)

	if meta.Record != "" {
		fields = append(fields, slog.String("record", meta.Record))
	}
	if meta.Fingerprint != "" {
		fields = append(fields, slog.String("fingerprint", meta.Fingerprint))
	}
	if meta.Paginated {
		fields = append(fields, slog.Uint64("limit", meta.Limit), slog.Bool("cursor", meta.HasCursor))
	}
	if meta.Role != "" {
		fields = append(fields, slog.String("role", meta.Role))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}

	return fields
}
