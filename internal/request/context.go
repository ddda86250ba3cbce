package request

import "context"

type metaContextKey struct{}

// Meta describes the query being executed for logs and spans.
type Meta struct {
	Record      string
	Fingerprint string
	// QueryID identifies one execution; it is empty for compile-only use.
	QueryID     string
	Role        string

	Paginated  bool
	SortLevels int
	Limit      uint64
	HasCursor  bool
	Count      bool
}

// NewMeta builds the metadata of q read as record.
func NewMeta(record string, doc Document, q Query) Meta {
	return Meta{
		Record:      record,
		Fingerprint: doc.Fingerprint(),
		Paginated:   q.Paginated(),
		SortLevels:  len(q.Sorting),
		Limit:       q.Limit,
		HasCursor:   q.Cursor != "",
	}
}

// WithMeta stores query metadata in context.
func WithMeta(ctx context.Context, meta Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext retrieves query metadata from context.
func MetaFromContext(ctx context.Context) (Meta, bool) {
	if ctx == nil {
		return Meta{}, false
	}
	meta, ok := ctx.Value(metaContextKey{}).(Meta)
	return meta, ok
}
