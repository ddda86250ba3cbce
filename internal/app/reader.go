package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pg-graphquery/internal/config"
	"pg-graphquery/internal/dbexec"
	"pg-graphquery/internal/knowledge"
	"pg-graphquery/internal/logging"
	"pg-graphquery/internal/observability"
	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
	"pg-graphquery/internal/request"
	"pg-graphquery/internal/store"
)

const tracerName = "pg-graphquery/app"

// Reader runs structural query documents against one record kind.
type Reader interface {
	Kind() string
	// Compile returns the statement doc would run. It never touches the
	// database. With count set it compiles the count statement.
	Compile(ctx context.Context, doc request.Document, count bool) (query.Statement, error)
	// Query streams the matching records to emit. For paginated documents it
	// returns the cursor continuing after the last record when the page was
	// full, and an empty string otherwise.
	Query(ctx context.Context, doc request.Document, emit func(record any) error) (string, error)
	Count(ctx context.Context, doc request.Document) (int64, error)
}

// ReaderOptions configure the readers built by NewReaders.
type ReaderOptions struct {
	Metrics *observability.QueryMetrics
	Schema  *query.SchemaReference
	// DefaultLimit applies to paginated documents that set no limit.
	DefaultLimit uint64
	// Timeout bounds a whole query including streaming. Zero disables it.
	Timeout time.Duration
	// Role is reported in logs and spans; the executor assumes it.
	Role string
	// Now binds the temporal axes of a document. Defaults to time.Now.
	Now func() time.Time
}

// ReaderOptionsFromConfig derives reader options from cfg.
func ReaderOptionsFromConfig(cfg *config.Config, metrics *observability.QueryMetrics) ReaderOptions {
	return ReaderOptions{
		Metrics:      metrics,
		Schema:       cfg.Database.SchemaReference(),
		DefaultLimit: cfg.Query.DefaultLimit,
		Timeout:      cfg.Query.Timeout,
		Role:         cfg.Database.Role,
	}
}

// NewReaders builds a reader for every record kind. querier may be nil when
// the readers are only used to compile.
func NewReaders(querier dbexec.Querier, opts ReaderOptions) map[string]Reader {
	storeOpts := store.Options{Metrics: opts.Metrics, Schema: opts.Schema}
	readers := []Reader{
		newReader(store.New(querier, ontology.DataTypeCodec{}, storeOpts), opts),
		newReader(store.New(querier, ontology.PropertyTypeCodec{}, storeOpts), opts),
		newReader(store.New(querier, ontology.EntityTypeCodec{}, storeOpts), opts),
		newReader(store.New(querier, knowledge.EntityCodec{}, storeOpts), opts),
	}
	out := make(map[string]Reader, len(readers))
	for _, r := range readers {
		out[r.Kind()] = r
	}
	return out
}

type reader[R, I any] struct {
	store        *store.Store[R, I]
	defaultLimit uint64
	timeout      time.Duration
	role         string
	metrics      *observability.QueryMetrics
	now          func() time.Time
}

func newReader[R, I any](s *store.Store[R, I], opts ReaderOptions) *reader[R, I] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &reader[R, I]{
		store:        s,
		defaultLimit: opts.DefaultLimit,
		timeout:      opts.Timeout,
		role:         opts.Role,
		metrics:      opts.Metrics,
		now:          now,
	}
}

func (r *reader[R, I]) Kind() string { return r.store.Codec().Kind() }

// prepared is a document resolved for this reader's record kind.
type prepared struct {
	query   request.Query
	sorting store.Sorting
	meta    request.Meta
}

func (r *reader[R, I]) prepare(ctx context.Context, doc request.Document) (prepared, error) {
	q, err := doc.Prepare(r.store.Codec().ParsePath, r.now())
	if err != nil {
		r.metrics.RecordError(ctx, r.Kind(), "structural")
		return prepared{}, err
	}
	if q.Paginated() && q.Limit == 0 {
		q.Limit = r.defaultLimit
	}

	var sorting store.Sorting
	if q.Paginated() {
		if len(q.Sorting) > 0 {
			paths := make([]store.SortingPath, len(q.Sorting))
			for i, level := range q.Sorting {
				paths[i] = store.SortingPath{Path: level.Path, Ordering: level.Ordering, Nulls: level.Nulls}
			}
			sorting = &store.CustomSorting{Paths: paths}
		} else {
			sorting = &store.VertexIDSorting{}
		}
		if q.Cursor != "" {
			if err := r.store.SetCursor(sorting, q.Cursor); err != nil {
				r.metrics.RecordError(ctx, r.Kind(), "structural")
				return prepared{}, err
			}
		}
	}

	meta := request.NewMeta(r.Kind(), doc, q)
	meta.Role = r.role
	return prepared{query: q, sorting: sorting, meta: meta}, nil
}

// begin opens the span and the deadline of one query. end must be called
// with the final error.
func (r *reader[R, I]) begin(ctx context.Context, name string, meta request.Meta) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc = func() {}
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	meta.QueryID = uuid.NewString()

	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(observability.QuerySpanAttributes(meta)...),
	)
	ctx = request.WithMeta(ctx, meta)
	logger := logging.FromContext(ctx).
		WithQueryID(meta.QueryID).
		WithFields(observability.QueryLogFields(ctx, meta)...)
	ctx = logging.WithLogger(ctx, logger)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
	}
}

func (r *reader[R, I]) Compile(ctx context.Context, doc request.Document, count bool) (query.Statement, error) {
	p, err := r.prepare(ctx, doc)
	if err != nil {
		return query.Statement{}, err
	}
	q := p.query
	if count {
		return r.store.CompileCount(ctx, q.Filter, &q.Axes, q.IncludeDrafts)
	}
	return r.store.Compile(ctx, q.Filter, &q.Axes, p.sorting, q.Limit, q.IncludeDrafts)
}

func (r *reader[R, I]) Query(ctx context.Context, doc request.Document, emit func(record any) error) (next string, err error) {
	p, err := r.prepare(ctx, doc)
	if err != nil {
		return "", err
	}
	ctx, end := r.begin(ctx, "graphquery.read "+r.Kind(), p.meta)
	defer func() { end(err) }()

	q := p.query
	if q.Depths.Traverses() {
		logging.FromContext(ctx).Debug("graph resolve depths are not traversed")
	}

	if !q.Paginated() {
		records, err := r.store.Read(ctx, q.Filter, &q.Axes, q.IncludeDrafts)
		if err != nil {
			return "", err
		}
		for record, err := range records {
			if err != nil {
				return "", err
			}
			if err := emit(record); err != nil {
				return "", err
			}
		}
		return "", nil
	}

	results, _, err := r.store.ReadPaginated(ctx, q.Filter, &q.Axes, p.sorting, q.Limit, q.IncludeDrafts)
	if err != nil {
		return "", err
	}
	var (
		rows uint64
		last store.QueryResult[R, I]
	)
	for result, err := range results {
		if err != nil {
			return "", err
		}
		record, err := result.DecodeRecord()
		if err != nil {
			return "", err
		}
		if err := emit(record); err != nil {
			return "", err
		}
		rows++
		last = result
	}
	if q.Limit == 0 || rows < q.Limit {
		return "", nil
	}
	return last.DecodeCursor()
}

func (r *reader[R, I]) Count(ctx context.Context, doc request.Document) (n int64, err error) {
	p, err := r.prepare(ctx, doc)
	if err != nil {
		return 0, err
	}
	p.meta.Count = true
	ctx, end := r.begin(ctx, "graphquery.count "+r.Kind(), p.meta)
	defer func() { end(err) }()

	q := p.query
	return r.store.Count(ctx, q.Filter, &q.Axes, q.IncludeDrafts)
}
