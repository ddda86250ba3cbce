// Package store reads records through compiled statements. A Store pairs a
// Codec, which knows how to select and decode one record kind, with a
// dbexec.Querier. Statements are compiled eagerly so that invalid requests
// fail before any connection is taken; execution starts when the returned
// sequence is first iterated, and the connection is released when
// iteration ends for any reason.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	sq "github.com/Masterminds/squirrel"

	"pg-graphquery/internal/cursor"
	"pg-graphquery/internal/dbexec"
	"pg-graphquery/internal/logging"
	"pg-graphquery/internal/observability"
	"pg-graphquery/internal/query"
	"pg-graphquery/internal/sqltype"
	"pg-graphquery/internal/temporal"
)

// Codec selects and decodes records of one kind. I holds the positions of
// the selected columns.
type Codec[R, I any] interface {
	Kind() string
	BaseTable() query.Table
	ParsePath(tokens []query.PathToken) (query.Path, error)
	Select(c *query.SelectCompiler) (I, error)
	Decode(row []any, idx I) (R, error)
	VertexSortKeys() []query.SortKey
}

// Options configure a Store.
type Options struct {
	Metrics *observability.QueryMetrics
	Schema  *query.SchemaReference
}

// Store reads records of kind R.
type Store[R, I any] struct {
	querier dbexec.Querier
	codec   Codec[R, I]
	metrics *observability.QueryMetrics
	schema  *query.SchemaReference
}

// New creates a store reading through querier.
func New[R, I any](querier dbexec.Querier, codec Codec[R, I], opts Options) *Store[R, I] {
	return &Store[R, I]{
		querier: querier,
		codec:   codec,
		metrics: opts.Metrics,
		schema:  opts.Schema,
	}
}

// Codec returns the codec of the store.
func (s *Store[R, I]) Codec() Codec[R, I] { return s.codec }

type compiled[I any] struct {
	stmt          query.Statement
	indices       I
	keys          []query.SortKey
	cursorIndices []int
}

// compile builds the statement for a read. Parameters of filter are
// converted in place.
func (s *Store[R, I]) compile(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool, sorting Sorting, limit *uint64) (compiled[I], error) {
	start := time.Now()
	var out compiled[I]

	if err := filter.ConvertParameters(); err != nil {
		return out, err
	}

	var opts []query.CompilerOption
	if s.schema != nil {
		opts = append(opts, query.WithSchema(*s.schema))
	}
	compiler := query.NewSelectCompiler(s.codec.BaseTable(), axes, includeDrafts, opts...)

	if sorting != nil {
		keys := sorting.Keys(s.codec.VertexSortKeys())
		indices, err := addSortKeys(compiler, keys, sorting.Cursor())
		if err != nil {
			return out, err
		}
		out.keys = keys
		out.cursorIndices = indices
	}

	indices, err := s.codec.Select(compiler)
	if err != nil {
		return out, err
	}
	out.indices = indices

	if limit != nil {
		compiler.SetLimit(*limit)
	}
	if err := compiler.AddFilter(filter); err != nil {
		return out, err
	}

	if out.stmt, err = compiler.Compile(); err != nil {
		return out, err
	}
	s.metrics.RecordCompile(ctx, s.codec.Kind(), time.Since(start))
	logging.FromContext(ctx).Debug("compiled query",
		"record", s.codec.Kind(),
		"sql", out.stmt.SQL,
		"parameters", len(out.stmt.Args),
	)
	return out, nil
}

// addSortKeys selects every sort key. With a cursor each key also adds its
// level to the keyset predicate.
func addSortKeys(compiler *query.SelectCompiler, keys []query.SortKey, values []any) ([]int, error) {
	if values != nil && len(values) != len(keys) {
		return nil, fmt.Errorf("%w: cursor has %d values for %d sort keys", query.ErrInvalidSorting, len(values), len(keys))
	}

	indices := make([]int, len(keys))
	for i, key := range keys {
		var (
			index int
			err   error
		)
		if values == nil {
			index, err = compiler.AddDistinctSelectionWithOrdering(key.Path, query.Distinct, &query.Order{Ordering: key.Ordering, Nulls: key.Nulls})
		} else {
			var value query.Expression
			parameter, perr := key.CursorParameter(values[i])
			if perr != nil {
				return nil, perr
			}
			if parameter != nil {
				value, _ = compiler.CompileParameter(parameter)
			}
			index, err = compiler.AddCursorSelection(key.Path, key.Project, value, key.Ordering, key.Nulls)
		}
		if err != nil {
			return nil, fmt.Errorf("sort key %s: %w", key.Path, err)
		}
		indices[i] = index
	}
	return indices, nil
}

// rows runs stmt when the sequence is iterated and yields the raw rows.
func (s *Store[R, I]) rows(ctx context.Context, stmt sq.Sqlizer) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		start := time.Now()
		rows, err := s.querier.Query(ctx, stmt)
		if err != nil {
			if errors.Is(err, dbexec.ErrAcquireTimeout) {
				s.metrics.RecordAcquireTimeout(ctx)
			}
			yield(nil, s.fail(ctx, fmt.Errorf("%w: %w", ErrQuery, err)))
			return
		}

		var count int64
		s.metrics.StreamOpened(ctx)
		defer func() {
			_ = rows.Close()
			s.metrics.StreamClosed(ctx)
			s.metrics.RecordExecute(ctx, s.codec.Kind(), time.Since(start), count)
		}()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, s.fail(ctx, fmt.Errorf("%w: %w", ErrQuery, err)))
			return
		}
		for rows.Next() {
			values := make([]any, len(columns))
			pointers := make([]any, len(columns))
			for i := range values {
				pointers[i] = &values[i]
			}
			if err := rows.Scan(pointers...); err != nil {
				yield(nil, s.fail(ctx, fmt.Errorf("%w: scan: %w", ErrQuery, err)))
				return
			}
			count++
			if !yield(values, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, s.fail(ctx, fmt.Errorf("%w: %w", ErrQuery, err)))
		}
	}
}

func (s *Store[R, I]) fail(ctx context.Context, err error) error {
	s.metrics.RecordError(ctx, s.codec.Kind(), errorFamily(err))
	if errors.Is(err, ErrQuery) || errors.Is(err, ErrDecode) {
		logging.FromContext(ctx).Error("query failed", "record", s.codec.Kind(), "error", err)
	}
	return err
}

func (s *Store[R, I]) decode(row []any, indices I) (R, error) {
	record, err := s.codec.Decode(row, indices)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("%w: %s: %w", ErrDecode, s.codec.Kind(), err)
	}
	return record, nil
}

// Read streams every record matching filter. Compilation errors are
// returned directly; execution and decoding errors end the sequence.
func (s *Store[R, I]) Read(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool) (iter.Seq2[R, error], error) {
	c, err := s.compile(ctx, filter, axes, includeDrafts, nil, nil)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	return func(yield func(R, error) bool) {
		for row, err := range s.rows(ctx, c.stmt) {
			if err != nil {
				var zero R
				yield(zero, err)
				return
			}
			record, err := s.decode(row, c.indices)
			if err != nil {
				yield(record, s.fail(ctx, err))
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}, nil
}

// ReadVec collects every record matching filter.
func (s *Store[R, I]) ReadVec(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool) ([]R, error) {
	records, err := s.Read(ctx, filter, axes, includeDrafts)
	if err != nil {
		return nil, err
	}
	var out []R
	for record, err := range records {
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// ReadOne returns the only record matching filter.
func (s *Store[R, I]) ReadOne(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool) (R, error) {
	var (
		found R
		n     int
		zero  R
	)
	records, err := s.Read(ctx, filter, axes, includeDrafts)
	if err != nil {
		return zero, err
	}
	for record, err := range records {
		if err != nil {
			return zero, err
		}
		n++
		if n > 1 {
			return zero, s.fail(ctx, fmt.Errorf("%w: %s matching %s", ErrNotUnique, s.codec.Kind(), filter))
		}
		found = record
	}
	if n == 0 {
		return zero, s.fail(ctx, fmt.Errorf("%w: %s matching %s", ErrNotFound, s.codec.Kind(), filter))
	}
	return found, nil
}

// ReadPaginated streams up to limit records in the order given by sorting,
// continuing after its cursor. A zero limit reads every remaining record.
// The returned indices locate the record columns in QueryResult rows.
func (s *Store[R, I]) ReadPaginated(ctx context.Context, filter query.Filter, axes *temporal.Axes, sorting Sorting, limit uint64, includeDrafts bool) (iter.Seq2[QueryResult[R, I], error], I, error) {
	var limitPtr *uint64
	if limit > 0 {
		limitPtr = &limit
	}
	if sorting == nil {
		sorting = &VertexIDSorting{}
	}

	c, err := s.compile(ctx, filter, axes, includeDrafts, sorting, limitPtr)
	if err != nil {
		var zero I
		return nil, zero, s.fail(ctx, err)
	}

	sig := signature(c.keys)
	return func(yield func(QueryResult[R, I], error) bool) {
		for row, err := range s.rows(ctx, c.stmt) {
			if err != nil {
				yield(QueryResult[R, I]{}, err)
				return
			}
			result := QueryResult[R, I]{
				row:           row,
				indices:       c.indices,
				store:         s,
				signature:     sig,
				keys:          c.keys,
				cursorIndices: c.cursorIndices,
			}
			if !yield(result, nil) {
				return
			}
		}
	}, c.indices, nil
}

// SetCursor decodes token and positions sorting after the record it was
// produced for.
func (s *Store[R, I]) SetCursor(sorting Sorting, token string) error {
	decoded, err := cursor.Decode(token)
	if err != nil {
		return err
	}
	keys := sorting.Keys(s.codec.VertexSortKeys())
	if err := decoded.Validate(s.codec.Kind(), signature(keys), len(keys)); err != nil {
		return err
	}
	sorting.SetCursor(decoded.Values)
	return nil
}

// Count returns the number of records matching filter.
func (s *Store[R, I]) Count(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool) (int64, error) {
	count, err := s.CompileCount(ctx, filter, axes, includeDrafts)
	if err != nil {
		return 0, err
	}

	for row, err := range s.rows(ctx, count) {
		if err != nil {
			return 0, err
		}
		n, err := sqltype.Int64(row[0])
		if err != nil {
			return 0, s.fail(ctx, fmt.Errorf("%w: count: %w", ErrDecode, err))
		}
		return n, nil
	}
	return 0, s.fail(ctx, fmt.Errorf("%w: count returned no rows", ErrQuery))
}

// CompileCount returns the statement Count runs, without running it.
func (s *Store[R, I]) CompileCount(ctx context.Context, filter query.Filter, axes *temporal.Axes, includeDrafts bool) (query.Statement, error) {
	if err := filter.ConvertParameters(); err != nil {
		return query.Statement{}, s.fail(ctx, err)
	}

	var opts []query.CompilerOption
	if s.schema != nil {
		opts = append(opts, query.WithSchema(*s.schema))
	}
	compiler := query.NewSelectCompiler(s.codec.BaseTable(), axes, includeDrafts, opts...)
	for _, key := range s.codec.VertexSortKeys() {
		if _, err := compiler.AddDistinctSelectionWithOrdering(key.Path, query.Distinct, nil); err != nil {
			return query.Statement{}, s.fail(ctx, fmt.Errorf("sort key %s: %w", key.Path, err))
		}
	}
	if err := compiler.AddFilter(filter); err != nil {
		return query.Statement{}, s.fail(ctx, err)
	}
	stmt, err := compiler.Compile()
	if err != nil {
		return query.Statement{}, s.fail(ctx, err)
	}

	sql, args, err := sq.Expr(`SELECT COUNT(*) FROM (?) AS "records"`, stmt).ToSql()
	if err != nil {
		return query.Statement{}, s.fail(ctx, err)
	}
	return query.Statement{SQL: sql, Args: args}, nil
}

// Compile returns the statement a read would run, without running it. A nil
// sorting with a zero limit compiles a plain Read; anything else compiles
// the ReadPaginated statement.
func (s *Store[R, I]) Compile(ctx context.Context, filter query.Filter, axes *temporal.Axes, sorting Sorting, limit uint64, includeDrafts bool) (query.Statement, error) {
	var limitPtr *uint64
	if limit > 0 {
		limitPtr = &limit
		if sorting == nil {
			sorting = &VertexIDSorting{}
		}
	}
	c, err := s.compile(ctx, filter, axes, includeDrafts, sorting, limitPtr)
	if err != nil {
		return query.Statement{}, s.fail(ctx, err)
	}
	return c.stmt, nil
}
