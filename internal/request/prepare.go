package request

import (
	"bytes"
	"fmt"
	"time"

	"pg-graphquery/internal/query"
	"pg-graphquery/internal/temporal"
)

// SortLevel is a sorting entry with its path resolved.
type SortLevel struct {
	Path     query.Path
	Ordering query.Ordering
	Nulls    query.NullOrdering
}

// Query is a document prepared for one record kind.
type Query struct {
	Filter        query.Filter
	Axes          temporal.Axes
	IncludeDrafts bool
	// Limit is zero when the read is not limited.
	Limit   uint64
	Cursor  string
	Sorting []SortLevel
	Depths  GraphResolveDepths
}

// Paginated reports whether the read needs a keyset ordering.
func (q Query) Paginated() bool {
	return q.Limit > 0 || q.Cursor != "" || len(q.Sorting) > 0
}

// Prepare resolves the paths of d with parse and binds its temporal axes to
// now. A missing filter matches every record.
func (d Document) Prepare(parse query.PathParser, now time.Time) (Query, error) {
	q := Query{
		IncludeDrafts: d.IncludeDrafts,
		Cursor:        d.Cursor,
	}
	if d.Limit != nil {
		if *d.Limit == 0 {
			return Query{}, fmt.Errorf("%w: limit must be positive", ErrInvalidDocument)
		}
		q.Limit = *d.Limit
	}
	if d.GraphResolveDepths != nil {
		q.Depths = *d.GraphResolveDepths
	}

	filter := query.AllOf()
	if raw := bytes.TrimSpace(d.Filter); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var err error
		if filter, err = query.DecodeFilter(raw, parse); err != nil {
			return Query{}, err
		}
	}
	q.Filter = filter

	unresolved := temporal.DefaultUnresolved()
	if d.TemporalAxes != nil {
		unresolved = *d.TemporalAxes
	}
	axes, err := unresolved.Resolve(now)
	if err != nil {
		return Query{}, err
	}
	q.Axes = axes

	for i, entry := range d.Sorting {
		level, err := entry.resolve(parse)
		if err != nil {
			return Query{}, fmt.Errorf("sorting[%d]: %w", i, err)
		}
		q.Sorting = append(q.Sorting, level)
	}
	return q, nil
}

func (e SortingEntry) resolve(parse query.PathParser) (SortLevel, error) {
	switch e.Ordering {
	case query.Ascending, query.Descending:
	default:
		return SortLevel{}, fmt.Errorf("%w: unknown ordering %q", query.ErrInvalidSorting, e.Ordering)
	}
	switch e.Nulls {
	case query.NullsDefault, query.NullsFirst, query.NullsLast:
	default:
		return SortLevel{}, fmt.Errorf("%w: unknown null ordering %q", query.ErrInvalidSorting, e.Nulls)
	}
	if len(e.Path) == 0 {
		return SortLevel{}, fmt.Errorf("%w: empty sorting path", query.ErrInvalidSorting)
	}
	path, err := parse(e.Path)
	if err != nil {
		return SortLevel{}, err
	}
	return SortLevel{Path: path, Ordering: e.Ordering, Nulls: e.Nulls}, nil
}
