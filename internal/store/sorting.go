package store

import (
	"strings"

	"pg-graphquery/internal/query"
)

// Sorting orders the records of a paginated read and carries the cursor to
// continue after.
type Sorting interface {
	// Keys returns the sort keys in order, given the keys identifying a
	// record of the kind being read.
	Keys(vertex []query.SortKey) []query.SortKey
	Cursor() []any
	SetCursor(values []any)
}

// VertexIDSorting orders records by their natural identifier.
type VertexIDSorting struct {
	cursor []any
}

func (s *VertexIDSorting) Keys(vertex []query.SortKey) []query.SortKey { return vertex }
func (s *VertexIDSorting) Cursor() []any { return s.cursor }
func (s *VertexIDSorting) SetCursor(values []any) { s.cursor = values }

// SortingPath is one caller supplied sort level.
type SortingPath struct {
	Path     query.Path
	Ordering query.Ordering
	Nulls    query.NullOrdering
}

// CustomSorting orders records by caller supplied paths. The natural
// identifier follows as a tie-break so the order is total.
type CustomSorting struct {
	Paths  []SortingPath
	cursor []any
}

func (s *CustomSorting) Keys(vertex []query.SortKey) []query.SortKey {
	keys := make([]query.SortKey, 0, len(s.Paths)+len(vertex))
	seen := make(map[string]struct{}, len(s.Paths))
	for _, p := range s.Paths {
		keys = append(keys, query.SortKey{Path: p.Path, Ordering: p.Ordering, Nulls: p.Nulls})
		seen[p.Path.String()] = struct{}{}
	}
	for _, key := range vertex {
		if _, ok := seen[key.Path.String()]; ok {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (s *CustomSorting) Cursor() []any { return s.cursor }
func (s *CustomSorting) SetCursor(values []any) { s.cursor = values }

// signature identifies an ordering inside a cursor token.
func signature(keys []query.SortKey) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		part := key.Path.String() + " " + string(key.Ordering)
		if key.Nulls != query.NullsDefault {
			part += " nulls " + string(key.Nulls)
		}
		parts[i] = part
	}
	return strings.Join(parts, ",")
}
