package store

import (
	"fmt"

	"pg-graphquery/internal/cursor"
	"pg-graphquery/internal/query"
)

// QueryResult is one row of a paginated read.
type QueryResult[R, I any] struct {
	row           []any
	indices       I
	store         *Store[R, I]
	signature     string
	keys          []query.SortKey
	cursorIndices []int
}

// DecodeRecord decodes the record of the row.
func (r QueryResult[R, I]) DecodeRecord() (R, error) {
	return r.store.decode(r.row, r.indices)
}

// DecodeCursor returns the cursor continuing after this row.
func (r QueryResult[R, I]) DecodeCursor() (string, error) {
	values := make([]any, len(r.keys))
	for i, key := range r.keys {
		v, err := key.CursorValue(r.row[r.cursorIndices[i]])
		if err != nil {
			return "", fmt.Errorf("%w: cursor value %s: %w", ErrDecode, key.Path, err)
		}
		values[i] = v
	}
	return cursor.Encode(r.store.codec.Kind(), r.signature, values...)
}
