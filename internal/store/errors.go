package store

import (
	"errors"

	"pg-graphquery/internal/cursor"
	"pg-graphquery/internal/query"
)

var (
	// ErrQuery wraps failures to acquire a connection or to run a statement.
	ErrQuery = errors.New("query failed")
	// ErrDecode wraps failures to turn a row into a record.
	ErrDecode = errors.New("decoding record failed")
	// ErrNotFound is returned by ReadOne when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrNotUnique is returned by ReadOne when more than one record matches.
	ErrNotUnique = errors.New("record is not unique")
)

// IsStructural reports whether err was caused by the request itself, e.g.
// an invalid path, filter, sorting or cursor.
func IsStructural(err error) bool {
	return query.IsStructural(err) || errors.Is(err, cursor.ErrInvalid)
}

// errorFamily names the family of err for metrics.
func errorFamily(err error) string {
	switch {
	case IsStructural(err):
		return "structural"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotUnique):
		return "not_found"
	default:
		return "execution"
	}
}
