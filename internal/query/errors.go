package query

import "errors"

// Structural errors. They describe a request that can never succeed and are
// reported before any statement reaches the database.
var (
	ErrInvalidPath            = errors.New("invalid path")
	ErrParameterConversion    = errors.New("parameter conversion failed")
	ErrInvalidSorting         = errors.New("invalid sorting")
	ErrUnsupportedFilter      = errors.New("unsupported filter")
	ErrLatestWithPagination   = errors.New("the latest version filter cannot be combined with a limit or cursor")
	ErrDistanceWithPagination = errors.New("the cosine distance filter cannot be combined with a limit or cursor")
)

// IsStructural reports whether err stems from an invalid request rather than
// from executing it.
func IsStructural(err error) bool {
	for _, target := range []error{
		ErrInvalidPath,
		ErrParameterConversion,
		ErrInvalidSorting,
		ErrUnsupportedFilter,
		ErrLatestWithPagination,
		ErrDistanceWithPagination,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
