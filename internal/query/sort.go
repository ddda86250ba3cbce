package query

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SortKey is one level of a keyset ordering.
type SortKey struct {
	Path     Path
	Ordering Ordering
	Nulls    NullOrdering
	// Project is applied to the column before it is compared with a cursor
	// value, e.g. Lower for the start of an interval.
	Project func(Expression) Expression
	// Type is the type of the cursor value. It defaults to the path's
	// expected type.
	Type ParameterType
	// Decode turns the selected value into a cursor value. Nil keeps the
	// value as scanned.
	Decode func(any) (any, error)
}

// ValueType is the type cursor values of k are converted to.
func (k SortKey) ValueType() ParameterType {
	if k.Type != "" {
		return k.Type
	}
	return k.Path.ExpectedType()
}

// CursorValue converts a selected value into the value stored in a cursor.
func (k SortKey) CursorValue(v any) (any, error) {
	if v == nil || k.Decode == nil {
		return v, nil
	}
	return k.Decode(v)
}

// CursorParameter types a value read back from a cursor. Nil stays nil and
// compiles to NULL.
func (k SortKey) CursorParameter(v any) (*Parameter, error) {
	var p *Parameter
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		p = TextParameter(v)
	case []byte:
		p = TextParameter(string(v))
	case bool:
		p = BoolParameter(v)
	case int64:
		p = IntegerParameter(v)
	case float64:
		p = NumberParameter(v)
	case time.Time:
		p = TimestampParameter(v)
	case uuid.UUID:
		p = UUIDParameter(v)
	default:
		return nil, fmt.Errorf("%w: unsupported cursor value %T", ErrInvalidSorting, v)
	}
	converted, err := p.Convert(k.ValueType())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSorting, k.Path, err)
	}
	return converted, nil
}
