// Package cursor encodes and decodes keyset pagination cursors.
// Cursors are opaque base64url-encoded MessagePack payloads carrying the
// record kind, a signature of the sorting they were produced for, and the
// sort key values of the last record of a page.
package cursor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalid is returned for cursors that cannot be decoded or that belong
// to a different query.
var ErrInvalid = errors.New("invalid cursor")

const version = 1

type payload struct {
	Version int    `msgpack:"v"`
	Kind    string `msgpack:"k"`
	Sorting string `msgpack:"s"`
	Values  []any  `msgpack:"vals"`
}

// Cursor is a decoded cursor.
type Cursor struct {
	Kind    string
	Sorting string
	Values  []any
}

// Encode builds an opaque cursor for a record of kind ordered by sorting.
// Values may be nil, bool, integers, floats, strings, byte slices or
// time.Time.
func Encode(kind, sorting string, values ...any) (string, error) {
	data, err := msgpack.Marshal(payload{
		Version: version,
		Kind:    kind,
		Sorting: sorting,
		Values:  values,
	})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a cursor produced by Encode. Integers come back as int64,
// floats as float64 and times in UTC.
func Decode(raw string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(data) == 0 {
		return Cursor{}, fmt.Errorf("%w: empty cursor", ErrInvalid)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var p payload
	if err := dec.Decode(&p); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if p.Version != version {
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrInvalid, p.Version)
	}
	if p.Kind == "" || p.Sorting == "" {
		return Cursor{}, fmt.Errorf("%w: missing kind or sorting", ErrInvalid)
	}

	values := make([]any, len(p.Values))
	for i, v := range p.Values {
		if values[i], err = normalize(v); err != nil {
			return Cursor{}, fmt.Errorf("%w: value %d: %v", ErrInvalid, i, err)
		}
	}
	return Cursor{Kind: p.Kind, Sorting: p.Sorting, Values: values}, nil
}

// Validate confirms the cursor was produced for the same kind and sorting
// and carries one value per sort key.
func (c Cursor) Validate(kind, sorting string, keys int) error {
	if c.Kind != kind {
		return fmt.Errorf("%w: kind mismatch: expected %s, got %s", ErrInvalid, kind, c.Kind)
	}
	if c.Sorting != sorting {
		return fmt.Errorf("%w: sorting mismatch: expected %q, got %q", ErrInvalid, sorting, c.Sorting)
	}
	if len(c.Values) != keys {
		return fmt.Errorf("%w: expected %d values, got %d", ErrInvalid, keys, len(c.Values))
	}
	return nil
}

func normalize(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, string, []byte, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case time.Time:
		return v.UTC(), nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}
