// Package sqltype converts the values the pgx database/sql driver hands back
// for untyped scans into domain types. Text-like values may arrive as string
// or []byte; arrays and ranges arrive in their text form and are parsed with
// pgtype.
package sqltype

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"pg-graphquery/internal/temporal"
)

func textOf(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// UUID parses a uuid in text form or as 16 raw bytes.
func UUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
	}
	s, ok := textOf(v)
	if !ok {
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return parsed, nil
}

// OptionalUUID is UUID for nullable columns.
func OptionalUUID(v any) (*uuid.UUID, error) {
	if v == nil {
		return nil, nil
	}
	id, err := UUID(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Text returns a text value.
func Text(v any) (string, error) {
	s, ok := textOf(v)
	if !ok {
		return "", fmt.Errorf("cannot convert %T to text", v)
	}
	return s, nil
}

// OptionalText is Text for nullable columns.
func OptionalText(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := Text(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Int64 returns an integer value.
func Int64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	}
	s, ok := textOf(v)
	if !ok {
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// Float64 returns a floating point value.
func Float64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	s, ok := textOf(v)
	if !ok {
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// OptionalFloat64 is Float64 for nullable columns.
func OptionalFloat64(v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := Float64(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Bool returns a boolean value.
func Bool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	s, ok := textOf(v)
	if !ok {
		return false, fmt.Errorf("cannot convert %T to boolean", v)
	}
	switch strings.TrimSpace(s) {
	case "t", "true":
		return true, nil
	case "f", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Time returns a timestamp.
func Time(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, ok := textOf(v)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", v)
	}
	var ts pgtype.Timestamptz
	if err := pgtype.NewMap().Scan(pgtype.TimestamptzOID, pgtype.TextFormatCode, []byte(s), &ts); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts.Time, nil
}

// OptionalTime is Time for nullable columns.
func OptionalTime(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := Time(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// JSON returns a json or jsonb value as raw JSON. NULL yields nil.
func JSON(v any) (json.RawMessage, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return json.RawMessage(append([]byte(nil), v...)), nil
	case string:
		return json.RawMessage(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to json: %w", v, err)
		}
		return raw, nil
	}
}

// TextArray parses a text[] value.
func TextArray(v any) ([]string, error) {
	if v, ok := v.([]string); ok {
		return v, nil
	}
	s, ok := textOf(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to text[]", v)
	}
	var out []string
	if err := pgtype.NewMap().Scan(pgtype.TextArrayOID, pgtype.TextFormatCode, []byte(s), &out); err != nil {
		return nil, fmt.Errorf("invalid text[] %q: %w", s, err)
	}
	return out, nil
}

// Int64Array parses an integer array value.
func Int64Array(v any) ([]int64, error) {
	if v, ok := v.([]int64); ok {
		return v, nil
	}
	s, ok := textOf(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to integer[]", v)
	}
	var out []int64
	if err := pgtype.NewMap().Scan(pgtype.Int8ArrayOID, pgtype.TextFormatCode, []byte(s), &out); err != nil {
		return nil, fmt.Errorf("invalid integer[] %q: %w", s, err)
	}
	return out, nil
}

// Interval parses a tstzrange value.
func Interval(v any) (temporal.Interval, error) {
	var interval temporal.Interval
	err := interval.Scan(v)
	return interval, err
}
