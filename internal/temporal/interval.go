package temporal

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// BoundKind says whether a bound is open, closed or absent.
type BoundKind string

const (
	BoundUnbounded BoundKind = "unbounded"
	BoundInclusive BoundKind = "inclusive"
	BoundExclusive BoundKind = "exclusive"
)

// Bound is one end of an interval. Limit is ignored for unbounded ends.
type Bound struct {
	Kind  BoundKind `json:"kind"`
	Limit time.Time `json:"limit,omitzero"`
}

func Unbounded() Bound { return Bound{Kind: BoundUnbounded} }
func Inclusive(t time.Time) Bound { return Bound{Kind: BoundInclusive, Limit: t} }
func Exclusive(t time.Time) Bound { return Bound{Kind: BoundExclusive, Limit: t} }

func (b Bound) rangeBound() (pgtype.Timestamptz, pgtype.BoundType, error) {
	switch b.Kind {
	case BoundUnbounded:
		return pgtype.Timestamptz{}, pgtype.Unbounded, nil
	case BoundInclusive:
		return pgtype.Timestamptz{Time: b.Limit, Valid: true}, pgtype.Inclusive, nil
	case BoundExclusive:
		return pgtype.Timestamptz{Time: b.Limit, Valid: true}, pgtype.Exclusive, nil
	default:
		return pgtype.Timestamptz{}, 0, fmt.Errorf("unknown bound kind %q", b.Kind)
	}
}

// UnmarshalJSON accepts {"kind": "...", "limit": "..."}.
func (b *Bound) UnmarshalJSON(data []byte) error {
	type raw Bound
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	switch r.Kind {
	case BoundUnbounded:
		r.Limit = time.Time{}
	case BoundInclusive, BoundExclusive:
		if r.Limit.IsZero() {
			return fmt.Errorf("%s bound requires a limit", r.Kind)
		}
	default:
		return fmt.Errorf("unknown bound kind %q", r.Kind)
	}
	*b = Bound(r)
	return nil
}

// Interval is a resolved time interval matching a tstzrange column.
type Interval struct {
	Start Bound `json:"start"`
	End   Bound `json:"end"`
}

func (i Interval) validate() error {
	if i.Start.Kind == BoundUnbounded || i.End.Kind == BoundUnbounded {
		return nil
	}
	if i.End.Limit.Before(i.Start.Limit) {
		return errors.New("interval ends before it starts")
	}
	return nil
}

// Range converts the interval into the pgx range type used as a query argument.
func (i Interval) Range() (pgtype.Range[pgtype.Timestamptz], error) {
	lower, lowerType, err := i.Start.rangeBound()
	if err != nil {
		return pgtype.Range[pgtype.Timestamptz]{}, err
	}
	upper, upperType, err := i.End.rangeBound()
	if err != nil {
		return pgtype.Range[pgtype.Timestamptz]{}, err
	}
	return pgtype.Range[pgtype.Timestamptz]{
		Lower:     lower,
		Upper:     upper,
		LowerType: lowerType,
		UpperType: upperType,
		Valid:     true,
	}, nil
}

// FromRange converts a decoded tstzrange. Infinite limits become unbounded.
func FromRange(r pgtype.Range[pgtype.Timestamptz]) (Interval, error) {
	if !r.Valid {
		return Interval{}, errors.New("range is null")
	}
	if r.LowerType == pgtype.Empty {
		return Interval{}, errors.New("range is empty")
	}
	return Interval{
		Start: fromRangeBound(r.Lower, r.LowerType),
		End:   fromRangeBound(r.Upper, r.UpperType),
	}, nil
}

func fromRangeBound(ts pgtype.Timestamptz, kind pgtype.BoundType) Bound {
	if kind == pgtype.Unbounded || !ts.Valid || ts.InfinityModifier != pgtype.Finite {
		return Unbounded()
	}
	if kind == pgtype.Exclusive {
		return Exclusive(ts.Time)
	}
	return Inclusive(ts.Time)
}

// Scan decodes the text form of a tstzrange, as delivered by the pgx stdlib
// driver for range columns.
func (i *Interval) Scan(src any) error {
	var text []byte
	switch v := src.(type) {
	case string:
		text = []byte(v)
	case []byte:
		text = v
	case nil:
		return errors.New("cannot scan NULL into temporal.Interval")
	default:
		return fmt.Errorf("cannot scan %T into temporal.Interval", src)
	}

	var r pgtype.Range[pgtype.Timestamptz]
	if err := pgtype.NewMap().Scan(pgtype.TstzrangeOID, pgtype.TextFormatCode, text, &r); err != nil {
		return fmt.Errorf("decode tstzrange: %w", err)
	}
	decoded, err := FromRange(r)
	if err != nil {
		return err
	}
	*i = decoded
	return nil
}

// Value lets an Interval be passed directly as a query argument.
func (i Interval) Value() (driver.Value, error) {
	r, err := i.Range()
	if err != nil {
		return nil, err
	}
	buf, err := pgtype.NewMap().Encode(pgtype.TstzrangeOID, pgtype.TextFormatCode, r, nil)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}
