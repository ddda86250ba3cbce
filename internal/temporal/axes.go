// Package temporal models the two time axes every record version carries and
// resolves request-level axis specifications into concrete bounds.
package temporal

import (
	"errors"
	"fmt"
	"time"
)

// Axis names one of the two bi-temporal axes.
type Axis string

const (
	DecisionTime    Axis = "decisionTime"
	TransactionTime Axis = "transactionTime"
)

// ErrInvalidAxes is returned when an axis specification cannot be resolved.
var ErrInvalidAxes = errors.New("invalid temporal axes")

func (a Axis) valid() bool {
	return a == DecisionTime || a == TransactionTime
}

// Other returns the opposite axis.
func (a Axis) Other() Axis {
	if a == DecisionTime {
		return TransactionTime
	}
	return DecisionTime
}

// PinnedSpec is the unresolved pinned axis. A nil Timestamp means "now".
type PinnedSpec struct {
	Axis      Axis       `json:"axis"`
	Timestamp *time.Time `json:"timestamp"`
}

// IntervalSpec is an interval whose bounds may still be unspecified.
type IntervalSpec struct {
	Start *Bound `json:"start"`
	End   *Bound `json:"end"`
}

// VariableSpec is the unresolved variable axis.
type VariableSpec struct {
	Axis     Axis         `json:"axis"`
	Interval IntervalSpec `json:"interval"`
}

// UnresolvedAxes is the temporal part of a request before it is bound to a
// wall-clock instant.
type UnresolvedAxes struct {
	Pinned   PinnedSpec   `json:"pinned"`
	Variable VariableSpec `json:"variable"`
}

// DefaultUnresolved pins transaction time to now and spans decision time
// from the beginning of time until now.
func DefaultUnresolved() UnresolvedAxes {
	start := Unbounded()
	return UnresolvedAxes{
		Pinned: PinnedSpec{Axis: TransactionTime},
		Variable: VariableSpec{
			Axis:     DecisionTime,
			Interval: IntervalSpec{Start: &start},
		},
	}
}

// PinnedAxis is a resolved pinned axis.
type PinnedAxis struct {
	Axis      Axis      `json:"axis"`
	Timestamp time.Time `json:"timestamp"`
}

// VariableAxis is a resolved variable axis.
type VariableAxis struct {
	Axis     Axis     `json:"axis"`
	Interval Interval `json:"interval"`
}

// Axes is a fully resolved axis specification.
type Axes struct {
	Pinned   PinnedAxis   `json:"pinned"`
	Variable VariableAxis `json:"variable"`
}

// Resolve binds every unspecified instant to now. A missing start or end
// becomes an inclusive bound at now; an explicit unbounded start stays open.
func (u UnresolvedAxes) Resolve(now time.Time) (Axes, error) {
	if !u.Pinned.Axis.valid() || !u.Variable.Axis.valid() {
		return Axes{}, fmt.Errorf("%w: unknown axis in pinned=%q variable=%q", ErrInvalidAxes, u.Pinned.Axis, u.Variable.Axis)
	}
	if u.Pinned.Axis == u.Variable.Axis {
		return Axes{}, fmt.Errorf("%w: pinned and variable axis are both %s", ErrInvalidAxes, u.Pinned.Axis)
	}

	pinned := now
	if u.Pinned.Timestamp != nil {
		pinned = *u.Pinned.Timestamp
	}

	interval := Interval{Start: Inclusive(now), End: Inclusive(now)}
	if u.Variable.Interval.Start != nil {
		interval.Start = *u.Variable.Interval.Start
	}
	if u.Variable.Interval.End != nil {
		interval.End = *u.Variable.Interval.End
	}
	if err := interval.validate(); err != nil {
		return Axes{}, fmt.Errorf("%w: %v", ErrInvalidAxes, err)
	}

	return Axes{
		Pinned:   PinnedAxis{Axis: u.Pinned.Axis, Timestamp: pinned},
		Variable: VariableAxis{Axis: u.Variable.Axis, Interval: interval},
	}, nil
}

// PinnedAxis returns which axis is pinned.
func (a Axes) PinnedAxis() Axis { return a.Pinned.Axis }

// VariableAxis returns which axis spans an interval.
func (a Axes) VariableAxis() Axis { return a.Variable.Axis }
