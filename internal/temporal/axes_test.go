package temporal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestResolveDefaults(t *testing.T) {
	axes, err := DefaultUnresolved().Resolve(now)
	require.NoError(t, err)

	assert.Equal(t, TransactionTime, axes.PinnedAxis())
	assert.Equal(t, DecisionTime, axes.VariableAxis())
	assert.Equal(t, now, axes.Pinned.Timestamp)
	assert.Equal(t, Unbounded(), axes.Variable.Interval.Start)
	assert.Equal(t, Inclusive(now), axes.Variable.Interval.End)
}

func TestResolveMissingStartDefaultsToNow(t *testing.T) {
	pinnedAt := now.Add(-time.Hour)
	axes, err := UnresolvedAxes{
		Pinned:   PinnedSpec{Axis: DecisionTime, Timestamp: &pinnedAt},
		Variable: VariableSpec{Axis: TransactionTime},
	}.Resolve(now)
	require.NoError(t, err)

	assert.Equal(t, pinnedAt, axes.Pinned.Timestamp)
	assert.Equal(t, Interval{Start: Inclusive(now), End: Inclusive(now)}, axes.Variable.Interval)
}

func TestResolveRejectsInvalidAxes(t *testing.T) {
	_, err := UnresolvedAxes{
		Pinned:   PinnedSpec{Axis: DecisionTime},
		Variable: VariableSpec{Axis: DecisionTime},
	}.Resolve(now)
	assert.ErrorIs(t, err, ErrInvalidAxes)

	_, err = UnresolvedAxes{
		Pinned:   PinnedSpec{Axis: "wallTime"},
		Variable: VariableSpec{Axis: DecisionTime},
	}.Resolve(now)
	assert.ErrorIs(t, err, ErrInvalidAxes)

	start := Inclusive(now)
	end := Exclusive(now.Add(-time.Minute))
	_, err = UnresolvedAxes{
		Pinned:   PinnedSpec{Axis: TransactionTime},
		Variable: VariableSpec{Axis: DecisionTime, Interval: IntervalSpec{Start: &start, End: &end}},
	}.Resolve(now)
	assert.ErrorIs(t, err, ErrInvalidAxes)
}

func TestUnresolvedAxesJSON(t *testing.T) {
	raw := `{
		"pinned": {"axis": "transactionTime", "timestamp": null},
		"variable": {
			"axis": "decisionTime",
			"interval": {
				"start": {"kind": "unbounded"},
				"end": {"kind": "exclusive", "limit": "2024-01-01T00:00:00Z"}
			}
		}
	}`

	var spec UnresolvedAxes
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Nil(t, spec.Pinned.Timestamp)
	require.NotNil(t, spec.Variable.Interval.End)
	assert.Equal(t, BoundExclusive, spec.Variable.Interval.End.Kind)

	axes, err := spec.Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), axes.Variable.Interval.End.Limit)
}

func TestBoundJSONValidation(t *testing.T) {
	var b Bound
	assert.ErrorContains(t, json.Unmarshal([]byte(`{"kind": "inclusive"}`), &b), "requires a limit")
	assert.ErrorContains(t, json.Unmarshal([]byte(`{"kind": "sometimes"}`), &b), "unknown bound kind")
}

func TestIntervalRange(t *testing.T) {
	r, err := Interval{Start: Unbounded(), End: Inclusive(now)}.Range()
	require.NoError(t, err)

	assert.True(t, r.Valid)
	assert.Equal(t, pgtype.Unbounded, r.LowerType)
	assert.Equal(t, pgtype.Inclusive, r.UpperType)
	assert.Equal(t, now, r.Upper.Time)

	back, err := FromRange(r)
	require.NoError(t, err)
	assert.Equal(t, Interval{Start: Unbounded(), End: Inclusive(now)}, back)
}

func TestIntervalScanText(t *testing.T) {
	var i Interval
	require.NoError(t, i.Scan(`["2024-01-01 00:00:00+00",)`))
	assert.Equal(t, BoundInclusive, i.Start.Kind)
	assert.True(t, i.Start.Limit.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, BoundUnbounded, i.End.Kind)

	assert.Error(t, i.Scan(nil))
	assert.Error(t, i.Scan(42))
}
