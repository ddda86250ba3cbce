package sqltype

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-graphquery/internal/temporal"
)

func TestUUID(t *testing.T) {
	want := uuid.MustParse("6f1c6d2a-8a8e-4b61-9d3b-1f0a9a1f5c20")

	for name, input := range map[string]any{
		"string":    want.String(),
		"text":      []byte(want.String()),
		"raw bytes": want[:],
		"array":     [16]byte(want),
		"padded":    "  " + want.String() + " ",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := UUID(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := UUID(42)
	assert.Error(t, err)
	_, err = UUID("nope")
	assert.Error(t, err)

	missing, err := OptionalUUID(nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestScalars(t *testing.T) {
	n, err := Int64("17")
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	n, err = Int64(int32(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f, err := Float64([]byte("0.25"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	b, err := Bool("t")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = Bool("maybe")
	assert.Error(t, err)

	s, err := OptionalText(nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	got, err := Time(ts)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestJSON(t *testing.T) {
	raw, err := JSON([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = JSON(map[string]any{"b": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":true}`, string(raw))

	raw, err = JSON(nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(nil), raw)
}

func TestArrays(t *testing.T) {
	texts, err := TextArray(`{https://example.com/a/,"https://example.com/b,c/"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a/", "https://example.com/b,c/"}, texts)

	ints, err := Int64Array([]byte("{1,2,3}"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ints)

	_, err = TextArray(12)
	assert.Error(t, err)
}

func TestInterval(t *testing.T) {
	interval, err := Interval(`["2024-01-01 00:00:00+00",)`)
	require.NoError(t, err)
	assert.Equal(t, temporal.BoundInclusive, interval.Start.Kind)
	assert.True(t, interval.Start.Limit.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, temporal.BoundUnbounded, interval.End.Kind)
}
