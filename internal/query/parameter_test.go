package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterUnmarshal(t *testing.T) {
	tests := []struct {
		data string
		want *Parameter
	}{
		{`"text"`, TextParameter("text")},
		{`true`, BoolParameter(true)},
		{`1.5`, NumberParameter(1.5)},
		{`null`, JSONParameter(json.RawMessage(`null`))},
		{`{"a":1}`, JSONParameter(json.RawMessage(`{"a":1}`))},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			var p Parameter
			require.NoError(t, json.Unmarshal([]byte(tt.data), &p))
			assert.Equal(t, tt.want, &p)
		})
	}
}

func TestParameterConvert(t *testing.T) {
	id := uuid.MustParse("0b7a1c52-3a16-4c24-bb1e-2a0c8f5f0a11")
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name     string
		in       *Parameter
		expected ParameterType
		want     *Parameter
	}{
		{"uuid", TextParameter(id.String()), TypeUUID, UUIDParameter(id)},
		{"version from number", NumberParameter(3), TypeOntologyTypeVersion, VersionParameter(3)},
		{"version from text", TextParameter("7"), TypeOntologyTypeVersion, VersionParameter(7)},
		{"latest stays text", TextParameter("latest"), TypeOntologyTypeVersion, TextParameter("latest")},
		{"integer", NumberParameter(42), TypeInteger, IntegerParameter(42)},
		{"number from integer", IntegerParameter(2), TypeNumber, NumberParameter(2)},
		{"timestamp", TextParameter(ts.Format(time.RFC3339)), TypeTimestamp, TimestampParameter(ts)},
		{"versioned url", TextParameter("https://example.com/v/1"), TypeVersionedURL, TextParameter("https://example.com/v/1")},
		{"text to any", TextParameter("x"), TypeAny, JSONParameter(json.RawMessage(`"x"`))},
		{"unchanged", BoolParameter(false), TypeBoolean, BoolParameter(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Convert(tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParameterConvertErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       *Parameter
		expected ParameterType
	}{
		{"bad uuid", TextParameter("nope"), TypeUUID},
		{"fractional version", NumberParameter(1.5), TypeOntologyTypeVersion},
		{"negative version", NumberParameter(-1), TypeOntologyTypeVersion},
		{"fractional integer", NumberParameter(1.5), TypeInteger},
		{"boolean from text", TextParameter("true"), TypeBoolean},
		{"bad timestamp", TextParameter("yesterday"), TypeTimestamp},
		{"vector of text", JSONParameter(json.RawMessage(`["a"]`)), VectorOf(TypeNumber)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Convert(tt.expected)
			assert.ErrorIs(t, err, ErrParameterConversion)
		})
	}
}

func TestParameterArg(t *testing.T) {
	assert.Equal(t, int64(4), VersionParameter(4).Arg())
	assert.Equal(t, "[1,0.25]", VectorParameter([]float64{1, 0.25}).Arg())
	assert.Equal(t, "x", TextParameter("x").Arg())
}
