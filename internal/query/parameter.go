package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parameter is a literal operand of a filter. Type says how Value is to be
// interpreted:
//
//	boolean              bool
//	integer              int64
//	number               float64
//	text                 string
//	uuid                 uuid.UUID
//	ontologyTypeVersion  uint32
//	timestamp            time.Time
//	any                  json.RawMessage
//	vector<number>       []float64
//	vector<T>            []string
type Parameter struct {
	Type  ParameterType
	Value any
}

func BoolParameter(b bool) *Parameter { return &Parameter{Type: TypeBoolean, Value: b} }
func IntegerParameter(i int64) *Parameter { return &Parameter{Type: TypeInteger, Value: i} }
func NumberParameter(f float64) *Parameter { return &Parameter{Type: TypeNumber, Value: f} }
func TextParameter(s string) *Parameter { return &Parameter{Type: TypeText, Value: s} }
func UUIDParameter(u uuid.UUID) *Parameter { return &Parameter{Type: TypeUUID, Value: u} }
func VersionParameter(v uint32) *Parameter { return &Parameter{Type: TypeOntologyTypeVersion, Value: v} }
func TimestampParameter(t time.Time) *Parameter { return &Parameter{Type: TypeTimestamp, Value: t} }

// JSONParameter wraps an arbitrary JSON document.
func JSONParameter(raw json.RawMessage) *Parameter {
	return &Parameter{Type: TypeAny, Value: raw}
}

// VectorParameter is an embedding vector.
func VectorParameter(v []float64) *Parameter {
	return &Parameter{Type: VectorOf(TypeNumber), Value: v}
}

// ListParameter is a list of textual values of type elem, e.g. uuids.
func ListParameter(elem ParameterType, values []string) *Parameter {
	return &Parameter{Type: VectorOf(elem), Value: values}
}

func (p *Parameter) String() string {
	switch v := p.Value.(type) {
	case json.RawMessage:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// UnmarshalJSON decodes an untyped literal: strings become text, numbers
// become numbers, booleans become booleans and anything else is kept as JSON.
// Convert assigns the final type once the path the literal is compared with
// is known.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return fmt.Errorf("%w: empty parameter", ErrParameterConversion)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = *TextParameter(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*p = *BoolParameter(b)
	case '{', '[', 'n':
		*p = *JSONParameter(json.RawMessage(trimmed))
	default:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("%w: %s is not a number", ErrParameterConversion, trimmed)
		}
		*p = *NumberParameter(f)
	}
	return nil
}

// Convert returns p converted to expected. Parameters that already have the
// expected type are returned unchanged. The text "latest" is kept as text
// when a version is expected, it selects the latest version of a type.
func (p *Parameter) Convert(expected ParameterType) (*Parameter, error) {
	if p.Type == expected {
		return p, nil
	}
	fail := func(reason string) (*Parameter, error) {
		if reason != "" {
			reason = ": " + reason
		}
		return nil, fmt.Errorf("%w: cannot convert %s %q to %s%s", ErrParameterConversion, p.Type, p.String(), expected, reason)
	}

	switch expected {
	case TypeAny, TypeObject:
		if p.Type == TypeAny {
			return p, nil
		}
		raw, err := json.Marshal(p.Value)
		if err != nil {
			return fail(err.Error())
		}
		if expected == TypeObject {
			return &Parameter{Type: TypeObject, Value: json.RawMessage(raw)}, nil
		}
		return JSONParameter(raw), nil
	case TypeText, TypeBaseURL, TypeVersionedURL:
		if s, ok := p.Value.(string); ok {
			return TextParameter(s), nil
		}
	case TypeUUID:
		if s, ok := p.Value.(string); ok {
			id, err := uuid.Parse(s)
			if err != nil {
				return fail(err.Error())
			}
			return UUIDParameter(id), nil
		}
	case TypeOntologyTypeVersion:
		switch v := p.Value.(type) {
		case string:
			if v == "latest" {
				return p, nil
			}
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fail(err.Error())
			}
			return VersionParameter(uint32(n)), nil
		case float64:
			if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
				return fail("not a version number")
			}
			return VersionParameter(uint32(v)), nil
		case int64:
			if v < 0 || v > math.MaxUint32 {
				return fail("not a version number")
			}
			return VersionParameter(uint32(v)), nil
		}
	case TypeInteger:
		if v, ok := p.Value.(float64); ok {
			if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
				return fail("not an integer")
			}
			return IntegerParameter(int64(v)), nil
		}
	case TypeNumber:
		if v, ok := p.Value.(int64); ok {
			return NumberParameter(float64(v)), nil
		}
	case TypeTimestamp:
		if s, ok := p.Value.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fail(err.Error())
			}
			return TimestampParameter(t), nil
		}
	case TypeBoolean:
	default:
		if elem, ok := expected.Elem(); ok {
			return p.convertList(elem, fail)
		}
	}
	return fail("")
}

func (p *Parameter) convertList(elem ParameterType, fail func(string) (*Parameter, error)) (*Parameter, error) {
	raw, ok := p.Value.(json.RawMessage)
	if !ok {
		return fail("")
	}
	var items []Parameter
	if err := json.Unmarshal(raw, &items); err != nil {
		return fail(err.Error())
	}

	if elem == TypeNumber {
		vector := make([]float64, len(items))
		for i := range items {
			v, ok := items[i].Value.(float64)
			if !ok {
				return fail(fmt.Sprintf("element %d is not a number", i))
			}
			vector[i] = v
		}
		return VectorParameter(vector), nil
	}

	values := make([]string, len(items))
	for i := range items {
		converted, err := items[i].Convert(elem)
		if err != nil {
			return nil, err
		}
		values[i] = converted.String()
	}
	return ListParameter(elem, values), nil
}

// Arg returns the value handed to the database driver.
func (p *Parameter) Arg() any {
	switch v := p.Value.(type) {
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case uint32:
		return int64(v)
	default:
		return v
	}
}
