package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FilterKind names the operator of a filter node.
type FilterKind string

const (
	FilterAll             FilterKind = "all"
	FilterAny             FilterKind = "any"
	FilterNot             FilterKind = "not"
	FilterEqual           FilterKind = "equal"
	FilterNotEqual        FilterKind = "notEqual"
	FilterGreater         FilterKind = "greater"
	FilterGreaterOrEqual  FilterKind = "greaterOrEqual"
	FilterLess            FilterKind = "less"
	FilterLessOrEqual     FilterKind = "lessOrEqual"
	FilterCosineDistance  FilterKind = "cosineDistance"
	FilterIn              FilterKind = "in"
	FilterStartsWith      FilterKind = "startsWith"
	FilterEndsWith        FilterKind = "endsWith"
	FilterContainsSegment FilterKind = "containsSegment"
)

// operandCount is the number of operands each leaf kind takes.
var operandCount = map[FilterKind]int{
	FilterEqual:           2,
	FilterNotEqual:        2,
	FilterGreater:         2,
	FilterGreaterOrEqual:  2,
	FilterLess:            2,
	FilterLessOrEqual:     2,
	FilterCosineDistance:  3,
	FilterIn:              2,
	FilterStartsWith:      2,
	FilterEndsWith:        2,
	FilterContainsSegment: 2,
}

// Operand is either a path or a parameter. A nil *Operand stands for NULL
// and is only accepted by equal and notEqual.
type Operand struct {
	Path      Path
	Parameter *Parameter
}

// PathOperand wraps p.
func PathOperand(p Path) *Operand { return &Operand{Path: p} }

// ParameterOperand wraps p.
func ParameterOperand(p *Parameter) *Operand { return &Operand{Parameter: p} }

func (o *Operand) String() string {
	switch {
	case o == nil:
		return "null"
	case o.Path != nil:
		return o.Path.String()
	default:
		return o.Parameter.String()
	}
}

// Filter is a node of a filter tree. All and Any hold Children, Not holds
// exactly one child, every other kind holds Operands.
type Filter struct {
	Kind     FilterKind
	Children []Filter
	Operands []*Operand
}

// AllOf matches records matching every filter.
func AllOf(filters ...Filter) Filter { return Filter{Kind: FilterAll, Children: filters} }

// AnyOf matches records matching at least one filter.
func AnyOf(filters ...Filter) Filter { return Filter{Kind: FilterAny, Children: filters} }

// NotOf negates f.
func NotOf(f Filter) Filter { return Filter{Kind: FilterNot, Children: []Filter{f}} }

// Compare builds a leaf of kind with the given operands.
func Compare(kind FilterKind, operands ...*Operand) Filter {
	return Filter{Kind: kind, Operands: operands}
}

func EqualTo(lhs, rhs *Operand) Filter { return Compare(FilterEqual, lhs, rhs) }
func NotEqualTo(lhs, rhs *Operand) Filter { return Compare(FilterNotEqual, lhs, rhs) }

func (f Filter) String() string {
	switch f.Kind {
	case FilterAll, FilterAny, FilterNot:
		parts := make([]string, len(f.Children))
		for i, child := range f.Children {
			parts[i] = child.String()
		}
		return string(f.Kind) + "(" + strings.Join(parts, ", ") + ")"
	default:
		parts := make([]string, len(f.Operands))
		for i, op := range f.Operands {
			parts[i] = op.String()
		}
		return string(f.Kind) + "(" + strings.Join(parts, ", ") + ")"
	}
}

// DecodeFilter parses the JSON form of a filter, resolving paths with parse.
func DecodeFilter(data []byte, parse PathParser) (Filter, error) {
	var node map[string]json.RawMessage
	if err := json.Unmarshal(data, &node); err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrUnsupportedFilter, err)
	}
	if len(node) != 1 {
		return Filter{}, fmt.Errorf("%w: a filter must have exactly one key, got %d", ErrUnsupportedFilter, len(node))
	}

	for key, body := range node {
		kind := FilterKind(key)
		switch kind {
		case FilterAll, FilterAny:
			var raws []json.RawMessage
			if err := json.Unmarshal(body, &raws); err != nil {
				return Filter{}, fmt.Errorf("%w: %s expects a list: %v", ErrUnsupportedFilter, kind, err)
			}
			children := make([]Filter, 0, len(raws))
			for _, raw := range raws {
				child, err := DecodeFilter(raw, parse)
				if err != nil {
					return Filter{}, err
				}
				children = append(children, child)
			}
			return Filter{Kind: kind, Children: children}, nil
		case FilterNot:
			child, err := DecodeFilter(body, parse)
			if err != nil {
				return Filter{}, err
			}
			return NotOf(child), nil
		}

		count, ok := operandCount[kind]
		if !ok {
			return Filter{}, fmt.Errorf("%w: unknown filter %q", ErrUnsupportedFilter, key)
		}
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return Filter{}, fmt.Errorf("%w: %s expects a list of operands: %v", ErrUnsupportedFilter, kind, err)
		}
		if len(raws) != count {
			return Filter{}, fmt.Errorf("%w: %s expects %d operands, got %d", ErrUnsupportedFilter, kind, count, len(raws))
		}
		operands := make([]*Operand, count)
		for i, raw := range raws {
			op, err := decodeOperand(raw, parse)
			if err != nil {
				return Filter{}, err
			}
			if op == nil && kind != FilterEqual && kind != FilterNotEqual {
				return Filter{}, fmt.Errorf("%w: %s does not accept null operands", ErrUnsupportedFilter, kind)
			}
			operands[i] = op
		}
		return Filter{Kind: kind, Operands: operands}, nil
	}
	return Filter{}, fmt.Errorf("%w: empty filter", ErrUnsupportedFilter)
}

func decodeOperand(raw json.RawMessage, parse PathParser) (*Operand, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var body struct {
		Path      []PathToken     `json:"path"`
		Parameter json.RawMessage `json:"parameter"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: operand: %v", ErrUnsupportedFilter, err)
	}
	switch {
	case body.Path != nil && body.Parameter != nil:
		return nil, fmt.Errorf("%w: operand has both path and parameter", ErrUnsupportedFilter)
	case body.Path != nil:
		path, err := parse(body.Path)
		if err != nil {
			return nil, err
		}
		return PathOperand(path), nil
	case body.Parameter != nil:
		var p Parameter
		if err := json.Unmarshal(body.Parameter, &p); err != nil {
			return nil, err
		}
		return ParameterOperand(&p), nil
	default:
		return nil, fmt.Errorf("%w: operand needs a path or a parameter", ErrUnsupportedFilter)
	}
}

// ConvertParameters types every parameter against the path it is compared
// with, e.g. a text literal compared with a uuid column becomes a uuid.
func (f *Filter) ConvertParameters() error {
	switch f.Kind {
	case FilterAll, FilterAny, FilterNot:
		for i := range f.Children {
			if err := f.Children[i].ConvertParameters(); err != nil {
				return err
			}
		}
		return nil
	}

	// A path that cannot be joined has no meaningful expected type; report
	// it instead of converting against an empty one.
	for _, op := range f.Operands {
		if op == nil || op.Path == nil {
			continue
		}
		if _, err := op.Path.Relations(); err != nil {
			return fmt.Errorf("path %s: %w", op.Path, err)
		}
	}

	switch f.Kind {
	case FilterCosineDistance:
		return f.convertCosineDistance()
	case FilterIn:
		return f.convertIn()
	}

	if len(f.Operands) != 2 {
		return fmt.Errorf("%w: %s expects 2 operands", ErrUnsupportedFilter, f.Kind)
	}
	lhs, rhs := f.Operands[0], f.Operands[1]
	if lhs == nil || rhs == nil {
		return nil
	}
	var err error
	switch {
	case lhs.Path != nil && rhs.Parameter != nil:
		f.Operands[1], err = convertOperand(rhs, lhs.Path.ExpectedType())
	case lhs.Parameter != nil && rhs.Path != nil:
		f.Operands[0], err = convertOperand(lhs, rhs.Path.ExpectedType())
	}
	return err
}

func (f *Filter) convertCosineDistance() error {
	if len(f.Operands) != 3 {
		return fmt.Errorf("%w: cosineDistance expects 3 operands", ErrUnsupportedFilter)
	}
	lhs, rhs := f.Operands[0], f.Operands[1]
	if lhs == nil || rhs == nil {
		return fmt.Errorf("%w: cosineDistance does not accept null operands", ErrUnsupportedFilter)
	}
	var err error
	switch {
	case lhs.Path != nil && rhs.Parameter != nil:
		f.Operands[1], err = convertOperand(rhs, lhs.Path.ExpectedType())
	case lhs.Parameter != nil && rhs.Path != nil:
		f.Operands[0], err = convertOperand(lhs, rhs.Path.ExpectedType())
	default:
		err = fmt.Errorf("%w: cosineDistance compares exactly one path with one parameter", ErrUnsupportedFilter)
	}
	if err != nil {
		return err
	}
	if maximum := f.Operands[2]; maximum != nil && maximum.Parameter != nil {
		f.Operands[2], err = convertOperand(maximum, TypeNumber)
	}
	return err
}

func (f *Filter) convertIn() error {
	if len(f.Operands) != 2 {
		return fmt.Errorf("%w: in expects 2 operands", ErrUnsupportedFilter)
	}
	lhs, rhs := f.Operands[0], f.Operands[1]
	if rhs == nil || rhs.Parameter == nil {
		return fmt.Errorf("%w: in expects a parameter list on the right", ErrUnsupportedFilter)
	}
	if lhs == nil || lhs.Path == nil {
		return fmt.Errorf("%w: in expects a path on the left", ErrUnsupportedFilter)
	}
	var err error
	f.Operands[1], err = convertOperand(rhs, VectorOf(lhs.Path.ExpectedType()))
	return err
}

func convertOperand(op *Operand, expected ParameterType) (*Operand, error) {
	converted, err := op.Parameter.Convert(expected)
	if err != nil {
		return nil, err
	}
	return ParameterOperand(converted), nil
}
