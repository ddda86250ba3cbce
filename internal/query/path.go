package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses an attribute of a record, possibly across edges to other
// records. Relations lists the joins to reach the attribute from the record's
// base table; TerminatingColumn names the column (and optional JSON
// sub-field) holding it.
type Path interface {
	Relations() ([]Relation, error)
	TerminatingColumn() (Column, *JSONField)
	ExpectedType() ParameterType
	String() string
}

// ColumnType is the type a value read from column narrowed by field has. A
// static key is always extracted as text.
func ColumnType(column Column, field *JSONField) ParameterType {
	if field != nil && !field.isPath() {
		return TypeText
	}
	return column.Type
}

// PathParser turns the tokens of a serialized path into a Path of one record
// kind.
type PathParser func(tokens []PathToken) (Path, error)

// ParsedToken is a path token with optional parameters, e.g.
// type(inheritanceDepth=0).
type ParsedToken struct {
	Name   string
	Params map[string]string
}

// ParseToken splits a token into its name and parameters.
func ParseToken(token PathToken) (ParsedToken, error) {
	if token.IsIndex {
		return ParsedToken{}, fmt.Errorf("%w: unexpected index %d", ErrInvalidPath, token.Index)
	}
	name, rest, hasParams := strings.Cut(token.Field, "(")
	parsed := ParsedToken{Name: name}
	if !hasParams {
		return parsed, nil
	}
	if !strings.HasSuffix(rest, ")") {
		return ParsedToken{}, fmt.Errorf("%w: unterminated parameters in %q", ErrInvalidPath, token.Field)
	}
	parsed.Params = map[string]string{}
	for _, param := range strings.Split(strings.TrimSuffix(rest, ")"), ",") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		key, value, ok := strings.Cut(param, "=")
		if !ok {
			return ParsedToken{}, fmt.Errorf("%w: malformed parameter %q in %q", ErrInvalidPath, param, token.Field)
		}
		parsed.Params[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return parsed, nil
}

// InheritanceDepth reads the inheritanceDepth parameter. Any other parameter
// is rejected. An absent parameter is unbounded.
func (t ParsedToken) InheritanceDepth() (InheritanceDepth, error) {
	var depth InheritanceDepth
	for key, value := range t.Params {
		if key != "inheritanceDepth" {
			return depth, fmt.Errorf("%w: unknown parameter %q on %q", ErrInvalidPath, key, t.Name)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return depth, fmt.Errorf("%w: inheritanceDepth %q: %v", ErrInvalidPath, value, err)
		}
		depth = Depth(uint32(n))
	}
	return depth, nil
}

// NoParams rejects any parameter on the token.
func (t ParsedToken) NoParams() error {
	for key := range t.Params {
		return fmt.Errorf("%w: %q does not take parameter %q", ErrInvalidPath, t.Name, key)
	}
	return nil
}

// Tokens is a cursor over the tokens of a path.
type Tokens struct {
	tokens []PathToken
	pos    int
}

// NewTokens wraps tokens.
func NewTokens(tokens []PathToken) *Tokens { return &Tokens{tokens: tokens} }

// Next returns the next token, failing at the end of the path.
func (t *Tokens) Next() (ParsedToken, error) {
	if t.pos >= len(t.tokens) {
		return ParsedToken{}, fmt.Errorf("%w: unexpected end of path", ErrInvalidPath)
	}
	token := t.tokens[t.pos]
	t.pos++
	return ParseToken(token)
}

// Selector consumes the "*" selector following an edge token.
func (t *Tokens) Selector() error {
	if t.pos >= len(t.tokens) || t.tokens[t.pos].IsIndex || t.tokens[t.pos].Field != "*" {
		return fmt.Errorf("%w: expected selector \"*\"", ErrInvalidPath)
	}
	t.pos++
	return nil
}

// SkipSelector consumes an optional "*" selector.
func (t *Tokens) SkipSelector() {
	if t.pos < len(t.tokens) && !t.tokens[t.pos].IsIndex && t.tokens[t.pos].Field == "*" {
		t.pos++
	}
}

// Rest consumes and returns the remaining raw tokens.
func (t *Tokens) Rest() JSONPath {
	rest := JSONPath(t.tokens[t.pos:])
	t.pos = len(t.tokens)
	return rest
}

// Remaining consumes the remaining tokens as a sub-path.
func (t *Tokens) Remaining() []PathToken {
	rest := t.tokens[t.pos:]
	t.pos = len(t.tokens)
	return rest
}

// Done fails if tokens are left.
func (t *Tokens) Done() error {
	if t.pos < len(t.tokens) {
		return fmt.Errorf("%w: unexpected token %q", ErrInvalidPath, t.tokens[t.pos].String())
	}
	return nil
}
