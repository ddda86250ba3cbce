package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PathToken is one step into a JSON document: an object key or an array
// index.
type PathToken struct {
	Field   string
	Index   int
	IsIndex bool
}

// Field returns a key token.
func Field(name string) PathToken { return PathToken{Field: name} }

// Index returns an array index token.
func Index(i int) PathToken { return PathToken{Index: i, IsIndex: true} }

func (t PathToken) String() string {
	if t.IsIndex {
		return strconv.Itoa(t.Index)
	}
	return t.Field
}

// UnmarshalJSON accepts a string key or a non-negative integer index.
func (t *PathToken) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*t = Field(v)
	case float64:
		if v < 0 || v != float64(int(v)) {
			return fmt.Errorf("%w: %v is not an array index", ErrInvalidPath, v)
		}
		*t = Index(int(v))
	default:
		return fmt.Errorf("%w: path token must be a string or an index, got %s", ErrInvalidPath, data)
	}
	return nil
}

// MarshalJSON writes indexes as numbers and keys as strings.
func (t PathToken) MarshalJSON() ([]byte, error) {
	if t.IsIndex {
		return json.Marshal(t.Index)
	}
	return json.Marshal(t.Field)
}

// JSONPath addresses a value inside a JSON column. It renders in SQL/JSON
// path syntax and is bound as a parameter.
type JSONPath []PathToken

// String renders the path, e.g. $."name"[0].
func (p JSONPath) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, token := range p {
		if token.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(token.Index))
			b.WriteByte(']')
			continue
		}
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(token.Field, `"`, `\"`))
		b.WriteByte('"')
	}
	return b.String()
}

// JSONField narrows a JSON column. Exactly one of Key and Path is used: a
// Key is a static top-level key extracted as text, a Path is evaluated with
// jsonb_path_query_first.
type JSONField struct {
	Key  string
	Path JSONPath
}

// StaticKey extracts key as text.
func StaticKey(key string) *JSONField { return &JSONField{Key: key} }

// AtPath selects the first value matching path.
func AtPath(path JSONPath) *JSONField { return &JSONField{Path: path} }

func (f *JSONField) isPath() bool { return f != nil && f.Key == "" }

func (f *JSONField) String() string {
	if f.isPath() {
		return f.Path.String()
	}
	return f.Key
}
