// Package request decodes structural query documents and prepares them for
// compilation against one record kind.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"pg-graphquery/internal/query"
	"pg-graphquery/internal/temporal"
)

// ErrInvalidDocument is returned for documents that cannot be decoded.
var ErrInvalidDocument = errors.New("invalid query document")

// Document is a structural query as submitted by a caller.
type Document struct {
	Filter             json.RawMessage          `json:"filter"`
	GraphResolveDepths *GraphResolveDepths      `json:"graphResolveDepths,omitempty"`
	TemporalAxes       *temporal.UnresolvedAxes `json:"temporalAxes,omitempty"`
	IncludeDrafts      bool                     `json:"includeDrafts"`
	Limit              *uint64                  `json:"limit,omitempty"`
	Cursor             string                   `json:"cursor,omitempty"`
	Sorting            []SortingEntry           `json:"sorting,omitempty"`
}

// SortingEntry orders a paginated read by one path.
type SortingEntry struct {
	Path     []query.PathToken  `json:"path"`
	Ordering query.Ordering     `json:"ordering"`
	Nulls    query.NullOrdering `json:"nulls,omitempty"`
}

// OutgoingDepth bounds how far an edge is followed from a root.
type OutgoingDepth struct {
	Outgoing uint8 `json:"outgoing"`
}

// EdgeDepths bounds an edge in both directions.
type EdgeDepths struct {
	Incoming uint8 `json:"incoming"`
	Outgoing uint8 `json:"outgoing"`
}

// GraphResolveDepths says which edges a subgraph response would follow from
// its roots. Depths are accepted and reported, but no traversal is done.
type GraphResolveDepths struct {
	InheritsFrom                 OutgoingDepth `json:"inheritsFrom"`
	ConstrainsValuesOn           OutgoingDepth `json:"constrainsValuesOn"`
	ConstrainsPropertiesOn       OutgoingDepth `json:"constrainsPropertiesOn"`
	ConstrainsLinksOn            OutgoingDepth `json:"constrainsLinksOn"`
	ConstrainsLinkDestinationsOn OutgoingDepth `json:"constrainsLinkDestinationsOn"`
	IsOfType                     OutgoingDepth `json:"isOfType"`
	HasLeftEntity                EdgeDepths    `json:"hasLeftEntity"`
	HasRightEntity               EdgeDepths    `json:"hasRightEntity"`
}

// Traverses reports whether any edge would be followed.
func (d GraphResolveDepths) Traverses() bool {
	return d != GraphResolveDepths{}
}

// Decode reads a document in JSON or YAML form. Anything not starting with
// '{' is treated as YAML.
func Decode(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		trimmed = converted
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if dec.More() {
		return Document{}, fmt.Errorf("%w: trailing data after document", ErrInvalidDocument)
	}
	return doc, nil
}

// DecodeReader reads a whole document from r.
func DecodeReader(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read query document: %w", err)
	}
	return Decode(data)
}

// yamlToJSON re-encodes a YAML document as JSON so that the JSON decoders of
// filters, paths and temporal bounds apply unchanged.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	normalized, err := jsonCompatible(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func jsonCompatible(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			converted, err := jsonCompatible(value)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", key)
			}
			converted, err := jsonCompatible(value)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			converted, err := jsonCompatible(value)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}
	return v, nil
}
