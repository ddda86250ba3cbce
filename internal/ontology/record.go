package ontology

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pg-graphquery/internal/query"
	"pg-graphquery/internal/sqltype"
	"pg-graphquery/internal/temporal"
)

// VersionedURL identifies one version of an ontology type, e.g.
// https://example.com/types/data-type/text/v/1.
type VersionedURL struct {
	BaseURL string
	Version uint32
}

// ParseVersionedURL splits a versioned URL into base URL and version.
func ParseVersionedURL(raw string) (VersionedURL, error) {
	i := strings.LastIndex(raw, "/v/")
	if i < 0 {
		return VersionedURL{}, fmt.Errorf("%w: %q is not a versioned URL", query.ErrParameterConversion, raw)
	}
	version, err := strconv.ParseUint(raw[i+3:], 10, 32)
	if err != nil {
		return VersionedURL{}, fmt.Errorf("%w: %q has an invalid version: %v", query.ErrParameterConversion, raw, err)
	}
	return VersionedURL{BaseURL: raw[:i+1], Version: uint32(version)}, nil
}

func (u VersionedURL) String() string {
	return u.BaseURL + "v/" + strconv.FormatUint(uint64(u.Version), 10)
}

func (u VersionedURL) MarshalJSON() ([]byte, error) { return json.Marshal(u.String()) }

// Metadata is shared by every ontology record.
type Metadata struct {
	OntologyID         uuid.UUID         `json:"ontologyId"`
	RecordID           VersionedURL      `json:"recordId"`
	TransactionTime    temporal.Interval `json:"transactionTime"`
	OwnedByID          *uuid.UUID        `json:"ownedById,omitempty"`
	FetchedAt          *time.Time        `json:"fetchedAt,omitempty"`
	Provenance         json.RawMessage   `json:"provenance,omitempty"`
	AdditionalMetadata json.RawMessage   `json:"additionalMetadata,omitempty"`
}

type DataType struct {
	Schema   json.RawMessage `json:"schema"`
	Metadata Metadata        `json:"metadata"`
}

type PropertyType struct {
	Schema   json.RawMessage `json:"schema"`
	Metadata Metadata        `json:"metadata"`
}

type EntityType struct {
	Schema        json.RawMessage `json:"schema"`
	ClosedSchema  json.RawMessage `json:"closedSchema,omitempty"`
	LabelProperty *string         `json:"labelProperty,omitempty"`
	Icon          *string         `json:"icon,omitempty"`
	Metadata      Metadata        `json:"metadata"`
}

// Indices are the positions of the selected metadata columns.
type Indices struct {
	Schema             int
	OntologyID         int
	BaseURL            int
	Version            int
	TransactionTime    int
	OwnedByID          int
	FetchedAt          int
	Provenance         int
	AdditionalMetadata int
}

// EntityTypeIndices extend Indices with the entity type columns.
type EntityTypeIndices struct {
	Indices
	ClosedSchema  int
	LabelProperty int
	Icon          int
}

func selectMetadata(c *query.SelectCompiler, path func(Field) query.Path) (Indices, error) {
	var idx Indices
	for _, sel := range []struct {
		field Field
		index *int
	}{
		{FieldSchema, &idx.Schema},
		{FieldOntologyID, &idx.OntologyID},
		{FieldBaseURL, &idx.BaseURL},
		{FieldVersion, &idx.Version},
		{FieldTransactionTime, &idx.TransactionTime},
		{FieldOwnedByID, &idx.OwnedByID},
		{FieldFetchedAt, &idx.FetchedAt},
		{FieldEditionProvenance, &idx.Provenance},
		{FieldAdditionalMetadata, &idx.AdditionalMetadata},
	} {
		i, err := c.AddSelectionPath(path(sel.field))
		if err != nil {
			return Indices{}, err
		}
		*sel.index = i
	}
	return idx, nil
}

func decodeMetadata(row []any, idx Indices) (json.RawMessage, Metadata, error) {
	var (
		m   Metadata
		err error
	)
	wrap := func(column string, err error) error {
		return fmt.Errorf("decode %s: %w", column, err)
	}

	schema, err := sqltype.JSON(row[idx.Schema])
	if err != nil {
		return nil, m, wrap("schema", err)
	}
	if m.OntologyID, err = sqltype.UUID(row[idx.OntologyID]); err != nil {
		return nil, m, wrap("ontology_id", err)
	}
	if m.RecordID.BaseURL, err = sqltype.Text(row[idx.BaseURL]); err != nil {
		return nil, m, wrap("base_url", err)
	}
	version, err := sqltype.Int64(row[idx.Version])
	if err != nil {
		return nil, m, wrap("version", err)
	}
	m.RecordID.Version = uint32(version)
	if m.TransactionTime, err = sqltype.Interval(row[idx.TransactionTime]); err != nil {
		return nil, m, wrap("transaction_time", err)
	}
	if m.OwnedByID, err = sqltype.OptionalUUID(row[idx.OwnedByID]); err != nil {
		return nil, m, wrap("web_id", err)
	}
	if m.FetchedAt, err = sqltype.OptionalTime(row[idx.FetchedAt]); err != nil {
		return nil, m, wrap("fetched_at", err)
	}
	if m.Provenance, err = sqltype.JSON(row[idx.Provenance]); err != nil {
		return nil, m, wrap("provenance", err)
	}
	if m.AdditionalMetadata, err = sqltype.JSON(row[idx.AdditionalMetadata]); err != nil {
		return nil, m, wrap("additional_metadata", err)
	}
	return schema, m, nil
}

// vertexSortKeys orders ontology records by base URL, then version.
func vertexSortKeys(path func(Field) query.Path) []query.SortKey {
	return []query.SortKey{
		{Path: path(FieldBaseURL), Ordering: query.Ascending, Decode: textValue},
		{Path: path(FieldVersion), Ordering: query.Ascending, Decode: integerValue},
	}
}

func textValue(v any) (any, error) { return sqltype.Text(v) }
func integerValue(v any) (any, error) { return sqltype.Int64(v) }

// DataTypeCodec selects and decodes data types.
type DataTypeCodec struct{}

func (DataTypeCodec) Kind() string { return "data_type" }
func (DataTypeCodec) BaseTable() query.Table { return query.OntologyTemporalMetadata }
func (DataTypeCodec) VertexSortKeys() []query.SortKey { return vertexSortKeys(DataTypeField) }

func (DataTypeCodec) ParsePath(tokens []query.PathToken) (query.Path, error) {
	return ParseDataTypePath(tokens)
}

func (DataTypeCodec) Select(c *query.SelectCompiler) (Indices, error) {
	return selectMetadata(c, DataTypeField)
}

func (DataTypeCodec) Decode(row []any, idx Indices) (DataType, error) {
	schema, metadata, err := decodeMetadata(row, idx)
	if err != nil {
		return DataType{}, err
	}
	return DataType{Schema: schema, Metadata: metadata}, nil
}

// PropertyTypeCodec selects and decodes property types.
type PropertyTypeCodec struct{}

func (PropertyTypeCodec) Kind() string { return "property_type" }
func (PropertyTypeCodec) BaseTable() query.Table { return query.OntologyTemporalMetadata }
func (PropertyTypeCodec) VertexSortKeys() []query.SortKey { return vertexSortKeys(PropertyTypeField) }

func (PropertyTypeCodec) ParsePath(tokens []query.PathToken) (query.Path, error) {
	return ParsePropertyTypePath(tokens)
}

func (PropertyTypeCodec) Select(c *query.SelectCompiler) (Indices, error) {
	return selectMetadata(c, PropertyTypeField)
}

func (PropertyTypeCodec) Decode(row []any, idx Indices) (PropertyType, error) {
	schema, metadata, err := decodeMetadata(row, idx)
	if err != nil {
		return PropertyType{}, err
	}
	return PropertyType{Schema: schema, Metadata: metadata}, nil
}

// EntityTypeCodec selects and decodes entity types.
type EntityTypeCodec struct{}

func (EntityTypeCodec) Kind() string { return "entity_type" }
func (EntityTypeCodec) BaseTable() query.Table { return query.OntologyTemporalMetadata }
func (EntityTypeCodec) VertexSortKeys() []query.SortKey { return vertexSortKeys(EntityTypeField) }

func (EntityTypeCodec) ParsePath(tokens []query.PathToken) (query.Path, error) {
	return ParseEntityTypePath(tokens)
}

func (EntityTypeCodec) Select(c *query.SelectCompiler) (EntityTypeIndices, error) {
	base, err := selectMetadata(c, EntityTypeField)
	if err != nil {
		return EntityTypeIndices{}, err
	}
	idx := EntityTypeIndices{Indices: base}
	if idx.ClosedSchema, err = c.AddSelectionPath(EntityTypeField(FieldClosedSchema)); err != nil {
		return EntityTypeIndices{}, err
	}
	if idx.LabelProperty, err = c.AddSelectionPath(EntityTypeField(FieldLabelProperty)); err != nil {
		return EntityTypeIndices{}, err
	}
	if idx.Icon, err = c.AddSelectionPath(EntityTypeField(FieldIcon)); err != nil {
		return EntityTypeIndices{}, err
	}
	return idx, nil
}

func (EntityTypeCodec) Decode(row []any, idx EntityTypeIndices) (EntityType, error) {
	schema, metadata, err := decodeMetadata(row, idx.Indices)
	if err != nil {
		return EntityType{}, err
	}
	record := EntityType{Schema: schema, Metadata: metadata}
	if record.ClosedSchema, err = sqltype.JSON(row[idx.ClosedSchema]); err != nil {
		return EntityType{}, fmt.Errorf("decode closed_schema: %w", err)
	}
	if record.LabelProperty, err = sqltype.OptionalText(row[idx.LabelProperty]); err != nil {
		return EntityType{}, fmt.Errorf("decode label_property: %w", err)
	}
	if record.Icon, err = sqltype.OptionalText(row[idx.Icon]); err != nil {
		return EntityType{}, fmt.Errorf("decode icon: %w", err)
	}
	return record, nil
}

// ForVersionedURL matches the ontology type with the given versioned URL.
// path builds the paths of the type kind queried, e.g. DataTypeField.
func ForVersionedURL(url VersionedURL, path func(Field) query.Path) query.Filter {
	return query.AllOf(
		query.EqualTo(query.PathOperand(path(FieldBaseURL)), query.ParameterOperand(query.TextParameter(url.BaseURL))),
		query.EqualTo(query.PathOperand(path(FieldVersion)), query.ParameterOperand(query.VersionParameter(url.Version))),
	)
}

// ForOntologyID matches the ontology type stored under id.
func ForOntologyID(id uuid.UUID, path func(Field) query.Path) query.Filter {
	return query.EqualTo(query.PathOperand(path(FieldOntologyID)), query.ParameterOperand(query.UUIDParameter(id)))
}
