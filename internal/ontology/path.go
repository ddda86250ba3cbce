// Package ontology resolves query paths over data types, property types and
// entity types and decodes their records.
package ontology

import (
	"fmt"

	"pg-graphquery/internal/query"
)

// Field names an attribute of an ontology type, or an edge to other types.
type Field string

const (
	FieldOntologyID          Field = "ontologyId"
	FieldBaseURL             Field = "baseUrl"
	FieldVersion             Field = "version"
	FieldVersionedURL        Field = "versionedUrl"
	FieldOwnedByID           Field = "ownedById"
	FieldFetchedAt           Field = "fetchedAt"
	FieldEditionCreatedByID  Field = "editionCreatedById"
	FieldEditionArchivedByID Field = "editionArchivedById"
	FieldTitle               Field = "title"
	FieldDescription         Field = "description"
	FieldType                Field = "type"
	FieldEmbedding           Field = "embedding"
	FieldAdditionalMetadata  Field = "additionalMetadata"
	FieldTransactionTime     Field = "transactionTime"
	FieldSchema              Field = "schema"
	FieldEditionProvenance   Field = "editionProvenance"

	FieldClosedSchema  Field = "closedSchema"
	FieldRequired      Field = "required"
	FieldLabelProperty Field = "labelProperty"
	FieldIcon          Field = "icon"

	FieldDataTypes        Field = "dataTypes"
	FieldPropertyTypes    Field = "propertyTypes"
	FieldProperties       Field = "properties"
	FieldLinks            Field = "links"
	FieldLinkDestinations Field = "linkDestinations"
	FieldInheritsFrom     Field = "inheritsFrom"
	FieldChildren         Field = "children"
)

// kind holds the tables of one ontology type kind.
type kind struct {
	name       string
	ids        query.Relation
	embeddings query.Relation
	embedding  query.Column
	schema     query.Column
}

var (
	dataTypeKind = kind{
		name:       "data type",
		ids:        query.DataTypeIDsRelation,
		embeddings: query.DataTypeEmbeddingsRelation,
		embedding:  embeddingColumn(query.DataTypeEmbeddings),
		schema:     query.DataTypesSchema,
	}
	propertyTypeKind = kind{
		name:       "property type",
		ids:        query.PropertyTypeIDsRelation,
		embeddings: query.PropertyTypeEmbeddingsRelation,
		embedding:  embeddingColumn(query.PropertyTypeEmbeddings),
		schema:     query.PropertyTypesSchema,
	}
	entityTypeKind = kind{
		name:       "entity type",
		ids:        query.EntityTypeIDsRelation,
		embeddings: query.EntityTypeEmbeddingsRelation,
		embedding:  embeddingColumn(query.EntityTypeEmbeddings),
		schema:     query.EntityTypesSchema,
	}
)

func embeddingColumn(t query.Table) query.Column {
	_, embedding, _ := query.OntologyEmbeddingColumns(t)
	return embedding
}

// column is where a field of an ontology type is stored.
type column struct {
	relations []query.Relation
	column    query.Column
	field     *query.JSONField
	expected  query.ParameterType
}

func jsonField(path query.JSONPath) *query.JSONField {
	if len(path) == 0 {
		return nil
	}
	return query.AtPath(path)
}

// resolve maps the fields every ontology kind shares. Entity type fields
// are resolved on top of it.
func (k kind) resolve(field Field, path query.JSONPath) (column, bool) {
	ids := []query.Relation{k.ids}
	ontologyIDs := []query.Relation{query.OntologyIDsRelation}

	switch field {
	case FieldOntologyID:
		return column{column: query.OntologyTemporalOntologyID, expected: query.TypeUUID}, true
	case FieldBaseURL:
		return column{relations: ontologyIDs, column: query.OntologyIDsBaseURL, expected: query.TypeBaseURL}, true
	case FieldVersion:
		return column{relations: ontologyIDs, column: query.OntologyIDsVersion, expected: query.TypeOntologyTypeVersion}, true
	case FieldVersionedURL:
		return column{relations: ids, column: k.schema, field: query.StaticKey("$id"), expected: query.TypeVersionedURL}, true
	case FieldOwnedByID:
		return column{
			relations: []query.Relation{query.OntologyOwnedMetadataRelation},
			column:    query.OntologyOwnedWebID,
			expected:  query.TypeUUID,
		}, true
	case FieldFetchedAt:
		return column{
			relations: []query.Relation{query.OntologyExternalMetadataRelation},
			column:    query.OntologyExternalFetchedAt,
			expected:  query.TypeTimestamp,
		}, true
	case FieldEditionCreatedByID:
		return column{column: query.OntologyTemporalProvenance, field: query.StaticKey("createdById"), expected: query.TypeUUID}, true
	case FieldEditionArchivedByID:
		return column{column: query.OntologyTemporalProvenance, field: query.StaticKey("archivedById"), expected: query.TypeUUID}, true
	case FieldTitle, FieldDescription:
		return column{relations: ids, column: k.schema, field: query.StaticKey(string(field)), expected: query.TypeText}, true
	case FieldEmbedding:
		return column{
			relations: []query.Relation{k.embeddings},
			column:    k.embedding,
			expected:  query.VectorOf(query.TypeNumber),
		}, true
	case FieldAdditionalMetadata:
		return column{
			relations: []query.Relation{query.OntologyAdditionalMetadataRelation},
			column:    query.OntologyAdditionalMetadataColumn,
			expected:  query.TypeObject,
		}, true
	case FieldTransactionTime:
		return column{column: query.OntologyTemporalTransactionTime, expected: query.TypeTimeInterval}, true
	case FieldSchema:
		return column{relations: ids, column: k.schema, field: jsonField(path), expected: jsonExpected(path)}, true
	case FieldEditionProvenance:
		return column{column: query.OntologyTemporalProvenance, field: jsonField(path), expected: jsonExpected(path)}, true
	}
	return column{}, false
}

func jsonExpected(path query.JSONPath) query.ParameterType {
	if len(path) == 0 {
		return query.TypeObject
	}
	return query.TypeAny
}

func fieldString(field Field, path query.JSONPath) string {
	if len(path) == 0 {
		return string(field)
	}
	return string(field) + "." + path.String()
}

func edgeString(field Field, depth *query.InheritanceDepth, sub fmt.Stringer) string {
	s := string(field)
	if depth != nil && depth.Bounded {
		s += "(inheritanceDepth=" + depth.String() + ")"
	}
	return s + ".*." + sub.String()
}

// shortcut returns the reference edge alone when the path behind it only
// asks for the ontology id of the target, which the edge row already holds.
func shortcut(relation query.Relation, sub query.Path) (query.Relation, query.Column, bool) {
	var field Field
	switch sub := sub.(type) {
	case DataTypePath:
		field = sub.Field
	case PropertyTypePath:
		field = sub.Field
	case EntityTypePath:
		field = sub.Field
	}
	if field != FieldOntologyID {
		return query.Relation{}, query.Column{}, false
	}
	return relation.Edge()
}

func invalidField(k kind, field Field) error {
	return fmt.Errorf("%w: %q is not a %s field", query.ErrInvalidPath, field, k.name)
}

func missingEdge(k kind, field Field) error {
	return fmt.Errorf("%w: %s edge %q has no target path", query.ErrInvalidPath, k.name, field)
}

// DataTypePath addresses a field of a data type.
type DataTypePath struct {
	Field Field
	// JSON narrows schema and editionProvenance.
	JSON query.JSONPath
}

// DataTypeField returns the path of a plain data type field.
func DataTypeField(field Field) query.Path { return DataTypePath{Field: field} }

func (p DataTypePath) resolve() (column, error) {
	if p.Field == FieldType {
		return column{
			relations: []query.Relation{dataTypeKind.ids},
			column:    dataTypeKind.schema,
			field:     query.StaticKey("type"),
			expected:  query.TypeText,
		}, nil
	}
	c, ok := dataTypeKind.resolve(p.Field, p.JSON)
	if !ok {
		return column{}, invalidField(dataTypeKind, p.Field)
	}
	return c, nil
}

func (p DataTypePath) Relations() ([]query.Relation, error) {
	c, err := p.resolve()
	return c.relations, err
}

func (p DataTypePath) TerminatingColumn() (query.Column, *query.JSONField) {
	c, _ := p.resolve()
	return c.column, c.field
}

func (p DataTypePath) ExpectedType() query.ParameterType {
	c, _ := p.resolve()
	return c.expected
}

func (p DataTypePath) String() string { return fieldString(p.Field, p.JSON) }

// PropertyTypePath addresses a field of a property type, or a field of the
// data types or property types it constrains.
type PropertyTypePath struct {
	Field        Field
	JSON         query.JSONPath
	DataType     *DataTypePath
	PropertyType *PropertyTypePath
}

// PropertyTypeField returns the path of a plain property type field.
func PropertyTypeField(field Field) query.Path { return PropertyTypePath{Field: field} }

// target returns the edge relation and the path continuing behind it.
func (p PropertyTypePath) target() (query.Relation, query.Path, bool, error) {
	switch p.Field {
	case FieldDataTypes:
		if p.DataType == nil {
			return query.Relation{}, nil, true, missingEdge(propertyTypeKind, p.Field)
		}
		return query.Reference(query.PropertyTypeConstrainsValuesOn, query.Outgoing), *p.DataType, true, nil
	case FieldPropertyTypes:
		if p.PropertyType == nil {
			return query.Relation{}, nil, true, missingEdge(propertyTypeKind, p.Field)
		}
		return query.Reference(query.PropertyTypeConstrainsPropertiesOn, query.Outgoing), *p.PropertyType, true, nil
	}
	return query.Relation{}, nil, false, nil
}

func (p PropertyTypePath) Relations() ([]query.Relation, error) {
	relation, sub, isEdge, err := p.target()
	if err != nil {
		return nil, err
	}
	if isEdge {
		if edge, _, ok := shortcut(relation, sub); ok {
			return []query.Relation{edge}, nil
		}
		rest, err := sub.Relations()
		if err != nil {
			return nil, err
		}
		return append([]query.Relation{relation}, rest...), nil
	}
	c, ok := propertyTypeKind.resolve(p.Field, p.JSON)
	if !ok {
		return nil, invalidField(propertyTypeKind, p.Field)
	}
	return c.relations, nil
}

func (p PropertyTypePath) TerminatingColumn() (query.Column, *query.JSONField) {
	if relation, sub, isEdge, err := p.target(); isEdge {
		if err != nil {
			return query.Column{}, nil
		}
		if _, column, ok := shortcut(relation, sub); ok {
			return column, nil
		}
		return sub.TerminatingColumn()
	}
	c, _ := propertyTypeKind.resolve(p.Field, p.JSON)
	return c.column, c.field
}

func (p PropertyTypePath) ExpectedType() query.ParameterType {
	if _, sub, isEdge, err := p.target(); isEdge {
		if err != nil {
			return ""
		}
		return sub.ExpectedType()
	}
	c, _ := propertyTypeKind.resolve(p.Field, p.JSON)
	return c.expected
}

func (p PropertyTypePath) String() string {
	if _, sub, isEdge, err := p.target(); isEdge && err == nil {
		return edgeString(p.Field, nil, sub)
	}
	return fieldString(p.Field, p.JSON)
}

// EntityTypePath addresses a field of an entity type, or a field of the
// property types or entity types it references. Depth bounds how many
// inheritance levels an edge follows; the zero value follows all of them.
type EntityTypePath struct {
	Field        Field
	JSON         query.JSONPath
	Depth        query.InheritanceDepth
	PropertyType *PropertyTypePath
	EntityType   *EntityTypePath
}

// EntityTypeField returns the path of a plain entity type field.
func EntityTypeField(field Field) query.Path { return EntityTypePath{Field: field} }

func (p EntityTypePath) target() (query.Relation, query.Path, bool, error) {
	entityEdge := func(table query.Table, direction query.Direction) (query.Relation, query.Path, bool, error) {
		if p.EntityType == nil {
			return query.Relation{}, nil, true, missingEdge(entityTypeKind, p.Field)
		}
		return query.Reference(table, direction), *p.EntityType, true, nil
	}

	switch p.Field {
	case FieldProperties:
		if p.PropertyType == nil {
			return query.Relation{}, nil, true, missingEdge(entityTypeKind, p.Field)
		}
		return query.Reference(query.EntityTypeConstrainsPropertiesOn(p.Depth), query.Outgoing), *p.PropertyType, true, nil
	case FieldLinks:
		return entityEdge(query.EntityTypeConstrainsLinksOn(p.Depth), query.Outgoing)
	case FieldLinkDestinations:
		return entityEdge(query.EntityTypeConstrainsLinkDestinationsOn(p.Depth), query.Outgoing)
	case FieldInheritsFrom:
		return entityEdge(query.EntityTypeInheritsFrom(p.Depth), query.Outgoing)
	case FieldChildren:
		return entityEdge(query.EntityTypeInheritsFrom(p.Depth), query.Incoming)
	}
	return query.Relation{}, nil, false, nil
}

func (p EntityTypePath) resolve() (column, bool) {
	ids := []query.Relation{entityTypeKind.ids}
	switch p.Field {
	case FieldClosedSchema:
		return column{relations: ids, column: query.EntityTypesClosedSchema, field: jsonField(p.JSON), expected: jsonExpected(p.JSON)}, true
	case FieldRequired:
		return column{
			relations: ids,
			column:    entityTypeKind.schema,
			field:     query.AtPath(query.JSONPath{query.Field("required")}),
			expected:  query.TypeAny,
		}, true
	case FieldLabelProperty:
		return column{relations: ids, column: query.EntityTypesLabelProperty, expected: query.TypeBaseURL}, true
	case FieldIcon:
		return column{relations: ids, column: query.EntityTypesIcon, expected: query.TypeText}, true
	}
	return entityTypeKind.resolve(p.Field, p.JSON)
}

func (p EntityTypePath) Relations() ([]query.Relation, error) {
	relation, sub, isEdge, err := p.target()
	if err != nil {
		return nil, err
	}
	if isEdge {
		if edge, _, ok := shortcut(relation, sub); ok {
			return []query.Relation{edge}, nil
		}
		rest, err := sub.Relations()
		if err != nil {
			return nil, err
		}
		return append([]query.Relation{relation}, rest...), nil
	}
	c, ok := p.resolve()
	if !ok {
		return nil, invalidField(entityTypeKind, p.Field)
	}
	return c.relations, nil
}

func (p EntityTypePath) TerminatingColumn() (query.Column, *query.JSONField) {
	if relation, sub, isEdge, err := p.target(); isEdge {
		if err != nil {
			return query.Column{}, nil
		}
		if _, column, ok := shortcut(relation, sub); ok {
			return column, nil
		}
		return sub.TerminatingColumn()
	}
	c, _ := p.resolve()
	return c.column, c.field
}

func (p EntityTypePath) ExpectedType() query.ParameterType {
	if _, sub, isEdge, err := p.target(); isEdge {
		if err != nil {
			return ""
		}
		return sub.ExpectedType()
	}
	c, _ := p.resolve()
	return c.expected
}

func (p EntityTypePath) String() string {
	if _, sub, isEdge, err := p.target(); isEdge && err == nil {
		return edgeString(p.Field, &p.Depth, sub)
	}
	return fieldString(p.Field, p.JSON)
}
