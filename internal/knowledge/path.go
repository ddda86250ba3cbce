// Package knowledge resolves query paths over entities and decodes entity
// records. Entities are stored bi-temporally in entity_temporal_metadata and
// reach their types and links through reference tables.
package knowledge

import (
	"fmt"

	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
)

// Field names an attribute of an entity, or an edge to another record.
type Field string

const (
	FieldUUID              Field = "uuid"
	FieldEditionID         Field = "editionId"
	FieldDraftID           Field = "draftId"
	FieldArchived          Field = "archived"
	FieldOwnedByID         Field = "ownedById"
	FieldWebID             Field = "webId"
	FieldDecisionTime      Field = "decisionTime"
	FieldTransactionTime   Field = "transactionTime"
	FieldTypeBaseURLs      Field = "typeBaseUrls"
	FieldTypeVersions      Field = "typeVersions"
	FieldProperties        Field = "properties"
	FieldProvenance        Field = "provenance"
	FieldEditionProvenance Field = "editionProvenance"
	FieldPropertyMetadata  Field = "propertyMetadata"
	FieldEmbedding         Field = "embedding"
	FieldConfidence        Field = "confidence"

	FieldLeftEntityConfidence  Field = "leftEntityConfidence"
	FieldRightEntityConfidence Field = "rightEntityConfidence"
	FieldLeftEntityProvenance  Field = "leftEntityProvenance"
	FieldRightEntityProvenance Field = "rightEntityProvenance"

	FieldType          Field = "type"
	FieldLeftEntity    Field = "leftEntity"
	FieldRightEntity   Field = "rightEntity"
	FieldOutgoingLinks Field = "outgoingLinks"
	FieldIncomingLinks Field = "incomingLinks"
)

// EntityPath addresses an attribute of an entity. Edge fields continue in
// EntityType (for type) or Entity (for links and link endpoints).
type EntityPath struct {
	Field Field
	// JSON narrows properties, provenance and metadata columns.
	JSON       query.JSONPath
	Depth      query.InheritanceDepth
	EntityType *ontology.EntityTypePath
	Entity     *EntityPath
}

// EntityField returns the path of a plain entity field.
func EntityField(field Field) query.Path { return EntityPath{Field: field} }

type column struct {
	relations []query.Relation
	column    query.Column
	field     *query.JSONField
	expected  query.ParameterType
}

func jsonColumn(relations []query.Relation, c query.Column, path query.JSONPath) column {
	if len(path) == 0 {
		return column{relations: relations, column: c, expected: query.TypeObject}
	}
	return column{relations: relations, column: c, field: query.AtPath(path), expected: query.TypeAny}
}

func invalidField(field Field) error {
	return fmt.Errorf("%w: %q is not an entity field", query.ErrInvalidPath, field)
}

func (p EntityPath) resolveField() (column, error) {
	editions := []query.Relation{query.EntityEditionsRelation}
	leftEdge := []query.Relation{query.LeftEntityRelation}
	rightEdge := []query.Relation{query.RightEntityRelation}

	switch p.Field {
	case FieldUUID:
		return column{column: query.EntityTemporalEntityUUID, expected: query.TypeUUID}, nil
	case FieldEditionID:
		return column{column: query.EntityTemporalEditionID, expected: query.TypeUUID}, nil
	case FieldDraftID:
		return column{column: query.EntityTemporalDraftID, expected: query.TypeUUID}, nil
	case FieldOwnedByID, FieldWebID:
		return column{column: query.EntityTemporalWebID, expected: query.TypeUUID}, nil
	case FieldDecisionTime:
		return column{column: query.EntityTemporalDecisionTime, expected: query.TypeTimeInterval}, nil
	case FieldTransactionTime:
		return column{column: query.EntityTemporalTransactionTime, expected: query.TypeTimeInterval}, nil
	case FieldArchived:
		return column{relations: editions, column: query.EntityEditionsArchived, expected: query.TypeBoolean}, nil
	case FieldConfidence:
		return column{relations: editions, column: query.EntityEditionsConfidence, expected: query.TypeNumber}, nil
	case FieldTypeBaseURLs:
		return column{
			relations: []query.Relation{query.EntityIsOfTypesRelation},
			column:    query.EntityIsOfTypeIDsBaseURLs,
			expected:  query.VectorOf(query.TypeBaseURL),
		}, nil
	case FieldTypeVersions:
		return column{
			relations: []query.Relation{query.EntityIsOfTypesRelation},
			column:    query.EntityIsOfTypeIDsVersions,
			expected:  query.VectorOf(query.TypeOntologyTypeVersion),
		}, nil
	case FieldEmbedding:
		return column{
			relations: []query.Relation{query.EntityEmbeddingsRelation},
			column:    query.EntityEmbeddingsEmbedding,
			expected:  query.VectorOf(query.TypeNumber),
		}, nil
	case FieldProperties:
		return jsonColumn(editions, query.EntityEditionsProperties, p.JSON), nil
	case FieldPropertyMetadata:
		return jsonColumn(editions, query.EntityEditionsPropertyMetadata, p.JSON), nil
	case FieldEditionProvenance:
		return jsonColumn(editions, query.EntityEditionsProvenance, p.JSON), nil
	case FieldProvenance:
		return jsonColumn([]query.Relation{query.EntityIDsRelation}, query.EntityIDsProvenance, p.JSON), nil
	case FieldLeftEntityConfidence:
		return column{relations: leftEdge, column: query.EntityHasLeftConfidence, expected: query.TypeNumber}, nil
	case FieldRightEntityConfidence:
		return column{relations: rightEdge, column: query.EntityHasRightConfidence, expected: query.TypeNumber}, nil
	case FieldLeftEntityProvenance:
		return jsonColumn(leftEdge, query.EntityHasLeftProvenance, p.JSON), nil
	case FieldRightEntityProvenance:
		return jsonColumn(rightEdge, query.EntityHasRightProvenance, p.JSON), nil
	}
	return column{}, invalidField(p.Field)
}

// shortcut answers the id of a link endpoint or of an entity type from the
// edge row itself.
func (p EntityPath) shortcut() (column, bool) {
	if p.Field == FieldType && p.EntityType != nil && p.EntityType.Field == ontology.FieldOntologyID {
		relation, typeID, ok := query.Reference(query.EntityIsOfType(p.Depth), query.Outgoing).Edge()
		if !ok {
			return column{}, false
		}
		return column{relations: []query.Relation{relation}, column: typeID, expected: query.TypeUUID}, true
	}
	if p.Entity == nil || (p.Field != FieldLeftEntity && p.Field != FieldRightEntity) {
		return column{}, false
	}
	left := p.Field == FieldLeftEntity
	switch p.Entity.Field {
	case FieldUUID:
		if left {
			return column{relations: []query.Relation{query.LeftEntityRelation}, column: query.EntityHasLeftLeftEntityUUID, expected: query.TypeUUID}, true
		}
		return column{relations: []query.Relation{query.RightEntityRelation}, column: query.EntityHasRightRightEntityUUID, expected: query.TypeUUID}, true
	case FieldOwnedByID, FieldWebID:
		if left {
			return column{relations: []query.Relation{query.LeftEntityRelation}, column: query.EntityHasLeftLeftWebID, expected: query.TypeUUID}, true
		}
		return column{relations: []query.Relation{query.RightEntityRelation}, column: query.EntityHasRightRightWebID, expected: query.TypeUUID}, true
	}
	return column{}, false
}

// edge returns the relation of an edge field and the path continuing behind
// it.
func (p EntityPath) edge() (query.Relation, query.Path, bool, error) {
	var relation query.Relation
	switch p.Field {
	case FieldType:
		if p.EntityType == nil {
			return query.Relation{}, nil, true, fmt.Errorf("%w: entity edge %q has no target path", query.ErrInvalidPath, p.Field)
		}
		return query.Reference(query.EntityIsOfType(p.Depth), query.Outgoing), *p.EntityType, true, nil
	case FieldLeftEntity:
		relation = query.Reference(query.EntityHasLeftEntity, query.Outgoing)
	case FieldRightEntity:
		relation = query.Reference(query.EntityHasRightEntity, query.Outgoing)
	case FieldOutgoingLinks:
		relation = query.Reference(query.EntityHasLeftEntity, query.Incoming)
	case FieldIncomingLinks:
		relation = query.Reference(query.EntityHasRightEntity, query.Incoming)
	default:
		return query.Relation{}, nil, false, nil
	}
	if p.Entity == nil {
		return query.Relation{}, nil, true, fmt.Errorf("%w: entity edge %q has no target path", query.ErrInvalidPath, p.Field)
	}
	return relation, *p.Entity, true, nil
}

func (p EntityPath) Relations() ([]query.Relation, error) {
	if c, ok := p.shortcut(); ok {
		return c.relations, nil
	}
	relation, sub, isEdge, err := p.edge()
	if err != nil {
		return nil, err
	}
	if isEdge {
		rest, err := sub.Relations()
		if err != nil {
			return nil, err
		}
		return append([]query.Relation{relation}, rest...), nil
	}
	c, err := p.resolveField()
	return c.relations, err
}

func (p EntityPath) TerminatingColumn() (query.Column, *query.JSONField) {
	if c, ok := p.shortcut(); ok {
		return c.column, nil
	}
	if _, sub, isEdge, err := p.edge(); isEdge {
		if err != nil {
			return query.Column{}, nil
		}
		return sub.TerminatingColumn()
	}
	c, _ := p.resolveField()
	return c.column, c.field
}

func (p EntityPath) ExpectedType() query.ParameterType {
	if c, ok := p.shortcut(); ok {
		return c.expected
	}
	if _, sub, isEdge, err := p.edge(); isEdge {
		if err != nil {
			return ""
		}
		return sub.ExpectedType()
	}
	c, _ := p.resolveField()
	return c.expected
}

func (p EntityPath) String() string {
	if _, sub, isEdge, err := p.edge(); isEdge && err == nil {
		s := string(p.Field)
		if p.Field == FieldType && p.Depth.Bounded {
			s += "(inheritanceDepth=" + p.Depth.String() + ")"
		}
		return s + "." + sub.String()
	}
	if len(p.JSON) == 0 {
		return string(p.Field)
	}
	return string(p.Field) + "." + p.JSON.String()
}
