package knowledge

import (
	"fmt"

	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
)

var plainFields = map[Field]bool{
	FieldUUID:                  true,
	FieldEditionID:             true,
	FieldDraftID:               true,
	FieldArchived:              true,
	FieldOwnedByID:             true,
	FieldWebID:                 true,
	FieldDecisionTime:          true,
	FieldTransactionTime:       true,
	FieldTypeBaseURLs:          true,
	FieldTypeVersions:          true,
	FieldEmbedding:             true,
	FieldConfidence:            true,
	FieldLeftEntityConfidence:  true,
	FieldRightEntityConfidence: true,
}

var jsonFields = map[Field]bool{
	FieldProvenance:            true,
	FieldEditionProvenance:     true,
	FieldPropertyMetadata:      true,
	FieldLeftEntityProvenance:  true,
	FieldRightEntityProvenance: true,
}

// Meta tokens inside a properties path switch to the metadata of the
// addressed property.
const (
	metaDataTypeID = "dataTypeId"
	metaConvert    = "convert"
)

// ParseEntityPath parses the serialized form of an entity path, e.g.
// ["leftEntity", "uuid"] or ["type(inheritanceDepth=0)", "baseUrl"].
func ParseEntityPath(tokens []query.PathToken) (query.Path, error) {
	path, err := parseEntity(query.NewTokens(tokens))
	if err != nil {
		return nil, err
	}
	return path, nil
}

func parseEntity(tokens *query.Tokens) (EntityPath, error) {
	token, err := tokens.Next()
	if err != nil {
		return EntityPath{}, err
	}
	field := Field(token.Name)

	if field == FieldType {
		depth, err := token.InheritanceDepth()
		if err != nil {
			return EntityPath{}, err
		}
		tokens.SkipSelector()
		sub, err := ontology.ParseEntityTypeTokens(tokens)
		if err != nil {
			return EntityPath{}, err
		}
		return EntityPath{Field: field, Depth: depth, EntityType: &sub}, nil
	}

	if err := token.NoParams(); err != nil {
		return EntityPath{}, err
	}
	switch {
	case field == FieldLeftEntity || field == FieldRightEntity ||
		field == FieldOutgoingLinks || field == FieldIncomingLinks:
		tokens.SkipSelector()
		sub, err := parseEntity(tokens)
		if err != nil {
			return EntityPath{}, err
		}
		return EntityPath{Field: field, Entity: &sub}, nil
	case field == FieldProperties:
		return parseProperties(tokens.Rest())
	case jsonFields[field]:
		return EntityPath{Field: field, JSON: tokens.Rest()}, nil
	case plainFields[field]:
		return EntityPath{Field: field}, tokens.Done()
	}
	return EntityPath{}, fmt.Errorf("%w: unknown entity path token %q", query.ErrInvalidPath, token.Name)
}

// parseProperties reads a path into the properties of an entity. A
// dataTypeId meta token redirects the path to the property metadata,
// which nests every step under "value" and keeps the data type in
// "metadata".
func parseProperties(rest query.JSONPath) (EntityPath, error) {
	for i, token := range rest {
		if token.IsIndex {
			continue
		}
		switch token.Field {
		case metaConvert:
			return EntityPath{}, fmt.Errorf("%w: the %q meta token is not supported", query.ErrInvalidPath, metaConvert)
		case metaDataTypeID:
			if i != len(rest)-1 {
				return EntityPath{}, fmt.Errorf("%w: %q must be the last token of a properties path", query.ErrInvalidPath, metaDataTypeID)
			}
			metadata := make(query.JSONPath, 0, 2*i+2)
			for _, step := range rest[:i] {
				if step.IsIndex {
					return EntityPath{}, fmt.Errorf("%w: unexpected index in a property metadata path", query.ErrInvalidPath)
				}
				metadata = append(metadata, query.Field("value"), step)
			}
			metadata = append(metadata, query.Field("metadata"), query.Field(metaDataTypeID))
			return EntityPath{Field: FieldPropertyMetadata, JSON: metadata}, nil
		}
	}
	return EntityPath{Field: FieldProperties, JSON: rest}, nil
}
