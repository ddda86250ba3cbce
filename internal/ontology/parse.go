package ontology

import (
	"fmt"

	"pg-graphquery/internal/query"
)

var sharedTokens = map[Field]bool{
	FieldOntologyID:          true,
	FieldBaseURL:             true,
	FieldVersion:             true,
	FieldVersionedURL:        true,
	FieldOwnedByID:           true,
	FieldEditionCreatedByID:  true,
	FieldEditionArchivedByID: true,
	FieldTitle:               true,
	FieldDescription:         true,
	FieldEmbedding:           true,
	FieldAdditionalMetadata:  true,
	FieldTransactionTime:     true,
}

func unknownToken(k kind, name string) error {
	return fmt.Errorf("%w: unknown %s path token %q", query.ErrInvalidPath, k.name, name)
}

// ParseDataTypePath parses the serialized form of a data type path, e.g.
// ["versionedUrl"] or ["schema", "format"].
func ParseDataTypePath(tokens []query.PathToken) (query.Path, error) {
	path, err := parseDataType(query.NewTokens(tokens))
	if err != nil {
		return nil, err
	}
	return path, nil
}

func parseDataType(tokens *query.Tokens) (DataTypePath, error) {
	token, err := tokens.Next()
	if err != nil {
		return DataTypePath{}, err
	}
	if err := token.NoParams(); err != nil {
		return DataTypePath{}, err
	}

	field := Field(token.Name)
	switch {
	case field == FieldSchema || field == FieldEditionProvenance:
		return DataTypePath{Field: field, JSON: tokens.Rest()}, nil
	case field == FieldType || sharedTokens[field]:
		return DataTypePath{Field: field}, tokens.Done()
	}
	return DataTypePath{}, unknownToken(dataTypeKind, token.Name)
}

// ParsePropertyTypePath parses the serialized form of a property type path,
// e.g. ["dataTypes", "*", "title"].
func ParsePropertyTypePath(tokens []query.PathToken) (query.Path, error) {
	path, err := parsePropertyType(query.NewTokens(tokens))
	if err != nil {
		return nil, err
	}
	return path, nil
}

func parsePropertyType(tokens *query.Tokens) (PropertyTypePath, error) {
	token, err := tokens.Next()
	if err != nil {
		return PropertyTypePath{}, err
	}
	if err := token.NoParams(); err != nil {
		return PropertyTypePath{}, err
	}

	field := Field(token.Name)
	switch {
	case field == FieldSchema || field == FieldEditionProvenance:
		return PropertyTypePath{Field: field, JSON: tokens.Rest()}, nil
	case field == FieldDataTypes:
		if err := tokens.Selector(); err != nil {
			return PropertyTypePath{}, err
		}
		sub, err := parseDataType(tokens)
		if err != nil {
			return PropertyTypePath{}, err
		}
		return PropertyTypePath{Field: field, DataType: &sub}, nil
	case field == FieldPropertyTypes:
		if err := tokens.Selector(); err != nil {
			return PropertyTypePath{}, err
		}
		sub, err := parsePropertyType(tokens)
		if err != nil {
			return PropertyTypePath{}, err
		}
		return PropertyTypePath{Field: field, PropertyType: &sub}, nil
	case sharedTokens[field]:
		return PropertyTypePath{Field: field}, tokens.Done()
	}
	return PropertyTypePath{}, unknownToken(propertyTypeKind, token.Name)
}

// ParseEntityTypePath parses the serialized form of an entity type path,
// e.g. ["inheritsFrom(inheritanceDepth=0)", "*", "baseUrl"].
func ParseEntityTypePath(tokens []query.PathToken) (query.Path, error) {
	path, err := ParseEntityTypeTokens(query.NewTokens(tokens))
	if err != nil {
		return nil, err
	}
	return path, nil
}

// ParseEntityTypeTokens parses an entity type path from the remaining
// tokens. Entity paths use it to continue behind a type edge.
func ParseEntityTypeTokens(tokens *query.Tokens) (EntityTypePath, error) {
	token, err := tokens.Next()
	if err != nil {
		return EntityTypePath{}, err
	}

	field := Field(token.Name)
	switch field {
	case FieldProperties:
		depth, err := token.InheritanceDepth()
		if err != nil {
			return EntityTypePath{}, err
		}
		if err := tokens.Selector(); err != nil {
			return EntityTypePath{}, err
		}
		sub, err := parsePropertyType(tokens)
		if err != nil {
			return EntityTypePath{}, err
		}
		return EntityTypePath{Field: field, Depth: depth, PropertyType: &sub}, nil
	case FieldLinks, FieldLinkDestinations, FieldInheritsFrom, FieldChildren:
		depth, err := token.InheritanceDepth()
		if err != nil {
			return EntityTypePath{}, err
		}
		if err := tokens.Selector(); err != nil {
			return EntityTypePath{}, err
		}
		sub, err := ParseEntityTypeTokens(tokens)
		if err != nil {
			return EntityTypePath{}, err
		}
		return EntityTypePath{Field: field, Depth: depth, EntityType: &sub}, nil
	}

	if err := token.NoParams(); err != nil {
		return EntityTypePath{}, err
	}
	switch {
	case field == FieldSchema || field == FieldClosedSchema || field == FieldEditionProvenance:
		return EntityTypePath{Field: field, JSON: tokens.Rest()}, nil
	case field == FieldRequired || field == FieldLabelProperty || field == FieldIcon || sharedTokens[field]:
		return EntityTypePath{Field: field}, tokens.Done()
	}
	return EntityTypePath{}, unknownToken(entityTypeKind, token.Name)
}
