package query

import "strings"

// ParameterType is the type a path expects its parameters to have.
type ParameterType string

const (
	TypeBoolean             ParameterType = "boolean"
	TypeInteger             ParameterType = "integer"
	TypeNumber              ParameterType = "number"
	TypeText                ParameterType = "text"
	TypeUUID                ParameterType = "uuid"
	TypeBaseURL             ParameterType = "baseUrl"
	TypeVersionedURL        ParameterType = "versionedUrl"
	TypeOntologyTypeVersion ParameterType = "ontologyTypeVersion"
	TypeTimestamp           ParameterType = "timestamp"
	TypeTimeInterval        ParameterType = "timeInterval"
	TypeObject              ParameterType = "object"
	TypeAny                 ParameterType = "any"
)

// VectorOf returns the type of a list of elem.
func VectorOf(elem ParameterType) ParameterType {
	return ParameterType("vector<" + string(elem) + ">")
}

// Elem returns the element type of a vector type.
func (t ParameterType) Elem() (ParameterType, bool) {
	s := string(t)
	if !strings.HasPrefix(s, "vector<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return ParameterType(s[len("vector<") : len(s)-1]), true
}

// Column is a column of one of the store's tables.
type Column struct {
	Table    Table
	Name     string
	Type     ParameterType
	Nullable bool
}

func col(t Table, name string, typ ParameterType) Column {
	return Column{Table: t, Name: name, Type: typ}
}

func nullable(t Table, name string, typ ParameterType) Column {
	return Column{Table: t, Name: name, Type: typ, Nullable: true}
}

var (
	OntologyIDsOntologyID    = col(OntologyIDs, "ontology_id", TypeUUID)
	OntologyIDsBaseURL       = col(OntologyIDs, "base_url", TypeBaseURL)
	OntologyIDsVersion       = col(OntologyIDs, "version", TypeOntologyTypeVersion)
	OntologyIDsLatestVersion = col(OntologyIDs, "latest_version", TypeOntologyTypeVersion)

	OntologyTemporalOntologyID      = col(OntologyTemporalMetadata, "ontology_id", TypeUUID)
	OntologyTemporalTransactionTime = col(OntologyTemporalMetadata, "transaction_time", TypeTimeInterval)
	OntologyTemporalProvenance      = col(OntologyTemporalMetadata, "provenance", TypeAny)

	OntologyOwnedOntologyID = col(OntologyOwnedMetadata, "ontology_id", TypeUUID)
	OntologyOwnedWebID      = col(OntologyOwnedMetadata, "web_id", TypeUUID)

	OntologyExternalOntologyID = col(OntologyExternalMetadata, "ontology_id", TypeUUID)
	OntologyExternalFetchedAt  = col(OntologyExternalMetadata, "fetched_at", TypeTimestamp)

	OntologyAdditionalOntologyID     = col(OntologyAdditionalMetadata, "ontology_id", TypeUUID)
	OntologyAdditionalMetadataColumn = col(OntologyAdditionalMetadata, "additional_metadata", TypeObject)

	DataTypesOntologyID = col(DataTypes, "ontology_id", TypeUUID)
	DataTypesSchema     = nullable(DataTypes, "schema", TypeAny)

	PropertyTypesOntologyID = col(PropertyTypes, "ontology_id", TypeUUID)
	PropertyTypesSchema     = nullable(PropertyTypes, "schema", TypeAny)

	EntityTypesOntologyID    = col(EntityTypes, "ontology_id", TypeUUID)
	EntityTypesSchema        = nullable(EntityTypes, "schema", TypeAny)
	EntityTypesClosedSchema  = nullable(EntityTypes, "closed_schema", TypeAny)
	EntityTypesLabelProperty = nullable(EntityTypes, "label_property", TypeBaseURL)
	EntityTypesIcon          = nullable(EntityTypes, "icon", TypeText)

	EntityIDsWebID      = col(EntityIDs, "web_id", TypeUUID)
	EntityIDsEntityUUID = col(EntityIDs, "entity_uuid", TypeUUID)
	EntityIDsProvenance = col(EntityIDs, "provenance", TypeAny)

	EntityTemporalWebID           = col(EntityTemporalMetadata, "web_id", TypeUUID)
	EntityTemporalEntityUUID      = col(EntityTemporalMetadata, "entity_uuid", TypeUUID)
	EntityTemporalDraftID         = nullable(EntityTemporalMetadata, "draft_id", TypeUUID)
	EntityTemporalEditionID       = col(EntityTemporalMetadata, "entity_edition_id", TypeUUID)
	EntityTemporalDecisionTime    = col(EntityTemporalMetadata, "decision_time", TypeTimeInterval)
	EntityTemporalTransactionTime = col(EntityTemporalMetadata, "transaction_time", TypeTimeInterval)

	EntityEditionsEditionID        = col(EntityEditions, "entity_edition_id", TypeUUID)
	EntityEditionsProperties       = col(EntityEditions, "properties", TypeAny)
	EntityEditionsProvenance       = col(EntityEditions, "provenance", TypeAny)
	EntityEditionsArchived         = col(EntityEditions, "archived", TypeBoolean)
	EntityEditionsConfidence       = nullable(EntityEditions, "confidence", TypeNumber)
	EntityEditionsPropertyMetadata = nullable(EntityEditions, "property_metadata", TypeAny)

	EntityEmbeddingsWebID      = col(EntityEmbeddings, "web_id", TypeUUID)
	EntityEmbeddingsEntityUUID = col(EntityEmbeddings, "entity_uuid", TypeUUID)
	EntityEmbeddingsEmbedding  = col(EntityEmbeddings, "embedding", VectorOf(TypeNumber))
	EntityEmbeddingsProperty   = nullable(EntityEmbeddings, "property", TypeBaseURL)
	EntityEmbeddingsUpdatedAt  = col(EntityEmbeddings, "updated_at_transaction_time", TypeTimestamp)
	EntityEmbeddingsDistance   = col(EntityEmbeddings, "distance", TypeNumber)

	EntityIsOfTypeIDsEditionID = col(EntityIsOfTypeIDs, "entity_edition_id", TypeUUID)
	EntityIsOfTypeIDsBaseURLs  = col(EntityIsOfTypeIDs, "base_urls", VectorOf(TypeBaseURL))
	EntityIsOfTypeIDsVersions  = col(EntityIsOfTypeIDs, "versions", VectorOf(TypeOntologyTypeVersion))

	EntityHasLeftWebID            = col(EntityHasLeftEntity, "web_id", TypeUUID)
	EntityHasLeftEntityUUID       = col(EntityHasLeftEntity, "entity_uuid", TypeUUID)
	EntityHasLeftLeftWebID        = nullable(EntityHasLeftEntity, "left_web_id", TypeUUID)
	EntityHasLeftLeftEntityUUID   = nullable(EntityHasLeftEntity, "left_entity_uuid", TypeUUID)
	EntityHasLeftConfidence       = nullable(EntityHasLeftEntity, "confidence", TypeNumber)
	EntityHasLeftProvenance       = nullable(EntityHasLeftEntity, "provenance", TypeAny)
	EntityHasRightWebID           = col(EntityHasRightEntity, "web_id", TypeUUID)
	EntityHasRightEntityUUID      = col(EntityHasRightEntity, "entity_uuid", TypeUUID)
	EntityHasRightRightWebID      = nullable(EntityHasRightEntity, "right_web_id", TypeUUID)
	EntityHasRightRightEntityUUID = nullable(EntityHasRightEntity, "right_entity_uuid", TypeUUID)
	EntityHasRightConfidence      = nullable(EntityHasRightEntity, "confidence", TypeNumber)
	EntityHasRightProvenance      = nullable(EntityHasRightEntity, "provenance", TypeAny)
)

// OntologyEmbeddingColumns returns the columns of one of the ontology
// embedding tables.
func OntologyEmbeddingColumns(t Table) (ontologyID, embedding, distance Column) {
	return col(t, "ontology_id", TypeUUID), col(t, "embedding", VectorOf(TypeNumber)), col(t, "distance", TypeNumber)
}

// EntityIsOfTypeColumns returns the columns of the entity_is_of_type table at
// the depth of t.
func EntityIsOfTypeColumns(t Table) (editionID, entityTypeOntologyID, inheritanceDepth Column) {
	return col(t, "entity_edition_id", TypeUUID), col(t, "entity_type_ontology_id", TypeUUID), col(t, "inheritance_depth", TypeInteger)
}
