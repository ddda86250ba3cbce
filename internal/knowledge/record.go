package knowledge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
	"pg-graphquery/internal/sqltype"
	"pg-graphquery/internal/temporal"
)

// EntityID identifies an entity within a web. DraftID is set for draft
// revisions.
type EntityID struct {
	WebID      uuid.UUID  `json:"webId"`
	EntityUUID uuid.UUID  `json:"entityUuid"`
	DraftID    *uuid.UUID `json:"draftId,omitempty"`
}

// LinkData is present on link entities.
type LinkData struct {
	LeftEntityID          EntityID `json:"leftEntityId"`
	RightEntityID         EntityID `json:"rightEntityId"`
	LeftEntityConfidence  *float64 `json:"leftEntityConfidence,omitempty"`
	RightEntityConfidence *float64 `json:"rightEntityConfidence,omitempty"`
}

// Entity is one revision of an entity.
type Entity struct {
	ID                EntityID                `json:"id"`
	EditionID         uuid.UUID               `json:"editionId"`
	DecisionTime      temporal.Interval       `json:"decisionTime"`
	TransactionTime   temporal.Interval       `json:"transactionTime"`
	Archived          bool                    `json:"archived"`
	TypeIDs           []ontology.VersionedURL `json:"entityTypeIds"`
	Properties        json.RawMessage         `json:"properties"`
	PropertyMetadata  json.RawMessage         `json:"propertyMetadata,omitempty"`
	Provenance        json.RawMessage         `json:"provenance,omitempty"`
	EditionProvenance json.RawMessage         `json:"editionProvenance,omitempty"`
	Confidence        *float64                `json:"confidence,omitempty"`
	LinkData          *LinkData               `json:"linkData,omitempty"`
}

// Indices are the positions of the selected entity columns.
type Indices struct {
	WebID                 int
	EntityUUID            int
	DraftID               int
	EditionID             int
	DecisionTime          int
	TransactionTime       int
	Archived              int
	TypeBaseURLs          int
	TypeVersions          int
	Properties            int
	PropertyMetadata      int
	Provenance            int
	EditionProvenance     int
	Confidence            int
	LeftWebID             int
	LeftEntityUUID        int
	RightWebID            int
	RightEntityUUID       int
	LeftEntityConfidence  int
	RightEntityConfidence int
}

func edge(field, target Field) query.Path {
	return EntityPath{Field: field, Entity: &EntityPath{Field: target}}
}

// EntityCodec selects and decodes entities.
type EntityCodec struct{}

func (EntityCodec) Kind() string { return "entity" }
func (EntityCodec) BaseTable() query.Table { return query.EntityTemporalMetadata }

func (EntityCodec) ParsePath(tokens []query.PathToken) (query.Path, error) {
	return ParseEntityPath(tokens)
}

func (EntityCodec) Select(c *query.SelectCompiler) (Indices, error) {
	var idx Indices
	for _, sel := range []struct {
		path  query.Path
		index *int
	}{
		{EntityField(FieldWebID), &idx.WebID},
		{EntityField(FieldUUID), &idx.EntityUUID},
		{EntityField(FieldDraftID), &idx.DraftID},
		{EntityField(FieldEditionID), &idx.EditionID},
		{EntityField(FieldDecisionTime), &idx.DecisionTime},
		{EntityField(FieldTransactionTime), &idx.TransactionTime},
		{EntityField(FieldArchived), &idx.Archived},
		{EntityField(FieldTypeBaseURLs), &idx.TypeBaseURLs},
		{EntityField(FieldTypeVersions), &idx.TypeVersions},
		{EntityField(FieldProperties), &idx.Properties},
		{EntityField(FieldPropertyMetadata), &idx.PropertyMetadata},
		{EntityField(FieldProvenance), &idx.Provenance},
		{EntityField(FieldEditionProvenance), &idx.EditionProvenance},
		{EntityField(FieldConfidence), &idx.Confidence},
		{edge(FieldLeftEntity, FieldWebID), &idx.LeftWebID},
		{edge(FieldLeftEntity, FieldUUID), &idx.LeftEntityUUID},
		{edge(FieldRightEntity, FieldWebID), &idx.RightWebID},
		{edge(FieldRightEntity, FieldUUID), &idx.RightEntityUUID},
		{EntityField(FieldLeftEntityConfidence), &idx.LeftEntityConfidence},
		{EntityField(FieldRightEntityConfidence), &idx.RightEntityConfidence},
	} {
		i, err := c.AddSelectionPath(sel.path)
		if err != nil {
			return Indices{}, err
		}
		*sel.index = i
	}
	return idx, nil
}

func (EntityCodec) Decode(row []any, idx Indices) (Entity, error) {
	var (
		e   Entity
		err error
	)
	wrap := func(column string, err error) (Entity, error) {
		return Entity{}, fmt.Errorf("decode %s: %w", column, err)
	}

	if e.ID.WebID, err = sqltype.UUID(row[idx.WebID]); err != nil {
		return wrap("web_id", err)
	}
	if e.ID.EntityUUID, err = sqltype.UUID(row[idx.EntityUUID]); err != nil {
		return wrap("entity_uuid", err)
	}
	if e.ID.DraftID, err = sqltype.OptionalUUID(row[idx.DraftID]); err != nil {
		return wrap("draft_id", err)
	}
	if e.EditionID, err = sqltype.UUID(row[idx.EditionID]); err != nil {
		return wrap("entity_edition_id", err)
	}
	if e.DecisionTime, err = sqltype.Interval(row[idx.DecisionTime]); err != nil {
		return wrap("decision_time", err)
	}
	if e.TransactionTime, err = sqltype.Interval(row[idx.TransactionTime]); err != nil {
		return wrap("transaction_time", err)
	}
	if e.Archived, err = sqltype.Bool(row[idx.Archived]); err != nil {
		return wrap("archived", err)
	}
	if e.TypeIDs, err = decodeTypeIDs(row[idx.TypeBaseURLs], row[idx.TypeVersions]); err != nil {
		return wrap("entity types", err)
	}
	if e.Properties, err = sqltype.JSON(row[idx.Properties]); err != nil {
		return wrap("properties", err)
	}
	if e.PropertyMetadata, err = sqltype.JSON(row[idx.PropertyMetadata]); err != nil {
		return wrap("property_metadata", err)
	}
	if e.Provenance, err = sqltype.JSON(row[idx.Provenance]); err != nil {
		return wrap("provenance", err)
	}
	if e.EditionProvenance, err = sqltype.JSON(row[idx.EditionProvenance]); err != nil {
		return wrap("edition provenance", err)
	}
	if e.Confidence, err = sqltype.OptionalFloat64(row[idx.Confidence]); err != nil {
		return wrap("confidence", err)
	}
	if e.LinkData, err = decodeLinkData(row, idx); err != nil {
		return wrap("link data", err)
	}
	return e, nil
}

func decodeTypeIDs(baseURLs, versions any) ([]ontology.VersionedURL, error) {
	if baseURLs == nil || versions == nil {
		return nil, nil
	}
	urls, err := sqltype.TextArray(baseURLs)
	if err != nil {
		return nil, err
	}
	numbers, err := sqltype.Int64Array(versions)
	if err != nil {
		return nil, err
	}
	if len(urls) != len(numbers) {
		return nil, fmt.Errorf("%d base URLs but %d versions", len(urls), len(numbers))
	}
	ids := make([]ontology.VersionedURL, len(urls))
	for i := range urls {
		ids[i] = ontology.VersionedURL{BaseURL: urls[i], Version: uint32(numbers[i])}
	}
	return ids, nil
}

// decodeLinkData returns nil unless both endpoints are set.
func decodeLinkData(row []any, idx Indices) (*LinkData, error) {
	leftWeb, err := sqltype.OptionalUUID(row[idx.LeftWebID])
	if err != nil {
		return nil, err
	}
	leftUUID, err := sqltype.OptionalUUID(row[idx.LeftEntityUUID])
	if err != nil {
		return nil, err
	}
	rightWeb, err := sqltype.OptionalUUID(row[idx.RightWebID])
	if err != nil {
		return nil, err
	}
	rightUUID, err := sqltype.OptionalUUID(row[idx.RightEntityUUID])
	if err != nil {
		return nil, err
	}
	if leftWeb == nil || leftUUID == nil || rightWeb == nil || rightUUID == nil {
		return nil, nil
	}

	link := &LinkData{
		LeftEntityID:  EntityID{WebID: *leftWeb, EntityUUID: *leftUUID},
		RightEntityID: EntityID{WebID: *rightWeb, EntityUUID: *rightUUID},
	}
	if link.LeftEntityConfidence, err = sqltype.OptionalFloat64(row[idx.LeftEntityConfidence]); err != nil {
		return nil, err
	}
	if link.RightEntityConfidence, err = sqltype.OptionalFloat64(row[idx.RightEntityConfidence]); err != nil {
		return nil, err
	}
	return link, nil
}

// VertexSortKeys orders entities by revision, newest first, then by id.
// The revision is the start of the decision time interval.
func (EntityCodec) VertexSortKeys() []query.SortKey {
	return []query.SortKey{
		{
			Path:     EntityField(FieldDecisionTime),
			Ordering: query.Descending,
			Project:  query.Lower,
			Type:     query.TypeTimestamp,
			Decode:   revision,
		},
		{Path: EntityField(FieldUUID), Ordering: query.Ascending, Decode: uuidValue},
		{Path: EntityField(FieldDraftID), Ordering: query.Ascending, Nulls: query.NullsFirst, Decode: uuidValue},
		{Path: EntityField(FieldWebID), Ordering: query.Ascending, Decode: uuidValue},
	}
}

func revision(v any) (any, error) {
	interval, err := sqltype.Interval(v)
	if err != nil {
		return nil, err
	}
	if interval.Start.Kind == temporal.BoundUnbounded {
		return nil, nil
	}
	return interval.Start.Limit.UTC().Truncate(time.Microsecond), nil
}

// uuidValue keeps ids in their text form, which survives the cursor
// encoding unchanged.
func uuidValue(v any) (any, error) {
	id, err := sqltype.UUID(v)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// ForEntityByEntityID matches every revision of the entity with id. A draft
// id additionally restricts the match to that draft.
func ForEntityByEntityID(id EntityID) query.Filter {
	filters := []query.Filter{
		query.EqualTo(query.PathOperand(EntityField(FieldWebID)), query.ParameterOperand(query.UUIDParameter(id.WebID))),
		query.EqualTo(query.PathOperand(EntityField(FieldUUID)), query.ParameterOperand(query.UUIDParameter(id.EntityUUID))),
	}
	if id.DraftID != nil {
		filters = append(filters, query.EqualTo(
			query.PathOperand(EntityField(FieldDraftID)),
			query.ParameterOperand(query.UUIDParameter(*id.DraftID)),
		))
	}
	return query.AllOf(filters...)
}
