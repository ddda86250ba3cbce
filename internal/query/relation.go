package query

import "fmt"

// JoinType is the kind of SQL join used to attach a table.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
)

func (t JoinType) String() string {
	if t == LeftOuterJoin {
		return "LEFT OUTER JOIN"
	}
	return "INNER JOIN"
}

// Direction is the direction an edge is traversed in.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// ForeignKeyJoin joins the table of Join onto the table of On, comparing the
// columns pairwise.
type ForeignKeyJoin struct {
	On   []Column
	Join []Column
	Type JoinType
}

// Table is the table being joined.
func (f ForeignKeyJoin) Table() Table { return f.Join[0].Table }

// Reverse walks the same foreign key in the other direction, keeping the
// join type.
func (f ForeignKeyJoin) Reverse() ForeignKeyJoin {
	return ForeignKeyJoin{On: f.Join, Join: f.On, Type: f.Type}
}

func single(on, join Column, typ JoinType) ForeignKeyJoin {
	return ForeignKeyJoin{On: []Column{on}, Join: []Column{join}, Type: typ}
}

func pair(on1, on2, join1, join2 Column, typ JoinType) ForeignKeyJoin {
	return ForeignKeyJoin{On: []Column{on1, on2}, Join: []Column{join1, join2}, Type: typ}
}

// Relation is a named way to get from a record's base table to another
// table. Relations are comparable; the same edge at the same depth is always
// the same Relation.
type Relation struct {
	name      string
	table     Table
	direction Direction
}

var (
	OntologyIDsRelation                = Relation{name: "ontology_ids"}
	OntologyOwnedMetadataRelation      = Relation{name: "ontology_owned_metadata"}
	OntologyExternalMetadataRelation   = Relation{name: "ontology_external_metadata"}
	OntologyAdditionalMetadataRelation = Relation{name: "ontology_additional_metadata"}
	DataTypeIDsRelation                = Relation{name: "data_type_ids"}
	DataTypeEmbeddingsRelation         = Relation{name: "data_type_embeddings"}
	PropertyTypeIDsRelation            = Relation{name: "property_type_ids"}
	PropertyTypeEmbeddingsRelation     = Relation{name: "property_type_embeddings"}
	EntityTypeIDsRelation              = Relation{name: "entity_type_ids"}
	EntityTypeEmbeddingsRelation       = Relation{name: "entity_type_embeddings"}
	EntityIDsRelation                  = Relation{name: "entity_ids"}
	EntityEditionsRelation             = Relation{name: "entity_editions"}
	EntityEmbeddingsRelation           = Relation{name: "entity_embeddings"}
	EntityIsOfTypesRelation            = Relation{name: "entity_is_of_types"}
	LeftEntityRelation                 = Relation{name: "left_entity"}
	RightEntityRelation                = Relation{name: "right_entity"}
)

// Reference returns the relation following the edges stored in a reference
// table in the given direction.
func Reference(table Table, direction Direction) Relation {
	return Relation{name: "reference", table: table, direction: direction}
}

// Edge returns the relation that stops at the reference table of r, and the
// column of that table holding the id of the record on the far side. It
// reports false when r is not a reference relation or when its far side is
// not identified by a single column.
func (r Relation) Edge() (Relation, Column, bool) {
	if r.name != "reference" {
		return Relation{}, Column{}, false
	}
	source, target, ok := referenceJoins(r.table)
	if !ok || len(source.Join) != 1 || len(target.On) != 1 {
		return Relation{}, Column{}, false
	}
	far := target.On[0]
	if r.direction == Incoming {
		far = source.Join[0]
	}
	return Relation{name: "reference_edge", table: r.table, direction: r.direction}, far, true
}

func (r Relation) String() string {
	switch r.name {
	case "reference":
		return fmt.Sprintf("%s(%s)", r.table.Name(), r.direction)
	case "reference_edge":
		return fmt.Sprintf("%s(%s).edge", r.table.Name(), r.direction)
	}
	return r.name
}

// Joins lists the joins needed to reach the relation's table, in order. It is
// empty for a reference relation over a table that stores no edges.
func (r Relation) Joins() []ForeignKeyJoin {
	otm := OntologyTemporalOntologyID
	switch r {
	case OntologyIDsRelation:
		return []ForeignKeyJoin{single(otm, OntologyIDsOntologyID, InnerJoin)}
	case OntologyOwnedMetadataRelation:
		return []ForeignKeyJoin{single(otm, OntologyOwnedOntologyID, LeftOuterJoin)}
	case OntologyExternalMetadataRelation:
		return []ForeignKeyJoin{single(otm, OntologyExternalOntologyID, LeftOuterJoin)}
	case OntologyAdditionalMetadataRelation:
		return []ForeignKeyJoin{single(otm, OntologyAdditionalOntologyID, LeftOuterJoin)}
	case DataTypeIDsRelation:
		return []ForeignKeyJoin{single(otm, DataTypesOntologyID, InnerJoin)}
	case PropertyTypeIDsRelation:
		return []ForeignKeyJoin{single(otm, PropertyTypesOntologyID, InnerJoin)}
	case EntityTypeIDsRelation:
		return []ForeignKeyJoin{single(otm, EntityTypesOntologyID, InnerJoin)}
	case DataTypeEmbeddingsRelation:
		id, _, _ := OntologyEmbeddingColumns(DataTypeEmbeddings)
		return []ForeignKeyJoin{single(otm, id, LeftOuterJoin)}
	case PropertyTypeEmbeddingsRelation:
		id, _, _ := OntologyEmbeddingColumns(PropertyTypeEmbeddings)
		return []ForeignKeyJoin{single(otm, id, LeftOuterJoin)}
	case EntityTypeEmbeddingsRelation:
		id, _, _ := OntologyEmbeddingColumns(EntityTypeEmbeddings)
		return []ForeignKeyJoin{single(otm, id, LeftOuterJoin)}
	case EntityIDsRelation:
		return []ForeignKeyJoin{pair(
			EntityTemporalWebID, EntityTemporalEntityUUID,
			EntityIDsWebID, EntityIDsEntityUUID, InnerJoin)}
	case EntityEditionsRelation:
		return []ForeignKeyJoin{single(EntityTemporalEditionID, EntityEditionsEditionID, InnerJoin)}
	case EntityEmbeddingsRelation:
		return []ForeignKeyJoin{pair(
			EntityTemporalWebID, EntityTemporalEntityUUID,
			EntityEmbeddingsWebID, EntityEmbeddingsEntityUUID, LeftOuterJoin)}
	case EntityIsOfTypesRelation:
		return []ForeignKeyJoin{single(EntityTemporalEditionID, EntityIsOfTypeIDsEditionID, InnerJoin)}
	case LeftEntityRelation:
		return []ForeignKeyJoin{pair(
			EntityTemporalWebID, EntityTemporalEntityUUID,
			EntityHasLeftWebID, EntityHasLeftEntityUUID, LeftOuterJoin)}
	case RightEntityRelation:
		return []ForeignKeyJoin{pair(
			EntityTemporalWebID, EntityTemporalEntityUUID,
			EntityHasRightWebID, EntityHasRightEntityUUID, LeftOuterJoin)}
	}

	source, target, ok := referenceJoins(r.table)
	if !ok {
		return nil
	}
	if r.name == "reference_edge" {
		if r.direction == Incoming {
			return []ForeignKeyJoin{target.Reverse()}
		}
		return []ForeignKeyJoin{source}
	}
	if r.direction == Incoming {
		return []ForeignKeyJoin{target.Reverse(), source.Reverse()}
	}
	return []ForeignKeyJoin{source, target}
}

// referenceJoins returns the join from the source record into the reference
// table and from the reference table to the target record.
func referenceJoins(t Table) (source, target ForeignKeyJoin, ok bool) {
	ontologyEdge := func(sourceKind, targetKind string) (ForeignKeyJoin, ForeignKeyJoin, bool) {
		return single(OntologyTemporalOntologyID, col(t, "source_"+sourceKind+"_ontology_id", TypeUUID), InnerJoin),
			single(col(t, "target_"+targetKind+"_ontology_id", TypeUUID), OntologyTemporalOntologyID, InnerJoin),
			true
	}

	switch t.name {
	case PropertyTypeConstrainsValuesOn.name:
		return ontologyEdge("property_type", "data_type")
	case PropertyTypeConstrainsPropertiesOn.name:
		return ontologyEdge("property_type", "property_type")
	case "entity_type_constrains_properties_on":
		return ontologyEdge("entity_type", "property_type")
	case "entity_type_inherits_from", "entity_type_constrains_links_on", "entity_type_constrains_link_destinations_on":
		return ontologyEdge("entity_type", "entity_type")
	case "entity_is_of_type":
		editionID, typeID, _ := EntityIsOfTypeColumns(t)
		return single(EntityTemporalEditionID, editionID, InnerJoin),
			single(typeID, OntologyTemporalOntologyID, InnerJoin), true
	case EntityHasLeftEntity.name:
		return pair(EntityTemporalWebID, EntityTemporalEntityUUID, EntityHasLeftWebID, EntityHasLeftEntityUUID, LeftOuterJoin),
			pair(EntityHasLeftLeftWebID, EntityHasLeftLeftEntityUUID, EntityTemporalWebID, EntityTemporalEntityUUID, LeftOuterJoin), true
	case EntityHasRightEntity.name:
		return pair(EntityTemporalWebID, EntityTemporalEntityUUID, EntityHasRightWebID, EntityHasRightEntityUUID, LeftOuterJoin),
			pair(EntityHasRightRightWebID, EntityHasRightRightEntityUUID, EntityTemporalWebID, EntityTemporalEntityUUID, LeftOuterJoin), true
	}
	return ForeignKeyJoin{}, ForeignKeyJoin{}, false
}

// AdditionalConditions returns conditions the relation imposes on its
// aliased table beyond the join itself. A bounded depth on a closed
// reference table limits the inheritance depth of the rows joined.
func (r Relation) AdditionalConditions(table AliasedTable) []Condition {
	if r.name != "reference" && r.name != "reference_edge" {
		return nil
	}
	depth, inherits := table.Table.InheritanceDepth()
	if !inherits || !depth.Bounded || depth.Max == 0 {
		return nil
	}
	return []Condition{LessOrEqual(
		ColumnExpr(col(table.Table, "inheritance_depth", TypeInteger), table.Alias),
		Constant(int64(depth.Max)),
	)}
}
