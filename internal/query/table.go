// Package query compiles filters over graph records into PostgreSQL SELECT
// statements. It owns the table and relation model of the store, the
// expression and condition trees, alias allocation and the WHERE/cursor
// rendering.
package query

import (
	"strconv"

	"pg-graphquery/internal/sqlutil"
)

// InheritanceDepth bounds how far a transitive edge is followed. The zero
// value is unbounded.
type InheritanceDepth struct {
	Max     uint32
	Bounded bool
}

// Depth returns a bounded inheritance depth.
func Depth(n uint32) InheritanceDepth {
	return InheritanceDepth{Max: n, Bounded: true}
}

func (d InheritanceDepth) String() string {
	if !d.Bounded {
		return "*"
	}
	return strconv.FormatUint(uint64(d.Max), 10)
}

// Table is one of the tables (or views) of the store. Tables are comparable
// and two values are equal when they name the same relation at the same
// inheritance depth.
type Table struct {
	name      string
	reference bool
	inherits  bool
	depth     InheritanceDepth
}

var (
	OntologyIDs                = Table{name: "ontology_ids"}
	OntologyTemporalMetadata   = Table{name: "ontology_temporal_metadata"}
	OntologyOwnedMetadata      = Table{name: "ontology_owned_metadata"}
	OntologyExternalMetadata   = Table{name: "ontology_external_metadata"}
	OntologyAdditionalMetadata = Table{name: "ontology_additional_metadata"}
	DataTypes                  = Table{name: "data_types"}
	DataTypeEmbeddings         = Table{name: "data_type_embeddings"}
	PropertyTypes              = Table{name: "property_types"}
	PropertyTypeEmbeddings     = Table{name: "property_type_embeddings"}
	EntityTypes                = Table{name: "entity_types"}
	EntityTypeEmbeddings       = Table{name: "entity_type_embeddings"}
	EntityIDs                  = Table{name: "entity_ids"}
	EntityTemporalMetadata     = Table{name: "entity_temporal_metadata"}
	EntityEditions             = Table{name: "entity_editions"}
	EntityEmbeddings           = Table{name: "entity_embeddings"}
	EntityIsOfTypeIDs          = Table{name: "entity_is_of_type_ids"}
)

// Reference tables store edges between records.
var (
	PropertyTypeConstrainsValuesOn     = Table{name: "property_type_constrains_values_on", reference: true}
	PropertyTypeConstrainsPropertiesOn = Table{name: "property_type_constrains_properties_on", reference: true}
	EntityHasLeftEntity                = Table{name: "entity_has_left_entity", reference: true}
	EntityHasRightEntity               = Table{name: "entity_has_right_entity", reference: true}
)

// Inheriting reference tables. The plain table only holds direct edges; the
// closed_ variant additionally holds the edges inherited through parents,
// annotated with their inheritance depth.
func EntityTypeConstrainsPropertiesOn(d InheritanceDepth) Table {
	return inheriting("entity_type_constrains_properties_on", d)
}

func EntityTypeInheritsFrom(d InheritanceDepth) Table {
	return inheriting("entity_type_inherits_from", d)
}

func EntityTypeConstrainsLinksOn(d InheritanceDepth) Table {
	return inheriting("entity_type_constrains_links_on", d)
}

func EntityTypeConstrainsLinkDestinationsOn(d InheritanceDepth) Table {
	return inheriting("entity_type_constrains_link_destinations_on", d)
}

func EntityIsOfType(d InheritanceDepth) Table {
	return inheriting("entity_is_of_type", d)
}

func inheriting(name string, d InheritanceDepth) Table {
	return Table{name: name, reference: true, inherits: true, depth: d}
}

// Name is the relation name to select from.
func (t Table) Name() string {
	if t.inherits && !(t.depth.Bounded && t.depth.Max == 0) {
		return "closed_" + t.name
	}
	return t.name
}

// IsReference reports whether t stores edges.
func (t Table) IsReference() bool { return t.reference }

// InheritanceDepth returns the depth of an inheriting reference table.
func (t Table) InheritanceDepth() (InheritanceDepth, bool) {
	return t.depth, t.inherits
}

// WithDepth returns t at another inheritance depth. Tables that do not
// inherit are returned unchanged.
func (t Table) WithDepth(d InheritanceDepth) Table {
	if t.inherits {
		t.depth = d
	}
	return t
}

func (t Table) String() string { return t.Name() }

// Alias distinguishes multiple joins of the same table. ConditionIndex is the
// filter the join was created for, ChainDepth the position along a path and
// Number disambiguates different joins at the same position.
type Alias struct {
	ConditionIndex int
	ChainDepth     int
	Number         int
}

// AliasedTable is a table under a specific alias.
type AliasedTable struct {
	Table Table
	Alias Alias
}

// Aliased pairs t with alias.
func (t Table) Aliased(alias Alias) AliasedTable {
	return AliasedTable{Table: t, Alias: alias}
}

// Name is the rendered alias, e.g. ontology_ids_0_1_0.
func (a AliasedTable) Name() string {
	return a.Table.Name() + "_" + strconv.Itoa(a.Alias.ConditionIndex) + "_" +
		strconv.Itoa(a.Alias.ChainDepth) + "_" + strconv.Itoa(a.Alias.Number)
}

// From renders "table" AS "alias", qualifying the table with schema when it
// is set.
func (a AliasedTable) From(schema *SchemaReference) string {
	table := TableReference{Schema: schema, Name: a.Table.Name()}
	return table.String() + " AS " + sqlutil.QuoteIdentifier(a.Name())
}

// SchemaReference optionally qualifies a table with schema and database.
type SchemaReference struct {
	Database string
	Name     string
}

// TableReference is a possibly qualified, possibly aliased table name.
type TableReference struct {
	Schema *SchemaReference
	Name   string
	Alias  *Alias
}

// String renders the reference, e.g. "db"."public"."data_types_0_1_0".
func (r TableReference) String() string {
	name := r.Name
	if r.Alias != nil {
		name = name + "_" + strconv.Itoa(r.Alias.ConditionIndex) + "_" +
			strconv.Itoa(r.Alias.ChainDepth) + "_" + strconv.Itoa(r.Alias.Number)
	}
	if r.Schema == nil {
		return sqlutil.QuoteQualified(name)
	}
	return sqlutil.QuoteQualified(r.Schema.Database, r.Schema.Name, name)
}
