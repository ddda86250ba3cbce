package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionTranspile(t *testing.T) {
	a := ColumnExpr(EntityTemporalEntityUUID, Alias{})
	b := Placeholder(1)

	tests := []struct {
		name      string
		condition Condition
		want      string
	}{
		{"empty all", All(), "TRUE"},
		{"empty any", Any(), "FALSE"},
		{"single any", Any(Equal(b, b)), "($1 = $1)"},
		{"all", All(Equal(b, b), NotEqual(b, b)), "($1 = $1) AND ($1 != $1)"},
		{"any", Any(Less(b, b), Greater(b, b)), "(($1 < $1) OR ($1 > $1))"},
		{"not", Not(LessOrEqual(b, b)), "NOT($1 <= $1)"},
		{"is null", Equal(a, nil), `"entity_temporal_metadata_0_0_0"."entity_uuid" IS NULL`},
		{"null on left", NotEqual(nil, a), `"entity_temporal_metadata_0_0_0"."entity_uuid" IS NOT NULL`},
		{"null equals null", Equal(nil, nil), "NULL IS NULL"},
		{"null not equals null", NotEqual(nil, nil), "NULL IS NOT NULL"},
		{"in", In(a, b), `"entity_temporal_metadata_0_0_0"."entity_uuid" = ANY($1)`},
		{"contains timestamp", ContainsTimestamp(b, Placeholder(2)), "$1 @> $2::TIMESTAMPTZ"},
		{"overlap", Overlap(b, Placeholder(2)), "$1 && $2"},
		{"starts with", StartsWith(b, Placeholder(2)), "starts_with($1, $2)"},
		{"ends with", EndsWith(b, Placeholder(2)), "right($1, length($2)) = $2"},
		{"contains segment", ContainsSegment(b, Placeholder(2)), "strpos($1, $2) > 0"},
		{"greater or equal constant", GreaterOrEqual(b, Constant(int64(3))), "$1 >= 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transpile(tt.condition))
		})
	}
}

func TestExpressionTranspile(t *testing.T) {
	version := ColumnExpr(OntologyIDsVersion, Alias{ConditionIndex: 1, ChainDepth: 2, Number: 3})
	assert.Equal(t, `"ontology_ids_1_2_3"."version"`, Transpile(version))
	assert.Equal(t, `MAX("ontology_ids_1_2_3"."version") OVER (PARTITION BY $1)`, Transpile(Window(Max(version), Placeholder(1))))
	assert.Equal(t, `$1 <=> $2`, Transpile(CosineDistance(Placeholder(1), Placeholder(2))))
	assert.Equal(t, `"data_types_0_1_0"."schema"->>'title'`, Transpile(JSONKeyExpr(DataTypesSchema, Alias{ChainDepth: 1}, "title")))
	assert.Equal(t, `$1->>'it''s'`, Transpile(JSONExtractAsText(Placeholder(1), "it's")))
	assert.Equal(t, `"entity_temporal_metadata_0_0_0"."decision_time" DESC NULLS LAST`, Transpile(OrderByExpression{
		Expression: ColumnExpr(EntityTemporalDecisionTime, Alias{}),
		Ordering:   Descending,
		Nulls:      NullsLast,
	}))
	assert.Equal(t, `lower($1) AS "start"`, Transpile(SelectExpression{Expression: Lower(Placeholder(1)), Alias: "start"}))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "entity_type_inherits_from", EntityTypeInheritsFrom(Depth(0)).Name())
	assert.Equal(t, "closed_entity_type_inherits_from", EntityTypeInheritsFrom(Depth(2)).Name())
	assert.Equal(t, "closed_entity_type_inherits_from", EntityTypeInheritsFrom(InheritanceDepth{}).Name())
	assert.Equal(t, "data_types", DataTypes.WithDepth(Depth(1)).Name())

	aliased := DataTypes.Aliased(Alias{ConditionIndex: 2, ChainDepth: 1})
	assert.Equal(t, `"data_types" AS "data_types_2_1_0"`, aliased.From(nil))
	assert.Equal(t, `"graph"."public"."data_types" AS "data_types_2_1_0"`,
		aliased.From(&SchemaReference{Database: "graph", Name: "public"}))
}

func TestRelationAdditionalConditions(t *testing.T) {
	bounded := Reference(EntityTypeInheritsFrom(Depth(2)), Outgoing)
	table := EntityTypeInheritsFrom(Depth(2)).Aliased(Alias{ChainDepth: 1})
	conditions := bounded.AdditionalConditions(table)
	if assert.Len(t, conditions, 1) {
		assert.Equal(t, `"closed_entity_type_inherits_from_0_1_0"."inheritance_depth" <= 2`, Transpile(conditions[0]))
	}

	direct := EntityTypeInheritsFrom(Depth(0))
	assert.Empty(t, Reference(direct, Outgoing).AdditionalConditions(direct.Aliased(Alias{ChainDepth: 1})))
	unbounded := EntityTypeInheritsFrom(InheritanceDepth{})
	assert.Empty(t, Reference(unbounded, Outgoing).AdditionalConditions(unbounded.Aliased(Alias{ChainDepth: 1})))
	assert.Empty(t, EntityEditionsRelation.AdditionalConditions(table))
	assert.Empty(t, Reference(EntityIDs, Outgoing).Joins())
}

func TestReferenceJoinsReverse(t *testing.T) {
	outgoing := Reference(PropertyTypeConstrainsValuesOn, Outgoing).Joins()
	incoming := Reference(PropertyTypeConstrainsValuesOn, Incoming).Joins()
	if assert.Len(t, outgoing, 2) && assert.Len(t, incoming, 2) {
		assert.Equal(t, PropertyTypeConstrainsValuesOn, outgoing[0].Table())
		assert.Equal(t, OntologyTemporalMetadata, outgoing[1].Table())
		assert.Equal(t, PropertyTypeConstrainsValuesOn, incoming[0].Table())
		assert.Equal(t, outgoing[1].On, incoming[0].Join)
	}
}
