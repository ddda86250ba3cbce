package knowledge

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
	"pg-graphquery/internal/temporal"
)

var pinnedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testAxes() *temporal.Axes {
	return &temporal.Axes{
		Pinned: temporal.PinnedAxis{Axis: temporal.TransactionTime, Timestamp: pinnedAt},
		Variable: temporal.VariableAxis{
			Axis:     temporal.DecisionTime,
			Interval: temporal.Interval{Start: temporal.Unbounded(), End: temporal.Inclusive(pinnedAt)},
		},
	}
}

func assertGolden(t *testing.T, name string, stmt query.Statement) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, name, []byte(strings.Join(strings.Fields(stmt.SQL), " ")))
}

func tokens(names ...string) []query.PathToken {
	out := make([]query.PathToken, len(names))
	for i, name := range names {
		out[i] = query.Field(name)
	}
	return out
}

func mustParse(t *testing.T, names ...string) query.Path {
	t.Helper()
	path, err := ParseEntityPath(tokens(names...))
	require.NoError(t, err)
	return path
}

func TestParseEntityPath(t *testing.T) {
	cases := []struct {
		tokens []query.PathToken
		want   string
		typ    query.ParameterType
	}{
		{tokens("uuid"), "uuid", query.TypeUUID},
		{tokens("archived"), "archived", query.TypeBoolean},
		{tokens("decisionTime"), "decisionTime", query.TypeTimeInterval},
		{tokens("typeBaseUrls"), "typeBaseUrls", query.VectorOf(query.TypeBaseURL)},
		{tokens("properties"), "properties", query.TypeObject},
		{tokens("properties", "https://example.com/property-type/name/"), `properties.$."https://example.com/property-type/name/"`, query.TypeAny},
		{tokens("type(inheritanceDepth=0)", "baseUrl"), "type(inheritanceDepth=0).baseUrl", query.TypeBaseURL},
		{tokens("type", "*", "title"), "type.title", query.TypeText},
		{tokens("leftEntity", "uuid"), "leftEntity.uuid", query.TypeUUID},
		{tokens("outgoingLinks", "rightEntity", "editionId"), "outgoingLinks.rightEntity.editionId", query.TypeUUID},
		{tokens("incomingLinks", "*", "confidence"), "incomingLinks.confidence", query.TypeNumber},
		{tokens("embedding"), "embedding", query.VectorOf(query.TypeNumber)},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			path, err := ParseEntityPath(tc.tokens)
			require.NoError(t, err)
			assert.Equal(t, tc.want, path.String())
			assert.Equal(t, tc.typ, path.ExpectedType())
		})
	}
}

func TestParseEntityPathErrors(t *testing.T) {
	for name, toks := range map[string][]query.PathToken{
		"unknown token":     tokens("color"),
		"trailing token":    tokens("uuid", "extra"),
		"params on field":   tokens("uuid(inheritanceDepth=1)"),
		"unknown parameter": tokens("type(depth=1)", "baseUrl"),
		"missing target":    tokens("leftEntity"),
		"bad type path":     tokens("type", "uuid"),
		"convert meta":      tokens("properties", "https://example.com/property-type/age/", "convert"),
		"meta not last":     tokens("properties", "dataTypeId", "https://example.com/property-type/age/"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEntityPath(toks)
			assert.ErrorIs(t, err, query.ErrInvalidPath)
		})
	}
}

func TestParsePropertyMetadataPath(t *testing.T) {
	path, err := ParseEntityPath(tokens("properties", "https://example.com/property-type/address/", "https://example.com/property-type/city/", "dataTypeId"))
	require.NoError(t, err)

	entity := path.(EntityPath)
	assert.Equal(t, FieldPropertyMetadata, entity.Field)
	assert.Equal(t, query.JSONPath{
		query.Field("value"), query.Field("https://example.com/property-type/address/"),
		query.Field("value"), query.Field("https://example.com/property-type/city/"),
		query.Field("metadata"), query.Field("dataTypeId"),
	}, entity.JSON)

	column, field := path.TerminatingColumn()
	assert.Equal(t, query.EntityEditionsPropertyMetadata, column)
	require.NotNil(t, field)
}

func TestLinkEndpointShortcut(t *testing.T) {
	path := mustParse(t, "rightEntity", "webId")
	relations, err := path.Relations()
	require.NoError(t, err)
	assert.Equal(t, []query.Relation{query.RightEntityRelation}, relations)
	column, field := path.TerminatingColumn()
	assert.Equal(t, query.EntityHasRightRightWebID, column)
	assert.Nil(t, field)

	full := mustParse(t, "rightEntity", "archived")
	relations, err = full.Relations()
	require.NoError(t, err)
	assert.Equal(t, []query.Relation{
		query.Reference(query.EntityHasRightEntity, query.Outgoing),
		query.EntityEditionsRelation,
	}, relations)
}

func TestCompileLinkEntityLeftRightID(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false, query.WithAsterisk())
	filter := query.AllOf(
		query.EqualTo(query.PathOperand(mustParse(t, "leftEntity", "uuid")), query.ParameterOperand(query.UUIDParameter(uuid.Nil))),
		query.EqualTo(query.PathOperand(mustParse(t, "leftEntity", "webId")), query.ParameterOperand(query.UUIDParameter(uuid.Nil))),
		query.EqualTo(query.PathOperand(mustParse(t, "rightEntity", "uuid")), query.ParameterOperand(query.UUIDParameter(uuid.Nil))),
		query.EqualTo(query.PathOperand(mustParse(t, "rightEntity", "ownedById")), query.ParameterOperand(query.UUIDParameter(uuid.Nil))),
	)
	require.NoError(t, compiler.AddFilter(filter))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assertGolden(t, "link_entity_left_right_id", stmt)
	want := []any{pinnedAt, testAxes().Variable.Interval, uuid.Nil, uuid.Nil, uuid.Nil, uuid.Nil}
	if diff := cmp.Diff(want, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileOutgoingLink(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false, query.WithAsterisk())
	edition := uuid.MustParse("6b0fa2d1-7a0e-4a55-8f67-3f3c8b1f9e21")
	path := mustParse(t, "outgoingLinks", "rightEntity", "editionId")
	require.NoError(t, compiler.AddFilter(query.EqualTo(query.PathOperand(path), query.ParameterOperand(query.UUIDParameter(edition)))))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assertGolden(t, "entity_outgoing_link", stmt)
	assert.Equal(t, edition, stmt.Args[2])
	assert.Len(t, stmt.Args, 3)
}

func TestCompileOutgoingLinkKeepsOuterChain(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false, query.WithAsterisk())
	id := uuid.MustParse("2d4e1e8f-1b5c-4d6e-9f70-8b9cad1e2f30")
	filter := query.AnyOf(
		query.EqualTo(query.PathOperand(mustParse(t, "uuid")), query.ParameterOperand(query.UUIDParameter(id))),
		query.EqualTo(query.PathOperand(mustParse(t, "outgoingLinks", "archived")), query.ParameterOperand(query.BoolParameter(true))),
	)
	require.NoError(t, compiler.AddFilter(filter))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assertGolden(t, "entity_outgoing_link_archived", stmt)
	assert.NotContains(t, stmt.SQL, "INNER JOIN", "entities without links must still match the uuid branch")
	if diff := cmp.Diff([]any{pinnedAt, testAxes().Variable.Interval, id, true}, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileEntityByType(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false, query.WithAsterisk())
	path := mustParse(t, "type(inheritanceDepth=0)", "baseUrl")
	base := "https://example.com/types/entity-type/person/"
	require.NoError(t, compiler.AddFilter(query.EqualTo(query.PathOperand(path), query.ParameterOperand(query.TextParameter(base)))))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assertGolden(t, "entity_by_type", stmt)
	if diff := cmp.Diff([]any{pinnedAt, testAxes().Variable.Interval, base}, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileEntityByTypeOntologyID(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false, query.WithAsterisk())
	path := mustParse(t, "type(inheritanceDepth=0)", "ontologyId")
	assert.Equal(t, query.TypeUUID, path.ExpectedType())
	relations, err := path.Relations()
	require.NoError(t, err)
	assert.Len(t, relations, 1)

	typeID := uuid.MustParse("5f0c2a1e-7d3b-4c8a-9e61-0a2b3c4d5e6f")
	require.NoError(t, compiler.AddFilter(query.EqualTo(query.PathOperand(path), query.ParameterOperand(query.UUIDParameter(typeID)))))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assertGolden(t, "entity_by_type_ontology_id", stmt)
	assert.NotContains(t, stmt.SQL, `"ontology_temporal_metadata"`)
	if diff := cmp.Diff([]any{pinnedAt, testAxes().Variable.Interval, typeID}, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestForEntityByEntityID(t *testing.T) {
	draft := uuid.MustParse("c6d3f0b4-0f3b-4b8e-9d4c-4c4f2b9a2a11")
	id := EntityID{
		WebID:      uuid.MustParse("1c3d0d7e-0a4b-4c5d-8e6f-7a8b9c0d1e2f"),
		EntityUUID: uuid.MustParse("2d4e1e8f-1b5c-4d6e-9f70-8b9cad1e2f30"),
		DraftID:    &draft,
	}
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, nil, true)
	require.NoError(t, compiler.AddFilter(ForEntityByEntityID(id)))

	stmt, err := compiler.Compile()
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `WHERE ("entity_temporal_metadata_0_0_0"."web_id" = $1) AND ("entity_temporal_metadata_0_0_0"."entity_uuid" = $2) AND ("entity_temporal_metadata_0_0_0"."draft_id" = $3)`)
	assert.Equal(t, []any{id.WebID, id.EntityUUID, draft}, stmt.Args)
}

func TestDecodeEntity(t *testing.T) {
	compiler := query.NewSelectCompiler(query.EntityTemporalMetadata, testAxes(), false)
	codec := EntityCodec{}
	idx, err := codec.Select(compiler)
	require.NoError(t, err)

	webID := uuid.MustParse("1c3d0d7e-0a4b-4c5d-8e6f-7a8b9c0d1e2f")
	entityUUID := uuid.MustParse("2d4e1e8f-1b5c-4d6e-9f70-8b9cad1e2f30")
	row := make([]any, 20)
	row[idx.WebID] = webID.String()
	row[idx.EntityUUID] = entityUUID.String()
	row[idx.EditionID] = "6b0fa2d1-7a0e-4a55-8f67-3f3c8b1f9e21"
	row[idx.DecisionTime] = `["2024-01-01 00:00:00+00",)`
	row[idx.TransactionTime] = `["2024-01-02 00:00:00+00",)`
	row[idx.Archived] = false
	row[idx.TypeBaseURLs] = `{https://example.com/types/entity-type/person/}`
	row[idx.TypeVersions] = `{3}`
	row[idx.Properties] = []byte(`{"https://example.com/property-type/name/":"Alice"}`)
	row[idx.Confidence] = float64(0.5)
	row[idx.LeftWebID] = webID.String()
	row[idx.LeftEntityUUID] = entityUUID.String()

	entity, err := codec.Decode(row, idx)
	require.NoError(t, err)
	assert.Equal(t, EntityID{WebID: webID, EntityUUID: entityUUID}, entity.ID)
	assert.Equal(t, []ontology.VersionedURL{{BaseURL: "https://example.com/types/entity-type/person/", Version: 3}}, entity.TypeIDs)
	require.NotNil(t, entity.Confidence)
	assert.Equal(t, 0.5, *entity.Confidence)
	assert.Nil(t, entity.LinkData, "a link needs both endpoints")

	row[idx.RightWebID] = webID.String()
	row[idx.RightEntityUUID] = webID.String()
	entity, err = codec.Decode(row, idx)
	require.NoError(t, err)
	require.NotNil(t, entity.LinkData)
	assert.Equal(t, webID, entity.LinkData.RightEntityID.EntityUUID)

	row[idx.TypeVersions] = `{3,4}`
	_, err = codec.Decode(row, idx)
	assert.ErrorContains(t, err, "entity types")
}

func TestVertexSortKeys(t *testing.T) {
	keys := EntityCodec{}.VertexSortKeys()
	require.Len(t, keys, 4)

	revision, err := keys[0].CursorValue(`["2024-01-01 10:00:00+00","2024-02-01 00:00:00+00")`)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), revision)

	unbounded, err := keys[0].CursorValue(`(,)`)
	require.NoError(t, err)
	assert.Nil(t, unbounded)

	id, err := keys[1].CursorValue([]byte("2d4e1e8f-1b5c-4d6e-9f70-8b9cad1e2f30"))
	require.NoError(t, err)
	assert.Equal(t, "2d4e1e8f-1b5c-4d6e-9f70-8b9cad1e2f30", id)

	param, err := keys[1].CursorParameter(id)
	require.NoError(t, err)
	assert.Equal(t, query.TypeUUID, param.Type)

	param, err = keys[0].CursorParameter(revision)
	require.NoError(t, err)
	assert.Equal(t, query.TypeTimestamp, param.Type)

	assert.Equal(t, query.NullsFirst, keys[2].Nulls)
}
