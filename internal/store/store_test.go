package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-graphquery/internal/cursor"
	"pg-graphquery/internal/dbexec"
	"pg-graphquery/internal/ontology"
	"pg-graphquery/internal/query"
)

const (
	textBaseURL   = "https://example.com/types/data-type/text/"
	numberBaseURL = "https://example.com/types/data-type/number/"
	ontologyID    = "0f3f9d2a-8d1c-4b3e-9a57-2f0e7c1d5b11"
	transaction   = `["2024-01-01 00:00:00+00",)`
)

var metadataColumns = []string{
	"schema", "ontology_id", "base_url", "version", "transaction_time",
	"web_id", "fetched_at", "provenance", "additional_metadata",
}

func newDataTypeStore(t *testing.T) (*Store[ontology.DataType, ontology.Indices], sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	exec := dbexec.NewExecutor(dbexec.Config{DB: db})
	return New[ontology.DataType, ontology.Indices](exec, ontology.DataTypeCodec{}, Options{}), mock, db
}

func dataTypeRow(baseURL string, version int64) []any {
	return []any{[]byte(`{"title":"Text"}`), ontologyID, baseURL, version, transaction, nil, nil, []byte(`{}`), nil}
}

func dataTypeRows(rows ...[]any) *sqlmock.Rows {
	out := sqlmock.NewRows(metadataColumns)
	for _, row := range rows {
		values := make([]driver.Value, len(row))
		for i, v := range row {
			values[i] = v
		}
		out.AddRow(values...)
	}
	return out
}

func TestReadVec(t *testing.T) {
	store, mock, db := newDataTypeStore(t)
	mock.ExpectQuery(`SELECT .* FROM "ontology_temporal_metadata" AS "ontology_temporal_metadata_0_0_0"`).
		WillReturnRows(dataTypeRows(dataTypeRow(textBaseURL, 1), dataTypeRow(numberBaseURL, 2)))

	records, err := store.ReadVec(context.Background(), query.AllOf(), nil, false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ontology.VersionedURL{BaseURL: textBaseURL, Version: 1}, records[0].Metadata.RecordID)
	assert.Equal(t, ontology.VersionedURL{BaseURL: numberBaseURL, Version: 2}, records[1].Metadata.RecordID)
	assert.JSONEq(t, `{"title":"Text"}`, string(records[0].Schema))
	assert.Equal(t, 0, db.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadReleasesConnectionOnBreak(t *testing.T) {
	store, mock, db := newDataTypeStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(dataTypeRows(dataTypeRow(textBaseURL, 1), dataTypeRow(numberBaseURL, 2)))

	records, err := store.Read(context.Background(), query.AllOf(), nil, false)
	require.NoError(t, err)
	for record, err := range records {
		require.NoError(t, err)
		assert.Equal(t, textBaseURL, record.Metadata.RecordID.BaseURL)
		break
	}
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestReadDoesNotQueryUntilIterated(t *testing.T) {
	store, mock, _ := newDataTypeStore(t)
	_, err := store.Read(context.Background(), query.AllOf(), nil, false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOne(t *testing.T) {
	url := ontology.VersionedURL{BaseURL: textBaseURL, Version: 1}
	filter := func() query.Filter { return ontology.ForVersionedURL(url, ontology.DataTypeField) }

	t.Run("found", func(t *testing.T) {
		store, mock, _ := newDataTypeStore(t)
		mock.ExpectQuery("SELECT").
			WithArgs(textBaseURL, int64(1)).
			WillReturnRows(dataTypeRows(dataTypeRow(textBaseURL, 1)))

		record, err := store.ReadOne(context.Background(), filter(), nil, false)
		require.NoError(t, err)
		assert.Equal(t, url, record.Metadata.RecordID)
	})

	t.Run("not found", func(t *testing.T) {
		store, mock, _ := newDataTypeStore(t)
		mock.ExpectQuery("SELECT").WillReturnRows(dataTypeRows())

		_, err := store.ReadOne(context.Background(), filter(), nil, false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not unique", func(t *testing.T) {
		store, mock, db := newDataTypeStore(t)
		mock.ExpectQuery("SELECT").
			WillReturnRows(dataTypeRows(dataTypeRow(textBaseURL, 1), dataTypeRow(textBaseURL, 1)))

		_, err := store.ReadOne(context.Background(), filter(), nil, false)
		assert.ErrorIs(t, err, ErrNotUnique)
		assert.Equal(t, 0, db.Stats().InUse)
	})
}

func TestReadErrors(t *testing.T) {
	t.Run("structural", func(t *testing.T) {
		store, _, _ := newDataTypeStore(t)
		bad := query.EqualTo(
			query.PathOperand(ontology.DataTypeField(ontology.FieldOntologyID)),
			query.ParameterOperand(query.TextParameter("not-a-uuid")),
		)
		_, err := store.Read(context.Background(), bad, nil, false)
		assert.ErrorIs(t, err, query.ErrParameterConversion)
		assert.True(t, IsStructural(err))
	})

	t.Run("query", func(t *testing.T) {
		store, mock, _ := newDataTypeStore(t)
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

		_, err := store.ReadVec(context.Background(), query.AllOf(), nil, false)
		assert.ErrorIs(t, err, ErrQuery)
		assert.False(t, IsStructural(err))
	})

	t.Run("decode", func(t *testing.T) {
		store, mock, db := newDataTypeStore(t)
		row := dataTypeRow(textBaseURL, 1)
		row[1] = "not-a-uuid"
		mock.ExpectQuery("SELECT").WillReturnRows(dataTypeRows(row))

		_, err := store.ReadVec(context.Background(), query.AllOf(), nil, false)
		assert.ErrorIs(t, err, ErrDecode)
		assert.ErrorContains(t, err, "ontology_id")
		assert.Equal(t, 0, db.Stats().InUse)
	})
}

func TestCount(t *testing.T) {
	store, mock, _ := newDataTypeStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM (SELECT DISTINCT ON(`) + `.*` + regexp.QuoteMeta(`) AS "records"`)).
		WithArgs(textBaseURL).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	filter := query.EqualTo(
		query.PathOperand(ontology.DataTypeField(ontology.FieldBaseURL)),
		query.ParameterOperand(query.TextParameter(textBaseURL)),
	)
	n, err := store.Count(context.Background(), filter, nil, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadPaginated(t *testing.T) {
	store, mock, _ := newDataTypeStore(t)
	ctx := context.Background()

	sorting := &VertexIDSorting{}
	page, idx, err := store.ReadPaginated(ctx, query.AllOf(), nil, sorting, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.BaseURL)
	assert.Equal(t, 1, idx.Version)

	row := make([]any, len(metadataColumns))
	for i, v := range dataTypeRow(textBaseURL, 4) {
		row[[]int{idx.Schema, idx.OntologyID, idx.BaseURL, idx.Version, idx.TransactionTime, idx.OwnedByID, idx.FetchedAt, idx.Provenance, idx.AdditionalMetadata}[i]] = v
	}
	mock.ExpectQuery(`ORDER BY .* LIMIT 1`).WillReturnRows(dataTypeRows(row))

	var token string
	for result, err := range page {
		require.NoError(t, err)
		record, err := result.DecodeRecord()
		require.NoError(t, err)
		assert.Equal(t, uint32(4), record.Metadata.RecordID.Version)
		token, err = result.DecodeCursor()
		require.NoError(t, err)
	}
	require.NotEmpty(t, token)

	next := &VertexIDSorting{}
	require.NoError(t, store.SetCursor(next, token))
	assert.Equal(t, []any{textBaseURL, int64(4)}, next.Cursor())

	page, _, err = store.ReadPaginated(ctx, query.AllOf(), nil, next, 1, false)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`"ontology_ids_0_1_0"."base_url" > $1`)).
		WithArgs(textBaseURL, int64(4)).
		WillReturnRows(dataTypeRows())
	for _, err := range page {
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCursorRejectsForeignCursors(t *testing.T) {
	store, _, _ := newDataTypeStore(t)

	err := store.SetCursor(&VertexIDSorting{}, "%%%")
	assert.ErrorIs(t, err, cursor.ErrInvalid)
	assert.True(t, IsStructural(err))

	entityToken, err := cursor.Encode("entity", "uuid ascending", "a")
	require.NoError(t, err)
	assert.ErrorIs(t, store.SetCursor(&VertexIDSorting{}, entityToken), cursor.ErrInvalid)
}

func TestReadPaginatedRejectsLatestFilter(t *testing.T) {
	store, _, _ := newDataTypeStore(t)
	latest := query.EqualTo(
		query.PathOperand(ontology.DataTypeField(ontology.FieldVersion)),
		query.ParameterOperand(query.TextParameter("latest")),
	)
	_, _, err := store.ReadPaginated(context.Background(), latest, nil, nil, 10, false)
	assert.ErrorIs(t, err, query.ErrLatestWithPagination)
}

func TestCustomSortingKeys(t *testing.T) {
	vertex := ontology.DataTypeCodec{}.VertexSortKeys()
	sorting := &CustomSorting{Paths: []SortingPath{
		{Path: ontology.DataTypeField(ontology.FieldTitle), Ordering: query.Descending, Nulls: query.NullsLast},
		{Path: ontology.DataTypeField(ontology.FieldBaseURL), Ordering: query.Descending},
	}}

	keys := sorting.Keys(vertex)
	require.Len(t, keys, 3)
	assert.Equal(t, "title", keys[0].Path.String())
	assert.Equal(t, query.Descending, keys[1].Ordering)
	assert.Equal(t, "version", keys[2].Path.String())
	assert.Equal(t, "title descending nulls last,baseUrl descending,version ascending", signature(keys))
}

func TestCompileDoesNotQuery(t *testing.T) {
	store, mock, _ := newDataTypeStore(t)
	ctx := context.Background()
	filter := func() query.Filter {
		return query.EqualTo(
			query.PathOperand(ontology.DataTypeField(ontology.FieldBaseURL)),
			query.ParameterOperand(query.TextParameter(textBaseURL)),
		)
	}

	plain, err := store.Compile(ctx, filter(), nil, nil, 0, false)
	require.NoError(t, err)
	assert.NotContains(t, plain.SQL, "LIMIT")
	assert.Equal(t, []any{textBaseURL}, plain.Args)

	paged, err := store.Compile(ctx, filter(), nil, nil, 5, false)
	require.NoError(t, err)
	assert.Contains(t, paged.SQL, "ORDER BY")
	assert.Contains(t, paged.SQL, "LIMIT 5")

	count, err := store.CompileCount(ctx, filter(), nil, false)
	require.NoError(t, err)
	assert.True(t, regexp.MustCompile(`(?s)^SELECT COUNT\(\*\) FROM \(SELECT .*\) AS "records"$`).MatchString(count.SQL), count.SQL)
	assert.Equal(t, []any{textBaseURL}, count.Args)

	_, err = store.Compile(ctx, query.EqualTo(query.PathOperand(ontology.DataTypeField(ontology.FieldVersion)), query.ParameterOperand(query.TextParameter("latest"))), nil, nil, 5, false)
	assert.ErrorIs(t, err, query.ErrLatestWithPagination)

	assert.NoError(t, mock.ExpectationsWereMet())
}
