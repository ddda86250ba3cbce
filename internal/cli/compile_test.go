package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textBaseURL = "https://example.com/types/data-type/text/"

const baseURLDocument = `{
	"filter": {"equal": [{"path": ["baseUrl"]}, {"parameter": "` + textBaseURL + `"}]},
	"temporalAxes": {
		"pinned": {"axis": "transactionTime", "timestamp": "2024-01-01T00:00:00Z"},
		"variable": {"axis": "decisionTime", "interval": {"start": {"kind": "unbounded"}, "end": {"kind": "unbounded"}}}
	}
}`

func TestCompileText(t *testing.T) {
	res := execute(t, Options{}, baseURLDocument, "compile", "--record", "data_type")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, `SELECT `)
	assert.Contains(t, res.stdout, `FROM "ontology_temporal_metadata" AS "ontology_temporal_metadata_0_0_0"`)
	assert.Contains(t, res.stdout, `"`+textBaseURL+`"`)
	assert.NotContains(t, res.stdout, "LIMIT")
	assert.Regexp(t, `-- \$1 = `, res.stdout)
}

func TestCompileJSON(t *testing.T) {
	res := execute(t, Options{}, baseURLDocument, "compile", "-r", "data_type", "--format", "json")
	require.NoError(t, res.err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompiledStatement `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "data_type", resp.Data.Record)

	want := []any{"2024-01-01T00:00:00Z", textBaseURL}
	byText := cmpopts.SortSlices(func(a, b any) bool { return fmt.Sprint(a) < fmt.Sprint(b) })
	if diff := cmp.Diff(want, resp.Data.Parameters, byText); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileFlagsOverrideDocument(t *testing.T) {
	res := execute(t, Options{}, `{"limit": 50}`, "compile", "-r", "entity_type", "--limit", "3")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "ORDER BY")
	assert.Contains(t, res.stdout, "LIMIT 3")
}

func TestCompileDefaultLimit(t *testing.T) {
	doc := `{"sorting": [{"path": ["title"], "ordering": "ascending"}]}`
	res := execute(t, Options{}, doc, "compile", "-r", "property_type", "--query.default_limit", "20")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "LIMIT 20")
}

func TestCompileCount(t *testing.T) {
	res := execute(t, Options{}, "filter:\n  all: []\n", "compile", "--count")
	require.NoError(t, res.err)
	assert.Regexp(t, `^SELECT COUNT\(\*\) FROM \(SELECT `, res.stdout)
	assert.Contains(t, res.stdout, `"entity_temporal_metadata"`)
}

func TestCompileSchema(t *testing.T) {
	res := execute(t, Options{}, `{}`, "compile", "-r", "data_type", "--database.schema", "graph")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"graph"."ontology_temporal_metadata"`)
}

func TestCompileReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: 7\n"), 0o600))

	res := execute(t, Options{}, "", "compile", "-r", "data_type", "-f", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "LIMIT 7")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		code  string
	}{
		{name: "unknown record", stdin: `{}`, args: []string{"-r", "link"}, code: codeRecord},
		{name: "empty document", stdin: ``, code: codeDocument},
		{name: "unknown field", stdin: `{"pagination": 1}`, code: codeDocument},
		{name: "unknown path", stdin: `{"filter": {"equal": [{"path": ["nope"]}, null]}}`, args: []string{"-r", "data_type"}, code: codeQuery},
		{name: "bad cursor", stdin: `{}`, args: []string{"--cursor", "%%%"}, code: codeQuery},
		{name: "missing file", args: []string{"-f", "/does/not/exist.json"}, code: codeDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"compile", "--format", "json"}, tt.args...)
			res := execute(t, Options{}, tt.stdin, args...)
			require.Error(t, res.err)
			assert.Equal(t, ExitCommandError, GetExitCode(res.err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
