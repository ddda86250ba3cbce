package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, opts Options, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--observability.logging.level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(Options{Version: "1.2.3"})
	require.NotNil(t, cmd)
	assert.Equal(t, "graphquery", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(Options{})
	for _, name := range []string{"compile", "query", "ping"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(Options{})

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	for _, name := range []string{"config", "database.dsn", "database.schema", "query.timeout", "observability.metrics_addr"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
}

func TestDocumentFlags(t *testing.T) {
	cmd := NewRootCommand(Options{})
	for _, name := range []string{"compile", "query"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		record := sub.Flags().Lookup("record")
		require.NotNil(t, record)
		assert.Equal(t, "r", record.Shorthand)
		assert.Equal(t, "entity", record.DefValue)

		file := sub.Flags().Lookup("file")
		require.NotNil(t, file)
		assert.Equal(t, "-", file.DefValue)

		for _, flag := range []string{"limit", "cursor", "count"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), flag)
		}
	}
}

func TestInvalidFormat(t *testing.T) {
	res := execute(t, Options{}, "{}", "compile", "--format", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid format")
}

func TestConfigValidationFails(t *testing.T) {
	res := execute(t, Options{}, "{}", "compile", "--database.tls.mode", "sometimes")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "Error [config]")
	assert.Contains(t, res.stderr, "database.tls.mode")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "bad"}))

	wrapped := &ExitError{Code: ExitFailure, Message: codeExecution, Err: errors.New("boom")}
	assert.Equal(t, "execution_failed: boom", wrapped.Error())
	assert.True(t, Reported(wrapped))
	assert.False(t, Reported(errors.New("plain")))
}
