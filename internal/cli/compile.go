package cli

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pg-graphquery/internal/app"
	"pg-graphquery/internal/logging"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	DocumentOptions
}

// CompiledStatement is the output of the compile command.
type CompiledStatement struct {
	Record     string `json:"record"`
	SQL        string `json:"sql"`
	Parameters []any  `json:"parameters"`
}

func (s CompiledStatement) String() string {
	var b strings.Builder
	b.WriteString(s.SQL)
	b.WriteString(";")
	for i, p := range s.Parameters {
		fmt.Fprintf(&b, "\n-- $%d = %s", i+1, renderParameter(p))
	}
	return b.String()
}

// parameterValue returns the value a driver.Valuer sends to the database,
// e.g. the tstzrange text of a temporal interval.
func parameterValue(p any) any {
	if v, ok := p.(driver.Valuer); ok {
		if value, err := v.Value(); err == nil {
			return value
		}
	}
	return p
}

func renderParameter(p any) string {
	if raw, ok := p.([]byte); ok {
		return string(raw)
	}
	out, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", p)
	}
	return string(out)
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL a query document compiles to",
		Long: `Compile a structural query document into the PostgreSQL statement a read
would run, and print it with its parameters. No database connection is made.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.release(cmd.Context())
			return runCompile(opts, cmd)
		},
	}
	opts.DocumentOptions.addFlags(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	readers := app.NewReaders(nil, app.ReaderOptionsFromConfig(opts.env.Config, nil))
	reader, err := app.LookupReader(readers, opts.Record)
	if err != nil {
		return fail(formatter, codeRecord, ExitCommandError, err)
	}

	doc, err := opts.load(cmd)
	if err != nil {
		return failQuery(formatter, err)
	}

	ctx := logging.WithLogger(cmd.Context(), opts.env.Logger)
	stmt, err := reader.Compile(ctx, doc, opts.Count)
	if err != nil {
		return failQuery(formatter, err)
	}

	params := make([]any, len(stmt.Args))
	for i, arg := range stmt.Args {
		params[i] = parameterValue(arg)
	}
	return formatter.Success(CompiledStatement{Record: reader.Kind(), SQL: stmt.SQL, Parameters: params})
}
