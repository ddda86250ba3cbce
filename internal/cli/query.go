package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"pg-graphquery/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	DocumentOptions
}

// QueryOutput is the JSON output of the query command.
type QueryOutput struct {
	Record  string `json:"record"`
	Records []any  `json:"records"`
	// Next continues a paginated read; empty on the last page.
	Next string `json:"next,omitempty"`
}

// CountOutput is the output of the query command with --count.
type CountOutput struct {
	Record string `json:"record"`
	Count  int64  `json:"count"`
}

func (c CountOutput) String() string { return fmt.Sprint(c.Count) }

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query document and print the matching records",
		Long: `Run a structural query document against the graph store.

In text format every record is printed as one JSON line and the cursor of the
next page, if any, is reported on stderr. In JSON format the records and the
cursor are returned in a single response.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.release(cmd.Context())
			return runQuery(opts, cmd)
		},
	}
	opts.DocumentOptions.addFlags(cmd)

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.env.Logger

	doc, err := opts.load(cmd)
	if err != nil {
		return failQuery(formatter, err)
	}

	ctx := logging.WithLogger(cmd.Context(), logger)
	session, err := opts.open(ctx, opts.env)
	if err != nil {
		return fail(formatter, codeConnection, ExitFailure, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := session.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	reader, err := session.Reader(opts.Record)
	if err != nil {
		return fail(formatter, codeRecord, ExitCommandError, err)
	}

	if opts.Count {
		n, err := reader.Count(ctx, doc)
		if err != nil {
			return failQuery(formatter, err)
		}
		return formatter.Success(CountOutput{Record: reader.Kind(), Count: n})
	}

	if formatter.Format == "json" {
		out := QueryOutput{Record: reader.Kind(), Records: []any{}}
		out.Next, err = reader.Query(ctx, doc, func(record any) error {
			out.Records = append(out.Records, record)
			return nil
		})
		if err != nil {
			return failQuery(formatter, err)
		}
		return formatter.Success(out)
	}

	enc := json.NewEncoder(formatter.Writer)
	next, err := reader.Query(ctx, doc, func(record any) error {
		return enc.Encode(record)
	})
	if err != nil {
		return failQuery(formatter, err)
	}
	if next != "" {
		formatter.Notice("next cursor: %s", next)
	}
	return nil
}
