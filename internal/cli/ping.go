package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// PingResult is the output of the ping command.
type PingResult struct {
	Database string `json:"database"`
	Status   string `json:"status"`
}

func (p PingResult) String() string { return p.Database + ": " + p.Status }

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ping",
		Short:         "Check that the graph store answers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer rootOpts.release(cmd.Context())
			return runPing(rootOpts, cmd)
		},
	}
}

func runPing(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	session, err := opts.open(ctx, opts.env)
	if err != nil {
		return fail(formatter, codeConnection, ExitFailure, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = session.Shutdown(shutdownCtx)
	}()

	if err := session.Ping(ctx); err != nil {
		return fail(formatter, codeConnection, ExitFailure, err)
	}

	database, _ := opts.env.Config.Database.EffectiveDatabaseName()
	return formatter.Success(PingResult{Database: database, Status: "ok"})
}
