// Package cli implements the graphquery command line: compiling structural
// query documents to SQL and running them against a graph store.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"pg-graphquery/internal/app"
	"pg-graphquery/internal/config"
	"pg-graphquery/internal/logging"
	"pg-graphquery/internal/observability"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Session is an initialized connection to a graph store.
type Session interface {
	Reader(kind string) (app.Reader, error)
	Ping(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Env is the configuration and logging a command runs with.
type Env struct {
	Config *config.Config
	Logger *logging.Logger
	// LoggerProvider is set while OTLP log export is owned by the command.
	// An OpenFunc taking ownership clears it.
	LoggerProvider *observability.LoggerProvider
}

// OpenFunc opens a session for env.
type OpenFunc func(ctx context.Context, env *Env) (Session, error)

// Options configure the root command.
type Options struct {
	Version string
	// Open defaults to OpenApp.
	Open OpenFunc
}

// RootOptions holds global flags and state shared by all commands.
type RootOptions struct {
	Format string

	version string
	open    OpenFunc
	env     *Env
}

// NewRootCommand creates the graphquery root command.
func NewRootCommand(o Options) *cobra.Command {
	opts := &RootOptions{version: o.Version, open: o.Open}
	if opts.open == nil {
		opts.open = OpenApp
	}
	if opts.version == "" {
		opts.version = "dev"
	}

	cmd := &cobra.Command{
		Use:     "graphquery",
		Short:   "Structural queries over a bi-temporal graph store",
		Long:    "graphquery compiles structural query documents into PostgreSQL statements and runs them against a graph store.",
		Version: opts.version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	config.DefineFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))

	return cmd
}

// setup loads and validates the configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	formatter := o.formatter(cmd)

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fail(formatter, codeConfig, ExitCommandError, err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = o.version
	}

	result := cfg.Validate()
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if result.HasErrors() {
		details := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			details[i] = e.Error()
		}
		return failWithDetails(formatter, codeConfig, ExitCommandError, fmt.Errorf("configuration validation failed"), details)
	}

	logger, loggerProvider, err := app.InitLogger(cfg)
	if err != nil {
		return fail(formatter, codeConfig, ExitCommandError, fmt.Errorf("failed to initialize logging: %w", err))
	}
	o.env = &Env{Config: cfg, Logger: logger, LoggerProvider: loggerProvider}
	return nil
}

// release shuts down what the command still owns.
func (o *RootOptions) release(ctx context.Context) {
	if o.env == nil || o.env.LoggerProvider == nil {
		return
	}
	_ = o.env.LoggerProvider.Shutdown(context.WithoutCancel(ctx), o.env.Logger.Logger)
	o.env.LoggerProvider = nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

// OpenApp initializes an app.App for env. The app takes over the logger
// provider.
func OpenApp(ctx context.Context, env *Env) (Session, error) {
	a, err := app.New(env.Config, env.Logger)
	if err != nil {
		return nil, err
	}
	a.AttachLoggerProvider(env.LoggerProvider)
	env.LoggerProvider = nil

	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
