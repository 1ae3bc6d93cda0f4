package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/config"
	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides CARAS_DB

	// Config is loaded from the environment before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the caras CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "caras",
		Short: "caras - campaign face inventory reservations",
		Long: `Reserve advertising faces against campaign requirements and authorize
them with codes.

Authorized reservations lock their requirement: a fully authorized
requirement cannot change, and a partially authorized one cannot drop
below what is already authorized.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $CARAS_DB or caras.db)")

	// Add subcommands
	cmd.AddCommand(NewRequirementsCommand(opts))
	cmd.AddCommand(NewReservationsCommand(opts))
	cmd.AddCommand(NewCodesCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewTasksCommand(opts))
	cmd.AddCommand(NewChangesCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes text logs to stderr at the configured level, or Debug when
// --verbose is set.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := o.Config.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
}

func (o *RootOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	if o.Config.DBPath != "" {
		return o.Config.DBPath
	}
	return "caras.db"
}

// session is an open store and the engine over it.
type session struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// open opens the database and builds an engine from the configuration.
// The caller must call close.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	logger := o.logger(cmd)

	policy, err := engine.ParseOverbookingPolicy(string(o.Config.Overbooking))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	path := o.databasePath()
	logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithOverbooking(policy),
	}
	if o.Config.CodePrefix != "" {
		opts = append(opts, engine.WithCodePrefix(o.Config.CodePrefix))
	}
	return &session{store: st, engine: engine.New(st, opts...), logger: logger}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}
