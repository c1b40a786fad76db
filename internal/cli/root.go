package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/calcsync/internal/config"
)

// RootOptions holds global flags for all commands. Config is resolved
// before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Config     config.Config
}

// NewRootCommand creates the root command for the calcsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "calcsync",
		Short: "calcsync - emissions calculations against a drill-down catalog",
		Long: `Build calculations from declarative templates, validate user input
against a remote drill-down catalog, and keep one remote item per
calculation in sync.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			opts.Format = cfg.Format
			opts.Verbose = cfg.Verbose
			return nil
		},
	}

	// Global flags. Only flags set explicitly override the config file and
	// environment.
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", defaults.Format, "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+config.DefaultConfigName+" if present)")
	pf.String("db", defaults.DB, "path to the SQLite reference service database")
	pf.String("url", "", "base URL of a remote calculation service (overrides --db)")
	pf.String("templates", defaults.Templates, "CUE template file or directory")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCalcCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// newLogger returns a text logger on w. Verbose mode logs at Debug,
// otherwise only warnings and errors are shown.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
