package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	Verbose bool

	// Logger is built in PersistentPreRun and injected into every
	// stage; nothing in this tool logs through a package global.
	Logger *slog.Logger
}

// NewRootCommand creates the ldapsync root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ldapsync",
		Short: "LDAP utilities for StoredSafe",
		Long: `Operations on a StoredSafe server driven by input from an LDAP server.

Log level can be set with the LOG_LEVEL environment variable
(ERROR, WARNING, INFO or DEBUG).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.Logger = newLogger(opts.Verbose)
			// Default logger for code paths outside the command
			// tree, e.g. the fatal handler in main.
			slog.SetDefault(opts.Logger)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewDeactivateCommand(opts))

	return cmd
}

// newLogger builds the process logger: text on stderr, level from the
// LOG_LEVEL environment variable, --verbose forcing debug.
func newLogger(verbose bool) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
