package cli

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/storedsafe/ldapsync/internal/audit"
	"github.com/storedsafe/ldapsync/internal/config"
	"github.com/storedsafe/ldapsync/internal/directory"
	"github.com/storedsafe/ldapsync/internal/reconcile"
	"github.com/storedsafe/ldapsync/internal/storedsafe"
)

// DeactivateOptions holds flags for the deactivate command.
type DeactivateOptions struct {
	*RootOptions
	ConfigPath string
	Test       bool
	AuditPath  string

	// RCPath and Prompter override the StoredSafe session bootstrap
	// (for testing). Empty/nil selects the defaults.
	RCPath   string
	Prompter storedsafe.Prompter
}

// NewDeactivateCommand creates the deactivate command: match directory
// users against active StoredSafe users and clear the active bit on every
// match.
func NewDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeactivateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate StoredSafe users matched against LDAP users",
		Long: `Deactivates every StoredSafe user account that matches a directory user
returned by the configured LDAP searches. With --test the full pipeline
runs, including matching, but no account is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeactivate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (required)")
	cmd.Flags().BoolVarP(&opts.Test, "test", "t", false, "dry run, skip deactivation")
	cmd.Flags().StringVar(&opts.AuditPath, "audit", "", "path to SQLite audit database (optional)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runDeactivate(cmd *cobra.Command, opts *DeactivateOptions) error {
	logger := opts.Logger

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return configExitError(opts.ConfigPath, err)
	}

	conn, err := directory.Connect(cfg.LDAP.Server, cfg.LDAP.Connection)
	if err != nil {
		return connectExitError(cfg.LDAP.Server.Host, err)
	}
	defer conn.Close()

	rcPath := opts.RCPath
	if rcPath == "" {
		if rcPath, err = storedsafe.DefaultRCPath(); err != nil {
			return WrapExitError(ExitConnectUnexpected, "unable to locate credential file", err)
		}
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = storedsafe.TerminalPrompter{}
	}
	api, err := storedsafe.Session(rcPath, prompter, logger)
	if err != nil {
		return WrapExitError(ExitConnectUnexpected, "unable to establish StoredSafe session", err)
	}

	var recorder *audit.Recorder
	if opts.AuditPath != "" {
		if recorder, err = audit.Open(opts.AuditPath); err != nil {
			return WrapExitError(ExitOutputPath, "unable to open audit database", err)
		}
		defer recorder.Close()
	}

	pipeline := &reconcile.Pipeline{
		Searcher: conn,
		Target:   api,
		Config:   cfg,
		Logger:   logger,
		Audit:    recorder,
		DryRun:   opts.Test,
	}

	result, err := pipeline.Run()
	if err != nil {
		var missing *directory.MissingAttributeError
		if errors.As(err, &missing) {
			return WrapExitError(ExitOutputAttribute, "invalid attribute", err)
		}
		return WrapExitError(ExitOutputUnexpected, "unexpected error while processing users", err)
	}

	reconcile.WriteReport(cmd.OutOrStdout(), result, opts.Test)
	return nil
}

// configExitError maps config.Load failures onto the config exit codes:
// a missing file, an unparseable file and everything else get distinct
// codes so operators can tell them apart without reading logs.
func configExitError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return WrapExitError(ExitConfigPath, "invalid config path `"+path+"`", err)
	case isParseError(err):
		return WrapExitError(ExitConfigParse, "failed to parse config", err)
	default:
		return WrapExitError(ExitConfigUnexpected, "unexpected error while reading config", err)
	}
}

func isParseError(err error) bool {
	var parseErr *config.ParseError
	return errors.As(err, &parseErr)
}

// connectExitError maps directory connection failures: bind/credential
// failures and unreachable hosts get their own codes.
func connectExitError(host string, err error) error {
	switch {
	case errors.Is(err, directory.ErrBind):
		return WrapExitError(ExitConnectBind, "unable to authenticate", err)
	case errors.Is(err, directory.ErrUnreachable):
		return WrapExitError(ExitConnectTimeout, "unable to reach host `"+host+"`", err)
	default:
		return WrapExitError(ExitConnectUnexpected, "unexpected error while connecting to host", err)
	}
}
