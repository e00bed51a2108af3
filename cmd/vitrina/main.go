// Package main provides the vitrina binary: the back-office HTTP server and a
// command line client for the wishlist, warranty and material request lists.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/auth"
	"github.com/erazemk/vitrina/internal/config"
	"github.com/erazemk/vitrina/internal/logging"
	"github.com/erazemk/vitrina/internal/session"
	"github.com/erazemk/vitrina/internal/store"
)

const appName = "vitrina"

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by all commands.
type app struct {
	configPath  string
	logLevel    string
	logPath     string
	dbDriver    string
	dbDSN       string
	sessionPath string

	cfg      *config.Config
	log      *zap.Logger
	closeLog func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Jewellery back office: wishlist, warranty and material requests",
		Long: `Vitrina keeps three record lists for the shops: customer wishlist
requests, warranty claims and internal material requests.

Run "vitrina serve" for the HTTP API, or sign in with "vitrina login"
and work with the lists directly from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&a.logPath, "log-file", "", "also write logs to this file")
	f.StringVar(&a.dbDriver, "db-driver", "", "document backend (sqlite, postgres, mongo)")
	f.StringVar(&a.dbDSN, "db-dsn", "", "database path, connection string or URI")
	f.StringVar(&a.sessionPath, "session", "", "session file path")

	cmd.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newHashPasswordCmd(),
		newWishlistCmd(a),
		newWarrantyCmd(a),
		newRequestsCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	for dst, v := range map[*string]string{
		&cfg.Log.Level:       a.logLevel,
		&cfg.Log.Path:        a.logPath,
		&cfg.Database.Driver: a.dbDriver,
		&cfg.Database.DSN:    a.dbDSN,
		&cfg.Session.Path:    a.sessionPath,
	} {
		if v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Log.Level
	// Client commands print results on stdout; keep routine logs out of it.
	if cmd.Name() != "serve" && a.logLevel == "" {
		level = "warn"
	}
	log, closeLog, err := logging.New(level, cfg.Log.Path)
	if err != nil {
		return err
	}

	a.cfg, a.log, a.closeLog = cfg, log.Named(appName), closeLog
	return nil
}

// openStore connects to the configured backend.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	backend, err := store.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN, a.cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store.New(backend), nil
}

// authenticator builds the credential check from the configured account.
func (a *app) authenticator() (*auth.Authenticator, error) {
	username, hash, err := a.cfg.Credentials()
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(username, hash)
}

// openGate opens the session gate over the session file.
func (a *app) openGate() (*session.Gate, error) {
	path := a.cfg.Session.Path
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	checker, err := a.authenticator()
	if err != nil {
		return nil, err
	}

	gate := session.NewGate(checker, session.NewFileKV(path), a.log.Named("session"))
	if err := gate.Open(); err != nil {
		return nil, err
	}
	return gate, nil
}
