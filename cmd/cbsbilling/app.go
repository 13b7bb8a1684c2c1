package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rpggio/cbsbilling/internal/config"
	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/forms"
	"github.com/rpggio/cbsbilling/internal/invoice"
	"github.com/rpggio/cbsbilling/internal/repository"
	"github.com/rpggio/cbsbilling/internal/sqlite"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	closers []io.Closer

	flags struct {
		source          string
		dbPath          string
		piRequests      string
		piUpdates       string
		accountRequests string
		accountUpdates  string
		templatePath    string
		workers         int
		logLevel        string
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cbsbilling",
		Short:         "Quarterly billing for the CBS server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.source, "source", "", "event source: csv or sqlite")
	pf.StringVar(&a.flags.dbPath, "db", "", "path of the SQLite form archive")
	pf.StringVar(&a.flags.piRequests, "pi-form", "", "PI account request form export (CSV)")
	pf.StringVar(&a.flags.piUpdates, "pi-update-form", "", "PI account update form export (CSV)")
	pf.StringVar(&a.flags.accountRequests, "user-form", "", "user account request form export (CSV)")
	pf.StringVar(&a.flags.accountUpdates, "user-update-form", "", "user account update form export (CSV)")
	pf.StringVar(&a.flags.templatePath, "template", "", "bill template (default: built-in LaTeX template)")
	pf.IntVar(&a.flags.workers, "workers", 0, "bills rendered in parallel")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newBillCmd(a),
		newCountUsersCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	a.cfg = cfg

	// stdout carries command output, and JSON-RPC in serve mode.
	logWriter := cmd.ErrOrStderr()
	if logPath := os.Getenv("CBSBILL_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "log file error: %v\n", err)
		} else {
			a.closers = append(a.closers, file)
			logWriter = fileWriter
		}
	}
	a.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("source") {
		cfg.Source.Kind = a.flags.source
	}
	if changed("db") {
		cfg.Source.SQLitePath = a.flags.dbPath
	}
	if changed("pi-form") {
		cfg.Source.PIRequests = a.flags.piRequests
	}
	if changed("pi-update-form") {
		cfg.Source.PIUpdates = a.flags.piUpdates
	}
	if changed("user-form") {
		cfg.Source.AccountRequests = a.flags.accountRequests
	}
	if changed("user-update-form") {
		cfg.Source.AccountUpdates = a.flags.accountUpdates
	}
	if changed("template") {
		cfg.Invoice.TemplatePath = a.flags.templatePath
	}
	if changed("workers") {
		cfg.Invoice.Workers = a.flags.workers
	}
	if changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// formSource returns the CSV exports named by the configuration.
func (a *app) formSource() (*forms.Source, error) {
	paths := a.cfg.FormPaths()
	if err := paths.Validate(); err != nil {
		return nil, err
	}
	return forms.NewSource(paths), nil
}

// openArchive opens the form archive, creating its tables when migrate is set.
func (a *app) openArchive(migrate bool) (*sqlite.Archive, error) {
	path := a.cfg.Source.SQLitePath
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	if migrate {
		if err := db.RunMigrations(); err != nil {
			return nil, err
		}
	}
	return sqlite.NewArchive(db), nil
}

func (a *app) eventSource() (repository.EventSource, error) {
	if a.cfg.Source.Kind == config.SourceSQLite {
		return a.openArchive(false)
	}
	return a.formSource()
}

func (a *app) billingService() (*billing.Service, error) {
	source, err := a.eventSource()
	if err != nil {
		return nil, err
	}
	policy, err := a.cfg.Policy()
	if err != nil {
		return nil, err
	}
	renderer, err := invoice.FromFile(a.cfg.Invoice.TemplatePath)
	if err != nil {
		return nil, err
	}
	return billing.NewService(source, renderer, policy, a.cfg.Invoice.Workers, a.logger), nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
