package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"oyken/internal/backend"
	"oyken/internal/config"
	"oyken/internal/core"
	"oyken/internal/log"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type globalFlags struct {
	configFile string
	logLevel   string
	backend    string
	dataDir    string
	sqlitePath string
}

// runner carries the persistent flags into the subcommands.
type runner struct {
	flags globalFlags
	now   func() time.Time
}

// NewRootCommand builds the oyken command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(time.Now)
}

func newRootCommand(now func() time.Time) *cobra.Command {
	r := &runner{now: now}

	root := &cobra.Command{
		Use:   "oyken",
		Short: "OYKEN - restaurant ledger, rollups and financial reports",
		Long: `oyken records daily sales, purchases, expenses, staffing and inventory,
closes them into monthly totals and serves EBITDA, breakeven, income
statement, comparables and trend reports over a JSON API or the terminal.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&r.flags.configFile, "config", "c", "", "YAML configuration file (default $OYKEN_CONFIG_FILE)")
	pf.StringVar(&r.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&r.flags.backend, "backend", "",
		"storage backend: "+strings.Join(backend.GetBackendTypeStrings(), ", "))
	pf.StringVar(&r.flags.dataDir, "data-dir", "", "directory of the CSV tables")
	pf.StringVar(&r.flags.sqlitePath, "sqlite-path", "", "path of the SQLite database")

	root.AddCommand(
		r.serveCommand(),
		r.workerCommand(),
		r.closeCommand(),
		r.reportCommand(),
		r.exportCommand(),
		r.migrateCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := SignalContext(context.Background())
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// override applies the persistent flags on top of file and environment.
func (r *runner) override(cfg *config.Config) {
	if r.flags.logLevel != "" {
		cfg.LogLevel = r.flags.logLevel
	}
	if r.flags.backend != "" {
		cfg.DataBackend = r.flags.backend
	}
	if r.flags.dataDir != "" {
		cfg.DataDir = r.flags.dataDir
	}
	if r.flags.sqlitePath != "" {
		cfg.SQLiteDBPath = r.flags.sqlitePath
	}
}

// config loads the configuration and the logger. Logs go to stderr so that
// report output on stdout stays clean.
func (r *runner) config(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := LoadAndValidateConfig(r.flags.configFile, r.override)
	if err != nil {
		return nil, nil, err
	}
	logger, err := SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// boot is config followed by Bootstrap.
func (r *runner) boot(cmd *cobra.Command, withBroker bool) (*App, error) {
	cfg, logger, err := r.config(cmd)
	if err != nil {
		return nil, err
	}
	return Bootstrap(cmd.Context(), cfg, logger, withBroker)
}

// today is the current calendar day in the configured time zone.
func (r *runner) today(cfg *config.Config) core.Date {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	return core.DateOf(r.now().In(loc))
}
