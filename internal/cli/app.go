// Package cli holds the oyken command tree and the start-up steps the
// commands share: logger, configuration, storage backend and ledger.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"oyken/internal/amqp"
	"oyken/internal/backend"
	"oyken/internal/calendar"
	"oyken/internal/config"
	"oyken/internal/export/sheets"
	"oyken/internal/ledger"
	"oyken/internal/log"
	"oyken/internal/storage"
	"oyken/internal/worker"
)

// App bundles what a command needs once start-up is done.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Repo   storage.Repository
	Ledger *ledger.Service
	// Broker is nil when messaging is disabled or not requested.
	Broker *amqp.Client

	cleanup []func() error
}

// SetupLogger initializes structured logging at the given level and makes it
// the default logger.
func SetupLogger(level string, out io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{Level: lvl, Component: log.ComponentApp, Output: out})
	log.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(path string, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap opens the storage backend and builds the ledger on top of it.
// With withBroker set and messaging configured, it also connects to the
// broker and routes recomputes through it.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, withBroker bool) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Repo: res.Repository}
	if res.Cleanup != nil {
		app.cleanup = append(app.cleanup, res.Cleanup)
	}

	strategy, err := calendar.ParseStrategy(cfg.ComparableStrategy)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts := []ledger.Option{ledger.WithStrategy(strategy), ledger.WithLogger(logger)}

	if withBroker && cfg.MessagingEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(log.ComponentAMQP).Slog())
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		app.Broker = client
		app.cleanup = append(app.cleanup, client.Close)
		opts = append(opts, ledger.WithPublisher(client))
		logger.Info("AMQP messaging enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	app.Ledger = ledger.NewService(res.Repository, opts...)
	logger.Info("Ledger ready",
		log.FieldBackend, cfg.DataBackend,
		"strategy", string(app.Ledger.Strategy()))
	return app, nil
}

// Close releases the broker and the backend in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}

// Exporter returns the Google Sheets exporter, or nil when no spreadsheet is
// configured.
func (a *App) Exporter(ctx context.Context) (worker.MonthExporter, error) {
	if !a.Config.SheetsEnabled() {
		return nil, nil
	}
	creds, err := sheets.Credentials(a.Config.GoogleCredentialsJSON, a.Config.GoogleCredentialsFile)
	if err != nil {
		return nil, err
	}
	exp, err := sheets.New(ctx, a.Config.GoogleSpreadsheetID, a.Config.GoogleSheetSuffix,
		a.Logger.WithComponent(log.ComponentExport).Slog(), creds)
	if err != nil {
		return nil, fmt.Errorf("google sheets client: %w", err)
	}
	a.Logger.Info("Google Sheets export enabled", "spreadsheet_id", a.Config.GoogleSpreadsheetID)
	return exp, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
