package cli

import (
	"context"
	"errors"
	"net"
	nethttp "net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oyken/internal/amqp"
	apihttp "oyken/internal/http"
	"oyken/internal/log"
	"oyken/internal/scheduler"
	"oyken/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func (r *runner) serveCommand() *cobra.Command {
	var (
		addr        string
		noScheduler bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long: `Run the JSON API over the ledger. Without a broker the monthly close
also runs here on the configured schedule; with one, the worker owns it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = net.JoinHostPort("", app.Config.Port)
			}
			var sched *scheduler.Scheduler
			if !noScheduler && app.Broker == nil {
				if sched, err = r.newScheduler(app, worker.NewRollupWorker(app.Ledger, nil, app.Logger)); err != nil {
					return err
				}
			}
			return r.serve(cmd.Context(), app, addr, sched)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the scheduled monthly close")
	return cmd
}

func (r *runner) serve(ctx context.Context, app *App, addr string, sched *scheduler.Scheduler) error {
	logger := app.Logger
	srv := apihttp.NewServer(addr, app.Ledger, apihttp.Options{
		Logger:             logger,
		RateLimitPerMinute: app.Config.RateLimitPerMinute,
		CacheSize:          app.Config.ReportCacheSize,
		CacheTTL:           app.Config.ReportCacheTTL,
		Ready:              app.Repo.Ping,
		AsyncRollups:       app.Broker != nil,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", addr, log.FieldBackend, app.Config.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sched != nil {
		sched.Start(gctx)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		if sched != nil {
			sched.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (r *runner) workerCommand() *cobra.Command {
	var skipStartup bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume recompute messages and run the scheduled close",
		Long: `Consume recompute messages from the broker, close the affected months and
push them to Google Sheets when a spreadsheet is configured. The monthly
close also runs on the configured schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := r.boot(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			exporter, err := app.Exporter(cmd.Context())
			if err != nil {
				return err
			}
			w := worker.NewRollupWorker(app.Ledger, exporter, app.Logger)
			sched, err := r.newScheduler(app, w)
			if err != nil {
				return err
			}
			return r.work(cmd.Context(), app, w, sched, !skipStartup)
		},
	}
	cmd.Flags().BoolVar(&skipStartup, "skip-startup-close", false, "do not close the recent months on start")
	return cmd
}

func (r *runner) work(ctx context.Context, app *App, w *worker.RollupWorker, sched *scheduler.Scheduler, startup bool) error {
	logger := app.Logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting worker", "messaging", app.Broker != nil)

	// Catch up on anything missed while the worker was down.
	if startup {
		if err := w.CloseRecent(ctx, r.now()); err != nil {
			logger.Error("Startup close failed", log.FieldError, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if app.Broker != nil {
		g.Go(func() error {
			err := app.Broker.ConsumeRecompute(gctx, amqp.Handler(w.HandleRecompute))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, running the scheduled close only")
	}
	sched.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
		return nil
	})
	return g.Wait()
}

func (r *runner) newScheduler(app *App, job scheduler.Job) (*scheduler.Scheduler, error) {
	loc, err := app.Config.Location()
	if err != nil {
		return nil, err
	}
	return scheduler.New(app.Config.CloseSchedule, loc, job, app.Logger)
}
