// Command scraper polls a GTFS-Realtime vehicle feed and a weather API on a
// fixed cadence and appends the observations to a SQLite store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transitpulse.dev/internal/appconf"
	"transitpulse.dev/internal/logging"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := appconf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return err
	}

	application, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		return err
	}
	defer func() { _ = application.Close() }()

	logger := application.Logger
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	metricsServer := CreateMetricsServer(application)
	if metricsServer != nil {
		application.Metrics.StartDBStatsCollector(application.Store.DB, 15*time.Second)
		go func() {
			logging.LogOperation(logger, "metrics listener started", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.LogError(logger, "metrics listener failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logging.LogOperation(logger, "scraper starting",
		"env", cfg.Env.String(),
		"db_path", cfg.DBPath,
		"interval", cfg.PollInterval.String())

	if err := application.Poller.Run(ctx); err != nil {
		logging.LogError(logger, "collection loop terminated", err)
		return err
	}

	logging.LogOperation(logger, "scraper stopped")
	return nil
}
