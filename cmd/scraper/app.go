package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"transitpulse.dev/internal/app"
	"transitpulse.dev/internal/appconf"
)

// BuildApplication constructs the collector from a loaded configuration.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	return app.New(cfg, logger)
}

// CreateMetricsServer returns the HTTP server exposing the Prometheus
// registry, or nil when no metrics address is configured.
func CreateMetricsServer(application *app.Application) *http.Server {
	if application.Config.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		application.Metrics.Registry,
		promhttp.HandlerOpts{},
	))

	return &http.Server{
		Addr:         application.Config.MetricsAddr,
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
