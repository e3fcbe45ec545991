// Package app wires the collector's components together from a loaded
// configuration and owns their lifecycle.
package app

import (
	"fmt"
	"log/slog"

	"transitpulse.dev/internal/analytics"
	"transitpulse.dev/internal/appconf"
	"transitpulse.dev/internal/clock"
	"transitpulse.dev/internal/feed"
	"transitpulse.dev/internal/metrics"
	"transitpulse.dev/internal/poller"
	"transitpulse.dev/internal/weather"
	"transitpulse.dev/transitdb"
)

// Application holds the constructed components of the collector.
type Application struct {
	Config    appconf.Config
	Logger    *slog.Logger
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Store     *transitdb.Client
	Poller    *poller.Poller
	Analytics *analytics.Engine
}

// New builds an Application from the given configuration. The returned
// Application owns the store connection; call Close when done.
func New(cfg appconf.Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := transitdb.NewClient(transitdb.NewConfig(cfg.DBPath, cfg.Env, cfg.Verbose))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	clk := clock.RealClock{}
	m := metrics.NewWithLogger(logger)

	fetcher := feed.NewFetcher(cfg.FeedURL, cfg.FeedAPIKey, 0)
	weatherClient := weather.NewClient(cfg.WeatherAPIKey, cfg.WeatherLat, cfg.WeatherLon, clk)

	p := poller.New(fetcher, weatherClient, store, clk, m, poller.Config{
		Interval: cfg.PollInterval,
	})

	return &Application{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		Metrics:   m,
		Store:     store,
		Poller:    p,
		Analytics: analytics.NewEngine(store),
	}, nil
}

// Close releases the application's resources.
func (app *Application) Close() error {
	app.Metrics.Shutdown()
	return app.Store.Close()
}
