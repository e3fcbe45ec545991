// Package poller drives the periodic collection of vehicle and weather
// observations. Each cycle fetches both upstream streams, normalizes them,
// and appends the results to the store. The two streams fail independently:
// a bad weather response never costs a cycle its vehicle positions and vice
// versa.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"transitpulse.dev/internal/clock"
	"transitpulse.dev/internal/feed"
	"transitpulse.dev/internal/logging"
	"transitpulse.dev/internal/metrics"
	"transitpulse.dev/internal/models"
)

const (
	// defaultWriteFailureThreshold is how many consecutive store write
	// failures are tolerated before the loop gives up. A single failed
	// transaction is logged and retried next cycle.
	defaultWriteFailureThreshold = 3

	// defaultFatalFetchRetries bounds the backoff applied to
	// credential-class feed failures before the loop surfaces a terminal
	// error.
	defaultFatalFetchRetries = 3
)

// FeedSource produces raw vehicle feed payloads.
type FeedSource interface {
	FetchPositions(ctx context.Context) ([]byte, error)
}

// WeatherSource produces normalized weather observations.
type WeatherSource interface {
	Observe(ctx context.Context) (models.WeatherObservation, error)
}

// Store persists observations from both streams.
type Store interface {
	AppendVehicleObservations(ctx context.Context, batch []models.VehicleObservation) error
	AppendWeatherObservation(ctx context.Context, rec models.WeatherObservation) error
}

// Config carries the tunables for a Poller. Zero values fall back to
// defaults.
type Config struct {
	Interval              time.Duration
	WriteFailureThreshold int
	FatalFetchRetries     uint64
}

// Poller runs the collection loop. Construct with New and drive with Run;
// cycles execute sequentially on a fixed cadence.
type Poller struct {
	feed    FeedSource
	weather WeatherSource
	store   Store
	clock   clock.Clock
	metrics *metrics.Metrics

	interval              time.Duration
	writeFailureThreshold int
	fatalFetchRetries     uint64

	// consecutiveWriteFailures counts store failures since the last
	// successful write across both streams.
	consecutiveWriteFailures int

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// New creates a Poller over the given sources and store. The metrics
// argument may be nil.
func New(feedSource FeedSource, weatherSource WeatherSource, store Store, clk clock.Clock, m *metrics.Metrics, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.WriteFailureThreshold <= 0 {
		cfg.WriteFailureThreshold = defaultWriteFailureThreshold
	}
	if cfg.FatalFetchRetries == 0 {
		cfg.FatalFetchRetries = defaultFatalFetchRetries
	}

	return &Poller{
		feed:                  feedSource,
		weather:               weatherSource,
		store:                 store,
		clock:                 clk,
		metrics:               m,
		interval:              cfg.Interval,
		writeFailureThreshold: cfg.WriteFailureThreshold,
		fatalFetchRetries:     cfg.FatalFetchRetries,
		shutdownChan:          make(chan struct{}),
	}
}

// Run executes collection cycles until the context is cancelled, Shutdown is
// called, or a cycle returns a fatal error. The first cycle runs immediately;
// subsequent cycles follow at the configured interval regardless of how long
// each cycle takes.
func (p *Poller) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logging.LogOperation(logger, "polling loop started", "interval", p.interval.String())

	if err := p.RunCycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.LogOperation(logger, "polling loop stopped", "reason", "context cancelled")
			return nil
		case <-p.shutdownChan:
			logging.LogOperation(logger, "polling loop stopped", "reason", "shutdown requested")
			return nil
		case <-ticker.C:
			if err := p.RunCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// Shutdown requests a clean stop of the loop. Safe to call multiple times
// and before Run.
func (p *Poller) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownChan)
	})
}

// RunCycle performs a single collection cycle: fetch, decode and store the
// vehicle stream, then the weather stream. Per-stream failures are logged
// and leave that stream empty for the cycle. The returned error is non-nil
// only for the fatal paths: a credential-class feed failure that survives
// its retry budget, or store writes failing past the configured threshold.
func (p *Poller) RunCycle(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	start := time.Now()

	// One timestamp per cycle so every observation in the batch correlates.
	observedAt := p.clock.Now().UTC()

	if err := p.collectVehicles(ctx, logger, observedAt); err != nil {
		return err
	}
	if err := p.collectWeather(ctx, logger); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.CyclesTotal.Inc()
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (p *Poller) collectVehicles(ctx context.Context, logger *slog.Logger, observedAt time.Time) error {
	payload, err := p.fetchVehiclePayload(ctx, logger)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}

	observations, err := feed.DecodeFeed(payload, observedAt)
	if err != nil {
		logging.LogError(logger, "discarding vehicle payload", err, "stream", "vehicle")
		return nil
	}
	if len(observations) == 0 {
		return nil
	}

	if err := p.store.AppendVehicleObservations(ctx, observations); err != nil {
		return p.recordWriteFailure(logger, "vehicle", err)
	}
	p.recordWriteSuccess("vehicle", len(observations))
	logging.LogOperation(logger, "stored vehicle observations", "count", len(observations))
	return nil
}

// fetchVehiclePayload returns a nil payload (and nil error) when the fetch
// failed in a way that only costs this cycle its vehicle data.
func (p *Poller) fetchVehiclePayload(ctx context.Context, logger *slog.Logger) ([]byte, error) {
	payload, err := p.feed.FetchPositions(ctx)
	if err == nil {
		return payload, nil
	}

	if p.metrics != nil {
		p.metrics.FetchErrorsTotal.WithLabelValues("vehicle").Inc()
	}

	var fetchErr *feed.FetchError
	if !errors.As(err, &fetchErr) || !fetchErr.Fatal() {
		logging.LogError(logger, "vehicle feed unavailable this cycle", err, "stream", "vehicle")
		return nil, nil
	}

	// Credential-class failure. A bad key does not fix itself, but give the
	// upstream a bounded chance to recover before taking the loop down.
	logging.LogError(logger, "vehicle feed rejected credentials, retrying", err, "stream", "vehicle")
	payload, err = p.retryFatalFetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("vehicle feed unrecoverable: %w", err)
	}
	return payload, nil
}

func (p *Poller) retryFatalFetch(ctx context.Context) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second

	var payload []byte
	operation := func() error {
		body, err := p.feed.FetchPositions(ctx)
		if err != nil {
			if p.metrics != nil {
				p.metrics.FetchErrorsTotal.WithLabelValues("vehicle").Inc()
			}
			return err
		}
		payload = body
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, p.fatalFetchRetries), ctx))
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *Poller) collectWeather(ctx context.Context, logger *slog.Logger) error {
	observation, err := p.weather.Observe(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.FetchErrorsTotal.WithLabelValues("weather").Inc()
		}
		logging.LogError(logger, "weather unavailable this cycle", err, "stream", "weather")
		return nil
	}

	if err := p.store.AppendWeatherObservation(ctx, observation); err != nil {
		return p.recordWriteFailure(logger, "weather", err)
	}
	p.recordWriteSuccess("weather", 1)
	logging.LogOperation(logger, "stored weather observation", "condition", observation.Condition)
	return nil
}

func (p *Poller) recordWriteFailure(logger *slog.Logger, stream string, err error) error {
	p.consecutiveWriteFailures++
	if p.consecutiveWriteFailures >= p.writeFailureThreshold {
		return fmt.Errorf("store failed %d consecutive writes: %w", p.consecutiveWriteFailures, err)
	}
	logging.LogError(logger, "store write failed, will retry next cycle", err,
		"stream", stream,
		"consecutive_failures", p.consecutiveWriteFailures)
	return nil
}

func (p *Poller) recordWriteSuccess(stream string, count int) {
	p.consecutiveWriteFailures = 0
	if p.metrics != nil {
		p.metrics.ObservationsStoredTotal.WithLabelValues(stream).Add(float64(count))
	}
}
