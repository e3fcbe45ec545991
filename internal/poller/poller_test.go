package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"transitpulse.dev/internal/clock"
	"transitpulse.dev/internal/feed"
	"transitpulse.dev/internal/models"
)

type feedFunc func(ctx context.Context) ([]byte, error)

func (f feedFunc) FetchPositions(ctx context.Context) ([]byte, error) { return f(ctx) }

type weatherFunc func(ctx context.Context) (models.WeatherObservation, error)

func (f weatherFunc) Observe(ctx context.Context) (models.WeatherObservation, error) { return f(ctx) }

// captureStore records appended observations and can be told to fail.
type captureStore struct {
	mu             sync.Mutex
	vehicleBatches [][]models.VehicleObservation
	weather        []models.WeatherObservation
	vehicleErr     error
	weatherErr     error
}

func (s *captureStore) AppendVehicleObservations(_ context.Context, batch []models.VehicleObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vehicleErr != nil {
		return s.vehicleErr
	}
	s.vehicleBatches = append(s.vehicleBatches, batch)
	return nil
}

func (s *captureStore) AppendWeatherObservation(_ context.Context, rec models.WeatherObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.weatherErr != nil {
		return s.weatherErr
	}
	s.weather = append(s.weather, rec)
	return nil
}

func feedPayload(t *testing.T, vehicleIDs ...string) []byte {
	t.Helper()

	message := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
	}
	for i, id := range vehicleIDs {
		message.Entity = append(message.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(id),
			Vehicle: &gtfsrt.VehiclePosition{
				Vehicle: &gtfsrt.VehicleDescriptor{Id: proto.String(id)},
				Position: &gtfsrt.Position{
					Latitude:  proto.Float32(28.6 + float32(i)*0.01),
					Longitude: proto.Float32(77.2),
				},
			},
		})
	}

	payload, err := proto.Marshal(message)
	require.NoError(t, err)
	return payload
}

func staticWeather(condition string) weatherFunc {
	return func(context.Context) (models.WeatherObservation, error) {
		return models.WeatherObservation{
			Temperature: 31.5,
			FeelsLike:   35.0,
			Humidity:    60,
			WindSpeed:   2.1,
			Condition:   condition,
			Description: "test conditions",
			ScrapedAt:   time.Now().UTC(),
		}, nil
	}
}

func TestRunCycle_StoresBothStreams(t *testing.T) {
	payload := feedPayload(t, "V1", "V2")
	store := &captureStore{}
	now := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)

	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return payload, nil }),
		staticWeather("Haze"),
		store,
		clock.NewMockClock(now),
		nil,
		Config{},
	)

	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, store.vehicleBatches, 1)
	batch := store.vehicleBatches[0]
	require.Len(t, batch, 2)
	for _, obs := range batch {
		assert.Equal(t, now, obs.ObservedAt, "every observation in a cycle shares one timestamp")
	}

	require.Len(t, store.weather, 1)
	assert.Equal(t, "Haze", store.weather[0].Condition)
}

func TestRunCycle_TransientFetchErrorKeepsWeather(t *testing.T) {
	store := &captureStore{}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) {
			return nil, &feed.FetchError{URL: "http://feed", StatusCode: 502}
		}),
		staticWeather("Rain"),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{},
	)

	require.NoError(t, p.RunCycle(context.Background()))

	assert.Empty(t, store.vehicleBatches)
	require.Len(t, store.weather, 1, "a failed vehicle fetch must not cost the cycle its weather record")
}

func TestRunCycle_ParseErrorKeepsWeather(t *testing.T) {
	store := &captureStore{}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) {
			return []byte{0xff, 0xff, 0xff, 0xff}, nil
		}),
		staticWeather("Clear"),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{},
	)

	require.NoError(t, p.RunCycle(context.Background()))

	assert.Empty(t, store.vehicleBatches)
	assert.Len(t, store.weather, 1)
}

func TestRunCycle_WeatherErrorKeepsVehicles(t *testing.T) {
	payload := feedPayload(t, "V1")
	store := &captureStore{}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return payload, nil }),
		weatherFunc(func(context.Context) (models.WeatherObservation, error) {
			return models.WeatherObservation{}, &stubFailure{}
		}),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{},
	)

	require.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, store.vehicleBatches, 1)
	assert.Empty(t, store.weather)
}

type stubFailure struct{}

func (*stubFailure) Error() string { return "stubbed failure" }

func TestRunCycle_CredentialFailureIsFatal(t *testing.T) {
	calls := 0
	p := New(
		feedFunc(func(context.Context) ([]byte, error) {
			calls++
			return nil, &feed.FetchError{URL: "http://feed", StatusCode: 401}
		}),
		staticWeather("Clear"),
		&captureStore{},
		clock.NewMockClock(time.Now()),
		nil,
		Config{FatalFetchRetries: 1},
	)

	err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecoverable")
	// Initial attempt plus the bounded retry budget.
	assert.Equal(t, 3, calls)
}

func TestRunCycle_WriteFailuresFatalAfterThreshold(t *testing.T) {
	payload := feedPayload(t, "V1")
	store := &captureStore{vehicleErr: &stubFailure{}, weatherErr: &stubFailure{}}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return payload, nil }),
		staticWeather("Clear"),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{WriteFailureThreshold: 3},
	)

	// Cycle 1: vehicle and weather writes fail (2 consecutive failures).
	require.NoError(t, p.RunCycle(context.Background()))

	// Cycle 2: the third consecutive failure crosses the threshold.
	err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consecutive writes")
}

func TestRunCycle_WriteSuccessResetsFailureCount(t *testing.T) {
	payload := feedPayload(t, "V1")
	store := &captureStore{weatherErr: &stubFailure{}}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return payload, nil }),
		staticWeather("Clear"),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{WriteFailureThreshold: 2},
	)

	// Each cycle: vehicle write succeeds (resets the counter), weather write
	// fails (counter back to 1). The threshold is never crossed.
	for i := 0; i < 5; i++ {
		require.NoError(t, p.RunCycle(context.Background()))
	}
	assert.Len(t, store.vehicleBatches, 5)
}

func TestRun_ShutdownStopsLoop(t *testing.T) {
	payload := feedPayload(t, "V1")
	store := &captureStore{}
	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return payload, nil }),
		staticWeather("Clear"),
		store,
		clock.NewMockClock(time.Now()),
		nil,
		Config{Interval: 10 * time.Millisecond},
	)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(35 * time.Millisecond)
	p.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Shutdown")
	}

	store.mu.Lock()
	cycles := len(store.vehicleBatches)
	store.mu.Unlock()
	assert.GreaterOrEqual(t, cycles, 2, "loop should have completed multiple cycles before shutdown")
}

func TestRun_ContextCancellationStopsLoop(t *testing.T) {
	p := New(
		feedFunc(func(context.Context) ([]byte, error) { return feedPayload(t, "V1"), nil }),
		staticWeather("Clear"),
		&captureStore{},
		clock.NewMockClock(time.Now()),
		nil,
		Config{Interval: 10 * time.Millisecond},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
