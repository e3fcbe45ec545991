package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"transitpulse.dev/internal/clock"
)

func TestObserve(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"lat":   q.Get("lat"),
			"lon":   q.Get("lon"),
			"appid": q.Get("appid"),
			"units": q.Get("units"),
		}
		_, _ = w.Write([]byte(fullResponse))
	}))
	defer server.Close()

	now := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	client := NewClient("test-key", 28.7041, 77.1025, clock.NewMockClock(now)).WithBaseURL(server.URL)

	obs, err := client.Observe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "28.7041", gotQuery["lat"])
	assert.Equal(t, "77.1025", gotQuery["lon"])
	assert.Equal(t, "test-key", gotQuery["appid"])
	assert.Equal(t, "metric", gotQuery["units"])
	assert.Equal(t, "Haze", obs.Condition)
	assert.Equal(t, now, obs.ScrapedAt)
}

func TestObserve_MissingAPIKey(t *testing.T) {
	client := NewClient("", 28.7041, 77.1025, clock.RealClock{})

	_, err := client.Observe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestObserve_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("test-key", 28.7041, 77.1025, clock.RealClock{}).WithBaseURL(server.URL)

	_, err := client.Observe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestObserve_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("test-key", 28.7041, 77.1025, clock.RealClock{}).WithBaseURL(server.URL)

	// The default breaker trips after more than five consecutive failures.
	var err error
	for i := 0; i < 10; i++ {
		_, err = client.Observe(context.Background())
		require.Error(t, err)
	}
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
