package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"transitpulse.dev/internal/clock"
	"transitpulse.dev/internal/logging"
	"transitpulse.dev/internal/models"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const maxBodySize = 1 * 1024 * 1024

// Client fetches current conditions for a fixed coordinate.
type Client struct {
	apiKey   string
	lat, lon float64
	baseURL  string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
	clock    clock.Clock
}

// NewClient creates a weather client for the given coordinate. The circuit
// breaker sheds requests after repeated upstream failures so a broken
// weather API cannot slow down every collection cycle.
func NewClient(apiKey string, lat, lon float64, clk clock.Clock) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 2,
		Interval:    1 * time.Minute,
		Timeout:     5 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		circuit: cb,
		clock:   clk,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Observe fetches and normalizes one weather observation.
func (c *Client) Observe(ctx context.Context) (models.WeatherObservation, error) {
	if c.apiKey == "" {
		return models.WeatherObservation{}, fmt.Errorf("weather API key is not configured")
	}

	body, err := c.fetch(ctx)
	if err != nil {
		return models.WeatherObservation{}, err
	}

	return Normalize(body, c.clock.Now())
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("weather fetch failed: %w", err)
		}
		defer logging.SafeCloseWithLogging(resp.Body,
			slog.Default().With(slog.String("component", "weather_client")),
			"http_response_body")

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("weather fetch failed: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read weather response: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
