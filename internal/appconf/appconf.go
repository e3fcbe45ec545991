// Package appconf holds application configuration. Configuration is read
// once at startup and passed explicitly to the components that need it;
// there is no ambient global state.
package appconf

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment describes the runtime environment of the application.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// EnvFlagToEnvironment maps an environment flag value to an Environment.
// Unknown values fall back to Development.
func EnvFlagToEnvironment(flag string) Environment {
	switch flag {
	case "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Test:
		return "test"
	default:
		return "development"
	}
}

// Config is the full application configuration.
type Config struct {
	Env Environment

	// FeedURL is the GTFS-Realtime vehicle positions endpoint. The API key
	// is passed as a query parameter by the feed fetcher.
	FeedURL    string
	FeedAPIKey string

	// OpenWeatherMap credentials and the coordinates to observe.
	WeatherAPIKey string
	WeatherLat    float64
	WeatherLon    float64

	// DBPath is the SQLite database location. Tests must use ":memory:".
	DBPath string

	// PollInterval is the fixed delay between collection cycles.
	PollInterval time.Duration

	// MetricsAddr, when non-empty, enables the Prometheus metrics listener.
	MetricsAddr string

	Verbose bool
}

// Load reads configuration from the environment, consulting a .env file
// first if one is present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}

	cfg := Config{
		Env:           EnvFlagToEnvironment(getenvDefault("TRANSITPULSE_ENV", "development")),
		FeedURL:       os.Getenv("TRANSITPULSE_FEED_URL"),
		FeedAPIKey:    os.Getenv("TRANSITPULSE_FEED_API_KEY"),
		WeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		DBPath:        getenvDefault("TRANSITPULSE_DB_PATH", "transit_data.db"),
		MetricsAddr:   os.Getenv("TRANSITPULSE_METRICS_ADDR"),
		Verbose:       getenvBool("TRANSITPULSE_VERBOSE", false),
	}

	interval, err := time.ParseDuration(getenvDefault("TRANSITPULSE_POLL_INTERVAL", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TRANSITPULSE_POLL_INTERVAL: %w", err)
	}
	cfg.PollInterval = interval

	cfg.WeatherLat, err = getenvFloat("TRANSITPULSE_WEATHER_LAT", 28.7041)
	if err != nil {
		return Config{}, err
	}
	cfg.WeatherLon, err = getenvFloat("TRANSITPULSE_WEATHER_LON", 77.1025)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports configuration problems that would prevent the scraper
// from running at all. Missing credentials are caught here rather than as
// repeated fetch failures at runtime.
func (c Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("feed URL is not configured")
	}
	if c.WeatherAPIKey == "" {
		return fmt.Errorf("weather API key is not configured")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
