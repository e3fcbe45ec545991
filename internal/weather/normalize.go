// Package weather fetches current conditions from the OpenWeatherMap API
// and normalizes them into weather observations.
package weather

import (
	"encoding/json"
	"fmt"
	"time"

	"transitpulse.dev/internal/models"
)

// WeatherFormatError reports a response missing one of the fields a
// normalized observation requires. The cycle proceeds without a weather
// record.
type WeatherFormatError struct {
	Field string
}

func (e *WeatherFormatError) Error() string {
	return fmt.Sprintf("weather response is missing required field %q", e.Field)
}

// currentConditions mirrors the fixed paths read from the OpenWeatherMap
// current-weather response. Pointer fields distinguish "absent" from a
// legitimate zero value.
type currentConditions struct {
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *int64   `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Normalize maps a raw weather API response body into at most one
// observation. All required fields must be present; any absence yields a
// *WeatherFormatError. The timestamp is captured at normalization time.
func Normalize(body []byte, scrapedAt time.Time) (models.WeatherObservation, error) {
	var payload currentConditions
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.WeatherObservation{}, fmt.Errorf("unable to parse weather response: %w", err)
	}

	switch {
	case payload.Main == nil || payload.Main.Temp == nil:
		return models.WeatherObservation{}, &WeatherFormatError{Field: "main.temp"}
	case payload.Main.FeelsLike == nil:
		return models.WeatherObservation{}, &WeatherFormatError{Field: "main.feels_like"}
	case payload.Main.Humidity == nil:
		return models.WeatherObservation{}, &WeatherFormatError{Field: "main.humidity"}
	case payload.Wind == nil || payload.Wind.Speed == nil:
		return models.WeatherObservation{}, &WeatherFormatError{Field: "wind.speed"}
	case len(payload.Weather) == 0:
		return models.WeatherObservation{}, &WeatherFormatError{Field: "weather[0]"}
	case payload.Weather[0].Main == "":
		return models.WeatherObservation{}, &WeatherFormatError{Field: "weather[0].main"}
	case payload.Weather[0].Description == "":
		return models.WeatherObservation{}, &WeatherFormatError{Field: "weather[0].description"}
	}

	return models.WeatherObservation{
		Temperature: *payload.Main.Temp,
		FeelsLike:   *payload.Main.FeelsLike,
		Humidity:    *payload.Main.Humidity,
		WindSpeed:   *payload.Wind.Speed,
		Condition:   payload.Weather[0].Main,
		Description: payload.Weather[0].Description,
		ScrapedAt:   scrapedAt.UTC(),
	}, nil
}
