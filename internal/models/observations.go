// Package models defines the observation records shared by the collection
// pipeline and the storage layer.
package models

import (
	"database/sql"
	"time"
)

// VehicleObservation is one vehicle position report from the realtime feed.
// Observations are created once per polling cycle, persisted immediately,
// and never mutated afterwards. RouteID is NULL when the feed does not
// report an assigned route; Speed is NULL when the feed omits the field,
// which is distinct from a reported speed of zero.
type VehicleObservation struct {
	VehicleID  string
	RouteID    sql.NullString
	Latitude   float64
	Longitude  float64
	Speed      sql.NullFloat64
	ObservedAt time.Time
}

// WeatherObservation is one weather reading. At most one is recorded per
// polling cycle.
type WeatherObservation struct {
	Temperature float64
	FeelsLike   float64
	Humidity    int64
	WindSpeed   float64
	Condition   string
	Description string
	ScrapedAt   time.Time
}
