package feed

import (
	"database/sql"
	"time"

	"github.com/OneBusAway/go-gtfs"
	"transitpulse.dev/internal/models"
	"transitpulse.dev/transitdb"
)

// DecodeFeed parses a raw GTFS-RT payload into vehicle observations.
// Every emitted observation carries the same observedAt value: positions in
// one payload were captured together, so they share one cycle timestamp.
//
// Entities are skipped (not errors) when they carry no vehicle id, no
// position, or the feed's (0, 0) "no fix" sentinel. A payload that cannot
// be parsed at all yields a *FeedParseError and no observations.
func DecodeFeed(payload []byte, observedAt time.Time) ([]models.VehicleObservation, error) {
	realtime, err := gtfs.ParseRealtime(payload, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, &FeedParseError{Err: err}
	}

	observations := make([]models.VehicleObservation, 0, len(realtime.Vehicles))
	for _, vehicle := range realtime.Vehicles {
		if vehicle.ID == nil || vehicle.ID.ID == "" {
			continue
		}
		if vehicle.Position == nil || vehicle.Position.Latitude == nil || vehicle.Position.Longitude == nil {
			continue
		}

		latitude := float64(*vehicle.Position.Latitude)
		longitude := float64(*vehicle.Position.Longitude)
		if latitude == 0 && longitude == 0 {
			continue
		}

		var routeID sql.NullString
		if vehicle.Trip != nil {
			routeID = transitdb.ToNullString(vehicle.Trip.ID.RouteID)
		}

		var speed sql.NullFloat64
		if vehicle.Position.Speed != nil {
			speed = sql.NullFloat64{Float64: float64(*vehicle.Position.Speed), Valid: true}
		}

		observations = append(observations, models.VehicleObservation{
			VehicleID:  vehicle.ID.ID,
			RouteID:    routeID,
			Latitude:   latitude,
			Longitude:  longitude,
			Speed:      speed,
			ObservedAt: observedAt,
		})
	}

	return observations, nil
}
