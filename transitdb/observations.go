package transitdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"transitpulse.dev/internal/logging"
	"transitpulse.dev/internal/models"
)

// vehicleInsertBatchSize keeps each multi-row INSERT under SQLite's default
// bound variable limit (999; 7 columns per row).
const vehicleInsertBatchSize = 100

const insertVehicleObservation = `INSERT INTO vehicle_observations (
	vehicle_id, route_id, latitude, longitude, speed, observed_at
) VALUES `

// AppendVehicleObservations inserts the batch in a single transaction.
// Either every observation becomes visible or none does; the data is durable
// once the call returns. An empty batch is a no-op.
func (c *Client) AppendVehicleObservations(ctx context.Context, batch []models.VehicleObservation) error {
	if len(batch) == 0 {
		return nil
	}

	logger := slog.Default().With(slog.String("component", "transitdb"))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "append_vehicle_observations")

	for start := 0; start < len(batch); start += vehicleInsertBatchSize {
		end := start + vehicleInsertBatchSize
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]

		var query strings.Builder
		query.WriteString(insertVehicleObservation)
		args := make([]interface{}, 0, len(chunk)*6)

		for i, obs := range chunk {
			if i > 0 {
				query.WriteString(", ")
			}
			query.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args,
				obs.VehicleID,
				obs.RouteID,
				obs.Latitude,
				obs.Longitude,
				obs.Speed,
				FormatTimestamp(obs.ObservedAt),
			)
		}

		if _, err := tx.ExecContext(ctx, query.String(), args...); err != nil {
			return fmt.Errorf("unable to insert vehicle observations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit vehicle observations: %w", err)
	}

	logging.LogOperation(logger, "vehicle_observations_appended",
		slog.Int("count", len(batch)))

	return nil
}

const insertWeatherObservation = `
INSERT INTO weather_observations (
	temperature, feels_like, humidity, wind_speed, condition, description, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

// AppendWeatherObservation inserts a single weather record.
func (c *Client) AppendWeatherObservation(ctx context.Context, rec models.WeatherObservation) error {
	_, err := c.DB.ExecContext(ctx, insertWeatherObservation,
		rec.Temperature,
		rec.FeelsLike,
		rec.Humidity,
		rec.WindSpeed,
		rec.Condition,
		rec.Description,
		FormatTimestamp(rec.ScrapedAt),
	)
	if err != nil {
		return fmt.Errorf("unable to insert weather observation: %w", err)
	}
	return nil
}

const listVehicleObservations = `
SELECT vehicle_id, route_id, latitude, longitude, speed, observed_at
FROM vehicle_observations
ORDER BY id
`

// ListVehicleObservations returns every stored vehicle observation in insert
// order. Insert order reflects cycle order, which the lag-based queries rely on.
func (q *Queries) ListVehicleObservations(ctx context.Context) ([]models.VehicleObservation, error) {
	rows, err := q.db.QueryContext(ctx, listVehicleObservations)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []models.VehicleObservation
	for rows.Next() {
		var obs models.VehicleObservation
		var observedAt string
		if err := rows.Scan(
			&obs.VehicleID,
			&obs.RouteID,
			&obs.Latitude,
			&obs.Longitude,
			&obs.Speed,
			&observedAt,
		); err != nil {
			return nil, err
		}
		if obs.ObservedAt, err = ParseTimestamp(observedAt); err != nil {
			return nil, err
		}
		items = append(items, obs)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listWeatherObservations = `
SELECT temperature, feels_like, humidity, wind_speed, condition, description, scraped_at
FROM weather_observations
ORDER BY id
`

// ListWeatherObservations returns every stored weather observation in insert order.
func (q *Queries) ListWeatherObservations(ctx context.Context) ([]models.WeatherObservation, error) {
	rows, err := q.db.QueryContext(ctx, listWeatherObservations)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []models.WeatherObservation
	for rows.Next() {
		var rec models.WeatherObservation
		var scrapedAt string
		if err := rows.Scan(
			&rec.Temperature,
			&rec.FeelsLike,
			&rec.Humidity,
			&rec.WindSpeed,
			&rec.Condition,
			&rec.Description,
			&scrapedAt,
		); err != nil {
			return nil, err
		}
		if rec.ScrapedAt, err = ParseTimestamp(scrapedAt); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
