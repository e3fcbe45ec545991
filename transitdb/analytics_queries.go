package transitdb

// Hand-written analytical query implementations. These are the read path of
// the store: every query here is a pure read over the append-only log and
// may be re-run arbitrarily often with identical results between writes.
//
// IMPORTANT: If the 'vehicle_observations' or 'weather_observations' table
// schemas change, the SQL and Go types in this file must be updated manually
// to match.

import (
	"context"
	"database/sql"
	"fmt"
)

// MinuteBucket returns the SQL expression that truncates a timestamp column
// to minute resolution. Correlating the two observation streams is an
// approximate, bucket-based join rather than a referential one; the bucket
// width is a policy decision, so it lives in one named place.
func MinuteBucket(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M', %s)", column)
}

const hourlyActivity = `
SELECT
    strftime('%H', observed_at) AS hour_of_day,
    COUNT(DISTINCT vehicle_id) AS active_vehicles
FROM
    vehicle_observations
GROUP BY
    hour_of_day
ORDER BY
    hour_of_day
`

type HourlyActivityRow struct {
	HourOfDay      string
	ActiveVehicles int64
}

// HourlyActivity counts distinct vehicles reporting per hour of day.
func (q *Queries) HourlyActivity(ctx context.Context) ([]HourlyActivityRow, error) {
	rows, err := q.db.QueryContext(ctx, hourlyActivity)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []HourlyActivityRow
	for rows.Next() {
		var i HourlyActivityRow
		if err := rows.Scan(&i.HourOfDay, &i.ActiveVehicles); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const routeRanking = `
SELECT
    route_id,
    COUNT(DISTINCT vehicle_id) AS unique_vehicle_count
FROM
    vehicle_observations
WHERE
    route_id IS NOT NULL
GROUP BY
    route_id
ORDER BY
    unique_vehicle_count DESC,
    route_id
LIMIT
    ?
`

type RouteRankingRow struct {
	RouteID            string
	UniqueVehicleCount int64
}

// RouteRanking returns the busiest routes by distinct vehicle count.
// Observations without an assigned route are excluded. Ties are broken by
// route id so the ordering is stable.
func (q *Queries) RouteRanking(ctx context.Context, limit int64) ([]RouteRankingRow, error) {
	rows, err := q.db.QueryContext(ctx, routeRanking, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []RouteRankingRow
	for rows.Next() {
		var i RouteRankingRow
		if err := rows.Scan(&i.RouteID, &i.UniqueVehicleCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// speedByCondition joins the two streams on minute-truncated timestamps.
// Only positive, non-null speeds contribute to the average.
var speedByCondition = fmt.Sprintf(`
SELECT
    w.condition,
    AVG(v.speed) AS average_speed,
    COUNT(v.vehicle_id) AS data_points
FROM
    vehicle_observations v
    JOIN weather_observations w ON %s = %s
WHERE
    v.speed IS NOT NULL AND v.speed > 0
GROUP BY
    w.condition
ORDER BY
    average_speed DESC
`, MinuteBucket("v.observed_at"), MinuteBucket("w.scraped_at"))

type SpeedByConditionRow struct {
	Condition    string
	AverageSpeed float64
	DataPoints   int64
}

// SpeedByCondition computes mean vehicle speed per weather condition over
// observations that fall in the same minute bucket as a weather record.
func (q *Queries) SpeedByCondition(ctx context.Context) ([]SpeedByConditionRow, error) {
	rows, err := q.db.QueryContext(ctx, speedByCondition)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []SpeedByConditionRow
	for rows.Next() {
		var i SpeedByConditionRow
		if err := rows.Scan(&i.Condition, &i.AverageSpeed, &i.DataPoints); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// stationaryVehicles compares each observation against the same vehicle's
// immediately preceding one. LAG without a default yields NULL for the first
// observation of each vehicle, so a genuine "no previous row" can never be
// confused with a real coordinate.
const stationaryVehicles = `
WITH journeys AS (
    SELECT
        vehicle_id,
        latitude,
        longitude,
        observed_at,
        LAG(latitude) OVER (PARTITION BY vehicle_id ORDER BY observed_at, id) AS prev_lat,
        LAG(longitude) OVER (PARTITION BY vehicle_id ORDER BY observed_at, id) AS prev_lon
    FROM
        vehicle_observations
)
SELECT
    vehicle_id,
    latitude,
    longitude,
    observed_at
FROM
    journeys
WHERE
    prev_lat IS NOT NULL
    AND prev_lon IS NOT NULL
    AND latitude = prev_lat
    AND longitude = prev_lon
ORDER BY
    vehicle_id,
    observed_at DESC
LIMIT
    ?
`

type StationaryVehicleRow struct {
	VehicleID  string
	Latitude   float64
	Longitude  float64
	ObservedAt string
}

// StationaryVehicles flags observations whose coordinates are bit-identical
// to the same vehicle's previous observation.
func (q *Queries) StationaryVehicles(ctx context.Context, limit int64) ([]StationaryVehicleRow, error) {
	rows, err := q.db.QueryContext(ctx, stationaryVehicles, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []StationaryVehicleRow
	for rows.Next() {
		var i StationaryVehicleRow
		if err := rows.Scan(&i.VehicleID, &i.Latitude, &i.Longitude, &i.ObservedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const latestVehiclePositions = `
SELECT
    v.vehicle_id,
    v.route_id,
    v.latitude,
    v.longitude,
    v.speed,
    v.observed_at
FROM
    vehicle_observations v
    JOIN (
        SELECT vehicle_id, MAX(id) AS max_id
        FROM vehicle_observations
        GROUP BY vehicle_id
    ) latest ON v.id = latest.max_id
ORDER BY
    v.vehicle_id
`

type LatestVehiclePositionRow struct {
	VehicleID  string
	RouteID    sql.NullString
	Latitude   float64
	Longitude  float64
	Speed      sql.NullFloat64
	ObservedAt string
}

// LatestVehiclePositions returns the most recent stored observation per
// vehicle. Backs the spatial proximity report.
func (q *Queries) LatestVehiclePositions(ctx context.Context) ([]LatestVehiclePositionRow, error) {
	rows, err := q.db.QueryContext(ctx, latestVehiclePositions)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []LatestVehiclePositionRow
	for rows.Next() {
		var i LatestVehiclePositionRow
		if err := rows.Scan(
			&i.VehicleID,
			&i.RouteID,
			&i.Latitude,
			&i.Longitude,
			&i.Speed,
			&i.ObservedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const vehicleTrack = `
SELECT
    latitude,
    longitude,
    observed_at
FROM
    vehicle_observations
WHERE
    vehicle_id = ?
ORDER BY
    observed_at,
    id
`

type VehicleTrackRow struct {
	Latitude   float64
	Longitude  float64
	ObservedAt string
}

// VehicleTrack returns one vehicle's positions in chronological order.
func (q *Queries) VehicleTrack(ctx context.Context, vehicleID string) ([]VehicleTrackRow, error) {
	rows, err := q.db.QueryContext(ctx, vehicleTrack, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []VehicleTrackRow
	for rows.Next() {
		var i VehicleTrackRow
		if err := rows.Scan(&i.Latitude, &i.Longitude, &i.ObservedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
