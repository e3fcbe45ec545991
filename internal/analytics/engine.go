// Package analytics exposes read-only reports over the stored observation
// streams. Each report is independent and touches the database only through
// the store's query layer.
package analytics

import (
	"context"

	"transitpulse.dev/transitdb"
)

// Default row limits applied when the caller does not override them.
const (
	DefaultRouteRankingLimit = 10
	DefaultStationaryLimit   = 10
)

// Engine runs analytical reports against a store.
type Engine struct {
	queries *transitdb.Queries
}

// NewEngine creates an Engine over the given store client.
func NewEngine(client *transitdb.Client) *Engine {
	return &Engine{queries: client.Queries}
}

// HourlyActivity reports the count of distinct vehicles seen per hour of
// day, ordered by hour ascending.
func (e *Engine) HourlyActivity(ctx context.Context) ([]transitdb.HourlyActivityRow, error) {
	return e.queries.HourlyActivity(ctx)
}

// RouteRanking reports the busiest routes by distinct vehicle count,
// descending. A limit of zero or less falls back to the default.
func (e *Engine) RouteRanking(ctx context.Context, limit int64) ([]transitdb.RouteRankingRow, error) {
	if limit <= 0 {
		limit = DefaultRouteRankingLimit
	}
	return e.queries.RouteRanking(ctx, limit)
}

// SpeedByCondition correlates vehicle speeds with the weather recorded in
// the same minute and reports mean speed per condition, fastest first.
func (e *Engine) SpeedByCondition(ctx context.Context) ([]transitdb.SpeedByConditionRow, error) {
	return e.queries.SpeedByCondition(ctx)
}

// StationaryVehicles reports observations whose coordinates repeat the
// vehicle's previous observation exactly.
func (e *Engine) StationaryVehicles(ctx context.Context, limit int64) ([]transitdb.StationaryVehicleRow, error) {
	if limit <= 0 {
		limit = DefaultStationaryLimit
	}
	return e.queries.StationaryVehicles(ctx, limit)
}
