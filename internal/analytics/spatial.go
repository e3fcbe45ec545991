package analytics

import (
	"context"
	"sort"

	"github.com/tidwall/rtree"
	"transitpulse.dev/internal/utils"
	"transitpulse.dev/transitdb"
)

// NearbyVehicle is one vehicle inside a proximity query's radius.
type NearbyVehicle struct {
	Position transitdb.LatestVehiclePositionRow
	// DistanceMeters is the great-circle distance from the query point.
	DistanceMeters float64
}

// ActiveVehiclesNear returns every vehicle whose most recent observation
// lies within radiusMeters of the given point, nearest first. The latest
// positions are indexed in an in-memory R-tree, pruned with a bounding box,
// then refined with an exact distance check.
func (e *Engine) ActiveVehiclesNear(ctx context.Context, lat, lon, radiusMeters float64) ([]NearbyVehicle, error) {
	positions, err := e.queries.LatestVehiclePositions(ctx)
	if err != nil {
		return nil, err
	}

	var index rtree.RTree
	for _, p := range positions {
		point := [2]float64{p.Longitude, p.Latitude}
		index.Insert(point, point, p)
	}

	bounds := utils.CalculateBounds(lat, lon, radiusMeters)

	var nearby []NearbyVehicle
	index.Search(
		[2]float64{bounds.MinLon, bounds.MinLat},
		[2]float64{bounds.MaxLon, bounds.MaxLat},
		func(_, _ [2]float64, value interface{}) bool {
			p := value.(transitdb.LatestVehiclePositionRow)
			d := utils.Distance(lat, lon, p.Latitude, p.Longitude)
			if d <= radiusMeters {
				nearby = append(nearby, NearbyVehicle{Position: p, DistanceMeters: d})
			}
			return true
		},
	)

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	return nearby, nil
}
