package analytics

import (
	"context"
	"fmt"

	"github.com/twpayne/go-polyline"
	"transitpulse.dev/transitdb"
)

// Track is one vehicle's stored movement history.
type Track struct {
	VehicleID string
	Points    []transitdb.VehicleTrackRow
	// EncodedPolyline is the Google encoded-polyline form of the track,
	// ready for map rendering.
	EncodedPolyline string
}

// VehicleTrack returns the chronological track for one vehicle along with
// its encoded polyline. An unknown vehicle id yields an error rather than
// an empty track.
func (e *Engine) VehicleTrack(ctx context.Context, vehicleID string) (Track, error) {
	points, err := e.queries.VehicleTrack(ctx, vehicleID)
	if err != nil {
		return Track{}, err
	}
	if len(points) == 0 {
		return Track{}, fmt.Errorf("no observations stored for vehicle %q", vehicleID)
	}

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}

	return Track{
		VehicleID:       vehicleID,
		Points:          points,
		EncodedPolyline: string(polyline.EncodeCoords(coords)),
	}, nil
}
