package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

func TestVehicleTrack(t *testing.T) {
	engine, client := newTestEngine(t)
	base := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

	storeVehicle(t, client, "V1", "route-1", 38.5, -120.2, base)
	storeVehicle(t, client, "V1", "route-1", 40.7, -120.95, base.Add(time.Minute))
	storeVehicle(t, client, "V1", "route-1", 43.252, -126.453, base.Add(2*time.Minute))
	storeVehicle(t, client, "OTHER", "route-2", 28.6, 77.2, base)

	track, err := engine.VehicleTrack(context.Background(), "V1")
	require.NoError(t, err)

	assert.Equal(t, "V1", track.VehicleID)
	require.Len(t, track.Points, 3)
	assert.InDelta(t, 38.5, track.Points[0].Latitude, 0.0001)
	assert.InDelta(t, 43.252, track.Points[2].Latitude, 0.0001)

	decoded, _, err := polyline.DecodeCoords([]byte(track.EncodedPolyline))
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.InDelta(t, 40.7, decoded[1][0], 0.0001)
	assert.InDelta(t, -120.95, decoded[1][1], 0.0001)
}

func TestVehicleTrack_UnknownVehicle(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.VehicleTrack(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
