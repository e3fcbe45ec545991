package feed

import (
	"testing"
	"time"

	gtfsrt "github.com/OneBusAway/go-gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type fixtureVehicle struct {
	id       string
	routeID  string
	lat, lon float32
	speed    *float32
}

func buildFeedPayload(t *testing.T, vehicles []fixtureVehicle) []byte {
	t.Helper()

	message := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
	}
	for i, v := range vehicles {
		position := &gtfsrt.Position{
			Latitude:  proto.Float32(v.lat),
			Longitude: proto.Float32(v.lon),
			Speed:     v.speed,
		}
		vp := &gtfsrt.VehiclePosition{
			Vehicle:  &gtfsrt.VehicleDescriptor{Id: proto.String(v.id)},
			Position: position,
		}
		if v.routeID != "" {
			vp.Trip = &gtfsrt.TripDescriptor{
				TripId:  proto.String("trip-" + v.id),
				RouteId: proto.String(v.routeID),
			}
		}
		message.Entity = append(message.Entity, &gtfsrt.FeedEntity{
			Id:      proto.String(string(rune('a' + i))),
			Vehicle: vp,
		})
	}

	payload, err := proto.Marshal(message)
	require.NoError(t, err)
	return payload
}

func TestDecodeFeed_NormalizesObservations(t *testing.T) {
	observedAt := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	speed := float32(6.5)
	payload := buildFeedPayload(t, []fixtureVehicle{
		{id: "V1", routeID: "route-9", lat: 28.6139, lon: 77.209, speed: &speed},
		{id: "V2", lat: 28.7041, lon: 77.1025},
	})

	observations, err := DecodeFeed(payload, observedAt)
	require.NoError(t, err)
	require.Len(t, observations, 2)

	first := observations[0]
	assert.Equal(t, "V1", first.VehicleID)
	assert.Equal(t, "route-9", first.RouteID.String)
	assert.True(t, first.RouteID.Valid)
	assert.InDelta(t, 28.6139, first.Latitude, 0.0001)
	assert.InDelta(t, 77.209, first.Longitude, 0.0001)
	require.True(t, first.Speed.Valid)
	assert.InDelta(t, 6.5, first.Speed.Float64, 0.0001)
	assert.Equal(t, observedAt, first.ObservedAt)

	second := observations[1]
	assert.Equal(t, "V2", second.VehicleID)
	assert.False(t, second.RouteID.Valid, "vehicle without a trip should have a NULL route")
	assert.False(t, second.Speed.Valid, "absent speed should be NULL, not zero")
}

func TestDecodeFeed_DropsNoFixSentinel(t *testing.T) {
	observedAt := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	payload := buildFeedPayload(t, []fixtureVehicle{
		{id: "V1", lat: 0, lon: 0},
		{id: "V2", lat: 28.7041, lon: 77.1025},
	})

	observations, err := DecodeFeed(payload, observedAt)
	require.NoError(t, err)

	require.Len(t, observations, 1)
	assert.Equal(t, "V2", observations[0].VehicleID)
}

func TestDecodeFeed_KeepsSingleZeroCoordinate(t *testing.T) {
	// Only the exact (0, 0) pair is the no-fix sentinel. A vehicle on the
	// equator or prime meridian is a real position.
	observedAt := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	payload := buildFeedPayload(t, []fixtureVehicle{
		{id: "V1", lat: 0, lon: 77.1},
		{id: "V2", lat: 28.7, lon: 0},
	})

	observations, err := DecodeFeed(payload, observedAt)
	require.NoError(t, err)
	assert.Len(t, observations, 2)
}

func TestDecodeFeed_SkipsVehiclesWithoutID(t *testing.T) {
	observedAt := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)

	message := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfsrt.FeedEntity{
			{
				Id: proto.String("a"),
				Vehicle: &gtfsrt.VehiclePosition{
					Position: &gtfsrt.Position{
						Latitude:  proto.Float32(28.6),
						Longitude: proto.Float32(77.2),
					},
				},
			},
		},
	}
	payload, err := proto.Marshal(message)
	require.NoError(t, err)

	observations, err := DecodeFeed(payload, observedAt)
	require.NoError(t, err)
	assert.Empty(t, observations)
}

func TestDecodeFeed_SharedObservedAt(t *testing.T) {
	observedAt := time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC)
	payload := buildFeedPayload(t, []fixtureVehicle{
		{id: "V1", lat: 28.1, lon: 77.1},
		{id: "V2", lat: 28.2, lon: 77.2},
		{id: "V3", lat: 28.3, lon: 77.3},
	})

	observations, err := DecodeFeed(payload, observedAt)
	require.NoError(t, err)
	require.Len(t, observations, 3)

	for _, obs := range observations {
		assert.Equal(t, observedAt, obs.ObservedAt, "all observations from one payload share one timestamp")
	}
}

func TestDecodeFeed_MalformedPayload(t *testing.T) {
	observations, err := DecodeFeed([]byte{0xff, 0xff, 0xff, 0xff}, time.Now())

	require.Error(t, err)
	var parseErr *FeedParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Empty(t, observations)
}
