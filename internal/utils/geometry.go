// Package utils holds small geometry helpers shared by the spatial reports.
package utils

import "math"

const earthRadiusMeters = 6371010.0

// CoordinateBounds is a latitude/longitude bounding box.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Distance returns the great-circle distance in meters between two points.
// Short distances (under ~22km, which covers nearly all proximity queries)
// use an equirectangular approximation to avoid the trig-heavy exact
// formula; longer distances fall back to it.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		lat1Rad := lat1 * (math.Pi / 180)
		lat2Rad := lat2 * (math.Pi / 180)
		dLatRad := (lat2 - lat1) * (math.Pi / 180)
		dLonRad := (lon2 - lon1) * (math.Pi / 180)

		x := dLonRad * math.Cos((lat1Rad+lat2Rad)/2)
		y := dLatRad
		return earthRadiusMeters * math.Sqrt(x*x+y*y)
	}

	lat1Rad := lat1 * (math.Pi / 180)
	lon1Rad := lon1 * (math.Pi / 180)
	lat2Rad := lat2 * (math.Pi / 180)
	lon2Rad := lon2 * (math.Pi / 180)

	deltaLon := lon2Rad - lon1Rad

	y := math.Sqrt(math.Pow(math.Cos(lat2Rad)*math.Sin(deltaLon), 2) +
		math.Pow(math.Cos(lat1Rad)*math.Sin(lat2Rad)-math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon), 2))
	x := math.Sin(lat1Rad)*math.Sin(lat2Rad) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	return earthRadiusMeters * math.Atan2(y, x)
}

// CalculateBounds returns the bounding box that contains every point within
// the given distance (meters) of the center. The box over-approximates the
// circle; callers refine candidates with Distance.
func CalculateBounds(lat, lon, distance float64) CoordinateBounds {
	latRadians := lat * math.Pi / 180
	lonRadians := lon * math.Pi / 180

	latRadius := earthRadiusMeters
	lonRadius := math.Cos(latRadians) * earthRadiusMeters

	latOffset := distance / latRadius
	lonOffset := distance / lonRadius

	return CoordinateBounds{
		MinLat: (latRadians - latOffset) * 180 / math.Pi,
		MaxLat: (latRadians + latOffset) * 180 / math.Pi,
		MinLon: (lonRadians - lonOffset) * 180 / math.Pi,
		MaxLon: (lonRadians + lonOffset) * 180 / math.Pi,
	}
}
