package geo

import "math"

const earthRadiusMeters = 6371000

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HaversineDistance menghitung jarak antara dua titik koordinat dalam Meter.
func HaversineDistance(from, to Coordinates) float64 {
	dLat := (to.Latitude - from.Latitude) * (math.Pi / 180.0)
	dLon := (to.Longitude - from.Longitude) * (math.Pi / 180.0)

	fromLatRad := from.Latitude * (math.Pi / 180.0)
	toLatRad := to.Latitude * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(fromLatRad)*math.Cos(toLatRad)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// GeofenceResult reports a single proximity decision. It is derived on the
// fly and never persisted.
type GeofenceResult struct {
	WithinRange    bool     `json:"within_range"`
	DistanceMeters float64  `json:"distance_meters"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
}

// CheckGeofence decides whether current lies inside the circular geofence of
// radiusMeters around reference. The boundary is inclusive: a distance equal
// to the radius counts as within range. Pure and deterministic; callers must
// reject malformed coordinates before calling.
func CheckGeofence(current, reference Coordinates, radiusMeters float64) GeofenceResult {
	distance := HaversineDistance(current, reference)
	return GeofenceResult{
		WithinRange:    distance <= radiusMeters,
		DistanceMeters: distance,
	}
}
