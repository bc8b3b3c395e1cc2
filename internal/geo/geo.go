// Package geo provides coordinate types, great-circle distance, and the
// address resolver used to annotate listings with distance from the target.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius used by the spherical
// approximation. Error is negligible at sub-50-mile scale.
const earthRadiusMiles = 3958.7613

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine returns the great-circle distance between a and b in miles.
func Haversine(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}
