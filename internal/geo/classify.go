package geo

// Proximity bands relative to the target address.
const (
	ProximityLocal    = "local"
	ProximityNearby   = "nearby"
	ProximityRegional = "regional"
	ProximityRemote   = "remote"
)

// Band thresholds (miles).
const (
	localThreshold    = 10.0
	nearbyThreshold   = 25.0
	regionalThreshold = 50.0
)

// Classify returns the proximity band for a distance from the target address.
// Rules:
//   - local: <= 10 miles
//   - nearby: <= 25 miles
//   - regional: <= 50 miles
//   - remote: everything farther
func Classify(distanceMiles float64) string {
	switch {
	case distanceMiles <= localThreshold:
		return ProximityLocal
	case distanceMiles <= nearbyThreshold:
		return ProximityNearby
	case distanceMiles <= regionalThreshold:
		return ProximityRegional
	default:
		return ProximityRemote
	}
}
