package geo

import (
	"math"
	"time"
)

// earthRadiusKm is the mean radius of the Earth in kilometers.
const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two locations in
// kilometers, using the haversine formula.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SpeedKmh returns the travel speed in km/h implied by covering the
// distance between two locations in the given elapsed time.
// A non-positive elapsed time with a non-zero distance yields +Inf.
func SpeedKmh(from, to Location, elapsed time.Duration) float64 {
	dist := DistanceKm(from, to)
	if elapsed <= 0 {
		if dist > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return dist / elapsed.Hours()
}
