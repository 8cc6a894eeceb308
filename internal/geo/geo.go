package geo

import (
	"math"

	domain "github.com/quickdash/order-api/internal/entity"
)

const earthRadiusKm = 6371

// DistanceKm returns the haversine great-circle distance between two points,
// rounded to 2 decimal places. ok is false when either coordinate is missing:
// unknown distance propagates as a value, not an error.
func DistanceKm(a, b *domain.Coordinate) (km float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(earthRadiusKm*c*100) / 100, true
}
