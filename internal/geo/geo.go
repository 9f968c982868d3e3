package geo

import (
	"errors"
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

var ErrOutOfRange = errors.New("delivery point out of range")

// Distance returns the great-circle distance in kilometers between two
// latitude/longitude points, computed with the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Validator gates delivery points against a fixed restaurant origin.
type Validator struct {
	OriginLat float64
	OriginLng float64
	MaxKm     float64
}

// Check returns the distance from the origin to the given point. Points
// beyond MaxKm get ErrOutOfRange carrying the computed distance, so the
// caller can surface it to the customer.
func (v Validator) Check(lat, lng float64) (float64, error) {
	km := Distance(v.OriginLat, v.OriginLng, lat, lng)
	if km > v.MaxKm {
		return km, fmt.Errorf("%w: %.2f km away, we deliver within %.0f km", ErrOutOfRange, km, v.MaxKm)
	}
	return km, nil
}
