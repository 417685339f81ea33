package geo

import (
	"errors"
	"math"

	"harshuu/pkg/money"
)

const earthRadiusKm = 6371

var ErrInvalidCoordinate = errors.New("invalid latitude or longitude")

func validate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// Distance returns the haversine great-circle distance in kilometers,
// rounded to 2 decimals.
func Distance(fromLat, fromLng, toLat, toLng float64) (float64, error) {
	if err := validate(fromLat, fromLng); err != nil {
		return 0, err
	}
	if err := validate(toLat, toLng); err != nil {
		return 0, err
	}

	dLat := toRadians(toLat - fromLat)
	dLng := toRadians(toLng - fromLng)

	lat1 := toRadians(fromLat)
	lat2 := toRadians(toLat)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return money.Round2(earthRadiusKm * c), nil
}

// WithinRadius reports whether the two points are at most maxRadiusKm apart.
func WithinRadius(fromLat, fromLng, toLat, toLng, maxRadiusKm float64) (bool, error) {
	d, err := Distance(fromLat, fromLng, toLat, toLng)
	if err != nil {
		return false, err
	}
	return d <= maxRadiusKm, nil
}
