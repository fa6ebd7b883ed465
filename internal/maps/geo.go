package maps

import (
	"context"
	"math"
	"time"

	"cabnet/internal/domain"
)

const (
	earthRadiusM = 6371000.0

	// Straight-line distance understates road distance in cities.
	roadFactor = 1.3
	// Average urban driving speed used for straight-line estimates.
	averageSpeedMps = 25.0 * 1000 / 3600
)

// HaversineM returns the great-circle distance in meters between two
// points specified in decimal degrees.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineEstimator estimates road distance and time from the great-circle distance.
type HaversineEstimator struct{}

// Estimate implements Estimator.
func (HaversineEstimator) Estimate(_ context.Context, from, to domain.Location) (Route, error) {
	meters := HaversineM(from.Lat, from.Lng, to.Lat, to.Lng) * roadFactor
	seconds := meters / averageSpeedMps
	return Route{
		DistanceM: int(math.Round(meters)),
		Duration:  time.Duration(seconds * float64(time.Second)).Round(time.Second),
	}, nil
}
