package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverLocationKey = "drivers:locations"

// DriverLocation represents a driver's position and its distance from a query point.
type DriverLocation struct {
	DriverID  string
	Lat       float64
	Lng       float64
	DistanceM float64
}

// LocationStore handles driver location operations in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyDrivers returns at most limit drivers within radiusM meters,
// nearest first. A non-positive limit means no limit.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusM float64, limit int) ([]DriverLocation, error) {
	query := &redis.GeoRadiusQuery{
		Radius:    radiusM,
		Unit:      "m",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}
	if limit > 0 {
		query.Count = limit
	}

	results, err := s.client.GeoRadius(ctx, driverLocationKey, lng, lat, query).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, DriverLocation{
			DriverID:  r.Name,
			Lat:       r.Latitude,
			Lng:       r.Longitude,
			DistanceM: r.Dist,
		})
	}

	return locations, nil
}

// CountNearbyDrivers returns the number of indexed drivers within radiusM meters.
func (s *LocationStore) CountNearbyDrivers(ctx context.Context, lat, lng, radiusM float64) (int, error) {
	locations, err := s.FindNearbyDrivers(ctx, lat, lng, radiusM, 0)
	if err != nil {
		return 0, err
	}
	return len(locations), nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
