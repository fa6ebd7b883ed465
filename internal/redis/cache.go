package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cabnet/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// DriverCacheTTL bounds how stale a cached driver status may be.
const DriverCacheTTL = 30 * time.Second

const driverCachePrefix = "cache:driver:"

// CachedDriver is the subset of a driver needed for dispatch filtering.
type CachedDriver struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	PhoneNumber string  `json:"phoneNumber"`
	Status      string  `json:"status"`
	IsActive    bool    `json:"isActive"`
	VehicleType string  `json:"vehicleType"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Color       string  `json:"color"`
	PlateNumber string  `json:"plateNumber"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"ratingCount"`
}

// NewCachedDriver projects a driver into its cached form.
func NewCachedDriver(d *domain.Driver) *CachedDriver {
	return &CachedDriver{
		ID:          d.ID,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		PhoneNumber: d.PhoneNumber,
		Status:      string(d.Status),
		IsActive:    d.IsActive,
		VehicleType: string(d.Vehicle.Type),
		Make:        d.Vehicle.Make,
		Model:       d.Vehicle.Model,
		Color:       d.Vehicle.Color,
		PlateNumber: d.Vehicle.PlateNumber,
		Rating:      d.Rating.Average,
		RatingCount: d.Rating.Count,
	}
}

// Driver converts the cached form back into a domain driver.
func (c *CachedDriver) Driver() *domain.Driver {
	return &domain.Driver{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		PhoneNumber: c.PhoneNumber,
		Status:      domain.DriverStatus(c.Status),
		IsActive:    c.IsActive,
		Vehicle: domain.Vehicle{
			Type:        domain.RideType(c.VehicleType),
			Make:        c.Make,
			Model:       c.Model,
			Color:       c.Color,
			PlateNumber: c.PlateNumber,
		},
		Rating: domain.Rating{Average: c.Rating, Count: c.RatingCount},
	}
}

// GetDriver retrieves a driver from cache.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// GetDriversBatch retrieves multiple drivers from cache using pipeline.
// Returns a map of driverID -> CachedDriver, and the IDs that missed.
func (s *CacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error) {
	result := make(map[string]*CachedDriver, len(driverIDs))
	if len(driverIDs) == 0 {
		return result, nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(driverIDs))
	for i, id := range driverIDs {
		cmds[i] = pipe.Get(ctx, driverCachePrefix+id)
	}

	// Exec reports redis.Nil when any key is missing; per-command errors are inspected below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	var missing []string
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, driverIDs[i])
			continue
		}

		var driver CachedDriver
		if err := json.Unmarshal(data, &driver); err != nil {
			missing = append(missing, driverIDs[i])
			continue
		}
		result[driverIDs[i]] = &driver
	}

	return result, missing, nil
}

// SetDriversBatch stores multiple drivers in cache using pipeline.
func (s *CacheStore) SetDriversBatch(ctx context.Context, drivers []*CachedDriver) error {
	if len(drivers) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, driver := range drivers {
		data, err := json.Marshal(driver)
		if err != nil {
			continue
		}
		pipe.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}
