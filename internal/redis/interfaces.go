package redis

import (
	"context"
	"time"

	"cabnet/internal/events"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusM float64, limit int) ([]DriverLocation, error)
	CountNearbyDrivers(ctx context.Context, lat, lng, radiusM float64) (int, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// DriverCacheInterface defines the interface for the driver read-through cache.
type DriverCacheInterface interface {
	GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error)
	SetDriversBatch(ctx context.Context, drivers []*CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed claims.
type LockStoreInterface interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RateLimiterInterface defines the interface for request rate limiting.
type RateLimiterInterface interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ DriverCacheInterface   = (*CacheStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ RateLimiterInterface   = (*RateLimiter)(nil)
	_ events.Publisher       = (*EventBus)(nil)
)
