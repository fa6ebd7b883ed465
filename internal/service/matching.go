package service

import (
	"context"
	"log/slog"

	"cabnet/internal/domain"
	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

const (
	defaultSearchRadiusM = 5000.0
	nearbyDriverLimit    = 10
)

// MatchingService finds drivers able to serve a pickup.
type MatchingService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.DriverCacheInterface
	driverRepo    repository.DriverRepository
	logger        *slog.Logger
}

// NewMatchingService creates a new MatchingService. cacheStore may be nil.
func NewMatchingService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.DriverCacheInterface,
	driverRepo repository.DriverRepository,
	logger *slog.Logger,
) *MatchingService {
	return &MatchingService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		logger:        logger,
	}
}

// NearbyRequest contains the parameters of a nearby driver search.
type NearbyRequest struct {
	Lat          float64
	Lng          float64
	RideType     domain.RideType
	MaxDistanceM float64 // 0 uses the default radius
}

// NearbyDrivers returns up to ten drivers within the radius who are online,
// active and drive the requested type, nearest first.
func (s *MatchingService) NearbyDrivers(ctx context.Context, req NearbyRequest) ([]domain.NearbyDriver, error) {
	if !(domain.Location{Lat: req.Lat, Lng: req.Lng}).ValidCoordinates() {
		return nil, ErrInvalidLocation
	}
	if !req.RideType.Valid() {
		return nil, ErrInvalidRideType
	}
	radius := req.MaxDistanceM
	if radius <= 0 {
		radius = defaultSearchRadiusM
	}

	// The index holds busy drivers and every ride type, so the cap is applied
	// only after eligibility filtering.
	locations, err := s.locationStore.FindNearbyDrivers(ctx, req.Lat, req.Lng, radius, 0)
	if err != nil {
		s.logger.WarnContext(ctx, "geo index unavailable, falling back to database", slog.Any("error", err))
		nearby, err := s.driverRepo.FindNearby(ctx, req.Lat, req.Lng, req.RideType, radius, nearbyDriverLimit)
		if err != nil {
			return nil, upstream("find nearby drivers", err)
		}
		return nearby, nil
	}
	if len(locations) == 0 {
		return []domain.NearbyDriver{}, nil
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.DriverID
	}

	drivers, err := s.loadDrivers(ctx, ids)
	if err != nil {
		return nil, upstream("load nearby drivers", err)
	}

	result := make([]domain.NearbyDriver, 0, nearbyDriverLimit)
	for _, loc := range locations {
		if len(result) == nearbyDriverLimit {
			break
		}
		driver, ok := drivers[loc.DriverID]
		if !ok || !driver.CanAccept(req.RideType) {
			continue
		}
		driver.Location.Lat, driver.Location.Lng = loc.Lat, loc.Lng
		result = append(result, domain.NearbyDriver{Driver: driver, DistanceM: loc.DistanceM})
	}
	return result, nil
}

// loadDrivers resolves ids from the cache, then the database for misses.
func (s *MatchingService) loadDrivers(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	drivers := make(map[string]*domain.Driver, len(ids))
	missing := ids

	if s.cacheStore != nil {
		cached, miss, err := s.cacheStore.GetDriversBatch(ctx, ids)
		if err != nil {
			s.logger.WarnContext(ctx, "driver cache read failed", slog.Any("error", err))
		} else {
			for id, c := range cached {
				drivers[id] = c.Driver()
			}
			missing = miss
		}
	}
	if len(missing) == 0 {
		return drivers, nil
	}

	fresh, err := s.driverRepo.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	toCache := make([]*redis.CachedDriver, 0, len(fresh))
	for _, d := range fresh {
		drivers[d.ID] = d
		toCache = append(toCache, redis.NewCachedDriver(d))
	}
	if s.cacheStore != nil && len(toCache) > 0 {
		if err := s.cacheStore.SetDriversBatch(ctx, toCache); err != nil {
			s.logger.WarnContext(ctx, "driver cache write failed", slog.Any("error", err))
		}
	}
	return drivers, nil
}
