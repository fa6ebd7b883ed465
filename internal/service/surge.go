package service

import (
	"context"
	"log/slog"

	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

// SurgeProvider yields the demand multiplier at a pickup point.
type SurgeProvider interface {
	GetMultiplier(ctx context.Context, lat, lng float64) float64
}

// SurgeService calculates surge pricing based on supply and demand.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	config        SurgeConfig
	logger        *slog.Logger
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	logger *slog.Logger,
) *SurgeService {
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		config:        DefaultSurgeConfig(),
		logger:        logger,
	}
}

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	RadiusKm       float64 // area checked for supply and demand
	LowSurgeRatio  float64 // demand/supply ratio for 1.25x
	MedSurgeRatio  float64 // demand/supply ratio for 1.5x
	HighSurgeRatio float64 // demand/supply ratio for MaxSurge
	MaxSurge       float64
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		RadiusKm:       5.0,
		LowSurgeRatio:  1.2,
		MedSurgeRatio:  1.5,
		HighSurgeRatio: 2.0,
		MaxSurge:       2.0,
	}
}

// GetMultiplier calculates the surge multiplier for a given location.
// Returns 1.0 if no surge, up to MaxSurge under high demand. Lookup
// failures fail open to 1.0.
func (s *SurgeService) GetMultiplier(ctx context.Context, lat, lng float64) float64 {
	supply, err := s.locationStore.CountNearbyDrivers(ctx, lat, lng, s.config.RadiusKm*1000)
	if err != nil {
		s.logger.WarnContext(ctx, "surge supply lookup failed", slog.Any("error", err))
		return 1.0
	}

	demand, err := s.rideRepo.CountRequestedNear(ctx, lat, lng, s.config.RadiusKm)
	if err != nil {
		s.logger.WarnContext(ctx, "surge demand lookup failed", slog.Any("error", err))
		return 1.0
	}

	return calculateSurgeMultiplier(supply, demand, s.config)
}

// calculateSurgeMultiplier determines the multiplier based on supply/demand ratio.
func calculateSurgeMultiplier(supply, demand int, config SurgeConfig) float64 {
	if supply == 0 {
		if demand > 0 {
			return config.MaxSurge
		}
		return 1.0
	}

	ratio := float64(demand) / float64(supply)

	switch {
	case ratio >= config.HighSurgeRatio:
		return config.MaxSurge
	case ratio >= config.MedSurgeRatio:
		return 1.5
	case ratio >= config.LowSurgeRatio:
		return 1.25
	default:
		return 1.0
	}
}
