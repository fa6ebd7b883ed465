package service

import (
	"context"
	"errors"
	"log/slog"

	"cabnet/internal/domain"
	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

// DriverService handles driver self-service operations.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.DriverCacheInterface
	driverRepo    repository.DriverRepository
	logger        *slog.Logger
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.DriverCacheInterface,
	driverRepo repository.DriverRepository,
	logger *slog.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		logger:        logger,
	}
}

// GetProfile returns the driver.
func (s *DriverService) GetProfile(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, upstream("load driver", err)
	}
	return driver, nil
}

// DriverProfileUpdate holds the editable driver fields. Nil fields are kept.
type DriverProfileUpdate struct {
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	VehicleMake  *string
	VehicleModel *string
	VehicleYear  *int
	VehicleColor *string
}

// UpdateProfile applies the non-nil fields of update.
func (s *DriverService) UpdateProfile(ctx context.Context, driverID string, update DriverProfileUpdate) (*domain.Driver, error) {
	driver, err := s.GetProfile(ctx, driverID)
	if err != nil {
		return nil, err
	}

	assign(&driver.FirstName, update.FirstName)
	assign(&driver.LastName, update.LastName)
	assign(&driver.PhoneNumber, update.PhoneNumber)
	assign(&driver.Vehicle.Make, update.VehicleMake)
	assign(&driver.Vehicle.Model, update.VehicleModel)
	assign(&driver.Vehicle.Color, update.VehicleColor)
	if update.VehicleYear != nil {
		driver.Vehicle.Year = *update.VehicleYear
	}

	if err := s.driverRepo.UpdateProfile(ctx, driver); err != nil {
		return nil, upstream("update driver", err)
	}
	s.invalidate(ctx, driver.ID)
	return driver, nil
}

// SetStatus switches a driver between online and offline. Busy is owned by
// the ride lifecycle and suspension by operators.
func (s *DriverService) SetStatus(ctx context.Context, driverID string, status domain.DriverStatus) (*domain.Driver, error) {
	if status != domain.DriverStatusOnline && status != domain.DriverStatusOffline {
		return nil, ErrInvalidDriverStatus
	}

	driver, err := s.GetProfile(ctx, driverID)
	if err != nil {
		return nil, err
	}

	switch driver.Status {
	case status:
		return driver, nil
	case domain.DriverStatusSuspended:
		return nil, ErrDriverSuspended
	case domain.DriverStatusBusy:
		return nil, ErrDriverOnRide
	}

	if err := s.driverRepo.CompareAndSetStatus(ctx, driver.ID, driver.Status, status); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, newError(ErrConflict, "driver status changed concurrently")
		}
		return nil, upstream("update driver status", err)
	}
	driver.Status = status

	switch status {
	case domain.DriverStatusOffline:
		if err := s.locationStore.RemoveLocation(ctx, driver.ID); err != nil {
			s.logger.WarnContext(ctx, "geo index removal failed", slog.String("driver_id", driver.ID), slog.Any("error", err))
		}
	case domain.DriverStatusOnline:
		if driver.Location.Lat != 0 || driver.Location.Lng != 0 {
			s.index(ctx, driver.ID, driver.Location)
		}
	}
	s.invalidate(ctx, driver.ID)
	return driver, nil
}

// UpdateLocation records the driver's position. Drivers that are not
// offline or suspended are kept in the geo index used for dispatch.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, loc domain.Location) (*domain.Driver, error) {
	if !loc.ValidCoordinates() {
		return nil, ErrInvalidLocation
	}

	driver, err := s.GetProfile(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.driverRepo.UpdateLocation(ctx, driver.ID, loc); err != nil {
		return nil, upstream("update driver location", err)
	}
	driver.Location = loc

	if driver.Status == domain.DriverStatusOnline || driver.Status == domain.DriverStatusBusy {
		s.index(ctx, driver.ID, loc)
	}
	return driver, nil
}

// index writes the position to the geo index. The database copy is
// authoritative, so failures are only logged.
func (s *DriverService) index(ctx context.Context, driverID string, loc domain.Location) {
	if err := s.locationStore.UpdateLocation(ctx, driverID, loc.Lat, loc.Lng); err != nil {
		s.logger.WarnContext(ctx, "geo index update failed", slog.String("driver_id", driverID), slog.Any("error", err))
	}
}

func (s *DriverService) invalidate(ctx context.Context, driverID string) {
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
