package repository

import (
	"context"

	"cabnet/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Returns ErrDuplicate on a uniqueness violation.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByClerkID retrieves a driver by identity credential.
	GetByClerkID(ctx context.Context, clerkID string) (*domain.Driver, error)

	// GetByEmail retrieves a driver by email address.
	GetByEmail(ctx context.Context, email string) (*domain.Driver, error)

	// GetByIDs retrieves drivers in a single query. Missing IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error)

	// UpdateProfile updates the editable fields of a driver.
	UpdateProfile(ctx context.Context, driver *domain.Driver) error

	// UpdateStatus sets the status of a driver unconditionally.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error

	// CompareAndSetStatus moves a driver from one status to another.
	// Returns ErrStaleState when the driver is not in from.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.DriverStatus) error

	// UpdateLocation records the driver's last known position.
	UpdateLocation(ctx context.Context, id string, loc domain.Location) error

	// FindNearby returns online, active drivers of rideType within maxMeters,
	// nearest first, computed from stored coordinates.
	FindNearby(ctx context.Context, lat, lng float64, rideType domain.RideType, maxMeters float64, limit int) ([]domain.NearbyDriver, error)
}
