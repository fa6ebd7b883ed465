package repository

import (
	"context"

	"cabnet/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// CompareAndSetStatus applies t only if the stored status equals t.From.
	// Returns ErrStaleState when the ride moved on, and the updated ride otherwise.
	CompareAndSetStatus(ctx context.Context, t domain.Transition) (*domain.Ride, error)

	// AdjustFare replaces the fare of a ride whose fare is not frozen.
	// Returns ErrStaleState when the fare is frozen.
	AdjustFare(ctx context.Context, rideID string, fare domain.Fare) error

	// UpdatePayment overwrites the payment sub-record of a ride.
	UpdatePayment(ctx context.Context, rideID string, payment domain.RidePayment) error

	// ListByRider returns the rider's rides, newest first.
	ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error)

	// ListByDriver returns rides assigned to the driver, newest first.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error)

	// ListRequested returns unassigned rides of the given type, oldest first.
	ListRequested(ctx context.Context, rideType domain.RideType, limit int) ([]*domain.Ride, error)

	// CountRequestedNear counts requested rides with pickup within radiusKm.
	CountRequestedNear(ctx context.Context, lat, lng, radiusKm float64) (int, error)
}
