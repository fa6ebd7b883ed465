package repository

import (
	"context"

	"cabnet/internal/domain"
)

// RiderRepository defines the persistence operations for riders.
type RiderRepository interface {
	// Create adds a new rider. Returns ErrDuplicate on a uniqueness violation.
	Create(ctx context.Context, rider *domain.Rider) error

	// GetByID retrieves a rider by ID.
	GetByID(ctx context.Context, id string) (*domain.Rider, error)

	// GetByClerkID retrieves a rider by identity credential.
	GetByClerkID(ctx context.Context, clerkID string) (*domain.Rider, error)

	// GetByEmail retrieves a rider by email address.
	GetByEmail(ctx context.Context, email string) (*domain.Rider, error)

	// UpdateProfile updates the editable fields of a rider.
	UpdateProfile(ctx context.Context, rider *domain.Rider) error
}
