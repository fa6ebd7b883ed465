package repository

import (
	"context"

	"cabnet/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment. Returns ErrDuplicate when the
	// idempotency key is already taken.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIdempotencyKey retrieves a payment by its idempotency key.
	// Returns nil if no payment exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// GetByGatewayRef retrieves a payment by the gateway's reference.
	GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error)

	// AttachGatewayRef replaces the gateway reference of a pending payment.
	AttachGatewayRef(ctx context.Context, id, ref string) error

	// UpdateStatus updates the status of a payment.
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error

	// ListByRider returns the rider's payments, newest first.
	ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Payment, error)
}
