package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

const paymentColumns = `id, ride_id, rider_id, driver_id, amount, currency, status, method, gateway_ref, idempotency_key,
	fare_base, fare_distance, fare_time, fare_surge, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, ride_id, rider_id, driver_id, amount, currency, status, method, gateway_ref, idempotency_key,
			fare_base, fare_distance, fare_time, fare_surge, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`

	b := payment.Breakdown
	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.RiderID,
		nullString(payment.DriverID),
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		nullString(payment.GatewayRef),
		payment.IdempotencyKey,
		b.Base, b.Distance, b.Time, b.Surge,
		payment.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	payment, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetByIdempotencyKey retrieves a payment by its idempotency key.
// Returns nil if no payment exists with the given key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	payment, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

// GetByGatewayRef retrieves the most recent payment carrying the gateway reference.
func (r *PaymentRepository) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_ref = $1 ORDER BY created_at DESC LIMIT 1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

// AttachGatewayRef replaces the gateway reference of a pending payment.
func (r *PaymentRepository) AttachGatewayRef(ctx context.Context, id, ref string) error {
	query := `UPDATE payments SET gateway_ref = $1, updated_at = NOW() WHERE id = $2 AND status = 'pending'`

	result, err := r.q.ExecContext(ctx, query, ref, id)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrStaleState)
}

// UpdateStatus updates the status of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

// ListByRider returns the rider's payments, newest first.
func (r *PaymentRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE rider_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var payment domain.Payment
	var driverID, gatewayRef sql.NullString

	err := s.Scan(
		&payment.ID,
		&payment.RideID,
		&payment.RiderID,
		&driverID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&gatewayRef,
		&payment.IdempotencyKey,
		&payment.Breakdown.Base,
		&payment.Breakdown.Distance,
		&payment.Breakdown.Time,
		&payment.Breakdown.Surge,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.DriverID = driverID.String
	payment.GatewayRef = gatewayRef.String
	payment.Breakdown.Total = payment.Amount
	payment.Breakdown.Currency = payment.Currency
	return &payment, nil
}
