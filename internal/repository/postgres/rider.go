package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

const riderColumns = `id, clerk_id, email, first_name, last_name, phone_number,
	pref_ride_type, pref_payment_method, rating_average, rating_count, is_active, last_active, created_at`

// RiderRepository implements repository.RiderRepository using PostgreSQL.
type RiderRepository struct {
	q Querier
}

// NewRiderRepository creates a new RiderRepository.
func NewRiderRepository(db *sql.DB) *RiderRepository {
	return &RiderRepository{q: db}
}

// NewRiderRepositoryWithTx creates a rider repository using a transaction.
func NewRiderRepositoryWithTx(tx *sql.Tx) *RiderRepository {
	return &RiderRepository{q: tx}
}

// Create adds a new rider.
func (r *RiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	query := `
		INSERT INTO riders (id, clerk_id, email, first_name, last_name, phone_number,
			pref_ride_type, pref_payment_method, is_active, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		rider.ID, rider.ClerkID, rider.Email, rider.FirstName, rider.LastName, rider.PhoneNumber,
		rider.Preferences.RideType, rider.Preferences.PaymentMethod, rider.IsActive, rider.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a rider by ID.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id)
}

// GetByClerkID retrieves a rider by identity credential.
func (r *RiderRepository) GetByClerkID(ctx context.Context, clerkID string) (*domain.Rider, error) {
	return r.getOne(ctx, `SELECT `+riderColumns+` FROM riders WHERE clerk_id = $1`, clerkID)
}

// GetByEmail retrieves a rider by email address.
func (r *RiderRepository) GetByEmail(ctx context.Context, email string) (*domain.Rider, error) {
	return r.getOne(ctx, `SELECT `+riderColumns+` FROM riders WHERE email = $1`, email)
}

// UpdateProfile updates the editable fields of a rider.
func (r *RiderRepository) UpdateProfile(ctx context.Context, rider *domain.Rider) error {
	query := `
		UPDATE riders
		SET first_name = $1, last_name = $2, phone_number = $3, pref_ride_type = $4, pref_payment_method = $5, last_active = NOW()
		WHERE id = $6
	`
	result, err := r.q.ExecContext(ctx, query,
		rider.FirstName, rider.LastName, rider.PhoneNumber,
		rider.Preferences.RideType, rider.Preferences.PaymentMethod,
		rider.ID,
	)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

func (r *RiderRepository) getOne(ctx context.Context, query string, arg any) (*domain.Rider, error) {
	var rider domain.Rider
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&rider.ID, &rider.ClerkID, &rider.Email, &rider.FirstName, &rider.LastName, &rider.PhoneNumber,
		&rider.Preferences.RideType, &rider.Preferences.PaymentMethod,
		&rider.Rating.Average, &rider.Rating.Count,
		&rider.IsActive, &rider.LastActive, &rider.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rider, nil
}
