package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

const rideColumns = `id, rider_id, driver_id,
	pickup_lat, pickup_lng, pickup_address, pickup_city, pickup_state, pickup_zip, pickup_instructions,
	dropoff_lat, dropoff_lng, dropoff_address, dropoff_city, dropoff_state, dropoff_zip,
	ride_type, status,
	fare_base, fare_distance, fare_time, fare_surge, fare_total, fare_currency, fare_frozen,
	distance_m, duration_s,
	payment_method, payment_status, payment_ref,
	cancel_reason, cancelled_by, cancelled_at,
	notes, created_at, accepted_at, arrived_at, started_at, completed_at, updated_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id,
			pickup_lat, pickup_lng, pickup_address, pickup_city, pickup_state, pickup_zip, pickup_instructions,
			dropoff_lat, dropoff_lng, dropoff_address, dropoff_city, dropoff_state, dropoff_zip,
			ride_type, status,
			fare_base, fare_distance, fare_time, fare_surge, fare_total, fare_currency,
			distance_m, duration_s, payment_method, payment_status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $29)
	`

	// Default payment method to card if not set
	paymentMethod := ride.Payment.Method
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCard
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.Pickup.Lat, ride.Pickup.Lng, ride.Pickup.Address, ride.Pickup.City, ride.Pickup.State, ride.Pickup.ZipCode, ride.Pickup.Instructions,
		ride.Dropoff.Lat, ride.Dropoff.Lng, ride.Dropoff.Address, ride.Dropoff.City, ride.Dropoff.State, ride.Dropoff.ZipCode,
		ride.RideType,
		ride.Status,
		ride.Fare.Base, ride.Fare.Distance, ride.Fare.Time, ride.Fare.Surge, ride.Fare.Total, ride.Fare.Currency,
		ride.DistanceM,
		ride.DurationS,
		paymentMethod,
		domain.PaymentStatusPending,
		ride.Notes,
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// CompareAndSetStatus applies the transition in a single conditional UPDATE.
func (r *RideRepository) CompareAndSetStatus(ctx context.Context, t domain.Transition) (*domain.Ride, error) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []any{t.To, t.At}
	conds := []string{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch t.To {
	case domain.RideStatusAccepted:
		sets = append(sets, "driver_id = "+arg(t.DriverID), "accepted_at = $2")
		conds = append(conds, "driver_id IS NULL")
	case domain.RideStatusArrived:
		sets = append(sets, "arrived_at = $2")
	case domain.RideStatusStarted:
		sets = append(sets, "started_at = $2")
	case domain.RideStatusCompleted:
		sets = append(sets, "completed_at = $2", "fare_frozen = TRUE")
		if f := t.FinalFare; f != nil {
			sets = append(sets,
				"fare_base = "+arg(f.Base),
				"fare_distance = "+arg(f.Distance),
				"fare_time = "+arg(f.Time),
				"fare_surge = "+arg(f.Surge),
				"fare_total = "+arg(f.Total),
			)
		}
	case domain.RideStatusCancelled:
		if c := t.Cancellation; c != nil {
			sets = append(sets,
				"cancel_reason = "+arg(c.Reason),
				"cancelled_by = "+arg(string(c.CancelledBy)),
				"cancelled_at = "+arg(c.CancelledAt),
			)
		}
	}

	conds = append([]string{"id = " + arg(t.RideID), "status = " + arg(t.From)}, conds...)

	query := fmt.Sprintf(`UPDATE rides SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(conds, " AND "), rideColumns)

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrStaleState
		}
		return nil, err
	}
	return ride, nil
}

// AdjustFare replaces the fare while it is still mutable.
func (r *RideRepository) AdjustFare(ctx context.Context, rideID string, fare domain.Fare) error {
	query := `
		UPDATE rides
		SET fare_base = $1, fare_distance = $2, fare_time = $3, fare_surge = $4, fare_total = $5, updated_at = NOW()
		WHERE id = $6 AND fare_frozen = FALSE
	`

	result, err := r.q.ExecContext(ctx, query, fare.Base, fare.Distance, fare.Time, fare.Surge, fare.Total, rideID)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrStaleState)
}

// UpdatePayment overwrites the payment sub-record of a ride.
func (r *RideRepository) UpdatePayment(ctx context.Context, rideID string, payment domain.RidePayment) error {
	query := `UPDATE rides SET payment_method = $1, payment_status = $2, payment_ref = $3, updated_at = NOW() WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, payment.Method, payment.Status, nullString(payment.TransactionRef), rideID)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

// ListByRider returns the rider's rides, newest first.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, riderID, limit)
}

// ListByDriver returns rides assigned to the driver, newest first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, driverID, limit)
}

// ListRequested returns unassigned rides of the given type, oldest first.
func (r *RideRepository) ListRequested(ctx context.Context, rideType domain.RideType, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = 'requested' AND ride_type = $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, rideType, limit)
}

// CountRequestedNear counts requested rides with pickup within radiusKm.
func (r *RideRepository) CountRequestedNear(ctx context.Context, lat, lng, radiusKm float64) (int, error) {
	query := `SELECT COUNT(*) FROM rides WHERE status = 'requested' AND ` +
		haversineSQL("pickup_lat", "pickup_lng", 1, 2) + ` <= $3`

	var count int
	if err := r.q.QueryRowContext(ctx, query, lat, lng, radiusKm*1000).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func scanRide(s scanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, paymentRef, cancelReason, cancelledBy sql.NullString
	var cancelledAt, acceptedAt, arrivedAt, startedAt, completedAt sql.NullTime

	err := s.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Pickup.Lat, &ride.Pickup.Lng, &ride.Pickup.Address, &ride.Pickup.City, &ride.Pickup.State, &ride.Pickup.ZipCode, &ride.Pickup.Instructions,
		&ride.Dropoff.Lat, &ride.Dropoff.Lng, &ride.Dropoff.Address, &ride.Dropoff.City, &ride.Dropoff.State, &ride.Dropoff.ZipCode,
		&ride.RideType,
		&ride.Status,
		&ride.Fare.Base, &ride.Fare.Distance, &ride.Fare.Time, &ride.Fare.Surge, &ride.Fare.Total, &ride.Fare.Currency, &ride.FareFrozen,
		&ride.DistanceM,
		&ride.DurationS,
		&ride.Payment.Method, &ride.Payment.Status, &paymentRef,
		&cancelReason, &cancelledBy, &cancelledAt,
		&ride.Notes,
		&ride.CreatedAt,
		&acceptedAt, &arrivedAt, &startedAt, &completedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.Payment.TransactionRef = paymentRef.String
	ride.AcceptedAt = acceptedAt.Time
	ride.ArrivedAt = arrivedAt.Time
	ride.StartedAt = startedAt.Time
	ride.CompletedAt = completedAt.Time
	if cancelledAt.Valid {
		ride.Cancellation = &domain.Cancellation{
			Reason:      cancelReason.String,
			CancelledBy: domain.ActorRole(cancelledBy.String),
			CancelledAt: cancelledAt.Time,
		}
	}

	return &ride, nil
}
