package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"cabnet/internal/domain"
	"cabnet/internal/repository"
)

const driverColumns = `id, clerk_id, email, first_name, last_name, phone_number, license_number,
	vehicle_make, vehicle_model, vehicle_year, vehicle_color, vehicle_plate, vehicle_type,
	location_lat, location_lng, location_address,
	rating_average, rating_count, status, is_verified, is_active, last_active, created_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, clerk_id, email, first_name, last_name, phone_number, license_number,
			vehicle_make, vehicle_model, vehicle_year, vehicle_color, vehicle_plate, vehicle_type,
			status, is_verified, is_active, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
	`

	v := driver.Vehicle
	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.ClerkID, driver.Email, driver.FirstName, driver.LastName, driver.PhoneNumber, driver.LicenseNumber,
		v.Make, v.Model, v.Year, v.Color, v.PlateNumber, v.Type,
		driver.Status, driver.IsVerified, driver.IsActive, driver.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByClerkID retrieves a driver by identity credential.
func (r *DriverRepository) GetByClerkID(ctx context.Context, clerkID string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE clerk_id = $1`, clerkID)
}

// GetByEmail retrieves a driver by email address.
func (r *DriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE email = $1`, email)
}

// GetByIDs retrieves drivers in a single query.
func (r *DriverRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.q.QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// UpdateProfile updates the editable fields of a driver.
func (r *DriverRepository) UpdateProfile(ctx context.Context, driver *domain.Driver) error {
	query := `
		UPDATE drivers
		SET first_name = $1, last_name = $2, phone_number = $3,
			vehicle_make = $4, vehicle_model = $5, vehicle_year = $6, vehicle_color = $7
		WHERE id = $8
	`

	v := driver.Vehicle
	result, err := r.q.ExecContext(ctx, query,
		driver.FirstName, driver.LastName, driver.PhoneNumber,
		v.Make, v.Model, v.Year, v.Color,
		driver.ID,
	)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1, last_active = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

// CompareAndSetStatus moves a driver from one status to another.
func (r *DriverRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1, last_active = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrStaleState)
}

// UpdateLocation records the driver's last known position.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	query := `UPDATE drivers SET location_lat = $1, location_lng = $2, location_address = $3, last_active = NOW() WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, loc.Lat, loc.Lng, nullString(loc.Address), id)
	if err != nil {
		return err
	}
	return requireRows(result, repository.ErrNotFound)
}

// FindNearby returns eligible drivers within maxMeters, nearest first.
func (r *DriverRepository) FindNearby(ctx context.Context, lat, lng float64, rideType domain.RideType, maxMeters float64, limit int) ([]domain.NearbyDriver, error) {
	query := `
		SELECT * FROM (
			SELECT ` + driverColumns + `, ` + haversineSQL("location_lat", "location_lng", 1, 2) + ` AS distance_m
			FROM drivers
			WHERE status = 'online' AND is_active AND vehicle_type = $3
				AND location_lat IS NOT NULL AND location_lng IS NOT NULL
		) nearby
		WHERE distance_m <= $4
		ORDER BY distance_m ASC
		LIMIT $5
	`

	rows, err := r.q.QueryContext(ctx, query, lat, lng, rideType, maxMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NearbyDriver
	for rows.Next() {
		var distance float64
		driver, err := scanDriver(rows, &distance)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.NearbyDriver{Driver: driver, DistanceM: distance})
	}
	return result, rows.Err()
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// scanDriver scans driverColumns followed by any extra destinations.
func scanDriver(s scanner, extra ...any) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64
	var address sql.NullString

	dest := []any{
		&driver.ID, &driver.ClerkID, &driver.Email, &driver.FirstName, &driver.LastName, &driver.PhoneNumber, &driver.LicenseNumber,
		&driver.Vehicle.Make, &driver.Vehicle.Model, &driver.Vehicle.Year, &driver.Vehicle.Color, &driver.Vehicle.PlateNumber, &driver.Vehicle.Type,
		&lat, &lng, &address,
		&driver.Rating.Average, &driver.Rating.Count, &driver.Status, &driver.IsVerified, &driver.IsActive, &driver.LastActive, &driver.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	driver.Location = domain.Location{Lat: lat.Float64, Lng: lng.Float64, Address: address.String}
	return &driver, nil
}
