package postgres

import (
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cabnet/internal/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func columns(list string) []string {
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func nullable(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) driver.Value {
	if t.IsZero() {
		return nil
	}
	return t
}

func rideRows(rides ...*domain.Ride) *sqlmock.Rows {
	rows := sqlmock.NewRows(columns(rideColumns))
	for _, r := range rides {
		var reason, by, at driver.Value
		if c := r.Cancellation; c != nil {
			reason, by, at = c.Reason, string(c.CancelledBy), c.CancelledAt
		}
		rows.AddRow(
			r.ID, r.RiderID, nullable(r.DriverID),
			r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address, r.Pickup.City, r.Pickup.State, r.Pickup.ZipCode, r.Pickup.Instructions,
			r.Dropoff.Lat, r.Dropoff.Lng, r.Dropoff.Address, r.Dropoff.City, r.Dropoff.State, r.Dropoff.ZipCode,
			string(r.RideType), string(r.Status),
			r.Fare.Base, r.Fare.Distance, r.Fare.Time, r.Fare.Surge, r.Fare.Total, r.Fare.Currency, r.FareFrozen,
			r.DistanceM, r.DurationS,
			string(r.Payment.Method), string(r.Payment.Status), nullable(r.Payment.TransactionRef),
			reason, by, at,
			r.Notes, r.CreatedAt,
			nullableTime(r.AcceptedAt), nullableTime(r.ArrivedAt), nullableTime(r.StartedAt), nullableTime(r.CompletedAt),
			r.UpdatedAt,
		)
	}
	return rows
}

func driverRow(d *domain.Driver, extra ...driver.Value) []driver.Value {
	v := d.Vehicle
	row := []driver.Value{
		d.ID, d.ClerkID, d.Email, d.FirstName, d.LastName, d.PhoneNumber, d.LicenseNumber,
		v.Make, v.Model, v.Year, v.Color, v.PlateNumber, string(v.Type),
		d.Location.Lat, d.Location.Lng, nullable(d.Location.Address),
		d.Rating.Average, d.Rating.Count, string(d.Status), d.IsVerified, d.IsActive, d.LastActive, d.CreatedAt,
	}
	return append(row, extra...)
}

func sampleRide(status domain.RideStatus) *domain.Ride {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	return &domain.Ride{
		ID:       "ride-1",
		RiderID:  "rider-1",
		Pickup:   domain.Location{Lat: 12.9, Lng: 77.6, Address: "1 MG Road"},
		Dropoff:  domain.Location{Lat: 12.95, Lng: 77.65, Address: "2 Brigade Road"},
		RideType: domain.RideTypeEconomy,
		Status:   status,
		Fare: domain.Fare{
			Base: 2.5, Distance: 9, Time: 3, Surge: 1, Total: 14.5, Currency: "usd",
		},
		Payment:   domain.RidePayment{Method: domain.PaymentMethodCard, Status: domain.PaymentStatusPending},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleDriver() *domain.Driver {
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	return &domain.Driver{
		ID:            "driver-1",
		ClerkID:       "clerk_driver_1",
		Email:         "dana@example.com",
		FirstName:     "Dana",
		LastName:      "Lee",
		LicenseNumber: "DL-100",
		Vehicle: domain.Vehicle{
			Make: "Toyota", Model: "Prius", Year: 2022, Color: "white", PlateNumber: "KA01AB1234", Type: domain.RideTypeEconomy,
		},
		Location:   domain.Location{Lat: 12.91, Lng: 77.61},
		Status:     domain.DriverStatusOnline,
		IsActive:   true,
		IsVerified: true,
		LastActive: now,
		CreatedAt:  now,
	}
}
