package domain

import "time"

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOffline   DriverStatus = "offline"
	DriverStatusOnline    DriverStatus = "online"
	DriverStatusBusy      DriverStatus = "busy"
	DriverStatusSuspended DriverStatus = "suspended"
)

// Vehicle describes the car a driver operates.
type Vehicle struct {
	Make        string
	Model       string
	Year        int
	Color       string
	PlateNumber string
	Type        RideType
}

// Rating is an aggregate of public reviews.
type Rating struct {
	Average float64
	Count   int
}

// Driver represents a driver in the system.
type Driver struct {
	ID            string
	ClerkID       string
	Email         string
	FirstName     string
	LastName      string
	PhoneNumber   string
	LicenseNumber string
	Vehicle       Vehicle
	Location      Location
	Rating        Rating
	Status        DriverStatus
	IsVerified    bool
	IsActive      bool
	LastActive    time.Time
	CreatedAt     time.Time
}

// CanAccept reports whether the driver may accept a ride of the given type.
func (d *Driver) CanAccept(rideType RideType) bool {
	return d.IsActive && d.Status == DriverStatusOnline && d.Vehicle.Type == rideType
}

// NearbyDriver is a driver with its distance from a search point.
type NearbyDriver struct {
	Driver    *Driver
	DistanceM float64
}
