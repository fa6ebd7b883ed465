package domain

import "time"

// RiderPreferences holds the rider's defaults.
type RiderPreferences struct {
	RideType      RideType
	PaymentMethod PaymentMethod
}

// Rider represents a passenger in the system.
type Rider struct {
	ID          string
	ClerkID     string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Preferences RiderPreferences
	Rating      Rating
	IsActive    bool
	LastActive  time.Time
	CreatedAt   time.Time
}
