package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusArrived   RideStatus = "arrived"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Valid reports whether s is a known ride status.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusRequested, RideStatusAccepted, RideStatusArrived,
		RideStatusStarted, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// RideType is the service tier requested by the rider.
type RideType string

const (
	RideTypeEconomy RideType = "economy"
	RideTypeComfort RideType = "comfort"
	RideTypePremium RideType = "premium"
	RideTypeXL      RideType = "xl"
)

// Valid reports whether t is one of the offered tiers.
func (t RideType) Valid() bool {
	switch t {
	case RideTypeEconomy, RideTypeComfort, RideTypePremium, RideTypeXL:
		return true
	}
	return false
}

// Fare is the itemized price of a ride.
type Fare struct {
	Base     float64
	Distance float64
	Time     float64
	Surge    float64
	Total    float64
	Currency string
}

// RidePayment is the payment summary stored on the ride.
type RidePayment struct {
	Method         PaymentMethod
	Status         PaymentStatus
	TransactionRef string
}

// Cancellation is populated only when the ride is cancelled.
type Cancellation struct {
	Reason      string
	CancelledBy ActorRole
	CancelledAt time.Time
}

// Ride represents a ride request and its lifecycle.
type Ride struct {
	ID           string
	RiderID      string
	DriverID     string
	Pickup       Location
	Dropoff      Location
	RideType     RideType
	Status       RideStatus
	Fare         Fare
	FareFrozen   bool
	DistanceM    int
	DurationS    int
	Payment      RidePayment
	Cancellation *Cancellation
	Notes        string
	CreatedAt    time.Time
	AcceptedAt   time.Time
	ArrivedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	UpdatedAt    time.Time
}

// HasParty reports whether identityID is the rider or the assigned driver.
func (r *Ride) HasParty(identityID string) bool {
	return identityID != "" && (r.RiderID == identityID || r.DriverID == identityID)
}

// Transition describes a single conditional status change. It is applied only
// when the stored status still equals From.
type Transition struct {
	RideID       string
	From         RideStatus
	To           RideStatus
	DriverID     string        // set on acceptance
	Cancellation *Cancellation // set on cancellation
	FinalFare    *Fare         // set on completion, freezes the fare
	At           time.Time
}
