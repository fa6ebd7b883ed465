package domain

import "time"

// PaymentStatus represents the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsTerminal reports whether the gateway has settled the payment.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Payment represents one charge attempt for a ride.
type Payment struct {
	ID             string
	RideID         string
	RiderID        string
	DriverID       string
	Amount         float64
	Currency       string
	Status         PaymentStatus
	Method         PaymentMethod
	GatewayRef     string
	IdempotencyKey string
	Breakdown      Fare
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
