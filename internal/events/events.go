// Package events defines the ride lifecycle event contract and its publishers.
package events

import (
	"context"
	"time"
)

// Event names.
const (
	RideRequested     = "ride-requested"
	RideAccepted      = "ride-accepted"
	RideStatusUpdated = "ride-status-updated"
)

// DispatchChannel is the broadcast channel joined by all online drivers.
const DispatchChannel = "dispatch"

// RideChannel is the per-ride channel joined by both parties.
func RideChannel(rideID string) string { return "ride-" + rideID }

// RiderChannel is a rider's personal channel.
func RiderChannel(riderID string) string { return "rider-" + riderID }

// DriverChannel is a driver's personal channel.
func DriverChannel(driverID string) string { return "driver-" + driverID }

// Envelope is the wire form of a published event.
type Envelope struct {
	Channel    string    `json:"channel"`
	Event      string    `json:"event"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher broadcasts an event to the current subscribers of a channel.
// Delivery is best effort; there is no persistence or replay.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
