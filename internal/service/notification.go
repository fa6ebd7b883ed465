package service

import (
	"context"
	"log/slog"
	"time"

	"cabnet/internal/domain"
	"cabnet/internal/events"
)

// LocationSummary is the public part of a pickup or dropoff.
type LocationSummary struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// DriverSummary is what a rider learns about the accepting driver.
type DriverSummary struct {
	ID        string         `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Phone     string         `json:"phoneNumber"`
	Rating    float64        `json:"rating"`
	Vehicle   VehicleSummary `json:"vehicle"`
}

// VehicleSummary identifies the car at pickup.
type VehicleSummary struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Color       string `json:"color"`
	PlateNumber string `json:"plateNumber"`
}

// FareSummary is the itemized fare settled on completion.
type FareSummary struct {
	Base     float64 `json:"base"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	Surge    float64 `json:"surge"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// RideRequestedPayload is broadcast on the dispatch channel.
type RideRequestedPayload struct {
	RideID    string          `json:"rideId"`
	Pickup    LocationSummary `json:"pickup"`
	Dropoff   LocationSummary `json:"dropoff"`
	RideType  domain.RideType `json:"rideType"`
	FareTotal float64         `json:"fareTotal"`
	Currency  string          `json:"currency"`
}

// RideAcceptedPayload is sent to the ride and its rider.
type RideAcceptedPayload struct {
	RideID string        `json:"rideId"`
	Driver DriverSummary `json:"driver"`
}

// RideStatusPayload is sent on every status change after acceptance.
type RideStatusPayload struct {
	RideID    string            `json:"rideId"`
	Status    domain.RideStatus `json:"status"`
	UpdatedBy domain.ActorRole  `json:"updatedBy"`
	Reason    string            `json:"reason,omitempty"`
	FinalFare *FareSummary      `json:"finalFare,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NotificationService turns lifecycle changes into channel events.
// Publishing is best effort: failures are logged and never fail the caller.
type NotificationService struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher events.Publisher, logger *slog.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{publisher: publisher, logger: logger}
}

// NotifyRideRequested announces a new ride to every online driver.
func (s *NotificationService) NotifyRideRequested(ctx context.Context, ride *domain.Ride) {
	payload := RideRequestedPayload{
		RideID:    ride.ID,
		Pickup:    summarize(ride.Pickup),
		Dropoff:   summarize(ride.Dropoff),
		RideType:  ride.RideType,
		FareTotal: ride.Fare.Total,
		Currency:  ride.Fare.Currency,
	}
	s.send(ctx, events.DispatchChannel, events.RideRequested, payload)
}

// NotifyRideAccepted tells the ride room and the rider who is coming.
func (s *NotificationService) NotifyRideAccepted(ctx context.Context, ride *domain.Ride, driver *domain.Driver) {
	payload := RideAcceptedPayload{
		RideID: ride.ID,
		Driver: DriverSummary{
			ID:        driver.ID,
			FirstName: driver.FirstName,
			LastName:  driver.LastName,
			Phone:     driver.PhoneNumber,
			Rating:    driver.Rating.Average,
			Vehicle: VehicleSummary{
				Make:        driver.Vehicle.Make,
				Model:       driver.Vehicle.Model,
				Color:       driver.Vehicle.Color,
				PlateNumber: driver.Vehicle.PlateNumber,
			},
		},
	}
	s.send(ctx, events.RideChannel(ride.ID), events.RideAccepted, payload)
	s.send(ctx, events.RiderChannel(ride.RiderID), events.RideAccepted, payload)
}

// NotifyStatusUpdated reports a status change to the ride room. Terminal
// changes also reach the rider's personal channel, and a cancellation
// also reaches the assigned driver.
func (s *NotificationService) NotifyStatusUpdated(ctx context.Context, ride *domain.Ride, actor domain.ActorRole) {
	payload := RideStatusPayload{
		RideID:    ride.ID,
		Status:    ride.Status,
		UpdatedBy: actor,
		UpdatedAt: ride.UpdatedAt,
	}
	if ride.Cancellation != nil {
		payload.Reason = ride.Cancellation.Reason
	}
	if ride.Status == domain.RideStatusCompleted {
		final := summarizeFare(ride.Fare)
		payload.FinalFare = &final
	}

	s.send(ctx, events.RideChannel(ride.ID), events.RideStatusUpdated, payload)
	if ride.Status.IsTerminal() {
		s.send(ctx, events.RiderChannel(ride.RiderID), events.RideStatusUpdated, payload)
	}
	if ride.Status == domain.RideStatusCancelled && ride.DriverID != "" {
		s.send(ctx, events.DriverChannel(ride.DriverID), events.RideStatusUpdated, payload)
	}
}

// send publishes one event.
func (s *NotificationService) send(ctx context.Context, channel, event string, payload any) {
	if err := s.publisher.Publish(ctx, channel, event, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

func summarizeFare(f domain.Fare) FareSummary {
	return FareSummary{
		Base:     f.Base,
		Distance: f.Distance,
		Time:     f.Time,
		Surge:    f.Surge,
		Total:    f.Total,
		Currency: f.Currency,
	}
}

func summarize(l domain.Location) LocationSummary {
	return LocationSummary{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}
