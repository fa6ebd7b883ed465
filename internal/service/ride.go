package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabnet/internal/domain"
	"cabnet/internal/maps"
	"cabnet/internal/pricing"
	"cabnet/internal/redis"
	"cabnet/internal/repository"
)

const (
	historyLimit        = 50
	availableRidesLimit = 20
)

// RideService owns the ride lifecycle.
type RideService struct {
	rideRepo      repository.RideRepository
	riderRepo     repository.RiderRepository
	driverRepo    repository.DriverRepository
	estimator     maps.Estimator
	fares         pricing.Strategy
	surge         SurgeProvider
	notifications *NotificationService
	cacheStore    redis.DriverCacheInterface
	logger        *slog.Logger
	now           func() time.Time
}

// NewRideService creates a new RideService. cacheStore may be nil.
func NewRideService(
	rideRepo repository.RideRepository,
	riderRepo repository.RiderRepository,
	driverRepo repository.DriverRepository,
	estimator maps.Estimator,
	fares pricing.Strategy,
	surge SurgeProvider,
	notifications *NotificationService,
	cacheStore redis.DriverCacheInterface,
	logger *slog.Logger,
) *RideService {
	return &RideService{
		rideRepo:      rideRepo,
		riderRepo:     riderRepo,
		driverRepo:    driverRepo,
		estimator:     estimator,
		fares:         fares,
		surge:         surge,
		notifications: notifications,
		cacheStore:    cacheStore,
		logger:        logger,
		now:           time.Now,
	}
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	RiderID  string
	Pickup   domain.Location
	Dropoff  domain.Location
	RideType domain.RideType
	Notes    string
}

// RequestRide creates a ride in the requested state and announces it to
// online drivers.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	if !validStop(req.Pickup) || !validStop(req.Dropoff) {
		return nil, ErrInvalidLocation
	}
	if !req.RideType.Valid() {
		return nil, ErrInvalidRideType
	}

	rider, err := s.riderRepo.GetByID(ctx, req.RiderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRiderNotFound
		}
		return nil, upstream("load rider", err)
	}
	if !rider.IsActive {
		return nil, ErrRiderInactive
	}

	route, err := s.estimator.Estimate(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		return nil, upstream("estimate route", err)
	}

	surge := s.surge.GetMultiplier(ctx, req.Pickup.Lat, req.Pickup.Lng)
	fare, err := s.fares.Compute(pricing.Quote{
		RideType:  req.RideType,
		DistanceM: route.DistanceM,
		Duration:  route.Duration,
		Surge:     surge,
	})
	if err != nil {
		return nil, errorf(ErrValidation, "fare: %v", err)
	}

	method := rider.Preferences.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCard
	}

	now := s.now().UTC()
	ride := &domain.Ride{
		ID:        uuid.New().String(),
		RiderID:   rider.ID,
		Pickup:    req.Pickup,
		Dropoff:   req.Dropoff,
		RideType:  req.RideType,
		Status:    domain.RideStatusRequested,
		Fare:      fare,
		DistanceM: route.DistanceM,
		DurationS: int(route.Duration / time.Second),
		Payment:   domain.RidePayment{Method: method, Status: domain.PaymentStatusPending},
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, upstream("create ride", err)
	}

	s.logger.InfoContext(ctx, "ride requested",
		slog.String("ride_id", ride.ID),
		slog.String("rider_id", ride.RiderID),
		slog.String("ride_type", string(ride.RideType)),
		slog.Float64("fare", ride.Fare.Total),
	)
	s.notifications.NotifyRideRequested(ctx, ride)
	return ride, nil
}

// AcceptRide assigns the ride to driverID. Exactly one of several
// concurrent accepts succeeds; the others get ErrRideAlreadyTaken.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch {
	case ride.Status == domain.RideStatusRequested:
	case ride.DriverID == driverID && ride.Status == domain.RideStatusAccepted:
		return ride, nil
	case ride.DriverID != "" && ride.DriverID != driverID && !ride.Status.IsTerminal():
		return nil, ErrRideAlreadyTaken
	default:
		return nil, errorf(ErrInvalidTransition, "cannot accept a %s ride", ride.Status)
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, upstream("load driver", err)
	}
	if !driver.CanAccept(ride.RideType) {
		return nil, ErrDriverNotEligible
	}

	accepted, err := s.rideRepo.CompareAndSetStatus(ctx, domain.Transition{
		RideID:   ride.ID,
		From:     domain.RideStatusRequested,
		To:       domain.RideStatusAccepted,
		DriverID: driver.ID,
		At:       s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrRideAlreadyTaken
		}
		return nil, upstream("accept ride", err)
	}

	s.setDriverStatus(ctx, driver.ID, domain.DriverStatusOnline, domain.DriverStatusBusy)

	s.logger.InfoContext(ctx, "ride accepted",
		slog.String("ride_id", accepted.ID),
		slog.String("driver_id", driver.ID),
	)
	s.notifications.NotifyRideAccepted(ctx, accepted, driver)
	return accepted, nil
}

// AdvanceStatusRequest contains the parameters of a status change.
type AdvanceStatusRequest struct {
	RideID string
	Actor  domain.Identity
	Status domain.RideStatus
	Reason string
}

// AdvanceStatus moves the ride along its lifecycle. Asking for the
// current status is a no-op that publishes nothing.
func (s *RideService) AdvanceStatus(ctx context.Context, req AdvanceStatusRequest) (*domain.Ride, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	ride, err := s.getRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if req.Status == ride.Status {
		if !canView(ride, req.Actor) {
			return nil, ErrNotRideParty
		}
		return ride, nil
	}
	if req.Status == domain.RideStatusAccepted {
		return nil, ErrUseAccept
	}
	if err := authorizeTransition(ride, req.Actor, req.Status); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := domain.Transition{
		RideID: ride.ID,
		From:   ride.Status,
		To:     req.Status,
		At:     now,
	}

	switch req.Status {
	case domain.RideStatusCancelled:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, ErrCancelReasonRequired
		}
		t.Cancellation = &domain.Cancellation{
			Reason:      reason,
			CancelledBy: req.Actor.Role,
			CancelledAt: now,
		}
	case domain.RideStatusCompleted:
		fare, err := s.finalFare(ride, now)
		if err != nil {
			return nil, err
		}
		t.FinalFare = &fare
	}

	updated, err := s.rideRepo.CompareAndSetStatus(ctx, t)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrConcurrentUpdate
		}
		return nil, upstream("update ride status", err)
	}

	if updated.Status.IsTerminal() && updated.DriverID != "" {
		s.setDriverStatus(ctx, updated.DriverID, domain.DriverStatusBusy, domain.DriverStatusOnline)
	}

	s.logger.InfoContext(ctx, "ride status updated",
		slog.String("ride_id", updated.ID),
		slog.String("from", string(t.From)),
		slog.String("to", string(t.To)),
		slog.String("actor_role", string(req.Actor.Role)),
	)
	s.notifications.NotifyStatusUpdated(ctx, updated, req.Actor.Role)
	return updated, nil
}

// finalFare reprices the ride with the actual trip time at the surge
// captured when the ride was requested.
func (s *RideService) finalFare(ride *domain.Ride, completedAt time.Time) (domain.Fare, error) {
	duration := time.Duration(ride.DurationS) * time.Second
	if !ride.StartedAt.IsZero() && completedAt.After(ride.StartedAt) {
		duration = completedAt.Sub(ride.StartedAt)
	}

	surge := ride.Fare.Surge
	if surge <= 0 {
		surge = 1
	}

	fare, err := s.fares.Compute(pricing.Quote{
		RideType:  ride.RideType,
		DistanceM: ride.DistanceM,
		Duration:  duration,
		Surge:     surge,
	})
	if err != nil {
		return domain.Fare{}, errorf(ErrValidation, "fare: %v", err)
	}
	return fare, nil
}

// AdjustFare replaces the fare of a ride that has not completed yet.
func (s *RideService) AdjustFare(ctx context.Context, rideID string, actor domain.Identity, fare domain.Fare) (*domain.Ride, error) {
	if actor.Role != domain.RoleSystem {
		return nil, ErrSystemOnly
	}
	if fare.Base < 0 || fare.Distance < 0 || fare.Time < 0 || fare.Surge < 0 || fare.Total <= 0 {
		return nil, ErrInvalidFare
	}

	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.FareFrozen {
		return nil, ErrFareFrozen
	}
	if fare.Currency == "" {
		fare.Currency = ride.Fare.Currency
	}

	if err := s.rideRepo.AdjustFare(ctx, ride.ID, fare); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrFareFrozen
		}
		return nil, upstream("adjust fare", err)
	}

	ride.Fare = fare
	return ride, nil
}

// GetRide returns the ride if viewer may see it.
func (s *RideService) GetRide(ctx context.Context, rideID string, viewer domain.Identity) (*domain.Ride, error) {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !canView(ride, viewer) {
		return nil, ErrNotRideParty
	}
	return ride, nil
}

// AvailableRides lists open requests matching the driver's vehicle type.
func (s *RideService) AvailableRides(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, upstream("load driver", err)
	}

	rides, err := s.rideRepo.ListRequested(ctx, driver.Vehicle.Type, availableRidesLimit)
	if err != nil {
		return nil, upstream("list requested rides", err)
	}
	return rides, nil
}

// RiderHistory lists the rider's rides, newest first.
func (s *RideService) RiderHistory(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	rides, err := s.rideRepo.ListByRider(ctx, riderID, historyLimit)
	if err != nil {
		return nil, upstream("list rider rides", err)
	}
	return rides, nil
}

// DriverHistory lists rides assigned to the driver, newest first.
func (s *RideService) DriverHistory(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	rides, err := s.rideRepo.ListByDriver(ctx, driverID, historyLimit)
	if err != nil {
		return nil, upstream("list driver rides", err)
	}
	return rides, nil
}

func (s *RideService) getRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, upstream("load ride", err)
	}
	return ride, nil
}

// setDriverStatus moves the driver between dispatch states. The ride
// transition has already committed, so failures are only logged.
func (s *RideService) setDriverStatus(ctx context.Context, driverID string, from, to domain.DriverStatus) {
	if err := s.driverRepo.CompareAndSetStatus(ctx, driverID, from, to); err != nil {
		s.logger.WarnContext(ctx, "driver status not updated",
			slog.String("driver_id", driverID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err),
		)
	}
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	}
}

func validStop(l domain.Location) bool {
	return l.ValidCoordinates() && strings.TrimSpace(l.Address) != ""
}
