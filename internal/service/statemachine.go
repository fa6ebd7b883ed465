package service

import "cabnet/internal/domain"

type edge struct {
	from, to domain.RideStatus
}

// transitions lists every legal ride edge and the roles allowed to take it.
// Rider and driver roles additionally have to be the ride's own rider or
// assigned driver.
var transitions = map[edge][]domain.ActorRole{
	{domain.RideStatusRequested, domain.RideStatusAccepted}: {domain.RoleDriver},
	{domain.RideStatusAccepted, domain.RideStatusArrived}:   {domain.RoleDriver},
	{domain.RideStatusArrived, domain.RideStatusStarted}:    {domain.RoleDriver},
	{domain.RideStatusStarted, domain.RideStatusCompleted}:  {domain.RoleDriver},

	{domain.RideStatusRequested, domain.RideStatusCancelled}: {domain.RoleRider, domain.RoleDriver, domain.RoleSystem},
	{domain.RideStatusAccepted, domain.RideStatusCancelled}:  {domain.RoleRider, domain.RoleDriver, domain.RoleSystem},
	{domain.RideStatusArrived, domain.RideStatusCancelled}:   {domain.RoleRider, domain.RoleDriver, domain.RoleSystem},
	{domain.RideStatusStarted, domain.RideStatusCancelled}:   {domain.RoleRider, domain.RoleDriver, domain.RoleSystem},
}

// CanTransition reports whether from -> to is an edge of the ride lifecycle.
func CanTransition(from, to domain.RideStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// authorizeTransition checks that actor may move ride to the target status.
func authorizeTransition(ride *domain.Ride, actor domain.Identity, to domain.RideStatus) error {
	roles, ok := transitions[edge{ride.Status, to}]
	if !ok {
		return errorf(ErrInvalidTransition, "cannot move ride from %s to %s", ride.Status, to)
	}

	allowed := false
	for _, role := range roles {
		if role == actor.Role {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrActorNotAllowed
	}

	switch actor.Role {
	case domain.RoleRider:
		if ride.RiderID != actor.ID {
			return ErrNotRideParty
		}
	case domain.RoleDriver:
		// A driver acts on a ride only once it is assigned to them.
		if ride.DriverID == "" || ride.DriverID != actor.ID {
			return ErrNotRideParty
		}
	}
	return nil
}

// canView reports whether viewer may read the ride.
func canView(ride *domain.Ride, viewer domain.Identity) bool {
	switch viewer.Role {
	case domain.RoleSystem:
		return true
	case domain.RoleDriver:
		return ride.DriverID == viewer.ID || ride.Status == domain.RideStatusRequested
	case domain.RoleRider:
		return ride.RiderID == viewer.ID
	}
	return false
}
