package domain

// ActorRole identifies who is performing an action.
type ActorRole string

const (
	RoleRider  ActorRole = "rider"
	RoleDriver ActorRole = "driver"
	RoleSystem ActorRole = "system"
)

// Identity is a verified caller.
type Identity struct {
	ID   string
	Role ActorRole
}

// Party is a participant of a ride: either a RiderParty or a DriverParty.
type Party interface {
	PartyID() string
	Role() ActorRole
	party()
}

// RiderParty is the rider side of a ride.
type RiderParty struct{ ID string }

// DriverParty is the driver side of a ride.
type DriverParty struct{ ID string }

func (p RiderParty) PartyID() string  { return p.ID }
func (p RiderParty) Role() ActorRole  { return RoleRider }
func (RiderParty) party()             {}
func (p DriverParty) PartyID() string { return p.ID }
func (p DriverParty) Role() ActorRole { return RoleDriver }
func (DriverParty) party()            {}

// NewParty builds a Party from a stored role tag.
func NewParty(role ActorRole, id string) (Party, bool) {
	switch role {
	case RoleRider:
		return RiderParty{ID: id}, true
	case RoleDriver:
		return DriverParty{ID: id}, true
	}
	return nil, false
}

// Counterpart returns the other party of the ride for the given reviewer.
func (r *Ride) Counterpart(identityID string) (self, other Party, ok bool) {
	switch {
	case identityID == "":
		return nil, nil, false
	case identityID == r.RiderID && r.DriverID != "":
		return RiderParty{ID: r.RiderID}, DriverParty{ID: r.DriverID}, true
	case identityID == r.DriverID:
		return DriverParty{ID: r.DriverID}, RiderParty{ID: r.RiderID}, true
	}
	return nil, nil, false
}
