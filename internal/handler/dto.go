package handler

import (
	"time"

	"cabnet/internal/domain"
)

// locationBody is a GeoJSON-ordered point with its address.
type locationBody struct {
	Coordinates []float64 `json:"coordinates" binding:"required,len=2"`
	Address     string    `json:"address" binding:"required"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zipCode"`
}

type stopBody struct {
	Location     locationBody `json:"location" binding:"required"`
	Instructions string       `json:"instructions" binding:"max=200"`
}

func (s stopBody) toDomain() domain.Location {
	return domain.Location{
		Lng:          s.Location.Coordinates[0],
		Lat:          s.Location.Coordinates[1],
		Address:      s.Location.Address,
		City:         s.Location.City,
		State:        s.Location.State,
		ZipCode:      s.Location.ZipCode,
		Instructions: s.Instructions,
	}
}

type locationResponse struct {
	Coordinates  [2]float64 `json:"coordinates"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	ZipCode      string     `json:"zipCode,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

func toLocationResponse(l domain.Location) locationResponse {
	return locationResponse{
		Coordinates:  [2]float64{l.Lng, l.Lat},
		Address:      l.Address,
		City:         l.City,
		State:        l.State,
		ZipCode:      l.ZipCode,
		Instructions: l.Instructions,
	}
}

type fareResponse struct {
	Base     float64 `json:"base"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	Surge    float64 `json:"surge"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

func toFareResponse(f domain.Fare) fareResponse {
	return fareResponse{Base: f.Base, Distance: f.Distance, Time: f.Time, Surge: f.Surge, Total: f.Total, Currency: f.Currency}
}

type cancellationResponse struct {
	Reason      string    `json:"reason"`
	CancelledBy string    `json:"cancelledBy"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type ridePaymentResponse struct {
	Method         string `json:"method"`
	Status         string `json:"status"`
	TransactionRef string `json:"transactionId,omitempty"`
}

type rideResponse struct {
	ID           string                `json:"id"`
	RiderID      string                `json:"riderId"`
	DriverID     string                `json:"driverId,omitempty"`
	Pickup       locationResponse      `json:"pickup"`
	Dropoff      locationResponse      `json:"dropoff"`
	RideType     string                `json:"rideType"`
	Status       string                `json:"status"`
	Fare         fareResponse          `json:"fare"`
	FareFrozen   bool                  `json:"fareFrozen"`
	DistanceM    int                   `json:"distanceMeters"`
	DurationS    int                   `json:"durationSeconds"`
	Payment      ridePaymentResponse   `json:"payment"`
	Cancellation *cancellationResponse `json:"cancellation,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	AcceptedAt   *time.Time            `json:"acceptedAt,omitempty"`
	ArrivedAt    *time.Time            `json:"arrivedAt,omitempty"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	CompletedAt  *time.Time            `json:"completedAt,omitempty"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toRideResponse(r *domain.Ride) rideResponse {
	resp := rideResponse{
		ID:         r.ID,
		RiderID:    r.RiderID,
		DriverID:   r.DriverID,
		Pickup:     toLocationResponse(r.Pickup),
		Dropoff:    toLocationResponse(r.Dropoff),
		RideType:   string(r.RideType),
		Status:     string(r.Status),
		Fare:       toFareResponse(r.Fare),
		FareFrozen: r.FareFrozen,
		DistanceM:  r.DistanceM,
		DurationS:  r.DurationS,
		Payment: ridePaymentResponse{
			Method:         string(r.Payment.Method),
			Status:         string(r.Payment.Status),
			TransactionRef: r.Payment.TransactionRef,
		},
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		AcceptedAt:  optionalTime(r.AcceptedAt),
		ArrivedAt:   optionalTime(r.ArrivedAt),
		StartedAt:   optionalTime(r.StartedAt),
		CompletedAt: optionalTime(r.CompletedAt),
		UpdatedAt:   r.UpdatedAt,
	}
	if c := r.Cancellation; c != nil {
		resp.Cancellation = &cancellationResponse{Reason: c.Reason, CancelledBy: string(c.CancelledBy), CancelledAt: c.CancelledAt}
	}
	return resp
}

func toRideResponses(rides []*domain.Ride) []rideResponse {
	out := make([]rideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r))
	}
	return out
}

type ratingResponse struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type preferencesResponse struct {
	RideType      string `json:"rideType"`
	PaymentMethod string `json:"paymentMethod"`
}

type riderResponse struct {
	ID          string              `json:"id"`
	ClerkID     string              `json:"clerkId"`
	Email       string              `json:"email"`
	FirstName   string              `json:"firstName"`
	LastName    string              `json:"lastName"`
	PhoneNumber string              `json:"phoneNumber,omitempty"`
	Preferences preferencesResponse `json:"preferences"`
	Rating      ratingResponse      `json:"rating"`
	IsActive    bool                `json:"isActive"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func toRiderResponse(r *domain.Rider) riderResponse {
	return riderResponse{
		ID:          r.ID,
		ClerkID:     r.ClerkID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Preferences: preferencesResponse{
			RideType:      string(r.Preferences.RideType),
			PaymentMethod: string(r.Preferences.PaymentMethod),
		},
		Rating:    ratingResponse{Average: r.Rating.Average, Count: r.Rating.Count},
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

type vehicleBody struct {
	Make        string `json:"make" binding:"omitempty,min=2,max=50"`
	Model       string `json:"model" binding:"omitempty,min=2,max=50"`
	Year        int    `json:"year" binding:"omitempty,min=1900"`
	Color       string `json:"color" binding:"omitempty,min=2,max=30"`
	PlateNumber string `json:"plateNumber" binding:"required,min=2,max=20"`
	VehicleType string `json:"vehicleType" binding:"required,oneof=economy comfort premium xl"`
}

type vehicleResponse struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	Color       string `json:"color"`
	PlateNumber string `json:"plateNumber"`
	VehicleType string `json:"vehicleType"`
}

type driverResponse struct {
	ID            string            `json:"id"`
	ClerkID       string            `json:"clerkId"`
	Email         string            `json:"email"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	PhoneNumber   string            `json:"phoneNumber,omitempty"`
	LicenseNumber string            `json:"licenseNumber"`
	Vehicle       vehicleResponse   `json:"vehicleInfo"`
	Location      *locationResponse `json:"location,omitempty"`
	Rating        ratingResponse    `json:"rating"`
	Status        string            `json:"status"`
	IsVerified    bool              `json:"isVerified"`
	IsActive      bool              `json:"isActive"`
	LastActive    time.Time         `json:"lastActive"`
}

func toDriverResponse(d *domain.Driver) driverResponse {
	resp := driverResponse{
		ID:            d.ID,
		ClerkID:       d.ClerkID,
		Email:         d.Email,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		PhoneNumber:   d.PhoneNumber,
		LicenseNumber: d.LicenseNumber,
		Vehicle: vehicleResponse{
			Make:        d.Vehicle.Make,
			Model:       d.Vehicle.Model,
			Year:        d.Vehicle.Year,
			Color:       d.Vehicle.Color,
			PlateNumber: d.Vehicle.PlateNumber,
			VehicleType: string(d.Vehicle.Type),
		},
		Rating:     ratingResponse{Average: d.Rating.Average, Count: d.Rating.Count},
		Status:     string(d.Status),
		IsVerified: d.IsVerified,
		IsActive:   d.IsActive,
		LastActive: d.LastActive,
	}
	if d.Location.Lat != 0 || d.Location.Lng != 0 {
		loc := toLocationResponse(d.Location)
		resp.Location = &loc
	}
	return resp
}

// nearbyDriverResponse omits contact details and credentials.
type nearbyDriverResponse struct {
	ID             string           `json:"id"`
	FirstName      string           `json:"firstName"`
	Vehicle        vehicleResponse  `json:"vehicleInfo"`
	Location       locationResponse `json:"location"`
	Rating         ratingResponse   `json:"rating"`
	DistanceMeters float64          `json:"distanceMeters"`
}

func toNearbyResponses(drivers []domain.NearbyDriver) []nearbyDriverResponse {
	out := make([]nearbyDriverResponse, 0, len(drivers))
	for _, n := range drivers {
		d := toDriverResponse(n.Driver)
		out = append(out, nearbyDriverResponse{
			ID:             d.ID,
			FirstName:      d.FirstName,
			Vehicle:        d.Vehicle,
			Location:       toLocationResponse(n.Driver.Location),
			Rating:         d.Rating,
			DistanceMeters: n.DistanceM,
		})
	}
	return out
}

type paymentResponse struct {
	ID            string       `json:"id"`
	RideID        string       `json:"rideId"`
	Amount        float64      `json:"amount"`
	Currency      string       `json:"currency"`
	Status        string       `json:"status"`
	Method        string       `json:"method"`
	TransactionID string       `json:"transactionId,omitempty"`
	Breakdown     fareResponse `json:"breakdown"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		RideID:        p.RideID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		Method:        string(p.Method),
		TransactionID: p.GatewayRef,
		Breakdown:     toFareResponse(p.Breakdown),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type partyResponse struct {
	ID   string `json:"id"`
	Role string `json:"model"`
}

func toPartyResponse(p domain.Party) *partyResponse {
	if p == nil {
		return nil
	}
	return &partyResponse{ID: p.PartyID(), Role: string(p.Role())}
}

type reviewResponse struct {
	ID           string         `json:"id"`
	RideID       string         `json:"rideId"`
	Reviewer     *partyResponse `json:"reviewer"`
	Reviewee     *partyResponse `json:"reviewee"`
	Rating       int            `json:"rating"`
	Comment      string         `json:"comment,omitempty"`
	Tags         []string       `json:"tags"`
	IsAnonymous  bool           `json:"isAnonymous"`
	HelpfulCount int            `json:"helpfulCount"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func toReviewResponse(r *domain.Review) reviewResponse {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, string(t))
	}
	return reviewResponse{
		ID:           r.ID,
		RideID:       r.RideID,
		Reviewer:     toPartyResponse(r.Reviewer),
		Reviewee:     toPartyResponse(r.Reviewee),
		Rating:       r.Rating,
		Comment:      r.Comment,
		Tags:         tags,
		IsAnonymous:  r.IsAnonymous,
		HelpfulCount: r.HelpfulCount,
		CreatedAt:    r.CreatedAt,
	}
}
