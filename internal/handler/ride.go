package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/middleware"
	"cabnet/internal/service"
)

// RideService is the ride lifecycle used by RideHandler.
type RideService interface {
	RequestRide(ctx context.Context, req service.RequestRideRequest) (*domain.Ride, error)
	AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	AdvanceStatus(ctx context.Context, req service.AdvanceStatusRequest) (*domain.Ride, error)
	AdjustFare(ctx context.Context, rideID string, actor domain.Identity, fare domain.Fare) (*domain.Ride, error)
	GetRide(ctx context.Context, rideID string, viewer domain.Identity) (*domain.Ride, error)
}

// DriverFinder finds drivers near a pickup point.
type DriverFinder interface {
	NearbyDrivers(ctx context.Context, req service.NearbyRequest) ([]domain.NearbyDriver, error)
}

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rides   RideService
	drivers DriverFinder
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rides RideService, drivers DriverFinder) *RideHandler {
	return &RideHandler{rides: rides, drivers: drivers}
}

// RequestRideRequest is the HTTP request body for requesting a ride.
type RequestRideRequest struct {
	Pickup   stopBody `json:"pickup" binding:"required"`
	Dropoff  stopBody `json:"dropoff" binding:"required"`
	RideType string   `json:"rideType" binding:"omitempty,oneof=economy comfort premium xl"`
	Notes    string   `json:"notes" binding:"max=500"`
}

// UpdateStatusRequest is the HTTP request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// AdjustFareRequest is the HTTP request body for a fare correction.
type AdjustFareRequest struct {
	Base     float64 `json:"base"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	Surge    float64 `json:"surge"`
	Total    float64 `json:"total" binding:"required"`
	Currency string  `json:"currency"`
}

// Request handles POST /api/rides/request
func (h *RideHandler) Request(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rideType := domain.RideType(req.RideType)
	if rideType == "" {
		rideType = domain.RideTypeEconomy
	}

	ride, err := h.rides.RequestRide(c.Request.Context(), service.RequestRideRequest{
		RiderID:  caller.ID,
		Pickup:   req.Pickup.toDomain(),
		Dropoff:  req.Dropoff.toDomain(),
		RideType: rideType,
		Notes:    req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{"ride": toRideResponse(ride)})
}

// NearbyDrivers handles GET /api/rides/drivers/nearby
func (h *RideHandler) NearbyDrivers(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
	if errLat != nil || errLng != nil {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	maxDistance := 0.0
	if v := c.Query("maxDistance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "maxDistance must be a positive number of meters"})
			return
		}
		maxDistance = d
	}

	rideType := domain.RideType(c.DefaultQuery("rideType", string(domain.RideTypeEconomy)))

	drivers, err := h.drivers.NearbyDrivers(c.Request.Context(), service.NearbyRequest{
		Lat:          lat,
		Lng:          lng,
		RideType:     rideType,
		MaxDistanceM: maxDistance,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"drivers": toNearbyResponses(drivers)})
}

// Accept handles PUT /api/rides/:id/accept
func (h *RideHandler) Accept(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	ride, err := h.rides.AcceptRide(c.Request.Context(), c.Param("id"), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ride": toRideResponse(ride)})
}

// UpdateStatus handles PUT /api/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ride, err := h.rides.AdvanceStatus(c.Request.Context(), service.AdvanceStatusRequest{
		RideID: c.Param("id"),
		Actor:  caller,
		Status: domain.RideStatus(req.Status),
		Reason: req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ride": toRideResponse(ride)})
}

// AdjustFare handles PUT /api/rides/:id/fare
func (h *RideHandler) AdjustFare(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req AdjustFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ride, err := h.rides.AdjustFare(c.Request.Context(), c.Param("id"), caller, domain.Fare{
		Base:     req.Base,
		Distance: req.Distance,
		Time:     req.Time,
		Surge:    req.Surge,
		Total:    req.Total,
		Currency: req.Currency,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ride": toRideResponse(ride)})
}

// Get handles GET /api/rides/:id
func (h *RideHandler) Get(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	ride, err := h.rides.GetRide(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ride": toRideResponse(ride)})
}

// requireCaller returns the authenticated caller or writes 401.
func requireCaller(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
		return domain.Identity{}, false
	}
	return id, true
}
