package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/service"
)

// RideHistory lists past rides of a rider or driver.
type RideHistory interface {
	RiderHistory(ctx context.Context, riderID string) ([]*domain.Ride, error)
	DriverHistory(ctx context.Context, driverID string) ([]*domain.Ride, error)
	AvailableRides(ctx context.Context, driverID string) ([]*domain.Ride, error)
}

// UserHandler handles HTTP requests for riders.
type UserHandler struct {
	identity IdentityService
	rides    RideHistory
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(identity IdentityService, rides RideHistory) *UserHandler {
	return &UserHandler{identity: identity, rides: rides}
}

// UpdateUserRequest is the HTTP request body for a rider profile update.
type UpdateUserRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName    *string `json:"lastName" binding:"omitempty,min=2,max=50"`
	PhoneNumber *string `json:"phoneNumber"`
	Preferences *struct {
		RideType      *string `json:"rideType" binding:"omitempty,oneof=economy comfort premium xl"`
		PaymentMethod *string `json:"paymentMethod" binding:"omitempty,oneof=card cash wallet"`
	} `json:"preferences"`
}

// GetProfile handles GET /api/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	rider, err := h.identity.GetRider(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"user": toRiderResponse(rider)})
}

// UpdateProfile handles PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	update := service.RiderProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	}
	if p := req.Preferences; p != nil {
		if p.RideType != nil {
			t := domain.RideType(*p.RideType)
			update.RideType = &t
		}
		if p.PaymentMethod != nil {
			m := domain.PaymentMethod(*p.PaymentMethod)
			update.PaymentMethod = &m
		}
	}

	rider, err := h.identity.UpdateRider(c.Request.Context(), caller.ID, update)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"user": toRiderResponse(rider)})
}

// Rides handles GET /api/users/rides
func (h *UserHandler) Rides(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	rides, err := h.rides.RiderHistory(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": toRideResponses(rides)})
}
