package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
	"cabnet/internal/service"
)

// DriverService manages driver profiles, availability and position.
type DriverService interface {
	GetProfile(ctx context.Context, driverID string) (*domain.Driver, error)
	UpdateProfile(ctx context.Context, driverID string, update service.DriverProfileUpdate) (*domain.Driver, error)
	SetStatus(ctx context.Context, driverID string, status domain.DriverStatus) (*domain.Driver, error)
	UpdateLocation(ctx context.Context, driverID string, loc domain.Location) (*domain.Driver, error)
}

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	drivers DriverService
	rides   RideHistory
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(drivers DriverService, rides RideHistory) *DriverHandler {
	return &DriverHandler{drivers: drivers, rides: rides}
}

// UpdateDriverRequest is the HTTP request body for a driver profile update.
type UpdateDriverRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName    *string `json:"lastName" binding:"omitempty,min=2,max=50"`
	PhoneNumber *string `json:"phoneNumber"`
	Vehicle     *struct {
		Make  *string `json:"make" binding:"omitempty,min=2,max=50"`
		Model *string `json:"model" binding:"omitempty,min=2,max=50"`
		Year  *int    `json:"year" binding:"omitempty,min=1900"`
		Color *string `json:"color" binding:"omitempty,min=2,max=30"`
	} `json:"vehicleInfo"`
}

// SetStatusRequest is the HTTP request body for a driver availability change.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// GetProfile handles GET /api/drivers/profile
func (h *DriverHandler) GetProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	driver, err := h.drivers.GetProfile(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"driver": toDriverResponse(driver)})
}

// UpdateProfile handles PUT /api/drivers/profile
func (h *DriverHandler) UpdateProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	update := service.DriverProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	}
	if v := req.Vehicle; v != nil {
		update.VehicleMake = v.Make
		update.VehicleModel = v.Model
		update.VehicleYear = v.Year
		update.VehicleColor = v.Color
	}

	driver, err := h.drivers.UpdateProfile(c.Request.Context(), caller.ID, update)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"driver": toDriverResponse(driver)})
}

// SetStatus handles PUT /api/drivers/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.drivers.SetStatus(c.Request.Context(), caller.ID, domain.DriverStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"driver": toDriverResponse(driver)})
}

// UpdateLocation handles PUT /api/drivers/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req locationBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := h.drivers.UpdateLocation(c.Request.Context(), caller.ID, stopBody{Location: req}.toDomain())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"driver": toDriverResponse(driver)})
}

// AvailableRides handles GET /api/drivers/rides/available
func (h *DriverHandler) AvailableRides(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	rides, err := h.rides.AvailableRides(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": toRideResponses(rides)})
}

// RideHistory handles GET /api/drivers/rides/history
func (h *DriverHandler) RideHistory(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	rides, err := h.rides.DriverHistory(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": toRideResponses(rides)})
}
