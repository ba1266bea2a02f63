package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/api/dto"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/pkg/errors"
)

// CreateRide handles POST /v1/rides
func (h *Handlers) CreateRide(c *gin.Context) {
	id := identityFrom(c)
	if id.Role != identity.RoleRider {
		appErr := errors.Forbidden("Only riders may request rides", nil)
		c.JSON(appErr.Status, appErr)
		return
	}

	var req dto.RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	r, err := h.Rides.Request(c.Request.Context(), id.UserID,
		ride.Coordinate{Latitude: req.PickupLatitude, Longitude: req.PickupLongitude},
		ride.Coordinate{Latitude: req.DropoffLatitude, Longitude: req.DropoffLongitude},
	)
	if err != nil {
		appErr := errors.GetAppError(err)
		c.JSON(appErr.Status, appErr)
		return
	}

	c.JSON(http.StatusCreated, r)
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ride id"})
		return
	}

	r, err := h.Rides.Get(rideID)
	if err != nil {
		appErr := errors.GetAppError(err)
		c.JSON(appErr.Status, appErr)
		return
	}

	// Ride details are visible to participants only.
	if !r.IsParticipant(identityFrom(c).UserID) {
		appErr := errors.Forbidden("Actor is not a participant of this ride", nil)
		c.JSON(appErr.Status, appErr)
		return
	}

	c.JSON(http.StatusOK, r)
}

// RateRide handles POST /v1/rides/:id/ratings
func (h *Handlers) RateRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ride id"})
		return
	}

	var req dto.RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	rt, err := h.Rides.Rate(c.Request.Context(), rideID, identityFrom(c).UserID, req.Score, req.Review)
	if err != nil {
		appErr := errors.GetAppError(err)
		c.JSON(appErr.Status, appErr)
		return
	}

	c.JSON(http.StatusCreated, rt)
}
