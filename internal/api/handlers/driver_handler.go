package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-dispatch/internal/api/dto"
)

// NearbyDrivers handles GET /v1/drivers/nearby
func (h *Handlers) NearbyDrivers(c *gin.Context) {
	var q dto.NearbyDriversQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	radius := q.RadiusKM
	if radius <= 0 {
		radius = h.Matching.DefaultRadiusKM
	}
	if radius > h.Matching.MaxRadiusKM {
		radius = h.Matching.MaxRadiusKM
	}

	records := h.Presence.NearestTo(q.Latitude, q.Longitude, radius)
	c.JSON(http.StatusOK, gin.H{
		"drivers":   records,
		"radius_km": radius,
		"count":     len(records),
	})
}
