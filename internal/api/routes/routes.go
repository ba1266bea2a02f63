package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-dispatch/internal/api/handlers"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check and metrics
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket connection (authenticates inside the handler, before
		// the upgrade)
		v1.GET("/ws", h.HandleWebSocket)

		authed := v1.Group("")
		authed.Use(h.Authenticate())
		{
			rides := authed.Group("/rides")
			{
				rides.POST("", h.CreateRide)
				rides.GET("/:id", h.GetRide)
				rides.POST("/:id/ratings", h.RateRide)
			}

			drivers := authed.Group("/drivers")
			{
				drivers.GET("/nearby", h.NearbyDrivers)
			}
		}
	}
}
