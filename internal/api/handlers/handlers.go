package handlers

import (
	"github.com/gocomet/ride-dispatch/internal/auth"
	"github.com/gocomet/ride-dispatch/internal/config"
	"github.com/gocomet/ride-dispatch/internal/gateway"
	"github.com/gocomet/ride-dispatch/internal/presence"
	"github.com/gocomet/ride-dispatch/internal/service/rides"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Rides    *rides.Service
	Presence *presence.Store
	Gateway  *gateway.Gateway
	Auth     auth.Verifier
	Matching config.MatchingConfig
	Logger   *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc *rides.Service, pres *presence.Store, gw *gateway.Gateway, verifier auth.Verifier, matching config.MatchingConfig, log *logger.Logger) *Handlers {
	return &Handlers{
		Rides:    svc,
		Presence: pres,
		Gateway:  gw,
		Auth:     verifier,
		Matching: matching,
		Logger:   log,
	}
}
