package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const vehicleCacheTTL = 5 * time.Minute

// VehicleRegistry answers whether a driver has a verified vehicle.
// Postgres is authoritative; Redis caches positive answers since Accept
// is a hot path. Unreachable stores fail closed (deny).
type VehicleRegistry struct {
	db     *sql.DB
	cache  *redis.Client
	logger *logger.Logger
}

// NewVehicleRegistry creates a registry. cache may be nil.
func NewVehicleRegistry(db *sql.DB, cache *redis.Client, log *logger.Logger) *VehicleRegistry {
	return &VehicleRegistry{db: db, cache: cache, logger: log}
}

// HasVerifiedVehicle reports whether the driver may accept rides.
func (v *VehicleRegistry) HasVerifiedVehicle(ctx context.Context, driverID uuid.UUID) bool {
	key := fmt.Sprintf("driver:%s:vehicle_verified", driverID)

	if v.cache != nil {
		if val, err := v.cache.Get(ctx, key).Result(); err == nil {
			return val == "1"
		}
	}

	var verified bool
	err := v.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vehicles WHERE driver_id = $1 AND verified = true
		)
	`, driverID).Scan(&verified)
	if err != nil {
		v.logger.Warn("Vehicle verification lookup failed, denying",
			logger.String("driver_id", driverID.String()),
			logger.Err(err),
		)
		return false
	}

	if v.cache != nil && verified {
		if err := v.cache.Set(ctx, key, "1", vehicleCacheTTL).Err(); err != nil {
			v.logger.Warn("Failed to cache vehicle verification", logger.Err(err))
		}
	}
	return verified
}
