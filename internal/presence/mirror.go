package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const geoKey = "drivers:locations"

// RedisMirror keeps a Redis geo set in step with the in-memory store so
// dashboards and other services can query driver positions. All calls
// are log-and-continue; the mirror is never read by the core.
type RedisMirror struct {
	client  *redis.Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewRedisMirror creates a mirror over an existing client.
func NewRedisMirror(client *redis.Client, log *logger.Logger) *RedisMirror {
	return &RedisMirror{client: client, timeout: 2 * time.Second, logger: log}
}

// Upsert writes the driver's position into the geo set.
func (m *RedisMirror) Upsert(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	err := m.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      rec.DriverID.String(),
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
	}).Err()
	if err != nil {
		m.logger.Warn("Failed to mirror driver location to Redis",
			logger.String("driver_id", rec.DriverID.String()),
			logger.Err(err),
		)
	}
}

// Remove drops the driver from the geo set.
func (m *RedisMirror) Remove(driverID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.client.ZRem(ctx, geoKey, driverID.String()).Err(); err != nil {
		m.logger.Warn("Failed to remove driver location from Redis",
			logger.String("driver_id", driverID.String()),
			logger.Err(err),
		)
	}
}
