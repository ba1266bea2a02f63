package storage

import (
	"context"
	"database/sql"

	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/pkg/logger"
)

// Store is the Postgres persistence collaborator. The in-memory core is
// authoritative; these writes are opportunistic copies, so every method
// is a single statement with no transaction spanning core state.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore creates a store over an existing pool.
func NewStore(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// SaveRide upserts the ride snapshot.
func (s *Store) SaveRide(ctx context.Context, r *ride.Ride) error {
	var driverID interface{}
	if r.DriverID != nil {
		driverID = r.DriverID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, status,
			pickup_latitude, pickup_longitude,
			dropoff_latitude, dropoff_longitude,
			requested_at, accepted_at, started_at, completed_at, cancelled_at,
			cancellation_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			driver_id = EXCLUDED.driver_id,
			status = EXCLUDED.status,
			accepted_at = EXCLUDED.accepted_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			cancellation_reason = EXCLUDED.cancellation_reason
	`, r.ID, r.RiderID, driverID, string(r.Status),
		r.Pickup.Latitude, r.Pickup.Longitude,
		r.Dropoff.Latitude, r.Dropoff.Longitude,
		r.RequestedAt, r.AcceptedAt, r.StartedAt, r.CompletedAt, r.CancelledAt,
		r.CancellationReason)
	return err
}

// SaveMessage inserts an in-trip chat message.
func (s *Store) SaveMessage(ctx context.Context, msg *ride.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, ride_id, sender_id, receiver_id, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.RideID, msg.SenderID, msg.ReceiverID, msg.Content, msg.SentAt)
	return err
}

// SaveEmergency inserts an emergency report.
func (s *Store) SaveEmergency(ctx context.Context, rep *ride.EmergencyReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emergency_reports (id, ride_id, reporter_id, emergency_type, description, latitude, longitude, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rep.ID, rep.RideID, rep.ReporterID, rep.Type, rep.Description, rep.Latitude, rep.Longitude, rep.ReportedAt)
	return err
}

// SaveRating inserts a rating.
func (s *Store) SaveRating(ctx context.Context, rt *ride.Rating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (id, ride_id, rater_id, score, review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ride_id, rater_id) DO NOTHING
	`, rt.ID, rt.RideID, rt.RaterID, rt.Score, rt.Review, rt.CreatedAt)
	return err
}
