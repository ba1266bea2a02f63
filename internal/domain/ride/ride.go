package ride

import (
	"time"

	"github.com/google/uuid"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Ride is the authoritative trip record. DriverID is nil exactly while
// the ride is PENDING; it is set once at acceptance and never reassigned.
type Ride struct {
	ID                 uuid.UUID  `json:"id"`
	RiderID            uuid.UUID  `json:"rider_id"`
	DriverID           *uuid.UUID `json:"driver_id,omitempty"`
	Status             Status     `json:"status"`
	Pickup             Coordinate `json:"pickup"`
	Dropoff            Coordinate `json:"dropoff"`
	RequestedAt        time.Time  `json:"requested_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// IsParticipant reports whether userID is the ride's rider or its
// assigned driver.
func (r *Ride) IsParticipant(userID uuid.UUID) bool {
	if r.RiderID == userID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == userID
}

// Counterpart returns the other participant of the ride, if any.
func (r *Ride) Counterpart(userID uuid.UUID) (uuid.UUID, bool) {
	if r.RiderID == userID {
		if r.DriverID == nil {
			return uuid.Nil, false
		}
		return *r.DriverID, true
	}
	if r.DriverID != nil && *r.DriverID == userID {
		return r.RiderID, true
	}
	return uuid.Nil, false
}

// Clone returns a copy safe to hand outside the state machine's locks.
func (r *Ride) Clone() *Ride {
	out := *r
	if r.DriverID != nil {
		id := *r.DriverID
		out.DriverID = &id
	}
	return &out
}

// Rating is one participant's score for a completed ride. At most one
// rating exists per (ride, rater).
type Rating struct {
	ID        uuid.UUID `json:"id"`
	RideID    uuid.UUID `json:"ride_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	Score     int       `json:"score"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
