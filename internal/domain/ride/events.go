package ride

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a state machine transition.
type EventKind string

const (
	EventRequested     EventKind = "ride_requested"
	EventAccepted      EventKind = "ride_accepted"
	EventStatusChanged EventKind = "ride_status_changed"
	EventCancelled     EventKind = "ride_cancelled"
)

// Event is emitted on every state transition and consumed only by the
// dispatch layer; it is never persisted by the core.
type Event struct {
	RideID     uuid.UUID `json:"ride_id"`
	Kind       EventKind `json:"kind"`
	Ride       *Ride     `json:"ride"`
	OccurredAt time.Time `json:"occurred_at"`
}
