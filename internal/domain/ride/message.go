package ride

import (
	"time"

	"github.com/google/uuid"
)

// Message is an in-trip chat message between the two participants.
type Message struct {
	ID         uuid.UUID `json:"id"`
	RideID     uuid.UUID `json:"ride_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// EmergencyReport is raised by a participant during a trip. The core only
// alerts the other participant; contacting emergency services is an
// external collaborator's responsibility.
type EmergencyReport struct {
	ID          uuid.UUID `json:"id"`
	RideID      uuid.UUID `json:"ride_id"`
	ReporterID  uuid.UUID `json:"reporter_id"`
	Type        string    `json:"emergency_type"`
	Description string    `json:"description,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
}
