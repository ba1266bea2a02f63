package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
)

// Inbound frame types accepted from clients.
const (
	typeLocationUpdate  = "location_update"
	typeSendMessage     = "send_message"
	typeEmergencyReport = "emergency_report"
	typeRequestRide     = "request_ride"
	typeAcceptRide      = "accept_ride"
	typeAdvanceRide     = "advance_ride"
	typeCancelRide      = "cancel_ride"
	typePing            = "ping"
)

// envelope wraps every inbound frame.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type locationUpdateFrame struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	RideID     *uuid.UUID `json:"ride_id,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type sendMessageFrame struct {
	RideID     uuid.UUID `json:"ride_id"`
	Content    string    `json:"content"`
	ReceiverID uuid.UUID `json:"receiver_id"`
}

type emergencyReportFrame struct {
	RideID        uuid.UUID `json:"ride_id"`
	EmergencyType string    `json:"emergency_type"`
	Description   string    `json:"description,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
}

type requestRideFrame struct {
	Pickup  ride.Coordinate `json:"pickup"`
	Dropoff ride.Coordinate `json:"dropoff"`
}

type acceptRideFrame struct {
	RideID uuid.UUID `json:"ride_id"`
}

type advanceRideFrame struct {
	RideID       uuid.UUID `json:"ride_id"`
	TargetStatus string    `json:"target_status"`
}

type cancelRideFrame struct {
	RideID uuid.UUID `json:"ride_id"`
	Reason string    `json:"reason,omitempty"`
}

// rejection is the payload of message_error / emergency_error /
// ride_error frames: a typed refusal of one specific inbound event.
type rejection struct {
	Event   string     `json:"event"`
	RideID  *uuid.UUID `json:"ride_id,omitempty"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}
