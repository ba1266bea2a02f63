package websocket

import "encoding/json"

// Outbound frame types pushed to clients.
const (
	TypeNewRideRequest = "new_ride_request"
	TypeRideUpdate     = "ride_update"
	TypeDriverLocation = "driver_location"
	TypeNewMessage     = "new_message"
	TypeEmergencyAlert = "emergency_alert"
	TypeMessageError   = "message_error"
	TypeEmergencyError = "emergency_error"
	TypeRideError      = "ride_error"
	TypePong           = "pong"
)

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Encode marshals the message for the wire. Payloads are plain structs
// and maps, so marshalling only fails on programmer error.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
