package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/internal/observability"
	"github.com/gocomet/ride-dispatch/internal/presence"
	"github.com/gocomet/ride-dispatch/internal/session"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/gocomet/ride-dispatch/pkg/websocket"
)

// Exporter receives a best-effort copy of every domain event, e.g. a
// Kafka topic for downstream analytics. In-band delivery never depends
// on it.
type Exporter interface {
	Publish(ev ride.Event) error
}

// Dispatcher translates domain events and location updates into targeted
// transport messages. Delivery is fire-and-forget: a target with no live
// connection is dropped, never queued.
type Dispatcher struct {
	sessions *session.Registry
	exporter Exporter
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher. exporter may be nil.
func NewDispatcher(sessions *session.Registry, exporter Exporter, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sessions: sessions, exporter: exporter, logger: log}
}

// rideRequestPayload is what online drivers see for a new request. It
// deliberately excludes the rider's identity and contact details.
type rideRequestPayload struct {
	RideID      uuid.UUID       `json:"ride_id"`
	Pickup      ride.Coordinate `json:"pickup"`
	Dropoff     ride.Coordinate `json:"dropoff"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Publish implements the state machine's event sink. It never blocks:
// per-connection sends go through buffered channels and the export runs
// on its own goroutine.
func (d *Dispatcher) Publish(ev ride.Event) {
	switch ev.Kind {
	case ride.EventRequested:
		d.broadcastDrivers(websocket.Message{
			Type: websocket.TypeNewRideRequest,
			Data: rideRequestPayload{
				RideID:      ev.Ride.ID,
				Pickup:      ev.Ride.Pickup,
				Dropoff:     ev.Ride.Dropoff,
				RequestedAt: ev.Ride.RequestedAt,
			},
		})
	case ride.EventAccepted, ride.EventStatusChanged, ride.EventCancelled:
		msg := websocket.Message{Type: websocket.TypeRideUpdate, Data: ev.Ride}
		d.unicast(ev.Ride.RiderID, msg)
		if ev.Ride.DriverID != nil {
			d.unicast(*ev.Ride.DriverID, msg)
		}
	default:
		d.logger.Warn("Unknown domain event kind", logger.String("kind", string(ev.Kind)))
		return
	}

	if d.exporter != nil {
		go func(ev ride.Event) {
			if err := d.exporter.Publish(ev); err != nil {
				d.logger.Warn("Failed to export domain event",
					logger.String("ride_id", ev.RideID.String()),
					logger.Err(err),
				)
			}
		}(ev)
	}
}

// DriverLocation forwards a driver's position to the ride's rider only.
// The driver's location is never broadcast.
func (d *Dispatcher) DriverLocation(r *ride.Ride, rec presence.Record) {
	d.unicast(r.RiderID, websocket.Message{
		Type: websocket.TypeDriverLocation,
		Data: rec,
	})
}

// Message delivers an in-trip chat message to its receiver.
func (d *Dispatcher) Message(msg *ride.Message) {
	d.unicast(msg.ReceiverID, websocket.Message{
		Type: websocket.TypeNewMessage,
		Data: msg,
	})
}

// Emergency alerts the ride's other participant. Contacting emergency
// services is an external collaborator's job, not this core's.
func (d *Dispatcher) Emergency(rep *ride.EmergencyReport, counterpartID uuid.UUID) {
	d.unicast(counterpartID, websocket.Message{
		Type: websocket.TypeEmergencyAlert,
		Data: rep,
	})
}

func (d *Dispatcher) broadcastDrivers(msg websocket.Message) {
	data, err := msg.Encode()
	if err != nil {
		d.logger.Error("Failed to marshal broadcast message", logger.Err(err))
		return
	}

	conns := d.sessions.ConnectionsByRole(identity.RoleDriver)
	sent := 0
	for _, conn := range conns {
		if conn.Send(data) {
			sent++
		} else {
			observability.MessagesDroppedTotal.Inc()
		}
	}
	observability.MessagesDispatchedTotal.WithLabelValues(msg.Type).Add(float64(sent))

	d.logger.Info("Broadcast to online drivers",
		logger.String("type", msg.Type),
		logger.Int("targets", len(conns)),
		logger.Int("sent", sent),
	)
}

func (d *Dispatcher) unicast(userID uuid.UUID, msg websocket.Message) {
	data, err := msg.Encode()
	if err != nil {
		d.logger.Error("Failed to marshal message", logger.Err(err))
		return
	}

	conns := d.sessions.ConnectionsFor(userID)
	if len(conns) == 0 {
		// Best effort by design: no offline inbox.
		observability.MessagesDroppedTotal.Inc()
		d.logger.Debug("Target offline, message dropped",
			logger.String("user_id", userID.String()),
			logger.String("type", msg.Type),
		)
		return
	}

	for _, conn := range conns {
		if conn.Send(data) {
			observability.MessagesDispatchedTotal.WithLabelValues(msg.Type).Inc()
		} else {
			observability.MessagesDroppedTotal.Inc()
			d.logger.Warn("Client send buffer full, message dropped",
				logger.String("user_id", userID.String()),
				logger.String("type", msg.Type),
			)
		}
	}
}
