package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/dispatch"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/internal/observability"
	"github.com/gocomet/ride-dispatch/internal/presence"
	"github.com/gocomet/ride-dispatch/internal/service/rides"
	"github.com/gocomet/ride-dispatch/internal/session"
	"github.com/gocomet/ride-dispatch/pkg/errors"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/gocomet/ride-dispatch/pkg/websocket"
)

// MessageStore persists chat messages and emergency reports. Like every
// persistence collaborator it is best-effort: failures are logged and
// the event still flows.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *ride.Message) error
	SaveEmergency(ctx context.Context, rep *ride.EmergencyReport) error
}

// Gateway is the typed layer between the transport and the core: it
// owns the connect/disconnect lifecycle and routes inbound frames to
// the session registry, presence store, state machine and dispatcher.
type Gateway struct {
	sessions   *session.Registry
	presence   *presence.Store
	rides      *rides.Service
	dispatcher *dispatch.Dispatcher
	store      MessageStore
	logger     *logger.Logger
}

// New creates a gateway. store may be nil.
func New(sessions *session.Registry, pres *presence.Store, svc *rides.Service, d *dispatch.Dispatcher, store MessageStore, log *logger.Logger) *Gateway {
	return &Gateway{
		sessions:   sessions,
		presence:   pres,
		rides:      svc,
		dispatcher: d,
		store:      store,
		logger:     log,
	}
}

// Connected registers an authenticated connection and returns its
// session id. Authentication happened before this point; an unverified
// connection never reaches the registry.
func (g *Gateway) Connected(conn session.Conn) uuid.UUID {
	return g.sessions.Register(conn.Identity(), conn)
}

// Disconnected runs the unconditional cleanup path for any transport
// disconnect: unregister the session and, when the identity's last
// driver connection is gone, clear presence so the driver is never
// matched or shown as tracked.
func (g *Gateway) Disconnected(conn session.Conn) {
	id, ok := g.sessions.Unregister(conn)
	if !ok {
		return
	}
	if id.Role == identity.RoleDriver && !g.sessions.IsOnline(id.UserID) {
		g.presence.Clear(id.UserID)
	}
}

// HandleFrame routes one inbound frame. Rejections go back to the
// originating connection only; they never affect other sessions.
func (g *Gateway) HandleFrame(conn session.Conn, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.logger.Warn("Malformed inbound frame",
			logger.String("user_id", conn.Identity().UserID.String()),
			logger.Err(err),
		)
		return
	}

	observability.InboundEventsTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case typeLocationUpdate:
		g.handleLocationUpdate(conn, env.Data)
	case typeSendMessage:
		g.handleSendMessage(conn, env.Data)
	case typeEmergencyReport:
		g.handleEmergencyReport(conn, env.Data)
	case typeRequestRide:
		g.handleRequestRide(conn, env.Data)
	case typeAcceptRide:
		g.handleAcceptRide(conn, env.Data)
	case typeAdvanceRide:
		g.handleAdvanceRide(conn, env.Data)
	case typeCancelRide:
		g.handleCancelRide(conn, env.Data)
	case typePing:
		g.reply(conn, websocket.Message{Type: websocket.TypePong})
	default:
		g.logger.Warn("Unknown inbound frame type",
			logger.String("type", env.Type),
			logger.String("user_id", conn.Identity().UserID.String()),
		)
	}
}

// handleLocationUpdate applies a driver fix to the presence store and,
// while a ride is active, forwards it to that ride's rider. Non-driver
// senders are ignored without an error, per the event contract.
func (g *Gateway) handleLocationUpdate(conn session.Conn, data []byte) {
	id := conn.Identity()
	if id.Role != identity.RoleDriver {
		return
	}

	var frame locationUpdateFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	capturedAt := time.Now()
	if frame.CapturedAt != nil {
		capturedAt = *frame.CapturedAt
	}

	if !g.presence.Update(id.UserID, frame.Latitude, frame.Longitude, capturedAt, frame.RideID) {
		// Stale fix: out-of-order delivery across reconnects. Dropped so
		// the rider never sees the position jump backwards.
		return
	}

	if frame.RideID == nil {
		return
	}
	r, err := g.rides.Get(*frame.RideID)
	if err != nil {
		return
	}
	// Status re-checked on every update so a cancel immediately stops
	// all further fan-out for the ride.
	if r.DriverID == nil || *r.DriverID != id.UserID || r.Status.IsTerminal() {
		return
	}
	g.dispatcher.DriverLocation(r, presence.Record{
		DriverID:     id.UserID,
		Latitude:     frame.Latitude,
		Longitude:    frame.Longitude,
		CapturedAt:   capturedAt,
		ActiveRideID: frame.RideID,
	})
}

func (g *Gateway) handleSendMessage(conn session.Conn, data []byte) {
	id := conn.Identity()

	var frame sendMessageFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectMessage(conn, nil, errors.BadRequest("Malformed send_message payload", err))
		return
	}
	if frame.Content == "" {
		g.rejectMessage(conn, &frame.RideID, errors.BadRequest("Message content is empty", nil))
		return
	}

	r, err := g.rides.Get(frame.RideID)
	if err != nil {
		g.rejectMessage(conn, &frame.RideID, err)
		return
	}
	if !r.IsParticipant(id.UserID) {
		g.rejectMessage(conn, &frame.RideID, errors.Forbidden("Sender is not a participant of this ride", nil))
		return
	}
	if !r.IsParticipant(frame.ReceiverID) {
		g.rejectMessage(conn, &frame.RideID, errors.Forbidden("Receiver is not a participant of this ride", nil))
		return
	}

	msg := &ride.Message{
		ID:         uuid.New(),
		RideID:     frame.RideID,
		SenderID:   id.UserID,
		ReceiverID: frame.ReceiverID,
		Content:    frame.Content,
		SentAt:     time.Now(),
	}

	if g.store != nil {
		if err := g.store.SaveMessage(context.Background(), msg); err != nil {
			g.logger.Warn("Failed to persist message",
				logger.String("ride_id", frame.RideID.String()),
				logger.Err(err),
			)
		}
	}

	g.dispatcher.Message(msg)
}

func (g *Gateway) handleEmergencyReport(conn session.Conn, data []byte) {
	id := conn.Identity()

	var frame emergencyReportFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectEmergency(conn, nil, errors.BadRequest("Malformed emergency_report payload", err))
		return
	}

	r, err := g.rides.Get(frame.RideID)
	if err != nil {
		g.rejectEmergency(conn, &frame.RideID, err)
		return
	}
	if !r.IsParticipant(id.UserID) {
		g.rejectEmergency(conn, &frame.RideID, errors.Forbidden("Reporter is not a participant of this ride", nil))
		return
	}

	rep := &ride.EmergencyReport{
		ID:          uuid.New(),
		RideID:      frame.RideID,
		ReporterID:  id.UserID,
		Type:        frame.EmergencyType,
		Description: frame.Description,
		Latitude:    frame.Latitude,
		Longitude:   frame.Longitude,
		ReportedAt:  time.Now(),
	}

	g.logger.Warn("Emergency reported",
		logger.String("ride_id", frame.RideID.String()),
		logger.String("reporter_id", id.UserID.String()),
		logger.String("emergency_type", frame.EmergencyType),
	)

	if g.store != nil {
		if err := g.store.SaveEmergency(context.Background(), rep); err != nil {
			g.logger.Warn("Failed to persist emergency report",
				logger.String("ride_id", frame.RideID.String()),
				logger.Err(err),
			)
		}
	}

	if counterpart, ok := r.Counterpart(id.UserID); ok {
		g.dispatcher.Emergency(rep, counterpart)
	}
}

func (g *Gateway) handleRequestRide(conn session.Conn, data []byte) {
	id := conn.Identity()
	if id.Role != identity.RoleRider {
		g.rejectRide(conn, typeRequestRide, nil, errors.Forbidden("Only riders may request rides", nil))
		return
	}

	var frame requestRideFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectRide(conn, typeRequestRide, nil, errors.BadRequest("Malformed request_ride payload", err))
		return
	}

	r, err := g.rides.Request(context.Background(), id.UserID, frame.Pickup, frame.Dropoff)
	if err != nil {
		g.rejectRide(conn, typeRequestRide, nil, err)
		return
	}

	// Dispatch already announced the request to online drivers; the
	// originating connection gets the PENDING snapshot as its ack.
	g.reply(conn, websocket.Message{Type: websocket.TypeRideUpdate, Data: r})
}

func (g *Gateway) handleAcceptRide(conn session.Conn, data []byte) {
	id := conn.Identity()
	if id.Role != identity.RoleDriver {
		g.rejectRide(conn, typeAcceptRide, nil, errors.Forbidden("Only drivers may accept rides", nil))
		return
	}

	var frame acceptRideFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectRide(conn, typeAcceptRide, nil, errors.BadRequest("Malformed accept_ride payload", err))
		return
	}

	if _, err := g.rides.Accept(context.Background(), frame.RideID, id.UserID); err != nil {
		g.rejectRide(conn, typeAcceptRide, &frame.RideID, err)
	}
}

func (g *Gateway) handleAdvanceRide(conn session.Conn, data []byte) {
	id := conn.Identity()

	var frame advanceRideFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectRide(conn, typeAdvanceRide, nil, errors.BadRequest("Malformed advance_ride payload", err))
		return
	}

	target, ok := ride.ParseStatus(frame.TargetStatus)
	if !ok {
		g.rejectRide(conn, typeAdvanceRide, &frame.RideID, errors.BadRequest("Unknown target status: "+frame.TargetStatus, nil))
		return
	}

	if _, err := g.rides.Advance(context.Background(), frame.RideID, id.UserID, target); err != nil {
		g.rejectRide(conn, typeAdvanceRide, &frame.RideID, err)
	}
}

func (g *Gateway) handleCancelRide(conn session.Conn, data []byte) {
	id := conn.Identity()

	var frame cancelRideFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.rejectRide(conn, typeCancelRide, nil, errors.BadRequest("Malformed cancel_ride payload", err))
		return
	}

	if _, err := g.rides.Cancel(context.Background(), frame.RideID, id.UserID, frame.Reason); err != nil {
		g.rejectRide(conn, typeCancelRide, &frame.RideID, err)
	}
}

func (g *Gateway) rejectMessage(conn session.Conn, rideID *uuid.UUID, err error) {
	g.rejectAs(conn, websocket.TypeMessageError, typeSendMessage, rideID, err)
}

func (g *Gateway) rejectEmergency(conn session.Conn, rideID *uuid.UUID, err error) {
	g.rejectAs(conn, websocket.TypeEmergencyError, typeEmergencyReport, rideID, err)
}

func (g *Gateway) rejectRide(conn session.Conn, event string, rideID *uuid.UUID, err error) {
	g.rejectAs(conn, websocket.TypeRideError, event, rideID, err)
}

func (g *Gateway) rejectAs(conn session.Conn, frameType, event string, rideID *uuid.UUID, err error) {
	appErr := errors.GetAppError(err)
	g.reply(conn, websocket.Message{
		Type: frameType,
		Data: rejection{
			Event:   event,
			RideID:  rideID,
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

func (g *Gateway) reply(conn session.Conn, msg websocket.Message) {
	data, err := msg.Encode()
	if err != nil {
		g.logger.Error("Failed to marshal reply", logger.Err(err))
		return
	}
	if !conn.Send(data) {
		g.logger.Warn("Reply dropped, send buffer full",
			logger.String("user_id", conn.Identity().UserID.String()),
			logger.String("type", msg.Type),
		)
	}
}
