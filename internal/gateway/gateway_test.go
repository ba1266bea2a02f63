package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/dispatch"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/gocomet/ride-dispatch/internal/presence"
	"github.com/gocomet/ride-dispatch/internal/service/rides"
	"github.com/gocomet/ride-dispatch/internal/session"
	"github.com/gocomet/ride-dispatch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     identity.Identity
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) Identity() identity.Identity { return f.id }

func (f *fakeConn) Send(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
	return true
}

type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fakeConn) received(t *testing.T) []outboundFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]outboundFrame, 0, len(f.frames))
	for _, raw := range f.frames {
		var frame outboundFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		out = append(out, frame)
	}
	return out
}

func (f *fakeConn) ofType(t *testing.T, frameType string) []outboundFrame {
	t.Helper()
	var out []outboundFrame
	for _, frame := range f.received(t) {
		if frame.Type == frameType {
			out = append(out, frame)
		}
	}
	return out
}

type allVehiclesVerified struct{}

func (allVehiclesVerified) HasVerifiedVehicle(context.Context, uuid.UUID) bool { return true }

type harness struct {
	gateway  *Gateway
	sessions *session.Registry
	presence *presence.Store
	rides    *rides.Service
}

func newHarness() *harness {
	log := logger.NewNop()
	registry := session.NewRegistry(log)
	store := presence.NewStore(nil, log)
	dispatcher := dispatch.NewDispatcher(registry, nil, log)
	svc := rides.NewService(dispatcher, allVehiclesVerified{}, nil, log)

	return &harness{
		gateway:  New(registry, store, svc, dispatcher, nil, log),
		sessions: registry,
		presence: store,
		rides:    svc,
	}
}

func (h *harness) connect(role identity.Role) *fakeConn {
	c := &fakeConn{id: identity.Identity{UserID: uuid.New(), Role: role}}
	h.gateway.Connected(c)
	return c
}

func frame(t *testing.T, frameType string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]json.RawMessage{
		"type": json.RawMessage(`"` + frameType + `"`),
		"data": data,
	})
	require.NoError(t, err)
	return raw
}

// requestRide drives a request_ride frame through the gateway and
// returns the pending ride from the originator's ack.
func requestRide(t *testing.T, h *harness, rider *fakeConn) *ride.Ride {
	t.Helper()
	h.gateway.HandleFrame(rider, frame(t, "request_ride", map[string]any{
		"pickup":  map[string]float64{"latitude": 12.9, "longitude": 77.6},
		"dropoff": map[string]float64{"latitude": 12.95, "longitude": 77.65},
	}))

	acks := rider.ofType(t, "ride_update")
	require.NotEmpty(t, acks)

	var r ride.Ride
	require.NoError(t, json.Unmarshal(acks[0].Data, &r))
	require.Equal(t, ride.StatusPending, r.Status)
	return &r
}

func acceptRide(t *testing.T, h *harness, driver *fakeConn, rideID uuid.UUID) {
	t.Helper()
	h.gateway.HandleFrame(driver, frame(t, "accept_ride", map[string]string{
		"ride_id": rideID.String(),
	}))
	require.Empty(t, driver.ofType(t, "ride_error"))
}

func TestRequestThenConcurrentAccept(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)

	drivers := make([]*fakeConn, 3)
	for i := range drivers {
		drivers[i] = h.connect(identity.RoleDriver)
	}

	r := requestRide(t, h, rider)

	for _, d := range drivers {
		require.Len(t, d.ofType(t, "new_ride_request"), 1, "every online driver sees the request")
	}

	accept := frame(t, "accept_ride", map[string]string{"ride_id": r.ID.String()})
	var wg sync.WaitGroup
	for _, d := range drivers {
		wg.Add(1)
		go func(d *fakeConn) {
			defer wg.Done()
			h.gateway.HandleFrame(d, accept)
		}(d)
	}
	wg.Wait()

	// The rider sees the pending ack plus exactly one ACCEPTED update.
	accepted := 0
	for _, f := range rider.ofType(t, "ride_update") {
		var got ride.Ride
		require.NoError(t, json.Unmarshal(f.Data, &got))
		if got.Status == ride.StatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "rider receives exactly one acceptance")

	winners, losers := 0, 0
	for _, d := range drivers {
		rejections := d.ofType(t, "ride_error")
		if len(rejections) == 0 {
			winners++
			require.Len(t, d.ofType(t, "ride_update"), 1, "the winner becomes a participant")
			continue
		}
		losers++
		var rej rejection
		require.NoError(t, json.Unmarshal(rejections[0].Data, &rej))
		assert.Equal(t, "accept_ride", rej.Event)
		assert.Equal(t, "INVALID_TRANSITION", rej.Code)
		assert.Empty(t, d.ofType(t, "ride_update"), "losers never become participants")
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 2, losers)
}

func TestLocationUpdate_OutOfOrderFixDropped(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)
	driver := h.connect(identity.RoleDriver)

	r := requestRide(t, h, rider)
	acceptRide(t, h, driver, r.ID)

	t1 := time.Unix(100, 0).UTC()
	t2 := time.Unix(90, 0).UTC()

	send := func(lat float64, ts time.Time) {
		h.gateway.HandleFrame(driver, frame(t, "location_update", map[string]any{
			"latitude":    lat,
			"longitude":   77.61,
			"ride_id":     r.ID.String(),
			"captured_at": ts.Format(time.RFC3339),
		}))
	}
	send(12.91, t1)
	send(12.90, t2)

	locations := rider.ofType(t, "driver_location")
	require.Len(t, locations, 1, "the stale fix is dropped, not forwarded")

	var rec presence.Record
	require.NoError(t, json.Unmarshal(locations[0].Data, &rec))
	assert.Equal(t, 12.91, rec.Latitude)
	assert.True(t, rec.CapturedAt.Equal(t1))

	stored, ok := h.presence.Get(driver.id.UserID)
	require.True(t, ok)
	assert.Equal(t, 12.91, stored.Latitude)
}

func TestLocationUpdate_NonDriverIgnored(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)

	h.gateway.HandleFrame(rider, frame(t, "location_update", map[string]any{
		"latitude":  12.9,
		"longitude": 77.6,
	}))

	assert.Empty(t, rider.received(t), "ignored silently, no error frame")
	assert.Empty(t, h.presence.Snapshot())
}

func TestLocationUpdate_StopsAfterCancel(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)
	driver := h.connect(identity.RoleDriver)

	r := requestRide(t, h, rider)
	acceptRide(t, h, driver, r.ID)

	_, err := h.rides.Cancel(context.Background(), r.ID, rider.id.UserID, "plans changed")
	require.NoError(t, err)

	h.gateway.HandleFrame(driver, frame(t, "location_update", map[string]any{
		"latitude":  12.91,
		"longitude": 77.61,
		"ride_id":   r.ID.String(),
	}))

	assert.Empty(t, rider.ofType(t, "driver_location"),
		"no tracking fan-out once the ride is terminal")
}

func TestSendMessage_NonParticipantRejected(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)
	driver := h.connect(identity.RoleDriver)
	stranger := h.connect(identity.RoleDriver)

	r := requestRide(t, h, rider)
	acceptRide(t, h, driver, r.ID)

	h.gateway.HandleFrame(stranger, frame(t, "send_message", map[string]any{
		"ride_id":     r.ID.String(),
		"receiver_id": rider.id.UserID.String(),
		"content":     "hello",
	}))

	rejections := stranger.ofType(t, "message_error")
	require.Len(t, rejections, 1)

	var rej rejection
	require.NoError(t, json.Unmarshal(rejections[0].Data, &rej))
	assert.Equal(t, "send_message", rej.Event)
	assert.Equal(t, "FORBIDDEN", rej.Code)

	assert.Empty(t, rider.ofType(t, "new_message"), "rejected message is never delivered")
}

func TestSendMessage_DeliveredToReceiver(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)
	driver := h.connect(identity.RoleDriver)

	r := requestRide(t, h, rider)
	acceptRide(t, h, driver, r.ID)

	h.gateway.HandleFrame(driver, frame(t, "send_message", map[string]any{
		"ride_id":     r.ID.String(),
		"receiver_id": rider.id.UserID.String(),
		"content":     "arriving now",
	}))

	msgs := rider.ofType(t, "new_message")
	require.Len(t, msgs, 1)

	var msg ride.Message
	require.NoError(t, json.Unmarshal(msgs[0].Data, &msg))
	assert.Equal(t, "arriving now", msg.Content)
	assert.Equal(t, driver.id.UserID, msg.SenderID)
}

func TestEmergencyReport_AlertsCounterpart(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)
	driver := h.connect(identity.RoleDriver)

	r := requestRide(t, h, rider)
	acceptRide(t, h, driver, r.ID)

	h.gateway.HandleFrame(rider, frame(t, "emergency_report", map[string]any{
		"ride_id":        r.ID.String(),
		"emergency_type": "accident",
		"description":    "minor collision",
	}))

	alerts := driver.ofType(t, "emergency_alert")
	require.Len(t, alerts, 1)

	var rep ride.EmergencyReport
	require.NoError(t, json.Unmarshal(alerts[0].Data, &rep))
	assert.Equal(t, "accident", rep.Type)
	assert.Equal(t, rider.id.UserID, rep.ReporterID)
}

func TestAcceptRide_RiderForbidden(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)

	r := requestRide(t, h, rider)
	h.gateway.HandleFrame(rider, frame(t, "accept_ride", map[string]string{
		"ride_id": r.ID.String(),
	}))

	rejections := rider.ofType(t, "ride_error")
	require.Len(t, rejections, 1)

	var rej rejection
	require.NoError(t, json.Unmarshal(rejections[0].Data, &rej))
	assert.Equal(t, "FORBIDDEN", rej.Code)
}

func TestDisconnect_ClearsDriverPresence(t *testing.T) {
	h := newHarness()
	driver := h.connect(identity.RoleDriver)

	h.gateway.HandleFrame(driver, frame(t, "location_update", map[string]any{
		"latitude":  12.9,
		"longitude": 77.6,
	}))
	require.Len(t, h.presence.Snapshot(), 1)

	h.gateway.Disconnected(driver)

	assert.False(t, h.sessions.IsOnline(driver.id.UserID))
	assert.Empty(t, h.presence.Snapshot(), "a disconnected driver is never matched")
}

func TestDisconnect_SecondDeviceKeepsPresence(t *testing.T) {
	h := newHarness()

	id := identity.Identity{UserID: uuid.New(), Role: identity.RoleDriver}
	phone := &fakeConn{id: id}
	tablet := &fakeConn{id: id}
	h.gateway.Connected(phone)
	h.gateway.Connected(tablet)

	h.gateway.HandleFrame(phone, frame(t, "location_update", map[string]any{
		"latitude":  12.9,
		"longitude": 77.6,
	}))

	h.gateway.Disconnected(phone)
	assert.Len(t, h.presence.Snapshot(), 1, "presence survives while another device is live")

	h.gateway.Disconnected(tablet)
	assert.Empty(t, h.presence.Snapshot())
}

func TestPing(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)

	h.gateway.HandleFrame(rider, []byte(`{"type":"ping"}`))

	require.Len(t, rider.ofType(t, "pong"), 1)
}

func TestMalformedAndUnknownFramesIgnored(t *testing.T) {
	h := newHarness()
	rider := h.connect(identity.RoleRider)

	h.gateway.HandleFrame(rider, []byte(`not json`))
	h.gateway.HandleFrame(rider, []byte(`{"type":"warp_drive"}`))

	assert.Empty(t, rider.received(t))
}
