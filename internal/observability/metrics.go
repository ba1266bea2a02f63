package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "connections_active", Help: "Number of live WebSocket connections"})
	DriversOnline     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "drivers_online", Help: "Number of identities with role DRIVER currently online"})

	InboundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "inbound_events_total", Help: "Inbound client events by type"},
		[]string{"type"},
	)
	MessagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "messages_dispatched_total", Help: "Outbound messages delivered to a live connection, by type"},
		[]string{"type"},
	)
	MessagesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "messages_dropped_total", Help: "Outbound messages dropped because the target had no live connection or a full send buffer"},
	)
	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "ride_transitions_total", Help: "Applied ride state transitions by resulting status"},
		[]string{"status"},
	)
	StaleLocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "stale_locations_total", Help: "Location updates dropped for arriving out of order"},
	)
)
