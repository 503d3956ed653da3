package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the stream chat backend.
//
// Naming convention: namespace_subsystem_name
// - namespace: stream_chat (application-level grouping)
// - subsystem: websocket, room, store (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, members)
// - Counter: Cumulative events (frames processed, errors)
// - Histogram: Latency distributions (store query time)

var (
	// ActiveConnections tracks the current number of active WebSocket connections
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream_chat",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of rooms in the broker registry
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream_chat",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active chat rooms",
	})

	// RoomMembers tracks the member count per room
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stream_chat",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"stream_id"})

	// WsEvents tracks the total number of inbound websocket events processed
	WsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream_chat",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// StoreQueryDuration tracks time spent in message store queries
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stream_chat",
		Subsystem: "store",
		Name:      "query_seconds",
		Help:      "Time spent executing message store queries",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"query"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
