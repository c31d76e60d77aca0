package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triplink_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triplink_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triplink_ws_connections",
			Help: "Live chat WebSocket connections",
		},
	)

	WSRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triplink_ws_rejected_total",
			Help: "Chat WebSocket connections refused during the handshake",
		},
		[]string{"reason"}, // "unauthenticated" or "forbidden"
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triplink_chat_messages_total",
			Help: "Total chat messages stored",
		},
		[]string{"transport"}, // "rest" or "ws"
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triplink_chat_frames_dropped_total",
			Help: "Inbound WebSocket frames ignored",
		},
		[]string{"reason"},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triplink_chat_broadcast_dropped_total",
			Help: "Subscribers evicted because their send queue was full",
		},
	)
)
