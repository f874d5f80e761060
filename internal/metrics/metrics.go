// ABOUTME: Prometheus collectors for dispatch, bridge, streaming, and OAuth activity.
// ABOUTME: Collectors are package-level and attached to a registry with Register.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workspace_gateway_build_info",
			Help: "Build information",
		},
		[]string{"version"},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_gateway_dispatch_total",
			Help: "JSON-RPC envelopes dispatched, by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	bridgePublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_gateway_bridge_published_total",
			Help: "Envelopes published onto the transport bridge",
		},
	)

	bridgeDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_gateway_bridge_deliveries_total",
			Help: "Per-subscriber deliveries, by outcome",
		},
		[]string{"outcome"},
	)

	streamActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workspace_gateway_stream_sessions_active",
			Help: "Streaming sessions currently open",
		},
	)

	streamClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_gateway_stream_sessions_closed_total",
			Help: "Streaming sessions closed, by final state",
		},
		[]string{"state"},
	)

	streamFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_gateway_stream_frames_total",
			Help: "Frames written to streaming subscribers, by kind",
		},
		[]string{"kind"},
	)

	oauthRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_gateway_oauth_requests_total",
			Help: "OAuth endpoint requests, by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	registeredClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workspace_gateway_registered_clients",
			Help: "Dynamically registered clients held in memory",
		},
	)
)

// knownMethods bounds the cardinality of the method label.
var knownMethods = map[string]bool{
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,
	"tools/list":                true,
	"tools/call":                true,
}

// Register registers all collectors with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		buildInfo,
		dispatchTotal,
		bridgePublished,
		bridgeDeliveries,
		streamActive,
		streamClosed,
		streamFrames,
		oauthRequests,
		registeredClients,
	)
}

// SetBuildInfo records the running version.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// RecordDispatch counts one dispatched envelope. Unrecognized methods share
// the "other" label.
func RecordDispatch(method string, ok bool) {
	if !knownMethods[method] {
		method = "other"
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	dispatchTotal.WithLabelValues(method, outcome).Inc()
}

// RecordPublish counts one publish and its per-subscriber results.
func RecordPublish(delivered, dropped int) {
	bridgePublished.Inc()
	bridgeDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	bridgeDeliveries.WithLabelValues("dropped").Add(float64(dropped))
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	streamActive.Inc()
}

// SessionClosed decrements the active gauge and counts the final state.
func SessionClosed(state string) {
	streamActive.Dec()
	streamClosed.WithLabelValues(state).Inc()
}

// RecordFrame counts one frame written to a subscriber.
func RecordFrame(kind string) {
	streamFrames.WithLabelValues(kind).Inc()
}

// RecordOAuth counts one OAuth endpoint request.
func RecordOAuth(endpoint string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	oauthRequests.WithLabelValues(endpoint, outcome).Inc()
}

// SetRegisteredClients sets the registered client gauge.
func SetRegisteredClients(n int) {
	registeredClients.Set(float64(n))
}
