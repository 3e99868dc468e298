package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Drop reasons reported on relay_dropped_total.
const (
	ReasonTargetOffline = "target_offline"
	ReasonBufferFull    = "buffer_full"
)

// Metrics holds the relay collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	connections         *prometheus.GaugeVec
	rooms               *prometheus.GaugeVec
	messages            *prometheus.CounterVec
	dropped             *prometheus.CounterVec
	decodeErrors        *prometheus.CounterVec
	notesBroadcast      prometheus.Counter
	notePersistFailures *prometheus.CounterVec
	callTimeouts        *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live WebSocket connections per pool.",
		}, []string{"pool"}),
		rooms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Non-empty rooms per pool.",
		}, []string{"pool"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound commands accepted, by pool and type.",
		}, []string{"pool", "type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Outbound messages dropped, by pool and reason.",
		}, []string{"pool", "reason"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames rejected by the decoder.",
		}, []string{"pool", "code"}),
		notesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_broadcast_total",
			Help:      "Doctor notes persisted and broadcast.",
		}),
		notePersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_persist_failures_total",
			Help:      "Doctor notes that failed to persist.",
		}, []string{"reason"}),
		callTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_timeouts_total",
			Help:      "Negotiations that expired before completing.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.rooms,
		m.messages,
		m.dropped,
		m.decodeErrors,
		m.notesBroadcast,
		m.notePersistFailures,
		m.callTimeouts,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnections(pool string, n int) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(pool).Set(float64(n))
}

func (m *Metrics) SetRooms(pool string, n int) {
	if m == nil {
		return
	}
	m.rooms.WithLabelValues(pool).Set(float64(n))
}

func (m *Metrics) IncMessage(pool, msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(pool, msgType).Inc()
}

func (m *Metrics) IncDropped(pool, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(pool, reason).Inc()
}

func (m *Metrics) IncDecodeError(pool, code string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(pool, code).Inc()
}

func (m *Metrics) IncNoteBroadcast() {
	if m == nil {
		return
	}
	m.notesBroadcast.Inc()
}

func (m *Metrics) IncNotePersistFailure(reason string) {
	if m == nil {
		return
	}
	m.notePersistFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncCallTimeout(stage string) {
	if m == nil {
		return
	}
	m.callTimeouts.WithLabelValues(stage).Inc()
}
