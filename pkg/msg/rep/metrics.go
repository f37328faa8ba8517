package rep

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the Prometheus instruments exposed by a REP backend
// (spec/SPEC_FULL §5.4). Registration is skipped entirely when no
// Registerer is configured, so a RepSocket has no implicit global-registry
// side effect.
type metrics struct {
	connections prometheus.Gauge
	requests    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "msg_rep_connections",
			Help: "Number of currently connected REP peers.",
		}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_rep_requests_total",
			Help: "Total number of requests received across all peers.",
		}),
	}
	reg.MustRegister(m.connections, m.requests)
	return m
}

func (m *metrics) peerConnected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *metrics) peerDisconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *metrics) requestReceived() {
	if m != nil {
		m.requests.Inc()
	}
}
