package pub

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	connections prometheus.Gauge
	dropped     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "msg_pub_connections",
			Help: "Current number of connected subscribers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_pub_session_dropped_total",
			Help: "Total number of messages dropped from subscriber session rings.",
		}),
	}
	reg.MustRegister(m.connections, m.dropped)
	return m
}

func (m *metrics) subscriberConnected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *metrics) subscriberDisconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *metrics) messagesDropped(n int) {
	if m != nil && n > 0 {
		m.dropped.Add(float64(n))
	}
}
