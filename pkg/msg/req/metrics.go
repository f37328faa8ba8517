package req

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requests   prometheus.Counter
	timeouts   prometheus.Counter
	reconnects prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_req_requests_total",
			Help: "Total number of requests issued.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_req_timeouts_total",
			Help: "Total number of requests that timed out.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_req_reconnects_total",
			Help: "Total number of successful connects, including the first.",
		}),
	}
	reg.MustRegister(m.requests, m.timeouts, m.reconnects)
	return m
}

func (m *metrics) requestIssued() {
	if m != nil {
		m.requests.Inc()
	}
}

func (m *metrics) timedOut() {
	if m != nil {
		m.timeouts.Inc()
	}
}

func (m *metrics) reconnected() {
	if m != nil {
		m.reconnects.Inc()
	}
}
