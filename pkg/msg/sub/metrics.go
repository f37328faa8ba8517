package sub

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	messages prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "msg_sub_messages_total",
			Help: "Total number of messages delivered to the subscriber.",
		}),
	}
	reg.MustRegister(m.messages)
	return m
}

func (m *metrics) messageReceived() {
	if m != nil {
		m.messages.Inc()
	}
}
