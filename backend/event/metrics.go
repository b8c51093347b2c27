package event

import "github.com/prometheus/client_golang/prometheus"

// busMetrics is nil when no registry was given; its methods accept that.
type busMetrics struct {
	events *prometheus.CounterVec
}

func newBusMetrics(registry prometheus.Registerer) *busMetrics {
	if registry == nil {
		return nil
	}

	m := &busMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seyal_events_total",
			Help: "Domain events by kind and outcome (published, delivered, dropped).",
		}, []string{"kind", "outcome"}),
	}
	registry.MustRegister(m.events)
	return m
}

func (m *busMetrics) inc(kind, outcome string) {
	if m != nil {
		m.events.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *busMetrics) published(kind string) { m.inc(kind, "published") }
func (m *busMetrics) delivered(kind string) { m.inc(kind, "delivered") }
func (m *busMetrics) dropped(kind string)   { m.inc(kind, "dropped") }
