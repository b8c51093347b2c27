package agent

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type runtimeMetrics struct {
	runs        *prometheus.CounterVec
	compactions *prometheus.CounterVec
}

func newRuntimeMetrics(registry prometheus.Registerer) *runtimeMetrics {
	m := &runtimeMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seyal_agent_runs_total",
			Help: "Agent runs by role and outcome.",
		}, []string{"role", "outcome"}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seyal_memory_compactions_total",
			Help: "Log compactions by outcome.",
		}, []string{"outcome"}),
	}

	if registry == nil {
		return m
	}

	m.runs = register(registry, m.runs)
	m.compactions = register(registry, m.compactions)
	return m
}

func register[C prometheus.Collector](registry prometheus.Registerer, collector C) C {
	if err := registry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}

func (m *runtimeMetrics) recordRun(role string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(role, outcome).Inc()
}

func (m *runtimeMetrics) recordCompaction(failed bool) {
	outcome := "summarized"
	if failed {
		outcome = "failed"
	}
	m.compactions.WithLabelValues(outcome).Inc()
}
