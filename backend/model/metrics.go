package model

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type providerMetrics struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	retries     *prometheus.CounterVec
}

func newProviderMetrics(registry prometheus.Registerer) *providerMetrics {
	m := &providerMetrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seyal_model_invocations_total",
				Help: "Total number of model invocations",
			},
			[]string{"provider", "model", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seyal_model_invocation_duration_seconds",
				Help:    "Duration of model invocations including retries",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"provider", "model"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seyal_model_tokens_total",
				Help: "Total number of tokens consumed",
			},
			[]string{"provider", "model", "direction"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seyal_model_retries_total",
				Help: "Total number of retried model calls",
			},
			[]string{"provider"},
		),
	}

	if registry != nil {
		m.invocations = register(registry, m.invocations)
		m.latency = register(registry, m.latency)
		m.tokens = register(registry, m.tokens)
		m.retries = register(registry, m.retries)
	}

	return m
}

// register adds c to registry, reusing an identical collector when another
// provider registered it first.
func register[C prometheus.Collector](registry prometheus.Registerer, c C) C {
	if err := registry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		slog.Warn("failed to register model metric", "error", err)
	}
	return c
}

func (m *providerMetrics) observe(provider, model string, start time.Time, msg *Message, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		var providerErr *ProviderError
		if errors.As(err, &providerErr) {
			outcome = string(providerErr.Kind)
		}
	}

	m.invocations.WithLabelValues(provider, model, outcome).Inc()
	m.latency.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())

	if msg != nil {
		m.tokens.WithLabelValues(provider, model, "input").Add(float64(msg.Usage.InputTokens))
		m.tokens.WithLabelValues(provider, model, "output").Add(float64(msg.Usage.OutputTokens))
		m.tokens.WithLabelValues(provider, model, "cache_read").Add(float64(msg.Usage.CacheReadTokens))
		m.tokens.WithLabelValues(provider, model, "cache_write").Add(float64(msg.Usage.CacheWriteTokens))
	}
}

// retryLogger reports retries through slog and the retry counter.
type retryLogger struct {
	provider string
	metrics  *providerMetrics
	callback func(ctx context.Context, err error, nextRetry time.Duration)
}

func (l *retryLogger) OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration) {
	l.metrics.retries.WithLabelValues(l.provider).Inc()
	slog.WarnContext(ctx, "model call failed, retrying", "provider", l.provider, "attempt", attempt, "next_delay", nextDelay, "error", err)
	if l.callback != nil {
		l.callback(ctx, err, nextDelay)
	}
}

func (l *retryLogger) OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration) {
	if attempts > 1 {
		slog.InfoContext(ctx, "model call succeeded after retry", "provider", l.provider, "attempts", attempts, "duration", totalDuration)
	}
}

func (l *retryLogger) OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration) {
	slog.ErrorContext(ctx, "model call failed", "provider", l.provider, "attempts", attempts, "duration", totalDuration, "error", err)
}
