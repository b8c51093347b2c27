package model

import (
	"context"
	"errors"
	"time"

	"github.com/furisto/seyal/shared/resilience"
)

// invoker wraps a single provider round trip with retries, the circuit
// breaker and metrics. Every provider embeds one.
type invoker struct {
	provider       string
	retryConfig    *resilience.RetryConfig
	retryHooks     []resilience.RetryHook
	circuitBreaker *resilience.CircuitBreaker
	metrics        *providerMetrics
}

func newInvoker(provider string, options *ProviderOptions) invoker {
	return invoker{
		provider:       provider,
		retryConfig:    options.RetryConfig,
		retryHooks:     options.RetryHooks,
		circuitBreaker: options.CircuitBreaker,
		metrics:        newProviderMetrics(options.Metrics),
	}
}

func (i *invoker) invoke(ctx context.Context, model string, options *InvokeModelOptions, call func(ctx context.Context) (*Message, error)) (*Message, error) {
	start := time.Now()

	hooks := append([]resilience.RetryHook{&retryLogger{
		provider: i.provider,
		metrics:  i.metrics,
		callback: options.RetryCallback,
	}}, i.retryHooks...)

	msg, err := resilience.Retry(ctx, i.retryConfig, i.circuitBreaker, classify, call, hooks...)
	i.metrics.observe(i.provider, model, start, msg, err)
	return msg, err
}

func classify(err error) (bool, time.Duration) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}
	return false, 0
}

// contextError turns a canceled or expired context into a ProviderError.
func contextError(provider string, ctx context.Context, err error) *ProviderError {
	if ctx.Err() == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewProviderError(provider, ProviderErrorKindTimeout, err)
	}
	return NewProviderError(provider, ProviderErrorKindCanceled, err)
}
