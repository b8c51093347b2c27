package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxAttempts        uint
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	UseProviderBackoff bool
	BackoffMultiplier  float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:        5,
		InitialDelay:       1 * time.Second,
		MaxDelay:           10 * time.Second,
		UseProviderBackoff: true,
		BackoffMultiplier:  2,
	}
}

type RetryHook interface {
	OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration)
	OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration)
	OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration)
}

// Classifier decides whether err is worth another attempt. A positive delay
// overrides the exponential schedule when the provider asked for one.
type Classifier func(err error) (retryable bool, retryAfter time.Duration)

// Retry runs fn until it succeeds, the classifier rejects the error, the
// attempts are exhausted or ctx is done. The breaker, if any, is consulted
// before every attempt and told about every outcome.
func Retry[T any](ctx context.Context, config *RetryConfig, breaker *CircuitBreaker, classify Classifier, fn func(ctx context.Context) (T, error), hooks ...RetryHook) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	startTime := time.Now()
	var attempts uint

	operation := func() (T, error) {
		attempts++
		if breaker != nil && !breaker.Allow() {
			return *new(T), backoff.Permanent(breaker.openError())
		}

		result, err := fn(ctx)
		if breaker != nil {
			breaker.RecordResult(err)
		}
		if err == nil {
			return result, nil
		}

		retryable, retryAfter := classify(err)
		if !retryable {
			return *new(T), backoff.Permanent(err)
		}
		if config.UseProviderBackoff && retryAfter > 0 {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds > 0 {
				return *new(T), wrapRetryAfter(err, seconds)
			}
		}
		return *new(T), err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.InitialDelay
	policy.MaxInterval = config.MaxDelay
	if config.BackoffMultiplier > 0 {
		policy.Multiplier = config.BackoffMultiplier
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			for _, hook := range hooks {
				hook.OnRetryAttempt(ctx, attempts, unwrapRetryAfter(err), next)
			}
		}),
	)

	totalDuration := time.Since(startTime)
	if err != nil {
		err = unwrapRetryAfter(err)
		for _, hook := range hooks {
			hook.OnRetryFailure(ctx, err, attempts, totalDuration)
		}
		return result, err
	}

	for _, hook := range hooks {
		hook.OnRetrySuccess(ctx, attempts, totalDuration)
	}
	return result, nil
}

// retryAfterError keeps the provider error reachable while telling backoff
// how long to wait.
type retryAfterError struct {
	err   error
	after error
}

func wrapRetryAfter(err error, seconds int) error {
	return &retryAfterError{err: err, after: backoff.RetryAfter(seconds)}
}

func (e *retryAfterError) Error() string {
	return e.err.Error()
}

func (e *retryAfterError) Unwrap() []error {
	return []error{e.after, e.err}
}

func unwrapRetryAfter(err error) error {
	if rae, ok := err.(*retryAfterError); ok {
		return rae.err
	}
	return err
}
