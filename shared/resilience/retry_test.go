package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/furisto/seyal/shared/resilience"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func fastConfig(attempts uint) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func classify(err error) (bool, time.Duration) {
	return errors.Is(err, errTransient), 0
}

type recordingHook struct {
	retries  int
	success  bool
	failure  error
	attempts uint
}

func (h *recordingHook) OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration) {
	h.retries++
}

func (h *recordingHook) OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration) {
	h.success = true
	h.attempts = attempts
}

func (h *recordingHook) OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration) {
	h.failure = err
	h.attempts = attempts
}

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	hook := &recordingHook{}
	result, err := resilience.Retry(context.Background(), fastConfig(5), nil, classify, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	}, hook)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %q", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !hook.success || hook.attempts != 3 || hook.retries != 2 {
		t.Errorf("unexpected hook state: %+v", hook)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	hook := &recordingHook{}
	_, err := resilience.Retry(context.Background(), fastConfig(5), nil, classify, func(ctx context.Context) (int, error) {
		calls++
		return 0, errFatal
	}, hook)

	if !errors.Is(err, errFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	if !errors.Is(hook.failure, errFatal) {
		t.Errorf("expected failure hook to see fatal error, got %v", hook.failure)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := resilience.Retry(context.Background(), fastConfig(3), nil, classify, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_OpenBreakerRejects(t *testing.T) {
	t.Parallel()

	breaker := resilience.NewCircuitBreaker("test", 1, time.Hour)
	breaker.RecordResult(errFatal)

	calls := 0
	_, err := resilience.Retry(context.Background(), fastConfig(3), breaker, classify, func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})

	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls, got %d", calls)
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Parallel()

	breaker := resilience.NewCircuitBreaker("test", 2, time.Millisecond)
	if breaker.State() != resilience.CircuitClosed {
		t.Fatalf("expected closed, got %s", breaker.State())
	}

	breaker.RecordResult(errFatal)
	if !breaker.Allow() {
		t.Fatal("expected breaker to allow after a single failure")
	}

	breaker.RecordResult(errFatal)
	if breaker.State() != resilience.CircuitOpen {
		t.Fatalf("expected open, got %s", breaker.State())
	}

	time.Sleep(5 * time.Millisecond)
	if !breaker.Allow() {
		t.Fatal("expected probe to be allowed after reset timeout")
	}
	if breaker.State() != resilience.CircuitHalfOpen {
		t.Fatalf("expected half open, got %s", breaker.State())
	}

	breaker.RecordResult(nil)
	if breaker.State() != resilience.CircuitClosed {
		t.Fatalf("expected closed after successful probe, got %s", breaker.State())
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	t.Parallel()

	breaker := resilience.NewCircuitBreaker("test", 1, 50*time.Millisecond)
	breaker.RecordResult(errFatal)

	time.Sleep(60 * time.Millisecond)
	if !breaker.Allow() {
		t.Fatal("expected first probe to be allowed")
	}
	if breaker.Allow() {
		t.Fatal("expected a second probe to wait for the first")
	}

	breaker.RecordResult(errFatal)
	if breaker.State() != resilience.CircuitOpen {
		t.Fatalf("expected failed probe to reopen, got %s", breaker.State())
	}
	if breaker.Allow() {
		t.Fatal("expected reopened breaker to reject until cooldown")
	}
}
