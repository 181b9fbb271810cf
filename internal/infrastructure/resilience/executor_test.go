package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errTransient = errors.New("connection refused")

func transientClassifier(err error) ErrorClassification {
	return ErrorClassification{
		Retryable:     errors.Is(err, errTransient),
		RecordFailure: true,
	}
}

func TestExecuteRetriesUntilCollaboratorRecovers(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    4,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "ledger.save_rows", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	}, transientClassifier)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 4,
		BreakerEnabled:   false,
	})

	errPermanent := errors.New("syntax error")
	attempts := 0
	err := exec.Execute(context.Background(), "ledger.save_rows", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
		BreakerEnabled:      false,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "report.write", func(context.Context) error {
		attempts++
		return errTransient
	}, transientClassifier)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteAbortsWaitOnContextCancel(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    10,
		RetryInitialBackoff: time.Minute,
		RetryMaxBackoff:     time.Minute,
		RetryMultiplier:     1,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	start := time.Now()
	err := exec.Execute(ctx, "queue.publish", func(context.Context) error {
		attempts++
		cancel()
		return errTransient
	}, transientClassifier)
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected the attempt error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation did not cut the backoff short: %v", elapsed)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "report.write", func(context.Context) error {
			return errTransient
		}, classifier)
		if !errors.Is(err, errTransient) {
			t.Fatalf("expected transient error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "report.write", func(context.Context) error {
		t.Fatal("open circuit must not invoke the operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatal("IsCircuitOpen must recognize the open state")
	}
}

func TestExecuteKeepsBreakersPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "ledger.save_rows", func(context.Context) error {
			return errTransient
		}, classifier)
	}

	err := exec.Execute(context.Background(), "report.write", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("unrelated operation tripped by another breaker: %v", err)
	}
}

func TestCollaboratorConfigUsesFixedWait(t *testing.T) {
	cfg := CollaboratorConfig().normalize()
	if cfg.RetryMaxAttempts != 10 {
		t.Fatalf("unexpected attempts: %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryInitialBackoff != time.Second || cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("unexpected backoff: %v..%v", cfg.RetryInitialBackoff, cfg.RetryMaxBackoff)
	}
	if cfg.RetryMultiplier != 1.0 {
		t.Fatalf("wait must not grow between attempts: %v", cfg.RetryMultiplier)
	}
}
