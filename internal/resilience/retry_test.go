package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

func TestRetry_Success(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	
	err := Retry(context.Background(), cfg, func() error {
		return nil
	})
	
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	attempts := 0
	
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("fail")
		}
		return nil
	})
	
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_AllFail(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	testErr := errors.New("always fail")
	
	err := Retry(context.Background(), cfg, func() error {
		return testErr
	})
	
	if err != testErr {
		t.Errorf("expected testErr, got %v", err)
	}
}

func TestRetry_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}
	attempts := 0
	permanent := domainerrors.InvalidInput("source_amount", "must be greater than zero")

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return permanent
	})

	if err != permanent {
		t.Errorf("expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(nil) {
		t.Error("nil should be retryable")
	}
	if !Retryable(errors.New("unclassified")) {
		t.Error("an unclassified error should be retryable")
	}
	if Retryable(domainerrors.ChainNotSupported(99)) {
		t.Error("chain not supported should not be retryable")
	}
	if !Retryable(domainerrors.ExternalServiceFailure("rpc", errors.New("timeout"))) {
		t.Error("external service failure should be retryable")
	}
}
