package resilience

import (
	"context"
	"math/rand"
	"time"

	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0-1, adds randomness
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// nonRetryableCodes are error kinds that retrying cannot fix: the swap
// or bridge call failed for a reason that will fail identically on the
// next attempt (bad input, a slipped invariant, a missing chain/bridge
// route). Retrying is reserved for transient RPC/bridge hiccups, which
// surface as ErrCodeExternalServiceFailure or an unrecognized error.
var nonRetryableCodes = map[domainerrors.ErrorCode]struct{}{
	domainerrors.ErrCodeInvalidInput:          {},
	domainerrors.ErrCodeUnauthorized:          {},
	domainerrors.ErrCodeCancelled:             {},
	domainerrors.ErrCodeNotFound:              {},
	domainerrors.ErrCodeConflict:              {},
	domainerrors.ErrCodeInsufficientLiquidity: {},
	domainerrors.ErrCodeSlippageExceeded:      {},
	domainerrors.ErrCodeInvariantViolation:    {},
	domainerrors.ErrCodeOverflow:              {},
	domainerrors.ErrCodeChainNotSupported:     {},
}

// Retryable reports whether err is worth a further attempt. A nil error (or
// one not recognized as a ServiceError) is treated as retryable, since an
// unclassified failure is more likely transient than a permanent coding bug.
func Retryable(err error) bool {
	if err == nil {
		return true
	}
	code := domainerrors.CodeOf(err)
	if code == "" {
		return true
	}
	_, nonRetryable := nonRetryableCodes[code]
	return !nonRetryable
}

// Retry executes fn with exponential backoff, stopping immediately (without
// burning remaining attempts or sleeping) the moment fn returns a
// non-retryable error.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) {
			return err
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(addJitter(delay, cfg.Jitter)):
			}
			delay = nextDelay(delay, cfg)
		}
	}
	return lastErr
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
