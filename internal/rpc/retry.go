package rpc

import (
	"context"
	"math"
	"time"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
)

// RetryConfig parameterizes exponential backoff for remote calls. A call is
// attempted up to MaxRetries+1 times; on exhaustion the last error surfaces
// to the caller.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig matches the backoff used against public RPC endpoints.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// RetryConfigFrom converts the YAML retry section into a RetryConfig.
func RetryConfigFrom(cfg config.RetryConfig) RetryConfig {
	return RetryConfig{
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:        time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		ExponentialBase: cfg.ExponentialBase,
	}
}

// Delay returns the backoff before the retry following the given 0-based
// attempt: min(BaseDelay * ExponentialBase^attempt, MaxDelay).
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	if max := float64(c.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// sleep waits for the given duration unless ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
