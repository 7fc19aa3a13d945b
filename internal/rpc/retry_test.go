package rpc

import (
	"testing"
	"time"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
)

func TestRetryConfig_DelaySequence(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      6,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, expected := range want {
		if got := cfg.Delay(attempt); got != expected {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestRetryConfig_DelayCappedAtMax(t *testing.T) {
	cfg := DefaultRetryConfig()
	if got := cfg.Delay(100); got != cfg.MaxDelay {
		t.Errorf("Delay(100) = %v, want the cap %v", got, cfg.MaxDelay)
	}
}

func TestRetryConfigFrom(t *testing.T) {
	cfg := RetryConfigFrom(config.RetryConfig{
		MaxRetries:      5,
		BaseDelayMs:     500,
		MaxDelayMs:      10000,
		ExponentialBase: 3.0,
	})

	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.MaxDelay)
	}
	if got := cfg.Delay(1); got != 1500*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 1.5s", got)
	}
}
