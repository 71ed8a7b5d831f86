package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalLimiter(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: 50 * time.Millisecond, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx := context.Background()

	// First slot is available immediately
	if !limiter.TryAcquire() {
		t.Error("First request should be allowed")
	}

	// Burst is one, so the next slot is not
	if limiter.TryAcquire() {
		t.Error("Second request should be denied until the interval passes")
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Errorf("Wait should succeed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Wait returned after %v, expected roughly the interval", elapsed)
	}
}

func TestLocalLimiterSpacing(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: 20 * time.Millisecond, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}

	// Four waits with burst one need at least three intervals
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Four waits took %v, expected at least ~60ms", elapsed)
	}

	stats := limiter.Stats()
	if stats["waits"].(int64) != 4 {
		t.Errorf("Expected 4 waits, got %v", stats["waits"])
	}
}

func TestLocalLimiterDisabled(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: time.Hour, Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	for i := 0; i < 10; i++ {
		if !limiter.TryAcquire() {
			t.Errorf("Request %d should be allowed when limiting is disabled", i)
		}
		if err := limiter.Wait(context.Background()); err != nil {
			t.Errorf("Wait should not fail when disabled: %v", err)
		}
	}
}

func TestLocalLimiterZeroInterval(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: 0, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	for i := 0; i < 10; i++ {
		if !limiter.TryAcquire() {
			t.Errorf("Request %d should be allowed with a zero interval", i)
		}
	}
}

func TestLocalLimiterContextCancellation(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: time.Hour, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	// Consume the only slot
	limiter.TryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Wait should fail once the context is done")
	}
}

func TestLocalLimiterSetInterval(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: time.Hour, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	limiter.TryAcquire()
	limiter.SetInterval(0)

	if !limiter.TryAcquire() {
		t.Error("Request should be allowed after removing the interval")
	}
	if got := limiter.Stats()["interval"]; got != "0s" {
		t.Errorf("Stats interval = %v, want 0s", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if err := (Config{Interval: -time.Second}).Validate(); err == nil {
		t.Error("Negative interval should be rejected")
	}
	if _, err := NewLocalLimiter(Config{Interval: -time.Second}); err == nil {
		t.Error("NewLocalLimiter should reject an invalid config")
	}
}

func TestLocalLimiterDoneMeasuresFromCompletion(t *testing.T) {
	interval := 40 * time.Millisecond
	limiter, err := NewLocalLimiter(Config{Interval: interval, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	// Work that outlasts the interval must not earn an immediate next slot
	time.Sleep(2 * interval)
	limiter.Done()
	finished := time.Now()

	if limiter.TryAcquire() {
		t.Error("TryAcquire right after Done should be denied")
	}
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	if gap := time.Since(finished); gap < interval-5*time.Millisecond {
		t.Errorf("Wait returned %v after Done, want at least %v", gap, interval)
	}
}

func TestLocalLimiterDoneDisabled(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Interval: time.Hour, Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	limiter.Done()
	if !limiter.TryAcquire() {
		t.Error("Disabled limiter should always allow after Done")
	}
}
