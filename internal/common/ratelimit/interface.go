package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the main interface for rate limiting
type Limiter interface {
	// Wait blocks until the next unit of work may start or ctx is done
	Wait(ctx context.Context) error
	// TryAcquire reports whether work may start now without blocking
	TryAcquire() bool
	// Done marks the current unit of work finished. The next Wait returns no
	// sooner than one interval after the latest Done.
	Done()

	Stats() map[string]interface{}
}

// LocalLimiter extends Limiter with access to the underlying rate.Limiter
type LocalLimiter interface {
	Limiter

	Reserve() *rate.Reservation
	SetInterval(interval time.Duration)
}

// Config configures record pacing
type Config struct {
	// Interval is the minimum spacing between two units of work
	Interval time.Duration
	// Enabled turns pacing on; a disabled limiter never blocks
	Enabled bool
}

// DefaultConfig spaces work one second apart
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Enabled:  true,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", c.Interval)
	}
	return nil
}
