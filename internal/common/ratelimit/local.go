package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localLimiter implements pacing using golang.org/x/time/rate
type localLimiter struct {
	mu      sync.RWMutex
	config  Config
	limiter *rate.Limiter

	waits    int64
	waitTime time.Duration
}

// NewLocalLimiter creates a new local limiter using golang.org/x/time/rate.
// A zero Interval disables waiting even when Enabled is set.
func NewLocalLimiter(config Config) (LocalLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &localLimiter{
		config:  config,
		limiter: rate.NewLimiter(limitFor(config.Interval), 1),
	}, nil
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// Wait blocks until the next unit of work may start
func (rl *localLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	enabled := rl.config.Enabled
	limiter := rl.limiter
	rl.mu.RUnlock()

	if !enabled {
		return ctx.Err()
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	rl.mu.Lock()
	rl.waits++
	rl.waitTime += time.Since(start)
	rl.mu.Unlock()
	return nil
}

// Done restarts the interval from now. The limiter is replaced by a fresh
// one whose single token is already spent, so time spent on the finished
// work never counts toward the next slot.
func (rl *localLimiter) Done() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.config.Enabled {
		return
	}
	now := time.Now()
	limiter := rate.NewLimiter(limitFor(rl.config.Interval), 1)
	limiter.AllowN(now, 1)
	rl.limiter = limiter
}

// TryAcquire attempts to acquire a slot without blocking
func (rl *localLimiter) TryAcquire() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if !rl.config.Enabled {
		return true
	}
	return rl.limiter.Allow()
}

// Reserve returns a reservation for the next slot
func (rl *localLimiter) Reserve() *rate.Reservation {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.limiter.Reserve()
}

// SetInterval changes the spacing for subsequent waits
func (rl *localLimiter) SetInterval(interval time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.config.Interval = interval
	rl.limiter.SetLimit(limitFor(interval))
}

// Stats returns limiter statistics
func (rl *localLimiter) Stats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return map[string]interface{}{
		"type":      "local",
		"enabled":   rl.config.Enabled,
		"interval":  rl.config.Interval.String(),
		"waits":     rl.waits,
		"wait_time": rl.waitTime.String(),
	}
}
