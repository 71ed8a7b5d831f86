// Package locks provides the distributed run lock using the Redlock algorithm
// implementation from go-redsync/redsync/v4.
//
// When several hosts share one Redis cache, the lock keeps them from crawling
// the detail site at the same time. A lock is acquired once per run and
// extended by its holder as work progresses. Nothing renews it in the
// background, so a stalled holder loses the lock after its expiry.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"emojidb/internal/common/errors"
	"emojidb/internal/redis"
)

// RunLockKey is the key guarding pipeline runs
const RunLockKey = "emojidb:run"

// DefaultRunLockExpiry must exceed the longest single record resolution
const DefaultRunLockExpiry = 10 * time.Minute

// releaseTimeout bounds the unlock call made when the caller's context is done
const releaseTimeout = 5 * time.Second

// RedsyncManager hands out Redlock mutexes
type RedsyncManager struct {
	redsync *redsync.Redsync
}

// RedsyncLock is one acquired mutex
type RedsyncLock struct {
	mu         sync.Mutex
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	acquired   time.Time
	held       bool
}

// NewRedsyncManager creates a lock manager on top of redisClient.
func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncManager{redsync: redsync.New(pool)}, nil
}

// AcquireLock makes a single attempt at key. It fails at once when another
// holder has the lock.
func (rm *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (*RedsyncLock, error) {
	if expiration <= 0 {
		expiration = DefaultRunLockExpiry
	}

	mutex := rm.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if stderrors.As(err, &taken) || stderrors.Is(err, redsync.ErrFailed) {
			return nil, errors.InternalError(fmt.Sprintf("lock %s is held by another run", key), err).
				WithCode("lock_held")
		}
		return nil, errors.InternalError(fmt.Sprintf("failed to acquire lock %s", key), err)
	}

	return &RedsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		acquired:   time.Now(),
		held:       true,
	}, nil
}

// AcquireRunLock acquires the pipeline run lock
func (rm *RedsyncManager) AcquireRunLock(ctx context.Context, expiration time.Duration) (*RedsyncLock, error) {
	return rm.AcquireLock(ctx, RunLockKey, expiration)
}

// Key returns the unique identifier for this lock.
func (rl *RedsyncLock) Key() string {
	return rl.key
}

// Acquired returns when the lock was taken
func (rl *RedsyncLock) Acquired() time.Time {
	return rl.acquired
}

// Extend resets the expiry to a full period from now. It fails once the lock
// has expired or been released.
func (rl *RedsyncLock) Extend(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.held {
		return errors.InternalError(fmt.Sprintf("lock %s is not held", rl.key), nil)
	}

	ok, err := rl.mutex.ExtendContext(ctx)
	if err != nil || !ok {
		rl.held = false
		return errors.InternalError(fmt.Sprintf("lock %s was lost", rl.key), err)
	}
	return nil
}

// Release unlocks the mutex. Releasing twice is a no-op.
func (rl *RedsyncLock) Release(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.held {
		return nil
	}
	rl.held = false

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if ok, err := rl.mutex.UnlockContext(ctx); err != nil || !ok {
		return errors.InternalError(fmt.Sprintf("failed to release lock %s", rl.key), err)
	}
	return nil
}

// IsHeld reports whether this instance still believes it holds the lock
func (rl *RedsyncLock) IsHeld() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.held
}
