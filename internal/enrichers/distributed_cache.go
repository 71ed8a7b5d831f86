package enrichers

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"emojidb/internal/common/logging"
)

// DefaultCacheKeyPrefix namespaces detail entries in Redis
const DefaultCacheKeyPrefix = "emojidb:detail:"

// redisTimeout bounds every cache round trip so a slow Redis never stalls a run
const redisTimeout = 5 * time.Second

// DistributedResponseCache implements a Redis-backed distributed cache.
// Entries are JSON-encoded EmojiData with the configured TTL; Redis owns
// expiry, so MaxSize is advisory only.
type DistributedResponseCache struct {
	config      *CacheConfig
	redisClient RedisInterface
	keyPrefix   string
	logger      logging.Logger

	hits   int64
	misses int64
}

// NewDistributedResponseCache creates a new distributed response cache
func NewDistributedResponseCache(config *CacheConfig, redisClient RedisInterface, logger logging.Logger) *DistributedResponseCache {
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &DistributedResponseCache{
		config:      config,
		redisClient: redisClient,
		keyPrefix:   DefaultCacheKeyPrefix,
		logger:      logger,
	}
}

// Get retrieves a value from the distributed cache. Errors are treated as misses.
func (c *DistributedResponseCache) Get(ctx context.Context, key string) (EmojiData, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	raw, err := c.redisClient.Get(ctx, c.keyPrefix+key)
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return EmojiData{}, false
	}

	var data EmojiData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		c.logger.Warn("Discarding undecodable cache entry",
			logging.String("key", key),
			logging.Err(err),
		)
		atomic.AddInt64(&c.misses, 1)
		return EmojiData{}, false
	}

	atomic.AddInt64(&c.hits, 1)
	return data, true
}

// Set stores a value in the distributed cache
func (c *DistributedResponseCache) Set(ctx context.Context, key string, value EmojiData) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.redisClient.Set(ctx, c.keyPrefix+key, value, c.config.TTL); err != nil {
		c.logger.Warn("Failed to store cache entry",
			logging.String("key", key),
			logging.Err(err),
		)
	}
}

// Delete removes a value from the distributed cache
func (c *DistributedResponseCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.redisClient.Delete(ctx, c.keyPrefix+key); err != nil {
		c.logger.Warn("Failed to delete cache entry",
			logging.String("key", key),
			logging.Err(err),
		)
	}
}

// Clear removes every entry under the cache prefix
func (c *DistributedResponseCache) Clear(ctx context.Context) {
	deleted, err := c.redisClient.DeletePrefix(ctx, c.keyPrefix)
	if err != nil {
		c.logger.Warn("Failed to clear cache", logging.Err(err))
		return
	}
	c.logger.Debug("Cleared distributed cache", logging.Int("deleted", deleted))
}

// Size returns the number of entries under the cache prefix, or -1 if Redis
// could not be reached
func (c *DistributedResponseCache) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := c.redisClient.CountPrefix(ctx, c.keyPrefix)
	if err != nil {
		return -1
	}
	return n
}

// Stats returns cache statistics
func (c *DistributedResponseCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":     "distributed",
		"max_size": c.config.MaxSize,
		"ttl":      c.config.TTL.String(),
		"backend":  "redis",
		"prefix":   c.keyPrefix,
		"hits":     atomic.LoadInt64(&c.hits),
		"misses":   atomic.LoadInt64(&c.misses),
	}
}

// Stop is a no-op for distributed cache (no cleanup goroutine)
func (c *DistributedResponseCache) Stop() {}

// Ensure both cache types implement the interface
var _ CacheInterface = (*ResponseCache)(nil)
var _ CacheInterface = (*DistributedResponseCache)(nil)
