package enrichers

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// CacheConfig for detail caching
type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	TTL     time.Duration `json:"ttl" yaml:"ttl"`
	MaxSize int           `json:"max_size" yaml:"max_size"`
}

// CacheInterface defines the interface that both local and distributed caches implement
type CacheInterface interface {
	Get(ctx context.Context, key string) (EmojiData, bool)
	Set(ctx context.Context, key string, value EmojiData)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Size() int
	Stats() map[string]interface{}
	Stop()
}

// ResponseCache implements a thread-safe LRU cache with TTL for detail data
type ResponseCache struct {
	config   *CacheConfig
	items    map[string]*cacheItem
	lruList  *list.List
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once

	hits   int64
	misses int64
}

type cacheItem struct {
	key       string
	value     EmojiData
	expiresAt time.Time
	element   *list.Element
}

// NewResponseCache creates a new response cache
func NewResponseCache(config *CacheConfig) *ResponseCache {
	if config.MaxSize <= 0 {
		config.MaxSize = 1000 // Default max size
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute // Default TTL
	}

	cache := &ResponseCache{
		config:   config,
		items:    make(map[string]*cacheItem),
		lruList:  list.New(),
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// Get retrieves a value from the cache
func (c *ResponseCache) Get(_ context.Context, key string) (EmojiData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.misses++
		return EmojiData{}, false
	}

	// Check if expired
	if time.Now().After(item.expiresAt) {
		c.removeItem(item)
		c.misses++
		return EmojiData{}, false
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(item.element)
	c.hits++

	return item.value, true
}

// Set stores a value in the cache
func (c *ResponseCache) Set(_ context.Context, key string, value EmojiData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existingItem, exists := c.items[key]; exists {
		existingItem.value = value
		existingItem.expiresAt = time.Now().Add(c.config.TTL)
		c.lruList.MoveToFront(existingItem.element)
		return
	}

	item := &cacheItem{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.config.TTL),
	}

	item.element = c.lruList.PushFront(item)
	c.items[key] = item

	if c.lruList.Len() > c.config.MaxSize {
		c.evictLRU()
	}
}

// Delete removes a value from the cache
func (c *ResponseCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		c.removeItem(item)
	}
}

// Clear removes all items from the cache
func (c *ResponseCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cacheItem)
	c.lruList.Init()
}

// Size returns the current number of items in the cache
func (c *ResponseCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *ResponseCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"type":     "local",
		"size":     len(c.items),
		"max_size": c.config.MaxSize,
		"ttl":      c.config.TTL.String(),
		"hits":     c.hits,
		"misses":   c.misses,
	}
}

// Stop shuts down the cache cleanup goroutine
func (c *ResponseCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// removeItem removes an item from both the map and LRU list
func (c *ResponseCache) removeItem(item *cacheItem) {
	delete(c.items, item.key)
	c.lruList.Remove(item.element)
}

// evictLRU removes the least recently used item
func (c *ResponseCache) evictLRU() {
	element := c.lruList.Back()
	if element != nil {
		c.removeItem(element.Value.(*cacheItem))
	}
}

// cleanup periodically removes expired items
func (c *ResponseCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopChan:
			return
		}
	}
}

// cleanupExpired removes all expired items
func (c *ResponseCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, item := range c.items {
		if now.After(item.expiresAt) {
			c.removeItem(item)
		}
	}
}
