package enrichers

import (
	"context"
	"time"
)

// RedisInterface defines the Redis operations needed by the distributed cache
type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	CountPrefix(ctx context.Context, prefix string) (int, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Health() error
}
