package main

import (
	"context"
	"fmt"
	"io"

	"emojidb/internal/common/logging"
	"emojidb/internal/config"
	"emojidb/internal/enrichers"
	"emojidb/internal/gateway"
	"emojidb/internal/locks"
	"emojidb/internal/metrics"
	"emojidb/internal/pipeline"
	"emojidb/internal/redis"
	"emojidb/internal/storage"

	// Register storage adapters via init()
	_ "emojidb/internal/storage/postgres"
	_ "emojidb/internal/storage/sqlite"
)

// appOptions selects the optional components a command needs
type appOptions struct {
	cache  bool
	store  bool
	lock   bool
	stdout io.Writer
}

// app holds the wired components of one command
type app struct {
	logger   logging.Logger
	metrics  *metrics.Metrics
	gateway  *gateway.HTTPGateway
	cache    enrichers.CacheInterface
	redis    *redis.Client
	lock     *locks.RedsyncLock
	store    storage.RecordStore
	resolver *enrichers.Resolver
	driver   *pipeline.Driver
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{
		logger:  logging.GetGlobalLogger(),
		metrics: metrics.New(),
	}

	gwConfig := gateway.DefaultConfig()
	gwConfig.Timeout = cfg.RequestTimeout
	if cfg.UserAgent != "" {
		gwConfig.UserAgent = cfg.UserAgent
	}
	a.gateway = gateway.New(gwConfig, a.logger, gateway.WithObserver(a.metrics))

	useCache := opts.cache && cfg.CacheEnabled
	useLock := opts.lock && cfg.RunLock
	if cfg.RedisAddress != "" && (useCache || useLock) {
		a.connectRedis(cfg)
	}

	if useLock && a.redis != nil {
		if err := a.acquireRunLock(ctx, cfg); err != nil {
			a.Close()
			return nil, err
		}
	}

	if useCache {
		a.cache = a.newCache(cfg)
	}

	resolver, err := enrichers.NewResolver(enrichers.Config{
		SiteURL: cfg.SiteURL,
		Retry: enrichers.RetryConfig{
			Attempts:    cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			BackoffType: cfg.RetryBackoff,
		},
		DetailURLMode:    cfg.DetailURLMode,
		ScrapeShortcodes: cfg.ScrapeShortcodes,
		UserAgent:        gwConfig.UserAgent,
	}, a.gateway, a.cache, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create resolver: %w", err)
	}
	a.resolver = resolver

	driverOpts := []pipeline.Option{
		pipeline.WithMetrics(a.metrics),
		pipeline.WithStdout(opts.stdout),
	}
	if a.lock != nil {
		driverOpts = append(driverOpts, pipeline.WithRunLock(a.lock))
	}
	if opts.store {
		store, err := storage.NewStorage(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open %s store: %w", cfg.DatabaseType, err)
		}
		if store != nil {
			a.store = store
			driverOpts = append(driverOpts, pipeline.WithStore(store))
			a.logger.Info("Database mirror enabled", logging.String("type", cfg.DatabaseType))
		}
	}

	driver, err := pipeline.NewDriver(pipeline.Config{
		RegistryURL:    cfg.RegistryURL,
		RegistryPath:   cfg.RegistryPath,
		SiteURL:        cfg.SiteURL,
		OutputPath:     cfg.OutputPath,
		Offset:         cfg.Offset,
		Limit:          cfg.Limit,
		RecordDelay:    cfg.RecordDelay,
		PushgatewayURL: cfg.PushgatewayURL,
	}, a.gateway, a.resolver, a.logger, driverOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create driver: %w", err)
	}
	a.driver = driver

	return a, nil
}

// connectRedis opens the shared Redis client. An unreachable server is
// logged and leaves a.redis nil, so callers fall back to in-process state.
func (a *app) connectRedis(cfg *config.Config) {
	client, err := redis.NewClient(&redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		a.logger.Warn("Redis unavailable, continuing without it",
			logging.String("address", cfg.RedisAddress),
			logging.Err(err),
		)
		return
	}
	a.redis = client
}

// acquireRunLock takes the cluster-wide run lock. A lock held elsewhere
// refuses the run.
func (a *app) acquireRunLock(ctx context.Context, cfg *config.Config) error {
	manager, err := locks.NewRedsyncManager(a.redis)
	if err != nil {
		return fmt.Errorf("create lock manager: %w", err)
	}
	lock, err := manager.AcquireRunLock(ctx, cfg.RunLockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	a.lock = lock
	a.logger.Info("Run lock acquired",
		logging.String("key", lock.Key()),
		logging.Duration("ttl", cfg.RunLockTTL),
	)
	return nil
}

// newCache returns the Redis-backed cache when Redis is connected and the
// in-process cache otherwise
func (a *app) newCache(cfg *config.Config) enrichers.CacheInterface {
	cacheConfig := &enrichers.CacheConfig{
		Enabled: true,
		TTL:     cfg.CacheTTL,
		MaxSize: cfg.CacheSize,
	}

	if a.redis != nil {
		a.logger.Info("Using Redis detail cache", logging.String("address", cfg.RedisAddress))
		return enrichers.NewDistributedResponseCache(cacheConfig, a.redis, a.logger)
	}
	return enrichers.NewResponseCache(cacheConfig)
}

// Close releases every component that holds a resource
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
	if a.lock != nil {
		if err := a.lock.Release(context.Background()); err != nil {
			a.logger.Warn("Failed to release run lock", logging.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logging.Err(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close store", logging.Err(err))
		}
	}
}
