package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redakta/backend/internal/domain/offer"
	"github.com/redakta/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const selectionKeyPrefix = "selection:"

// RedisSelectionCache implements SelectionCache using Redis. Suitable for
// deployments where multiple instances must serve the same rotation state.
type RedisSelectionCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
	logger     *zap.Logger
}

// RedisSelectionCacheOption is a functional option for configuring the cache
type RedisSelectionCacheOption func(*RedisSelectionCache)

// WithRedisTTL sets the TTL applied when Set is called with a zero duration
func WithRedisTTL(ttl time.Duration) RedisSelectionCacheOption {
	return func(c *RedisSelectionCache) {
		c.defaultTTL = ttl
	}
}

// WithRedisLogger sets the logger for the cache
func WithRedisLogger(logger *zap.Logger) RedisSelectionCacheOption {
	return func(c *RedisSelectionCache) {
		c.logger = logger
	}
}

// NewRedisSelectionCache creates a Redis-backed selection cache and verifies
// the connection before returning
func NewRedisSelectionCache(cfg *config.RedisConfig, opts ...RedisSelectionCacheOption) (*RedisSelectionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSelectionCacheWithClient(client, opts...), nil
}

// NewRedisSelectionCacheWithClient creates a cache with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisSelectionCacheWithClient(client *redis.Client, opts ...RedisSelectionCacheOption) *RedisSelectionCache {
	cache := &RedisSelectionCache{
		client:     client,
		keyPrefix:  selectionKeyPrefix,
		defaultTTL: defaultSelectionTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// Get returns the cached slice for a key
func (c *RedisSelectionCache) Get(ctx context.Context, key string) ([]offer.Offer, bool, error) {
	payload, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read selection cache: %w", err)
	}

	var offers []offer.Offer
	if err := json.Unmarshal(payload, &offers); err != nil {
		// A corrupt entry behaves like a miss; the next Set repairs it
		c.logger.Warn("Dropping corrupt selection cache entry",
			zap.String("key", key),
			zap.Error(err))
		c.client.Del(ctx, c.keyPrefix+key)
		return nil, false, nil
	}

	return offers, true, nil
}

// Set stores an offer slice under a key
func (c *RedisSelectionCache) Set(ctx context.Context, key string, offers []offer.Offer, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	payload, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("failed to encode selection cache entry: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write selection cache: %w", err)
	}
	return nil
}

// Delete removes a key from the cache
func (c *RedisSelectionCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}

// InvalidateAll drops every cached slice. Uses SCAN rather than KEYS so a
// large cache never blocks the Redis event loop.
func (c *RedisSelectionCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate selection cache: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan selection cache keys: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate selection cache: %w", err)
		}
	}

	c.logger.Info("Invalidated selection cache")
	return nil
}

// Close closes the Redis client
func (c *RedisSelectionCache) Close() error {
	return c.client.Close()
}

// Ensure RedisSelectionCache implements SelectionCache
var _ SelectionCache = (*RedisSelectionCache)(nil)
