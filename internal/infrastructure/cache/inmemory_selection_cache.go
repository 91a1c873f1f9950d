package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redakta/backend/internal/domain/offer"
	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 30 * time.Second
	defaultSelectionTTL    = time.Hour
)

// selectionEntry wraps a cached offer slice with its expiration time
type selectionEntry struct {
	offers    []offer.Offer
	expiresAt time.Time
}

func (e *selectionEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemorySelectionCache implements SelectionCache using in-process storage.
// InvalidateAll swaps the whole map under the write lock, so readers never
// observe a partially cleared cache.
type InMemorySelectionCache struct {
	mu         sync.RWMutex
	entries    map[string]*selectionEntry
	defaultTTL time.Duration
	logger     *zap.Logger
	stopCh     chan struct{}
	stopped    int32

	// Stats for monitoring
	hits   int64
	misses int64
}

// InMemorySelectionCacheOption is a functional option for configuring the cache
type InMemorySelectionCacheOption func(*InMemorySelectionCache)

// WithInMemoryTTL sets the TTL applied when Set is called with a zero duration
func WithInMemoryTTL(ttl time.Duration) InMemorySelectionCacheOption {
	return func(c *InMemorySelectionCache) {
		c.defaultTTL = ttl
	}
}

// WithInMemoryLogger sets the logger for the cache
func WithInMemoryLogger(logger *zap.Logger) InMemorySelectionCacheOption {
	return func(c *InMemorySelectionCache) {
		c.logger = logger
	}
}

// NewInMemorySelectionCache creates a new in-memory selection cache
func NewInMemorySelectionCache(opts ...InMemorySelectionCacheOption) *InMemorySelectionCache {
	cache := &InMemorySelectionCache{
		entries:    make(map[string]*selectionEntry),
		defaultTTL: defaultSelectionTTL,
		logger:     zap.NewNop(),
		stopCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get returns the cached slice for a key
func (c *InMemorySelectionCache) Get(ctx context.Context, key string) ([]offer.Offer, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.isExpired() {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Debug("Selection cache miss", zap.String("key", key))
		return nil, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	c.logger.Debug("Selection cache hit", zap.String("key", key))

	// Copy so callers can shuffle without mutating the cached slice
	out := make([]offer.Offer, len(entry.offers))
	copy(out, entry.offers)
	return out, true, nil
}

// Set stores an offer slice under a key
func (c *InMemorySelectionCache) Set(ctx context.Context, key string, offers []offer.Offer, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	stored := make([]offer.Offer, len(offers))
	copy(stored, offers)

	c.mu.Lock()
	c.entries[key] = &selectionEntry{
		offers:    stored,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	c.logger.Debug("Cached selection slice",
		zap.String("key", key),
		zap.Int("offers", len(offers)),
		zap.Duration("ttl", ttl))
	return nil
}

// Delete removes a key from the cache
func (c *InMemorySelectionCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// InvalidateAll drops every cached slice in one map swap
func (c *InMemorySelectionCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*selectionEntry)
	c.mu.Unlock()

	c.logger.Info("Invalidated selection cache")
	return nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *InMemorySelectionCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns cache statistics
func (c *InMemorySelectionCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of entries in the cache
func (c *InMemorySelectionCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupExpired periodically removes expired entries from the cache
func (c *InMemorySelectionCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.doCleanup()
		}
	}
}

func (c *InMemorySelectionCache) doCleanup() {
	var removed int

	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.isExpired() {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("Cleaned up expired selection cache entries", zap.Int("removed", removed))
	}
}

// Ensure InMemorySelectionCache implements SelectionCache
var _ SelectionCache = (*InMemorySelectionCache)(nil)
